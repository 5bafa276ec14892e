// AngelaMos | 2026
// repository.go

package note

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/notes-api/internal/core"
)

// Repository scopes every read and write to the owning user, so a note
// belonging to someone else is indistinguishable from a missing one.
type Repository interface {
	Create(ctx context.Context, note *Note) error
	GetByID(ctx context.Context, id, userID string) (*Note, error)
	List(ctx context.Context, userID string, params ListParams) ([]Note, int, error)
	Update(ctx context.Context, note *Note) error
	Delete(ctx context.Context, id, userID string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const noteColumns = `id, user_id, title, content, created_at, updated_at`

func (r *repository) Create(ctx context.Context, note *Note) error {
	query := `
		INSERT INTO notes (id, user_id, title, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		note.ID,
		note.UserID,
		note.Title,
		note.Content,
	).Scan(&note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id, userID string,
) (*Note, error) {
	if !isValidID(id) {
		return nil, fmt.Errorf("get note: %w", core.ErrNotFound)
	}

	query := `SELECT ` + noteColumns + `
		FROM notes
		WHERE id = $1 AND user_id = $2`

	var note Note
	err := r.db.GetContext(ctx, &note, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get note: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}

	return &note, nil
}

func (r *repository) List(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Note, int, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}
	argIdx := 2

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(title ILIKE $%d OR content ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM notes WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	// sort column and direction come from fixed whitelists, never from
	// the raw query string
	query := fmt.Sprintf(`
		SELECT %s
		FROM notes
		WHERE %s
		ORDER BY %s %s, id %s
		LIMIT $%d OFFSET $%d`,
		noteColumns,
		whereClause,
		params.SortColumn(), params.SortDirection(), params.SortDirection(),
		argIdx, argIdx+1)

	args = append(args, params.Limit, params.Offset())

	var notes []Note
	if err := r.db.SelectContext(ctx, &notes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}

	return notes, total, nil
}

func (r *repository) Update(ctx context.Context, note *Note) error {
	if !isValidID(note.ID) {
		return fmt.Errorf("update note: %w", core.ErrNotFound)
	}

	query := `
		UPDATE notes
		SET title = $3, content = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		note.ID,
		note.UserID,
		note.Title,
		note.Content,
	).Scan(&note.CreatedAt, &note.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update note: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id, userID string) error {
	if !isValidID(id) {
		return fmt.Errorf("delete note: %w", core.ErrNotFound)
	}

	query := `DELETE FROM notes WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete note: %w", core.ErrNotFound)
	}

	return nil
}

// isValidID keeps malformed ids away from the uuid column, where Postgres
// would reject them with a type error instead of a miss.
func isValidID(id string) bool {
	return uuid.Validate(id) == nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
