// AngelaMos | 2026
// service.go

package note

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/notes-api/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Note, int, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("list notes: %w", core.ErrUnauthorized)
	}

	return s.repo.List(ctx, userID, params)
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Note, error) {
	if userID == "" {
		return nil, fmt.Errorf("get note: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, id, userID)
}

func (s *Service) Create(
	ctx context.Context,
	userID string,
	req CreateNoteRequest,
) (*Note, error) {
	if userID == "" {
		return nil, fmt.Errorf("create note: %w", core.ErrUnauthorized)
	}

	note := &Note{
		ID:      uuid.New().String(),
		UserID:  userID,
		Title:   strings.TrimSpace(req.Title),
		Content: req.Content,
	}

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, err
	}

	return note, nil
}

func (s *Service) Update(
	ctx context.Context,
	userID, id string,
	req UpdateNoteRequest,
) (*Note, error) {
	if userID == "" {
		return nil, fmt.Errorf("update note: %w", core.ErrUnauthorized)
	}

	note := &Note{
		ID:      id,
		UserID:  userID,
		Title:   strings.TrimSpace(req.Title),
		Content: req.Content,
	}

	if err := s.repo.Update(ctx, note); err != nil {
		return nil, err
	}

	return note, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return fmt.Errorf("delete note: %w", core.ErrUnauthorized)
	}

	return s.repo.Delete(ctx, id, userID)
}
