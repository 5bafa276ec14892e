// AngelaMos | 2026
// dto.go

package note

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxPage      = 100000

	SortAsc  = "asc"
	SortDesc = "desc"
)

// sortColumns maps every accepted spelling of a sort field, lowercased,
// to its column. camelCase and snake_case are both accepted.
var sortColumns = map[string]string{
	"createdat":  "created_at",
	"created_at": "created_at",
	"updatedat":  "updated_at",
	"updated_at": "updated_at",
	"title":      "title",
}

type CreateNoteRequest struct {
	Title   string `json:"title"   validate:"required,min=1,max=200"`
	Content string `json:"content" validate:"max=50000"`
}

type UpdateNoteRequest struct {
	Title   string `json:"title"   validate:"required,min=1,max=200"`
	Content string `json:"content" validate:"max=50000"`
}

type NoteResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ListParams struct {
	Page      int    `query:"page"      validate:"min=1,max=100000"`
	Limit     int    `query:"limit"     validate:"min=1,max=100"`
	Search    string `query:"search"    validate:"max=200"`
	SortBy    string `query:"sortBy"    validate:"required"`
	SortOrder string `query:"sortOrder" validate:"oneof=asc desc"`
}

// ParseListParams reads list parameters from a query string, applying
// defaults for absent values. Malformed numbers are reported per field.
func ParseListParams(q url.Values) (ListParams, map[string]string) {
	params := ListParams{
		Page:      defaultPage,
		Limit:     defaultLimit,
		Search:    strings.TrimSpace(q.Get("search")),
		SortBy:    "createdAt",
		SortOrder: SortDesc,
	}
	fields := make(map[string]string)

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			fields["page"] = "must be a whole number"
		case n > maxPage:
			fields["page"] = fmt.Sprintf("must be at most %d", maxPage)
		}
		params.Page = n
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["limit"] = "must be a whole number"
		}
		params.Limit = n
	}

	if v := q.Get("sortBy"); v != "" {
		params.SortBy = v
	}
	if _, ok := sortColumns[strings.ToLower(params.SortBy)]; !ok {
		fields["sortBy"] = fmt.Sprintf(
			"must be one of: createdAt, updatedAt, title (got %q)",
			params.SortBy,
		)
	}

	if v := q.Get("sortOrder"); v != "" {
		params.SortOrder = strings.ToLower(v)
	}

	if len(fields) == 0 {
		fields = nil
	}
	return params, fields
}

// SortColumn returns the column for SortBy. Call only after validation.
func (p ListParams) SortColumn() string {
	if col, ok := sortColumns[strings.ToLower(p.SortBy)]; ok {
		return col
	}
	return "created_at"
}

func (p ListParams) SortDirection() string {
	if p.SortOrder == SortAsc {
		return "ASC"
	}
	return "DESC"
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

func ToNoteResponse(n *Note) NoteResponse {
	return NoteResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func ToNoteResponseList(notes []Note) []NoteResponse {
	responses := make([]NoteResponse, 0, len(notes))
	for i := range notes {
		responses = append(responses, ToNoteResponse(&notes[i]))
	}
	return responses
}
