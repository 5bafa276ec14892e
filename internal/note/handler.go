// AngelaMos | 2026
// handler.go

package note

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/notes-api/internal/core"
	"github.com/carterperez-dev/templates/notes-api/internal/middleware"
)

const maxBodyBytes = 256 << 10

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/notes", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{noteID}", h.Get)
		r.Put("/{noteID}", h.Update)
		r.Delete("/{noteID}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params, fields := ParseListParams(r.URL.Query())
	if fields != nil {
		core.JSONError(w, core.ValidationError(fields))
		return
	}

	if err := h.validator.Struct(params); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	notes, total, err := h.service.List(
		r.Context(),
		middleware.GetUserID(r.Context()),
		params,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Paginated(
		w,
		ToNoteResponseList(notes),
		params.Page,
		params.Limit,
		total,
	)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.Get(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "noteID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToNoteResponse(note))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !h.decode(w, r, &req, &req.Title) {
		return
	}

	note, err := h.service.Create(
		r.Context(),
		middleware.GetUserID(r.Context()),
		req,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToNoteResponse(note))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !h.decode(w, r, &req, &req.Title) {
		return
	}

	note, err := h.service.Update(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "noteID"),
		req,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToNoteResponse(note))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "noteID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

// decode reads the body into dst, trims the title so a blank one fails
// validation, then validates.
func (h *Handler) decode(
	w http.ResponseWriter,
	r *http.Request,
	dst any,
	title *string,
) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	*title = strings.TrimSpace(*title)

	if err := h.validator.Struct(dst); err != nil {
		core.ValidationFailed(w, err)
		return false
	}

	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "note")
	default:
		core.InternalServerError(w, err)
	}
}
