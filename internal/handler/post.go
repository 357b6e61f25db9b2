package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/secissues/secissues-go/internal/middleware"
	"github.com/secissues/secissues-go/internal/model"
	"github.com/secissues/secissues-go/internal/service"
)

const defaultPublicPage = 10

// PostHandler handles HTTP requests for security issues.
type PostHandler struct {
	service *service.PostService
	logger  *slog.Logger
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(svc *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{service: svc, logger: logger}
}

// HandleList handles GET /posts?email=|type=|start=&end= requests.
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.ListFilter{
		Email: q.Get("email"),
		Type:  model.PostType(q.Get("type")),
	}

	if q.Get("start") != "" && q.Get("end") != "" {
		start, end, ok := parseRange(w, q.Get("start"), q.Get("end"))
		if !ok {
			return
		}
		filter.Start, filter.End = &start, &end
	}

	posts, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{Posts: posts})
}

// HandleListPublic handles GET /public/posts?start=&end= requests.
func (h *PostHandler) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := 0, defaultPublicPage-1
	if q.Get("start") != "" || q.Get("end") != "" {
		var ok bool
		start, end, ok = parseRange(w, q.Get("start"), q.Get("end"))
		if !ok {
			return
		}
	}

	posts, err := h.service.ListPublic(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{Posts: posts})
}

// HandleGet handles GET /posts/{id} requests.
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	post, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]model.PostResponse{"post": post})
}

// HandleCreate handles POST /posts requests.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	var req model.CreatePostRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), user, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleUpdateStatus handles PUT /posts/{id} requests.
func (h *PostHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	id, ok := postID(w, r)
	if !ok {
		return
	}

	var req model.UpdateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateStatus(r.Context(), user, id, req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse("status updated"))
}

// HandleDelete handles DELETE /posts/{id} requests.
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	id, ok := postID(w, r)
	if !ok {
		return
	}

	var req model.DeletePostRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.Delete(r.Context(), user, id, req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse("post deleted"))
}

func postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid post id"))
		return 0, false
	}
	return id, true
}

func parseRange(w http.ResponseWriter, rawStart, rawEnd string) (int, int, bool) {
	start, err1 := strconv.Atoi(rawStart)
	end, err2 := strconv.Atoi(rawEnd)
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("start and end must be integers"))
		return 0, 0, false
	}
	return start, end, true
}
