package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/secissues/secissues-go/internal/middleware"
	"github.com/secissues/secissues-go/internal/model"
	"github.com/secissues/secissues-go/internal/service"
)

// AuthHandler handles HTTP requests for accounts and sessions.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// HandleRegister handles POST /auth/register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if len(req.Password) > 0 && len(req.Password) < service.MinPasswordLength {
		writeJSON(w, http.StatusBadRequest, errorResponse(weakPasswordMessage()))
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleLogin handles POST /auth/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleMe handles GET /auth/me requests.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	writeJSON(w, http.StatusOK, user.ToResponse())
}

// HandleUpdatePassword handles PUT /user/update-password requests.
func (h *AuthHandler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	var req model.UpdatePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.OldPassword == "" || req.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing required fields"))
		return
	}
	if len(req.NewPassword) < service.MinPasswordLength {
		writeJSON(w, http.StatusBadRequest, errorResponse(weakPasswordMessage()))
		return
	}
	if !strings.EqualFold(strings.TrimSpace(req.Email), user.Email) {
		writeJSON(w, http.StatusForbidden, errorResponse(service.ErrForbidden.Error()))
		return
	}

	if err := h.service.ChangePassword(r.Context(), user.Email, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse("password updated"))
}

func weakPasswordMessage() string {
	return fmt.Sprintf("password must be at least %d characters", service.MinPasswordLength)
}
