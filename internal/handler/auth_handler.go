package handler

import (
	"net/http"

	"notebook-server/internal/domain"
	"notebook-server/internal/service"
	"notebook-server/pkg/response"

	"go.uber.org/zap"
)

type AuthHandler struct {
	base
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		base:        newBase(logger),
		authService: authService,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	loginResp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, loginResp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	tokenResp, err := h.authService.Refresh(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, tokenResp)
}
