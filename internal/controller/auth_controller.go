package controller

import (
	"net/http"

	"github.com/cassiomorais/realestate/internal/service"
)

// AuthController handles registration, login and the caller's profile.
type AuthController struct {
	userService *service.UserService
	authz       *service.AuthzService
}

func NewAuthController(userService *service.UserService, authz *service.AuthzService) *AuthController {
	return &AuthController{userService: userService, authz: authz}
}

// Register handles POST /api/v1/auth/register
func (h *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.userService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromUser(u))
}

// Login handles POST /api/v1/auth/login
func (h *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromLogin(res))
}

// Me handles GET /api/v1/me
func (h *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authz.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	u, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromUser(u))
}
