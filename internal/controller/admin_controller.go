package controller

import (
	"net/http"

	"github.com/cassiomorais/realestate/internal/service"
)

// AdminController exposes user administration. Routes are mounted behind RequireAdmin.
type AdminController struct {
	userService *service.UserService
}

func NewAdminController(userService *service.UserService) *AdminController {
	return &AdminController{userService: userService}
}

// ListUsers handles GET /api/v1/admin/users
func (h *AdminController) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	users, err := h.userService.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, FromUser(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetActive handles PUT /api/v1/admin/users/{id}/active
func (h *AdminController) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req SetActiveRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.userService.SetActive(r.Context(), id, *req.Active); err != nil {
		writeError(w, err)
		return
	}
	h.writeUser(w, r, id)
}

// SetAdmin handles PUT /api/v1/admin/users/{id}/admin
func (h *AdminController) SetAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req SetAdminRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.userService.SetAdmin(r.Context(), id, *req.IsAdmin); err != nil {
		writeError(w, err)
		return
	}
	h.writeUser(w, r, id)
}

func (h *AdminController) writeUser(w http.ResponseWriter, r *http.Request, id int64) {
	u, err := h.userService.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromUser(u))
}
