package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authapp/internal/services"
	"github.com/charlesng35/authapp/internal/store"
	appErrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/response"
)

// AdminHandler exposes account administration. Routes are mounted behind RequireRole(ADMIN).
type AdminHandler struct {
	admin *services.AdminService
}

func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admin.GetStats(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// GET /api/admin/users?page=0&size=20&search=&status=all&sortBy=createdAt&sortDirection=desc
func (h *AdminHandler) ListUsers(c *gin.Context) {
	status := store.Status(strings.ToLower(strings.TrimSpace(c.DefaultQuery("status", string(store.StatusAll)))))
	switch status {
	case store.StatusAll, store.StatusActive, store.StatusInactive:
	default:
		response.Error(c, appErrors.NewBadRequest("status must be one of all, active, inactive"))
		return
	}

	page := store.Page{
		Number: parseIntQuery(c, "page", 0),
		Size:   parseIntQuery(c, "size", 20),
		SortBy: strings.TrimSpace(c.DefaultQuery("sortBy", "createdAt")),
		Desc:   !strings.EqualFold(strings.TrimSpace(c.DefaultQuery("sortDirection", "desc")), "asc"),
	}
	filter := store.Filter{
		Search: c.Query("search"),
		Status: status,
	}

	result, err := h.admin.ListUsers(requestContext(c), filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]accountDetailResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, newAccountDetailResponse(&result.Items[i]))
	}
	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Page:       result.Number,
		Size:       result.Size,
		Total:      result.Total,
		TotalPages: result.TotalPages,
	})
}

// GET /api/admin/users/:id
func (h *AdminHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	account, err := h.admin.GetUser(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newAccountDetailResponse(account))
}

// PATCH /api/admin/users/:id/status
func (h *AdminHandler) ToggleStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	account, err := h.admin.ToggleActive(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "user status updated", newAccountDetailResponse(account))
}

// DELETE /api/admin/users/:id
func (h *AdminHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.Delete(requestContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "user deleted", nil)
}

// PUT /api/admin/users/:id/profile-image
func (h *AdminHandler) UpdateProfileImage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	upload, closeUpload, err := formUpload(c, profileImageField)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeUpload()
	if upload == nil {
		response.Error(c, appErrors.NewValidation("profile image is required"))
		return
	}

	account, err := h.admin.UpdateProfileImage(requestContext(c), id, *upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "profile image updated", newAccountDetailResponse(account))
}
