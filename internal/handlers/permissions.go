package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/plumeapp/plume/internal/services"
	apperrors "github.com/plumeapp/plume/pkg/errors"
	"github.com/plumeapp/plume/pkg/response"
)

type PermissionHandler struct {
	svc *services.PermissionService
}

type grantSpecRequest struct {
	Inherit  bool     `json:"inherit"`
	UserIDs  []string `json:"user_ids" validate:"omitempty,dive,required"`
	GroupIDs []string `json:"group_ids" validate:"omitempty,dive,required"`
}

type updatePermissionsRequest struct {
	View grantSpecRequest `json:"view"`
	Edit grantSpecRequest `json:"edit"`
}

func NewPermissionHandler(svc *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{svc: svc}
}

// PUT /api/posts/:id/permissions
func (h *PermissionHandler) Update(c *gin.Context) {
	var body updatePermissionsRequest
	if !bindAndValidate(c, &body) {
		return
	}

	post, err := h.svc.Update(requestContext(c), c.Param("id"), services.UpdatePermissionsInput{
		View: services.GrantSpec{
			Inherit:  body.View.Inherit,
			UserIDs:  body.View.UserIDs,
			GroupIDs: body.View.GroupIDs,
		},
		Edit: services.GrantSpec{
			Inherit:  body.Edit.Inherit,
			UserIDs:  body.Edit.UserIDs,
			GroupIDs: body.Edit.GroupIDs,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

// GET /api/posts/:id/can-view?user_id=...
func (h *PermissionHandler) CanView(c *gin.Context) {
	h.check(c, h.svc.CanView)
}

// GET /api/posts/:id/can-edit?user_id=...
func (h *PermissionHandler) CanEdit(c *gin.Context) {
	h.check(c, h.svc.CanEdit)
}

func (h *PermissionHandler) check(c *gin.Context, fn func(ctx context.Context, userID, postID string) (bool, error)) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		response.Error(c, apperrors.NewBadRequest("user_id query parameter is required"))
		return
	}

	allowed, err := fn(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"allowed": allowed})
}
