package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plumeapp/plume/internal/models"
	"github.com/plumeapp/plume/internal/services"
	"github.com/plumeapp/plume/pkg/response"
)

type GroupHandler struct {
	svc *services.GroupService
}

type createGroupRequest struct {
	UserIDs  []string `json:"user_ids" validate:"omitempty,dive,required"`
	GroupIDs []string `json:"group_ids" validate:"omitempty,dive,required"`
}

type addMemberRequest struct {
	MemberID   string `json:"member_id" validate:"required"`
	MemberKind string `json:"member_kind" validate:"required,oneof=user group"`
}

func NewGroupHandler(svc *services.GroupService) *GroupHandler {
	return &GroupHandler{svc: svc}
}

// POST /api/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var body createGroupRequest
	if !bindAndValidate(c, &body) {
		return
	}

	group, err := h.svc.Create(requestContext(c), services.CreateGroupInput{
		UserIDs:  body.UserIDs,
		GroupIDs: body.GroupIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, group)
}

// GET /api/groups/:id
func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.svc.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, group)
}

// GET /api/groups
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.svc.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, groups)
}

// POST /api/groups/:id/members
func (h *GroupHandler) AddMember(c *gin.Context) {
	var body addMemberRequest
	if !bindAndValidate(c, &body) {
		return
	}

	membership, err := h.svc.AddMember(requestContext(c),
		c.Param("id"), body.MemberID, models.MemberKind(body.MemberKind))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, membership)
}

// DELETE /api/groups/:id
func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
