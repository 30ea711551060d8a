package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plumeapp/plume/internal/services"
	"github.com/plumeapp/plume/pkg/response"
)

type UserHandler struct {
	svc *services.UserService
}

type createUserRequest struct {
	Username    string `json:"username" validate:"required,min=2,max=100"`
	DisplayName string `json:"display_name" validate:"omitempty,max=200"`
}

func NewUserHandler(svc *services.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.svc.Create(requestContext(c), services.CreateUserInput{
		Username:    body.Username,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.svc.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, users)
}
