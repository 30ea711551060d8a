package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/plumeapp/plume/internal/models"
	"github.com/plumeapp/plume/internal/permissions"
	"github.com/plumeapp/plume/internal/services"
	apperrors "github.com/plumeapp/plume/pkg/errors"
	"github.com/plumeapp/plume/pkg/response"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type PostHandler struct {
	svc *services.PostService
}

type createPostRequest struct {
	AuthorID     string   `json:"author_id" validate:"required"`
	Content      string   `json:"content" validate:"required,max=10000"`
	Hashtags     []string `json:"hashtags" validate:"omitempty,dive,required,max=100"`
	Category     string   `json:"category" validate:"omitempty,oneof=tech news sport finance personal"`
	Location     string   `json:"location" validate:"omitempty,max=255"`
	ParentPostID *string  `json:"parent_post_id" validate:"omitempty"`
}

func NewPostHandler(svc *services.PostService) *PostHandler {
	return &PostHandler{svc: svc}
}

// POST /api/posts
func (h *PostHandler) Create(c *gin.Context) {
	var body createPostRequest
	if !bindAndValidate(c, &body) {
		return
	}

	post, err := h.svc.Create(requestContext(c), services.CreatePostInput{
		AuthorID:     body.AuthorID,
		Content:      body.Content,
		Hashtags:     body.Hashtags,
		Category:     models.PostCategory(body.Category),
		Location:     body.Location,
		ParentPostID: body.ParentPostID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, post)
}

// GET /api/posts/:id
func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.svc.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

// GET /api/posts?user_id=...&limit=...&page=...
// Returns only the posts the given user may view, newest first.
func (h *PostHandler) List(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		response.Error(c, apperrors.NewBadRequest("user_id query parameter is required"))
		return
	}
	limit := parseIntQuery(c, "limit", defaultPageSize)
	page := parseIntQuery(c, "page", 1)
	if limit > maxPageSize {
		limit = maxPageSize
	}

	result, err := h.svc.ListVisible(requestContext(c), services.ListPostsInput{
		UserID: userID,
		Limit:  limit,
		Page:   page,
		Filters: permissions.Filters{
			AuthorID:     strings.TrimSpace(c.Query("author_id")),
			Hashtag:      strings.TrimSpace(c.Query("hashtag")),
			ParentPostID: strings.TrimSpace(c.Query("parent_post_id")),
			Category:     strings.TrimSpace(c.Query("category")),
			Location:     strings.TrimSpace(c.Query("location")),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result.Items, &response.Meta{
		Page:        page,
		PerPage:     limit,
		HasNextPage: result.HasNextPage,
	})
}
