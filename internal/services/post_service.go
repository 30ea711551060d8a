package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/plumeapp/plume/internal/models"
	"github.com/plumeapp/plume/internal/permissions"
	apperrors "github.com/plumeapp/plume/pkg/errors"
)

// CreatePostInput carries the fields of a new post. ParentPostID is fixed at
// creation and never changes afterwards, so the post forest stays acyclic.
type CreatePostInput struct {
	AuthorID     string
	Content      string
	Hashtags     []string
	Category     models.PostCategory
	Location     string
	ParentPostID *string
}

// ListPostsInput is a visibility-filtered listing request.
type ListPostsInput struct {
	UserID  string
	Limit   int
	Page    int
	Filters permissions.Filters
}

// PostService manages the post forest and delegates read authorization to
// the visibility query.
type PostService struct {
	db         *gorm.DB
	visibility *permissions.Visibility
}

// NewPostService constructs a PostService instance.
func NewPostService(db *gorm.DB, visibility *permissions.Visibility) (*PostService, error) {
	if db == nil {
		return nil, errors.New("post service: db is required")
	}
	if visibility == nil {
		return nil, errors.New("post service: visibility query is required")
	}
	return &PostService{db: db, visibility: visibility}, nil
}

// Create validates the author and the optional parent, then inserts the post
// together with the author's own view and edit grants in one transaction.
// The author grants make the author's access survive even when inheritance
// is later switched off.
func (s *PostService) Create(ctx context.Context, input CreatePostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.Content) == "" {
		return nil, apperrors.NewBadRequest("content is required")
	}
	if input.Category != "" && !validCategory(input.Category) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown category %q", input.Category))
	}

	if err := s.validateAuthor(ctx, input.AuthorID); err != nil {
		return nil, err
	}
	if input.ParentPostID != nil {
		if err := s.validateParent(ctx, *input.ParentPostID); err != nil {
			return nil, err
		}
	}

	post := &models.Post{
		AuthorID:     input.AuthorID,
		Content:      input.Content,
		Hashtags:     datatypes.NewJSONSlice(normaliseIDs(input.Hashtags)),
		Category:     input.Category,
		Location:     strings.TrimSpace(input.Location),
		ParentPostID: input.ParentPostID,
		InheritView:  true,
		InheritEdit:  true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return fmt.Errorf("create post: %w", err)
		}

		grants := []models.Grant{
			{PermittedID: input.AuthorID, PermittedKind: models.MemberKindUser, PostID: post.ID, Kind: models.GrantView},
			{PermittedID: input.AuthorID, PermittedKind: models.MemberKindUser, PostID: post.ID, Kind: models.GrantEdit},
		}
		if err := tx.Create(&grants).Error; err != nil {
			return fmt.Errorf("create author grants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("post service: %w", err)
	}

	return post, nil
}

// GetByID loads a post with its author and grants.
func (s *PostService) GetByID(ctx context.Context, id string) (*models.Post, error) {
	ctx = ensureContext(ctx)

	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Grants").
		First(&post, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("post service: load post: %w", err)
	}
	return &post, nil
}

// ListVisible returns one page of posts the user is allowed to view,
// newest first.
func (s *PostService) ListVisible(ctx context.Context, input ListPostsInput) (*permissions.Page, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", input.UserID).
		Count(&count).Error
	if err != nil {
		return nil, apperrors.WrapInfrastructure(err, "check user")
	}
	if count == 0 {
		return nil, ErrUserNotFound
	}

	return s.visibility.ListVisible(ctx, input.UserID, input.Limit, input.Page, input.Filters)
}

func (s *PostService) validateAuthor(ctx context.Context, authorID string) error {
	if strings.TrimSpace(authorID) == "" {
		return apperrors.NewBadRequest("author id is required")
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", authorID).
		Count(&count).Error
	if err != nil {
		return apperrors.WrapInfrastructure(err, "check author")
	}
	if count == 0 {
		return ErrAuthorNotFound
	}
	return nil
}

func (s *PostService) validateParent(ctx context.Context, parentID string) error {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", parentID).
		Count(&count).Error
	if err != nil {
		return apperrors.WrapInfrastructure(err, "check parent post")
	}
	if count == 0 {
		return ErrParentPostNotFound
	}
	return nil
}

func validCategory(c models.PostCategory) bool {
	switch c {
	case models.CategoryTech, models.CategoryNews, models.CategorySport, models.CategoryFinance, models.CategoryPersonal:
		return true
	}
	return false
}
