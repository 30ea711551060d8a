package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/plumeapp/plume/internal/models"
	"github.com/plumeapp/plume/internal/permissions"
	"github.com/plumeapp/plume/pkg/logger"
)

// GrantSpec names the principals granted one permission type when the post
// stops inheriting it. Ignored while Inherit is true.
type GrantSpec struct {
	Inherit  bool
	UserIDs  []string
	GroupIDs []string
}

// UpdatePermissionsInput replaces a post's permission configuration. Each
// permission type is settled independently.
type UpdatePermissionsInput struct {
	View GrantSpec
	Edit GrantSpec
}

// PermissionService updates grant sets and answers point permission checks.
type PermissionService struct {
	db          *gorm.DB
	evaluator   *permissions.Evaluator
	invalidator *permissions.Invalidator
	users       *UserService
	groups      *GroupService
	log         *zap.Logger
}

// NewPermissionService constructs a PermissionService instance.
func NewPermissionService(
	db *gorm.DB,
	evaluator *permissions.Evaluator,
	invalidator *permissions.Invalidator,
	users *UserService,
	groups *GroupService,
) (*PermissionService, error) {
	if db == nil {
		return nil, errors.New("permission service: db is required")
	}
	if evaluator == nil {
		return nil, errors.New("permission service: evaluator is required")
	}
	if invalidator == nil {
		return nil, errors.New("permission service: invalidator is required")
	}
	if users == nil || groups == nil {
		return nil, errors.New("permission service: user and group services are required")
	}
	return &PermissionService{
		db:          db,
		evaluator:   evaluator,
		invalidator: invalidator,
		users:       users,
		groups:      groups,
		log:         logger.WithModule("services.permission"),
	}, nil
}

// Update rewrites the post's inherit flags and grant sets in one
// transaction. For each non-inheriting type the stored grants are replaced
// wholesale, so the request body is the complete new truth for that type.
// All referenced principals are validated before anything is written.
func (p *PermissionService) Update(ctx context.Context, postID string, input UpdatePermissionsInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	var post models.Post
	err := p.db.WithContext(ctx).First(&post, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("permission service: load post: %w", err)
	}

	if err := p.validateSpec(ctx, input.View); err != nil {
		return nil, err
	}
	if err := p.validateSpec(ctx, input.Edit); err != nil {
		return nil, err
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post.InheritView = input.View.Inherit
		post.InheritEdit = input.Edit.Inherit
		if err := tx.Model(&post).
			Select("inherit_view", "inherit_edit").
			Updates(map[string]any{
				"inherit_view": post.InheritView,
				"inherit_edit": post.InheritEdit,
			}).Error; err != nil {
			return fmt.Errorf("update inherit flags: %w", err)
		}

		if err := p.replaceGrants(tx, post.ID, models.GrantView, input.View); err != nil {
			return err
		}
		if err := p.replaceGrants(tx, post.ID, models.GrantEdit, input.Edit); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("permission service: %w", err)
	}

	if err := p.invalidator.OnPermissionChanged(ctx, post.ID); err != nil {
		p.log.Warn("permission cache invalidation failed",
			zap.String("post_id", post.ID),
			zap.Error(err))
	}

	return &post, nil
}

// CanEdit reports whether the user may edit the post.
func (p *PermissionService) CanEdit(ctx context.Context, userID, postID string) (bool, error) {
	return p.evaluator.CanEdit(ensureContext(ctx), userID, postID)
}

// CanView reports whether the user may view the post.
func (p *PermissionService) CanView(ctx context.Context, userID, postID string) (bool, error) {
	return p.evaluator.CanView(ensureContext(ctx), userID, postID)
}

// replaceGrants deletes every grant of the given type and inserts the new
// set. An inheriting type is left alone: its stored grants are dormant while
// the flag is set and come back into force if inheritance is switched off.
func (p *PermissionService) replaceGrants(tx *gorm.DB, postID string, kind models.GrantKind, spec GrantSpec) error {
	if spec.Inherit {
		return nil
	}
	if err := tx.
		Where("post_id = ? AND kind = ?", postID, kind).
		Delete(&models.Grant{}).Error; err != nil {
		return fmt.Errorf("delete %s grants: %w", kind, err)
	}

	userIDs := normaliseIDs(spec.UserIDs)
	groupIDs := normaliseIDs(spec.GroupIDs)
	grants := make([]models.Grant, 0, len(userIDs)+len(groupIDs))
	for _, id := range userIDs {
		grants = append(grants, models.Grant{
			PermittedID:   id,
			PermittedKind: models.MemberKindUser,
			PostID:        postID,
			Kind:          kind,
		})
	}
	for _, id := range groupIDs {
		grants = append(grants, models.Grant{
			PermittedID:   id,
			PermittedKind: models.MemberKindGroup,
			PostID:        postID,
			Kind:          kind,
		})
	}
	if len(grants) == 0 {
		return nil
	}

	if err := tx.Create(&grants).Error; err != nil {
		return fmt.Errorf("insert %s grants: %w", kind, err)
	}
	return nil
}

func (p *PermissionService) validateSpec(ctx context.Context, spec GrantSpec) error {
	if spec.Inherit {
		return nil
	}

	ok, err := p.users.AllExist(ctx, spec.UserIDs)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return p.groups.ValidateIDs(ctx, spec.GroupIDs)
}
