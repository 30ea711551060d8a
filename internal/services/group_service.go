package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/plumeapp/plume/internal/models"
	"github.com/plumeapp/plume/internal/permissions"
	apperrors "github.com/plumeapp/plume/pkg/errors"
	"github.com/plumeapp/plume/pkg/logger"
)

const groupNameAttempts = 3

// newGroupName derives a group name from the creation time. Retries after a
// uniqueness collision append a random suffix.
func newGroupName(attempt int) string {
	name := fmt.Sprintf("group-%d", time.Now().UnixMilli())
	if attempt > 1 {
		name = fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])
	}
	return name
}

// CreateGroupInput names the initial members of a new group. At least one of
// the two lists must be non-empty.
type CreateGroupInput struct {
	UserIDs  []string
	GroupIDs []string
}

// GroupService manages groups and the membership graph. Every membership
// mutation ends with a cache invalidation pass so stale closures never
// outlive the change.
type GroupService struct {
	db          *gorm.DB
	invalidator *permissions.Invalidator
	log         *zap.Logger
}

// NewGroupService constructs a GroupService instance.
func NewGroupService(db *gorm.DB, invalidator *permissions.Invalidator) (*GroupService, error) {
	if db == nil {
		return nil, errors.New("group service: db is required")
	}
	if invalidator == nil {
		return nil, errors.New("group service: invalidator is required")
	}
	return &GroupService{
		db:          db,
		invalidator: invalidator,
		log:         logger.WithModule("services.group"),
	}, nil
}

// Create validates every referenced principal, then inserts the group and
// its membership edges in one transaction. No partial group is ever
// persisted: a single bad id fails the whole request before any write.
func (s *GroupService) Create(ctx context.Context, input CreateGroupInput) (*models.Group, error) {
	ctx = ensureContext(ctx)

	userIDs := normaliseIDs(input.UserIDs)
	groupIDs := normaliseIDs(input.GroupIDs)
	if len(userIDs) == 0 && len(groupIDs) == 0 {
		return nil, ErrEmptyMemberList
	}

	if err := s.validateUserIDs(ctx, userIDs); err != nil {
		return nil, err
	}
	if err := s.ValidateIDs(ctx, groupIDs); err != nil {
		return nil, err
	}

	group := &models.Group{}
	for attempt := 1; ; attempt++ {
		group.Name = newGroupName(attempt)

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(group).Error; err != nil {
				return fmt.Errorf("create group: %w", err)
			}

			memberships := make([]models.GroupMembership, 0, len(userIDs)+len(groupIDs))
			for _, id := range userIDs {
				memberships = append(memberships, models.GroupMembership{
					MemberID:   id,
					MemberKind: models.MemberKindUser,
					GroupID:    group.ID,
				})
			}
			for _, id := range groupIDs {
				memberships = append(memberships, models.GroupMembership{
					MemberID:   id,
					MemberKind: models.MemberKindGroup,
					GroupID:    group.ID,
				})
			}

			if err := tx.Create(&memberships).Error; err != nil {
				return fmt.Errorf("create memberships: %w", err)
			}
			return nil
		})
		if err == nil {
			break
		}
		if isUniqueConstraintError(err) {
			// Concurrent creates in the same millisecond collide on the
			// generated name; retry with a disambiguated one.
			if attempt < groupNameAttempts {
				continue
			}
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("group service: %w", err)
	}

	s.invalidate(ctx, []string{group.ID})
	return group, nil
}

// AddMember attaches an existing user or group to a group.
func (s *GroupService) AddMember(ctx context.Context, groupID, memberID string, kind models.MemberKind) (*models.GroupMembership, error) {
	ctx = ensureContext(ctx)

	if err := s.ValidateIDs(ctx, []string{groupID}); err != nil {
		return nil, err
	}
	switch kind {
	case models.MemberKindUser:
		if err := s.validateUserIDs(ctx, []string{memberID}); err != nil {
			return nil, err
		}
	case models.MemberKindGroup:
		if err := s.ValidateIDs(ctx, []string{memberID}); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.NewBadRequest("member kind must be user or group")
	}

	membership := &models.GroupMembership{
		MemberID:   memberID,
		MemberKind: kind,
		GroupID:    groupID,
	}
	if err := s.db.WithContext(ctx).Create(membership).Error; err != nil {
		return nil, fmt.Errorf("group service: add member: %w", err)
	}

	s.invalidate(ctx, []string{groupID})
	return membership, nil
}

// GetByID loads a group together with its direct membership edges.
func (s *GroupService) GetByID(ctx context.Context, id string) (*models.Group, error) {
	ctx = ensureContext(ctx)

	var group models.Group
	err := s.db.WithContext(ctx).Preload("Members").First(&group, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("group service: load group: %w", err)
	}
	return &group, nil
}

// List returns all groups ordered by creation time.
func (s *GroupService) List(ctx context.Context) ([]models.Group, error) {
	ctx = ensureContext(ctx)

	var groups []models.Group
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("group service: list groups: %w", err)
	}
	return groups, nil
}

// Delete removes a group. Membership edges pointing at the group cascade
// away; edges where the group is the member are cleaned up explicitly.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	if err := s.ValidateIDs(ctx, []string{id}); err != nil {
		return err
	}

	// The affected principals must be captured while the membership edges
	// still exist; after the delete the graph no longer reaches them. The
	// parents of the group lose a member too.
	var parents []string
	err := s.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("member_id = ? AND member_kind = ?", id, models.MemberKindGroup).
		Pluck("group_id", &parents).Error
	if err != nil {
		return fmt.Errorf("group service: load parent groups: %w", err)
	}

	scope, err := s.invalidator.CollectScope(ctx, append(parents, id))
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("member_id = ? AND member_kind = ?", id, models.MemberKindGroup).
			Delete(&models.GroupMembership{}).Error; err != nil {
			return fmt.Errorf("delete member edges: %w", err)
		}
		if err := tx.
			Where("permitted_id = ? AND permitted_kind = ?", id, models.MemberKindGroup).
			Delete(&models.Grant{}).Error; err != nil {
			return fmt.Errorf("delete grants: %w", err)
		}
		if err := tx.Select("Members").Delete(&models.Group{BaseModel: models.BaseModel{ID: id}}).Error; err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("group service: %w", err)
	}

	if err := s.invalidator.EvictScope(ctx, scope); err != nil {
		s.log.Warn("membership cache invalidation failed",
			zap.String("group_id", id),
			zap.Error(err))
	}
	return nil
}

// ValidateIDs confirms every id references an existing group.
func (s *GroupService) ValidateIDs(ctx context.Context, ids []string) error {
	ctx = ensureContext(ctx)

	ids = normaliseIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id IN ?", ids).
		Count(&count).Error
	if err != nil {
		return apperrors.WrapInfrastructure(err, "count groups")
	}
	if count != int64(len(ids)) {
		return ErrGroupNotFound
	}
	return nil
}

func (s *GroupService) validateUserIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id IN ?", ids).
		Count(&count).Error
	if err != nil {
		return apperrors.WrapInfrastructure(err, "count users")
	}
	if count != int64(len(ids)) {
		return ErrUserNotFound
	}
	return nil
}

// invalidate runs after commit. A failed eviction is logged and counted but
// never fails the mutation that already happened.
func (s *GroupService) invalidate(ctx context.Context, groupIDs []string) {
	if err := s.invalidator.OnGroupMembershipChanged(ctx, groupIDs); err != nil {
		s.log.Warn("membership cache invalidation failed",
			zap.Strings("group_ids", groupIDs),
			zap.Error(err))
	}
}
