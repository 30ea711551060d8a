package permissions

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/plumeapp/plume/internal/cache"
	"github.com/plumeapp/plume/internal/models"
	apperrors "github.com/plumeapp/plume/pkg/errors"
	"github.com/plumeapp/plume/pkg/logger"
	"github.com/plumeapp/plume/pkg/metrics"
)

// Invalidator evicts authorization cache entries rendered stale by a
// mutation. It always runs after the owning transaction committed; callers
// log its errors but never roll back a committed mutation because of them
// (staleness is bounded by the cache TTL).
type Invalidator struct {
	db    *gorm.DB
	store cache.Store
	log   *zap.Logger
}

// NewInvalidator constructs the cache invalidation coordinator.
func NewInvalidator(db *gorm.DB, store cache.Store) (*Invalidator, error) {
	if db == nil {
		return nil, errors.New("cache invalidator: db is required")
	}
	return &Invalidator{
		db:    db,
		store: store,
		log:   logger.WithModule("permissions.invalidator"),
	}, nil
}

// ClosureScope names the principals whose cached closures a membership
// mutation touched. Deletions snapshot it before removing edges, since the
// affected set is no longer derivable afterwards.
type ClosureScope struct {
	UserIDs  []string
	GroupIDs []string
}

// OnGroupMembershipChanged computes every user and group whose cached
// closure may have changed because the given groups gained or lost members,
// and evicts their entries. The traversal follows membership edges outward
// from each changed group with a visited set, so cyclic group graphs
// terminate.
func (i *Invalidator) OnGroupMembershipChanged(ctx context.Context, groupIDs []string) error {
	if i.store == nil || len(groupIDs) == 0 {
		return nil
	}

	scope, err := i.CollectScope(ctx, groupIDs)
	if err != nil {
		metrics.InvalidationFailures.Inc()
		return err
	}
	return i.EvictScope(ctx, scope)
}

// CollectScope resolves the affected principals for the given changed
// groups against the current membership graph.
func (i *Invalidator) CollectScope(ctx context.Context, groupIDs []string) (ClosureScope, error) {
	users, groups, err := i.collectAffected(ctx, groupIDs)
	if err != nil {
		return ClosureScope{}, err
	}
	return ClosureScope{UserIDs: users, GroupIDs: groups}, nil
}

// EvictScope drops the closure cache entries of every principal in scope.
func (i *Invalidator) EvictScope(ctx context.Context, scope ClosureScope) error {
	if i.store == nil {
		return nil
	}

	keys := make([]string, 0, len(scope.UserIDs)+len(scope.GroupIDs))
	for _, userID := range scope.UserIDs {
		keys = append(keys, userGroupsKey(userID))
	}
	for _, groupID := range scope.GroupIDs {
		keys = append(keys, groupParentsKey(groupID))
	}
	if len(keys) == 0 {
		return nil
	}

	if err := i.store.Delete(ctx, keys...); err != nil {
		metrics.InvalidationFailures.Inc()
		return apperrors.WrapInfrastructure(err, "evict membership cache entries")
	}

	i.log.Info("membership cache invalidated",
		zap.Int("users", len(scope.UserIDs)),
		zap.Int("groups", len(scope.GroupIDs)),
	)
	return nil
}

// OnPermissionChanged evicts every cached grant lookup for the post.
func (i *Invalidator) OnPermissionChanged(ctx context.Context, postID string) error {
	if i.store == nil {
		return nil
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return errors.New("cache invalidator: post id is required")
	}

	if err := i.store.DeleteByPrefix(ctx, PermissionKeyPrefix(postID)); err != nil {
		metrics.InvalidationFailures.Inc()
		return apperrors.WrapInfrastructure(err, "evict permission cache entries")
	}

	i.log.Info("permission cache invalidated", zap.String("post_id", postID))
	return nil
}

// collectAffected walks the membership graph from the changed groups towards
// their members: every group reachable through group-kind members is
// affected, as is every user-kind member encountered along the way.
func (i *Invalidator) collectAffected(ctx context.Context, groupIDs []string) (users, groups []string, err error) {
	visited := make(map[string]struct{}, len(groupIDs))
	userSet := make(map[string]struct{})
	groupSet := make(map[string]struct{}, len(groupIDs))
	queue := append([]string(nil), groupIDs...)

	for _, id := range groupIDs {
		groupSet[id] = struct{}{}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		var memberships []models.GroupMembership
		if err := i.db.WithContext(ctx).
			Where("group_id = ?", current).
			Find(&memberships).Error; err != nil {
			return nil, nil, apperrors.WrapInfrastructure(err, "load group members")
		}

		for _, membership := range memberships {
			switch membership.MemberKind {
			case models.MemberKindUser:
				userSet[membership.MemberID] = struct{}{}
			case models.MemberKindGroup:
				groupSet[membership.MemberID] = struct{}{}
				queue = append(queue, membership.MemberID)
			}
		}
	}

	for id := range userSet {
		users = append(users, id)
	}
	for id := range groupSet {
		groups = append(groups, id)
	}
	return users, groups, nil
}

// EvictAll drops the closure caches without graph analysis. Kept as the
// coarse fallback for operational use; the precise cascade above is the
// default everywhere in the codebase.
func (i *Invalidator) EvictAll(ctx context.Context) error {
	if i.store == nil {
		return nil
	}
	return multierr.Combine(
		i.store.DeleteByPrefix(ctx, "user:"),
		i.store.DeleteByPrefix(ctx, "group:"),
	)
}
