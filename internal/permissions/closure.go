package permissions

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/plumeapp/plume/internal/cache"
	"github.com/plumeapp/plume/internal/models"
	apperrors "github.com/plumeapp/plume/pkg/errors"
	"github.com/plumeapp/plume/pkg/logger"
	"github.com/plumeapp/plume/pkg/metrics"
)

// Resolver computes the transitive set of groups a user belongs to.
//
// Group-in-group edges may form cycles, so the traversal is a breadth-first
// walk with an explicit visited set. Both the per-group parent lists and the
// final closure are cached; the cache is best-effort and every failure falls
// through to the database.
type Resolver struct {
	db    *gorm.DB
	store cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewResolver constructs a group closure resolver. The cache store may be
// nil, in which case every resolution hits the database.
func NewResolver(db *gorm.DB, store cache.Store) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("closure resolver: db is required")
	}
	return &Resolver{
		db:    db,
		store: store,
		ttl:   DefaultTTL,
		log:   logger.WithModule("permissions.closure"),
	}, nil
}

// GroupsForUser returns every group the user is a direct or transitive
// member of. The result is deduplicated and sorted; an empty slice is a
// valid answer. Store failures propagate as retryable infrastructure
// errors, never as "no groups".
func (r *Resolver) GroupsForUser(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	key := userGroupsKey(userID)
	if cached, ok := r.cacheGetStrings(ctx, key, "closure"); ok {
		return cached, nil
	}

	direct, err := r.directGroups(ctx, userID)
	if err != nil {
		return nil, err
	}

	closure, err := r.expand(ctx, direct)
	if err != nil {
		return nil, err
	}

	r.cacheSet(ctx, key, encodeStrings(closure))
	return closure, nil
}

// directGroups lists the groups the user is an immediate member of.
func (r *Resolver) directGroups(ctx context.Context, userID string) ([]string, error) {
	var groupIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("member_id = ? AND member_kind = ?", userID, models.MemberKindUser).
		Pluck("group_id", &groupIDs).Error
	if err != nil {
		return nil, apperrors.WrapInfrastructure(err, "load direct group memberships")
	}
	return groupIDs, nil
}

// expand walks member->group edges breadth-first from the seed groups. The
// visited set both terminates cyclic graphs and prevents re-expanding a node.
func (r *Resolver) expand(ctx context.Context, seeds []string) ([]string, error) {
	visited := make(map[string]struct{}, len(seeds))
	queue := append([]string(nil), seeds...)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		parents, err := r.parentGroups(ctx, current)
		if err != nil {
			return nil, err
		}
		queue = append(queue, parents...)
	}

	closure := make([]string, 0, len(visited))
	for id := range visited {
		closure = append(closure, id)
	}
	sort.Strings(closure)
	return closure, nil
}

// parentGroups returns the groups that directly contain the given group,
// consulting the per-group cache first.
func (r *Resolver) parentGroups(ctx context.Context, groupID string) ([]string, error) {
	key := groupParentsKey(groupID)
	if cached, ok := r.cacheGetStrings(ctx, key, "parents"); ok {
		return cached, nil
	}

	var parentIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("member_id = ? AND member_kind = ?", groupID, models.MemberKindGroup).
		Pluck("group_id", &parentIDs).Error
	if err != nil {
		return nil, apperrors.WrapInfrastructure(err, "load parent group memberships")
	}

	r.cacheSet(ctx, key, encodeStrings(parentIDs))
	return parentIDs, nil
}

func (r *Resolver) cacheGetStrings(ctx context.Context, key, class string) ([]string, bool) {
	if r.store == nil {
		return nil, false
	}

	data, found, err := r.store.Get(ctx, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(class, "error").Inc()
		r.log.Warn("cache read failed; falling back to store", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found {
		metrics.CacheLookups.WithLabelValues(class, "miss").Inc()
		r.log.Debug("cache miss", zap.String("key", key))
		return nil, false
	}

	values, ok := decodeStrings(data)
	if !ok {
		metrics.CacheLookups.WithLabelValues(class, "error").Inc()
		r.log.Warn("cache entry undecodable; evicting", zap.String("key", key))
		_ = r.store.Delete(ctx, key)
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues(class, "hit").Inc()
	r.log.Debug("cache hit", zap.String("key", key))
	return values, true
}

func (r *Resolver) cacheSet(ctx context.Context, key string, value []byte) {
	if r.store == nil {
		return
	}
	if err := r.store.Set(ctx, key, value, r.ttl); err != nil {
		r.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
