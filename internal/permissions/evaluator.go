package permissions

import (
	"context"
	"errors"
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

var (
	// ErrUserNotFound indicates the requesting user id does not exist.
	ErrUserNotFound = apperrors.NewNotFound("USER", "User not found")
	// ErrPostNotFound indicates the referenced post does not exist.
	ErrPostNotFound = apperrors.NewNotFound("POST", "Post not found")
	// ErrCorruptPost reports a post without a valid author reference.
	// Authorization fails closed on it.
	ErrCorruptPost = apperrors.ErrDataIntegrity.WithInternal(errors.New("post has no author"))
)

// Evaluator answers can-edit / can-view questions for a single post.
//
// A post either inherits its decision from its parent chain (root posts
// that inherit are accessible to the author only) or carries explicit
// grants; grant lookups are cached per (post, user, class, kind).
type Evaluator struct {
	db       *gorm.DB
	store    cache.Store
	resolver *Resolver
	ttl      time.Duration
	log      *zap.Logger
}

// NewEvaluator builds an Evaluator sharing the given closure resolver.
func NewEvaluator(db *gorm.DB, store cache.Store, resolver *Resolver) (*Evaluator, error) {
	if db == nil {
		return nil, errors.New("permission evaluator: db is required")
	}
	if resolver == nil {
		return nil, errors.New("permission evaluator: closure resolver is required")
	}
	return &Evaluator{
		db:       db,
		store:    store,
		resolver: resolver,
		ttl:      DefaultTTL,
		log:      logger.WithModule("permissions.evaluator"),
	}, nil
}

// CanEdit reports whether the user may edit the post.
func (e *Evaluator) CanEdit(ctx context.Context, userID, postID string) (bool, error) {
	return e.can(ctx, userID, postID, models.GrantEdit)
}

// CanView reports whether the user may view the post.
func (e *Evaluator) CanView(ctx context.Context, userID, postID string) (bool, error) {
	return e.can(ctx, userID, postID, models.GrantView)
}

func (e *Evaluator) can(ctx context.Context, userID, postID string, kind models.GrantKind) (bool, error) {
	userID = strings.TrimSpace(userID)
	postID = strings.TrimSpace(postID)
	if userID == "" || postID == "" {
		return false, apperrors.NewBadRequest("user id and post id are required")
	}

	if err := e.checkUserExists(ctx, userID); err != nil {
		return false, err
	}

	allowed, err := e.decide(ctx, userID, postID, kind)

	switch {
	case err != nil:
		metrics.PermissionChecks.WithLabelValues(string(kind), "error").Inc()
	case allowed:
		metrics.PermissionChecks.WithLabelValues(string(kind), "allow").Inc()
	default:
		metrics.PermissionChecks.WithLabelValues(string(kind), "deny").Inc()
	}

	return allowed, err
}

// decide walks the parent chain iteratively. Parent links form a forest by
// construction; the visited guard only exists so corrupt data degenerates
// into a deny instead of a hang.
func (e *Evaluator) decide(ctx context.Context, userID, startID string, kind models.GrantKind) (bool, error) {
	visited := make(map[string]struct{})
	currentID := startID

	for {
		if _, seen := visited[currentID]; seen {
			e.log.Error("cycle in post parent chain", zap.String("post_id", currentID))
			return false, apperrors.ErrDataIntegrity
		}
		visited[currentID] = struct{}{}

		post, err := e.loadPost(ctx, currentID, currentID == startID)
		if err != nil {
			return false, err
		}

		inherits := post.InheritEdit
		if kind == models.GrantView {
			inherits = post.InheritView
		}

		if inherits {
			if post.ParentPostID == nil {
				// Root that still inherits: author only.
				return post.AuthorID == userID, nil
			}
			currentID = *post.ParentPostID
			continue
		}

		if allowed, err := e.hasExplicitGrant(ctx, userID, post.ID, kind); err != nil {
			return false, err
		} else if allowed {
			return true, nil
		}

		return e.hasGroupGrant(ctx, userID, post.ID, kind)
	}
}

func (e *Evaluator) loadPost(ctx context.Context, postID string, isRequested bool) (*models.Post, error) {
	var post models.Post
	err := e.db.WithContext(ctx).
		Preload("Author").
		First(&post, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if isRequested {
			return nil, ErrPostNotFound
		}
		// A dangling parent reference must deny, not 404.
		e.log.Error("post parent chain references missing post", zap.String("post_id", postID))
		return nil, apperrors.ErrDataIntegrity
	}
	if err != nil {
		return nil, apperrors.WrapInfrastructure(err, "load post")
	}

	if post.Author == nil {
		e.log.Error("post has no author; denying", zap.String("post_id", post.ID))
		return nil, ErrCorruptPost
	}

	return &post, nil
}

func (e *Evaluator) checkUserExists(ctx context.Context, userID string) error {
	var count int64
	err := e.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Count(&count).Error
	if err != nil {
		return apperrors.WrapInfrastructure(err, "check user existence")
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// hasExplicitGrant checks for a grant naming the user directly.
func (e *Evaluator) hasExplicitGrant(ctx context.Context, userID, postID string, kind models.GrantKind) (bool, error) {
	key := grantKey(postID, userID, "explicit", kind)
	if cached, ok := e.cacheGetBool(ctx, key); ok {
		return cached, nil
	}

	var count int64
	err := e.db.WithContext(ctx).
		Model(&models.Grant{}).
		Where("post_id = ? AND kind = ? AND permitted_id = ? AND permitted_kind = ?",
			postID, kind, userID, models.MemberKindUser).
		Count(&count).Error
	if err != nil {
		return false, apperrors.WrapInfrastructure(err, "load explicit grant")
	}

	allowed := count > 0
	e.cacheSet(ctx, key, encodeBool(allowed))
	return allowed, nil
}

// hasGroupGrant checks for a grant naming any group in the user's closure.
func (e *Evaluator) hasGroupGrant(ctx context.Context, userID, postID string, kind models.GrantKind) (bool, error) {
	key := grantKey(postID, userID, "group", kind)
	if cached, ok := e.cacheGetBool(ctx, key); ok {
		return cached, nil
	}

	groupIDs, err := e.resolver.GroupsForUser(ctx, userID)
	if err != nil {
		return false, err
	}

	allowed := false
	if len(groupIDs) > 0 {
		var count int64
		err = e.db.WithContext(ctx).
			Model(&models.Grant{}).
			Where("post_id = ? AND kind = ? AND permitted_id IN ? AND permitted_kind = ?",
				postID, kind, groupIDs, models.MemberKindGroup).
			Count(&count).Error
		if err != nil {
			return false, apperrors.WrapInfrastructure(err, "load group grant")
		}
		allowed = count > 0
	}

	e.cacheSet(ctx, key, encodeBool(allowed))
	return allowed, nil
}

func (e *Evaluator) cacheGetBool(ctx context.Context, key string) (bool, bool) {
	if e.store == nil {
		return false, false
	}

	data, found, err := e.store.Get(ctx, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("grant", "error").Inc()
		e.log.Warn("cache read failed; falling back to store", zap.String("key", key), zap.Error(err))
		return false, false
	}
	if !found {
		metrics.CacheLookups.WithLabelValues("grant", "miss").Inc()
		e.log.Debug("cache miss", zap.String("key", key))
		return false, false
	}

	value, ok := decodeBool(data)
	if !ok {
		metrics.CacheLookups.WithLabelValues("grant", "error").Inc()
		_ = e.store.Delete(ctx, key)
		return false, false
	}

	metrics.CacheLookups.WithLabelValues("grant", "hit").Inc()
	e.log.Debug("cache hit", zap.String("key", key))
	return value, true
}

func (e *Evaluator) cacheSet(ctx context.Context, key string, value []byte) {
	if e.store == nil {
		return
	}
	if err := e.store.Set(ctx, key, value, e.ttl); err != nil {
		e.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
