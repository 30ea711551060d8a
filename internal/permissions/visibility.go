package permissions

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/plumeapp/plume/internal/models"
	apperrors "github.com/plumeapp/plume/pkg/errors"
	"github.com/plumeapp/plume/pkg/logger"
	"github.com/plumeapp/plume/pkg/metrics"
)

// Filters narrows a visibility listing. Zero values mean "no constraint";
// all set filters apply conjunctively.
type Filters struct {
	AuthorID     string
	Hashtag      string
	ParentPostID string
	Category     string
	Location     string
}

// Page is one page of visible posts.
type Page struct {
	Items       []models.Post `json:"items"`
	HasNextPage bool          `json:"has_next_page"`
}

// Visibility runs the set-based "which posts can this user see" query.
//
// Listing cannot afford a per-post parent-chain walk, so the inheritance
// rules are pushed into a single recursive query: for every post a chain is
// ascended while `inherit_view` holds, and the terminal chain node carries
// the decision: either its explicit/group grants, or the root-author rule
// when even the root inherits. This keeps the listing consistent with the
// node-wise Evaluator.
type Visibility struct {
	db       *gorm.DB
	resolver *Resolver
	log      *zap.Logger
}

// NewVisibility builds the visibility query runner.
func NewVisibility(db *gorm.DB, resolver *Resolver) (*Visibility, error) {
	if db == nil {
		return nil, errors.New("visibility query: db is required")
	}
	if resolver == nil {
		return nil, errors.New("visibility query: closure resolver is required")
	}
	return &Visibility{
		db:       db,
		resolver: resolver,
		log:      logger.WithModule("permissions.visibility"),
	}, nil
}

const visibilityQueryHead = `
WITH RECURSIVE perm_chain (post_id, node_id, inherits, parent_id, node_author) AS (
	SELECT p.id, p.id, p.inherit_view, p.parent_post_id, p.author_id
	FROM posts p
	UNION ALL
	SELECT c.post_id, q.id, q.inherit_view, q.parent_post_id, q.author_id
	FROM perm_chain c
	INNER JOIN posts q ON q.id = c.parent_id
	WHERE c.inherits
)
SELECT DISTINCT p.*
FROM posts p
INNER JOIN perm_chain c ON c.post_id = p.id
WHERE (
	(NOT c.inherits AND EXISTS (
		SELECT 1 FROM grants g
		WHERE g.post_id = c.node_id
		  AND g.kind = ?
		  AND (
			(g.permitted_kind = ? AND g.permitted_id = ?)
			OR (g.permitted_kind = ? AND g.permitted_id IN ?)
		  )
	))
	OR (c.inherits AND c.parent_id IS NULL AND c.node_author = ?)
)`

// ListVisible returns the page of posts the user may view, newest first.
// limit and page are 1-based and must be positive.
func (v *Visibility) ListVisible(ctx context.Context, userID string, limit, page int, filters Filters) (*Page, error) {
	if limit <= 0 {
		return nil, apperrors.NewBadRequest("limit must be greater than 0")
	}
	if page <= 0 {
		return nil, apperrors.NewBadRequest("page must be greater than 0")
	}

	groupIDs, err := v.resolver.GroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(groupIDs) == 0 {
		// gorm expands an empty slice to (NULL), which matches nothing;
		// a sentinel keeps the SQL shape identical either way.
		groupIDs = []string{""}
	}

	var sb strings.Builder
	sb.WriteString(visibilityQueryHead)
	args := []any{models.GrantView, models.MemberKindUser, userID, models.MemberKindGroup, groupIDs, userID}

	if filters.AuthorID != "" {
		sb.WriteString(" AND p.author_id = ?")
		args = append(args, filters.AuthorID)
	}
	if filters.ParentPostID != "" {
		sb.WriteString(" AND p.parent_post_id = ?")
		args = append(args, filters.ParentPostID)
	}
	if filters.Category != "" {
		sb.WriteString(" AND p.category = ?")
		args = append(args, filters.Category)
	}
	if filters.Location != "" {
		sb.WriteString(" AND p.location LIKE ?")
		args = append(args, "%"+filters.Location+"%")
	}
	if filters.Hashtag != "" {
		// Hashtags are stored as a JSON array; match the quoted element.
		sb.WriteString(` AND CAST(p.hashtags AS TEXT) LIKE ?`)
		args = append(args, `%"`+filters.Hashtag+`"%`)
	}

	// limit+1 probes for a next page without a separate count query.
	sb.WriteString(" ORDER BY p.created_at DESC LIMIT ? OFFSET ?")
	args = append(args, limit+1, (page-1)*limit)

	metrics.VisibilityQueries.Inc()

	var posts []models.Post
	if err := v.db.WithContext(ctx).Raw(sb.String(), args...).Scan(&posts).Error; err != nil {
		return nil, apperrors.WrapInfrastructure(err, "run visibility query")
	}

	hasNext := len(posts) > limit
	if hasNext {
		posts = posts[:limit]
	}

	v.log.Debug("visibility page resolved",
		zap.String("user_id", userID),
		zap.Int("items", len(posts)),
		zap.Bool("has_next_page", hasNext),
	)

	return &Page{Items: posts, HasNextPage: hasNext}, nil
}
