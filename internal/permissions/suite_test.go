package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/plumeapp/plume/internal/cache"
	"github.com/plumeapp/plume/internal/database/testutil"
	"github.com/plumeapp/plume/internal/models"
)

type fixture struct {
	db    *gorm.DB
	store cache.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t)
	return &fixture{db: db, store: cache.NewDatabaseStore(db)}
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) group(t *testing.T, name string) *models.Group {
	t.Helper()
	g := &models.Group{Name: name}
	require.NoError(t, f.db.Create(g).Error)
	return g
}

// memberOf records a membership edge: member belongs to group.
func (f *fixture) memberOf(t *testing.T, memberID string, kind models.MemberKind, groupID string) {
	t.Helper()
	m := &models.GroupMembership{MemberID: memberID, MemberKind: kind, GroupID: groupID}
	require.NoError(t, f.db.Create(m).Error)
}

func (f *fixture) post(t *testing.T, authorID string, parentID *string, mutate ...func(*models.Post)) *models.Post {
	t.Helper()
	p := &models.Post{
		AuthorID:     authorID,
		Content:      "content",
		ParentPostID: parentID,
		InheritView:  true,
		InheritEdit:  true,
	}
	for _, fn := range mutate {
		fn(p)
	}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) grant(t *testing.T, postID, permittedID string, permittedKind models.MemberKind, kind models.GrantKind) {
	t.Helper()
	g := &models.Grant{
		PermittedID:   permittedID,
		PermittedKind: permittedKind,
		PostID:        postID,
		Kind:          kind,
	}
	require.NoError(t, f.db.Create(g).Error)
}

func (f *fixture) resolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(f.db, f.store)
	require.NoError(t, err)
	return r
}

func (f *fixture) evaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(f.db, f.store, f.resolver(t))
	require.NoError(t, err)
	return e
}

func (f *fixture) invalidator(t *testing.T) *Invalidator {
	t.Helper()
	i, err := NewInvalidator(f.db, f.store)
	require.NoError(t, err)
	return i
}

func (f *fixture) visibility(t *testing.T) *Visibility {
	t.Helper()
	v, err := NewVisibility(f.db, f.resolver(t))
	require.NoError(t, err)
	return v
}

// noInheritView marks a post as carrying its own view grants.
func noInheritView(p *models.Post) { p.InheritView = false }

// noInheritEdit marks a post as carrying its own edit grants.
func noInheritEdit(p *models.Post) { p.InheritEdit = false }
