package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/plumeapp/plume/internal/cache"
	"github.com/plumeapp/plume/internal/database/testutil"
	"github.com/plumeapp/plume/internal/models"
	"github.com/plumeapp/plume/internal/permissions"
)

type testEnv struct {
	db          *gorm.DB
	store       cache.Store
	users       *UserService
	groups      *GroupService
	posts       *PostService
	perms       *PermissionService
	evaluator   *permissions.Evaluator
	invalidator *permissions.Invalidator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	store := cache.NewDatabaseStore(db)

	resolver, err := permissions.NewResolver(db, store)
	require.NoError(t, err)
	evaluator, err := permissions.NewEvaluator(db, store, resolver)
	require.NoError(t, err)
	invalidator, err := permissions.NewInvalidator(db, store)
	require.NoError(t, err)
	visibility, err := permissions.NewVisibility(db, resolver)
	require.NoError(t, err)

	users, err := NewUserService(db)
	require.NoError(t, err)
	groups, err := NewGroupService(db, invalidator)
	require.NoError(t, err)
	posts, err := NewPostService(db, visibility)
	require.NoError(t, err)
	perms, err := NewPermissionService(db, evaluator, invalidator, users, groups)
	require.NoError(t, err)

	return &testEnv{
		db:          db,
		store:       store,
		users:       users,
		groups:      groups,
		posts:       posts,
		perms:       perms,
		evaluator:   evaluator,
		invalidator: invalidator,
	}
}

func (e *testEnv) mustCreateUser(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := e.users.Create(context.Background(), CreateUserInput{Username: username})
	require.NoError(t, err)
	return user
}

func (e *testEnv) mustCreateGroup(t *testing.T, userIDs, groupIDs []string) *models.Group {
	t.Helper()
	group, err := e.groups.Create(context.Background(), CreateGroupInput{
		UserIDs:  userIDs,
		GroupIDs: groupIDs,
	})
	require.NoError(t, err)
	return group
}

func (e *testEnv) mustCreatePost(t *testing.T, authorID string, parentID *string) *models.Post {
	t.Helper()
	post, err := e.posts.Create(context.Background(), CreatePostInput{
		AuthorID:     authorID,
		Content:      "post by " + authorID,
		ParentPostID: parentID,
	})
	require.NoError(t, err)
	return post
}

// newResolverForTest builds a closure resolver over the env's db and cache
// so tests can observe the cached group memberships directly.
func newResolverForTest(e *testEnv) (*permissions.Resolver, error) {
	return permissions.NewResolver(e.db, e.store)
}

// grantOnly builds a non-inheriting spec with the given principals.
func grantOnly(userIDs, groupIDs []string) GrantSpec {
	return GrantSpec{Inherit: false, UserIDs: userIDs, GroupIDs: groupIDs}
}

func inherit() GrantSpec {
	return GrantSpec{Inherit: true}
}
