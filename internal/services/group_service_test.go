package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumeapp/plume/internal/models"
)

func TestGroupServiceCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.mustCreateUser(t, "alice")
	bob := env.mustCreateUser(t, "bob")
	inner := env.mustCreateGroup(t, []string{bob.ID}, nil)

	group, err := env.groups.Create(ctx, CreateGroupInput{
		UserIDs:  []string{alice.ID},
		GroupIDs: []string{inner.ID},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(group.Name, "group-"))

	loaded, err := env.groups.GetByID(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Members, 2)

	kinds := map[models.MemberKind]string{}
	for _, m := range loaded.Members {
		kinds[m.MemberKind] = m.MemberID
	}
	assert.Equal(t, alice.ID, kinds[models.MemberKindUser])
	assert.Equal(t, inner.ID, kinds[models.MemberKindGroup])
}

func TestGroupNameRetryDisambiguates(t *testing.T) {
	first := newGroupName(1)
	assert.True(t, strings.HasPrefix(first, "group-"))

	// Two retries in the same millisecond still yield distinct names.
	second := newGroupName(2)
	third := newGroupName(2)
	assert.True(t, strings.HasPrefix(second, "group-"))
	assert.NotEqual(t, second, third)
}

func TestGroupServiceCreateRejectsEmptyMemberList(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.groups.Create(context.Background(), CreateGroupInput{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyMemberList))
}

func TestGroupServiceCreateRejectsUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.mustCreateUser(t, "alice")

	_, err := env.groups.Create(ctx, CreateGroupInput{
		UserIDs: []string{alice.ID, "no-such-user"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUserNotFound))

	// Nothing may be persisted when validation fails.
	var count int64
	require.NoError(t, env.db.Model(&models.Group{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, env.db.Model(&models.GroupMembership{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGroupServiceCreateRejectsUnknownGroup(t *testing.T) {
	env := newTestEnv(t)

	alice := env.mustCreateUser(t, "alice")

	_, err := env.groups.Create(context.Background(), CreateGroupInput{
		UserIDs:  []string{alice.ID},
		GroupIDs: []string{"no-such-group"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGroupNotFound))
}

func TestGroupServiceAddMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.mustCreateUser(t, "alice")
	bob := env.mustCreateUser(t, "bob")
	group := env.mustCreateGroup(t, []string{alice.ID}, nil)

	_, err := env.groups.AddMember(ctx, group.ID, bob.ID, models.MemberKindUser)
	require.NoError(t, err)

	loaded, err := env.groups.GetByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Members, 2)

	_, err = env.groups.AddMember(ctx, group.ID, "ghost", models.MemberKindUser)
	require.Error(t, err)

	_, err = env.groups.AddMember(ctx, "ghost", bob.ID, models.MemberKindUser)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGroupNotFound))
}

func TestGroupServiceDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.mustCreateUser(t, "alice")
	child := env.mustCreateGroup(t, []string{alice.ID}, nil)
	parent := env.mustCreateGroup(t, nil, []string{child.ID})

	require.NoError(t, env.groups.Delete(ctx, child.ID))

	_, err := env.groups.GetByID(ctx, child.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGroupNotFound))

	// The parent survives but its edge to the deleted group is gone.
	loaded, err := env.groups.GetByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Members)

	var count int64
	require.NoError(t, env.db.Model(&models.GroupMembership{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGroupServiceDeleteInvalidatesMemberClosures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.mustCreateUser(t, "alice")
	group := env.mustCreateGroup(t, []string{alice.ID}, nil)

	resolver, err := newResolverForTest(env)
	require.NoError(t, err)

	closure, err := resolver.GroupsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Contains(t, closure, group.ID)

	require.NoError(t, env.groups.Delete(ctx, group.ID))

	closure, err = resolver.GroupsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotContains(t, closure, group.ID)
}
