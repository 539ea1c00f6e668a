package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fed_comment_server/internal/testutil"
)

func TestCommunityRepository_Moderators(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewCommunityRepository(db)
	community := testutil.TestCommunity(t, db)
	mod := testutil.TestPerson(t, db)
	other := testutil.TestPerson(t, db)

	require.NoError(t, repo.AddModerator(community.ID, mod.ID))
	require.NoError(t, repo.AddModerator(community.ID, mod.ID))

	ok, err := repo.IsModerator(community.ID, mod.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsModerator(community.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	mods, err := repo.ListModerators(community.ID)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, mod.ApID, mods[0].ApID)

	// 替换：other 成为版主，mod 被撤下
	require.NoError(t, repo.SetModerators(community.ID, []int64{other.ID}))
	mods, err = repo.ListModerators(community.ID)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, other.ApID, mods[0].ApID)

	require.NoError(t, repo.SetModerators(community.ID, nil))
	mods, err = repo.ListModerators(community.ID)
	require.NoError(t, err)
	assert.Empty(t, mods)
}

func TestCommunityRepository_Followers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewCommunityRepository(db)
	community := testutil.TestCommunity(t, db, testutil.WithCommunityDomain("lemmy-beta"))
	remote := testutil.TestPerson(t, db, testutil.WithRemoteDomain("lemmy-gamma"))
	local := testutil.TestPerson(t, db)

	added, err := repo.AddFollower(community.ID, remote.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.AddFollower(community.ID, remote.ID)
	require.NoError(t, err)
	assert.False(t, added)

	hasLocal, err := repo.HasLocalFollower(community.ID)
	require.NoError(t, err)
	assert.False(t, hasLocal)

	_, err = repo.AddFollower(community.ID, local.ID)
	require.NoError(t, err)

	hasLocal, err = repo.HasLocalFollower(community.ID)
	require.NoError(t, err)
	assert.True(t, hasLocal)

	followers, err := repo.ListFollowers(community.ID)
	require.NoError(t, err)
	assert.Len(t, followers, 2)

	require.NoError(t, repo.RemoveFollower(community.ID, local.ID))
	ok, err := repo.IsFollower(community.ID, local.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
