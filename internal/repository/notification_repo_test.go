package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/testutil"
)

func TestNotificationRepository_MentionsAndReplies(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewNotificationRepository(db)
	alice := testutil.TestPerson(t, db)
	bob := testutil.TestPerson(t, db, testutil.WithRemoteDomain("lemmy-beta"))
	community := testutil.TestCommunity(t, db)
	post := testutil.TestPost(t, db, community, alice.ID)
	comment := testutil.TestComment(t, db, post, bob, "hi @alice@lemmy-alpha")

	created, err := repo.CreateMention(&model.PersonMention{RecipientID: alice.ID, CommentID: comment.ID})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateMention(&model.PersonMention{RecipientID: alice.ID, CommentID: comment.ID})
	require.NoError(t, err)
	assert.False(t, created)

	created, err = repo.CreateReply(&model.CommentReply{RecipientID: alice.ID, CommentID: comment.ID})
	require.NoError(t, err)
	assert.True(t, created)

	mentions, total, err := repo.ListMentions(alice.ID, true, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mentions, 1)
	require.NotNil(t, mentions[0].Comment)
	require.NotNil(t, mentions[0].Comment.Creator)
	assert.Equal(t, bob.ApID, mentions[0].Comment.Creator.ApID)

	m, r, err := repo.CountUnread(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m)
	assert.Equal(t, int64(1), r)

	ok, err := repo.MarkMentionRead(mentions[0].ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok, "only the recipient may mark read")

	ok, err = repo.MarkMentionRead(mentions[0].ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	replies, _, err := repo.ListReplies(alice.ID, false, 1, 20)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	_, err = repo.MarkReplyRead(replies[0].ID, alice.ID)
	require.NoError(t, err)

	m, r, err = repo.CountUnread(alice.ID)
	require.NoError(t, err)
	assert.Zero(t, m)
	assert.Zero(t, r)

	_, err = repo.CreateReply(&model.CommentReply{RecipientID: alice.ID, CommentID: testutil.TestComment(t, db, post, bob, "again").ID})
	require.NoError(t, err)
	require.NoError(t, repo.MarkAllRead(alice.ID))

	m, r, err = repo.CountUnread(alice.ID)
	require.NoError(t, err)
	assert.Zero(t, m+r)
}
