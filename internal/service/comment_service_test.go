package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/testutil"
)

// localSetup 本地社区、帖子，以及一个来自 lemmy-beta 的关注者
func localSetup(t *testing.T, env *testEnv) (*model.Community, *model.Post, *model.Person) {
	t.Helper()

	owner := testutil.TestPerson(t, env.db, testutil.WithName("owner"))
	community := testutil.TestCommunity(t, env.db)
	testutil.TestModerator(t, env.db, community.ID, owner.ID)
	follower := testutil.TestPerson(t, env.db, testutil.WithRemoteDomain("lemmy-beta"))
	testutil.TestFollower(t, env.db, community.ID, follower.ID)
	post := testutil.TestPost(t, env.db, community, owner.ID)
	return community, post, owner
}

func decodeNote(t *testing.T, env *activity.Envelope) *activity.Note {
	t.Helper()
	var note activity.Note
	require.NoError(t, json.Unmarshal(env.Object, &note))
	return &note
}

func TestCommentService_Create_Success(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	_, post, owner := localSetup(t, env)
	author := testutil.TestPerson(t, env.db, testutil.WithName("commenter"))

	item, err := env.Comments.Create(ctx, author.ID, &dto.CreateCommentRequest{
		PostID:  post.ID,
		Content: "This is a <script>alert(1)</script><b>test</b> comment",
	})
	require.NoError(t, err)
	assert.NotZero(t, item.ID)
	assert.Equal(t, "This is a test comment", item.Content)
	assert.True(t, item.Local)
	assert.Equal(t, int64(1), item.Score)
	require.NotNil(t, item.Creator)
	assert.Equal(t, "commenter", item.Creator.Name)
	assert.Contains(t, item.ApID, "http://lemmy-alpha/comment/")

	assert.Equal(t, []string{"http://lemmy-beta/inbox"}, env.queue.inboxes())
	envs := env.queue.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, activity.KindCreate, envs[0].Type)
	note := decodeNote(t, envs[0])
	assert.Equal(t, item.ApID, note.ID)
	assert.Equal(t, author.ApID, note.AttributedTo)
	assert.Equal(t, post.ApID, note.InReplyTo)

	// 一级评论通知帖子作者
	unread, err := env.Notifications.UnreadCount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread.Replies)
}

func TestCommentService_Create_Reply(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	_, post, owner := localSetup(t, env)
	author := testutil.TestPerson(t, env.db)

	parent, err := env.Comments.Create(ctx, owner.ID, &dto.CreateCommentRequest{PostID: post.ID, Content: "parent"})
	require.NoError(t, err)
	env.queue.reset()

	reply, err := env.Comments.Create(ctx, author.ID, &dto.CreateCommentRequest{
		PostID:   post.ID,
		Content:  "reply",
		ParentID: &parent.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)

	envs := env.queue.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, parent.ApID, decodeNote(t, envs[0]).InReplyTo)

	replies, total, err := env.Notifications.ListReplies(ctx, owner.ID, &dto.NotificationListRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, reply.ApID, replies[0].Comment.ApID)
}

func TestCommentService_Create_ParentNotInPost(t *testing.T) {
	env := setupServices(t)
	community, post, owner := localSetup(t, env)
	other := testutil.TestPost(t, env.db, community, owner.ID)
	parent := testutil.TestComment(t, env.db, other, owner, "elsewhere")

	_, err := env.Comments.Create(context.Background(), owner.ID, &dto.CreateCommentRequest{
		PostID:   post.ID,
		Content:  "reply",
		ParentID: &parent.ID,
	})
	assert.ErrorIs(t, err, ErrParentNotInPost)
}

func TestCommentService_Create_PostNotFound(t *testing.T) {
	env := setupServices(t)
	author := testutil.TestPerson(t, env.db)

	_, err := env.Comments.Create(context.Background(), author.ID, &dto.CreateCommentRequest{PostID: 99999, Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommentService_Create_EmptyContent(t *testing.T) {
	env := setupServices(t)
	_, post, owner := localSetup(t, env)

	_, err := env.Comments.Create(context.Background(), owner.ID, &dto.CreateCommentRequest{PostID: post.ID, Content: "<b></b>"})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestCommentService_Create_RemoteCommunityWithMention(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	community := testutil.TestCommunity(t, env.db, testutil.WithCommunityDomain("lemmy-beta"))
	remoteOwner := testutil.TestPerson(t, env.db, testutil.WithRemoteDomain("lemmy-beta"))
	post := testutil.TestPost(t, env.db, community, remoteOwner.ID)
	author := testutil.TestPerson(t, env.db)

	env.fetcher.accounts["carol@lemmy-gamma"] = "http://lemmy-gamma/u/carol"
	env.fetcher.add("http://lemmy-gamma/u/carol", &activity.PersonObject{
		Type:              activity.TypePerson,
		ID:                "http://lemmy-gamma/u/carol",
		PreferredUsername: "carol",
		Inbox:             "http://lemmy-gamma/inbox",
	})

	_, err := env.Comments.Create(ctx, author.ID, &dto.CreateCommentRequest{
		PostID:  post.ID,
		Content: "hi @carol@lemmy-gamma and @ghost@lemmy-gamma",
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"http://lemmy-beta/inbox", "http://lemmy-gamma/inbox"}, env.queue.inboxes())
	note := decodeNote(t, env.queue.envelopes(t)[0])
	require.Len(t, note.Tag, 1)
	assert.Equal(t, activity.TypeMention, note.Tag[0].Type)
	assert.Equal(t, "http://lemmy-gamma/u/carol", note.Tag[0].Href)
	assert.Equal(t, "@carol@lemmy-gamma", note.Tag[0].Name)
}

func TestCommentService_Edit(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	_, post, owner := localSetup(t, env)
	stranger := testutil.TestPerson(t, env.db)

	item, err := env.Comments.Create(ctx, owner.ID, &dto.CreateCommentRequest{PostID: post.ID, Content: "before"})
	require.NoError(t, err)
	env.queue.reset()

	_, err = env.Comments.Edit(ctx, stranger.ID, item.ID, &dto.EditCommentRequest{Content: "hijack"})
	assert.ErrorIs(t, err, ErrCommentPermission)

	edited, err := env.Comments.Edit(ctx, owner.ID, item.ID, &dto.EditCommentRequest{Content: "after"})
	require.NoError(t, err)
	assert.Equal(t, "after", edited.Content)
	assert.NotEmpty(t, edited.Updated)

	envs := env.queue.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, activity.KindUpdate, envs[0].Type)
	note := decodeNote(t, envs[0])
	assert.Equal(t, "after", note.Content)
	require.NotNil(t, note.Updated)
	assert.True(t, note.Updated.After(note.Published))
}

func TestCommentService_Edit_Deleted(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	_, post, owner := localSetup(t, env)

	item, err := env.Comments.Create(ctx, owner.ID, &dto.CreateCommentRequest{PostID: post.ID, Content: "gone soon"})
	require.NoError(t, err)
	_, err = env.Comments.Delete(ctx, owner.ID, item.ID)
	require.NoError(t, err)

	_, err = env.Comments.Edit(ctx, owner.ID, item.ID, &dto.EditCommentRequest{Content: "too late"})
	assert.ErrorIs(t, err, ErrCommentDeleted)
}

func TestCommentService_DeleteUndelete(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	_, post, owner := localSetup(t, env)

	item, err := env.Comments.Create(ctx, owner.ID, &dto.CreateCommentRequest{PostID: post.ID, Content: "hello"})
	require.NoError(t, err)
	env.queue.reset()

	deleted, err := env.Comments.Delete(ctx, owner.ID, item.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, model.DeletedContent, deleted.Content)
	assert.Equal(t, item.ApID, deleted.ApID)

	restored, err := env.Comments.Undelete(ctx, owner.ID, item.ID)
	require.NoError(t, err)
	assert.False(t, restored.Deleted)
	assert.Equal(t, "hello", restored.Content)

	envs := env.queue.envelopes(t)
	require.Len(t, envs, 2)
	assert.Equal(t, activity.KindDelete, envs[0].Type)
	assert.Equal(t, activity.KindUndo, envs[1].Type)
	inner, err := envs[1].Inner()
	require.NoError(t, err)
	assert.Equal(t, activity.KindDelete, inner.Type)
	assert.True(t, envs[1].Published.After(envs[0].Published))
}

func TestCommentService_Vote(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	_, post, owner := localSetup(t, env)
	voter := testutil.TestPerson(t, env.db)

	item, err := env.Comments.Create(ctx, owner.ID, &dto.CreateCommentRequest{PostID: post.ID, Content: "vote"})
	require.NoError(t, err)
	env.queue.reset()

	resp, err := env.Comments.Vote(ctx, voter.ID, item.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Score)

	resp, err = env.Comments.Vote(ctx, voter.ID, item.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Score)
	assert.Equal(t, int64(1), resp.Downvotes)

	resp, err = env.Comments.Vote(ctx, voter.ID, item.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Score)

	envs := env.queue.envelopes(t)
	require.Len(t, envs, 3)
	assert.Equal(t, activity.KindLike, envs[0].Type)
	assert.Equal(t, activity.KindDislike, envs[1].Type)
	assert.Equal(t, activity.KindUndo, envs[2].Type)
}

func TestCommentService_ListByPost(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	_, post, owner := localSetup(t, env)

	first, err := env.Comments.Create(ctx, owner.ID, &dto.CreateCommentRequest{PostID: post.ID, Content: "one"})
	require.NoError(t, err)
	_, err = env.Comments.Create(ctx, owner.ID, &dto.CreateCommentRequest{PostID: post.ID, Content: "two"})
	require.NoError(t, err)
	_, err = env.Comments.Delete(ctx, owner.ID, first.ID)
	require.NoError(t, err)

	items, err := env.Comments.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.DeletedContent, items[0].Content)
	assert.Equal(t, "two", items[1].Content)

	_, err = env.Comments.ListByPost(ctx, 99999)
	assert.ErrorIs(t, err, ErrNotFound)
}
