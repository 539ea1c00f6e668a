package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/testutil"
)

func TestFlagApplies(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	tests := []struct {
		name    string
		stateAt *time.Time
		next    bool
		at      time.Time
		want    bool
	}{
		{name: "no previous state", stateAt: nil, next: false, at: t0, want: true},
		{name: "newer set", stateAt: &t0, next: true, at: t1, want: true},
		{name: "newer clear", stateAt: &t0, next: false, at: t1, want: true},
		{name: "older set", stateAt: &t1, next: true, at: t0, want: false},
		{name: "older clear", stateAt: &t1, next: false, at: t0, want: false},
		{name: "equal set wins", stateAt: &t0, next: true, at: t0, want: true},
		{name: "equal clear loses", stateAt: &t0, next: false, at: t0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flagApplies(tt.stateAt, tt.next, tt.at))
		})
	}
}

// ingestSetup 本地社区 + 远程用户 bob@lemmy-beta 与 carol@lemmy-gamma 关注
type ingestSetup struct {
	*testEnv
	owner     *model.Person
	bob       *model.Person
	carol     *model.Person
	community *model.Community
	post      *model.Post
}

func newIngestSetup(t *testing.T) *ingestSetup {
	t.Helper()
	env := setupServices(t)

	owner := testutil.TestPerson(t, env.db, testutil.WithName("owner"))
	bob := testutil.TestPerson(t, env.db, testutil.WithName("bob"), testutil.WithRemoteDomain("lemmy-beta"))
	carol := testutil.TestPerson(t, env.db, testutil.WithName("carol"), testutil.WithRemoteDomain("lemmy-gamma"))
	community := testutil.TestCommunity(t, env.db)
	testutil.TestModerator(t, env.db, community.ID, owner.ID)
	testutil.TestFollower(t, env.db, community.ID, bob.ID)
	testutil.TestFollower(t, env.db, community.ID, carol.ID)
	post := testutil.TestPost(t, env.db, community, owner.ID)

	return &ingestSetup{
		testEnv:   env,
		owner:     owner,
		bob:       bob,
		carol:     carol,
		community: community,
		post:      post,
	}
}

func envelope(t *testing.T, kind activity.Kind, id, actor string, object interface{}, published time.Time) *activity.Envelope {
	t.Helper()
	env, err := activity.New(kind, id, actor, object, "", published)
	require.NoError(t, err)
	return env
}

func (s *ingestSetup) note(id, content string, published time.Time) *activity.Note {
	return &activity.Note{
		Type:         activity.TypeNote,
		ID:           id,
		AttributedTo: s.bob.ApID,
		Content:      content,
		InReplyTo:    s.post.ApID,
		Audience:     s.community.ApID,
		Published:    published,
	}
}

func TestIngest_CreateAnnouncesToOtherFollowers(t *testing.T) {
	s := newIngestSetup(t)
	ctx := context.Background()
	now := time.Now()

	note := s.note("http://lemmy-beta/comment/1", "hello @owner@lemmy-alpha", now)
	create := envelope(t, activity.KindCreate, "http://lemmy-beta/activities/create/1", s.bob.ApID, note, now)
	require.NoError(t, s.Ingest.Apply(ctx, create))

	comment, err := s.repos.Comments.GetByApID(note.ID)
	require.NoError(t, err)
	assert.False(t, comment.Local)
	assert.Equal(t, s.bob.ID, comment.CreatorID)

	agg, err := s.Votes.Score(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Score)

	// 来源实例不再收到转发
	assert.Equal(t, []string{"http://lemmy-gamma/inbox"}, s.queue.inboxes())
	envs := s.queue.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, activity.KindAnnounce, envs[0].Type)
	assert.Equal(t, s.community.ApID, envs[0].Actor)

	unread, err := s.Notifications.UnreadCount(ctx, s.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread.Mentions)
	assert.Equal(t, int64(1), unread.Replies)

	err = s.Ingest.Apply(ctx, create)
	assert.ErrorIs(t, err, ErrDuplicateActivity)

	again := envelope(t, activity.KindCreate, "http://lemmy-beta/activities/create/2", s.bob.ApID, note, now)
	err = s.Ingest.Apply(ctx, again)
	assert.ErrorIs(t, err, ErrDuplicateActivity)
	assert.Len(t, s.queue.inboxes(), 1)
}

func TestIngest_RejectsUndatedActivity(t *testing.T) {
	s := newIngestSetup(t)
	ctx := context.Background()
	now := time.Now()

	note := s.note("http://lemmy-beta/comment/undated", "score me", now)
	require.NoError(t, s.Ingest.Apply(ctx, envelope(t, activity.KindCreate, "http://lemmy-beta/activities/create/undated", s.bob.ApID, note, now)))
	comment, err := s.repos.Comments.GetByApID(note.ID)
	require.NoError(t, err)

	like := envelope(t, activity.KindLike, "http://lemmy-beta/activities/like/undated", s.bob.ApID, note.ID, now)
	undo := envelope(t, activity.KindUndo, "http://lemmy-beta/activities/undo/undated", s.bob.ApID, like, now)
	undo.Published = time.Time{}
	assert.ErrorIs(t, s.Ingest.Apply(ctx, undo), ErrInvalidActivity)

	seen, err := s.repos.Activities.Exists(undo.ID)
	require.NoError(t, err)
	assert.False(t, seen)

	agg, err := s.Votes.Score(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Score)

	// 同一撤销带上时间后生效
	undo.Published = activity.Timestamp(now.Add(time.Second))
	require.NoError(t, s.Ingest.Apply(ctx, undo))
	agg, err = s.Votes.Score(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), agg.Score)
}

func TestIngest_Rejections(t *testing.T) {
	s := newIngestSetup(t)
	ctx := context.Background()
	now := time.Now()

	t.Run("activity id not hosted by actor", func(t *testing.T) {
		note := s.note("http://lemmy-beta/comment/x", "x", now)
		env := envelope(t, activity.KindCreate, "http://lemmy-gamma/activities/create/x", s.bob.ApID, note, now)
		assert.ErrorIs(t, s.Ingest.Apply(ctx, env), ErrInvalidActivity)
	})

	t.Run("local actor", func(t *testing.T) {
		env := envelope(t, activity.KindLike, "http://lemmy-alpha/activities/like/x", s.owner.ApID, "http://lemmy-alpha/comment/x", now)
		assert.ErrorIs(t, s.Ingest.Apply(ctx, env), ErrDuplicateActivity)
	})

	t.Run("note attributed to someone else", func(t *testing.T) {
		note := s.note("http://lemmy-gamma/comment/y", "y", now)
		note.AttributedTo = s.carol.ApID
		env := envelope(t, activity.KindCreate, "http://lemmy-beta/activities/create/y", s.bob.ApID, note, now)
		assert.ErrorIs(t, s.Ingest.Apply(ctx, env), ErrUnauthorized)
	})

	t.Run("announced by another community", func(t *testing.T) {
		note := s.note("http://lemmy-beta/comment/z", "z", now)
		inner := envelope(t, activity.KindCreate, "http://lemmy-beta/activities/create/z", s.bob.ApID, note, now)
		env := envelope(t, activity.KindAnnounce, "http://lemmy-gamma/activities/announce/z", "http://lemmy-gamma/c/other", inner, now)
		assert.ErrorIs(t, s.Ingest.Apply(ctx, env), ErrUnauthorized)
	})

	t.Run("vote on unknown comment", func(t *testing.T) {
		env := envelope(t, activity.KindLike, "http://lemmy-beta/activities/like/u", s.bob.ApID, "http://lemmy-beta/comment/unknown", now)
		assert.ErrorIs(t, s.Ingest.Apply(ctx, env), ErrUnresolvableTarget)
	})

	t.Run("unresolvable parent", func(t *testing.T) {
		note := s.note("http://lemmy-beta/comment/orphan", "orphan", now)
		note.InReplyTo = "http://lemmy-beta/comment/missing"
		env := envelope(t, activity.KindCreate, "http://lemmy-beta/activities/create/orphan", s.bob.ApID, note, now)
		assert.ErrorIs(t, s.Ingest.Apply(ctx, env), ErrMissingParent)
	})

	t.Run("follow of remote community", func(t *testing.T) {
		remote := testutil.TestCommunity(t, s.db, testutil.WithCommunityDomain("lemmy-gamma"))
		env := envelope(t, activity.KindFollow, "http://lemmy-beta/activities/follow/r", s.bob.ApID, remote.ApID, now)
		assert.ErrorIs(t, s.Ingest.Apply(ctx, env), ErrOutOfScope)
	})

	assert.Empty(t, s.queue.inboxes())
}

func TestIngest_UpdateLastWriterWins(t *testing.T) {
	s := newIngestSetup(t)
	ctx := context.Background()
	t0 := activity.Timestamp(time.Now())

	note := s.note("http://lemmy-beta/comment/u", "v1", t0)
	require.NoError(t, s.Ingest.Apply(ctx, envelope(t, activity.KindCreate, "http://lemmy-beta/activities/create/u", s.bob.ApID, note, t0)))

	update := func(id, content string, revision time.Time) error {
		n := s.note(note.ID, content, t0)
		n.Updated = &revision
		return s.Ingest.Apply(ctx, envelope(t, activity.KindUpdate, id, s.bob.ApID, n, revision))
	}

	t2 := t0.Add(2 * time.Second)
	require.NoError(t, update("http://lemmy-beta/activities/update/2", "v2", t2))
	// 较旧的版本被接受但不生效
	require.NoError(t, update("http://lemmy-beta/activities/update/1", "stale", t0.Add(time.Second)))
	// 同一时间取较大内容
	require.NoError(t, update("http://lemmy-beta/activities/update/3", "v1", t2))
	require.NoError(t, update("http://lemmy-beta/activities/update/4", "v3", t2))

	comment, err := s.repos.Comments.GetByApID(note.ID)
	require.NoError(t, err)
	assert.Equal(t, "v3", comment.Content)
	assert.True(t, comment.Updated.Equal(t2))
}

func TestIngest_DeleteAndUndelete(t *testing.T) {
	s := newIngestSetup(t)
	ctx := context.Background()
	t0 := activity.Timestamp(time.Now())

	note := s.note("http://lemmy-beta/comment/d", "bye", t0)
	require.NoError(t, s.Ingest.Apply(ctx, envelope(t, activity.KindCreate, "http://lemmy-beta/activities/create/d", s.bob.ApID, note, t0)))

	del := envelope(t, activity.KindDelete, "http://lemmy-beta/activities/delete/d", s.bob.ApID, note.ID, t0.Add(2*time.Second))
	undo := envelope(t, activity.KindUndo, "http://lemmy-beta/activities/undo/d", s.bob.ApID, del, t0.Add(time.Second))

	// Undo 先到且较旧：Delete 仍然生效
	require.NoError(t, s.Ingest.Apply(ctx, undo))
	require.NoError(t, s.Ingest.Apply(ctx, del))

	comment, err := s.repos.Comments.GetByApID(note.ID)
	require.NoError(t, err)
	assert.True(t, comment.Deleted)

	byOther := envelope(t, activity.KindDelete, "http://lemmy-gamma/activities/delete/d", s.carol.ApID, note.ID, t0.Add(3*time.Second))
	assert.ErrorIs(t, s.Ingest.Apply(ctx, byOther), ErrUnauthorized)
}

func TestIngest_RemoveRequiresModerator(t *testing.T) {
	s := newIngestSetup(t)
	ctx := context.Background()
	t0 := activity.Timestamp(time.Now())

	note := s.note("http://lemmy-beta/comment/r", "spam", t0)
	require.NoError(t, s.Ingest.Apply(ctx, envelope(t, activity.KindCreate, "http://lemmy-beta/activities/create/r", s.bob.ApID, note, t0)))

	remove := envelope(t, activity.KindRemove, "http://lemmy-gamma/activities/remove/r", s.carol.ApID, note.ID, t0.Add(time.Second))
	assert.ErrorIs(t, s.Ingest.Apply(ctx, remove), ErrUnauthorized)

	testutil.TestModerator(t, s.db, s.community.ID, s.carol.ID)
	remove = envelope(t, activity.KindRemove, "http://lemmy-gamma/activities/remove/r2", s.carol.ApID, note.ID, t0.Add(time.Second))
	require.NoError(t, s.Ingest.Apply(ctx, remove))

	comment, err := s.repos.Comments.GetByApID(note.ID)
	require.NoError(t, err)
	assert.True(t, comment.Removed)
	assert.False(t, comment.Deleted)
}

func TestIngest_VotesAndReport(t *testing.T) {
	s := newIngestSetup(t)
	ctx := context.Background()
	t0 := activity.Timestamp(time.Now())

	note := s.note("http://lemmy-beta/comment/v", "vote me", t0)
	require.NoError(t, s.Ingest.Apply(ctx, envelope(t, activity.KindCreate, "http://lemmy-beta/activities/create/v", s.bob.ApID, note, t0)))
	comment, err := s.repos.Comments.GetByApID(note.ID)
	require.NoError(t, err)

	like := envelope(t, activity.KindLike, "http://lemmy-gamma/activities/like/1", s.carol.ApID, note.ID, t0.Add(2*time.Second))
	dislike := envelope(t, activity.KindDislike, "http://lemmy-gamma/activities/dislike/1", s.carol.ApID, note.ID, t0.Add(time.Second))
	require.NoError(t, s.Ingest.Apply(ctx, like))
	require.NoError(t, s.Ingest.Apply(ctx, dislike))

	agg, err := s.Votes.Score(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), agg.Score)

	flag := envelope(t, activity.KindReport, "http://lemmy-gamma/activities/flag/1", s.carol.ApID, note.ID, t0)
	flag.Summary = "rude"
	require.NoError(t, s.Ingest.Apply(ctx, flag))

	reports, total, err := s.Reports.List(ctx, s.owner.ID, s.community.ID, &dto.ReportListRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, reports, 1)
	assert.Equal(t, "rude", reports[0].Reason)
	assert.Equal(t, "vote me", reports[0].OriginalCommentText)
}

func TestIngest_FollowAndUnfollow(t *testing.T) {
	s := newIngestSetup(t)
	ctx := context.Background()
	now := time.Now()

	dave := testutil.TestPerson(t, s.db, testutil.WithName("dave"), testutil.WithRemoteDomain("lemmy-delta"))
	follow := envelope(t, activity.KindFollow, "http://lemmy-delta/activities/follow/1", dave.ApID, s.community.ApID, now)
	require.NoError(t, s.Ingest.Apply(ctx, follow))

	ok, err := s.repos.Communities.IsFollower(s.community.ID, dave.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	undo := envelope(t, activity.KindUndo, "http://lemmy-delta/activities/undo/1", dave.ApID, follow, now)
	require.NoError(t, s.Ingest.Apply(ctx, undo))

	ok, err = s.repos.Communities.IsFollower(s.community.ID, dave.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Empty(t, s.queue.inboxes())
}
