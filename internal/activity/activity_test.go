package activity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice   = "http://alpha.test/u/alice"
	comment = "http://alpha.test/comment/1"
)

func envelope(t *testing.T, kind Kind, id, actor string, object interface{}) *Envelope {
	t.Helper()
	env, err := New(kind, id, actor, object, "", time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC))
	require.NoError(t, err)
	return env
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name: "like",
			body: `{"id":"http://alpha.test/activities/like/1","type":"Like","actor":"http://alpha.test/u/alice","object":"http://beta.test/comment/2","published":"2024-05-01T10:00:00.123Z"}`,
		},
		{
			name:    "missing published",
			body:    `{"id":"http://alpha.test/activities/like/1","type":"Like","actor":"http://alpha.test/u/alice","object":"http://beta.test/comment/2"}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "not json",
			body:    `{"id":`,
			wantErr: ErrMalformed,
		},
		{
			name:    "missing object",
			body:    `{"id":"http://alpha.test/activities/like/1","type":"Like","actor":"http://alpha.test/u/alice"}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "unknown type",
			body:    `{"id":"http://alpha.test/a/1","type":"Move","actor":"http://alpha.test/u/alice","object":"x"}`,
			wantErr: ErrUnsupported,
		},
		{
			name:    "normalized kind is not a wire kind",
			body:    `{"id":"http://alpha.test/a/1","type":"Vote","actor":"http://alpha.test/u/alice","object":"x"}`,
			wantErr: ErrUnsupported,
		},
		{
			name:    "relative ids",
			body:    `{"id":"/a/1","type":"Like","actor":"/u/alice","object":"x"}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "id on a different host than actor",
			body:    `{"id":"http://evil.test/a/1","type":"Like","actor":"http://alpha.test/u/alice","object":"x"}`,
			wantErr: ErrMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, KindLike, env.Type)
		})
	}
}

func TestNew_TruncatesToMilliseconds(t *testing.T) {
	local := time.FixedZone("UTC+8", 8*3600)
	env, err := New(KindDelete, "http://alpha.test/a/1", alice, comment, "", time.Date(2024, 5, 1, 18, 0, 0, 999999, local))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), env.Published)
	assert.Equal(t, Context, env.Context)

	data, err := env.Marshal()
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, env.Published.Equal(decoded.Published))
}

func TestNormalize(t *testing.T) {
	like := envelope(t, KindLike, "http://alpha.test/a/like", alice, comment)
	dislike := envelope(t, KindDislike, "http://alpha.test/a/dislike", alice, comment)
	del := envelope(t, KindDelete, "http://alpha.test/a/delete", alice, comment)
	remove := envelope(t, KindRemove, "http://alpha.test/a/remove", alice, comment)
	follow := envelope(t, KindFollow, "http://alpha.test/a/follow", alice, "http://beta.test/c/main")

	tests := []struct {
		name  string
		env   *Envelope
		kind  Kind
		score int
	}{
		{"like", like, KindVote, 1},
		{"dislike", dislike, KindVote, -1},
		{"delete", del, KindDelete, 0},
		{"undo like", envelope(t, KindUndo, "http://alpha.test/a/u1", alice, like), KindVote, 0},
		{"undo dislike", envelope(t, KindUndo, "http://alpha.test/a/u2", alice, dislike), KindVote, 0},
		{"undo delete", envelope(t, KindUndo, "http://alpha.test/a/u3", alice, del), KindUndelete, 0},
		{"undo remove", envelope(t, KindUndo, "http://alpha.test/a/u4", alice, remove), KindRestore, 0},
		{"undo follow", envelope(t, KindUndo, "http://alpha.test/a/u5", alice, follow), KindUnfollow, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := Normalize(tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, act.Kind)
			assert.Equal(t, tt.score, act.Score)
			assert.Equal(t, tt.env.ID, act.ID)
			assert.Empty(t, act.Announcer)
		})
	}

	t.Run("undo carries the inner object", func(t *testing.T) {
		act, err := Normalize(envelope(t, KindUndo, "http://alpha.test/a/u6", alice, like))
		require.NoError(t, err)
		id, err := act.ObjectID()
		require.NoError(t, err)
		assert.Equal(t, comment, id)
		assert.Equal(t, comment, act.Key())
	})

	t.Run("undo by another actor", func(t *testing.T) {
		undo := envelope(t, KindUndo, "http://alpha.test/a/u7", "http://alpha.test/u/mallory", like)
		_, err := Normalize(undo)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("undo of create", func(t *testing.T) {
		create := envelope(t, KindCreate, "http://alpha.test/a/create", alice, Note{Type: TypeNote, ID: comment})
		_, err := Normalize(envelope(t, KindUndo, "http://alpha.test/a/u8", alice, create))
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("undo of an activity without published", func(t *testing.T) {
		undated := *like
		undated.Published = time.Time{}
		_, err := Normalize(envelope(t, KindUndo, "http://alpha.test/a/u9", alice, &undated))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestNormalize_Announce(t *testing.T) {
	bob := "http://beta.test/u/bob"
	group := "http://alpha.test/c/main"
	like := envelope(t, KindLike, "http://beta.test/a/like", bob, comment)

	announce := envelope(t, KindAnnounce, "http://alpha.test/a/announce", group, like)
	act, err := Normalize(announce)
	require.NoError(t, err)
	assert.Equal(t, KindVote, act.Kind)
	assert.Equal(t, 1, act.Score)
	assert.Equal(t, bob, act.Actor)
	assert.Equal(t, like.ID, act.ID)
	assert.Equal(t, group, act.Announcer)

	undo := envelope(t, KindUndo, "http://beta.test/a/undo", bob, like)
	act, err = Normalize(envelope(t, KindAnnounce, "http://alpha.test/a/announce2", group, undo))
	require.NoError(t, err)
	assert.Equal(t, KindVote, act.Kind)
	assert.Equal(t, 0, act.Score)
	assert.Equal(t, group, act.Announcer)

	nested := envelope(t, KindAnnounce, "http://alpha.test/a/announce3", group, announce)
	_, err = Normalize(nested)
	assert.ErrorIs(t, err, ErrMalformed)

	bare := envelope(t, KindAnnounce, "http://alpha.test/a/announce4", group, comment)
	_, err = Normalize(bare)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestActivity_Note(t *testing.T) {
	note := Note{
		Type:         TypeNote,
		ID:           comment,
		AttributedTo: alice,
		Content:      "hello",
		InReplyTo:    "http://alpha.test/post/1",
		Audience:     "http://alpha.test/c/main",
	}
	act, err := Normalize(envelope(t, KindCreate, "http://alpha.test/a/create", alice, note))
	require.NoError(t, err)

	got, err := act.Note()
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, comment, act.Key())

	incomplete := note
	incomplete.InReplyTo = ""
	act, err = Normalize(envelope(t, KindUpdate, "http://alpha.test/a/update", alice, incomplete))
	require.NoError(t, err)
	_, err = act.Note()
	assert.ErrorIs(t, err, ErrMalformed)

	act, err = Normalize(envelope(t, KindCreate, "http://alpha.test/a/create2", alice, comment))
	require.NoError(t, err)
	_, err = act.Note()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestObjectID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"string", `"http://alpha.test/comment/1"`, "http://alpha.test/comment/1", false},
		{"embedded", `{"type":"Note","id":"http://alpha.test/comment/1"}`, "http://alpha.test/comment/1", false},
		{"empty string", `""`, "", true},
		{"object without id", `{"type":"Note"}`, "", true},
		{"number", `42`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := objectID(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHost(t *testing.T) {
	assert.Equal(t, "lemmy-alpha:8541", Host("http://Lemmy-Alpha:8541/comment/1"))
	assert.Equal(t, "beta.test", Host("https://beta.test/u/bob"))
	assert.Empty(t, Host("/comment/1"))
	assert.Empty(t, Host("bob@beta.test"))
}

func TestPeekType(t *testing.T) {
	typ, err := PeekType([]byte(`{"type":"Group","id":"http://alpha.test/c/main"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeGroup, typ)

	_, err = PeekType([]byte(`{"type":"Group"}`))
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = PeekType([]byte(`<html>`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestWebFinger_Self(t *testing.T) {
	wf := WebFinger{
		Subject: "acct:bob@beta.test",
		Links: []WebFingerLink{
			{Rel: "http://webfinger.net/rel/profile-page", Href: "http://beta.test/profile/bob"},
			{Rel: "self", Type: ContentType, Href: "http://beta.test/u/bob"},
		},
	}
	href, ok := wf.Self()
	assert.True(t, ok)
	assert.Equal(t, "http://beta.test/u/bob", href)

	_, ok = (&WebFinger{}).Self()
	assert.False(t, ok)
}
