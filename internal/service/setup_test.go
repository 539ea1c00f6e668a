package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/fed_comment_server/config"
	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/pkg/apclient"
	"github.com/qs3c/fed_comment_server/internal/pkg/queue"
	"github.com/qs3c/fed_comment_server/internal/repository"
	"github.com/qs3c/fed_comment_server/internal/testutil"
)

// recordingQueue 记录出站投递
type recordingQueue struct {
	mu   sync.Mutex
	msgs []*queue.DeliveryMessage
}

func (q *recordingQueue) Push(_ context.Context, msg *queue.DeliveryMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *recordingQueue) inboxes() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.msgs))
	for i, m := range q.msgs {
		out[i] = m.Inbox
	}
	return out
}

func (q *recordingQueue) envelopes(t *testing.T) []*activity.Envelope {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*activity.Envelope, len(q.msgs))
	for i, m := range q.msgs {
		env, err := activity.Decode(m.Body)
		require.NoError(t, err)
		out[i] = env
	}
	return out
}

func (q *recordingQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = nil
}

// stubFetcher 以内存对象表模拟远程实例
type stubFetcher struct {
	mu       sync.Mutex
	objects  map[string]interface{}
	accounts map[string]string
	down     bool
	fetches  int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		objects:  make(map[string]interface{}),
		accounts: make(map[string]string),
	}
}

func (f *stubFetcher) add(id string, obj interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[id] = obj
}

func (f *stubFetcher) Fetch(_ context.Context, apID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.down {
		return nil, fmt.Errorf("%w: %s", apclient.ErrUnreachable, apID)
	}
	obj, ok := f.objects[apID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apclient.ErrNotFound, apID)
	}
	return json.Marshal(obj)
}

func (f *stubFetcher) WebFinger(_ context.Context, name, instance string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return "", apclient.ErrUnreachable
	}
	href, ok := f.accounts[name+"@"+instance]
	if !ok {
		return "", apclient.ErrNotFound
	}
	return href, nil
}

type testEnv struct {
	*Services
	db      *gorm.DB
	repos   *repository.Repos
	queue   *recordingQueue
	fetcher *stubFetcher
	inst    Instance
}

// setupServices 本实例为 testutil.LocalDomain
func setupServices(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	inst, err := NewInstance("http://" + testutil.LocalDomain)
	require.NoError(t, err)

	repos := repository.NewRepos(db)
	q := &recordingQueue{}
	f := newStubFetcher()
	services := New(Deps{
		Repos:         repos,
		Fetcher:       f,
		Delivery:      q,
		Instance:      inst,
		JWT:           config.JWTConfig{Secret: "test-secret", ExpireHours: 24},
		MaxReplyDepth: 5,
		Log:           zap.NewNop(),
	})

	return &testEnv{
		Services: services,
		db:       db,
		repos:    repos,
		queue:    q,
		fetcher:  f,
		inst:     inst,
	}
}
