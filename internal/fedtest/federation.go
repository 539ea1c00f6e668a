// Package fedtest 在同一进程内运行多个实例用于联邦测试。
// 拉取与 WebFinger 直接路由到目标实例的 ObjectService；投递先进入共享的待投递列表，
// Flush 时交给目标实例的 IngestService，可打乱顺序或重复投递
package fedtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/fed_comment_server/config"
	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/apclient"
	"github.com/qs3c/fed_comment_server/internal/pkg/queue"
	"github.com/qs3c/fed_comment_server/internal/repository"
	"github.com/qs3c/fed_comment_server/internal/service"
	"github.com/qs3c/fed_comment_server/internal/testutil"
)

const maxRounds = 20

// Network 一组互相联邦的进程内实例
type Network struct {
	t         *testing.T
	mu        sync.Mutex
	instances map[string]*Instance
	down      map[string]bool
	pending   []*Delivery
	results   []Result
}

// Instance 一个实例：独立的内存数据库与服务集合
type Instance struct {
	*service.Services
	Domain string
	DB     *gorm.DB
	Repos  *repository.Repos
	net    *Network
}

// Delivery 一次待投递
type Delivery struct {
	From     string
	Inbox    string
	Body     json.RawMessage
	attempts int
}

// Result 一次投递的处理结果
type Result struct {
	Inbox      string
	ActivityID string
	Type       activity.Kind
	Err        error
}

func NewNetwork(t *testing.T) *Network {
	t.Helper()
	return &Network{
		t:         t,
		instances: make(map[string]*Instance),
		down:      make(map[string]bool),
	}
}

// AddInstance 新建实例，domain 同时作为 host
func (n *Network) AddInstance(domain string) *Instance {
	n.t.Helper()

	inst, err := service.NewInstance("http://" + domain)
	if err != nil {
		n.t.Fatalf("invalid instance %s: %v", domain, err)
	}
	db := testutil.SetupTestDB(n.t)
	repos := repository.NewRepos(db)

	i := &Instance{
		Domain: inst.Domain,
		DB:     db,
		Repos:  repos,
		net:    n,
	}
	i.Services = service.New(service.Deps{
		Repos:         repos,
		Fetcher:       &fetcher{net: n},
		Delivery:      &outbox{net: n, from: inst.Domain},
		Instance:      inst,
		JWT:           config.JWTConfig{Secret: "test-secret", ExpireHours: 1},
		MaxReplyDepth: 10,
		Log:           zap.NewNop(),
	})

	n.mu.Lock()
	n.instances[inst.Domain] = i
	n.mu.Unlock()
	return i
}

// SetDown 模拟实例不可达：拉取与投递都失败
func (n *Network) SetDown(domain string, down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down[domain] = down
}

func (n *Network) instance(host string) (*Instance, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down[host] {
		return nil, false
	}
	i, ok := n.instances[host]
	return i, ok
}

// Pending 尚未投递的数量
func (n *Network) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// Take 取出全部待投递，由调用方决定投递顺序
func (n *Network) Take() []*Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.pending
	n.pending = nil
	return out
}

// Results 迄今的全部投递结果
func (n *Network) Results() []Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Result(nil), n.results...)
}

// FlushOptions 控制投递顺序与重复
type FlushOptions struct {
	Shuffle   *rand.Rand // 非 nil 时每轮打乱顺序
	Duplicate bool       // 每个投递重复一次
}

// Flush 反复投递直到没有待投递（转发产生的新投递也会处理）。
// 可重试的失败保留到下一轮，超过轮数后丢弃
func (n *Network) Flush(ctx context.Context, opts ...FlushOptions) {
	n.t.Helper()

	var opt FlushOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	for round := 0; round < maxRounds && n.Pending() > 0; round++ {
		batch := n.Take()
		if opt.Duplicate {
			dup := make([]*Delivery, 0, 2*len(batch))
			for _, d := range batch {
				copied := *d
				dup = append(dup, d, &copied)
			}
			batch = dup
		}
		if opt.Shuffle != nil {
			opt.Shuffle.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
		}

		for _, d := range batch {
			err := n.Deliver(ctx, d)
			if err != nil && service.Retriable(err) && d.attempts < maxRounds {
				n.mu.Lock()
				n.pending = append(n.pending, d)
				n.mu.Unlock()
			}
		}
	}
}

// Deliver 把一次投递交给目标实例处理
func (n *Network) Deliver(ctx context.Context, d *Delivery) error {
	d.attempts++
	env, err := activity.Decode(d.Body)
	if err != nil {
		n.record(d, nil, err)
		return err
	}

	target, ok := n.instance(activity.Host(d.Inbox))
	if !ok {
		err := fmt.Errorf("%w: %s", service.ErrUnreachable, d.Inbox)
		n.record(d, env, err)
		return err
	}
	err = target.Ingest.Apply(ctx, env)
	n.record(d, env, err)
	return err
}

func (n *Network) record(d *Delivery, env *activity.Envelope, err error) {
	r := Result{Inbox: d.Inbox, Err: err}
	if env != nil {
		r.ActivityID, r.Type = env.ID, env.Type
	}
	n.mu.Lock()
	n.results = append(n.results, r)
	n.mu.Unlock()
}

type outbox struct {
	net  *Network
	from string
}

func (o *outbox) Push(_ context.Context, msg *queue.DeliveryMessage) error {
	o.net.mu.Lock()
	defer o.net.mu.Unlock()
	o.net.pending = append(o.net.pending, &Delivery{
		From:  o.from,
		Inbox: msg.Inbox,
		Body:  append(json.RawMessage(nil), msg.Body...),
	})
	return nil
}

type fetcher struct {
	net *Network
}

func (f *fetcher) Fetch(ctx context.Context, apID string) ([]byte, error) {
	inst, ok := f.net.instance(activity.Host(apID))
	if !ok {
		return nil, fmt.Errorf("%w: %s", apclient.ErrUnreachable, apID)
	}
	obj, err := inst.Objects.Get(ctx, apID)
	if errors.Is(err, service.ErrGone) || errors.Is(err, service.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", apclient.ErrNotFound, apID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apclient.ErrUnreachable, err)
	}
	return json.Marshal(obj)
}

func (f *fetcher) WebFinger(ctx context.Context, name, instance string) (string, error) {
	inst, ok := f.net.instance(instance)
	if !ok {
		return "", fmt.Errorf("%w: %s", apclient.ErrUnreachable, instance)
	}
	wf, err := inst.Objects.WebFinger(ctx, "acct:"+name+"@"+instance)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apclient.ErrNotFound, err)
	}
	href, ok := wf.Self()
	if !ok {
		return "", fmt.Errorf("%w: no self link", apclient.ErrNotFound)
	}
	return href, nil
}

// Person 创建本地用户
func (i *Instance) Person(name string, admin bool) *model.Person {
	i.net.t.Helper()
	p, err := i.Persons.Create(context.Background(), name, admin)
	if err != nil {
		i.net.t.Fatalf("create person %s@%s: %v", name, i.Domain, err)
	}
	return p
}

// Community 创建本地社区，owner 成为版主
func (i *Instance) Community(owner *model.Person, name string) *model.Community {
	i.net.t.Helper()
	item, err := i.Communities.CreateCommunity(context.Background(), owner.ID, name)
	if err != nil {
		i.net.t.Fatalf("create community %s@%s: %v", name, i.Domain, err)
	}
	c, err := i.Repos.Communities.GetByID(item.ID)
	if err != nil {
		i.net.t.Fatalf("load community: %v", err)
	}
	return c
}

// Post 在本地社区创建帖子
func (i *Instance) Post(creator *model.Person, community *model.Community, name string) *model.Post {
	i.net.t.Helper()
	item, err := i.Communities.CreatePost(context.Background(), creator.ID, community.ID, &dto.CreatePostRequest{Name: name})
	if err != nil {
		i.net.t.Fatalf("create post: %v", err)
	}
	p, err := i.Repos.Posts.GetByID(item.ID)
	if err != nil {
		i.net.t.Fatalf("load post: %v", err)
	}
	return p
}

// Follow 本地用户关注任意社区（远程社区会发出 Follow）
func (i *Instance) Follow(person *model.Person, communityApID string) *model.Community {
	i.net.t.Helper()
	item, err := i.Communities.Follow(context.Background(), person.ID, communityApID)
	if err != nil {
		i.net.t.Fatalf("follow %s: %v", communityApID, err)
	}
	c, err := i.Repos.Communities.GetByID(item.ID)
	if err != nil {
		i.net.t.Fatalf("load community: %v", err)
	}
	return c
}

// LocalPost 本实例上与 apID 对应的帖子副本（必要时解析）
func (i *Instance) LocalPost(apID string) *model.Post {
	i.net.t.Helper()
	p, err := i.Resolver.ResolvePost(context.Background(), apID)
	if err != nil {
		i.net.t.Fatalf("resolve post %s on %s: %v", apID, i.Domain, err)
	}
	return p
}

// Comment 按 ap_id 读取本地评论行（含关联），不存在时返回 nil
func (i *Instance) Comment(apID string) *model.Comment {
	i.net.t.Helper()
	c, err := i.Repos.Comments.GetByApIDWithRelations(apID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		i.net.t.Fatalf("load comment %s on %s: %v", apID, i.Domain, err)
	}
	return c
}

// Score 评论在本实例上的分数
func (i *Instance) Score(apID string) int64 {
	i.net.t.Helper()
	c := i.Comment(apID)
	if c == nil {
		i.net.t.Fatalf("comment %s not on %s", apID, i.Domain)
	}
	agg, err := i.Votes.Score(context.Background(), c.ID)
	if err != nil {
		i.net.t.Fatalf("score: %v", err)
	}
	return agg.Score
}
