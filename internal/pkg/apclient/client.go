// Package apclient 远程实例客户端：对象获取、WebFinger 查询与收件箱投递
package apclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"resty.dev/v3"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/metrics"
)

var (
	// ErrNotFound 远程返回 404 或 410
	ErrNotFound = errors.New("remote object not found")
	// ErrUnreachable 网络错误或 5xx，可重试
	ErrUnreachable = errors.New("remote instance unreachable")
	// ErrRejected 远程收件箱以 4xx 拒绝
	ErrRejected = errors.New("remote instance rejected activity")
)

type Config struct {
	Timeout   time.Duration
	Scheme    string // http 或 https，用于 WebFinger
	UserAgent string
}

type Client struct {
	client *resty.Client
	scheme string
}

func New(cfg Config) *Client {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		AddResponseMiddleware(metricMiddleware)

	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	return &Client{
		client: client,
		scheme: scheme,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// Fetch 获取远程对象的 JSON 表示
func (c *Client) Fetch(ctx context.Context, apID string) ([]byte, error) {
	res, err := c.r(ctx).
		SetHeader("Accept", activity.ContentType).
		Get(apID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	switch code := res.StatusCode(); {
	case code == http.StatusNotFound || code == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, apID)
	case res.IsError():
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrUnreachable, apID, code)
	}

	return res.Bytes(), nil
}

// WebFinger 把 name@instance 解析为用户 ap_id。
// 远程常以 application/jrd+json 或不带 Content-Type 返回，因此直接解码响应体
func (c *Client) WebFinger(ctx context.Context, name, instance string) (string, error) {
	endpoint := fmt.Sprintf("%s://%s/.well-known/webfinger", c.scheme, instance)

	res, err := c.r(ctx).
		SetQueryParam("resource", fmt.Sprintf("acct:%s@%s", name, instance)).
		Get(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return "", fmt.Errorf("%w: acct:%s@%s", ErrNotFound, name, instance)
	}
	if res.IsError() {
		return "", fmt.Errorf("%w: webfinger %s returned %d", ErrUnreachable, instance, res.StatusCode())
	}

	var wf activity.WebFinger
	if err := json.Unmarshal(res.Bytes(), &wf); err != nil {
		return "", fmt.Errorf("%w: bad webfinger body from %s: %v", ErrUnreachable, instance, err)
	}
	self, ok := wf.Self()
	if !ok {
		return "", fmt.Errorf("%w: no self link for acct:%s@%s", ErrNotFound, name, instance)
	}
	return self, nil
}

// Deliver 向收件箱投递活动，4xx 不再重试
func (c *Client) Deliver(ctx context.Context, inbox string, body []byte) error {
	res, err := c.r(ctx).
		SetHeader("Content-Type", activity.ContentType).
		SetBody(json.RawMessage(body)).
		Post(inbox)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	code := res.StatusCode()
	switch {
	case code >= 500:
		return fmt.Errorf("%w: POST %s returned %d", ErrUnreachable, inbox, code)
	case code >= 400:
		return fmt.Errorf("%w: POST %s returned %d: %s", ErrRejected, inbox, code, res.String())
	}
	return nil
}

func metricMiddleware(_ *resty.Client, response *resty.Response) error {
	metrics.RemoteLatency.WithLabelValues(
		response.Request.Method,
		strconv.Itoa(response.StatusCode()),
	).Observe(response.Duration().Seconds())

	return nil
}
