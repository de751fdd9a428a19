// Package portal speaks the gateway side of the WiFiDog protocol.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	pathPing = "/ping"
	pathAuth = "/auth"

	pongReply   = "Pong"
	authAllowed = "Auth: 1"
	authDenied  = "Auth: 0"
)

var ErrUnexpectedReply = errors.New("unexpected reply")

// Client talks to the portal's /wifidog endpoints. The base URL includes
// the /wifidog prefix.
type Client struct {
	resty *resty.Client
}

type Heartbeat struct {
	GatewayID     string
	MAC           string
	SysUptime     int64
	SysLoad       float64
	SysMemFree    int64
	WifidogUptime int64
}

type AuthQuery struct {
	Stage     string
	Token     string
	MAC       string
	IP        string
	GatewayID string
	Incoming  int64
	Outgoing  int64
	Uptime    *int64
}

type CounterEntry struct {
	Token    string `json:"token"`
	MAC      string `json:"mac"`
	Incoming int64  `json:"incoming"`
	Outgoing int64  `json:"outgoing"`
	Uptime   *int64 `json:"uptime,omitempty"`
}

type Verdict struct {
	MAC  string `json:"mac"`
	Auth int    `json:"auth"`
}

func (v Verdict) Allowed() bool { return v.Auth == 1 }

type counterBatch struct {
	GatewayID string         `json:"gw_id"`
	Clients   []CounterEntry `json:"clients"`
}

type batchResponse struct {
	Resp []Verdict `json:"resp"`
}

func New(baseURL string) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10 * time.Second)
	return &Client{resty: client}
}

func (c *Client) Ping(ctx context.Context, hb Heartbeat) error {
	q := url.Values{}
	q.Set("gw_id", hb.GatewayID)
	if hb.MAC != "" {
		q.Set("gw_mac", hb.MAC)
	}
	q.Set("sys_uptime", strconv.FormatInt(hb.SysUptime, 10))
	q.Set("sys_load", strconv.FormatFloat(hb.SysLoad, 'f', 2, 64))
	q.Set("sys_memfree", strconv.FormatInt(hb.SysMemFree, 10))
	q.Set("wifidog_uptime", strconv.FormatInt(hb.WifidogUptime, 10))

	body, err := c.getText(ctx, pathPing, q)
	if err != nil {
		return err
	}
	if body != pongReply {
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, body)
	}
	return nil
}

// Auth performs a single token check and reports the portal's verdict.
func (c *Client) Auth(ctx context.Context, a AuthQuery) (bool, error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("stage", a.Stage)
	set("token", a.Token)
	set("mac", a.MAC)
	set("ip", a.IP)
	set("gw_id", a.GatewayID)
	q.Set("incoming", strconv.FormatInt(a.Incoming, 10))
	q.Set("outgoing", strconv.FormatInt(a.Outgoing, 10))
	if a.Uptime != nil {
		q.Set("uptime", strconv.FormatInt(*a.Uptime, 10))
	}

	body, err := c.getText(ctx, pathAuth, q)
	if err != nil {
		return false, err
	}
	switch body {
	case authAllowed:
		return true, nil
	case authDenied:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnexpectedReply, body)
	}
}

// Counters reports a batch of client counters and returns one verdict per
// entry, in the order the portal answered.
func (c *Client) Counters(ctx context.Context, gatewayID string, entries []CounterEntry) ([]Verdict, error) {
	var result batchResponse
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(&counterBatch{GatewayID: gatewayID, Clients: entries}).
		SetResult(&result).
		Post(pathAuth)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, errors.New(resp.String())
	}
	return result.Resp, nil
}

func (c *Client) getText(ctx context.Context, path string, q url.Values) (string, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q).
		Get(path)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", errors.New(resp.String())
	}
	return strings.TrimSpace(resp.String()), nil
}
