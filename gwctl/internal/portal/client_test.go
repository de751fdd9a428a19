package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePortal struct {
	pings     atomic.Int32
	lastPing  atomic.Value
	lastAuth  atomic.Value
	authReply atomic.Value
}

func newFakePortal(t *testing.T) (*fakePortal, *Client) {
	t.Helper()
	f := &fakePortal{}
	f.authReply.Store(authAllowed)
	mux := http.NewServeMux()
	mux.HandleFunc("/wifidog/ping", func(w http.ResponseWriter, r *http.Request) {
		f.pings.Add(1)
		f.lastPing.Store(r.URL.Query())
		_, _ = w.Write([]byte("Pong"))
	})
	mux.HandleFunc("/wifidog/auth", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var batch counterBatch
			if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			out := batchResponse{Resp: []Verdict{}}
			for _, c := range batch.Clients {
				auth := 0
				if c.Token == "good" && batch.GatewayID == "gw-01" {
					auth = 1
				}
				out.Resp = append(out.Resp, Verdict{MAC: c.MAC, Auth: auth})
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(out)
			return
		}
		f.lastAuth.Store(r.URL.Query())
		_, _ = w.Write([]byte(f.authReply.Load().(string)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, New(srv.URL + "/wifidog/")
}

func TestPing(t *testing.T) {
	f, c := newFakePortal(t)

	err := c.Ping(context.Background(), Heartbeat{GatewayID: "gw-01", MAC: "00:11:22:33:44:55", SysUptime: 42, SysLoad: 0.5})
	require.NoError(t, err)

	q := f.lastPing.Load().(url.Values)
	assert.Equal(t, "gw-01", q.Get("gw_id"))
	assert.Equal(t, "00:11:22:33:44:55", q.Get("gw_mac"))
	assert.Equal(t, "42", q.Get("sys_uptime"))
	assert.Equal(t, "0.50", q.Get("sys_load"))
}

func TestAuth(t *testing.T) {
	f, c := newFakePortal(t)
	ctx := context.Background()
	uptime := int64(30)

	ok, err := c.Auth(ctx, AuthQuery{Stage: "counters", Token: "tok", MAC: "aa:bb", GatewayID: "gw-01", Incoming: 10, Outgoing: 20, Uptime: &uptime})
	require.NoError(t, err)
	assert.True(t, ok)
	q := f.lastAuth.Load().(url.Values)
	assert.Equal(t, "counters", q.Get("stage"))
	assert.Equal(t, "10", q.Get("incoming"))
	assert.Equal(t, "30", q.Get("uptime"))
	assert.Empty(t, q.Get("ip"))

	f.authReply.Store(authDenied)
	ok, err = c.Auth(ctx, AuthQuery{Token: "tok"})
	require.NoError(t, err)
	assert.False(t, ok)

	f.authReply.Store("garbage")
	_, err = c.Auth(ctx, AuthQuery{Token: "tok"})
	assert.ErrorIs(t, err, ErrUnexpectedReply)
}

func TestCounters(t *testing.T) {
	_, c := newFakePortal(t)

	verdicts, err := c.Counters(context.Background(), "gw-01", []CounterEntry{
		{Token: "good", MAC: "AA:AA:AA:AA:AA:AA", Incoming: 1},
		{Token: "bad", MAC: "BB:BB:BB:BB:BB:BB"},
	})
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.True(t, verdicts[0].Allowed())
	assert.False(t, verdicts[1].Allowed())
	assert.Equal(t, "BB:BB:BB:BB:BB:BB", verdicts[1].MAC)
}

func TestHeartbeaterStopsOnCancel(t *testing.T) {
	f, c := newFakePortal(t)
	ctx, cancel := context.WithCancel(context.Background())

	h := &Heartbeater{Client: c, GatewayID: "gw-01", Interval: 10 * time.Millisecond}
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool { return f.pings.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeater did not stop")
	}
}
