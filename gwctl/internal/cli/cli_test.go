package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPortal(t *testing.T) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wifidog/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Pong"))
	})
	mux.HandleFunc("/wifidog/auth", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var batch struct {
				Clients []struct {
					Token string `json:"token"`
					MAC   string `json:"mac"`
				} `json:"clients"`
			}
			_ = json.NewDecoder(r.Body).Decode(&batch)
			resp := []map[string]any{}
			for _, c := range batch.Clients {
				auth := 0
				if c.Token == "good" {
					auth = 1
				}
				resp = append(resp, map[string]any{"mac": c.MAC, "auth": auth})
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"resp": resp})
			return
		}
		if r.URL.Query().Get("token") == "good" {
			_, _ = w.Write([]byte("Auth: 1"))
			return
		}
		_, _ = w.Write([]byte("Auth: 0"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL + "/wifidog"
}

func run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPingCommand(t *testing.T) {
	url := newPortal(t)

	out, err := run(t, NewPingCommand(), "", "--portal", url, "--gw-id", "gw-01")
	require.NoError(t, err)
	assert.Equal(t, "Pong\n", out)

	_, err = run(t, NewPingCommand(), "", "--portal", url)
	assert.ErrorContains(t, err, "--gw-id")
}

func TestAuthCommand(t *testing.T) {
	url := newPortal(t)

	out, err := run(t, NewAuthCommand(), "", "--portal", url, "--token", "good", "--mac", "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Equal(t, "Auth: 1\n", out)

	out, err = run(t, NewAuthCommand(), "", "--portal", url, "--token", "bad")
	require.NoError(t, err)
	assert.Equal(t, "Auth: 0\n", out)
}

func TestPortalURLFromEnv(t *testing.T) {
	t.Setenv(envPortalURL, newPortal(t))

	out, err := run(t, NewAuthCommand(), "", "--token", "good")
	require.NoError(t, err)
	assert.Equal(t, "Auth: 1\n", out)
}

func TestCountersCommand(t *testing.T) {
	url := newPortal(t)
	stdin := `[{"token":"good","mac":"AA:AA:AA:AA:AA:AA","incoming":1,"outgoing":2},{"token":"bad","mac":"BB:BB:BB:BB:BB:BB"}]`

	out, err := run(t, NewCountersCommand(), stdin, "--portal", url, "--gw-id", "gw-01")
	require.NoError(t, err)
	assert.Contains(t, out, "AA:AA:AA:AA:AA:AA  1")
	assert.Contains(t, out, "BB:BB:BB:BB:BB:BB  0")

	_, err = run(t, NewCountersCommand(), "not json", "--portal", url, "--gw-id", "gw-01")
	assert.ErrorContains(t, err, "decode entries")
}
