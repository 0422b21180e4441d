package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrank/devrank/internal/adapters/provider"
	"github.com/devrank/devrank/internal/adapters/provider/rest"
	"github.com/devrank/devrank/internal/domain/window"
	"github.com/devrank/devrank/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body any) *http.Response {
	raw, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(raw)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestCollector(rt roundTripFunc) *Collector {
	return NewCollector(
		WithBaseURL("https://gitlab.test/api/v4"),
		WithRESTOptions(
			rest.WithHTTPClient(&http.Client{Transport: rt}),
			rest.WithRetryMax(0),
		),
	)
}

func testWindow(t *testing.T) window.Window {
	t.Helper()
	w, err := window.New("2025-01-01", "UTC")
	require.NoError(t, err)
	return w
}

func TestCollectAggregatesEvents(t *testing.T) {
	w := testWindow(t)
	inside := w.CutoffUTC.Add(48 * time.Hour)
	before := w.CutoffUTC.Add(-time.Hour)

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/users"):
			return jsonResponse(http.StatusOK, []map[string]any{
				{"id": 42, "username": "alice"},
			}), nil
		case strings.Contains(req.URL.Path, "/users/42/events"):
			return jsonResponse(http.StatusOK, []map[string]any{
				{
					"action_name": "pushed to",
					"project_id":  7,
					"created_at":  inside.Format(time.RFC3339),
					"push_data":   map[string]any{"commit_count": 3},
				},
				{
					"action_name": "opened",
					"target_type": "MergeRequest",
					"project_id":  8,
					"created_at":  inside.Format(time.RFC3339),
				},
				{
					"action_name": "opened",
					"target_type": "Issue",
					"project_id":  7,
					"created_at":  inside.Format(time.RFC3339),
				},
				{
					"action_name": "pushed to",
					"project_id":  7,
					"created_at":  before.Format(time.RFC3339),
					"push_data":   map[string]any{"commit_count": 9},
				},
			}), nil
		}
		return jsonResponse(http.StatusNotFound, map[string]any{"message": "not found"}), nil
	})

	c := newTestCollector(rt)
	stats, err := c.Collect(context.Background(), provider.Credentials{Username: "alice"}, w)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Commits, "push before the cutoff must not count")
	assert.Equal(t, 1, stats.PullRequests)
	assert.Equal(t, 1, stats.Issues)
	assert.Equal(t, 2, stats.RepositoriesTouched)
	assert.Equal(t, 1, stats.ActiveDays)
}

func TestCollectUnknownUser(t *testing.T) {
	rt := roundTripFunc(func(_ *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, []map[string]any{}), nil
	})

	c := newTestCollector(rt)
	_, err := c.Collect(context.Background(), provider.Credentials{Username: "ghost"}, testWindow(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCollectTokenHeader(t *testing.T) {
	var gotToken string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotToken = req.Header.Get("PRIVATE-TOKEN")
		if strings.HasSuffix(req.URL.Path, "/users") {
			return jsonResponse(http.StatusOK, []map[string]any{{"id": 1, "username": "alice"}}), nil
		}
		return jsonResponse(http.StatusOK, []map[string]any{}), nil
	})

	c := newTestCollector(rt)
	_, err := c.Collect(context.Background(), provider.Credentials{Username: "alice", AccessToken: "glpat-x"}, testWindow(t))
	require.NoError(t, err)
	assert.Equal(t, "glpat-x", gotToken)
}
