package bitbucket

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
		WithBaseURL("https://bitbucket.test/2.0"),
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

func TestCollectFiltersCommitsClientSide(t *testing.T) {
	w := testWindow(t)
	inside := w.CutoffUTC.Add(72 * time.Hour)
	older := w.CutoffUTC.Add(-time.Hour)

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/repositories"):
			return jsonResponse(http.StatusOK, map[string]any{
				"values": []map[string]any{
					{"full_name": "alice/svc", "updated_on": inside.Format(time.RFC3339)},
				},
			}), nil
		case strings.Contains(req.URL.Path, "/repositories/alice/svc/commits"):
			return jsonResponse(http.StatusOK, map[string]any{
				"values": []map[string]any{
					{
						"hash": "aaa", "date": inside.Format(time.RFC3339),
						"author": map[string]any{"user": map[string]any{"nickname": "alice"}},
					},
					{
						"hash": "bbb", "date": inside.Format(time.RFC3339),
						"author": map[string]any{"user": map[string]any{"nickname": "mallory"}},
					},
					{
						"hash": "ccc", "date": older.Format(time.RFC3339),
						"author": map[string]any{"user": map[string]any{"nickname": "alice"}},
					},
				},
			}), nil
		case strings.Contains(req.URL.Path, "/repositories/alice/svc/pullrequests"):
			return jsonResponse(http.StatusOK, map[string]any{
				"values": []map[string]any{
					{"created_on": inside.Format(time.RFC3339)},
				},
			}), nil
		}
		return jsonResponse(http.StatusNotFound, map[string]any{"error": "not found"}), nil
	})

	c := newTestCollector(rt)
	stats, err := c.Collect(context.Background(), provider.Credentials{Username: "alice"}, w)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Commits, "other authors and pre-cutoff commits must not count")
	assert.Equal(t, 1, stats.PullRequests)
	assert.Equal(t, 1, stats.RepositoriesTouched)
	assert.Equal(t, 1, stats.ActiveDays)
}

func TestCollectStaleRepositoriesPruned(t *testing.T) {
	w := testWindow(t)
	var commitCalls int

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/repositories"):
			return jsonResponse(http.StatusOK, map[string]any{
				"values": []map[string]any{
					{"full_name": "alice/dusty", "updated_on": w.CutoffUTC.Add(-time.Hour).Format(time.RFC3339)},
				},
			}), nil
		case strings.Contains(req.URL.Path, "/commits"):
			commitCalls++
		}
		return jsonResponse(http.StatusOK, map[string]any{"values": []map[string]any{}}), nil
	})

	c := newTestCollector(rt)
	stats, err := c.Collect(context.Background(), provider.Credentials{Username: "alice"}, w)
	require.NoError(t, err)

	assert.Zero(t, stats.Commits)
	assert.Zero(t, stats.RepositoriesTouched)
	assert.Zero(t, commitCalls, "stale repositories must not be queried")
}

func TestCollectBasicAuthHeader(t *testing.T) {
	var gotAuth string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotAuth = req.Header.Get("Authorization")
		return jsonResponse(http.StatusOK, map[string]any{"values": []map[string]any{}}), nil
	})

	c := newTestCollector(rt)
	_, err := c.Collect(context.Background(), provider.Credentials{Username: "alice", AccessToken: "app-pass"}, testWindow(t))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotAuth, "Basic "))
}
