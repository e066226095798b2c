package core

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"ThreadHarvester/internal/config"
	"ThreadHarvester/internal/network"

	"github.com/stretchr/testify/require"
)

// redirectTransport は、全てのリクエストのホストをテストサーバーに差し替えます。
// 2ch.hk などの実際のホスト名のまま httptest.Server に届けるために使います。
type redirectTransport struct {
	target *url.URL
	base   http.RoundTripper
	hits   atomic.Int64
}

func (t *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.hits.Add(1)
	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.target.Scheme
	clone.URL.Host = t.target.Host
	clone.Host = req.URL.Host
	return t.base.RoundTrip(clone)
}

// newTestClient は、handler を実装したテストサーバーに全リクエストを転送する Client を返します。
func newTestClient(t *testing.T, handler http.Handler) (*network.Client, *redirectTransport) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	require.NoError(t, err)
	transport := &redirectTransport{target: target, base: server.Client().Transport}

	client, err := network.NewClient(config.NetworkSettings{
		UserAgent:            "harvester-test",
		RequestTimeoutMillis: 5000,
	}, network.Options{Transport: transport})
	require.NoError(t, err)
	return client, transport
}

// recordingReporter は、受け取った報告を保持します。
type recordingReporter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingReporter) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingReporter) count(severity Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Severity == severity {
			n++
		}
	}
	return n
}

func (r *recordingReporter) find(pred func(Event) bool) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if pred(e) {
			return e, true
		}
	}
	return Event{}, false
}
