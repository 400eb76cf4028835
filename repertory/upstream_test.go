package repertory

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeUpstream mimics the Play handshake: "/" sets the csrf cookie, the probe
// sets PLAY_SESSION once the csrf cookie is presented.
type fakeUpstream struct {
	server *httptest.Server

	rootHits   atomic.Int32
	probeHits  atomic.Int32
	searchHits atomic.Int32

	rootCookies  []string
	probeCookies []string
	rootDelay    time.Duration
	rootGate     chan struct{}
	search       http.HandlerFunc
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()

	f := &fakeUpstream{
		rootCookies:  []string{"csrfCookie=tok123; Path=/; SameSite=Lax"},
		probeCookies: []string{"PLAY_SESSION=sess456; Path=/; HttpOnly"},
		search: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"results":[],"totalResults":0,"hasMore":false}`))
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		f.rootHits.Add(1)
		if f.rootGate != nil {
			<-f.rootGate
		}
		if f.rootDelay > 0 {
			time.Sleep(f.rootDelay)
		}
		for _, c := range f.rootCookies {
			w.Header().Add("Set-Cookie", c)
		}
		_, _ = w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc(DefaultProbePath, func(w http.ResponseWriter, r *http.Request) {
		f.probeHits.Add(1)
		if strings.Contains(r.Header.Get("Cookie"), "csrfCookie=") {
			for _, c := range f.probeCookies {
				w.Header().Add("Set-Cookie", c)
			}
		}
		_, _ = w.Write([]byte("[]"))
	})
	mux.HandleFunc(DefaultSearchPath, func(w http.ResponseWriter, r *http.Request) {
		f.searchHits.Add(1)
		f.search(w, r)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeUpstream) sessionManager() *SessionManager {
	return NewSessionManager(SessionConfig{
		BaseURL:    f.server.URL,
		HTTPClient: f.server.Client(),
	})
}

func (f *fakeUpstream) client() *Client {
	return NewClient(f.sessionManager(), ClientConfig{})
}
