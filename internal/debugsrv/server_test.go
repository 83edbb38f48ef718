package debugsrv

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"framed/internal/frame"
	"framed/internal/storage"
	logx "framed/pkg/logx"
)

type fakeSource struct {
	snap frame.Snapshot
	err  error
}

func (f fakeSource) Snapshot(context.Context) (frame.Snapshot, error) { return f.snap, f.err }
func (f fakeSource) Frames() uint64                                   { return 42 }
func (f fakeSource) SlowFrames() uint64                               { return 2 }

func get(t *testing.T, h http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestFrameEndpoint(t *testing.T) {
	t.Parallel()
	src := fakeSource{snap: frame.Snapshot{State: frame.StateSubscribed, Registrations: 3, Active: 2, Ticks: 10}}
	s := New(Config{}, src, nil, logx.Nop())
	h := s.Handler(Config{})

	rec := get(t, h, "/frame", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["registrations"] != float64(3) || got["frames"] != float64(42) || got["ticks"] != float64(10) {
		t.Fatalf("body = %v", got)
	}

	if rec := get(t, h, "/stats", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("/stats without reporter = %d", rec.Code)
	}
	if rec := get(t, h, "/debug/pprof/", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("pprof mounted while disabled: %d", rec.Code)
	}
}

func TestFrameEndpointLoopStalled(t *testing.T) {
	t.Parallel()
	s := New(Config{}, fakeSource{err: context.DeadlineExceeded}, nil, logx.Nop())
	if rec := get(t, s.Handler(Config{}), "/frame", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStatsAndPprof(t *testing.T) {
	t.Parallel()
	last := func() storage.Sample { return storage.Sample{Frames: 600, FPS: 60} }
	s := New(Config{}, fakeSource{}, last, logx.Nop())
	h := s.Handler(Config{Pprof: true})

	rec := get(t, h, "/stats", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"frames": 600`) {
		t.Fatalf("/stats = %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(t, h, "/debug/pprof/", nil); rec.Code != http.StatusOK {
		t.Fatalf("pprof index = %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	t.Parallel()
	cfg := Config{Token: "s3cret"}
	h := New(cfg, fakeSource{}, nil, logx.Nop()).Handler(cfg)
	cases := []struct {
		name   string
		target string
		header http.Header
		want   int
	}{
		{"none", "/healthz", nil, http.StatusUnauthorized},
		{"query", "/healthz?token=s3cret", nil, http.StatusOK},
		{"bad query", "/healthz?token=nope", http.Header{"Authorization": {"Bearer s3cret"}}, http.StatusUnauthorized},
		{"bearer", "/healthz", http.Header{"Authorization": {"Bearer s3cret"}}, http.StatusOK},
		{"bad bearer", "/healthz", http.Header{"Authorization": {"Bearer x"}}, http.StatusUnauthorized},
		{"prefix bearer", "/healthz", http.Header{"Authorization": {"Bearer s3cre"}}, http.StatusUnauthorized},
		{"longer query", "/healthz?token=s3cret2", nil, http.StatusUnauthorized},
		{"basic scheme", "/healthz", http.Header{"Authorization": {"Basic s3cret"}}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if rec := get(t, h, tc.target, tc.header); rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()
	cases := []struct {
		cfg Config
		ok  bool
	}{
		{Config{}, true},
		{Config{Enabled: true}, true},
		{Config{Enabled: true, Addr: "localhost:0"}, true},
		{Config{Enabled: true, Addr: ":6060"}, false},
		{Config{Enabled: true, Addr: ":6060", Token: "t"}, true},
		{Config{Enabled: true, Addr: "0.0.0.0:6060", AllowInsecure: true}, true},
		{Config{Enabled: true, Addr: "nonsense"}, false},
	}
	for _, tc := range cases {
		if err := tc.cfg.Check(); (err == nil) != tc.ok {
			t.Fatalf("Check(%+v) = %v", tc.cfg, err)
		}
	}
}

func TestServeLifecycle(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, fakeSource{}, nil, logx.Nop())
	ctx := context.Background()
	s.Start(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for s.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}
	addr := s.Addr()

	stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	s.Reconfigure(stopCtx, Config{Enabled: false})
	if s.Addr() != "" {
		t.Fatalf("Addr still set after disable")
	}
	if _, err := http.Get("http://" + addr + "/healthz"); err == nil {
		t.Fatalf("server still serving after disable")
	}
}

func TestTokenEqual(t *testing.T) {
	t.Parallel()
	cases := []struct {
		got, want string
		ok        bool
	}{
		{"s3cret", "s3cret", true},
		{"s3cre", "s3cret", false},
		{"s3cret ", "s3cret", false},
		{"", "s3cret", false},
	}
	for _, tc := range cases {
		if ok := tokenEqual(tc.got, tc.want); ok != tc.ok {
			t.Fatalf("tokenEqual(%q, %q) = %v, want %v", tc.got, tc.want, ok, tc.ok)
		}
	}
}
