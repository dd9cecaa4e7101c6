package admin_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hurdlab/pfinet/internal/admin"
	"github.com/hurdlab/pfinet/internal/iface"
	"github.com/hurdlab/pfinet/internal/stack"
	"github.com/hurdlab/pfinet/internal/translator"
)

func newTestContext(t *testing.T) *translator.Context {
	t.Helper()

	reg := iface.NewRegistry()
	lo := &iface.Interface{Name: iface.LoopbackName, Kind: iface.DriverLoopback, MTU: 65536}
	lo.SetFlags(iface.FlagUp | iface.FlagRunning | iface.FlagLoopback)
	lo.SetV4(iface.V4Config{
		Addr:      netip.MustParseAddr("127.0.0.1"),
		Mask:      netip.MustParseAddr("255.0.0.0"),
		Gateway:   iface.SentinelV4,
		Broadcast: iface.SentinelV4,
	})
	reg.Add(lo)

	ctx, err := translator.New(reg, nil, 0, 0, stack.FamilyINET)
	if err != nil {
		t.Fatalf("translator.New: %v", err)
	}
	return ctx
}

func TestListInterfaces(t *testing.T) {
	ctx := newTestContext(t)
	reg := prometheus.NewRegistry()
	h := admin.New(ctx, reg, "", nil, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/interfaces")
	if err != nil {
		t.Fatalf("GET /v1/interfaces: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(interfaces) = %d, want 1", len(out))
	}
	if out[0]["name"] != iface.LoopbackName {
		t.Fatalf("name = %v, want %q", out[0]["name"], iface.LoopbackName)
	}
}

func TestGetInterfaceNotFound(t *testing.T) {
	ctx := newTestContext(t)
	reg := prometheus.NewRegistry()
	h := admin.New(ctx, reg, "", nil, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/interfaces/eth9")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCaptabStats(t *testing.T) {
	ctx := newTestContext(t)
	class, err := ctx.SocketBk.CreateClass("test-class", nil)
	if err != nil {
		t.Fatalf("create class: %v", err)
	}
	ctx.SocketBk.CreatePort(class, "payload")

	reg := prometheus.NewRegistry()
	h := admin.New(ctx, reg, "", nil, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/captab/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		SocketBucketObjects int `json:"socket_bucket_objects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SocketBucketObjects != 1 {
		t.Fatalf("socket_bucket_objects = %d, want 1", out.SocketBucketObjects)
	}
}

func TestReloadNotSupported(t *testing.T) {
	ctx := newTestContext(t)
	reg := prometheus.NewRegistry()
	h := admin.New(ctx, reg, "", nil, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
}

func TestReloadInvoked(t *testing.T) {
	ctx := newTestContext(t)
	reg := prometheus.NewRegistry()

	var called bool
	reload := func() error {
		called = true
		return nil
	}
	h := admin.New(ctx, reg, "", reload, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if !called {
		t.Fatal("reload function was not invoked")
	}
}

func TestReloadFailure(t *testing.T) {
	ctx := newTestContext(t)
	reg := prometheus.NewRegistry()

	reload := func() error { return errors.New("bad config") }
	h := admin.New(ctx, reg, "", reload, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ctx := newTestContext(t)
	reg := prometheus.NewRegistry()
	h := admin.New(ctx, reg, "/metrics", nil, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
