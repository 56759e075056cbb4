package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/spoolworks/spoolbridge/internal/moonraker"
	"github.com/spoolworks/spoolbridge/internal/testutil/testlog"
)

// fakeControlPlane is a minimal Moonraker stand-in: it answers
// printer.objects.list, pushes one spool event per session, and records
// every submitted gcode script.
type fakeControlPlane struct {
	objects  []string
	event    string
	scripts  chan string
	sessions atomic.Int64
}

func (f *fakeControlPlane) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		f.sessions.Add(1)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame struct {
				ID     *uint64         `json:"id"`
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
			}
			if err := json.Unmarshal(data, &frame); err != nil {
				t.Errorf("bad frame: %v", err)
				return
			}

			switch frame.Method {
			case "printer.objects.list":
				reply, _ := json.Marshal(map[string]any{
					"jsonrpc": "2.0",
					"id":      *frame.ID,
					"result":  map[string]any{"objects": f.objects},
				})
				if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
					return
				}
				notif, _ := json.Marshal(map[string]any{
					"jsonrpc": "2.0",
					"method":  EventActiveSpoolSet,
					"params":  []any{json.RawMessage(f.event)},
				})
				if err := conn.WriteMessage(websocket.TextMessage, notif); err != nil {
					return
				}
			case "printer.gcode.script":
				var params struct {
					Script string `json:"script"`
				}
				_ = json.Unmarshal(frame.Params, &params)
				f.scripts <- params.Script
			}
		}
	}
}

func fastSession() moonraker.Config {
	cfg := moonraker.DefaultConfig()
	cfg.ConnectTimeout = 2 * time.Second
	cfg.CallTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	cfg.Backoff.InitialDelay = 10 * time.Millisecond
	cfg.Backoff.MaxDelay = 50 * time.Millisecond
	cfg.Backoff.Jitter = false
	return cfg
}

func collectScripts(t *testing.T, scripts <-chan string, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for len(out) < n {
		select {
		case s := <-scripts:
			out = append(out, s)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for scripts, got %q", out)
		}
	}
	return out
}

func TestServiceDispatchesSpoolEventEndToEnd(t *testing.T) {
	testlog.Start(t)

	inventory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/spool/9" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"material": "PLA", "vendor": {"name": "Acme"}}`))
	}))
	defer inventory.Close()

	plane := &fakeControlPlane{
		objects: []string{
			"gcode",
			"gcode_macro _SET_material",
			"gcode_macro _SET_vendor_name",
			"gcode_macro _DONE",
		},
		event:   `{"spool_id": 9}`,
		scripts: make(chan string, 16),
	}
	bus := httptest.NewServer(plane.handler(t))
	defer bus.Close()

	cfg := DefaultServiceConfig()
	cfg.MoonrakerURL = "ws" + strings.TrimPrefix(bus.URL, "http")
	cfg.SpoolmanURL = inventory.URL
	cfg.SetMacroPrefix = "_SET_"
	cfg.ClearMacro = "_CLEAR"
	cfg.LoadCompleteMacro = "_DONE"
	cfg.Session = fastSession()

	svc, err := NewService(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.RunContext(ctx)
	}()

	got := collectScripts(t, plane.scripts, 3)
	want := []string{
		`_SET_material VALUE="PLA"`,
		`_SET_vendor_name VALUE="Acme"`,
		"_DONE",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("script %d = %q, want %q (full: %q)", i, got[i], want[i], got)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("service exit: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("service did not shut down")
	}
}

func TestServiceClearsOnNullSpool(t *testing.T) {
	testlog.Start(t)

	inventory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("null spool must not hit the inventory service")
		http.NotFound(w, r)
	}))
	defer inventory.Close()

	plane := &fakeControlPlane{
		objects: []string{"gcode_macro _CLEAR", "gcode_macro _SET_material"},
		event:   `{"spool_id": null}`,
		scripts: make(chan string, 16),
	}
	bus := httptest.NewServer(plane.handler(t))
	defer bus.Close()

	cfg := DefaultServiceConfig()
	cfg.MoonrakerURL = "ws" + strings.TrimPrefix(bus.URL, "http")
	cfg.SpoolmanURL = inventory.URL
	cfg.SetMacroPrefix = "_SET_"
	cfg.ClearMacro = "_CLEAR"
	cfg.Session = fastSession()

	svc, err := NewService(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- svc.RunContext(ctx)
	}()

	got := collectScripts(t, plane.scripts, 1)
	if got[0] != "_CLEAR" {
		t.Fatalf("expected clear invocation, got %q", got)
	}

	cancel()
	<-done
}

func TestServiceReconnectsAndRebuildsRegistry(t *testing.T) {
	testlog.Start(t)

	inventory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"material": "PETG"}`))
	}))
	defer inventory.Close()

	plane := &fakeControlPlane{
		objects: []string{"gcode_macro _SET_material"},
		event:   `{"spool_id": 3}`,
		scripts: make(chan string, 16),
	}

	// Drop the first session right after the event dispatch completes,
	// forcing a reconnect.
	var dropped atomic.Bool
	upgrader := websocket.Upgrader{}
	inner := plane.handler(t)
	bus := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !dropped.Swap(true) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			_ = conn.Close()
			return
		}
		inner(w, r)
	}))
	defer bus.Close()

	cfg := DefaultServiceConfig()
	cfg.MoonrakerURL = "ws" + strings.TrimPrefix(bus.URL, "http")
	cfg.SpoolmanURL = inventory.URL
	cfg.SetMacroPrefix = "_SET_"
	cfg.Session = fastSession()

	svc, err := NewService(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- svc.RunContext(ctx)
	}()

	got := collectScripts(t, plane.scripts, 1)
	if got[0] != `_SET_material VALUE="PETG"` {
		t.Fatalf("unexpected script after reconnect: %q", got)
	}
	if plane.sessions.Load() < 1 {
		t.Fatalf("expected at least one full session")
	}

	cancel()
	<-done
}
