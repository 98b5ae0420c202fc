package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

func newFakePihole(t *testing.T, actionCalls map[string]int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/auth" && r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{"valid": true, "sid": "sid", "validity": 300},
			})
		case strings.HasPrefix(r.URL.Path, "/api/action/") && r.Method == http.MethodPost:
			actionCalls[strings.TrimPrefix(r.URL.Path, "/api/action/")]++
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "success"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestParams_Validate(t *testing.T) {
	for _, action := range []string{ActionFlushARP, ActionFlushLogs, ActionRunGravity, ActionRestartDNS} {
		if _, err := New(Params{Action: action}); err != nil {
			t.Errorf("New(%s) error = %v", action, err)
		}
	}

	if _, err := New(Params{}); err == nil {
		t.Error("New() with no action succeeded")
	}
	if _, err := New(Params{Action: "reboot"}); err == nil {
		t.Error("New(reboot) succeeded, want validation error")
	}
}

func TestMaintenance_Dispatch(t *testing.T) {
	tests := []struct {
		action   string
		endpoint string
	}{
		{ActionFlushARP, "flush_arp"},
		{ActionFlushLogs, "flush_logs"},
		{ActionRunGravity, "gravity"},
		{ActionRestartDNS, "restartdns"},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			calls := map[string]int{}
			server := newFakePihole(t, calls)
			client := pihole.New(server.URL, "pw")

			m, _ := New(Params{Action: tt.action})
			result := m.Run(context.Background(), client, module.RunOptions{})

			if !result.Success {
				t.Fatalf("Run() failed: %s", result.Error)
			}
			if !result.Changed {
				t.Error("Changed = false for a maintenance action")
			}
			if calls[tt.endpoint] != 1 {
				t.Errorf("endpoint %s called %d times, want 1", tt.endpoint, calls[tt.endpoint])
			}
		})
	}
}

func TestMaintenance_CheckMode(t *testing.T) {
	calls := map[string]int{}
	server := newFakePihole(t, calls)
	client := pihole.New(server.URL, "pw")

	m, _ := New(Params{Action: ActionRunGravity})
	result := m.Run(context.Background(), client, module.RunOptions{CheckMode: true})

	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if !result.Changed {
		t.Error("check mode reported Changed=false")
	}
	if len(calls) != 0 {
		t.Errorf("check mode issued calls: %v", calls)
	}
	if !strings.Contains(result.Message, "would perform run_gravity") {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestMaintenance_RemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{"valid": true, "sid": "sid", "validity": 300},
			})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"gravity failed"}`))
	}))
	t.Cleanup(server.Close)
	client := pihole.New(server.URL, "pw")

	m, _ := New(Params{Action: ActionRunGravity})
	result := m.Run(context.Background(), client, module.RunOptions{})

	if result.Success {
		t.Fatal("Run() succeeded against a failing API")
	}
	if result.Changed {
		t.Error("failed action reported Changed=true")
	}
	if result.Error == "" {
		t.Error("failed result carries no diagnostic")
	}
}
