package localdns

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// fakePihole keeps dns.hosts entries as "IP HOSTNAME" strings.
type fakePihole struct {
	*httptest.Server
	hosts     []string
	mutations int
}

func newFakePihole(t *testing.T, hosts ...string) *fakePihole {
	t.Helper()
	f := &fakePihole{hosts: hosts}

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/auth":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{"valid": true, "sid": "sid", "validity": 300},
			})

		case r.URL.Path == "/api/config/dns/hosts" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"config": map[string]any{"dns": map[string]any{"hosts": f.hosts}},
			})

		case strings.HasPrefix(r.URL.Path, "/api/config/dns/hosts/"):
			value, _ := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/api/config/dns/hosts/"))
			f.mutations++
			switch r.Method {
			case http.MethodPut:
				f.hosts = append(f.hosts, value)
				w.WriteHeader(http.StatusCreated)
			case http.MethodDelete:
				var kept []string
				for _, h := range f.hosts {
					if h != value {
						kept = append(kept, h)
					}
				}
				f.hosts = kept
				w.WriteHeader(http.StatusNoContent)
			}

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Server.Close)
	return f
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"present v4", Params{Hostname: "nas.lan", IP: "192.168.1.10", State: "present"}, false},
		{"present v6", Params{Hostname: "nas.lan", IP: "fd00::10", State: "present"}, false},
		{"absent", Params{Hostname: "nas.lan", IP: "192.168.1.10", State: "absent"}, false},
		{"missing hostname", Params{IP: "192.168.1.10", State: "present"}, true},
		{"missing ip", Params{Hostname: "nas.lan", State: "present"}, true},
		{"bad ip", Params{Hostname: "nas.lan", IP: "not-an-ip", State: "present"}, true},
		{"missing state", Params{Hostname: "nas.lan", IP: "192.168.1.10"}, true},
		{"bad state", Params{Hostname: "nas.lan", IP: "192.168.1.10", State: "gone"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params)
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%+v) error = %v, wantErr %v", tt.params, err, tt.wantErr)
			}
		})
	}
}

func TestLocalDNS_AddRecord(t *testing.T) {
	f := newFakePihole(t)
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{Hostname: "nas.lan", IP: "192.168.1.10", State: "present"})
	result := m.Run(context.Background(), client, module.RunOptions{})

	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if !result.Changed {
		t.Error("new record reported Changed=false")
	}
	if len(f.hosts) != 1 || f.hosts[0] != "192.168.1.10 nas.lan" {
		t.Errorf("hosts = %v", f.hosts)
	}
	if result.Data["type"] != "A" {
		t.Errorf("record type = %v, want A", result.Data["type"])
	}
}

func TestLocalDNS_PresentIdempotent(t *testing.T) {
	f := newFakePihole(t, "192.168.1.10 nas.lan")
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{Hostname: "nas.lan", IP: "192.168.1.10", State: "present"})
	result := m.Run(context.Background(), client, module.RunOptions{})

	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if result.Changed {
		t.Error("matching record reported Changed=true")
	}
	if f.mutations != 0 {
		t.Errorf("idempotent run issued %d mutations", f.mutations)
	}
}

func TestLocalDNS_ReplacesStaleAddress(t *testing.T) {
	f := newFakePihole(t, "192.168.1.99 nas.lan")
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{Hostname: "nas.lan", IP: "192.168.1.10", State: "present"})
	result := m.Run(context.Background(), client, module.RunOptions{})

	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if !result.Changed {
		t.Error("re-pointed record reported Changed=false")
	}
	if len(f.hosts) != 1 || f.hosts[0] != "192.168.1.10 nas.lan" {
		t.Errorf("hosts = %v, want the new mapping only", f.hosts)
	}
}

func TestLocalDNS_V6DoesNotTouchV4(t *testing.T) {
	// An AAAA record for the same hostname must not replace the A record.
	f := newFakePihole(t, "192.168.1.10 nas.lan")
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{Hostname: "nas.lan", IP: "fd00::10", State: "present"})
	result := m.Run(context.Background(), client, module.RunOptions{})

	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if len(f.hosts) != 2 {
		t.Errorf("hosts = %v, want both address families", f.hosts)
	}
	if result.Data["type"] != "AAAA" {
		t.Errorf("record type = %v, want AAAA", result.Data["type"])
	}
}

func TestLocalDNS_AbsentMissingIsNoOp(t *testing.T) {
	f := newFakePihole(t)
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{Hostname: "gone.lan", IP: "10.0.0.1", State: "absent"})
	result := m.Run(context.Background(), client, module.RunOptions{})

	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if result.Changed {
		t.Error("deleting a missing record reported Changed=true")
	}
	if f.mutations != 0 {
		t.Errorf("no-op delete issued %d mutations", f.mutations)
	}
}

func TestLocalDNS_CheckMode(t *testing.T) {
	f := newFakePihole(t)
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{Hostname: "nas.lan", IP: "192.168.1.10", State: "present"})
	result := m.Run(context.Background(), client, module.RunOptions{CheckMode: true})

	if !result.Changed {
		t.Error("check mode reported Changed=false for a pending add")
	}
	if f.mutations != 0 {
		t.Errorf("check mode issued %d mutations", f.mutations)
	}
	if !strings.Contains(result.Message, "would set") {
		t.Errorf("Message = %q", result.Message)
	}
}
