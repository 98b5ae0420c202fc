package netinfo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

func TestParams_Validate(t *testing.T) {
	for _, info := range []string{InfoFTL, InfoInterfaces, InfoDevices} {
		if _, err := New(Params{Info: info}); err != nil {
			t.Errorf("New(%s) error = %v", info, err)
		}
	}
	if _, err := New(Params{}); err == nil {
		t.Error("New() with no selector succeeded")
	}
	if _, err := New(Params{Info: "routes"}); err == nil {
		t.Error("New(routes) succeeded, want validation error")
	}
}

func TestNetInfo_Dispatch(t *testing.T) {
	tests := []struct {
		info string
		path string
	}{
		{InfoFTL, "/api/info/ftl"},
		{InfoInterfaces, "/api/network/interfaces"},
		{InfoDevices, "/api/network/devices"},
	}

	for _, tt := range tests {
		t.Run(tt.info, func(t *testing.T) {
			hits := map[string]int{}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/api/auth" {
					_ = json.NewEncoder(w).Encode(map[string]any{
						"session": map[string]any{"valid": true, "sid": "sid", "validity": 300},
					})
					return
				}
				hits[r.URL.Path]++
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
			}))
			t.Cleanup(server.Close)
			client := pihole.New(server.URL, "pw")

			m, _ := New(Params{Info: tt.info})
			result := m.Run(context.Background(), client, module.RunOptions{})

			if !result.Success {
				t.Fatalf("Run() failed: %s", result.Error)
			}
			if result.Changed {
				t.Error("diagnostic read reported Changed=true")
			}
			if hits[tt.path] != 1 {
				t.Errorf("path %s hit %d times, want 1", tt.path, hits[tt.path])
			}
		})
	}
}
