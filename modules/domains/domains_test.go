package domains

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

// fakePihole tracks domain rules keyed by "type/kind/domain".
type fakePihole struct {
	*httptest.Server
	existing  map[string]bool
	mutations int
}

func newFakePihole(t *testing.T, existing ...string) *fakePihole {
	t.Helper()
	f := &fakePihole{existing: map[string]bool{}}
	for _, key := range existing {
		f.existing[key] = true
	}

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/auth":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{"valid": true, "sid": "sid", "validity": 300},
			})

		case r.URL.Path == "/api/groups":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"groups": []map[string]any{
					{"id": 0, "name": "Default", "enabled": true},
					{"id": 4, "name": "kids", "enabled": true},
				},
			})

		case strings.HasPrefix(r.URL.Path, "/api/domains/"):
			key := strings.TrimPrefix(r.URL.Path, "/api/domains/")
			switch r.Method {
			case http.MethodGet:
				if f.existing[key] {
					parts := strings.SplitN(key, "/", 3)
					_ = json.NewEncoder(w).Encode(map[string]any{
						"domains": []map[string]any{{
							"domain": parts[2], "type": parts[0], "kind": parts[1], "enabled": true,
						}},
					})
					return
				}
				_ = json.NewEncoder(w).Encode(map[string]any{"domains": []any{}})
			case http.MethodPost:
				f.mutations++
				var body map[string]any
				_ = json.NewDecoder(r.Body).Decode(&body)
				f.existing[key+"/"+body["domain"].(string)] = true
				w.WriteHeader(http.StatusCreated)
				_ = json.NewEncoder(w).Encode(map[string]any{"processed": map[string]any{}})
			case http.MethodPut:
				f.mutations++
				_ = json.NewEncoder(w).Encode(map[string]any{"processed": map[string]any{}})
			case http.MethodDelete:
				f.mutations++
				delete(f.existing, key)
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
	valid := Entry{Domain: "ads.example.com", Type: "deny", Kind: "exact", State: "present"}

	tests := []struct {
		name    string
		mutate  func(e Entry) Entry
		wantErr bool
	}{
		{"valid", func(e Entry) Entry { return e }, false},
		{"missing domain", func(e Entry) Entry { e.Domain = ""; return e }, true},
		{"missing type", func(e Entry) Entry { e.Type = ""; return e }, true},
		{"bad type", func(e Entry) Entry { e.Type = "block"; return e }, true},
		{"missing kind", func(e Entry) Entry { e.Kind = ""; return e }, true},
		{"bad kind", func(e Entry) Entry { e.Kind = "glob"; return e }, true},
		{"missing state", func(e Entry) Entry { e.State = ""; return e }, true},
		{"bad state", func(e Entry) Entry { e.State = "gone"; return e }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Params{Entries: []Entry{tt.mutate(valid)}})
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDomains_BatchYieldsOneItemPerEntry(t *testing.T) {
	f := newFakePihole(t, "deny/exact/old.example.com")
	client := pihole.New(f.URL, "pw")

	m, err := New(Params{Entries: []Entry{
		{Domain: "new.example.com", Type: "deny", Kind: "exact", State: "present"},
		{Domain: "old.example.com", Type: "deny", Kind: "exact", State: "absent"},
		{Domain: "missing.example.com", Type: "allow", Kind: "exact", State: "absent"},
	}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result := m.Run(context.Background(), client, module.RunOptions{})
	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if len(result.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(result.Items))
	}

	if result.Items[0].Action != module.ItemAdded || !result.Items[0].Changed {
		t.Errorf("item 0 = %+v, want added+changed", result.Items[0])
	}
	if result.Items[1].Action != module.ItemDeleted || !result.Items[1].Changed {
		t.Errorf("item 1 = %+v, want deleted+changed", result.Items[1])
	}
	if result.Items[2].Action != module.ItemUnchanged || result.Items[2].Changed {
		t.Errorf("item 2 = %+v, want unchanged", result.Items[2])
	}
	if !result.Changed {
		t.Error("aggregate Changed = false")
	}
}

func TestDomains_IndependentFailures(t *testing.T) {
	failDomain := "broken.example.com"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/auth":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{"valid": true, "sid": "sid", "validity": 300},
			})
		case strings.Contains(r.URL.Path, failDomain):
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"database locked"}`))
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"domains": []any{}})
		default:
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{})
		}
	}))
	t.Cleanup(server.Close)
	client := pihole.New(server.URL, "pw")

	m, _ := New(Params{Entries: []Entry{
		{Domain: failDomain, Type: "deny", Kind: "exact", State: "present"},
		{Domain: "fine.example.com", Type: "deny", Kind: "exact", State: "present"},
	}})

	result := m.Run(context.Background(), client, module.RunOptions{})

	// One entry failing must not abort the batch or fail the whole result.
	if !result.Success {
		t.Errorf("partial failure marked the whole result failed: %s", result.Error)
	}
	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(result.Items))
	}
	if result.Items[0].Success {
		t.Error("failing entry reported success")
	}
	if result.Items[0].Error == "" {
		t.Error("failing entry carries no diagnostic")
	}
	if !result.Items[1].Success || !result.Items[1].Changed {
		t.Errorf("item 1 = %+v, want added", result.Items[1])
	}
}

func TestDomains_AllFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{"valid": true, "sid": "sid", "validity": 300},
			})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	client := pihole.New(server.URL, "pw")

	m, _ := New(Params{Entries: []Entry{
		{Domain: "a.example.com", Type: "deny", Kind: "exact", State: "present"},
		{Domain: "b.example.com", Type: "deny", Kind: "exact", State: "present"},
	}})

	result := m.Run(context.Background(), client, module.RunOptions{})
	if result.Success {
		t.Error("result succeeded although every entry failed")
	}
	if len(result.Items) != 2 {
		t.Errorf("got %d items, want 2", len(result.Items))
	}
}

func TestDomains_CheckMode(t *testing.T) {
	f := newFakePihole(t)
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{Entries: []Entry{
		{Domain: "new.example.com", Type: "deny", Kind: "exact", State: "present"},
	}})

	result := m.Run(context.Background(), client, module.RunOptions{CheckMode: true})
	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if !result.Changed {
		t.Error("check mode reported Changed=false for a pending add")
	}
	if f.mutations != 0 {
		t.Errorf("check mode issued %d mutations", f.mutations)
	}
	if result.Items[0].Action != module.ItemAdded {
		t.Errorf("item action = %s, want added", result.Items[0].Action)
	}
}

func TestDomains_GroupResolution(t *testing.T) {
	f := newFakePihole(t)
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{Entries: []Entry{
		{Domain: "kids-block.example.com", Type: "deny", Kind: "exact", State: "present", Groups: []string{"KIDS", "nonexistent"}},
	}})

	result := m.Run(context.Background(), client, module.RunOptions{})
	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	// Unknown group names degrade to a warning, not a failure.
	if !result.Items[0].Success {
		t.Errorf("entry with unknown group failed: %s", result.Items[0].Error)
	}
}
