package lists

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

// fakePihole tracks subscription lists keyed by address.
type fakePihole struct {
	*httptest.Server
	lists        map[string]map[string]any
	mutations    int
	gravityCalls int
}

func newFakePihole(t *testing.T) *fakePihole {
	t.Helper()
	f := &fakePihole{lists: map[string]map[string]any{}}

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/auth":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{"valid": true, "sid": "sid", "validity": 300},
			})

		case r.URL.Path == "/api/action/gravity":
			f.gravityCalls++
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "success"})

		case r.URL.Path == "/api/lists" && r.Method == http.MethodPost:
			f.mutations++
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.lists[body["address"].(string)] = body
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{})

		case strings.HasPrefix(r.URL.Path, "/api/lists/"):
			address, _ := unescapeSegment(strings.TrimPrefix(r.URL.EscapedPath(), "/api/lists/"))
			switch r.Method {
			case http.MethodGet:
				if l, ok := f.lists[address]; ok {
					_ = json.NewEncoder(w).Encode(map[string]any{"lists": []map[string]any{l}})
					return
				}
				_ = json.NewEncoder(w).Encode(map[string]any{"lists": []any{}})
			case http.MethodPut:
				f.mutations++
				var body map[string]any
				_ = json.NewDecoder(r.Body).Decode(&body)
				body["address"] = address
				f.lists[address] = body
				_ = json.NewEncoder(w).Encode(map[string]any{})
			case http.MethodDelete:
				f.mutations++
				delete(f.lists, address)
				w.WriteHeader(http.StatusNoContent)
			}

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Server.Close)
	return f
}

func unescapeSegment(s string) (string, error) {
	r := strings.NewReplacer("%3A", ":", "%2F", "/")
	return r.Replace(s), nil
}

func (f *fakePihole) add(address string, enabled bool, comment string) {
	f.lists[address] = map[string]any{
		"address": address, "type": "block", "enabled": enabled, "comment": comment,
	}
}

func TestParams_Validate(t *testing.T) {
	ok := Entry{Address: "https://lists.example.com/ads.txt", State: "present"}
	if _, err := New(Params{Entries: []Entry{ok}}); err != nil {
		t.Errorf("New() error = %v", err)
	}

	bad := []Entry{
		{State: "present"},
		{Address: "https://x", State: ""},
		{Address: "https://x", State: "maybe"},
		{Address: "https://x", State: "present", Type: "deny"},
	}
	for i, e := range bad {
		if _, err := New(Params{Entries: []Entry{e}}); err == nil {
			t.Errorf("entry %d: New() succeeded, want validation error", i)
		}
	}
}

func TestLists_AddAndRemove(t *testing.T) {
	f := newFakePihole(t)
	f.add("https://old.example.com/list.txt", true, "")
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{Entries: []Entry{
		{Address: "https://new.example.com/list.txt", State: "present"},
		{Address: "https://old.example.com/list.txt", State: "absent"},
	}})

	result := m.Run(context.Background(), client, module.RunOptions{})
	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(result.Items))
	}
	if result.Items[0].Action != module.ItemAdded {
		t.Errorf("item 0 action = %s, want added", result.Items[0].Action)
	}
	if result.Items[1].Action != module.ItemDeleted {
		t.Errorf("item 1 action = %s, want deleted", result.Items[1].Action)
	}
	if _, ok := f.lists["https://old.example.com/list.txt"]; ok {
		t.Error("absent entry still subscribed")
	}
}

func TestLists_UnchangedWhenConverged(t *testing.T) {
	f := newFakePihole(t)
	f.add("https://same.example.com/list.txt", true, "ads")
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{Entries: []Entry{
		{Address: "https://same.example.com/list.txt", State: "present", Comment: "ads"},
	}})

	result := m.Run(context.Background(), client, module.RunOptions{})
	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if result.Changed {
		t.Error("converged entry reported Changed=true")
	}
	if f.mutations != 0 {
		t.Errorf("converged entry issued %d mutations", f.mutations)
	}
}

func TestLists_UpdateOnDrift(t *testing.T) {
	f := newFakePihole(t)
	f.add("https://drift.example.com/list.txt", false, "")
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{Entries: []Entry{
		{Address: "https://drift.example.com/list.txt", State: "present"},
	}})

	result := m.Run(context.Background(), client, module.RunOptions{})
	if !result.Changed {
		t.Error("disabled list was not re-enabled")
	}
	if result.Items[0].Action != module.ItemUpdated {
		t.Errorf("action = %s, want updated", result.Items[0].Action)
	}
}

func TestLists_UpdateGravity(t *testing.T) {
	f := newFakePihole(t)
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{
		Entries:       []Entry{{Address: "https://new.example.com/list.txt", State: "present"}},
		UpdateGravity: true,
	})

	result := m.Run(context.Background(), client, module.RunOptions{})
	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if f.gravityCalls != 1 {
		t.Errorf("gravity ran %d times, want 1", f.gravityCalls)
	}
	// The rebuild shows up as its own item after the entries.
	last := result.Items[len(result.Items)-1]
	if last.Name != "gravity" || !last.Success {
		t.Errorf("last item = %+v, want successful gravity", last)
	}
}

func TestLists_UpdateGravitySkippedWhenUnchanged(t *testing.T) {
	f := newFakePihole(t)
	f.add("https://same.example.com/list.txt", true, "")
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{
		Entries:       []Entry{{Address: "https://same.example.com/list.txt", State: "present"}},
		UpdateGravity: true,
	})

	result := m.Run(context.Background(), client, module.RunOptions{})
	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if f.gravityCalls != 0 {
		t.Errorf("gravity ran %d times for a no-op batch", f.gravityCalls)
	}
}

func TestLists_CheckModeSkipsGravity(t *testing.T) {
	f := newFakePihole(t)
	client := pihole.New(f.URL, "pw")

	m, _ := New(Params{
		Entries:       []Entry{{Address: "https://new.example.com/list.txt", State: "present"}},
		UpdateGravity: true,
	})

	result := m.Run(context.Background(), client, module.RunOptions{CheckMode: true})
	if !result.Changed {
		t.Error("check mode reported Changed=false for a pending add")
	}
	if f.mutations != 0 || f.gravityCalls != 0 {
		t.Errorf("check mode touched the appliance: mutations=%d gravity=%d", f.mutations, f.gravityCalls)
	}
}

func TestNeedsUpdate(t *testing.T) {
	base := pihole.List{Address: "a", Type: pihole.ListBlock, Enabled: true, Comment: "x", Groups: []int{1, 2}}

	if needsUpdate(base, base, true) {
		t.Error("identical lists flagged for update")
	}

	disabled := base
	disabled.Enabled = false
	if !needsUpdate(base, disabled, false) {
		t.Error("enabled drift not detected")
	}

	comment := base
	comment.Comment = "y"
	if !needsUpdate(base, comment, true) {
		t.Error("comment drift not detected when comparing comments")
	}
	if needsUpdate(base, comment, false) {
		t.Error("comment compared although the entry set none")
	}

	groups := base
	groups.Groups = []int{2, 1}
	if needsUpdate(base, groups, false) {
		t.Error("group order treated as drift")
	}
	groups.Groups = []int{1, 3}
	if !needsUpdate(base, groups, false) {
		t.Error("group membership drift not detected")
	}
}
