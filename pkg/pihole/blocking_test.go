package pihole

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func TestClient_Blocking(t *testing.T) {
	server := newTestServer(t, "pw", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/dns/blocking" && r.Method == http.MethodGet {
			// Pi-hole reports a null timer when no countdown is active.
			_, _ = w.Write([]byte(`{"blocking":"enabled","timer":null}`))
			return
		}
		http.NotFound(w, r)
	})
	defer server.Close()

	client := New(server.URL, "pw")
	status, err := client.Blocking(context.Background())
	if err != nil {
		t.Fatalf("Blocking() error = %v", err)
	}
	if !status.Enabled() {
		t.Error("Enabled() = false, want true")
	}
	if status.HasTimer() {
		t.Error("HasTimer() = true for null timer")
	}
}

func TestClient_SetBlocking(t *testing.T) {
	var gotBody map[string]any
	server := newTestServer(t, "pw", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/dns/blocking" && r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_, _ = w.Write([]byte(`{"blocking":"disabled","timer":300}`))
			return
		}
		http.NotFound(w, r)
	})
	defer server.Close()

	client := New(server.URL, "pw")
	status, err := client.SetBlocking(context.Background(), false, 300)
	if err != nil {
		t.Fatalf("SetBlocking() error = %v", err)
	}
	if status.Enabled() {
		t.Error("Enabled() = true after disable")
	}
	if status.Timer != 300 {
		t.Errorf("Timer = %v, want 300", status.Timer)
	}
	if gotBody["blocking"] != false {
		t.Errorf("posted blocking = %v, want false", gotBody["blocking"])
	}
	if gotBody["timer"] != float64(300) {
		t.Errorf("posted timer = %v, want 300", gotBody["timer"])
	}
}

func TestClient_SetBlocking_NoTimer(t *testing.T) {
	var gotBody map[string]any
	server := newTestServer(t, "pw", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"blocking":"enabled","timer":null}`))
	})
	defer server.Close()

	client := New(server.URL, "pw")
	if _, err := client.SetBlocking(context.Background(), true, 0); err != nil {
		t.Fatalf("SetBlocking() error = %v", err)
	}
	// A zero timer must be sent as null so the change is permanent.
	if gotBody["timer"] != nil {
		t.Errorf("posted timer = %v, want null", gotBody["timer"])
	}
}
