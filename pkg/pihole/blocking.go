package pihole

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Blocking states reported by GET /api/dns/blocking.
const (
	BlockingEnabled  = "enabled"
	BlockingDisabled = "disabled"
	BlockingFailed   = "failed"
	BlockingUnknown  = "unknown"
)

// BlockingStatus is the appliance's DNS blocking state.
type BlockingStatus struct {
	// Blocking is one of "enabled", "disabled", "failed", "unknown".
	Blocking string `json:"blocking"`

	// Timer is the number of seconds until the state flips back, or 0
	// when no timer is active.
	Timer float64 `json:"timer"`
}

// Enabled reports whether blocking is currently active.
func (s BlockingStatus) Enabled() bool {
	return s.Blocking == BlockingEnabled
}

// HasTimer reports whether a temporary state change is pending.
func (s BlockingStatus) HasTimer() bool {
	return s.Timer > 0
}

// blockingResponse tolerates the API's null timer.
type blockingResponse struct {
	Blocking string   `json:"blocking"`
	Timer    *float64 `json:"timer"`
}

func (r blockingResponse) toStatus() BlockingStatus {
	s := BlockingStatus{Blocking: r.Blocking}
	if r.Timer != nil {
		s.Timer = *r.Timer
	}
	return s
}

// Blocking returns the current DNS blocking state.
func (c *Client) Blocking(ctx context.Context) (BlockingStatus, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/dns/blocking", nil)
	if err != nil {
		return BlockingStatus{}, fmt.Errorf("fetching blocking status: %w", err)
	}

	var resp blockingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return BlockingStatus{}, fmt.Errorf("parsing blocking status: %w", err)
	}

	return resp.toStatus(), nil
}

// SetBlocking enables or disables DNS blocking. A non-zero timer makes the
// change temporary: the appliance reverts after timer seconds.
func (c *Client) SetBlocking(ctx context.Context, enabled bool, timer int) (BlockingStatus, error) {
	payload := struct {
		Blocking bool `json:"blocking"`
		Timer    *int `json:"timer"`
	}{
		Blocking: enabled,
	}
	if timer > 0 {
		payload.Timer = &timer
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/api/dns/blocking", payload)
	if err != nil {
		return BlockingStatus{}, fmt.Errorf("setting blocking status: %w", err)
	}

	var resp blockingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return BlockingStatus{}, fmt.Errorf("parsing blocking response: %w", err)
	}

	return resp.toStatus(), nil
}
