package pihole

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ListType selects allow or block subscription lists.
type ListType string

const (
	ListAllow ListType = "allow"
	ListBlock ListType = "block"
)

// List is a subscribed blocklist or allowlist source.
type List struct {
	Address string   `json:"address"`
	Type    ListType `json:"type"`
	Comment string   `json:"comment,omitempty"`
	Groups  []int    `json:"groups,omitempty"`
	Enabled bool     `json:"enabled"`
	ID      int      `json:"id,omitempty"`
}

type listsResponse struct {
	Lists []List `json:"lists"`
}

// GetList looks up a subscription list by address. Returns ErrNotFound when
// no list with that address and type exists.
func (c *Client) GetList(ctx context.Context, address string, typ ListType) (*List, error) {
	path := fmt.Sprintf("/api/lists/%s?type=%s", pathEscape(address), typ)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching list: %w", err)
	}

	var resp listsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing list response: %w", err)
	}
	if len(resp.Lists) == 0 {
		return nil, fmt.Errorf("list %s: %w", address, ErrNotFound)
	}

	l := resp.Lists[0]
	return &l, nil
}

// listPayload is the write body for add/update operations.
type listPayload struct {
	Address string   `json:"address,omitempty"`
	Type    ListType `json:"type"`
	Comment string   `json:"comment,omitempty"`
	Groups  []int    `json:"groups,omitempty"`
	Enabled bool     `json:"enabled"`
}

// AddList subscribes a new list.
func (c *Client) AddList(ctx context.Context, l List) (map[string]any, error) {
	payload := listPayload{
		Address: l.Address,
		Type:    l.Type,
		Comment: l.Comment,
		Groups:  l.Groups,
		Enabled: l.Enabled,
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/api/lists", payload)
	if err != nil {
		return nil, fmt.Errorf("adding list: %w", err)
	}
	return decodeBody(body)
}

// UpdateList replaces comment, groups, and enabled state of an existing list.
func (c *Client) UpdateList(ctx context.Context, l List) (map[string]any, error) {
	payload := listPayload{
		Type:    l.Type,
		Comment: l.Comment,
		Groups:  l.Groups,
		Enabled: l.Enabled,
	}
	path := "/api/lists/" + pathEscape(l.Address)
	body, err := c.doRequest(ctx, http.MethodPut, path, payload)
	if err != nil {
		return nil, fmt.Errorf("updating list: %w", err)
	}
	return decodeBody(body)
}

// DeleteList unsubscribes a list.
func (c *Client) DeleteList(ctx context.Context, address string, typ ListType) error {
	path := fmt.Sprintf("/api/lists/%s?type=%s", pathEscape(address), typ)
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("deleting list: %w", err)
	}
	return nil
}
