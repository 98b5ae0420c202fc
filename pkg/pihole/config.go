package pihole

import (
	"context"
	"fmt"
	"net/http"
)

// Config returns the full appliance configuration. With detailed set, the
// API includes descriptions and allowed values for every key.
func (c *Client) Config(ctx context.Context, detailed bool) (map[string]any, error) {
	path := "/api/config"
	if detailed {
		path += "?detailed=true"
	}
	out, err := c.getJSON(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetching config: %w", err)
	}
	return out, nil
}

// ConfigSection returns a single configuration subtree, e.g. "dns" or
// "webserver".
func (c *Client) ConfigSection(ctx context.Context, section string, detailed bool) (map[string]any, error) {
	path := "/api/config/" + pathEscape(section)
	if detailed {
		path += "?detailed=true"
	}
	out, err := c.getJSON(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetching config section %s: %w", section, err)
	}
	return out, nil
}

// PatchConfig applies a partial configuration update. Keys use the API's
// nested layout, e.g. {"dns": {"bogusPriv": true}}.
func (c *Client) PatchConfig(ctx context.Context, changes map[string]any) (map[string]any, error) {
	payload := map[string]any{"config": changes}
	body, err := c.doRequest(ctx, http.MethodPatch, "/api/config", payload)
	if err != nil {
		return nil, fmt.Errorf("updating config: %w", err)
	}
	return decodeBody(body)
}

// AddConfigItem appends a value to an array-typed configuration element,
// e.g. element "dns/upstreams", value "8.8.8.8".
func (c *Client) AddConfigItem(ctx context.Context, element, value string) (map[string]any, error) {
	path := fmt.Sprintf("/api/config/%s/%s", element, pathEscape(value))
	body, err := c.doRequest(ctx, http.MethodPut, path, nil)
	if err != nil {
		return nil, fmt.Errorf("adding config item: %w", err)
	}
	return decodeBody(body)
}

// DeleteConfigItem removes a value from an array-typed configuration element.
func (c *Client) DeleteConfigItem(ctx context.Context, element, value string) error {
	path := fmt.Sprintf("/api/config/%s/%s", element, pathEscape(value))
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("deleting config item: %w", err)
	}
	return nil
}
