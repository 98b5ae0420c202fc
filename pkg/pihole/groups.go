package pihole

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Group is a Pi-hole client group.
type Group struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
	Enabled bool   `json:"enabled"`
}

type groupsResponse struct {
	Groups []Group `json:"groups"`
}

// Groups returns all configured client groups.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/groups", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching groups: %w", err)
	}

	var resp groupsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing groups response: %w", err)
	}

	return resp.Groups, nil
}

// ResolveGroupIDs maps group names to their IDs, case-insensitively.
// Names without a matching group are returned separately so callers can
// warn about them instead of failing the whole operation.
func ResolveGroupIDs(groups []Group, names []string) (ids []int, missing []string) {
	for _, name := range names {
		found := false
		for _, g := range groups {
			if strings.EqualFold(g.Name, name) {
				ids = append(ids, g.ID)
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}
	return ids, missing
}
