package pihole

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DomainType selects the allow or deny list.
type DomainType string

const (
	DomainAllow DomainType = "allow"
	DomainDeny  DomainType = "deny"
)

// DomainKind selects exact-match or regex entries.
type DomainKind string

const (
	KindExact DomainKind = "exact"
	KindRegex DomainKind = "regex"
)

// Domain is a single allow/deny rule.
type Domain struct {
	Domain  string     `json:"domain"`
	Type    DomainType `json:"type"`
	Kind    DomainKind `json:"kind"`
	Comment string     `json:"comment,omitempty"`
	Groups  []int      `json:"groups,omitempty"`
	Enabled bool       `json:"enabled"`
	ID      int        `json:"id,omitempty"`
}

// domainListResponse is the envelope for /api/domains reads.
type domainListResponse struct {
	Domains []Domain `json:"domains"`
}

func domainPath(typ DomainType, kind DomainKind, domain string) string {
	p := fmt.Sprintf("/api/domains/%s/%s", typ, kind)
	if domain != "" {
		p += "/" + pathEscape(domain)
	}
	return p
}

// GetDomain looks up a single domain entry. Returns ErrNotFound when the
// entry does not exist.
func (c *Client) GetDomain(ctx context.Context, domain string, typ DomainType, kind DomainKind) (*Domain, error) {
	body, err := c.doRequest(ctx, http.MethodGet, domainPath(typ, kind, domain), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching domain: %w", err)
	}

	var resp domainListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing domain response: %w", err)
	}
	if len(resp.Domains) == 0 {
		return nil, fmt.Errorf("domain %s: %w", domain, ErrNotFound)
	}

	d := resp.Domains[0]
	return &d, nil
}

// domainPayload is the write body for add/update operations.
type domainPayload struct {
	Domain  string `json:"domain,omitempty"`
	Comment string `json:"comment,omitempty"`
	Groups  []int  `json:"groups,omitempty"`
	Enabled bool   `json:"enabled"`
}

// AddDomain creates a new domain entry.
func (c *Client) AddDomain(ctx context.Context, d Domain) (map[string]any, error) {
	payload := domainPayload{
		Domain:  d.Domain,
		Comment: d.Comment,
		Groups:  d.Groups,
		Enabled: d.Enabled,
	}
	body, err := c.doRequest(ctx, http.MethodPost, domainPath(d.Type, d.Kind, ""), payload)
	if err != nil {
		return nil, fmt.Errorf("adding domain: %w", err)
	}
	return decodeBody(body)
}

// UpdateDomain replaces comment, groups, and enabled state of an existing entry.
func (c *Client) UpdateDomain(ctx context.Context, d Domain) (map[string]any, error) {
	payload := domainPayload{
		Comment: d.Comment,
		Groups:  d.Groups,
		Enabled: d.Enabled,
	}
	body, err := c.doRequest(ctx, http.MethodPut, domainPath(d.Type, d.Kind, d.Domain), payload)
	if err != nil {
		return nil, fmt.Errorf("updating domain: %w", err)
	}
	return decodeBody(body)
}

// DeleteDomain removes a domain entry.
func (c *Client) DeleteDomain(ctx context.Context, domain string, typ DomainType, kind DomainKind) error {
	_, err := c.doRequest(ctx, http.MethodDelete, domainPath(typ, kind, domain), nil)
	if err != nil {
		return fmt.Errorf("deleting domain: %w", err)
	}
	return nil
}
