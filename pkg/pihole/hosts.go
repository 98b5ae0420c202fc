package pihole

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// HostRecord is a local DNS entry from the appliance's dns.hosts config.
// Pi-hole stores A and AAAA entries in the same hosts array; the record
// type is derived from the address family.
type HostRecord struct {
	Hostname string
	IP       string
}

// IsIPv6 reports whether the record maps to an AAAA entry.
func (r HostRecord) IsIPv6() bool {
	ip := net.ParseIP(r.IP)
	return ip != nil && strings.Contains(r.IP, ":")
}

// hostValue is the wire format of a dns.hosts entry: "IP HOSTNAME".
func (r HostRecord) hostValue() string {
	return fmt.Sprintf("%s %s", r.IP, r.Hostname)
}

// ListHosts returns all local DNS entries.
func (c *Client) ListHosts(ctx context.Context) ([]HostRecord, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/config/dns/hosts", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching hosts: %w", err)
	}

	var resp struct {
		Config struct {
			DNS struct {
				Hosts []string `json:"hosts"`
			} `json:"dns"`
		} `json:"config"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing hosts config: %w", err)
	}

	var records []HostRecord
	for _, entry := range resp.Config.DNS.Hosts {
		records = append(records, parseHostEntry(entry)...)
	}

	return records, nil
}

// parseHostEntry parses a dns.hosts entry.
// Format: "IP HOSTNAME [HOSTNAME ...]"
func parseHostEntry(entry string) []HostRecord {
	parts := strings.Fields(entry)
	if len(parts) < 2 {
		return nil
	}

	ip := parts[0]
	var records []HostRecord
	for _, hostname := range parts[1:] {
		records = append(records, HostRecord{Hostname: hostname, IP: ip})
	}

	return records
}

// AddHost creates a local DNS entry. Adding an entry that already exists
// is not an error.
func (c *Client) AddHost(ctx context.Context, r HostRecord) error {
	path := "/api/config/dns/hosts/" + pathEscape(r.hostValue())
	_, err := c.doRequest(ctx, http.MethodPut, path, nil)
	if err != nil {
		if IsConflict(err) {
			return nil
		}
		return fmt.Errorf("adding host entry: %w", err)
	}
	return nil
}

// DeleteHost removes a local DNS entry. Deleting a missing entry is not
// an error.
func (c *Client) DeleteHost(ctx context.Context, r HostRecord) error {
	path := "/api/config/dns/hosts/" + pathEscape(r.hostValue())
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("deleting host entry: %w", err)
	}
	return nil
}
