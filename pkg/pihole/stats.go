package pihole

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// QueryFilter narrows the query-log endpoint. Zero values are omitted
// from the request.
type QueryFilter struct {
	Length   int
	Cursor   string
	From     int64
	Until    int64
	Domain   string
	Client   string
	Upstream string
}

func (f QueryFilter) values() url.Values {
	v := url.Values{}
	if f.Length > 0 {
		v.Set("length", strconv.Itoa(f.Length))
	}
	if f.Cursor != "" {
		v.Set("cursor", f.Cursor)
	}
	if f.From > 0 {
		v.Set("from", strconv.FormatInt(f.From, 10))
	}
	if f.Until > 0 {
		v.Set("until", strconv.FormatInt(f.Until, 10))
	}
	if f.Domain != "" {
		v.Set("domain", f.Domain)
	}
	if f.Client != "" {
		v.Set("client", f.Client)
	}
	if f.Upstream != "" {
		v.Set("upstream", f.Upstream)
	}
	return v
}

// TopFilter narrows the top-clients and top-domains endpoints.
type TopFilter struct {
	// Blocked restricts results to blocked queries when set.
	Blocked bool

	// Count limits the number of returned entries; 0 uses the API default.
	Count int
}

func (f TopFilter) query() string {
	v := url.Values{}
	if f.Blocked {
		v.Set("blocked", "true")
	}
	if f.Count > 0 {
		v.Set("count", strconv.Itoa(f.Count))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// StatsSummary returns the overview counters: total and blocked queries,
// percent blocked, gravity size, client counts.
func (c *Client) StatsSummary(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/api/stats/summary")
}

// QueryTypes returns the distribution of query types (A, AAAA, PTR, ...).
func (c *Client) QueryTypes(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/api/stats/query_types")
}

// TopClients returns the most active clients.
func (c *Client) TopClients(ctx context.Context, f TopFilter) (map[string]any, error) {
	return c.getJSON(ctx, "/api/stats/top_clients"+f.query())
}

// TopDomains returns the most queried domains.
func (c *Client) TopDomains(ctx context.Context, f TopFilter) (map[string]any, error) {
	return c.getJSON(ctx, "/api/stats/top_domains"+f.query())
}

// Upstreams returns per-upstream resolver statistics.
func (c *Client) Upstreams(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/api/stats/upstreams")
}

// RecentBlocked returns the most recently blocked domains.
func (c *Client) RecentBlocked(ctx context.Context, count int) (map[string]any, error) {
	path := "/api/stats/recent_blocked"
	if count > 0 {
		path += "?count=" + strconv.Itoa(count)
	}
	return c.getJSON(ctx, path)
}

// History returns the activity graph data (queries over time).
func (c *Client) History(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/api/history")
}

// HistoryClients returns per-client activity over time. clients limits how
// many clients are separated out; 0 returns all of them.
func (c *Client) HistoryClients(ctx context.Context, clients int) (map[string]any, error) {
	path := "/api/history/clients"
	if clients > 0 {
		path += "?N=" + strconv.Itoa(clients)
	}
	return c.getJSON(ctx, path)
}

// Queries returns entries from the query log, newest first.
func (c *Client) Queries(ctx context.Context, f QueryFilter) (map[string]any, error) {
	path := "/api/queries"
	if v := f.values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	out, err := c.getJSON(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetching queries: %w", err)
	}
	return out, nil
}

// QuerySuggestions returns filter suggestions for the query log.
func (c *Client) QuerySuggestions(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/api/queries/suggestions")
}
