// Package stats reads Pi-hole query statistics and history. Every metric
// is a pure read; the module never reports a change.
package stats

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// ModuleName is the registry name for this module.
const ModuleName = "stats"

// Metrics accepted by the stats module.
const (
	MetricSummary          = "summary"
	MetricQueryTypes       = "query_types"
	MetricTopClients       = "top_clients"
	MetricTopDomains       = "top_domains"
	MetricUpstreams        = "upstreams"
	MetricRecentBlocked    = "recent_blocked"
	MetricHistory          = "history"
	MetricHistoryClients   = "history_clients"
	MetricQueries          = "queries"
	MetricQuerySuggestions = "query_suggestions"
)

var validMetrics = map[string]bool{
	MetricSummary:          true,
	MetricQueryTypes:       true,
	MetricTopClients:       true,
	MetricTopDomains:       true,
	MetricUpstreams:        true,
	MetricRecentBlocked:    true,
	MetricHistory:          true,
	MetricHistoryClients:   true,
	MetricQueries:          true,
	MetricQuerySuggestions: true,
}

// Params are the task parameters for the stats module.
type Params struct {
	// Metric selects which statistic to fetch.
	Metric string `yaml:"metric"`

	// Blocked restricts top_clients/top_domains to blocked queries.
	Blocked bool `yaml:"blocked"`

	// Count limits top_clients/top_domains/recent_blocked entries.
	Count int `yaml:"count"`

	// Clients limits how many clients history_clients separates out.
	Clients int `yaml:"clients"`

	// Length limits how many query-log entries are returned.
	Length int `yaml:"length"`

	// Cursor resumes a paginated query-log fetch.
	Cursor string `yaml:"cursor"`

	// From and Until bound the query log by Unix timestamp.
	From  int64 `yaml:"from"`
	Until int64 `yaml:"until"`

	// Domain, Client, and Upstream filter the query log.
	Domain   string `yaml:"domain"`
	Client   string `yaml:"client"`
	Upstream string `yaml:"upstream"`
}

// Validate rejects bad parameters before any network call.
func (p Params) Validate() error {
	if p.Metric == "" {
		return fmt.Errorf("metric is required")
	}
	if !validMetrics[p.Metric] {
		return fmt.Errorf("invalid metric %q: must be one of summary, query_types, top_clients, top_domains, upstreams, recent_blocked, history, history_clients, queries, query_suggestions", p.Metric)
	}
	if p.Count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	if p.Length < 0 {
		return fmt.Errorf("length must not be negative")
	}
	return nil
}

// Stats implements the module.
type Stats struct {
	params Params
}

// New creates a stats module with validated parameters.
func New(params Params) (*Stats, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Stats{params: params}, nil
}

// Factory builds the module from raw playbook parameters.
func Factory(raw *yaml.Node) (module.Module, error) {
	var p Params
	if err := module.DecodeParams(raw, &p); err != nil {
		return nil, err
	}
	return New(p)
}

// Name returns "stats".
func (s *Stats) Name() string {
	return ModuleName
}

// Run fetches the selected metric. Changed is always false; check mode
// behaves identically to a normal run since nothing is mutated.
func (s *Stats) Run(ctx context.Context, client *pihole.Client, opts module.RunOptions) *module.Result {
	result := module.NewResult(ModuleName, s.params.Metric)
	result.CheckMode = opts.CheckMode

	data, err := s.fetch(ctx, client)
	if err != nil {
		return result.Fail(err)
	}

	result.Data = data
	result.Message = fmt.Sprintf("fetched %s", s.params.Metric)
	return result
}

func (s *Stats) fetch(ctx context.Context, client *pihole.Client) (map[string]any, error) {
	top := pihole.TopFilter{Blocked: s.params.Blocked, Count: s.params.Count}

	switch s.params.Metric {
	case MetricSummary:
		return client.StatsSummary(ctx)
	case MetricQueryTypes:
		return client.QueryTypes(ctx)
	case MetricTopClients:
		return client.TopClients(ctx, top)
	case MetricTopDomains:
		return client.TopDomains(ctx, top)
	case MetricUpstreams:
		return client.Upstreams(ctx)
	case MetricRecentBlocked:
		return client.RecentBlocked(ctx, s.params.Count)
	case MetricHistory:
		return client.History(ctx)
	case MetricHistoryClients:
		return client.HistoryClients(ctx, s.params.Clients)
	case MetricQueries:
		return client.Queries(ctx, pihole.QueryFilter{
			Length:   s.params.Length,
			Cursor:   s.params.Cursor,
			From:     s.params.From,
			Until:    s.params.Until,
			Domain:   s.params.Domain,
			Client:   s.params.Client,
			Upstream: s.params.Upstream,
		})
	case MetricQuerySuggestions:
		return client.QuerySuggestions(ctx)
	}

	// Unreachable: New validated the metric.
	return nil, fmt.Errorf("unknown metric %q", s.params.Metric)
}
