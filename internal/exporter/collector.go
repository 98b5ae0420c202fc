// Package exporter serves Pi-hole query statistics as Prometheus metrics.
// Each scrape fetches the live stats summary from the appliance, so the
// exporter holds no state beyond its API session.
package exporter

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// Metric names use the gravityctl_ prefix.
const namespace = "gravityctl"

// statsClient is the slice of the API client the collector needs.
type statsClient interface {
	StatsSummary(ctx context.Context) (map[string]any, error)
	Blocking(ctx context.Context) (pihole.BlockingStatus, error)
	BaseURL() string
}

// Collector scrapes the Pi-hole stats summary on each Prometheus scrape.
type Collector struct {
	client  statsClient
	timeout time.Duration
	logger  *slog.Logger

	up              *prometheus.Desc
	buildInfo       *prometheus.Desc
	queriesTotal    *prometheus.Desc
	queriesBlocked  *prometheus.Desc
	percentBlocked  *prometheus.Desc
	uniqueDomains   *prometheus.Desc
	domainsBlocked  *prometheus.Desc
	clientsActive   *prometheus.Desc
	clientsTotal    *prometheus.Desc
	blockingEnabled *prometheus.Desc
	scrapeDuration  *prometheus.Desc
}

// NewCollector creates a collector scraping the given client. version is
// stamped onto the build-info gauge.
func NewCollector(client statsClient, version string, timeout time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	labels := prometheus.Labels{"instance_url": client.BaseURL()}

	return &Collector{
		client:  client,
		timeout: timeout,
		logger:  logger,

		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "up"),
			"Whether the last stats scrape succeeded.",
			nil, labels,
		),
		buildInfo: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "build_info"),
			"Exporter build information; always 1.",
			nil, prometheus.Labels{"version": version},
		),
		queriesTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queries", "total"),
			"DNS queries handled today.",
			nil, labels,
		),
		queriesBlocked: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queries", "blocked"),
			"DNS queries blocked today.",
			nil, labels,
		),
		percentBlocked: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queries", "percent_blocked"),
			"Percentage of queries blocked today.",
			nil, labels,
		),
		uniqueDomains: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queries", "unique_domains"),
			"Distinct domains queried today.",
			nil, labels,
		),
		domainsBlocked: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "gravity", "domains"),
			"Domains on the blocklist after the last gravity run.",
			nil, labels,
		),
		clientsActive: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "clients", "active"),
			"Clients seen in the current window.",
			nil, labels,
		),
		clientsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "clients", "total"),
			"Clients known to the appliance.",
			nil, labels,
		),
		blockingEnabled: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "blocking", "enabled"),
			"Whether DNS blocking is enabled.",
			nil, labels,
		),
		scrapeDuration: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "scrape", "duration_seconds"),
			"Time taken to fetch the stats summary.",
			nil, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.buildInfo
	ch <- c.queriesTotal
	ch <- c.queriesBlocked
	ch <- c.percentBlocked
	ch <- c.uniqueDomains
	ch <- c.domainsBlocked
	ch <- c.clientsActive
	ch <- c.clientsTotal
	ch <- c.blockingEnabled
	ch <- c.scrapeDuration
}

// Collect implements prometheus.Collector. A failed scrape emits only
// gravityctl_up=0 so dashboards can distinguish "down" from "zero".
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	ch <- prometheus.MustNewConstMetric(c.buildInfo, prometheus.GaugeValue, 1)

	start := time.Now()
	summary, err := c.client.StatsSummary(ctx)
	elapsed := time.Since(start)

	ch <- prometheus.MustNewConstMetric(c.scrapeDuration, prometheus.GaugeValue, elapsed.Seconds())

	if err != nil {
		c.logger.Warn("stats scrape failed", slog.String("error", err.Error()))
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)

	queries := subMap(summary, "queries")
	ch <- prometheus.MustNewConstMetric(c.queriesTotal, prometheus.GaugeValue, numField(queries, "total"))
	ch <- prometheus.MustNewConstMetric(c.queriesBlocked, prometheus.GaugeValue, numField(queries, "blocked"))
	ch <- prometheus.MustNewConstMetric(c.percentBlocked, prometheus.GaugeValue, numField(queries, "percent_blocked"))
	ch <- prometheus.MustNewConstMetric(c.uniqueDomains, prometheus.GaugeValue, numField(queries, "unique_domains"))

	gravity := subMap(summary, "gravity")
	ch <- prometheus.MustNewConstMetric(c.domainsBlocked, prometheus.GaugeValue, numField(gravity, "domains_being_blocked"))

	clients := subMap(summary, "clients")
	ch <- prometheus.MustNewConstMetric(c.clientsActive, prometheus.GaugeValue, numField(clients, "active"))
	ch <- prometheus.MustNewConstMetric(c.clientsTotal, prometheus.GaugeValue, numField(clients, "total"))

	status, err := c.client.Blocking(ctx)
	if err != nil {
		c.logger.Warn("blocking status scrape failed", slog.String("error", err.Error()))
		return
	}
	enabled := 0.0
	if status.Enabled() {
		enabled = 1
	}
	ch <- prometheus.MustNewConstMetric(c.blockingEnabled, prometheus.GaugeValue, enabled)
}

// subMap returns a nested object of the summary document, or an empty map.
func subMap(m map[string]any, key string) map[string]any {
	if sub, ok := m[key].(map[string]any); ok {
		return sub
	}
	return map[string]any{}
}

// numField reads a numeric field. JSON numbers decode as float64; missing
// or non-numeric fields read as 0.
func numField(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}
