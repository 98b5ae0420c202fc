// Package probe verifies Pi-hole filtering from the outside: it sends a
// real DNS query to the resolver and classifies the answer, so blocking
// changes can be confirmed end to end rather than trusting the API alone.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Verdicts for a probed domain.
const (
	VerdictBlocked  = "blocked"
	VerdictResolved = "resolved"
	VerdictNXDomain = "nxdomain"
	VerdictNoData   = "nodata"
)

// Outcome is the result of probing one domain.
type Outcome struct {
	Domain  string        `json:"domain"`
	Verdict string        `json:"verdict"`
	Rcode   string        `json:"rcode"`
	Answers []string      `json:"answers,omitempty"`
	RTT     time.Duration `json:"rtt"`
}

// Prober sends DNS queries to a Pi-hole resolver.
type Prober struct {
	resolver string
	client   *dns.Client
	logger   *slog.Logger
}

// Option is a functional option for configuring the Prober.
type Option func(*Prober)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTimeout bounds a single query exchange.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Prober) {
		p.client.Timeout = timeout
	}
}

// New creates a prober against the given resolver address. A bare host
// gets the standard DNS port appended.
func New(resolver string, opts ...Option) *Prober {
	if _, _, err := net.SplitHostPort(resolver); err != nil {
		resolver = net.JoinHostPort(resolver, "53")
	}

	p := &Prober{
		resolver: resolver,
		client:   &dns.Client{Timeout: 5 * time.Second},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Check queries the resolver for the domain's A record and classifies
// the response. Pi-hole signals a block either with a null address
// (0.0.0.0 or ::) or with NXDOMAIN, depending on its blocking mode.
func (p *Prober) Check(ctx context.Context, domain string) (*Outcome, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	msg.RecursionDesired = true

	resp, rtt, err := p.client.ExchangeContext(ctx, msg, p.resolver)
	if err != nil {
		return nil, fmt.Errorf("querying %s via %s: %w", domain, p.resolver, err)
	}

	outcome := &Outcome{
		Domain: domain,
		Rcode:  dns.RcodeToString[resp.Rcode],
		RTT:    rtt,
	}

	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			outcome.Answers = append(outcome.Answers, a.A.String())
		}
		if aaaa, ok := rr.(*dns.AAAA); ok {
			outcome.Answers = append(outcome.Answers, aaaa.AAAA.String())
		}
	}

	outcome.Verdict = classify(resp.Rcode, outcome.Answers)

	p.logger.Debug("probe complete",
		slog.String("domain", domain),
		slog.String("verdict", outcome.Verdict),
		slog.Duration("rtt", rtt),
	)

	return outcome, nil
}

// classify maps a response to a verdict. NXDOMAIN is reported as its own
// verdict: it means blocked under NXDOMAIN blocking mode but also matches
// genuinely nonexistent domains, so the caller decides.
func classify(rcode int, answers []string) string {
	if rcode == dns.RcodeNameError {
		return VerdictNXDomain
	}
	if len(answers) == 0 {
		return VerdictNoData
	}
	for _, addr := range answers {
		if !isNullAddress(addr) {
			return VerdictResolved
		}
	}
	return VerdictBlocked
}

// isNullAddress reports whether the address is a null-routing sinkhole.
func isNullAddress(addr string) bool {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return false
	}
	return ip.IsUnspecified()
}
