// Package localdns manages local DNS host records on the appliance: the
// "IP HOSTNAME" entries served for A and AAAA lookups on the LAN.
package localdns

import (
	"context"
	"fmt"
	"net"

	"gopkg.in/yaml.v3"

	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// ModuleName is the registry name for this module.
const ModuleName = "localdns"

// Record states.
const (
	StatePresent = "present"
	StateAbsent  = "absent"
)

// Params are the task parameters for the localdns module.
type Params struct {
	// Hostname is the fully qualified name the record answers for.
	Hostname string `yaml:"hostname"`

	// IP is the address the record points at, IPv4 or IPv6.
	IP string `yaml:"ip"`

	// State is "present" or "absent".
	State string `yaml:"state"`
}

// Validate rejects bad parameters before any network call.
func (p Params) Validate() error {
	if p.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if p.IP == "" {
		return fmt.Errorf("ip is required")
	}
	if net.ParseIP(p.IP) == nil {
		return fmt.Errorf("invalid ip %q", p.IP)
	}
	switch p.State {
	case StatePresent, StateAbsent:
		return nil
	case "":
		return fmt.Errorf("state is required (present, absent)")
	default:
		return fmt.Errorf("invalid state %q: must be present or absent", p.State)
	}
}

// LocalDNS implements the module.
type LocalDNS struct {
	params Params
}

// New creates a localdns module with validated parameters.
func New(params Params) (*LocalDNS, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &LocalDNS{params: params}, nil
}

// Factory builds the module from raw playbook parameters.
func Factory(raw *yaml.Node) (module.Module, error) {
	var p Params
	if err := module.DecodeParams(raw, &p); err != nil {
		return nil, err
	}
	return New(p)
}

// Name returns "localdns".
func (l *LocalDNS) Name() string {
	return ModuleName
}

// Run converges the record. The current entries are read first so the
// module is idempotent: a record that already matches is a no-op, and a
// hostname mapped to a different address is replaced.
func (l *LocalDNS) Run(ctx context.Context, client *pihole.Client, opts module.RunOptions) *module.Result {
	result := module.NewResult(ModuleName, l.params.State)
	result.CheckMode = opts.CheckMode

	desired := pihole.HostRecord{Hostname: l.params.Hostname, IP: l.params.IP}
	recordType := "A"
	if desired.IsIPv6() {
		recordType = "AAAA"
	}

	records, err := client.ListHosts(ctx)
	if err != nil {
		return result.Fail(err)
	}

	exact, conflicting := matchRecords(records, desired)

	switch l.params.State {
	case StatePresent:
		if exact && conflicting == nil {
			result.Message = fmt.Sprintf("%s record for %s already points to %s", recordType, desired.Hostname, desired.IP)
			return result
		}

		if opts.CheckMode {
			result.Changed = true
			result.Message = fmt.Sprintf("would set %s record %s -> %s", recordType, desired.Hostname, desired.IP)
			return result
		}

		// Remove stale mappings for the hostname in the same address
		// family before adding the new one.
		for _, stale := range conflicting {
			if err := client.DeleteHost(ctx, stale); err != nil {
				return result.Fail(fmt.Errorf("removing stale record %s -> %s: %w", stale.Hostname, stale.IP, err))
			}
		}
		if !exact {
			if err := client.AddHost(ctx, desired); err != nil {
				return result.Fail(err)
			}
		}

		result.Changed = true
		result.Message = fmt.Sprintf("%s record set: %s -> %s", recordType, desired.Hostname, desired.IP)

	case StateAbsent:
		if !exact {
			result.Message = fmt.Sprintf("%s record for %s not present", recordType, desired.Hostname)
			return result
		}

		if opts.CheckMode {
			result.Changed = true
			result.Message = fmt.Sprintf("would remove %s record %s -> %s", recordType, desired.Hostname, desired.IP)
			return result
		}

		if err := client.DeleteHost(ctx, desired); err != nil {
			return result.Fail(err)
		}

		result.Changed = true
		result.Message = fmt.Sprintf("%s record removed: %s -> %s", recordType, desired.Hostname, desired.IP)
	}

	result.Data = map[string]any{
		"hostname": desired.Hostname,
		"ip":       desired.IP,
		"type":     recordType,
	}
	return result
}

// matchRecords reports whether the exact record exists, and returns any
// records for the same hostname and address family with a different
// address.
func matchRecords(records []pihole.HostRecord, desired pihole.HostRecord) (exact bool, conflicting []pihole.HostRecord) {
	for _, r := range records {
		if r.Hostname != desired.Hostname {
			continue
		}
		if r.IsIPv6() != desired.IsIPv6() {
			continue
		}
		if r.IP == desired.IP {
			exact = true
			continue
		}
		conflicting = append(conflicting, r)
	}
	return exact, conflicting
}
