// Package maintenance runs one-shot system actions on a Pi-hole instance:
// flushing the ARP cache or query logs, rebuilding gravity, restarting the
// resolver.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// ModuleName is the registry name for this module.
const ModuleName = "maintenance"

// Actions accepted by the maintenance module.
const (
	ActionFlushARP   = "flush_arp"
	ActionFlushLogs  = "flush_logs"
	ActionRunGravity = "run_gravity"
	ActionRestartDNS = "restart_dns"
)

// Params are the task parameters for the maintenance module.
type Params struct {
	// Action is one of "flush_arp", "flush_logs", "run_gravity",
	// "restart_dns".
	Action string `yaml:"action"`
}

// Validate rejects bad parameters before any network call.
func (p Params) Validate() error {
	switch p.Action {
	case ActionFlushARP, ActionFlushLogs, ActionRunGravity, ActionRestartDNS:
		return nil
	case "":
		return fmt.Errorf("action is required (flush_arp, flush_logs, run_gravity, restart_dns)")
	default:
		return fmt.Errorf("invalid action %q: must be flush_arp, flush_logs, run_gravity, or restart_dns", p.Action)
	}
}

// Maintenance implements the module.
type Maintenance struct {
	params Params
}

// New creates a maintenance module with validated parameters.
func New(params Params) (*Maintenance, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Maintenance{params: params}, nil
}

// Factory builds the module from raw playbook parameters.
func Factory(raw *yaml.Node) (module.Module, error) {
	var p Params
	if err := module.DecodeParams(raw, &p); err != nil {
		return nil, err
	}
	return New(p)
}

// Name returns "maintenance".
func (m *Maintenance) Name() string {
	return ModuleName
}

// Run performs the requested action. Every maintenance action mutates
// appliance state, so a successful run always reports Changed=true.
func (m *Maintenance) Run(ctx context.Context, client *pihole.Client, opts module.RunOptions) *module.Result {
	result := module.NewResult(ModuleName, m.params.Action)
	result.CheckMode = opts.CheckMode

	if opts.CheckMode {
		result.Changed = true
		result.Message = fmt.Sprintf("would perform %s on %s", m.params.Action, client.BaseURL())
		return result
	}

	var (
		data map[string]any
		err  error
	)
	switch m.params.Action {
	case ActionFlushARP:
		data, err = client.FlushARP(ctx)
	case ActionFlushLogs:
		data, err = client.FlushLogs(ctx)
	case ActionRunGravity:
		data, err = client.RunGravity(ctx)
	case ActionRestartDNS:
		data, err = client.RestartDNS(ctx)
	}

	if err != nil {
		return result.Fail(fmt.Errorf("performing %s: %w", m.params.Action, err))
	}

	opts.Log().Info("maintenance action performed",
		slog.String("action", m.params.Action),
	)

	result.Changed = true
	result.Message = fmt.Sprintf("performed %s", m.params.Action)
	result.Data = data
	return result
}
