// Package blocking controls the DNS blocking state of a Pi-hole instance:
// enable, disable (optionally on a timer), or read the current status.
package blocking

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// ModuleName is the registry name for this module.
const ModuleName = "blocking"

// Actions accepted by the blocking module.
const (
	ActionEnable  = "enable"
	ActionDisable = "disable"
	ActionStatus  = "status"
)

// Params are the task parameters for the blocking module.
type Params struct {
	// Action is one of "enable", "disable", "status".
	Action string `yaml:"action"`

	// Timer makes an enable/disable temporary: the appliance reverts
	// after this many seconds. Zero means permanent.
	Timer int `yaml:"timer"`
}

// Validate rejects bad parameters before any network call.
func (p Params) Validate() error {
	switch p.Action {
	case ActionEnable, ActionDisable, ActionStatus:
	case "":
		return fmt.Errorf("action is required (enable, disable, status)")
	default:
		return fmt.Errorf("invalid action %q: must be enable, disable, or status", p.Action)
	}

	if p.Timer < 0 {
		return fmt.Errorf("timer must be non-negative")
	}
	if p.Action == ActionStatus && p.Timer > 0 {
		return fmt.Errorf("timer is not valid with action status")
	}

	return nil
}

// Blocking implements the module.
type Blocking struct {
	params Params
}

// New creates a blocking module with validated parameters.
func New(params Params) (*Blocking, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Blocking{params: params}, nil
}

// Factory builds the module from raw playbook parameters.
func Factory(raw *yaml.Node) (module.Module, error) {
	var p Params
	if err := module.DecodeParams(raw, &p); err != nil {
		return nil, err
	}
	return New(p)
}

// Name returns "blocking".
func (b *Blocking) Name() string {
	return ModuleName
}

// Run reads the current blocking state and applies the requested action.
// Enabling when already enabled with no active timer is a no-op; the same
// holds for disabling when already disabled.
func (b *Blocking) Run(ctx context.Context, client *pihole.Client, opts module.RunOptions) *module.Result {
	result := module.NewResult(ModuleName, b.params.Action)
	result.CheckMode = opts.CheckMode

	status, err := client.Blocking(ctx)
	if err != nil {
		return result.Fail(fmt.Errorf("fetching blocking status: %w", err))
	}

	result.Data = statusData(status)

	if b.params.Action == ActionStatus {
		result.Message = fmt.Sprintf("blocking is %s", status.Blocking)
		return result
	}

	want := b.params.Action == ActionEnable

	// Already in the desired steady state: nothing to do. An active timer
	// means the current state is temporary, so the request still applies.
	if status.Enabled() == want && !status.HasTimer() {
		result.Message = fmt.Sprintf("blocking already %s", status.Blocking)
		return result
	}

	if opts.CheckMode {
		result.Changed = true
		result.Message = checkMessage(b.params.Action, b.params.Timer, client.BaseURL())
		result.Data = hypotheticalData(want, b.params.Timer)
		return result
	}

	newStatus, err := client.SetBlocking(ctx, want, b.params.Timer)
	if err != nil {
		return result.Fail(fmt.Errorf("setting blocking: %w", err))
	}

	opts.Log().Info("blocking state changed",
		slog.String("action", b.params.Action),
		slog.Int("timer", b.params.Timer),
	)

	result.Changed = true
	result.Message = fmt.Sprintf("blocking %sd", b.params.Action)
	result.Data = statusData(newStatus)
	return result
}

func statusData(s pihole.BlockingStatus) map[string]any {
	data := map[string]any{"blocking": s.Blocking}
	if s.HasTimer() {
		data["timer"] = s.Timer
	}
	return data
}

func hypotheticalData(enabled bool, timer int) map[string]any {
	state := pihole.BlockingDisabled
	if enabled {
		state = pihole.BlockingEnabled
	}
	data := map[string]any{"blocking": state}
	if timer > 0 {
		data["timer"] = float64(timer)
	}
	return data
}

func checkMessage(action string, timer int, target string) string {
	if timer > 0 {
		return fmt.Sprintf("would %s blocking on %s for %d seconds", action, target, timer)
	}
	return fmt.Sprintf("would %s blocking on %s", action, target)
}
