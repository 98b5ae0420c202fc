// Package lists manages Pi-hole blocklist and allowlist subscriptions in
// batches, with an optional gravity rebuild once the batch is applied.
package lists

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// ModuleName is the registry name for this module.
const ModuleName = "lists"

// Entry states.
const (
	StatePresent = "present"
	StateAbsent  = "absent"
)

// Entry is one subscription list to converge.
type Entry struct {
	// Address is the URL of the list.
	Address string `yaml:"address"`

	// Type is "allow" or "block". Defaults to "block".
	Type string `yaml:"type"`

	// State is "present" or "absent".
	State string `yaml:"state"`

	// Comment is an optional note stored with the list.
	Comment string `yaml:"comment"`

	// Groups lists group names; they are resolved to IDs at run time.
	Groups []string `yaml:"groups"`

	// Enabled controls whether the list is active. Defaults to true.
	Enabled *bool `yaml:"enabled"`
}

func (e Entry) enabled() bool {
	return e.Enabled == nil || *e.Enabled
}

func (e Entry) listType() pihole.ListType {
	if e.Type == "" {
		return pihole.ListBlock
	}
	return pihole.ListType(e.Type)
}

func (e Entry) validate(i int) error {
	if e.Address == "" {
		return fmt.Errorf("entry %d: address is required", i)
	}
	switch pihole.ListType(e.Type) {
	case pihole.ListAllow, pihole.ListBlock, "":
	default:
		return fmt.Errorf("entry %d (%s): invalid type %q: must be allow or block", i, e.Address, e.Type)
	}
	switch e.State {
	case StatePresent, StateAbsent:
	case "":
		return fmt.Errorf("entry %d (%s): state is required (present, absent)", i, e.Address)
	default:
		return fmt.Errorf("entry %d (%s): invalid state %q: must be present or absent", i, e.Address, e.State)
	}
	return nil
}

// Params are the task parameters for the lists module.
type Params struct {
	// Entries is the batch of subscription lists to converge.
	Entries []Entry `yaml:"entries"`

	// UpdateGravity triggers a gravity rebuild after the batch when any
	// entry changed.
	UpdateGravity bool `yaml:"update_gravity"`
}

// Validate rejects bad parameters before any network call.
func (p Params) Validate() error {
	for i, e := range p.Entries {
		if err := e.validate(i); err != nil {
			return err
		}
	}
	return nil
}

// Lists implements the module.
type Lists struct {
	params Params
}

// New creates a lists module with validated parameters.
func New(params Params) (*Lists, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Lists{params: params}, nil
}

// Factory builds the module from raw playbook parameters.
func Factory(raw *yaml.Node) (module.Module, error) {
	var p Params
	if err := module.DecodeParams(raw, &p); err != nil {
		return nil, err
	}
	return New(p)
}

// Name returns "lists".
func (l *Lists) Name() string {
	return ModuleName
}

// Run converges each subscription toward its desired state, then rebuilds
// gravity if requested and anything changed.
func (l *Lists) Run(ctx context.Context, client *pihole.Client, opts module.RunOptions) *module.Result {
	result := module.NewResult(ModuleName, "")
	result.CheckMode = opts.CheckMode

	if len(l.params.Entries) == 0 {
		result.Message = "no entries to process"
		return result
	}

	var groups []pihole.Group
	if needsGroups(l.params.Entries) {
		var err error
		groups, err = client.Groups(ctx)
		if err != nil {
			opts.Log().Warn("failed to fetch groups, group names will be ignored",
				slog.String("error", err.Error()),
			)
		}
	}

	for _, entry := range l.params.Entries {
		item := l.processEntry(ctx, client, entry, groups, opts)
		result.AddItem(item)
	}

	if l.params.UpdateGravity && result.Changed && !opts.CheckMode {
		resp, err := client.RunGravity(ctx)
		item := module.ItemResult{
			Name:     "gravity",
			Action:   module.ItemUpdated,
			Changed:  true,
			Success:  err == nil,
			Response: resp,
		}
		if err != nil {
			item.Error = fmt.Sprintf("running gravity: %v", err)
			item.Changed = false
			item.Action = module.ItemFailed
		}
		result.AddItem(item)
	}

	failed := len(result.FailedItems())
	result.Message = fmt.Sprintf("processed %d entries, %d failed", len(result.Items), failed)
	if failed == len(result.Items) && failed > 0 {
		result.Success = false
		result.Error = "all entries failed"
	}

	return result
}

func needsGroups(entries []Entry) bool {
	for _, e := range entries {
		if len(e.Groups) > 0 {
			return true
		}
	}
	return false
}

func (l *Lists) processEntry(ctx context.Context, client *pihole.Client, entry Entry, groups []pihole.Group, opts module.RunOptions) module.ItemResult {
	item := module.ItemResult{
		Name:    entry.Address,
		Success: true,
	}

	typ := entry.listType()

	groupIDs, missing := pihole.ResolveGroupIDs(groups, entry.Groups)
	if len(missing) > 0 {
		opts.Log().Warn("unknown groups ignored",
			slog.String("address", entry.Address),
			slog.String("groups", strings.Join(missing, ", ")),
		)
	}

	existing, err := client.GetList(ctx, entry.Address, typ)
	if err != nil && !pihole.IsNotFound(err) {
		item.Success = false
		item.Action = module.ItemFailed
		item.Error = fmt.Sprintf("looking up list: %v", err)
		return item
	}

	desired := pihole.List{
		Address: entry.Address,
		Type:    typ,
		Comment: entry.Comment,
		Groups:  groupIDs,
		Enabled: entry.enabled(),
	}

	switch {
	case entry.State == StatePresent && existing == nil:
		item.Action = module.ItemAdded
		if opts.CheckMode {
			item.Changed = true
			return item
		}
		resp, addErr := client.AddList(ctx, desired)
		item.Response = resp
		if addErr != nil {
			return failItem(item, "adding list", addErr)
		}
		item.Changed = true

	case entry.State == StatePresent:
		if !needsUpdate(*existing, desired, entry.Comment != "") {
			item.Action = module.ItemUnchanged
			return item
		}
		item.Action = module.ItemUpdated
		if opts.CheckMode {
			item.Changed = true
			return item
		}
		resp, updErr := client.UpdateList(ctx, desired)
		item.Response = resp
		if updErr != nil {
			return failItem(item, "updating list", updErr)
		}
		item.Changed = true

	case existing != nil:
		item.Action = module.ItemDeleted
		if opts.CheckMode {
			item.Changed = true
			return item
		}
		if delErr := client.DeleteList(ctx, entry.Address, typ); delErr != nil {
			return failItem(item, "deleting list", delErr)
		}
		item.Changed = true

	default:
		// Absent and already missing.
		item.Action = module.ItemUnchanged
	}

	return item
}

// needsUpdate compares the live subscription with the desired one. The
// comment only participates when the entry set one.
func needsUpdate(existing, desired pihole.List, compareComment bool) bool {
	if compareComment && existing.Comment != desired.Comment {
		return true
	}
	if existing.Enabled != desired.Enabled {
		return true
	}
	if len(desired.Groups) > 0 && !sameGroups(existing.Groups, desired.Groups) {
		return true
	}
	return false
}

func sameGroups(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}

func failItem(item module.ItemResult, op string, err error) module.ItemResult {
	item.Success = false
	item.Changed = false
	item.Action = module.ItemFailed
	item.Error = fmt.Sprintf("%s: %v", op, err)
	return item
}
