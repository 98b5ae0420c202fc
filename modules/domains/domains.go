// Package domains manages Pi-hole allow/deny domain rules, exact-match or
// regex, in batches. Each entry is processed independently: one failure
// does not abort the rest of the batch.
package domains

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
const ModuleName = "domains"

// Entry states.
const (
	StatePresent = "present"
	StateAbsent  = "absent"
)

// Entry is one domain rule to converge.
type Entry struct {
	// Domain is the domain name or regex pattern.
	Domain string `yaml:"domain"`

	// Type is "allow" or "deny".
	Type string `yaml:"type"`

	// Kind is "exact" or "regex".
	Kind string `yaml:"kind"`

	// State is "present" or "absent".
	State string `yaml:"state"`

	// Comment is an optional note stored with the rule.
	Comment string `yaml:"comment"`

	// Groups lists group names; they are resolved to IDs at run time.
	Groups []string `yaml:"groups"`

	// Enabled controls whether the rule is active. Defaults to true.
	Enabled *bool `yaml:"enabled"`
}

func (e Entry) enabled() bool {
	return e.Enabled == nil || *e.Enabled
}

func (e Entry) validate(i int) error {
	if e.Domain == "" {
		return fmt.Errorf("entry %d: domain is required", i)
	}
	switch pihole.DomainType(e.Type) {
	case pihole.DomainAllow, pihole.DomainDeny:
	case "":
		return fmt.Errorf("entry %d (%s): type is required (allow, deny)", i, e.Domain)
	default:
		return fmt.Errorf("entry %d (%s): invalid type %q: must be allow or deny", i, e.Domain, e.Type)
	}
	switch pihole.DomainKind(e.Kind) {
	case pihole.KindExact, pihole.KindRegex:
	case "":
		return fmt.Errorf("entry %d (%s): kind is required (exact, regex)", i, e.Domain)
	default:
		return fmt.Errorf("entry %d (%s): invalid kind %q: must be exact or regex", i, e.Domain, e.Kind)
	}
	switch e.State {
	case StatePresent, StateAbsent:
	case "":
		return fmt.Errorf("entry %d (%s): state is required (present, absent)", i, e.Domain)
	default:
		return fmt.Errorf("entry %d (%s): invalid state %q: must be present or absent", i, e.Domain, e.State)
	}
	return nil
}

// Params are the task parameters for the domains module.
type Params struct {
	// Entries is the batch of domain rules to converge.
	Entries []Entry `yaml:"entries"`
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

// Domains implements the module.
type Domains struct {
	params Params
}

// New creates a domains module with validated parameters.
func New(params Params) (*Domains, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Domains{params: params}, nil
}

// Factory builds the module from raw playbook parameters.
func Factory(raw *yaml.Node) (module.Module, error) {
	var p Params
	if err := module.DecodeParams(raw, &p); err != nil {
		return nil, err
	}
	return New(p)
}

// Name returns "domains".
func (d *Domains) Name() string {
	return ModuleName
}

// Run converges each entry toward its desired state. A batch of N entries
// yields exactly N item results.
func (d *Domains) Run(ctx context.Context, client *pihole.Client, opts module.RunOptions) *module.Result {
	result := module.NewResult(ModuleName, "")
	result.CheckMode = opts.CheckMode

	if len(d.params.Entries) == 0 {
		result.Message = "no entries to process"
		return result
	}

	// Group names are resolved once for the whole batch. A lookup failure
	// degrades to name-less processing, matching entries that carry no
	// groups.
	var groups []pihole.Group
	if needsGroups(d.params.Entries) {
		var err error
		groups, err = client.Groups(ctx)
		if err != nil {
			opts.Log().Warn("failed to fetch groups, group names will be ignored",
				slog.String("error", err.Error()),
			)
		}
	}

	for _, entry := range d.params.Entries {
		item := d.processEntry(ctx, client, entry, groups, opts)
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

func (d *Domains) processEntry(ctx context.Context, client *pihole.Client, entry Entry, groups []pihole.Group, opts module.RunOptions) module.ItemResult {
	item := module.ItemResult{
		Name:    entry.Domain,
		Action:  ItemActionFor(entry.State),
		Success: true,
	}

	typ := pihole.DomainType(entry.Type)
	kind := pihole.DomainKind(entry.Kind)

	groupIDs, missing := pihole.ResolveGroupIDs(groups, entry.Groups)
	if len(missing) > 0 {
		opts.Log().Warn("unknown groups ignored",
			slog.String("domain", entry.Domain),
			slog.String("groups", strings.Join(missing, ", ")),
		)
	}

	exists := true
	if _, err := client.GetDomain(ctx, entry.Domain, typ, kind); err != nil {
		if !pihole.IsNotFound(err) {
			item.Success = false
			item.Action = module.ItemFailed
			item.Error = fmt.Sprintf("looking up domain: %v", err)
			return item
		}
		exists = false
	}

	rule := pihole.Domain{
		Domain:  entry.Domain,
		Type:    typ,
		Kind:    kind,
		Comment: entry.Comment,
		Groups:  groupIDs,
		Enabled: entry.enabled(),
	}

	switch {
	case entry.State == StatePresent && exists:
		item.Action = module.ItemUpdated
		if opts.CheckMode {
			item.Changed = true
			return item
		}
		resp, err := client.UpdateDomain(ctx, rule)
		item.Response = resp
		if err != nil {
			return failItem(item, "updating domain", err)
		}
		item.Changed = true

	case entry.State == StatePresent:
		item.Action = module.ItemAdded
		if opts.CheckMode {
			item.Changed = true
			return item
		}
		resp, err := client.AddDomain(ctx, rule)
		item.Response = resp
		if err != nil {
			return failItem(item, "adding domain", err)
		}
		item.Changed = true

	case entry.State == StateAbsent && exists:
		item.Action = module.ItemDeleted
		if opts.CheckMode {
			item.Changed = true
			return item
		}
		if err := client.DeleteDomain(ctx, entry.Domain, typ, kind); err != nil {
			return failItem(item, "deleting domain", err)
		}
		item.Changed = true

	default:
		// Absent and already missing.
		item.Action = module.ItemUnchanged
	}

	return item
}

// ItemActionFor gives the provisional item action for a desired state,
// used before the existing state is known.
func ItemActionFor(state string) string {
	if state == StateAbsent {
		return module.ItemDeleted
	}
	return module.ItemAdded
}

func failItem(item module.ItemResult, op string, err error) module.ItemResult {
	item.Success = false
	item.Changed = false
	item.Action = module.ItemFailed
	item.Error = fmt.Sprintf("%s: %v", op, err)
	return item
}
