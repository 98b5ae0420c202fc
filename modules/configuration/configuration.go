// Package configuration manages Pi-hole settings: reading and patching
// the configuration tree, mutating array-typed elements, and exporting or
// importing the full teleporter archive.
package configuration

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"gitlab.bluewillows.net/root/gravityctl/pkg/backup"
	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// ModuleName is the registry name for this module.
const ModuleName = "configuration"

// Actions accepted by the configuration module.
const (
	ActionGet        = "get"
	ActionUpdate     = "update"
	ActionAddItem    = "add_item"
	ActionDeleteItem = "delete_item"
	ActionExport     = "export"
	ActionImport     = "import"
)

// Params are the task parameters for the configuration module.
type Params struct {
	// Action is one of "get", "update", "add_item", "delete_item",
	// "export", "import".
	Action string `yaml:"action"`

	// Section narrows a get to one configuration subtree, e.g. "dns".
	Section string `yaml:"section"`

	// Detailed includes per-key descriptions and allowed values in a get.
	Detailed bool `yaml:"detailed"`

	// Changes is the partial configuration applied by update.
	Changes map[string]any `yaml:"changes"`

	// Element names an array-typed configuration element for
	// add_item/delete_item, e.g. "dns/upstreams".
	Element string `yaml:"element"`

	// Value is the array element added or removed.
	Value string `yaml:"value"`

	// ExportPath is where export writes the teleporter archive: a local
	// path or an sftp:// URL.
	ExportPath string `yaml:"export_path"`

	// SSHKeyFile authenticates sftp:// export destinations.
	SSHKeyFile string `yaml:"ssh_key_file"`

	// ImportPath is the teleporter archive read by import.
	ImportPath string `yaml:"import_path"`

	// ImportOptions selects which parts of the archive to restore.
	// Nil imports everything.
	ImportOptions map[string]any `yaml:"import_options"`
}

// Validate rejects bad parameters before any network call. Each action
// checks its own required fields.
func (p Params) Validate() error {
	switch p.Action {
	case ActionGet:
	case ActionUpdate:
		if len(p.Changes) == 0 {
			return fmt.Errorf("action update requires changes")
		}
	case ActionAddItem, ActionDeleteItem:
		if p.Element == "" || p.Value == "" {
			return fmt.Errorf("action %s requires both element and value", p.Action)
		}
	case ActionExport:
		if p.ExportPath == "" {
			return fmt.Errorf("action export requires export_path")
		}
	case ActionImport:
		if p.ImportPath == "" {
			return fmt.Errorf("action import requires import_path")
		}
	case "":
		return fmt.Errorf("action is required (get, update, add_item, delete_item, export, import)")
	default:
		return fmt.Errorf("invalid action %q: must be get, update, add_item, delete_item, export, or import", p.Action)
	}
	return nil
}

// Configuration implements the module.
type Configuration struct {
	params Params
}

// New creates a configuration module with validated parameters.
func New(params Params) (*Configuration, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Configuration{params: params}, nil
}

// Factory builds the module from raw playbook parameters.
func Factory(raw *yaml.Node) (module.Module, error) {
	var p Params
	if err := module.DecodeParams(raw, &p); err != nil {
		return nil, err
	}
	return New(p)
}

// Name returns "configuration".
func (c *Configuration) Name() string {
	return ModuleName
}

// Run dispatches on the action. Reads report Changed=false; mutations and
// export/import report Changed=true on success.
func (c *Configuration) Run(ctx context.Context, client *pihole.Client, opts module.RunOptions) *module.Result {
	result := module.NewResult(ModuleName, c.params.Action)
	result.CheckMode = opts.CheckMode

	switch c.params.Action {
	case ActionGet:
		return c.runGet(ctx, client, result)
	case ActionUpdate:
		return c.runUpdate(ctx, client, result, opts)
	case ActionAddItem:
		return c.runAddItem(ctx, client, result, opts)
	case ActionDeleteItem:
		return c.runDeleteItem(ctx, client, result, opts)
	case ActionExport:
		return c.runExport(ctx, client, result, opts)
	case ActionImport:
		return c.runImport(ctx, client, result, opts)
	}

	// Unreachable: New validated the action.
	return result.Failf("unknown action %q", c.params.Action)
}

func (c *Configuration) runGet(ctx context.Context, client *pihole.Client, result *module.Result) *module.Result {
	var (
		data map[string]any
		err  error
	)
	if c.params.Section != "" {
		data, err = client.ConfigSection(ctx, c.params.Section, c.params.Detailed)
	} else {
		data, err = client.Config(ctx, c.params.Detailed)
	}
	if err != nil {
		return result.Fail(err)
	}

	result.Data = data
	result.Message = "configuration retrieved"
	return result
}

func (c *Configuration) runUpdate(ctx context.Context, client *pihole.Client, result *module.Result, opts module.RunOptions) *module.Result {
	if opts.CheckMode {
		result.Changed = true
		result.Message = fmt.Sprintf("would update %d configuration keys on %s", len(c.params.Changes), client.BaseURL())
		return result
	}

	data, err := client.PatchConfig(ctx, c.params.Changes)
	if err != nil {
		return result.Fail(err)
	}

	result.Changed = true
	result.Message = "configuration updated"
	result.Data = data
	return result
}

func (c *Configuration) runAddItem(ctx context.Context, client *pihole.Client, result *module.Result, opts module.RunOptions) *module.Result {
	if opts.CheckMode {
		result.Changed = true
		result.Message = fmt.Sprintf("would add %q to %s", c.params.Value, c.params.Element)
		return result
	}

	data, err := client.AddConfigItem(ctx, c.params.Element, c.params.Value)
	if err != nil {
		if pihole.IsConflict(err) {
			result.Message = fmt.Sprintf("%q already present in %s", c.params.Value, c.params.Element)
			return result
		}
		return result.Fail(err)
	}

	result.Changed = true
	result.Message = fmt.Sprintf("added %q to %s", c.params.Value, c.params.Element)
	result.Data = data
	return result
}

func (c *Configuration) runDeleteItem(ctx context.Context, client *pihole.Client, result *module.Result, opts module.RunOptions) *module.Result {
	if opts.CheckMode {
		result.Changed = true
		result.Message = fmt.Sprintf("would remove %q from %s", c.params.Value, c.params.Element)
		return result
	}

	if err := client.DeleteConfigItem(ctx, c.params.Element, c.params.Value); err != nil {
		if pihole.IsNotFound(err) {
			result.Message = fmt.Sprintf("%q not present in %s", c.params.Value, c.params.Element)
			return result
		}
		return result.Fail(err)
	}

	result.Changed = true
	result.Message = fmt.Sprintf("removed %q from %s", c.params.Value, c.params.Element)
	return result
}

func (c *Configuration) runExport(ctx context.Context, client *pihole.Client, result *module.Result, opts module.RunOptions) *module.Result {
	sink, err := backup.ParseDestination(c.params.ExportPath, backup.Options{
		KeyFile: c.params.SSHKeyFile,
		Logger:  opts.Log(),
	})
	if err != nil {
		return result.Fail(fmt.Errorf("parsing export destination: %w", err))
	}

	if opts.CheckMode {
		result.Changed = true
		result.Message = fmt.Sprintf("would export configuration from %s to %s", client.BaseURL(), sink.Location())
		return result
	}

	blob, err := client.ExportSettings(ctx)
	if err != nil {
		return result.Fail(fmt.Errorf("exporting settings: %w", err))
	}

	if err := sink.Store(ctx, blob); err != nil {
		return result.Fail(fmt.Errorf("storing archive: %w", err))
	}

	opts.Log().Info("configuration exported",
		slog.String("destination", sink.Location()),
		slog.Int("bytes", len(blob)),
	)

	result.Changed = true
	result.Message = fmt.Sprintf("configuration exported to %s", sink.Location())
	result.Data = map[string]any{
		"export_path": sink.Location(),
		"bytes":       len(blob),
	}
	return result
}

func (c *Configuration) runImport(ctx context.Context, client *pihole.Client, result *module.Result, opts module.RunOptions) *module.Result {
	if opts.CheckMode {
		result.Changed = true
		result.Message = fmt.Sprintf("would import configuration from %s to %s", c.params.ImportPath, client.BaseURL())
		return result
	}

	archive, err := os.ReadFile(c.params.ImportPath)
	if err != nil {
		return result.Fail(fmt.Errorf("reading archive: %w", err))
	}

	data, err := client.ImportSettings(ctx, archive, c.params.ImportOptions)
	if err != nil {
		return result.Fail(fmt.Errorf("importing settings: %w", err))
	}

	result.Changed = true
	result.Message = fmt.Sprintf("configuration imported from %s", c.params.ImportPath)
	result.Data = data
	return result
}
