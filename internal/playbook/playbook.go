// Package playbook loads declarative task files: a YAML document naming
// the target Pi-hole instance and an ordered list of module tasks to
// apply to it.
package playbook

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gitlab.bluewillows.net/root/gravityctl/internal/config"
	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
)

// Task is one module invocation in a playbook.
type Task struct {
	// Name labels the task in output. Defaults to the module name.
	Name string `yaml:"name"`

	// Module names the registered module to run.
	Module string `yaml:"module"`

	// CheckMode forces a dry run for this task even when the playbook
	// runs normally.
	CheckMode bool `yaml:"check_mode"`

	// Params holds the raw module parameters; the module's factory
	// decodes them.
	Params yaml.Node `yaml:"params"`
}

// Label returns the task's display name.
func (t Task) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Module
}

// ParamsNode returns the raw parameter node, or nil when the task has no
// params block.
func (t Task) ParamsNode() *yaml.Node {
	if t.Params.Kind == 0 {
		return nil
	}
	return &t.Params
}

// Playbook is a parsed task file plus the connection settings it carries.
type Playbook struct {
	// URL overrides the environment's Pi-hole URL.
	URL string `yaml:"url"`

	// Password overrides the environment's password. PasswordFile reads
	// it from a file instead; the file wins when both are set.
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`

	// TLSSkipVerify disables certificate verification.
	TLSSkipVerify bool `yaml:"tls_skip_verify"`

	// Timeout bounds each API request, e.g. "45s".
	Timeout string `yaml:"timeout"`

	// Tasks run in order.
	Tasks []Task `yaml:"tasks"`
}

// Load reads and validates a playbook. Every task's module must exist in
// the registry and its parameters must decode and validate, so a typo
// fails at load time rather than mid-run.
func Load(path string, registry *module.Registry) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading playbook: %w", err)
	}

	return Parse(data, registry)
}

// Parse validates playbook bytes against the registry.
func Parse(data []byte, registry *module.Registry) (*Playbook, error) {
	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("parsing playbook: %w", err)
	}

	if len(pb.Tasks) == 0 {
		return nil, fmt.Errorf("playbook has no tasks")
	}

	for i, task := range pb.Tasks {
		if task.Module == "" {
			return nil, fmt.Errorf("task %d (%s): module is required", i, task.Label())
		}
		// Construct once to surface bad parameters now; the runner builds
		// its own instance per task.
		if _, err := registry.Create(task.Module, task.ParamsNode()); err != nil {
			return nil, fmt.Errorf("task %d (%s): %w", i, task.Label(), err)
		}
	}

	return &pb, nil
}

// ResolveConnection overlays the playbook's connection settings on the
// environment configuration. The playbook wins where it sets a value.
func (p *Playbook) ResolveConnection(cfg *config.Config) (*config.Config, error) {
	resolved := *cfg

	if p.URL != "" {
		resolved.URL = p.URL
	}
	if p.PasswordFile != "" {
		content, err := os.ReadFile(p.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("reading password file: %w", err)
		}
		resolved.Password = strings.TrimSpace(string(content))
	} else if p.Password != "" {
		resolved.Password = p.Password
	}
	if p.TLSSkipVerify {
		resolved.TLSSkipVerify = true
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid timeout %q", p.Timeout)
		}
		resolved.Timeout = d
	}

	if err := resolved.RequireConnection(); err != nil {
		return nil, err
	}

	return &resolved, nil
}

// Summary describes the playbook for logs. The password never appears
// here.
func (p *Playbook) Summary() string {
	target := p.URL
	if target == "" {
		target = "(from environment)"
	}
	return fmt.Sprintf("%d tasks against %s", len(p.Tasks), target)
}
