// Package runner executes playbook tasks sequentially against a Pi-hole
// instance and aggregates their results.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gitlab.bluewillows.net/root/gravityctl/internal/config"
	"gitlab.bluewillows.net/root/gravityctl/internal/playbook"
	"gitlab.bluewillows.net/root/gravityctl/pkg/httputil"
	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// TaskResult pairs a task with its outcome.
type TaskResult struct {
	// Task is the task's display name.
	Task string `json:"task"`

	// Duration is how long the task took.
	Duration time.Duration `json:"duration"`

	// Result is the module's result envelope.
	Result *module.Result `json:"result"`
}

// Summary aggregates a whole playbook run.
type Summary struct {
	// Target is the Pi-hole base URL.
	Target string `json:"target"`

	// CheckMode reports whether the whole run was a dry run.
	CheckMode bool `json:"check_mode,omitempty"`

	// Results holds one entry per task, in execution order.
	Results []TaskResult `json:"results"`

	// Changed counts tasks that mutated (or would mutate) state.
	Changed int `json:"changed"`

	// Failed counts tasks whose result reported failure.
	Failed int `json:"failed"`
}

// OK reports whether every task succeeded.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// Runner executes playbooks.
type Runner struct {
	registry  *module.Registry
	logger    *slog.Logger
	checkMode bool

	// newClient builds the per-task API client; swapped out in tests.
	newClient func(cfg *config.Config) *pihole.Client
}

// Option is a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCheckMode forces a dry run for every task.
func WithCheckMode(check bool) Option {
	return func(r *Runner) {
		r.checkMode = check
	}
}

// New creates a runner over the given module registry.
func New(registry *module.Registry, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		logger:   slog.Default(),
	}
	r.newClient = r.defaultClient

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Runner) defaultClient(cfg *config.Config) *pihole.Client {
	httpClient := httputil.NewClient(&httputil.ClientConfig{
		Timeout:       cfg.Timeout,
		TLSSkipVerify: cfg.TLSSkipVerify,
		Logger:        r.logger,
	})
	return pihole.New(cfg.URL, cfg.Password,
		pihole.WithLogger(r.logger),
		pihole.WithHTTPClient(httpClient),
	)
}

// Run executes every task in order. Each task gets a fresh client and
// session; the session is closed after the task so repeated runs do not
// exhaust the appliance's session slots. A failed task does not stop the
// run; the failure is recorded and the next task proceeds.
func (r *Runner) Run(ctx context.Context, pb *playbook.Playbook, cfg *config.Config) (*Summary, error) {
	resolved, err := pb.ResolveConnection(cfg)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Target:    resolved.URL,
		CheckMode: r.checkMode,
	}

	r.logger.Info("playbook starting",
		slog.String("target", resolved.URL),
		slog.Int("tasks", len(pb.Tasks)),
		slog.Bool("check_mode", r.checkMode),
	)

	for i, task := range pb.Tasks {
		result := r.runTask(ctx, task, resolved)

		tr := TaskResult{
			Task:     task.Label(),
			Duration: result.duration,
			Result:   result.result,
		}
		summary.Results = append(summary.Results, tr)

		if tr.Result.Changed {
			summary.Changed++
		}
		if !tr.Result.Success {
			summary.Failed++
			r.logger.Error("task failed",
				slog.Int("task", i),
				slog.String("name", task.Label()),
				slog.String("error", tr.Result.Error),
			)
			continue
		}

		r.logger.Info("task complete",
			slog.Int("task", i),
			slog.String("name", task.Label()),
			slog.Bool("changed", tr.Result.Changed),
			slog.Duration("duration", tr.Duration),
		)
	}

	r.logger.Info("playbook complete",
		slog.Int("tasks", len(summary.Results)),
		slog.Int("changed", summary.Changed),
		slog.Int("failed", summary.Failed),
	)

	return summary, nil
}

type taskOutcome struct {
	result   *module.Result
	duration time.Duration
}

func (r *Runner) runTask(ctx context.Context, task playbook.Task, cfg *config.Config) taskOutcome {
	start := time.Now()

	m, err := r.registry.Create(task.Module, task.ParamsNode())
	if err != nil {
		result := module.NewResult(task.Module, "").Fail(err)
		return taskOutcome{result: result, duration: time.Since(start)}
	}

	client := r.newClient(cfg)
	defer func() {
		if closeErr := client.Close(ctx); closeErr != nil {
			r.logger.Debug("session close failed",
				slog.String("task", task.Label()),
				slog.String("error", closeErr.Error()),
			)
		}
	}()

	result := m.Run(ctx, client, module.RunOptions{
		CheckMode: r.checkMode || task.CheckMode,
		Logger:    r.logger.With(slog.String("task", task.Label())),
	})

	return taskOutcome{result: result, duration: time.Since(start)}
}

// WriteJSON renders the summary as indented JSON.
func (s *Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteText renders the summary as one line per task.
func (s *Summary) WriteText(w io.Writer) error {
	for _, tr := range s.Results {
		if _, err := fmt.Fprintf(w, "%s  %s\n", tr.Task, tr.Result.String()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n%d tasks, %d changed, %d failed\n",
		len(s.Results), s.Changed, s.Failed)
	return err
}
