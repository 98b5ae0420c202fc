// Package module defines the task modules that apply declarative
// configuration to a Pi-hole instance, and the uniform result envelope
// they report.
package module

import (
	"fmt"
	"strings"
)

// Item actions describe what happened to one entry of a batch.
const (
	ItemAdded     = "added"
	ItemUpdated   = "updated"
	ItemDeleted   = "deleted"
	ItemUnchanged = "unchanged"
	ItemFailed    = "failed"
)

// ItemResult is the outcome for a single entry when a module processes a
// batch. One entry's failure never aborts the remaining entries, so a batch
// of N entries always yields exactly N item results.
type ItemResult struct {
	// Name identifies the entry (domain, list address, hostname).
	Name string `json:"name"`

	// Action is what was done (or would be done in check mode).
	Action string `json:"action"`

	// Changed reports whether this entry mutated appliance state.
	Changed bool `json:"changed"`

	// Success reports whether processing this entry succeeded.
	Success bool `json:"success"`

	// Error holds the diagnostic when Success is false.
	Error string `json:"error,omitempty"`

	// Response is the API's response body for this entry, when useful
	// for diagnosis.
	Response map[string]any `json:"response,omitempty"`
}

// Result is the uniform envelope every module run reports: whether state
// changed, whether the run succeeded, and either free-form data returned
// by the API or a textual diagnostic.
type Result struct {
	// Module is the module name, e.g. "blocking".
	Module string `json:"module"`

	// Action is the operation selector that ran, when the module has one.
	Action string `json:"action,omitempty"`

	// Changed reports whether appliance state was mutated. In check mode
	// it reports whether state would have been mutated.
	Changed bool `json:"changed"`

	// Success reports whether the run succeeded.
	Success bool `json:"success"`

	// CheckMode marks results produced without touching the appliance.
	CheckMode bool `json:"check_mode,omitempty"`

	// Message is a human-readable summary of what happened.
	Message string `json:"msg,omitempty"`

	// Data carries the API response verbatim for read operations.
	Data map[string]any `json:"data,omitempty"`

	// Error holds the diagnostic when Success is false.
	Error string `json:"error,omitempty"`

	// Items holds per-entry outcomes for batch modules.
	Items []ItemResult `json:"items,omitempty"`
}

// NewResult creates a pending result for a module run.
func NewResult(moduleName, action string) *Result {
	return &Result{
		Module:  moduleName,
		Action:  action,
		Success: true,
	}
}

// Fail marks the result as failed with the given error.
// The original data already attached (e.g. an API response body) is kept
// for diagnosis.
func (r *Result) Fail(err error) *Result {
	r.Success = false
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Failf marks the result as failed with a formatted diagnostic.
func (r *Result) Failf(format string, args ...any) *Result {
	r.Success = false
	r.Error = fmt.Sprintf(format, args...)
	return r
}

// AddItem appends a per-entry outcome and folds it into the aggregate
// changed flag.
func (r *Result) AddItem(item ItemResult) {
	if item.Changed {
		r.Changed = true
	}
	r.Items = append(r.Items, item)
}

// FailedItems returns the entries that failed.
func (r *Result) FailedItems() []ItemResult {
	var failed []ItemResult
	for _, item := range r.Items {
		if !item.Success {
			failed = append(failed, item)
		}
	}
	return failed
}

// String returns a single-line human-readable form.
func (r *Result) String() string {
	var sb strings.Builder

	status := "ok"
	switch {
	case !r.Success:
		status = "failed"
	case r.CheckMode && r.Changed:
		status = "check"
	case r.Changed:
		status = "changed"
	}

	fmt.Fprintf(&sb, "[%s] %s", status, r.Module)
	if r.Action != "" {
		fmt.Fprintf(&sb, "/%s", r.Action)
	}
	if r.Message != "" {
		fmt.Fprintf(&sb, ": %s", r.Message)
	}
	if r.Error != "" {
		fmt.Fprintf(&sb, ": %s", r.Error)
	}
	if len(r.Items) > 0 {
		fmt.Fprintf(&sb, " (%d items, %d failed)", len(r.Items), len(r.FailedItems()))
	}

	return sb.String()
}
