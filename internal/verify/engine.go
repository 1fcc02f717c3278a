// Package verify implements the processing verification engine: given a live
// listing view and the name of a submitted video, it determines whether
// server-side processing reaches completion, fails, or runs out of time,
// narrating every transition along the way.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/dubtest/internal/common"
)

// Outcome is the terminal state of a verification run.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result carries the outcome and a human-readable message. The message is
// the only diagnostic detail that crosses the scenario boundary.
type Result struct {
	Outcome Outcome
	Message string
}

// LogFunc narrates engine progress to the caller's transcript.
type LogFunc func(format string, args ...interface{})

// View is the read-only slice of the page driver the engine needs.
type View interface {
	Location(ctx context.Context) (string, error)
	TextVisible(ctx context.Context, text string, timeout time.Duration) bool
}

// Config bounds and parameterizes the engine. Zero values are filled with
// defaults by NewEngine.
type Config struct {
	// WorkspacePath is the URL fragment identifying the listing view.
	WorkspacePath string

	// PollInterval is the delay between completion-poll cycles.
	PollInterval time.Duration

	// MaxWait bounds the total time spent in the completion loop. The loop
	// always terminates with OutcomeTimeout once it elapses.
	MaxWait time.Duration

	// DiscoveryWait bounds the wait for the item to appear at all.
	DiscoveryWait time.Duration

	// LabelWait bounds the per-label wait in the started gate.
	LabelWait time.Duration

	// MarkerWait bounds each marker probe inside the poll loop.
	MarkerWait time.Duration

	// Milestones are the known non-terminal status labels, in the priority
	// order they are probed. The set is open-ended; any of them may appear
	// at any time.
	Milestones []string

	// FailureMarker is the text rendered when processing fails.
	FailureMarker string

	// FreshnessMarkers are relative-timestamp fragments ("Ns ago") rendered
	// once the item re-renders after successful processing.
	FreshnessMarkers []string
}

// DefaultMilestones are the processing labels rendered by the target site.
func DefaultMilestones() []string {
	return []string{"대기 중", "영상 처리 중", "음성 추출 중", "번역 중", "음성 생성 중"}
}

// DefaultFreshnessMarkers are the relative-time fragments that signal a
// finished item ("N초 전" / "N분 전").
func DefaultFreshnessMarkers() []string {
	return []string{"초 전", "분 전"}
}

// FromConfig builds an engine Config from the application configuration.
func FromConfig(target common.TargetConfig, v common.VerifyConfig) Config {
	return Config{
		WorkspacePath: target.WorkspacePath,
		PollInterval:  common.Duration(v.PollInterval, 10*time.Second),
		MaxWait:       common.Duration(v.MaxWait, 5*time.Minute),
		DiscoveryWait: common.Duration(v.DiscoveryWait, 5*time.Second),
		LabelWait:     common.Duration(v.LabelWait, 2*time.Second),
		MarkerWait:    common.Duration(v.MarkerWait, 500*time.Millisecond),
	}
}

// Engine polls a view for the terminal state of a processing item.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine, filling unset config fields with defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.WorkspacePath == "" {
		cfg.WorkspacePath = "/workspace"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 5 * time.Minute
	}
	if cfg.DiscoveryWait <= 0 {
		cfg.DiscoveryWait = 5 * time.Second
	}
	if cfg.LabelWait <= 0 {
		cfg.LabelWait = 2 * time.Second
	}
	if cfg.MarkerWait <= 0 {
		cfg.MarkerWait = 500 * time.Millisecond
	}
	if len(cfg.Milestones) == 0 {
		cfg.Milestones = DefaultMilestones()
	}
	if cfg.FailureMarker == "" {
		cfg.FailureMarker = "Failed"
	}
	if len(cfg.FreshnessMarkers) == 0 {
		cfg.FreshnessMarkers = DefaultFreshnessMarkers()
	}
	return &Engine{cfg: cfg}
}

// pollState is the completion loop's explicit state. The loop runs while
// statePolling and exits as soon as it reaches a terminal state.
type pollState int

const (
	statePolling pollState = iota
	stateSucceeded
	stateFailed
	stateTimedOut
)

// Verify checks that itemName reaches successful completion on the listing
// view. Four gates run in sequence; the first three are preconditions, the
// fourth is the bounded completion-polling loop. The caller is responsible
// for diagnostic screenshots on failure paths.
func (e *Engine) Verify(ctx context.Context, view View, itemName string, log LogFunc) Result {
	// Gate 1: confirm the listing view by URL, not by DOM content.
	loc, err := view.Location(ctx)
	if err != nil {
		return Result{OutcomeFailure, fmt.Sprintf("could not read current location: %v", err)}
	}
	log("Checking current view: %s", loc)
	if !strings.Contains(loc, e.cfg.WorkspacePath) {
		log("Not on the workspace view")
		return Result{OutcomeFailure, fmt.Sprintf("not on workspace view: %s", loc)}
	}
	log("On workspace view")

	// Gate 2: the item must be visible on the listing.
	log("Looking for video %q...", itemName)
	if !view.TextVisible(ctx, itemName, e.cfg.DiscoveryWait) {
		log("Video %q not found", itemName)
		return Result{OutcomeFailure, fmt.Sprintf("video %q not found", itemName)}
	}
	log("Found video %q", itemName)

	// Gate 3: look for a started indicator. Absence is informational, not
	// fatal: the item can exist before the site renders its first status
	// label, and the completion loop below re-probes every cycle anyway.
	started := ""
	for _, label := range e.cfg.Milestones {
		if view.TextVisible(ctx, label, e.cfg.LabelWait) {
			started = label
			break
		}
	}
	if started != "" {
		log("Processing status: %s", started)
	} else {
		log("No processing label visible yet; video exists, continuing")
	}

	// Gate 4: poll until a terminal state or the deadline. A milestone match
	// short-circuits the terminal checks for that cycle, so an observation
	// never reports both.
	log("Waiting for processing to complete (up to %s)...", e.cfg.MaxWait)
	start := time.Now()
	deadline := start.Add(e.cfg.MaxWait)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	state := statePolling
	lastLabel := ""
	for state == statePolling {
		select {
		case <-ctx.Done():
			log("Verification cancelled after %s", time.Since(start).Round(time.Second))
			return Result{OutcomeFailure, "verification cancelled"}
		case <-ticker.C:
		}

		elapsed := time.Since(start).Round(time.Second)

		if view.TextVisible(ctx, e.cfg.FailureMarker, e.cfg.MarkerWait) {
			log("%q marker detected, processing failed", e.cfg.FailureMarker)
			state = stateFailed
			continue
		}

		if label := e.currentMilestone(ctx, view); label != "" {
			if label != lastLabel {
				log("Status changed: %s", label)
				lastLabel = label
			} else {
				log("%s elapsed... (%s)", elapsed, label)
			}
			if !time.Now().Before(deadline) {
				state = stateTimedOut
			}
			continue
		}

		if e.freshnessVisible(ctx, view) {
			log("Processing complete (total wait: %s)", elapsed)
			state = stateSucceeded
			continue
		}

		log("%s elapsed... (status unknown)", elapsed)
		if !time.Now().Before(deadline) {
			state = stateTimedOut
		}
	}

	switch state {
	case stateSucceeded:
		return Result{OutcomeSuccess, "video processing succeeded"}
	case stateFailed:
		return Result{OutcomeFailure, "video processing failed"}
	default:
		log("Gave up after %s", time.Since(start).Round(time.Second))
		return Result{OutcomeTimeout, fmt.Sprintf("processing did not finish within %s", e.cfg.MaxWait)}
	}
}

// currentMilestone probes the milestone labels in priority order and returns
// the first visible one.
func (e *Engine) currentMilestone(ctx context.Context, view View) string {
	for _, label := range e.cfg.Milestones {
		if view.TextVisible(ctx, label, e.cfg.MarkerWait) {
			return label
		}
	}
	return ""
}

// freshnessVisible probes the relative-time markers that signal completion.
func (e *Engine) freshnessVisible(ctx context.Context, view View) bool {
	for _, marker := range e.cfg.FreshnessMarkers {
		if view.TextVisible(ctx, marker, e.cfg.MarkerWait) {
			return true
		}
	}
	return false
}
