// Package scenario runs the end-to-end test scenarios against the target
// site: login, upload, and the full translation flow with processing
// verification. Each run gets a fresh browser session and produces a Result
// with a transcript and a screenshot.
package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/dubtest/internal/browser"
	"github.com/ternarybob/dubtest/internal/common"
	"github.com/ternarybob/dubtest/internal/flows"
	"github.com/ternarybob/dubtest/internal/logsink"
	"github.com/ternarybob/dubtest/internal/verify"
)

// Language option labels used in the translation settings dialog.
const (
	sourceLanguage = "Korean"
	targetLanguage = "English"
)

// Result is the outcome of one scenario run.
type Result struct {
	RunID      string
	Scenario   string
	Success    bool
	Message    string
	Screenshot string // filename under the screenshots dir, empty if none
	Logs       []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// sessionFactory creates a browser driver for a run. Tests substitute fakes.
type sessionFactory func(ctx context.Context, cfg common.BrowserConfig) (browser.Driver, func(), error)

// Runner executes scenarios. One Runner serves all runs; each run creates
// its own browser session.
type Runner struct {
	config     *common.Config
	engine     *verify.Engine
	newSession sessionFactory
}

// NewRunner creates a runner for the given configuration.
func NewRunner(cfg *common.Config) *Runner {
	return &Runner{
		config: cfg,
		engine: verify.NewEngine(verify.FromConfig(cfg.Target, cfg.Verify)),
		newSession: func(ctx context.Context, bcfg common.BrowserConfig) (browser.Driver, func(), error) {
			session, err := browser.NewSession(ctx, bcfg, common.GetLogger())
			if err != nil {
				return nil, nil, err
			}
			return session, session.Close, nil
		},
	}
}

// Run executes the named scenario, narrating into the sink. It always
// returns a Result; errors are folded into Result.Message.
func (r *Runner) Run(ctx context.Context, name string, sink *logsink.Sink) *Result {
	result := &Result{
		RunID:     uuid.NewString(),
		Scenario:  name,
		StartedAt: time.Now(),
	}
	defer func() { result.FinishedAt = time.Now() }()

	if !common.IsKnownScenario(name) {
		result.Message = fmt.Sprintf("unknown scenario: %q", name)
		result.Logs = sink.Lines()
		return result
	}

	sink.Log("Starting %s test", name)
	sink.Log("Email: %s", r.config.Target.Email)
	sink.Log("Video file: %s", r.config.Target.VideoFile)
	sink.Log("Headless: %v", r.config.Browser.Headless)

	driver, teardown, err := r.newSession(ctx, r.config.Browser)
	if err != nil {
		sink.Log("Browser startup failed: %v", err)
		result.Message = fmt.Sprintf("error during test execution: %v", err)
		result.Logs = sink.Lines()
		return result
	}
	defer teardown()

	r.execute(ctx, driver, name, sink, result)

	result.Logs = sink.Lines()
	return result
}

// execute runs the scenario steps and fills in the result, converting
// panics into execution errors so teardown and reporting still happen.
func (r *Runner) execute(ctx context.Context, d browser.Driver, name string, sink *logsink.Sink, result *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			sink.Log("Unexpected error: %v", rec)
			result.Success = false
			result.Message = fmt.Sprintf("error during test execution: %v", rec)
			result.Screenshot = r.saveScreenshot(ctx, d, name, false, sink)
		}
	}()

	var err error
	switch name {
	case "login":
		err = r.runLogin(ctx, d, sink)
	case "upload":
		err = r.runUpload(ctx, d, sink)
	case "translate":
		err = r.runTranslate(ctx, d, sink)
	}

	if err != nil {
		sink.Log("Error: %v", err)
		result.Success = false
		result.Message = fmt.Sprintf("%s test failed: %v", name, err)
		result.Screenshot = r.saveScreenshot(ctx, d, name, false, sink)
		return
	}

	result.Success = true
	result.Message = fmt.Sprintf("%s test completed successfully", name)
	result.Screenshot = r.saveScreenshot(ctx, d, name, true, sink)
	sink.Log("%s test finished", name)
}

func (r *Runner) runLogin(ctx context.Context, d browser.Driver, sink *logsink.Sink) error {
	if err := flows.Login(ctx, d, r.config.Target, sink.Log); err != nil {
		return err
	}
	flows.ClearObstructions(ctx, d, sink.Log)
	return flows.VerifyLoggedIn(ctx, d, sink.Log)
}

func (r *Runner) runUpload(ctx context.Context, d browser.Driver, sink *logsink.Sink) error {
	if err := flows.Login(ctx, d, r.config.Target, sink.Log); err != nil {
		return err
	}
	flows.ClearObstructions(ctx, d, sink.Log)

	modal, err := flows.Upload(ctx, d, r.config.Target.VideoFile, sink.Log)
	if err != nil {
		return err
	}
	if !modal {
		return fmt.Errorf("translation settings dialog did not appear")
	}
	return nil
}

func (r *Runner) runTranslate(ctx context.Context, d browser.Driver, sink *logsink.Sink) error {
	if err := r.runUpload(ctx, d, sink); err != nil {
		return err
	}

	if err := flows.ConfigureTranslation(ctx, d, sourceLanguage, targetLanguage, sink.Log); err != nil {
		return err
	}

	sink.Log("Waiting for the workspace to update...")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
	}

	item := videoItemName(r.config.Target.VideoFile)
	verdict := r.engine.Verify(ctx, d, item, sink.Log)
	if verdict.Outcome != verify.OutcomeSuccess {
		return fmt.Errorf("%s", verdict.Message)
	}
	return nil
}

// saveScreenshot captures the page into <dir>/<scenario>_success.png or
// <scenario>_error.png and returns the filename. Screenshot problems are
// narrated and swallowed.
func (r *Runner) saveScreenshot(ctx context.Context, d browser.Driver, name string, success bool, sink *logsink.Sink) string {
	suffix := "error"
	if success {
		suffix = "success"
	}
	filename := fmt.Sprintf("%s_%s.png", name, suffix)

	data, err := d.Screenshot(ctx)
	if err != nil {
		sink.Log("Screenshot failed: %v", err)
		return ""
	}
	if err := os.MkdirAll(r.config.Screenshots.Dir, 0o755); err != nil {
		sink.Log("Screenshot directory error: %v", err)
		return ""
	}
	path := filepath.Join(r.config.Screenshots.Dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		sink.Log("Screenshot write failed: %v", err)
		return ""
	}
	sink.Log("Screenshot saved: %s", filename)
	return filename
}

// videoItemName derives the workspace item name from the video file: the
// base name without its extension.
func videoItemName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
