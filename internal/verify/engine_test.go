package verify

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeView scripts TextVisible per probe. Each test wires the behavior it
// needs through the visible callback.
type fakeView struct {
	loc     string
	locErr  error
	visible func(text string) bool
}

func (v *fakeView) Location(ctx context.Context) (string, error) {
	return v.loc, v.locErr
}

func (v *fakeView) TextVisible(ctx context.Context, text string, timeout time.Duration) bool {
	if v.visible == nil {
		return false
	}
	return v.visible(text)
}

func fastConfig() Config {
	return Config{
		WorkspacePath: "/workspace",
		PollInterval:  time.Millisecond,
		MaxWait:       time.Second,
		DiscoveryWait: time.Millisecond,
		LabelWait:     time.Millisecond,
		MarkerWait:    time.Millisecond,
	}
}

func collectLog(lines *[]string) LogFunc {
	return func(format string, args ...interface{}) {
		*lines = append(*lines, fmt.Sprintf(format, args...))
	}
}

func countContaining(lines []string, substr string) int {
	n := 0
	for _, line := range lines {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func TestVerifyWrongView(t *testing.T) {
	engine := NewEngine(fastConfig())
	view := &fakeView{loc: "https://perso.ai/ko/login"}

	var lines []string
	result := engine.Verify(context.Background(), view, "sample.mp4", collectLog(&lines))

	assert.Equal(t, OutcomeFailure, result.Outcome)
	assert.Contains(t, result.Message, "not on workspace view")
}

func TestVerifyLocationError(t *testing.T) {
	engine := NewEngine(fastConfig())
	view := &fakeView{locErr: fmt.Errorf("target closed")}

	var lines []string
	result := engine.Verify(context.Background(), view, "sample.mp4", collectLog(&lines))

	assert.Equal(t, OutcomeFailure, result.Outcome)
	assert.Contains(t, result.Message, "could not read current location")
}

func TestVerifyItemNeverFound(t *testing.T) {
	engine := NewEngine(fastConfig())
	view := &fakeView{
		loc:     "https://perso.ai/ko/workspace",
		visible: func(string) bool { return false },
	}

	var lines []string
	result := engine.Verify(context.Background(), view, "sample.mp4", collectLog(&lines))

	assert.Equal(t, OutcomeFailure, result.Outcome)
	assert.Contains(t, result.Message, `"sample.mp4" not found`)
}

func TestVerifyFailureMarker(t *testing.T) {
	engine := NewEngine(fastConfig())

	// The failure marker appears on the third poll cycle. The marker probe
	// is the first probe of each cycle, so it doubles as a cycle counter.
	cycle := 0
	view := &fakeView{loc: "https://perso.ai/ko/workspace"}
	view.visible = func(text string) bool {
		switch text {
		case "sample.mp4":
			return true
		case "Failed":
			cycle++
			return cycle >= 3
		default:
			return false
		}
	}

	var lines []string
	result := engine.Verify(context.Background(), view, "sample.mp4", collectLog(&lines))

	assert.Equal(t, OutcomeFailure, result.Outcome)
	assert.Equal(t, "video processing failed", result.Message)
	assert.Equal(t, 3, cycle)
}

func TestVerifySuccessOnFreshness(t *testing.T) {
	engine := NewEngine(fastConfig())

	// Cycles 1-2 show the first milestone, cycle 3 shows a new one, cycle 4
	// shows only the freshness marker.
	cycle := 0
	view := &fakeView{loc: "https://perso.ai/ko/workspace"}
	view.visible = func(text string) bool {
		switch text {
		case "sample.mp4":
			return true
		case "Failed":
			cycle++
			return false
		case "대기 중":
			return cycle >= 1 && cycle <= 2
		case "번역 중":
			return cycle == 3
		case "초 전":
			return cycle >= 4
		default:
			return false
		}
	}

	var lines []string
	result := engine.Verify(context.Background(), view, "sample.mp4", collectLog(&lines))

	require.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, "video processing succeeded", result.Message)

	// One status-changed line per distinct label, heartbeats in between.
	assert.Equal(t, 1, countContaining(lines, "Status changed: 대기 중"))
	assert.Equal(t, 1, countContaining(lines, "Status changed: 번역 중"))
	assert.Equal(t, 2, countContaining(lines, "Status changed"))
	assert.Equal(t, 1, countContaining(lines, "Processing complete"))
}

func TestVerifyTimeout(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxWait = 20 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	engine := NewEngine(cfg)

	// The item exists but never reaches a terminal state.
	view := &fakeView{loc: "https://perso.ai/ko/workspace"}
	view.visible = func(text string) bool {
		return text == "sample.mp4"
	}

	var lines []string
	result := engine.Verify(context.Background(), view, "sample.mp4", collectLog(&lines))

	assert.Equal(t, OutcomeTimeout, result.Outcome)
	assert.Contains(t, result.Message, "did not finish within")
	assert.GreaterOrEqual(t, countContaining(lines, "status unknown"), 1)
}

func TestVerifyMilestonePastDeadlineIsTimeout(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxWait = 20 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	engine := NewEngine(cfg)

	// A milestone stays visible forever; the deadline must still end the run.
	view := &fakeView{loc: "https://perso.ai/ko/workspace"}
	view.visible = func(text string) bool {
		return text == "sample.mp4" || text == "번역 중"
	}

	var lines []string
	result := engine.Verify(context.Background(), view, "sample.mp4", collectLog(&lines))

	assert.Equal(t, OutcomeTimeout, result.Outcome)
}

func TestVerifyCancellation(t *testing.T) {
	cfg := fastConfig()
	cfg.PollInterval = time.Hour
	cfg.MaxWait = time.Hour
	engine := NewEngine(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	view := &fakeView{loc: "https://perso.ai/ko/workspace"}
	view.visible = func(text string) bool {
		return text == "sample.mp4"
	}

	var lines []string
	start := time.Now()
	result := engine.Verify(ctx, view, "sample.mp4", collectLog(&lines))

	assert.Equal(t, OutcomeFailure, result.Outcome)
	assert.Equal(t, "verification cancelled", result.Message)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewEngineDefaults(t *testing.T) {
	engine := NewEngine(Config{})

	assert.Equal(t, "/workspace", engine.cfg.WorkspacePath)
	assert.Equal(t, 10*time.Second, engine.cfg.PollInterval)
	assert.Equal(t, 5*time.Minute, engine.cfg.MaxWait)
	assert.Equal(t, DefaultMilestones(), engine.cfg.Milestones)
	assert.Equal(t, "Failed", engine.cfg.FailureMarker)
}
