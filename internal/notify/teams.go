// Package notify posts run results to a Microsoft Teams incoming webhook as
// MessageCard payloads. Notification failures are reported to the caller but
// never change a run's outcome.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/dubtest/internal/common"
)

// Fact is one name/value row in a card section.
type Fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Section is one block of a MessageCard.
type Section struct {
	ActivityTitle string `json:"activityTitle,omitempty"`
	Facts         []Fact `json:"facts,omitempty"`
}

// MessageCard is the legacy Teams webhook payload.
type MessageCard struct {
	Title      string    `json:"title,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	ThemeColor string    `json:"themeColor,omitempty"`
	Sections   []Section `json:"sections,omitempty"`
}

// RunReport is the notifier's view of a completed run.
type RunReport struct {
	Scenario   string
	Success    bool
	Message    string
	Screenshot string // filename under the screenshots dir, empty if none
	Logs       []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// scenarioLabels localize scenario names for the card.
var scenarioLabels = map[string]string{
	"login":     "로그인",
	"upload":    "업로드",
	"translate": "번역",
}

// Notifier posts MessageCards to a single webhook URL. Posts are rate
// limited to one per second, the documented Teams connector limit.
type Notifier struct {
	cfg     common.NotifyConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewNotifier creates a notifier from config. An empty webhook URL yields a
// notifier that skips every send with a warning.
func NewNotifier(cfg common.NotifyConfig) *Notifier {
	return &Notifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: common.Duration(cfg.Timeout, 10*time.Second)},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.WebhookURL != ""
}

// Send posts the run report to the webhook. Errors are returned for logging
// only; callers must not fail the run on them.
func (n *Notifier) Send(ctx context.Context, report RunReport) error {
	logger := common.GetLogger()

	if !n.Enabled() {
		logger.Warn().Msg("No webhook URL configured, skipping notification")
		return nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit wait aborted: %w", err)
	}

	card := buildCard(report, n.cfg.PublicBaseURL)
	body, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("failed to encode message card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Error().Err(err).Msg("Webhook request failed")
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		logger.Error().
			Int("status", resp.StatusCode).
			Str("body", string(snippet)).
			Msg("Webhook rejected the notification")
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	logger.Info().Str("scenario", report.Scenario).Msg("Teams notification sent")
	return nil
}

// buildCard renders a run report as a MessageCard.
func buildCard(report RunReport, publicBaseURL string) MessageCard {
	statusEmoji, statusText, themeColor := "✅", "성공", "00FF00"
	if !report.Success {
		statusEmoji, statusText, themeColor = "❌", "실패", "FF0000"
	}
	label := scenarioLabel(report.Scenario)

	facts := []Fact{
		{Name: "테스트 타입", Value: label},
		{Name: "상태", Value: fmt.Sprintf("%s %s", statusEmoji, statusText)},
		{Name: "시작 시간", Value: report.StartedAt.Format("2006-01-02 15:04:05")},
		{Name: "종료 시간", Value: report.FinishedAt.Format("2006-01-02 15:04:05")},
		{Name: "소요 시간", Value: formatDuration(report.FinishedAt.Sub(report.StartedAt))},
	}
	if report.Message != "" {
		facts = append(facts, Fact{Name: "메시지", Value: report.Message})
	}
	if report.Screenshot != "" {
		url := strings.TrimRight(publicBaseURL, "/") + "/screenshots/" + report.Screenshot
		facts = append(facts, Fact{Name: "스크린샷", Value: fmt.Sprintf("[보기](%s)", url)})
	}

	sections := []Section{{ActivityTitle: "테스트 결과", Facts: facts}}
	if len(report.Logs) > 0 {
		sections = append(sections, Section{
			ActivityTitle: "실행 로그",
			Facts: []Fact{{
				Name:  "로그",
				Value: fmt.Sprintf("```\n%s\n```", strings.Join(report.Logs, "\n")),
			}},
		})
	}

	return MessageCard{
		Title:      fmt.Sprintf("%s PERSO 자동화 테스트 - %s %s", statusEmoji, label, statusText),
		Summary:    fmt.Sprintf("%s 테스트 %s", label, statusText),
		ThemeColor: themeColor,
		Sections:   sections,
	}
}

func scenarioLabel(name string) string {
	if label, ok := scenarioLabels[name]; ok {
		return label
	}
	return name
}

// formatDuration renders a duration as "N분 N초" (or "N초" under a minute).
func formatDuration(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	minutes, seconds := total/60, total%60
	if minutes > 0 {
		return fmt.Sprintf("%d분 %d초", minutes, seconds)
	}
	return fmt.Sprintf("%d초", seconds)
}
