package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dubtest/internal/common"
)

// startupProbeTimeout bounds the about:blank navigation used to confirm the
// browser came up before a run starts driving it.
const startupProbeTimeout = 30 * time.Second

// Session owns one exclusive browser instance for the lifetime of a single
// test run. It is created at run start and must be closed on every exit path.
type Session struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	headless      bool
	teardownGrace time.Duration
	logger        arbor.ILogger
}

// NewSession launches a browser and verifies it responds. The browser
// context is derived from parent, so cancelling parent aborts any in-flight
// page operation.
func NewSession(parent context.Context, cfg common.BrowserConfig, logger arbor.ILogger) (*Session, error) {
	width := cfg.ViewportWidth
	height := cfg.ViewportHeight
	if width <= 0 {
		width = 1920
	}
	if height <= 0 {
		height = 1080
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(width, height),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	probeCtx, probeCancel := context.WithTimeout(browserCtx, startupProbeTimeout)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed startup probe: %w", err)
	}

	s := &Session{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		headless:      cfg.Headless,
		teardownGrace: common.Duration(cfg.TeardownGrace, 5*time.Second),
		logger:        logger,
	}

	logger.Debug().
		Bool("headless", cfg.Headless).
		Int("viewport_width", width).
		Int("viewport_height", height).
		Msg("Browser session started")

	return s, nil
}

// Close tears down the browser. When running headful, the window stays open
// for the configured grace period so a failure can be inspected visually.
func (s *Session) Close() {
	if !s.headless && s.teardownGrace > 0 {
		s.logger.Info().
			Dur("grace", s.teardownGrace).
			Msg("Keeping browser open for inspection before teardown")
		time.Sleep(s.teardownGrace)
	}

	s.browserCancel()
	s.allocCancel()
	s.logger.Debug().Msg("Browser session closed")
}

// bounded derives a timeout context from the browser context. Cancelling the
// run context that created the session cancels these too.
func (s *Session) bounded(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.browserCtx, timeout)
}

// Navigate loads a URL and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(s.browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Location returns the current page URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var loc string
	if err := chromedp.Run(s.browserCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// WaitLocationContains polls the page URL until it contains fragment.
func (s *Session) WaitLocationContains(ctx context.Context, fragment string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		loc, err := s.Location(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(loc, fragment) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for URL containing %q (current: %s)", fragment, loc)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// WaitVisible waits for a CSS-selected element to become visible.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	waitCtx, cancel := s.bounded(timeout)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element %q not visible within %s: %w", selector, timeout, err)
	}
	return nil
}

// TextVisible reports whether an element carrying the given text becomes
// visible within the timeout. The match is against an element's own text
// nodes, not accumulated descendant text, so container elements do not
// shadow the real match.
func (s *Session) TextVisible(ctx context.Context, text string, timeout time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	waitCtx, cancel := s.bounded(timeout)
	defer cancel()
	xp := fmt.Sprintf(`//*[text()[contains(normalize-space(.), %s)]]`, xpathString(text))
	return chromedp.Run(waitCtx, chromedp.WaitVisible(xp, chromedp.BySearch)) == nil
}

// Fill clears an input and types the value into it.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(s.browserCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to fill %q: %w", selector, err)
	}
	return nil
}

// PressEnter sends the Enter key to an element.
func (s *Session) PressEnter(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(s.browserCtx, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to press Enter on %q: %w", selector, err)
	}
	return nil
}

// PressEscape sends the Escape key to the page.
func (s *Session) PressEscape(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.browserCtx, chromedp.KeyEvent(kb.Escape))
}

// Click waits for an element and clicks it.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clickCtx, cancel := s.bounded(timeout)
	defer cancel()
	if err := chromedp.Run(clickCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to click %q: %w", selector, err)
	}
	return nil
}

// ClickText clicks the first visible element whose own text contains the
// given string.
func (s *Session) ClickText(ctx context.Context, text string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clickCtx, cancel := s.bounded(timeout)
	defer cancel()
	xp := fmt.Sprintf(`//*[text()[contains(normalize-space(.), %s)]]`, xpathString(text))
	if err := chromedp.Run(clickCtx,
		chromedp.WaitVisible(xp, chromedp.BySearch),
		chromedp.Click(xp, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("failed to click text %q: %w", text, err)
	}
	return nil
}

// ClickButton clicks a button whose label contains the given text.
func (s *Session) ClickButton(ctx context.Context, label string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clickCtx, cancel := s.bounded(timeout)
	defer cancel()
	xp := fmt.Sprintf(`//button[contains(normalize-space(.), %s)]`, xpathString(label))
	if err := chromedp.Run(clickCtx,
		chromedp.WaitVisible(xp, chromedp.BySearch),
		chromedp.Click(xp, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("failed to click button %q: %w", label, err)
	}
	return nil
}

// ClickNth dispatches a click on the n-th element matching the selector.
// Dropdown triggers on the target site repeat per widget, so flows address
// them positionally.
func (s *Session) ClickNth(ctx context.Context, selector string, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	js := fmt.Sprintf(`(() => {
		const els = document.querySelectorAll(%q);
		if (els.length <= %d) throw new Error("no element at index %d");
		els[%d].click();
		return true;
	})()`, selector, index, index, index)
	var ok bool
	if err := chromedp.Run(s.browserCtx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("failed to click %q[%d]: %w", selector, index, err)
	}
	return nil
}

// ClickAt dispatches a raw mouse click at viewport coordinates.
func (s *Session) ClickAt(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(s.browserCtx, chromedp.MouseClickXY(x, y)); err != nil {
		return fmt.Errorf("failed to click at (%.0f, %.0f): %w", x, y, err)
	}
	return nil
}

// HasElement reports whether the document currently matches the selector.
func (s *Session) HasElement(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var found bool
	js := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := chromedp.Run(s.browserCtx, chromedp.Evaluate(js, &found)); err != nil {
		return false, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	return found, nil
}

// ElementBoxes returns bounding boxes of visible elements matching the
// selector.
func (s *Session) ElementBoxes(ctx context.Context, selector string) ([]Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%q))
		.map(el => el.getBoundingClientRect())
		.filter(r => r.width > 0 && r.height > 0)
		.map(r => ({x: r.x, y: r.y, width: r.width, height: r.height}))`, selector)
	var boxes []Box
	if err := chromedp.Run(s.browserCtx, chromedp.Evaluate(js, &boxes)); err != nil {
		return nil, fmt.Errorf("failed to measure %q: %w", selector, err)
	}
	return boxes, nil
}

// TextBoxes returns bounding boxes of visible elements whose own text
// matches the given string.
func (s *Session) TextBoxes(ctx context.Context, text string, exact bool) ([]Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	js := fmt.Sprintf(`(() => {
		const want = %q;
		const exact = %t;
		const out = [];
		const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_ELEMENT);
		while (walker.nextNode()) {
			const el = walker.currentNode;
			let own = '';
			for (const n of el.childNodes) {
				if (n.nodeType === Node.TEXT_NODE) own += n.textContent;
			}
			own = own.trim();
			if (exact ? own !== want : !own.includes(want)) continue;
			const r = el.getBoundingClientRect();
			if (r.width > 0 && r.height > 0) out.push({x: r.x, y: r.y, width: r.width, height: r.height});
		}
		return out;
	})()`, text, exact)
	var boxes []Box
	if err := chromedp.Run(s.browserCtx, chromedp.Evaluate(js, &boxes)); err != nil {
		return nil, fmt.Errorf("failed to measure text %q: %w", text, err)
	}
	return boxes, nil
}

// SetFiles attaches a local file to a file input.
func (s *Session) SetFiles(ctx context.Context, selector, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(s.browserCtx,
		chromedp.SetUploadFiles(selector, []string{path}, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to set file on %q: %w", selector, err)
	}
	return nil
}

// Evaluate runs a JavaScript snippet for its side effects.
func (s *Session) Evaluate(ctx context.Context, js string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.browserCtx, chromedp.Evaluate(js, nil))
}

// ScrollTop scrolls the page back to its origin.
func (s *Session) ScrollTop(ctx context.Context) error {
	return s.Evaluate(ctx, "window.scrollTo(0, 0)")
}

// Screenshot captures the current page as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf []byte
	err := chromedp.Run(s.browserCtx, chromedp.ActionFunc(func(cctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithFromSurface(true).
			Do(cctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// xpathString renders a Go string as an XPath string literal. XPath 1.0 has
// no escape sequences, so values containing both quote kinds fall back to
// concat().
func xpathString(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	var parts []string
	for _, chunk := range strings.Split(s, `"`) {
		if chunk != "" {
			parts = append(parts, `"`+chunk+`"`)
		}
		parts = append(parts, `'"'`)
	}
	return "concat(" + strings.Join(parts[:len(parts)-1], ", ") + ")"
}
