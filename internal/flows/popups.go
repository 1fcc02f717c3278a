// Package flows contains the browser flows the scenarios are built from:
// login, video upload, translation configuration, and the obstruction clearer
// that keeps marketing popups and onboarding tours out of their way.
package flows

import (
	"context"
	"time"

	"github.com/ternarybob/dubtest/internal/browser"
	"github.com/ternarybob/dubtest/internal/logsink"
)

// cookieButtonLabels are the consent button texts seen on the target site,
// tried in order.
var cookieButtonLabels = []string{
	"Accept all",
	"Accept",
	"모두 수락",
	"수락",
	"모두 동의",
	"동의",
}

// closeButtonMaxSize filters close affordances: a real popup close button is
// a small icon, anything larger is likely page content.
const closeButtonMaxSize = 50.0

// strategy is one obstruction-clearing step. Steps are independent; a failing
// step is logged and skipped, never fatal.
type strategy struct {
	name string
	run  func(ctx context.Context, d browser.Driver, log logsink.Func) error
}

// clearStrategies run in a fixed order: consent first so banners stop
// intercepting clicks, then injected third-party DOM, then generic close
// buttons, then the onboarding tour, then a scroll back to origin.
var clearStrategies = []strategy{
	{"acceptCookies", acceptCookies},
	{"removeThirdPartyFrames", removeThirdPartyFrames},
	{"removeOverlays", removeOverlays},
	{"closeSmallButtons", closeSmallButtons},
	{"dismissTour", dismissTour},
	{"scrollTop", scrollTop},
}

// ClearObstructions runs every clearing strategy in order. Failures are
// narrated and skipped so one broken step never blocks the flow.
func ClearObstructions(ctx context.Context, d browser.Driver, log logsink.Func) {
	log("Clearing popups and overlays...")
	for _, s := range clearStrategies {
		if err := s.run(ctx, d, log); err != nil {
			log("Popup step %s skipped: %v", s.name, err)
		}
	}
	log("Popup cleanup done")
}

func acceptCookies(ctx context.Context, d browser.Driver, log logsink.Func) error {
	for _, label := range cookieButtonLabels {
		if err := d.ClickButton(ctx, label, 2*time.Second); err == nil {
			log("Accepted cookie banner (%s)", label)
			return settle(ctx, time.Second)
		}
	}
	log("No cookie banner")
	return nil
}

func removeThirdPartyFrames(ctx context.Context, d browser.Driver, log logsink.Func) error {
	err := d.Evaluate(ctx, `
		document.querySelectorAll('iframe[title*="Popup"], iframe[id*="hs-"]').forEach(f => {
			(f.parentElement || f).remove();
		});`)
	if err != nil {
		return err
	}
	return settle(ctx, time.Second)
}

func removeOverlays(ctx context.Context, d browser.Driver, log logsink.Func) error {
	err := d.Evaluate(ctx, `
		['#hs-interactives-modal-overlay', '#hs-web-interactives-top-anchor'].forEach(sel => {
			const el = document.querySelector(sel);
			if (el) el.remove();
		});`)
	if err != nil {
		return err
	}
	return settle(ctx, time.Second)
}

// closeSmallButtons clicks small close affordances until none remain, up to
// five rounds. Closing one popup can reveal the next, hence the rounds.
func closeSmallButtons(ctx context.Context, d browser.Driver, log logsink.Func) error {
	closed := 0
	for round := 0; round < 5; round++ {
		box, found, err := findCloseButton(ctx, d)
		if err != nil {
			return err
		}
		if !found {
			break
		}
		if err := d.ClickAt(ctx, box.CenterX(), box.CenterY()); err != nil {
			return err
		}
		closed++
		log("Closed popup %d", closed)
		if err := settle(ctx, time.Second); err != nil {
			return err
		}
	}
	if closed == 0 {
		log("No popups to close")
	}
	return nil
}

// findCloseButton returns the first small close affordance: an × / ✕ glyph
// or an aria-labelled close button.
func findCloseButton(ctx context.Context, d browser.Driver) (browser.Box, bool, error) {
	for _, glyph := range []string{"×", "✕"} {
		boxes, err := d.TextBoxes(ctx, glyph, true)
		if err != nil {
			return browser.Box{}, false, err
		}
		if box, ok := firstSmall(boxes); ok {
			return box, true, nil
		}
	}
	boxes, err := d.ElementBoxes(ctx, `button[aria-label="Close"], button[aria-label="close"]`)
	if err != nil {
		return browser.Box{}, false, err
	}
	if box, ok := firstSmall(boxes); ok {
		return box, true, nil
	}
	return browser.Box{}, false, nil
}

func firstSmall(boxes []browser.Box) (browser.Box, bool) {
	for _, b := range boxes {
		if b.Width < closeButtonMaxSize && b.Height < closeButtonMaxSize {
			return b, true
		}
	}
	return browser.Box{}, false
}

// dismissTour clears the onboarding tour overlay, then walks any remaining
// tour dialog with its Next/Done buttons.
func dismissTour(ctx context.Context, d browser.Driver, log logsink.Func) error {
	err := d.Evaluate(ctx, `
		const overlay = document.querySelector('.driver-overlay');
		if (overlay) overlay.remove();
		const popover = document.querySelector('.driver-popover');
		if (popover) popover.remove();
		document.body.classList.remove('driver-active');
		document.body.style.overflow = '';`)
	if err != nil {
		return err
	}
	if err := settle(ctx, time.Second); err != nil {
		return err
	}

	for _, label := range []string{"Next", "다음"} {
		if err := d.ClickButton(ctx, label, time.Second); err == nil {
			log("Clicked tour Next button")
			if err := settle(ctx, 1500*time.Millisecond); err != nil {
				return err
			}
			break
		}
	}
	for _, label := range []string{"Done", "완료"} {
		if err := d.ClickButton(ctx, label, 2*time.Second); err == nil {
			log("Clicked tour Done button")
			return settle(ctx, time.Second)
		}
	}
	return nil
}

func scrollTop(ctx context.Context, d browser.Driver, log logsink.Func) error {
	if err := d.ScrollTop(ctx); err != nil {
		return err
	}
	return settle(ctx, time.Second)
}

// settle waits for the page to quiesce after an interaction, honoring
// cancellation.
func settle(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
