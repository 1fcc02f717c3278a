package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/dubtest/internal/browser"
	"github.com/ternarybob/dubtest/internal/logsink"
)

const (
	comboboxSelector   = `button[role="combobox"]`
	langSearchSelector = `input[placeholder*="언어를 검색"]`
)

// ConfigureTranslation picks the source and target languages in the
// translation settings dialog and starts the job with the "번역하기" button.
// Language names are the site's English option labels ("Korean", "English").
func ConfigureTranslation(ctx context.Context, d browser.Driver, sourceLang, targetLang string, log logsink.Func) error {
	log("Selecting source language: %s", sourceLang)
	if err := selectLanguage(ctx, d, sourceLang, 0, log); err != nil {
		return fmt.Errorf("source language selection failed: %w", err)
	}

	log("Selecting target language: %s", targetLang)
	if err := selectLanguage(ctx, d, targetLang, 1, log); err != nil {
		return fmt.Errorf("target language selection failed: %w", err)
	}

	// Click neutral ground to fold the open dropdown before submitting.
	log("Closing the language dropdown...")
	if err := d.ClickAt(ctx, 900, 300); err != nil {
		return fmt.Errorf("could not close the language dropdown: %w", err)
	}
	if err := settle(ctx, time.Second); err != nil {
		return err
	}

	log("Clicking the translate button...")
	if err := d.ClickButton(ctx, "번역하기", 10*time.Second); err != nil {
		return fmt.Errorf("translate button not found: %w", err)
	}
	if err := settle(ctx, 3*time.Second); err != nil {
		return err
	}
	log("Translation started")

	dismissPostTranslate(ctx, d, log)
	return nil
}

// selectLanguage opens the index-th language dropdown, narrows it with the
// search box, and center-clicks the last exact text match. The last match is
// the option row inside the open dropdown; earlier matches are the collapsed
// trigger labels.
func selectLanguage(ctx context.Context, d browser.Driver, language string, index int, log logsink.Func) error {
	log("Opening language dropdown %d...", index+1)
	if err := d.ClickNth(ctx, comboboxSelector, index); err != nil {
		return fmt.Errorf("could not open dropdown %d: %w", index+1, err)
	}
	if err := settle(ctx, 2*time.Second); err != nil {
		return err
	}

	log("Searching for %q...", language)
	if err := d.Fill(ctx, langSearchSelector, language); err != nil {
		return fmt.Errorf("language search input not found: %w", err)
	}
	if err := settle(ctx, 1500*time.Millisecond); err != nil {
		return err
	}

	boxes, err := d.TextBoxes(ctx, language, true)
	if err != nil {
		return fmt.Errorf("could not locate %q options: %w", language, err)
	}
	if len(boxes) == 0 {
		return fmt.Errorf("no visible option for language %q", language)
	}
	option := boxes[len(boxes)-1]
	if err := d.ClickAt(ctx, option.CenterX(), option.CenterY()); err != nil {
		return fmt.Errorf("could not click language option %q: %w", language, err)
	}
	if err := settle(ctx, 2*time.Second); err != nil {
		return err
	}
	log("Selected %s", language)
	return nil
}

// dismissPostTranslate clears the dialogs the site can show right after the
// job starts: permission prompts, a settings modal, and the onboarding tour.
// All of it is best effort; the job is already running.
func dismissPostTranslate(ctx context.Context, d browser.Driver, log logsink.Func) {
	log("Dismissing post-submit dialogs...")
	if err := d.PressEscape(ctx); err != nil {
		log("Escape press skipped: %v", err)
	}
	_ = settle(ctx, time.Second)
	if err := dismissTour(ctx, d, log); err != nil {
		log("Tour dismissal skipped: %v", err)
	}
}
