package flows

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/dubtest/internal/browser"
	"github.com/ternarybob/dubtest/internal/logsink"
)

const (
	fileInputSelector = `input[type="file"]`
	dialogSelector    = `[role="dialog"]`
	modalWait         = 15 * time.Second
)

// Upload attaches the test video to the page's file input and waits for the
// translation settings dialog to open. The missing-input check runs before
// any modal wait so a broken page fails fast. The returned bool reports
// whether the dialog was detected; its absence is a condition for the caller
// to judge, not an error.
func Upload(ctx context.Context, d browser.Driver, videoFile string, log logsink.Func) (bool, error) {
	log("Looking for the file input...")
	found, err := d.HasElement(ctx, fileInputSelector)
	if err != nil {
		return false, fmt.Errorf("could not inspect the page for a file input: %w", err)
	}
	if !found {
		log("No file input on the page")
		return false, fmt.Errorf("no file upload input found on the page")
	}

	log("Uploading file: %s", filepath.Base(videoFile))
	if err := d.SetFiles(ctx, fileInputSelector, videoFile); err != nil {
		return false, fmt.Errorf("file upload failed: %w", err)
	}
	log("File attached")

	log("Waiting for the translation settings dialog...")
	modalDetected := false
	if err := d.WaitVisible(ctx, dialogSelector, modalWait); err == nil {
		modalDetected = true
		log("Dialog opened")
		if err := settle(ctx, time.Second); err != nil {
			return modalDetected, err
		}
		if d.TextVisible(ctx, "번역 언어", 5*time.Second) {
			log("Translation settings dialog content loaded")
		} else {
			log("Dialog is open but the language section is slow to render")
		}
	} else {
		log("Dialog did not appear within %s", modalWait)
	}

	if err := settle(ctx, 2*time.Second); err != nil {
		return modalDetected, err
	}
	return modalDetected, nil
}
