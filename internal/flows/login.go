package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/dubtest/internal/browser"
	"github.com/ternarybob/dubtest/internal/common"
	"github.com/ternarybob/dubtest/internal/logsink"
)

const (
	emailSelector    = `input[type="email"]`
	passwordSelector = `input[type="password"]`
	loginWait        = 15 * time.Second
)

// Login signs into the target site: email, "계속" to advance to the password
// step, password, Enter. The post-login URL must land on the workspace; that
// wait is the only fatal check after submission.
func Login(ctx context.Context, d browser.Driver, target common.TargetConfig, log logsink.Func) error {
	loginURL := strings.TrimRight(target.BaseURL, "/") + target.LoginPath

	log("Opening login page: %s", loginURL)
	if err := d.Navigate(ctx, loginURL); err != nil {
		return fmt.Errorf("login page did not load: %w", err)
	}
	if err := settle(ctx, time.Second); err != nil {
		return err
	}

	ClearObstructions(ctx, d, log)

	log("Entering email...")
	if err := d.Fill(ctx, emailSelector, target.Email); err != nil {
		return fmt.Errorf("email field not found: %w", err)
	}
	if err := settle(ctx, 500*time.Millisecond); err != nil {
		return err
	}

	log("Clicking continue button...")
	if err := d.ClickButton(ctx, "계속", 10*time.Second); err != nil {
		return fmt.Errorf("continue button not found: %w", err)
	}
	if err := settle(ctx, 2*time.Second); err != nil {
		return err
	}

	log("Entering password...")
	if err := d.Fill(ctx, passwordSelector, target.Password); err != nil {
		return fmt.Errorf("password field not found: %w", err)
	}
	if err := settle(ctx, 500*time.Millisecond); err != nil {
		return err
	}

	log("Submitting with Enter...")
	if err := d.PressEnter(ctx, passwordSelector); err != nil {
		return fmt.Errorf("could not submit login form: %w", err)
	}

	log("Waiting for login to complete...")
	if err := d.WaitLocationContains(ctx, target.WorkspacePath, loginWait); err != nil {
		return fmt.Errorf("login did not reach the workspace: %w", err)
	}
	log("Login succeeded")

	// Workspace settle checks are advisory: a slow widget should not fail
	// a login that already reached the right URL.
	log("Waiting for the workspace to load...")
	if d.TextVisible(ctx, "AI Dubbing", 5*time.Second) {
		log("Workspace UI loaded")
	} else {
		log("Some workspace elements are slow to load, continuing")
	}
	if err := settle(ctx, 2*time.Second); err != nil {
		return err
	}
	log("Workspace ready")
	return nil
}

// VerifyLoggedIn confirms an authenticated session beyond the URL check:
// the profile button must be present and its dropdown must offer logout.
// The dropdown is left open so a following screenshot captures the evidence.
func VerifyLoggedIn(ctx context.Context, d browser.Driver, log logsink.Func) error {
	log("Verifying login state...")
	if err := settle(ctx, 2*time.Second); err != nil {
		return err
	}

	log("Looking for the profile button...")
	if !d.TextVisible(ctx, "Plan", 3*time.Second) {
		return fmt.Errorf("profile button not found")
	}
	log("Profile button found")

	log("Opening the profile dropdown...")
	if err := d.ClickText(ctx, "Plan", 3*time.Second); err != nil {
		return fmt.Errorf("could not open the profile dropdown: %w", err)
	}
	if err := settle(ctx, 2*time.Second); err != nil {
		return err
	}

	log("Looking for the logout button...")
	if !d.TextVisible(ctx, "로그아웃", 3*time.Second) {
		return fmt.Errorf("logout button not found in the profile dropdown")
	}
	log("Logout button found, login confirmed")
	return nil
}
