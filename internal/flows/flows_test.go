package flows

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/dubtest/internal/browser"
	"github.com/ternarybob/dubtest/internal/common"
)

// fakeDriver records calls and lets each test script failures per method.
// Zero value succeeds everywhere.
type fakeDriver struct {
	calls []string

	navigateErr     error
	hasElement      bool
	hasElementErr   error
	waitVisibleErr  error
	waitLocationErr error
	fillErr         error
	clickButtonErr  map[string]error
	textVisible     map[string]bool
	textBoxes       map[string][]browser.Box
	evaluateErr     error
}

func (f *fakeDriver) record(name string) { f.calls = append(f.calls, name) }

func (f *fakeDriver) called(name string) bool {
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	f.record("Navigate")
	return f.navigateErr
}

func (f *fakeDriver) Location(ctx context.Context) (string, error) {
	f.record("Location")
	return "", nil
}

func (f *fakeDriver) WaitLocationContains(ctx context.Context, fragment string, timeout time.Duration) error {
	f.record("WaitLocationContains")
	return f.waitLocationErr
}

func (f *fakeDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	f.record("WaitVisible")
	return f.waitVisibleErr
}

func (f *fakeDriver) TextVisible(ctx context.Context, text string, timeout time.Duration) bool {
	f.record("TextVisible")
	return f.textVisible[text]
}

func (f *fakeDriver) Fill(ctx context.Context, selector, value string) error {
	f.record("Fill " + selector)
	return f.fillErr
}

func (f *fakeDriver) PressEnter(ctx context.Context, selector string) error {
	f.record("PressEnter")
	return nil
}

func (f *fakeDriver) PressEscape(ctx context.Context) error {
	f.record("PressEscape")
	return nil
}

func (f *fakeDriver) Click(ctx context.Context, selector string, timeout time.Duration) error {
	f.record("Click " + selector)
	return nil
}

func (f *fakeDriver) ClickText(ctx context.Context, text string, timeout time.Duration) error {
	f.record("ClickText " + text)
	return nil
}

func (f *fakeDriver) ClickButton(ctx context.Context, label string, timeout time.Duration) error {
	f.record("ClickButton " + label)
	if err, ok := f.clickButtonErr[label]; ok {
		return err
	}
	return nil
}

func (f *fakeDriver) ClickNth(ctx context.Context, selector string, index int) error {
	f.record(fmt.Sprintf("ClickNth %s %d", selector, index))
	return nil
}

func (f *fakeDriver) ClickAt(ctx context.Context, x, y float64) error {
	f.record(fmt.Sprintf("ClickAt %.0f,%.0f", x, y))
	return nil
}

func (f *fakeDriver) HasElement(ctx context.Context, selector string) (bool, error) {
	f.record("HasElement " + selector)
	return f.hasElement, f.hasElementErr
}

func (f *fakeDriver) ElementBoxes(ctx context.Context, selector string) ([]browser.Box, error) {
	f.record("ElementBoxes")
	return nil, nil
}

func (f *fakeDriver) TextBoxes(ctx context.Context, text string, exact bool) ([]browser.Box, error) {
	f.record("TextBoxes " + text)
	return f.textBoxes[text], nil
}

func (f *fakeDriver) SetFiles(ctx context.Context, selector, path string) error {
	f.record("SetFiles " + path)
	return nil
}

func (f *fakeDriver) Evaluate(ctx context.Context, js string) error {
	f.record("Evaluate")
	return f.evaluateErr
}

func (f *fakeDriver) ScrollTop(ctx context.Context) error {
	f.record("ScrollTop")
	return nil
}

func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	f.record("Screenshot")
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func discardLog(format string, args ...interface{}) {}

func testTarget() common.TargetConfig {
	return common.TargetConfig{
		BaseURL:       "https://perso.ai",
		LoginPath:     "/ko/login",
		WorkspacePath: "/workspace",
		Email:         "tester@example.com",
		Password:      "secret",
	}
}

func TestUploadFailsWithoutFileInput(t *testing.T) {
	d := &fakeDriver{hasElement: false}

	modal, err := Upload(context.Background(), d, "/tmp/sample.mp4", discardLog)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no file upload input")
	assert.False(t, modal)
	// The check runs before any upload or modal wait.
	assert.False(t, d.called("SetFiles /tmp/sample.mp4"))
	assert.False(t, d.called("WaitVisible"))
}

func TestUploadDetectsModal(t *testing.T) {
	d := &fakeDriver{
		hasElement:  true,
		textVisible: map[string]bool{"번역 언어": true},
	}

	modal, err := Upload(context.Background(), d, "/tmp/sample.mp4", discardLog)

	require.NoError(t, err)
	assert.True(t, modal)
	assert.True(t, d.called("SetFiles /tmp/sample.mp4"))
}

func TestUploadWithoutModalIsNotAnError(t *testing.T) {
	d := &fakeDriver{
		hasElement:     true,
		waitVisibleErr: fmt.Errorf("timeout"),
	}

	modal, err := Upload(context.Background(), d, "/tmp/sample.mp4", discardLog)

	require.NoError(t, err)
	assert.False(t, modal)
}

func TestLoginFailsWhenWorkspaceNotReached(t *testing.T) {
	d := &fakeDriver{
		waitLocationErr: fmt.Errorf("timeout"),
		clickButtonErr: map[string]error{
			"Accept all": fmt.Errorf("not found"),
			"Accept":     fmt.Errorf("not found"),
			"모두 수락":      fmt.Errorf("not found"),
			"수락":         fmt.Errorf("not found"),
			"모두 동의":      fmt.Errorf("not found"),
			"동의":         fmt.Errorf("not found"),
			"Next":       fmt.Errorf("not found"),
			"다음":         fmt.Errorf("not found"),
			"Done":       fmt.Errorf("not found"),
			"완료":         fmt.Errorf("not found"),
		},
	}

	err := Login(context.Background(), d, testTarget(), discardLog)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not reach the workspace")
	assert.True(t, d.called("PressEnter"))
}

func TestVerifyLoggedInOpensProfileDropdown(t *testing.T) {
	d := &fakeDriver{
		textVisible: map[string]bool{"Plan": true, "로그아웃": true},
	}

	err := VerifyLoggedIn(context.Background(), d, discardLog)

	require.NoError(t, err)
	assert.True(t, d.called("ClickText Plan"))
}

func TestVerifyLoggedInFailsWithoutProfileButton(t *testing.T) {
	d := &fakeDriver{}

	err := VerifyLoggedIn(context.Background(), d, discardLog)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile button not found")
	assert.False(t, d.called("ClickText Plan"))
}

func TestVerifyLoggedInFailsWithoutLogoutButton(t *testing.T) {
	d := &fakeDriver{
		textVisible: map[string]bool{"Plan": true},
	}

	err := VerifyLoggedIn(context.Background(), d, discardLog)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "logout button not found")
}

func TestConfigureTranslationClicksLastMatch(t *testing.T) {
	d := &fakeDriver{
		clickButtonErr: map[string]error{
			"Next": fmt.Errorf("not found"),
			"다음":   fmt.Errorf("not found"),
			"Done": fmt.Errorf("not found"),
			"완료":   fmt.Errorf("not found"),
		},
		textBoxes: map[string][]browser.Box{
			// First box is the collapsed trigger label, second the option row.
			"Korean":  {{X: 10, Y: 10, Width: 80, Height: 20}, {X: 100, Y: 200, Width: 80, Height: 20}},
			"English": {{X: 100, Y: 240, Width: 80, Height: 20}},
		},
	}

	err := ConfigureTranslation(context.Background(), d, "Korean", "English", discardLog)

	require.NoError(t, err)
	assert.True(t, d.called("ClickNth button[role=\"combobox\"] 0"))
	assert.True(t, d.called("ClickNth button[role=\"combobox\"] 1"))
	// Center of the last Korean box, not the first.
	assert.True(t, d.called("ClickAt 140,210"))
	assert.True(t, d.called("ClickButton 번역하기"))
}

func TestConfigureTranslationFailsWithoutOptions(t *testing.T) {
	d := &fakeDriver{}

	err := ConfigureTranslation(context.Background(), d, "Korean", "English", discardLog)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "source language selection failed")
}

func TestClearObstructionsContinuesPastFailures(t *testing.T) {
	d := &fakeDriver{
		evaluateErr: fmt.Errorf("execution context destroyed"),
		clickButtonErr: map[string]error{
			"Accept all": fmt.Errorf("not found"),
			"Accept":     fmt.Errorf("not found"),
			"모두 수락":      fmt.Errorf("not found"),
			"수락":         fmt.Errorf("not found"),
			"모두 동의":      fmt.Errorf("not found"),
			"동의":         fmt.Errorf("not found"),
		},
	}

	ClearObstructions(context.Background(), d, discardLog)

	// Later strategies still run after the JS removals fail.
	assert.True(t, d.called("ScrollTop"))
}
