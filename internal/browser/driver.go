package browser

import (
	"context"
	"time"
)

// Box is an element bounding box in CSS pixels.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CenterX returns the horizontal center of the box.
func (b Box) CenterX() float64 { return b.X + b.Width/2 }

// CenterY returns the vertical center of the box.
func (b Box) CenterY() float64 { return b.Y + b.Height/2 }

// Driver is the page-driving capability surface the flows and the
// verification engine are written against. The production implementation is
// a chromedp Session; tests substitute fakes.
type Driver interface {
	// Navigate loads a URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)

	// WaitLocationContains waits until the page URL contains fragment.
	WaitLocationContains(ctx context.Context, fragment string, timeout time.Duration) error

	// WaitVisible waits for a CSS-selected element to become visible.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// TextVisible reports whether any element whose text contains the given
	// string becomes visible within the timeout.
	TextVisible(ctx context.Context, text string, timeout time.Duration) bool

	// Fill clears a CSS-selected input and types the value into it.
	Fill(ctx context.Context, selector, value string) error

	// PressEnter sends the Enter key to a CSS-selected element.
	PressEnter(ctx context.Context, selector string) error

	// PressEscape sends the Escape key to the page.
	PressEscape(ctx context.Context) error

	// Click waits for a CSS-selected element and clicks it.
	Click(ctx context.Context, selector string, timeout time.Duration) error

	// ClickText clicks the first visible element whose text contains the
	// given string.
	ClickText(ctx context.Context, text string, timeout time.Duration) error

	// ClickButton clicks a button whose label contains the given text.
	ClickButton(ctx context.Context, label string, timeout time.Duration) error

	// ClickNth dispatches a click on the n-th (0-based) element matching the
	// CSS selector.
	ClickNth(ctx context.Context, selector string, index int) error

	// ClickAt dispatches a raw mouse click at viewport coordinates.
	ClickAt(ctx context.Context, x, y float64) error

	// HasElement reports whether the document currently contains a match for
	// the CSS selector, without waiting.
	HasElement(ctx context.Context, selector string) (bool, error)

	// ElementBoxes returns bounding boxes of all visible elements matching
	// the CSS selector.
	ElementBoxes(ctx context.Context, selector string) ([]Box, error)

	// TextBoxes returns bounding boxes of visible elements whose own text
	// matches the given string (exact trimmed match when exact is true,
	// substring otherwise).
	TextBoxes(ctx context.Context, text string, exact bool) ([]Box, error)

	// SetFiles attaches a local file to a file input.
	SetFiles(ctx context.Context, selector, path string) error

	// Evaluate runs a JavaScript snippet for its side effects.
	Evaluate(ctx context.Context, js string) error

	// ScrollTop scrolls the page back to its origin.
	ScrollTop(ctx context.Context) error

	// Screenshot captures the current page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
}
