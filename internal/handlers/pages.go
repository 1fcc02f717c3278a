package handlers

import (
	_ "embed"
	"net/http"

	"github.com/ternarybob/arbor"
)

//go:embed index.html
var indexHTML []byte

// PageHandler serves the embedded test console and the screenshots produced
// by runs.
type PageHandler struct {
	logger          arbor.ILogger
	screenshotsDir  string
	screenshotFiles http.Handler
}

// NewPageHandler creates the page handler. Screenshots are served straight
// from the configured directory.
func NewPageHandler(screenshotsDir string, logger arbor.ILogger) *PageHandler {
	return &PageHandler{
		logger:          logger,
		screenshotsDir:  screenshotsDir,
		screenshotFiles: http.StripPrefix("/screenshots/", http.FileServer(http.Dir(screenshotsDir))),
	}
}

// ServeIndex serves the embedded test console page.
func (p *PageHandler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(indexHTML); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to write index page")
	}
}

// ScreenshotHandler serves run screenshots under /screenshots/.
func (p *PageHandler) ScreenshotHandler(w http.ResponseWriter, r *http.Request) {
	p.screenshotFiles.ServeHTTP(w, r)
}
