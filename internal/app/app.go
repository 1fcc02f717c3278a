// Package app wires the application together: config, logger, scenario
// runner, notifier, and the HTTP handlers.
package app

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dubtest/internal/common"
	"github.com/ternarybob/dubtest/internal/handlers"
	"github.com/ternarybob/dubtest/internal/notify"
	"github.com/ternarybob/dubtest/internal/scenario"
)

// App holds the long-lived application components.
type App struct {
	Config   *common.Config
	Logger   arbor.ILogger
	Runner   *scenario.Runner
	Notifier *notify.Notifier

	WSHandler   *handlers.WebSocketHandler
	PageHandler *handlers.PageHandler
	APIHandler  *handlers.APIHandler
}

// New builds the application from a validated config.
func New(config *common.Config) *App {
	logger := common.GetLogger()

	runner := scenario.NewRunner(config)
	notifier := notify.NewNotifier(config.Notify)

	return &App{
		Config:      config,
		Logger:      logger,
		Runner:      runner,
		Notifier:    notifier,
		WSHandler:   handlers.NewWebSocketHandler(runner, notifier, logger),
		PageHandler: handlers.NewPageHandler(config.Screenshots.Dir, logger),
		APIHandler:  handlers.NewAPIHandler(logger),
	}
}
