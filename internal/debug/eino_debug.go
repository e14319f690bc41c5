package debug

import (
	"context"

	"github.com/cloudwego/eino-ext/devops"

	"tradecrew/internal/config"
	"tradecrew/pkg/errors"
	"tradecrew/pkg/logger"
)

// InitEino starts the eino visual debug plugin when EINO_DEBUG is set.
// The devops server lets you inspect agent orchestration while a run is live.
func InitEino(ctx context.Context, cfg *config.Config) error {
	if !cfg.Debug.EinoEnabled {
		return nil
	}

	if err := devops.Init(ctx); err != nil {
		return errors.Wrap(err, "initialize eino debug plugin")
	}

	logger.Get().With("component", "debug").
		Infof("eino debug server up, inspect orchestration at http://localhost:52538")
	return nil
}
