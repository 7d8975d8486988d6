// Package cmdutil holds helpers shared by the CLI subcommands.
package cmdutil

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/config"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/bunx"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/logging"
)

// OpenDB connects to the configured database.
func OpenDB(ctx context.Context, cfg *config.Config) (*bun.DB, error) {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{MaxOpenConns: cfg.MaxDBConnections})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Logger builds the process logger for cfg.
func Logger(cfg *config.Config) *log.Logger {
	return logging.New(cfg.LogLevel, cfg.Environment)
}

// CloseDB closes db, logging rather than returning the error.
func CloseDB(db *bun.DB, logger log.FieldLogger) {
	if err := bunx.Close(db); err != nil {
		logger.WithError(err).Warn("failed to close database")
	}
}
