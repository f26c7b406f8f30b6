// Package cmd wires shared infrastructure for the command-line entry points.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tracklane/tracklane/pkg/persistence"
	"github.com/tracklane/tracklane/pkg/persistence/file"
	"github.com/tracklane/tracklane/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence layer from the database URL scheme.
// postgres:// URLs get the PostgreSQL adapter; everything else falls back
// to the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		pg, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL persistence: %w", err)
		}

		return pg, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
