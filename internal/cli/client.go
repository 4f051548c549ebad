package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/opencode-ai/pmsync/internal/db"
	"github.com/opencode-ai/pmsync/internal/logging"
	"github.com/opencode-ai/pmsync/internal/postmark"
)

// newClient builds an API client from the loaded configuration, prompting
// for the server token when it is not configured.
func newClient(errOut io.Writer) (*postmark.Client, error) {
	cfg := GetConfig()

	token := cfg.ServerToken
	if token == "" {
		if IsNonInteractive() {
			return nil, &PreflightError{
				Message:  "a Postmark server token is required",
				Hint:     "Set POSTMARK_SERVER_TOKEN, add it to .env or pass --server-token",
				NextStep: "export POSTMARK_SERVER_TOKEN=<token>",
			}
		}
		prompted, err := tokenPrompt(errOut, "Postmark server token")
		if err != nil {
			return nil, err
		}
		if prompted == "" {
			return nil, &PreflightError{Message: "a Postmark server token is required"}
		}
		token = prompted
	}

	return postmark.NewClient(token,
		postmark.WithRequestHost(cfg.RequestHost),
		postmark.WithTimeout(cfg.Timeout),
		postmark.WithUserAgent("pmsync/"+Version),
		postmark.WithLogger(logging.Component("postmark")),
	), nil
}

// openHistory opens and migrates the push journal. It returns nil when the
// journal is disabled.
func openHistory(ctx context.Context) (*db.DB, error) {
	cfg := GetConfig()
	if !cfg.History.Enabled {
		return nil, nil
	}

	database, err := db.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if _, err := database.MigrateUp(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate history: %w", err)
	}
	return database, nil
}
