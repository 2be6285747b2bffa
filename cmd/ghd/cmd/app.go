package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/abysmo/ghd/internal/config"
	"github.com/abysmo/ghd/internal/db"
	"github.com/abysmo/ghd/internal/github"
	"github.com/abysmo/ghd/internal/session"
)

// app is everything a command needs once configuration is resolved
type app struct {
	cfg      *config.Config
	db       *db.DB
	sessions *session.Manager
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openApp creates the database on first use, connects to it and wires the
// session manager to the GitHub client.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	database, err := openDB(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	client, err := github.NewClient(github.Options{
		APIURL:   cfg.GitHub.APIURL,
		Timeout:  cfg.GitHub.Timeout,
		PerPage:  cfg.GitHub.PerPage,
		MaxPages: cfg.GitHub.MaxPages,
	}, logger.Named("github"))
	if err != nil {
		database.Close()
		return nil, err
	}

	sessions := session.New(database, client, logger.Named("session"),
		session.WithTimeout(cfg.GitHub.Timeout),
		session.WithRefreshInterval(cfg.Sync.RefreshInterval))

	return &app{cfg: cfg, db: database, sessions: sessions}, nil
}

func openDB(ctx context.Context, path string) (*db.DB, error) {
	store := db.New(path)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	database, err := store.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// explain turns session errors into something a user can act on
func explain(err error) error {
	switch {
	case errors.Is(err, session.ErrTokenNotFound):
		return fmt.Errorf("no active token: run 'ghd token set <token>'")
	case errors.Is(err, session.ErrUserNotSet):
		return fmt.Errorf("active token has no known user: run 'ghd token set <token>' again")
	case errors.Is(err, session.ErrBadCredential):
		return fmt.Errorf("GitHub rejected the token: %w", err)
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Helper functions

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
