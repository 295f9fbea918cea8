// Package cli implements trackctl, the operator's command line.
//
// Every subcommand reads the same environment as the server (internal/config)
// and opens the same Click Store (internal/storage), so it can run next to a
// live server or against a copy of its database.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/clicktrail/internal/config"
	"github.com/sakif/clicktrail/internal/repository"
	"github.com/sakif/clicktrail/internal/storage"
)

// env is what commands depend on. Tests swap the config source and the
// store opener.
type env struct {
	loadConfig func() (*config.Config, error)
	openStore  func(dsn string) (repository.ClickRepository, error)
}

// NewRootCommand builds trackctl with the process environment.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&env{
		loadConfig: config.Load,
		openStore:  storage.Open,
	})
}

func newRootCommand(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "trackctl",
		Short: "Operate the click tracker",
		Long: `trackctl exports attribution data and performs maintenance on the click store.

Configuration is read from the environment (and a .env file), exactly as the
server reads it.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newExportCommand(e),
		newSetWebhookCommand(e),
		newPurgeCommand(e),
		newStartsCommand(e),
		newHashTokenCommand(),
	)
	return root
}

// session is a loaded config, a logger and an open store for one command run.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	repo   repository.ClickRepository
}

// open loads the configuration and the store. Logs go to stderr so stdout
// stays clean for CSV and tables.
func (e *env) open(cmd *cobra.Command, withStore bool) (*session, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: cfg.NewLogger(cmd.ErrOrStderr())}

	if withStore {
		repo, err := e.openStore(cfg.DSN())
		if err != nil {
			return nil, err
		}
		s.repo = repo
	}
	return s, nil
}

func (s *session) close() {
	if s.repo == nil {
		return
	}
	if err := s.repo.Close(); err != nil {
		s.logger.Warn("closing click store", slog.String("error", err.Error()))
	}
}
