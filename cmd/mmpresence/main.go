package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mmpresence/internal/adapter/driven/mattermost"
	sqliteadapter "github.com/ericfisherdev/mmpresence/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/mmpresence/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "mmpresence",
	Short: "Keep a Mattermost presence status at a desired value",
	Long: `mmpresence captures Mattermost session identifiers from observed browser
traffic and periodically reasserts the desired presence status.

Run without a subcommand to start the daemon (same as "mmpresence serve").`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, statusCmd, sessionCmd, settingsCmd, reassertCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// cliEnv bundles what the one-shot commands need: config, logger and an
// open session store.
type cliEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteadapter.DB
	store  *sqliteadapter.SessionRepo
}

// openCLIEnv loads config and opens the database with migrations applied.
// The caller must call close.
func openCLIEnv(ctx context.Context) (*cliEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger()

	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if _, err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &cliEnv{
		cfg:    cfg,
		logger: logger,
		db:     db,
		store:  sqliteadapter.NewSessionRepo(db),
	}, nil
}

func (r *cliEnv) close() {
	if err := r.db.Close(); err != nil {
		r.logger.Error("error closing database", "error", err)
	}
}

// statusClient builds the Mattermost client from config.
func (r *cliEnv) statusClient() *mattermost.Client {
	return mattermost.NewClient(
		mattermost.WithHTTPClient(&http.Client{Timeout: r.cfg.HTTPTimeout}),
		mattermost.WithRateLimit(r.cfg.RateLimit),
		mattermost.WithLogger(r.logger),
	)
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Output format (json)")
}

// writeOutput encodes v as indented JSON when -o json was given and reports
// whether it did.
func writeOutput(cmd *cobra.Command, w io.Writer, v any) (bool, error) {
	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "":
		return false, nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	default:
		return false, fmt.Errorf("unsupported output format %q", output)
	}
}
