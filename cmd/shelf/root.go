package shelf

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/kerbaras/shelf/pkg/api"
	"github.com/kerbaras/shelf/pkg/app"
	"github.com/kerbaras/shelf/pkg/config"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/integrations"
	"github.com/kerbaras/shelf/pkg/reader"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/kerbaras/shelf/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// environment is what every command works with, built once per run
type environment struct {
	cfg        *config.Config
	log        *logrus.Logger
	logFile    io.Closer
	repo       *data.Repository
	controller *services.LibraryController
	syncer     *reader.ProgressSyncer
	exporter   *integrations.NotebookExporter
}

var (
	configPath string
	env        *environment
)

var rootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Your PDF library in the terminal",
	Long:  "Upload, organise and read the books of your online PDF library from a TUI and CLI",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		env, err = setup(configPath)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
	Run: func(cmd *cobra.Command, args []string) {
		// Launch TUI by default
		a := app.NewApp(env.controller, env.syncer, env.exporter, env.cfg.Reader.Scale, env.log)
		check(a.Run())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML or TOML)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(highlightCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(exportCmd)
}

func setup(path string) (*environment, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log, logFile, err := utils.NewLogger(cfg.Logging.Level, cfg.LogPath())
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	repo, err := data.NewDuckDBRepository(cfg.DatabasePath())
	if err != nil {
		logFile.Close()
		return nil, err
	}

	if expiry, ok := api.TokenExpiry(cfg.API.Token); ok && time.Now().After(expiry) {
		warnf("Your API token expired on %s; requests will be rejected", expiry.Local().Format(time.RFC1123))
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout, log)
	log.WithField("api", cfg.API.BaseURL).WithField("data_dir", cfg.Storage.DataDir).Debug("shelf starting")

	return &environment{
		cfg:        cfg,
		log:        log,
		logFile:    logFile,
		repo:       repo,
		controller: services.NewLibraryController(client, repo, cfg.CacheDir(), log),
		syncer:     reader.NewProgressSyncer(client, cfg.Reader.SyncInterval, log),
		exporter:   integrations.NewNotebookExporter(cfg.ExportDir()),
	}, nil
}

func teardown() {
	if env == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := env.syncer.Close(ctx); err != nil {
		env.log.WithError(err).Warn("failed to flush progress")
	}
	env.controller.Close()
	if err := env.repo.Close(); err != nil {
		env.log.WithError(err).Warn("failed to close database")
	}
	env.logFile.Close()
	env = nil
}

// check tears the environment down before cobra.CheckErr exits, so the
// database is closed and pending progress is flushed
func check(err error) {
	if err == nil {
		return
	}
	teardown()
	cobra.CheckErr(err)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	// PersistentPostRun is skipped when a command fails
	teardown()
	if err != nil {
		os.Exit(1)
	}
}

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	mutedColor   = color.New(color.FgHiBlack)
)

func successf(format string, args ...any) {
	successColor.Printf("✔ "+format+"\n", args...)
}

func warnf(format string, args ...any) {
	warnColor.Fprintf(os.Stderr, "! "+format+"\n", args...)
}
