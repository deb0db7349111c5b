package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/torfstack/sideload/internal/auth"
	"github.com/torfstack/sideload/internal/config"
	"github.com/torfstack/sideload/internal/db"
	"github.com/torfstack/sideload/internal/local"
	"github.com/torfstack/sideload/internal/logging"
	"github.com/torfstack/sideload/internal/notify"
	"github.com/torfstack/sideload/internal/remote"
	"github.com/torfstack/sideload/internal/service"
	"github.com/torfstack/sideload/internal/version"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:           version.AppName,
		Short:         "Instant upload of finished files to cloud storage",
		Version:       version.Detailed(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var (
		debug      bool
		configPath string
	)
	rootCmd.PersistentFlags().
		BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.SetDebug(debug)
		if configPath != "" {
			config.SetFilePath(configPath)
		}
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Watch the upload directory and upload finished files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), loadConfig(false))
		},
	}

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create the config file interactively",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_ = loadConfig(true)
			fmt.Printf("Config file at %s\n", config.FilePath())
		},
	}

	var loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Google Drive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(false)
			database, err := db.New(cmd.Context(), cfg.StateDir)
			if err != nil {
				return err
			}
			defer func(database *db.Database) {
				_ = database.Close()
			}(database)

			if err = auth.Login(cmd.Context(), cfg.Drive.CredentialsFile, database.Queries()); err != nil {
				return err
			}
			fmt.Println("Authentication successful.")
			return nil
		},
	}

	var limit int
	var historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List uploaded and quarantined files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(false)
			database, err := db.New(cmd.Context(), cfg.StateDir)
			if err != nil {
				return err
			}
			defer func(database *db.Database) {
				_ = database.Close()
			}(database)

			entries, err := database.Queries().ListHistory(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("could not list history: %w", err)
			}
			printHistory(entries)
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")

	var notifyCmd = &cobra.Command{
		Use:   "notify <text>",
		Short: "Send a test message through the configured notifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(false)
			if !notify.New(cfg).Send(cmd.Context(), strings.Join(args, " ")) {
				return errors.New("message was not delivered")
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, initCmd, loginCmd, historyCmd, notifyCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error("Exiting", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig(interactive bool) config.Config {
	cfg, err := config.Get(interactive)
	if err != nil {
		logging.Fatalf("Could not load config: %s", err)
	}
	logging.Info("Loaded config", "path", config.FilePath(), "config", cfg)
	return cfg
}

func run(ctx context.Context, cfg config.Config) error {
	lock, err := local.AcquireLock(cfg.StateDir)
	if err != nil {
		return err
	}
	defer func(lock *local.Lock) {
		_ = lock.Release()
	}(lock)

	database, err := db.New(ctx, cfg.StateDir)
	if err != nil {
		return err
	}
	defer func(database *db.Database) {
		_ = database.Close()
	}(database)

	factory, err := remote.NewFactory(cfg, database.Queries())
	if err != nil {
		return err
	}

	srv, err := service.New(ctx, service.Options{
		Config:   cfg,
		Factory:  factory,
		Notifier: notify.New(cfg),
		History:  database.Queries(),
	})
	if err != nil {
		return err
	}

	logging.Infof("Starting %s %s", version.AppName, version.Short())
	if err = srv.RunDaemon(ctx); err != nil {
		return err
	}
	logging.Info("Shutting down")
	return nil
}

func printHistory(entries []db.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Println("No uploads recorded yet.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WHEN\tOUTCOME\tSIZE\tATTEMPTS\tPATH")
	for _, e := range entries {
		_, _ = fmt.Fprintf(
			w, "%s\t%s\t%s\t%d\t%s\n",
			humanize.Time(e.CreatedAt), e.Outcome, humanize.IBytes(uint64(e.Size)), e.Attempts, e.Path,
		)
	}
	_ = w.Flush()
}
