package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/watchtex/internal/config"
	"github.com/mschirtzinger/watchtex/internal/daemon"
	"github.com/mschirtzinger/watchtex/internal/dashboard"
	"github.com/mschirtzinger/watchtex/internal/job"
	"github.com/mschirtzinger/watchtex/internal/jot"
	"github.com/mschirtzinger/watchtex/internal/shrdmm"
	"github.com/mschirtzinger/watchtex/internal/watcher"
)

const version = "1.0"

// lockEnv carries the log lock region name to supervisor processes.
const lockEnv = config.EnvPrefix + "_LOG_LOCK"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "watchtex [path]",
	Short: "Recompile LaTeX documents when their sources change",
	Long: `WatchTeX watches a LaTeX file or directory tree and recompiles every root
document affected by a saved file.

Included files are found by scanning \input, \include and \includeonly
directives with comments stripped. When a file is saved, each document that
includes it, directly or through other files, is compiled again; a compile
still running for the same document is killed first.

Example usage:
  watchtex                       # Watch the current directory
  watchtex thesis/               # Watch a directory tree
  watchtex --dashboard paper.tex # Watch one file with the live dashboard`,
	Version: version,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		printBanner()

		lock := fmt.Sprintf("jot/%d", os.Getpid())
		if err := initLogging(cfg, lock, true); err != nil {
			return err
		}
		cleanup := func() {
			_ = jot.Close()
			_ = shrdmm.Destroy(lock)
		}
		jot.AtExit(cleanup)

		code := watch(path, cfg, lock)
		cleanup()
		os.Exit(code)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default .watchtex.yaml in . or $HOME)")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("backend", config.DefaultBackend(), "watcher backend (inotify or fsnotify)")
	flags.String("compiler", "rubber", "compiler run on each root document")
	flags.String("log-file", "", "also write logs to this file, with rotation")

	rootCmd.Flags().Bool("dashboard", false, "serve the live dashboard")
	rootCmd.Flags().Int("port", 8390, "dashboard port")

	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("compiler", flags.Lookup("compiler"))
	_ = viper.BindPFlag("log.file", flags.Lookup("log-file"))
	_ = viper.BindPFlag("dashboard.enabled", rootCmd.Flags().Lookup("dashboard"))
	_ = viper.BindPFlag("dashboard.port", rootCmd.Flags().Lookup("port"))
}

// printBanner writes the startup banner to stderr, with the log lines.
func printBanner() {
	fmt.Fprintln(os.Stderr, lipgloss.NewStyle().Bold(true).Render("WatchTeX v"+version))
}

func initConfig() {
	if err := config.Init(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// initLogging installs the process logger. Only the watching process writes
// the log file; supervisors share its console and lock.
func initLogging(cfg config.Config, lock string, withFile bool) error {
	opts := jot.Options{
		Verbose:  cfg.Verbose,
		LockName: lock,
	}
	if withFile {
		opts.File = cfg.Log.File
		opts.MaxSizeMB = cfg.Log.MaxSizeMB
		opts.MaxBackups = cfg.Log.MaxBackups
	}
	if err := jot.Init(opts); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// supervisorEnv is the environment handed to supervisor processes: the
// effective verbosity, the log lock and the config file this process read.
func supervisorEnv(cfg config.Config, lock, cfgFile string) []string {
	env := []string{
		fmt.Sprintf("%s_VERBOSE=%t", config.EnvPrefix, cfg.Verbose),
		lockEnv + "=" + lock,
	}
	if cfgFile != "" {
		env = append(env, config.FileEnv+"="+cfgFile)
	}
	return env
}

// watch runs a watch session and returns the process exit status.
func watch(path string, cfg config.Config, lock string) int {
	var (
		server  *dashboard.Server
		handler *dashboard.Handler
	)
	if cfg.Dashboard.Enabled {
		server = dashboard.NewServer(&dashboard.Config{Port: cfg.Dashboard.Port})
		handler = dashboard.NewHandler(server)
	}

	jobCfg := job.Config{
		Compiler: cfg.Compiler,
		Args:     cfg.CompilerArgs,
		Env:      supervisorEnv(cfg, lock, config.File()),
	}
	if handler != nil {
		jobCfg.Observer = handler
	}
	mgr := job.NewManager(jobCfg)

	dcfg := daemon.Config{
		Backend:    watcher.Backend(cfg.Backend),
		IgnoreDirs: cfg.IgnoreDirs,
		Compiler:   mgr,
	}
	if handler != nil {
		dcfg.Sink = handler
	}
	d, err := daemon.New(path, dcfg)
	if err != nil {
		jot.Error("%v", err)
		return 1
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if server != nil {
		server.Attach(d.Graph(), mgr)
		if err := server.Start(); err != nil {
			jot.Error("failed to start dashboard: %v", err)
			return 1
		}
		g.Go(func() error {
			<-gctx.Done()
			return server.Stop()
		})
	}
	g.Go(func() error {
		defer cancel()
		return d.Run(gctx)
	})

	err = g.Wait()
	interrupted := sigCtx.Err() != nil && err == nil

	if interrupted {
		d.Report()
	}
	mgr.Shutdown()

	switch {
	case err != nil:
		jot.Fatal("%v", err)
		return 1
	case interrupted:
		return 1
	}
	return 0
}
