package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/watchtex/internal/job"
	"github.com/mschirtzinger/watchtex/internal/jot"
)

var superviseCmd = &cobra.Command{
	Use:    job.SuperviseCommand + " --dir DIR -- COMMAND [ARG...]",
	Short:  "Run one compilation (internal)",
	Hidden: true,
	Args:   cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		if err := initLogging(cfg, os.Getenv(lockEnv), false); err != nil {
			return err
		}
		jot.AtExit(func() { _ = jot.Close() })

		o, err := job.Supervise(dir, args)
		if err != nil {
			if errors.Is(err, job.ErrStart) {
				jot.Fatal("%v", err)
			}
			jot.Error("%v", err)
		}
		_ = jot.Close()
		os.Exit(o.ExitCode())
		return nil
	},
}

func init() {
	superviseCmd.Flags().String("dir", ".", "directory to compile in")
	rootCmd.AddCommand(superviseCmd)
}
