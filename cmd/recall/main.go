// Package main is the entry point for the recall CLI.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/recall/internal/config"
	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/modules/store/sqlite"
	"github.com/flemzord/recall/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recall",
		Short:         "Conversational memory service with rolling windows and durable summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), usersCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "recall %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the chat gateway and the consolidation workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			return app.Run(app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
			})
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.LoadConfig(args[0])
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	})
	return cmd
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configuration OK")
	fmt.Fprintf(w, "  store:     %s\n", cfg.Store.Path)
	fmt.Fprintf(w, "  cache:     %s (prefix %q)\n", cfg.Cache.Addr, cfg.Cache.KeyPrefix)
	fmt.Fprintf(w, "  provider:  %s @ %s\n", cfg.Provider.Model, cfg.Provider.BaseURL)
	fmt.Fprintf(w, "  gateway:   %s\n", cfg.Gateway.Bind)
	fmt.Fprintf(w, "  memory:    window %d, trigger %d, lock ttl %s, %d workers\n",
		cfg.Memory.WindowLimit, cfg.Memory.TriggerCount, cfg.Memory.LockTTL, cfg.Memory.Workers)
	fmt.Fprintf(w, "  reconcile: %s\n", cfg.Memory.ReconcileSchedule)
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the user directory",
	}

	var p memory.Profile
	add := &cobra.Command{
		Use:   "add",
		Short: "Create or replace a user profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, _, err := app.LoadStoreConfig(cfgPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := sqlite.Open(ctx, cfg.Store, app.NewLogger(io.Discard, 0, cfg))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SaveProfile(ctx, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s saved\n", p.UserID)
			return nil
		},
	}
	f := add.Flags()
	f.StringP("config", "c", "", "Path to configuration file")
	f.StringVar(&p.UserID, "id", "", "User ID (required)")
	f.StringVar(&p.FullName, "name", "", "Full name")
	f.IntVar(&p.Age, "age", 0, "Age")
	f.StringVar(&p.Gender, "gender", "", "Gender")
	f.StringSliceVar(&p.PreviousDiseases, "disease", nil, "Previous disease (repeatable)")
	f.StringSliceVar(&p.CurrentSymptoms, "symptom", nil, "Current symptom (repeatable)")
	f.StringSliceVar(&p.Medications, "medication", nil, "Medication (repeatable)")
	f.StringSliceVar(&p.Allergies, "allergy", nil, "Allergy (repeatable)")
	f.StringVar(&p.AdditionalNotes, "notes", "", "Additional notes")
	_ = add.MarkFlagRequired("id")

	cmd.AddCommand(add)
	return cmd
}
