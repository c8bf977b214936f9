package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"recoledger/internal/app"
	"recoledger/internal/config"
	"recoledger/internal/tracker"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig loads the config file named by the defaults.
func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Recompute", "Serve").
func newApp(operation string) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "recoledger",
	Short: "Track changed files for recommendation profiles",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir:    %s\n", defaults["base_dir"])
		fmt.Println("Run 'recoledger db migrate' to create the ledger database.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		return (&config.Manager{}).Write(os.Stdout, cfg)
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the ledger database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a snapshot of the ledger database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.Backup(cmd.Context())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Backup written to %s\n", path)
		return nil
	},
}

var dbBackupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List stored ledger snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Backups")
		if err != nil {
			return err
		}
		defer a.Close()

		snaps, err := a.Backups()
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No backups stored.")
			return nil
		}
		for _, s := range snaps {
			fmt.Printf("%s  %10d  %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"), s.Size, s.Name)
		}
		return nil
	},
}

var dbKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the key pair for encrypted backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("Passphrase: ", true)
		if err != nil {
			return err
		}
		if err := app.SetupBackupKeys(cfg, passphrase); err != nil {
			return fmt.Errorf("generating backup keys: %w", err)
		}

		fmt.Printf("Recipient written to %s\n", cfg.Backup.RecipientPath)
		fmt.Printf("Identity written to %s\n", cfg.Backup.IdentityPath)
		return nil
	},
}

var dbDecryptCmd = &cobra.Command{
	Use:   "decrypt BACKUP OUTPUT",
	Short: "Decrypt an encrypted backup into a database file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("Passphrase: ", false)
		if err != nil {
			return err
		}
		if err := app.DecryptBackup(cfg, passphrase, args[0], args[1]); err != nil {
			return fmt.Errorf("decrypting backup: %w", err)
		}
		fmt.Printf("Decrypted to %s\n", args[1])
		return nil
	},
}

// hook command
var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Report file events",
}

var hookEditCmd = &cobra.Command{
	Use:   "edit PATH",
	Short: "Report that a file was written",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		name, _ := cmd.Flags().GetString("client")
		client, err := tracker.ParseClientType(name)
		if err != nil {
			return err
		}

		a, err := newApp("HookEdit")
		if err != nil {
			return err
		}
		defer a.Close()

		handled := a.OnEdit(cmd.Context(), tracker.FileEvent{
			Path:   args[0],
			UserID: user,
			Client: client,
		})
		printHandled(handled)
		return nil
	},
}

var hookFavoriteCmd = &cobra.Command{
	Use:   "favorite FILE_ID",
	Short: "Report a favorite toggle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		remove, _ := cmd.Flags().GetBool("remove")

		fileID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid file id %q: %w", args[0], err)
		}

		caller := tracker.AddFavorite
		if remove {
			caller = tracker.RemoveFavorite
		}

		a, err := newApp("HookFavorite")
		if err != nil {
			return err
		}
		defer a.Close()

		printHandled(a.OnFavorite(cmd.Context(), user, fileID, caller))
		return nil
	},
}

func printHandled(handled bool) {
	if handled {
		fmt.Println("Change recorded.")
		return
	}
	fmt.Println("No change recorded (see log for the reason).")
}

// pending command
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List files waiting for the next recompute",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		a, err := newApp("Pending")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Pending(cmd.Context(), user)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No pending files.")
			return nil
		}

		printPending(os.Stdout, records, terminalWidth(os.Stdout))
		return nil
	},
}

// recompute command
var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Run one recompute pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Recompute")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := a.Recompute(ctx, tracker.TriggerManual)
		if err != nil {
			return fmt.Errorf("recompute failed: %w", err)
		}

		fmt.Printf("Users: %d  consumed: %d  extracted: %d  dropped: %d  failed: %d  remaining: %d\n",
			report.Users, report.Consumed, report.Extracted, report.Dropped, report.Failed, report.Remaining)
		if report.Interrupted {
			fmt.Println("Interrupted; remaining files stay pending.")
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recompute run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No recompute runs recorded.")
			return nil
		}

		for _, run := range runs {
			duration := ""
			if run.FinishedAt != nil {
				duration = run.FinishedAt.Sub(run.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-8s  %s  %-11s  consumed:%d  failed:%d  %s\n",
				run.ID,
				run.Trigger,
				run.StartedAt.Format("2006-01-02 15:04:05"),
				run.Status,
				run.Consumed,
				run.Failed,
				duration,
			)
		}
		return nil
	},
}

// profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect interest profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show USER",
	Short: "Show a user's top interest terms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("Profile")
		if err != nil {
			return err
		}
		defer a.Close()

		terms, err := a.Profile(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		if len(terms) == 0 {
			fmt.Println("No profile yet.")
			return nil
		}
		for _, t := range terms {
			fmt.Printf("%8.4f  %s\n", t.Weight, t.Term)
		}
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hook ingress and the scheduled recompute job",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.Serve(ctx)
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbBackupCmd)
	dbCmd.AddCommand(dbBackupsCmd)
	dbCmd.AddCommand(dbKeygenCmd)
	dbCmd.AddCommand(dbDecryptCmd)

	// hook subcommands
	hookCmd.AddCommand(hookEditCmd)
	hookEditCmd.Flags().StringP("user", "u", "", "User the edit is attributed to (empty means no session)")
	hookEditCmd.Flags().StringP("client", "c", string(tracker.ClientWeb), "Client type: web, desktop, android, ios or unknown")
	hookCmd.AddCommand(hookFavoriteCmd)
	hookFavoriteCmd.Flags().StringP("user", "u", "", "User who toggled the favorite")
	_ = hookFavoriteCmd.MarkFlagRequired("user")
	hookFavoriteCmd.Flags().Bool("remove", false, "Report a removeFavorite instead of addFavorite")

	// profile subcommands
	profileCmd.AddCommand(profileShowCmd)
	profileShowCmd.Flags().IntP("limit", "n", 20, "Maximum number of terms to show")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(pendingCmd)
	pendingCmd.Flags().StringP("user", "u", "", "Only show this user's records")
	rootCmd.AddCommand(recomputeCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(serveCmd)
}
