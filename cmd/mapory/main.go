package main

import (
	"errors"
	"fmt"
	"os"

	"mapory/internal/app"
	"mapory/internal/config"
	"mapory/internal/mapory"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", mapory.UserMessage(err))
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the application defaults.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a MaporyApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "AddLocation", "Feed").
func newApp(cmd *cobra.Command, operation string) (*app.MaporyApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewMaporyApp(cmd.Context(), cfg, operation, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:           "mapory",
	Short:         "Geotagged memories on the command line",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and database",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		status, err := app.MigrateDatabase(cfg)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		fmt.Printf("Database schema: version %d\n", status.Current)
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

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Media:      %s (%s) encrypted=%t\n", cfg.Media.Type, cfg.Media.Name, cfg.Media.Encrypt)
		fmt.Printf("Geocoder:   %s %s\n", cfg.Geocoder.Type, cfg.Geocoder.Endpoint)
		fmt.Printf("Page Size:  %d\n", cfg.Feed.PageSize)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that the media store is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ValidateSetup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateSetup(cmd.Context()); err != nil {
			return fmt.Errorf("media store check failed: %w", err)
		}
		fmt.Println("Setup OK.")
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage media encryption keys",
}

var configKeysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the media encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "InitKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.InitKeys(passphrase); err != nil {
			return err
		}
		fmt.Println("Encryption keys created.")
		return nil
	},
}

// account commands
var registerCmd = &cobra.Command{
	Use:   "register EMAIL",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")

		a, err := newApp(cmd, "Register")
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readSecret("Password: ")
		if err != nil {
			return err
		}
		user, err := a.Register(cmd.Context(), args[0], password, username)
		if err != nil {
			return err
		}
		fmt.Printf("Registered and signed in as %s\n", user.Email)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Login")
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readSecret("Password: ")
		if err != nil {
			return err
		}
		user, err := a.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s\n", displayName(user.Username, user.Email))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Logout")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Logout(); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "CurrentUser")
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s>\n", displayName(user.Username, user.Email), user.Email)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		status, err := app.MigrateDatabase(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Database at version %d\n", status.Current)
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		status, err := app.DatabaseStatus(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Current: %d\nLatest:  %d\n", status.Current, status.Latest)
		if status.Dirty {
			fmt.Println("Schema is dirty; a migration failed part-way.")
		}
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup PATH",
	Short: "Write a snapshot of the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "BackupDatabase")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("Database written to %s\n", args[0])
		return nil
	},
}

func displayName(username, email string) string {
	if username != "" {
		return username
	}
	return email
}

var errPassphraseMismatch = errors.New("passphrases do not match")

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print progress to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configKeysCmd)
	configKeysCmd.AddCommand(configKeysInitCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbBackupCmd)

	// account commands
	registerCmd.Flags().StringP("username", "u", "", "Display name")
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}
