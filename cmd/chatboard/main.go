package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chatboard/internal/app"
	"chatboard/internal/config"
	"chatboard/internal/database"
	"chatboard/internal/encryption"
	"chatboard/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig loads the config file named by the defaults.
func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults.ConfigPath, nil
}

// openDatabase opens the configured database without checking its schema.
// The caller must close it.
func openDatabase() (*database.SQLiteDatabase, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

var rootCmd = &cobra.Command{
	Use:   "chatboard",
	Short: "Real-time chat and social backend",
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

		cfg, err := defaults.NewConfig(instanceID)
		if err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir:    %s\n", defaults.BaseDir)
		fmt.Printf("Uploads:     %s\n", defaults.UploadDir)
		fmt.Println("Run `chatboard migrate` before the first `chatboard serve`.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Instance ID:   %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Log Level:     %s\n", cfg.LogLevel)
		fmt.Printf("Listen:        %s\n", cfg.Server.Addr)
		fmt.Printf("Database:      %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		switch cfg.Storage.Type {
		case "s3":
			fmt.Printf("Storage:       s3 %s/%s\n", cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
		default:
			fmt.Printf("Storage:       %s %s\n", cfg.Storage.Type, cfg.Storage.FSRoot)
		}
		if cfg.Storage.EncryptionKeyPath != "" {
			fmt.Printf("Encryption:    age (%s)\n", cfg.Storage.EncryptionKeyPath)
		} else {
			fmt.Println("Encryption:    disabled")
		}
		fmt.Printf("Max Upload:    %d bytes\n", cfg.Storage.MaxUploadSize)
		fmt.Printf("Presence:      %s\n", cfg.Presence.Mode)
		fmt.Printf("Token TTLs:    access %s, refresh %s\n", cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
		if cfg.Metrics.Enabled {
			fmt.Printf("Metrics:       %s\n", cfg.Metrics.Path)
		} else {
			fmt.Println("Metrics:       disabled")
		}
		return nil
	},
}

var configKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the attachment encryption key",
	Long: "Generate an age key for encrypting attachments at rest. The key file is\n" +
		"protected with the passphrase in " + storage.KeyPassphraseEnv + " when it is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			path = cfg.Storage.EncryptionKeyPath
		}
		if path == "" {
			path = app.KeyPath(cfg.BaseDir)
		}

		recipient, err := encryption.GenerateKey(path, os.Getenv(storage.KeyPassphraseEnv))
		if err != nil {
			return fmt.Errorf("generating key: %w", err)
		}

		fmt.Printf("Key written to %s\n", path)
		fmt.Printf("Recipient:     %s\n", recipient)
		if cfg.Storage.EncryptionKeyPath != path {
			fmt.Printf("Set storage.encryption_key_path = %q to enable encryption.\n", path)
		}
		return nil
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.MigrateUp(); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		status, err := db.MigrationStatus()
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}
		fmt.Printf("Database %s is at version %d\n", db.Path(), status.Version)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the database schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		status, err := db.MigrationStatus()
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}
		state := "current"
		switch {
		case status.Dirty:
			state = "dirty"
		case !status.Current():
			state = "pending"
		}
		fmt.Printf("Version %d of %d (%s)\n", status.Version, status.Latest, state)
		return nil
	},
}

var migrateSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the current database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		schema, err := db.Schema()
		if err != nil {
			return fmt.Errorf("dumping schema: %w", err)
		}
		fmt.Print(schema)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and live channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.NewChatApp(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		defer a.Close()

		return a.Run(ctx)
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeygenCmd)
	configKeygenCmd.Flags().String("path", "", "Key file path (defaults to storage.encryption_key_path)")

	// migrate subcommands
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateSchemaCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
