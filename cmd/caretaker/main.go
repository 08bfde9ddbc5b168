package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ldi/caretaker/internal/billing"
	"github.com/ldi/caretaker/internal/config"
	"github.com/ldi/caretaker/internal/db"
	"github.com/ldi/caretaker/internal/dispatch"
	"github.com/ldi/caretaker/internal/mcp"
	"github.com/ldi/caretaker/internal/server"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "caretaker",
		Short:   "Caretaker - property task, expense, and billing manager",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "caretaker.toml", "Path to config file")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDatabase loads the config, opens the database, and applies the schema.
func openDatabase() (*config.Config, *db.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Init(context.Background()); err != nil {
		database.Close()
		return nil, nil, err
	}
	return cfg, database, nil
}

func initCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the database, importing a snapshot if one exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			ctx := cmd.Context()
			fmt.Printf("Initialized database at %s\n", cfg.Database.Path)

			if cfg.Database.SnapshotPath != "" {
				if _, err := os.Stat(cfg.Database.SnapshotPath); err == nil {
					if err := database.ImportSnapshot(ctx, cfg.Database.SnapshotPath); err != nil {
						return fmt.Errorf("failed to import snapshot: %w", err)
					}
					fmt.Printf("Imported snapshot from %s\n", cfg.Database.SnapshotPath)
				}
			}

			if seed || cfg.Database.Seed {
				if err := database.Seed(ctx); err != nil {
					return fmt.Errorf("failed to seed demo portfolio: %w", err)
				}
				fmt.Println("Seeded demo portfolio")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "Seed a demo portfolio of properties, units, tenants, and vendors")

	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			if cfg.Database.SnapshotPath != "" {
				database.EnableAutoSnapshot(cfg.Database.SnapshotPath)
			}

			dispatcher := dispatch.New(database, nil, nil, cfg.SendTimeout())
			engine := billing.New(database)
			srv := server.NewServer(database, dispatcher, engine)

			errChan := make(chan error, 1)
			go func() {
				errChan <- srv.Start(cfg.Server.Listen)
			}()
			fmt.Printf("Listening on %s\n", cfg.Server.Listen)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errChan:
				return err
			case <-sigChan:
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			if cfg.Database.SnapshotPath != "" {
				database.EnableAutoSnapshot(cfg.Database.SnapshotPath)
			}

			dispatcher := dispatch.New(database, nil, nil, cfg.SendTimeout())
			engine := billing.New(database)
			return mcp.Serve(mcp.NewServer(database, dispatcher, engine))
		},
	}
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import a JSONL snapshot of the database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export [path]",
		Short: "Write the database contents to a JSONL snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.ExportSnapshot(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Exported snapshot to %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import [path]",
		Short: "Load a JSONL snapshot into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.ImportSnapshot(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Imported snapshot from %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show task counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			stats, err := database.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("%-15s %s\n", "STATUS", "COUNT")
			for _, status := range []string{"pending", "in_progress", "completed", "cancelled"} {
				fmt.Printf("%-15s %d\n", status, stats[status])
			}
			return nil
		},
	}
}
