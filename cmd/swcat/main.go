package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"swcat/internal/app"
	"swcat/internal/config"
	"swcat/internal/server"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a wired App. The caller must defer
// app.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "swcat",
	Short: "SuperWhisper recording catalog",
}

// validatePagination enforces the same bounds the HTTP layer does; the
// index relies on its callers for them.
func validatePagination(page, pageSize int) error {
	if page < 1 {
		return fmt.Errorf("--page must be >= 1, got %d", page)
	}
	if pageSize < 1 || pageSize > 100 {
		return fmt.Errorf("--page-size must be between 1 and 100, got %d", pageSize)
	}
	return nil
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

		cfg := config.NewConfig(defaults["recordings_dir"], defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Recordings Dir: %s\n", cfg.RecordingsDir)
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
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
		fmt.Printf("Recordings Dir: %s\n", cfg.RecordingsDir)
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Database:       %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Server Addr:    %s\n", cfg.Server.Addr)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := a.Config()
		if cfg.Sync.SyncOnStartup {
			a.Syncer().StartBackgroundSync()
		}

		syncWait := time.Duration(cfg.Sync.WaitTimeoutSecs) * time.Second
		srv := server.NewServer(a.Service(), a.Syncer(), a.Logger(), syncWait, cfg.Server.CORSOrigins)
		return srv.ListenAndServe(cfg.Server.Addr)
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the recordings directory into the search index",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ran, err := a.Syncer().EnsureSync(force)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		if !ran {
			fmt.Println("Index is up to date.")
			return nil
		}

		runs, err := a.Syncer().ListSyncRuns(1)
		if err != nil || len(runs) == 0 {
			fmt.Println("Sync complete.")
			return nil
		}

		run := runs[0]
		fmt.Printf("Sync complete: %d recording(s), %d conversation(s) indexed\n",
			run.RecordingsSeen, run.ConversationsIndexed)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")
		if err := validatePagination(page, pageSize); err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Syncer().EnsureSync(false); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		rows, total, err := a.Service().ListPage(page, pageSize)
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		for _, row := range rows {
			fmt.Printf("%-64s  %s  %s\n",
				row.ConversationID,
				row.CreatedAt.Format("2006-01-02 15:04:05"),
				row.Title,
			)
		}
		fmt.Printf("\nPage %d (%d conversation(s) total)\n", page, total)
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Full-text search over transcriptions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")
		if err := validatePagination(page, pageSize); err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Syncer().EnsureSync(false); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		hits, total, err := a.Service().Search(args[0], page, pageSize)
		if err != nil {
			return err
		}

		if len(hits) == 0 {
			fmt.Println("No matches.")
			return nil
		}

		for _, hit := range hits {
			fmt.Printf("%s  %s\n", hit.ConversationID, hit.Title)
			for _, snippet := range hit.Snippets {
				fmt.Printf("    %s\n", snippet)
			}
		}
		fmt.Printf("\nPage %d (%d match(es) total)\n", page, total)
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show CONVERSATION_ID",
	Short: "Show a conversation with all its versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		conv, err := a.Service().GetConversation(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Conversation: %s\n", conv.ConversationID)
		fmt.Printf("Title:        %s\n", conv.Title)
		fmt.Printf("Created:      %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated:      %s\n", conv.UpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Versions:     %d\n\n", len(conv.Versions))

		for _, v := range conv.Versions {
			latest := ""
			if v.IsLatest {
				latest = "  [latest]"
			}
			fmt.Printf("%s  %s%s\n", v.VersionID,
				v.Recording.CreatedAt.Format("2006-01-02 15:04:05"), latest)
			if text := v.Recording.BestText(); text != "" {
				fmt.Printf("    %s\n", text)
			}
		}
		return nil
	},
	Args: cobra.ExactArgs(1),
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	syncCmd.Flags().Bool("force", false, "reindex even when the index looks up to date")

	listCmd.Flags().Int("page", 1, "page number")
	listCmd.Flags().Int("page-size", 30, "conversations per page")

	searchCmd.Flags().Int("page", 1, "page number")
	searchCmd.Flags().Int("page-size", 30, "matches per page")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(showCmd)
}
