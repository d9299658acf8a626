package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wadlib/internal/app"
	"wadlib/internal/config"
	"wadlib/internal/console"
	"wadlib/internal/mapinfo"
	"wadlib/internal/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a WadlibApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "install", "play").
func newApp(ctx context.Context, operation string, args []string) (*app.WadlibApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewWadlibApp(ctx, cfg, operation, strings.Join(args, " "))
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "wadlib",
	Short:        "Game content library manager",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and the history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		dbPath, err := app.InitDatabase(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Database: %s\n", dbPath)
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
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s (level %s)\n", cfg.LogDir, cfg.LogLevel)
		fmt.Printf("Data Dir: %s\n", cfg.DataDir)
		fmt.Printf("WAD Dir:  %s\n", cfg.WadDir)
		fmt.Printf("Catalog:  %s\n", cfg.Catalog.Path)
		fmt.Printf("Source:   %s (%s)\n", cfg.Source.Name, cfg.Source.Type)
		fmt.Printf("Engine:   %s\n", cfg.Engine.Path)
		fmt.Printf("Saves:    %s\n", strings.Join(cfg.Saves.Dirs, ", "))
		return nil
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade the history database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		dbPath, err := app.InitDatabase(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Database %s is up to date\n", dbPath)
		return nil
	},
}

// catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List installable content",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "catalog", args)
		if err != nil {
			return err
		}
		defer a.Close()

		entries := a.Catalog()
		if len(entries) == 0 {
			fmt.Println("Catalog is empty.")
			return nil
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.Slug, e.Title, e.Filename, strings.Join(e.Dependencies, ", ")})
		}
		fmt.Println(renderTable([]string{"Slug", "Title", "File", "Requires"}, rows, nil))
		return nil
	},
}

// install command
var installCmd = &cobra.Command{
	Use:   "install SLUG...",
	Short: "Download content and its dependencies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "install", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.PrepareInstall(); err != nil {
			return err
		}

		printer := newProgressPrinter(os.Stdout)
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(a.MaxConcurrent())
		for _, slug := range args {
			g.Go(func() error {
				path, err := a.Install(ctx, slug, printer.Update)
				if err != nil {
					printer.Finish(slug, "failed: "+err.Error())
					return fmt.Errorf("installing %s: %w", slug, err)
				}
				printer.Finish(slug, path)
				return nil
			})
		}
		return g.Wait()
	},
}

// remove command
var removeCmd = &cobra.Command{
	Use:   "remove SLUG",
	Short: "Delete installed content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "remove", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed content",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "list", args)
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.List()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Nothing installed.")
			return nil
		}

		rows := make([][]string, 0, len(items))
		for _, it := range items {
			status := "ok"
			if it.Missing {
				status = "missing"
			}
			rows = append(rows, []string{
				it.Slug,
				it.Title,
				humanize.Bytes(uint64(it.Size)),
				it.DownloadedAt.Local().Format("2006-01-02 15:04"),
				status,
			})
		}
		fmt.Println(renderTable([]string{"Slug", "Title", "Size", "Installed", "Status"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}))
		return nil
	},
}

// levels command
var levelsCmd = &cobra.Command{
	Use:   "levels SLUG",
	Short: "Show level names of installed content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "levels", args)
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.LevelNames(args[0])
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No level names found.")
			return nil
		}

		ids := make([]string, 0, len(names))
		for id := range names {
			ids = append(ids, id)
		}
		mapinfo.SortIDs(ids)

		rows := make([][]string, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, []string{id, names[id]})
		}
		fmt.Println(renderTable([]string{"Level", "Name"}, rows, nil))
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Play statistics",
}

var statsCaptureCmd = &cobra.Command{
	Use:   "capture SLUG",
	Short: "Capture save files into session records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "stats capture", args)
		if err != nil {
			return err
		}
		defer a.Close()

		captured, err := a.CaptureSaves(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Captured %d new session(s)\n", len(captured))
		return nil
	},
}

var statsShowCmd = &cobra.Command{
	Use:   "show SLUG",
	Short: "Show the best run per level and skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "stats show", args)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.BestRuns(args[0])
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No sessions captured.")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.LevelID,
				r.Stats.Name,
				r.Skill.String(),
				fmt.Sprintf("%d/%d", r.Stats.Kills, r.Stats.TotalKills),
				fmt.Sprintf("%d/%d", r.Stats.Items, r.Stats.TotalItems),
				fmt.Sprintf("%d/%d", r.Stats.Secrets, r.Stats.TotalSecrets),
				formatTics(r.Stats.TimeTics),
			})
		}
		fmt.Println(renderTable([]string{"Level", "Name", "Skill", "Kills", "Items", "Secrets", "Time"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight}))
		return nil
	},
}

// play command
var playCmd = &cobra.Command{
	Use:   "play SLUG",
	Short: "Launch the engine and record the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		skill, _ := cmd.Flags().GetString("skill")
		warp, _ := cmd.Flags().GetString("warp")

		a, err := newApp(cmd.Context(), "play", args)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Play(cmd.Context(), args[0], skill, warp)
		if err != nil {
			return err
		}

		counts := console.Counts(res.Log.Events)
		fmt.Printf("Session %s: %s\n", res.Log.SessionID, (time.Duration(res.Log.DurationMs) * time.Millisecond).Truncate(time.Second))
		fmt.Printf("Levels %d  Deaths %d  Pickups %d  Secrets %d\n",
			counts[model.EventLevelEnter], counts[model.EventDeath], counts[model.EventPickup], counts[model.EventSecret])
		fmt.Printf("Log: %s\n", res.LogPath)
		fmt.Printf("Captured %d new session(s)\n", len(res.Captured))
		if res.ExitErr != nil {
			return fmt.Errorf("engine exited: %w", res.ExitErr)
		}
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Console transcripts",
}

var logParseCmd = &cobra.Command{
	Use:   "parse FILENAME",
	Short: "Classify a console transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "log parse", args)
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.ParseLog(args[0])
		if err != nil {
			return err
		}
		printEvents(events)
		return nil
	},
}

var logShowCmd = &cobra.Command{
	Use:   "show SLUG",
	Short: "List recorded play sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "log show", args)
		if err != nil {
			return err
		}
		defer a.Close()

		logs, err := a.GameplayLogs(args[0])
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}
		rows := make([][]string, 0, len(logs))
		for _, l := range logs {
			rows = append(rows, []string{
				l.SessionID,
				l.StartedAt.Local().Format("2006-01-02 15:04"),
				(time.Duration(l.DurationMs) * time.Millisecond).Truncate(time.Second).String(),
				l.Skill.String(),
				strconv.Itoa(len(l.Events)),
			})
		}
		fmt.Println(renderTable([]string{"Session", "Started", "Duration", "Skill", "Events"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight}))
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "history", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

var transfersCmd = &cobra.Command{
	Use:   "transfers SLUG",
	Short: "View install attempts for content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "transfers", args)
		if err != nil {
			return err
		}
		defer a.Close()

		ts, err := a.Transfers(args[0])
		if err != nil {
			return err
		}
		if len(ts) == 0 {
			fmt.Println("No transfers recorded.")
			return nil
		}
		rows := make([][]string, 0, len(ts))
		for _, t := range ts {
			rows = append(rows, []string{
				t.FinishedAt.Local().Format("2006-01-02 15:04:05"),
				t.Source,
				t.Status,
				humanize.Bytes(uint64(t.Bytes)),
				t.Error,
			})
		}
		fmt.Println(renderTable([]string{"Finished", "Source", "Status", "Size", "Error"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
		return nil
	},
}

func printEvents(events []model.GameplayEvent) {
	for _, ev := range events {
		detail := ev.Line
		switch ev.Type {
		case model.EventLevelEnter:
			detail = ev.MapID + " " + ev.MapName
		case model.EventDeath:
			detail = ev.Cause
		case model.EventPickup:
			detail = ev.Item
		}
		fmt.Printf("%8d  %-11s  %s\n", ev.TimeMs, ev.Type, detail)
	}
}

// formatTics renders engine tics (35 per second) as m:ss.
func formatTics(tics int) string {
	secs := tics / 35
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(dbMigrateCmd)

	// stats subcommands
	statsCmd.AddCommand(statsCaptureCmd)
	statsCmd.AddCommand(statsShowCmd)

	// log subcommands
	logCmd.AddCommand(logParseCmd)
	logCmd.AddCommand(logShowCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().StringP("skill", "s", "normal", "Skill name or 1-5")
	playCmd.Flags().StringP("warp", "w", "", "Level to start on, e.g. MAP07")
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(transfersCmd)
}
