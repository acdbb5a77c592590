package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/pflag"

	"github.com/elorm116/java-cicd-demo/config"
	billyfs "github.com/elorm116/java-cicd-demo/fs/billy"
	"github.com/elorm116/java-cicd-demo/history"
	"github.com/elorm116/java-cicd-demo/pipeline"
)

func runHistory(args []string) error {
	flags := pflag.NewFlagSet("history", pflag.ContinueOnError)
	dbPath := flags.String("db", "", "history database file (default: the configured path)")
	limit := flags.Int("limit", 20, "maximum number of runs to list")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	store, err := history.Open(historyPath(*dbPath))
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer store.Close() //nolint:errcheck

	ctx := context.Background()
	rest := flags.Args()
	switch {
	case len(rest) == 0:
		return listRuns(ctx, os.Stdout, store, *limit)
	case rest[0] == "last":
		return showLastSuccess(ctx, os.Stdout, store)
	default:
		return fmt.Errorf("%w: unknown history subcommand %q", errUsage, rest[0])
	}
}

// historyPath resolves the database location: the flag wins, then the
// configuration file if present, then the default data-dir location.
func historyPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	cfg, err := config.Load(billyfs.NewOSFS("."), config.DefaultPath)
	if err != nil {
		return ""
	}
	return cfg.History.Path
}

func listRuns(ctx context.Context, out io.Writer, store *history.Store, limit int) error {
	entries, err := store.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "No runs recorded in %s\n", store.Path())
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"ID", "Started", "Status", "Version", "Image", "Build"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.ID,
			e.Started.Local().Format("2006-01-02 15:04"),
			statusCell(pipeline.Status(e.Status)),
			versionColumn(e),
			e.Meta.Image,
			buildColumn(e),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func showLastSuccess(ctx context.Context, out io.Writer, store *history.Store) error {
	entry, err := store.LastSuccess(ctx)
	if errors.Is(err, history.ErrNoRuns) {
		fmt.Fprintf(out, "No successful runs recorded in %s\n", store.Path())
		return nil
	}
	if err != nil {
		return fmt.Errorf("load last run: %w", err)
	}

	fmt.Fprintf(out, "Last successful release (run %d)\n\n", entry.ID)
	fmt.Fprintf(out, "  Version  %s\n", versionColumn(*entry))
	if entry.Meta.Image != "" {
		fmt.Fprintf(out, "  Image    %s\n", entry.Meta.Image)
	}
	if entry.Meta.Digest != "" {
		fmt.Fprintf(out, "  Digest   %s\n", entry.Meta.Digest)
	}
	if entry.Meta.Commit != "" {
		fmt.Fprintf(out, "  Commit   %s (branch %s)\n", entry.Meta.Commit, entry.Meta.Branch)
	}
	if entry.Meta.BuildNumber != "" {
		fmt.Fprintf(out, "  Build    #%s %s\n", entry.Meta.BuildNumber, entry.Meta.JobName)
	}
	fmt.Fprintf(out, "  When     %s (took %s)\n\n",
		entry.Started.Local().Format("2006-01-02 15:04:05"), formatDuration(entry.Duration))

	stages, err := store.Stages(ctx, entry.ID)
	if err != nil {
		return fmt.Errorf("load run stages: %w", err)
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Stage", "Status", "Duration", "Detail"})
	for _, s := range stages {
		t.AppendRow(table.Row{s.Name, statusCell(pipeline.Status(s.Status)), formatDuration(s.Duration), s.Detail})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func versionColumn(e history.Entry) string {
	if e.Meta.Version == "" {
		return "-"
	}
	if e.Meta.PreviousVersion == "" {
		return e.Meta.Version
	}
	return e.Meta.PreviousVersion + " -> " + e.Meta.Version
}

func buildColumn(e history.Entry) string {
	if e.Meta.BuildNumber == "" {
		return "-"
	}
	if e.Meta.JobName == "" {
		return "#" + e.Meta.BuildNumber
	}
	return "#" + e.Meta.BuildNumber + " " + e.Meta.JobName
}
