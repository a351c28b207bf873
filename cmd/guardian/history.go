package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sprintguardian/internal/state"
)

var (
	historyLimit int
	historyJSON  bool
	historyPrune time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded pipeline runs",
	Long: `Without arguments, list the most recent runs. With a run ID, show that
run including every stage output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if historyPrune > 0 {
			n, err := db.PurgeOldRuns(historyPrune)
			if err != nil {
				return err
			}
			printStatus("✓", fmt.Sprintf("Pruned %d runs older than %s", n, historyPrune), color.FgGreen)
			return nil
		}

		if len(args) == 1 {
			run, err := db.GetRun(args[0])
			if err != nil {
				return err
			}
			if historyJSON {
				return printJSON(os.Stdout, run)
			}
			printRun(run)
			return nil
		}

		runs, err := db.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		if historyJSON {
			return printJSON(os.Stdout, runs)
		}
		if len(runs) == 0 {
			printStatus("·", "No runs recorded yet", color.FgHiBlack)
			return nil
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Run", "Started", "Status", "Stage", "Ticket", "Duration"})
		for _, r := range runs {
			tw.AppendRow(table.Row{
				r.ID,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				statusText(r.Status),
				r.FailedStage,
				r.TicketSlug,
				r.Duration.Round(time.Millisecond),
			})
		}
		tw.Render()
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print as JSON")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "delete runs older than this (e.g. 720h) and exit")
}

func statusText(s state.RunStatus) string {
	if s == state.RunSucceeded {
		return color.GreenString(string(s))
	}
	return color.RedString(string(s))
}

func printRun(r *state.Run) {
	bold := color.New(color.Bold)
	bold.Printf("Run %s\n", r.ID)
	fmt.Printf("  status    %s\n", statusText(r.Status))
	if r.FailedStage != "" {
		fmt.Printf("  stage     %s\n", r.FailedStage)
	}
	if r.Error != "" {
		fmt.Printf("  error     %s\n", r.Error)
	}
	if r.TicketSlug != "" {
		fmt.Printf("  ticket    %s\n", r.TicketSlug)
	}
	fmt.Printf("  started   %s\n", r.StartedAt.Local().Format(time.RFC3339))
	fmt.Printf("  duration  %s\n\n", r.Duration.Round(time.Millisecond))

	bold.Println("Brain dump")
	fmt.Println(r.BrainDump)

	for _, name := range sortedKeys(r.Outputs) {
		fmt.Println()
		bold.Println(name)
		var v any
		if err := json.Unmarshal(r.Outputs[name], &v); err != nil {
			fmt.Println(string(r.Outputs[name]))
			continue
		}
		_ = printYAML(os.Stdout, v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
