package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sprintguardian/internal/notify"
	"github.com/ShayCichocki/sprintguardian/internal/tickets"
)

var (
	ticketsJSON bool
	ticketsYAML bool
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Manage saved tickets",
	Long: `List, show, delete and watch the tickets saved in storage.tickets_dir.

None of these commands call a model, so no API key is needed.`,
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved tickets",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, blocking, err := openTicketStore()
		if err != nil {
			return err
		}
		list, err := store.List()
		if err != nil {
			return err
		}
		if ticketsJSON {
			return printJSON(os.Stdout, list)
		}
		if len(list) == 0 {
			printStatus("·", "No tickets saved in "+store.Dir(), color.FgHiBlack)
			return nil
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Slug", "Summary", "Points", "Priority", "Labels"})
		for _, t := range list {
			tw.AppendRow(table.Row{
				t.Slug(),
				truncate(t.Summary, 48),
				t.StoryPoints,
				t.Priority,
				formatLabels(t.Labels, blocking),
			})
		}
		tw.Render()
		return nil
	},
}

var ticketsShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Show one ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, blocking, err := openTicketStore()
		if err != nil {
			return err
		}
		t, err := store.Get(args[0])
		if errors.Is(err, tickets.ErrNotFound) {
			return fmt.Errorf("no ticket with slug %q", args[0])
		}
		if err != nil {
			return err
		}
		switch {
		case ticketsJSON:
			return printJSON(os.Stdout, t)
		case ticketsYAML:
			return printYAML(os.Stdout, t)
		}
		printTicket(os.Stdout, t, blocking)
		return nil
	},
}

var ticketsDeleteCmd = &cobra.Command{
	Use:   "delete <summary or slug>",
	Short: "Delete a ticket",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := tickets.NewFileStore(cfg.Storage.TicketsDir)
		if err != nil {
			return err
		}

		key := strings.Join(args, " ")
		slug, err := store.Delete(key)
		if errors.Is(err, tickets.ErrNotFound) {
			return fmt.Errorf("no ticket matches %q", key)
		}
		if err != nil {
			return err
		}
		printStatus("✓", "Deleted ticket "+slug, color.FgGreen)

		pub, err := notify.New(cfg.Notify.NATSURL, cfg.Notify.Subject)
		if err != nil {
			printStatus("!", fmt.Sprintf("ticket deleted but not announced: %v", err), color.FgYellow)
			return nil
		}
		defer pub.Close()
		if err := pub.Publish(cmd.Context(), notify.NewDeleted(slug)); err != nil {
			printStatus("!", fmt.Sprintf("ticket deleted but not announced: %v", err), color.FgYellow)
		}
		return nil
	},
}

var ticketsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print tickets as they are saved or removed",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openTicketStore()
		if err != nil {
			return err
		}
		printStatus("→", "Watching "+store.Dir()+" (ctrl+c to stop)", color.FgCyan)
		return store.Watch(cmd.Context(), func(c tickets.Change) {
			switch c.Type {
			case tickets.ChangeSaved:
				printStatus("+", c.Slug, color.FgGreen)
			case tickets.ChangeRemoved:
				printStatus("-", c.Slug, color.FgRed)
			}
		})
	},
}

func init() {
	ticketsListCmd.Flags().BoolVar(&ticketsJSON, "json", false, "print as JSON")
	ticketsShowCmd.Flags().BoolVar(&ticketsJSON, "json", false, "print as JSON")
	ticketsShowCmd.Flags().BoolVar(&ticketsYAML, "yaml", false, "print as YAML")

	ticketsCmd.AddCommand(ticketsListCmd, ticketsShowCmd, ticketsDeleteCmd, ticketsWatchCmd)
}

// openTicketStore opens the configured tickets directory and returns the
// blocking label to highlight when printing.
func openTicketStore() (*tickets.FileStore, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	store, err := tickets.NewFileStore(cfg.Storage.TicketsDir)
	if err != nil {
		return nil, "", err
	}
	return store, blockingLabel(cfg), nil
}
