package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sprintguardian/internal/api"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the configured backend offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		backend, err := createBackend(cfg)
		if err != nil {
			return err
		}
		lister, ok := backend.(api.ModelLister)
		if !ok {
			return fmt.Errorf("the %s backend cannot list models", backend.Name())
		}
		models, err := lister.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}
		if modelsJSON {
			return printJSON(os.Stdout, models)
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"ID", "Name", ""})
		for _, m := range models {
			marker := ""
			if m.ID == cfg.Backend.Model {
				marker = "configured"
			}
			tw.AppendRow(table.Row{m.ID, m.DisplayName, marker})
		}
		tw.Render()
		return nil
	},
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print as JSON")
}
