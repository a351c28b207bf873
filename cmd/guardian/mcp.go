package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sprintguardian/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the ticket tools over MCP on stdio",
	Long: `Run an MCP server on stdin/stdout exposing generate_ticket,
list_tickets and delete_ticket.

Register it with an MCP client, for example:

  {"command": "guardian", "args": ["mcp"]}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Stdout carries the protocol.
		log.SetOutput(os.Stderr)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return mcptools.ServeStdio(mcptools.NewServer(a.svc, Version()))
	},
}
