package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sprintguardian/internal/server"
)

var (
	serveAddr     string
	serveBasePath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ticket API over HTTP",
	Long: `Serve the JSON API for generating, listing and deleting tickets.

The OpenAPI document is served at /openapi.json and Prometheus metrics at
/metrics. Set server.jwt_secret to require HS256 bearer tokens on the API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		if cmd.Flags().Changed("base-path") {
			cfg.Server.BasePath = serveBasePath
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		handler, err := server.New(server.Config{
			Service:     a.svc,
			BasePath:    cfg.Server.BasePath,
			Auth:        server.AuthConfig{JWTSecret: cfg.Server.JWTSecret},
			CORSOrigins: cfg.Server.CORSOrigins,
			Metrics:     a.metrics.Handler(),
			Version:     Version(),
		})
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-cmd.Context().Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Printf("[server] shutdown: %v", err)
			}
		}()

		printStatus("·", fmt.Sprintf("Gatekeeper policy: %s", a.svc.Orchestrator().Policy().Gatekeeper.Mode), color.FgHiBlack)
		printStatus("→", fmt.Sprintf("Serving Sprint Guardian API on http://%s%s (OpenAPI at /openapi.json)", cfg.Server.Addr, cfg.Server.BasePath), color.FgCyan)
		if cfg.Server.JWTSecret == "" {
			printStatus("!", "server.jwt_secret is not set; the API accepts unauthenticated requests", color.FgYellow)
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8000", "listen address")
	serveCmd.Flags().StringVar(&serveBasePath, "base-path", "/api", "API base path")
}
