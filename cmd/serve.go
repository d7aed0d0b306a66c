package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	port     int
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the HTTP web server with the HTMX chat interface.

The web server provides a landing page, the chat page with database selection
and suggestion buttons, standalone chart pages, and a JSON API under /api.`,
		Run: func(cmd *cobra.Command, args []string) {
			runServe(cmd)
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run the server on (default from config, 8080)")
}

func runServe(cmd *cobra.Command) {
	app, err := loadApp()
	if err != nil {
		HandleError(err, "Failed to load configuration")
	}
	if !cmd.Flags().Changed("port") {
		port = app.Config.Server.Port
	}

	fmt.Printf("Starting sqlchat web server...\n")
	fmt.Printf("Data directory: %s\n", app.Config.App.DataDir)
	fmt.Printf("Database: %s\n", app.Selection)
	fmt.Printf("LLM: %s (%s)\n", app.Credentials.Provider, app.Credentials.ModelID())
	fmt.Printf("Port: %d\n\n", port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.VerifyCredentials(ctx); err != nil {
		HandleError(err, "LLM credentials were rejected")
	}

	if err := StartServer(ctx, app, port); err != nil {
		HandleError(err, "Server failed")
	}
}
