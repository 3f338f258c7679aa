package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/jah/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the project for development",
	Long: `Start the development server. Every module and resource is resolved and
wrapped on request, the same way the build command does, so changes show up
on the next page load without rebuilding.

Examples:
  jah serve                         # Serve on 127.0.0.1:4000
  jah serve --port 8080             # Serve on a different port
  jah serve --watch --open          # Live reload and open a browser`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "127.0.0.1", "host to bind to")
	serveCmd.Flags().IntP("port", "p", 4000, "port to listen on")
	serveCmd.Flags().BoolP("watch", "w", false, "reload browsers when sources change")
	serveCmd.Flags().Bool("open", false, "open a browser once the server listens")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := loadProject()
	if err != nil {
		return err
	}

	srv, err := server.New(p.queue, server.Options{
		Host:   p.settings.Host,
		Port:   p.settings.Port,
		Watch:  p.settings.Watch,
		Open:   viper.GetBool("open"),
		Logger: p.logger,
	})
	if err != nil {
		return err
	}

	return srv.Start(ctx)
}
