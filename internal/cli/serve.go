package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agora-network/agora/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveBroker, "broker", "", "NATS broker URL for peer announcements (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost   string
	servePort   int
	serveBroker string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Agora marketplace daemon",
	Long:  `Start the marketplace API server at localhost:7422.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}
	if serveBroker != "" {
		cfg.Broker.URL = serveBroker
	}

	d, err := daemon.NewWithConfig(cfg)
	if err != nil {
		return err
	}
	return d.Serve(context.Background())
}
