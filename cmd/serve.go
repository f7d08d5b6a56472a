package cmd

import (
	"context"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/logging"
	"github.com/BioHazard786/Warpcall/internal/rendezvous"
	"github.com/BioHazard786/Warpcall/internal/ui"
	"github.com/spf13/cobra"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a rendezvous relay",
	Long: `Run the rendezvous relay that pairs callers and forwards their signaling.
Clients connect to /ws; /health reports open rooms and waiting callers.

Examples:
  warpcall serve
  warpcall serve --listen :9000
  LOG_LEVEL=info warpcall serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := LoadConfig(config.Options{ListenAddr: flagListen})
	if err != nil {
		return err
	}

	hub := rendezvous.NewHub(logging.Init())

	ui.PrintInfof("Relay listening on %s", cfg.ListenAddr)
	if err := rendezvous.ListenAndServe(ctx, cfg.ListenAddr, hub); err != nil {
		return err
	}
	ui.PrintSuccess("Relay stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "Address to listen on (default "+config.DefaultListenAddr+")")
}
