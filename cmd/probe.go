package cmd

import (
	"os"
	"time"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/peer"
	"github.com/BioHazard786/Warpcall/internal/ui"
	"github.com/spf13/cobra"
)

var flagProbeTimeout time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe [stun-url...]",
	Short: "Check STUN reachability and show this host's public address",
	Long: `Send a STUN binding request to each server and print the mapped address.
Without arguments the configured STUN server is used.

Examples:
  warpcall probe
  warpcall probe stun:stun.l.google.com:19302 stun:stun.cloudflare.com:3478`,
	RunE: func(cmd *cobra.Command, args []string) error {
		servers := args
		if len(servers) == 0 {
			cfg, err := LoadConfig(config.Options{STUNServer: flagSTUN})
			if err != nil {
				return err
			}
			servers = cfg.GetSTUNServers()
		}

		sp := ui.NewConnectionSpinner("Probing STUN servers...")
		sp.Start()
		results := make([]ui.ProbeResult, 0, len(servers))
		for _, server := range servers {
			sp.UpdateMessage("Probing " + server + "...")
			r := peer.Probe(cmd.Context(), server, flagProbeTimeout)
			results = append(results, ui.ProbeResult{
				Server:  r.Server,
				Mapped:  r.Mapped,
				RTT:     r.RTT,
				Failure: r.Err,
			})
		}
		sp.Stop()

		ui.RenderProbeResults(os.Stdout, results)
		if peer.RestrictedNetwork() {
			ui.PrintWarning("VPN or CGNAT interface detected; calls will use TURN relay when one is configured")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	probeCmd.Flags().DurationVar(&flagProbeTimeout, "timeout", 3*time.Second, "Per-server timeout")
}
