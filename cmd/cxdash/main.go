// cxdash - AOS-CX switch dashboard
//
// A web dashboard for small fleets of Aruba AOS-CX switches:
//   - Direct REST management with session pooling and credential fallback
//   - Aruba Central integration for cloud-bound switches
//   - VLAN and interface views with short-lived caching
//   - JSONL audit log of every device API call
//
// Commands:
//
//	cxdash serve               Run the dashboard HTTP server
//	cxdash cleanup-sessions    Log out any lingering device sessions
//	cxdash diag <ip>           Test connectivity to one switch from the shell
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cxdash/cxdash/pkg/config"
	"github.com/cxdash/cxdash/pkg/util"
	"github.com/cxdash/cxdash/pkg/version"
)

var (
	configPath string
	verbose    bool

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "cxdash",
	Short:         "AOS-CX switch dashboard",
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `cxdash manages small fleets of Aruba AOS-CX switches over their REST
APIs, with optional Aruba Central integration for cloud-bound devices.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFrom(configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if problems := cfg.Validate(); len(problems) > 0 {
			for _, p := range problems {
				util.Errorf("config: %s", p)
			}
			return fmt.Errorf("invalid configuration (%d problems)", len(problems))
		}

		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel(cfg.LogLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: cxdash.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(diagCmd)
}
