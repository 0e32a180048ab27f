package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cxdash/cxdash/pkg/cli"
	"github.com/cxdash/cxdash/pkg/cxapi"
	"github.com/cxdash/cxdash/pkg/manager"
	"github.com/cxdash/cxdash/pkg/validate"
)

var (
	diagUsername string
	diagMatrix   bool
)

// probeVersions are the REST versions tried by the --matrix sweep, oldest
// first so the cutoff firmware version is visible at a glance.
var probeVersions = []string{"v1", "v10.04", "v10.08", "v10.09"}

var diagCmd = &cobra.Command{
	Use:   "diag <switch-ip>",
	Short: "Test connectivity to one switch from the shell",
	Long: `Authenticates against a switch, probes its management mode and hardware
capabilities, and prints the result. Without --username the configured
saved and default credentials are tried in order; with it, the command
prompts for a password and uses only that pair. --matrix additionally
sweeps the known REST API versions to show which ones the firmware
still serves.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ip := args[0]
		if err := validate.IPAddress(ip); err != nil {
			return err
		}

		st, err := buildStack(cfg)
		if err != nil {
			return err
		}
		defer st.close()

		backend := st.manager.DirectBackend(ip)
		var explicit *cxapi.Credentials
		if diagUsername != "" {
			fmt.Fprintf(os.Stderr, "Password for %s@%s: ", diagUsername, ip)
			password, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			explicit = &cxapi.Credentials{
				Username: diagUsername,
				Password: string(password),
			}
			backend = st.manager.DirectBackendWith(ip, *explicit)
		}

		result, err := backend.TestConnection(cmd.Context())
		if err != nil {
			cxErr := cxapi.AsError(err, ip)
			fmt.Printf("%s %s\n", cli.Red("FAILED:"), cxErr.Message)
			if cxErr.Suggestion != "" {
				fmt.Printf("  hint: %s\n", cxErr.Suggestion)
			}
			return fmt.Errorf("connection test failed (%s)", cxErr.Kind)
		}

		printDiag(ip, result)
		st.manager.Sessions.Cleanup(cmd.Context(), ip, true)

		if diagMatrix {
			fmt.Println()
			runVersionMatrix(cmd, ip, explicit)
		}
		return nil
	},
}

// runVersionMatrix attempts a login/logout cycle against each known REST
// version. Every attempt uses a throwaway session manager so the sweep never
// touches the main session pool.
func runVersionMatrix(cmd *cobra.Command, ip string, explicit *cxapi.Credentials) {
	defaults := make([]cxapi.Credentials, 0, len(cfg.Credentials.Defaults))
	for _, pair := range cfg.Credentials.Defaults {
		defaults = append(defaults, cxapi.Credentials{Username: pair.Username, Password: pair.Password})
	}

	tbl := cli.NewTable("API VERSION", "RESULT")
	for _, v := range probeVersions {
		m := cxapi.NewSessionManager(cxapi.Options{
			APIVersion: v,
			SSLVerify:  cfg.API.SSLVerify,
			Timeouts: cxapi.Timeouts{
				Short:  cfg.API.ShortTimeout,
				Medium: cfg.API.MediumTimeout,
				Long:   cfg.API.LongTimeout,
			},
			Defaults: defaults,
			Retry:    cxapi.RetryPolicy{MaxAttempts: 1, BaseDelay: 0, Sleep: func(time.Duration) {}},
		})

		var err error
		if explicit != nil {
			_, err = m.AuthenticateWith(cmd.Context(), ip, *explicit)
		} else {
			_, err = m.Authenticate(cmd.Context(), ip)
		}
		if err != nil {
			tbl.Row(v, cli.Red(string(cxapi.AsError(err, ip).Kind)))
			continue
		}
		m.Cleanup(cmd.Context(), ip, true)
		tbl.Row(v, cli.Green("ok"))
	}
	tbl.Flush()
}

func printDiag(ip string, r *manager.ConnectionResult) {
	fmt.Printf("%s %s\n", cli.Green("OK"), cli.Bold("Switch "+ip))
	fmt.Printf("  Hostname:    %s\n", r.Hostname)
	fmt.Printf("  Platform:    %s\n", r.Platform)
	fmt.Printf("  Firmware:    %s\n", r.Firmware)
	fmt.Printf("  Credentials: %s (%s)\n", r.Username, r.Source)

	mode := "local management"
	if r.Mode.CentralManaged {
		mode = "Aruba Central managed"
	}
	if !r.Mode.Conclusive {
		mode += " (inconclusive)"
	}
	fmt.Printf("  Mode:        %s\n", mode)

	var features []string
	if r.Capabilities.PoE {
		features = append(features, "poe")
	}
	if r.Capabilities.LLDP {
		features = append(features, "lldp")
	}
	if len(features) == 0 {
		features = append(features, "none detected")
	}
	fmt.Printf("  Features:    %s\n", strings.Join(features, ", "))
	fmt.Printf("  Hardware:    %d ports, %d PSUs, %d fans\n",
		r.Capabilities.PortCount, r.Capabilities.PSUCount, r.Capabilities.FanCount)
}

func init() {
	diagCmd.Flags().StringVarP(&diagUsername, "username", "u", "", "Authenticate with this username only (prompts for password)")
	diagCmd.Flags().BoolVar(&diagMatrix, "matrix", false, "Also sweep known REST API versions")
}
