package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	virt "github.com/virtadm/virtadm/internal/libvirt"
	"github.com/virtadm/virtadm/internal/output"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	flagURI        string
	flagRemoteHost string
	flagAuthUser   string
	flagAuthPass   string
	flagTimeout    time.Duration
	flagDryRun     bool
	flagOutput     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "virtadm",
	Short: "Declarative libvirt resource management",
	Long: `virtadm reconciles libvirt resources toward a declared state.

Domains, networks, storage pools and volumes are driven to the desired
state by discrete subcommands or by applying YAML resource documents.
Every mutating command is idempotent and supports --dry-run.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return output.ValidateFormat(flagOutput)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagURI, "uri", "", "libvirt driver URI (default qemu:///system)")
	pf.StringVar(&flagRemoteHost, "remote-host", "", "connect to libvirtd on a remote host over TCP")
	pf.StringVar(&flagAuthUser, "auth-user", "", "username for authenticated transports")
	pf.StringVar(&flagAuthPass, "auth-password", "", "password for authenticated transports")
	pf.DurationVar(&flagTimeout, "timeout", virt.DefaultTimeout, "connection dial timeout")
	pf.BoolVar(&flagDryRun, "dry-run", false, "report what would change without touching the hypervisor")
	pf.StringVarP(&flagOutput, "output", "o", "table", "output format (table, yaml, json)")

	rootCmd.AddCommand(domainCmd)
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(testConnCmd)
}

func connect() (*virt.Client, error) {
	client, err := virt.Connect(virt.ConnectOptions{
		URI:          flagURI,
		RemoteHost:   flagRemoteHost,
		AuthUser:     flagAuthUser,
		AuthPassword: flagAuthPass,
		Timeout:      flagTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	return client, nil
}

func closeClient(client *virt.Client) {
	if err := client.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", err)
	}
}

// printResult renders an operation outcome. Table mode prints the
// human message; yaml and json render the full record.
func printResult(v any) error {
	if output.Format(flagOutput) == output.FormatTable {
		changed, msg := false, ""
		if o, ok := v.(interface{ Outcome() (bool, string) }); ok {
			changed, msg = o.Outcome()
		}
		if changed {
			fmt.Printf("✓ %s\n", msg)
		} else {
			fmt.Println(msg)
		}
		return nil
	}
	return printFormatted(v)
}

// printFormatted renders any value in the selected output format.
func printFormatted(v any) error {
	f, err := output.NewFormatter(output.Options{Format: output.Format(flagOutput)})
	if err != nil {
		return err
	}
	s, err := f.Format(v)
	if err != nil {
		return err
	}
	fmt.Print(s)
	return nil
}

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test the libvirt connection",
	Long:  `Connect to the libvirt daemon and report version and endpoint details.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		if err := client.Ping(); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}

		// libvirt packs versions as major*1000000 + minor*1000 + patch
		ver, err := client.Libvirt().ConnectGetLibVersion()
		if err != nil {
			return fmt.Errorf("failed to get libvirt version: %w", err)
		}
		fmt.Printf("✓ Libvirt version: %d.%d.%d\n", ver/1000000, (ver%1000000)/1000, ver%1000)

		hostname, err := client.Libvirt().ConnectGetHostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		fmt.Printf("✓ Hypervisor hostname: %s\n", hostname)
		fmt.Printf("✓ Connection URI: %s\n", client.URI())

		return nil
	},
}
