package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/virtadm/virtadm/internal/reconcile"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh pools and recycle networks",
}

func init() {
	refreshCmd.AddCommand(refreshPoolCmd)
	refreshCmd.AddCommand(refreshNetworkCmd)
}

var refreshPoolCmd = &cobra.Command{
	Use:   "pool [name]",
	Short: "Rescan the contents of storage pools",
	Long: `Rescan one active pool, or every active pool when no name is
given. Inactive pools are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		r := reconcile.NewRefresher(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.RefreshPools(name)
		if err != nil {
			return fmt.Errorf("failed to refresh pools: %w", err)
		}
		return printResult(res)
	},
}

var refreshNetworkCmd = &cobra.Command{
	Use:   "network [name]",
	Short: "Recycle active networks",
	Long: `Recycle one active network, or every active network when no
name is given. A recycle destroys and recreates the network, which
interrupts guest connectivity while it runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}

		if !flagDryRun {
			log.Printf("Warning: recycling a network briefly disconnects every guest attached to it")
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		r := reconcile.NewRefresher(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.RecycleNetworks(name)
		if err != nil {
			return fmt.Errorf("failed to recycle networks: %w", err)
		}
		return printResult(res)
	},
}
