package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/virtadm/virtadm/internal/descriptor"
	"github.com/virtadm/virtadm/internal/reconcile"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage virtual networks",
	Long: `Manage virtual network definitions, activation state and DHCP
reservations.`,
}

func init() {
	networkCmd.AddCommand(networkEnsureCmd)
	networkCmd.AddCommand(networkReserveCmd)

	f := networkEnsureCmd.Flags()
	f.String("type", descriptor.NetworkTypeNAT, "network type (nat, route or isolated)")
	f.String("cidr", "", "IPv4 subnet; the gateway is the first host address")
	f.String("bridge", "", "bridge device name (generated when empty)")
	f.String("domain-name", "", "DNS domain served to guests")
	f.Int("mtu", 0, "bridge MTU (hypervisor default when 0)")
	f.Bool("stp", false, "enable spanning tree on the bridge")
	f.Int("delay", 0, "bridge forward delay in seconds")
	f.String("state", reconcile.StatePresent, "desired state (present, absent, active or inactive)")
	f.Bool("autostart", false, "start the network on host boot")
	f.Bool("dhcp", true, "serve DHCP on the subnet")
	f.String("dhcp-start", "", "first address of the DHCP range")
	f.String("dhcp-end", "", "last address of the DHCP range")
}

var networkEnsureCmd = &cobra.Command{
	Use:   "ensure <name>",
	Short: "Drive a network to a desired state",
	Long: `Define, activate, deactivate or remove a network. A present
network with DHCP enabled is activated implicitly. Autostart is only
touched when --autostart is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		netType, _ := f.GetString("type")
		cidr, _ := f.GetString("cidr")
		bridge, _ := f.GetString("bridge")
		domainName, _ := f.GetString("domain-name")
		mtu, _ := f.GetInt("mtu")
		stp, _ := f.GetBool("stp")
		delay, _ := f.GetInt("delay")
		state, _ := f.GetString("state")
		dhcp, _ := f.GetBool("dhcp")
		dhcpStart, _ := f.GetString("dhcp-start")
		dhcpEnd, _ := f.GetString("dhcp-end")

		spec := descriptor.NetworkSpec{
			Name:   args[0],
			Type:   netType,
			Bridge: bridge,
			CIDR:   cidr,
			Domain: domainName,
			MTU:    mtu,
			STP:    stp,
			Delay:  delay,
		}
		if !dhcp {
			spec.DHCP = &descriptor.DHCPSpec{Enabled: false}
		} else if dhcpStart != "" || dhcpEnd != "" {
			spec.DHCP = &descriptor.DHCPSpec{Enabled: true, Start: dhcpStart, End: dhcpEnd}
		}

		var autostart *bool
		if f.Changed("autostart") {
			v, _ := f.GetBool("autostart")
			autostart = &v
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		r := reconcile.NewNetworkReconciler(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.Ensure(spec, state, autostart)
		if err != nil {
			return fmt.Errorf("failed to ensure network %s: %w", args[0], err)
		}
		return printResult(res)
	},
}

var networkReserveCmd = &cobra.Command{
	Use:   "reserve <network> <hostname> <mac> <ip>",
	Short: "Reserve a DHCP address on a network",
	Long: `Pin an IP address to a MAC on the network's DHCP service. The
reservation is written to both the live and persistent configuration.
A network without DHCP reports a skip instead of failing.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		r := reconcile.NewDHCPReconciler(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.EnsureReservation(args[0], args[1], args[2], args[3])
		if err != nil {
			return fmt.Errorf("failed to reserve %s on %s: %w", args[3], args[0], err)
		}
		return printResult(res)
	},
}
