package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/virtadm/virtadm/internal/inspect"
	"github.com/virtadm/virtadm/internal/output"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Inspect resources",
	Long: `List and inspect domains, networks, pools and volumes. Name
arguments accept shell globs (*, ?, [class]).`,
}

func init() {
	getCmd.AddCommand(getDomainCmd)
	getCmd.AddCommand(getNetworkCmd)
	getCmd.AddCommand(getPoolCmd)
	getCmd.AddCommand(getVolumeCmd)
	getCmd.AddCommand(getReservedIPCmd)

	getNetworkCmd.Flags().String("cidr", "", "look the network up by its IPv4 subnet instead of by name")
}

func patternArg(args []string) string {
	if len(args) == 0 {
		return "*"
	}
	return args[0]
}

var getDomainCmd = &cobra.Command{
	Use:   "domain [pattern]",
	Short: "List domains",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		domains, err := inspect.NewDomainInspector(client.Libvirt()).ByPattern(patternArg(args))
		if err != nil {
			return fmt.Errorf("failed to list domains: %w", err)
		}

		if output.Format(flagOutput) != output.FormatTable {
			return printFormatted(domains)
		}

		table := output.Table{Headers: []string{"NAME", "STATE", "VCPUS", "MEMORY", "AUTOSTART"}}
		for _, dom := range domains {
			table.Rows = append(table.Rows, []string{
				dom.Name,
				dom.State,
				strconv.Itoa(int(dom.VCPUs)),
				fmt.Sprintf("%d MiB", dom.MaxMemory/1024),
				strconv.FormatBool(dom.Autostart),
			})
		}
		return printFormatted(table)
	},
}

var getNetworkCmd = &cobra.Command{
	Use:   "network [pattern]",
	Short: "List networks",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cidr, _ := cmd.Flags().GetString("cidr")

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		inspector := inspect.NewNetworkInspector(client.Libvirt())

		var networks []inspect.NetworkInfo
		if cidr != "" {
			info, found, err := inspector.ByCIDR(cidr)
			if err != nil {
				return fmt.Errorf("failed to look up network by CIDR: %w", err)
			}
			if !found {
				return fmt.Errorf("no network serves %s", cidr)
			}
			networks = []inspect.NetworkInfo{info}
		} else {
			networks, err = inspector.ByPattern(patternArg(args))
			if err != nil {
				return fmt.Errorf("failed to list networks: %w", err)
			}
		}

		if output.Format(flagOutput) != output.FormatTable {
			return printFormatted(networks)
		}

		table := output.Table{Headers: []string{"NAME", "ACTIVE", "AUTOSTART", "CIDR", "BRIDGE", "DHCP"}}
		for _, net := range networks {
			subnet := net.Config.CIDR
			if subnet == "" {
				subnet = "-"
			}
			bridge := net.Config.Bridge
			if bridge == "" {
				bridge = "-"
			}
			table.Rows = append(table.Rows, []string{
				net.Name,
				strconv.FormatBool(net.Active),
				strconv.FormatBool(net.Autostart),
				subnet,
				bridge,
				strconv.FormatBool(net.Config.DHCPEnabled),
			})
		}
		return printFormatted(table)
	},
}

var getPoolCmd = &cobra.Command{
	Use:   "pool [pattern]",
	Short: "List storage pools",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		pools, err := inspect.NewPoolInspector(client.Libvirt()).ByPattern(patternArg(args))
		if err != nil {
			return fmt.Errorf("failed to list pools: %w", err)
		}

		if output.Format(flagOutput) != output.FormatTable {
			return printFormatted(pools)
		}

		table := output.Table{Headers: []string{"NAME", "STATE", "CAPACITY", "ALLOCATION", "PATH"}}
		for _, pool := range pools {
			path := pool.Config.TargetPath
			if path == "" {
				path = "-"
			}
			table.Rows = append(table.Rows, []string{
				pool.Name,
				pool.State,
				sizeString(pool.Capacity),
				sizeString(pool.Allocation),
				path,
			})
		}
		return printFormatted(table)
	},
}

var getVolumeCmd = &cobra.Command{
	Use:   "volume <pool> [pattern]",
	Short: "List volumes in a pool",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := "*"
		if len(args) == 2 {
			pattern = args[1]
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		volumes, err := inspect.NewVolumeInspector(client.Libvirt()).ByPattern(args[0], pattern)
		if err != nil {
			return fmt.Errorf("failed to list volumes in %s: %w", args[0], err)
		}

		if output.Format(flagOutput) != output.FormatTable {
			return printFormatted(volumes)
		}

		table := output.Table{Headers: []string{"NAME", "FORMAT", "CAPACITY", "ALLOCATION", "PATH"}}
		for _, vol := range volumes {
			table.Rows = append(table.Rows, []string{
				vol.Name,
				vol.Format,
				sizeString(vol.Capacity),
				sizeString(vol.Allocation),
				vol.Path,
			})
		}
		return printFormatted(table)
	},
}

var getReservedIPCmd = &cobra.Command{
	Use:   "reserved-ip <domain> <network>",
	Short: "Look up the DHCP reservation of a domain on a network",
	Long: `Resolve the MAC the domain uses on the network and report the
IP address its DHCP reservation pins.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		domains := inspect.NewDomainInspector(client.Libvirt())
		networks := inspect.NewNetworkInspector(client.Libvirt())

		ip, found, err := inspect.ReservedIP(domains, networks, args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to look up reservation: %w", err)
		}
		if !found {
			return fmt.Errorf("no reservation for %s on %s", args[0], args[1])
		}

		if output.Format(flagOutput) != output.FormatTable {
			return printFormatted(map[string]string{"ip": ip})
		}
		fmt.Println(ip)
		return nil
	},
}

// sizeString renders a byte count with a binary unit suffix.
func sizeString(bytes uint64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1fG", float64(bytes)/(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1fK", float64(bytes)/(1<<10))
	}
	return strconv.FormatUint(bytes, 10)
}
