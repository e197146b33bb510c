package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/virtadm/virtadm/internal/reconcile"
)

var domainCmd = &cobra.Command{
	Use:   "domain",
	Short: "Manage domains",
	Long: `Manage domain definitions, power state, clones and device
attachments.`,
}

func init() {
	domainCmd.AddCommand(domainPresentCmd)
	domainCmd.AddCommand(domainAbsentCmd)
	domainCmd.AddCommand(domainPowerCmd)
	domainCmd.AddCommand(domainCloneCmd)
	domainCmd.AddCommand(domainAttachNetworkCmd)
	domainCmd.AddCommand(domainAttachVolumesCmd)

	domainPresentCmd.Flags().Int("vcpus", 1, "number of virtual CPUs")
	domainPresentCmd.Flags().Int("memory-mib", 1024, "memory in MiB")

	domainPowerCmd.Flags().Bool("force", false, "destroy instead of graceful shutdown, reset instead of reboot")

	domainCloneCmd.Flags().Bool("linked", false, "create copy-on-write volumes backed by the source (qcow2 only)")
	domainCloneCmd.Flags().String("pool", "", "clone volumes into this pool instead of the source pool")
	domainCloneCmd.Flags().Bool("start", false, "start the clone after defining it")

	domainAttachNetworkCmd.Flags().String("mac", "", "MAC address for the new interface (generated when empty)")
	domainAttachNetworkCmd.Flags().Bool("link-down", false, "attach the interface with its link down")
}

var domainPresentCmd = &cobra.Command{
	Use:   "present <name>",
	Short: "Define a domain if it does not exist",
	Long: `Define a minimal bootable domain. An existing domain is left
untouched; the command never starts the domain.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vcpus, _ := cmd.Flags().GetInt("vcpus")
		memory, _ := cmd.Flags().GetInt("memory-mib")

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		r := reconcile.NewDomainReconciler(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.EnsurePresent(args[0], vcpus, memory)
		if err != nil {
			return fmt.Errorf("failed to ensure domain %s: %w", args[0], err)
		}
		return printResult(res)
	},
}

var domainAbsentCmd = &cobra.Command{
	Use:   "absent <name>",
	Short: "Remove a domain",
	Long: `Stop and undefine a domain. A running domain is asked to shut
down and destroyed when it does not comply; managed save images,
snapshot metadata and NVRAM are removed with it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		r := reconcile.NewDomainReconciler(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.EnsureAbsent(args[0])
		if err != nil {
			return fmt.Errorf("failed to remove domain %s: %w", args[0], err)
		}
		return printResult(res)
	},
}

var domainPowerCmd = &cobra.Command{
	Use:   "power <name> <running|poweroff|reboot>",
	Short: "Drive a domain to a power state",
	Long: `Drive a domain to the requested power state. Poweroff asks the
guest to shut down and waits up to a minute; --force destroys it
outright. Reboot acts only on a running domain.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		switch args[1] {
		case reconcile.PowerRunning, reconcile.PowerOff, reconcile.PowerReboot:
		default:
			return fmt.Errorf("invalid power state %q (want running, poweroff or reboot)", args[1])
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		r := reconcile.NewDomainReconciler(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.EnsurePower(args[0], args[1], force)
		if err != nil {
			return fmt.Errorf("failed to set power state of %s: %w", args[0], err)
		}
		return printResult(res)
	},
}

var domainCloneCmd = &cobra.Command{
	Use:   "clone <source> <name>",
	Short: "Clone a domain",
	Long: `Clone a domain and its file-backed disks. CDROM media are
shared with the source. Full clones may target another pool with
--pool; linked clones stay in the source pool.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		linked, _ := cmd.Flags().GetBool("linked")
		pool, _ := cmd.Flags().GetString("pool")
		start, _ := cmd.Flags().GetBool("start")

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		c := reconcile.NewCloner(client.Libvirt())
		c.DryRun = flagDryRun

		res, err := c.Clone(args[0], args[1], linked, pool, start)
		if err != nil {
			return fmt.Errorf("failed to clone %s: %w", args[0], err)
		}
		return printResult(res)
	},
}

var domainAttachNetworkCmd = &cobra.Command{
	Use:   "attach-network <domain> <network>",
	Short: "Attach a network interface to a domain",
	Long: `Attach a virtio interface connected to a network. An interface
already on that network makes this a no-op; requesting a different MAC
for it is an error.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mac, _ := cmd.Flags().GetString("mac")
		linkDown, _ := cmd.Flags().GetBool("link-down")

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		a := reconcile.NewDeviceAttacher(client.Libvirt())
		a.DryRun = flagDryRun

		res, err := a.AttachNetwork(args[0], args[1], mac, !linkDown)
		if err != nil {
			return fmt.Errorf("failed to attach network %s to %s: %w", args[1], args[0], err)
		}
		return printResult(res)
	},
}

var domainAttachVolumesCmd = &cobra.Command{
	Use:   "attach-volumes <domain> <pool> <volume>...",
	Short: "Attach storage volumes to a domain",
	Long: `Attach volumes from a pool. ISO volumes become read-only SATA
CDROMs, with a SATA controller provisioned on demand; everything else
attaches as a virtio disk. Already attached volumes are skipped.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		a := reconcile.NewDeviceAttacher(client.Libvirt())
		a.DryRun = flagDryRun

		res, err := a.AttachVolumes(args[0], args[1], args[2:])
		if err != nil {
			return fmt.Errorf("failed to attach volumes to %s: %w", args[0], err)
		}
		return printResult(res)
	},
}
