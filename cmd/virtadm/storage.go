package main

import (
	"fmt"
	"os"

	golibvirt "github.com/digitalocean/go-libvirt"
	"github.com/spf13/cobra"

	"github.com/virtadm/virtadm/internal/config"
	"github.com/virtadm/virtadm/internal/descriptor"
	"github.com/virtadm/virtadm/internal/perms"
	"github.com/virtadm/virtadm/internal/reconcile"
	"github.com/virtadm/virtadm/internal/seed"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage storage pools",
}

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Manage storage volumes",
}

func init() {
	poolCmd.AddCommand(poolEnsureCmd)

	f := poolEnsureCmd.Flags()
	f.String("type", "dir", "pool type (dir, logical, fs, netfs, ...)")
	f.String("target", "", "target path of the pool")
	f.String("source-device", "", "source block device (logical and fs pools)")
	f.String("source-host", "", "source host (netfs pools)")
	f.String("source-format", "", "source format (netfs pools)")
	f.String("state", reconcile.StatePresent, "desired state (present, absent, active or inactive)")
	f.Bool("autostart", false, "start the pool on host boot")
	addPermFlags(poolEnsureCmd)

	volumeCmd.AddCommand(volumePresentCmd)
	volumeCmd.AddCommand(volumeAbsentCmd)
	volumeCmd.AddCommand(volumeResizeCmd)
	volumeCmd.AddCommand(volumeImportCmd)
	volumeCmd.AddCommand(volumeSeedCmd)

	volumePresentCmd.Flags().String("capacity", "", "volume capacity, e.g. 10G (required)")
	volumePresentCmd.Flags().String("format", "qcow2", "volume format")
	addPermFlags(volumePresentCmd)
	_ = volumePresentCmd.MarkFlagRequired("capacity")

	volumeResizeCmd.Flags().String("capacity", "", "new capacity, e.g. 20G (required)")
	addPermFlags(volumeResizeCmd)
	_ = volumeResizeCmd.MarkFlagRequired("capacity")

	volumeImportCmd.Flags().String("format", "qcow2", "format of the source file")
	addPermFlags(volumeImportCmd)
}

// addPermFlags registers the shared permission flags.
func addPermFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "octal mode for the target path")
	cmd.Flags().String("owner", "", "owner name or uid for the target path")
	cmd.Flags().String("group", "", "group name or gid for the target path")
}

func permSpecFromFlags(cmd *cobra.Command) perms.Spec {
	mode, _ := cmd.Flags().GetString("mode")
	owner, _ := cmd.Flags().GetString("owner")
	group, _ := cmd.Flags().GetString("group")
	return perms.Spec{Mode: mode, Owner: owner, Group: group}
}

var poolEnsureCmd = &cobra.Command{
	Use:   "ensure <name>",
	Short: "Drive a storage pool to a desired state",
	Long: `Define, activate, deactivate or remove a storage pool. The
target directory of a dir pool is created before the pool is defined,
and its permissions are converged on every run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		poolType, _ := f.GetString("type")
		target, _ := f.GetString("target")
		sourceDevice, _ := f.GetString("source-device")
		sourceHost, _ := f.GetString("source-host")
		sourceFormat, _ := f.GetString("source-format")
		state, _ := f.GetString("state")

		p := permSpecFromFlags(cmd)
		spec := descriptor.PoolSpec{
			Name:         args[0],
			Type:         poolType,
			TargetPath:   target,
			SourceDevice: sourceDevice,
			SourceHost:   sourceHost,
			SourceFormat: sourceFormat,
			Permissions: descriptor.PoolPermissions{
				Mode:  p.Mode,
				Owner: p.Owner,
				Group: p.Group,
			},
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

		r := reconcile.NewPoolReconciler(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.Ensure(spec, state, autostart)
		if err != nil {
			return fmt.Errorf("failed to ensure pool %s: %w", args[0], err)
		}
		return printResult(res)
	},
}

var volumePresentCmd = &cobra.Command{
	Use:   "present <pool> <name>",
	Short: "Create a volume if it does not exist",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		capacity, _ := cmd.Flags().GetString("capacity")
		format, _ := cmd.Flags().GetString("format")

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		r := reconcile.NewVolumeReconciler(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.EnsurePresent(args[0], args[1], capacity, format, permSpecFromFlags(cmd))
		if err != nil {
			return fmt.Errorf("failed to ensure volume %s/%s: %w", args[0], args[1], err)
		}
		return printResult(res)
	},
}

var volumeAbsentCmd = &cobra.Command{
	Use:   "absent <pool> <name>",
	Short: "Delete a volume",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		r := reconcile.NewVolumeReconciler(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.EnsureAbsent(args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to remove volume %s/%s: %w", args[0], args[1], err)
		}
		return printResult(res)
	},
}

var volumeResizeCmd = &cobra.Command{
	Use:   "resize <pool> <name>",
	Short: "Grow a volume",
	Long: `Grow a volume to the given capacity. Matching the current size
is a no-op; shrinking is refused.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		capacity, _ := cmd.Flags().GetString("capacity")

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		r := reconcile.NewVolumeReconciler(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.Resize(args[0], args[1], capacity, permSpecFromFlags(cmd))
		if err != nil {
			return fmt.Errorf("failed to resize volume %s/%s: %w", args[0], args[1], err)
		}
		return printResult(res)
	},
}

var volumeImportCmd = &cobra.Command{
	Use:   "import <pool> <name> <source-path>",
	Short: "Import a local file as a volume",
	Long: `Create a volume sized to a local file and stream its contents
into the pool. An existing volume of the same name is left untouched.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		r := reconcile.NewVolumeReconciler(client.Libvirt())
		r.DryRun = flagDryRun

		res, err := r.Import(args[0], args[1], args[2], format, permSpecFromFlags(cmd))
		if err != nil {
			return fmt.Errorf("failed to import %s into %s: %w", args[2], args[0], err)
		}
		return printResult(res)
	},
}

var volumeSeedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Build a cloud-init seed ISO and import it as a volume",
	Long: `Build a NoCloud seed ISO (user-data, meta-data, network-config)
from seed documents in a YAML file and import it into the declared
pool. The resulting ISO volume attaches to domains as a CDROM.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := config.Load(args[0])
		if err != nil {
			return err
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		found := false
		for _, doc := range docs {
			if doc.Kind != config.KindSeed {
				continue
			}
			found = true
			res, err := importSeed(client.Libvirt(), doc.Seed, flagDryRun)
			if err != nil {
				return fmt.Errorf("failed to seed %s: %w", doc.Name(), err)
			}
			if err := printResult(res); err != nil {
				return err
			}
		}
		if !found {
			return fmt.Errorf("%s contains no seed documents", args[0])
		}
		return nil
	},
}

// importSeed builds the seed ISO in memory, stages it in a temporary
// file and imports it as a raw volume.
func importSeed(l *golibvirt.Libvirt, doc *config.SeedDoc, dryRun bool) (reconcile.Result, error) {
	iso, err := seed.BuildISO(doc)
	if err != nil {
		return reconcile.Result{}, err
	}

	tmp, err := os.CreateTemp("", "virtadm-seed-*.iso")
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("failed to stage seed ISO: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(iso); err != nil {
		tmp.Close()
		return reconcile.Result{}, fmt.Errorf("failed to stage seed ISO: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return reconcile.Result{}, fmt.Errorf("failed to stage seed ISO: %w", err)
	}

	r := reconcile.NewVolumeReconciler(l)
	r.DryRun = dryRun
	return r.Import(doc.Pool, doc.Volume, tmp.Name(), "raw", perms.Spec{})
}
