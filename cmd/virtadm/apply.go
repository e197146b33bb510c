package main

import (
	"fmt"

	golibvirt "github.com/digitalocean/go-libvirt"
	"github.com/spf13/cobra"

	"github.com/virtadm/virtadm/internal/config"
	"github.com/virtadm/virtadm/internal/output"
	"github.com/virtadm/virtadm/internal/reconcile"
)

// applyResult is the per-document record reported by apply.
type applyResult struct {
	Kind    string `json:"kind" yaml:"kind"`
	Name    string `json:"name" yaml:"name"`
	Changed bool   `json:"changed" yaml:"changed"`
	Msg     string `json:"msg,omitempty" yaml:"msg,omitempty"`
}

var applyCmd = &cobra.Command{
	Use:   "apply <file>...",
	Short: "Apply declarative resource documents",
	Long: `Apply YAML resource documents. Each document declares one
resource (kind: domain, network, pool, volume, dhcp_reservation or
seed) and its desired state; documents are applied in file order and
the first failure stops the run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var docs []config.Document
		for _, path := range args {
			loaded, err := config.Load(path)
			if err != nil {
				return err
			}
			docs = append(docs, loaded...)
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		table := output.Format(flagOutput) == output.FormatTable
		results := make([]applyResult, 0, len(docs))
		changed := 0

		for _, doc := range docs {
			res, err := applyDocument(client.Libvirt(), doc)
			if err != nil {
				return fmt.Errorf("%s %s: %w", doc.Kind, doc.Name(), err)
			}
			if res.Changed {
				changed++
			}
			results = append(results, applyResult{
				Kind:    doc.Kind,
				Name:    doc.Name(),
				Changed: res.Changed,
				Msg:     res.Msg,
			})
			if table {
				marker := " "
				if res.Changed {
					marker = "✓"
				}
				fmt.Printf("%s %s %s: %s\n", marker, doc.Kind, doc.Name(), res.Msg)
			}
		}

		if table {
			fmt.Printf("\napplied %d documents, %d changed\n", len(docs), changed)
			return nil
		}
		return printFormatted(results)
	},
}

func applyDocument(l *golibvirt.Libvirt, doc config.Document) (reconcile.Result, error) {
	switch doc.Kind {
	case config.KindDomain:
		return applyDomain(l, doc.Domain)

	case config.KindNetwork:
		r := reconcile.NewNetworkReconciler(l)
		r.DryRun = flagDryRun
		return r.Ensure(doc.Network.NetworkSpec, doc.Network.State, doc.Network.Autostart)

	case config.KindPool:
		r := reconcile.NewPoolReconciler(l)
		r.DryRun = flagDryRun
		return r.Ensure(doc.Pool.PoolSpec, doc.Pool.State, doc.Pool.Autostart)

	case config.KindVolume:
		return applyVolume(l, doc.Volume)

	case config.KindReservation:
		r := reconcile.NewDHCPReconciler(l)
		r.DryRun = flagDryRun
		res, err := r.EnsureReservation(doc.Reservation.Network, doc.Reservation.Host,
			doc.Reservation.MAC, doc.Reservation.IP)
		return res.Result, err

	case config.KindSeed:
		return importSeed(l, doc.Seed, flagDryRun)
	}
	return reconcile.Result{}, fmt.Errorf("unknown kind %q", doc.Kind)
}

func applyDomain(l *golibvirt.Libvirt, doc *config.DomainDoc) (reconcile.Result, error) {
	r := reconcile.NewDomainReconciler(l)
	r.DryRun = flagDryRun

	if doc.State == "absent" {
		return r.EnsureAbsent(doc.Name)
	}

	res, err := r.EnsurePresent(doc.Name, doc.VCPUs, doc.MemoryMiB)
	if err != nil || doc.Power == "" {
		return res, err
	}

	// The domain does not exist yet in a dry run, so the power step
	// can only be reported, not planned against it.
	if flagDryRun && res.Changed {
		return reconcile.Result{
			Changed: true,
			Msg:     res.Msg + "; would set power state " + doc.Power,
		}, nil
	}

	power, err := r.EnsurePower(doc.Name, doc.Power, doc.Force)
	if err != nil {
		return res, err
	}
	return reconcile.Result{
		Changed: res.Changed || power.Changed,
		Msg:     res.Msg + "; " + power.Msg,
	}, nil
}

func applyVolume(l *golibvirt.Libvirt, doc *config.VolumeDoc) (reconcile.Result, error) {
	r := reconcile.NewVolumeReconciler(l)
	r.DryRun = flagDryRun

	switch doc.State {
	case "absent":
		return r.EnsureAbsent(doc.Pool, doc.Name)
	case "resized":
		return r.Resize(doc.Pool, doc.Name, doc.Capacity, doc.Permissions)
	}
	if doc.Source != "" {
		return r.Import(doc.Pool, doc.Name, doc.Source, doc.Format, doc.Permissions)
	}
	return r.EnsurePresent(doc.Pool, doc.Name, doc.Capacity, doc.Format, doc.Permissions)
}
