package reconcile

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/digitalocean/go-libvirt"

	"github.com/virtadm/virtadm/internal/descriptor"
	virt "github.com/virtadm/virtadm/internal/libvirt"
)

// DomainReconciler manages domain definitions and power state.
type DomainReconciler struct {
	client DomainClient

	// DryRun plans changes without applying them.
	DryRun bool

	// ShutdownTimeout bounds how long a requested guest shutdown is
	// given to complete before it is reported as unconfirmed.
	ShutdownTimeout time.Duration

	// RemoveTimeout bounds the graceful shutdown attempted before a
	// removal falls back to destroying the domain.
	RemoveTimeout time.Duration

	// PollInterval is the delay between state polls while waiting.
	PollInterval time.Duration
}

// NewDomainReconciler returns a domain reconciler with default
// timeouts.
func NewDomainReconciler(client DomainClient) *DomainReconciler {
	return &DomainReconciler{
		client:          client,
		ShutdownTimeout: 60 * time.Second,
		RemoveTimeout:   30 * time.Second,
		PollInterval:    time.Second,
	}
}

// EnsurePresent defines the domain if it does not exist. An existing
// domain is left untouched regardless of its shape.
func (r *DomainReconciler) EnsurePresent(name string, vcpu, memoryMB int) (Result, error) {
	_, err := r.client.DomainLookupByName(name)
	if err == nil {
		return resultf(false, "domain %s already exists", name), nil
	}
	if !virt.IsNotFound(err) {
		return Result{}, fmt.Errorf("failed to look up domain %s: %w", name, err)
	}

	if r.DryRun {
		return resultf(true, "would create domain %s", name), nil
	}

	xml, err := descriptor.BuildDomain(name, vcpu, memoryMB)
	if err != nil {
		return Result{}, err
	}
	if _, err := r.client.DomainDefineXML(xml); err != nil {
		return Result{}, fmt.Errorf("failed to define domain %s: %w", name, err)
	}

	return resultf(true, "domain %s created", name), nil
}

// EnsureAbsent removes the domain and everything libvirt keeps for it:
// managed save image, snapshot and checkpoint metadata, and the NVRAM
// variable store. A running domain is shut down gracefully first and
// destroyed if the guest does not comply within RemoveTimeout.
func (r *DomainReconciler) EnsureAbsent(name string) (Result, error) {
	dom, err := r.client.DomainLookupByName(name)
	if err != nil {
		if virt.IsNotFound(err) {
			return resultf(false, "domain %s does not exist", name), nil
		}
		return Result{}, fmt.Errorf("failed to look up domain %s: %w", name, err)
	}

	if r.DryRun {
		return resultf(true, "would remove domain %s", name), nil
	}

	active, err := r.client.DomainIsActive(dom)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check domain %s state: %w", name, err)
	}
	if active == 1 {
		if err := r.client.DomainShutdown(dom); err != nil {
			// guest without ACPI support or already dying
			if err := r.client.DomainDestroy(dom); err != nil {
				return Result{}, fmt.Errorf("failed to stop domain %s: %w", name, err)
			}
		} else if !r.waitForShutoff(dom, r.RemoveTimeout) {
			if err := r.client.DomainDestroy(dom); err != nil {
				return Result{}, fmt.Errorf("failed to stop domain %s: %w", name, err)
			}
		}
	}

	if has, err := r.client.DomainHasManagedSaveImage(dom, 0); err == nil && has == 1 {
		if err := r.client.DomainManagedSaveRemove(dom, 0); err != nil {
			log.Printf("warning: failed to remove managed save image for %s: %v", name, err)
		}
	}

	undefineFlags := libvirt.DomainUndefineManagedSave |
		libvirt.DomainUndefineSnapshotsMetadata |
		libvirt.DomainUndefineNvram |
		libvirt.DomainUndefineCheckpointsMetadata
	if err := r.client.DomainUndefineFlags(dom, undefineFlags); err != nil {
		log.Printf("warning: undefine with flags failed for %s, retrying plain undefine: %v", name, err)
		if err := r.client.DomainUndefine(dom); err != nil {
			return Result{}, fmt.Errorf("failed to undefine domain %s: %w", name, err)
		}
	}

	if err := os.Remove(descriptor.NVRAMPath(name)); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: failed to remove NVRAM file for %s: %v", name, err)
	}

	return resultf(true, "domain %s and all associated resources removed", name), nil
}

// waitForShutoff polls the domain state until it reaches shutoff or the
// timeout expires.
func (r *DomainReconciler) waitForShutoff(dom libvirt.Domain, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		state, _, err := r.client.DomainGetState(dom, 0)
		if err == nil && state == int32(libvirt.DomainShutoff) {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(r.PollInterval)
	}
}
