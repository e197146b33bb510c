package reconcile

import (
	"fmt"

	"github.com/virtadm/virtadm/internal/descriptor"
	virt "github.com/virtadm/virtadm/internal/libvirt"
)

// Resource states accepted by the network and pool reconcilers.
const (
	StatePresent  = "present"
	StateAbsent   = "absent"
	StateActive   = "active"
	StateInactive = "inactive"
)

// NetworkReconciler manages virtual network definitions, activation
// and autostart.
type NetworkReconciler struct {
	client NetworkClient

	// DryRun plans changes without applying them.
	DryRun bool
}

// NewNetworkReconciler returns a network reconciler.
func NewNetworkReconciler(client NetworkClient) *NetworkReconciler {
	return &NetworkReconciler{client: client}
}

// Ensure drives a network to the requested state. State present
// defines the network when missing and activates it only when the spec
// asks for a DHCP service; active and inactive control activation
// explicitly. A nil autostart leaves the autostart flag unmanaged.
func (r *NetworkReconciler) Ensure(spec descriptor.NetworkSpec, state string, autostart *bool) (Result, error) {
	switch state {
	case StatePresent, StateAbsent, StateActive, StateInactive:
	default:
		return Result{}, fmt.Errorf("invalid network state %q", state)
	}

	net, err := r.client.NetworkLookupByName(spec.Name)
	found := err == nil
	if err != nil && !virt.IsNotFound(err) {
		return Result{}, fmt.Errorf("failed to look up network %s: %w", spec.Name, err)
	}

	if state == StateAbsent {
		if !found {
			return resultf(false, "network %s does not exist", spec.Name), nil
		}
		if r.DryRun {
			return resultf(true, "would remove network %s", spec.Name), nil
		}
		if active, err := r.client.NetworkIsActive(net); err == nil && active == 1 {
			if err := r.client.NetworkDestroy(net); err != nil {
				return Result{}, fmt.Errorf("failed to destroy network %s: %w", spec.Name, err)
			}
		}
		if persistent, err := r.client.NetworkIsPersistent(net); err == nil && persistent == 1 {
			if err := r.client.NetworkUndefine(net); err != nil {
				return Result{}, fmt.Errorf("failed to undefine network %s: %w", spec.Name, err)
			}
		}
		return resultf(true, "network %s removed", spec.Name), nil
	}

	changed := false

	if !found {
		if state == StateInactive {
			return resultf(false, "network %s does not exist", spec.Name), nil
		}
		if r.DryRun {
			return resultf(true, "would create network %s", spec.Name), nil
		}
		xml, err := descriptor.BuildNetwork(spec)
		if err != nil {
			return Result{}, err
		}
		net, err = r.client.NetworkDefineXML(xml)
		if err != nil {
			return Result{}, fmt.Errorf("failed to define network %s: %w", spec.Name, err)
		}
		changed = true
	}

	// present only activates networks that serve DHCP; a plain
	// definition can stay down until something needs it
	manageActivation := state == StateActive || state == StateInactive ||
		(state == StatePresent && spec.DHCPEnabled())
	if manageActivation {
		wantActive := state != StateInactive
		active, err := r.client.NetworkIsActive(net)
		if err != nil {
			return Result{}, fmt.Errorf("failed to check network %s state: %w", spec.Name, err)
		}
		if wantActive && active == 0 {
			if r.DryRun {
				return resultf(true, "would activate network %s", spec.Name), nil
			}
			if err := r.client.NetworkCreate(net); err != nil {
				return Result{}, fmt.Errorf("failed to activate network %s: %w", spec.Name, err)
			}
			changed = true
		}
		if !wantActive && active == 1 {
			if r.DryRun {
				return resultf(true, "would deactivate network %s", spec.Name), nil
			}
			if err := r.client.NetworkDestroy(net); err != nil {
				return Result{}, fmt.Errorf("failed to deactivate network %s: %w", spec.Name, err)
			}
			changed = true
		}
	}

	if autostart != nil {
		current, err := r.client.NetworkGetAutostart(net)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read network %s autostart: %w", spec.Name, err)
		}
		if (current == 1) != *autostart {
			if r.DryRun {
				return resultf(true, "would update autostart for network %s", spec.Name), nil
			}
			flag := int32(0)
			if *autostart {
				flag = 1
			}
			if err := r.client.NetworkSetAutostart(net, flag); err != nil {
				return Result{}, fmt.Errorf("failed to set network %s autostart: %w", spec.Name, err)
			}
			changed = true
		}
	}

	if changed {
		return resultf(true, "network %s configured", spec.Name), nil
	}
	return resultf(false, "network %s already in desired state", spec.Name), nil
}
