package reconcile

import (
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"

	"github.com/virtadm/virtadm/internal/descriptor"
	virt "github.com/virtadm/virtadm/internal/libvirt"
	"github.com/virtadm/virtadm/internal/perms"
)

// PoolReconciler manages storage pool definitions, activation,
// autostart and target directory permissions.
type PoolReconciler struct {
	client PoolClient

	// DryRun plans changes without applying them.
	DryRun bool

	// ActivationRetries is how many times pool activation is attempted
	// before giving up.
	ActivationRetries int

	// RetryDelay is the pause between activation attempts.
	RetryDelay time.Duration
}

// NewPoolReconciler returns a pool reconciler with default retry
// behavior.
func NewPoolReconciler(client PoolClient) *PoolReconciler {
	return &PoolReconciler{
		client:            client,
		ActivationRetries: 3,
		RetryDelay:        time.Second,
	}
}

func poolPermSpec(p descriptor.PoolPermissions) perms.Spec {
	return perms.Spec{Mode: p.Mode, Owner: p.Owner, Group: p.Group}
}

// Ensure drives a storage pool to the requested state. For dir pools
// the target directory is created with the requested permissions
// before the pool is defined, and permission drift on the directory is
// corrected on every run.
func (r *PoolReconciler) Ensure(spec descriptor.PoolSpec, state string, autostart *bool) (Result, error) {
	switch state {
	case StatePresent, StateAbsent, StateActive, StateInactive:
	default:
		return Result{}, fmt.Errorf("invalid pool state %q", state)
	}

	pool, err := r.client.StoragePoolLookupByName(spec.Name)
	found := err == nil
	if err != nil && !virt.IsNotFound(err) {
		return Result{}, fmt.Errorf("failed to look up pool %s: %w", spec.Name, err)
	}

	if state == StateAbsent {
		if !found {
			return resultf(false, "pool %s does not exist", spec.Name), nil
		}
		if r.DryRun {
			return resultf(true, "would remove pool %s", spec.Name), nil
		}
		if active, err := r.client.StoragePoolIsActive(pool); err == nil && active == 1 {
			if err := r.client.StoragePoolDestroy(pool); err != nil {
				return Result{}, fmt.Errorf("failed to destroy pool %s: %w", spec.Name, err)
			}
		}
		if persistent, err := r.client.StoragePoolIsPersistent(pool); err == nil && persistent == 1 {
			if err := r.client.StoragePoolUndefine(pool); err != nil {
				return Result{}, fmt.Errorf("failed to undefine pool %s: %w", spec.Name, err)
			}
		}
		return resultf(true, "pool %s removed", spec.Name), nil
	}

	changed := false

	if !found {
		if r.DryRun {
			return resultf(true, "would create pool %s", spec.Name), nil
		}
		xml, err := descriptor.BuildPool(spec)
		if err != nil {
			return Result{}, err
		}
		if spec.Type == "dir" {
			if _, err := perms.CreateWithPermissions(spec.TargetPath, poolPermSpec(spec.Permissions), true); err != nil {
				return Result{}, fmt.Errorf("failed to prepare pool directory: %w", err)
			}
		}
		pool, err = r.client.StoragePoolDefineXML(xml, 0)
		if err != nil {
			return Result{}, fmt.Errorf("failed to define pool %s: %w", spec.Name, err)
		}
		changed = true
	}

	wantActive := state != StateInactive
	active, err := r.client.StoragePoolIsActive(pool)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check pool %s state: %w", spec.Name, err)
	}
	if wantActive && active == 0 {
		if r.DryRun {
			return resultf(true, "would activate pool %s", spec.Name), nil
		}
		if err := r.activate(pool); err != nil {
			return Result{}, fmt.Errorf("failed to activate pool %s: %w", spec.Name, err)
		}
		changed = true
	}
	if !wantActive && active == 1 {
		if r.DryRun {
			return resultf(true, "would deactivate pool %s", spec.Name), nil
		}
		if err := r.client.StoragePoolDestroy(pool); err != nil {
			return Result{}, fmt.Errorf("failed to deactivate pool %s: %w", spec.Name, err)
		}
		changed = true
	}

	if autostart != nil {
		current, err := r.client.StoragePoolGetAutostart(pool)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read pool %s autostart: %w", spec.Name, err)
		}
		if (current == 1) != *autostart {
			if r.DryRun {
				return resultf(true, "would update autostart for pool %s", spec.Name), nil
			}
			flag := int32(0)
			if *autostart {
				flag = 1
			}
			if err := r.client.StoragePoolSetAutostart(pool, flag); err != nil {
				return Result{}, fmt.Errorf("failed to set pool %s autostart: %w", spec.Name, err)
			}
			changed = true
		}
	}

	// converge directory permissions on every run, not just creation
	if spec.Type == "dir" && spec.TargetPath != "" && !poolPermSpec(spec.Permissions).Empty() && !r.DryRun {
		permChanged, err := perms.Apply(spec.TargetPath, poolPermSpec(spec.Permissions), false)
		if err != nil {
			return Result{}, fmt.Errorf("failed to converge pool directory permissions: %w", err)
		}
		if permChanged {
			changed = true
		}
	}

	if changed {
		return resultf(true, "pool %s configured", spec.Name), nil
	}
	return resultf(false, "pool %s already in desired state", spec.Name), nil
}

// activate starts a pool, retrying to ride out transient backend
// errors such as a dir pool whose filesystem is still mounting.
func (r *PoolReconciler) activate(pool libvirt.StoragePool) error {
	var err error
	for attempt := 0; attempt < r.ActivationRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(r.RetryDelay)
		}
		if err = r.client.StoragePoolCreate(pool, 0); err == nil {
			return nil
		}
	}
	return err
}
