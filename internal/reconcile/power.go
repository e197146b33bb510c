package reconcile

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"

	virt "github.com/virtadm/virtadm/internal/libvirt"
)

// Power states accepted by EnsurePower.
const (
	PowerRunning = "running"
	PowerOff     = "poweroff"
	PowerReboot  = "reboot"
)

// PowerResult is the outcome of a power state change.
type PowerResult struct {
	Result `yaml:",inline"`

	// State is the domain state after the operation.
	State string `json:"state,omitempty" yaml:"state,omitempty"`
}

// EnsurePower drives a domain to the requested power state. Poweroff
// asks the guest to shut down and waits up to ShutdownTimeout unless
// force is set, in which case the domain is destroyed outright. Reboot
// only acts on a running domain; with force it becomes a hard reset.
func (r *DomainReconciler) EnsurePower(name, target string, force bool) (PowerResult, error) {
	dom, err := r.client.DomainLookupByName(name)
	if err != nil {
		if virt.IsNotFound(err) {
			return PowerResult{}, fmt.Errorf("domain %s does not exist", name)
		}
		return PowerResult{}, fmt.Errorf("failed to look up domain %s: %w", name, err)
	}

	state, _, err := r.client.DomainGetState(dom, 0)
	if err != nil {
		return PowerResult{}, fmt.Errorf("failed to read domain %s state: %w", name, err)
	}

	var res Result
	switch target {
	case PowerOff:
		res, err = r.powerOff(dom, state, force)
	case PowerReboot:
		res, err = r.reboot(dom, state, force)
	case PowerRunning:
		res, err = r.start(dom, state)
	default:
		return PowerResult{}, fmt.Errorf("invalid power state %q", target)
	}
	if err != nil {
		return PowerResult{}, err
	}

	final := powerStateName(state)
	if res.Changed && !r.DryRun {
		if s, _, err := r.client.DomainGetState(dom, 0); err == nil {
			final = powerStateName(s)
		}
	}
	return PowerResult{Result: res, State: final}, nil
}

func (r *DomainReconciler) powerOff(dom libvirt.Domain, state int32, force bool) (Result, error) {
	if state == int32(libvirt.DomainShutoff) {
		return resultf(false, "domain %s is already powered off", dom.Name), nil
	}
	if r.DryRun {
		return resultf(true, "would power off domain %s", dom.Name), nil
	}

	if force {
		if err := r.client.DomainDestroy(dom); err != nil {
			return Result{}, fmt.Errorf("failed to destroy domain %s: %w", dom.Name, err)
		}
		return resultf(true, "domain %s forcefully powered off", dom.Name), nil
	}

	if err := r.client.DomainShutdown(dom); err != nil {
		return Result{}, fmt.Errorf("failed to shut down domain %s: %w", dom.Name, err)
	}
	if !r.waitForShutoff(dom, r.ShutdownTimeout) {
		return resultf(true, "shutdown of domain %s requested but not confirmed within %s", dom.Name, r.ShutdownTimeout), nil
	}
	return resultf(true, "domain %s powered off", dom.Name), nil
}

func (r *DomainReconciler) reboot(dom libvirt.Domain, state int32, force bool) (Result, error) {
	if state != int32(libvirt.DomainRunning) {
		return resultf(false, "domain %s is not running, reboot skipped", dom.Name), nil
	}
	if r.DryRun {
		return resultf(true, "would reboot domain %s", dom.Name), nil
	}

	if force {
		if err := r.client.DomainReset(dom, 0); err != nil {
			return Result{}, fmt.Errorf("failed to reset domain %s: %w", dom.Name, err)
		}
		return resultf(true, "domain %s reset", dom.Name), nil
	}
	if err := r.client.DomainReboot(dom, 0); err != nil {
		return Result{}, fmt.Errorf("failed to reboot domain %s: %w", dom.Name, err)
	}
	return resultf(true, "domain %s rebooted", dom.Name), nil
}

func (r *DomainReconciler) start(dom libvirt.Domain, state int32) (Result, error) {
	if state == int32(libvirt.DomainRunning) {
		return resultf(false, "domain %s is already running", dom.Name), nil
	}
	if r.DryRun {
		return resultf(true, "would start domain %s", dom.Name), nil
	}

	if err := r.client.DomainCreate(dom); err != nil {
		return Result{}, fmt.Errorf("failed to start domain %s: %w", dom.Name, err)
	}
	return resultf(true, "domain %s started", dom.Name), nil
}

func powerStateName(state int32) string {
	switch libvirt.DomainState(state) {
	case libvirt.DomainRunning:
		return "running"
	case libvirt.DomainBlocked:
		return "blocked"
	case libvirt.DomainPaused:
		return "paused"
	case libvirt.DomainShutdown:
		return "shutting down"
	case libvirt.DomainShutoff:
		return "shut off"
	case libvirt.DomainCrashed:
		return "crashed"
	case libvirt.DomainPmsuspended:
		return "suspended"
	default:
		return "unknown"
	}
}
