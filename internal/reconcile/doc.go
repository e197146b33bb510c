// Package reconcile drives libvirt resources toward a declared state.
// Each reconciler compares the current hypervisor state against the
// desired one and applies only the missing changes, so every operation
// is safe to repeat. Reconcilers report whether they changed anything
// and support a dry-run mode that plans without mutating.
package reconcile
