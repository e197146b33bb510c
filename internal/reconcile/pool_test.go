package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/virtadm/virtadm/internal/descriptor"
)

func dirPoolSpec(t *testing.T) descriptor.PoolSpec {
	t.Helper()
	return descriptor.PoolSpec{
		Name:       "images",
		Type:       "dir",
		TargetPath: filepath.Join(t.TempDir(), "images"),
	}
}

func testPoolReconciler(client *mockClient) *PoolReconciler {
	r := NewPoolReconciler(client)
	r.RetryDelay = 0
	return r
}

func TestPoolEnsure_CreateDirPool(t *testing.T) {
	client := newMockClient()
	r := testPoolReconciler(client)
	spec := dirPoolSpec(t)
	spec.Permissions = descriptor.PoolPermissions{Mode: "0770"}

	res, err := r.Ensure(spec, StatePresent, nil)
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if !res.Changed {
		t.Error("expected changed = true")
	}
	if len(client.definedPools) != 1 {
		t.Fatalf("defined %d pools, want 1", len(client.definedPools))
	}
	if len(client.poolCreates) != 1 {
		t.Errorf("activated %d pools, want 1", len(client.poolCreates))
	}

	// the target directory is created before the pool is defined
	st, err := os.Stat(spec.TargetPath)
	if err != nil {
		t.Fatalf("target directory missing: %v", err)
	}
	if st.Mode().Perm() != 0o770 {
		t.Errorf("target mode = %o, want 0770", st.Mode().Perm())
	}
}

func TestPoolEnsure_ActivationRetry(t *testing.T) {
	client := newMockClient()
	client.pools["images"] = &mockPool{persistent: true, xml: "<pool type='dir'><name>images</name></pool>"}
	client.poolCreateFailures = 2
	r := testPoolReconciler(client)

	res, err := r.Ensure(descriptor.PoolSpec{Name: "images", Type: "dir", TargetPath: "/unused"}, StateActive, nil)
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if !res.Changed {
		t.Error("expected changed = true")
	}
	if len(client.poolCreates) != 1 {
		t.Errorf("successful activations = %d, want 1", len(client.poolCreates))
	}
}

func TestPoolEnsure_ActivationExhaustsRetries(t *testing.T) {
	client := newMockClient()
	client.pools["images"] = &mockPool{persistent: true, xml: "<pool type='dir'><name>images</name></pool>"}
	client.poolCreateFailures = 5
	r := testPoolReconciler(client)

	if _, err := r.Ensure(descriptor.PoolSpec{Name: "images", Type: "dir", TargetPath: "/unused"}, StateActive, nil); err == nil {
		t.Error("expected error when activation keeps failing")
	}
}

func TestPoolEnsure_Absent(t *testing.T) {
	client := newMockClient()
	client.pools["images"] = &mockPool{active: true, persistent: true, xml: "<pool type='dir'><name>images</name></pool>"}
	r := testPoolReconciler(client)

	res, err := r.Ensure(descriptor.PoolSpec{Name: "images"}, StateAbsent, nil)
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if !res.Changed {
		t.Error("expected changed = true")
	}
	if len(client.poolDestroys) != 1 {
		t.Error("active pool was not destroyed before undefine")
	}
	if _, ok := client.pools["images"]; ok {
		t.Error("pool still defined")
	}

	res, err = r.Ensure(descriptor.PoolSpec{Name: "images"}, StateAbsent, nil)
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if res.Changed {
		t.Error("expected changed = false for missing pool")
	}
}

func TestPoolEnsure_Autostart(t *testing.T) {
	client := newMockClient()
	client.pools["images"] = &mockPool{active: true, persistent: true, xml: "<pool type='dir'><name>images</name></pool>"}
	r := testPoolReconciler(client)
	spec := descriptor.PoolSpec{Name: "images", Type: "dir", TargetPath: "/unused"}

	res, err := r.Ensure(spec, StateActive, boolPtr(true))
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if !res.Changed || client.poolAutostarts["images"] != 1 {
		t.Errorf("changed = %v, autostart = %d", res.Changed, client.poolAutostarts["images"])
	}
}

func TestPoolEnsure_PermissionDrift(t *testing.T) {
	client := newMockClient()
	client.pools["images"] = &mockPool{active: true, persistent: true, xml: "<pool type='dir'><name>images</name></pool>"}
	r := testPoolReconciler(client)

	spec := dirPoolSpec(t)
	spec.Name = "images"
	spec.Permissions = descriptor.PoolPermissions{Mode: "0750"}
	if err := os.MkdirAll(spec.TargetPath, 0o777); err != nil {
		t.Fatal(err)
	}

	res, err := r.Ensure(spec, StateActive, nil)
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if !res.Changed {
		t.Error("permission drift must report a change")
	}
	st, _ := os.Stat(spec.TargetPath)
	if st.Mode().Perm() != 0o750 {
		t.Errorf("target mode = %o, want 0750", st.Mode().Perm())
	}

	// converged directory reports no change
	res, err = r.Ensure(spec, StateActive, nil)
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if res.Changed {
		t.Error("expected changed = false once converged")
	}
}

func TestPoolEnsure_DryRun(t *testing.T) {
	client := newMockClient()
	r := testPoolReconciler(client)
	r.DryRun = true
	spec := dirPoolSpec(t)

	res, err := r.Ensure(spec, StatePresent, nil)
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if !res.Changed {
		t.Error("expected changed = true")
	}
	if len(client.definedPools) != 0 {
		t.Error("dry run defined a pool")
	}
	if _, err := os.Stat(spec.TargetPath); err == nil {
		t.Error("dry run created the target directory")
	}
}
