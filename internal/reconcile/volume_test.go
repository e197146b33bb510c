package reconcile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/virtadm/virtadm/internal/perms"
)

func poolWithVolumes(client *mockClient, pool string, active bool) {
	client.pools[pool] = &mockPool{active: active, persistent: true, xml: "<pool type='dir'><name>" + pool + "</name></pool>"}
	client.volumes[pool] = make(map[string]*mockVolume)
}

func TestVolumeEnsurePresent(t *testing.T) {
	client := newMockClient()
	poolWithVolumes(client, "images", true)
	r := NewVolumeReconciler(client)

	res, err := r.EnsurePresent("images", "data.qcow2", "5G", "qcow2", perms.Spec{})
	if err != nil {
		t.Fatalf("EnsurePresent() error: %v", err)
	}
	if !res.Changed {
		t.Error("expected changed = true")
	}
	if len(client.createdVolXML) != 1 {
		t.Fatalf("created %d volumes, want 1", len(client.createdVolXML))
	}
	if !strings.Contains(client.createdVolXML[0], "5368709120") {
		t.Errorf("capacity not parsed into bytes:\n%s", client.createdVolXML[0])
	}
	// lookups go through a refreshed pool
	if len(client.poolRefreshes) == 0 {
		t.Error("pool was not refreshed before the lookup")
	}

	res, err = r.EnsurePresent("images", "data.qcow2", "5G", "qcow2", perms.Spec{})
	if err != nil {
		t.Fatalf("EnsurePresent() error: %v", err)
	}
	if res.Changed {
		t.Error("expected changed = false for existing volume")
	}
}

func TestVolumeEnsurePresent_ActivatesPool(t *testing.T) {
	client := newMockClient()
	poolWithVolumes(client, "images", false)
	r := NewVolumeReconciler(client)

	if _, err := r.EnsurePresent("images", "data.qcow2", "1G", "qcow2", perms.Spec{}); err != nil {
		t.Fatalf("EnsurePresent() error: %v", err)
	}
	if len(client.poolCreates) != 1 {
		t.Error("inactive pool was not activated")
	}
}

func TestVolumeEnsurePresent_MissingPool(t *testing.T) {
	r := NewVolumeReconciler(newMockClient())
	if _, err := r.EnsurePresent("nopool", "v", "1G", "raw", perms.Spec{}); err == nil {
		t.Error("expected error for missing pool")
	}
}

func TestVolumeEnsureAbsent(t *testing.T) {
	client := newMockClient()
	poolWithVolumes(client, "images", true)
	client.volumes["images"]["data.qcow2"] = &mockVolume{path: "/var/lib/libvirt/images/data.qcow2"}
	r := NewVolumeReconciler(client)

	res, err := r.EnsureAbsent("images", "data.qcow2")
	if err != nil {
		t.Fatalf("EnsureAbsent() error: %v", err)
	}
	if !res.Changed || len(client.deletedVols) != 1 {
		t.Errorf("changed = %v, deletes = %d", res.Changed, len(client.deletedVols))
	}

	res, err = r.EnsureAbsent("images", "data.qcow2")
	if err != nil {
		t.Fatalf("EnsureAbsent() error: %v", err)
	}
	if res.Changed {
		t.Error("expected changed = false for missing volume")
	}
}

func TestVolumeResize(t *testing.T) {
	client := newMockClient()
	poolWithVolumes(client, "images", true)
	client.volumes["images"]["data.qcow2"] = &mockVolume{capacity: 1 << 30}
	r := NewVolumeReconciler(client)

	res, err := r.Resize("images", "data.qcow2", "2G", perms.Spec{})
	if err != nil {
		t.Fatalf("Resize() error: %v", err)
	}
	if !res.Changed {
		t.Error("expected changed = true")
	}
	if got := client.volumes["images"]["data.qcow2"].capacity; got != 2<<30 {
		t.Errorf("capacity = %d, want %d", got, 2<<30)
	}

	// equal capacity is a no-op
	res, err = r.Resize("images", "data.qcow2", "2G", perms.Spec{})
	if err != nil {
		t.Fatalf("Resize() error: %v", err)
	}
	if res.Changed {
		t.Error("expected changed = false for equal capacity")
	}

	// shrinking is refused
	if _, err := r.Resize("images", "data.qcow2", "1G", perms.Spec{}); err == nil {
		t.Error("expected error for shrink")
	}

	if _, err := r.Resize("images", "missing", "1G", perms.Spec{}); err == nil {
		t.Error("expected error for missing volume")
	}
}

func TestVolumeImport(t *testing.T) {
	src := filepath.Join(t.TempDir(), "image.raw")
	payload := make([]byte, 4096)
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	client := newMockClient()
	poolWithVolumes(client, "images", true)
	r := NewVolumeReconciler(client)

	res, err := r.Import("images", "image.raw", src, "raw", perms.Spec{})
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if !res.Changed {
		t.Error("expected changed = true")
	}
	if client.uploadedBytes != int64(len(payload)) {
		t.Errorf("uploaded %d bytes, want %d", client.uploadedBytes, len(payload))
	}
	// the volume is sized to the file
	if !strings.Contains(client.createdVolXML[0], "4096") {
		t.Errorf("volume not sized to source file:\n%s", client.createdVolXML[0])
	}

	res, err = r.Import("images", "image.raw", src, "raw", perms.Spec{})
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if res.Changed {
		t.Error("expected changed = false for existing volume")
	}
}

func TestVolumeImport_MissingSource(t *testing.T) {
	client := newMockClient()
	poolWithVolumes(client, "images", true)
	r := NewVolumeReconciler(client)

	if _, err := r.Import("images", "v", "/no/such/file", "raw", perms.Spec{}); err == nil {
		t.Error("expected error for missing source file")
	}
}

func TestVolumeDryRun(t *testing.T) {
	client := newMockClient()
	poolWithVolumes(client, "images", true)
	r := NewVolumeReconciler(client)
	r.DryRun = true

	res, err := r.EnsurePresent("images", "data.qcow2", "1G", "qcow2", perms.Spec{})
	if err != nil {
		t.Fatalf("EnsurePresent() error: %v", err)
	}
	if !res.Changed || len(client.createdVolXML) != 0 {
		t.Errorf("changed = %v, creates = %d", res.Changed, len(client.createdVolXML))
	}
}
