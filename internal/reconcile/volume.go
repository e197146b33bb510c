package reconcile

import (
	"fmt"
	"log"
	"os"

	"github.com/digitalocean/go-libvirt"

	"github.com/virtadm/virtadm/internal/descriptor"
	virt "github.com/virtadm/virtadm/internal/libvirt"
	"github.com/virtadm/virtadm/internal/perms"
)

// VolumeReconciler manages storage volumes within a pool.
type VolumeReconciler struct {
	client VolumeClient

	// DryRun plans changes without applying them.
	DryRun bool
}

// NewVolumeReconciler returns a volume reconciler.
func NewVolumeReconciler(client VolumeClient) *VolumeReconciler {
	return &VolumeReconciler{client: client}
}

// pool looks up a pool and makes sure it is usable: an inactive pool
// is started and the contents rescanned so volume lookups see the
// current state of the backing store.
func (r *VolumeReconciler) pool(name string) (libvirt.StoragePool, error) {
	pool, err := r.client.StoragePoolLookupByName(name)
	if err != nil {
		if virt.IsNotFound(err) {
			return libvirt.StoragePool{}, fmt.Errorf("storage pool %s does not exist", name)
		}
		return libvirt.StoragePool{}, fmt.Errorf("failed to look up pool %s: %w", name, err)
	}

	active, err := r.client.StoragePoolIsActive(pool)
	if err != nil {
		return libvirt.StoragePool{}, fmt.Errorf("failed to check pool %s state: %w", name, err)
	}
	if active == 0 {
		if err := r.client.StoragePoolCreate(pool, 0); err != nil {
			return libvirt.StoragePool{}, fmt.Errorf("failed to activate pool %s: %w", name, err)
		}
	}

	if err := r.client.StoragePoolRefresh(pool, 0); err != nil {
		log.Printf("warning: failed to refresh pool %s: %v", name, err)
	}
	return pool, nil
}

// applyPerms converges permissions on the volume's backing file.
func (r *VolumeReconciler) applyPerms(vol libvirt.StorageVol, p perms.Spec) (bool, error) {
	if p.Empty() {
		return false, nil
	}
	path, err := r.client.StorageVolGetPath(vol)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path of volume %s: %w", vol.Name, err)
	}
	changed, err := perms.Apply(path, p, false)
	if err != nil {
		return false, fmt.Errorf("failed to converge permissions on %s: %w", path, err)
	}
	return changed, nil
}

// EnsurePresent creates a thin provisioned volume if it does not exist
// and converges permissions on the backing file either way.
func (r *VolumeReconciler) EnsurePresent(poolName, name, capacity, format string, p perms.Spec) (Result, error) {
	pool, err := r.pool(poolName)
	if err != nil {
		return Result{}, err
	}

	vol, err := r.client.StorageVolLookupByName(pool, name)
	if err == nil {
		changed, err := r.applyPerms(vol, p)
		if err != nil {
			return Result{}, err
		}
		return resultf(changed, "volume %s already exists", name), nil
	}
	if !virt.IsNotFound(err) {
		return Result{}, fmt.Errorf("failed to look up volume %s: %w", name, err)
	}

	if r.DryRun {
		return resultf(true, "would create volume %s in pool %s", name, poolName), nil
	}

	size, err := ParseSize(capacity)
	if err != nil {
		return Result{}, err
	}
	xml, err := descriptor.BuildVolume(name, size, 0, format)
	if err != nil {
		return Result{}, err
	}
	vol, err = r.client.StorageVolCreateXML(pool, xml, 0)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create volume %s: %w", name, err)
	}
	if _, err := r.applyPerms(vol, p); err != nil {
		return Result{}, err
	}

	return resultf(true, "volume %s created in pool %s", name, poolName), nil
}

// EnsureAbsent deletes a volume if it exists.
func (r *VolumeReconciler) EnsureAbsent(poolName, name string) (Result, error) {
	pool, err := r.pool(poolName)
	if err != nil {
		return Result{}, err
	}

	vol, err := r.client.StorageVolLookupByName(pool, name)
	if err != nil {
		if virt.IsNotFound(err) {
			return resultf(false, "volume %s does not exist", name), nil
		}
		return Result{}, fmt.Errorf("failed to look up volume %s: %w", name, err)
	}

	if r.DryRun {
		return resultf(true, "would remove volume %s from pool %s", name, poolName), nil
	}
	if err := r.client.StorageVolDelete(vol, 0); err != nil {
		return Result{}, fmt.Errorf("failed to delete volume %s: %w", name, err)
	}
	return resultf(true, "volume %s removed from pool %s", name, poolName), nil
}

// Resize grows a volume to the requested capacity. A capacity equal to
// the current one is a no-op; shrinking is refused because it would
// truncate guest data.
func (r *VolumeReconciler) Resize(poolName, name, capacity string, p perms.Spec) (Result, error) {
	pool, err := r.pool(poolName)
	if err != nil {
		return Result{}, err
	}

	vol, err := r.client.StorageVolLookupByName(pool, name)
	if err != nil {
		if virt.IsNotFound(err) {
			return Result{}, fmt.Errorf("volume %s does not exist in pool %s", name, poolName)
		}
		return Result{}, fmt.Errorf("failed to look up volume %s: %w", name, err)
	}

	want, err := ParseSize(capacity)
	if err != nil {
		return Result{}, err
	}
	_, current, _, err := r.client.StorageVolGetInfo(vol)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read volume %s info: %w", name, err)
	}

	if want == current {
		changed, err := r.applyPerms(vol, p)
		if err != nil {
			return Result{}, err
		}
		return resultf(changed, "volume %s is already %d bytes", name, current), nil
	}
	if want < current {
		return Result{}, fmt.Errorf("cannot shrink volume %s from %d to %d bytes", name, current, want)
	}

	if r.DryRun {
		return resultf(true, "would resize volume %s to %d bytes", name, want), nil
	}
	if err := r.client.StorageVolResize(vol, want, 0); err != nil {
		return Result{}, fmt.Errorf("failed to resize volume %s: %w", name, err)
	}
	if _, err := r.applyPerms(vol, p); err != nil {
		return Result{}, err
	}
	return resultf(true, "volume %s resized from %d to %d bytes", name, current, want), nil
}

// Import creates a volume sized to a local image file and streams the
// file contents into it. An existing volume with the same name is left
// untouched.
func (r *VolumeReconciler) Import(poolName, name, sourcePath, format string, p perms.Spec) (Result, error) {
	st, err := os.Stat(sourcePath)
	if err != nil {
		return Result{}, fmt.Errorf("cannot read import source %s: %w", sourcePath, err)
	}
	size := uint64(st.Size())

	pool, err := r.pool(poolName)
	if err != nil {
		return Result{}, err
	}

	if _, err := r.client.StorageVolLookupByName(pool, name); err == nil {
		return resultf(false, "volume %s already exists", name), nil
	} else if !virt.IsNotFound(err) {
		return Result{}, fmt.Errorf("failed to look up volume %s: %w", name, err)
	}

	if r.DryRun {
		return resultf(true, "would import %s as volume %s", sourcePath, name), nil
	}

	xml, err := descriptor.BuildVolume(name, size, size, format)
	if err != nil {
		return Result{}, err
	}
	vol, err := r.client.StorageVolCreateXML(pool, xml, 0)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create volume %s: %w", name, err)
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		r.discard(vol)
		return Result{}, fmt.Errorf("failed to open %s: %w", sourcePath, err)
	}
	defer f.Close()

	if err := r.client.StorageVolUpload(vol, f, 0, size, 0); err != nil {
		r.discard(vol)
		return Result{}, fmt.Errorf("failed to upload %s to volume %s: %w", sourcePath, name, err)
	}

	if _, err := r.applyPerms(vol, p); err != nil {
		return Result{}, err
	}
	return resultf(true, "volume %s imported from %s", name, sourcePath), nil
}

// discard removes a half-created volume after a failed import.
func (r *VolumeReconciler) discard(vol libvirt.StorageVol) {
	if err := r.client.StorageVolDelete(vol, 0); err != nil {
		log.Printf("warning: failed to clean up volume %s: %v", vol.Name, err)
	}
}
