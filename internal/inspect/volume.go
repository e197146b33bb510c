package inspect

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"

	"github.com/virtadm/virtadm/internal/descriptor"
	virt "github.com/virtadm/virtadm/internal/libvirt"
)

// VolumeInfo is the inspection record for a storage volume.
type VolumeInfo struct {
	Name       string `json:"name" yaml:"name"`
	Pool       string `json:"pool" yaml:"pool"`
	Path       string `json:"path" yaml:"path"`
	Capacity   uint64 `json:"capacity" yaml:"capacity"`
	Allocation uint64 `json:"allocation" yaml:"allocation"`
	Format     string `json:"format" yaml:"format"`
}

// VolumeInspector answers read-only queries about storage volumes.
// Volumes are keyed by pool name and volume name.
type VolumeInspector struct {
	client VolumeClient
}

// NewVolumeInspector creates a volume inspector.
func NewVolumeInspector(client VolumeClient) *VolumeInspector {
	return &VolumeInspector{client: client}
}

// pool looks up a pool and refreshes it so volume data is current.
// Refresh failures are tolerated; the lookup still proceeds on the
// last known pool contents.
func (i *VolumeInspector) pool(poolName string) (libvirt.StoragePool, bool, error) {
	pool, err := i.client.StoragePoolLookupByName(poolName)
	if err != nil {
		if virt.IsNotFound(err) {
			return libvirt.StoragePool{}, false, nil
		}
		return libvirt.StoragePool{}, false, fmt.Errorf("failed to look up pool %s: %w", poolName, err)
	}
	_ = i.client.StoragePoolRefresh(pool, 0)
	return pool, true, nil
}

// Info returns the record for a volume. The second return is false
// when the pool or the volume does not exist.
func (i *VolumeInspector) Info(poolName, volumeName string) (VolumeInfo, bool, error) {
	pool, found, err := i.pool(poolName)
	if err != nil || !found {
		return VolumeInfo{}, false, err
	}

	vol, err := i.client.StorageVolLookupByName(pool, volumeName)
	if err != nil {
		if virt.IsNotFound(err) {
			return VolumeInfo{}, false, nil
		}
		return VolumeInfo{}, false, fmt.Errorf("failed to look up volume %s/%s: %w", poolName, volumeName, err)
	}

	_, capacity, allocation, err := i.client.StorageVolGetInfo(vol)
	if err != nil {
		return VolumeInfo{}, false, fmt.Errorf("failed to get info for volume %s/%s: %w", poolName, volumeName, err)
	}

	info := VolumeInfo{
		Name:       volumeName,
		Pool:       poolName,
		Capacity:   capacity,
		Allocation: allocation,
		Format:     "raw",
	}

	if path, err := i.client.StorageVolGetPath(vol); err == nil {
		info.Path = path
	}
	if xml, err := i.client.StorageVolGetXMLDesc(vol, 0); err == nil {
		info.Format = descriptor.ParseVolumeFormat(xml)
	}

	return info, true, nil
}

// Exists reports whether a volume exists in a pool.
func (i *VolumeInspector) Exists(poolName, volumeName string) (bool, error) {
	_, found, err := i.Info(poolName, volumeName)
	return found, err
}

// ByPattern returns records for all volumes in a pool whose names match
// a shell glob pattern. A missing pool yields an empty slice.
func (i *VolumeInspector) ByPattern(poolName, pattern string) ([]VolumeInfo, error) {
	pool, found, err := i.pool(poolName)
	if err != nil {
		return nil, err
	}
	if !found {
		return []VolumeInfo{}, nil
	}

	vols, _, err := i.client.StoragePoolListAllVolumes(pool, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes in pool %s: %w", poolName, err)
	}

	names := make([]string, 0, len(vols))
	for _, vol := range vols {
		names = append(names, vol.Name)
	}
	matched, err := matchNames(names, pattern)
	if err != nil {
		return nil, err
	}

	infos := make([]VolumeInfo, 0, len(matched))
	for _, name := range matched {
		info, found, err := i.Info(poolName, name)
		if err != nil {
			return nil, err
		}
		if found {
			infos = append(infos, info)
		}
	}
	return infos, nil
}
