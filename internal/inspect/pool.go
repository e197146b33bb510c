package inspect

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"

	"github.com/virtadm/virtadm/internal/descriptor"
	virt "github.com/virtadm/virtadm/internal/libvirt"
)

// PoolInfo is the inspection record for a storage pool.
type PoolInfo struct {
	Name       string                `json:"name" yaml:"name"`
	UUID       string                `json:"uuid" yaml:"uuid"`
	State      string                `json:"state" yaml:"state"`
	Capacity   uint64                `json:"capacity" yaml:"capacity"`
	Allocation uint64                `json:"allocation" yaml:"allocation"`
	Available  uint64                `json:"available" yaml:"available"`
	Active     bool                  `json:"active" yaml:"active"`
	Persistent bool                  `json:"persistent" yaml:"persistent"`
	Autostart  bool                  `json:"autostart" yaml:"autostart"`
	Config     descriptor.PoolConfig `json:"config" yaml:"config"`
}

// PoolInspector answers read-only queries about storage pools.
type PoolInspector struct {
	client PoolClient
}

// NewPoolInspector creates a pool inspector.
func NewPoolInspector(client PoolClient) *PoolInspector {
	return &PoolInspector{client: client}
}

// Info returns the record for a pool. The second return is false when
// the pool does not exist.
func (i *PoolInspector) Info(name string) (PoolInfo, bool, error) {
	pool, err := i.client.StoragePoolLookupByName(name)
	if err != nil {
		if virt.IsNotFound(err) {
			return PoolInfo{}, false, nil
		}
		return PoolInfo{}, false, fmt.Errorf("failed to look up pool %s: %w", name, err)
	}

	state, capacity, allocation, available, err := i.client.StoragePoolGetInfo(pool)
	if err != nil {
		return PoolInfo{}, false, fmt.Errorf("failed to get info for pool %s: %w", name, err)
	}

	info := PoolInfo{
		Name:       name,
		UUID:       uuid.UUID(pool.UUID).String(),
		State:      PoolStateName(state),
		Capacity:   capacity,
		Allocation: allocation,
		Available:  available,
	}

	if active, err := i.client.StoragePoolIsActive(pool); err == nil {
		info.Active = active == 1
	}
	if persistent, err := i.client.StoragePoolIsPersistent(pool); err == nil {
		info.Persistent = persistent == 1
	}
	if autostart, err := i.client.StoragePoolGetAutostart(pool); err == nil {
		info.Autostart = autostart == 1
	}

	if xml, err := i.client.StoragePoolGetXMLDesc(pool, 0); err == nil {
		info.Config = descriptor.ParsePool(xml)
	}

	return info, true, nil
}

// Exists reports whether a pool exists.
func (i *PoolInspector) Exists(name string) (bool, error) {
	_, found, err := i.Info(name)
	return found, err
}

// ByPattern returns records for all pools whose names match a shell
// glob pattern.
func (i *PoolInspector) ByPattern(pattern string) ([]PoolInfo, error) {
	pools, _, err := i.client.ConnectListAllStoragePools(1,
		libvirt.ConnectListStoragePoolsActive|libvirt.ConnectListStoragePoolsInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	names := make([]string, 0, len(pools))
	for _, pool := range pools {
		names = append(names, pool.Name)
	}
	matched, err := matchNames(names, pattern)
	if err != nil {
		return nil, err
	}

	infos := make([]PoolInfo, 0, len(matched))
	for _, name := range matched {
		info, found, err := i.Info(name)
		if err != nil {
			return nil, err
		}
		if found {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// PoolStateName maps a libvirt pool state code to its name.
func PoolStateName(state uint8) string {
	switch libvirt.StoragePoolState(state) {
	case libvirt.StoragePoolRunning:
		return "running"
	case libvirt.StoragePoolBuilding:
		return "building"
	case libvirt.StoragePoolDegraded:
		return "degraded"
	case libvirt.StoragePoolInaccessible:
		return "inaccessible"
	default:
		return "inactive"
	}
}
