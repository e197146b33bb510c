package inspect

import (
	"github.com/digitalocean/go-libvirt"
)

// DomainClient defines the libvirt operations needed for domain lookups.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type DomainClient interface {
	DomainLookupByName(name string) (libvirt.Domain, error)
	DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	DomainGetInfo(dom libvirt.Domain) (state uint8, maxMem uint64, memory uint64, nrVirtCPU uint16, cpuTime uint64, err error)
	DomainIsActive(dom libvirt.Domain) (int32, error)
	DomainIsPersistent(dom libvirt.Domain) (int32, error)
	DomainGetAutostart(dom libvirt.Domain) (int32, error)
	ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
}

// NetworkClient defines the libvirt operations needed for network lookups.
type NetworkClient interface {
	NetworkLookupByName(name string) (libvirt.Network, error)
	NetworkGetXMLDesc(net libvirt.Network, flags uint32) (string, error)
	NetworkIsActive(net libvirt.Network) (int32, error)
	NetworkIsPersistent(net libvirt.Network) (int32, error)
	NetworkGetAutostart(net libvirt.Network) (int32, error)
	ConnectListAllNetworks(needResults int32, flags libvirt.ConnectListAllNetworksFlags) ([]libvirt.Network, uint32, error)
}

// PoolClient defines the libvirt operations needed for pool lookups.
type PoolClient interface {
	StoragePoolLookupByName(name string) (libvirt.StoragePool, error)
	StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error)
	StoragePoolGetInfo(pool libvirt.StoragePool) (state uint8, capacity uint64, allocation uint64, available uint64, err error)
	StoragePoolIsActive(pool libvirt.StoragePool) (int32, error)
	StoragePoolIsPersistent(pool libvirt.StoragePool) (int32, error)
	StoragePoolGetAutostart(pool libvirt.StoragePool) (int32, error)
	ConnectListAllStoragePools(needResults int32, flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error)
}

// VolumeClient defines the libvirt operations needed for volume lookups.
type VolumeClient interface {
	StoragePoolLookupByName(name string) (libvirt.StoragePool, error)
	StoragePoolRefresh(pool libvirt.StoragePool, flags uint32) error
	StoragePoolListAllVolumes(pool libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error)
	StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error)
	StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error)
	StorageVolGetPath(vol libvirt.StorageVol) (string, error)
	StorageVolGetInfo(vol libvirt.StorageVol) (typ int8, capacity uint64, allocation uint64, err error)
}
