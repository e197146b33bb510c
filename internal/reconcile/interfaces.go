package reconcile

import (
	"io"

	"github.com/digitalocean/go-libvirt"
)

// DomainClient is the subset of libvirt operations the domain
// reconciler needs. *libvirt.Libvirt satisfies it.
type DomainClient interface {
	DomainLookupByName(name string) (libvirt.Domain, error)
	DomainDefineXML(xml string) (libvirt.Domain, error)
	DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error)
	DomainCreate(dom libvirt.Domain) error
	DomainShutdown(dom libvirt.Domain) error
	DomainDestroy(dom libvirt.Domain) error
	DomainReboot(dom libvirt.Domain, flags libvirt.DomainRebootFlagValues) error
	DomainReset(dom libvirt.Domain, flags uint32) error
	DomainIsActive(dom libvirt.Domain) (int32, error)
	DomainHasManagedSaveImage(dom libvirt.Domain, flags uint32) (int32, error)
	DomainManagedSaveRemove(dom libvirt.Domain, flags uint32) error
	DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error
	DomainUndefine(dom libvirt.Domain) error
}

// NetworkClient is the subset of libvirt operations the network and
// DHCP reconcilers need.
type NetworkClient interface {
	NetworkLookupByName(name string) (libvirt.Network, error)
	NetworkDefineXML(xml string) (libvirt.Network, error)
	NetworkGetXMLDesc(net libvirt.Network, flags uint32) (string, error)
	NetworkCreate(net libvirt.Network) error
	NetworkDestroy(net libvirt.Network) error
	NetworkUndefine(net libvirt.Network) error
	NetworkIsActive(net libvirt.Network) (int32, error)
	NetworkIsPersistent(net libvirt.Network) (int32, error)
	NetworkGetAutostart(net libvirt.Network) (int32, error)
	NetworkSetAutostart(net libvirt.Network, autostart int32) error
	NetworkUpdate(net libvirt.Network, command, section uint32, parentIndex int32, xml string, flags libvirt.NetworkUpdateFlags) error
}

// PoolClient is the subset of libvirt operations the pool reconciler
// needs.
type PoolClient interface {
	StoragePoolLookupByName(name string) (libvirt.StoragePool, error)
	StoragePoolDefineXML(xml string, flags uint32) (libvirt.StoragePool, error)
	StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error)
	StoragePoolCreate(pool libvirt.StoragePool, flags libvirt.StoragePoolCreateFlags) error
	StoragePoolDestroy(pool libvirt.StoragePool) error
	StoragePoolUndefine(pool libvirt.StoragePool) error
	StoragePoolIsActive(pool libvirt.StoragePool) (int32, error)
	StoragePoolIsPersistent(pool libvirt.StoragePool) (int32, error)
	StoragePoolGetAutostart(pool libvirt.StoragePool) (int32, error)
	StoragePoolSetAutostart(pool libvirt.StoragePool, autostart int32) error
}

// VolumeClient is the subset of libvirt operations the volume
// reconciler needs.
type VolumeClient interface {
	StoragePoolLookupByName(name string) (libvirt.StoragePool, error)
	StoragePoolIsActive(pool libvirt.StoragePool) (int32, error)
	StoragePoolCreate(pool libvirt.StoragePool, flags libvirt.StoragePoolCreateFlags) error
	StoragePoolRefresh(pool libvirt.StoragePool, flags uint32) error
	StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error)
	StorageVolCreateXML(pool libvirt.StoragePool, xml string, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error)
	StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error
	StorageVolResize(vol libvirt.StorageVol, capacity uint64, flags libvirt.StorageVolResizeFlags) error
	StorageVolGetInfo(vol libvirt.StorageVol) (int8, uint64, uint64, error)
	StorageVolGetPath(vol libvirt.StorageVol) (string, error)
	StorageVolUpload(vol libvirt.StorageVol, r io.Reader, offset, length uint64, flags libvirt.StorageVolUploadFlags) error
}

// CloneClient is the subset of libvirt operations domain cloning needs.
type CloneClient interface {
	DomainLookupByName(name string) (libvirt.Domain, error)
	DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	DomainDefineXML(xml string) (libvirt.Domain, error)
	DomainCreate(dom libvirt.Domain) error
	StoragePoolLookupByName(name string) (libvirt.StoragePool, error)
	StoragePoolLookupByVolume(vol libvirt.StorageVol) (libvirt.StoragePool, error)
	StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error)
	StoragePoolIsActive(pool libvirt.StoragePool) (int32, error)
	StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error)
	StorageVolLookupByPath(path string) (libvirt.StorageVol, error)
	StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error)
	StorageVolGetPath(vol libvirt.StorageVol) (string, error)
	StorageVolCreateXML(pool libvirt.StoragePool, xml string, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error)
	StorageVolCreateXMLFrom(pool libvirt.StoragePool, xml string, cloneVol libvirt.StorageVol, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error)
	StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error
}

// AttachClient is the subset of libvirt operations device attachment
// needs.
type AttachClient interface {
	DomainLookupByName(name string) (libvirt.Domain, error)
	DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	DomainIsActive(dom libvirt.Domain) (int32, error)
	DomainAttachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error
	NetworkLookupByName(name string) (libvirt.Network, error)
	StoragePoolLookupByName(name string) (libvirt.StoragePool, error)
	StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error)
	StoragePoolRefresh(pool libvirt.StoragePool, flags uint32) error
	StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error)
	StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error)
	StorageVolGetPath(vol libvirt.StorageVol) (string, error)
}

// RefreshClient is the subset of libvirt operations pool refresh and
// network recycling need.
type RefreshClient interface {
	ConnectListAllStoragePools(needResults int32, flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error)
	StoragePoolLookupByName(name string) (libvirt.StoragePool, error)
	StoragePoolIsActive(pool libvirt.StoragePool) (int32, error)
	StoragePoolRefresh(pool libvirt.StoragePool, flags uint32) error
	ConnectListAllNetworks(needResults int32, flags libvirt.ConnectListAllNetworksFlags) ([]libvirt.Network, uint32, error)
	NetworkLookupByName(name string) (libvirt.Network, error)
	NetworkIsActive(net libvirt.Network) (int32, error)
	NetworkDestroy(net libvirt.Network) error
	NetworkCreate(net libvirt.Network) error
}
