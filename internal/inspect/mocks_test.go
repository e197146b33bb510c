package inspect

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
)

// mockClient is a mock implementation of the inspect client interfaces
// for testing.
type mockClient struct {
	domains  map[string]*mockDomain
	networks map[string]*mockNetwork
	pools    map[string]*mockPool
	volumes  map[string]map[string]*mockVolume // pool name -> volume name -> volume

	poolRefreshes []string
}

type mockDomain struct {
	id         int32
	state      uint8
	maxMem     uint64
	memory     uint64
	vcpus      uint16
	cpuTime    uint64
	active     bool
	persistent bool
	autostart  bool
	xml        string
}

type mockNetwork struct {
	active     bool
	persistent bool
	autostart  bool
	xml        string
}

type mockPool struct {
	state      uint8
	capacity   uint64
	allocation uint64
	available  uint64
	active     bool
	persistent bool
	autostart  bool
	xml        string
}

type mockVolume struct {
	path       string
	capacity   uint64
	allocation uint64
	xml        string
}

func newMockClient() *mockClient {
	return &mockClient{
		domains:  make(map[string]*mockDomain),
		networks: make(map[string]*mockNetwork),
		pools:    make(map[string]*mockPool),
		volumes:  make(map[string]map[string]*mockVolume),
	}
}

func notFoundError(code libvirt.ErrorNumber, what string) error {
	return libvirt.Error{Code: uint32(code), Message: fmt.Sprintf("%s not found", what)}
}

func boolToInt32(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

// DomainClient

func (m *mockClient) DomainLookupByName(name string) (libvirt.Domain, error) {
	dom, ok := m.domains[name]
	if !ok {
		return libvirt.Domain{}, notFoundError(libvirt.ErrNoDomain, "domain")
	}
	return libvirt.Domain{Name: name, ID: dom.id}, nil
}

func (m *mockClient) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	d, ok := m.domains[dom.Name]
	if !ok {
		return "", notFoundError(libvirt.ErrNoDomain, "domain")
	}
	return d.xml, nil
}

func (m *mockClient) DomainGetInfo(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error) {
	d, ok := m.domains[dom.Name]
	if !ok {
		return 0, 0, 0, 0, 0, notFoundError(libvirt.ErrNoDomain, "domain")
	}
	return d.state, d.maxMem, d.memory, d.vcpus, d.cpuTime, nil
}

func (m *mockClient) DomainIsActive(dom libvirt.Domain) (int32, error) {
	d, ok := m.domains[dom.Name]
	if !ok {
		return 0, notFoundError(libvirt.ErrNoDomain, "domain")
	}
	return boolToInt32(d.active), nil
}

func (m *mockClient) DomainIsPersistent(dom libvirt.Domain) (int32, error) {
	d, ok := m.domains[dom.Name]
	if !ok {
		return 0, notFoundError(libvirt.ErrNoDomain, "domain")
	}
	return boolToInt32(d.persistent), nil
}

func (m *mockClient) DomainGetAutostart(dom libvirt.Domain) (int32, error) {
	d, ok := m.domains[dom.Name]
	if !ok {
		return 0, notFoundError(libvirt.ErrNoDomain, "domain")
	}
	return boolToInt32(d.autostart), nil
}

func (m *mockClient) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	var out []libvirt.Domain
	for name, dom := range m.domains {
		out = append(out, libvirt.Domain{Name: name, ID: dom.id})
	}
	return out, uint32(len(out)), nil
}

// NetworkClient

func (m *mockClient) NetworkLookupByName(name string) (libvirt.Network, error) {
	if _, ok := m.networks[name]; !ok {
		return libvirt.Network{}, notFoundError(libvirt.ErrNoNetwork, "network")
	}
	return libvirt.Network{Name: name}, nil
}

func (m *mockClient) NetworkGetXMLDesc(net libvirt.Network, flags uint32) (string, error) {
	n, ok := m.networks[net.Name]
	if !ok {
		return "", notFoundError(libvirt.ErrNoNetwork, "network")
	}
	return n.xml, nil
}

func (m *mockClient) NetworkIsActive(net libvirt.Network) (int32, error) {
	n, ok := m.networks[net.Name]
	if !ok {
		return 0, notFoundError(libvirt.ErrNoNetwork, "network")
	}
	return boolToInt32(n.active), nil
}

func (m *mockClient) NetworkIsPersistent(net libvirt.Network) (int32, error) {
	n, ok := m.networks[net.Name]
	if !ok {
		return 0, notFoundError(libvirt.ErrNoNetwork, "network")
	}
	return boolToInt32(n.persistent), nil
}

func (m *mockClient) NetworkGetAutostart(net libvirt.Network) (int32, error) {
	n, ok := m.networks[net.Name]
	if !ok {
		return 0, notFoundError(libvirt.ErrNoNetwork, "network")
	}
	return boolToInt32(n.autostart), nil
}

func (m *mockClient) ConnectListAllNetworks(needResults int32, flags libvirt.ConnectListAllNetworksFlags) ([]libvirt.Network, uint32, error) {
	var out []libvirt.Network
	for name := range m.networks {
		out = append(out, libvirt.Network{Name: name})
	}
	return out, uint32(len(out)), nil
}

// PoolClient / VolumeClient

func (m *mockClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	if _, ok := m.pools[name]; !ok {
		return libvirt.StoragePool{}, notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	return libvirt.StoragePool{Name: name}, nil
}

func (m *mockClient) StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	p, ok := m.pools[pool.Name]
	if !ok {
		return "", notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	return p.xml, nil
}

func (m *mockClient) StoragePoolGetInfo(pool libvirt.StoragePool) (uint8, uint64, uint64, uint64, error) {
	p, ok := m.pools[pool.Name]
	if !ok {
		return 0, 0, 0, 0, notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	return p.state, p.capacity, p.allocation, p.available, nil
}

func (m *mockClient) StoragePoolIsActive(pool libvirt.StoragePool) (int32, error) {
	p, ok := m.pools[pool.Name]
	if !ok {
		return 0, notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	return boolToInt32(p.active), nil
}

func (m *mockClient) StoragePoolIsPersistent(pool libvirt.StoragePool) (int32, error) {
	p, ok := m.pools[pool.Name]
	if !ok {
		return 0, notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	return boolToInt32(p.persistent), nil
}

func (m *mockClient) StoragePoolGetAutostart(pool libvirt.StoragePool) (int32, error) {
	p, ok := m.pools[pool.Name]
	if !ok {
		return 0, notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	return boolToInt32(p.autostart), nil
}

func (m *mockClient) ConnectListAllStoragePools(needResults int32, flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error) {
	var out []libvirt.StoragePool
	for name := range m.pools {
		out = append(out, libvirt.StoragePool{Name: name})
	}
	return out, uint32(len(out)), nil
}

func (m *mockClient) StoragePoolRefresh(pool libvirt.StoragePool, flags uint32) error {
	if _, ok := m.pools[pool.Name]; !ok {
		return notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	m.poolRefreshes = append(m.poolRefreshes, pool.Name)
	return nil
}

func (m *mockClient) StoragePoolListAllVolumes(pool libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error) {
	vols, ok := m.volumes[pool.Name]
	if !ok {
		return nil, 0, nil
	}
	var out []libvirt.StorageVol
	for name := range vols {
		out = append(out, libvirt.StorageVol{Pool: pool.Name, Name: name})
	}
	return out, uint32(len(out)), nil
}

func (m *mockClient) StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	vols, ok := m.volumes[pool.Name]
	if !ok {
		return libvirt.StorageVol{}, notFoundError(libvirt.ErrNoStorageVol, "storage volume")
	}
	if _, ok := vols[name]; !ok {
		return libvirt.StorageVol{}, notFoundError(libvirt.ErrNoStorageVol, "storage volume")
	}
	return libvirt.StorageVol{Pool: pool.Name, Name: name}, nil
}

func (m *mockClient) volume(vol libvirt.StorageVol) (*mockVolume, error) {
	vols, ok := m.volumes[vol.Pool]
	if !ok {
		return nil, notFoundError(libvirt.ErrNoStorageVol, "storage volume")
	}
	v, ok := vols[vol.Name]
	if !ok {
		return nil, notFoundError(libvirt.ErrNoStorageVol, "storage volume")
	}
	return v, nil
}

func (m *mockClient) StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error) {
	v, err := m.volume(vol)
	if err != nil {
		return "", err
	}
	return v.xml, nil
}

func (m *mockClient) StorageVolGetPath(vol libvirt.StorageVol) (string, error) {
	v, err := m.volume(vol)
	if err != nil {
		return "", err
	}
	return v.path, nil
}

func (m *mockClient) StorageVolGetInfo(vol libvirt.StorageVol) (int8, uint64, uint64, error) {
	v, err := m.volume(vol)
	if err != nil {
		return 0, 0, 0, err
	}
	return 0, v.capacity, v.allocation, nil
}
