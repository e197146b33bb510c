package reconcile

import (
	"fmt"
	"io"

	"github.com/digitalocean/go-libvirt"
	"libvirt.org/go/libvirtxml"
)

// mockClient is a mock implementation of the reconcile client
// interfaces for testing.
type mockClient struct {
	domains  map[string]*mockDomain
	networks map[string]*mockNetwork
	pools    map[string]*mockPool
	volumes  map[string]map[string]*mockVolume // pool -> name -> volume

	// recorded mutations
	definedDomains   []string
	destroyedDomains []string
	rebootedDomains  []string
	resetDomains     []string
	undefinedFlags   []libvirt.DomainUndefineFlagsValues
	undefined        []string
	attachedXML      []string
	attachedFlags    []uint32

	definedNetworks   []string
	createdNetworks   []string
	destroyedNetworks []string
	networkUpdates    []networkUpdate

	definedPools   []string
	poolCreates    []string
	poolDestroys   []string
	poolRefreshes  []string
	poolAutostarts map[string]int32
	netAutostarts  map[string]int32

	createdVolXML []string
	clonedFromVol []string
	deletedVols   []string
	uploadedBytes int64

	// failure injection
	poolCreateFailures int
	failUndefineFlags  bool
	failDomainCreate   bool
	failVolCreateAfter int // fail volume creation once this many volumes exist, -1 disables
	failDomainShutdown bool
}

type mockDomain struct {
	state       int32
	persistent  bool
	autostart   bool
	managedSave bool
	xml         string

	// xmlAfterAttach replaces xml once a device has been attached
	xmlAfterAttach string
	attachCount    int

	// shutdownPolls is how many state polls a requested shutdown takes
	// to complete; negative means the guest never complies
	shutdownPolls int
	shuttingDown  bool
}

type mockNetwork struct {
	active     bool
	persistent bool
	autostart  bool
	xml        string
}

type mockPool struct {
	active     bool
	persistent bool
	autostart  bool
	xml        string
}

type mockVolume struct {
	path     string
	capacity uint64
	xml      string
}

type networkUpdate struct {
	network string
	command uint32
	section uint32
	xml     string
	flags   libvirt.NetworkUpdateFlags
}

func newMockClient() *mockClient {
	return &mockClient{
		domains:            make(map[string]*mockDomain),
		networks:           make(map[string]*mockNetwork),
		pools:              make(map[string]*mockPool),
		volumes:            make(map[string]map[string]*mockVolume),
		poolAutostarts:     make(map[string]int32),
		netAutostarts:      make(map[string]int32),
		failVolCreateAfter: -1,
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
	if _, ok := m.domains[name]; !ok {
		return libvirt.Domain{}, notFoundError(libvirt.ErrNoDomain, "domain")
	}
	return libvirt.Domain{Name: name}, nil
}

func (m *mockClient) DomainDefineXML(xml string) (libvirt.Domain, error) {
	var parsed libvirtxml.Domain
	if err := parsed.Unmarshal(xml); err != nil {
		return libvirt.Domain{}, err
	}
	m.definedDomains = append(m.definedDomains, xml)
	m.domains[parsed.Name] = &mockDomain{
		state:      int32(libvirt.DomainShutoff),
		persistent: true,
		xml:        xml,
	}
	return libvirt.Domain{Name: parsed.Name}, nil
}

func (m *mockClient) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	d, ok := m.domains[dom.Name]
	if !ok {
		return "", notFoundError(libvirt.ErrNoDomain, "domain")
	}
	if d.attachCount > 0 && d.xmlAfterAttach != "" {
		return d.xmlAfterAttach, nil
	}
	return d.xml, nil
}

func (m *mockClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	d, ok := m.domains[dom.Name]
	if !ok {
		return 0, 0, notFoundError(libvirt.ErrNoDomain, "domain")
	}
	if d.shuttingDown {
		if d.shutdownPolls == 0 {
			d.state = int32(libvirt.DomainShutoff)
			d.shuttingDown = false
		} else if d.shutdownPolls > 0 {
			d.shutdownPolls--
		}
	}
	return d.state, 0, nil
}

func (m *mockClient) DomainCreate(dom libvirt.Domain) error {
	if m.failDomainCreate {
		return fmt.Errorf("start failed")
	}
	d, ok := m.domains[dom.Name]
	if !ok {
		return notFoundError(libvirt.ErrNoDomain, "domain")
	}
	d.state = int32(libvirt.DomainRunning)
	return nil
}

func (m *mockClient) DomainShutdown(dom libvirt.Domain) error {
	if m.failDomainShutdown {
		return fmt.Errorf("shutdown failed")
	}
	d, ok := m.domains[dom.Name]
	if !ok {
		return notFoundError(libvirt.ErrNoDomain, "domain")
	}
	d.shuttingDown = true
	return nil
}

func (m *mockClient) DomainDestroy(dom libvirt.Domain) error {
	d, ok := m.domains[dom.Name]
	if !ok {
		return notFoundError(libvirt.ErrNoDomain, "domain")
	}
	d.state = int32(libvirt.DomainShutoff)
	d.shuttingDown = false
	m.destroyedDomains = append(m.destroyedDomains, dom.Name)
	return nil
}

func (m *mockClient) DomainReboot(dom libvirt.Domain, flags libvirt.DomainRebootFlagValues) error {
	m.rebootedDomains = append(m.rebootedDomains, dom.Name)
	return nil
}

func (m *mockClient) DomainReset(dom libvirt.Domain, flags uint32) error {
	m.resetDomains = append(m.resetDomains, dom.Name)
	return nil
}

func (m *mockClient) DomainIsActive(dom libvirt.Domain) (int32, error) {
	d, ok := m.domains[dom.Name]
	if !ok {
		return 0, notFoundError(libvirt.ErrNoDomain, "domain")
	}
	return boolToInt32(d.state == int32(libvirt.DomainRunning)), nil
}

func (m *mockClient) DomainHasManagedSaveImage(dom libvirt.Domain, flags uint32) (int32, error) {
	d, ok := m.domains[dom.Name]
	if !ok {
		return 0, notFoundError(libvirt.ErrNoDomain, "domain")
	}
	return boolToInt32(d.managedSave), nil
}

func (m *mockClient) DomainManagedSaveRemove(dom libvirt.Domain, flags uint32) error {
	if d, ok := m.domains[dom.Name]; ok {
		d.managedSave = false
	}
	return nil
}

func (m *mockClient) DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
	if m.failUndefineFlags {
		return fmt.Errorf("undefine flags unsupported")
	}
	m.undefinedFlags = append(m.undefinedFlags, flags)
	delete(m.domains, dom.Name)
	return nil
}

func (m *mockClient) DomainUndefine(dom libvirt.Domain) error {
	m.undefined = append(m.undefined, dom.Name)
	delete(m.domains, dom.Name)
	return nil
}

func (m *mockClient) DomainAttachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error {
	d, ok := m.domains[dom.Name]
	if !ok {
		return notFoundError(libvirt.ErrNoDomain, "domain")
	}
	d.attachCount++
	m.attachedXML = append(m.attachedXML, xml)
	m.attachedFlags = append(m.attachedFlags, flags)
	return nil
}

// NetworkClient

func (m *mockClient) NetworkLookupByName(name string) (libvirt.Network, error) {
	if _, ok := m.networks[name]; !ok {
		return libvirt.Network{}, notFoundError(libvirt.ErrNoNetwork, "network")
	}
	return libvirt.Network{Name: name}, nil
}

func (m *mockClient) NetworkDefineXML(xml string) (libvirt.Network, error) {
	var parsed libvirtxml.Network
	if err := parsed.Unmarshal(xml); err != nil {
		return libvirt.Network{}, err
	}
	m.definedNetworks = append(m.definedNetworks, xml)
	m.networks[parsed.Name] = &mockNetwork{persistent: true, xml: xml}
	return libvirt.Network{Name: parsed.Name}, nil
}

func (m *mockClient) NetworkGetXMLDesc(net libvirt.Network, flags uint32) (string, error) {
	n, ok := m.networks[net.Name]
	if !ok {
		return "", notFoundError(libvirt.ErrNoNetwork, "network")
	}
	return n.xml, nil
}

func (m *mockClient) NetworkCreate(net libvirt.Network) error {
	n, ok := m.networks[net.Name]
	if !ok {
		return notFoundError(libvirt.ErrNoNetwork, "network")
	}
	n.active = true
	m.createdNetworks = append(m.createdNetworks, net.Name)
	return nil
}

func (m *mockClient) NetworkDestroy(net libvirt.Network) error {
	n, ok := m.networks[net.Name]
	if !ok {
		return notFoundError(libvirt.ErrNoNetwork, "network")
	}
	n.active = false
	m.destroyedNetworks = append(m.destroyedNetworks, net.Name)
	return nil
}

func (m *mockClient) NetworkUndefine(net libvirt.Network) error {
	delete(m.networks, net.Name)
	return nil
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

func (m *mockClient) NetworkSetAutostart(net libvirt.Network, autostart int32) error {
	n, ok := m.networks[net.Name]
	if !ok {
		return notFoundError(libvirt.ErrNoNetwork, "network")
	}
	n.autostart = autostart == 1
	m.netAutostarts[net.Name] = autostart
	return nil
}

func (m *mockClient) NetworkUpdate(net libvirt.Network, command, section uint32, parentIndex int32, xml string, flags libvirt.NetworkUpdateFlags) error {
	m.networkUpdates = append(m.networkUpdates, networkUpdate{
		network: net.Name,
		command: command,
		section: section,
		xml:     xml,
		flags:   flags,
	})
	return nil
}

func (m *mockClient) ConnectListAllNetworks(needResults int32, flags libvirt.ConnectListAllNetworksFlags) ([]libvirt.Network, uint32, error) {
	var out []libvirt.Network
	for name := range m.networks {
		out = append(out, libvirt.Network{Name: name})
	}
	return out, uint32(len(out)), nil
}

// PoolClient

func (m *mockClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	if _, ok := m.pools[name]; !ok {
		return libvirt.StoragePool{}, notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	return libvirt.StoragePool{Name: name}, nil
}

func (m *mockClient) StoragePoolDefineXML(xml string, flags uint32) (libvirt.StoragePool, error) {
	var parsed libvirtxml.StoragePool
	if err := parsed.Unmarshal(xml); err != nil {
		return libvirt.StoragePool{}, err
	}
	m.definedPools = append(m.definedPools, xml)
	m.pools[parsed.Name] = &mockPool{persistent: true, xml: xml}
	return libvirt.StoragePool{Name: parsed.Name}, nil
}

func (m *mockClient) StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	p, ok := m.pools[pool.Name]
	if !ok {
		return "", notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	return p.xml, nil
}

func (m *mockClient) StoragePoolCreate(pool libvirt.StoragePool, flags libvirt.StoragePoolCreateFlags) error {
	if m.poolCreateFailures > 0 {
		m.poolCreateFailures--
		return fmt.Errorf("backend not ready")
	}
	p, ok := m.pools[pool.Name]
	if !ok {
		return notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	p.active = true
	m.poolCreates = append(m.poolCreates, pool.Name)
	return nil
}

func (m *mockClient) StoragePoolDestroy(pool libvirt.StoragePool) error {
	p, ok := m.pools[pool.Name]
	if !ok {
		return notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	p.active = false
	m.poolDestroys = append(m.poolDestroys, pool.Name)
	return nil
}

func (m *mockClient) StoragePoolUndefine(pool libvirt.StoragePool) error {
	delete(m.pools, pool.Name)
	return nil
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

func (m *mockClient) StoragePoolSetAutostart(pool libvirt.StoragePool, autostart int32) error {
	p, ok := m.pools[pool.Name]
	if !ok {
		return notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	p.autostart = autostart == 1
	m.poolAutostarts[pool.Name] = autostart
	return nil
}

func (m *mockClient) StoragePoolRefresh(pool libvirt.StoragePool, flags uint32) error {
	if _, ok := m.pools[pool.Name]; !ok {
		return notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	m.poolRefreshes = append(m.poolRefreshes, pool.Name)
	return nil
}

func (m *mockClient) ConnectListAllStoragePools(needResults int32, flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error) {
	var out []libvirt.StoragePool
	for name := range m.pools {
		out = append(out, libvirt.StoragePool{Name: name})
	}
	return out, uint32(len(out)), nil
}

func (m *mockClient) StoragePoolLookupByVolume(vol libvirt.StorageVol) (libvirt.StoragePool, error) {
	if _, ok := m.pools[vol.Pool]; !ok {
		return libvirt.StoragePool{}, notFoundError(libvirt.ErrNoStoragePool, "storage pool")
	}
	return libvirt.StoragePool{Name: vol.Pool}, nil
}

// VolumeClient

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

func (m *mockClient) StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	if _, err := m.volume(libvirt.StorageVol{Pool: pool.Name, Name: name}); err != nil {
		return libvirt.StorageVol{}, err
	}
	return libvirt.StorageVol{Pool: pool.Name, Name: name}, nil
}

func (m *mockClient) StorageVolLookupByPath(path string) (libvirt.StorageVol, error) {
	for poolName, vols := range m.volumes {
		for name, v := range vols {
			if v.path == path {
				return libvirt.StorageVol{Pool: poolName, Name: name}, nil
			}
		}
	}
	return libvirt.StorageVol{}, notFoundError(libvirt.ErrNoStorageVol, "storage volume")
}

func (m *mockClient) createVolume(pool libvirt.StoragePool, xml string) (libvirt.StorageVol, error) {
	var parsed libvirtxml.StorageVolume
	if err := parsed.Unmarshal(xml); err != nil {
		return libvirt.StorageVol{}, err
	}
	if m.failVolCreateAfter >= 0 && len(m.createdVolXML)+len(m.clonedFromVol) >= m.failVolCreateAfter {
		return libvirt.StorageVol{}, fmt.Errorf("out of space")
	}
	if m.volumes[pool.Name] == nil {
		m.volumes[pool.Name] = make(map[string]*mockVolume)
	}
	v := &mockVolume{xml: xml}
	if parsed.Target != nil {
		v.path = parsed.Target.Path
	}
	if v.path == "" {
		v.path = "/" + pool.Name + "/" + parsed.Name
	}
	if parsed.Capacity != nil {
		v.capacity = parsed.Capacity.Value
	}
	m.volumes[pool.Name][parsed.Name] = v
	return libvirt.StorageVol{Pool: pool.Name, Name: parsed.Name}, nil
}

func (m *mockClient) StorageVolCreateXML(pool libvirt.StoragePool, xml string, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	vol, err := m.createVolume(pool, xml)
	if err != nil {
		return libvirt.StorageVol{}, err
	}
	m.createdVolXML = append(m.createdVolXML, xml)
	return vol, nil
}

func (m *mockClient) StorageVolCreateXMLFrom(pool libvirt.StoragePool, xml string, cloneVol libvirt.StorageVol, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	vol, err := m.createVolume(pool, xml)
	if err != nil {
		return libvirt.StorageVol{}, err
	}
	m.clonedFromVol = append(m.clonedFromVol, cloneVol.Name)
	return vol, nil
}

func (m *mockClient) StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error {
	if _, err := m.volume(vol); err != nil {
		return err
	}
	delete(m.volumes[vol.Pool], vol.Name)
	m.deletedVols = append(m.deletedVols, vol.Name)
	return nil
}

func (m *mockClient) StorageVolResize(vol libvirt.StorageVol, capacity uint64, flags libvirt.StorageVolResizeFlags) error {
	v, err := m.volume(vol)
	if err != nil {
		return err
	}
	v.capacity = capacity
	return nil
}

func (m *mockClient) StorageVolGetInfo(vol libvirt.StorageVol) (int8, uint64, uint64, error) {
	v, err := m.volume(vol)
	if err != nil {
		return 0, 0, 0, err
	}
	return 0, v.capacity, v.capacity, nil
}

func (m *mockClient) StorageVolGetPath(vol libvirt.StorageVol) (string, error) {
	v, err := m.volume(vol)
	if err != nil {
		return "", err
	}
	return v.path, nil
}

func (m *mockClient) StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error) {
	v, err := m.volume(vol)
	if err != nil {
		return "", err
	}
	return v.xml, nil
}

func (m *mockClient) StorageVolUpload(vol libvirt.StorageVol, r io.Reader, offset, length uint64, flags libvirt.StorageVolUploadFlags) error {
	if _, err := m.volume(vol); err != nil {
		return err
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return err
	}
	m.uploadedBytes += n
	return nil
}
