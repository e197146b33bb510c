package inspect

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"

	"github.com/virtadm/virtadm/internal/descriptor"
	virt "github.com/virtadm/virtadm/internal/libvirt"
)

// DomainInfo is the inspection record for a domain.
type DomainInfo struct {
	Name       string                     `json:"name" yaml:"name"`
	UUID       string                     `json:"uuid" yaml:"uuid"`
	ID         int32                      `json:"id" yaml:"id"`
	State      string                     `json:"state" yaml:"state"`
	MaxMemory  uint64                     `json:"max_memory" yaml:"max_memory"`
	Memory     uint64                     `json:"memory" yaml:"memory"`
	VCPUs      uint16                     `json:"vcpus" yaml:"vcpus"`
	CPUTime    uint64                     `json:"cpu_time" yaml:"cpu_time"`
	Active     bool                       `json:"active" yaml:"active"`
	Persistent bool                       `json:"persistent" yaml:"persistent"`
	Autostart  bool                       `json:"autostart" yaml:"autostart"`
	MemoryInfo descriptor.MemoryInfo      `json:"memory_info" yaml:"memory_info"`
	Disks      []descriptor.DiskInfo      `json:"disks" yaml:"disks"`
	Interfaces []descriptor.InterfaceInfo `json:"interfaces" yaml:"interfaces"`
}

// DomainInspector answers read-only queries about domains.
type DomainInspector struct {
	client DomainClient
}

// NewDomainInspector creates a domain inspector.
func NewDomainInspector(client DomainClient) *DomainInspector {
	return &DomainInspector{client: client}
}

// Info returns the record for a domain. The second return is false when
// the domain does not exist.
func (i *DomainInspector) Info(name string) (DomainInfo, bool, error) {
	dom, err := i.client.DomainLookupByName(name)
	if err != nil {
		if virt.IsNotFound(err) {
			return DomainInfo{}, false, nil
		}
		return DomainInfo{}, false, fmt.Errorf("failed to look up domain %s: %w", name, err)
	}

	state, maxMem, memory, vcpus, cpuTime, err := i.client.DomainGetInfo(dom)
	if err != nil {
		return DomainInfo{}, false, fmt.Errorf("failed to get info for domain %s: %w", name, err)
	}

	info := DomainInfo{
		Name:      name,
		UUID:      uuid.UUID(dom.UUID).String(),
		ID:        dom.ID,
		State:     DomainStateName(int32(state)),
		MaxMemory: maxMem,
		Memory:    memory,
		VCPUs:     vcpus,
		CPUTime:   cpuTime,
	}

	if active, err := i.client.DomainIsActive(dom); err == nil {
		info.Active = active == 1
	}
	if persistent, err := i.client.DomainIsPersistent(dom); err == nil {
		info.Persistent = persistent == 1
	}
	if autostart, err := i.client.DomainGetAutostart(dom); err == nil {
		info.Autostart = autostart == 1
	}

	// Descriptor details are best effort: a domain whose XML cannot
	// be read still reports its runtime facts.
	if xml, err := i.client.DomainGetXMLDesc(dom, 0); err == nil {
		cfg := descriptor.ParseDomain(xml)
		info.MemoryInfo = cfg.Memory
		info.Disks = cfg.Disks
		info.Interfaces = cfg.Interfaces
	}

	return info, true, nil
}

// Exists reports whether a domain exists.
func (i *DomainInspector) Exists(name string) (bool, error) {
	_, found, err := i.Info(name)
	return found, err
}

// ByPattern returns records for all domains whose names match a shell
// glob pattern. No matches yields an empty slice.
func (i *DomainInspector) ByPattern(pattern string) ([]DomainInfo, error) {
	domains, _, err := i.client.ConnectListAllDomains(1,
		libvirt.ConnectListDomainsActive|libvirt.ConnectListDomainsInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	names := make([]string, 0, len(domains))
	for _, dom := range domains {
		names = append(names, dom.Name)
	}
	matched, err := matchNames(names, pattern)
	if err != nil {
		return nil, err
	}

	infos := make([]DomainInfo, 0, len(matched))
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

// DomainStateName maps a libvirt domain state code to its name.
func DomainStateName(state int32) string {
	switch libvirt.DomainState(state) {
	case libvirt.DomainRunning:
		return "running"
	case libvirt.DomainBlocked:
		return "blocked"
	case libvirt.DomainPaused:
		return "paused"
	case libvirt.DomainShutdown:
		return "shutdown"
	case libvirt.DomainShutoff:
		return "shutoff"
	case libvirt.DomainCrashed:
		return "crashed"
	case libvirt.DomainPmsuspended:
		return "pmsuspended"
	default:
		return "nostate"
	}
}
