package reconcile

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/digitalocean/go-libvirt"

	"github.com/virtadm/virtadm/internal/descriptor"
	virt "github.com/virtadm/virtadm/internal/libvirt"
	"github.com/virtadm/virtadm/internal/naming"
)

var macRE = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// DeviceAttacher hot-plugs network interfaces and disks into domains.
// Attachments always land in the persistent configuration; when the
// domain is running they are applied live as well.
type DeviceAttacher struct {
	client AttachClient

	// DryRun plans changes without applying them.
	DryRun bool
}

// NewDeviceAttacher returns a device attacher.
func NewDeviceAttacher(client AttachClient) *DeviceAttacher {
	return &DeviceAttacher{client: client}
}

// NetworkAttachResult is the outcome of a network attachment.
type NetworkAttachResult struct {
	Result `yaml:",inline"`

	// MAC is the interface address, either the requested one or the
	// address libvirt generated.
	MAC string `json:"mac,omitempty" yaml:"mac,omitempty"`

	// AlreadyAttached reports that the domain already had an interface
	// on the network.
	AlreadyAttached bool `json:"already_attached,omitempty" yaml:"already_attached,omitempty"`
}

func (a *DeviceAttacher) attachFlags(dom libvirt.Domain) (uint32, error) {
	flags := uint32(libvirt.DomainDeviceModifyConfig)
	active, err := a.client.DomainIsActive(dom)
	if err != nil {
		return 0, fmt.Errorf("failed to check domain %s state: %w", dom.Name, err)
	}
	if active == 1 {
		flags |= uint32(libvirt.DomainDeviceModifyLive)
	}
	return flags, nil
}

// AttachNetwork connects a domain to a network with a virtio
// interface. A domain already attached to the network is left alone,
// unless a different MAC was requested for it, which is an error. With
// an empty mac libvirt generates one and the result reports it.
func (a *DeviceAttacher) AttachNetwork(domainName, networkName, mac string, connected bool) (NetworkAttachResult, error) {
	if mac != "" && !macRE.MatchString(mac) {
		return NetworkAttachResult{}, fmt.Errorf("invalid MAC address %q", mac)
	}

	dom, err := a.client.DomainLookupByName(domainName)
	if err != nil {
		if virt.IsNotFound(err) {
			return NetworkAttachResult{}, fmt.Errorf("domain %s does not exist", domainName)
		}
		return NetworkAttachResult{}, fmt.Errorf("failed to look up domain %s: %w", domainName, err)
	}
	if _, err := a.client.NetworkLookupByName(networkName); err != nil {
		if virt.IsNotFound(err) {
			return NetworkAttachResult{}, fmt.Errorf("network %s does not exist", networkName)
		}
		return NetworkAttachResult{}, fmt.Errorf("failed to look up network %s: %w", networkName, err)
	}

	domXML, err := a.client.DomainGetXMLDesc(dom, 0)
	if err != nil {
		return NetworkAttachResult{}, fmt.Errorf("failed to read domain %s XML: %w", domainName, err)
	}

	before := make(map[string]bool)
	for _, iface := range descriptor.ParseDomain(domXML).Interfaces {
		if iface.Network != networkName {
			continue
		}
		if mac != "" && !strings.EqualFold(mac, iface.MAC) {
			return NetworkAttachResult{}, fmt.Errorf(
				"domain %s is already attached to network %s with MAC %s", domainName, networkName, iface.MAC)
		}
		return NetworkAttachResult{
			Result:          resultf(false, "domain %s is already attached to network %s", domainName, networkName),
			MAC:             iface.MAC,
			AlreadyAttached: true,
		}, nil
	}
	for _, iface := range descriptor.ParseDomain(domXML).Interfaces {
		before[strings.ToLower(iface.MAC)] = true
	}

	if a.DryRun {
		return NetworkAttachResult{
			Result: resultf(true, "would attach domain %s to network %s", domainName, networkName),
			MAC:    mac,
		}, nil
	}

	ifaceXML, err := descriptor.BuildInterfaceDevice(descriptor.AttachInterface{
		Network:   networkName,
		MAC:       mac,
		Connected: connected,
	})
	if err != nil {
		return NetworkAttachResult{}, err
	}
	flags, err := a.attachFlags(dom)
	if err != nil {
		return NetworkAttachResult{}, err
	}
	if err := a.client.DomainAttachDeviceFlags(dom, ifaceXML, flags); err != nil {
		return NetworkAttachResult{}, fmt.Errorf("failed to attach domain %s to network %s: %w", domainName, networkName, err)
	}

	resultMAC := mac
	if resultMAC == "" {
		// re-read to learn the address libvirt picked
		if after, err := a.client.DomainGetXMLDesc(dom, 0); err == nil {
			for _, iface := range descriptor.ParseDomain(after).Interfaces {
				if iface.Network == networkName && !before[strings.ToLower(iface.MAC)] {
					resultMAC = iface.MAC
					break
				}
			}
		}
	}

	return NetworkAttachResult{
		Result: resultf(true, "domain %s attached to network %s", domainName, networkName),
		MAC:    resultMAC,
	}, nil
}

// AttachedVolume describes one disk attached to a domain.
type AttachedVolume struct {
	Name   string `json:"name" yaml:"name"`
	Target string `json:"target" yaml:"target"`
	Device string `json:"device" yaml:"device"`
	Bus    string `json:"bus" yaml:"bus"`
}

// VolumeAttachResult is the outcome of a volume attachment.
type VolumeAttachResult struct {
	Result `yaml:",inline"`

	Attached []AttachedVolume `json:"attached,omitempty" yaml:"attached,omitempty"`

	// Skipped lists volumes that were already attached.
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// AttachVolumes attaches pool volumes to a domain. ISO images become
// read-only SATA cdroms, everything else a virtio disk; target device
// names are allocated lowest-first per bus. Attaching an ISO to a
// domain without a SATA controller provisions one on the q35 AHCI
// slot. Volumes the domain already uses are skipped.
func (a *DeviceAttacher) AttachVolumes(domainName, poolName string, volumes []string) (VolumeAttachResult, error) {
	dom, err := a.client.DomainLookupByName(domainName)
	if err != nil {
		if virt.IsNotFound(err) {
			return VolumeAttachResult{}, fmt.Errorf("domain %s does not exist", domainName)
		}
		return VolumeAttachResult{}, fmt.Errorf("failed to look up domain %s: %w", domainName, err)
	}

	pool, err := a.client.StoragePoolLookupByName(poolName)
	if err != nil {
		if virt.IsNotFound(err) {
			return VolumeAttachResult{}, fmt.Errorf("storage pool %s does not exist", poolName)
		}
		return VolumeAttachResult{}, fmt.Errorf("failed to look up pool %s: %w", poolName, err)
	}
	if err := a.client.StoragePoolRefresh(pool, 0); err != nil {
		log.Printf("warning: failed to refresh pool %s: %v", poolName, err)
	}

	poolXML, err := a.client.StoragePoolGetXMLDesc(pool, 0)
	if err != nil {
		return VolumeAttachResult{}, fmt.Errorf("failed to read pool %s XML: %w", poolName, err)
	}
	poolType := descriptor.ParsePool(poolXML).Type

	type pending struct {
		name   string
		path   string
		format string
		iso    bool
	}
	var plan []pending
	anyISO := false
	for _, name := range volumes {
		vol, err := a.client.StorageVolLookupByName(pool, name)
		if err != nil {
			if virt.IsNotFound(err) {
				return VolumeAttachResult{}, fmt.Errorf("volume %s does not exist in pool %s", name, poolName)
			}
			return VolumeAttachResult{}, fmt.Errorf("failed to look up volume %s: %w", name, err)
		}
		path, err := a.client.StorageVolGetPath(vol)
		if err != nil {
			return VolumeAttachResult{}, fmt.Errorf("failed to resolve path of volume %s: %w", name, err)
		}

		format := "raw"
		if volXML, err := a.client.StorageVolGetXMLDesc(vol, 0); err == nil {
			format = descriptor.ParseVolumeFormat(volXML)
		}
		iso := format == "iso" || strings.HasSuffix(name, ".iso")
		if iso {
			anyISO = true
		}
		plan = append(plan, pending{name: name, path: path, format: format, iso: iso})
	}

	domXML, err := a.client.DomainGetXMLDesc(dom, 0)
	if err != nil {
		return VolumeAttachResult{}, fmt.Errorf("failed to read domain %s XML: %w", domainName, err)
	}
	flags, err := a.attachFlags(dom)
	if err != nil {
		return VolumeAttachResult{}, err
	}

	res := VolumeAttachResult{}

	if anyISO && !descriptor.HasSATAController(domXML) {
		if !a.DryRun {
			ctlXML, err := descriptor.BuildSATAController()
			if err != nil {
				return VolumeAttachResult{}, err
			}
			if err := a.client.DomainAttachDeviceFlags(dom, ctlXML, flags); err != nil {
				return VolumeAttachResult{}, fmt.Errorf("failed to attach SATA controller to %s: %w", domainName, err)
			}
		}
		res.Changed = true
	}

	used := descriptor.DiskTargets(domXML)
	sources := make(map[string]bool)
	for _, src := range descriptor.DiskSources(domXML) {
		sources[src] = true
	}

	for _, p := range plan {
		if sources[p.path] || sources[poolName+"/"+p.name] {
			res.Skipped = append(res.Skipped, p.name)
			continue
		}

		spec := descriptor.AttachDisk{
			Device: "disk",
			Bus:    "virtio",
			Format: p.format,
		}
		prefix := "vd"
		if p.iso {
			spec.Device = "cdrom"
			spec.Bus = "sata"
			spec.Format = "raw"
			spec.ReadOnly = true
			prefix = "sd"
		}
		if poolType == "logical" {
			spec.SourceDev = p.path
		} else {
			spec.SourcePool = poolName
			spec.SourceVolume = p.name
		}

		target, err := naming.NextDeviceName(prefix, used)
		if err != nil {
			return res, err
		}
		spec.Target = target

		if !a.DryRun {
			diskXML, err := descriptor.BuildDiskDevice(spec)
			if err != nil {
				return res, err
			}
			if err := a.client.DomainAttachDeviceFlags(dom, diskXML, flags); err != nil {
				return res, fmt.Errorf("failed to attach volume %s to %s: %w", p.name, domainName, err)
			}
		}

		used = append(used, target)
		sources[p.path] = true
		sources[poolName+"/"+p.name] = true
		res.Changed = true
		res.Attached = append(res.Attached, AttachedVolume{
			Name:   p.name,
			Target: target,
			Device: spec.Device,
			Bus:    spec.Bus,
		})
	}

	switch {
	case a.DryRun && res.Changed:
		res.Msg = fmt.Sprintf("would attach %d volumes to domain %s", len(res.Attached), domainName)
	case res.Changed:
		res.Msg = fmt.Sprintf("%d volumes attached to domain %s", len(res.Attached), domainName)
	default:
		res.Msg = fmt.Sprintf("all volumes already attached to domain %s", domainName)
	}
	return res, nil
}
