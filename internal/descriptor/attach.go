package descriptor

import (
	"fmt"

	"libvirt.org/go/libvirtxml"
)

// AttachInterface describes a network interface device to attach to a
// domain. An empty MAC lets libvirt generate one.
type AttachInterface struct {
	Network   string
	MAC       string
	Connected bool
}

// BuildInterfaceDevice generates the interface element consumed by
// virDomainAttachDevice.
func BuildInterfaceDevice(spec AttachInterface) (string, error) {
	if spec.Network == "" {
		return "", fmt.Errorf("interface network is required")
	}

	state := "up"
	if !spec.Connected {
		state = "down"
	}

	iface := &libvirtxml.DomainInterface{
		Source: &libvirtxml.DomainInterfaceSource{
			Network: &libvirtxml.DomainInterfaceSourceNetwork{Network: spec.Network},
		},
		Model: &libvirtxml.DomainInterfaceModel{Type: "virtio"},
		Link:  &libvirtxml.DomainInterfaceLink{State: state},
	}
	if spec.MAC != "" {
		iface.MAC = &libvirtxml.DomainInterfaceMAC{Address: spec.MAC}
	}

	xml, err := iface.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal interface XML: %w", err)
	}
	return xml, nil
}

// AttachDisk describes a disk or cdrom device to attach to a domain.
// Exactly one source must be set: a block device path, or a pool and
// volume pair.
type AttachDisk struct {
	Device       string // "disk" or "cdrom"
	Bus          string
	Target       string
	Format       string
	SourceDev    string
	SourcePool   string
	SourceVolume string
	ReadOnly     bool
}

// BuildDiskDevice generates the disk element consumed by
// virDomainAttachDevice.
func BuildDiskDevice(spec AttachDisk) (string, error) {
	if spec.Target == "" {
		return "", fmt.Errorf("disk target is required")
	}

	disk := &libvirtxml.DomainDisk{
		Device: spec.Device,
		Driver: &libvirtxml.DomainDiskDriver{Name: "qemu", Type: spec.Format},
		Target: &libvirtxml.DomainDiskTarget{Dev: spec.Target, Bus: spec.Bus},
	}

	switch {
	case spec.SourceDev != "":
		disk.Source = &libvirtxml.DomainDiskSource{
			Block: &libvirtxml.DomainDiskSourceBlock{Dev: spec.SourceDev},
		}
	case spec.SourcePool != "" && spec.SourceVolume != "":
		disk.Source = &libvirtxml.DomainDiskSource{
			Volume: &libvirtxml.DomainDiskSourceVolume{
				Pool:   spec.SourcePool,
				Volume: spec.SourceVolume,
			},
		}
	default:
		return "", fmt.Errorf("disk source is required")
	}

	if spec.ReadOnly {
		disk.ReadOnly = &libvirtxml.DomainDiskReadOnly{}
	}

	xml, err := disk.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal disk XML: %w", err)
	}
	return xml, nil
}

// BuildSATAController generates a SATA controller element on the PCI
// slot QEMU reserves for the q35 AHCI controller (00:1f.2).
func BuildSATAController() (string, error) {
	index := uint(0)
	pciDomain := uint(0)
	pciBus := uint(0)
	pciSlot := uint(0x1f)
	pciFn := uint(0x2)

	ctl := &libvirtxml.DomainController{
		Type:  "sata",
		Index: &index,
		Address: &libvirtxml.DomainAddress{
			PCI: &libvirtxml.DomainAddressPCI{
				Domain:   &pciDomain,
				Bus:      &pciBus,
				Slot:     &pciSlot,
				Function: &pciFn,
			},
		},
	}

	xml, err := ctl.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal controller XML: %w", err)
	}
	return xml, nil
}

// HasSATAController reports whether a domain descriptor already carries
// a SATA controller.
func HasSATAController(xml string) bool {
	var dom libvirtxml.Domain
	if err := dom.Unmarshal(xml); err != nil {
		return false
	}
	if dom.Devices == nil {
		return false
	}
	for _, ctl := range dom.Devices.Controllers {
		if ctl.Type == "sata" {
			return true
		}
	}
	return false
}

// DiskTargets lists the target device names of every disk-like device
// in a domain descriptor, cdroms included.
func DiskTargets(xml string) []string {
	var dom libvirtxml.Domain
	if err := dom.Unmarshal(xml); err != nil {
		return nil
	}
	if dom.Devices == nil {
		return nil
	}
	var targets []string
	for _, disk := range dom.Devices.Disks {
		if disk.Target != nil && disk.Target.Dev != "" {
			targets = append(targets, disk.Target.Dev)
		}
	}
	return targets
}

// DiskSources lists every disk source of a domain descriptor in the
// same rendering ParseDomain uses, cdroms included.
func DiskSources(xml string) []string {
	var dom libvirtxml.Domain
	if err := dom.Unmarshal(xml); err != nil {
		return nil
	}
	if dom.Devices == nil {
		return nil
	}
	var sources []string
	for _, disk := range dom.Devices.Disks {
		if disk.Source == nil {
			continue
		}
		switch {
		case disk.Source.File != nil:
			sources = append(sources, disk.Source.File.File)
		case disk.Source.Block != nil:
			sources = append(sources, disk.Source.Block.Dev)
		case disk.Source.Volume != nil:
			sources = append(sources, disk.Source.Volume.Pool+"/"+disk.Source.Volume.Volume)
		}
	}
	return sources
}
