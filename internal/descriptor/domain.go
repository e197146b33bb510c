package descriptor

import (
	"fmt"

	"github.com/google/uuid"
	"libvirt.org/go/libvirtxml"

	"github.com/virtadm/virtadm/internal/naming"
)

const (
	// DefaultMachine is the machine type for newly created domains.
	DefaultMachine = "pc-q35-7.2"

	// SecureBootLoader is the OVMF firmware image used for secure boot.
	SecureBootLoader = "/usr/share/edk2/x64/OVMF_CODE.secboot.4m.fd"

	// NVRAMDir is where libvirt keeps per-domain NVRAM variable stores.
	NVRAMDir = "/var/lib/libvirt/qemu/nvram"

	defaultEmulator = "/usr/bin/qemu-system-x86_64"
)

// NVRAMPath returns the NVRAM variable store path for a domain.
func NVRAMPath(domainName string) string {
	return fmt.Sprintf("%s/%s_VARS.fd", NVRAMDir, domainName)
}

// DiskInfo describes one disk device of a domain.
type DiskInfo struct {
	Type       string `json:"type" yaml:"type"`
	Device     string `json:"device" yaml:"device"`
	Source     string `json:"source" yaml:"source"`
	Target     string `json:"target" yaml:"target"`
	Bus        string `json:"bus" yaml:"bus"`
	DriverName string `json:"driver_name" yaml:"driver_name"`
	DriverType string `json:"driver_type" yaml:"driver_type"`
}

// InterfaceInfo describes one network interface of a domain.
type InterfaceInfo struct {
	Type    string `json:"type" yaml:"type"`
	Network string `json:"network" yaml:"network"`
	Bridge  string `json:"bridge" yaml:"bridge"`
	Model   string `json:"model" yaml:"model"`
	MAC     string `json:"mac" yaml:"mac"`
}

// MemoryInfo describes the memory configuration of a domain.
type MemoryInfo struct {
	Maximum uint   `json:"maximum" yaml:"maximum"`
	Current uint   `json:"current" yaml:"current"`
	Unit    string `json:"unit" yaml:"unit"`
}

// DomainConfig is the parsed view of a domain descriptor.
type DomainConfig struct {
	Name       string          `json:"name" yaml:"name"`
	UUID       string          `json:"uuid" yaml:"uuid"`
	Memory     MemoryInfo      `json:"memory_info" yaml:"memory_info"`
	Disks      []DiskInfo      `json:"disks" yaml:"disks"`
	Interfaces []InterfaceInfo `json:"interfaces" yaml:"interfaces"`
}

// ParseDomain extracts the managed subset of a domain descriptor.
// Malformed XML yields an empty config.
func ParseDomain(xml string) DomainConfig {
	var dom libvirtxml.Domain
	if err := dom.Unmarshal(xml); err != nil {
		return DomainConfig{}
	}

	cfg := DomainConfig{
		Name: dom.Name,
		UUID: dom.UUID,
	}

	if dom.Memory != nil {
		cfg.Memory.Maximum = dom.Memory.Value
		cfg.Memory.Unit = dom.Memory.Unit
		if cfg.Memory.Unit == "" {
			cfg.Memory.Unit = "KiB"
		}
	}
	if dom.CurrentMemory != nil {
		cfg.Memory.Current = dom.CurrentMemory.Value
	}

	if dom.Devices == nil {
		return cfg
	}

	for _, disk := range dom.Devices.Disks {
		if disk.Device != "disk" {
			continue
		}
		info := DiskInfo{Device: disk.Device}
		if disk.Source != nil {
			switch {
			case disk.Source.File != nil:
				info.Type = "file"
				info.Source = disk.Source.File.File
			case disk.Source.Block != nil:
				info.Type = "block"
				info.Source = disk.Source.Block.Dev
			case disk.Source.Volume != nil:
				info.Type = "volume"
				info.Source = disk.Source.Volume.Pool + "/" + disk.Source.Volume.Volume
			}
		}
		if disk.Target != nil {
			info.Target = disk.Target.Dev
			info.Bus = disk.Target.Bus
		}
		if disk.Driver != nil {
			info.DriverName = disk.Driver.Name
			info.DriverType = disk.Driver.Type
		}
		cfg.Disks = append(cfg.Disks, info)
	}

	for _, iface := range dom.Devices.Interfaces {
		info := InterfaceInfo{}
		if iface.Source != nil {
			switch {
			case iface.Source.Network != nil:
				info.Type = "network"
				info.Network = iface.Source.Network.Network
			case iface.Source.Bridge != nil:
				info.Type = "bridge"
				info.Bridge = iface.Source.Bridge.Bridge
			}
		}
		if iface.Model != nil {
			info.Model = iface.Model.Type
		}
		if iface.MAC != nil {
			info.MAC = iface.MAC.Address
		}
		cfg.Interfaces = append(cfg.Interfaces, info)
	}

	return cfg
}

// BuildDomain generates a minimal bootable domain descriptor with UEFI
// secure boot. Memory is in MiB. Disks and networks are attached by
// separate operations.
func BuildDomain(name string, vcpu int, memoryMB int) (string, error) {
	if name == "" {
		return "", fmt.Errorf("domain name is required")
	}
	if vcpu < 1 {
		return "", fmt.Errorf("vcpu count must be at least 1, got %d", vcpu)
	}
	if memoryMB < 1 {
		return "", fmt.Errorf("memory must be at least 1 MiB, got %d", memoryMB)
	}

	consolePort := uint(0)
	videoBus := uint(0x07)
	videoSlot := uint(0x01)
	videoFn := uint(0x0)
	videoDomain := uint(0)

	dom := &libvirtxml.Domain{
		Type: "kvm",
		Name: name,
		UUID: uuid.New().String(),
		Memory: &libvirtxml.DomainMemory{
			Value: uint(memoryMB),
			Unit:  "MiB",
		},
		CurrentMemory: &libvirtxml.DomainCurrentMemory{
			Value: uint(memoryMB),
			Unit:  "MiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Placement: "static",
			Value:     uint(vcpu),
		},
		OS: &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{
				Arch:    "x86_64",
				Machine: DefaultMachine,
				Type:    "hvm",
			},
			Loader: &libvirtxml.DomainLoader{
				Readonly: "yes",
				Type:     "pflash",
				Secure:   "yes",
				Path:     SecureBootLoader,
			},
			NVRam: &libvirtxml.DomainNVRam{
				NVRam: NVRAMPath(name),
			},
		},
		Features: &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
			// secure boot requires SMM
			SMM: &libvirtxml.DomainFeatureSMM{State: "on"},
		},
		Clock: &libvirtxml.DomainClock{
			Offset: "utc",
			Timer: []libvirtxml.DomainTimer{
				{Name: "rtc", TickPolicy: "catchup"},
				{Name: "pit", TickPolicy: "delay"},
				{Name: "hpet", Present: "no"},
			},
		},
		Devices: &libvirtxml.DomainDeviceList{
			Emulator: defaultEmulator,
			Consoles: []libvirtxml.DomainConsole{
				{
					Source: &libvirtxml.DomainChardevSource{
						Pty: &libvirtxml.DomainChardevSourcePty{},
					},
					Target: &libvirtxml.DomainConsoleTarget{
						Type: "serial",
						Port: &consolePort,
					},
				},
			},
			Graphics: []libvirtxml.DomainGraphic{
				{
					Spice: &libvirtxml.DomainGraphicSpice{
						AutoPort: "yes",
						Listeners: []libvirtxml.DomainGraphicListener{
							{Address: &libvirtxml.DomainGraphicListenerAddress{}},
						},
						Image: &libvirtxml.DomainGraphicSpiceImage{
							Compression: "off",
						},
						GL: &libvirtxml.DomainGraphicSpiceGL{
							Enable: "no",
						},
					},
				},
			},
			Videos: []libvirtxml.DomainVideo{
				{
					Model: libvirtxml.DomainVideoModel{
						Type:    "cirrus",
						VRam:    16384,
						Heads:   1,
						Primary: "yes",
					},
					Address: &libvirtxml.DomainAddress{
						PCI: &libvirtxml.DomainAddressPCI{
							Domain:   &videoDomain,
							Bus:      &videoBus,
							Slot:     &videoSlot,
							Function: &videoFn,
						},
					},
				},
			},
		},
	}

	xml, err := dom.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal domain XML: %w", err)
	}
	return xml, nil
}

// CloneDomain rewrites a domain descriptor for a clone: new name, fresh
// UUID, regenerated interface MACs, and file-backed disk sources mapped
// through volumeMap (original path to cloned path). Paths not in the
// map, such as shared CDROM images, are left untouched.
func CloneDomain(xml, cloneName string, volumeMap map[string]string) (string, error) {
	var dom libvirtxml.Domain
	if err := dom.Unmarshal(xml); err != nil {
		return "", fmt.Errorf("failed to parse source domain XML: %w", err)
	}

	dom.Name = cloneName
	dom.UUID = uuid.New().String()
	dom.ID = nil

	if dom.OS != nil && dom.OS.NVRam != nil {
		dom.OS.NVRam.NVRam = NVRAMPath(cloneName)
	}

	if dom.Devices != nil {
		for i := range dom.Devices.Interfaces {
			mac, err := naming.RandomMAC()
			if err != nil {
				return "", err
			}
			dom.Devices.Interfaces[i].MAC = &libvirtxml.DomainInterfaceMAC{Address: mac}
		}

		for i := range dom.Devices.Disks {
			disk := &dom.Devices.Disks[i]
			if disk.Device != "disk" || disk.Source == nil || disk.Source.File == nil {
				continue
			}
			if mapped, ok := volumeMap[disk.Source.File.File]; ok {
				disk.Source.File.File = mapped
			}
		}
	}

	out, err := dom.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal clone XML: %w", err)
	}
	return out, nil
}
