package descriptor

import (
	"fmt"

	"libvirt.org/go/libvirtxml"
)

// PoolPermissions is the target permissions block of a pool or volume.
type PoolPermissions struct {
	Mode  string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Owner string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Group string `json:"group,omitempty" yaml:"group,omitempty"`
}

func (p PoolPermissions) empty() bool {
	return p.Mode == "" && p.Owner == "" && p.Group == ""
}

// PoolSpec is the desired shape of a storage pool descriptor.
type PoolSpec struct {
	Name         string          `json:"name" yaml:"name"`
	Type         string          `json:"type" yaml:"type"`
	TargetPath   string          `json:"target_path" yaml:"target_path"`
	SourceDevice string          `json:"source_device,omitempty" yaml:"source_device,omitempty"`
	SourceHost   string          `json:"source_host,omitempty" yaml:"source_host,omitempty"`
	SourceFormat string          `json:"source_format,omitempty" yaml:"source_format,omitempty"`
	Permissions  PoolPermissions `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// PoolConfig is the parsed view of a storage pool descriptor.
type PoolConfig struct {
	Name         string          `json:"name" yaml:"name"`
	Type         string          `json:"type" yaml:"type"`
	TargetPath   string          `json:"target_path" yaml:"target_path"`
	Permissions  PoolPermissions `json:"permissions" yaml:"permissions"`
	SourceDevice string          `json:"source_device,omitempty" yaml:"source_device,omitempty"`
	SourceHost   string          `json:"source_host,omitempty" yaml:"source_host,omitempty"`
	SourceFormat string          `json:"source_format,omitempty" yaml:"source_format,omitempty"`
}

// ParsePool extracts the managed subset of a pool descriptor.
// Malformed XML yields an empty config.
func ParsePool(xml string) PoolConfig {
	var pool libvirtxml.StoragePool
	if err := pool.Unmarshal(xml); err != nil {
		return PoolConfig{}
	}

	cfg := PoolConfig{
		Name: pool.Name,
		Type: pool.Type,
	}

	if pool.Target != nil {
		cfg.TargetPath = pool.Target.Path
		if perms := pool.Target.Permissions; perms != nil {
			cfg.Permissions = PoolPermissions{
				Mode:  perms.Mode,
				Owner: perms.Owner,
				Group: perms.Group,
			}
		}
	}

	if pool.Source != nil {
		if len(pool.Source.Device) > 0 {
			cfg.SourceDevice = pool.Source.Device[0].Path
		}
		if len(pool.Source.Host) > 0 {
			cfg.SourceHost = pool.Source.Host[0].Name
		}
		if pool.Source.Format != nil {
			cfg.SourceFormat = pool.Source.Format.Type
		}
	}

	return cfg
}

// BuildPool generates a storage pool descriptor from spec.
func BuildPool(spec PoolSpec) (string, error) {
	if spec.Name == "" {
		return "", fmt.Errorf("pool name is required")
	}
	if spec.Type == "" {
		return "", fmt.Errorf("pool type is required")
	}
	if spec.TargetPath == "" {
		return "", fmt.Errorf("pool target path is required")
	}

	pool := &libvirtxml.StoragePool{
		Type: spec.Type,
		Name: spec.Name,
		Target: &libvirtxml.StoragePoolTarget{
			Path: spec.TargetPath,
		},
	}

	if spec.SourceDevice != "" || spec.SourceHost != "" || spec.SourceFormat != "" {
		source := &libvirtxml.StoragePoolSource{}
		if spec.SourceDevice != "" {
			source.Device = []libvirtxml.StoragePoolSourceDevice{{Path: spec.SourceDevice}}
		}
		if spec.SourceHost != "" {
			source.Host = []libvirtxml.StoragePoolSourceHost{{Name: spec.SourceHost}}
		}
		if spec.SourceFormat != "" {
			source.Format = &libvirtxml.StoragePoolSourceFormat{Type: spec.SourceFormat}
		}
		pool.Source = source
	}

	if !spec.Permissions.empty() {
		pool.Target.Permissions = &libvirtxml.StoragePoolTargetPermissions{
			Mode:  spec.Permissions.Mode,
			Owner: spec.Permissions.Owner,
			Group: spec.Permissions.Group,
		}
	}

	xml, err := pool.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal pool XML: %w", err)
	}
	return xml, nil
}
