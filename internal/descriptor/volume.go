package descriptor

import (
	"fmt"
	"path"

	"github.com/google/uuid"
	"libvirt.org/go/libvirtxml"
)

// DefaultVolumeMode is the permission mode written into new volume
// descriptors.
const DefaultVolumeMode = "0644"

// ParseVolumeFormat extracts the format of a volume descriptor.
// Missing or malformed descriptors report "raw".
func ParseVolumeFormat(xml string) string {
	var vol libvirtxml.StorageVolume
	if err := vol.Unmarshal(xml); err != nil {
		return "raw"
	}
	if vol.Target != nil && vol.Target.Format != nil && vol.Target.Format.Type != "" {
		return vol.Target.Format.Type
	}
	return "raw"
}

// BuildVolume generates a volume descriptor. Capacity and allocation
// are in bytes; allocation 0 requests thin provisioning.
func BuildVolume(name string, capacity, allocation uint64, format string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("volume name is required")
	}
	if capacity == 0 {
		return "", fmt.Errorf("volume capacity is required")
	}
	if format == "" {
		format = "raw"
	}

	vol := &libvirtxml.StorageVolume{
		Name: name,
		Capacity: &libvirtxml.StorageVolumeSize{
			Value: capacity,
			Unit:  "bytes",
		},
		Allocation: &libvirtxml.StorageVolumeSize{
			Value: allocation,
			Unit:  "bytes",
		},
		Target: &libvirtxml.StorageVolumeTarget{
			Format: &libvirtxml.StorageVolumeTargetFormat{Type: format},
			Permissions: &libvirtxml.StorageVolumeTargetPermissions{
				Mode: DefaultVolumeMode,
			},
		},
	}

	xml, err := vol.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal volume XML: %w", err)
	}
	return xml, nil
}

// BackingStore points a copy-on-write clone at its source image.
type BackingStore struct {
	Path   string
	Format string
}

// CloneVolume rewrites a volume descriptor for a clone: new name, fresh
// key, and target path under poolPath. A non-nil backing store makes
// the clone copy-on-write on top of the source image. It returns the
// rewritten XML and the source volume's format.
func CloneVolume(sourceXML, targetName, poolPath string, backing *BackingStore) (xml string, format string, err error) {
	var vol libvirtxml.StorageVolume
	if err := vol.Unmarshal(sourceXML); err != nil {
		return "", "", fmt.Errorf("failed to parse source volume XML: %w", err)
	}

	format = "raw"
	if vol.Target != nil && vol.Target.Format != nil && vol.Target.Format.Type != "" {
		format = vol.Target.Format.Type
	}

	vol.Name = targetName
	if vol.Key != "" {
		vol.Key = uuid.New().String()
	}
	if vol.Target != nil && vol.Target.Path != "" {
		vol.Target.Path = path.Join(poolPath, targetName)
	}
	if backing != nil {
		vol.BackingStore = &libvirtxml.StorageVolumeBackingStore{
			Path:   backing.Path,
			Format: &libvirtxml.StorageVolumeTargetFormat{Type: backing.Format},
		}
	}

	out, err := vol.Marshal()
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal clone volume XML: %w", err)
	}
	return out, format, nil
}
