package reconcile

import (
	"fmt"
	"log"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"

	"github.com/virtadm/virtadm/internal/descriptor"
	virt "github.com/virtadm/virtadm/internal/libvirt"
	"github.com/virtadm/virtadm/internal/naming"
)

// ClonedVolume describes one volume created during a domain clone.
type ClonedVolume struct {
	Name string `json:"name" yaml:"name"`
	Pool string `json:"pool" yaml:"pool"`
	Path string `json:"path" yaml:"path"`
	Mode string `json:"mode" yaml:"mode"` // "full" or "linked"
}

// CloneResult is the outcome of a domain clone.
type CloneResult struct {
	Result `yaml:",inline"`

	Name    string         `json:"name,omitempty" yaml:"name,omitempty"`
	UUID    string         `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Volumes []ClonedVolume `json:"volumes,omitempty" yaml:"volumes,omitempty"`
}

// Cloner copies a domain together with its file-backed disks.
type Cloner struct {
	client CloneClient

	// DryRun plans changes without applying them.
	DryRun bool
}

// NewCloner returns a domain cloner.
func NewCloner(client CloneClient) *Cloner {
	return &Cloner{client: client}
}

// Clone copies the source domain to a new name. File-backed disks are
// cloned into their own pool, or into targetPool when set. Linked mode
// creates copy-on-write volumes backed by the source images and only
// applies to qcow2 disks; it cannot be combined with a target pool
// because the backing chain must stay alongside the source. CDROM
// media are shared, not cloned. Failures roll back any volumes already
// created. A failure to start the finished clone is reported in the
// message, not as an error.
func (c *Cloner) Clone(sourceName, cloneName string, linked bool, targetPool string, start bool) (CloneResult, error) {
	srcDom, err := c.client.DomainLookupByName(sourceName)
	if err != nil {
		if virt.IsNotFound(err) {
			return CloneResult{}, fmt.Errorf("source domain %s does not exist", sourceName)
		}
		return CloneResult{}, fmt.Errorf("failed to look up domain %s: %w", sourceName, err)
	}

	if _, err := c.client.DomainLookupByName(cloneName); err == nil {
		return CloneResult{Result: resultf(false, "domain %s already exists", cloneName)}, nil
	} else if !virt.IsNotFound(err) {
		return CloneResult{}, fmt.Errorf("failed to look up domain %s: %w", cloneName, err)
	}

	if linked && targetPool != "" {
		return CloneResult{}, fmt.Errorf("linked clones cannot target a different pool")
	}

	var explicitPool *libvirt.StoragePool
	if targetPool != "" {
		pool, err := c.client.StoragePoolLookupByName(targetPool)
		if err != nil {
			if virt.IsNotFound(err) {
				return CloneResult{}, fmt.Errorf("target pool %s does not exist", targetPool)
			}
			return CloneResult{}, fmt.Errorf("failed to look up pool %s: %w", targetPool, err)
		}
		active, err := c.client.StoragePoolIsActive(pool)
		if err != nil {
			return CloneResult{}, fmt.Errorf("failed to check pool %s state: %w", targetPool, err)
		}
		if active == 0 {
			return CloneResult{}, fmt.Errorf("target pool %s is not active", targetPool)
		}
		explicitPool = &pool
	}

	srcXML, err := c.client.DomainGetXMLDesc(srcDom, 0)
	if err != nil {
		return CloneResult{}, fmt.Errorf("failed to read domain %s XML: %w", sourceName, err)
	}

	if c.DryRun {
		return CloneResult{
			Result: resultf(true, "would clone domain %s to %s", sourceName, cloneName),
			Name:   cloneName,
		}, nil
	}

	var created []libvirt.StorageVol
	var cloned []ClonedVolume
	volumeMap := make(map[string]string)

	rollback := func() {
		for _, vol := range created {
			if err := c.client.StorageVolDelete(vol, 0); err != nil {
				log.Printf("warning: failed to roll back cloned volume %s: %v", vol.Name, err)
			}
		}
	}

	for _, disk := range descriptor.ParseDomain(srcXML).Disks {
		if disk.Type != "file" {
			continue
		}

		srcVol, err := c.client.StorageVolLookupByPath(disk.Source)
		if err != nil {
			rollback()
			return CloneResult{}, fmt.Errorf("failed to resolve disk %s: %w", disk.Source, err)
		}

		pool := libvirt.StoragePool{}
		if explicitPool != nil {
			pool = *explicitPool
		} else {
			pool, err = c.client.StoragePoolLookupByVolume(srcVol)
			if err != nil {
				rollback()
				return CloneResult{}, fmt.Errorf("failed to resolve pool of %s: %w", disk.Source, err)
			}
		}

		poolXML, err := c.client.StoragePoolGetXMLDesc(pool, 0)
		if err != nil {
			rollback()
			return CloneResult{}, fmt.Errorf("failed to read pool %s XML: %w", pool.Name, err)
		}
		poolPath := descriptor.ParsePool(poolXML).TargetPath

		volXML, err := c.client.StorageVolGetXMLDesc(srcVol, 0)
		if err != nil {
			rollback()
			return CloneResult{}, fmt.Errorf("failed to read volume %s XML: %w", srcVol.Name, err)
		}

		targetName := naming.CloneVolumeName(disk.Source, sourceName, cloneName)
		format := descriptor.ParseVolumeFormat(volXML)

		var newVol libvirt.StorageVol
		mode := "full"
		if linked && format == "qcow2" {
			backing := &descriptor.BackingStore{Path: disk.Source, Format: format}
			cloneXML, _, err := descriptor.CloneVolume(volXML, targetName, poolPath, backing)
			if err != nil {
				rollback()
				return CloneResult{}, err
			}
			newVol, err = c.client.StorageVolCreateXML(pool, cloneXML, 0)
			if err != nil {
				rollback()
				return CloneResult{}, fmt.Errorf("failed to create linked clone of %s: %w", disk.Source, err)
			}
			mode = "linked"
		} else {
			cloneXML, _, err := descriptor.CloneVolume(volXML, targetName, poolPath, nil)
			if err != nil {
				rollback()
				return CloneResult{}, err
			}
			newVol, err = c.client.StorageVolCreateXMLFrom(pool, cloneXML, srcVol, libvirt.StorageVolCreatePreallocMetadata)
			if err != nil {
				rollback()
				return CloneResult{}, fmt.Errorf("failed to clone volume %s: %w", disk.Source, err)
			}
		}
		created = append(created, newVol)

		newPath, err := c.client.StorageVolGetPath(newVol)
		if err != nil {
			rollback()
			return CloneResult{}, fmt.Errorf("failed to resolve cloned volume path: %w", err)
		}
		volumeMap[disk.Source] = newPath
		cloned = append(cloned, ClonedVolume{
			Name: targetName,
			Pool: pool.Name,
			Path: newPath,
			Mode: mode,
		})
	}

	cloneXML, err := descriptor.CloneDomain(srcXML, cloneName, volumeMap)
	if err != nil {
		rollback()
		return CloneResult{}, err
	}
	dom, err := c.client.DomainDefineXML(cloneXML)
	if err != nil {
		rollback()
		return CloneResult{}, fmt.Errorf("failed to define clone %s: %w", cloneName, err)
	}

	res := CloneResult{
		Result:  resultf(true, "domain %s cloned to %s", sourceName, cloneName),
		Name:    cloneName,
		UUID:    uuid.UUID(dom.UUID).String(),
		Volumes: cloned,
	}

	if start {
		if err := c.client.DomainCreate(dom); err != nil {
			res.Msg = fmt.Sprintf("domain %s cloned to %s but failed to start: %v", sourceName, cloneName, err)
		}
	}
	return res, nil
}
