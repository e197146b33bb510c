package reconcile

import (
	"fmt"
	"strings"

	"github.com/digitalocean/go-libvirt"

	virt "github.com/virtadm/virtadm/internal/libvirt"
)

// RefreshResult is the outcome of a refresh or recycle run.
type RefreshResult struct {
	Result `yaml:",inline"`

	// Refreshed lists the resources that were acted on.
	Refreshed []string `json:"refreshed,omitempty" yaml:"refreshed,omitempty"`
}

// Refresher rescans storage pools and recycles networks.
type Refresher struct {
	client RefreshClient

	// DryRun plans changes without applying them.
	DryRun bool
}

// NewRefresher returns a refresher.
func NewRefresher(client RefreshClient) *Refresher {
	return &Refresher{client: client}
}

// RefreshPools rescans the contents of one active pool, or of every
// active pool when name is empty. Inactive pools are left alone.
func (r *Refresher) RefreshPools(name string) (RefreshResult, error) {
	var pools []libvirt.StoragePool
	if name != "" {
		pool, err := r.client.StoragePoolLookupByName(name)
		if err != nil {
			if virt.IsNotFound(err) {
				return RefreshResult{}, fmt.Errorf("storage pool %s does not exist", name)
			}
			return RefreshResult{}, fmt.Errorf("failed to look up pool %s: %w", name, err)
		}
		pools = []libvirt.StoragePool{pool}
	} else {
		var err error
		pools, _, err = r.client.ConnectListAllStoragePools(1, 0)
		if err != nil {
			return RefreshResult{}, fmt.Errorf("failed to list storage pools: %w", err)
		}
	}

	res := RefreshResult{}
	var failures []string
	for _, pool := range pools {
		active, err := r.client.StoragePoolIsActive(pool)
		if err != nil || active == 0 {
			continue
		}
		if !r.DryRun {
			if err := r.client.StoragePoolRefresh(pool, 0); err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", pool.Name, err))
				continue
			}
		}
		res.Refreshed = append(res.Refreshed, pool.Name)
	}

	res.Changed = len(res.Refreshed) > 0
	res.Msg = fmt.Sprintf("%d pools refreshed", len(res.Refreshed))
	if len(failures) > 0 {
		return res, fmt.Errorf("failed to refresh %d pools: %s", len(failures), strings.Join(failures, "; "))
	}
	return res, nil
}

// RecycleNetworks restarts one active network, or every active network
// when name is empty, so configuration updates that only apply on
// start take effect. Inactive networks are left alone.
func (r *Refresher) RecycleNetworks(name string) (RefreshResult, error) {
	var nets []libvirt.Network
	if name != "" {
		net, err := r.client.NetworkLookupByName(name)
		if err != nil {
			if virt.IsNotFound(err) {
				return RefreshResult{}, fmt.Errorf("network %s does not exist", name)
			}
			return RefreshResult{}, fmt.Errorf("failed to look up network %s: %w", name, err)
		}
		nets = []libvirt.Network{net}
	} else {
		var err error
		nets, _, err = r.client.ConnectListAllNetworks(1, 0)
		if err != nil {
			return RefreshResult{}, fmt.Errorf("failed to list networks: %w", err)
		}
	}

	res := RefreshResult{}
	var failures []string
	for _, net := range nets {
		active, err := r.client.NetworkIsActive(net)
		if err != nil || active == 0 {
			continue
		}
		if !r.DryRun {
			if err := r.client.NetworkDestroy(net); err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", net.Name, err))
				continue
			}
			if err := r.client.NetworkCreate(net); err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", net.Name, err))
				continue
			}
		}
		res.Refreshed = append(res.Refreshed, net.Name)
	}

	res.Changed = len(res.Refreshed) > 0
	res.Msg = fmt.Sprintf("%d networks recycled", len(res.Refreshed))
	if len(failures) > 0 {
		return res, fmt.Errorf("failed to recycle %d networks: %s", len(failures), strings.Join(failures, "; "))
	}
	return res, nil
}
