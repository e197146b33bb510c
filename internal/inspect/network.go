package inspect

import (
	"fmt"
	"net/netip"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"

	"github.com/virtadm/virtadm/internal/descriptor"
	virt "github.com/virtadm/virtadm/internal/libvirt"
)

// NetworkInfo is the inspection record for a network.
type NetworkInfo struct {
	Name       string                   `json:"name" yaml:"name"`
	UUID       string                   `json:"uuid" yaml:"uuid"`
	Active     bool                     `json:"active" yaml:"active"`
	Persistent bool                     `json:"persistent" yaml:"persistent"`
	Autostart  bool                     `json:"autostart" yaml:"autostart"`
	Config     descriptor.NetworkConfig `json:"config" yaml:"config"`
}

// NetworkInspector answers read-only queries about networks.
type NetworkInspector struct {
	client NetworkClient
}

// NewNetworkInspector creates a network inspector.
func NewNetworkInspector(client NetworkClient) *NetworkInspector {
	return &NetworkInspector{client: client}
}

// Info returns the record for a network. The second return is false
// when the network does not exist.
func (i *NetworkInspector) Info(name string) (NetworkInfo, bool, error) {
	net, err := i.client.NetworkLookupByName(name)
	if err != nil {
		if virt.IsNotFound(err) {
			return NetworkInfo{}, false, nil
		}
		return NetworkInfo{}, false, fmt.Errorf("failed to look up network %s: %w", name, err)
	}

	info := NetworkInfo{
		Name: name,
		UUID: uuid.UUID(net.UUID).String(),
	}

	if active, err := i.client.NetworkIsActive(net); err == nil {
		info.Active = active == 1
	}
	if persistent, err := i.client.NetworkIsPersistent(net); err == nil {
		info.Persistent = persistent == 1
	}
	if autostart, err := i.client.NetworkGetAutostart(net); err == nil {
		info.Autostart = autostart == 1
	}

	if xml, err := i.client.NetworkGetXMLDesc(net, 0); err == nil {
		info.Config = descriptor.ParseNetwork(xml)
	}

	return info, true, nil
}

// Exists reports whether a network exists.
func (i *NetworkInspector) Exists(name string) (bool, error) {
	_, found, err := i.Info(name)
	return found, err
}

// ByPattern returns records for all networks whose names match a shell
// glob pattern.
func (i *NetworkInspector) ByPattern(pattern string) ([]NetworkInfo, error) {
	networks, _, err := i.client.ConnectListAllNetworks(1,
		libvirt.ConnectListNetworksActive|libvirt.ConnectListNetworksInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}

	names := make([]string, 0, len(networks))
	for _, net := range networks {
		names = append(names, net.Name)
	}
	matched, err := matchNames(names, pattern)
	if err != nil {
		return nil, err
	}

	infos := make([]NetworkInfo, 0, len(matched))
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

// ByCIDR returns the network whose subnet matches cidr exactly. The
// second return is false when no network matches.
func (i *NetworkInspector) ByCIDR(cidr string) (NetworkInfo, bool, error) {
	target, err := netip.ParsePrefix(cidr)
	if err != nil {
		return NetworkInfo{}, false, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	target = target.Masked()

	infos, err := i.ByPattern("*")
	if err != nil {
		return NetworkInfo{}, false, err
	}

	for _, info := range infos {
		if info.Config.CIDR == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(info.Config.CIDR)
		if err != nil {
			continue
		}
		if prefix.Masked() == target {
			return info, true, nil
		}
	}
	return NetworkInfo{}, false, nil
}
