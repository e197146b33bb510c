package reconcile

import (
	"fmt"
	"log"
	"net/netip"
	"strings"

	"github.com/digitalocean/go-libvirt"

	"github.com/virtadm/virtadm/internal/descriptor"
	virt "github.com/virtadm/virtadm/internal/libvirt"
)

// DHCPResult is the outcome of a DHCP reservation.
type DHCPResult struct {
	Result `yaml:",inline"`

	// Skipped reports that the network has no DHCP service to hold the
	// reservation.
	Skipped bool `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// DHCPReconciler manages static DHCP reservations on virtual networks.
type DHCPReconciler struct {
	client NetworkClient

	// DryRun plans changes without applying them.
	DryRun bool
}

// NewDHCPReconciler returns a DHCP reconciler.
func NewDHCPReconciler(client NetworkClient) *DHCPReconciler {
	return &DHCPReconciler{client: client}
}

// EnsureReservation pins an IP to a MAC on the network's DHCP service.
// The IP may carry a CIDR suffix, which is stripped. An existing entry
// for the MAC, or failing that for the IP, is modified in place; an
// entry already matching exactly is a no-op. Networks without DHCP are
// skipped with a warning rather than failing, so a fleet-wide apply
// does not stop on an isolated network.
func (r *DHCPReconciler) EnsureReservation(networkName, hostName, mac, ip string) (DHCPResult, error) {
	if !macRE.MatchString(mac) {
		return DHCPResult{}, fmt.Errorf("invalid MAC address %q", mac)
	}
	if i := strings.IndexByte(ip, '/'); i >= 0 {
		ip = ip[:i]
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return DHCPResult{}, fmt.Errorf("invalid IP address %q", ip)
	}

	net, err := r.client.NetworkLookupByName(networkName)
	if err != nil {
		if virt.IsNotFound(err) {
			return DHCPResult{}, fmt.Errorf("network %s does not exist", networkName)
		}
		return DHCPResult{}, fmt.Errorf("failed to look up network %s: %w", networkName, err)
	}

	xml, err := r.client.NetworkGetXMLDesc(net, 0)
	if err != nil {
		return DHCPResult{}, fmt.Errorf("failed to read network %s XML: %w", networkName, err)
	}
	cfg := descriptor.ParseNetwork(xml)

	if !cfg.DHCPEnabled {
		log.Printf("warning: network %s has no DHCP service, skipping reservation for %s", networkName, hostName)
		return DHCPResult{
			Result:  resultf(false, "network %s has no DHCP service, reservation skipped", networkName),
			Skipped: true,
		}, nil
	}

	if cfg.CIDR != "" {
		prefix, err := netip.ParsePrefix(cfg.CIDR)
		if err == nil && !prefix.Contains(addr) {
			return DHCPResult{}, fmt.Errorf("IP address %s is not within network %s (%s)", ip, networkName, cfg.CIDR)
		}
	}

	// match an existing entry by MAC first, then by IP
	var existing *descriptor.DHCPHost
	for i := range cfg.DHCPHosts {
		if strings.EqualFold(cfg.DHCPHosts[i].MAC, mac) {
			existing = &cfg.DHCPHosts[i]
			break
		}
	}
	if existing == nil {
		for i := range cfg.DHCPHosts {
			if cfg.DHCPHosts[i].IP == ip {
				existing = &cfg.DHCPHosts[i]
				break
			}
		}
	}

	if existing != nil && strings.EqualFold(existing.MAC, mac) && existing.IP == ip && existing.Name == hostName {
		return DHCPResult{Result: resultf(false, "reservation for %s already in place", hostName)}, nil
	}

	if r.DryRun {
		return DHCPResult{Result: resultf(true, "would reserve %s for %s on network %s", ip, hostName, networkName)}, nil
	}

	command := libvirt.NetworkUpdateCommandAddLast
	if existing != nil {
		command = libvirt.NetworkUpdateCommandModify
	}

	hostXML, err := descriptor.BuildDHCPHost(descriptor.DHCPHost{MAC: mac, IP: ip, Name: hostName})
	if err != nil {
		return DHCPResult{}, err
	}

	flags := libvirt.NetworkUpdateAffectConfig
	if active, err := r.client.NetworkIsActive(net); err == nil && active == 1 {
		flags |= libvirt.NetworkUpdateAffectLive
	}

	if err := r.client.NetworkUpdate(net, uint32(command), uint32(libvirt.NetworkSectionIPDhcpHost), -1, hostXML, flags); err != nil {
		return DHCPResult{}, fmt.Errorf("failed to update DHCP reservation on %s: %w", networkName, err)
	}

	return DHCPResult{Result: resultf(true, "reserved %s for %s on network %s", ip, hostName, networkName)}, nil
}
