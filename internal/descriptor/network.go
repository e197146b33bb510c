package descriptor

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"

	"libvirt.org/go/libvirtxml"
)

// Network types accepted by BuildNetwork.
const (
	NetworkTypeNAT      = "nat"
	NetworkTypeRoute    = "route"
	NetworkTypeIsolated = "isolated"
)

// DHCPRange is a dynamic address range served by a network.
type DHCPRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// DHCPHost is a static DHCP reservation.
type DHCPHost struct {
	MAC  string `json:"mac" yaml:"mac"`
	IP   string `json:"ip" yaml:"ip"`
	Name string `json:"name" yaml:"name"`
}

// DNSHost is a static DNS entry served by a network.
type DNSHost struct {
	IP        string   `json:"ip" yaml:"ip"`
	Hostnames []string `json:"hostnames" yaml:"hostnames"`
}

// DNSSpec configures the network's DNS service.
type DNSSpec struct {
	Enabled    bool      `json:"enabled" yaml:"enabled"`
	Forwarders []string  `json:"forwarders,omitempty" yaml:"forwarders,omitempty"`
	Hosts      []DNSHost `json:"hosts,omitempty" yaml:"hosts,omitempty"`
}

// DHCPSpec configures the network's DHCP service.
type DHCPSpec struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Start   string `json:"start,omitempty" yaml:"start,omitempty"`
	End     string `json:"end,omitempty" yaml:"end,omitempty"`
}

// NetworkSpec is the desired shape of a network descriptor.
// A nil DHCP or DNS block means enabled with defaults.
type NetworkSpec struct {
	Name   string    `json:"name" yaml:"name"`
	Type   string    `json:"type" yaml:"type"`
	Bridge string    `json:"bridge,omitempty" yaml:"bridge,omitempty"`
	CIDR   string    `json:"cidr,omitempty" yaml:"cidr,omitempty"`
	DHCP   *DHCPSpec `json:"dhcp,omitempty" yaml:"dhcp,omitempty"`
	DNS    *DNSSpec  `json:"dns,omitempty" yaml:"dns,omitempty"`
	Domain string    `json:"domain,omitempty" yaml:"domain,omitempty"`
	MTU    int       `json:"mtu,omitempty" yaml:"mtu,omitempty"`
	Delay  int       `json:"delay,omitempty" yaml:"delay,omitempty"`
	STP    bool      `json:"stp" yaml:"stp"`
}

// DHCPEnabled reports whether the spec asks for a DHCP service.
func (s *NetworkSpec) DHCPEnabled() bool {
	if s.DHCP == nil {
		return true
	}
	return s.DHCP.Enabled
}

// NetworkConfig is the parsed view of a network descriptor.
type NetworkConfig struct {
	Name        string     `json:"name" yaml:"name"`
	Bridge      string     `json:"bridge" yaml:"bridge"`
	BridgeSTP   bool       `json:"bridge_stp" yaml:"bridge_stp"`
	BridgeDelay int        `json:"bridge_delay" yaml:"bridge_delay"`
	Address     string     `json:"address" yaml:"address"`
	Netmask     string     `json:"netmask" yaml:"netmask"`
	CIDR        string     `json:"cidr" yaml:"cidr"`
	DHCPEnabled bool       `json:"dhcp_enabled" yaml:"dhcp_enabled"`
	DHCPRange   *DHCPRange `json:"dhcp_range,omitempty" yaml:"dhcp_range,omitempty"`
	DHCPHosts   []DHCPHost `json:"dhcp_hosts,omitempty" yaml:"dhcp_hosts,omitempty"`
	DNS         *DNSSpec   `json:"dns,omitempty" yaml:"dns,omitempty"`
}

// ParseNetwork extracts the managed subset of a network descriptor.
// Malformed XML yields an empty config.
func ParseNetwork(xml string) NetworkConfig {
	var net libvirtxml.Network
	if err := net.Unmarshal(xml); err != nil {
		return NetworkConfig{}
	}

	cfg := NetworkConfig{Name: net.Name}

	if net.Bridge != nil {
		cfg.Bridge = net.Bridge.Name
		cfg.BridgeSTP = net.Bridge.STP != "off"
		if d, err := strconv.Atoi(net.Bridge.Delay); err == nil {
			cfg.BridgeDelay = d
		}
	}

	for _, ip := range net.IPs {
		if ip.Family == "ipv6" {
			continue
		}
		cfg.Address = ip.Address
		cfg.Netmask = ip.Netmask
		if cidr, ok := cidrFromAddrMask(ip.Address, ip.Netmask); ok {
			cfg.CIDR = cidr
		}
		if ip.DHCP != nil {
			cfg.DHCPEnabled = true
			if len(ip.DHCP.Ranges) > 0 {
				cfg.DHCPRange = &DHCPRange{
					Start: ip.DHCP.Ranges[0].Start,
					End:   ip.DHCP.Ranges[0].End,
				}
			}
			for _, host := range ip.DHCP.Hosts {
				cfg.DHCPHosts = append(cfg.DHCPHosts, DHCPHost{
					MAC:  host.MAC,
					IP:   host.IP,
					Name: host.Name,
				})
			}
		}
		break
	}

	if net.DNS != nil {
		dns := &DNSSpec{Enabled: true}
		for _, fwd := range net.DNS.Forwarders {
			dns.Forwarders = append(dns.Forwarders, fwd.Addr)
		}
		for _, host := range net.DNS.Host {
			entry := DNSHost{IP: host.IP}
			for _, hn := range host.Hostnames {
				entry.Hostnames = append(entry.Hostnames, hn.Hostname)
			}
			dns.Hosts = append(dns.Hosts, entry)
		}
		cfg.DNS = dns
	}

	return cfg
}

// BuildNetwork generates a network descriptor from spec. The gateway
// address is the first host of the CIDR; when DHCP is enabled without
// an explicit range it defaults to [network+10, broadcast-1].
func BuildNetwork(spec NetworkSpec) (string, error) {
	if spec.Name == "" {
		return "", fmt.Errorf("network name is required")
	}
	switch spec.Type {
	case NetworkTypeNAT, NetworkTypeRoute, NetworkTypeIsolated:
	default:
		return "", fmt.Errorf("invalid network type %q", spec.Type)
	}

	net := &libvirtxml.Network{
		Name: spec.Name,
		Bridge: &libvirtxml.NetworkBridge{
			Name:  spec.Bridge,
			STP:   boolOnOff(spec.STP),
			Delay: strconv.Itoa(spec.Delay),
		},
	}

	if spec.MTU > 0 {
		net.MTU = &libvirtxml.NetworkMTU{Size: uint(spec.MTU)}
	}
	if spec.Domain != "" {
		net.Domain = &libvirtxml.NetworkDomain{Name: spec.Domain}
	}
	if spec.Type != NetworkTypeIsolated {
		net.Forward = &libvirtxml.NetworkForward{Mode: spec.Type}
	}

	if spec.CIDR != "" {
		prefix, err := netip.ParsePrefix(spec.CIDR)
		if err != nil {
			return "", fmt.Errorf("invalid CIDR %q: %w", spec.CIDR, err)
		}
		if !prefix.Addr().Is4() {
			return "", fmt.Errorf("invalid CIDR %q: only IPv4 networks are supported", spec.CIDR)
		}
		prefix = prefix.Masked()

		ip := libvirtxml.NetworkIP{
			Address: addrPlus(prefix.Addr(), 1).String(),
			Netmask: netmaskString(prefix.Bits()),
		}

		if spec.DHCPEnabled() {
			start := ""
			end := ""
			if spec.DHCP != nil {
				start = spec.DHCP.Start
				end = spec.DHCP.End
			}
			if start == "" {
				start = addrPlus(prefix.Addr(), 10).String()
			}
			if end == "" {
				end = addrMinus(broadcastAddr(prefix), 1).String()
			}
			ip.DHCP = &libvirtxml.NetworkDHCP{
				Ranges: []libvirtxml.NetworkDHCPRange{
					{Start: start, End: end},
				},
			}
		}

		net.IPs = []libvirtxml.NetworkIP{ip}
	}

	if spec.DNS == nil || spec.DNS.Enabled {
		dns := &libvirtxml.NetworkDNS{}
		if spec.DNS != nil {
			for _, fwd := range spec.DNS.Forwarders {
				dns.Forwarders = append(dns.Forwarders, libvirtxml.NetworkDNSForwarder{Addr: fwd})
			}
			for _, host := range spec.DNS.Hosts {
				entry := libvirtxml.NetworkDNSHost{IP: host.IP}
				for _, hn := range host.Hostnames {
					entry.Hostnames = append(entry.Hostnames, libvirtxml.NetworkDNSHostHostname{Hostname: hn})
				}
				dns.Host = append(dns.Host, entry)
			}
		}
		net.DNS = dns
	}

	xml, err := net.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal network XML: %w", err)
	}
	return xml, nil
}

// BuildDHCPHost generates the host element for a DHCP reservation, as
// consumed by virNetworkUpdate on the ip-dhcp-host section.
func BuildDHCPHost(host DHCPHost) (string, error) {
	if host.MAC == "" || host.IP == "" {
		return "", fmt.Errorf("DHCP host requires both mac and ip")
	}
	h := libvirtxml.NetworkDHCPHost{
		MAC:  host.MAC,
		IP:   host.IP,
		Name: host.Name,
	}
	xml, err := h.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal DHCP host XML: %w", err)
	}
	return xml, nil
}

func boolOnOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func cidrFromAddrMask(address, netmask string) (string, bool) {
	addr, err := netip.ParseAddr(address)
	if err != nil || !addr.Is4() {
		return "", false
	}
	mask, err := netip.ParseAddr(netmask)
	if err != nil || !mask.Is4() {
		return "", false
	}
	m := mask.As4()
	bits := 0
	v := binary.BigEndian.Uint32(m[:])
	for v&0x80000000 != 0 {
		bits++
		v <<= 1
	}
	if v != 0 {
		return "", false
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "", false
	}
	return prefix.String(), true
}

func addrPlus(addr netip.Addr, n uint32) netip.Addr {
	b := addr.As4()
	binary.BigEndian.PutUint32(b[:], binary.BigEndian.Uint32(b[:])+n)
	return netip.AddrFrom4(b)
}

func addrMinus(addr netip.Addr, n uint32) netip.Addr {
	b := addr.As4()
	binary.BigEndian.PutUint32(b[:], binary.BigEndian.Uint32(b[:])-n)
	return netip.AddrFrom4(b)
}

func broadcastAddr(prefix netip.Prefix) netip.Addr {
	b := prefix.Masked().Addr().As4()
	host := ^uint32(0) >> prefix.Bits()
	binary.BigEndian.PutUint32(b[:], binary.BigEndian.Uint32(b[:])|host)
	return netip.AddrFrom4(b)
}

func netmaskString(bits int) string {
	v := uint32(0)
	if bits > 0 {
		v = ^uint32(0) << (32 - bits)
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b).String()
}
