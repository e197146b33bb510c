// Package config loads declarative resource documents for apply mode.
// A document file is a YAML stream; every document carries a kind and
// the desired state of one resource.
package config

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/virtadm/virtadm/internal/descriptor"
	"github.com/virtadm/virtadm/internal/perms"
)

// Document kinds.
const (
	KindDomain      = "domain"
	KindNetwork     = "network"
	KindPool        = "pool"
	KindVolume      = "volume"
	KindReservation = "dhcp_reservation"
	KindSeed        = "seed"
)

var (
	// nameRE matches names libvirt accepts for domains, networks,
	// pools and volumes.
	nameRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.+:-]*$`)

	fqdnRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)

	macAddrRE = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)
)

func validateName(what, name string) error {
	if name == "" {
		return fmt.Errorf("%s name is required", what)
	}
	if !nameRE.MatchString(name) {
		return fmt.Errorf("invalid %s name %q", what, name)
	}
	return nil
}

// DomainDoc declares a domain and, optionally, its power state.
type DomainDoc struct {
	Name      string `yaml:"name"`
	VCPUs     int    `yaml:"vcpus,omitempty"`
	MemoryMiB int    `yaml:"memory_mib,omitempty"`
	State     string `yaml:"state,omitempty"`
	Power     string `yaml:"power,omitempty"`
	Force     bool   `yaml:"force,omitempty"`
}

func (d *DomainDoc) normalize() {
	if d.State == "" {
		d.State = "present"
	}
	if d.VCPUs == 0 {
		d.VCPUs = 1
	}
	if d.MemoryMiB == 0 {
		d.MemoryMiB = 1024
	}
}

// Validate checks the document for errors that need no hypervisor.
func (d *DomainDoc) Validate() error {
	if err := validateName("domain", d.Name); err != nil {
		return err
	}
	switch d.State {
	case "present", "absent":
	default:
		return fmt.Errorf("invalid state %q (want present or absent)", d.State)
	}
	switch d.Power {
	case "", "running", "poweroff", "reboot":
	default:
		return fmt.Errorf("invalid power %q (want running, poweroff or reboot)", d.Power)
	}
	if d.State == "absent" && d.Power != "" {
		return fmt.Errorf("power cannot be combined with state absent")
	}
	if d.VCPUs < 1 {
		return fmt.Errorf("vcpus must be at least 1")
	}
	if d.MemoryMiB < 1 {
		return fmt.Errorf("memory_mib must be at least 1")
	}
	return nil
}

// NetworkDoc declares a virtual network.
type NetworkDoc struct {
	descriptor.NetworkSpec `yaml:",inline"`

	State     string `yaml:"state,omitempty"`
	Autostart *bool  `yaml:"autostart,omitempty"`
}

func (d *NetworkDoc) normalize() {
	if d.State == "" {
		d.State = "present"
	}
	if d.Type == "" {
		d.Type = descriptor.NetworkTypeNAT
	}
}

// Validate checks the document for errors that need no hypervisor.
func (d *NetworkDoc) Validate() error {
	if err := validateName("network", d.Name); err != nil {
		return err
	}
	switch d.Type {
	case descriptor.NetworkTypeNAT, descriptor.NetworkTypeRoute, descriptor.NetworkTypeIsolated:
	default:
		return fmt.Errorf("invalid type %q (want nat, route or isolated)", d.Type)
	}
	switch d.State {
	case "present", "absent", "active", "inactive":
	default:
		return fmt.Errorf("invalid state %q (want present, absent, active or inactive)", d.State)
	}
	if d.CIDR != "" {
		prefix, err := netip.ParsePrefix(d.CIDR)
		if err != nil || !prefix.Addr().Is4() {
			return fmt.Errorf("invalid cidr %q", d.CIDR)
		}
	}
	return nil
}

// PoolDoc declares a storage pool.
type PoolDoc struct {
	descriptor.PoolSpec `yaml:",inline"`

	State     string `yaml:"state,omitempty"`
	Autostart *bool  `yaml:"autostart,omitempty"`
}

func (d *PoolDoc) normalize() {
	if d.State == "" {
		d.State = "present"
	}
	if d.Type == "" {
		d.Type = "dir"
	}
}

// Validate checks the document for errors that need no hypervisor.
func (d *PoolDoc) Validate() error {
	if err := validateName("pool", d.Name); err != nil {
		return err
	}
	switch d.State {
	case "present", "absent", "active", "inactive":
	default:
		return fmt.Errorf("invalid state %q (want present, absent, active or inactive)", d.State)
	}
	if d.State != "absent" && d.TargetPath == "" {
		return fmt.Errorf("target_path is required")
	}
	return nil
}

// VolumeDoc declares a storage volume. A source path turns the
// document into an import; state resized grows an existing volume.
type VolumeDoc struct {
	Pool        string     `yaml:"pool"`
	Name        string     `yaml:"name"`
	Capacity    string     `yaml:"capacity,omitempty"`
	Format      string     `yaml:"format,omitempty"`
	Source      string     `yaml:"source,omitempty"`
	State       string     `yaml:"state,omitempty"`
	Permissions perms.Spec `yaml:"permissions,omitempty"`
}

func (d *VolumeDoc) normalize() {
	if d.State == "" {
		d.State = "present"
	}
	if d.Format == "" {
		d.Format = "qcow2"
	}
}

// Validate checks the document for errors that need no hypervisor.
func (d *VolumeDoc) Validate() error {
	if err := validateName("pool", d.Pool); err != nil {
		return err
	}
	if d.Name == "" {
		return fmt.Errorf("volume name is required")
	}
	switch d.State {
	case "present", "absent", "resized":
	default:
		return fmt.Errorf("invalid state %q (want present, absent or resized)", d.State)
	}
	if d.Source != "" && d.State != "present" {
		return fmt.Errorf("source is only valid with state present")
	}
	if d.State == "present" && d.Source == "" && d.Capacity == "" {
		return fmt.Errorf("capacity is required")
	}
	if d.State == "resized" && d.Capacity == "" {
		return fmt.Errorf("capacity is required to resize")
	}
	return nil
}

// ReservationDoc declares a static DHCP reservation on a network.
type ReservationDoc struct {
	Network string `yaml:"network"`
	Host    string `yaml:"host"`
	MAC     string `yaml:"mac"`
	IP      string `yaml:"ip"`
}

func (d *ReservationDoc) normalize() {
	d.MAC = strings.ToLower(d.MAC)
}

// Validate checks the document for errors that need no hypervisor.
// Subnet membership is checked against the live network later.
func (d *ReservationDoc) Validate() error {
	if err := validateName("network", d.Network); err != nil {
		return err
	}
	if !macAddrRE.MatchString(d.MAC) {
		return fmt.Errorf("invalid mac %q", d.MAC)
	}
	if d.IP == "" {
		return fmt.Errorf("ip is required")
	}
	return nil
}

// SeedNetwork is one static interface in a seed document.
type SeedNetwork struct {
	MACAddress   string   `yaml:"mac_address"`
	Address      string   `yaml:"address"`
	Gateway      string   `yaml:"gateway,omitempty"`
	DNSServers   []string `yaml:"dns_servers,omitempty"`
	DefaultRoute bool     `yaml:"default_route,omitempty"`
}

// SeedDoc declares a cloud-init seed ISO to be imported as a volume.
type SeedDoc struct {
	Pool             string        `yaml:"pool"`
	Volume           string        `yaml:"volume,omitempty"`
	FQDN             string        `yaml:"fqdn"`
	SSHKeys          []string      `yaml:"ssh_keys,omitempty"`
	RootPasswordHash string        `yaml:"root_password_hash,omitempty"`
	SSHPasswordAuth  *bool         `yaml:"ssh_password_auth,omitempty"`
	Networks         []SeedNetwork `yaml:"networks,omitempty"`
}

// Hostname is the first label of the FQDN.
func (d *SeedDoc) Hostname() string {
	return strings.SplitN(d.FQDN, ".", 2)[0]
}

func (d *SeedDoc) normalize() {
	d.FQDN = strings.ToLower(strings.TrimSpace(d.FQDN))
	if d.Volume == "" && d.FQDN != "" {
		d.Volume = d.Hostname() + "-seed.iso"
	}
	for i := range d.Networks {
		d.Networks[i].MACAddress = strings.ToLower(d.Networks[i].MACAddress)
	}
}

// Validate checks the document for errors that need no hypervisor.
func (d *SeedDoc) Validate() error {
	if err := validateName("pool", d.Pool); err != nil {
		return err
	}
	if d.FQDN == "" {
		return fmt.Errorf("fqdn is required")
	}
	if !fqdnRE.MatchString(d.FQDN) {
		return fmt.Errorf("invalid fqdn %q", d.FQDN)
	}
	for i, key := range d.SSHKeys {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			return fmt.Errorf("invalid ssh key at index %d: %w", i, err)
		}
	}
	if d.RootPasswordHash != "" {
		// crypt(3) hashes look like $<id>$[...]$<salt>$<digest>
		if !strings.HasPrefix(d.RootPasswordHash, "$") || strings.Count(d.RootPasswordHash, "$") < 3 {
			return fmt.Errorf("root_password_hash is not a crypt hash (use e.g. openssl passwd -6)")
		}
	}
	for i, net := range d.Networks {
		if !macAddrRE.MatchString(net.MACAddress) {
			return fmt.Errorf("network %d: invalid mac_address %q", i, net.MACAddress)
		}
		prefix, err := netip.ParsePrefix(net.Address)
		if err != nil || !prefix.Addr().Is4() {
			return fmt.Errorf("network %d: address %q is not an IPv4 CIDR", i, net.Address)
		}
		if net.DefaultRoute && net.Gateway == "" {
			return fmt.Errorf("network %d: default_route requires a gateway", i)
		}
		if net.Gateway != "" {
			if _, err := netip.ParseAddr(net.Gateway); err != nil {
				return fmt.Errorf("network %d: invalid gateway %q", i, net.Gateway)
			}
		}
		for _, dns := range net.DNSServers {
			if _, err := netip.ParseAddr(dns); err != nil {
				return fmt.Errorf("network %d: invalid dns server %q", i, dns)
			}
		}
	}
	return nil
}
