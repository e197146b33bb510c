// Package seed generates cloud-init NoCloud seed images. The generated
// ISO carries user-data, meta-data and network-config and is imported
// into a storage pool so it can attach to a domain as a CDROM.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package seed

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/virtadm/virtadm/internal/config"
)

// userData is the cloud-config payload, marshaled to YAML behind the
// "#cloud-config" header.
type userData struct {
	Hostname          string    `yaml:"hostname"`
	FQDN              string    `yaml:"fqdn"`
	SSHAuthorizedKeys []string  `yaml:"ssh_authorized_keys,omitempty"`
	Chpasswd          *chpasswd `yaml:"chpasswd,omitempty"`
	SSHPasswordAuth   bool      `yaml:"ssh_pwauth"`
}

type chpasswd struct {
	Expire bool   `yaml:"expire"`
	List   string `yaml:"list"`
}

type metaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// networkConfig is the netplan v2 layout cloud-init consumes.
type networkConfig struct {
	Version   int                 `yaml:"version"`
	Ethernets map[string]ethernet `yaml:"ethernets"`
}

type ethernet struct {
	Match       match        `yaml:"match"`
	Addresses   []string     `yaml:"addresses"`
	Routes      []route      `yaml:"routes,omitempty"`
	Nameservers *nameservers `yaml:"nameservers,omitempty"`
}

type match struct {
	MACAddress string `yaml:"macaddress"`
}

type route struct {
	To  string `yaml:"to"`
	Via string `yaml:"via"`
}

type nameservers struct {
	Addresses []string `yaml:"addresses"`
}

// BuildUserData renders the user-data file for a seed document.
func BuildUserData(doc *config.SeedDoc) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("seed document cannot be nil")
	}

	data := userData{
		Hostname:          doc.Hostname(),
		FQDN:              doc.FQDN,
		SSHAuthorizedKeys: doc.SSHKeys,
	}

	if doc.RootPasswordHash != "" {
		data.Chpasswd = &chpasswd{
			Expire: false,
			List:   fmt.Sprintf("root:%s", doc.RootPasswordHash),
		}
	}
	if doc.SSHPasswordAuth != nil {
		data.SSHPasswordAuth = *doc.SSHPasswordAuth
	}

	out, err := yaml.Marshal(&data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data: %w", err)
	}
	return "#cloud-config\n" + string(out), nil
}

// BuildMetaData renders the meta-data file. The instance id is the
// hostname, so recreating a domain under the same name re-runs
// cloud-init.
func BuildMetaData(doc *config.SeedDoc) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("seed document cannot be nil")
	}

	out, err := yaml.Marshal(&metaData{
		InstanceID:    doc.Hostname(),
		LocalHostname: doc.Hostname(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-data: %w", err)
	}
	return string(out), nil
}

// BuildNetworkConfig renders the network-config file. A document
// without networks returns an empty string; the file is omitted and
// the guest falls back to DHCP.
func BuildNetworkConfig(doc *config.SeedDoc) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("seed document cannot be nil")
	}
	if len(doc.Networks) == 0 {
		return "", nil
	}

	cfg := networkConfig{
		Version:   2,
		Ethernets: make(map[string]ethernet),
	}

	for i, net := range doc.Networks {
		eth := ethernet{
			Match:     match{MACAddress: net.MACAddress},
			Addresses: []string{net.Address},
		}
		if net.DefaultRoute {
			eth.Routes = []route{{To: "0.0.0.0/0", Via: net.Gateway}}
		}
		if len(net.DNSServers) > 0 {
			eth.Nameservers = &nameservers{Addresses: net.DNSServers}
		}
		cfg.Ethernets[fmt.Sprintf("eth%d", i)] = eth
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal network-config: %w", err)
	}
	return string(out), nil
}
