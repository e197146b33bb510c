package inspect

import (
	"fmt"
)

// ReservedIP resolves the DHCP reservation for a domain on a network:
// the domain's interface on that network provides the MAC, and the
// network's DHCP host entries provide the IP. The second return is
// false when the domain has no interface on the network or the network
// holds no reservation for the MAC.
func ReservedIP(domains *DomainInspector, networks *NetworkInspector, domainName, networkName string) (string, bool, error) {
	domInfo, found, err := domains.Info(domainName)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, fmt.Errorf("domain %s not found", domainName)
	}

	mac := ""
	for _, iface := range domInfo.Interfaces {
		if iface.Network == networkName {
			mac = iface.MAC
			break
		}
	}
	if mac == "" {
		return "", false, nil
	}

	netInfo, found, err := networks.Info(networkName)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, fmt.Errorf("network %s not found", networkName)
	}

	for _, host := range netInfo.Config.DHCPHosts {
		if host.MAC == mac {
			return host.IP, true, nil
		}
	}
	return "", false, nil
}
