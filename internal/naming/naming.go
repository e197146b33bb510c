// Package naming provides naming conventions for libvirt resources.
// This includes guest device name allocation, pool/volume key parsing,
// clone volume naming, and MAC address generation.
package naming

import (
	"crypto/rand"
	"fmt"
	"path"
	"strings"
)

// QEMUMACPrefix is the locally administered OUI QEMU/KVM reserves for
// guest interfaces.
const QEMUMACPrefix = "52:54:00"

// RandomMAC generates a MAC address with the QEMU OUI and three random
// low octets.
func RandomMAC() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate MAC address: %w", err)
	}
	return fmt.Sprintf("%s:%02x:%02x:%02x", QEMUMACPrefix, buf[0], buf[1], buf[2]), nil
}

// NextDeviceName returns the lowest unused guest device name for the
// given prefix ("vd" or "sd"). Names already in use are compared on
// their full string, so "vda1"-style partitions never collide with
// whole-disk targets.
//
// Example: prefix "vd", used ["vda", "vdc"] → "vdb"
func NextDeviceName(prefix string, used []string) (string, error) {
	inUse := make(map[string]bool, len(used))
	for _, name := range used {
		inUse[name] = true
	}

	for c := 'a'; c <= 'z'; c++ {
		candidate := fmt.Sprintf("%s%c", prefix, c)
		if !inUse[candidate] {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no free device name with prefix %q", prefix)
}

// ParseVolumeKey splits a "pool/volume" key into its parts.
func ParseVolumeKey(key string) (pool, volume string, err error) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid volume key %q: expected pool/volume", key)
	}
	return parts[0], parts[1], nil
}

// CloneVolumeName derives the name for a cloned volume from the source
// volume's path: the path basename with every occurrence of the source
// domain name replaced by the clone name.
//
// Example: path "/var/lib/libvirt/images/web_boot.qcow2", source "web",
// clone "web-copy" → "web-copy_boot.qcow2"
func CloneVolumeName(sourcePath, sourceDomain, cloneDomain string) string {
	base := path.Base(sourcePath)
	return strings.ReplaceAll(base, sourceDomain, cloneDomain)
}
