// Package libvirt provides a client wrapper for interacting with libvirt.
//
// This package wraps github.com/digitalocean/go-libvirt to provide:
//   - Connection management for local and remote hypervisors
//     (connect, disconnect, ping)
//   - Not-found error classification for lookup paths
//
// Connection Resolution:
//
// ConnectOptions resolves to a transport and driver URI in a fixed
// order: an explicit URI wins; otherwise a remote host selects the
// libvirtd TCP transport; otherwise the local qemu:///system Unix
// socket is used.
//
//	client, err := libvirt.Connect(libvirt.ConnectOptions{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Consumer-Side Interfaces:
//
// This package does not define interfaces. Consumers (internal/inspect,
// internal/reconcile) define their own client interfaces specifying only
// the operations they need. The *libvirt.Libvirt type satisfies these
// interfaces implicitly, enabling clean dependency injection.
package libvirt
