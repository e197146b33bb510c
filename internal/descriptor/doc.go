// Package descriptor is the XML codec for libvirt resource descriptors.
//
// All domain, network, storage pool and storage volume XML crosses this
// package as typed libvirt.org/go/libvirtxml structs; business logic
// never walks XML trees directly. Parse functions are lenient: a
// malformed descriptor degrades to an empty or partial record rather
// than an error, so callers can treat unreadable resources as absent.
// Build functions return errors only for invalid caller input.
package descriptor
