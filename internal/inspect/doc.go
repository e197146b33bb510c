// Package inspect provides read-only lookups over libvirt resources.
//
// Every resource kind exposes the same contract: Info returns a record
// and a found flag, never an error for resources that are missing or
// carry unreadable descriptors; ByPattern enumerates records whose
// names match a shell glob (*, ?, character classes); Exists derives
// from Info. Only transport and API failures surface as errors.
//
// Volume lookups are keyed by pool and refresh the pool before reading
// so results reflect on-disk state.
package inspect
