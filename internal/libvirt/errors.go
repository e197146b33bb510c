package libvirt

import (
	"errors"

	"github.com/digitalocean/go-libvirt"
)

// IsNotFound reports whether err is a libvirt "no such resource" error
// for any of the resource kinds this system manages. Lookup paths
// collapse these to an absent result instead of propagating them.
func IsNotFound(err error) bool {
	return isErrorCode(err,
		libvirt.ErrNoDomain,
		libvirt.ErrNoNetwork,
		libvirt.ErrNoStoragePool,
		libvirt.ErrNoStorageVol,
	)
}

func isErrorCode(err error, codes ...libvirt.ErrorNumber) bool {
	var lErr libvirt.Error
	if !errors.As(err, &lErr) {
		return false
	}
	for _, code := range codes {
		if lErr.Code == uint32(code) {
			return true
		}
	}
	return false
}
