// Package perms converges file and directory permissions. Owner and
// group accept symbolic names or numeric IDs; mode, uid and gid are
// compared and applied independently so only actual drift touches the
// filesystem.
package perms

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"
)

// Spec is a desired permission state. Empty fields are left unmanaged.
type Spec struct {
	Mode  string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Owner string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Group string `json:"group,omitempty" yaml:"group,omitempty"`
}

// Empty reports whether the spec manages nothing.
func (s Spec) Empty() bool {
	return s.Mode == "" && s.Owner == "" && s.Group == ""
}

// ResolveOwner resolves a symbolic or numeric owner to a UID.
// An empty owner resolves to -1 (unmanaged).
func ResolveOwner(owner string) (int, error) {
	if owner == "" {
		return -1, nil
	}
	if uid, err := strconv.Atoi(owner); err == nil {
		return uid, nil
	}
	u, err := user.Lookup(owner)
	if err != nil {
		return -1, fmt.Errorf("unable to resolve owner %q: %w", owner, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return -1, fmt.Errorf("unable to resolve owner %q: %w", owner, err)
	}
	return uid, nil
}

// ResolveGroup resolves a symbolic or numeric group to a GID.
// An empty group resolves to -1 (unmanaged).
func ResolveGroup(group string) (int, error) {
	if group == "" {
		return -1, nil
	}
	if gid, err := strconv.Atoi(group); err == nil {
		return gid, nil
	}
	g, err := user.LookupGroup(group)
	if err != nil {
		return -1, fmt.Errorf("unable to resolve group %q: %w", group, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return -1, fmt.Errorf("unable to resolve group %q: %w", group, err)
	}
	return gid, nil
}

func parseMode(mode string) (os.FileMode, error) {
	v, err := strconv.ParseUint(mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", mode, err)
	}
	return os.FileMode(v) & os.ModePerm, nil
}

// setPerms converges one path. Returns whether anything changed.
func setPerms(path, mode string, uid, gid int) (bool, error) {
	st, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	changed := false

	if mode != "" {
		want, err := parseMode(mode)
		if err != nil {
			return false, err
		}
		if st.Mode().Perm() != want {
			if err := os.Chmod(path, want); err != nil {
				return changed, fmt.Errorf("failed to chmod %s: %w", path, err)
			}
			changed = true
		}
	}

	if uid >= 0 || gid >= 0 {
		sys, ok := st.Sys().(*syscall.Stat_t)
		if !ok {
			return changed, fmt.Errorf("failed to read ownership of %s", path)
		}
		if (uid >= 0 && uid != int(sys.Uid)) || (gid >= 0 && gid != int(sys.Gid)) {
			if err := os.Chown(path, uid, gid); err != nil {
				return changed, fmt.Errorf("failed to chown %s: %w", path, err)
			}
			changed = true
		}
	}

	return changed, nil
}

// Apply converges permissions on an existing path. With recursive set
// and path a directory, every entry below it is converged as well.
func Apply(path string, spec Spec, recursive bool) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return false, fmt.Errorf("path does not exist: %s", path)
	}

	uid, err := ResolveOwner(spec.Owner)
	if err != nil {
		return false, err
	}
	gid, err := ResolveGroup(spec.Group)
	if err != nil {
		return false, err
	}

	changed, err := setPerms(path, spec.Mode, uid, gid)
	if err != nil {
		return changed, err
	}

	if recursive {
		st, err := os.Stat(path)
		if err != nil {
			return changed, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if st.IsDir() {
			err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if p == path {
					return nil
				}
				c, err := setPerms(p, spec.Mode, uid, gid)
				if err != nil {
					return err
				}
				if c {
					changed = true
				}
				return nil
			})
			if err != nil {
				return changed, fmt.Errorf("failed to walk %s: %w", path, err)
			}
		}
	}

	return changed, nil
}

// CreateWithPermissions creates a file or directory with the given
// permissions. An existing path is converged instead.
func CreateWithPermissions(path string, spec Spec, isDir bool) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return Apply(path, spec, false)
	}

	// Resolve before creating so a bad owner leaves no artifact.
	uid, err := ResolveOwner(spec.Owner)
	if err != nil {
		return false, err
	}
	gid, err := ResolveGroup(spec.Group)
	if err != nil {
		return false, err
	}

	if isDir {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return false, fmt.Errorf("failed to create %s: %w", path, err)
		}
	} else {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return false, fmt.Errorf("failed to create %s: %w", path, err)
		}
		f.Close()
	}

	if _, err := setPerms(path, spec.Mode, uid, gid); err != nil {
		return true, err
	}
	return true, nil
}
