package provisioner

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ensureDirs creates each directory if absent and checks it accepts writes.
func ensureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &ProvisioningError{Op: "create directory", Path: dir, Err: err}
		}
		probe, err := os.CreateTemp(dir, ".write-probe-*")
		if err != nil {
			return &ProvisioningError{Op: "write to directory", Path: dir, Err: err}
		}
		name := probe.Name()
		probe.Close()
		os.Remove(name)
	}
	return nil
}

// exists reports whether anything is present at path.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// seedFile copies src to dst only when src exists and dst does not. The copy
// lands in a temporary sibling first and is renamed into place, so dst is
// either absent or complete.
func seedFile(src, dst string) (bool, error) {
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, &ProvisioningError{Op: "stat", Path: dst, Err: err}
	}

	in, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &ProvisioningError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return false, &ProvisioningError{Op: "stat", Path: src, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".seed-*")
	if err != nil {
		return false, &ProvisioningError{Op: "copy", Path: dst, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := io.Copy(tmp, in); err != nil {
		cleanup()
		return false, &ProvisioningError{Op: "copy", Path: dst, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return false, &ProvisioningError{Op: "copy", Path: dst, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, &ProvisioningError{Op: "copy", Path: dst, Err: err}
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()|0o200); err != nil {
		os.Remove(tmpName)
		return false, &ProvisioningError{Op: "chmod", Path: dst, Err: err}
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return false, &ProvisioningError{Op: "rename", Path: dst, Err: err}
	}
	return true, nil
}
