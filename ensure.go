package arkv

import (
	"fmt"
	"path"
	"strings"
)

// EnsureDir makes sure remotePath exists as a directory, creating missing
// segments root-to-leaf. It is idempotent: segments that already exist as
// directories are left untouched. A segment that exists as a non-directory
// fails with ErrPathConflict.
//
// Plans order directory entries parent-before-child, so in the common case
// only the leaf is missing. The segment walk still handles an arbitrary
// nested path: a single-file upload has no directory entries at all, and
// its remote base may not exist yet.
func EnsureDir(fs RemoteFS, remotePath string) error {
	remotePath = path.Clean(remotePath)
	if remotePath == "/" || remotePath == "." {
		return nil
	}

	prefix := ""
	if strings.HasPrefix(remotePath, "/") {
		prefix = "/"
		remotePath = remotePath[1:]
	}

	current := prefix
	for _, segment := range strings.Split(remotePath, "/") {
		if current == "" || current == "/" {
			current += segment
		} else {
			current += "/" + segment
		}

		info, err := fs.Stat(current)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%w: %s exists and is not a directory", ErrPathConflict, current)
			}
			continue
		}

		if mkErr := fs.Mkdir(current); mkErr != nil {
			// Lost a race or hit a server that reports existence only at
			// mkdir time. Re-stat to tell conflict from failure.
			if info, statErr := fs.Stat(current); statErr == nil {
				if info.IsDir() {
					continue
				}
				return fmt.Errorf("%w: %s exists and is not a directory", ErrPathConflict, current)
			}
			return fmt.Errorf("create remote directory %s: %w", current, mkErr)
		}
	}

	return nil
}
