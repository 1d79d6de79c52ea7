package arkv

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// BuildPlan walks localRoot and produces the ordered upload plan mapping
// local entries to remote paths under remoteBase.
//
// A single-file root yields one file entry at remoteBase/basename. A
// directory root yields one directory entry per directory (the root first,
// mapped to remoteBase/basename), followed by the file entries, ordered by
// directory visit and then by name. Hidden entries are included. Symbolic
// links are never followed; they become skip entries so the summary can
// account for them. Special files (sockets, devices, fifos) are omitted.
//
// BuildPlan fails if localRoot does not exist (the error wraps
// fs.ErrNotExist), if a directory cannot be read (wraps fs.ErrPermission
// for permission failures) or if a computed remote path would escape
// remoteBase (wraps ErrInvalidPath). An unreadable file is not detected
// here; it fails at transfer time as a per-entry error.
func BuildPlan(localRoot, remoteBase string) (*UploadPlan, error) {
	absRoot, err := filepath.Abs(localRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve local path %s: %w", localRoot, err)
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("local path %s: %w", localRoot, err)
	}

	remoteBase = path.Clean(filepath.ToSlash(remoteBase))

	plan := &UploadPlan{}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		remotePath, err := joinRemote(remoteBase, info.Name())
		if err != nil {
			return nil, err
		}
		plan.add(UploadEntry{LocalPath: absRoot, RemotePath: remotePath, Kind: KindSymlink})
		return plan, nil

	case info.Mode().IsRegular():
		remotePath, err := joinRemote(remoteBase, info.Name())
		if err != nil {
			return nil, err
		}
		plan.add(UploadEntry{LocalPath: absRoot, RemotePath: remotePath, Kind: KindFile, Size: info.Size()})
		return plan, nil

	case info.IsDir():
		// handled below

	default:
		return nil, fmt.Errorf("local path %s is not a regular file or directory", localRoot)
	}

	rootRemote, err := joinRemote(remoteBase, filepath.Base(absRoot))
	if err != nil {
		return nil, err
	}

	// Explicit worklist instead of recursion, so pathologically deep trees
	// cannot exhaust the stack. Subdirectories are pushed in reverse name
	// order so they pop in ascending order.
	type pendingDir struct {
		local  string
		remote string
	}

	stack := []pendingDir{{local: absRoot, remote: rootRemote}}
	var files []UploadEntry

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		plan.add(UploadEntry{LocalPath: dir.local, RemotePath: dir.remote, Kind: KindDir})

		entries, err := os.ReadDir(dir.local)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", dir.local, err)
		}
		// os.ReadDir returns entries sorted by name.

		var subdirs []pendingDir
		for _, de := range entries {
			childLocal := filepath.Join(dir.local, de.Name())
			childRemote, err := joinRemote(dir.remote, de.Name())
			if err != nil {
				return nil, err
			}

			switch {
			case de.Type()&os.ModeSymlink != 0:
				files = append(files, UploadEntry{LocalPath: childLocal, RemotePath: childRemote, Kind: KindSymlink})

			case de.IsDir():
				subdirs = append(subdirs, pendingDir{local: childLocal, remote: childRemote})

			case de.Type().IsRegular():
				fi, err := de.Info()
				if err != nil {
					return nil, fmt.Errorf("stat %s: %w", childLocal, err)
				}
				files = append(files, UploadEntry{LocalPath: childLocal, RemotePath: childRemote, Kind: KindFile, Size: fi.Size()})
			}
		}

		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	for _, f := range files {
		plan.add(f)
	}

	return plan, nil
}

// joinRemote appends one path segment to a remote directory path. The
// segment must be a bare name: anything containing a separator or
// traversing upward would let a crafted local name escape the destination
// base.
func joinRemote(base, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: segment %q under %s", ErrInvalidPath, name, base)
	}
	return path.Join(base, name), nil
}
