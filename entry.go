package arkv

// EntryKind identifies the type of work an UploadEntry represents.
type EntryKind uint8

const (
	// KindFile transfers a regular local file to the remote host.
	KindFile EntryKind = iota
	// KindDir ensures a directory exists on the remote host.
	KindDir
	// KindSymlink marks a symbolic link found in the local tree.
	// Symlinks are never followed; the engine records them as skipped.
	KindSymlink
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// UploadEntry is one unit of work in an upload plan: either "ensure this
// remote directory" or "transfer this local file". Entries are immutable
// once the plan is built.
type UploadEntry struct {
	// LocalPath is the absolute path of the local file or directory.
	LocalPath string

	// RemotePath is the full remote path, computed by joining the
	// destination base path with the entry's position in the local tree.
	// Always uses forward slashes.
	RemotePath string

	// Kind is the entry type.
	Kind EntryKind

	// Size is the file size in bytes. Zero for directories and symlinks.
	Size int64
}

// UploadPlan is the ordered, immutable list of local-to-remote mapping
// entries computed before any network I/O begins.
//
// Ordering invariant: every directory entry appears before any entry whose
// RemotePath lives under it, so remote parents always exist before their
// children are written.
type UploadPlan struct {
	Entries []UploadEntry

	// TotalBytes is the sum of the sizes of all file entries.
	TotalBytes int64

	// TotalFiles counts file entries (symlinks excluded).
	TotalFiles int

	// TotalDirs counts directory entries.
	TotalDirs int

	// TotalSymlinks counts symlink entries, which will be skipped.
	TotalSymlinks int
}

func (p *UploadPlan) add(entry UploadEntry) {
	p.Entries = append(p.Entries, entry)
	switch entry.Kind {
	case KindFile:
		p.TotalFiles++
		p.TotalBytes += entry.Size
	case KindDir:
		p.TotalDirs++
	case KindSymlink:
		p.TotalSymlinks++
	}
}
