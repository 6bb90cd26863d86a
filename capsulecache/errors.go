package capsulecache

import "github.com/pkg/errors"

var (
	// ErrMeshNotFound is returned when the mesh a store belongs to does not exist.
	ErrMeshNotFound = errors.New("mesh not found")
	// ErrStoreIO is returned when a store file cannot be read, written or locked.
	ErrStoreIO = errors.New("cache store i/o failure")
	// ErrCacheCorrupt is returned when a store file cannot be decoded or holds a non-cylinder entry.
	ErrCacheCorrupt = errors.New("cache store is corrupt")
	// ErrKeyNotFound is returned when a store holds no entry for the requested key.
	ErrKeyNotFound = errors.New("no cache entry for key")
)

func newCorruptEntryError(path string, key ScalingKey, entryType string) error {
	return errors.Wrapf(ErrCacheCorrupt, "%s: entry %q is a %q, expected a cylinder", path, key, entryType)
}
