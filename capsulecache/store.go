// Package capsulecache persists fitted capsules, one file per mesh, keyed by the scale the mesh is
// used at. A file is trusted only while it is at least as new as its mesh.
package capsulecache

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofrs/flock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/urdfcapsule/logging"
	"go.viam.com/urdfcapsule/spatialmath"
)

// Extension replaces the mesh extension to name its store file.
const Extension = ".cache"

const cylinderType = "cylinder"

// Entry is one cached capsule, posed in the frame of the element that references the mesh.
type Entry struct {
	Type   string     `json:"type"`
	Length float64    `json:"length"`
	Radius float64    `json:"radius"`
	XYZ    [3]float64 `json:"xyz"`
	RPY    [3]float64 `json:"rpy"`
}

type document struct {
	Mesh    string                `json:"mesh"`
	Entries map[ScalingKey]*Entry `json:"entries"`
}

// Store is the cache file of a single mesh.
type Store struct {
	meshPath string
	path     string
	logger   logging.Logger

	entries map[ScalingKey]*Entry
}

// PathFor returns where the store of meshPath lives. With a cache directory the file is named after the
// mesh's base name inside it; otherwise it sits next to the mesh.
func PathFor(meshPath, cacheDir string) string {
	ext := filepath.Ext(meshPath)
	if cacheDir == "" {
		return strings.TrimSuffix(meshPath, ext) + Extension
	}
	base := filepath.Base(meshPath)
	return filepath.Join(cacheDir, strings.TrimSuffix(base, ext)+Extension)
}

// Open returns the store of a mesh, which must exist. The store file itself is created lazily by Save.
func Open(meshPath, cacheDir string, logger logging.Logger) (*Store, error) {
	info, err := os.Stat(meshPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(ErrMeshNotFound, meshPath)
		}
		return nil, errors.Wrapf(ErrMeshNotFound, "%s: %v", meshPath, err)
	}
	if info.IsDir() {
		return nil, errors.Wrapf(ErrMeshNotFound, "%s is a directory", meshPath)
	}
	return &Store{
		meshPath: meshPath,
		path:     PathFor(meshPath, cacheDir),
		logger:   logger,
	}, nil
}

// Path returns the location of the store file.
func (s *Store) Path() string {
	return s.path
}

// MeshPath returns the mesh the store belongs to.
func (s *Store) MeshPath() string {
	return s.meshPath
}

// Exists reports whether the store file is present and holds an entry for key, fresh or not.
func (s *Store) Exists(key ScalingKey) (bool, error) {
	if err := s.ensureLoaded(); err != nil {
		return false, err
	}
	_, ok := s.entries[key]
	return ok, nil
}

// IsUpToDate reports whether the store file exists and was modified no earlier than the mesh.
func (s *Store) IsUpToDate() (bool, error) {
	storeInfo, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, errors.Wrapf(ErrStoreIO, "%s: %v", s.path, err)
	}
	meshInfo, err := os.Stat(s.meshPath)
	if err != nil {
		return false, errors.Wrapf(ErrMeshNotFound, "%s: %v", s.meshPath, err)
	}
	return !storeInfo.ModTime().Before(meshInfo.ModTime()), nil
}

// Load reads the store file into memory. A missing file loads as empty.
func (s *Store) Load() error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	s.entries = doc.Entries
	return nil
}

// GetParameters returns the capsule cached under key.
func (s *Store) GetParameters(key ScalingKey) (*spatialmath.Capsule, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	entry, ok := s.entries[key]
	if !ok || entry == nil {
		return nil, errors.Wrapf(ErrKeyNotFound, "%s: %q", s.path, key)
	}
	if entry.Type != cylinderType {
		return nil, newCorruptEntryError(s.path, key, entry.Type)
	}
	c, err := spatialmath.NewCapsule(
		r3.Vector{X: entry.XYZ[0], Y: entry.XYZ[1], Z: entry.XYZ[2]},
		&spatialmath.EulerAngles{Roll: entry.RPY[0], Pitch: entry.RPY[1], Yaw: entry.RPY[2]},
		entry.Length,
		entry.Radius,
	)
	if err != nil {
		return nil, errors.Wrapf(ErrCacheCorrupt, "%s: entry %q: %v", s.path, key, err)
	}
	return c, nil
}

// Save records c under key. The file is locked for the whole read-modify-write and replaced atomically,
// so concurrent writers serialize and readers never see a partial file. Entries of a stale file are
// dropped rather than carried over.
func (s *Store) Save(key ScalingKey, c *spatialmath.Capsule) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(ErrStoreIO, "creating %s: %v", dir, err)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return errors.Wrapf(ErrStoreIO, "locking %s: %v", lock.Path(), err)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			err = multierr.Combine(err, errors.Wrapf(ErrStoreIO, "unlocking %s: %v", lock.Path(), unlockErr))
		}
	}()

	doc := &document{Mesh: s.meshPath, Entries: map[ScalingKey]*Entry{}}
	fresh, err := s.IsUpToDate()
	if err != nil {
		return err
	}
	if fresh {
		if doc, err = s.read(); err != nil {
			return err
		}
	} else if _, statErr := os.Stat(s.path); statErr == nil {
		s.logger.Debugw("discarding stale cache entries", "store", s.path)
	}

	doc.Mesh = s.meshPath
	doc.Entries[key] = newEntry(c)
	if err := s.write(doc); err != nil {
		return err
	}
	s.entries = doc.Entries
	return nil
}

// Keys lists the cached keys in order.
func (s *Store) Keys() ([]ScalingKey, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	keys := lo.Keys(s.entries)
	slices.Sort(keys)
	return keys, nil
}

// Entries returns a copy of the loaded entries.
func (s *Store) Entries() (map[ScalingKey]Entry, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return lo.MapValues(s.entries, func(e *Entry, _ ScalingKey) Entry { return *e }), nil
}

// Remove deletes the store file and its lock file. Missing files are not an error.
func (s *Store) Remove() error {
	s.entries = nil
	return multierr.Combine(removeIfExists(s.path), removeIfExists(s.path+".lock"))
}

func (s *Store) ensureLoaded() error {
	if s.entries != nil {
		return nil
	}
	return s.Load()
}

func (s *Store) read() (*document, error) {
	//nolint:gosec
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &document{Mesh: s.meshPath, Entries: map[ScalingKey]*Entry{}}, nil
		}
		return nil, errors.Wrapf(ErrStoreIO, "reading %s: %v", s.path, err)
	}
	doc := &document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrapf(ErrCacheCorrupt, "%s: %v", s.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[ScalingKey]*Entry{}
	}
	return doc, nil
}

func (s *Store) write(doc *document) (err error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal cache store")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(ErrStoreIO, "creating temporary file for %s: %v", s.path, err)
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, removeIfExists(tmp.Name()))
		}
	}()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		return multierr.Combine(errors.Wrapf(ErrStoreIO, "writing %s: %v", tmp.Name(), err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(ErrStoreIO, "closing %s: %v", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrapf(ErrStoreIO, "replacing %s: %v", s.path, err)
	}
	return nil
}

func newEntry(c *spatialmath.Capsule) *Entry {
	center := c.Center()
	ea := c.Orientation().EulerAngles()
	return &Entry{
		Type:   cylinderType,
		Length: c.Length(),
		Radius: c.Radius(),
		XYZ:    [3]float64{center.X, center.Y, center.Z},
		RPY:    [3]float64{ea.Roll, ea.Pitch, ea.Yaw},
	}
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(ErrStoreIO, "removing %s: %v", path, err)
	}
	return nil
}
