// Package ros resolves ROS package references such as package://arm/meshes/base.stl to files on disk.
package ros

import (
	"encoding/xml"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/urdfcapsule/logging"
)

const (
	// PackageScheme prefixes a path inside a ROS package.
	PackageScheme = "package://"
	// FileScheme prefixes a plain filesystem path.
	FileScheme = "file://"
	// PackagePathEnv lists package roots, separated like PATH.
	PackagePathEnv = "ROS_PACKAGE_PATH"

	packageXMLFilename = "package.xml"
	ignoreMarker       = "CATKIN_IGNORE"
)

var (
	// ErrPackageNotFound is returned when no root holds the requested package.
	ErrPackageNotFound = errors.New("ros package not found")
	// ErrBadPackageURI is returned for a package:// reference with no package name or no path.
	ErrBadPackageURI = errors.New("malformed package uri")
)

// packageXML is the minimal structure needed from a ROS package.xml file.
type packageXML struct {
	XMLName xml.Name `xml:"package"`
	Name    string   `xml:"name"`
}

// Locator finds packages below a list of roots. Earlier roots win when a package appears twice.
type Locator struct {
	roots    []string
	logger   logging.Logger
	packages map[string]string
}

// NewLocator returns a locator over roots. Empty roots are ignored.
func NewLocator(roots []string, logger logging.Logger) *Locator {
	return &Locator{roots: lo.Compact(roots), logger: logger}
}

// RootsFromEnv returns the roots listed in ROS_PACKAGE_PATH.
func RootsFromEnv() []string {
	return lo.Compact(filepath.SplitList(os.Getenv(PackagePathEnv)))
}

// Resolve turns a mesh reference into a filesystem path. package:// references are looked up and
// file:// is stripped; anything else is returned as is.
func (l *Locator) Resolve(uri string) (string, error) {
	if rest, ok := strings.CutPrefix(uri, FileScheme); ok {
		return rest, nil
	}
	rest, ok := strings.CutPrefix(uri, PackageScheme)
	if !ok {
		return uri, nil
	}
	name, relative, _ := strings.Cut(rest, "/")
	if name == "" || relative == "" {
		return "", errors.Wrap(ErrBadPackageURI, uri)
	}
	dir, err := l.Find(name)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %s", uri)
	}
	return filepath.Join(dir, filepath.FromSlash(relative)), nil
}

// Find returns the directory of the named package. The roots are scanned once, on first use.
func (l *Locator) Find(name string) (string, error) {
	if l.packages == nil {
		l.index()
	}
	if dir, ok := l.packages[name]; ok {
		return dir, nil
	}
	// a directory named after the package counts even without a manifest
	for _, root := range l.roots {
		dir := filepath.Join(root, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", errors.Wrapf(ErrPackageNotFound, "%q in %s", name, strings.Join(l.roots, string(filepath.ListSeparator)))
}

func (l *Locator) index() {
	l.packages = map[string]string{}
	for _, root := range l.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return err
				}
				return fs.SkipDir
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			if _, err := os.Stat(filepath.Join(path, ignoreMarker)); err == nil {
				return fs.SkipDir
			}
			manifest := filepath.Join(path, packageXMLFilename)
			if _, err := os.Stat(manifest); err != nil {
				return nil
			}
			name, err := extractPackageName(manifest)
			if err != nil {
				l.logger.Warnw("skipping unreadable package manifest", "path", manifest, "error", err)
				return fs.SkipDir
			}
			if _, seen := l.packages[name]; !seen {
				l.packages[name] = path
			}
			// packages do not nest
			return fs.SkipDir
		})
		if err != nil {
			l.logger.Debugw("cannot scan package root", "root", root, "error", err)
		}
	}
	l.logger.Debugw("indexed ros packages", "count", len(l.packages), "roots", l.roots)
}

// extractPackageName extracts the package name from package.xml.
func extractPackageName(packageXMLPath string) (string, error) {
	//nolint:gosec
	data, err := os.ReadFile(packageXMLPath)
	if err != nil {
		return "", err
	}
	var pkg packageXML
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return "", errors.Wrap(err, "failed to parse package.xml")
	}
	name := strings.TrimSpace(pkg.Name)
	if name == "" {
		return "", errors.New("package.xml does not contain a <name> element")
	}
	return name, nil
}
