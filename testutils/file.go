// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
)

// WriteFile writes data to dir/name, creating parent directories, and returns the path.
func WriteFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	test.That(t, os.MkdirAll(filepath.Dir(path), 0o750), test.ShouldBeNil)
	test.That(t, os.WriteFile(path, []byte(data), 0o600), test.ShouldBeNil)
	return path
}

// WriteMesh writes a placeholder mesh that is already an hour old, so stores saved afterwards are fresh.
func WriteMesh(t *testing.T, dir, name string) string {
	t.Helper()
	path := WriteFile(t, dir, name, "solid mesh\nendsolid mesh\n")
	Touch(t, path, time.Now().Add(-time.Hour))
	return path
}

// Touch sets the access and modification time of path.
func Touch(t *testing.T, path string, when time.Time) {
	t.Helper()
	test.That(t, os.Chtimes(path, when, when), test.ShouldBeNil)
}

// WriteFakeOptimizer writes a shell script that behaves like the capsule optimizer: it prints a header
// line and then the given endpoints and radius, and appends its arguments to a log next to it. It
// returns the script and the log path.
func WriteFakeOptimizer(t *testing.T, ep1, ep2 [3]float64, radius float64) (string, string) {
	t.Helper()
	dir := t.TempDir()
	calls := filepath.Join(dir, "calls.log")
	script := fmt.Sprintf(`#!/bin/sh
echo "$@" >> %q
echo "Capsule computed"
printf '%%s\n' %v %v %v %v %v %v %v
`, calls, ep1[0], ep1[1], ep1[2], ep2[0], ep2[1], ep2[2], radius)
	path := filepath.Join(dir, "robot_capsule_generator")
	test.That(t, os.WriteFile(path, []byte(script), 0o700), test.ShouldBeNil)
	return path, calls
}
