// Package testutil holds helpers shared by package tests: repository
// paths, synthetic camera frames and scenario fixtures.
package testutil

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// ModulePath is the module line ProjectRoot looks for in go.mod.
const ModulePath = "github.com/MeKo-Tech/ripwatch"

var errNoModule = errors.New("go.mod not found")

// ProjectRoot walks up from this file to the directory whose go.mod declares
// ModulePath.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}

	for dir := filepath.Dir(filename); ; {
		module, err := readModulePath(filepath.Join(dir, "go.mod"))
		if err == nil && module == ModulePath {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod for %s above %s", ModulePath, filepath.Dir(filename))
		}
		dir = parent
	}
}

func readModulePath(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: go.mod lookup along the source tree
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", errNoModule
}

// TestDataPath joins elems onto the repository testdata directory.
func TestDataPath(t *testing.T, elems ...string) string {
	t.Helper()

	root, err := ProjectRoot()
	require.NoError(t, err, "Failed to find project root")
	return filepath.Join(append([]string{root, "testdata"}, elems...)...)
}

// FixturesPath joins elems onto testdata/fixtures.
func FixturesPath(t *testing.T, elems ...string) string {
	t.Helper()
	return TestDataPath(t, append([]string{"fixtures"}, elems...)...)
}

// WriteLabels writes names as a newline separated label file in a fresh
// temp directory and returns its path.
func WriteLabels(t *testing.T, names ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "labels.txt")
	content := strings.Join(names, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "Failed to write labels")
	return path
}

// EnsureDir creates path and its parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
