package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/ryanuber/go-glob"

	cocoerr "github.com/infinilabs/cococi/pkg/errors"
)

const (
	TestsDir      = "tests"
	LoadgenConfig = "loadgen.yml"
	StartScript   = "start_coco.sh"
	StopScript    = "stop_coco.sh"
	loadgenName   = "loadgen"
	scenarioExt   = ".dsl"
)

// rootMarkers must all exist for a directory to count as the project
// root.
var rootMarkers = []string{"README.md", "coco.yml", TestsDir, StartScript, StopScript}

// CheckRoot returns a user error listing whatever root is missing.
func CheckRoot(root string) error {
	var missing []string
	for _, f := range rootMarkers {
		if _, err := os.Stat(filepath.Join(root, f)); err != nil {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &cocoerr.Error{
		Type: cocoerr.User,
		Help: `Integration tests have to be run from the root of the coco-server
checkout, or pointed at it with --root. The root is expected to hold:

    ` + strings.Join(rootMarkers, ", ") + `
`,
		Err: errors.Errorf("%s is not the project root; missing %s", root, strings.Join(missing, ", ")),
	}
}

// ResolveLoadgen finds the loadgen binary: explicit if given, else
// loadgen on the PATH, else bin/loadgen under root.
func ResolveLoadgen(explicit, root string, lookPath func(string) (string, error)) (string, error) {
	if explicit != "" {
		// made absolute so it still names the same file when run
		// from the project root
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", errors.Wrap(err, "loadgen binary")
		}
		if _, err := os.Stat(abs); err != nil {
			return "", errors.Wrap(err, "loadgen binary")
		}
		return abs, nil
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if p, err := lookPath(loadgenName); err == nil {
		return p, nil
	}
	local := filepath.Join(root, "bin", loadgenName)
	if _, err := os.Stat(local); err == nil {
		return filepath.Abs(local)
	}
	return "", &cocoerr.Error{
		Type: cocoerr.User,
		Help: `The loadgen binary could not be found. Put it on your PATH, place it
at bin/loadgen under the project root, or name it with --loadgen.
`,
		Err: errors.New("loadgen binary not found in PATH or ./bin/"),
	}
}

// Discover returns the absolute paths of the scenarios under
// testsDir, sorted. filter, if not empty, is a glob matched against
// each scenario's slash-separated path relative to testsDir.
func Discover(testsDir, filter string) ([]string, error) {
	abs, err := filepath.Abs(testsDir)
	if err != nil {
		return nil, err
	}
	var found []string
	err = filepath.Walk(abs, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != scenarioExt {
			return nil
		}
		if filter != "" {
			rel, err := filepath.Rel(abs, path)
			if err != nil {
				return err
			}
			if !glob.Glob(filter, filepath.ToSlash(rel)) {
				return nil
			}
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "discovering scenarios")
	}
	sort.Strings(found)
	return found, nil
}
