package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// scenarioExts are the file extensions treated as scenarios.
var scenarioExts = map[string]bool{
	".yaml": true,
	".yml":  true,
	".cue":  true,
}

// FindScenarioFiles walks dir for scenario files. A non-empty filter is a
// glob matched against the file name without its extension. Files under a
// golden/ directory are skipped. The result is sorted.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, errors.Wrapf(err, "invalid filter pattern %q", filter)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !scenarioExts[ext] {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if matched, _ := filepath.Match(filter, name); !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// requireDir returns an ExitCommandError when dir is missing or not a
// directory.
func requireDir(dir, what string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s directory not found: %s", what, dir))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("error accessing %s directory", what), err)
	}
	if !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("not a directory: %s", dir))
	}
	return nil
}

// goldenPath is where the test command keeps the snapshot of a scenario
// loaded from dir.
func goldenPath(dir, scenario string) string {
	return filepath.Join(dir, "golden", scenario+".golden")
}
