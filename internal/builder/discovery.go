package builder

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Project configuration discovery errors. Both are user-facing: the build
// cannot continue until the project either adds a config file or points the
// platform at the right one.
var (
	// ErrConfigNotFound means no generator configuration file exists in the checkout.
	ErrConfigNotFound = errors.New("project configuration file not found")

	// ErrConfigAmbiguous means several candidate configuration files exist
	// and none was selected in the project's build config.
	ErrConfigAmbiguous = errors.New("multiple project configuration files found, unable to choose one")
)

// skippedDirs are never searched for configuration files.
var skippedDirs = map[string]bool{
	".git":         true,
	".tox":         true,
	"node_modules": true,
	"__pycache__":  true,
}

// FindConfigFile searches the checkout for a file with the given name.
// Exactly one match is required: zero matches yield ErrConfigNotFound,
// more than one yields ErrConfigAmbiguous.
func FindConfigFile(root, name string) (string, error) {
	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (skippedDirs[d.Name()] || d.Name()[0] == '.') {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == name {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	switch len(matches) {
	case 0:
		return "", ErrConfigNotFound
	case 1:
		return matches[0], nil
	default:
		return "", ErrConfigAmbiguous
	}
}

// docsDirCandidates are probed in order when a project does not declare where
// its documentation lives.
var docsDirCandidates = []string{"docs", "doc", "Doc", "book"}

// FindDocsDir returns the conventional docs directory of a checkout, falling
// back to the checkout root.
func FindDocsDir(root string) string {
	for _, candidate := range docsDirCandidates {
		path := filepath.Join(root, candidate)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}
	return root
}
