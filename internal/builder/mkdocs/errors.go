package mkdocs

import (
	"errors"
	"fmt"
)

// ErrParse is the root of the mkdocs.yml parse error family. Every problem
// with the user's YAML unwraps to it, so callers can treat the whole family
// as one user-facing failure class while tests match the specific cause.
var ErrParse = errors.New("problem parsing mkdocs configuration file")

var (
	// ErrEmptyConfig means mkdocs.yml parsed to nothing at all.
	ErrEmptyConfig = fmt.Errorf("the file does not contain anything: %w", ErrParse)

	// ErrNotMapping means the YAML document is not a top-level mapping.
	ErrNotMapping = fmt.Errorf("the file must be a top-level mapping: %w", ErrParse)

	// ErrDocsDirMissing means docs_dir points at a directory that does not
	// exist in the checkout.
	ErrDocsDirMissing = fmt.Errorf("the path pointed to by docs_dir does not exist: %w", ErrParse)
)

// InvalidTypeError reports a known mkdocs.yml key holding a value of the
// wrong YAML type.
type InvalidTypeError struct {
	Key  string
	Want string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid value for %q: expected %s", e.Key, e.Want)
}

func (e *InvalidTypeError) Unwrap() error { return ErrParse }
