package executor

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/wdl-platform/corewdl/internal/config"
)

// SourceKind discriminates a ValidatedSource's variant.
type SourceKind int

const (
	SourceURL SourceKind = iota
	SourceFile
)

// ValidatedSource is a source string that has passed ValidateSource: an
// absolute canonical path under an allowed prefix, or a URL matching an
// allowed prefix.
type ValidatedSource struct {
	Kind SourceKind
	URL  string
	Path string
}

// ErrForbidden and ErrNotFound are returned by ValidateSource. Per
// spec.md §4.5's information-leakage rule: a path outside every allowed
// prefix is always Forbidden, regardless of whether it exists; NotFound
// is only returned for paths inside an allowed prefix.
var (
	ErrForbidden = errors.New("source forbidden")
	ErrNotFound  = errors.New("source not found")
	ErrInvalidUTF8 = errors.New("source path is not valid UTF-8")
)

// ValidateSource implements spec.md §4.5's source-validation rule.
func ValidateSource(raw string, cfg config.ExecutionConfig) (ValidatedSource, error) {
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		allowed := false
		for _, prefix := range cfg.AllowedURLs {
			if strings.HasPrefix(u.String(), prefix) {
				allowed = true
				break
			}
		}
		if !allowed {
			return ValidatedSource{}, fmt.Errorf("%w: %s", ErrForbidden, raw)
		}
		return ValidatedSource{Kind: SourceURL, URL: u.String()}, nil
	}

	expanded := expandTilde(raw)

	canonical, statErr := canonicalize(expanded)
	if statErr != nil {
		// Path doesn't exist (or a component doesn't). Check whether the
		// would-be path, formed from the canonical parent plus the final
		// element, falls under an allowed prefix; only then is it safe to
		// reveal NotFound instead of Forbidden.
		parent := filepath.Dir(expanded)
		base := filepath.Base(expanded)
		parentCanonical, parentErr := canonicalize(parent)
		if parentErr == nil {
			wouldBe := filepath.Join(parentCanonical, base)
			if isUnderAny(wouldBe, cfg.AllowedFilePaths) {
				return ValidatedSource{}, fmt.Errorf("%w: %s", ErrNotFound, raw)
			}
		}
		return ValidatedSource{}, fmt.Errorf("%w: %s", ErrForbidden, raw)
	}

	if !validUTF8(canonical) {
		return ValidatedSource{}, fmt.Errorf("%w: %s", ErrInvalidUTF8, canonical)
	}

	if !isUnderAny(canonical, cfg.AllowedFilePaths) {
		return ValidatedSource{}, fmt.Errorf("%w: %s", ErrForbidden, raw)
	}

	return ValidatedSource{Kind: SourceFile, Path: canonical}, nil
}

func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		u, err := user.Current()
		if err != nil {
			return path
		}
		if path == "~" {
			return u.HomeDir
		}
		return filepath.Join(u.HomeDir, path[2:])
	}
	return path
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

func isUnderAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, string(filepath.Separator))+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func validUTF8(s string) bool {
	return utf8.ValidString(s)
}
