package resolve

import (
	"net/url"
	"path/filepath"
	"strings"
)

const fileScheme = "file"

// ToSourceRef converts an absolute filesystem path into a file URL.
// Relative paths and paths that cannot be expressed as a URL are returned unchanged.
func ToSourceRef(path string) string {
	if path == "" || !filepath.IsAbs(path) {
		return path
	}
	slashed := filepath.ToSlash(path)
	if strings.HasPrefix(slashed, "//") {
		// UNC paths have no unambiguous file URL form
		return path
	}
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: fileScheme, Path: slashed}
	return u.String()
}

// ToPath converts a source reference back into a filesystem path.
// References that are not file URLs are treated as raw paths.
func ToPath(ref string) string {
	if !strings.HasPrefix(ref, fileScheme+"://") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.Path == "" {
		return ref
	}
	p := u.Path
	// file:///C:/x -> C:/x on Windows
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}
