// Package paths maps manifest asset references to fetch URLs and local destinations.
package paths

import (
	"path"
	"path/filepath"
	"strings"
)

// Resolver turns asset references into absolute fetch URLs and paths under an output root.
// A Resolver holds no mutable state and is safe for concurrent use.
type Resolver struct {
	baseDomain string
	outputRoot string
}

// NewResolver creates a resolver for relative references served from baseDomain
func NewResolver(baseDomain, outputRoot string) *Resolver {
	return &Resolver{
		baseDomain: strings.TrimRight(baseDomain, "/"),
		outputRoot: outputRoot,
	}
}

// BaseDomain returns the domain prepended to root-relative references
func (r *Resolver) BaseDomain() string {
	return r.baseDomain
}

// OutputRoot returns the directory destinations are joined under
func (r *Resolver) OutputRoot() string {
	return r.outputRoot
}

// FetchURL returns the absolute URL to download ref from.
// Absolute references are returned without their query string; anything else is
// treated as a path on the base domain.
func (r *Resolver) FetchURL(ref string) string {
	clean := StripQuery(ref)
	if IsAbsolute(clean) {
		return clean
	}
	return r.baseDomain + ensureLeadingSlash(clean)
}

// DestinationPath returns the local file path ref is mirrored to.
// References that share the same query-less path map to the same destination,
// whichever host they point at.
func (r *Resolver) DestinationPath(ref string) string {
	clean := StripQuery(ref)

	structure := clean
	if IsAbsolute(clean) {
		structure = urlPath(clean)
	}
	structure = ensureLeadingSlash(structure)

	// Cleaning against "/" keeps ".." segments from climbing out of the output root
	rel := strings.TrimPrefix(path.Clean(structure), "/")
	if rel == "" {
		return r.outputRoot
	}
	return filepath.Join(r.outputRoot, filepath.FromSlash(rel))
}

// StripQuery removes everything from the first '?' on
func StripQuery(ref string) string {
	if idx := strings.IndexByte(ref, '?'); idx >= 0 {
		return ref[:idx]
	}
	return ref
}

// IsAbsolute reports whether ref carries an http or https scheme
func IsAbsolute(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// urlPath returns the path component of an absolute URL without parsing it,
// so escaped sequences reach the filesystem exactly as the server spells them.
func urlPath(rawURL string) string {
	rest := rawURL
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexByte(rest, '#'); idx >= 0 {
		rest = rest[:idx]
	}

	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return ""
	}
	return rest[slash:]
}

func ensureLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
