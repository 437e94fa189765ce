package client

import (
	"net/url"
	"strings"
)

// WithAPIOrigin rewrites an image or API reference so it points at the given
// origin. Idempotent: rewriting an already-rewritten reference is a no-op.
//
// Rules:
//   - data: and blob: references pass through unchanged
//   - references already under origin pass through unchanged
//   - origin-relative paths ("/media/...", "/api/...") get the origin prefixed
//   - absolute URLs whose path targets /media or /api keep their path, query
//     and fragment but swap the origin
//   - anything else passes through unchanged
func WithAPIOrigin(origin, ref string) string {
	origin = strings.TrimSuffix(origin, "/")
	if origin == "" || ref == "" {
		return ref
	}
	if strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "blob:") {
		return ref
	}
	if strings.HasPrefix(ref, origin+"/") || ref == origin {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		return origin + ref
	}

	parsed, err := url.Parse(ref)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ref
	}
	if !strings.HasPrefix(parsed.Path, "/media") && !strings.HasPrefix(parsed.Path, "/api") {
		return ref
	}

	rewritten := origin + parsed.Path
	if parsed.RawQuery != "" {
		rewritten += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		rewritten += "#" + parsed.Fragment
	}
	return rewritten
}
