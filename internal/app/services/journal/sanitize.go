package journal

import (
	"regexp"
	"strings"
)

// Link forms a markdown renderer turns into something clickable: inline
// links (and images), angle-bracket autolinks, and bare scheme://host
// tokens.
var (
	// Destinations may carry one level of balanced parens, as in wiki URLs
	// and javascript:alert(1).
	inlineLinkPattern = regexp.MustCompile(`!?\[([^\]]*)\]\(((?:[^()]|\([^()]*\))*)\)`)
	autoLinkPattern   = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9+.\-]*:[^>\s]*)>`)
	bareURLPattern    = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s<>"\)\]]+`)
)

// SanitizeContent strips link targets whose scheme is not http, https or
// mailto, leaving only their text. Content with no such links comes back
// unchanged.
func SanitizeContent(content string) string {
	if content == "" {
		return content
	}

	content = inlineLinkPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := inlineLinkPattern.FindStringSubmatch(match)
		text, target := parts[1], strings.TrimSpace(parts[2])
		// Drop an optional link title before inspecting the scheme.
		if i := strings.IndexAny(target, " \t"); i >= 0 {
			target = target[:i]
		}
		if allowedScheme(target) {
			return match
		}
		return text
	})

	content = autoLinkPattern.ReplaceAllStringFunc(content, func(match string) string {
		inner := match[1 : len(match)-1]
		if allowedScheme(inner) {
			return match
		}
		return stripScheme(inner)
	})

	return bareURLPattern.ReplaceAllStringFunc(content, func(match string) string {
		if allowedScheme(match) {
			return match
		}
		return stripScheme(match)
	})
}

// allowedScheme reports whether target is relative or carries an http,
// https or mailto scheme. A colon only introduces a scheme when it comes
// before any path, query or fragment delimiter.
func allowedScheme(target string) bool {
	i := strings.IndexAny(target, ":/?#")
	if i < 0 || target[i] != ':' {
		return true
	}
	switch strings.ToLower(target[:i]) {
	case "http", "https", "mailto":
		return true
	}
	return false
}

// stripScheme removes the scheme prefix so the remainder reads as plain
// text.
func stripScheme(target string) string {
	if i := strings.Index(target, "://"); i >= 0 {
		return target[i+3:]
	}
	if i := strings.Index(target, ":"); i >= 0 {
		return target[i+1:]
	}
	return target
}
