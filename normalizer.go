package bookkeeper

import (
	"regexp"
	"slices"
	"strings"
)

// DefaultLoadExtensions are the script extensions older versions of the
// migration runner stored as part of migration names.
var DefaultLoadExtensions = []string{
	".co",
	".coffee",
	".eg",
	".iced",
	".js",
	".cjs",
	".litcoffee",
	".ls",
	".ts",
}

// ExtensionNormalizer strips a recognized extension from the very end of a
// migration name. A name with anything after the extension, including
// whitespace, is left unchanged.
type ExtensionNormalizer struct {
	extensions []string
	pattern    *regexp.Regexp
}

// NewExtensionNormalizer returns a normalizer for the given extensions.
// Empty entries are ignored. With no extensions every name is unchanged.
//
// Parameters:
//   - extensions: Extensions including the leading dot, e.g. ".js".
//
// Returns:
//   - *ExtensionNormalizer: A new ExtensionNormalizer.
func NewExtensionNormalizer(extensions []string) *ExtensionNormalizer {
	exts := slices.DeleteFunc(slices.Clone(extensions), func(e string) bool {
		return e == ""
	})
	n := &ExtensionNormalizer{extensions: exts}
	if len(exts) == 0 {
		return n
	}

	alternatives := make([]string, len(exts))
	for i, ext := range exts {
		alternatives[i] = regexp.QuoteMeta(ext)
	}
	// The lazy prefix makes the longest matching extension win, so
	// ".litcoffee" is not read as ".coffee".
	n.pattern = regexp.MustCompile(
		`(?s)^(.*?)(?:` + strings.Join(alternatives, "|") + `)$`,
	)
	return n
}

// Extensions returns a copy of the recognized extensions.
func (n *ExtensionNormalizer) Extensions() []string {
	return slices.Clone(n.extensions)
}

// Normalize returns name without its trailing recognized extension.
//
// Parameters:
//   - name: A stored migration name.
//
// Returns:
//   - string: The normalized name.
//   - bool: True if an extension was stripped.
func (n *ExtensionNormalizer) Normalize(name string) (string, bool) {
	if n.pattern == nil {
		return name, false
	}
	m := n.pattern.FindStringSubmatch(name)
	if m == nil {
		return name, false
	}
	return m[1], true
}
