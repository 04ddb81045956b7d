// Package inspector implements the post-stop variable expansion policy:
// bounded-depth traversal, cycle detection, content-based deduplication,
// collection rendering, expression evaluation, and structural diffing
// (§4.4 of the driver's component design).
package inspector

import "strings"

// Config controls how deep and how aggressively the inspector expands an
// adapter's variable tree.
type Config struct {
	MaxDepth              int
	MaxCollectionItems    int
	DeduplicateByContent  bool
	CompactServices       bool
	OmitNullProperties    bool
	DeniedPropertyNames   []string
	DeniedTypePatterns    []string
	LocalScopeNamePattern []string
}

// DefaultConfig matches the policy defaults.
func DefaultConfig() Config {
	return Config{
		MaxDepth:             2,
		MaxCollectionItems:   20,
		DeduplicateByContent: true,
		CompactServices:      true,
		OmitNullProperties:   true,
		DeniedPropertyNames: []string{
			"EqualityContract", "DeclaringType", "[More]",
		},
		DeniedTypePatterns: []string{
			"RuntimeType", "RuntimeMethodInfo", "RuntimeFieldInfo", "Guid",
			"MethodBase", "MemberInfo", "Pointer",
		},
		LocalScopeNamePattern: []string{
			"locals", "local", "arguments", "block", "closure",
		},
	}
}

var servicePatternSuffixes = []string{
	"Logger", "Repository", "Service", "Provider", "Factory", "Manager", "Handler",
}

func isServiceType(typeName string) bool {
	for _, suffix := range servicePatternSuffixes {
		if strings.HasSuffix(typeName, suffix) {
			return true
		}
	}
	return false
}

func isDenied(name string, denylist []string) bool {
	for _, d := range denylist {
		if name == d {
			return true
		}
	}
	return false
}

func matchesAnyPattern(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isLocalScopeName(name string, patterns []string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, p := range patterns {
		if lower == p || strings.HasPrefix(lower, p+":") || strings.HasPrefix(lower, p+" ") {
			return true
		}
	}
	return false
}

var collectionTypeHints = []string{
	"List", "Array", "Set", "Dictionary", "Map", "Collection",
	"[]", "list", "dict", "set", "tuple",
}

func looksLikeCollection(typeName string) bool {
	return matchesAnyPattern(typeName, collectionTypeHints)
}
