package inspector

import (
	"regexp"
	"strconv"
	"strings"
)

// parsePrimitive turns the adapter's textual rendering of a value into a
// Go value suitable for JSON: null/None/nil become nil and undefined
// becomes the string "undefined", so downstream omit-null filtering can
// recognize both; bools are parsed, numbers are parsed (int64, else
// float64) when the type hints at them, quoted strings are unwrapped,
// everything else passes through verbatim.
func parsePrimitive(value, typeName string) any {
	trimmed := strings.TrimSpace(value)
	switch trimmed {
	case "null", "None", "nil":
		return nil
	case "undefined":
		return "undefined"
	case "true", "True":
		return true
	case "false", "False":
		return false
	}

	if looksNumeric(typeName) {
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	}

	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		return trimmed[1 : len(trimmed)-1]
	}

	return trimmed
}

func looksNumeric(typeName string) bool {
	lower := strings.ToLower(typeName)
	for _, hint := range []string{"int", "long", "short", "byte", "float", "double", "decimal", "number", "uint"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

var countEqualsPattern = regexp.MustCompile(`Count\s*=\s*(\d+)`)
var bracketCountPattern = regexp.MustCompile(`\[(\d+)\]`)

// collectionCount applies the preference order from the spec: adapter's
// indexedVariables/namedVariables hints, then a "Count = N" substring,
// then a "[N]" substring, falling back to the number of items actually
// fetched.
func collectionCount(indexed, named int, renderedValue string, fetched int) int {
	if indexed > 0 {
		return indexed
	}
	if named > 0 {
		return named
	}
	if m := countEqualsPattern.FindStringSubmatch(renderedValue); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := bracketCountPattern.FindStringSubmatch(renderedValue); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return fetched
}

// isNullRendering reports whether a parsed primitive counts as "null" for
// omit_null_properties purposes.
func isNullRendering(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && (s == "undefined")
}
