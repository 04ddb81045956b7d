// Package exception flattens a captured exception object's inner-exception
// chain into an ordered list of entries, extracts type-specific fields,
// and classifies the root cause against a closed category table with a
// fixed-table actionable hint (§4.5 of the driver's component design).
package exception

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/loafbrew/dapheadless/internal/model"
)

// exceptionVariableNames are the well-known keys adapters use for the
// currently-handled exception in a captured locals snapshot.
var exceptionVariableNames = []string{"$exception", "$Exception", "$err", "exception"}

// Analyze walks the chain rooted at locals' well-known exception entry,
// up to maxDepth levels, and returns it flattened with the deepest entry
// marked as the root cause and classified.
func Analyze(locals map[string]*model.VariableValue, maxDepth int) []model.ExceptionChainEntry {
	root := findExceptionRoot(locals)
	if root == nil {
		return nil
	}

	var entries []model.ExceptionChainEntry
	current := root
	for depth := 0; depth < maxDepth && current != nil; depth++ {
		entry := extractEntry(current, depth)
		entries = append(entries, entry)
		current = innerException(current)
	}

	if len(entries) == 0 {
		return entries
	}

	last := &entries[len(entries)-1]
	last.IsRootCause = true
	category := Classify(last.Type)
	last.Category = string(category)
	last.Hint = Hint(last.Type, errorCodeFrom(last.ExtractedData), category)

	return entries
}

func findExceptionRoot(locals map[string]*model.VariableValue) *model.VariableValue {
	for _, name := range exceptionVariableNames {
		if v, ok := locals[name]; ok && v != nil {
			return v
		}
	}
	return nil
}

func innerException(v *model.VariableValue) *model.VariableValue {
	if v == nil || v.Object == nil {
		return nil
	}
	for key, child := range v.Object {
		if strings.EqualFold(key, "InnerException") {
			if child == nil || child.Kind == model.KindPrimitive && isNilPrimitive(child.Primitive) {
				return nil
			}
			return child
		}
	}
	return nil
}

func isNilPrimitive(v any) bool {
	return v == nil
}

var typeCurlyPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// extractType prefers the inner curly-braced runtime type name from a
// "Namespace.Type {RuntimeType}" rendering, falling back to the raw type.
func extractType(typeName string) string {
	if m := typeCurlyPattern.FindStringSubmatch(typeName); m != nil {
		return strings.TrimSpace(m[1])
	}
	return typeName
}

func stringMember(v *model.VariableValue, name string) string {
	if v == nil || v.Object == nil {
		return ""
	}
	for key, child := range v.Object {
		if strings.EqualFold(key, name) && child != nil && child.Kind == model.KindPrimitive {
			if s, ok := child.Primitive.(string); ok {
				return s
			}
		}
	}
	return ""
}

func member(v *model.VariableValue, name string) *model.VariableValue {
	if v == nil || v.Object == nil {
		return nil
	}
	for key, child := range v.Object {
		if strings.EqualFold(key, name) {
			return child
		}
	}
	return nil
}

// extractThrowSite parses a TargetSite-shaped member if present, else the
// first line of StackTrace.
func extractThrowSite(v *model.VariableValue) string {
	if site := member(v, "TargetSite"); site != nil {
		if name := stringMember(site, "Name"); name != "" {
			return name
		}
	}
	stack := stringMember(v, "StackTrace")
	if stack == "" {
		return ""
	}
	if idx := strings.IndexByte(stack, '\n'); idx >= 0 {
		return strings.TrimSpace(stack[:idx])
	}
	return strings.TrimSpace(stack)
}

func extractEntry(v *model.VariableValue, depth int) model.ExceptionChainEntry {
	entry := model.ExceptionChainEntry{
		Depth:     depth,
		Type:      extractType(v.Type),
		Message:   stringMember(v, "Message"),
		Source:    stringMember(v, "Source"),
		ThrowSite: extractThrowSite(v),
	}
	entry.ExtractedData = extractFamilyFields(entry.Type, v)
	return entry
}

// extractFamilyFields pulls the small, type-family-specific extra fields
// the spec's data model calls out: SQL error number/state, socket error
// codes, HTTP status codes, the offending argument name, and the
// file-system path.
func extractFamilyFields(typeName string, v *model.VariableValue) map[string]any {
	data := make(map[string]any)
	last := lastSegment(typeName)

	switch {
	case strings.Contains(last, "Sql"):
		if n := numericMember(v, "Number"); n != nil {
			data["errorNumber"] = n
		}
		if s := stringMember(v, "State"); s != "" {
			data["state"] = s
		}
	case strings.Contains(last, "Socket"):
		if n := numericMember(v, "ErrorCode"); n != nil {
			data["errorCode"] = n
		}
	case strings.Contains(last, "Http"):
		if n := numericMember(v, "StatusCode"); n != nil {
			data["statusCode"] = n
		}
	case strings.Contains(last, "Argument"):
		if name := stringMember(v, "ParamName"); name != "" {
			data["paramName"] = name
		}
	case strings.Contains(last, "File") || strings.Contains(last, "Directory") || strings.Contains(last, "IO"):
		if path := stringMember(v, "FileName"); path != "" {
			data["path"] = path
		} else if path := stringMember(v, "Path"); path != "" {
			data["path"] = path
		}
	}

	if len(data) == 0 {
		return nil
	}
	return data
}

func numericMember(v *model.VariableValue, name string) any {
	child := member(v, name)
	if child == nil || child.Kind != model.KindPrimitive {
		return nil
	}
	return child.Primitive
}

func errorCodeFrom(data map[string]any) string {
	for _, key := range []string{"errorNumber", "errorCode", "statusCode"} {
		if v, ok := data[key]; ok {
			switch n := v.(type) {
			case int64:
				return strconv.FormatInt(n, 10)
			case float64:
				return strconv.FormatFloat(n, 'f', -1, 64)
			case string:
				return n
			}
		}
	}
	return ""
}
