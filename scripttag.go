package cspweaver

import (
	"regexp"
	"strings"
)

// ScriptAttrs holds values for the recognized script tag attributes.
// Unrecognized keys are ignored; recognized ones always render in the fixed
// order nonce, id, src, type, async, defer, integrity, nomodule regardless of
// map iteration order.
type ScriptAttrs map[string]any

type scriptAttrKind int

const (
	// attrString renders ` name="value"` for truthy values.
	attrString scriptAttrKind = iota
	// attrBare renders ` name` for truthy values.
	attrBare
	// attrAsync renders ` async=false` for an explicit false (bool false or
	// the string "False"), ` async` when truthy. The unquoted negative form
	// follows the async attribute's special parsing rule.
	attrAsync
)

var scriptAttrTable = []struct {
	name string
	kind scriptAttrKind
}{
	{"nonce", attrString},
	{"id", attrString},
	{"src", attrString},
	{"type", attrString},
	{"async", attrAsync},
	{"defer", attrBare},
	{"integrity", attrString},
	{"nomodule", attrBare},
}

// Matches an opening script tag minimally, captures up to the first closing
// tag.
var scriptContentRe = regexp.MustCompile(`(?s)<script.*?>(.+?)</script>`)

// unwrapScript extracts the body of a full <script>...</script> block.
// Text that is not a script block passes through unchanged.
func unwrapScript(text string) string {
	if m := scriptContentRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

func formatScriptAttr(name string, kind scriptAttrKind, val any) string {
	switch kind {
	case attrAsync:
		if val == false || val == "False" {
			return " " + name + "=false"
		}
		if truthy(val) {
			return " " + name
		}
	case attrBare:
		if truthy(val) {
			return " " + name
		}
	default:
		if truthy(val) {
			return " " + name + `="` + forceString(val) + `"`
		}
	}
	return ""
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	default:
		return true
	}
}

// RenderScriptTag renders an HTML <script> tag with the given inline content
// and attributes. Content is dropped whenever a src attribute is set, since
// external scripts must not carry inline bodies; inline content already
// wrapped in a <script> block is unwrapped first. Absent or falsy attributes
// render nothing, so RenderScriptTag("", nil) degrades to
// "<script></script>".
func RenderScriptTag(content string, attrs ScriptAttrs) string {
	var sb strings.Builder
	for _, a := range scriptAttrTable {
		sb.WriteString(formatScriptAttr(a.name, a.kind, attrs[a.name]))
	}
	attrStr := strings.TrimRight(sb.String(), " \t\n")

	body := ""
	if content != "" && !truthy(attrs["src"]) {
		body = unwrapScript(content)
	}
	return strings.TrimSpace("<script" + attrStr + ">" + body + "</script>")
}
