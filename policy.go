package cspweaver

import (
	"fmt"
	"sort"
	"strings"
)

// BuildOption configures a single Build call.
type BuildOption func(*buildOptions)

type buildOptions struct {
	update  map[string]any
	replace map[string]any
	nonce   string
}

// WithUpdate appends tokens to directives on top of the base configuration.
// A directive absent from the base is created with exactly these tokens.
func WithUpdate(update map[string]any) BuildOption {
	return func(o *buildOptions) { o.update = update }
}

// WithReplace supersedes base directives wholesale. A nil value removes the
// directive from the policy entirely.
func WithReplace(replace map[string]any) BuildOption {
	return func(o *buildOptions) { o.replace = replace }
}

// WithNonce injects 'nonce-<value>' into every directive named by the
// configuration's IncludeNonceIn list (default-src when the list is unset).
func WithNonce(nonce string) BuildOption {
	return func(o *buildOptions) { o.nonce = nonce }
}

// Build assembles a Content-Security-Policy header value from cfg and the
// per-call options. cfg is never mutated; every merge layer works on copies,
// so a single Config may back many concurrent requests.
//
// Directive values are coerced rather than validated: nil means absent, a
// bool is a flag (true emits the bare directive, false suppresses it), a
// string or any other scalar becomes a single token, and a slice is an
// ordered token list. Unknown directive names pass through unchanged.
func Build(cfg *Config, opts ...BuildOption) string {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Base layer overlaid by replace. A replace entry wins outright for its
	// name, including a nil entry, which removes the directive.
	merged := make(map[string][]any, len(cfg.Directives)+len(o.replace))
	for name, v := range cfg.Directives {
		if _, overridden := o.replace[name]; overridden {
			continue
		}
		if toks := normalizeValue(v); toks != nil {
			merged[name] = toks
		}
	}
	for name, v := range o.replace {
		if toks := normalizeValue(v); toks != nil {
			merged[name] = toks
		}
	}

	// Update layer appends, never removes. Order within a directive is
	// base/replace tokens first, then update tokens; duplicates are kept.
	for name, v := range o.update {
		toks := normalizeValue(v)
		if toks == nil {
			continue
		}
		if cur, ok := merged[name]; ok {
			merged[name] = append(cur, toks...)
		} else {
			merged[name] = toks
		}
	}

	// report-uri serializes last and its tokens are opaque URIs, not source
	// expressions. Pull it out before the general pass.
	reportURI := merged[ReportURI]
	delete(merged, ReportURI)

	type fragment struct {
		name  string
		value string
	}
	fragments := make([]fragment, 0, len(merged)+1)
	for _, name := range orderedNames(merged) {
		toks := merged[name]
		if len(toks) > 0 {
			if flag, ok := toks[0].(bool); ok {
				if flag {
					fragments = append(fragments, fragment{name: name})
				}
				continue
			}
		}
		fragments = append(fragments, fragment{name: name, value: joinTokens(toks)})
	}

	reportURIAt := -1
	if len(reportURI) > 0 {
		reportURIAt = len(fragments)
		fragments = append(fragments, fragment{name: ReportURI, value: joinTokens(reportURI)})
	}

	if o.nonce != "" {
		includeIn := cfg.IncludeNonceIn
		if includeIn == nil {
			includeIn = []string{DefaultSrc}
		}
		token := NonceSource(o.nonce)
		for _, name := range includeIn {
			at := -1
			for i := range fragments {
				if fragments[i].name == name {
					at = i
					break
				}
			}
			if at >= 0 {
				fragments[at].value = strings.TrimSpace(fragments[at].value + " " + token)
				continue
			}
			created := fragment{name: name, value: token}
			if reportURIAt >= 0 {
				fragments = append(fragments[:reportURIAt], append([]fragment{created}, fragments[reportURIAt:]...)...)
				reportURIAt++
			} else {
				fragments = append(fragments, created)
			}
		}
	}

	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = strings.TrimSpace(f.name + " " + f.value)
	}
	return strings.TrimSpace(strings.Join(parts, "; "))
}

// normalizeValue coerces a directive value to a fresh token slice.
// nil reports the directive absent; an empty slice stays an empty (flag-like)
// token list. The returned slice never aliases the input.
func normalizeValue(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, len(t))
		copy(out, t)
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

func joinTokens(toks []any) string {
	if len(toks) == 0 {
		return ""
	}
	ss := make([]string, len(toks))
	for i, tok := range toks {
		ss[i] = forceString(tok)
	}
	return strings.Join(ss, " ")
}

func forceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// orderedNames returns directive names in canonical order: known directives
// per the declaration order in directives.go, then unknown names
// alphabetically.
func orderedNames(m map[string][]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := directiveRank(names[i]), directiveRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}
