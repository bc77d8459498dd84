package cspweaver

// Standard CSP directive names.
// Source: https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Content-Security-Policy
const (
	// Fetch directives
	ChildSrc      = "child-src"
	ConnectSrc    = "connect-src"
	DefaultSrc    = "default-src"
	ScriptSrc     = "script-src"
	ScriptSrcAttr = "script-src-attr"
	ScriptSrcElem = "script-src-elem"
	ObjectSrc     = "object-src"
	StyleSrc      = "style-src"
	StyleSrcAttr  = "style-src-attr"
	StyleSrcElem  = "style-src-elem"
	FontSrc       = "font-src"
	FrameSrc      = "frame-src"
	ImgSrc        = "img-src"
	ManifestSrc   = "manifest-src"
	MediaSrc      = "media-src"
	PrefetchSrc   = "prefetch-src" // Deprecated
	WorkerSrc     = "worker-src"

	// Document directives
	BaseURI     = "base-uri"
	PluginTypes = "plugin-types" // Deprecated
	Sandbox     = "sandbox"

	// Navigation directives
	FormAction     = "form-action"
	FrameAncestors = "frame-ancestors"
	NavigateTo     = "navigate-to"

	// Reporting directives
	ReportURI     = "report-uri" // Deprecated in favor of report-to
	ReportTo      = "report-to"
	RequireSRIFor = "require-sri-for"

	// Trusted Types directives
	RequireTrustedTypesFor = "require-trusted-types-for"
	TrustedTypes           = "trusted-types"

	// Other directives
	WebRTC                  = "webrtc"
	UpgradeInsecureRequests = "upgrade-insecure-requests"
	BlockAllMixedContent    = "block-all-mixed-content" // Deprecated
)

// Common source keywords and schemes, pre-quoted where the grammar requires it.
const (
	SourceSelf          = "'self'"
	SourceNone          = "'none'"
	SourceUnsafeInline  = "'unsafe-inline'"
	SourceUnsafeEval    = "'unsafe-eval'"
	SourceStrictDynamic = "'strict-dynamic'"
	SourceReportSample  = "'report-sample'"

	SchemeData  = "data:"
	SchemeBlob  = "blob:"
	SchemeHTTPS = "https:"
)

// NonceSource formats a nonce token as a CSP source expression.
// Example: NonceSource("R4nd0m") -> 'nonce-R4nd0m'
func NonceSource(nonce string) string {
	return "'nonce-" + nonce + "'"
}

// HashSource formats a hash as a CSP source expression.
// Example: HashSource("sha256", "Abc123==") -> 'sha256-Abc123=='
func HashSource(algo, base64Value string) string {
	return "'" + algo + "-" + base64Value + "'"
}

// directiveOrder is the canonical serialization order for known directives.
// Unknown directive names sort after all of these, alphabetically.
var directiveOrder = []string{
	ChildSrc,
	ConnectSrc,
	DefaultSrc,
	ScriptSrc,
	ScriptSrcAttr,
	ScriptSrcElem,
	ObjectSrc,
	StyleSrc,
	StyleSrcAttr,
	StyleSrcElem,
	FontSrc,
	FrameSrc,
	ImgSrc,
	ManifestSrc,
	MediaSrc,
	PrefetchSrc,
	BaseURI,
	PluginTypes,
	Sandbox,
	FormAction,
	FrameAncestors,
	NavigateTo,
	ReportURI,
	ReportTo,
	RequireSRIFor,
	RequireTrustedTypesFor,
	TrustedTypes,
	WebRTC,
	WorkerSrc,
	UpgradeInsecureRequests,
	BlockAllMixedContent,
}

var directiveRanks = func() map[string]int {
	ranks := make(map[string]int, len(directiveOrder))
	for i, name := range directiveOrder {
		ranks[name] = i
	}
	return ranks
}()

func directiveRank(name string) int {
	if r, ok := directiveRanks[name]; ok {
		return r
	}
	return len(directiveOrder)
}
