package cspweaver

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Build(t *testing.T) {
	t.Run("should serialize the default config to default-src 'self'", func(t *testing.T) {
		assert.Equal(t, "default-src 'self'", Build(DefaultConfig()))
	})

	t.Run("should serialize a nil config like the default config", func(t *testing.T) {
		assert.Equal(t, "default-src 'self'", Build(nil))
	})

	t.Run("should append update tokens after base tokens", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{ScriptSrc: []string{SourceSelf}}}
		got := Build(cfg, WithUpdate(map[string]any{ScriptSrc: []string{"cdn.example"}}))
		assert.Equal(t, "script-src 'self' cdn.example", got)
	})

	t.Run("should let replace supersede base and still receive update tokens", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{ScriptSrc: []string{SourceSelf}}}
		got := Build(cfg,
			WithReplace(map[string]any{ScriptSrc: []string{"other"}}),
			WithUpdate(map[string]any{ScriptSrc: []string{"extra"}}),
		)
		assert.Equal(t, "script-src other extra", got)
	})

	t.Run("should remove a base directive when replace maps it to nil", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{DefaultSrc: []string{SourceSelf}}}
		got := Build(cfg, WithReplace(map[string]any{DefaultSrc: nil}))
		assert.Equal(t, "", got)
	})

	t.Run("should create a directive that only exists in the update layer", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{}}
		got := Build(cfg, WithUpdate(map[string]any{ImgSrc: []string{SchemeData}}))
		assert.Equal(t, "img-src data:", got)
	})

	t.Run("should skip nil entries in the update layer", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{DefaultSrc: []string{SourceSelf}}}
		got := Build(cfg, WithUpdate(map[string]any{DefaultSrc: nil}))
		assert.Equal(t, "default-src 'self'", got)
	})

	t.Run("should emit a bare name for a true flag and omit a false flag", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{
			UpgradeInsecureRequests: true,
			BlockAllMixedContent:    false,
			DefaultSrc:              []string{SourceSelf},
		}}
		assert.Equal(t, "default-src 'self'; upgrade-insecure-requests", Build(cfg))
	})

	t.Run("should emit a bare name for an empty token sequence", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{Sandbox: []string{}}}
		assert.Equal(t, "sandbox", Build(cfg))
	})

	t.Run("should auto-wrap a scalar string value as a single token", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{DefaultSrc: SourceNone}}
		assert.Equal(t, "default-src 'none'", Build(cfg))
	})

	t.Run("should pass unknown directive names through after known ones", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{
			"made-up-src": []string{"a"},
			DefaultSrc:    []string{SourceSelf},
		}}
		assert.Equal(t, "default-src 'self'; made-up-src a", Build(cfg))
	})

	t.Run("should serialize known directives in canonical order", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{
			WorkerSrc:  []string{SourceSelf},
			ConnectSrc: []string{SourceSelf},
			ScriptSrc:  []string{SourceSelf},
			DefaultSrc: []string{SourceSelf},
		}}
		got := Build(cfg)
		assert.Equal(t, "connect-src 'self'; default-src 'self'; script-src 'self'; worker-src 'self'", got)
	})

	t.Run("should produce byte-identical output across repeated calls", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{
			DefaultSrc:  []string{SourceSelf},
			ScriptSrc:   []string{SourceSelf, "cdn.example"},
			StyleSrc:    []string{SourceUnsafeInline},
			ReportURI:   []string{"/csp-report"},
			"weird-src": []string{"x"},
		}}
		update := map[string]any{ImgSrc: []string{SchemeData}}
		first := Build(cfg, WithUpdate(update), WithNonce("abc"))
		for i := 0; i < 20; i++ {
			assert.Equal(t, first, Build(cfg, WithUpdate(update), WithNonce("abc")))
		}
	})
}

func Test_Build_ReportURI(t *testing.T) {
	t.Run("should always serialize report-uri as the last fragment", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{
			ReportURI: []string{"/csp-report"},
			WorkerSrc: []string{SourceSelf},
			"zzz-src": []string{"x"},
		}}
		got := Build(cfg)
		assert.Equal(t, "worker-src 'self'; zzz-src x; report-uri /csp-report", got)
	})

	t.Run("should space-join multiple report URIs", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{ReportURI: []string{"/a", "/b"}}}
		assert.Equal(t, "report-uri /a /b", Build(cfg))
	})

	t.Run("should drop an empty report-uri entirely", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{
			ReportURI:  []string{},
			DefaultSrc: []string{SourceSelf},
		}}
		assert.Equal(t, "default-src 'self'", Build(cfg))
	})

	t.Run("should coerce non-string report URIs to strings", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{
			ReportURI: []any{&url.URL{Path: "/report"}},
		}}
		assert.Equal(t, "report-uri /report", Build(cfg))
	})
}

func Test_Build_Nonce(t *testing.T) {
	t.Run("should append the nonce token to default-src when IncludeNonceIn is unset", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{DefaultSrc: []string{SourceSelf}}}
		got := Build(cfg, WithNonce("xyz"))
		assert.Equal(t, "default-src 'self' 'nonce-xyz'", got)
	})

	t.Run("should create the target directive when it was absent", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{}}
		got := Build(cfg, WithNonce("xyz"))
		assert.Equal(t, "default-src 'nonce-xyz'", got)
	})

	t.Run("should inject into every directive listed in IncludeNonceIn", func(t *testing.T) {
		cfg := &Config{
			Directives:     map[string]any{ScriptSrc: []string{SourceSelf}},
			IncludeNonceIn: []string{ScriptSrc, StyleSrc},
		}
		got := Build(cfg, WithNonce("n1"))
		assert.Equal(t, "script-src 'self' 'nonce-n1'; style-src 'nonce-n1'", got)
	})

	t.Run("should not inject when IncludeNonceIn is explicitly empty", func(t *testing.T) {
		cfg := &Config{
			Directives:     map[string]any{DefaultSrc: []string{SourceSelf}},
			IncludeNonceIn: []string{},
		}
		assert.Equal(t, "default-src 'self'", Build(cfg, WithNonce("xyz")))
	})

	t.Run("should reach directives that came from the replace layer", func(t *testing.T) {
		cfg := &Config{
			Directives:     map[string]any{},
			IncludeNonceIn: []string{ScriptSrc},
		}
		got := Build(cfg,
			WithReplace(map[string]any{ScriptSrc: []string{"cdn.example"}}),
			WithNonce("r"),
		)
		assert.Equal(t, "script-src cdn.example 'nonce-r'", got)
	})

	t.Run("should keep report-uri last even when the nonce creates a directive", func(t *testing.T) {
		cfg := &Config{
			Directives:     map[string]any{ReportURI: []string{"/r"}},
			IncludeNonceIn: []string{ScriptSrc},
		}
		got := Build(cfg, WithNonce("z"))
		assert.Equal(t, "script-src 'nonce-z'; report-uri /r", got)
	})

	t.Run("should trim irregular fragment whitespace before appending", func(t *testing.T) {
		cfg := &Config{Directives: map[string]any{DefaultSrc: []string{"'self' "}}}
		got := Build(cfg, WithNonce("w"))
		assert.True(t, strings.HasSuffix(got, "'nonce-w'"))
		assert.False(t, strings.HasSuffix(got, " "))
	})
}

func Test_Build_DoesNotMutateConfig(t *testing.T) {
	t.Run("should leave the config untouched across merge layers", func(t *testing.T) {
		cfg := &Config{
			Directives: map[string]any{
				DefaultSrc: []string{SourceSelf},
				ScriptSrc:  []any{SourceSelf, "cdn.example"},
				ReportURI:  []string{"/csp-report"},
			},
			IncludeNonceIn: []string{ScriptSrc},
		}
		before := cfg.Clone()

		Build(cfg,
			WithUpdate(map[string]any{ScriptSrc: []string{"extra"}, ImgSrc: "img.example"}),
			WithReplace(map[string]any{DefaultSrc: []string{SourceNone}}),
			WithNonce("abc"),
		)

		require.Equal(t, before.Directives[DefaultSrc], normalizeValue(cfg.Directives[DefaultSrc]))
		require.Equal(t, before.Directives[ScriptSrc], normalizeValue(cfg.Directives[ScriptSrc]))
		require.Equal(t, before.Directives[ReportURI], normalizeValue(cfg.Directives[ReportURI]))
		require.Equal(t, before.IncludeNonceIn, cfg.IncludeNonceIn)
	})

	t.Run("should not alias caller-owned token slices", func(t *testing.T) {
		shared := []string{SourceSelf}
		cfg := &Config{Directives: map[string]any{ScriptSrc: shared}}
		Build(cfg, WithUpdate(map[string]any{ScriptSrc: []string{"added"}}))
		assert.Equal(t, []string{SourceSelf}, shared)
	})
}
