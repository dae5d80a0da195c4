package prompt

import (
	"regexp"
	"strings"
)

// MacroScope selects which variable store a macro reads.
type MacroScope string

const (
	ScopeGlobal  MacroScope = "global"
	ScopeChannel MacroScope = "channel"
)

// ParseMacroScope normalizes and validates a macro scope.
func ParseMacroScope(s string) (MacroScope, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global":
		return ScopeGlobal, true
	case "channel", "local":
		return ScopeChannel, true
	default:
		return "", false
	}
}

// MacroSource resolves named variables from a point-in-time snapshot. The
// caller serializes writes per channel; the expander only reads.
type MacroSource interface {
	Lookup(scope MacroScope, name string) (string, bool)
}

// Identity supplies the built-in {{char}} and {{user}} macros from channel
// configuration.
type Identity struct {
	Char string
	User string
}

// Expander substitutes macro references using a MacroSource and Identity.
type Expander struct {
	Macros   MacroSource
	Identity Identity
}

// macroRef matches {{getvar::name}}, {{getglobalvar::name}}, {{char}} and
// {{user}}. Verbs are case-insensitive; names are trimmed.
var macroRef = regexp.MustCompile(`(?i)\{\{\s*(?:(getvar|getglobalvar)\s*::([^{}]*)|(char|user))\s*\}\}`)

// Expand performs a single pass over text. Substituted values are emitted
// literally and never re-scanned, so a variable whose value contains macro
// syntax cannot recurse. Unknown names resolve to the empty string.
func (e *Expander) Expand(text string) string {
	return macroRef.ReplaceAllStringFunc(text, func(ref string) string {
		m := macroRef.FindStringSubmatch(ref)
		if m == nil {
			return ref
		}
		if m[3] != "" {
			switch strings.ToLower(m[3]) {
			case "char":
				return e.Identity.Char
			case "user":
				return e.Identity.User
			}
			return ""
		}

		name := strings.TrimSpace(m[2])
		if name == "" || e.Macros == nil {
			return ""
		}
		switch strings.ToLower(m[1]) {
		case "getvar":
			// Channel values shadow global ones of the same name.
			if v, ok := e.Macros.Lookup(ScopeChannel, name); ok {
				return v
			}
			if v, ok := e.Macros.Lookup(ScopeGlobal, name); ok {
				return v
			}
		case "getglobalvar":
			if v, ok := e.Macros.Lookup(ScopeGlobal, name); ok {
				return v
			}
		}
		return ""
	})
}

// MapMacroSource is an in-memory MacroSource, useful for tests and for
// snapshotting a persistent store before a build.
type MapMacroSource struct {
	Global  map[string]string
	Channel map[string]string
}

func (m MapMacroSource) Lookup(scope MacroScope, name string) (string, bool) {
	switch scope {
	case ScopeGlobal:
		v, ok := m.Global[name]
		return v, ok
	case ScopeChannel:
		v, ok := m.Channel[name]
		return v, ok
	}
	return "", false
}
