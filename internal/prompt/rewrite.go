package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Apply runs every matching rewrite script over text, in list order. Script
// order is author-controlled and never re-sorted. A script whose pattern does
// not compile is skipped and reported; prior and subsequent scripts still run.
func ApplyScripts(text string, target ScriptTarget, view ViewScope, scripts []RegexScript) (string, []ScriptError) {
	var errs []ScriptError
	for _, script := range scripts {
		if !script.AppliesTo(target, view) {
			continue
		}
		out, err := applyScript(text, script)
		if err != nil {
			errs = append(errs, ScriptError{ScriptID: script.ID, Err: err.Error()})
			continue
		}
		text = out
	}
	return text, errs
}

func applyScript(text string, script RegexScript) (string, error) {
	re, err := compileFind(script.Find)
	if err != nil {
		return "", err
	}
	return re.ReplaceAllStringFunc(text, func(match string) string {
		normalized := match
		for _, frag := range script.Trim {
			if frag == "" {
				continue
			}
			normalized = strings.ReplaceAll(normalized, frag, "")
		}
		out := strings.ReplaceAll(script.Replace, "{{match}}", normalized)
		out = strings.ReplaceAll(out, "$&", normalized)
		return out
	}), nil
}

var delimitedFind = regexp.MustCompile(`^/(.*)/([a-zA-Z]*)$`)

// compileFind compiles a find pattern. A /pattern/flags literal keeps its
// pattern and flags verbatim; a bare string is compiled as-is and always
// replaces all occurrences.
func compileFind(find string) (*regexp.Regexp, error) {
	pattern := find
	flags := ""
	if m := delimitedFind.FindStringSubmatch(find); m != nil {
		pattern = m[1]
		flags = m[2]
	}

	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'g', 'u':
			// All occurrences are always replaced; RE2 is UTF-8 native.
		default:
			return nil, fmt.Errorf("unsupported regex flag %q in %s", string(f), find)
		}
	}
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %s: %w", find, err)
	}
	return re, nil
}
