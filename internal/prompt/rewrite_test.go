package prompt

import (
	"strings"
	"testing"
)

func script(find, replace string, trim []string, targets ...ScriptTarget) RegexScript {
	return RegexScript{
		ID:      "s-" + find,
		Enabled: true,
		Find:    find,
		Replace: replace,
		Trim:    trim,
		Targets: targets,
	}
}

func TestApplyTrimFragmentBeforeSubstitution(t *testing.T) {
	sc := script(`/foo(bar)?/`, "[{{match}}]", []string{"bar"}, TargetAIOutput)

	out, errs := ApplyScripts("foobar", TargetAIOutput, ViewModel, []RegexScript{sc})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if out != "[foo]" {
		t.Fatalf("got %q, want %q", out, "[foo]")
	}
}

func TestApplyDollarAmpToken(t *testing.T) {
	sc := script("real", "<$&>", nil, TargetAIOutput)

	out, _ := ApplyScripts("it is real", TargetAIOutput, ViewModel, []RegexScript{sc})
	if out != "it is <real>" {
		t.Fatalf("got %q", out)
	}
}

func TestApplyReplacesAllOccurrences(t *testing.T) {
	sc := script("a", "b", nil, TargetAIOutput)

	out, _ := ApplyScripts("banana", TargetAIOutput, ViewModel, []RegexScript{sc})
	if out != "bbnbnb" {
		t.Fatalf("got %q", out)
	}
}

func TestApplyDelimitedFlags(t *testing.T) {
	sc := script("/DRAGON/i", "wyrm", nil, TargetAIOutput)

	out, _ := ApplyScripts("a dragon and a DrAgOn", TargetAIOutput, ViewModel, []RegexScript{sc})
	if out != "a wyrm and a wyrm" {
		t.Fatalf("got %q", out)
	}
}

func TestApplyTargetAndViewGating(t *testing.T) {
	sc := script("x", "y", nil, TargetUserInput)
	sc.Views = []ViewScope{ViewUser}

	if out, _ := ApplyScripts("x", TargetAIOutput, ViewUser, []RegexScript{sc}); out != "x" {
		t.Fatalf("wrong target must not fire, got %q", out)
	}
	if out, _ := ApplyScripts("x", TargetUserInput, ViewModel, []RegexScript{sc}); out != "x" {
		t.Fatalf("wrong view must not fire, got %q", out)
	}
	if out, _ := ApplyScripts("x", TargetUserInput, ViewUser, []RegexScript{sc}); out != "y" {
		t.Fatalf("matching target and view must fire, got %q", out)
	}
}

func TestApplyEmptyViewMatchesAllViewpoints(t *testing.T) {
	sc := script("x", "y", nil, TargetUserInput)

	for _, view := range []ViewScope{ViewUser, ViewModel} {
		if out, _ := ApplyScripts("x", TargetUserInput, view, []RegexScript{sc}); out != "y" {
			t.Fatalf("empty view set must apply for %s", view)
		}
	}
}

func TestApplyDisabledScriptSkipped(t *testing.T) {
	sc := script("x", "y", nil, TargetUserInput)
	sc.Enabled = false

	if out, _ := ApplyScripts("x", TargetUserInput, ViewModel, []RegexScript{sc}); out != "x" {
		t.Fatalf("disabled script fired")
	}
}

func TestApplyBadPatternRecoverable(t *testing.T) {
	good1 := script("a", "1", nil, TargetAIOutput)
	bad := script("(unclosed", "x", nil, TargetAIOutput)
	good2 := script("b", "2", nil, TargetAIOutput)

	out, errs := ApplyScripts("ab", TargetAIOutput, ViewModel, []RegexScript{good1, bad, good2})
	if out != "12" {
		t.Fatalf("scripts around the failure must still run, got %q", out)
	}
	if len(errs) != 1 || errs[0].ScriptID != bad.ID {
		t.Fatalf("expected one error for %s, got %v", bad.ID, errs)
	}
	if !strings.Contains(errs[0].Err, "compile") {
		t.Fatalf("error should mention compilation: %s", errs[0].Err)
	}
}

func TestApplyListOrderSignificant(t *testing.T) {
	first := script("a", "b", nil, TargetAIOutput)
	second := script("b", "c", nil, TargetAIOutput)

	out, _ := ApplyScripts("a", TargetAIOutput, ViewModel, []RegexScript{first, second})
	if out != "c" {
		t.Fatalf("scripts must chain in list order, got %q", out)
	}

	out, _ = ApplyScripts("a", TargetAIOutput, ViewModel, []RegexScript{second, first})
	if out != "b" {
		t.Fatalf("reversed order must not chain, got %q", out)
	}
}

func TestCompileFindUnsupportedFlag(t *testing.T) {
	if _, err := compileFind("/a/q"); err == nil {
		t.Fatalf("expected error for unsupported flag")
	}
	if _, err := compileFind("/a/gi"); err != nil {
		t.Fatalf("g flag must be accepted as a no-op: %v", err)
	}
}
