package prompt

import (
	"reflect"
	"testing"
)

func keywordEntry(id string, keys, secondary []string, logic SelectiveLogic) WorldbookEntry {
	return WorldbookEntry{
		ID:            id,
		Enabled:       true,
		Mode:          ActivationKeyword,
		Keys:          keys,
		SecondaryKeys: secondary,
		Logic:         logic,
		Position:      EntryBeforeChar,
		Probability:   100,
	}
}

func activatedIDs(entries []WorldbookEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestActivateAlwaysIncludedRegardlessOfText(t *testing.T) {
	a := &Activator{}
	entry := WorldbookEntry{ID: "a", Enabled: true, Mode: ActivationAlways, Probability: 100}

	for _, text := range []string{"", "anything", "dragon"} {
		got := a.Activate([]WorldbookEntry{entry}, text)
		if len(got) != 1 {
			t.Fatalf("always entry missing for text %q", text)
		}
	}
}

func TestActivateVectorNeverIncluded(t *testing.T) {
	a := &Activator{}
	entry := WorldbookEntry{
		ID: "v", Enabled: true, Mode: ActivationVector,
		Keys: []string{"dragon"}, Probability: 100,
	}
	if got := a.Activate([]WorldbookEntry{entry}, "a dragon appears"); len(got) != 0 {
		t.Fatalf("vector entry must never activate, got %v", activatedIDs(got))
	}
}

func TestActivateDisabledSkipped(t *testing.T) {
	a := &Activator{}
	entry := WorldbookEntry{ID: "d", Enabled: false, Mode: ActivationAlways, Probability: 100}
	if got := a.Activate([]WorldbookEntry{entry}, ""); len(got) != 0 {
		t.Fatalf("disabled entry activated")
	}
}

func TestActivateEmptyPrimaryKeysNeverHit(t *testing.T) {
	a := &Activator{}
	entry := keywordEntry("e", nil, nil, LogicAndAny)
	if got := a.Activate([]WorldbookEntry{entry}, "any text at all"); len(got) != 0 {
		t.Fatalf("entry with empty primary keys activated")
	}
}

func TestActivateKeywordCaseSensitive(t *testing.T) {
	a := &Activator{}
	entry := keywordEntry("k", []string{"Dragon"}, nil, LogicAndAny)

	if got := a.Activate([]WorldbookEntry{entry}, "a dragon appears"); len(got) != 0 {
		t.Fatalf("matching must be case-sensitive")
	}
	if got := a.Activate([]WorldbookEntry{entry}, "a Dragon appears"); len(got) != 1 {
		t.Fatalf("expected case-exact hit")
	}
}

func TestSelectiveLogicCombinators(t *testing.T) {
	a := &Activator{}
	cases := []struct {
		name      string
		logic     SelectiveLogic
		secondary []string
		text      string
		want      bool
	}{
		{"andAny primary only, empty secondary", LogicAndAny, nil, "dragon", true},
		{"andAny secondary miss", LogicAndAny, []string{"cave"}, "dragon", false},
		{"andAny secondary hit", LogicAndAny, []string{"cave"}, "dragon cave", true},

		{"andAll empty secondary short-circuits to primary", LogicAndAll, nil, "dragon", true},
		{"andAll requires secondary hit", LogicAndAll, []string{"cave"}, "dragon", false},
		{"andAll primary and secondary", LogicAndAll, []string{"cave", "gold"}, "dragon gold", true},

		{"notAny empty secondary passes", LogicNotAny, nil, "dragon", true},
		{"notAny secondary hit excludes", LogicNotAny, []string{"cave"}, "dragon cave", false},
		{"notAny secondary miss includes", LogicNotAny, []string{"cave"}, "dragon", true},

		{"notAll empty secondary passes", LogicNotAll, nil, "dragon", true},
		{"notAll all secondary hit excludes", LogicNotAll, []string{"cave", "gold"}, "dragon cave gold", false},
		{"notAll partial secondary hit includes", LogicNotAll, []string{"cave", "gold"}, "dragon cave", true},
	}

	for _, tc := range cases {
		entry := keywordEntry("x", []string{"dragon"}, tc.secondary, tc.logic)
		got := a.Activate([]WorldbookEntry{entry}, tc.text)
		if (len(got) == 1) != tc.want {
			t.Errorf("%s: included=%v, want %v", tc.name, len(got) == 1, tc.want)
		}
	}
}

func TestSelectiveLogicNoPrimaryHitNeverIncludes(t *testing.T) {
	a := &Activator{}
	for _, logic := range []SelectiveLogic{LogicAndAny, LogicAndAll, LogicNotAny, LogicNotAll} {
		entry := keywordEntry("x", []string{"dragon"}, []string{"cave"}, logic)
		if got := a.Activate([]WorldbookEntry{entry}, "just a cave"); len(got) != 0 {
			t.Errorf("logic %s: included without a primary hit", logic)
		}
	}
}

func TestProbabilityGatePinnedSource(t *testing.T) {
	entry := WorldbookEntry{ID: "p", Enabled: true, Mode: ActivationAlways, Probability: 40}

	low := &Activator{Rand: func() float64 { return 0.39 }}
	if got := low.Activate([]WorldbookEntry{entry}, ""); len(got) != 1 {
		t.Fatalf("draw 39 < 40 must pass")
	}

	high := &Activator{Rand: func() float64 { return 0.40 }}
	if got := high.Activate([]WorldbookEntry{entry}, ""); len(got) != 0 {
		t.Fatalf("draw 40 >= 40 must fail")
	}
}

func TestProbabilityHundredNeverDraws(t *testing.T) {
	drew := false
	a := &Activator{Rand: func() float64 { drew = true; return 0.99 }}
	entry := WorldbookEntry{ID: "p", Enabled: true, Mode: ActivationAlways, Probability: 100}

	if got := a.Activate([]WorldbookEntry{entry}, ""); len(got) != 1 {
		t.Fatalf("probability 100 must always pass")
	}
	if drew {
		t.Fatalf("probability 100 must not consume randomness")
	}
}

func TestActivateSortedByDepthThenOrderStable(t *testing.T) {
	a := &Activator{}
	entries := []WorldbookEntry{
		{ID: "c", Enabled: true, Mode: ActivationAlways, Probability: 100, Depth: 1, Order: 5},
		{ID: "a", Enabled: true, Mode: ActivationAlways, Probability: 100, Depth: 0, Order: 9},
		{ID: "b1", Enabled: true, Mode: ActivationAlways, Probability: 100, Depth: 1, Order: 2},
		{ID: "b2", Enabled: true, Mode: ActivationAlways, Probability: 100, Depth: 1, Order: 2},
	}

	got := activatedIDs(a.Activate(entries, ""))
	want := []string{"a", "b1", "b2", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}
