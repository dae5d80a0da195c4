package persist

import (
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestChannelUpsertAndGet(t *testing.T) {
	store := newTestStore(t)

	ch := Channel{ID: "c1", Preset: "story", CharName: "Aria", UserName: "Sam", Prefill: "Sure, "}
	if err := store.UpsertChannel(ch); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.GetChannel("c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Preset != "story" || got.CharName != "Aria" || got.Prefill != "Sure, " {
		t.Fatalf("channel = %+v", got)
	}

	ch.Preset = "adventure"
	if err := store.UpsertChannel(ch); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err = store.GetChannel("c1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Preset != "adventure" {
		t.Fatalf("update lost: %+v", got)
	}
}

func TestGetChannelUnknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetChannel("nope")
	if err == nil || !strings.Contains(err.Error(), "unknown channel") {
		t.Fatalf("err = %v", err)
	}
}

func TestMessagesChronologicalWithLimit(t *testing.T) {
	store := newTestStore(t)

	for _, content := range []string{"one", "two", "three", "four"} {
		if err := store.AddMessage("c1", "user", content); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := store.AddMessage("other", "user", "elsewhere"); err != nil {
		t.Fatalf("add: %v", err)
	}

	msgs, err := store.GetMessages("c1", 3, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages", len(msgs))
	}
	// Limit keeps the newest, returned oldest first.
	if msgs[0].Content != "two" || msgs[2].Content != "four" {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestSummaryMarksMessages(t *testing.T) {
	store := newTestStore(t)

	for _, content := range []string{"one", "two", "three"} {
		if err := store.AddMessage("c1", "user", content); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	all, err := store.GetMessages("c1", 0, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := store.AddSummary("c1", "they talked", all[1].ID); err != nil {
		t.Fatalf("add summary: %v", err)
	}

	fresh, err := store.GetMessages("c1", 0, true)
	if err != nil {
		t.Fatalf("get unsummarized: %v", err)
	}
	if len(fresh) != 1 || fresh[0].Content != "three" {
		t.Fatalf("unsummarized = %+v", fresh)
	}

	summaries, err := store.GetSummaries("c1")
	if err != nil {
		t.Fatalf("get summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Content != "they talked" {
		t.Fatalf("summaries = %+v", summaries)
	}
	if summaries[0].CoversUntil != all[1].ID {
		t.Fatalf("covers_until = %d, want %d", summaries[0].CoversUntil, all[1].ID)
	}
}

func TestMacroLifecycle(t *testing.T) {
	store := newTestStore(t)

	if _, ok, err := store.GetMacro("global", "", "mood"); err != nil || ok {
		t.Fatalf("unset macro: ok=%v err=%v", ok, err)
	}

	if err := store.SetMacro("global", "", "mood", "calm"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetMacro("global", "", "mood", "tense"); err != nil {
		t.Fatalf("replace: %v", err)
	}

	value, ok, err := store.GetMacro("global", "", "mood")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if value != "tense" {
		t.Fatalf("value = %q", value)
	}

	if err := store.DeleteMacro("global", "", "mood"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.GetMacro("global", "", "mood"); ok {
		t.Fatalf("macro survived delete")
	}
}

func TestMacroScopesIsolated(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetMacro("global", "", "mood", "calm"); err != nil {
		t.Fatalf("set global: %v", err)
	}
	if err := store.SetMacro("channel", "c1", "mood", "tense"); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	if err := store.SetMacro("channel", "c2", "mood", "angry"); err != nil {
		t.Fatalf("set channel: %v", err)
	}

	global, channel, err := store.MacroSnapshot("c1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if global["mood"] != "calm" || channel["mood"] != "tense" {
		t.Fatalf("snapshot = %v %v", global, channel)
	}

	macros, err := store.ListMacros("channel", "c2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(macros) != 1 || macros[0].Value != "angry" {
		t.Fatalf("c2 macros = %+v", macros)
	}
}

func TestListMacrosSortedByName(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := store.SetMacro("global", "", name, "v"); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	macros, err := store.ListMacros("global", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if macros[0].Name != "alpha" || macros[1].Name != "mid" || macros[2].Name != "zeta" {
		t.Fatalf("order = %+v", macros)
	}
}
