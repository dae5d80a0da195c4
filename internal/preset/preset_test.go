package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kayz/fable/internal/prompt"
)

const nativeJSON = `{
  "name": "story",
  "segments": [
    {"id": "main", "role": "system", "order": 10, "content": "You are {{char}}."},
    {"id": "charDescription", "role": "system", "order": 20, "marker": true},
    {"id": "chatHistory", "role": "system", "order": 30, "marker": true},
    {"id": "jail", "role": "system", "position": "fixed", "depth": 2, "content": "stay", "enabled": false}
  ],
  "worldbook": [
    {"id": "wb1", "keys": ["dragon"], "position": "beforeChar", "content": "Dragons are real."}
  ],
  "scripts": [
    {"id": "s1", "find": "real", "replace": "REAL", "targets": ["aiOutput"], "views": ["model"]}
  ],
  "markers": {"charDescription": "Aria is a knight."},
  "assistant_prefill": "Sure, "
}`

func TestNormalizeNativeDefaults(t *testing.T) {
	res, err := Normalize([]byte(nativeJSON))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	p := res.Preset

	if p.Name != "story" || len(p.Segments) != 4 {
		t.Fatalf("preset = %+v", p)
	}
	if !p.Segments[0].Enabled {
		t.Fatalf("enabled must default to true")
	}
	if p.Segments[3].Enabled {
		t.Fatalf("explicit enabled=false lost")
	}
	if p.Segments[0].Position != prompt.PositionRelative {
		t.Fatalf("position must default to relative, got %s", p.Segments[0].Position)
	}
	if p.Segments[3].Position != prompt.PositionFixed || p.Segments[3].Depth != 2 {
		t.Fatalf("fixed segment = %+v", p.Segments[3])
	}

	wb := p.Worldbook[0]
	if wb.Mode != prompt.ActivationKeyword || wb.Probability != 100 {
		t.Fatalf("worldbook defaults = %+v", wb)
	}
	if wb.Logic != prompt.LogicAndAny {
		t.Fatalf("logic must default to andAny, got %s", wb.Logic)
	}

	sc := p.Scripts[0]
	if !sc.Enabled || sc.Targets[0] != prompt.TargetAIOutput || sc.Views[0] != prompt.ViewModel {
		t.Fatalf("script = %+v", sc)
	}

	if res.Markers["charDescription"] != "Aria is a knight." {
		t.Fatalf("markers = %v", res.Markers)
	}
	if p.AssistantPrefill != "Sure, " {
		t.Fatalf("prefill = %q", p.AssistantPrefill)
	}
}

func TestNormalizeRejectsBadEnums(t *testing.T) {
	cases := []string{
		`{"segments": [{"id": "a", "role": "narrator"}]}`,
		`{"segments": [{"id": "a", "role": "system", "position": "floating"}]}`,
		`{"segments": [], "worldbook": [{"mode": "psychic", "content": "x"}]}`,
		`{"segments": [], "scripts": [{"find": "a", "replace": "b", "targets": ["everything"]}]}`,
	}
	for _, data := range cases {
		if _, err := Normalize([]byte(data)); err == nil {
			t.Errorf("expected enum error for %s", data)
		}
	}
}

func TestNormalizeRejectsDuplicateSegmentIDs(t *testing.T) {
	data := `{"segments": [
		{"id": "a", "role": "system"},
		{"id": "a", "role": "user"}
	]}`
	if _, err := Normalize([]byte(data)); err == nil {
		t.Fatalf("duplicate segment IDs must be rejected at import")
	}
}

func TestNormalizeUnrecognizedShape(t *testing.T) {
	if _, err := Normalize([]byte(`{"chapters": []}`)); err == nil {
		t.Fatalf("expected shape error")
	}
}

func TestLoadFillsNameFromFile(t *testing.T) {
	dir := t.TempDir()
	data := `{"segments": [{"id": "main", "role": "system", "content": "x"}]}`
	if err := os.WriteFile(filepath.Join(dir, "adventure.json"), []byte(data), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}

	res, err := Load(dir, "adventure")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Preset.Name != "adventure" {
		t.Fatalf("name = %q", res.Preset.Name)
	}

	if _, err := Load(dir, "missing"); err == nil {
		t.Fatalf("expected error for missing preset")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	res, err := Normalize([]byte(nativeJSON))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	data, err := Encode(res)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := Normalize(data)
	if err != nil {
		t.Fatalf("re-normalize: %v", err)
	}
	if len(back.Preset.Segments) != len(res.Preset.Segments) {
		t.Fatalf("segments lost in round trip")
	}
	if back.Preset.Worldbook[0].Probability != 100 {
		t.Fatalf("probability lost in round trip")
	}
	if back.Preset.Segments[3].Enabled {
		t.Fatalf("disabled flag lost in round trip")
	}
}
