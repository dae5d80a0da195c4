// Package preset normalizes externally authored preset files into the
// canonical pipeline structures. Stored JSON varies by origin, including a
// legacy third-party card format; every accepted shape is converted here,
// before the pipeline ever sees it.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kayz/fable/internal/prompt"
)

// File is the native on-disk preset shape.
type File struct {
	Name             string            `json:"name"`
	Segments         []SegmentJSON     `json:"segments"`
	Worldbook        []EntryJSON       `json:"worldbook,omitempty"`
	Scripts          []ScriptJSON      `json:"scripts,omitempty"`
	Markers          map[string]string `json:"markers,omitempty"`
	AssistantPrefill string            `json:"assistant_prefill,omitempty"`
}

type SegmentJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	Position string `json:"position,omitempty"`
	Depth    int    `json:"depth,omitempty"`
	Order    int    `json:"order"`
	Enabled  *bool  `json:"enabled,omitempty"`
	Content  string `json:"content,omitempty"`
	Marker   bool   `json:"marker,omitempty"`
}

type EntryJSON struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name,omitempty"`
	Enabled       *bool    `json:"enabled,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	Keys          []string `json:"keys,omitempty"`
	SecondaryKeys []string `json:"secondary_keys,omitempty"`
	Logic         string   `json:"logic,omitempty"`
	Position      string   `json:"position,omitempty"`
	Depth         int      `json:"depth,omitempty"`
	Order         int      `json:"order,omitempty"`
	Probability   *int     `json:"probability,omitempty"`
	Content       string   `json:"content"`
}

type ScriptJSON struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`
	Find    string   `json:"find"`
	Replace string   `json:"replace"`
	Trim    []string `json:"trim,omitempty"`
	Targets []string `json:"targets"`
	Views   []string `json:"views,omitempty"`
}

// Resolved pairs a canonical preset with the external marker content bundled
// alongside it.
type Resolved struct {
	Preset  prompt.Preset
	Markers map[string]string
}

// Load reads and normalizes the named preset from dir.
func Load(dir, name string) (*Resolved, error) {
	path := filepath.Join(dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset %s: %w", path, err)
	}
	res, err := Normalize(data)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", path, err)
	}
	if res.Preset.Name == "" {
		res.Preset.Name = name
	}
	return res, nil
}

// Normalize converts any accepted external shape into canonical structures.
// Unrecognized enum values fail here, at import time, never inside the
// pipeline.
func Normalize(data []byte) (*Resolved, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse preset json: %w", err)
	}

	if _, ok := probe["segments"]; ok {
		return normalizeNative(data)
	}
	if _, legacy := probe["prompts"]; legacy {
		return normalizeLegacy(data)
	}
	if _, legacy := probe["entries"]; legacy {
		return normalizeLegacy(data)
	}
	return nil, fmt.Errorf("unrecognized preset shape: expected segments, prompts or entries")
}

func normalizeNative(data []byte) (*Resolved, error) {
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse preset json: %w", err)
	}

	p := prompt.Preset{
		Name:             file.Name,
		AssistantPrefill: file.AssistantPrefill,
	}

	for _, seg := range file.Segments {
		role, err := prompt.ParseRole(seg.Role)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", seg.ID, err)
		}
		pos, err := prompt.ParsePosition(seg.Position)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", seg.ID, err)
		}
		p.Segments = append(p.Segments, prompt.PromptSegment{
			ID:       strings.TrimSpace(seg.ID),
			Name:     seg.Name,
			Role:     role,
			Position: pos,
			Depth:    seg.Depth,
			Order:    seg.Order,
			Enabled:  boolOr(seg.Enabled, true),
			Content:  seg.Content,
			Marker:   seg.Marker,
		})
	}

	for i, e := range file.Worldbook {
		entry, err := normalizeEntry(e, i)
		if err != nil {
			return nil, err
		}
		p.Worldbook = append(p.Worldbook, entry)
	}

	for i, sc := range file.Scripts {
		script, err := normalizeScript(sc, i)
		if err != nil {
			return nil, err
		}
		p.Scripts = append(p.Scripts, script)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Resolved{Preset: p, Markers: file.Markers}, nil
}

func normalizeEntry(e EntryJSON, idx int) (prompt.WorldbookEntry, error) {
	mode, err := prompt.ParseActivationMode(e.Mode)
	if err != nil {
		return prompt.WorldbookEntry{}, fmt.Errorf("worldbook entry %d: %w", idx, err)
	}
	logic, err := prompt.ParseSelectiveLogic(e.Logic)
	if err != nil {
		return prompt.WorldbookEntry{}, fmt.Errorf("worldbook entry %d: %w", idx, err)
	}
	pos, err := prompt.ParseEntryPosition(e.Position)
	if err != nil {
		return prompt.WorldbookEntry{}, fmt.Errorf("worldbook entry %d: %w", idx, err)
	}
	return prompt.WorldbookEntry{
		ID:            entryID(e.ID),
		Name:          e.Name,
		Enabled:       boolOr(e.Enabled, true),
		Mode:          mode,
		Keys:          e.Keys,
		SecondaryKeys: e.SecondaryKeys,
		Logic:         logic,
		Position:      pos,
		Depth:         e.Depth,
		Order:         e.Order,
		Probability:   intOr(e.Probability, 100),
		Content:       e.Content,
	}, nil
}

func normalizeScript(sc ScriptJSON, idx int) (prompt.RegexScript, error) {
	script := prompt.RegexScript{
		ID:      entryID(sc.ID),
		Name:    sc.Name,
		Enabled: boolOr(sc.Enabled, true),
		Find:    sc.Find,
		Replace: sc.Replace,
		Trim:    sc.Trim,
	}
	for _, t := range sc.Targets {
		target, err := prompt.ParseScriptTarget(t)
		if err != nil {
			return prompt.RegexScript{}, fmt.Errorf("script %d: %w", idx, err)
		}
		script.Targets = append(script.Targets, target)
	}
	for _, v := range sc.Views {
		view, err := prompt.ParseViewScope(v)
		if err != nil {
			return prompt.RegexScript{}, fmt.Errorf("script %d: %w", idx, err)
		}
		script.Views = append(script.Views, view)
	}
	return script, nil
}

// Encode renders a canonical preset back into the native file shape.
func Encode(res *Resolved) ([]byte, error) {
	file := File{
		Name:             res.Preset.Name,
		Markers:          res.Markers,
		AssistantPrefill: res.Preset.AssistantPrefill,
	}
	for _, seg := range res.Preset.Segments {
		enabled := seg.Enabled
		file.Segments = append(file.Segments, SegmentJSON{
			ID:       seg.ID,
			Name:     seg.Name,
			Role:     string(seg.Role),
			Position: string(seg.Position),
			Depth:    seg.Depth,
			Order:    seg.Order,
			Enabled:  &enabled,
			Content:  seg.Content,
			Marker:   seg.Marker,
		})
	}
	for _, e := range res.Preset.Worldbook {
		enabled := e.Enabled
		probability := e.Probability
		file.Worldbook = append(file.Worldbook, EntryJSON{
			ID:            e.ID,
			Name:          e.Name,
			Enabled:       &enabled,
			Mode:          string(e.Mode),
			Keys:          e.Keys,
			SecondaryKeys: e.SecondaryKeys,
			Logic:         string(e.Logic),
			Position:      string(e.Position),
			Depth:         e.Depth,
			Order:         e.Order,
			Probability:   &probability,
			Content:       e.Content,
		})
	}
	for _, sc := range res.Preset.Scripts {
		enabled := sc.Enabled
		sj := ScriptJSON{
			ID:      sc.ID,
			Name:    sc.Name,
			Enabled: &enabled,
			Find:    sc.Find,
			Replace: sc.Replace,
			Trim:    sc.Trim,
		}
		for _, t := range sc.Targets {
			sj.Targets = append(sj.Targets, string(t))
		}
		for _, v := range sc.Views {
			sj.Views = append(sj.Views, string(v))
		}
		file.Scripts = append(file.Scripts, sj)
	}
	return json.MarshalIndent(file, "", "  ")
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
