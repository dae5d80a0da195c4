package preset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kayz/fable/internal/prompt"
)

// legacyFile is the third-party card shape: prompts plus a prompt_order
// list, numeric enums throughout, and worldbook entries keyed by uid.
type legacyFile struct {
	Name             string              `json:"name,omitempty"`
	Prompts          []legacyPrompt      `json:"prompts"`
	PromptOrder      []legacyPromptOrder `json:"prompt_order,omitempty"`
	Entries          json.RawMessage     `json:"entries,omitempty"`
	RegexScripts     []legacyScript      `json:"regex_scripts,omitempty"`
	AssistantPrefill string              `json:"assistant_prefill,omitempty"`
}

type legacyPrompt struct {
	Identifier        string `json:"identifier"`
	Name              string `json:"name,omitempty"`
	Role              string `json:"role,omitempty"`
	Content           string `json:"content,omitempty"`
	Marker            bool   `json:"marker,omitempty"`
	InjectionPosition int    `json:"injection_position,omitempty"`
	InjectionDepth    int    `json:"injection_depth,omitempty"`
	Enabled           *bool  `json:"enabled,omitempty"`
}

type legacyPromptOrder struct {
	CharacterID json.Number       `json:"character_id,omitempty"`
	Order       []legacyOrderItem `json:"order"`
}

type legacyOrderItem struct {
	Identifier string `json:"identifier"`
	Enabled    bool   `json:"enabled"`
}

type legacyEntry struct {
	UID            json.Number `json:"uid,omitempty"`
	Comment        string      `json:"comment,omitempty"`
	Key            []string    `json:"key,omitempty"`
	KeySecondary   []string    `json:"keysecondary,omitempty"`
	SelectiveLogic int         `json:"selectiveLogic,omitempty"`
	Constant       bool        `json:"constant,omitempty"`
	Vectorized     bool        `json:"vectorized,omitempty"`
	Position       int         `json:"position,omitempty"`
	Depth          int         `json:"depth,omitempty"`
	Order          int         `json:"order,omitempty"`
	Probability    int         `json:"probability,omitempty"`
	UseProbability bool        `json:"useProbability,omitempty"`
	Content        string      `json:"content"`
	Disable        bool        `json:"disable,omitempty"`
}

type legacyScript struct {
	ID            string   `json:"id,omitempty"`
	ScriptName    string   `json:"scriptName,omitempty"`
	FindRegex     string   `json:"findRegex"`
	ReplaceString string   `json:"replaceString"`
	TrimStrings   []string `json:"trimStrings,omitempty"`
	Placement     []int    `json:"placement"`
	MarkdownOnly  bool     `json:"markdownOnly,omitempty"`
	PromptOnly    bool     `json:"promptOnly,omitempty"`
	Disabled      bool     `json:"disabled,omitempty"`
}

func normalizeLegacy(data []byte) (*Resolved, error) {
	var file legacyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse legacy preset json: %w", err)
	}

	p := prompt.Preset{
		Name:             file.Name,
		AssistantPrefill: file.AssistantPrefill,
	}

	segments, err := legacySegments(file)
	if err != nil {
		return nil, err
	}
	p.Segments = segments

	entries, err := legacyEntries(file.Entries)
	if err != nil {
		return nil, err
	}
	p.Worldbook = entries

	for i, sc := range file.RegexScripts {
		script, err := legacyScriptToNative(sc)
		if err != nil {
			return nil, fmt.Errorf("regex script %d: %w", i, err)
		}
		p.Scripts = append(p.Scripts, script)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Resolved{Preset: p}, nil
}

func legacySegments(file legacyFile) ([]prompt.PromptSegment, error) {
	// The order list, when present, controls both sequence and the enabled
	// flag; prompts absent from it keep their own flag and sort last.
	orderIndex := make(map[string]int)
	orderEnabled := make(map[string]bool)
	if len(file.PromptOrder) > 0 {
		for i, item := range file.PromptOrder[0].Order {
			orderIndex[item.Identifier] = i
			orderEnabled[item.Identifier] = item.Enabled
		}
	}

	var segments []prompt.PromptSegment
	for i, lp := range file.Prompts {
		id := strings.TrimSpace(lp.Identifier)
		if id == "" {
			return nil, fmt.Errorf("prompt %d: identifier is required", i)
		}
		roleStr := lp.Role
		if roleStr == "" {
			roleStr = "system"
		}
		role, err := prompt.ParseRole(roleStr)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", id, err)
		}

		position := prompt.PositionRelative
		if lp.InjectionPosition == 1 {
			position = prompt.PositionFixed
		}

		order := len(orderIndex) + i
		if idx, ok := orderIndex[id]; ok {
			order = idx
		}
		enabled := boolOr(lp.Enabled, true)
		if v, ok := orderEnabled[id]; ok {
			enabled = v
		}

		segments = append(segments, prompt.PromptSegment{
			ID:       id,
			Name:     lp.Name,
			Role:     role,
			Position: position,
			Depth:    lp.InjectionDepth,
			Order:    order,
			Enabled:  enabled,
			Content:  lp.Content,
			Marker:   lp.Marker,
		})
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Order < segments[j].Order
	})
	return segments, nil
}

// legacyEntries accepts both the map and the array encodings of the
// worldbook entry list.
func legacyEntries(raw json.RawMessage) ([]prompt.WorldbookEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var list []legacyEntry
	if err := json.Unmarshal(raw, &list); err != nil {
		byUID := map[string]legacyEntry{}
		if err := json.Unmarshal(raw, &byUID); err != nil {
			return nil, fmt.Errorf("parse worldbook entries: %w", err)
		}
		keys := make([]string, 0, len(byUID))
		for k := range byUID {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			list = append(list, byUID[k])
		}
	}

	var entries []prompt.WorldbookEntry
	for i, le := range list {
		entry, err := legacyEntryToNative(le)
		if err != nil {
			return nil, fmt.Errorf("worldbook entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func legacyEntryToNative(le legacyEntry) (prompt.WorldbookEntry, error) {
	mode := prompt.ActivationKeyword
	switch {
	case le.Constant:
		mode = prompt.ActivationAlways
	case le.Vectorized:
		mode = prompt.ActivationVector
	}

	var logic prompt.SelectiveLogic
	switch le.SelectiveLogic {
	case 0:
		logic = prompt.LogicAndAny
	case 1:
		logic = prompt.LogicNotAll
	case 2:
		logic = prompt.LogicNotAny
	case 3:
		logic = prompt.LogicAndAll
	default:
		return prompt.WorldbookEntry{}, fmt.Errorf("unsupported selectiveLogic %d", le.SelectiveLogic)
	}

	var position prompt.EntryPosition
	switch le.Position {
	case 0, 2:
		position = prompt.EntryBeforeChar
	case 1, 3:
		position = prompt.EntryAfterChar
	case 4, 5, 6:
		position = prompt.EntryFixed
	default:
		return prompt.WorldbookEntry{}, fmt.Errorf("unsupported position %d", le.Position)
	}

	probability := 100
	if le.UseProbability {
		probability = le.Probability
	}

	id := le.UID.String()
	if id == "" {
		id = uuid.NewString()
	}

	return prompt.WorldbookEntry{
		ID:            id,
		Name:          le.Comment,
		Enabled:       !le.Disable,
		Mode:          mode,
		Keys:          le.Key,
		SecondaryKeys: le.KeySecondary,
		Logic:         logic,
		Position:      position,
		Depth:         le.Depth,
		Order:         le.Order,
		Probability:   probability,
		Content:       le.Content,
	}, nil
}

func legacyScriptToNative(sc legacyScript) (prompt.RegexScript, error) {
	script := prompt.RegexScript{
		ID:      entryID(sc.ID),
		Name:    sc.ScriptName,
		Enabled: !sc.Disabled,
		Find:    sc.FindRegex,
		Replace: sc.ReplaceString,
		Trim:    sc.TrimStrings,
	}

	for _, placement := range sc.Placement {
		switch placement {
		case 1:
			script.Targets = append(script.Targets, prompt.TargetUserInput)
		case 2:
			script.Targets = append(script.Targets, prompt.TargetAIOutput)
		case 3:
			script.Targets = append(script.Targets, prompt.TargetSlashCommands)
		case 5:
			script.Targets = append(script.Targets, prompt.TargetWorldBook)
		case 6:
			script.Targets = append(script.Targets, prompt.TargetReasoning)
		default:
			return prompt.RegexScript{}, fmt.Errorf("unsupported placement %d", placement)
		}
	}

	switch {
	case sc.MarkdownOnly && sc.PromptOnly:
		// Both gates set means no restriction in the source format.
	case sc.MarkdownOnly:
		script.Views = []prompt.ViewScope{prompt.ViewUser}
	case sc.PromptOnly:
		script.Views = []prompt.ViewScope{prompt.ViewModel}
	}

	return script, nil
}

// entryID keeps an existing identifier or mints a fresh one.
func entryID(id string) string {
	if strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return uuid.NewString()
}
