package prompt

import (
	"fmt"
	"strings"
)

// Role is a message role in the assembled sequence.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system":
		return RoleSystem, nil
	case "user":
		return RoleUser, nil
	case "assistant", "model":
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("invalid role %q: must be one of system, user, assistant", s)
	}
}

// Position controls where a prompt segment lands in the sequence.
type Position string

const (
	// PositionRelative segments form the backbone, sorted by Order.
	PositionRelative Position = "relative"
	// PositionFixed segments are injected at Depth from the end of history.
	PositionFixed Position = "fixed"
)

// ParsePosition normalizes and validates a segment position.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "relative", "":
		return PositionRelative, nil
	case "fixed", "absolute":
		return PositionFixed, nil
	default:
		return "", fmt.Errorf("invalid position %q: must be relative or fixed", s)
	}
}

// ActivationMode decides how a worldbook entry is considered for inclusion.
type ActivationMode string

const (
	ActivationAlways  ActivationMode = "always"
	ActivationKeyword ActivationMode = "keyword"
	// ActivationVector is accepted but never activates.
	ActivationVector ActivationMode = "vector"
)

// ParseActivationMode normalizes and validates an activation mode.
func ParseActivationMode(s string) (ActivationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "constant":
		return ActivationAlways, nil
	case "keyword", "selective", "":
		return ActivationKeyword, nil
	case "vector", "vectorized":
		return ActivationVector, nil
	default:
		return "", fmt.Errorf("invalid activation mode %q: must be one of always, keyword, vector", s)
	}
}

// SelectiveLogic combines primary and secondary keyword hits.
type SelectiveLogic string

const (
	LogicAndAny SelectiveLogic = "andAny"
	LogicAndAll SelectiveLogic = "andAll"
	LogicNotAny SelectiveLogic = "notAny"
	LogicNotAll SelectiveLogic = "notAll"
)

// ParseSelectiveLogic normalizes and validates a selective logic name.
func ParseSelectiveLogic(s string) (SelectiveLogic, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "andany", "":
		return LogicAndAny, nil
	case "andall":
		return LogicAndAll, nil
	case "notany":
		return LogicNotAny, nil
	case "notall":
		return LogicNotAll, nil
	default:
		return "", fmt.Errorf("invalid selective logic %q: must be one of andAny, andAll, notAny, notAll", s)
	}
}

// EntryPosition anchors activated worldbook content in the sequence.
type EntryPosition string

const (
	// EntryBeforeChar inserts before the character-description marker.
	EntryBeforeChar EntryPosition = "beforeChar"
	// EntryAfterChar inserts after the character-description marker.
	EntryAfterChar EntryPosition = "afterChar"
	// EntryFixed inserts at Depth from the end of the sequence.
	EntryFixed EntryPosition = "fixed"
)

// ParseEntryPosition normalizes and validates a worldbook entry position.
func ParseEntryPosition(s string) (EntryPosition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "beforechar", "before_char", "":
		return EntryBeforeChar, nil
	case "afterchar", "after_char":
		return EntryAfterChar, nil
	case "fixed", "atdepth", "at_depth":
		return EntryFixed, nil
	default:
		return "", fmt.Errorf("invalid entry position %q: must be one of beforeChar, afterChar, fixed", s)
	}
}

// ScriptTarget names the content category a rewrite script may act on.
type ScriptTarget string

const (
	TargetUserInput     ScriptTarget = "userInput"
	TargetAIOutput      ScriptTarget = "aiOutput"
	TargetSlashCommands ScriptTarget = "slashCommands"
	TargetWorldBook     ScriptTarget = "worldBook"
	TargetReasoning     ScriptTarget = "reasoning"
)

// ParseScriptTarget normalizes and validates a rewrite target.
func ParseScriptTarget(s string) (ScriptTarget, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "userinput", "user_input":
		return TargetUserInput, nil
	case "aioutput", "ai_output":
		return TargetAIOutput, nil
	case "slashcommands", "slash_commands":
		return TargetSlashCommands, nil
	case "worldbook", "world_book":
		return TargetWorldBook, nil
	case "reasoning":
		return TargetReasoning, nil
	default:
		return "", fmt.Errorf("invalid script target %q", s)
	}
}

// ViewScope is the rendering viewpoint: the user's display or the model feed.
type ViewScope string

const (
	ViewUser  ViewScope = "user"
	ViewModel ViewScope = "model"
)

// ParseViewScope normalizes and validates a viewpoint.
func ParseViewScope(s string) (ViewScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "display":
		return ViewUser, nil
	case "model", "":
		return ViewModel, nil
	default:
		return "", fmt.Errorf("invalid viewpoint %q: must be user or model", s)
	}
}

// Well-known marker segment IDs. Marker segments carry no inline content;
// their text is supplied externally at build time.
const (
	MarkerCharDescription = "charDescription"
	MarkerPersona         = "personaDescription"
	MarkerChatHistory     = "chatHistory"
	MarkerSummaryHistory  = "summaryHistory"
)

// PromptSegment is one ordered slot of a preset.
type PromptSegment struct {
	ID       string
	Name     string
	Role     Role
	Position Position
	// Depth is the insertion offset from the end of the chat history for
	// fixed-position segments. 0 sits right after the last history message;
	// without a history marker the offset counts from the end of the
	// sequence.
	Depth   int
	Order   int
	Enabled bool
	Content string
	// Marker marks a segment whose content is supplied externally.
	Marker bool
}

// WorldbookEntry is one conditionally activated lore entry.
type WorldbookEntry struct {
	ID            string
	Name          string
	Enabled       bool
	Mode          ActivationMode
	Keys          []string
	SecondaryKeys []string
	Logic         SelectiveLogic
	Position      EntryPosition
	Depth         int
	Order         int
	// Probability is an independent random gate in [0,100]; 100 always passes.
	Probability int
	Content     string
}

// RegexScript is one ordered rewrite rule.
type RegexScript struct {
	ID      string
	Name    string
	Enabled bool
	// Find is either a delimited /pattern/flags literal or a bare pattern.
	Find string
	// Replace may reference the trimmed match via {{match}} or $&.
	Replace string
	// Trim fragments are stripped from the matched text, in order, before
	// substitution. Plain substrings, not patterns.
	Trim    []string
	Targets []ScriptTarget
	// Views is the viewpoint gate; empty applies to all viewpoints.
	Views []ViewScope
}

// AppliesTo reports whether the script fires for the given target and view.
func (s RegexScript) AppliesTo(target ScriptTarget, view ViewScope) bool {
	if !s.Enabled {
		return false
	}
	found := false
	for _, t := range s.Targets {
		if t == target {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if len(s.Views) == 0 {
		return true
	}
	for _, v := range s.Views {
		if v == view {
			return true
		}
	}
	return false
}

// SourceKind tags where a pipeline message came from.
type SourceKind string

const (
	SourceSegment   SourceKind = "segment"
	SourceWorldbook SourceKind = "worldbook"
	SourceHistory   SourceKind = "history"
	SourceSummary   SourceKind = "summary"
	SourcePrefill   SourceKind = "prefill"
)

// Message is the pipeline's unit of output. Values are never mutated after a
// stage completes; each stage produces a fresh sequence.
type Message struct {
	Role    Role
	Name    string
	Content string
	Source  SourceKind
	// SourceID is the segment/entry/provenance ID that produced the message.
	SourceID string
}

// Preset bundles everything that defines an agent's prompting behavior.
type Preset struct {
	Name             string
	Segments         []PromptSegment
	Worldbook        []WorldbookEntry
	Scripts          []RegexScript
	AssistantPrefill string
}

// Validate checks preset invariants that must hold before assembly.
func (p *Preset) Validate() error {
	seen := make(map[string]struct{}, len(p.Segments))
	for _, seg := range p.Segments {
		id := strings.TrimSpace(seg.ID)
		if id == "" {
			return fmt.Errorf("segment id is required")
		}
		if _, exists := seen[id]; exists {
			return fmt.Errorf("duplicate segment id: %s", id)
		}
		seen[id] = struct{}{}
	}
	for _, e := range p.Worldbook {
		if e.Probability < 0 || e.Probability > 100 {
			return fmt.Errorf("worldbook entry %s: probability %d out of range [0,100]", e.ID, e.Probability)
		}
	}
	return nil
}

// Stages holds the four observable checkpoints of one assembly run.
type Stages struct {
	Raw            []Message `json:"raw"`
	AfterPreRegex  []Message `json:"afterPreRegex"`
	AfterMacro     []Message `json:"afterMacro"`
	AfterPostRegex []Message `json:"afterPostRegex"`
}

// ScriptError records a recoverable per-script failure in the stage trace.
type ScriptError struct {
	ScriptID string `json:"script_id"`
	Stage    string `json:"stage"`
	Err      string `json:"error"`
}
