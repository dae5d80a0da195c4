package prompt

import (
	"sort"
	"strings"
)

// BuildInput carries everything one assembly run consumes. The pipeline owns
// no state of its own; all inputs are resolved by the caller and discarded
// after the run.
type BuildInput struct {
	Preset Preset
	// Markers maps marker segment IDs to externally supplied text, e.g. the
	// character description. A marker with no entry resolves to empty content.
	Markers map[string]string
	// History is the ordered chat feed, oldest first.
	History []Message
	// Summaries are opaque compressed blocks from the summary store.
	Summaries []string
	Macros    MacroSource
	Identity  Identity
	// Viewpoint gates post-stage scripts: the user's display or the model feed.
	Viewpoint ViewScope
	// Target is the final consumer context for post-stage scripts.
	// Defaults to aiOutput.
	Target ScriptTarget
	// Prefill overrides the preset's assistant prefill when non-empty.
	Prefill string
}

// BuildResult is the observable outcome of one assembly run.
type BuildResult struct {
	Stages Stages
	// Final is the last stage plus the verbatim assistant prefill, if any.
	Final []Message
	// ScriptErrors collects recoverable per-script failures from both
	// rewrite stages.
	ScriptErrors []ScriptError
	// MergedUserContent joins all user-role content of the final stage.
	MergedUserContent string
	HistoryCount      int
	SummariesIncluded int
}

// Assembler composes the four pipeline stages. It is a pure synchronous
// computation: identical inputs produce byte-identical output, except where
// the documented probability gate draws from Activator.Rand.
type Assembler struct {
	Activator *Activator
}

func NewAssembler(activator *Activator) *Assembler {
	if activator == nil {
		activator = &Activator{}
	}
	return &Assembler{Activator: activator}
}

// Assemble runs the pipeline: raw -> afterPreRegex -> afterMacro ->
// afterPostRegex. Each stage is a fresh immutable sequence.
func (a *Assembler) Assemble(in BuildInput) (*BuildResult, error) {
	if err := in.Preset.Validate(); err != nil {
		return nil, err
	}
	if in.Target == "" {
		in.Target = TargetAIOutput
	}
	if in.Viewpoint == "" {
		in.Viewpoint = ViewModel
	}

	res := &BuildResult{
		HistoryCount:      len(in.History),
		SummariesIncluded: len(in.Summaries),
	}

	activated := a.Activator.Activate(in.Preset.Worldbook, activationContext(in.History))

	raw := assembleRaw(in, activated)
	res.Stages.Raw = raw

	pre := make([]Message, len(raw))
	for i, msg := range raw {
		target := preStageTarget(msg)
		out, errs := ApplyScripts(msg.Content, target, ViewModel, in.Preset.Scripts)
		for _, e := range errs {
			e.Stage = "afterPreRegex"
			res.ScriptErrors = append(res.ScriptErrors, e)
		}
		msg.Content = out
		pre[i] = msg
	}
	res.Stages.AfterPreRegex = pre

	expander := &Expander{Macros: in.Macros, Identity: in.Identity}
	expanded := make([]Message, len(pre))
	for i, msg := range pre {
		msg.Content = expander.Expand(msg.Content)
		expanded[i] = msg
	}
	res.Stages.AfterMacro = expanded

	post := make([]Message, len(expanded))
	for i, msg := range expanded {
		out, errs := ApplyScripts(msg.Content, in.Target, in.Viewpoint, in.Preset.Scripts)
		for _, e := range errs {
			e.Stage = "afterPostRegex"
			res.ScriptErrors = append(res.ScriptErrors, e)
		}
		msg.Content = out
		post[i] = msg
	}
	res.Stages.AfterPostRegex = post

	res.Final = append([]Message(nil), post...)
	prefill := in.Prefill
	if prefill == "" {
		prefill = in.Preset.AssistantPrefill
	}
	if prefill != "" {
		// Prefill is taken verbatim; it never passes through the stages.
		res.Final = append(res.Final, Message{
			Role:    RoleAssistant,
			Content: prefill,
			Source:  SourcePrefill,
		})
	}

	var userParts []string
	for _, msg := range res.Final {
		if msg.Role == RoleUser && msg.Content != "" {
			userParts = append(userParts, msg.Content)
		}
	}
	res.MergedUserContent = strings.Join(userParts, "\n\n")

	return res, nil
}

// activationContext is the conversation text worldbook keys match against.
func activationContext(history []Message) string {
	parts := make([]string, 0, len(history))
	for _, msg := range history {
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, "\n")
}

// preStageTarget derives the pre-stage rewrite target for one raw message.
func preStageTarget(msg Message) ScriptTarget {
	if msg.Source == SourceWorldbook {
		return TargetWorldBook
	}
	switch msg.Role {
	case RoleUser:
		return TargetUserInput
	case RoleAssistant:
		return TargetAIOutput
	default:
		return TargetSlashCommands
	}
}

// injection is a message waiting to be placed at a depth offset from the end
// of the sequence.
type injection struct {
	depth int
	order int
	msg   Message
}

func assembleRaw(in BuildInput, activated []WorldbookEntry) []Message {
	backbone := make([]PromptSegment, 0, len(in.Preset.Segments))
	var fixedSegs []PromptSegment
	for _, seg := range in.Preset.Segments {
		if !seg.Enabled {
			continue
		}
		if seg.Position == PositionFixed {
			fixedSegs = append(fixedSegs, seg)
			continue
		}
		backbone = append(backbone, seg)
	}
	sort.SliceStable(backbone, func(i, j int) bool {
		return backbone[i].Order < backbone[j].Order
	})

	var beforeChar, afterChar []WorldbookEntry
	var injections []injection
	for _, e := range activated {
		switch e.Position {
		case EntryBeforeChar:
			beforeChar = append(beforeChar, e)
		case EntryAfterChar:
			afterChar = append(afterChar, e)
		case EntryFixed:
			injections = append(injections, injection{
				depth: e.Depth,
				order: e.Order,
				msg:   worldbookMessage(e),
			})
		}
	}

	var msgs []Message
	charAnchorSeen := false
	historyEnd := -1
	for _, seg := range backbone {
		switch {
		case seg.Marker && seg.ID == MarkerChatHistory:
			msgs = append(msgs, in.History...)
			historyEnd = len(msgs)
		case seg.Marker && seg.ID == MarkerSummaryHistory:
			for _, block := range in.Summaries {
				msgs = append(msgs, Message{
					Role:     RoleSystem,
					Content:  block,
					Source:   SourceSummary,
					SourceID: seg.ID,
				})
			}
		default:
			content := seg.Content
			if seg.Marker {
				content = in.Markers[seg.ID]
			}
			isCharAnchor := seg.Marker && seg.ID == MarkerCharDescription
			if isCharAnchor && !charAnchorSeen {
				charAnchorSeen = true
				for _, e := range beforeChar {
					msgs = append(msgs, worldbookMessage(e))
				}
			}
			msgs = append(msgs, Message{
				Role:     seg.Role,
				Name:     seg.Name,
				Content:  content,
				Source:   SourceSegment,
				SourceID: seg.ID,
			})
			if isCharAnchor {
				for _, e := range afterChar {
					msgs = append(msgs, worldbookMessage(e))
				}
			}
		}
	}

	// Without a character-description marker the anchored entries still need
	// a home: they lead the sequence, beforeChar block first.
	if !charAnchorSeen && (len(beforeChar) > 0 || len(afterChar) > 0) {
		lead := make([]Message, 0, len(beforeChar)+len(afterChar))
		for _, e := range beforeChar {
			lead = append(lead, worldbookMessage(e))
		}
		for _, e := range afterChar {
			lead = append(lead, worldbookMessage(e))
		}
		msgs = append(lead, msgs...)
		if historyEnd >= 0 {
			historyEnd += len(lead)
		}
	}

	for _, seg := range fixedSegs {
		injections = append(injections, injection{
			depth: seg.Depth,
			order: seg.Order,
			msg: Message{
				Role:     seg.Role,
				Name:     seg.Name,
				Content:  seg.Content,
				Source:   SourceSegment,
				SourceID: seg.ID,
			},
		})
	}
	msgs = applyInjections(msgs, injections, historyEnd)

	return mergeSystemRun(dropEmpty(msgs))
}

func worldbookMessage(e WorldbookEntry) Message {
	return Message{
		Role:     RoleSystem,
		Name:     e.Name,
		Content:  e.Content,
		Source:   SourceWorldbook,
		SourceID: e.ID,
	}
}

// applyInjections places depth-anchored messages. Depth counts from the end
// of the chat history: depth 0 sits right after the last history message,
// depth n sits n history messages back. Without a history marker the anchor
// is the end of the sequence. Deeper injections are placed first so
// shallower ones stay closer to the anchor; equal depths keep ascending
// order.
func applyInjections(msgs []Message, injections []injection, historyEnd int) []Message {
	if len(injections) == 0 {
		return msgs
	}
	anchor := historyEnd
	if anchor < 0 {
		anchor = len(msgs)
	}
	sort.SliceStable(injections, func(i, j int) bool {
		if injections[i].depth != injections[j].depth {
			return injections[i].depth > injections[j].depth
		}
		return injections[i].order < injections[j].order
	})
	for _, inj := range injections {
		idx := anchor - inj.depth
		if idx < 0 {
			idx = 0
		}
		if idx > len(msgs) {
			idx = len(msgs)
		}
		msgs = append(msgs, Message{})
		copy(msgs[idx+1:], msgs[idx:])
		msgs[idx] = inj.msg
		anchor++
	}
	return msgs
}

// dropEmpty removes messages whose content is blank. This is the filter that
// also swallows markers with no supplied text.
func dropEmpty(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// mergeSystemRun joins adjacent system messages with a blank line so system
// context is not fragmented across the wire. The merged message keeps the
// first message's provenance, so a later rewrite stage addresses the whole
// run through that one source.
func mergeSystemRun(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.Role == RoleSystem && msg.Role == RoleSystem {
				last.Content = last.Content + "\n\n" + msg.Content
				continue
			}
		}
		out = append(out, msg)
	}
	return out
}
