// Package service resolves a channel's preset, history, summaries and macro
// snapshot, runs the assembly pipeline over them, and renders the requested
// wire format. It is the only layer that touches both the store and the
// pipeline; the pipeline itself stays pure.
package service

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kayz/fable/internal/config"
	"github.com/kayz/fable/internal/logger"
	"github.com/kayz/fable/internal/persist"
	"github.com/kayz/fable/internal/preset"
	"github.com/kayz/fable/internal/prompt"
)

// Pipeline wires the persistent collaborators into assembly runs.
type Pipeline struct {
	cfg   config.PipelineConfig
	store *persist.Store
	asm   *prompt.Assembler
}

// NewPipeline creates a Pipeline over an open store. A nil activator uses
// the default random source for the probability gate.
func NewPipeline(cfg config.PipelineConfig, store *persist.Store, activator *prompt.Activator) *Pipeline {
	if cfg.RootDir == "" {
		cfg.RootDir = "."
	}
	if cfg.PresetsDir == "" {
		cfg.PresetsDir = "presets"
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 200
	}
	return &Pipeline{
		cfg:   cfg,
		store: store,
		asm:   prompt.NewAssembler(activator),
	}
}

// BuildOptions selects what one build run produces.
type BuildOptions struct {
	ChannelID        string
	Format           string
	Viewpoint        string
	IncludeSummary   bool
	UnsummarizedOnly bool
	// Record forces an audit record even when auditing is off in config.
	Record bool
}

// BuildOutput carries the four stage snapshots plus the rendered payload
// and run metadata.
type BuildOutput struct {
	RunID             string               `json:"run_id"`
	ChannelID         string               `json:"channel_id"`
	Stages            prompt.Stages        `json:"stages"`
	Payload           *prompt.Payload      `json:"payload,omitempty"`
	ScriptErrors      []prompt.ScriptError `json:"script_errors,omitempty"`
	MergedUserContent string               `json:"merged_user_content"`
	HistoryCount      int                  `json:"history_count"`
	SummariesIncluded int                  `json:"summaries_included"`
}

// Build assembles the channel's prompt. A render failure (unknown format)
// still returns the stage snapshots alongside the error so callers can
// inspect the run.
func (p *Pipeline) Build(opts BuildOptions) (*BuildOutput, error) {
	ch, err := p.store.GetChannel(opts.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("resolve channel: %w", err)
	}

	res, err := preset.Load(p.resolvePath(p.cfg.PresetsDir), ch.Preset)
	if err != nil {
		return nil, fmt.Errorf("resolve preset: %w", err)
	}

	viewpoint, err := prompt.ParseViewScope(stringOr(opts.Viewpoint, p.cfg.DefaultViewpoint))
	if err != nil {
		return nil, err
	}

	history, err := p.loadHistory(opts)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var summaries []string
	if opts.IncludeSummary {
		blocks, err := p.store.GetSummaries(opts.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("load summaries: %w", err)
		}
		for _, b := range blocks {
			summaries = append(summaries, b.Content)
		}
	}

	global, channel, err := p.store.MacroSnapshot(opts.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("snapshot macros: %w", err)
	}

	result, err := p.asm.Assemble(prompt.BuildInput{
		Preset:    res.Preset,
		Markers:   res.Markers,
		History:   history,
		Summaries: summaries,
		Macros:    prompt.MapMacroSource{Global: global, Channel: channel},
		Identity:  prompt.Identity{Char: ch.CharName, User: ch.UserName},
		Viewpoint: viewpoint,
		Prefill:   ch.Prefill,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	for _, se := range result.ScriptErrors {
		logger.Warn("Rewrite script %s failed at %s: %s", se.ScriptID, se.Stage, se.Err)
	}

	out := &BuildOutput{
		RunID:             uuid.NewString(),
		ChannelID:         opts.ChannelID,
		Stages:            result.Stages,
		ScriptErrors:      result.ScriptErrors,
		MergedUserContent: result.MergedUserContent,
		HistoryCount:      result.HistoryCount,
		SummariesIncluded: result.SummariesIncluded,
	}

	var renderErr error
	format, err := prompt.ParseFormat(stringOr(opts.Format, p.cfg.DefaultFormat))
	if err != nil {
		renderErr = err
	} else {
		out.Payload, renderErr = prompt.Render(result.Final, format)
	}

	if p.cfg.AuditEnabled || opts.Record {
		if err := p.writeAuditRecord(out, opts); err != nil {
			logger.Warn("Write audit record failed: %v", err)
		}
	}

	if renderErr != nil {
		// Stages are still handed back for debugging.
		return out, fmt.Errorf("render: %w", renderErr)
	}
	return out, nil
}

func (p *Pipeline) loadHistory(opts BuildOptions) ([]prompt.Message, error) {
	stored, err := p.store.GetMessages(opts.ChannelID, p.cfg.MaxHistory, opts.UnsummarizedOnly)
	if err != nil {
		return nil, err
	}
	messages := make([]prompt.Message, 0, len(stored))
	for _, msg := range stored {
		role, err := prompt.ParseRole(msg.Role)
		if err != nil {
			logger.Warn("Skipping history message %d with bad role: %v", msg.ID, err)
			continue
		}
		messages = append(messages, prompt.Message{
			Role:     role,
			Content:  msg.Content,
			Source:   prompt.SourceHistory,
			SourceID: fmt.Sprintf("%d", msg.ID),
		})
	}
	return messages, nil
}

func (p *Pipeline) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.cfg.RootDir, path)
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
