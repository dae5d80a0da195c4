package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kayz/fable/internal/prompt"
)

var auditMu sync.Mutex

type auditRecord struct {
	RunID        string               `json:"run_id"`
	Timestamp    string               `json:"timestamp"`
	ChannelID    string               `json:"channel_id"`
	Format       string               `json:"format,omitempty"`
	Viewpoint    string               `json:"viewpoint,omitempty"`
	Stages       prompt.Stages        `json:"stages"`
	ScriptErrors []prompt.ScriptError `json:"script_errors,omitempty"`
	HistoryCount int                  `json:"history_count"`
	Summaries    int                  `json:"summaries_included"`
}

func (p *Pipeline) writeAuditRecord(out *BuildOutput, opts BuildOptions) error {
	auditDir := p.resolvePath(p.auditDir())
	if err := os.MkdirAll(auditDir, 0755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	now := time.Now()
	fileName := fmt.Sprintf("%s-%s.jsonl", p.auditPrefix(), now.Format("2006-01-02"))
	filePath := filepath.Join(auditDir, fileName)

	record := auditRecord{
		RunID:        out.RunID,
		Timestamp:    now.Format(time.RFC3339),
		ChannelID:    out.ChannelID,
		Format:       opts.Format,
		Viewpoint:    opts.Viewpoint,
		Stages:       out.Stages,
		ScriptErrors: out.ScriptErrors,
		HistoryCount: out.HistoryCount,
		Summaries:    out.SummariesIncluded,
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if err := appendJSONL(filePath, line); err != nil {
		return err
	}
	return p.cleanupOldAuditFilesWithNow(now)
}

func appendJSONL(filePath string, line []byte) error {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}

// CleanupOldAuditFiles removes audit files past the retention window.
func (p *Pipeline) CleanupOldAuditFiles() error {
	auditMu.Lock()
	defer auditMu.Unlock()
	return p.cleanupOldAuditFilesWithNow(time.Now())
}

func (p *Pipeline) cleanupOldAuditFilesWithNow(now time.Time) error {
	if p.cfg.AuditRetentionDays <= 0 {
		return nil
	}

	auditDir := p.resolvePath(p.auditDir())
	entries, err := os.ReadDir(auditDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("list audit dir: %w", err)
	}

	prefix := p.auditPrefix()
	cutoff := now.AddDate(0, 0, -p.cfg.AuditRetentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}

		filePath := filepath.Join(auditDir, name)
		fileDate, ok := parseAuditDate(name, prefix)
		if ok {
			if fileDate.Before(startOfDay(cutoff)) {
				if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove old audit file %s: %w", filePath, err)
				}
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat audit file %s: %w", filePath, err)
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove old audit file %s: %w", filePath, err)
			}
		}
	}

	return nil
}

func (p *Pipeline) auditDir() string {
	if p.cfg.AuditDir != "" {
		return p.cfg.AuditDir
	}
	return ".fable/audit"
}

func (p *Pipeline) auditPrefix() string {
	prefix := strings.TrimSpace(p.cfg.AuditFilePrefix)
	if prefix == "" {
		return "build"
	}
	return prefix
}

func parseAuditDate(filename, prefix string) (time.Time, bool) {
	raw := strings.TrimSuffix(filename, ".jsonl")
	raw = strings.TrimPrefix(raw, prefix+"-")
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
