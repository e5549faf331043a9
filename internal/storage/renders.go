package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"promptkit/internal/render"
)

// Render origins.
const (
	OriginCLI    = "cli"
	OriginWatch  = "watch"
	OriginServer = "server"
)

// DefaultListLimit caps ListRenders when no limit is given.
const DefaultListLimit = 50

// RenderRecord is one journal entry.
type RenderRecord struct {
	ID             string                 `json:"id"`
	Origin         string                 `json:"origin"`
	DocumentPath   string                 `json:"document_path,omitempty"`
	Status         render.Status          `json:"status"`
	PrefixTokens   int                    `json:"prefix_tokens"`
	SuffixTokens   int                    `json:"suffix_tokens"`
	ContextGroups  int                    `json:"context_groups"`
	ElisionTime    time.Duration          `json:"elision_time"`
	RenderTime     time.Duration          `json:"render_time"`
	Error          string                 `json:"error,omitempty"`
	ComponentStats []render.ComponentStat `json:"component_stats,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// NewRenderRecord builds a journal entry for res. Cancelled and failed
// renders carry no render id, so one is assigned by SaveRender.
func NewRenderRecord(res render.Result, origin, documentPath string) *RenderRecord {
	r := &RenderRecord{
		ID:             res.Metadata.RenderID,
		Origin:         origin,
		DocumentPath:   documentPath,
		Status:         res.Status,
		PrefixTokens:   res.PrefixTokens,
		SuffixTokens:   res.SuffixTokens,
		ContextGroups:  len(res.Context),
		ElisionTime:    res.Metadata.ElisionTime,
		RenderTime:     res.Metadata.RenderTime,
		ComponentStats: res.Metadata.ComponentStats,
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

// SaveRender inserts r, filling in ID and CreatedAt when empty.
func (db *DB) SaveRender(r *RenderRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	stats, err := json.Marshal(r.ComponentStats)
	if err != nil {
		return fmt.Errorf("marshal component stats: %w", err)
	}
	if r.ComponentStats == nil {
		stats = []byte("[]")
	}

	_, err = db.Exec(`INSERT INTO renders
		(id, origin, document_path, status, prefix_tokens, suffix_tokens, context_groups,
		 elision_ns, render_ns, error, component_stats, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Origin, r.DocumentPath, string(r.Status), r.PrefixTokens, r.SuffixTokens, r.ContextGroups,
		int64(r.ElisionTime), int64(r.RenderTime), r.Error, string(stats), r.CreatedAt,
	)
	return err
}

const renderColumns = `id, origin, document_path, status, prefix_tokens, suffix_tokens, context_groups,
	elision_ns, render_ns, error, component_stats, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRender(s scanner) (*RenderRecord, error) {
	var (
		r                 RenderRecord
		status, stats     string
		elisionNs, rendNs int64
	)
	err := s.Scan(&r.ID, &r.Origin, &r.DocumentPath, &status, &r.PrefixTokens, &r.SuffixTokens,
		&r.ContextGroups, &elisionNs, &rendNs, &r.Error, &stats, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = render.Status(status)
	r.ElisionTime = time.Duration(elisionNs)
	r.RenderTime = time.Duration(rendNs)
	if err := json.Unmarshal([]byte(stats), &r.ComponentStats); err != nil {
		return nil, fmt.Errorf("unmarshal component stats: %w", err)
	}
	return &r, nil
}

// GetRender returns the record with id, or ErrNotFound.
func (db *DB) GetRender(id string) (*RenderRecord, error) {
	r, err := scanRender(db.QueryRow("SELECT "+renderColumns+" FROM renders WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// ListRenders returns up to limit records, newest first.
func (db *DB) ListRenders(limit int) ([]*RenderRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := db.Query("SELECT "+renderColumns+" FROM renders ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RenderRecord
	for rows.Next() {
		r, err := scanRender(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRenders deletes records created before cutoff.
func (db *DB) PruneRenders(cutoff time.Time) (int64, error) {
	res, err := db.Exec("DELETE FROM renders WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
