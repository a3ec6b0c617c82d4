// Package labeldb persists labeling outcomes per frame so calibration runs
// can be audited after the fact: which frames matched, which template won,
// and where every labeled dot sat. The store is session scoped and applies
// its embedded schema at open.
package labeldb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
	_ "modernc.org/sqlite"

	"github.com/attica-surgical/fidlabel/internal/fiducial"
	"github.com/attica-surgical/fidlabel/internal/monitoring"
)

//go:embed schema.sql
var schemaSQL string

// LabelDB wraps the labeling session database.
type LabelDB struct {
	*sql.DB
}

// Open opens (or creates) the session database at path and applies the
// embedded schema.
func Open(path string) (*LabelDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open label database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply label schema: %w", err)
	}

	monitoring.Logf("labeldb: initialized schema at %s", path)
	return &LabelDB{db}, nil
}

// StartSession creates a new labeling session and returns its id.
func (ldb *LabelDB) StartSession(phantomName, notes string) (string, error) {
	sessionID := uuid.NewString()
	query := `
		INSERT INTO label_sessions (session_id, started_unix_nanos, phantom_name, session_notes)
		VALUES (?, ?, ?, ?)
	`
	if _, err := ldb.Exec(query, sessionID, time.Now().UnixNano(), phantomName, notes); err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return sessionID, nil
}

// EndSession closes a labeling session.
func (ldb *LabelDB) EndSession(sessionID string) error {
	query := `
		UPDATE label_sessions SET ended_unix_nanos = ? WHERE session_id = ?
	`
	res, err := ldb.Exec(query, time.Now().UnixNano(), sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end session: unknown session %s", sessionID)
	}
	return nil
}

// RecordOutcome stores one frame's outcome and, for matched frames, the
// labeled dots. The frame row and its results are written in one
// transaction so a crash never leaves a matched frame without dots.
func (ldb *LabelDB) RecordOutcome(sessionID string, frameIndex int, tsUnixNanos int64, outcome fiducial.Outcome) error {
	tx, err := ldb.Begin()
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO label_frames (session_id, frame_index, ts_unix_nanos, dots_found, template_id, pattern_intensity)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, frameIndex, tsUnixNanos, outcome.DotsFound, outcome.TemplateID, outcome.PatternIntensity)
	if err != nil {
		return fmt.Errorf("insert frame outcome: %w", err)
	}

	frameID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("frame outcome id: %w", err)
	}

	for _, r := range outcome.Results {
		if _, err := tx.Exec(`
			INSERT INTO label_results (frame_id, pattern_id, wire_id, x, y)
			VALUES (?, ?, ?, ?, ?)
		`, frameID, r.PatternID, r.WireID, r.X, r.Y); err != nil {
			return fmt.Errorf("insert result (%d,%d): %w", r.PatternID, r.WireID, err)
		}
	}

	return tx.Commit()
}

// FrameOutcome is one stored frame row.
type FrameOutcome struct {
	FrameIndex       int
	TSUnixNanos      int64
	DotsFound        bool
	TemplateID       int
	PatternIntensity float64
	Results          []fiducial.LabelingResult
}

// SessionOutcomes returns the stored outcomes of a session in frame order,
// including the labeled dots of matched frames.
func (ldb *LabelDB) SessionOutcomes(sessionID string) ([]FrameOutcome, error) {
	rows, err := ldb.Query(`
		SELECT frame_id, frame_index, ts_unix_nanos, dots_found, template_id, pattern_intensity
		FROM label_frames WHERE session_id = ? ORDER BY frame_index
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session frames: %w", err)
	}
	defer rows.Close()

	var outcomes []FrameOutcome
	var frameIDs []int64
	for rows.Next() {
		var fo FrameOutcome
		var frameID int64
		if err := rows.Scan(&frameID, &fo.FrameIndex, &fo.TSUnixNanos, &fo.DotsFound, &fo.TemplateID, &fo.PatternIntensity); err != nil {
			return nil, fmt.Errorf("scan frame outcome: %w", err)
		}
		outcomes = append(outcomes, fo)
		frameIDs = append(frameIDs, frameID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session frames: %w", err)
	}

	for i, frameID := range frameIDs {
		if !outcomes[i].DotsFound {
			continue
		}
		results, err := ldb.frameResults(frameID)
		if err != nil {
			return nil, err
		}
		outcomes[i].Results = results
	}

	return outcomes, nil
}

func (ldb *LabelDB) frameResults(frameID int64) ([]fiducial.LabelingResult, error) {
	rows, err := ldb.Query(`
		SELECT pattern_id, wire_id, x, y
		FROM label_results WHERE frame_id = ? ORDER BY pattern_id, wire_id
	`, frameID)
	if err != nil {
		return nil, fmt.Errorf("query frame results: %w", err)
	}
	defer rows.Close()

	var results []fiducial.LabelingResult
	for rows.Next() {
		var r fiducial.LabelingResult
		if err := rows.Scan(&r.PatternID, &r.WireID, &r.X, &r.Y); err != nil {
			return nil, fmt.Errorf("scan frame result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SessionStats summarizes a session for calibration QA.
type SessionStats struct {
	Frames        int
	Matched       int
	MatchRate     float64
	MeanIntensity float64 // over matched frames
}

// Stats computes match-rate and intensity statistics for a session.
func (ldb *LabelDB) Stats(sessionID string) (SessionStats, error) {
	rows, err := ldb.Query(`
		SELECT dots_found, pattern_intensity
		FROM label_frames WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return SessionStats{}, fmt.Errorf("query session stats: %w", err)
	}
	defer rows.Close()

	var stats SessionStats
	var intensities []float64
	for rows.Next() {
		var found bool
		var intensity float64
		if err := rows.Scan(&found, &intensity); err != nil {
			return SessionStats{}, fmt.Errorf("scan session stats: %w", err)
		}
		stats.Frames++
		if found {
			stats.Matched++
			intensities = append(intensities, intensity)
		}
	}
	if err := rows.Err(); err != nil {
		return SessionStats{}, fmt.Errorf("iterate session stats: %w", err)
	}

	if stats.Frames > 0 {
		stats.MatchRate = float64(stats.Matched) / float64(stats.Frames)
	}
	if len(intensities) > 0 {
		stats.MeanIntensity = stat.Mean(intensities, nil)
	}
	return stats, nil
}
