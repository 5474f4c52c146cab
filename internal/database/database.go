package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"planktovision/internal/pipeline"
	"planktovision/internal/policy"
)

// Database handles SQLite storage of analysis history.
//
// Retention is unbounded append-only: every completed analysis is kept and
// listed most-recent-first with a caller-supplied limit. Operators trim old
// rows through the admin purge endpoint.
type Database struct {
	db *sql.DB
}

// AnalysisRecord is one persisted analysis result.
type AnalysisRecord struct {
	ID            string
	Timestamp     time.Time
	ImagePath     string
	AnnotatedPath string
	Counts        map[string]int
	PerClass      []pipeline.ClassStat
	Total         int
	Dominant      string
	Verdict       string
	Reason        string
	AvgConfidence float64
}

// Analytics is the aggregate view over all recorded analyses.
type Analytics struct {
	SpeciesCounts map[string]int   `json:"speciesCounts"`
	SafetyStats   map[string]int   `json:"safetyStats"`
	DailyTrend    []DailyTrendItem `json:"dailyTrend"`
}

// DailyTrendItem is the number of analyses recorded on one day.
type DailyTrendItem struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// New opens (or creates) the database at the given path.
func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Migrate runs database migrations.
func (d *Database) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			image_path TEXT,
			annotated_path TEXT,
			counts_json TEXT NOT NULL,
			per_class_json TEXT,
			total INTEGER NOT NULL,
			dominant TEXT,
			verdict TEXT,
			reason TEXT,
			avg_confidence REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_time ON analyses(timestamp DESC)`,
	}

	for _, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveAnalysis inserts one analysis record.
func (d *Database) SaveAnalysis(rec *AnalysisRecord) error {
	countsJSON, err := json.Marshal(rec.Counts)
	if err != nil {
		return fmt.Errorf("failed to marshal counts: %w", err)
	}

	perClassJSON, err := json.Marshal(rec.PerClass)
	if err != nil {
		return fmt.Errorf("failed to marshal per-class stats: %w", err)
	}

	query := `INSERT INTO analyses
		(id, timestamp, image_path, annotated_path, counts_json, per_class_json, total, dominant, verdict, reason, avg_confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = d.db.Exec(query, rec.ID, rec.Timestamp, rec.ImagePath, rec.AnnotatedPath,
		string(countsJSON), string(perClassJSON), rec.Total, rec.Dominant, rec.Verdict, rec.Reason, rec.AvgConfidence)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// GetAnalysis retrieves an analysis by ID. Returns (nil, nil) when missing.
func (d *Database) GetAnalysis(id string) (*AnalysisRecord, error) {
	query := `SELECT id, timestamp, image_path, annotated_path, counts_json, per_class_json, total,
		dominant, verdict, reason, avg_confidence
		FROM analyses WHERE id = ?`

	rec, err := scanAnalysis(d.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return rec, nil
}

// ListAnalyses returns analyses most recent first, capped at limit.
func (d *Database) ListAnalyses(limit int) ([]*AnalysisRecord, error) {
	query := `SELECT id, timestamp, image_path, annotated_path, counts_json, per_class_json, total,
		dominant, verdict, reason, avg_confidence
		FROM analyses ORDER BY timestamp DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var records []*AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteAnalysis deletes one analysis by ID. Returns true when a row was
// removed.
func (d *Database) DeleteAnalysis(id string) (bool, error) {
	result, err := d.db.Exec("DELETE FROM analyses WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete analysis: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// DeleteOldAnalyses deletes analyses older than the specified time.
func (d *Database) DeleteOldAnalyses(before time.Time) (int64, error) {
	result, err := d.db.Exec("DELETE FROM analyses WHERE timestamp < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old analyses: %w", err)
	}
	return result.RowsAffected()
}

// GetAnalytics aggregates species counts, verdict distribution and a daily
// analysis trend over all recorded history.
func (d *Database) GetAnalytics() (*Analytics, error) {
	rows, err := d.db.Query("SELECT timestamp, counts_json, verdict FROM analyses")
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	defer rows.Close()

	analytics := &Analytics{
		SpeciesCounts: make(map[string]int),
		SafetyStats:   map[string]int{"safe": 0, "warning": 0, "dangerous": 0},
	}
	daily := make(map[string]int)

	for rows.Next() {
		var ts time.Time
		var countsJSON, verdict string
		if err := rows.Scan(&ts, &countsJSON, &verdict); err != nil {
			return nil, fmt.Errorf("failed to scan analytics row: %w", err)
		}

		var counts map[string]int
		if countsJSON != "" {
			if err := json.Unmarshal([]byte(countsJSON), &counts); err == nil {
				for species, c := range counts {
					analytics.SpeciesCounts[species] += c
				}
			}
		}

		switch policy.Tier(verdict) {
		case policy.TierSafe:
			analytics.SafetyStats["safe"]++
		case policy.TierCaution:
			analytics.SafetyStats["warning"]++
		case policy.TierUnsafe:
			analytics.SafetyStats["dangerous"]++
		}

		daily[ts.UTC().Format("2006-01-02")]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(daily))
	for date := range daily {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	for _, date := range dates {
		analytics.DailyTrend = append(analytics.DailyTrend, DailyTrendItem{Date: date, Count: daily[date]})
	}
	return analytics, nil
}

// Record implements pipeline.HistorySink.
func (d *Database) Record(result *pipeline.Result, imagePath string) (string, error) {
	counts := make(map[string]int, len(result.PerClass))
	for _, row := range result.PerClass {
		counts[row.Class] = row.Count
	}

	rec := &AnalysisRecord{
		ID:            result.ID,
		Timestamp:     result.Timestamp,
		ImagePath:     imagePath,
		AnnotatedPath: result.AnnotatedPath,
		Counts:        counts,
		PerClass:      result.PerClass,
		Total:         result.TotalDetections,
		Dominant:      result.Dominant(),
		Verdict:       string(result.OverallVerdict.Verdict),
		Reason:        result.OverallVerdict.Reason,
		AvgConfidence: result.DominantConfidence(),
	}
	if err := d.SaveAnalysis(rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(row rowScanner) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	var countsJSON, perClassJSON string
	err := row.Scan(&rec.ID, &rec.Timestamp, &rec.ImagePath, &rec.AnnotatedPath,
		&countsJSON, &perClassJSON, &rec.Total, &rec.Dominant, &rec.Verdict, &rec.Reason, &rec.AvgConfidence)
	if err != nil {
		return nil, err
	}
	if countsJSON != "" {
		if err := json.Unmarshal([]byte(countsJSON), &rec.Counts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal counts: %w", err)
		}
	}
	if perClassJSON != "" {
		if err := json.Unmarshal([]byte(perClassJSON), &rec.PerClass); err != nil {
			return nil, fmt.Errorf("failed to unmarshal per-class stats: %w", err)
		}
	}
	return &rec, nil
}

var _ pipeline.HistorySink = (*Database)(nil)
