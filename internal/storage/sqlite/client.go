package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/storage/models"
	"github.com/support-assistant/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_history (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		search_text TEXT NOT NULL,
		scope TEXT,
		answer TEXT,
		results_count INTEGER,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_search_session ON search_history(session_id);
	CREATE INDEX IF NOT EXISTS idx_search_created ON search_history(created_at);

	CREATE TABLE IF NOT EXISTS evaluation_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		search_id TEXT,
		mode TEXT NOT NULL,
		user_question TEXT NOT NULL,
		generated_answer TEXT,
		rating INTEGER NOT NULL,
		thoughts TEXT,
		reference TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_eval_search ON evaluation_results(search_id);
	CREATE INDEX IF NOT EXISTS idx_eval_mode ON evaluation_results(mode);
	CREATE INDEX IF NOT EXISTS idx_eval_created ON evaluation_results(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertSearchRecord(record *models.SearchRecord) error {
	scopeJSON, _ := json.Marshal(record.Scope)

	query := `
		INSERT INTO search_history (id, session_id, search_text, scope, answer, results_count, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.SessionID,
		record.SearchText,
		string(scopeJSON),
		record.Answer,
		record.ResultsCount,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert search record: %w", err)
	}

	logger.Debug("Search recorded",
		zap.String("search_id", record.ID),
		zap.String("session_id", record.SessionID),
	)

	return nil
}

func (c *Client) GetSearchHistory(sessionID string, limit int) ([]models.SearchRecord, error) {
	query := `
		SELECT id, session_id, search_text, scope, answer, results_count, latency_ms, created_at
		FROM search_history
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get search history: %w", err)
	}
	defer rows.Close()

	var records []models.SearchRecord
	for rows.Next() {
		var r models.SearchRecord
		var scopeJSON string
		var createdAt int64

		err := rows.Scan(&r.ID, &r.SessionID, &r.SearchText, &scopeJSON, &r.Answer, &r.ResultsCount, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		json.Unmarshal([]byte(scopeJSON), &r.Scope)
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}

func (c *Client) InsertEvaluationRecord(record *models.EvaluationRecord) error {
	query := `
		INSERT INTO evaluation_results (search_id, mode, user_question, generated_answer, rating, thoughts, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.SearchID,
		record.Mode,
		record.UserQuestion,
		record.GeneratedAnswer,
		record.Rating,
		record.Thoughts,
		record.Reference,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert evaluation record: %w", err)
	}

	logger.Debug("Evaluation recorded",
		zap.String("search_id", record.SearchID),
		zap.Int("rating", record.Rating),
	)

	return nil
}

func (c *Client) GetEvaluationResults(mode string, limit int) ([]models.EvaluationRecord, error) {
	query := `
		SELECT id, search_id, mode, user_question, generated_answer, rating, thoughts, reference, created_at
		FROM evaluation_results
		WHERE mode = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, mode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation results: %w", err)
	}
	defer rows.Close()

	var records []models.EvaluationRecord
	for rows.Next() {
		var r models.EvaluationRecord
		var createdAt int64

		err := rows.Scan(&r.ID, &r.SearchID, &r.Mode, &r.UserQuestion, &r.GeneratedAnswer, &r.Rating, &r.Thoughts, &r.Reference, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}
