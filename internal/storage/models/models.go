package models

import "time"

type SearchRecord struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	SearchText   string    `json:"search_text"`
	Scope        []string  `json:"scope"`
	Answer       string    `json:"answer"`
	ResultsCount int       `json:"results_count"`
	LatencyMS    int       `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

type EvaluationRecord struct {
	ID              int       `json:"id"`
	SearchID        string    `json:"search_id"`
	Mode            string    `json:"mode"`
	UserQuestion    string    `json:"user_question"`
	GeneratedAnswer string    `json:"generated_answer"`
	Rating          int       `json:"rating"`
	Thoughts        string    `json:"thoughts"`
	Reference       string    `json:"reference"`
	CreatedAt       time.Time `json:"created_at"`
}
