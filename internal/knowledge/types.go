package knowledge

import "time"

// Document is a knowledge base article describing a known problem, the
// discussion around it, and its workaround/resolution. problem_id is the
// stable identity; indexing the same id twice replaces the stored record.
type Document struct {
	ProblemID        string       `json:"problem_id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Status           string       `json:"status"`
	Priority         string       `json:"priority"`
	Impact           string       `json:"impact"`
	Category         string       `json:"category"`
	ReportedDate     time.Time    `json:"reported_date"`
	ResolvedDate     *time.Time   `json:"resolved_date,omitempty"`
	AssignedTo       string       `json:"assigned_to"`
	ReportedBy       string       `json:"reported_by"`
	RootCause        string       `json:"root_cause"`
	Workaround       string       `json:"workaround"`
	Resolution       string       `json:"resolution"`
	RelatedIncidents []string     `json:"related_incidents,omitempty"`
	Scope            []string     `json:"scope"`
	Comments         []Comment    `json:"comments,omitempty"`
	Attachments      []Attachment `json:"attachments,omitempty"`

	// Summary is a narrative generated from Comments at index time when the
	// ingested document does not already carry one.
	Summary string `json:"summary,omitempty"`

	// Embedding is computed from Title+Description at index time and never
	// returned to callers.
	Embedding []float32 `json:"-"`
}

type Comment struct {
	CommentID     string    `json:"comment_id"`
	CommentText   string    `json:"comment_text"`
	CommentedBy   string    `json:"commented_by"`
	CommentedDate time.Time `json:"commented_date"`
}

type Attachment struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}
