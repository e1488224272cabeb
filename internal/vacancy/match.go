package vacancy

import "time"

// Match statuses.
const (
	MatchPending     = "pending"
	MatchShortlisted = "shortlisted"
	MatchRejected    = "rejected"
)

// Match is the stored outcome of evaluating one résumé against one vacancy.
type Match struct {
	ID         string    `json:"id,omitempty" mapstructure:"id"`
	VacancyID  string    `json:"vacancy_id" mapstructure:"vacancy_id"`
	ResumeID   string    `json:"resume_id" mapstructure:"resume_id"`
	Score      float64   `json:"score" mapstructure:"score"`
	Fit        bool      `json:"fit" mapstructure:"fit"`
	Reason     string    `json:"reason,omitempty" mapstructure:"reason"`
	Message    string    `json:"message,omitempty" mapstructure:"message"`
	Similarity float64   `json:"similarity" mapstructure:"similarity"`
	Status     string    `json:"status,omitempty" mapstructure:"status"`
	Error      string    `json:"error,omitempty" mapstructure:"error"`
	CreatedAt  time.Time `json:"created_at,omitempty" mapstructure:"created_at"`
}

// IsValidMatchStatus reports whether s is a known match status.
func IsValidMatchStatus(s string) bool {
	switch s {
	case MatchPending, MatchShortlisted, MatchRejected:
		return true
	default:
		return false
	}
}
