package domain

import (
	"time"
)

// Report is a catalog entry for one emitted session report.
type Report struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path,omitempty"`
	Content   string    `json:"-"`
	Degraded  []string  `json:"degraded,omitempty"`
	SaveError string    `json:"save_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Saved reports whether the report file was written to disk.
func (r *Report) Saved() bool {
	return r.SaveError == "" && r.Path != ""
}
