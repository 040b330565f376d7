// Package report renders finished wizard sessions and publishes them as
// text files and catalog entries.
package report

import (
	"strings"
	"time"
)

// FilenamePrefix starts every report filename.
const FilenamePrefix = "first_principles_session_"

// FilenameLayout is the timestamp layout of report filenames (YYYYMMDD_HHMMSS).
const FilenameLayout = "20060102_150405"

// Document is the content of one finished session.
type Document struct {
	Problem    string
	Analysis   string
	Assumption string
	Challenge  string
	Solutions  string
	// Degraded lists operations whose text is a failure string.
	Degraded  []string
	CreatedAt time.Time
}

// Render returns the report text.
func (d Document) Render() string {
	var b strings.Builder
	b.WriteString("First Principles Problem Solving Session\n")
	b.WriteString("========================================\n")
	b.WriteString("\n")
	b.WriteString("Problem: " + d.Problem + "\n")
	b.WriteString("\n")
	b.WriteString("First Principles Analysis:\n")
	b.WriteString(d.Analysis + "\n")
	b.WriteString("\n")
	b.WriteString("Challenged Assumption: " + d.Assumption + "\n")
	b.WriteString("Challenge Response:\n")
	b.WriteString(d.Challenge + "\n")
	b.WriteString("\n")
	b.WriteString("Creative Solutions:\n")
	b.WriteString(d.Solutions + "\n")
	return b.String()
}

// Filename returns the report filename derived from CreatedAt.
// Two reports created within the same second share a name.
func (d Document) Filename() string {
	return FilenamePrefix + d.CreatedAt.Format(FilenameLayout) + ".txt"
}
