// Package version implements the immutable ordered snapshot store (C5):
// create, list, diff, and revert, plus the restart hook back into the
// document session.
package version

import "time"

type Version struct {
	ID                string
	DocumentID        string
	VersionNumber     int
	Content           string
	CreatedBy         string
	CreatedAt         time.Time
	ChangeDescription string
}

type SegmentType string

const (
	Added     SegmentType = "ADDED"
	Removed   SegmentType = "REMOVED"
	Unchanged SegmentType = "UNCHANGED"
)

type Segment struct {
	Type          SegmentType
	Content       string
	StartLine     int
	EndLine       int
	AttributedTo  string
	HasAttribution bool
}

type DiffStats struct {
	AddedLines   int
	RemovedLines int
	AddedChars   int
	RemovedChars int
	NetChange    int
}

type DiffResult struct {
	DocumentID string
	FromVersion int
	ToVersion   int
	Segments    []Segment
	Stats       DiffStats
}
