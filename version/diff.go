package version

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/changelog"
	"github.com/pmezard/go-difflib/difflib"
)

// Diff computes a line-oriented sequence of segments between fromVersion
// (defaulting to toVersion-1) and toVersion, plus aggregate stats.
// Attribution for ADDED/REMOVED segments comes from change-log entries
// linked to toVersion, matched by content — exact equality preferred,
// falling back to substring containment, falling back to the version
// creator.
func (s *Store) Diff(ctx context.Context, documentID string, toVersion int, fromVersion *int) (*DiffResult, error) {
	to, err := s.byNumber(ctx, documentID, toVersion)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, fmt.Errorf("version %d of document %s not found", toVersion, documentID)
	}

	fromNumber := toVersion - 1
	if fromVersion != nil {
		fromNumber = *fromVersion
	}

	var fromContent string
	if fromNumber >= 0 {
		from, err := s.byNumber(ctx, documentID, fromNumber)
		if err != nil {
			return nil, err
		}
		if from != nil {
			fromContent = from.Content
		}
	}

	entries, err := s.changes.ListByVersion(ctx, to.ID)
	if err != nil {
		return nil, fmt.Errorf("version: diff: load change entries: %w", err)
	}

	fromLines := difflib.SplitLines(fromContent)
	toLines := difflib.SplitLines(to.Content)
	matcher := difflib.NewMatcher(fromLines, toLines)

	result := &DiffResult{
		DocumentID:  documentID,
		FromVersion: fromNumber,
		ToVersion:   toVersion,
	}

	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			seg := Segment{
				Type:      Unchanged,
				Content:   strings.Join(toLines[op.J1:op.J2], ""),
				StartLine: op.J1,
				EndLine:   op.J2,
			}
			result.Segments = append(result.Segments, seg)

		case 'd':
			content := strings.Join(fromLines[op.I1:op.I2], "")
			seg := Segment{
				Type:      Removed,
				Content:   content,
				StartLine: op.I1,
				EndLine:   op.I2,
			}
			attribute(&seg, content, entries, to.CreatedBy)
			result.Segments = append(result.Segments, seg)
			result.Stats.RemovedLines += op.I2 - op.I1
			result.Stats.RemovedChars += utf8.RuneCountInString(content)

		case 'i':
			content := strings.Join(toLines[op.J1:op.J2], "")
			seg := Segment{
				Type:      Added,
				Content:   content,
				StartLine: op.J1,
				EndLine:   op.J2,
			}
			attribute(&seg, content, entries, to.CreatedBy)
			result.Segments = append(result.Segments, seg)
			result.Stats.AddedLines += op.J2 - op.J1
			result.Stats.AddedChars += utf8.RuneCountInString(content)

		case 'r':
			removedContent := strings.Join(fromLines[op.I1:op.I2], "")
			removedSeg := Segment{
				Type:      Removed,
				Content:   removedContent,
				StartLine: op.I1,
				EndLine:   op.I2,
			}
			attribute(&removedSeg, removedContent, entries, to.CreatedBy)
			result.Segments = append(result.Segments, removedSeg)
			result.Stats.RemovedLines += op.I2 - op.I1
			result.Stats.RemovedChars += utf8.RuneCountInString(removedContent)

			addedContent := strings.Join(toLines[op.J1:op.J2], "")
			addedSeg := Segment{
				Type:      Added,
				Content:   addedContent,
				StartLine: op.J1,
				EndLine:   op.J2,
			}
			attribute(&addedSeg, addedContent, entries, to.CreatedBy)
			result.Segments = append(result.Segments, addedSeg)
			result.Stats.AddedLines += op.J2 - op.J1
			result.Stats.AddedChars += utf8.RuneCountInString(addedContent)
		}
	}

	result.Stats.NetChange = result.Stats.AddedChars - result.Stats.RemovedChars
	return result, nil
}

// attribute resolves which user is responsible for a segment by scanning
// the change-log entries linked to the target version: exact content
// equality first, then substring containment, then the version creator.
func attribute(seg *Segment, content string, entries []changelog.Entry, fallbackUserID string) {
	trimmed := strings.TrimRight(content, "\n")
	if trimmed == "" {
		return
	}

	for _, e := range entries {
		if e.Content == trimmed {
			seg.AttributedTo = e.UserID
			seg.HasAttribution = true
			return
		}
	}
	for _, e := range entries {
		if e.Content != "" && (strings.Contains(trimmed, e.Content) || strings.Contains(e.Content, trimmed)) {
			seg.AttributedTo = e.UserID
			seg.HasAttribution = true
			return
		}
	}

	seg.AttributedTo = fallbackUserID
	seg.HasAttribution = true
}
