package domain

import (
	"strings"
	"unicode/utf8"
)

type ExtractionKind string

const (
	ExtractionOK    ExtractionKind = "ok"
	ExtractionError ExtractionKind = "error"
)

type ContextSource string

const (
	SourceNotes    ContextSource = "notes"
	SourceDocument ContextSource = "document"
	SourcePage     ContextSource = "page"
	SourceVideo    ContextSource = "video"
)

// ExtractionResult is the outcome of converting one external source into text.
// Failed extractions keep their human-readable message in Text.
type ExtractionResult struct {
	Kind   ExtractionKind `json:"kind"`
	Source ContextSource  `json:"source"`
	Origin string         `json:"origin,omitempty"`
	Text   string         `json:"text"`
}

func (r ExtractionResult) Failed() bool {
	return r.Kind == ExtractionError
}

// CaptionFragment is one timed line of a video transcript.
type CaptionFragment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// ContextBuffer is the background text handed to every model call.
// Notes is the part the user authors directly; Entries accumulate extractor output.
type ContextBuffer struct {
	Notes   string             `json:"notes"`
	Entries []ExtractionResult `json:"entries,omitempty"`
}

func (b *ContextBuffer) SetNotes(text string) {
	b.Notes = text
}

func (b *ContextBuffer) Append(result ExtractionResult) {
	b.Entries = append(b.Entries, result)
}

// String renders the buffer the way it accumulates: notes, then "\n" + text for every entry.
func (b ContextBuffer) String() string {
	return b.render(true)
}

// PromptText renders the buffer for the system prompt. Failed extractions are left out
// unless includeFailed is set.
func (b ContextBuffer) PromptText(includeFailed bool) string {
	return b.render(includeFailed)
}

// Recent renders the prompt text within maxRunes. The notes come first, then as many of the
// newest entries as fit, in buffer order. The oldest entry that does not fit whole keeps its
// leading runes and everything older is dropped. cut reports whether anything was left out.
// A maxRunes of zero or less renders the whole buffer.
func (b ContextBuffer) Recent(maxRunes int, includeFailed bool) (text string, cut bool) {
	full := b.PromptText(includeFailed)
	if maxRunes <= 0 || utf8.RuneCountInString(full) <= maxRunes {
		return full, false
	}
	if utf8.RuneCountInString(b.Notes) >= maxRunes {
		return string([]rune(b.Notes)[:maxRunes]), true
	}

	budget := maxRunes - utf8.RuneCountInString(b.Notes)
	var kept []string
	for i := len(b.Entries) - 1; i >= 0 && budget > 1; i-- {
		entry := b.Entries[i]
		if entry.Failed() && !includeFailed {
			continue
		}
		size := 1 + utf8.RuneCountInString(entry.Text)
		if size > budget {
			kept = append(kept, string([]rune(entry.Text)[:budget-1]))
			break
		}
		kept = append(kept, entry.Text)
		budget -= size
	}

	var sb strings.Builder
	sb.WriteString(b.Notes)
	for i := len(kept) - 1; i >= 0; i-- {
		sb.WriteString("\n")
		sb.WriteString(kept[i])
	}
	return sb.String(), true
}

func (b ContextBuffer) Empty() bool {
	return b.Notes == "" && len(b.Entries) == 0
}

func (b ContextBuffer) render(includeFailed bool) string {
	var sb strings.Builder
	sb.WriteString(b.Notes)
	for _, entry := range b.Entries {
		if entry.Failed() && !includeFailed {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(entry.Text)
	}
	return sb.String()
}

func (b ContextBuffer) clone() ContextBuffer {
	out := ContextBuffer{Notes: b.Notes}
	if len(b.Entries) > 0 {
		out.Entries = append([]ExtractionResult(nil), b.Entries...)
	}
	return out
}
