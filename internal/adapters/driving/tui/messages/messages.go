// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

// Mode selects what a submitted prompt does.
type Mode int

const (
	// ModeAsk synthesises a cited answer.
	ModeAsk Mode = iota
	// ModeFind groups excerpts of papers whose title contains the prompt.
	ModeFind
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeAsk:
		return "ask"
	case ModeFind:
		return "find"
	default:
		return "unknown"
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeAsk {
		return ModeFind
	}
	return ModeAsk
}

// SessionLoaded is sent once the query backends are ready.
type SessionLoaded struct {
	Query driving.QueryService
	Err   error
}

// StatsLoaded carries library statistics for the header.
type StatsLoaded struct {
	Stats *domain.LibraryStats
	Err   error
}

// PromptSubmitted is sent when the user submits a prompt.
type PromptSubmitted struct {
	Text string
	Mode Mode
}

// AnswerCompleted carries a synthesised answer back to the model.
type AnswerCompleted struct {
	Answer *domain.Answer
	Err    error
}

// PapersFound carries find-mode results back to the model.
type PapersFound struct {
	Keyword string
	Groups  []domain.PaperGroup
	Err     error
}

// ErrorOccurred is sent when an error needs to be displayed.
type ErrorOccurred struct {
	Err error
}
