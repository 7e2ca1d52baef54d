package study

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a generated study artifact.
type Kind string

const (
	KindQuiz        Kind = "quiz"
	KindFlashcards  Kind = "flashcards"
	KindSummary     Kind = "summary"
	KindFlowchart   Kind = "flowchart"
	KindPYQAnalysis Kind = "pyq_analysis"
)

var (
	ErrUnknownKind     = errors.New("Invalid type. Use: quiz, flashcards, summary, or flowchart")
	ErrNoDocuments     = errors.New("no documents")
	ErrMalformedOutput = errors.New("malformed model output")
)

// NoDocumentsError reports that the owner has nothing to generate from. Kind
// is empty for chat.
type NoDocumentsError struct {
	Kind Kind
}

func (e *NoDocumentsError) Error() string {
	switch {
	case e.Kind == KindPYQAnalysis:
		return "No PYQ documents found. Please upload previous year question papers first."
	case e.Kind.IsMaterial():
		return "No documents found. Please upload study notes first."
	default:
		return "No documents found. Please upload your study materials first."
	}
}

func (e *NoDocumentsError) Is(target error) bool {
	return target == ErrNoDocuments
}

// ParseKind accepts the four material kinds and pyq_analysis.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindQuiz, KindFlashcards, KindSummary, KindFlowchart, KindPYQAnalysis:
		return k, nil
	default:
		return "", ErrUnknownKind
	}
}

// IsMaterial reports whether k is generated from notes.
func (k Kind) IsMaterial() bool {
	switch k {
	case KindQuiz, KindFlashcards, KindSummary, KindFlowchart:
		return true
	case KindPYQAnalysis:
		return false
	}
	return false
}

// SourceCategory is the document category a kind reads from.
func (k Kind) SourceCategory() string {
	switch k {
	case KindQuiz, KindFlashcards, KindSummary, KindFlowchart:
		return "notes"
	case KindPYQAnalysis:
		return "pyq"
	}
	panic(fmt.Sprintf("study: unknown kind %q", string(k)))
}
