package study

import (
	"encoding/json"
	"fmt"
	"strings"
)

type QuizQuestion struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer"`
}

type Quiz struct {
	Questions []QuizQuestion `json:"questions"`
}

type Flashcard struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type FlashcardSet struct {
	Flashcards []Flashcard `json:"flashcards"`
}

type Definition struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type Summary struct {
	ImportantTopics []string     `json:"importantTopics"`
	KeyDefinitions  []Definition `json:"keyDefinitions"`
	RevisionPoints  []string     `json:"revisionPoints"`
}

type Flowchart struct {
	MermaidCode string `json:"mermaidCode"`
	Title       string `json:"title"`
}

type TopicStat struct {
	Topic      string  `json:"topic"`
	Frequency  float64 `json:"frequency"`
	Percentage float64 `json:"percentage"`
}

type Prediction struct {
	Topic       string  `json:"topic"`
	Probability float64 `json:"probability"`
}

type Predictions struct {
	CT1    []Prediction `json:"ct1"`
	CT2    []Prediction `json:"ct2"`
	EndSem []Prediction `json:"endsem"`
}

type DistributionSlice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type SubjectAnalysis struct {
	Subject             string              `json:"subject"`
	Semester            float64             `json:"semester"`
	TopicFrequency      []TopicStat         `json:"topicFrequency"`
	TopicDistribution   []DistributionSlice `json:"topicDistribution"`
	Predictions         Predictions         `json:"predictions"`
	StudyRecommendation string              `json:"studyRecommendation"`
}

type YearTopics struct {
	Year   string      `json:"year"`
	Topics []TopicStat `json:"topics"`
}

type YearSeries struct {
	Subject  string       `json:"subject"`
	Semester float64      `json:"semester"`
	YearData []YearTopics `json:"yearData"`
}

type PYQAnalysis struct {
	SubjectAnalyses []SubjectAnalysis `json:"subjectAnalyses"`
	Comparisons     []YearSeries      `json:"comparisons,omitempty"`
	Timelines       []YearSeries      `json:"timelines,omitempty"`
}

// Decode unmarshals function-call arguments into kind's artifact type.
func Decode(kind Kind, raw json.RawMessage) (any, error) {
	switch kind {
	case KindQuiz:
		var q Quiz
		if err := unmarshal(raw, &q); err != nil {
			return nil, err
		}
		return NormalizeQuiz(q), nil
	case KindFlashcards:
		var f FlashcardSet
		if err := unmarshal(raw, &f); err != nil {
			return nil, err
		}
		if f.Flashcards == nil {
			f.Flashcards = []Flashcard{}
		}
		return f, nil
	case KindSummary:
		var s Summary
		if err := unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s.ImportantTopics == nil {
			s.ImportantTopics = []string{}
		}
		if s.KeyDefinitions == nil {
			s.KeyDefinitions = []Definition{}
		}
		if s.RevisionPoints == nil {
			s.RevisionPoints = []string{}
		}
		return s, nil
	case KindFlowchart:
		var f Flowchart
		if err := unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return f, nil
	case KindPYQAnalysis:
		var p PYQAnalysis
		if err := unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.SubjectAnalyses == nil {
			p.SubjectAnalyses = []SubjectAnalysis{}
		}
		return p, nil
	}
	return nil, ErrUnknownKind
}

func unmarshal(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	return nil
}

// NormalizeQuiz makes ids unique, limits type to mcq or short and keeps
// options only on mcq questions.
func NormalizeQuiz(q Quiz) Quiz {
	out := Quiz{Questions: make([]QuizQuestion, 0, len(q.Questions))}
	seen := make(map[string]bool, len(q.Questions))
	next := 1
	for _, question := range q.Questions {
		id := strings.TrimSpace(question.ID)
		if id == "" || seen[id] {
			for seen[fmt.Sprintf("q%d", next)] {
				next++
			}
			id = fmt.Sprintf("q%d", next)
		}
		seen[id] = true
		question.ID = id

		if strings.EqualFold(strings.TrimSpace(question.Type), "mcq") && len(question.Options) > 0 {
			question.Type = "mcq"
		} else {
			question.Type = "short"
			question.Options = nil
		}
		out.Questions = append(out.Questions, question)
	}
	return out
}
