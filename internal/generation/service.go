package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"studyai-backend/internal/documents"
	"studyai-backend/internal/llm"
	"studyai-backend/internal/shared/metrics"
	"studyai-backend/internal/shared/telemetry"
	"studyai-backend/internal/study"
)

// ErrNoAnalysis is returned when the model answers a PYQ analysis without
// calling the analysis function.
var ErrNoAnalysis = errors.New("Failed to generate analysis")

// DocumentLister is the read side of the documents service.
type DocumentLister interface {
	List(ctx context.Context, ownerID string, category documents.Category) ([]documents.Document, error)
	ListAll(ctx context.Context, ownerID string) ([]documents.Document, error)
}

// Service turns an owner's documents into study artifacts and chat streams.
type Service struct {
	Docs    DocumentLister
	Builder *study.Builder
	Gateway llm.Gateway
}

// Output is either a decoded artifact (Data) or, when the model skipped the
// function call, its plain reply (Content).
type Output struct {
	Kind    study.Kind
	Data    any
	Content string
}

// Generate produces one artifact of kind from the owner's documents in the
// kind's source category.
func (s *Service) Generate(ctx context.Context, ownerID string, kind study.Kind) (Output, error) {
	start := time.Now()
	out, err := s.generate(ctx, ownerID, kind)

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case out.Data == nil:
		outcome = "text"
	}
	metrics.IncGeneration(string(kind), outcome)

	fields := map[string]any{
		"user_id":     ownerID,
		"kind":        string(kind),
		"outcome":     outcome,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		telemetry.Warn("generation.failed", fields)
		return Output{}, err
	}
	telemetry.Info("generation.complete", fields)
	return out, nil
}

func (s *Service) generate(ctx context.Context, ownerID string, kind study.Kind) (Output, error) {
	docs, err := s.Docs.List(ctx, ownerID, documents.ParseCategory(kind.SourceCategory()))
	if err != nil {
		return Output{}, err
	}
	req, err := s.Builder.Build(kind, toSources(docs))
	if err != nil {
		return Output{}, err
	}

	res, err := s.Gateway.Invoke(ctx, req)
	if err != nil {
		return Output{}, err
	}
	if !res.HasArguments() {
		if kind == study.KindPYQAnalysis {
			return Output{}, ErrNoAnalysis
		}
		return Output{Kind: kind, Content: res.Text}, nil
	}

	data, err := study.Decode(kind, res.Arguments)
	if err != nil {
		return Output{}, err
	}
	return Output{Kind: kind, Data: data}, nil
}

// Chat streams a reply grounded in the owner's documents. The general
// category (and anything unrecognised) reads every document.
func (s *Service) Chat(ctx context.Context, ownerID, category string, messages []llm.Message) (io.ReadCloser, error) {
	cat := documents.ParseCategory(category)

	var (
		docs []documents.Document
		err  error
	)
	if cat == documents.CategoryGeneral {
		docs, err = s.Docs.ListAll(ctx, ownerID)
	} else {
		docs, err = s.Docs.List(ctx, ownerID, cat)
	}
	if err != nil {
		return nil, err
	}

	req, err := s.Builder.Chat(string(cat), toSources(docs), messages)
	if err != nil {
		return nil, err
	}
	body, err := s.Gateway.Stream(ctx, req)
	if err != nil {
		metrics.IncGeneration("chat", "error")
		return nil, fmt.Errorf("chat stream: %w", err)
	}
	metrics.IncGeneration("chat", "success")
	telemetry.Info("chat.stream_opened", map[string]any{
		"user_id":   ownerID,
		"category":  string(cat),
		"documents": len(docs),
		"messages":  len(messages),
	})
	return body, nil
}

func toSources(docs []documents.Document) []study.Source {
	sources := make([]study.Source, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, study.Source{
			FileName:     d.FileName,
			Text:         d.ExtractedText,
			Subject:      d.PYQ.Subject,
			Semester:     d.PYQ.Semester,
			AcademicYear: d.PYQ.AcademicYear,
		})
	}
	return sources
}
