package study

import "fmt"

// Schema returns the JSON schema for kind's function parameters.
func Schema(kind Kind) map[string]any {
	switch kind {
	case KindQuiz:
		return object(map[string]any{
			"questions": array(object(map[string]any{
				"id":       str(),
				"question": str(),
				"type":     map[string]any{"type": "string", "enum": []string{"mcq", "short"}},
				"options": map[string]any{
					"type":        "array",
					"items":       str(),
					"description": "Only for MCQ type questions",
				},
				"correctAnswer": str(),
			}, "id", "question", "type", "correctAnswer")),
		}, "questions")
	case KindFlashcards:
		return object(map[string]any{
			"flashcards": array(object(map[string]any{
				"id":       str(),
				"question": str(),
				"answer":   str(),
			}, "id", "question", "answer")),
		}, "flashcards")
	case KindSummary:
		return object(map[string]any{
			"importantTopics": array(str()),
			"keyDefinitions": array(object(map[string]any{
				"term":       str(),
				"definition": str(),
			}, "term", "definition")),
			"revisionPoints": array(str()),
		}, "importantTopics", "keyDefinitions", "revisionPoints")
	case KindFlowchart:
		return object(map[string]any{
			"mermaidCode": map[string]any{"type": "string", "description": "Valid Mermaid.js flowchart code"},
			"title":       str(),
		}, "mermaidCode", "title")
	case KindPYQAnalysis:
		return pyqSchema()
	}
	panic(fmt.Sprintf("study: no schema for kind %q", string(kind)))
}

func pyqSchema() map[string]any {
	topicStat := object(map[string]any{
		"topic":      str(),
		"frequency":  num(),
		"percentage": num(),
	}, "topic", "frequency", "percentage")
	prediction := array(object(map[string]any{
		"topic":       str(),
		"probability": num(),
	}, "topic", "probability"))
	yearSeries := func(description string) map[string]any {
		s := array(object(map[string]any{
			"subject":  str(),
			"semester": num(),
			"yearData": array(object(map[string]any{
				"year":   str(),
				"topics": array(topicStat),
			}, "year", "topics")),
		}, "subject", "semester", "yearData"))
		s["description"] = description
		return s
	}

	analyses := array(object(map[string]any{
		"subject":        str(),
		"semester":       num(),
		"topicFrequency": array(topicStat),
		"topicDistribution": array(object(map[string]any{
			"name":  str(),
			"value": num(),
		}, "name", "value")),
		"predictions": object(map[string]any{
			"ct1":    prediction,
			"ct2":    prediction,
			"endsem": prediction,
		}, "ct1", "ct2", "endsem"),
		"studyRecommendation": str(),
	}, "subject", "semester", "topicFrequency", "topicDistribution", "predictions", "studyRecommendation"))
	analyses["description"] = "Analysis for each subject-semester combination"

	return object(map[string]any{
		"subjectAnalyses": analyses,
		"comparisons":     yearSeries("Year-over-year comparison for each subject"),
		"timelines":       yearSeries("Timeline data for trend visualization"),
	}, "subjectAnalyses")
}

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{"type": "object", "properties": props, "required": required}
}

func array(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func str() map[string]any { return map[string]any{"type": "string"} }

func num() map[string]any { return map[string]any{"type": "number"} }
