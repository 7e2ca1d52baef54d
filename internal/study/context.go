package study

import (
	"fmt"
	"strings"

	"studyai-backend/internal/extract"
	"studyai-backend/internal/shared/util"
)

const (
	pyqDocumentRunes = 15000
	pyqContextRunes  = 60000
)

// Source is one document as seen by the prompt builder.
type Source struct {
	FileName     string
	Text         string
	Subject      string
	Semester     int
	AcademicYear string
}

// MaterialsContext renders "[Document i: name]\ntext" blocks separated by a
// blank line.
func MaterialsContext(sources []Source) string {
	parts := make([]string, 0, len(sources))
	for i, s := range sources {
		parts = append(parts, fmt.Sprintf("[Document %d: %s]\n%s", i+1, s.FileName, s.Text))
	}
	return strings.Join(parts, "\n\n")
}

type pyqGroup struct {
	subject  string
	semester int
	sources  []Source
}

// PYQContext groups papers by subject and semester in first-seen order and
// returns the rendered block plus the "Subject (Sem n)" list.
func PYQContext(sources []Source) (string, string) {
	var order []string
	groups := make(map[string]*pyqGroup)
	for _, s := range sources {
		subject := strings.TrimSpace(s.Subject)
		keySubject := subject
		if keySubject == "" {
			keySubject = "Unknown"
		}
		key := fmt.Sprintf("%s_%d", keySubject, s.Semester)

		g, ok := groups[key]
		if !ok {
			g = &pyqGroup{subject: subject, semester: s.Semester}
			if g.subject == "" {
				g.subject = "Unknown Subject"
			}
			if g.semester == 0 {
				g.semester = 1
			}
			groups[key] = g
			order = append(order, key)
		}
		g.sources = append(g.sources, s)
	}

	var b strings.Builder
	subjects := make([]string, 0, len(order))
	for _, key := range order {
		g := groups[key]
		fmt.Fprintf(&b, "\n\n=== SUBJECT: %s | SEMESTER: %d ===\n", g.subject, g.semester)
		for _, s := range g.sources {
			year := strings.TrimSpace(s.AcademicYear)
			if year == "" {
				year = "Unknown"
			}
			fmt.Fprintf(&b, "\n[Year: %s | File: %s]\n", year, s.FileName)
			b.WriteString(util.TruncateRunes(s.Text, pyqDocumentRunes))
		}
		subjects = append(subjects, fmt.Sprintf("%s (Sem %d)", g.subject, g.semester))
	}
	return extract.Truncate(b.String(), pyqContextRunes), strings.Join(subjects, ", ")
}

// ChatContext renders the uploaded-documents block embedded in chat personas.
func ChatContext(sources []Source) string {
	var b strings.Builder
	b.WriteString("\n\n---UPLOADED DOCUMENTS---\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "\n[Document %d: %s]\n", i+1, s.FileName)
		if s.Text != "" {
			b.WriteString(s.Text)
		} else {
			b.WriteString("[No text extracted yet]")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n---END OF DOCUMENTS---\n")
	return b.String()
}
