package service

import (
	"strings"

	"notebookrag/internal/domain"
)

// Task is what the user asks of the document. Each variant names the text
// used for retrieval, so there is no implicit fallback query.
type Task interface {
	Mode() string
	// Query is the text embedded for retrieval.
	Query() string
	// Question is passed to the generator; empty for non-QA tasks.
	Question() string
	isTask()
}

// QA answers a free-form question.
type QA struct{ Text string }

// Summary summarizes the document.
type Summary struct{}

// StudyGuide lists key concepts to study.
type StudyGuide struct{}

// FAQ produces frequently asked questions with answers.
type FAQ struct{}

// Flashcards produces question/answer cards.
type Flashcards struct{}

func (QA) Mode() string         { return "qa" }
func (Summary) Mode() string    { return "summary" }
func (StudyGuide) Mode() string { return "study_guide" }
func (FAQ) Mode() string        { return "faq" }
func (Flashcards) Mode() string { return "flashcards" }

func (t QA) Query() string       { return t.Text }
func (Summary) Query() string    { return "Summarize the document" }
func (StudyGuide) Query() string { return "Key concepts, definitions and topics to study" }
func (FAQ) Query() string        { return "Frequently asked questions and their answers" }
func (Flashcards) Query() string { return "Important facts, terms and definitions" }

func (t QA) Question() string       { return t.Text }
func (Summary) Question() string    { return "" }
func (StudyGuide) Question() string { return "" }
func (FAQ) Question() string        { return "" }
func (Flashcards) Question() string { return "" }

func (QA) isTask()         {}
func (Summary) isTask()    {}
func (StudyGuide) isTask() {}
func (FAQ) isTask()        {}
func (Flashcards) isTask() {}

// Modes lists the accepted mode names in display order.
func Modes() []string {
	return []string{"qa", "summary", "study_guide", "faq", "flashcards"}
}

// ParseTask maps a mode name and optional question to a Task. QA requires a
// question; the other modes ignore it.
func ParseTask(mode, question string) (Task, error) {
	question = strings.TrimSpace(question)
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "qa", "":
		if question == "" {
			return nil, domain.ConfigError("mode qa needs a question")
		}
		return QA{Text: question}, nil
	case "summary":
		return Summary{}, nil
	case "study_guide":
		return StudyGuide{}, nil
	case "faq":
		return FAQ{}, nil
	case "flashcards":
		return Flashcards{}, nil
	default:
		return nil, domain.ConfigError("unknown mode %q", mode)
	}
}
