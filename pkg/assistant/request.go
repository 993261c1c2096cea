// Package assistant is the question-answering side of infobase: request
// validation, the gateway prompt and a client for the assistant endpoint.
package assistant

import (
	"strings"
	"unicode/utf8"

	"github.com/nrashid7/infobase/pkg/sse"
)

const (
	// MaxQuestionLength is the longest accepted question, in runes.
	MaxQuestionLength = 1000

	// MaxContextLength is the longest accepted guide context, in runes.
	MaxContextLength = 8000

	LanguageEnglish = "en"
	LanguageBangla  = "bn"
)

// AskRequest is the body accepted by the assistant endpoint.
type AskRequest struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
	Language string `json:"language,omitempty"`
}

// Normalize trims the question and defaults the language to English.
func (r AskRequest) Normalize() AskRequest {
	r.Question = strings.TrimSpace(r.Question)
	r.Context = strings.TrimSpace(r.Context)
	r.Language = strings.ToLower(strings.TrimSpace(r.Language))
	if r.Language == "" {
		r.Language = LanguageEnglish
	}
	return r
}

// Validate rejects requests that must never reach the gateway. The error is
// a *sse.StreamError of KindInvalidInput.
func (r AskRequest) Validate() error {
	r = r.Normalize()

	switch {
	case r.Question == "":
		return invalid("Question is required")
	case utf8.RuneCountInString(r.Question) > MaxQuestionLength:
		return invalid("Question is too long (max 1000 characters)")
	case utf8.RuneCountInString(r.Context) > MaxContextLength:
		return invalid("Context is too long (max 8000 characters)")
	case r.Language != LanguageEnglish && r.Language != LanguageBangla:
		return invalid(`Language must be "en" or "bn"`)
	}
	return nil
}

func invalid(msg string) error {
	return &sse.StreamError{
		Kind:    sse.KindInvalidInput,
		Status:  400,
		Message: msg,
	}
}
