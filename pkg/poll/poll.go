// Package poll runs simple polls where each member votes once.
package poll

import (
	"strings"
	"time"

	"intranet-portal/pkg/validation"
)

// Poll is a question with a fixed set of options.
type Poll struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Options   []Option  `json:"options"`
	CreatedBy *int64    `json:"created_by"`
	Closed    bool      `json:"closed"`
	CreatedAt time.Time `json:"created_at"`
}

// Option is one answer with its vote count.
type Option struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Votes int    `json:"votes"`
}

// TotalVotes sums the votes over all options.
func (p Poll) TotalVotes() int {
	total := 0
	for _, o := range p.Options {
		total += o.Votes
	}
	return total
}

// HasOption reports whether optionID belongs to the poll.
func (p Poll) HasOption(optionID int64) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Results is a poll as seen by one member.
type Results struct {
	Poll
	Total int `json:"total"`

	// MyVote is the option the viewer chose, or nil
	MyVote *int64 `json:"my_vote"`
}

// Input is the submitted poll form.
type Input struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Validation messages.
const (
	MsgQuestionRequired = "Question is required."
	MsgQuestionLength   = "Question must be between 3 and 255 characters."
	MsgOptionsCount     = "A poll needs between 2 and 10 options."
	MsgOptionsDuplicate = "Options must be distinct."
	MsgOptionTooLong    = "Options may not exceed 255 characters."
	MsgOptionInvalid    = "Choose one of the poll's options."
)

const (
	minOptions        = 2
	maxOptions        = 10
	minQuestionLength = 3
	maxQuestionLength = 255
	maxOptionLength   = 255
)

// normalized trims the question and options and drops empty options.
func (in Input) normalized() Input {
	out := Input{Question: strings.TrimSpace(in.Question)}
	for _, o := range in.Options {
		if o = strings.TrimSpace(o); o != "" {
			out.Options = append(out.Options, o)
		}
	}
	return out
}

// Validate checks a normalized poll form.
func Validate(in Input) validation.FieldErrors {
	errs := validation.FieldErrors{}

	switch n := validation.Length(in.Question); {
	case n == 0:
		errs.Add("question", MsgQuestionRequired)
	case n < minQuestionLength || n > maxQuestionLength:
		errs.Add("question", MsgQuestionLength)
	}

	if len(in.Options) < minOptions || len(in.Options) > maxOptions {
		errs.Add("options", MsgOptionsCount)
	}
	seen := make(map[string]bool, len(in.Options))
	for _, o := range in.Options {
		if validation.Length(o) > maxOptionLength && !errs.Has("options") {
			errs.Add("options", MsgOptionTooLong)
		}
		key := strings.ToLower(o)
		if seen[key] {
			errs.Add("options", MsgOptionsDuplicate)
			break
		}
		seen[key] = true
	}
	return errs
}
