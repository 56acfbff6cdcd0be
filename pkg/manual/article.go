// Package manual is the knowledge base: markdown articles with file
// attachments, rendered to sanitized HTML on every read.
package manual

import (
	"strings"
	"time"

	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/validation"
)

// Difficulty grades an article. The empty value means ungraded.
type Difficulty string

const (
	DifficultyNone   Difficulty = ""
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty or empty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyNone, DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Article is a knowledge base entry. Content is the only stored form of
// the body; ContentHTML is filled on read and never persisted.
type Article struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	Difficulty      Difficulty `json:"difficulty"`
	Content         string     `json:"content"`
	CreatedByUserID *int64     `json:"created_by_user_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ContentHTML     string     `json:"content_html,omitempty"`
}

// OwnedBy reports whether userID wrote the article.
func (a Article) OwnedBy(userID int64) bool {
	return a.CreatedByUserID != nil && userID > 0 && *a.CreatedByUserID == userID
}

// Attachment is a file stored alongside an article.
type Attachment struct {
	ID         int64     `json:"id"`
	ArticleID  int64     `json:"article_id"`
	FileName   string    `json:"file_name"`
	StoredName string    `json:"-"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	UploadedBy *int64    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Input is the submitted article form.
type Input struct {
	Title      string `json:"title"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	Content    string `json:"content"`
}

// normalized returns the input with surrounding whitespace removed.
func (in Input) normalized() Input {
	return Input{
		Title:      strings.TrimSpace(in.Title),
		Category:   strings.TrimSpace(in.Category),
		Difficulty: strings.ToLower(strings.TrimSpace(in.Difficulty)),
		Content:    strings.TrimSpace(in.Content),
	}
}

// Filter narrows an article listing. Empty fields do not filter.
type Filter struct {
	Query      string `json:"q"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// Validation messages.
const (
	MsgTitleRequired     = "Title is required."
	MsgTitleLength       = "Title must be between 3 and 255 characters."
	MsgCategoryTooLong   = "Category may not exceed 255 characters."
	MsgDifficultyInvalid = "Difficulty must be easy, medium or hard."
	MsgContentRequired   = "Content is required."
	MsgContentTooShort   = "Content must be at least 10 characters."
	MsgFileRequired      = "A file is required."
	MsgFileNameTooLong   = "File name may not exceed 255 characters."
)

const (
	minTitleLength    = 3
	maxTitleLength    = 255
	maxCategoryLength = 255
	minContentLength  = 10
	maxFileNameLength = 255
)

// Validate checks a normalized article form.
func Validate(in Input) validation.FieldErrors {
	errs := validation.FieldErrors{}

	switch n := validation.Length(in.Title); {
	case n == 0:
		errs.Add("title", MsgTitleRequired)
	case n < minTitleLength || n > maxTitleLength:
		errs.Add("title", MsgTitleLength)
	}

	if validation.Length(in.Category) > maxCategoryLength {
		errs.Add("category", MsgCategoryTooLong)
	}

	if !Difficulty(in.Difficulty).Valid() {
		errs.Add("difficulty", MsgDifficultyInvalid)
	}

	switch n := validation.Length(in.Content); {
	case n == 0:
		errs.Add("content", MsgContentRequired)
	case n < minContentLength:
		errs.Add("content", MsgContentTooShort)
	}

	return errs
}

// CanModify reports whether actor may edit or delete a, including its
// attachments: the author or any moderator.
func CanModify(actor identity.Identity, a *Article) bool {
	if !actor.Authenticated() || a == nil {
		return false
	}
	return actor.Role.IsModerator() || a.OwnedBy(actor.UserID)
}
