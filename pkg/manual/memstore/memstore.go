// Package memstore is an in-memory manual.Store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"intranet-portal/pkg/manual"
)

// Store keeps articles and attachments in maps guarded by a mutex.
type Store struct {
	mu           sync.RWMutex
	articles     map[int64]manual.Article
	attachments  map[int64]manual.Attachment
	nextArticle  int64
	nextAttached int64
	now          func() time.Time

	// Err, when set, is returned by every operation.
	Err error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		articles:     make(map[int64]manual.Article),
		attachments:  make(map[int64]manual.Attachment),
		nextArticle:  1,
		nextAttached: 1,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// FindAll returns matching articles ordered by title.
func (s *Store) FindAll(ctx context.Context, filter manual.Filter) ([]manual.Article, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(filter.Query)
	out := make([]manual.Article, 0, len(s.articles))
	for _, a := range s.articles {
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.Difficulty != "" && string(a.Difficulty) != filter.Difficulty {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(a.Title), query) &&
			!strings.Contains(strings.ToLower(a.Content), query) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := strings.ToLower(out[i].Title), strings.ToLower(out[j].Title)
		if ti != tj {
			return ti < tj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindByID returns a copy of the article.
func (s *Store) FindByID(ctx context.Context, id int64) (*manual.Article, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, manual.ErrNotFound
	}
	return &a, nil
}

// Create inserts an article and returns its id.
func (s *Store) Create(ctx context.Context, a manual.Article) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.nextArticle
	s.nextArticle++
	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	a.ContentHTML = ""
	s.articles[a.ID] = a
	return a.ID, nil
}

// Update overwrites the editable fields.
func (s *Store) Update(ctx context.Context, a manual.Article) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.articles[a.ID]
	if !ok {
		return manual.ErrNotFound
	}
	existing.Title = a.Title
	existing.Category = a.Category
	existing.Difficulty = a.Difficulty
	existing.Content = a.Content
	existing.UpdatedAt = s.now()
	s.articles[a.ID] = existing
	return nil
}

// Delete removes an article and its attachment rows.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.articles, id)
	for aid, att := range s.attachments {
		if att.ArticleID == id {
			delete(s.attachments, aid)
		}
	}
	return nil
}

// Categories returns the distinct non-empty categories, sorted.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := []string{}
	for _, a := range s.articles {
		if a.Category == "" {
			continue
		}
		if _, ok := seen[a.Category]; !ok {
			seen[a.Category] = struct{}{}
			out = append(out, a.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListAttachments returns the attachments of an article in id order.
func (s *Store) ListAttachments(ctx context.Context, articleID int64) ([]manual.Attachment, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []manual.Attachment{}
	for _, att := range s.attachments {
		if att.ArticleID == articleID {
			out = append(out, att)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindAttachment returns a copy of the attachment.
func (s *Store) FindAttachment(ctx context.Context, id int64) (*manual.Attachment, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	att, ok := s.attachments[id]
	if !ok {
		return nil, manual.ErrNotFound
	}
	return &att, nil
}

// AddAttachment inserts an attachment. File names are unique per article.
func (s *Store) AddAttachment(ctx context.Context, att manual.Attachment) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.articles[att.ArticleID]; !ok {
		return 0, manual.ErrNotFound
	}
	for _, existing := range s.attachments {
		if existing.ArticleID == att.ArticleID && existing.FileName == att.FileName {
			return 0, manual.ErrAlreadyExists
		}
	}
	att.ID = s.nextAttached
	s.nextAttached++
	att.CreatedAt = s.now()
	s.attachments[att.ID] = att
	return att.ID, nil
}

// DeleteAttachment removes an attachment row.
func (s *Store) DeleteAttachment(ctx context.Context, id int64) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attachments, id)
	return nil
}
