package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"intranet-portal/pkg/manual"
)

const articleColumns = `id, title, category, difficulty, content, created_by_user_id, created_at, updated_at`

const attachmentColumns = `id, article_id, file_name, stored_name, mime_type, size, uploaded_by, created_at`

// ArticleStore implements manual.Store.
type ArticleStore struct {
	db *sql.DB
}

// NewArticleStore creates an article store on db.
func NewArticleStore(db *sql.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// FindAll returns the articles matching filter ordered by title.
func (s *ArticleStore) FindAll(ctx context.Context, filter manual.Filter) ([]manual.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE ($1 = '' OR title ILIKE $2 OR content ILIKE $2)
		  AND ($3 = '' OR category = $3)
		  AND ($4 = '' OR difficulty = $4)
		ORDER BY lower(title), id
	`
	rows, err := s.db.QueryContext(ctx, query,
		filter.Query, likePattern(filter.Query), filter.Category, filter.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	out := []manual.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// FindByID returns an article or manual.ErrNotFound.
func (s *ArticleStore) FindByID(ctx context.Context, id int64) (*manual.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, manual.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query article: %w", err)
	}
	return a, nil
}

// Create inserts an article.
func (s *ArticleStore) Create(ctx context.Context, a manual.Article) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO articles (title, category, difficulty, content, created_by_user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		a.Title, a.Category, string(a.Difficulty), a.Content, nullInt64(a.CreatedByUserID),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return id, nil
}

// Update writes the editable fields and bumps updated_at.
func (s *ArticleStore) Update(ctx context.Context, a manual.Article) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET title = $2, category = $3, difficulty = $4, content = $5, updated_at = now()
		WHERE id = $1`,
		a.ID, a.Title, a.Category, string(a.Difficulty), a.Content,
	)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	return expectRow(res, manual.ErrNotFound)
}

// Delete removes an article; attachments cascade.
func (s *ArticleStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return nil
}

// Categories returns the distinct non-empty categories.
func (s *ArticleStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM articles WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListAttachments returns the attachments of an article in id order.
func (s *ArticleStore) ListAttachments(ctx context.Context, articleID int64) ([]manual.Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM article_attachments WHERE article_id = $1 ORDER BY id`, articleID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	out := []manual.Attachment{}
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, *att)
	}
	return out, rows.Err()
}

// FindAttachment returns an attachment or manual.ErrNotFound.
func (s *ArticleStore) FindAttachment(ctx context.Context, id int64) (*manual.Attachment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM article_attachments WHERE id = $1`, id)
	att, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, manual.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query attachment: %w", err)
	}
	return att, nil
}

// AddAttachment inserts an attachment row. A duplicate file name on the
// same article comes back as manual.ErrAlreadyExists.
func (s *ArticleStore) AddAttachment(ctx context.Context, att manual.Attachment) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO article_attachments (article_id, file_name, stored_name, mime_type, size, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		att.ArticleID, att.FileName, att.StoredName, att.MimeType, att.Size, nullInt64(att.UploadedBy),
	).Scan(&id)
	if isUniqueViolation(err, "article_attachments_article_file_key") {
		return 0, manual.ErrAlreadyExists
	}
	if err != nil {
		return 0, fmt.Errorf("insert attachment: %w", err)
	}
	return id, nil
}

// DeleteAttachment removes an attachment row.
func (s *ArticleStore) DeleteAttachment(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM article_attachments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}

func scanArticle(row scanner) (*manual.Article, error) {
	var (
		a          manual.Article
		difficulty string
		createdBy  sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.Title, &a.Category, &difficulty, &a.Content,
		&createdBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Difficulty = manual.Difficulty(difficulty)
	a.CreatedByUserID = int64Ptr(createdBy)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func scanAttachment(row scanner) (*manual.Attachment, error) {
	var (
		att        manual.Attachment
		uploadedBy sql.NullInt64
	)
	err := row.Scan(&att.ID, &att.ArticleID, &att.FileName, &att.StoredName,
		&att.MimeType, &att.Size, &uploadedBy, &att.CreatedAt)
	if err != nil {
		return nil, err
	}
	att.UploadedBy = int64Ptr(uploadedBy)
	att.CreatedAt = att.CreatedAt.UTC()
	return &att, nil
}
