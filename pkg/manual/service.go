package manual

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"intranet-portal/pkg/audit"
	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/validation"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes is the attachment size limit when none is configured.
const DefaultMaxUploadBytes = 10 << 20

// AllowedMIMETypes lists the attachment types accepted by AddAttachment.
// Detection is done on the file content, never on the name.
var AllowedMIMETypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"text/plain",
	"text/csv",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.oasis.opendocument.text",
}

// Service implements the knowledge base use cases.
type Service struct {
	store          Store
	files          afero.Fs
	renderer       Renderer
	audit          audit.Logger
	logger         *logging.Logger
	maxUploadBytes int64
}

// Dependencies wires a Service. Store is required.
type Dependencies struct {
	Store Store

	// Files holds attachment bodies (default: in-memory filesystem)
	Files afero.Fs

	// Renderer produces ContentHTML (default: DirectRenderer)
	Renderer Renderer

	Audit  audit.Logger
	Logger *logging.Logger

	// MaxUploadBytes limits attachment size (default: 10 MiB)
	MaxUploadBytes int64
}

// NewService creates a manual service.
func NewService(deps Dependencies) *Service {
	s := &Service{
		store:          deps.Store,
		files:          deps.Files,
		renderer:       deps.Renderer,
		audit:          deps.Audit,
		logger:         deps.Logger,
		maxUploadBytes: deps.MaxUploadBytes,
	}
	if s.files == nil {
		s.files = afero.NewMemMapFs()
	}
	if s.renderer == nil {
		s.renderer = DirectRenderer{}
	}
	if s.audit == nil {
		s.audit = audit.NoOp{}
	}
	if s.logger == nil {
		s.logger = logging.NewNoOpLogger()
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = DefaultMaxUploadBytes
	}
	s.logger = s.logger.Named("manual")
	return s
}

// List returns the articles matching filter without rendered HTML.
func (s *Service) List(ctx context.Context, actor identity.Identity, filter Filter) ([]Article, error) {
	if !actor.Authenticated() {
		return nil, ErrForbidden
	}
	filter = Filter{
		Query:      strings.TrimSpace(filter.Query),
		Category:   strings.TrimSpace(filter.Category),
		Difficulty: strings.ToLower(strings.TrimSpace(filter.Difficulty)),
	}
	articles, err := s.store.FindAll(ctx, filter)
	if err != nil {
		return nil, s.storeError("list articles", err)
	}
	return articles, nil
}

// Get returns an article with ContentHTML rendered from its content.
func (s *Service) Get(ctx context.Context, actor identity.Identity, id int64) (*Article, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	a.ContentHTML = s.renderer.Render(ctx, a.Content)
	return a, nil
}

// Create stores a new article authored by actor.
func (s *Service) Create(ctx context.Context, actor identity.Identity, in Input) (*Article, error) {
	if !actor.Authenticated() {
		return nil, ErrForbidden
	}
	in = in.normalized()
	if err := Validate(in).Err(); err != nil {
		return nil, err
	}

	author := actor.UserID
	id, err := s.store.Create(ctx, Article{
		Title:           in.Title,
		Category:        in.Category,
		Difficulty:      Difficulty(in.Difficulty),
		Content:         in.Content,
		CreatedByUserID: &author,
	})
	if err != nil {
		return nil, s.storeError("create article", err)
	}

	created, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, "manual.create", fmt.Sprintf("Article #%d created", id), id)
	return created, nil
}

// Update replaces the editable fields of an article.
func (s *Service) Update(ctx context.Context, actor identity.Identity, id int64, in Input) (*Article, error) {
	existing, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !CanModify(actor, existing) {
		return nil, ErrForbidden
	}
	in = in.normalized()
	if err := Validate(in).Err(); err != nil {
		return nil, err
	}

	existing.Title = in.Title
	existing.Category = in.Category
	existing.Difficulty = Difficulty(in.Difficulty)
	existing.Content = in.Content
	if err := s.store.Update(ctx, *existing); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storeError("update article", err)
	}

	updated, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, "manual.update", fmt.Sprintf("Article #%d updated", id), id)
	return updated, nil
}

// Delete removes an article together with its attachment files.
func (s *Service) Delete(ctx context.Context, actor identity.Identity, id int64) error {
	existing, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if !CanModify(actor, existing) {
		return ErrForbidden
	}

	attachments, err := s.store.ListAttachments(ctx, id)
	if err != nil {
		return s.storeError("list attachments", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.storeError("delete article", err)
	}
	for _, att := range attachments {
		s.removeFile(att.StoredName)
	}

	s.emit(ctx, actor, "manual.delete", fmt.Sprintf("Article #%d deleted", id), id)
	return nil
}

// Preview renders unsaved markdown.
func (s *Service) Preview(ctx context.Context, actor identity.Identity, content string) (string, error) {
	if !actor.Authenticated() {
		return "", ErrForbidden
	}
	return s.renderer.Render(ctx, content), nil
}

// Categories returns the distinct non-empty categories in use.
func (s *Service) Categories(ctx context.Context, actor identity.Identity) ([]string, error) {
	if !actor.Authenticated() {
		return nil, ErrForbidden
	}
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, s.storeError("list categories", err)
	}
	return categories, nil
}

// Attachments lists the files of an article.
func (s *Service) Attachments(ctx context.Context, actor identity.Identity, articleID int64) ([]Attachment, error) {
	if _, err := s.load(ctx, actor, articleID); err != nil {
		return nil, err
	}
	attachments, err := s.store.ListAttachments(ctx, articleID)
	if err != nil {
		return nil, s.storeError("list attachments", err)
	}
	return attachments, nil
}

// AddAttachment stores body as a new attachment named fileName. The body
// must fit the size limit and sniff as one of AllowedMIMETypes.
func (s *Service) AddAttachment(ctx context.Context, actor identity.Identity, articleID int64, fileName string, body io.Reader) (*Attachment, error) {
	article, err := s.load(ctx, actor, articleID)
	if err != nil {
		return nil, err
	}
	if !CanModify(actor, article) {
		return nil, ErrForbidden
	}

	fileName = strings.TrimSpace(filepath.Base(strings.ReplaceAll(fileName, "\\", "/")))
	errs := validation.FieldErrors{}
	switch {
	case fileName == "" || fileName == "." || fileName == "/":
		errs.Add("file", MsgFileRequired)
	case validation.Length(fileName) > maxFileNameLength:
		errs.Add("file", MsgFileNameTooLong)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(body, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("manual: read upload: %w", err)
	}
	if len(data) == 0 {
		errs.Add("file", MsgFileRequired)
		return nil, errs.Err()
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}

	mtype := mimetype.Detect(data)
	if !allowed(mtype) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	storedName := uuid.NewString() + mtype.Extension()
	if err := afero.WriteFile(s.files, storedName, data, 0o640); err != nil {
		return nil, s.storeError("write attachment", err)
	}

	uploader := actor.UserID
	att := Attachment{
		ArticleID:  articleID,
		FileName:   fileName,
		StoredName: storedName,
		MimeType:   mtype.String(),
		Size:       int64(len(data)),
		UploadedBy: &uploader,
	}
	id, err := s.store.AddAttachment(ctx, att)
	if err != nil {
		s.removeFile(storedName)
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, s.storeError("add attachment", err)
	}

	saved, err := s.store.FindAttachment(ctx, id)
	if err != nil {
		return nil, s.storeError("reload attachment", err)
	}
	s.emit(ctx, actor, "manual.attachment.add",
		fmt.Sprintf("Attachment %q added to article #%d", fileName, articleID), articleID)
	return saved, nil
}

// OpenAttachment returns an attachment and its body. The caller closes the
// reader.
func (s *Service) OpenAttachment(ctx context.Context, actor identity.Identity, articleID, attachmentID int64) (*Attachment, io.ReadCloser, error) {
	if _, err := s.load(ctx, actor, articleID); err != nil {
		return nil, nil, err
	}
	att, err := s.loadAttachment(ctx, articleID, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.files.Open(att.StoredName)
	if err != nil {
		s.logger.Error("attachment file missing",
			zap.Int64("attachment_id", att.ID), zap.String("stored_name", att.StoredName), zap.Error(err))
		return nil, nil, ErrNotFound
	}
	return att, f, nil
}

// DeleteAttachment removes an attachment row and its file.
func (s *Service) DeleteAttachment(ctx context.Context, actor identity.Identity, articleID, attachmentID int64) error {
	article, err := s.load(ctx, actor, articleID)
	if err != nil {
		return err
	}
	if !CanModify(actor, article) {
		return ErrForbidden
	}
	att, err := s.loadAttachment(ctx, articleID, attachmentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAttachment(ctx, att.ID); err != nil {
		return s.storeError("delete attachment", err)
	}
	s.removeFile(att.StoredName)

	s.emit(ctx, actor, "manual.attachment.delete",
		fmt.Sprintf("Attachment %q removed from article #%d", att.FileName, articleID), articleID)
	return nil
}

func (s *Service) load(ctx context.Context, actor identity.Identity, id int64) (*Article, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	if !actor.Authenticated() {
		return nil, ErrForbidden
	}
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storeError("load article", err)
	}
	return a, nil
}

// loadAttachment fetches an attachment and checks it belongs to articleID.
func (s *Service) loadAttachment(ctx context.Context, articleID, attachmentID int64) (*Attachment, error) {
	if attachmentID <= 0 {
		return nil, ErrInvalidID
	}
	att, err := s.store.FindAttachment(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storeError("load attachment", err)
	}
	if att.ArticleID != articleID {
		return nil, ErrNotFound
	}
	return att, nil
}

func (s *Service) removeFile(name string) {
	if err := s.files.Remove(name); err != nil {
		s.logger.Warn("attachment file not removed", zap.String("stored_name", name), zap.Error(err))
	}
}

func (s *Service) storeError(op string, err error) error {
	s.logger.Error("manual store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("manual: %s: %w", op, err)
}

func (s *Service) emit(ctx context.Context, actor identity.Identity, eventType, message string, articleID int64) {
	event := audit.Event{
		Type:     eventType,
		Message:  message,
		ActorID:  actor.UserID,
		Metadata: map[string]interface{}{"article_id": articleID},
	}
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.Warn("audit log failed", zap.String("event", eventType), zap.Error(err))
	}
}

// allowed checks the detected type itself, not its parents: text/html
// descends from text/plain and must stay out.
func allowed(mtype *mimetype.MIME) bool {
	for _, a := range AllowedMIMETypes {
		if mtype.Is(a) {
			return true
		}
	}
	return false
}
