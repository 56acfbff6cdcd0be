package manual

import "context"

// Store is the persistence boundary of the knowledge base. Lookups return
// ErrNotFound for missing rows; AddAttachment returns ErrAlreadyExists for a
// duplicate file name on the same article.
type Store interface {
	FindAll(ctx context.Context, filter Filter) ([]Article, error)
	FindByID(ctx context.Context, id int64) (*Article, error)
	Create(ctx context.Context, a Article) (int64, error)
	Update(ctx context.Context, a Article) error
	Delete(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]string, error)

	ListAttachments(ctx context.Context, articleID int64) ([]Attachment, error)
	FindAttachment(ctx context.Context, id int64) (*Attachment, error)
	AddAttachment(ctx context.Context, a Attachment) (int64, error)
	DeleteAttachment(ctx context.Context, id int64) error
}
