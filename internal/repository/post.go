package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/secissues/secissues-go/internal/model"
)

const postColumns = `id, email, title, description, type, status, created_at, updated_at`

// PostRepository is the data store adapter over the posts table. Update and
// delete always filter on the owner email; a row owned by someone else is
// reported the same as a missing row.
type PostRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostRepository creates a new PostRepository. Each call is bounded by timeout.
func NewPostRepository(db *sql.DB, timeout time.Duration) *PostRepository {
	return &PostRepository{db: db, timeout: timeout}
}

// ListAll returns every post, newest first.
func (r *PostRepository) ListAll(ctx context.Context) ([]model.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`)
}

// ListByOwner returns the posts created by email, newest first.
func (r *PostRepository) ListByOwner(ctx context.Context, email string) ([]model.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts WHERE email = ? ORDER BY created_at DESC, id DESC`, email)
}

// ListByType returns the posts of the given category, newest first.
func (r *PostRepository) ListByType(ctx context.Context, postType model.PostType) ([]model.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts WHERE type = ? ORDER BY created_at DESC, id DESC`, string(postType))
}

// ListPage returns rows start..end inclusive of the newest-first ordering.
func (r *PostRepository) ListPage(ctx context.Context, start, end int) ([]model.Post, error) {
	limit := end - start + 1
	return r.list(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, start)
}

// GetByID retrieves a single post.
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	post := &model.Post{}
	err := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id).Scan(
		&post.ID, &post.Email, &post.Title, &post.Description,
		&post.Type, &post.Status, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, classify(err)
	}

	return post, nil
}

// Insert stores a new post with status open and returns its id.
func (r *PostRepository) Insert(ctx context.Context, post *model.Post) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `INSERT INTO posts (email, title, description, type, status) VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		post.Email, post.Title, post.Description, string(post.Type), string(model.StatusOpen),
	)
	if err != nil {
		return 0, classify(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, classify(err)
	}

	post.ID = id
	post.Status = model.StatusOpen
	return id, nil
}

// UpdateStatus sets the status of post id if it is owned by email.
func (r *PostRepository) UpdateStatus(ctx context.Context, id int64, email string, status model.PostStatus) error {
	return r.execOwned(ctx, `UPDATE posts SET status = ? WHERE id = ? AND email = ?`, string(status), id, email)
}

// Delete removes post id if it is owned by email.
func (r *PostRepository) Delete(ctx context.Context, id int64, email string) error {
	return r.execOwned(ctx, `DELETE FROM posts WHERE id = ? AND email = ?`, id, email)
}

func (r *PostRepository) execOwned(ctx context.Context, query string, args ...any) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if rowsAffected == 0 {
		return ErrPostNotFound
	}

	return nil
}

func (r *PostRepository) list(ctx context.Context, query string, args ...any) ([]model.Post, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(
			&p.ID, &p.Email, &p.Title, &p.Description,
			&p.Type, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, classify(err)
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return posts, nil
}
