package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/secissues/secissues-go/internal/metrics"
	"github.com/secissues/secissues-go/internal/model"
	"github.com/secissues/secissues-go/internal/repository"
)

const (
	// MaxPageSize caps start..end ranges.
	MaxPageSize = 100

	// MaxTitleLength matches the posts.title column width, in characters.
	MaxTitleLength = 255

	notifyTimeout = 10 * time.Second
)

// PostStore is the data store the PostService depends on. UpdateStatus and
// Delete must only touch rows whose email matches.
type PostStore interface {
	ListAll(ctx context.Context) ([]model.Post, error)
	ListByOwner(ctx context.Context, email string) ([]model.Post, error)
	ListByType(ctx context.Context, postType model.PostType) ([]model.Post, error)
	ListPage(ctx context.Context, start, end int) ([]model.Post, error)
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	Insert(ctx context.Context, post *model.Post) (int64, error)
	UpdateStatus(ctx context.Context, id int64, email string, status model.PostStatus) error
	Delete(ctx context.Context, id int64, email string) error
}

// Notifier delivers issue notifications. Delivery is best effort.
type Notifier interface {
	IssueCreated(ctx context.Context, post model.Post) error
}

// ListFilter selects which posts List returns. When both Start and End are
// set the page wins, then Email, then Type; an empty filter lists everything.
type ListFilter struct {
	Email string
	Type  model.PostType
	Start *int
	End   *int
}

// PostService handles security issue business logic.
type PostService struct {
	posts    PostStore
	notifier Notifier
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewPostService creates a new PostService. notifier may be nil.
func NewPostService(posts PostStore, notifier Notifier, logger *slog.Logger) *PostService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{posts: posts, notifier: notifier, logger: logger}
}

// List returns the posts matching f, newest first.
func (s *PostService) List(ctx context.Context, f ListFilter) ([]model.PostResponse, error) {
	var (
		posts []model.Post
		err   error
	)

	switch {
	case f.Start != nil && f.End != nil:
		if err := checkRange(*f.Start, *f.End); err != nil {
			return nil, err
		}
		posts, err = s.posts.ListPage(ctx, *f.Start, *f.End)
	case f.Email != "":
		posts, err = s.posts.ListByOwner(ctx, normalizeEmail(f.Email))
	case f.Type != "":
		if !f.Type.Valid() {
			return nil, ErrInvalidType
		}
		posts, err = s.posts.ListByType(ctx, f.Type)
	default:
		posts, err = s.posts.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	return postsToResponse(posts, true), nil
}

// ListPublic returns a page of posts with owner emails removed.
func (s *PostService) ListPublic(ctx context.Context, start, end int) ([]model.PostResponse, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}

	posts, err := s.posts.ListPage(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	return postsToResponse(posts, false), nil
}

// Get returns a single post.
func (s *PostService) Get(ctx context.Context, id int64) (model.PostResponse, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return model.PostResponse{}, ErrPostNotFound
		}
		return model.PostResponse{}, fmt.Errorf("get post: %w", err)
	}
	return postToResponse(*post, true), nil
}

// Create stores a new issue for owner and schedules the creation notice.
func (s *PostService) Create(ctx context.Context, owner model.User, req model.CreatePostRequest) (model.CreatePostResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	switch {
	case req.Email == "":
		return model.CreatePostResponse{}, ErrEmailRequired
	case req.Title == "":
		return model.CreatePostResponse{}, ErrTitleRequired
	case utf8.RuneCountInString(req.Title) > MaxTitleLength:
		return model.CreatePostResponse{}, ErrTitleTooLong
	case req.Description == "":
		return model.CreatePostResponse{}, ErrDescriptionRequired
	case !req.Type.Valid():
		return model.CreatePostResponse{}, ErrInvalidType
	}
	if req.Email != owner.Email {
		return model.CreatePostResponse{}, ErrForbidden
	}

	post := model.Post{
		Email:       req.Email,
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
	}

	id, err := s.posts.Insert(ctx, &post)
	if err != nil {
		return model.CreatePostResponse{}, fmt.Errorf("insert post: %w", err)
	}
	post.ID = id

	s.notifyCreated(post)

	return model.CreatePostResponse{ID: id}, nil
}

// UpdateStatus changes the status of post id. The body email must match the
// authenticated owner, and the store only updates rows it owns.
func (s *PostService) UpdateStatus(ctx context.Context, owner model.User, id int64, req model.UpdateStatusRequest) error {
	req.Email = normalizeEmail(req.Email)

	if req.Email == "" {
		return ErrEmailRequired
	}
	if !req.Status.Valid() {
		return ErrInvalidStatus
	}
	if req.Email != owner.Email {
		return ErrForbidden
	}

	if err := s.posts.UpdateStatus(ctx, id, owner.Email, req.Status); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("update status: %w", err)
	}

	return nil
}

// Delete removes post id if owner created it.
func (s *PostService) Delete(ctx context.Context, owner model.User, id int64, req model.DeletePostRequest) error {
	req.Email = normalizeEmail(req.Email)

	if req.Email == "" {
		return ErrEmailRequired
	}
	if req.Email != owner.Email {
		return ErrForbidden
	}

	if err := s.posts.Delete(ctx, id, owner.Email); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}

	return nil
}

// Wait blocks until in-flight notifications have finished.
func (s *PostService) Wait() {
	s.wg.Wait()
}

func (s *PostService) notifyCreated(post model.Post) {
	if s.notifier == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.IssueCreated(ctx, post); err != nil {
			metrics.NotificationsFailed.Inc()
			s.logger.Warn("issue notification failed", slog.Int64("post_id", post.ID), slog.Any("error", err))
		}
	}()
}

func checkRange(start, end int) error {
	if start < 0 || end < start || end-start >= MaxPageSize {
		return ErrInvalidRange
	}
	return nil
}

func postsToResponse(posts []model.Post, withOwner bool) []model.PostResponse {
	result := make([]model.PostResponse, len(posts))
	for i, p := range posts {
		result[i] = postToResponse(p, withOwner)
	}
	return result
}

func postToResponse(p model.Post, withOwner bool) model.PostResponse {
	resp := model.PostResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Type:        p.Type,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if withOwner {
		resp.Email = p.Email
	}
	return resp
}
