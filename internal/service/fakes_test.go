package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/secissues/secissues-go/internal/model"
	"github.com/secissues/secissues-go/internal/repository"
)

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]model.User
	nextID  int64
	err     error
	updates int
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]model.User{}}
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.byEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	m.byEmail[user.Email] = *user
	return nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, email, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	u, ok := m.byEmail[email]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	m.byEmail[email] = u
	m.updates++
	return nil
}

func (m *memUsers) hash(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byEmail[email].PasswordHash
}

func (m *memUsers) remove(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byEmail, email)
}

type memPosts struct {
	mu     sync.Mutex
	rows   map[int64]model.Post
	nextID int64
	err    error
}

func newMemPosts() *memPosts {
	return &memPosts{rows: map[int64]model.Post{}}
}

func (m *memPosts) filter(keep func(model.Post) bool) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []model.Post{}
	for _, p := range m.rows {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memPosts) ListAll(context.Context) ([]model.Post, error) {
	return m.filter(func(model.Post) bool { return true })
}

func (m *memPosts) ListByOwner(_ context.Context, email string) ([]model.Post, error) {
	return m.filter(func(p model.Post) bool { return p.Email == email })
}

func (m *memPosts) ListByType(_ context.Context, t model.PostType) ([]model.Post, error) {
	return m.filter(func(p model.Post) bool { return p.Type == t })
}

func (m *memPosts) ListPage(ctx context.Context, start, end int) ([]model.Post, error) {
	all, err := m.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if start >= len(all) {
		return []model.Post{}, nil
	}
	if end >= len(all) {
		end = len(all) - 1
	}
	return all[start : end+1], nil
}

func (m *memPosts) GetByID(_ context.Context, id int64) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	return &p, nil
}

func (m *memPosts) Insert(_ context.Context, post *model.Post) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.nextID++
	post.ID = m.nextID
	post.Status = model.StatusOpen
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	m.rows[post.ID] = *post
	return post.ID, nil
}

func (m *memPosts) UpdateStatus(_ context.Context, id int64, email string, status model.PostStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	p, ok := m.rows[id]
	if !ok || p.Email != email {
		return repository.ErrPostNotFound
	}
	p.Status = status
	m.rows[id] = p
	return nil
}

func (m *memPosts) Delete(_ context.Context, id int64, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	p, ok := m.rows[id]
	if !ok || p.Email != email {
		return repository.ErrPostNotFound
	}
	delete(m.rows, id)
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	posts []model.Post
	err   error
}

func (n *recordingNotifier) IssueCreated(_ context.Context, post model.Post) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.posts = append(n.posts, post)
	return n.err
}
