package model

import "time"

// PostType is the category of a security issue.
type PostType string

const (
	TypeCloudSecurity    PostType = "Cloud Security"
	TypeVAPT             PostType = "VAPT"
	TypeReteamAssessment PostType = "Reteam Assessment"
)

// Valid reports whether t is one of the known issue categories.
func (t PostType) Valid() bool {
	switch t {
	case TypeCloudSecurity, TypeVAPT, TypeReteamAssessment:
		return true
	}
	return false
}

// PostStatus is the lifecycle state of a security issue.
type PostStatus string

const (
	StatusOpen       PostStatus = "open"
	StatusInProgress PostStatus = "in-progress"
	StatusResolved   PostStatus = "resolved"
)

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Post represents a security issue in the posts table.
type Post struct {
	ID          int64
	Email       string
	Title       string
	Description string
	Type        PostType
	Status      PostStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreatePostRequest represents a new issue submitted by its owner.
type CreatePostRequest struct {
	Email       string   `json:"email"`
	Title       string   `json:"title"`
	Description string   `json:"desc"`
	Type        PostType `json:"type"`
}

// UpdateStatusRequest represents a status change on an existing issue.
type UpdateStatusRequest struct {
	Email  string     `json:"email"`
	Status PostStatus `json:"status"`
}

// DeletePostRequest carries the owner email confirming a delete.
type DeletePostRequest struct {
	Email string `json:"email"`
}

// PostResponse represents an issue in API responses.
type PostResponse struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        PostType   `json:"type"`
	Status      PostStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ListResponse wraps a list of issues.
type ListResponse struct {
	Posts []PostResponse `json:"posts"`
}

// CreatePostResponse returns the server-assigned id of a new issue.
type CreatePostResponse struct {
	ID int64 `json:"id"`
}
