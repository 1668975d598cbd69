package models

import (
	"time"
)

// Post represents a board post. Username and CommentCount are computed by
// joins and never written back.
type Post struct {
	ID           int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID       int64     `gorm:"not null;index;column:user_id" json:"user_id"`
	Username     string    `gorm:"->;-:migration;column:username" json:"username"`
	Title        string    `gorm:"type:varchar(200);not null;column:title" json:"title"`
	Content      string    `gorm:"type:text;not null;column:content" json:"content,omitempty"`
	ViewCount    int64     `gorm:"not null;default:0;column:view_count" json:"view_count"`
	CommentCount int64     `gorm:"->;-:migration;column:comment_count" json:"comment_count"`
	CreatedAt    time.Time `gorm:"not null;index;column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;column:updated_at" json:"updated_at"`

	// Relationships
	Author   *User     `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Comments []Comment `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// PostInput is the body of POST /posts and PUT /posts/:id
type PostInput struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// Pagination describes one page of a listing
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalPosts  int64 `json:"totalPosts"`
	Limit       int   `json:"limit"`
}

// NewPagination computes totalPages as ceil(total/limit)
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		TotalPosts:  total,
		Limit:       limit,
	}
}

// PostList is one page of GET /posts
type PostList struct {
	Posts      []Post     `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

// SearchResult is one page of GET /search
type SearchResult struct {
	Keyword    string     `json:"keyword"`
	Posts      []Post     `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

// PostEnvelope wraps a post returned by a write
type PostEnvelope struct {
	Message string `json:"message"`
	Post    Post   `json:"post"`
}
