package models

import (
	"time"
)

// Comment represents a reply to a post
type Comment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	PostID    int64     `gorm:"not null;index;column:post_id" json:"post_id"`
	UserID    int64     `gorm:"not null;column:user_id" json:"user_id"`
	Username  string    `gorm:"->;-:migration;column:username" json:"username,omitempty"`
	Content   string    `gorm:"type:varchar(1000);not null;column:content" json:"content"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" json:"updated_at"`

	Author *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}

// CommentInput is the body of POST /comments
type CommentInput struct {
	PostID  int64  `json:"postId" binding:"required,gt=0"`
	Content string `json:"content" binding:"required"`
}

// CommentUpdate is the body of PUT /comments/:id
type CommentUpdate struct {
	Content string `json:"content" binding:"required"`
}

// CommentList is returned by GET /comments/post/:postId
type CommentList struct {
	Comments []Comment `json:"comments"`
}

// CommentEnvelope wraps a comment returned by a write
type CommentEnvelope struct {
	Message string  `json:"message"`
	Comment Comment `json:"comment"`
}
