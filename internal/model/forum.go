package model

type ForumComment struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	CreatedAt  string `json:"createdAt"`
}

type ForumPost struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	ImageURL    *string        `json:"imageUrl"`
	Images      []string       `json:"images,omitempty"`
	Attachments []string       `json:"attachments,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	AuthorID    string         `json:"authorId"`
	AuthorName  string         `json:"authorName"`
	CreatedAt   string         `json:"createdAt"`
	UpdatedAt   *string        `json:"updatedAt,omitempty"`
	Views       *int           `json:"views,omitempty"`
	Comments    []ForumComment `json:"comments"`
}

type CreatePostRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	ImageURL    *string  `json:"imageUrl"`
	Images      []string `json:"images,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}

type UpdatePostRequest struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
}
