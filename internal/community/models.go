package community

import "time"

const (
	postsCollection     = "communityPosts"
	reactionsCollection = "reactions"
	usersCollection     = "users"

	// ListLimit caps the community feed.
	ListLimit = 50

	ReactionResonated = "resonated"
)

// Post is a stored community post.
type Post struct {
	ID          string    `json:"id"`
	Title       *string   `json:"title"`
	Content     string    `json:"content"`
	Tag         string    `json:"tag"`
	IsAnonymous bool      `json:"isAnonymous"`
	AuthorID    *string   `json:"authorId"`
	IsApproved  bool      `json:"isApproved"`
	IsHidden    bool      `json:"isHidden"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Visible is the moderation predicate applied to listings and reactions.
func (p *Post) Visible() bool {
	return p.IsApproved && !p.IsHidden
}

// Reaction is one user's reaction to a post.
type Reaction struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    *string   `json:"userId"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// Author is the public attribution of a non-anonymous post.
type Author struct {
	ID   string  `json:"id"`
	Name *string `json:"name"`
}

// FeedPost is a post as shown in the community feed.
type FeedPost struct {
	ID             string    `json:"id"`
	Title          *string   `json:"title"`
	Content        string    `json:"content"`
	Tag            string    `json:"tag"`
	IsAnonymous    bool      `json:"isAnonymous"`
	CreatedAt      time.Time `json:"createdAt"`
	Author         *Author   `json:"author"`
	ReactionsCount int       `json:"reactionsCount"`
}

// PostView is a post as returned to its author or a moderator.
type PostView struct {
	ID          string    `json:"id"`
	Title       *string   `json:"title"`
	Content     string    `json:"content"`
	Tag         string    `json:"tag"`
	IsAnonymous bool      `json:"isAnonymous"`
	IsApproved  bool      `json:"isApproved"`
	IsHidden    bool      `json:"isHidden"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p *Post) View() PostView {
	return PostView{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		Tag:         p.Tag,
		IsAnonymous: p.IsAnonymous,
		IsApproved:  p.IsApproved,
		IsHidden:    p.IsHidden,
		CreatedAt:   p.CreatedAt,
	}
}

// CreatePostRequest is the body of POST /api/community.
type CreatePostRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=200"`
	Content     string  `json:"content" binding:"required,min=10,max=5000"`
	Tag         string  `json:"tag" binding:"required,min=1,max=50"`
	IsAnonymous bool    `json:"isAnonymous"`
}

// ReactRequest is the body of POST /api/community/:id/react.
type ReactRequest struct {
	Type string `json:"type" binding:"required,oneof=resonated"`
}

// ReactionView is the reaction part of a react response.
type ReactionView struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReactResponse is returned by POST /api/community/:id/react.
type ReactResponse struct {
	Reaction       ReactionView `json:"reaction"`
	ReactionsCount int          `json:"reactionsCount"`
}
