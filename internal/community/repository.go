package community

import (
	"context"
	"errors"
	"fmt"

	"mindsage/internal/docstore"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Repository maps posts and reactions onto the document store.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// ListVisible returns approved, unhidden posts newest first, optionally for one tag.
func (r *Repository) ListVisible(ctx context.Context, tag string, limit int) ([]Post, error) {
	where := []docstore.Filter{
		docstore.Eq("isApproved", true),
		docstore.Eq("isHidden", false),
	}
	if tag != "" {
		where = append(where, docstore.Eq("tag", tag))
	}

	docs, err := r.store.Find(ctx, docstore.Query{
		Collection: postsCollection,
		Where:      where,
		OrderBy:    docstore.OrderByCreated,
		Desc:       true,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	posts := make([]Post, 0, len(docs))
	for i := range docs {
		var p Post
		if err := docs[i].Decode(&p); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Post, error) {
	doc, err := r.store.Get(ctx, postsCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return decodePost(doc)
}

func (r *Repository) Create(ctx context.Context, p Post) (*Post, error) {
	doc, err := r.store.Add(ctx, postsCollection, p)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return decodePost(doc)
}

// Update merges fields into a post.
func (r *Repository) Update(ctx context.Context, id string, fields map[string]interface{}) (*Post, error) {
	doc, err := r.store.Update(ctx, postsCollection, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return decodePost(doc)
}

// Author resolves the public attribution for a user id. It returns nil when the user
// has no profile document.
func (r *Repository) Author(ctx context.Context, uid string) (*Author, error) {
	doc, err := r.store.Get(ctx, usersCollection, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}
	a := &Author{ID: doc.ID}
	if name, ok := doc.Data["name"].(string); ok && name != "" {
		a.Name = &name
	}
	return a, nil
}

func (r *Repository) CountReactions(ctx context.Context, postID string) (int, error) {
	n, err := r.store.Count(ctx, reactionsCollection, docstore.Eq("postId", postID))
	if err != nil {
		return 0, fmt.Errorf("count reactions: %w", err)
	}
	return n, nil
}

// FindReaction returns the reaction of the given type by userID (nil for anonymous) on
// postID, or nil when there is none.
func (r *Repository) FindReaction(ctx context.Context, postID string, userID *string, reactionType string) (*Reaction, error) {
	var uid interface{}
	if userID != nil {
		uid = *userID
	}
	docs, err := r.store.Find(ctx, docstore.Query{
		Collection: reactionsCollection,
		Where: []docstore.Filter{
			docstore.Eq("postId", postID),
			docstore.Eq("type", reactionType),
			docstore.Eq("userId", uid),
		},
		OrderBy: docstore.OrderByCreated,
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("find reaction: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	var reaction Reaction
	if err := docs[0].Decode(&reaction); err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (r *Repository) CreateReaction(ctx context.Context, reaction Reaction) (*Reaction, error) {
	doc, err := r.store.Add(ctx, reactionsCollection, reaction)
	if err != nil {
		return nil, fmt.Errorf("create reaction: %w", err)
	}
	var out Reaction
	if err := doc.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func decodePost(doc *docstore.Document) (*Post, error) {
	var p Post
	if err := doc.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
