package community

import (
	"context"
	"log/slog"
	"time"

	"mindsage/internal/events"
)

// deliveryTimeout bounds how long a moderation action waits for the broker.
const deliveryTimeout = 5 * time.Second

// Service is the community feed's business logic.
type Service interface {
	List(ctx context.Context, tag string) ([]FeedPost, error)
	Create(ctx context.Context, authorID string, req CreatePostRequest) (*Post, error)
	Hide(ctx context.Context, actorID, postID string) (*Post, error)
	Approve(ctx context.Context, actorID, postID string) (*Post, error)
	React(ctx context.Context, userID, postID, reactionType string) (*ReactResponse, error)
}

type service struct {
	repo      *Repository
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService wires the community service. A nil publisher drops moderation events.
func NewService(repo *Repository, publisher events.Publisher, logger *slog.Logger) Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, publisher: publisher, logger: logger}
}

func (s *service) List(ctx context.Context, tag string) ([]FeedPost, error) {
	posts, err := s.repo.ListVisible(ctx, tag, ListLimit)
	if err != nil {
		return nil, err
	}

	feed := make([]FeedPost, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		count, err := s.repo.CountReactions(ctx, p.ID)
		if err != nil {
			return nil, err
		}

		var author *Author
		if !p.IsAnonymous && p.AuthorID != nil {
			author, err = s.repo.Author(ctx, *p.AuthorID)
			if err != nil {
				return nil, err
			}
		}

		feed = append(feed, FeedPost{
			ID:             p.ID,
			Title:          p.Title,
			Content:        p.Content,
			Tag:            p.Tag,
			IsAnonymous:    p.IsAnonymous,
			CreatedAt:      p.CreatedAt,
			Author:         author,
			ReactionsCount: count,
		})
	}
	return feed, nil
}

// Create stores a new post. Moderation flags are never taken from the request: every
// post starts unapproved and unhidden.
func (s *service) Create(ctx context.Context, authorID string, req CreatePostRequest) (*Post, error) {
	if authorID == "" {
		return nil, ErrInvalidInput
	}
	author := authorID
	post, err := s.repo.Create(ctx, Post{
		Title:       req.Title,
		Content:     req.Content,
		Tag:         req.Tag,
		IsAnonymous: req.IsAnonymous,
		AuthorID:    &author,
		IsApproved:  false,
		IsHidden:    false,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewModerationEvent(events.PostCreated, post.ID, authorID, post.Tag), false)
	return post, nil
}

// Hide sets isHidden. It is idempotent and there is no unhide.
func (s *service) Hide(ctx context.Context, actorID, postID string) (*Post, error) {
	post, err := s.repo.Update(ctx, postID, map[string]interface{}{"isHidden": true})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewModerationEvent(events.PostHidden, post.ID, actorID, post.Tag), true)
	return post, nil
}

func (s *service) Approve(ctx context.Context, actorID, postID string) (*Post, error) {
	post, err := s.repo.Update(ctx, postID, map[string]interface{}{"isApproved": true})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewModerationEvent(events.PostApproved, post.ID, actorID, post.Tag), true)
	return post, nil
}

// React returns the caller's existing reaction of this type or creates one. The lookup
// and the insert are not atomic; two concurrent first reactions can both be stored.
func (s *service) React(ctx context.Context, userID, postID, reactionType string) (*ReactResponse, error) {
	post, err := s.repo.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.Visible() {
		return nil, ErrPostNotFound
	}

	var uid *string
	if userID != "" {
		uid = &userID
	}

	reaction, err := s.repo.FindReaction(ctx, postID, uid, reactionType)
	if err != nil {
		return nil, err
	}
	if reaction == nil {
		reaction, err = s.repo.CreateReaction(ctx, Reaction{
			PostID: postID,
			UserID: uid,
			Type:   reactionType,
		})
		if err != nil {
			return nil, err
		}
	}

	count, err := s.repo.CountReactions(ctx, postID)
	if err != nil {
		return nil, err
	}

	return &ReactResponse{
		Reaction: ReactionView{
			ID:        reaction.ID,
			Type:      reaction.Type,
			CreatedAt: reaction.CreatedAt,
		},
		ReactionsCount: count,
	}, nil
}

// publish sends a moderation event. Moderator decisions are confirmed with the broker
// when the publisher supports it; a failure is logged and never fails the request.
func (s *service) publish(ctx context.Context, ev events.ModerationEvent, confirm bool) {
	var err error
	if sp, ok := s.publisher.(events.SyncPublisher); ok && confirm {
		dctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		err = sp.PublishSync(dctx, ev)
		cancel()
	} else {
		err = s.publisher.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish moderation event",
			"type", ev.Type,
			"post_id", ev.PostID,
			"error", err)
	}
}
