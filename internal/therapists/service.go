package therapists

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mindsage/internal/storage"
)

// Cache is the subset of *cache.Cache the directory needs.
type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) bool
	Set(ctx context.Context, key string, v interface{}, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// Service is the therapist directory's business logic.
type Service interface {
	List(ctx context.Context) ([]Profile, error)
	Get(ctx context.Context, id string) (*Profile, error)
	Create(ctx context.Context, req CreateTherapistRequest) (*Therapist, error)
	Update(ctx context.Context, id string, req UpdateTherapistRequest) (*Therapist, error)
	ImageUploadURL(ctx context.Context, id string, req ImageUploadRequest) (*ImageUploadResponse, error)
}

type service struct {
	repo    *Repository
	cache   Cache
	storage storage.Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the directory. cache and objects may be nil: caching and image
// uploads are then disabled.
func NewService(repo *Repository, cache Cache, objects storage.Service, logger *slog.Logger) Service {
	if cache == nil {
		cache = noCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, cache: cache, storage: objects, logger: logger, now: time.Now}
}

func (s *service) List(ctx context.Context) ([]Profile, error) {
	var cached []Profile
	if s.cache.Get(ctx, listCacheKey, &cached) {
		return cached, nil
	}

	therapists, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(therapists))
	for i := range therapists {
		out = append(out, therapists[i].Profile())
	}

	s.cache.Set(ctx, listCacheKey, out, listCacheTTL)
	return out, nil
}

// Get returns an active therapist. Inactive entries are reported as not found.
func (s *service) Get(ctx context.Context, id string) (*Profile, error) {
	var cached Profile
	if s.cache.Get(ctx, itemCacheKey(id), &cached) {
		return &cached, nil
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, ErrTherapistNotFound
	}

	p := t.Profile()
	s.cache.Set(ctx, itemCacheKey(id), p, itemCacheTTL)
	return &p, nil
}

func (s *service) Create(ctx context.Context, req CreateTherapistRequest) (*Therapist, error) {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	t, err := s.repo.Create(ctx, Therapist{
		Name:         req.Name,
		Bio:          req.Bio,
		Credentials:  req.Credentials,
		Specialties:  req.Specialties,
		Approach:     req.Approach,
		Languages:    req.Languages,
		ProfileImage: req.ProfileImage,
		IsActive:     active,
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(ctx, listCacheKey)
	s.logger.InfoContext(ctx, "therapist created", "therapist_id", t.ID, "active", t.IsActive)
	return t, nil
}

func (s *service) Update(ctx context.Context, id string, req UpdateTherapistRequest) (*Therapist, error) {
	fields := req.Fields()

	var (
		t   *Therapist
		err error
	)
	if len(fields) == 0 {
		t, err = s.repo.Get(ctx, id)
	} else {
		t, err = s.repo.Update(ctx, id, fields)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Delete(ctx, listCacheKey, itemCacheKey(id))
	return t, nil
}

// ImageUploadURL presigns a profile image upload for an existing therapist. The caller
// PUTs the image to UploadURL and then patches profileImage.
func (s *service) ImageUploadURL(ctx context.Context, id string, req ImageUploadRequest) (*ImageUploadResponse, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("therapists/%s/%s%s", id, uuid.NewString(), extension(req.ContentType))
	url, err := s.storage.PresignUpload(ctx, key, req.ContentType, uploadURLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign profile image: %w", err)
	}

	return &ImageUploadResponse{
		UploadURL:    url,
		Key:          key,
		ProfileImage: s.storage.ObjectURL(key),
		ExpiresAt:    s.now().Add(uploadURLTTL).UTC(),
	}, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	default:
		return "." + strings.TrimPrefix(contentType, "image/")
	}
}

type noCache struct{}

func (noCache) Get(context.Context, string, interface{}) bool          { return false }
func (noCache) Set(context.Context, string, interface{}, time.Duration) {}
func (noCache) Delete(context.Context, ...string)                       {}
