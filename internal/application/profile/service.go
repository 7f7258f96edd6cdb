package profile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	repo "github.com/oksasatya/ngo-backoffice/internal/domain/repository"
)

const MinUsernameLen = 3

var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrUsernameTooShort   = errors.New("username must be at least 3 characters")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrProfileExists      = errors.New("principal already has a profile")
	ErrInvalidRole        = errors.New("invalid role")
	ErrIdentityMissing    = errors.New("profile id does not reference an identity")
	ErrUnsupportedImage   = errors.New("unsupported image type")
	ErrStorageUnavailable = errors.New("object storage not configured")
)

// ObjectStore uploads a blob and returns its public URL.
type ObjectStore interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
}

var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type Service struct {
	Repo    repo.ProfileRepository
	Objects ObjectStore // optional
	ES      *elasticsearch.Client
	ESIndex string
	Logger  *logrus.Logger
}

func NewService(r repo.ProfileRepository, objects ObjectStore, es *elasticsearch.Client, esIndex string, logger *logrus.Logger) *Service {
	return &Service{Repo: r, Objects: objects, ES: es, ESIndex: esIndex, Logger: logger}
}

// Insert stores a new account profile keyed by an existing principal id.
func (s *Service) Insert(ctx context.Context, p entity.AccountProfile) (*entity.AccountProfile, error) {
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if len([]rune(p.Username)) < MinUsernameLen {
		return nil, ErrUsernameTooShort
	}
	if p.Role == "" {
		p.Role = entity.RoleAdmin
	}
	if !p.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if err := s.Repo.Create(ctx, &p); err != nil {
		switch {
		case errors.Is(err, repo.ErrAlreadyExists):
			return nil, ErrProfileExists
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrUsernameTaken
		case errors.Is(err, repo.ErrMissingParent):
			return nil, ErrIdentityMissing
		}
		return nil, err
	}
	_ = s.index(ctx, &p)
	return &p, nil
}

// EmailByUsername resolves the email behind a username. Matching is exact.
func (s *Service) EmailByUsername(ctx context.Context, username string) (string, error) {
	email, err := s.Repo.EmailByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrProfileNotFound
		}
		return "", err
	}
	return email, nil
}

func (s *Service) Get(ctx context.Context, id string) (*entity.AccountProfile, error) {
	p, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

// List pages through profiles, newest first. Limit defaults to 20 and is capped at 100.
func (s *Service) List(ctx context.Context, f entity.ProfileFilter) ([]*entity.AccountProfile, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, 0, ErrInvalidRole
	}
	return s.Repo.List(ctx, f)
}

// UploadAvatar stores the image and points the profile at it.
func (s *Service) UploadAvatar(ctx context.Context, id string, r io.Reader, contentType string) (string, error) {
	if s.Objects == nil {
		return "", ErrStorageUnavailable
	}
	ext, ok := avatarTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedImage
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	objectPath := path.Join("avatars", id, uuid.NewString()+ext)
	url, err := s.Objects.Upload(ctx, objectPath, contentType, r)
	if err != nil {
		return "", err
	}
	if err := s.Repo.UpdateAvatar(ctx, id, url); err != nil {
		return "", err
	}
	p.AvatarURL = url
	_ = s.index(ctx, p)
	return url, nil
}

func (s *Service) index(ctx context.Context, p *entity.AccountProfile) error {
	if s.ES == nil || s.ESIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":         p.ID,
		"email":      p.Email,
		"username":   p.Username,
		"full_name":  p.FullName,
		"role":       string(p.Role),
		"avatar_url": p.AvatarURL,
		"created_at": p.CreatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESIndex, DocumentID: p.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("profile_id", p.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("profile_id", p.ID).Warn("es index response error")
	}
	return nil
}

// Search runs a multi_match over username, email and full name. Without a
// search backend it returns an empty result.
func (s *Service) Search(ctx context.Context, q string, size int) ([]*entity.AccountProfile, error) {
	if s.ES == nil || s.ESIndex == "" || strings.TrimSpace(q) == "" {
		return []*entity.AccountProfile{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"username^3", "email^2", "full_name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, errors.New("search failed: " + res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source struct {
					ID        string    `json:"id"`
					Email     string    `json:"email"`
					Username  string    `json:"username"`
					FullName  string    `json:"full_name"`
					Role      string    `json:"role"`
					AvatarURL string    `json:"avatar_url"`
					CreatedAt time.Time `json:"created_at"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]*entity.AccountProfile, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		src := h.Source
		out = append(out, &entity.AccountProfile{
			ID:        src.ID,
			Email:     src.Email,
			Username:  src.Username,
			FullName:  src.FullName,
			Role:      entity.Role(src.Role),
			AvatarURL: src.AvatarURL,
			CreatedAt: src.CreatedAt,
		})
	}
	return out, nil
}
