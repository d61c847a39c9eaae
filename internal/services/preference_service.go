package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
	"github.com/eva-commerce/giftwrap/internal/repositories"
)

// ErrPreferenceInvalidInput indicates the caller supplied invalid input.
var ErrPreferenceInvalidInput = errors.New("preference service: invalid input")

// ErrPreferenceUnavailable indicates the session store cannot be reached.
var ErrPreferenceUnavailable = errors.New("preference service: unavailable")

var errPreferenceRepositoryRequired = errors.New("preference service: repository is required")

// PreferenceServiceDeps wires the session store for preference operations.
type PreferenceServiceDeps struct {
	Repository  repositories.SessionRepository
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type preferenceService struct {
	repo   repositories.SessionRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
	newID  func() string
}

var _ PreferenceService = (*preferenceService)(nil)

// NewPreferenceService constructs a PreferenceService enforcing dependency validation.
func NewPreferenceService(deps PreferenceServiceDeps) (PreferenceService, error) {
	if deps.Repository == nil {
		return nil, errPreferenceRepositoryRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &preferenceService{
		repo:   deps.Repository,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
		newID:  idGen,
	}, nil
}

// Read returns the stored preference for the session. A session with no
// stored record reads as false so callers never branch on persistence state.
func (s *preferenceService) Read(ctx context.Context, sessionID string) (bool, error) {
	if s == nil || s.repo == nil {
		return false, ErrPreferenceUnavailable
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false, nil
	}

	record, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if isRepoNotFound(err) {
			return false, nil
		}
		if isRepoUnavailable(err) {
			return false, ErrPreferenceUnavailable
		}
		return false, err
	}
	return record.GiftWrap, nil
}

// Write stores the preference for the session.
func (s *preferenceService) Write(ctx context.Context, sessionID string, value bool) error {
	if s == nil || s.repo == nil {
		return ErrPreferenceUnavailable
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrPreferenceInvalidInput
	}

	now := s.now()
	record := domain.SessionRecord{
		ID:        sessionID,
		GiftWrap:  value,
		UpdatedAt: now,
	}
	if existing, err := s.repo.Get(ctx, sessionID); err == nil {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}

	if err := s.repo.Put(ctx, record); err != nil {
		if isRepoUnavailable(err) {
			return ErrPreferenceUnavailable
		}
		return err
	}
	return nil
}

// EnsureSession returns sessionID unchanged when non-empty, otherwise a fresh identifier.
func (s *preferenceService) EnsureSession(sessionID string) string {
	if trimmed := strings.TrimSpace(sessionID); trimmed != "" {
		return trimmed
	}
	return s.newID()
}
