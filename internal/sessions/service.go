package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"certiresume-backend/internal/certificates"
	"certiresume-backend/internal/shared/metrics"
	"certiresume-backend/internal/shared/storage/object"
	"certiresume-backend/internal/shared/telemetry"
	"certiresume-backend/resume/assemble"
	"certiresume-backend/resume/model"
	"certiresume-backend/resume/render"
)

// Dispatcher hands accepted entries to whichever extraction backend is
// configured: the in-process pool or a queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, entry certificates.Entry, data []byte) error
	Cancel(ctx context.Context, entryID string) error
}

// Service owns session lifecycle and draft mutation. Assembly runs and user
// edits for the same session are serialized through a per-session lock.
type Service struct {
	repo     Repo
	registry *certificates.Registry
	renderer *render.Renderer
	store    object.ObjectStore
	ttl      time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(repo Repo, registry *certificates.Registry, renderer *render.Renderer, store object.ObjectStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		repo:     repo,
		registry: registry,
		renderer: renderer,
		store:    store,
		ttl:      ttl,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Create allocates a session for the user with the configured TTL.
func (s *Service) Create(ctx context.Context, userID string) (Session, error) {
	now := time.Now().UTC()
	session := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	created, err := s.repo.Create(ctx, session)
	if err != nil {
		return Session{}, err
	}
	telemetry.Info("session.created", map[string]any{
		"session_id": created.ID,
		"user_id":    userID,
		"expires_at": created.ExpiresAt.Format(time.RFC3339),
	})
	return created, nil
}

// GetOwned returns the session when it belongs to userID and has not
// expired. Expired sessions are removed on access.
func (s *Service) GetOwned(ctx context.Context, userID, sessionID string) (Session, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.UserID != userID {
		return Session{}, ErrNotFound
	}
	if session.Expired(time.Now().UTC()) {
		s.cleanup(ctx, session.ID)
		return Session{}, ErrNotFound
	}
	return session, nil
}

// Entries lists the session's certificate entries in upload order.
func (s *Service) Entries(ctx context.Context, userID, sessionID string) ([]certificates.Entry, error) {
	if _, err := s.GetOwned(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.registry.ListBySession(ctx, sessionID)
}

// Assemble merges all completed entries into the session draft.
func (s *Service) Assemble(ctx context.Context, userID, sessionID string) (model.Draft, error) {
	session, err := s.GetOwned(ctx, userID, sessionID)
	if err != nil {
		return model.Draft{}, err
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	entries, err := s.registry.ListBySession(ctx, sessionID)
	if err != nil {
		return model.Draft{}, err
	}
	var records []assemble.Record
	for _, entry := range entries {
		if entry.Status == certificates.StatusCompleted && entry.Extracted != nil {
			records = append(records, assemble.Record{Position: entry.Position, Fields: *entry.Extracted})
		}
	}

	prev := model.Draft{}
	if current, err := s.repo.GetByID(ctx, sessionID); err == nil && current.Draft != nil {
		prev = *current.Draft
	}
	draft := assemble.Assemble(prev, records)
	if err := s.repo.SaveDraft(ctx, sessionID, &draft); err != nil {
		return model.Draft{}, err
	}
	metrics.IncAssemblyRuns()
	telemetry.Info("session.assembled", map[string]any{
		"session_id": session.ID,
		"records":    len(records),
	})
	return draft, nil
}

// ApplyEdits applies a partial draft update from the user.
func (s *Service) ApplyEdits(ctx context.Context, userID, sessionID string, edits assemble.Edits) (model.Draft, error) {
	if _, err := s.GetOwned(ctx, userID, sessionID); err != nil {
		return model.Draft{}, err
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	draft := model.Draft{}
	if current, err := s.repo.GetByID(ctx, sessionID); err == nil && current.Draft != nil {
		draft = *current.Draft
	}
	assemble.ApplyEdits(&draft, edits)
	if err := s.repo.SaveDraft(ctx, sessionID, &draft); err != nil {
		return model.Draft{}, err
	}
	return draft, nil
}

// Render produces the document for the session draft. An empty templateID
// falls back to the draft's selected template.
func (s *Service) Render(ctx context.Context, userID, sessionID, templateID string) (render.Document, error) {
	session, err := s.GetOwned(ctx, userID, sessionID)
	if err != nil {
		return render.Document{}, err
	}
	draft := model.Draft{}
	if session.Draft != nil {
		draft = *session.Draft
	}
	if templateID == "" {
		templateID = draft.TemplateID
	}
	return s.renderer.Render(draft, templateID)
}

// Sweep removes expired sessions together with their entries and stored
// objects. It returns the number of sessions removed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	removed, err := s.repo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	for _, sessionID := range removed {
		s.dropEntries(ctx, sessionID)
		telemetry.Info("session.expired", map[string]any{"session_id": sessionID})
	}
	return len(removed), nil
}

// StartSweeper runs Sweep on the interval until ctx is done.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
					telemetry.Error("session.sweep", map[string]any{"error": err.Error()})
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Service) cleanup(ctx context.Context, sessionID string) {
	s.dropEntries(ctx, sessionID)
	if err := s.repo.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrNotFound) {
		telemetry.Error("session.cleanup", map[string]any{"session_id": sessionID, "error": err.Error()})
	}
}

// dropEntries deletes the session's entries and their stored payloads.
// Object deletion is best effort.
func (s *Service) dropEntries(ctx context.Context, sessionID string) {
	entries, err := s.registry.ListBySession(ctx, sessionID)
	if err != nil {
		telemetry.Error("session.cleanup", map[string]any{"session_id": sessionID, "error": err.Error()})
		return
	}
	for _, entry := range entries {
		if entry.StorageKey != "" && s.store != nil {
			if err := s.store.Delete(ctx, entry.StorageKey); err != nil {
				telemetry.Warn("session.cleanup.object", map[string]any{
					"entry_id": entry.ID,
					"error":    err.Error(),
				})
			}
		}
	}
	if err := s.registry.RemoveBySession(ctx, sessionID); err != nil {
		telemetry.Error("session.cleanup", map[string]any{"session_id": sessionID, "error": err.Error()})
	}
}

func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
