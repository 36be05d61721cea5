// Package service provides the score cache client: the single entry point
// that serves the score snapshot from storage and fetches it on a miss.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/okian/critreview/internal/adapters/remote"
	"github.com/okian/critreview/internal/adapters/storage"
	"github.com/okian/critreview/internal/domain/intensity"
	"github.com/okian/critreview/internal/domain/model"
	"github.com/okian/critreview/internal/domain/request"
	"github.com/okian/critreview/internal/domain/types"
	"github.com/okian/critreview/pkg/logger"
	"github.com/okian/critreview/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// CacheKey is the storage key holding the serialized ScoreMap.
const CacheKey = "scores"

// Fetcher performs a review API request and decodes the JSON body into out.
type Fetcher interface {
	Fetch(ctx context.Context, r request.Request, out any) error
}

// Service is the score cache client. It is constructed once per session.
type Service struct {
	store   storage.Storage
	fetcher Fetcher
	logger  logger.Logger

	sessionID string
	field     string
	flight    singleflight.Group

	hits    atomic.Int64
	misses  atomic.Int64
	fetches atomic.Int64
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.sessionID = id
		}
	}
}

// WithScoreField names the field of each Scores record read by Entry when
// the caller does not pass one.
func WithScoreField(field string) Option {
	return func(s *Service) {
		s.field = field
	}
}

// New constructs a Service over store and fetcher.
func New(store storage.Storage, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		fetcher:   fetcher,
		logger:    logger.Nop(),
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.String("session_id", s.sessionID))
	return s
}

// SessionID returns the id sent with every request made by this service.
func (s *Service) SessionID() string { return s.sessionID }

// GetAllScores returns the score snapshot. A present cache entry is decoded
// and returned without any network call or staleness check. On a miss one
// scores request is made; its result is written to the cache and returned.
//
// Concurrent misses share a single in-flight request; each caller receives
// its own copy of the result. A failed fetch or decode is returned as is
// and leaves any existing entry untouched.
func (s *Service) GetAllScores(ctx context.Context) (model.ScoreMap, error) {
	scores, ok, err := s.cached(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		s.hits.Add(1)
		metrics.RecordCacheHit()
		s.logger.Debug(ctx, "score cache hit", logger.Int("entries", len(scores)))
		return scores, nil
	}

	s.misses.Add(1)
	metrics.RecordCacheMiss()
	s.logger.Info(ctx, "score cache miss")

	// The shared fetch must not fail for every waiter when the first
	// caller's context is cancelled.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(CacheKey, func() (any, error) {
		return s.refresh(flightCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.RecordCoalesced()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		scores := res.Val.(model.ScoreMap)
		if res.Shared {
			scores = cloneScores(scores)
		}
		return scores, nil
	}
}

// cached reads and decodes the cache entry. An empty value counts as a miss.
func (s *Service) cached(ctx context.Context) (model.ScoreMap, bool, error) {
	raw, ok, err := s.store.Get(ctx, CacheKey)
	if err != nil {
		return nil, false, fmt.Errorf("read cache: %w", err)
	}
	if !ok || raw == "" {
		return nil, false, nil
	}

	scores, err := decodeScoreMap([]byte(raw))
	if err != nil {
		metrics.RecordCacheCorrupt()
		s.logger.Warn(ctx, "cached score snapshot is not decodable", logger.Error(err))
		return nil, false, &remote.DecodeError{Source: "cache entry " + CacheKey, Err: err}
	}
	return scores, true, nil
}

// refresh fetches the full snapshot and stores it. The cache is re-read
// first so that a snapshot written by a flight that finished after our
// miss is reused instead of fetched again.
func (s *Service) refresh(ctx context.Context) (model.ScoreMap, error) {
	if scores, ok, err := s.cached(ctx); err != nil || ok {
		return scores, err
	}

	ctx = remote.ContextWithSession(ctx, s.sessionID)
	req := request.New(request.Scores)

	var scores model.ScoreMap
	s.fetches.Add(1)
	if err := s.fetcher.Fetch(ctx, req, &scores); err != nil {
		s.logger.Error(ctx, "score fetch failed", logger.String("request", req.String()), logger.Error(err))
		return nil, err
	}
	if scores == nil {
		return nil, &remote.DecodeError{Source: "scores response", Err: errNotObject}
	}

	encoded, err := json.Marshal(scores)
	if err != nil {
		return nil, &remote.DecodeError{Source: "scores response", Err: err}
	}
	if err := s.store.Set(ctx, CacheKey, string(encoded)); err != nil {
		// The snapshot is still valid for this call; the next call will miss
		// and try the write again.
		metrics.RecordCacheWriteError()
		s.logger.Warn(ctx, "score cache write failed", logger.Error(err))
		return scores, nil
	}

	metrics.RecordCacheWrite(len(scores))
	s.logger.Info(ctx, "score snapshot cached", logger.Int("entries", len(scores)))
	return scores, nil
}

// GetReviews requests reviews for courses. Reviews are never cached.
func (s *Service) GetReviews(ctx context.Context, courses ...string) (model.CourseMap[json.RawMessage], error) {
	ctx = remote.ContextWithSession(ctx, s.sessionID)
	var reviews model.CourseMap[json.RawMessage]
	s.fetches.Add(1)
	if err := s.fetcher.Fetch(ctx, request.New(request.Reviews, courses...), &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// Invalidate deletes the cache entry so that the next GetAllScores fetches.
func (s *Service) Invalidate(ctx context.Context) error {
	if err := s.store.Delete(ctx, CacheKey); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	s.logger.Info(ctx, "score cache invalidated")
	return nil
}

// Entry looks up one course in the snapshot. When field (or the configured
// default) resolves to an in-range raw score, the entry also carries its
// intensity and color.
func (s *Service) Entry(ctx context.Context, id, field string) (types.ScoreEntry, error) {
	scores, err := s.GetAllScores(ctx)
	if err != nil {
		return types.ScoreEntry{}, err
	}
	rec, ok := scores[id]
	if !ok {
		return types.ScoreEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if field == "" {
		field = s.field
	}
	return newEntry(id, rec, field), nil
}

// Entries returns every course in the snapshot ordered by id, normalized
// like Entry.
func (s *Service) Entries(ctx context.Context, field string) ([]types.ScoreEntry, error) {
	scores, err := s.GetAllScores(ctx)
	if err != nil {
		return nil, err
	}
	if field == "" {
		field = s.field
	}
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	entries := make([]types.ScoreEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, newEntry(id, scores[id], field))
	}
	return entries, nil
}

func newEntry(id string, rec model.Scores, field string) types.ScoreEntry {
	entry := types.ScoreEntry{ID: id, Scores: json.RawMessage(rec)}
	raw, ok := rec.Number(field)
	if !ok {
		return entry
	}
	i, err := intensity.Normalize(raw)
	if err != nil {
		return entry
	}
	entry.Raw = &raw
	entry.Intensity = &i
	entry.Color = intensity.Color(i)
	return entry
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"sessionID": s.sessionID,
		"hits":      s.hits.Load(),
		"misses":    s.misses.Load(),
		"fetches":   s.fetches.Load(),
	}
}

func cloneScores(src model.ScoreMap) model.ScoreMap {
	dst := make(model.ScoreMap, len(src))
	for id, rec := range src {
		dst[id] = slices.Clone(rec)
	}
	return dst
}

func decodeScoreMap(data []byte) (model.ScoreMap, error) {
	var scores model.ScoreMap
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, err
	}
	if scores == nil {
		return nil, errNotObject
	}
	return scores, nil
}
