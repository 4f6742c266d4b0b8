package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/labliq/internal/cache"
	"github.com/JonMunkholm/labliq/internal/logging"
	"github.com/JonMunkholm/labliq/internal/results"
	"github.com/JonMunkholm/labliq/internal/store"
	"github.com/JonMunkholm/labliq/internal/upstream"
)

// ErrInvalidRequest marks a request rejected before reaching the engine or
// the database. Wrapped errors carry the field-level detail.
var ErrInvalidRequest = errors.New("invalid request")

// ErrInvalidJSON marks a request body that could not be decoded.
var ErrInvalidJSON = fmt.Errorf("%w: invalid json body", ErrInvalidRequest)

// Engine runs analyses. *upstream.Client implements it.
type Engine interface {
	Analyze(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

// Repository persists analyses. *store.Store implements it.
type Repository interface {
	Create(ctx context.Context, a *store.Analysis) error
	Get(ctx context.Context, id string) (*store.Analysis, error)
	List(ctx context.Context, f store.HistoryFilter) (*store.HistoryPage, error)
	UpdateMeta(ctx context.Context, id string, u store.MetaUpdate) (*store.Analysis, error)
	Delete(ctx context.Context, id string) error
	Merchants(ctx context.Context) ([]store.MerchantCount, error)
	PurgeOlderThan(ctx context.Context, days, batchSize int) ([]string, error)
}

// DefaultLoadTimeout bounds a shared analysis load.
const DefaultLoadTimeout = 30 * time.Second

// Options tune a Service. Zero values select defaults.
type Options struct {
	Cache       cache.Cache
	Limiter     *AnalysisLimiter
	PageSize    int
	MaxPageSize int

	// LoadTimeout bounds one coalesced store read. It is independent of the
	// callers' contexts, so one caller giving up does not fail the others.
	LoadTimeout time.Duration
}

// Service is the application state shared by the HTTP handlers.
type Service struct {
	engine  Engine
	repo    Repository
	cache   cache.Cache
	limiter *AnalysisLimiter
	loads   singleflight.Group

	pageSize    int
	maxPageSize int
	loadTimeout time.Duration
}

// NewService wires a Service.
func NewService(engine Engine, repo Repository, opts Options) *Service {
	s := &Service{
		engine:      engine,
		repo:        repo,
		cache:       opts.Cache,
		limiter:     opts.Limiter,
		pageSize:    opts.PageSize,
		maxPageSize: opts.MaxPageSize,
		loadTimeout: opts.LoadTimeout,
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.limiter == nil {
		s.limiter = NewAnalysisLimiter(0, 0)
	}
	if s.pageSize <= 0 {
		s.pageSize = results.DefaultPageSize
	}
	if s.loadTimeout <= 0 {
		s.loadTimeout = DefaultLoadTimeout
	}
	if s.maxPageSize < s.pageSize {
		s.maxPageSize = max(s.pageSize, 500)
	}
	return s
}

// Limiter exposes the engine call limiter for status reporting and drain.
func (s *Service) Limiter() *AnalysisLimiter {
	return s.limiter
}

// AnalysisRequest asks for a new analysis of an uploaded file.
type AnalysisRequest struct {
	FileID   string                 `json:"fileId"`
	FileName string                 `json:"fileName"`
	Mapping  upstream.ColumnMapping `json:"mapping"`
	Settings json.RawMessage        `json:"settings"`

	Merchant string   `json:"merchant"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags"`
	Notes    string   `json:"notes"`
}

// validate checks the request and returns the merged settings.
func (r AnalysisRequest) validate() (upstream.Settings, error) {
	var errs []error
	if strings.TrimSpace(r.FileID) == "" {
		errs = append(errs, errors.New("fileId is required"))
	}
	if err := r.Mapping.Validate(); err != nil {
		errs = append(errs, err)
	}

	settings, err := upstream.MergeSettings(r.Settings)
	if err != nil {
		errs = append(errs, err)
	} else if err := settings.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return upstream.Settings{}, fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}
	return settings, nil
}

// RunAnalysis validates req, runs it on the engine under the limiter and
// stores the normalized result.
func (s *Service) RunAnalysis(ctx context.Context, req AnalysisRequest) (*store.Analysis, error) {
	settings, err := req.validate()
	if err != nil {
		return nil, err
	}

	log := logging.WithFields(ctx, "file_id", req.FileID)

	if err := s.limiter.Acquire(ctx); err != nil {
		log.Warn("analysis rejected", "error", err, "active", s.limiter.ActiveCount())
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	resp, err := s.engine.Analyze(ctx, upstream.Request{
		FileID:   strings.TrimSpace(req.FileID),
		Mapping:  req.Mapping,
		Settings: settings,
	})
	if err != nil {
		return nil, fmt.Errorf("run analysis: %w", err)
	}

	rows := results.IndexRows(resp.Rows)
	a := &store.Analysis{
		FileID:   strings.TrimSpace(req.FileID),
		FileName: strings.TrimSpace(req.FileName),
		Merchant: strings.TrimSpace(req.Merchant),
		Title:    strings.TrimSpace(req.Title),
		Tags:     req.Tags,
		Notes:    req.Notes,
		Warning:  resp.Warning,
		Settings: settings,
		Summary:  summarizeResponse(resp.Summary, rows),
		Rows:     rows,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	s.cache.Set(ctx, a)

	log.Info("analysis completed",
		"id", a.ID,
		"rows", a.RowCount,
		"warning", a.Warning != "",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return a, nil
}

// summarizeResponse normalizes the engine's summary, or computes one from
// rows when the engine sent none.
func summarizeResponse(raw map[string]any, rows []results.Row) results.Summary {
	if len(raw) == 0 {
		return results.Summarize(rows)
	}
	return results.NormalizeSummary(raw).Resolve(rows)
}

// GetAnalysis returns an analysis with its rows. Concurrent loads of the
// same ID share one database read. The read keeps the first caller's context
// values but not its cancellation; each caller stops waiting when its own ctx
// ends.
func (s *Service) GetAnalysis(ctx context.Context, id string) (*store.Analysis, error) {
	if a, ok := s.cache.Get(ctx, id); ok {
		return a, nil
	}

	ch := s.loads.DoChan(id, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()

		a, err := s.repo.Get(loadCtx, id)
		if err != nil {
			return nil, err
		}
		s.cache.Set(loadCtx, a)
		return a, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load analysis %s: %w", id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("load analysis %s: %w", id, res.Err)
		}
		return res.Val.(*store.Analysis), nil
	}
}

// ListHistory returns one page of stored analyses, newest first.
func (s *Service) ListHistory(ctx context.Context, f store.HistoryFilter) (*store.HistoryPage, error) {
	page, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return page, nil
}

// UpdateMeta changes user-editable metadata and drops the cached copy.
func (s *Service) UpdateMeta(ctx context.Context, id string, u store.MetaUpdate) (*store.Analysis, error) {
	if u.IsEmpty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidRequest)
	}

	a, err := s.repo.UpdateMeta(ctx, id, u)
	if err != nil {
		return nil, fmt.Errorf("update analysis %s: %w", id, err)
	}
	s.cache.Delete(ctx, id)

	logging.WithFields(ctx, "id", id, "ip", IPAddressFromContext(ctx), "user_agent", UserAgentFromContext(ctx)).
		Info("analysis metadata updated")
	return a, nil
}

// DeleteAnalysis removes an analysis and its cached copy.
func (s *Service) DeleteAnalysis(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	s.cache.Delete(ctx, id)

	logging.WithFields(ctx, "id", id, "ip", IPAddressFromContext(ctx), "user_agent", UserAgentFromContext(ctx)).
		Info("analysis deleted")
	return nil
}

// Merchants returns per-merchant analysis counts.
func (s *Service) Merchants(ctx context.Context) ([]store.MerchantCount, error) {
	m, err := s.repo.Merchants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	return m, nil
}
