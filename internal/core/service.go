package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tabledock/tabledock/internal/tabular"
)

// ServiceOptions carries the configured defaults for upload processing.
type ServiceOptions struct {
	BatchSize     int               // rows per INSERT batch
	Policy        InvalidCellPolicy // default invalid-cell policy
	DateLayouts   []string          // ordered accepted date formats, nil for defaults
	UploadTimeout time.Duration     // hard cap on one upload session
	MaxConcurrent int               // parallel upload limit
	MaxWaitTime   time.Duration     // how long to wait for an upload slot
	ResultTTL     time.Duration     // how long finished sessions stay queryable
}

// Service orchestrates upload sessions: schema resolution, mapping,
// transform, and batched insertion, with progress reporting and
// cancellation. One session runs start-to-finish as a single sequential
// pipeline; the limiter only bounds how many sessions exist at once.
type Service struct {
	store   Store
	opts    ServiceOptions
	limiter *UploadLimiter

	mu      sync.RWMutex
	uploads map[string]*activeUpload
}

type activeUpload struct {
	ID       string
	Table    string
	FileName string
	Cancel   context.CancelFunc
	Progress UploadProgress
	Result   *UploadResult
	Done     chan struct{}

	listenerMu sync.Mutex
	listeners  []chan UploadProgress
	finished   bool // set under listenerMu once no more updates will come
}

// UploadOptions are the per-session knobs supplied by the caller.
type UploadOptions struct {
	Table       string
	CreateTable bool              // create the table when it does not exist
	Overrides   map[string]string // source column -> target column
	Policy      *InvalidCellPolicy
	BatchSize   int // 0 means the configured default
}

// NewService creates a Service backed by the given store.
func NewService(store Store, opts ServiceOptions) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 10 * time.Minute
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 5 * time.Minute
	}

	return &Service{
		store:   store,
		opts:    opts,
		limiter: NewUploadLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
		uploads: make(map[string]*activeUpload),
	}
}

// ListTables returns the tables visible in the target database.
func (s *Service) ListTables(ctx context.Context) ([]string, error) {
	return s.store.ListTables(ctx)
}

// TableSchema returns the schema of an existing table.
func (s *Service) TableSchema(ctx context.Context, table string) (TargetSchema, error) {
	return s.store.TableSchema(ctx, table)
}

// Infer derives a schema for a new table from the uploaded file.
func (s *Service) Infer(table string, t *tabular.UploadedTable) TargetSchema {
	return InferSchema(table, t, s.opts.DateLayouts)
}

// StartUpload begins an asynchronous upload session and returns its ID.
// The table must already be loaded; parse errors surface to the caller
// before any session exists. Use SubscribeProgress for updates.
//
// Returns ErrTooManyUploads when the concurrent limit is reached and no
// slot frees up within the configured wait time.
func (s *Service) StartUpload(ctx context.Context, t *tabular.UploadedTable, opts UploadOptions) (string, error) {
	if opts.Table == "" {
		return "", fmt.Errorf("missing table name")
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	uploadID := uuid.New().String()
	uploadCtx, cancel := context.WithTimeout(context.Background(), s.opts.UploadTimeout)

	upload := &activeUpload{
		ID:       uploadID,
		Table:    opts.Table,
		FileName: t.Name,
		Cancel:   cancel,
		Progress: UploadProgress{
			UploadID:  uploadID,
			Table:     opts.Table,
			FileName:  t.Name,
			Phase:     PhaseStarting,
			TotalRows: t.RowCount(),
		},
		Done: make(chan struct{}),
	}

	s.mu.Lock()
	s.uploads[uploadID] = upload
	s.mu.Unlock()

	go func() {
		defer s.limiter.Release()
		s.processUpload(uploadCtx, upload, t, opts)
	}()

	return uploadID, nil
}

// processUpload runs the pipeline for one session: resolve schema, resolve
// mapping, transform, insert. Any stage failure before the first insert
// leaves the database untouched.
func (s *Service) processUpload(ctx context.Context, upload *activeUpload, t *tabular.UploadedTable, opts UploadOptions) {
	start := time.Now()

	defer func() {
		// Runs after the recovery defer below, so the failure state set
		// there is already in place when listeners see the close.
		upload.Cancel() // releases the timeout timer
		upload.closeListeners()
		close(upload.Done)
		s.cleanup(upload.ID)
	}()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in upload",
				"upload_id", upload.ID,
				"table", opts.Table,
				"panic", r,
			)
			s.failUpload(upload, fmt.Errorf("internal error: %v", r), start)
		}
	}()

	log := slog.With("upload_id", upload.ID, "table", opts.Table, "file", t.Name)

	// Resolve or create the target schema.
	upload.setPhase(PhaseResolving)
	schema, created, err := s.resolveSchema(ctx, t, opts)
	if err != nil {
		log.Warn("schema resolution failed", "error", err)
		s.failUpload(upload, err, start)
		return
	}

	mapping, err := ResolveMapping(t, schema, opts.Overrides)
	if err != nil {
		log.Warn("mapping rejected", "error", err)
		s.failUpload(upload, err, start)
		return
	}

	// Transform.
	upload.setPhase(PhaseTransforming)
	policy := s.opts.Policy
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	transformer := &Transformer{
		Schema:      schema,
		Mapping:     mapping,
		Policy:      policy,
		DateLayouts: s.opts.DateLayouts,
	}
	transformed := transformer.Transform(t)

	if err := ctx.Err(); err != nil {
		s.cancelUpload(upload, start)
		return
	}

	// Insert.
	upload.setPhase(PhaseInserting)
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = s.opts.BatchSize
	}

	report, err := s.store.InsertRows(ctx, schema, mapping, transformed.Rows, InsertOptions{
		BatchSize: batchSize,
		Progress: func(inserted, failed int) {
			upload.updateProgress(func(p *UploadProgress) {
				p.CurrentRow = inserted + failed + len(transformed.Dropped)
				p.Inserted = inserted
				p.Failed = failed + len(transformed.Dropped)
			})
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			s.cancelUpload(upload, start)
			return
		}
		log.Error("insert failed", "error", err)
		s.failUpload(upload, err, start)
		return
	}

	result := &UploadResult{
		UploadID:  upload.ID,
		Table:     schema.Table,
		FileName:  t.Name,
		Attempted: t.RowCount(),
		Succeeded: report.Inserted,
		Failed:    len(transformed.Dropped) + len(report.Failed),
		Created:   created,
		Duration:  time.Since(start),
	}
	result.DurationMs = result.Duration.Milliseconds()
	result.Errors = capRowErrors(append(transformed.Dropped, report.Failed...))
	result.Warnings = capWarnings(transformed.Warnings)

	upload.Result = result
	upload.updateProgress(func(p *UploadProgress) {
		p.Phase = PhaseComplete
		p.CurrentRow = t.RowCount()
		p.Inserted = result.Succeeded
		p.Failed = result.Failed
	})

	log.Info("upload complete",
		"attempted", result.Attempted,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"warnings", len(result.Warnings),
		"created_table", created,
		"duration", result.Duration,
	)
}

// resolveSchema fetches the existing table schema, or infers and creates one
// when the caller asked for table creation. CREATE TABLE is issued exactly
// once; everything before it is read-only.
func (s *Service) resolveSchema(ctx context.Context, t *tabular.UploadedTable, opts UploadOptions) (TargetSchema, bool, error) {
	schema, err := s.store.TableSchema(ctx, opts.Table)
	if err == nil {
		return schema, false, nil
	}
	if !errors.Is(err, ErrTableNotFound) {
		return TargetSchema{}, false, err
	}
	if !opts.CreateTable {
		return TargetSchema{}, false, fmt.Errorf("table %q: %w", opts.Table, ErrTableNotFound)
	}

	schema = InferSchema(opts.Table, t, s.opts.DateLayouts)
	if err := s.store.CreateTable(ctx, schema); err != nil {
		return TargetSchema{}, false, fmt.Errorf("create table %q: %w", opts.Table, err)
	}
	return schema, true, nil
}

func (s *Service) failUpload(upload *activeUpload, err error, start time.Time) {
	upload.updateProgress(func(p *UploadProgress) {
		p.Phase = PhaseFailed
		p.Error = err.Error()
	})
	upload.Result = &UploadResult{
		UploadID:   upload.ID,
		Table:      upload.Table,
		FileName:   upload.FileName,
		Error:      err.Error(),
		Duration:   time.Since(start),
		DurationMs: time.Since(start).Milliseconds(),
	}
}

func (s *Service) cancelUpload(upload *activeUpload, start time.Time) {
	upload.updateProgress(func(p *UploadProgress) {
		p.Phase = PhaseCancelled
		p.Error = "upload cancelled"
	})
	upload.Result = &UploadResult{
		UploadID:   upload.ID,
		Table:      upload.Table,
		FileName:   upload.FileName,
		Error:      "upload cancelled",
		Duration:   time.Since(start),
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// SubscribeProgress returns a channel receiving progress updates for the
// upload. The channel is closed when the session completes.
func (s *Service) SubscribeProgress(uploadID string) (<-chan UploadProgress, error) {
	upload, ok := s.get(uploadID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, uploadID)
	}

	ch := make(chan UploadProgress, 16)

	upload.listenerMu.Lock()
	if upload.finished {
		// Session already finished; deliver the final snapshot and close.
		ch <- upload.Progress
		close(ch)
	} else {
		upload.listeners = append(upload.listeners, ch)
		ch <- upload.Progress
	}
	upload.listenerMu.Unlock()

	return ch, nil
}

// Progress returns the current progress snapshot of an upload.
func (s *Service) Progress(uploadID string) (UploadProgress, error) {
	upload, ok := s.get(uploadID)
	if !ok {
		return UploadProgress{}, fmt.Errorf("%w: %s", ErrUploadNotFound, uploadID)
	}
	upload.listenerMu.Lock()
	defer upload.listenerMu.Unlock()
	return upload.Progress, nil
}

// CancelUpload cancels an in-progress upload.
func (s *Service) CancelUpload(uploadID string) error {
	upload, ok := s.get(uploadID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUploadNotFound, uploadID)
	}
	upload.Cancel()
	return nil
}

// UploadResult blocks until the session finishes and returns its result.
func (s *Service) UploadResult(ctx context.Context, uploadID string) (*UploadResult, error) {
	upload, ok := s.get(uploadID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, uploadID)
	}

	select {
	case <-upload.Done:
		return upload.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LimiterStatus exposes the upload limiter state for monitoring.
func (s *Service) LimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until all active uploads complete, for graceful
// shutdown.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) get(uploadID string) (*activeUpload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	upload, ok := s.uploads[uploadID]
	return upload, ok
}

// cleanup removes the session record after the result TTL so late result
// queries still succeed.
func (s *Service) cleanup(uploadID string) {
	time.AfterFunc(s.opts.ResultTTL, func() {
		s.mu.Lock()
		delete(s.uploads, uploadID)
		s.mu.Unlock()
	})
}

func (u *activeUpload) setPhase(phase UploadPhase) {
	u.updateProgress(func(p *UploadProgress) { p.Phase = phase })
}

func (u *activeUpload) updateProgress(f func(*UploadProgress)) {
	u.listenerMu.Lock()
	f(&u.Progress)
	snapshot := u.Progress
	for _, ch := range u.listeners {
		select {
		case ch <- snapshot:
		default: // slow listener, drop the update
		}
	}
	u.listenerMu.Unlock()
}

func (u *activeUpload) closeListeners() {
	u.listenerMu.Lock()
	u.finished = true
	for _, ch := range u.listeners {
		close(ch)
	}
	u.listeners = nil
	u.listenerMu.Unlock()
}

func capRowErrors(errs []RowError) []RowError {
	if len(errs) > MaxReportedErrors {
		errs = errs[:MaxReportedErrors]
	}
	return errs
}

func capWarnings(warnings []CellWarning) []CellWarning {
	if len(warnings) > MaxReportedErrors {
		warnings = warnings[:MaxReportedErrors]
	}
	return warnings
}
