package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
)

// KindRegeneratePostings rebuilds every expense's GL posting from the
// stored record, replacing whatever postings exist.
const KindRegeneratePostings = "regenerate_postings"

// ErrAlreadyRunning is returned when a job of the same kind is active.
var ErrAlreadyRunning = errors.New("a batch job of this kind is already running")

// JobStore persists job progress between items.
type JobStore interface {
	GetRunning(ctx context.Context, kind string) (*entity.BatchJob, error)
	GetByKind(ctx context.Context, kind string) (*entity.BatchJob, error)
	Create(ctx context.Context, job *entity.BatchJob) error
	Update(ctx context.Context, job *entity.BatchJob) error
}

// DocumentSource supplies the documents a batch run iterates over. The
// ID ordering must be stable across calls or a resumed cursor would
// land on the wrong item.
type DocumentSource interface {
	ListDocumentIDs(ctx context.Context, docType entity.DocumentType) ([]string, error)
	GetExpense(ctx context.Context, id string) (*entity.Expense, error)
	GetLineItems(ctx context.Context, docType entity.DocumentType, docID string) ([]entity.LineItem, error)
}

// PostingRewriter clears existing postings so regeneration is idempotent.
type PostingRewriter interface {
	DeleteForDocument(ctx context.Context, docType entity.DocumentType, docID string) error
}

// Poster recreates the GL posting for one record.
type Poster interface {
	PostDocument(ctx context.Context, docType entity.DocumentType, f *entity.LedgerFields) error
}

// Runner executes resumable bulk jobs one item at a time with a fixed
// delay between items. Progress is persisted after every item; a runner
// restarted mid-job picks up the persisted cursor.
type Runner struct {
	jobs      JobStore
	docs      DocumentSource
	postings  PostingRewriter
	poster    Poster
	itemDelay time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewRunner creates a batch runner
func NewRunner(jobs JobStore, docs DocumentSource, postings PostingRewriter, poster Poster, itemDelay time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		jobs:      jobs,
		docs:      docs,
		postings:  postings,
		poster:    poster,
		itemDelay: itemDelay,
		logger:    logger,
		active:    make(map[string]context.CancelFunc),
	}
}

// Start begins or resumes the job of the given kind in the background
// and returns its current state. A second start while one is active
// returns ErrAlreadyRunning.
func (r *Runner) Start(ctx context.Context, kind string) (*entity.BatchJob, error) {
	if kind != KindRegeneratePostings {
		return nil, fmt.Errorf("unknown batch kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[kind]; busy {
		return nil, ErrAlreadyRunning
	}

	job, err := r.jobs.GetRunning(ctx, kind)
	if err != nil {
		return nil, err
	}
	if job != nil {
		// A persisted running job with no active worker means the
		// process died mid-run; continue from its cursor.
		r.logger.Info("Resuming interrupted batch job",
			zap.String("id", job.ID),
			zap.Int("cursor", job.Cursor),
			zap.Int("total", job.Total))
	} else {
		job = &entity.BatchJob{Kind: kind}
		if err := r.jobs.Create(ctx, job); err != nil {
			return nil, err
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.active[kind] = cancel

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.active, kind)
			r.mu.Unlock()
			cancel()
		}()
		r.run(runCtx, job)
	}()

	return job, nil
}

// Status returns the current state of the job of the given kind, or nil
// when none has ever run.
func (r *Runner) Status(ctx context.Context, kind string) (*entity.BatchJob, error) {
	return r.jobs.GetByKind(ctx, kind)
}

// Cancel stops an active run after the in-flight item finishes. The
// persisted cursor survives, so a later Start resumes the job.
func (r *Runner) Cancel(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.active[kind]; ok {
		cancel()
		return true
	}
	return false
}

func (r *Runner) run(ctx context.Context, job *entity.BatchJob) {
	ids, err := r.docs.ListDocumentIDs(ctx, entity.DocTypeExpense)
	if err != nil {
		r.logger.Error("Batch job failed to list documents", zap.String("id", job.ID), zap.Error(err))
		r.finish(job, entity.BatchFailed)
		return
	}
	job.Total = len(ids)

	for i := job.Cursor; i < len(ids); i++ {
		select {
		case <-ctx.Done():
			r.logger.Info("Batch job cancelled",
				zap.String("id", job.ID),
				zap.Int("cursor", job.Cursor))
			r.finish(job, entity.BatchCancelled)
			return
		default:
		}

		result := r.processItem(ctx, ids[i])
		job.Results = append(job.Results, result)
		job.Cursor = i + 1
		job.Processed++

		if err := r.jobs.Update(context.Background(), job); err != nil {
			r.logger.Error("Failed to persist batch progress", zap.String("id", job.ID), zap.Error(err))
		}

		if i < len(ids)-1 && r.itemDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.itemDelay):
			}
		}
	}

	r.finish(job, entity.BatchCompleted)
	r.logger.Info("Batch job finished",
		zap.String("id", job.ID),
		zap.Int("processed", job.Processed),
		zap.Int("total", job.Total))
}

// processItem regenerates the GL posting for one expense. Failures are
// recorded in the result and never abort the run.
func (r *Runner) processItem(ctx context.Context, id string) entity.BatchItemResult {
	result := entity.BatchItemResult{ItemID: id}

	expense, err := r.docs.GetExpense(ctx, id)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if expense == nil {
		result.Error = "expense not found"
		return result
	}

	items, err := r.docs.GetLineItems(ctx, entity.DocTypeExpense, id)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	expense.LineItems = items

	if err := r.postings.DeleteForDocument(ctx, entity.DocTypeExpense, id); err != nil {
		result.Error = fmt.Sprintf("failed to clear postings: %v", err)
		return result
	}
	if err := r.poster.PostDocument(ctx, entity.DocTypeExpense, &expense.LedgerFields); err != nil {
		result.Error = err.Error()
		return result
	}

	result.OK = true
	return result
}

func (r *Runner) finish(job *entity.BatchJob, status entity.BatchJobStatus) {
	now := time.Now().UTC()
	job.Status = status
	job.FinishedAt = &now
	if err := r.jobs.Update(context.Background(), job); err != nil {
		r.logger.Error("Failed to persist batch completion", zap.String("id", job.ID), zap.Error(err))
	}
}
