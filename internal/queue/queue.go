// Package queue is the print spool: jobs are persisted to sqlite before
// anything touches the printer, so a crash or power loss never loses a
// submitted label. A single worker drains the queue because the device
// itself is serial; concurrency buys nothing past the port.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"labelpress/internal/audit"
	"labelpress/internal/db"
	"labelpress/internal/export"
	"labelpress/internal/label"
	"labelpress/internal/payload"
	"labelpress/internal/symbol"
)

const (
	StatusPending   = "pending"
	StatusPrinting  = "printing"
	StatusSent      = "sent"
	StatusExported  = "exported"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

var (
	ErrJobNotCancelable = errors.New("only pending jobs can be cancelled")
	ErrJobNotRetryable  = errors.New("only failed jobs can be retried")
)

// Printer is the slice of transport.Conn the worker needs. Nil means no
// printer is attached and every job falls through to export.
type Printer interface {
	SendWithRetry(ctx context.Context, frame []byte, onAttempt func(attempt int, err error)) (int, error)
}

type Config struct {
	Label       label.Spec
	FallbackDir string
	AutoExport  bool
}

type SubmitRequest struct {
	Location    string
	Product     string
	Packer      string
	At          time.Time
	Symbology   symbol.Symbology
	Copies      int
	SubmittedBy string
}

// Result is delivered on the channel returned by Submit once the job
// reaches a terminal state.
type Result struct {
	JobID      int64
	Ref        string
	Status     string
	Attempts   int
	ExportPath string
	Err        error
}

type Stats struct {
	Pending   int64 `json:"pending"`
	Printing  int64 `json:"printing"`
	Sent      int64 `json:"sent"`
	Exported  int64 `json:"exported"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
	Total     int64 `json:"total"`
}

type Queue struct {
	cfg     Config
	printer Printer
	auditor *audit.Sender
	log     zerolog.Logger

	jobCh  chan int64
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	running  bool
	watchers map[int64]chan Result
}

func New(cfg Config, printer Printer, auditor *audit.Sender, log zerolog.Logger) *Queue {
	return &Queue{
		cfg:      cfg,
		printer:  printer,
		auditor:  auditor,
		log:      log,
		jobCh:    make(chan int64, 1000),
		stopCh:   make(chan struct{}),
		watchers: make(map[int64]chan Result),
	}
}

// Start recovers jobs interrupted by a previous shutdown, re-enqueues
// everything pending, and launches the worker and dispatcher.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = true
	q.mu.Unlock()

	recovered, err := db.Jobs.RecoverInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}
	if recovered > 0 {
		q.log.Info().Int64("count", recovered).Msg("requeued jobs interrupted by shutdown")
	}

	ids, err := db.Jobs.ListPendingJobIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}
	for _, id := range ids {
		select {
		case q.jobCh <- id:
		default:
		}
	}

	q.wg.Add(2)
	go q.worker()
	go q.dispatcher()

	return nil
}

func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()

	close(q.stopCh)
	q.wg.Wait()
}

// Submit validates the tracking fields, persists the job, and returns it
// together with a channel that receives exactly one Result when the job
// finishes. The channel is buffered; ignoring it is safe.
func (q *Queue) Submit(ctx context.Context, req SubmitRequest) (*db.PrintJob, <-chan Result, error) {
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}
	code, err := payload.Encode(req.Location, req.Product, req.Packer, at)
	if err != nil {
		return nil, nil, err
	}

	kind := req.Symbology
	if kind == "" {
		kind = q.cfg.Label.Symbology
	}
	copies := req.Copies
	if copies <= 0 {
		copies = 1
	}

	job := &db.PrintJob{
		Ref:          uuid.NewString(),
		Payload:      code,
		ProductName:  req.Product,
		LocationName: req.Location,
		PackerName:   req.Packer,
		Symbology:    string(kind),
		Copies:       copies,
		Status:       StatusPending,
		SubmittedBy:  req.SubmittedBy,
	}
	if err := db.Jobs.CreateJob(ctx, job); err != nil {
		return nil, nil, err
	}

	ch := make(chan Result, 1)
	q.mu.Lock()
	q.watchers[job.ID] = ch
	q.mu.Unlock()

	select {
	case q.jobCh <- job.ID:
	default:
	}

	q.log.Info().Str("ref", job.Ref).Str("payload", code).
		Str("symbology", job.Symbology).Int("copies", copies).Msg("job submitted")

	return job, ch, nil
}

// Cancel marks a pending job cancelled. The job never reaches the worker,
// so its submitter is notified here; finish only runs for processed jobs.
func (q *Queue) Cancel(ctx context.Context, id int64) error {
	ok, err := db.Jobs.CancelPendingJob(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrJobNotCancelable
	}

	q.mu.Lock()
	ch, watched := q.watchers[id]
	if watched {
		delete(q.watchers, id)
	}
	q.mu.Unlock()
	if watched {
		res := Result{JobID: id, Status: StatusCancelled}
		if job, err := db.Jobs.GetJobByID(ctx, id); err == nil {
			res.Ref = job.Ref
		}
		ch <- res
	}

	q.log.Info().Int64("job_id", id).Msg("job cancelled")
	return nil
}

// Retry resets a failed job to pending and re-enqueues it.
func (q *Queue) Retry(ctx context.Context, id int64) error {
	ok, err := db.Jobs.ResetJobForRetry(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrJobNotRetryable
	}
	select {
	case q.jobCh <- id:
	default:
	}
	return nil
}

func (q *Queue) GetStats(ctx context.Context) (*Stats, error) {
	counts, err := db.Jobs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{}
	for status, n := range counts {
		stats.Total += n
		switch status {
		case StatusPending:
			stats.Pending = n
		case StatusPrinting:
			stats.Printing = n
		case StatusSent:
			stats.Sent = n
		case StatusExported:
			stats.Exported = n
		case StatusFailed:
			stats.Failed = n
		case StatusCancelled:
			stats.Cancelled = n
		}
	}
	return stats, nil
}

// dispatcher periodically sweeps for pending jobs so rows inserted outside
// Submit (recovery, retries from another process) still get picked up.
func (q *Queue) dispatcher() {
	defer q.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			ids, err := db.Jobs.ListPendingJobIDs(context.Background())
			if err != nil {
				q.log.Error().Err(err).Msg("failed to sweep pending jobs")
				continue
			}
			for _, id := range ids {
				select {
				case q.jobCh <- id:
				default:
				}
			}
		}
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.jobCh:
			q.processJob(id)
		}
	}
}

func (q *Queue) processJob(id int64) {
	ctx := context.Background()

	job, err := db.Jobs.GetJobByID(ctx, id)
	if err != nil {
		q.log.Error().Err(err).Int64("job_id", id).Msg("failed to load job")
		return
	}
	if job.Status != StatusPending {
		return
	}

	if err := db.Jobs.MarkJobStarted(ctx, id, StatusPrinting); err != nil {
		q.log.Error().Err(err).Int64("job_id", id).Msg("failed to mark job started")
		return
	}

	stream, compileErr := q.compile(job)
	if compileErr != nil {
		q.finish(ctx, job, Result{Status: StatusFailed, Err: compileErr})
		return
	}

	if q.printer == nil {
		q.fallback(ctx, job, stream, 0, errors.New("no printer attached"))
		return
	}

	attempts, sendErr := q.printer.SendWithRetry(ctx, stream.Bytes(), func(attempt int, err error) {
		q.log.Warn().Err(err).Str("ref", job.Ref).Int("attempt", attempt).Msg("send attempt failed")
	})
	if sendErr != nil {
		q.fallback(ctx, job, stream, attempts, sendErr)
		return
	}

	q.finish(ctx, job, Result{Status: StatusSent, Attempts: attempts})
}

func (q *Queue) compile(job *db.PrintJob) (label.InstructionStream, error) {
	spec := q.cfg.Label
	kind, err := symbol.ParseSymbology(job.Symbology)
	if err != nil {
		return label.InstructionStream{}, err
	}
	spec.Symbology = kind

	sym, err := symbol.Render(job.Payload, kind, spec.WidthMM, spec.HeightMM)
	if err != nil {
		return label.InstructionStream{}, err
	}

	text := label.TextFields{
		Product:  job.ProductName,
		Location: job.LocationName,
		Packer:   job.PackerName,
	}
	return label.Compile(spec, sym, text, job.Copies)
}

// fallback runs when the transport gave up. With auto export on, the
// compiled frame is written to disk so the label can be printed later;
// otherwise the job fails outright.
func (q *Queue) fallback(ctx context.Context, job *db.PrintJob, stream label.InstructionStream, attempts int, cause error) {
	if !q.cfg.AutoExport {
		q.finish(ctx, job, Result{Status: StatusFailed, Attempts: attempts, Err: cause})
		return
	}

	path, err := export.WriteCommandFile(q.cfg.FallbackDir, job.Ref, stream)
	if err != nil {
		q.finish(ctx, job, Result{
			Status:   StatusFailed,
			Attempts: attempts,
			Err:      fmt.Errorf("transport failed (%v), export failed: %w", cause, err),
		})
		return
	}

	q.log.Warn().Err(cause).Str("ref", job.Ref).Str("export_path", path).
		Msg("printer unreachable, label exported to disk")
	q.finish(ctx, job, Result{Status: StatusExported, Attempts: attempts, ExportPath: path, Err: cause})
}

func (q *Queue) finish(ctx context.Context, job *db.PrintJob, res Result) {
	res.JobID = job.ID
	res.Ref = job.Ref

	errMsg := ""
	if res.Err != nil && res.Status != StatusSent {
		errMsg = res.Err.Error()
	}
	if err := db.Jobs.MarkJobCompleted(ctx, job.ID, res.Status, errMsg, res.ExportPath, res.Attempts); err != nil {
		q.log.Error().Err(err).Int64("job_id", job.ID).Msg("failed to persist job outcome")
	}

	if err := db.History.Record(ctx, &db.HistoryEntry{
		JobRef:       job.Ref,
		Payload:      job.Payload,
		Outcome:      res.Status,
		AttemptCount: res.Attempts,
	}); err != nil {
		q.log.Error().Err(err).Str("ref", job.Ref).Msg("failed to record history")
	}

	if q.auditor != nil {
		rec := audit.Record{
			JobRef:       job.Ref,
			Payload:      job.Payload,
			Outcome:      res.Status,
			AttemptCount: res.Attempts,
			ErrorMessage: errMsg,
			ExportPath:   res.ExportPath,
		}
		switch res.Status {
		case StatusSent:
			q.auditor.Send(audit.EventJobSent, rec)
		case StatusExported:
			q.auditor.Send(audit.EventJobExported, rec)
		default:
			q.auditor.Send(audit.EventJobFailed, rec)
		}
	}

	switch res.Status {
	case StatusSent:
		q.log.Info().Str("ref", job.Ref).Int("attempts", res.Attempts).Msg("label printed")
	case StatusExported:
	default:
		q.log.Error().Err(res.Err).Str("ref", job.Ref).Msg("job failed")
	}

	q.mu.Lock()
	ch, ok := q.watchers[job.ID]
	if ok {
		delete(q.watchers, job.ID)
	}
	q.mu.Unlock()
	if ok {
		ch <- res
	}
}
