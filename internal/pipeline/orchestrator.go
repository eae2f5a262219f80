// Package pipeline drives a stylization job from its queued notification
// to a terminal state: quota consume, input download, generation,
// normalization, output upload, and the final job record update.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/budajoliwia/PetMagic/internal/database"
	"github.com/budajoliwia/PetMagic/internal/logging"
	"github.com/budajoliwia/PetMagic/internal/metrics"
	"github.com/budajoliwia/PetMagic/internal/quota"
	"github.com/budajoliwia/PetMagic/internal/storage"
	"github.com/budajoliwia/PetMagic/pkg/models"
)

// User-facing messages stored on failed jobs. The app renders these
// verbatim, so the copy lives here, not in the clients.
const (
	msgLimitReached     = "Dzienny limit generacji został osiągnięty. Spróbuj ponownie jutro."
	msgLimitCheckFailed = "Nie udało się sprawdzić limitu użytkownika. Spróbuj ponownie później."
	msgProcessingError  = "Wystąpił błąd podczas przetwarzania zadania."
)

// JobStore is the job and generation persistence the orchestrator needs.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	MarkJobProcessing(ctx context.Context, jobID string) error
	MarkJobDone(ctx context.Context, jobID, generationID string) error
	MarkJobError(ctx context.Context, jobID, code, message string) error
	CreateGeneration(ctx context.Context, gen *models.Generation) error
}

// Ledger is the daily quota the orchestrator consumes from and refunds to.
type Ledger interface {
	Consume(ctx context.Context, userID string) error
	Refund(ctx context.Context, userID string) error
}

// ArtifactStore moves image bytes in and out of object storage.
type ArtifactStore interface {
	DownloadBytes(ctx context.Context, objectName string) ([]byte, error)
	UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) error
}

// Generator produces a stylized image from the input photo.
type Generator interface {
	Generate(ctx context.Context, input []byte, jobType models.JobType, style string) ([]byte, error)
}

// Normalizer re-encodes raw generator output into the delivery format.
type Normalizer func(data []byte, forcePNG bool) ([]byte, error)

// Orchestrator processes job notifications end to end.
type Orchestrator struct {
	store      JobStore
	ledger     Ledger
	artifacts  ArtifactStore
	generator  Generator
	normalize  Normalizer
	jobTimeout time.Duration
	logger     *logging.Logger
}

// New creates an orchestrator. jobTimeout bounds a single processing
// attempt; zero disables the bound.
func New(store JobStore, ledger Ledger, artifacts ArtifactStore, generator Generator,
	normalize Normalizer, jobTimeout time.Duration, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		ledger:     ledger,
		artifacts:  artifacts,
		generator:  generator,
		normalize:  normalize,
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

// ProcessJob handles one "job created" notification. The queue delivers
// at least once, so every step tolerates redelivery: terminal jobs are
// skipped, and a job already in processing resumes without consuming
// quota again. Job-level failures are written to the job record and
// reported as nil so the message is acked; only infrastructure errors
// before the job is loaded propagate for redelivery.
func (o *Orchestrator) ProcessJob(ctx context.Context, event *models.JobCreatedEvent) error {
	if err := event.Validate(); err != nil {
		o.logger.ErrorWithErr("Dropping malformed job notification", err)
		return nil
	}

	if o.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.jobTimeout)
		defer cancel()
	}

	log := o.logger.WithJobID(event.JobID).WithUserID(event.UserID)

	job, err := o.store.GetJob(ctx, event.JobID)
	if errors.Is(err, database.ErrNotFound) {
		log.Warn("Job record not found, dropping notification")
		return nil
	}
	if err != nil {
		// Transient store failure: requeue via the consumer.
		return fmt.Errorf("failed to load job %s: %w", event.JobID, err)
	}

	if job.Status.Terminal() {
		log.Infof("Job already %s, skipping redelivery", job.Status)
		return nil
	}

	start := time.Now()
	metrics.JobsInProgress.Inc()
	defer metrics.JobsInProgress.Dec()

	if job.Status == models.JobStatusQueued {
		if err := o.ledger.Consume(ctx, job.UserID); err != nil {
			if errors.Is(err, quota.ErrLimitExceeded) {
				metrics.QuotaConsumesTotal.WithLabelValues(metrics.OutcomeLimitReached).Inc()
				log.LogQuotaEvent(job.UserID, "consume", metrics.OutcomeLimitReached)
				o.recordError(ctx, log, job, CodeLimitReached, msgLimitReached)
				o.observeTerminal(job, models.JobStatusError, start)
				return nil
			}
			metrics.QuotaConsumesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
			log.ErrorWithErr("Quota check failed", err)
			o.recordError(ctx, log, job, CodeLimitCheckFailed, msgLimitCheckFailed)
			o.observeTerminal(job, models.JobStatusError, start)
			return nil
		}
		metrics.QuotaConsumesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
		log.LogQuotaEvent(job.UserID, "consume", metrics.OutcomeOK)

		if err := o.store.MarkJobProcessing(ctx, job.ID); err != nil {
			// Another delivery won the queued row. Give back our unit
			// and let that delivery finish the job.
			log.ErrorWithErr("Failed to claim job, refunding", err)
			o.refund(ctx, log, job.UserID)
			return nil
		}
		job.Status = models.JobStatusProcessing
	} else {
		// Redelivered mid-flight: the earlier attempt already consumed
		// quota, so resume without a second consume.
		log.Info("Resuming job found in processing state")
	}

	generationID, err := o.runPipeline(ctx, log, job)
	if err != nil {
		o.failJob(ctx, log, job, err)
		o.observeTerminal(job, models.JobStatusError, start)
		return nil
	}

	if err := o.store.MarkJobDone(ctx, job.ID, generationID); err != nil {
		o.failJob(ctx, log, job, err)
		o.observeTerminal(job, models.JobStatusError, start)
		return nil
	}

	o.observeTerminal(job, models.JobStatusDone, start)
	log.LogJobEvent(job.ID, "completed", string(models.JobStatusDone), map[string]interface{}{
		"generation_id": generationID,
		"style":         job.Style,
	})

	return nil
}

// runPipeline executes download, generate, normalize, upload and the
// generation record insert, returning the new generation id.
func (o *Orchestrator) runPipeline(ctx context.Context, log *logging.Logger, job *models.Job) (string, error) {
	input, err := o.timed("download", func() ([]byte, error) {
		return o.artifacts.DownloadBytes(ctx, job.InputPath)
	})
	if err != nil {
		return "", err
	}

	raw, err := o.timed("generate", func() ([]byte, error) {
		return o.generator.Generate(ctx, input, job.Type, job.Style)
	})
	if err != nil {
		return "", err
	}

	forcePNG := job.Type == models.JobTypeSticker
	output, err := o.timed("normalize", func() ([]byte, error) {
		return o.normalize(raw, forcePNG)
	})
	if err != nil {
		return "", err
	}
	metrics.GenerationOutputBytes.Observe(float64(len(output)))

	generationID := uuid.New().String()
	outputPath := storage.OutputImagePath(job.UserID, generationID)

	contentType := "image/jpeg"
	if forcePNG {
		contentType = "image/png"
	}

	if _, err := o.timed("upload", func() ([]byte, error) {
		return nil, o.artifacts.UploadBytes(ctx, outputPath, output, contentType)
	}); err != nil {
		return "", err
	}

	gen := &models.Generation{
		ID:         generationID,
		UserID:     job.UserID,
		JobID:      job.ID,
		InputPath:  job.InputPath,
		OutputPath: outputPath,
		Type:       job.Type,
		Style:      job.Style,
		Title:      "Stylized " + job.Style,
		IsFavorite: false,
	}
	if err := o.store.CreateGeneration(ctx, gen); err != nil {
		return "", err
	}

	log.LogStorageOperation("upload", outputPath, int64(len(output)), 0, nil)

	return generationID, nil
}

// failJob compensates a failed attempt: one best-effort refund, then the
// classified terminal error on the job record. Runs on a detached
// context so compensation survives the job timeout firing.
func (o *Orchestrator) failJob(ctx context.Context, log *logging.Logger, job *models.Job, cause error) {
	log.ErrorWithErr("Job processing failed", cause)

	ctx = context.WithoutCancel(ctx)

	o.refund(ctx, log, job.UserID)

	code := ClassifyError(cause)
	message := fmt.Sprintf("%s %s", msgProcessingError, cause.Error())
	o.recordError(ctx, log, job, code, message)
}

// refund gives one quota unit back. Failures are logged and swallowed:
// a lost refund degrades quota accuracy but never changes a job outcome.
func (o *Orchestrator) refund(ctx context.Context, log *logging.Logger, userID string) {
	if err := o.ledger.Refund(ctx, userID); err != nil {
		metrics.QuotaRefundsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		log.ErrorWithErr("Quota refund failed", err)
		return
	}
	metrics.QuotaRefundsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	log.LogQuotaEvent(userID, "refund", metrics.OutcomeOK)
}

func (o *Orchestrator) recordError(ctx context.Context, log *logging.Logger, job *models.Job, code, message string) {
	metrics.JobErrorsTotal.WithLabelValues(code).Inc()

	if err := o.store.MarkJobError(ctx, job.ID, code, message); err != nil {
		log.ErrorWithErr("Failed to record job error", err)
		return
	}

	log.LogJobEvent(job.ID, "failed", string(models.JobStatusError), map[string]interface{}{
		"error_code": code,
	})
}

func (o *Orchestrator) observeTerminal(job *models.Job, status models.JobStatus, start time.Time) {
	metrics.JobsProcessedTotal.WithLabelValues(string(status)).Inc()
	metrics.JobDuration.WithLabelValues(string(job.Type), string(status)).Observe(time.Since(start).Seconds())
}

// timed runs a pipeline stage and records its duration.
func (o *Orchestrator) timed(stage string, fn func() ([]byte, error)) ([]byte, error) {
	start := time.Now()
	out, err := fn()
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return out, err
}
