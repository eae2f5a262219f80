package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budajoliwia/PetMagic/internal/database"
	"github.com/budajoliwia/PetMagic/internal/logging"
	"github.com/budajoliwia/PetMagic/internal/quota"
	"github.com/budajoliwia/PetMagic/pkg/models"
)

// fakeStore mirrors the repository's status guards in memory.
type fakeStore struct {
	jobs     map[string]*models.Job
	gens     []*models.Generation
	getErr   error
	getCalls int
}

func newFakeStore(jobs ...*models.Job) *fakeStore {
	s := &fakeStore{jobs: make(map[string]*models.Job)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	job, ok := s.jobs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (s *fakeStore) MarkJobProcessing(ctx context.Context, jobID string) error {
	job := s.jobs[jobID]
	if job == nil || job.Status != models.JobStatusQueued {
		return errors.New("job is not in queued state")
	}
	job.Status = models.JobStatusProcessing
	return nil
}

func (s *fakeStore) MarkJobDone(ctx context.Context, jobID, generationID string) error {
	job := s.jobs[jobID]
	if job == nil || job.Status != models.JobStatusProcessing {
		return errors.New("job is not in processing state")
	}
	job.Status = models.JobStatusDone
	job.ResultGenerationID = generationID
	return nil
}

func (s *fakeStore) MarkJobError(ctx context.Context, jobID, code, message string) error {
	job := s.jobs[jobID]
	if job == nil || job.Status.Terminal() {
		return errors.New("job is already terminal")
	}
	job.Status = models.JobStatusError
	job.ErrorCode = code
	job.ErrorMessage = message
	return nil
}

func (s *fakeStore) CreateGeneration(ctx context.Context, gen *models.Generation) error {
	s.gens = append(s.gens, gen)
	return nil
}

type fakeArtifacts struct {
	objects     map[string][]byte
	downloadErr error
	uploads     map[string]string // path -> content type
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{
		objects: map[string][]byte{"input/u1/j1.jpg": []byte("photo")},
		uploads: make(map[string]string),
	}
}

func (a *fakeArtifacts) DownloadBytes(ctx context.Context, objectName string) ([]byte, error) {
	if a.downloadErr != nil {
		return nil, a.downloadErr
	}
	data, ok := a.objects[objectName]
	if !ok {
		return nil, errors.New("object " + objectName + " not found")
	}
	return data, nil
}

func (a *fakeArtifacts) UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) error {
	a.objects[objectName] = data
	a.uploads[objectName] = contentType
	return nil
}

type fakeGenerator struct {
	output []byte
	err    error
	calls  int
}

func (g *fakeGenerator) Generate(ctx context.Context, input []byte, jobType models.JobType, style string) ([]byte, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.output, nil
}

type failingLedger struct{}

func (failingLedger) Consume(ctx context.Context, userID string) error {
	return errors.New("connection refused")
}

func (failingLedger) Refund(ctx context.Context, userID string) error { return nil }

func passthroughNormalize(data []byte, forcePNG bool) ([]byte, error) {
	return data, nil
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(logging.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return logger
}

func queuedJob() *models.Job {
	return &models.Job{
		ID:        "j1",
		UserID:    "u1",
		Type:      models.JobTypeSticker,
		InputPath: "input/u1/j1.jpg",
		Style:     "Cartoon",
		Status:    models.JobStatusQueued,
	}
}

func jobEvent(job *models.Job) *models.JobCreatedEvent {
	return &models.JobCreatedEvent{
		JobID:     job.ID,
		UserID:    job.UserID,
		Type:      job.Type,
		InputPath: job.InputPath,
		Style:     job.Style,
	}
}

func TestProcessJobSuccess(t *testing.T) {
	job := queuedJob()
	store := newFakeStore(job)
	ledger := quota.NewMemoryLedger(5)
	artifacts := newFakeArtifacts()
	generator := &fakeGenerator{output: []byte("stylized")}

	o := New(store, ledger, artifacts, generator, passthroughNormalize, time.Minute, testLogger(t))

	err := o.ProcessJob(context.Background(), jobEvent(job))
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusDone, job.Status)
	assert.Equal(t, 1, ledger.UsedToday("u1"))

	require.Len(t, store.gens, 1)
	gen := store.gens[0]
	assert.Equal(t, job.ResultGenerationID, gen.ID)
	assert.Equal(t, "u1", gen.UserID)
	assert.Equal(t, "j1", gen.JobID)
	assert.Equal(t, "Stylized Cartoon", gen.Title)
	assert.False(t, gen.IsFavorite)
	assert.Equal(t, "output/u1/"+gen.ID+".png", gen.OutputPath)

	// Stickers go out as PNG
	assert.Equal(t, "image/png", artifacts.uploads[gen.OutputPath])
	assert.Equal(t, []byte("stylized"), artifacts.objects[gen.OutputPath])
}

func TestProcessJobImageContentType(t *testing.T) {
	job := queuedJob()
	job.Type = models.JobTypeImage
	store := newFakeStore(job)
	artifacts := newFakeArtifacts()

	o := New(store, quota.NewMemoryLedger(5), artifacts, &fakeGenerator{output: []byte("out")},
		passthroughNormalize, time.Minute, testLogger(t))

	require.NoError(t, o.ProcessJob(context.Background(), jobEvent(job)))

	require.Len(t, store.gens, 1)
	assert.Equal(t, "image/jpeg", artifacts.uploads[store.gens[0].OutputPath])
}

func TestProcessJobProviderFailure(t *testing.T) {
	job := queuedJob()
	store := newFakeStore(job)
	ledger := quota.NewMemoryLedger(5)
	generator := &fakeGenerator{err: errors.New("generation failed with status 500")}

	o := New(store, ledger, newFakeArtifacts(), generator, passthroughNormalize, time.Minute, testLogger(t))

	err := o.ProcessJob(context.Background(), jobEvent(job))
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusError, job.Status)
	assert.Equal(t, CodeProcessingError, job.ErrorCode)
	assert.True(t, strings.HasPrefix(job.ErrorMessage, "Wystąpił błąd"), "unexpected message: %s", job.ErrorMessage)
	assert.Empty(t, store.gens)

	// The consumed unit came back
	assert.Equal(t, 0, ledger.UsedToday("u1"))
}

func TestProcessJobInputNotFound(t *testing.T) {
	job := queuedJob()
	store := newFakeStore(job)
	ledger := quota.NewMemoryLedger(5)
	artifacts := newFakeArtifacts()
	artifacts.downloadErr = errors.New("object input/u1/j1.jpg not found")

	o := New(store, ledger, artifacts, &fakeGenerator{}, passthroughNormalize, time.Minute, testLogger(t))

	require.NoError(t, o.ProcessJob(context.Background(), jobEvent(job)))

	assert.Equal(t, models.JobStatusError, job.Status)
	assert.Equal(t, CodeInputNotFound, job.ErrorCode)
	assert.Equal(t, 0, ledger.UsedToday("u1"))
}

func TestProcessJobLimitReached(t *testing.T) {
	job := queuedJob()
	store := newFakeStore(job)
	ledger := quota.NewMemoryLedger(5)
	ledger.SetRecord("u1", 5, 5, time.Now().UTC().Format("2006-01-02"))
	generator := &fakeGenerator{output: []byte("out")}

	o := New(store, ledger, newFakeArtifacts(), generator, passthroughNormalize, time.Minute, testLogger(t))

	require.NoError(t, o.ProcessJob(context.Background(), jobEvent(job)))

	assert.Equal(t, models.JobStatusError, job.Status)
	assert.Equal(t, CodeLimitReached, job.ErrorCode)
	assert.NotEmpty(t, job.ErrorMessage)

	// Nothing ran and nothing was consumed
	assert.Equal(t, 0, generator.calls)
	assert.Equal(t, 5, ledger.UsedToday("u1"))
}

func TestProcessJobLimitCheckFailed(t *testing.T) {
	job := queuedJob()
	store := newFakeStore(job)
	generator := &fakeGenerator{output: []byte("out")}

	o := New(store, failingLedger{}, newFakeArtifacts(), generator, passthroughNormalize, time.Minute, testLogger(t))

	require.NoError(t, o.ProcessJob(context.Background(), jobEvent(job)))

	assert.Equal(t, models.JobStatusError, job.Status)
	assert.Equal(t, CodeLimitCheckFailed, job.ErrorCode)
	assert.Equal(t, 0, generator.calls)
}

func TestProcessJobTerminalRedelivery(t *testing.T) {
	job := queuedJob()
	job.Status = models.JobStatusDone
	job.ResultGenerationID = "g1"
	store := newFakeStore(job)
	ledger := quota.NewMemoryLedger(5)
	generator := &fakeGenerator{output: []byte("out")}

	o := New(store, ledger, newFakeArtifacts(), generator, passthroughNormalize, time.Minute, testLogger(t))

	require.NoError(t, o.ProcessJob(context.Background(), jobEvent(job)))

	assert.Equal(t, models.JobStatusDone, job.Status)
	assert.Equal(t, "g1", job.ResultGenerationID)
	assert.Equal(t, 0, generator.calls)
	assert.Equal(t, 0, ledger.UsedToday("u1"))
	assert.Empty(t, store.gens)
}

func TestProcessJobResumesProcessing(t *testing.T) {
	job := queuedJob()
	job.Status = models.JobStatusProcessing
	store := newFakeStore(job)
	ledger := quota.NewMemoryLedger(5)

	o := New(store, ledger, newFakeArtifacts(), &fakeGenerator{output: []byte("out")},
		passthroughNormalize, time.Minute, testLogger(t))

	require.NoError(t, o.ProcessJob(context.Background(), jobEvent(job)))

	assert.Equal(t, models.JobStatusDone, job.Status)
	require.Len(t, store.gens, 1)

	// The first attempt already paid for this job
	assert.Equal(t, 0, ledger.UsedToday("u1"))
}

func TestProcessJobMalformedEvent(t *testing.T) {
	store := newFakeStore()

	o := New(store, quota.NewMemoryLedger(5), newFakeArtifacts(), &fakeGenerator{},
		passthroughNormalize, time.Minute, testLogger(t))

	err := o.ProcessJob(context.Background(), &models.JobCreatedEvent{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 0, store.getCalls)
}

func TestProcessJobMissingRecord(t *testing.T) {
	store := newFakeStore()

	o := New(store, quota.NewMemoryLedger(5), newFakeArtifacts(), &fakeGenerator{},
		passthroughNormalize, time.Minute, testLogger(t))

	err := o.ProcessJob(context.Background(), jobEvent(queuedJob()))
	require.NoError(t, err)
}

func TestProcessJobStoreUnavailable(t *testing.T) {
	store := newFakeStore(queuedJob())
	store.getErr = errors.New("connection refused")

	o := New(store, quota.NewMemoryLedger(5), newFakeArtifacts(), &fakeGenerator{},
		passthroughNormalize, time.Minute, testLogger(t))

	// Infrastructure failure propagates so the consumer requeues
	err := o.ProcessJob(context.Background(), jobEvent(queuedJob()))
	require.Error(t, err)
}

func TestDailyLimitAcrossJobs(t *testing.T) {
	jobA := queuedJob()
	jobB := queuedJob()
	jobB.ID = "j2"
	jobB.InputPath = "input/u1/j2.jpg"

	store := newFakeStore(jobA, jobB)
	ledger := quota.NewMemoryLedger(1)
	artifacts := newFakeArtifacts()
	artifacts.objects["input/u1/j2.jpg"] = []byte("photo2")

	o := New(store, ledger, artifacts, &fakeGenerator{output: []byte("out")},
		passthroughNormalize, time.Minute, testLogger(t))

	require.NoError(t, o.ProcessJob(context.Background(), jobEvent(jobA)))
	assert.Equal(t, models.JobStatusDone, jobA.Status)
	assert.Equal(t, 1, ledger.UsedToday("u1"))

	require.NoError(t, o.ProcessJob(context.Background(), jobEvent(jobB)))
	assert.Equal(t, models.JobStatusError, jobB.Status)
	assert.Equal(t, CodeLimitReached, jobB.ErrorCode)
	assert.Equal(t, 1, ledger.UsedToday("u1"))
}
