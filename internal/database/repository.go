package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/budajoliwia/PetMagic/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks database connectivity
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Users

// CreateUser creates a new user record with a hashed password
func (r *Repository) CreateUser(ctx context.Context, user *models.User, password string) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	query := `
		INSERT INTO users (id, email, password_hash, role, daily_limit, used_today)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING created_at, updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Role, user.DailyLimit,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User

	query := `
		SELECT id, email, password_hash, role, daily_limit, used_today,
		       last_usage_date, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.DailyLimit,
		&user.UsedToday, &user.LastUsageDate, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User

	query := `
		SELECT id, email, password_hash, role, daily_limit, used_today,
		       last_usage_date, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.DailyLimit,
		&user.UsedToday, &user.LastUsageDate, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// Jobs

// CreateJob creates a new job record in the queued state
func (r *Repository) CreateJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = models.JobStatusQueued

	query := `
		INSERT INTO jobs (id, user_id, job_type, input_path, style, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		job.ID, job.UserID, job.Type, job.InputPath, job.Style, job.Status,
	).Scan(&job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by ID
func (r *Repository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job

	query := `
		SELECT id, user_id, job_type, input_path, style, status,
		       error_code, error_message, result_generation_id, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.Type, &job.InputPath, &job.Style, &job.Status,
		&job.ErrorCode, &job.ErrorMessage, &job.ResultGenerationID,
		&job.CreatedAt, &job.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ListJobsByUser retrieves a user's jobs, newest first
func (r *Repository) ListJobsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Job, error) {
	query := `
		SELECT id, user_id, job_type, input_path, style, status,
		       error_code, error_message, result_generation_id, created_at, updated_at
		FROM jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var job models.Job
		err := rows.Scan(
			&job.ID, &job.UserID, &job.Type, &job.InputPath, &job.Style, &job.Status,
			&job.ErrorCode, &job.ErrorMessage, &job.ResultGenerationID,
			&job.CreatedAt, &job.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, &job)
	}

	return jobs, nil
}

// MarkJobProcessing transitions a job from queued to processing. The
// status guard in the WHERE clause keeps terminal jobs immutable.
func (r *Repository) MarkJobProcessing(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = 'processing', updated_at = NOW()
		WHERE id = $1 AND status = 'queued'
	`

	tag, err := r.db.Pool.Exec(ctx, query, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not in queued state", jobID)
	}

	return nil
}

// MarkJobDone transitions a job from processing to done, recording the
// resulting generation id.
func (r *Repository) MarkJobDone(ctx context.Context, jobID, generationID string) error {
	query := `
		UPDATE jobs
		SET status = 'done', result_generation_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`

	tag, err := r.db.Pool.Exec(ctx, query, jobID, generationID)
	if err != nil {
		return fmt.Errorf("failed to mark job done: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not in processing state", jobID)
	}

	return nil
}

// MarkJobError transitions a job to the error terminal state with a
// classified code and a user-facing message. Legal from queued (quota
// failures) and from processing (pipeline failures).
func (r *Repository) MarkJobError(ctx context.Context, jobID, code, message string) error {
	query := `
		UPDATE jobs
		SET status = 'error', error_code = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'processing')
	`

	tag, err := r.db.Pool.Exec(ctx, query, jobID, code, message)
	if err != nil {
		return fmt.Errorf("failed to mark job errored: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is already terminal", jobID)
	}

	return nil
}

// Generations

// CreateGeneration creates a new generation record
func (r *Repository) CreateGeneration(ctx context.Context, gen *models.Generation) error {
	if gen.ID == "" {
		gen.ID = uuid.New().String()
	}

	query := `
		INSERT INTO generations (id, user_id, job_id, input_path, output_path, job_type, style, title, is_favorite)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		gen.ID, gen.UserID, gen.JobID, gen.InputPath, gen.OutputPath,
		gen.Type, gen.Style, gen.Title, gen.IsFavorite,
	).Scan(&gen.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create generation: %w", err)
	}

	return nil
}

// GetGeneration retrieves a generation by ID
func (r *Repository) GetGeneration(ctx context.Context, id string) (*models.Generation, error) {
	var gen models.Generation

	query := `
		SELECT id, user_id, job_id, input_path, output_path, job_type, style, title, is_favorite, created_at
		FROM generations
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&gen.ID, &gen.UserID, &gen.JobID, &gen.InputPath, &gen.OutputPath,
		&gen.Type, &gen.Style, &gen.Title, &gen.IsFavorite, &gen.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}

	return &gen, nil
}

// ListGenerationsByUser retrieves a user's generations, newest first
func (r *Repository) ListGenerationsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Generation, error) {
	query := `
		SELECT id, user_id, job_id, input_path, output_path, job_type, style, title, is_favorite, created_at
		FROM generations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var gens []*models.Generation
	for rows.Next() {
		var gen models.Generation
		err := rows.Scan(
			&gen.ID, &gen.UserID, &gen.JobID, &gen.InputPath, &gen.OutputPath,
			&gen.Type, &gen.Style, &gen.Title, &gen.IsFavorite, &gen.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gens = append(gens, &gen)
	}

	return gens, nil
}

// SetGenerationFavorite updates the favorite flag on a user's generation
func (r *Repository) SetGenerationFavorite(ctx context.Context, id, userID string, favorite bool) error {
	query := `
		UPDATE generations
		SET is_favorite = $3
		WHERE id = $1 AND user_id = $2
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, userID, favorite)
	if err != nil {
		return fmt.Errorf("failed to update generation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
