package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"voterfield/internal/domain"
	"voterfield/internal/ports"
)

const jobColumns = `id, org_id, user_id, type, status, created_at, updated_at, started_at, result, error, metadata`

func scanJob(row pgx.Row) (domain.Job, error) {
	var (
		j                domain.Job
		result, metadata []byte
		errText          *string
	)
	if err := row.Scan(&j.ID, &j.OrgID, &j.UserID, &j.Type, &j.Status, &j.CreatedAt, &j.UpdatedAt,
		&j.StartedAt, &result, &errText, &metadata); err != nil {
		return j, err
	}
	var err error
	if j.Result, err = decodeJSON[map[string]any](result); err != nil {
		return j, err
	}
	if j.Metadata, err = decodeJSON[map[string]any](metadata); err != nil {
		return j, err
	}
	j.Error = str(errText)
	return j, nil
}

func (db *DB) GetJob(ctx context.Context, orgID, jobID string) (domain.Job, error) {
	j, err := scanJob(db.Pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE org_id = $1 AND id = $2`, orgID, jobID))
	return j, mapErr(err, "job")
}

// finish moves a processing job to a terminal status. A job that is no
// longer processing, for example one the reaper already failed, is left
// untouched and reported as a conflict.
func (db *DB) finish(ctx context.Context, jobID string, status domain.JobStatus, result []byte, reason *string) (domain.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	j, err := scanJob(db.Pool.QueryRow(ctx, `
        UPDATE jobs SET status = $2, result = $3, error = $4, finished_at = now(), updated_at = now()
        WHERE id = $1 AND status = 'processing'
        RETURNING `+jobColumns, jobID, string(status), result, reason))
	if errors.Is(err, pgx.ErrNoRows) {
		return j, domain.Conflict("job is not processing")
	}
	return j, mapErr(err, "job")
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string, result map[string]any) (domain.Job, error) {
	raw, err := jsonArg(result)
	if err != nil {
		return domain.Job{}, err
	}
	return db.finish(ctx, jobID, domain.JobCompleted, raw, nil)
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) (domain.Job, error) {
	return db.finish(ctx, jobID, domain.JobFailed, nil, &reason)
}

func (db *DB) FailStuck(ctx context.Context, startedBefore time.Time, reason string) ([]domain.Job, error) {
	rows, err := db.Pool.Query(ctx, `
        UPDATE jobs SET status = 'failed', error = $2, finished_at = now(), updated_at = now()
        WHERE status = 'processing' AND started_at < $1
        RETURNING `+jobColumns, startedBefore, reason)
	if err != nil {
		return nil, mapErr(err, "jobs")
	}
	defer rows.Close()
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, mapErr(err, "jobs")
		}
		out = append(out, j)
	}
	return out, mapErr(rows.Err(), "jobs")
}

// Enqueue creates the pending job and its queue row in one transaction, so
// a job a client can poll always has work a worker can claim.
func (db *DB) Enqueue(ctx context.Context, name string, job domain.Job, task ports.ImportTask) (domain.Job, error) {
	metadata, err := jsonArg(job.Metadata)
	if err != nil {
		return job, err
	}
	payload, err := json.Marshal(task.Source)
	if err != nil {
		return job, err
	}
	var created domain.Job
	err = db.withTx(ctx, func(tx pgx.Tx) error {
		created, err = scanJob(tx.QueryRow(ctx, `
            INSERT INTO jobs (id, org_id, user_id, type, status, metadata)
            VALUES ($1, $2, $3, $4, 'pending', $5)
            RETURNING `+jobColumns, job.ID, job.OrgID, job.UserID, string(job.Type), metadata))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
            INSERT INTO job_queue (job_id, name, payload) VALUES ($1, $2, $3)`, created.ID, name, payload)
		return err
	})
	return created, mapErr(err, "job")
}

// claimSQL locks one pending queue row. SKIP LOCKED lets several workers
// poll the same table without handing out a task twice.
const claimSQL = `
    SELECT q.job_id, j.org_id, j.user_id, q.payload
    FROM job_queue q
    JOIN jobs j ON j.id = q.job_id
    WHERE q.claimed_at IS NULL AND j.status = 'pending'`

// ClaimNext selects the oldest queued task and marks its job processing.
func (db *DB) ClaimNext(ctx context.Context) (task ports.ImportTask, found bool, err error) {
	err = db.withTx(ctx, func(tx pgx.Tx) error {
		task, err = claim(ctx, tx, tx.QueryRow(ctx, claimSQL+`
            ORDER BY q.enqueued_at
            FOR UPDATE OF q SKIP LOCKED
            LIMIT 1`))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return task, false, nil
	}
	if err != nil {
		return task, false, err
	}
	return task, true, nil
}

// Claim takes a specific pending job, used for inline processing.
func (db *DB) Claim(ctx context.Context, jobID string) (task ports.ImportTask, err error) {
	err = db.withTx(ctx, func(tx pgx.Tx) error {
		task, err = claim(ctx, tx, tx.QueryRow(ctx, claimSQL+`
            AND q.job_id = $1
            FOR UPDATE OF q SKIP LOCKED`, jobID))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return task, domain.Conflict("job is not pending")
	}
	return task, mapErr(err, "job")
}

func claim(ctx context.Context, tx pgx.Tx, row pgx.Row) (ports.ImportTask, error) {
	var (
		task    ports.ImportTask
		payload []byte
	)
	if err := row.Scan(&task.JobID, &task.OrgID, &task.UserID, &payload); err != nil {
		return task, err
	}
	if err := json.Unmarshal(payload, &task.Source); err != nil {
		return task, err
	}
	if _, err := tx.Exec(ctx, `
        UPDATE job_queue SET claimed_at = now(), attempts = attempts + 1 WHERE job_id = $1`, task.JobID); err != nil {
		return task, err
	}
	_, err := tx.Exec(ctx, `
        UPDATE jobs SET status = 'processing', started_at = now(), updated_at = now() WHERE id = $1`, task.JobID)
	return task, err
}
