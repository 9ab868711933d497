// Package imports runs asynchronous voter imports. Submission creates a
// pending job and queues it; a worker later claims it and calls Process.
package imports

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voterfield/internal/domain"
	"voterfield/internal/importer"
	"voterfield/internal/ports"
	"voterfield/internal/services/audit"
)

// StuckReason is recorded on jobs the reaper fails.
const StuckReason = "job exceeded maximum runtime"

type Options struct {
	// MaxRecords caps the records of one import; 0 means unlimited.
	MaxRecords int
}

type Service struct {
	jobs   ports.JobRepository
	queue  ports.ImportQueue
	voters ports.VoterRepository
	files  ports.ObjectStore
	trail  *audit.Trail
	log    *zap.Logger
	opts   Options
	now    func() time.Time
}

func New(jobs ports.JobRepository, queue ports.ImportQueue, voters ports.VoterRepository, files ports.ObjectStore, trail *audit.Trail, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		jobs: jobs, queue: queue, voters: voters, files: files,
		trail: trail, log: log, opts: opts, now: time.Now,
	}
}

// SubmitInline queues an import of records sent in the request body. An
// empty slice is accepted and completes with nothing imported.
func (s *Service) SubmitInline(ctx context.Context, caller domain.Caller, records []domain.VoterFields) (domain.Job, error) {
	if records == nil {
		return domain.Job{}, domain.BadRequest("voters must be an array")
	}
	if s.opts.MaxRecords > 0 && len(records) > s.opts.MaxRecords {
		return domain.Job{}, domain.BadRequest("at most %d voters per import", s.opts.MaxRecords)
	}
	return s.submit(ctx, caller,
		domain.ImportSource{Records: records},
		map[string]any{"record_count": len(records)})
}

// SubmitFile stages an uploaded CSV in the object store and queues its
// import. The file is decoded by the worker, not here.
func (s *Service) SubmitFile(ctx context.Context, caller domain.Caller, filename string, body []byte) (domain.Job, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.Job{}, domain.BadRequest("file is empty")
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = "upload.csv"
	}
	key := fmt.Sprintf("imports/%s/%s.csv", caller.OrgID, uuid.NewString())
	if err := s.files.Put(ctx, key, body, "text/csv"); err != nil {
		return domain.Job{}, err
	}
	return s.submit(ctx, caller,
		domain.ImportSource{FileKey: key, FileName: filename},
		map[string]any{"file_key": key, "filename": filename})
}

func (s *Service) submit(ctx context.Context, caller domain.Caller, src domain.ImportSource, metadata map[string]any) (domain.Job, error) {
	task := ports.ImportTask{JobID: uuid.NewString(), OrgID: caller.OrgID, UserID: caller.UserID, Source: src}
	job, err := s.queue.Enqueue(ctx, ports.QueueImportVoters, domain.Job{
		ID:       task.JobID,
		OrgID:    caller.OrgID,
		UserID:   caller.UserID,
		Type:     domain.JobImportVoters,
		Metadata: metadata,
	}, task)
	if err != nil {
		return domain.Job{}, fmt.Errorf("enqueue import: %w", err)
	}

	audited := map[string]any{"job_id": job.ID}
	for k, v := range metadata {
		audited[k] = v
	}
	s.trail.Log(ctx, "import.create", caller.UserID, caller.OrgID, audited)
	s.trail.Emit(ctx, "import.started", caller.OrgID, caller.UserID, map[string]any{"job_id": job.ID})
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, caller domain.Caller, jobID string) (domain.Job, error) {
	if uuid.Validate(jobID) != nil {
		return domain.Job{}, domain.NotFound("job")
	}
	return s.jobs.GetJob(ctx, caller.OrgID, jobID)
}

// Process imports a claimed task and moves its job to completed or failed.
// The returned error is the import failure, if any.
func (s *Service) Process(ctx context.Context, task ports.ImportTask) error {
	log := s.log.With(zap.String("job_id", task.JobID), zap.String("org_id", task.OrgID))
	n, err := s.importRecords(ctx, task)
	// Terminal transitions are recorded even when the worker is shutting down.
	finishCtx := context.WithoutCancel(ctx)
	if err != nil {
		// A job the reaper already failed has had its import.failed event.
		if _, markErr := s.jobs.MarkFailed(finishCtx, task.JobID, err.Error()); markErr != nil {
			log.Error("failed to mark import failed", zap.Error(markErr))
		} else {
			s.trail.Emit(finishCtx, "import.failed", task.OrgID, task.UserID, map[string]any{
				"job_id": task.JobID, "error": err.Error(),
			})
		}
		log.Warn("import failed", zap.Error(err))
		return err
	}

	if _, err := s.jobs.MarkCompleted(finishCtx, task.JobID, map[string]any{"imported_count": n}); err != nil {
		// The reaper may have failed the job while it ran.
		log.Error("failed to mark import completed", zap.Error(err), zap.Int("imported_count", n))
		return err
	}
	s.trail.Emit(finishCtx, "import.completed", task.OrgID, task.UserID, map[string]any{
		"job_id": task.JobID, "count": n,
	})
	s.trail.Log(finishCtx, "import.success", task.UserID, task.OrgID, map[string]any{
		"job_id": task.JobID, "imported_count": n,
	})
	log.Info("import completed", zap.Int("imported_count", n))
	return nil
}

func (s *Service) importRecords(ctx context.Context, task ports.ImportTask) (int, error) {
	records := task.Source.Records
	if task.Source.FileKey != "" {
		body, err := s.files.Get(ctx, task.Source.FileKey)
		if err != nil {
			return 0, fmt.Errorf("read upload: %w", err)
		}
		records, err = importer.ParseVoters(bytes.NewReader(body), importer.Options{MaxRows: s.opts.MaxRecords})
		if err != nil {
			return 0, err
		}
	}
	if len(records) == 0 {
		return 0, nil
	}
	voters := make([]domain.Voter, 0, len(records))
	for _, r := range records {
		voters = append(voters, domain.NormalizeImported(r, task.OrgID, uuid.NewString(), "ext-"+uuid.NewString()))
	}
	return s.voters.UpsertVoters(ctx, task.OrgID, voters)
}

// ReapStuck fails processing jobs that started more than maxRuntime ago
// and returns how many it failed.
func (s *Service) ReapStuck(ctx context.Context, maxRuntime time.Duration) (int, error) {
	stuck, err := s.jobs.FailStuck(ctx, s.now().Add(-maxRuntime), StuckReason)
	if err != nil {
		return 0, err
	}
	for _, j := range stuck {
		s.log.Warn("reaped stuck job", zap.String("job_id", j.ID), zap.String("org_id", j.OrgID))
		s.trail.Emit(ctx, "import.failed", j.OrgID, j.UserID, map[string]any{
			"job_id": j.ID, "error": StuckReason,
		})
	}
	return len(stuck), nil
}
