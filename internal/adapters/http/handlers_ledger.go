package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"voterfield/internal/domain"
	"voterfield/internal/services/interactions"
	"voterfield/internal/workers/importrunner"
)

func (s *Server) listInteractions(w http.ResponseWriter, r *http.Request) {
	var (
		p    interactions.ListParams
		mine *bool
		err  error
	)
	if p.VoterID, err = queryString(r, "voter_id"); err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, q := range []struct {
		name string
		dest any
	}{{"mine", &mine}, {"limit", &p.Limit}, {"offset", &p.Offset}} {
		if err := bindQuery(r, q.name, q.dest); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	p.Mine = mine != nil && *mine
	out, err := s.interactions.List(r.Context(), caller(r), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) logInteraction(w http.ResponseWriter, r *http.Request) {
	var sub interactions.Submission
	if err := decode(w, r, &sub); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := s.interactions.Log(r.Context(), caller(r), sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

// bulkLogInteractions decodes items one at a time so a malformed item is
// dropped like any other invalid one instead of failing the batch.
func (s *Server) bulkLogInteractions(w http.ResponseWriter, r *http.Request) {
	var raw []json.RawMessage
	if err := decode(w, r, &raw); err != nil {
		s.writeError(w, r, domain.BadRequest("body must be an array of interactions"))
		return
	}
	subs := make([]interactions.Submission, 0, len(raw))
	for _, item := range raw {
		var sub interactions.Submission
		if json.Unmarshal(item, &sub) == nil {
			subs = append(subs, sub)
		}
	}
	n, err := s.interactions.BulkLog(r.Context(), caller(r), subs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"inserted": n})
}

const (
	maxUploadBytes     = 32 << 20
	defaultWaitTimeout = 30 * time.Second
)

// submitImport accepts a bare array of voters or {"voters": [...]}.
func (s *Server) submitImport(w http.ResponseWriter, r *http.Request) {
	wait, timeout, err := s.waitParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body json.RawMessage
	if err := decode(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	var records []domain.VoterFields
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			s.writeError(w, r, domain.BadRequest("invalid voter records"))
			return
		}
	} else {
		var wrapped struct {
			Voters []domain.VoterFields `json:"voters"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			s.writeError(w, r, domain.BadRequest("invalid voter records"))
			return
		}
		records = wrapped.Voters
	}
	job, err := s.imports.SubmitInline(r.Context(), caller(r), records)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJob(w, r, job, wait, timeout)
}

func (s *Server) uploadImport(w http.ResponseWriter, r *http.Request) {
	wait, timeout, err := s.waitParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, domain.BadRequest("invalid multipart upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, domain.BadRequest("file is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, domain.BadRequest("could not read upload"))
		return
	}
	job, err := s.imports.SubmitFile(r.Context(), caller(r), header.Filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJob(w, r, job, wait, timeout)
}

// waitParams reads ?wait and ?timeout (seconds). They are validated before
// a job is created.
func (s *Server) waitParams(r *http.Request) (bool, time.Duration, error) {
	var (
		wait    *bool
		timeout *int
	)
	if err := bindQuery(r, "wait", &wait); err != nil {
		return false, 0, err
	}
	if err := bindQuery(r, "timeout", &timeout); err != nil {
		return false, 0, err
	}
	d := defaultWaitTimeout
	if timeout != nil && *timeout > 0 {
		d = time.Duration(*timeout) * time.Second
	}
	return wait != nil && *wait && s.queue != nil && s.processor != nil, d, nil
}

// respondJob answers 202 with the pending job, or when waiting processes it
// inline and answers 200 with its state once it finishes or the wait ends.
// The import itself is not tied to the request: a disconnect or an elapsed
// wait leaves it running to completion.
func (s *Server) respondJob(w http.ResponseWriter, r *http.Request, job domain.Job, wait bool, d time.Duration) {
	if !wait {
		writeJSON(w, http.StatusAccepted, job)
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := importrunner.ProcessInline(context.WithoutCancel(r.Context()), s.queue, s.processor, job.ID)
		if err != nil {
			// Import failures are recorded on the job, and a worker may have
			// claimed it first; either way the job row is the answer.
			s.log.Debug("inline import did not complete", zap.String("job_id", job.ID), zap.Error(err))
		}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-r.Context().Done():
		return
	}
	final, err := s.imports.GetJob(r.Context(), caller(r), job.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, final)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.imports.GetJob(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) metricsSummary(w http.ResponseWriter, r *http.Request) {
	out, err := s.metrics.Summary(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
