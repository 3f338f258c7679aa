package build

import (
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	jaherrors "github.com/conneroisu/jah/internal/errors"
	"github.com/conneroisu/jah/internal/logging"
)

// CopyKind tells what a copy job carries.
type CopyKind string

const (
	KindAsset    CopyKind = "asset"
	KindPublic   CopyKind = "public"
	KindTemplate CopyKind = "template"
)

// CopyJob copies one file into the build directory.
type CopyJob struct {
	Kind  CopyKind
	SrcFs afero.Fs
	Src   string
	Dst   string
	// Render transforms the content before it is written. Jobs without it
	// are streamed.
	Render func(ctx context.Context, data []byte) ([]byte, error)
}

// CopyQueue runs copy jobs strictly one after another in the order they
// were added.
type CopyQueue struct {
	out    afero.Fs
	jobs   []CopyJob
	logger logging.Logger
}

// NewCopyQueue returns an empty queue writing to out.
func NewCopyQueue(out afero.Fs, logger logging.Logger) *CopyQueue {
	if logger == nil {
		logger = logging.Nop()
	}

	return &CopyQueue{out: out, logger: logger}
}

// Add appends a job.
func (q *CopyQueue) Add(job CopyJob) {
	q.jobs = append(q.jobs, job)
}

// Len returns the number of queued jobs.
func (q *CopyQueue) Len() int {
	return len(q.jobs)
}

// Run executes the jobs. The first failure stops the queue and is returned
// as a copy error; the jobs completed so far are returned either way.
func (q *CopyQueue) Run(ctx context.Context) ([]CopyJob, error) {
	done := make([]CopyJob, 0, len(q.jobs))

	for _, job := range q.jobs {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		q.logger.Debug(ctx, "Copying file", "kind", string(job.Kind), "src", job.Src, "dst", job.Dst)
		if err := q.run(ctx, job); err != nil {
			q.logger.Error(ctx, err, "Copy failed", "src", job.Src, "dst", job.Dst)

			return done, jaherrors.NewCopyError(job.Src, job.Dst, err)
		}
		done = append(done, job)
	}

	return done, nil
}

func (q *CopyQueue) run(ctx context.Context, job CopyJob) error {
	if err := q.out.MkdirAll(filepath.Dir(job.Dst), 0o755); err != nil {
		return err
	}

	if job.Render != nil {
		data, err := afero.ReadFile(job.SrcFs, job.Src)
		if err != nil {
			return err
		}
		data, err = job.Render(ctx, data)
		if err != nil {
			return err
		}

		return afero.WriteFile(q.out, job.Dst, data, 0o644)
	}

	src, err := job.SrcFs.Open(job.Src)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := q.out.Create(job.Dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()

		return err
	}

	return dst.Close()
}
