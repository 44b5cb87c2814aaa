package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/roach88/morph/internal/adapter"
	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
	"github.com/roach88/morph/internal/observe"
	"github.com/roach88/morph/internal/store"
)

// Result is the outcome of one journaled mutation.
type Result struct {
	// Record is the written change. Zero when nothing changed.
	Record store.Record

	// Changed is false when the mutation left the root unchanged; nothing
	// is written and no seq is consumed.
	Changed bool
}

// Recorder journals mutations of *root into one stream.
//
// Thread-safety model:
//   - Record(): safe from any goroutine; calls are serialized
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// The root must only be mutated through the recorder.
type Recorder[T any] struct {
	store  *store.Store
	stream string
	root   *T
	cfg    *config

	mu       sync.Mutex
	diverged error

	requests *queue[request[T]]
}

type request[T any] struct {
	ctx   context.Context
	fn    func(*T) error
	reply chan<- Reply
}

// Reply carries the outcome of a submitted mutation.
type Reply struct {
	Result Result
	Err    error
}

// Open starts journaling root into streamID.
//
// A new stream is created with the encoded root as its base. When the
// stream already exists its replayed value must equal the encoded root;
// otherwise Open returns a BASE_MISMATCH error. The clock resumes at the
// stream's last seq.
func Open[T any](ctx context.Context, s *store.Store, streamID string, root *T, opts ...Option) (*Recorder[T], error) {
	if root == nil {
		return nil, errors.New("journal: root must be a non-nil pointer")
	}
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	current, err := adapter.EncodeIR(root)
	if err != nil {
		return nil, fmt.Errorf("journal: encode root: %w", err)
	}

	if err := attach(ctx, s, streamID, current, reflect.TypeFor[T]().String()); err != nil {
		return nil, err
	}

	last, err := s.LastSeq(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	if cfg.seq == nil {
		cfg.seq = NewClockAt(last)
	}

	cfg.logger.Info("journal opened", "stream", streamID, "seq", last)
	return &Recorder[T]{
		store:    s,
		stream:   streamID,
		root:     root,
		cfg:      cfg,
		requests: newQueue[request[T]](),
	}, nil
}

// attach creates the stream or checks that an existing one replays to
// current.
func attach(ctx context.Context, s *store.Store, streamID string, current ir.IRValue, rootType string) error {
	_, err := s.ReadBase(ctx, streamID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err := s.WriteBase(ctx, store.Stream{
			ID:       streamID,
			RootType: rootType,
			Adapter:  adapter.JSON{}.Name(),
			Base:     current,
		})
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("journal: %w", err)
	}

	replayed, err := s.Replay(ctx, streamID)
	if err != nil {
		return &Error{Code: ErrCodeBaseMismatch, Message: "stream does not replay", Stream: streamID, Err: err}
	}
	if !ir.Equal(replayed, current) {
		return &Error{Code: ErrCodeBaseMismatch, Message: "root differs from replayed stream", Stream: streamID}
	}
	return nil
}

// Stream returns the stream ID.
func (r *Recorder[T]) Stream() string {
	return r.stream
}

// Seq returns the seq of the last journaled change.
func (r *Recorder[T]) Seq() int64 {
	return r.cfg.seq.Current()
}

// Record runs fn inside an observation session over the root and
// journals the resulting change.
//
// An error returned by fn is returned unchanged and nothing is written.
// The recorder becomes diverged, and every later call returns a DIVERGED
// error, when fn fails after changing the root or when the change cannot
// be written.
func (r *Recorder[T]) Record(ctx context.Context, fn func(*T) error) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record(ctx, fn)
}

func (r *Recorder[T]) record(ctx context.Context, fn func(*T) error) (Result, error) {
	if r.diverged != nil {
		return Result{}, &Error{Code: ErrCodeDiverged, Message: "recorder is diverged", Stream: r.stream, Err: r.diverged}
	}

	opts := append([]observe.Option{observe.WithLogger(r.cfg.logger)}, r.cfg.observeOpts...)
	sess, err := observe.Begin(r.root, opts...)
	if err != nil {
		return Result{}, err
	}
	defer sess.Close()

	if err := fn(r.root); err != nil {
		if sess.End() != nil {
			r.diverged = fmt.Errorf("mutation failed after changing the root: %w", err)
		}
		return Result{}, err
	}
	c := sess.End()
	if c == nil {
		return Result{}, nil
	}

	rec, err := r.write(ctx, sess.ID(), c)
	if err != nil {
		r.diverged = err
		r.cfg.logger.Error("journal write failed",
			"error", err,
			"stream", r.stream,
			"session_id", sess.ID(),
		)
		return Result{}, &Error{Code: ErrCodeDiverged, Message: "change was not journaled", Stream: r.stream, Err: err}
	}

	r.cfg.logger.Info("change journaled",
		"stream", r.stream,
		"seq", rec.Seq,
		"id", rec.ID,
		"leaves", rec.Leaves,
		"session_id", rec.SessionID,
	)
	return Result{Record: rec, Changed: true}, nil
}

func (r *Recorder[T]) write(ctx context.Context, sessionID string, c *change.Change) (store.Record, error) {
	rendered, err := adapter.Render(adapter.JSON{}, c)
	if err != nil {
		return store.Record{}, err
	}
	return r.store.WriteChange(ctx, store.Record{
		StreamID:  r.stream,
		Seq:       r.cfg.seq.Next(),
		SessionID: sessionID,
		Change:    rendered,
	})
}

// Submit enqueues fn for the Run loop and returns a channel that receives
// exactly one Reply. A recorder that was stopped replies with a STOPPED
// error.
func (r *Recorder[T]) Submit(ctx context.Context, fn func(*T) error) <-chan Reply {
	reply := make(chan Reply, 1)
	if !r.requests.Enqueue(request[T]{ctx: ctx, fn: fn, reply: reply}) {
		reply <- Reply{Err: &Error{Code: ErrCodeStopped, Message: "recorder stopped", Stream: r.stream}}
	}
	return reply
}

// Run applies submitted mutations in FIFO order until ctx is cancelled or
// Stop is called. Requests still queued when Run returns are answered
// with a STOPPED error.
func (r *Recorder[T]) Run(ctx context.Context) error {
	r.cfg.logger.Debug("journal loop starting", "stream", r.stream)
	defer r.drain()

	for {
		if req, ok := r.requests.TryDequeue(); ok {
			res, err := r.Record(req.ctx, req.fn)
			req.reply <- Reply{Result: res, Err: err}
			continue
		}

		select {
		case <-ctx.Done():
			r.cfg.logger.Debug("journal loop stopping: context cancelled", "stream", r.stream)
			r.requests.Close()
			return ctx.Err()
		case <-r.requests.Wait():
			if r.requests.Len() == 0 && r.stopped() {
				r.cfg.logger.Debug("journal loop stopping: queue closed", "stream", r.stream)
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once queued requests are processed.
func (r *Recorder[T]) Stop() {
	r.requests.Close()
}

func (r *Recorder[T]) stopped() bool {
	r.requests.mu.Lock()
	defer r.requests.mu.Unlock()
	return r.requests.closed
}

func (r *Recorder[T]) drain() {
	for {
		req, ok := r.requests.TryDequeue()
		if !ok {
			return
		}
		req.reply <- Reply{Err: &Error{Code: ErrCodeStopped, Message: "recorder stopped", Stream: r.stream}}
	}
}
