// Package auditlog is the durable trail of Privacy Manager deletions
// (spec.md §4.4 step 4, supplemented per SPEC_FULL.md §12): one row per
// delete_subject invocation, keyed by a hash of the subject id rather than
// the raw identifier.
package auditlog

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"
)

// Entry is one audit record for a completed (or partially completed)
// delete_subject call.
type Entry struct {
	SubjectHash  string
	Reason       string
	DeletedCount int64
	Outcome      string // "success" or "partial_failure"
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer is an async, buffered audit log writer, adapted from the
// teacher's internal/audit.Writer: entries are enqueued non-blockingly and
// flushed by a background goroutine on a size-or-interval trigger.
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

// NewWriter creates a Writer. Call Start to begin processing entries.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:    pool,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start launches the background flush loop and returns immediately. The
// loop flushes what it has buffered and exits once ctx is cancelled or
// Close is called.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an audit entry. It never blocks the caller; a full buffer
// drops the entry and logs a warning rather than applying backpressure to
// the delete_subject request path.
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"outcome", entry.Outcome, "deleted_count", entry.DeletedCount)
	}
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO audit_log (id, occurred_at, subject_hash, reason, deleted_count, outcome)
			 VALUES ($1, now(), $2, $3, $4, $5)`,
			uuid.New(), e.SubjectHash, e.Reason, e.DeletedCount, e.Outcome)
		if err != nil {
			w.logger.Error("writing audit log entry", "error", err, "outcome", e.Outcome)
		}
	}
}

// HashSubject derives a stable, irreversible-in-practice identifier for a
// subject id, keyed with a server-local secret so the stored hash is not a
// rentable rainbow-table of raw ids (spec.md §4.4 step 4: "the source
// presents the identifier directly — implementers should consider hashing
// before logging").
func HashSubject(subjectID, hashSecret string) string {
	h, err := blake2b.New256([]byte(hashSecret))
	if err != nil {
		// Only returned when the key exceeds 64 bytes; callers are expected
		// to configure a reasonably sized secret, so surface it loudly.
		panic("auditlog: invalid hash secret: " + err.Error())
	}
	h.Write([]byte(subjectID))
	return hex.EncodeToString(h.Sum(nil))
}
