package store

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"mutdb/pkg/clock"
	"mutdb/pkg/config"
	"mutdb/pkg/dberrors"
	"mutdb/pkg/delta"
	"mutdb/pkg/index"
	"mutdb/pkg/metrics"
	"mutdb/pkg/snapshot"
	"mutdb/pkg/types"
	"mutdb/pkg/wal"
)

type iCommitLog[T any] interface {
	Append(d delta.Delta[T]) error
	Clear() error
	Size() int64
	Close() error
}

type iClock interface {
	Val() types.SeqN
	Next() types.SeqN
	Set(t types.SeqN)
	Advance(t types.SeqN)
}

type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics metrics.Collector
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithMetrics(c metrics.Collector) Option {
	return func(o *options) {
		o.metrics = c
	}
}

// Stats is a point-in-time summary of a Store.
type Stats struct {
	Rows           int        `json:"rows"`
	LiveIDs        int        `json:"live_ids"`
	CommitLogBytes int64      `json:"commit_log_bytes"`
	Seq            types.SeqN `json:"seq"`
	FlushedSeq     types.SeqN `json:"flushed_seq"`
	Flushes        uint64     `json:"flushes"`
}

// Store makes a columnar table mutable and crash durable. Every accepted
// update is appended to the commit log before it touches the table; flush
// rewrites the snapshot and truncates the log. Any number of Select calls run
// concurrently, Update and Flush exclude everyone.
type Store[T Row] struct {
	mu sync.RWMutex

	cfg    config.StoreConfig
	table  Table[T]
	target index.Target[T]
	ix     *index.Index
	jr     iCommitLog[T]
	seqN   iClock

	flushedSeq types.SeqN
	flushes    uint64
	closed     bool

	logger  *slog.Logger
	metrics metrics.Collector
}

// New opens the store in cfg.Path on top of an empty table: the snapshot is
// loaded, the index rebuilt and the commit log replayed. The table must have
// an "id" string column and a "deleted" byte column.
func New[T Row](cfg config.StoreConfig, table Table[T], opts ...Option) (*Store[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: slog.Default(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(&o)
	}

	ids, err := table.StringColumn(types.IDColumn)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve id column: %w", err)
	}
	deleted, err := table.ByteColumn(types.DeletedColumn)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve deleted column: %w", err)
	}

	if err := snapshot.CleanupTemp(cfg.Path, o.logger); err != nil {
		return nil, err
	}

	journal, err := wal.Open[T](cfg.Path, table,
		wal.WithLogger(o.logger),
		wal.WithDiagnostics(cfg.Diagnostics),
	)
	if err != nil {
		return nil, err
	}

	s := &Store[T]{
		cfg:     cfg,
		table:   table,
		target:  index.Target[T]{Store: table, IDs: ids, Deleted: deleted},
		jr:      journal,
		seqN:    clock.NewAtomic(0),
		logger:  o.logger,
		metrics: o.metrics,
	}

	if err := s.restore(journal.Load()); err != nil {
		_ = journal.Close()
		return nil, err
	}

	return s, nil
}

// restore loads the snapshot and replays the commit log on top of it. Records
// already covered by the snapshot are skipped, so a crash between writing the
// snapshot and clearing the log replays nothing twice. If anything was
// replayed the result is flushed before the log is cleared.
func (s *Store[T]) restore(records iter.Seq2[delta.Delta[T], error]) error {
	start := time.Now()

	seq, found, err := snapshot.Read(s.cfg.Path, func(r io.Reader) error {
		return s.table.Load(r, s.cfg.LoadParallelism)
	})
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	s.ix = index.Rebuild(s.target)
	s.seqN.Set(seq)
	s.flushedSeq = seq

	var applied, skipped int
	for d, err := range records {
		if err != nil {
			return fmt.Errorf("failed to replay commit log: %w", err)
		}
		if d.Seq <= seq {
			skipped++
			continue
		}
		if err := index.Apply(s.target, s.ix, d); err != nil {
			return fmt.Errorf("failed to apply commit log record %d: %w: %v", d.Seq, dberrors.ErrCorrupt, err)
		}
		s.seqN.Advance(d.Seq)
		applied++
	}

	s.logger.Info("store restored",
		"path", s.cfg.Path,
		"snapshot", found,
		"rows", s.table.Size(),
		"live_ids", s.ix.Len(),
		"replayed", applied,
		"skipped", skipped,
		"duration", time.Since(start),
	)
	s.metrics.IncCounter(metrics.ReplayedRecords, nil, float64(applied))

	if applied > 0 {
		return s.flush()
	}
	if err := s.jr.Clear(); err != nil {
		return fmt.Errorf("failed to clear commit log: %w", err)
	}
	s.reportSize()

	return nil
}

// Select runs sel under the shared lock.
func (s *Store[T]) Select(sel Selector[T]) error {
	start := time.Now()

	err := s.read(sel)

	elapsed := time.Since(start)
	s.metrics.IncCounter(metrics.SelectsTotal, map[string]string{"status": status(err)}, 1)
	s.metrics.ObserveHistogram(metrics.SelectSeconds, nil, elapsed.Seconds())
	if s.cfg.Diagnostics {
		s.logger.Info("select", "duration", elapsed, "error", err)
	}

	return err
}

func (s *Store[T]) read(sel Selector[T]) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return sel.Select(&View[T]{table: s.table, ix: s.ix})
}

// Update computes one delta from mods, makes it durable and applies it. All
// modifiers see the index as it was before the call. When the commit log
// grows beyond the flush threshold the store is flushed before returning.
func (s *Store[T]) Update(mods ...Modifier[T]) error {
	start := time.Now()

	err := s.write(mods)

	elapsed := time.Since(start)
	s.metrics.IncCounter(metrics.UpdatesTotal, map[string]string{"status": status(err)}, 1)
	s.metrics.ObserveHistogram(metrics.UpdateSeconds, nil, elapsed.Seconds())
	if s.cfg.Diagnostics {
		s.logger.Info("update", "duration", elapsed, "modifiers", len(mods), "error", err)
	}

	return err
}

func (s *Store[T]) write(mods []Modifier[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	d := delta.New[T]()
	for _, m := range mods {
		m.Modify(s.ix, d)
	}
	for _, row := range d.Add {
		if row.RowID() == "" {
			return ErrEmptyRowID
		}
	}
	if err := index.Validate(s.target, *d); err != nil {
		return err
	}

	d.Seq = s.seqN.Next()
	if err := s.jr.Append(*d); err != nil {
		return fmt.Errorf("failed to append to commit log: %w", err)
	}
	if err := index.Apply(s.target, s.ix, *d); err != nil {
		return err
	}
	s.reportSize()

	if s.jr.Size() > s.cfg.FlushThreshold {
		return s.flush()
	}

	return nil
}

// Flush rewrites the snapshot with the whole table and clears the commit log.
func (s *Store[T]) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.flush()
}

func (s *Store[T]) flush() error {
	start := time.Now()
	seq := s.seqN.Val()

	n, err := snapshot.Write(s.cfg.Path, seq, s.table.Save)
	if err != nil {
		s.metrics.IncCounter(metrics.FlushesTotal, map[string]string{"status": status(err)}, 1)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	// a crash here leaves records <= seq in the log; restore skips them
	if err := s.jr.Clear(); err != nil {
		s.metrics.IncCounter(metrics.FlushesTotal, map[string]string{"status": status(err)}, 1)
		return fmt.Errorf("failed to clear commit log: %w", err)
	}

	s.flushedSeq = seq
	s.flushes++

	elapsed := time.Since(start)
	s.metrics.IncCounter(metrics.FlushesTotal, map[string]string{"status": status(nil)}, 1)
	s.metrics.ObserveHistogram(metrics.FlushSeconds, nil, elapsed.Seconds())
	s.metrics.SetGauge(metrics.SnapshotBytes, nil, float64(n))
	s.reportSize()
	if s.cfg.Diagnostics {
		s.logger.Info("flush",
			"seq", seq,
			"rows", s.table.Size(),
			"kb", n/1024,
			"duration", elapsed,
		)
	}

	return nil
}

// Get returns the newest live row stored under id.
func (s *Store[T]) Get(id types.RowID) (T, error) {
	var (
		row T
		ok  bool
	)
	err := s.Select(SelectorFunc[T](func(v *View[T]) error {
		row, ok = v.Get(id)
		return nil
	}))
	if err != nil {
		return row, err
	}
	if !ok {
		return row, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return row, nil
}

func (s *Store[T]) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Stats{}, ErrClosed
	}
	return Stats{
		Rows:           s.table.Size(),
		LiveIDs:        s.ix.Len(),
		CommitLogBytes: s.jr.Size(),
		Seq:            s.seqN.Val(),
		FlushedSeq:     s.flushedSeq,
		Flushes:        s.flushes,
	}, nil
}

// Close releases the commit log. Unflushed updates stay in the log and are
// replayed by the next New. Every later call returns ErrClosed.
func (s *Store[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.jr.Close(); err != nil {
		return fmt.Errorf("failed to close commit log: %w", err)
	}
	return nil
}

func (s *Store[T]) reportSize() {
	s.metrics.SetGauge(metrics.CommitLogBytes, nil, float64(s.jr.Size()))
	s.metrics.SetGauge(metrics.RowsTotal, nil, float64(s.table.Size()))
	s.metrics.SetGauge(metrics.LiveRows, nil, float64(s.ix.Len()))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
