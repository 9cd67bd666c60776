package store

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutdb/pkg/columnar"
	"mutdb/pkg/config"
	"mutdb/pkg/dberrors"
	"mutdb/pkg/delta"
	"mutdb/pkg/index"
	"mutdb/pkg/metrics"
	"mutdb/pkg/snapshot"
	"mutdb/pkg/types"
	"mutdb/pkg/wal"
)

type account struct {
	ID      string `col:"id"`
	Deleted byte   `col:"deleted"`
	Amount  int64  `col:"amount"`
}

func (a account) RowID() types.RowID { return a.ID }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const noFlush = 1 << 40

func storeConfig(dir string, threshold int64) config.StoreConfig {
	cfg := config.DefaultStore(dir)
	cfg.FlushThreshold = threshold
	return cfg
}

func openStore(t *testing.T, dir string, threshold int64, opts ...Option) *Store[account] {
	t.Helper()

	tbl, err := columnar.New[account]()
	require.NoError(t, err)

	s, err := New[account](storeConfig(dir, threshold), tbl, append([]Option{WithLogger(quiet)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

type physical struct {
	rows  []account
	index map[string][]int
}

func dump(t *testing.T, s *Store[account]) physical {
	t.Helper()

	var p physical
	require.NoError(t, s.Select(SelectorFunc[account](func(v *View[account]) error {
		for pos := 0; pos < v.Size(); pos++ {
			p.rows = append(p.rows, v.Table().Row(pos))
		}
		p.index = make(map[string][]int)
		v.Index().Range(func(id string, offs []int) bool {
			p.index[id] = append([]int(nil), offs...)
			return true
		})
		return nil
	})))
	return p
}

func TestStore_UpdateSemantics(t *testing.T) {
	s := openStore(t, t.TempDir(), noFlush)

	require.NoError(t, s.Update(Upsert(account{ID: "1", Amount: 10})))
	require.NoError(t, s.Update(Upsert(account{ID: "1", Amount: 20})))

	p := dump(t, s)
	require.Len(t, p.rows, 2)
	assert.Equal(t, types.Deleted, p.rows[0].Deleted)
	assert.Equal(t, int64(10), p.rows[0].Amount)
	assert.Equal(t, types.Live, p.rows[1].Deleted)
	assert.Equal(t, int64(20), p.rows[1].Amount)
	assert.Equal(t, map[string][]int{"1": {1}}, p.index)

	row, err := s.Get("1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), row.Amount)
}

func TestStore_DeleteSemantics(t *testing.T) {
	s := openStore(t, t.TempDir(), noFlush)

	require.NoError(t, s.Update(Upsert(
		account{ID: "1", Amount: 1},
		account{ID: "2", Amount: 2},
	)))
	require.NoError(t, s.Update(Delete[account]("1", "unknown")))

	p := dump(t, s)
	require.Len(t, p.rows, 2)
	assert.Equal(t, types.Deleted, p.rows[0].Deleted)
	assert.Equal(t, types.Live, p.rows[1].Deleted)
	assert.Equal(t, map[string][]int{"2": {1}}, p.index)

	_, err := s.Get("1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, dberrors.ErrNotFound)

	// deleting only unknown ids changes nothing but is still accepted
	require.NoError(t, s.Update(Delete[account]("nobody")))
	assert.Equal(t, p, dump(t, s))
}

func TestStore_CrashDurability(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir, noFlush)
	require.NoError(t, s.Update(Upsert(account{ID: "a", Amount: 1}, account{ID: "b", Amount: 2})))
	require.NoError(t, s.Update(Upsert(account{ID: "a", Amount: 3}).Delete("b")))
	before := dump(t, s)

	// no flush: everything lives only in the commit log
	_, err := os.Stat(snapshot.Path(dir))
	require.True(t, os.IsNotExist(err))
	require.NoError(t, s.Close())

	reopened := openStore(t, dir, noFlush)
	assert.Equal(t, before, dump(t, reopened))

	stats, err := reopened.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.CommitLogBytes)
	assert.Equal(t, types.SeqN(2), stats.Seq)
	assert.Equal(t, types.SeqN(2), stats.FlushedSeq)

	// replayed state was flushed, so a second restart needs no log
	require.NoError(t, reopened.Close())
	again := openStore(t, dir, noFlush)
	assert.Equal(t, before, dump(t, again))
}

func TestStore_ThresholdFlush(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir, 0)
	require.NoError(t, s.Update(Upsert(account{ID: "x", Amount: 7})))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.CommitLogBytes)
	assert.Equal(t, uint64(1), stats.Flushes)

	tbl, err := columnar.New[account]()
	require.NoError(t, err)
	seq, found, err := snapshot.Read(dir, func(r io.Reader) error { return tbl.Load(r, 1) })
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, types.SeqN(1), seq)
	require.Equal(t, 1, tbl.Size())
	assert.Equal(t, account{ID: "x", Amount: 7}, tbl.Row(0))
}

func TestStore_BelowThresholdKeepsLog(t *testing.T) {
	s := openStore(t, t.TempDir(), noFlush)
	require.NoError(t, s.Update(Upsert(account{ID: "x"})))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Positive(t, stats.CommitLogBytes)
	assert.Zero(t, stats.Flushes)
}

func TestStore_ExplicitFlush(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir, noFlush)
	require.NoError(t, s.Update(Upsert(account{ID: "x", Amount: 1})))
	require.NoError(t, s.Flush())

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.CommitLogBytes)
	assert.Equal(t, types.SeqN(1), stats.FlushedSeq)

	info, err := os.Stat(filepath.Join(dir, wal.FileName))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestStore_RestartSkipsSoftDeletedRows(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir, noFlush)
	require.NoError(t, s.Update(Upsert(account{ID: "gone"}, account{ID: "kept"})))
	require.NoError(t, s.Update(Delete[account]("gone")))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())

	reopened := openStore(t, dir, noFlush)
	p := dump(t, reopened)
	require.Len(t, p.rows, 2)
	assert.Equal(t, types.Deleted, p.rows[0].Deleted)
	assert.Equal(t, map[string][]int{"kept": {1}}, p.index)

	// re-inserting the deleted id does not resurrect the old slot
	require.NoError(t, reopened.Update(Upsert(account{ID: "gone", Amount: 5})))
	p = dump(t, reopened)
	assert.Equal(t, []int{2}, p.index["gone"])
	assert.Equal(t, types.Deleted, p.rows[0].Deleted)
}

func TestStore_RecoveryAfterCrashBeforeLogClear(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, wal.FileName)

	s := openStore(t, dir, noFlush)
	require.NoError(t, s.Update(Upsert(account{ID: "a", Amount: 1})))
	require.NoError(t, s.Update(Upsert(account{ID: "a", Amount: 2}, account{ID: "b", Amount: 3})))
	want := dump(t, s)

	pending, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.NotEmpty(t, pending)

	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())

	// the snapshot was installed but the log was never truncated
	require.NoError(t, os.WriteFile(logPath, pending, 0600))

	reopened := openStore(t, dir, noFlush)
	assert.Equal(t, want, dump(t, reopened))

	// records written after the crash continue the sequence
	require.NoError(t, reopened.Update(Upsert(account{ID: "c"})))
	stats, err := reopened.Stats()
	require.NoError(t, err)
	assert.Equal(t, types.SeqN(3), stats.Seq)
}

func TestStore_TornLogTail(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir, noFlush)
	require.NoError(t, s.Update(Upsert(account{ID: "a", Amount: 1})))
	want := dump(t, s)
	require.NoError(t, s.Close())

	f, err := os.OpenFile(filepath.Join(dir, wal.FileName), os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x40, 0, 0, 0, 1, 2})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened := openStore(t, dir, noFlush)
	assert.Equal(t, want, dump(t, reopened))
}

func TestStore_CorruptLogFailsOpen(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir, noFlush)
	require.NoError(t, s.Update(Upsert(account{ID: "a", Amount: 1})))
	require.NoError(t, s.Close())

	path := filepath.Join(dir, wal.FileName)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0600))

	tbl, err := columnar.New[account]()
	require.NoError(t, err)
	_, err = New[account](storeConfig(dir, noFlush), tbl, WithLogger(quiet))
	assert.ErrorIs(t, err, dberrors.ErrCorrupt)
}

func TestStore_CorruptLengthMidLogFailsOpen(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir, noFlush)
	require.NoError(t, s.Update(Upsert(account{ID: "a", Amount: 1})))
	stats, err := s.Stats()
	require.NoError(t, err)
	second := stats.CommitLogBytes
	require.NoError(t, s.Update(Upsert(account{ID: "b", Amount: 2})))
	require.NoError(t, s.Update(Upsert(account{ID: "c", Amount: 3})))
	require.NoError(t, s.Close())

	path := filepath.Join(dir, wal.FileName)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// top bit of the second record's length
	raw[second+3] ^= 0x80
	require.NoError(t, os.WriteFile(path, raw, 0600))

	tbl, err := columnar.New[account]()
	require.NoError(t, err)
	_, err = New[account](storeConfig(dir, noFlush), tbl, WithLogger(quiet))
	assert.ErrorIs(t, err, dberrors.ErrCorrupt)

	// the log is left untouched
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, after)
}

func TestStore_IntraBatchVisibility(t *testing.T) {
	t.Run("delete does not see a row added in the same call", func(t *testing.T) {
		s := openStore(t, t.TempDir(), noFlush)

		require.NoError(t, s.Update(
			Upsert(account{ID: "new", Amount: 1}),
			Delete[account]("new"),
		))

		row, err := s.Get("new")
		require.NoError(t, err)
		assert.Equal(t, int64(1), row.Amount)
	})

	t.Run("two upserts of one id both stay live", func(t *testing.T) {
		s := openStore(t, t.TempDir(), noFlush)
		require.NoError(t, s.Update(Upsert(account{ID: "a", Amount: 1})))

		require.NoError(t, s.Update(
			Upsert(account{ID: "a", Amount: 2}),
			Upsert(account{ID: "a", Amount: 3}),
		))

		p := dump(t, s)
		require.Len(t, p.rows, 3)
		assert.Equal(t, types.Deleted, p.rows[0].Deleted)
		assert.Equal(t, []int{1, 2}, p.index["a"])

		row, err := s.Get("a")
		require.NoError(t, err)
		assert.Equal(t, int64(3), row.Amount)
	})

	t.Run("upsert and delete of an existing id delete it once", func(t *testing.T) {
		s := openStore(t, t.TempDir(), noFlush)
		require.NoError(t, s.Update(Upsert(account{ID: "a", Amount: 1})))

		require.NoError(t, s.Update(
			Delete[account]("a"),
			Upsert(account{ID: "a", Amount: 2}),
		))

		p := dump(t, s)
		require.Len(t, p.rows, 2)
		assert.Equal(t, map[string][]int{"a": {1}}, p.index)
	})
}

func TestStore_CompositeAddsVerbatim(t *testing.T) {
	s := openStore(t, t.TempDir(), noFlush)
	require.NoError(t, s.Update(Upsert(account{ID: "a"}, account{ID: "b"})))

	require.NoError(t, s.Update(Modify([]types.RowID{"b"}, []account{{ID: "a", Amount: 9}})))

	p := dump(t, s)
	assert.Equal(t, map[string][]int{"a": {0, 2}}, p.index)
	assert.Equal(t, types.Deleted, p.rows[1].Deleted)
}

func TestStore_AddedRowsAreLive(t *testing.T) {
	s := openStore(t, t.TempDir(), noFlush)

	require.NoError(t, s.Update(Upsert(account{ID: "a", Deleted: types.Deleted})))

	p := dump(t, s)
	assert.Equal(t, types.Live, p.rows[0].Deleted)
	assert.Equal(t, map[string][]int{"a": {0}}, p.index)
}

func TestStore_RejectsInvalidDeltas(t *testing.T) {
	s := openStore(t, t.TempDir(), noFlush)
	require.NoError(t, s.Update(Upsert(account{ID: "a"})))
	before := dump(t, s)
	stats, err := s.Stats()
	require.NoError(t, err)

	err = s.Update(ModifierFunc[account](func(_ *index.Index, d *delta.Delta[account]) {
		d.DeleteOffsets(5)
	}))
	assert.ErrorIs(t, err, dberrors.ErrInvalidArgument)

	err = s.Update(Upsert(account{ID: ""}))
	assert.ErrorIs(t, err, ErrEmptyRowID)

	after, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, stats.CommitLogBytes, after.CommitLogBytes)
	assert.Equal(t, before, dump(t, s))
}

type noDeletedColumn struct {
	ID     string `col:"id"`
	Amount int64  `col:"amount"`
}

func (r noDeletedColumn) RowID() types.RowID { return r.ID }

type intID struct {
	ID      int64 `col:"id"`
	Deleted byte  `col:"deleted"`
}

func (r intID) RowID() types.RowID { return strconv.FormatInt(r.ID, 10) }

func TestNew_SchemaErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing deleted column", func(t *testing.T) {
		tbl, err := columnar.New[noDeletedColumn]()
		require.NoError(t, err)

		s, err := New[noDeletedColumn](storeConfig(dir, noFlush), tbl, WithLogger(quiet))
		assert.ErrorIs(t, err, dberrors.ErrSchema)
		assert.Nil(t, s)
	})

	t.Run("id column of the wrong kind", func(t *testing.T) {
		tbl, err := columnar.New[intID]()
		require.NoError(t, err)

		s, err := New[intID](storeConfig(dir, noFlush), tbl, WithLogger(quiet))
		assert.ErrorIs(t, err, dberrors.ErrSchema)
		assert.Nil(t, s)
	})

	_, err := os.Stat(filepath.Join(dir, wal.FileName))
	assert.True(t, os.IsNotExist(err), "no files are created for a rejected schema")
}

func TestNew_InvalidConfig(t *testing.T) {
	tbl, err := columnar.New[account]()
	require.NoError(t, err)

	_, err = New[account](config.StoreConfig{}, tbl)
	assert.ErrorIs(t, err, dberrors.ErrInvalidArgument)
}

func TestStore_Closed(t *testing.T) {
	s := openStore(t, t.TempDir(), noFlush)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Update(Upsert(account{ID: "a"})), ErrClosed)
	assert.ErrorIs(t, s.Flush(), ErrClosed)
	assert.ErrorIs(t, s.Select(SelectorFunc[account](func(*View[account]) error { return nil })), dberrors.ErrClosed)
	_, err := s.Stats()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Get("a")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStore_UpdateWaitsForReaders(t *testing.T) {
	s := openStore(t, t.TempDir(), noFlush)

	entered := make(chan struct{})
	release := make(chan struct{})
	readDone := make(chan error, 1)
	go func() {
		readDone <- s.Select(SelectorFunc[account](func(v *View[account]) error {
			close(entered)
			<-release
			if _, ok := v.Get("a"); ok {
				return errors.New("update visible under a held read lock")
			}
			return nil
		}))
	}()
	<-entered

	updated := make(chan error, 1)
	go func() {
		updated <- s.Update(Upsert(account{ID: "a", Amount: 1}))
	}()

	select {
	case err := <-updated:
		t.Fatalf("update finished while a reader held the lock: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-readDone)

	select {
	case err := <-updated:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("update did not finish after the reader released the lock")
	}

	row, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.Amount)
}

func TestStore_ConcurrentSelects(t *testing.T) {
	s := openStore(t, t.TempDir(), 4096)

	const writers, readers, rounds = 2, 8, 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				id := strconv.Itoa(i % 10)
				assert.NoError(t, s.Update(Upsert(account{ID: id, Amount: int64(w*rounds + i)})))
			}
		}(w)
	}

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				err := s.Select(SelectorFunc[account](func(v *View[account]) error {
					// every indexed offset must point at a live row with that id
					var bad int
					v.Index().Range(func(id string, offs []int) bool {
						for _, off := range offs {
							row := v.Table().Row(off)
							if row.ID != id || row.Deleted != types.Live {
								bad++
							}
						}
						return true
					})
					assert.Zero(t, bad)
					return nil
				}))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, writers*rounds, stats.Rows)
	assert.Equal(t, 10, stats.LiveIDs)
	assert.Equal(t, types.SeqN(writers*rounds), stats.Seq)
}

func TestStore_EndToEnd(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir, 2048)
	for i := 0; i < 100; i++ {
		require.NoError(t, s.Update(Upsert(account{ID: strconv.Itoa(i), Amount: int64(i)})))
	}

	var evens []types.RowID
	for i := 0; i < 100; i += 2 {
		evens = append(evens, strconv.Itoa(i))
	}
	require.NoError(t, s.Update(Delete[account](evens...)))

	for i := 1; i < 100; i += 2 {
		require.NoError(t, s.Update(Upsert(account{ID: strconv.Itoa(i), Amount: int64(i * 2)})))
	}

	check := func(s *Store[account]) {
		t.Helper()

		var live []account
		require.NoError(t, s.Select(SelectorFunc[account](func(v *View[account]) error {
			return v.Scan([]columnar.Predicate{LiveOnly()}, func(_ types.Offset, row account) bool {
				live = append(live, row)
				return true
			})
		})))
		require.Len(t, live, 50)
		for _, row := range live {
			n, err := strconv.Atoi(row.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, n%2)
			assert.Equal(t, int64(n*2), row.Amount)
		}

		var big []string
		require.NoError(t, s.Select(SelectorFunc[account](func(v *View[account]) error {
			return v.Scan([]columnar.Predicate{
				LiveOnly(),
				columnar.Int64Between("amount", 190, 1000),
			}, func(_ types.Offset, row account) bool {
				big = append(big, row.ID)
				return true
			})
		})))
		assert.ElementsMatch(t, []string{"95", "97", "99"}, big)

		stats, err := s.Stats()
		require.NoError(t, err)
		assert.Equal(t, 150, stats.Rows)
		assert.Equal(t, 50, stats.LiveIDs)
	}

	check(s)
	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Positive(t, stats.Flushes, "2 KiB threshold must have triggered flushes")
	require.NoError(t, s.Close())

	check(openStore(t, dir, 2048))
}

func TestStore_CompressedSnapshot(t *testing.T) {
	dir := t.TempDir()

	cfg := storeConfig(dir, noFlush)
	cfg.Compression = "zstd"

	tbl, err := columnar.New[account](columnar.WithCompression(cfg.Codec()))
	require.NoError(t, err)
	s, err := New[account](cfg, tbl, WithLogger(quiet))
	require.NoError(t, err)

	require.NoError(t, s.Update(Upsert(account{ID: "z", Amount: 42})))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())

	reopened := openStore(t, dir, noFlush)
	row, err := reopened.Get("z")
	require.NoError(t, err)
	assert.Equal(t, int64(42), row.Amount)
}

func TestStore_Metrics(t *testing.T) {
	prom := metrics.NewPrometheus("mutdb")
	s := openStore(t, t.TempDir(), noFlush, WithMetrics(prom))

	require.NoError(t, s.Update(Upsert(account{ID: "a"})))
	require.NoError(t, s.Update(Upsert(account{ID: "b"})))
	require.NoError(t, s.Flush())
	_, err := s.Get("a")
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(prom.Registry(), "mutdb_"+metrics.UpdatesTotal, "mutdb_"+metrics.FlushesTotal)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mfs, err := prom.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "mutdb_"+metrics.RowsTotal {
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
}
