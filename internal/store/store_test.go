package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hashprng/prng"
)

func snapshot(name string, pool ...byte) Snapshot {
	return Snapshot{
		Config: PoolConfig{Name: name, Hash: "sha256", CounterBits: 16, PoolBytes: len(pool)},
		State:  prng.State{Pool: pool, Counter: 7},
	}
}

func fixedClock(s *Store) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return at }
}

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	require.Empty(t, s.List())
	require.Empty(t, s.Journal(""))
}

func TestRecordPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Open(path)
	require.NoError(t, err)
	fixedClock(s)

	_, err = s.Record(snapshot("b", 1, 2), OpCreate, nil)
	require.NoError(t, err)
	_, err = s.Record(snapshot("a", 3, 4), OpCreate, nil)
	require.NoError(t, err)
	e, err := s.Record(snapshot("a", 5, 6), OpSeed, []byte{5, 6})
	require.NoError(t, err)
	require.Equal(t, 2, e.Index)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Open(path)
	require.NoError(t, err)
	list := again.List()
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].Config.Name)
	require.Equal(t, []byte{5, 6}, list[0].State.Pool)
	require.Equal(t, uint64(7), list[0].State.Counter)

	got, err := again.Get("b")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, got.State.Pool)

	_, err = again.Get("zzz")
	require.ErrorIs(t, err, ErrNotFound)

	require.Len(t, again.Journal(""), 3)
	require.Len(t, again.Journal("a"), 2)
	require.NoError(t, again.Verify())
}

func TestJournalHidesData(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	e, err := s.Record(snapshot("a", 1), OpEntropy, []byte("secret"))
	require.NoError(t, err)
	// sha256("secret")
	require.Equal(t, "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b", e.DataHash)
	require.Empty(t, e.PrevHash)

	e2, err := s.Record(snapshot("a", 2), OpSeed, nil)
	require.NoError(t, err)
	require.Equal(t, e.Hash, e2.PrevHash)
}

func TestVerifyDetectsTampering(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Record(snapshot("a", byte(i)), OpSeed, []byte{byte(i)})
		require.NoError(t, err)
	}
	require.NoError(t, s.Verify())

	s.journal[1].Op = OpEntropy
	require.ErrorIs(t, s.Verify(), ErrBrokenChain)

	s.journal[1].Op = OpSeed
	require.NoError(t, s.Verify())
	s.journal[2].PrevHash = "00"
	s.journal[2].Hash = entryHash(s.journal[2])
	require.ErrorIs(t, s.Verify(), ErrBrokenChain)
}

func TestUpdateDoesNotJournal(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	fixedClock(s)
	s.Update(snapshot("a", 9))
	require.Empty(t, s.Journal(""))
	got, err := s.Get("a")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got.SavedAt)
}

func TestOpenCorruptMovesAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrCorrupt)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	s, err := Open(path)
	require.NoError(t, err)
	require.Empty(t, s.List())
}

func TestConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 32*50)
	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Update(snapshot(fmt.Sprintf("p%02d", g), byte(i)))
				if err := s.Save(); err != nil {
					errs <- err
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	again, err := Open(path)
	require.NoError(t, err)
	list := again.List()
	require.Len(t, list, 32)
	for _, snap := range list {
		require.Equal(t, []byte{49}, snap.State.Pool, snap.Config.Name)
	}
	leftovers, err := filepath.Glob(path + ".tmp-*")
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestRecordRollsBackOnWriteFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "store.json")
	require.NoError(t, os.Mkdir(filepath.Dir(path), 0o700))
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Record(snapshot("a", 1), OpCreate, nil)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Dir(path)))
	_, err = s.Record(snapshot("a", 2), OpSeed, []byte{2})
	require.Error(t, err)
	_, err = s.Record(snapshot("b", 3), OpCreate, nil)
	require.Error(t, err)

	got, err := s.Get("a")
	require.NoError(t, err)
	require.Equal(t, []byte{1}, got.State.Pool)
	_, err = s.Get("b")
	require.ErrorIs(t, err, ErrNotFound)
	require.Len(t, s.Journal(""), 1)
	require.NoError(t, s.Verify())

	require.NoError(t, os.Mkdir(filepath.Dir(path), 0o700))
	e, err := s.Record(snapshot("b", 3), OpCreate, nil)
	require.NoError(t, err)
	require.Equal(t, 1, e.Index)
	require.NoError(t, s.Verify())
}
