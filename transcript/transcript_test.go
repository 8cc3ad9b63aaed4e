package transcript

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAccumulatorOrderAndBlanks(t *testing.T) {
	var a Accumulator
	require.True(t, a.Append("hello world"))
	require.False(t, a.Append("   "))
	require.False(t, a.Append(""))
	require.True(t, a.Append(" testing one two three \n"))

	require.Equal(t, "hello world testing one two three", a.String())
	require.Equal(t, 2, a.Len())

	a.Reset()
	require.Empty(t, a.String())
	require.Zero(t, a.Len())
}

func TestAccumulatorConcurrentReads(t *testing.T) {
	var a Accumulator
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			a.Append("x")
		}
	}()
	for i := 0; i < 100; i++ {
		_ = a.String()
	}
	wg.Wait()
	require.Equal(t, 100, a.Len())
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Meeting":          "meeting",
		"Stand-up":         "stand-up",
		"1:1 with  Alex!":  "1-1-with-alex",
		"  ":               "notes",
		"Brainstorm/Ideas": "brainstorm-ideas",
	}
	for in, want := range tests {
		require.Equal(t, want, Slug(in), in)
	}
}

func TestStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")
	s := NewStore(dir)
	s.Now = func() time.Time { return time.Date(2026, 3, 4, 9, 5, 7, 0, time.Local) }

	path, err := s.Save("Stand-up", "we shipped it", "- shipped")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "2026-03-04_09-05-07_stand-up.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "Use Case: Stand-up\n" +
		"Date: 2026-03-04 09:05:07\n" +
		separator + "\n\n" +
		"TRANSCRIPT:\nwe shipped it\n\n" +
		separator + "\n\n" +
		"SUMMARY:\n- shipped\n"
	require.Equal(t, want, string(data))
}
