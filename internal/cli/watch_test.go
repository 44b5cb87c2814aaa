package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/morph/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for a writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFileWatcher_Debounce(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.json", `{"n":0}`)
	writeFile(t, dir, "other.json", `{}`)

	w, err := newFileWatcher(path, 50*time.Millisecond, testutil.DiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func() { calls.Add(1) }) }()

	for i := 1; i <= 3; i++ {
		writeFile(t, dir, "doc.json", `{"n":1}`)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// other files in the directory are ignored
	writeFile(t, dir, "other.json", `{"x":1}`)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestFileWatcher_MissingDir(t *testing.T) {
	_, err := newFileWatcher(filepath.Join(t.TempDir(), "missing", "doc.json"), time.Millisecond, testutil.DiscardLogger())
	assert.Error(t, err)
}

func runWatchCommand(t *testing.T, ctx context.Context, args ...string) (out, errOut *syncBuffer, done chan error) {
	t.Helper()
	out, errOut = &syncBuffer{}, &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"watch", "--verbose", "--debounce", "20ms"}, args...))
	done = make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(errOut.String()), []byte("Watching"))
	}, 2*time.Second, 10*time.Millisecond)
	return out, errOut, done
}

func TestWatchCommand_Diff(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.json", `{"tags":["a"]}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, _, done := runWatchCommand(t, ctx, path)

	require.NoError(t, os.WriteFile(path, []byte(`{"tags":["a","b"]}`), 0644))
	require.Eventually(t, func() bool {
		return out.String() == "append  tags [\"b\"]\n"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchCommand_Journal(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.json", `{"n":1}`)
	db := filepath.Join(dir, "morph.db")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, _, done := runWatchCommand(t, ctx, "--db", db, "--stream", "doc", path)
	assert.Equal(t, "Created stream doc.\n", out.String())

	require.NoError(t, os.WriteFile(path, []byte(`{"n":2}`), 0644))
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Recorded doc seq 1: 1 leaves"))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	replayed, err := executeCommand(t, "replay", "--db", db, "--stream", "doc")
	require.NoError(t, err)
	assert.Equal(t, `{"n":2}`+"\n", replayed)
}
