package executor

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/armaan1620/tsh/internal/errors"
	"github.com/armaan1620/tsh/internal/parser"
)

func newTestLauncher(t *testing.T) *Launcher {
	t.Helper()
	l := New(nil)
	// Keep the test binary's own streams out of the children.
	l.Stdin = nil
	l.Stdout = nil
	return l
}

func mustParse(t *testing.T, line string) *parser.Pipeline {
	t.Helper()
	p, err := parser.Parse(line)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

// reap waits for every member of g and returns their statuses, leader first.
func reap(t *testing.T, g *Group) []unix.WaitStatus {
	t.Helper()
	statuses := make([]unix.WaitStatus, len(g.Pids))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, pid := range g.Pids {
			_, _ = unix.Wait4(pid, &statuses[i], 0, nil)
		}
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		g.abandon()
		t.Fatal("pipeline did not finish")
	}
	return statuses
}

func assertNoChildren(t *testing.T) {
	t.Helper()
	_, err := unix.Wait4(-1, nil, unix.WNOHANG, nil)
	assert.ErrorIs(t, err, unix.ECHILD)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd:", err)
	}
	return len(entries)
}

func TestLaunchSingleStage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	g, err := newTestLauncher(t).Launch(context.Background(), mustParse(t, "/bin/echo hi 'there  you' > "+out))
	require.NoError(t, err)
	require.Len(t, g.Pids, 1)
	assert.Equal(t, g.PGID, g.Pids[0])

	statuses := reap(t, g)
	assert.True(t, statuses[0].Exited())
	assert.Equal(t, 0, statuses[0].ExitStatus())
	assert.Equal(t, "hi there  you\n", readFile(t, out))
}

func TestLaunchInputRedirect(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(in, []byte("c\na\nb\n"), 0o644))

	g, err := newTestLauncher(t).Launch(context.Background(), mustParse(t, "sort < "+in+" > "+out))
	require.NoError(t, err)
	reap(t, g)
	assert.Equal(t, "a\nb\nc\n", readFile(t, out))
}

func TestLaunchPipelineSharesOneGroup(t *testing.T) {
	g, err := newTestLauncher(t).Launch(context.Background(), mustParse(t, "sleep 5 | sleep 5 | sleep 5"))
	require.NoError(t, err)
	require.Len(t, g.Pids, 3)
	assert.Equal(t, g.PGID, g.Pids[0])

	for _, pid := range g.Pids {
		pgid, err := unix.Getpgid(pid)
		require.NoError(t, err)
		assert.Equal(t, g.PGID, pgid, "pid %d", pid)
	}
	assert.NotEqual(t, unix.Getpgrp(), g.PGID)

	require.NoError(t, unix.Kill(-g.PGID, unix.SIGINT))
	for _, status := range reap(t, g) {
		assert.True(t, status.Signaled())
		assert.Equal(t, unix.SIGINT, status.Signal())
	}
}

func TestLaunchConnectsStages(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(in, []byte("foo 1\nbar\nfoo 2\nbaz foo\n"), 0o644))

	line := "cat < " + in + " | grep foo | sort -r | head -n 2 > " + out
	g, err := newTestLauncher(t).Launch(context.Background(), mustParse(t, line))
	require.NoError(t, err)
	require.Len(t, g.Pids, 4)

	for _, status := range reap(t, g) {
		assert.True(t, status.Exited())
	}
	assert.Equal(t, "foo 2\nfoo 1\n", readFile(t, out))
}

func TestLaunchDoesNotLeakDescriptors(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	before := openFDs(t)

	g, err := newTestLauncher(t).Launch(context.Background(), mustParse(t, "echo a | cat | cat | wc -l > "+out))
	require.NoError(t, err)
	// Every pipe end has been handed to a child and closed in the parent, so
	// the last stage sees end of file.
	reap(t, g)

	assert.Equal(t, before, openFDs(t))
	assert.Contains(t, readFile(t, out), "1")
}

func TestLaunchCommandNotFound(t *testing.T) {
	t.Run("leader", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out")
		g, err := newTestLauncher(t).Launch(context.Background(), mustParse(t, "/no/such/program -x | cat > "+out))
		require.NoError(t, err)
		require.Len(t, g.Pids, 1)

		pgid, err := unix.Getpgid(g.Pids[0])
		require.NoError(t, err)
		assert.Equal(t, g.PGID, pgid)

		reap(t, g)
		assert.Equal(t, "/no/such/program: Command not found\n", readFile(t, out))
	})

	t.Run("middle stage", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out")
		g, err := newTestLauncher(t).Launch(context.Background(), mustParse(t, "echo hi | /no/such/program | cat > "+out))
		require.NoError(t, err)
		require.Len(t, g.Pids, 2)
		reap(t, g)
		assert.Equal(t, "/no/such/program: Command not found\n", readFile(t, out))
	})

	t.Run("every stage", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out")
		g, err := newTestLauncher(t).Launch(context.Background(), mustParse(t, "/no/such/program > "+out))
		assert.Nil(t, g)
		var notFound *errors.CommandNotFoundError
		require.True(t, errors.As(err, &notFound))
		assert.Equal(t, "/no/such/program", notFound.Path)
		assert.Equal(t, "/no/such/program: Command not found\n", readFile(t, out))
		assertNoChildren(t)
	})
}

func TestLaunchMissingInputStartsNothing(t *testing.T) {
	before := openFDs(t)
	g, err := newTestLauncher(t).Launch(context.Background(), mustParse(t, "cat < /no/such/file | wc -l"))
	assert.Nil(t, g)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assertNoChildren(t)
	assert.Equal(t, before, openFDs(t))
}

func TestLaunchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := newTestLauncher(t).Launch(ctx, mustParse(t, "sleep 5"))
	assert.Nil(t, g)
	assert.ErrorIs(t, err, context.Canceled)
	assertNoChildren(t)
}

func TestLaunchBackgroundReadsDevNull(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	out := filepath.Join(t.TempDir(), "out")
	l := newTestLauncher(t)
	// A foreground cat would block on this pipe forever.
	l.Stdin = r

	g, err := l.Launch(context.Background(), mustParse(t, "cat > "+out+" &"))
	require.NoError(t, err)
	reap(t, g)
	assert.Empty(t, readFile(t, out))
}

func TestReadiness(t *testing.T) {
	r := newReadiness()
	assert.False(t, r.ready())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go r.signal(42, nil)
	pgid, err := r.wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, pgid)
	assert.True(t, r.ready())

	r.signal(7, io.EOF)
	pgid, err = r.wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 42, pgid)
}

func TestHandles(t *testing.T) {
	h := &handles{}
	r, w, err := os.Pipe()
	require.NoError(t, err)
	h.own(r)
	h.own(w)
	assert.True(t, h.owns(r))
	assert.Equal(t, 2, h.count())

	require.NoError(t, h.release(w))
	assert.False(t, h.owns(w))
	assert.Equal(t, 1, h.count())

	// Releasing twice, or a file that isn't owned, leaves it alone.
	require.NoError(t, h.release(w))
	require.NoError(t, h.release(os.Stdout))
	_, err = os.Stdout.Stat()
	assert.NoError(t, err)

	require.NoError(t, h.closeAll())
	assert.Equal(t, 0, h.count())
	_, err = r.Stat()
	assert.Error(t, err)
}

// ready reports whether signal has been called.
func (r *readiness) ready() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (h *handles) owns(f *os.File) bool {
	return f != nil && slices.Contains(h.owned, f)
}

func (h *handles) count() int {
	return len(h.owned)
}
