package poller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestSuspendWakesOnReadable(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	a, b := socketpair(t)

	done := make(chan error, 1)
	go func() {
		done <- p.Suspend(context.Background(), a, Readable, time.Time{})
	}()

	time.Sleep(20 * time.Millisecond) // let Suspend register before we write
	_, err = unix.Write(b, []byte("x"))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("suspend never woke")
	}
}

func TestSuspendTimesOut(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	a, _ := socketpair(t)

	err = p.Suspend(context.Background(), a, Readable, time.Now().Add(30*time.Millisecond))
	require.Error(t, err)
}

func TestSuspendCancelledByContext(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	a, _ := socketpair(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Suspend(ctx, a, Readable, time.Time{})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("suspend never returned after cancel")
	}
}

func TestCloseWakesAllWaiters(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	a, _ := socketpair(t)
	done := make(chan error, 1)
	go func() {
		done <- p.Suspend(context.Background(), a, Readable, time.Time{})
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Close())

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("suspend never returned after pool close")
	}
}
