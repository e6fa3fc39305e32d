package httpmsg

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplayBufferRewindReplaysPrefix(t *testing.T) {
	body := newFixedBody(newByteSource("hello world"), 11)
	rb := NewReplayBuffer(body, 1024)
	ctx := context.Background()

	buf := make([]byte, 5)
	n, err := rb.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))

	require.NoError(t, rb.Rewind())

	var got []byte
	for {
		n, err := rb.Read(ctx, buf)
		got = append(got, buf[:n]...)
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
	}
	require.Equal(t, "hello world", string(got))
}

func TestReplayBufferRewindTwiceErrors(t *testing.T) {
	body := newFixedBody(newByteSource("abc"), 3)
	rb := NewReplayBuffer(body, 1024)
	require.NoError(t, rb.Rewind())
	require.Error(t, rb.Rewind())
}

func TestReplayBufferCapsRecording(t *testing.T) {
	body := newFixedBody(newByteSource("abcdefgh"), 8)
	rb := NewReplayBuffer(body, 4)
	ctx := context.Background()
	buf := make([]byte, 8)
	_, err := rb.Read(ctx, buf)
	require.NoError(t, err)
	require.Len(t, rb.Recorded(), 4)
}
