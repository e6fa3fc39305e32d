package ioloop

import (
	"context"
	"testing"
	"time"

	"github.com/coopnet/httpcore/internal/poller"
	"github.com/coopnet/httpcore/internal/sysconn"
	"github.com/stretchr/testify/require"
)

func newLoopbackPair(t *testing.T) (*Conn, *Conn, poller.Pool) {
	t.Helper()
	p, err := poller.New()
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	ln, err := sysconn.Listen(sysconn.IPv4Addr([4]byte{127, 0, 0, 1}, 0))
	require.NoError(t, err)
	lnConn := New(ln, p)

	clientSock, err := sysconn.Connect(ln.LocalAddr())
	require.NoError(t, err)
	client := New(clientSock, p)

	acceptCh := make(chan *Conn, 1)
	go func() {
		srv, err := lnConn.Accept(context.Background())
		require.NoError(t, err)
		acceptCh <- srv
	}()

	// drive the non-blocking connect to completion
	require.NoError(t, p.Suspend(context.Background(), clientSock.FD(), poller.Writable, time.Time{}))
	require.NoError(t, clientSock.SOError())

	server := <-acceptCh
	t.Cleanup(func() {
		client.Close()
		server.Close()
		lnConn.Close()
	})
	return client, server, p
}

func TestWriteAllAndReadFull(t *testing.T) {
	client, server, _ := newLoopbackPair(t)
	ctx := context.Background()

	payload := []byte("hello, suspend-based world")
	done := make(chan error, 1)
	go func() { done <- client.WriteAll(ctx, payload) }()

	got, err := server.ReadFull(ctx, len(payload))
	require.NoError(t, err)
	require.NoError(t, <-done)
	require.Equal(t, payload, got)
}

func TestStreamYieldsChunksUntilClose(t *testing.T) {
	client, server, _ := newLoopbackPair(t)
	ctx := context.Background()

	go func() {
		client.WriteAll(ctx, []byte("abc"))
		client.Close()
	}()

	stream := server.Stream(ctx)
	var got []byte
	for chunk := range stream.Chunks {
		got = append(got, chunk...)
	}
	require.NoError(t, stream.Err())
	require.Equal(t, "abc", string(got))
}

func TestReadByteEOFOnClose(t *testing.T) {
	client, server, _ := newLoopbackPair(t)
	client.Close()

	_, err := server.ReadByte(context.Background())
	require.Error(t, err)
}
