package sysconn

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestListenAcceptConnectLoopback(t *testing.T) {
	ln, err := Listen(IPv4Addr([4]byte{127, 0, 0, 1}, 0))
	require.NoError(t, err)
	defer ln.Close()

	require.Equal(t, KindIPv4, ln.LocalAddr().Kind)
	require.NotZero(t, ln.LocalAddr().Port)

	dialed := make(chan error, 1)
	go func() {
		conn, err := net.Dial("tcp", ln.LocalAddr().String())
		if err == nil {
			defer conn.Close()
		}
		dialed <- err
	}()

	var accepted *Socket
	deadline := time.Now().Add(2 * time.Second)
	for accepted == nil {
		accepted, err = ln.Accept()
		if err != nil {
			if err == unix.EAGAIN {
				if time.Now().After(deadline) {
					t.Fatal("timed out waiting for accept")
				}
				time.Sleep(time.Millisecond)
				continue
			}
			t.Fatalf("accept: %v", err)
		}
	}
	defer accepted.Close()

	require.NoError(t, <-dialed)
	require.Equal(t, KindIPv4, accepted.RemoteAddr().Kind)
}

func TestSockAddrValidate(t *testing.T) {
	require.NoError(t, IPv4Addr([4]byte{127, 0, 0, 1}, 80).Validate())
	require.Error(t, SockAddr{Kind: KindIPv4, Port: -1}.Validate())
	require.Error(t, SockAddr{Kind: KindIPv4, Port: 70000}.Validate())

	longPath := make([]byte, 200)
	for i := range longPath {
		longPath[i] = 'a'
	}
	require.Error(t, UnixAddr(string(longPath)).Validate())
}

func TestResolveTCP(t *testing.T) {
	addr, err := ResolveTCP("127.0.0.1:8080")
	require.NoError(t, err)
	require.Equal(t, KindIPv4, addr.Kind)
	require.Equal(t, 8080, addr.Port)
}
