package server

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/strawberryfoundations/tunneled/internal/config"
	"github.com/strawberryfoundations/tunneled/internal/protocol"
)

func itoa(port uint16) string { return strconv.Itoa(int(port)) }

func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

func startTestServer(t *testing.T, cfg *config.ServerConfig) uint16 {
	t.Helper()
	cfg.Host.ControlPort = freePort(t)
	cfg.Host.TunnelsAddr = "127.0.0.1"
	require.NoError(t, cfg.Validate())

	srv := New(cfg, zerolog.Nop())
	go srv.Listen() //nolint:errcheck
	time.Sleep(50 * time.Millisecond)
	return cfg.Host.ControlPort
}

func TestServer_HelloAllocatesRandomPortWithinRange(t *testing.T) {
	cfg := &config.ServerConfig{Host: config.HostConfig{MinPort: 20500, MaxPort: 20550}}
	controlPort := startTestServer(t, cfg)

	conn, err := net.Dial("tcp", "127.0.0.1:"+itoa(controlPort))
	require.NoError(t, err)
	defer conn.Close()
	stream := protocol.NewDelimited(conn)

	require.NoError(t, stream.Send(protocol.NewClientHello(protocol.HelloRequest{})))

	var reply protocol.ServerMessage
	ok, err := stream.RecvTimeout(&reply)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, reply.Hello)
	require.GreaterOrEqual(t, reply.Hello.Port, cfg.Host.MinPort)
	require.LessOrEqual(t, reply.Hello.Port, cfg.Host.MaxPort)
}

func TestServer_RejectsSimultaneousPortFields(t *testing.T) {
	cfg := &config.ServerConfig{Host: config.HostConfig{MinPort: 20600, MaxPort: 20650}}
	controlPort := startTestServer(t, cfg)

	conn, err := net.Dial("tcp", "127.0.0.1:"+itoa(controlPort))
	require.NoError(t, err)
	defer conn.Close()
	stream := protocol.NewDelimited(conn)

	staticPort := uint16(20601)
	require.NoError(t, stream.Send(protocol.NewClientHello(protocol.HelloRequest{Port: 20602, StaticPort: &staticPort})))

	var reply protocol.ServerMessage
	ok, err := stream.RecvTimeout(&reply)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, reply.Error)
}

func TestServer_ClaimAndSpliceRoundTrips(t *testing.T) {
	cfg := &config.ServerConfig{Host: config.HostConfig{MinPort: 20700, MaxPort: 20750}}
	controlPort := startTestServer(t, cfg)

	helloConn, err := net.Dial("tcp", "127.0.0.1:"+itoa(controlPort))
	require.NoError(t, err)
	defer helloConn.Close()
	helloStream := protocol.NewDelimited(helloConn)

	require.NoError(t, helloStream.Send(protocol.NewClientHello(protocol.HelloRequest{})))
	var reply protocol.ServerMessage
	ok, err := helloStream.RecvTimeout(&reply)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, reply.Hello)
	tunnelPort := reply.Hello.Port

	extConn, err := net.Dial("tcp", "127.0.0.1:"+itoa(tunnelPort))
	require.NoError(t, err)
	defer extConn.Close()

	var connMsg protocol.ServerMessage
	for {
		ok, err := helloStream.RecvTimeout(&connMsg)
		require.NoError(t, err)
		require.True(t, ok)
		if connMsg.Connection != nil {
			break
		}
	}
	id := *connMsg.Connection

	acceptConn, err := net.Dial("tcp", "127.0.0.1:"+itoa(controlPort))
	require.NoError(t, err)
	defer acceptConn.Close()
	acceptStream := protocol.NewDelimited(acceptConn)
	require.NoError(t, acceptStream.Send(protocol.NewAccept(id)))

	_, err = extConn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	acceptConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = acceptConn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))
}
