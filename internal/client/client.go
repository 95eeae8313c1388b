// Package client implements the half of the tunnel that runs behind
// NAT: it dials the server's control port, requests a tunnel, and for
// every external connection the server announces, opens a second data
// connection back to the server and splices it to the local target.
package client

import (
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strawberryfoundations/tunneled/internal/identity"
	"github.com/strawberryfoundations/tunneled/internal/netutil"
	"github.com/strawberryfoundations/tunneled/internal/protocol"
	"github.com/strawberryfoundations/tunneled/internal/secret"
)

// Config describes the tunnel a Client requests. Label is used only
// for logging (compose mode runs several clients side by side and
// tags each with its service name).
type Config struct {
	LocalHost   string
	LocalPort   uint16
	ServerHost  string
	ControlPort uint16
	Secret      string
	StaticPort  *uint16
	RequireID   bool
	Label       string
}

// Client runs one tunnel's control connection and fans out per-connection
// data handlers as the server announces them.
type Client struct {
	cfg      Config
	auth     *secret.Authenticator
	identity *identity.Client
	log      zerolog.Logger
}

// New builds a Client from cfg.
func New(cfg Config, log zerolog.Logger) *Client {
	var auth *secret.Authenticator
	if cfg.Secret != "" {
		auth = secret.New(cfg.Secret)
	}
	if cfg.Label != "" {
		log = log.With().Str("service", cfg.Label).Logger()
	}
	return &Client{cfg: cfg, auth: auth, identity: identity.New(), log: log}
}

func (c *Client) controlAddr() string {
	return fmt.Sprintf("%s:%d", c.cfg.ServerHost, c.cfg.ControlPort)
}

// Run dials the server, establishes the tunnel, and blocks in the
// listen loop until the control connection ends.
func (c *Client) Run() error {
	conn, err := net.DialTimeout("tcp", c.controlAddr(), protocol.NetworkTimeout)
	if err != nil {
		return fmt.Errorf("dialing control server: %w", err)
	}
	defer conn.Close()
	netutil.TuneTCPConn(conn)
	stream := protocol.NewDelimited(conn)

	if c.auth != nil {
		if err := c.auth.ClientHandshake(stream); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
	}

	ident := c.resolveIdentity()
	if err := stream.Send(protocol.NewClientHello(protocol.HelloRequest{
		Port:       0,
		Identity:   ident,
		StaticPort: c.cfg.StaticPort,
	})); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	var reply protocol.ServerMessage
	ok, err := stream.RecvTimeout(&reply)
	if err != nil {
		return fmt.Errorf("recv hello reply: %w", err)
	}
	switch {
	case !ok:
		return fmt.Errorf("server closed connection before replying")
	case reply.Error != nil:
		return fmt.Errorf("server rejected hello: %s", *reply.Error)
	case reply.Challenge != nil:
		return fmt.Errorf("server requires authentication, but no client secret was provided")
	case reply.Hello == nil:
		return fmt.Errorf("unexpected reply to hello: %s", reply.Tag())
	}

	c.log.Info().Str("addr", reply.Hello.Addr).Uint16("port", reply.Hello.Port).Msg("tunnel established")
	return c.listenLoop(stream)
}

// resolveIdentity reads the local credentials file when the tunnel is
// configured to require one. A read failure (most commonly: no
// credentials.yml yet) downgrades to no identity rather than failing
// the tunnel outright — verification happens server-side.
func (c *Client) resolveIdentity() *protocol.Identity {
	if !c.cfg.RequireID {
		return nil
	}
	creds, err := identity.Load()
	if err != nil {
		return nil
	}
	return &protocol.Identity{Username: creds.Username, Token: creds.Token}
}

func (c *Client) listenLoop(stream *protocol.Delimited) error {
	for {
		var msg protocol.ServerMessage
		ok, err := stream.Recv(&msg)
		if err != nil {
			return fmt.Errorf("control stream error: %w", err)
		}
		if !ok {
			return nil
		}
		switch {
		case msg.Heartbeat:
		case msg.Connection != nil:
			go c.handleConnection(*msg.Connection)
		case msg.Error != nil:
			c.log.Error().Str("message", *msg.Error).Msg("server reported an error")
		case msg.Hello != nil, msg.Challenge != nil:
			c.log.Warn().Str("tag", msg.Tag()).Msg("unexpected message on established tunnel")
		}
	}
}

func (c *Client) handleConnection(id uuid.UUID) {
	conn, err := net.DialTimeout("tcp", c.controlAddr(), protocol.NetworkTimeout)
	if err != nil {
		c.log.Error().Err(err).Msg("dialing server for data connection")
		return
	}
	netutil.TuneTCPConn(conn)
	stream := protocol.NewDelimited(conn)

	if c.auth != nil {
		if err := c.auth.ClientHandshake(stream); err != nil {
			c.log.Error().Err(err).Msg("data connection handshake")
			conn.Close()
			return
		}
	}
	if err := stream.Send(protocol.NewAccept(id)); err != nil {
		c.log.Error().Err(err).Msg("sending accept")
		conn.Close()
		return
	}

	local, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", c.cfg.LocalHost, c.cfg.LocalPort), protocol.NetworkTimeout)
	if err != nil {
		c.log.Error().Err(err).Msg("dialing local target")
		conn.Close()
		return
	}
	netutil.TuneTCPConn(local)

	leftover, dataConn := stream.IntoParts()
	if len(leftover) > 0 {
		if _, err := local.Write(leftover); err != nil {
			dataConn.Close()
			local.Close()
			return
		}
	}
	netutil.Splice(dataConn, local)
}
