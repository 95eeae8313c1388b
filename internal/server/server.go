// Package server implements the publicly reachable half of the
// tunnel: it accepts control connections from clients behind NAT,
// allocates a public port per tunnel, and splices accepted external
// connections back to the matching claimed data stream.
package server

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strawberryfoundations/tunneled/internal/broker"
	"github.com/strawberryfoundations/tunneled/internal/config"
	"github.com/strawberryfoundations/tunneled/internal/identity"
	"github.com/strawberryfoundations/tunneled/internal/netutil"
	"github.com/strawberryfoundations/tunneled/internal/protocol"
	"github.com/strawberryfoundations/tunneled/internal/secret"
)

// heartbeatInterval gates the accept loop's listener poll, so a
// vanished client is noticed within one beat.
const heartbeatInterval = 500 * time.Millisecond

// staleTunnelTTL mirrors broker.TTL: how long a parked external
// connection waits for its Accept before the janitor reclaims it.
const staleTunnelTTL = broker.TTL

// Server is the control-plane listener plus the state every accepted
// tunnel shares: the port range, optional authenticator, identity
// requirement, static-port whitelist, ip-blacklist, and the broker
// that hands parked connections to their claimers.
type Server struct {
	cfg       *config.ServerConfig
	auth      *secret.Authenticator
	blacklist *IPBlacklist
	allocator *PortAllocator
	identity  *identity.Client
	broker    *broker.Broker
	log       zerolog.Logger
}

// New builds a Server from a validated config.ServerConfig.
func New(cfg *config.ServerConfig, log zerolog.Logger) *Server {
	var auth *secret.Authenticator
	if cfg.Auth.Secret != "" {
		auth = secret.New(cfg.Auth.Secret)
	}
	return &Server{
		cfg:       cfg,
		auth:      auth,
		blacklist: NewIPBlacklist(cfg.Security.IPBlacklist),
		allocator: NewPortAllocator(cfg.Host.MinPort, cfg.Host.MaxPort),
		identity:  identity.New(),
		broker:    broker.New(log),
		log:       log,
	}
}

// Listen binds the control port and accepts connections until ln is
// closed or accept fails permanently.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host.TunnelsAddr, s.cfg.Host.ControlPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding control port: %w", err)
	}
	defer ln.Close()
	s.log.Info().Str("addr", addr).Msg("listening for control connections")

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		if s.blacklist.Blocked(conn.RemoteAddr()) {
			s.log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("rejected blacklisted peer")
			conn.Close()
			continue
		}
		go s.handleControl(conn)
	}
}

func (s *Server) handleControl(conn net.Conn) {
	netutil.TuneTCPConn(conn)
	stream := protocol.NewDelimited(conn)
	defer stream.Close()

	if s.auth != nil {
		if err := s.auth.ServerHandshake(stream); err != nil {
			s.log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("handshake failed")
			stream.Send(protocol.NewError(fmt.Sprintf("Handshake failed - %v", err)))
			return
		}
	}

	var msg protocol.ClientMessage
	ok, err := stream.RecvTimeout(&msg)
	if err != nil || !ok {
		return
	}

	switch {
	case msg.Authenticate != nil:
		s.log.Warn().Msg("unexpected Authenticate outside handshake")
	case msg.Hello != nil:
		s.handleHello(stream, msg.Hello)
	case msg.Accept != nil:
		s.handleAccept(stream, *msg.Accept)
	}
}

func (s *Server) handleHello(stream *protocol.Delimited, hello *protocol.HelloRequest) {
	if hello.Port != 0 && hello.StaticPort != nil {
		stream.Send(protocol.NewError("cannot request both a specific port and a static port"))
		return
	}

	verified, err := s.resolveIdentity(hello.Identity)
	if err != nil {
		stream.Send(protocol.NewError(err.Error()))
		return
	}

	ln, port, err := s.allocatePort(hello, verified)
	if err != nil {
		s.log.Warn().Err(err).Msg("port allocation failed")
		stream.Send(protocol.NewError(err.Error()))
		return
	}
	defer ln.Close()

	bindAddr := ln.Addr().(*net.TCPAddr).IP.String()
	if err := stream.Send(protocol.NewServerHello(bindAddr, port)); err != nil {
		return
	}

	s.log.Info().Uint16("port", port).Msg("tunnel established")
	s.acceptLoop(stream, ln)
}

func (s *Server) resolveIdentity(ident *protocol.Identity) (*identity.VerifiedIdentity, error) {
	if !s.cfg.Auth.RequireID {
		return nil, nil
	}
	if ident == nil {
		return nil, fmt.Errorf("This server requires a Strawberry ID")
	}
	verified, err := s.identity.Verify(ident.Username, ident.Token)
	if err != nil {
		return nil, fmt.Errorf("Invalid Strawberry ID")
	}
	return verified, nil
}

func (s *Server) allocatePort(hello *protocol.HelloRequest, verified *identity.VerifiedIdentity) (net.Listener, uint16, error) {
	bindAddr := s.cfg.Host.TunnelsAddr

	if hello.StaticPort != nil {
		if verified == nil || !s.cfg.CanUseStaticPort(verified.Email) {
			return nil, 0, fmt.Errorf("This feature is currently only available to whitelisted Strawberry ID users")
		}
		ln, err := s.allocator.BindStatic(bindAddr, *hello.StaticPort)
		if err != nil {
			return nil, 0, err
		}
		return ln, *hello.StaticPort, nil
	}

	if hello.Port != 0 {
		ln, err := s.allocator.BindRequested(bindAddr, hello.Port)
		if err != nil {
			return nil, 0, err
		}
		return ln, hello.Port, nil
	}

	return s.allocator.BindRandom(bindAddr)
}

// acceptLoop alternates heartbeats on the control stream with a
// bounded poll of the external listener, parking each new connection
// in the broker and announcing it over the control stream.
func (s *Server) acceptLoop(stream *protocol.Delimited, ln net.Listener) {
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return
	}
	for {
		if err := stream.Send(protocol.NewHeartbeat()); err != nil {
			return
		}
		tcpLn.SetDeadline(time.Now().Add(heartbeatInterval))
		conn, err := tcpLn.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}

		id := uuid.New()
		netutil.TuneTCPConn(conn)
		s.broker.Park(id, conn)
		s.log.Debug().Str("id", id.String()).Msg("parked external connection")

		if err := stream.Send(protocol.NewConnection(id)); err != nil {
			conn.Close()
			return
		}
	}
}

func (s *Server) handleAccept(stream *protocol.Delimited, id uuid.UUID) {
	conn, ok := s.broker.Claim(id)
	if !ok {
		s.log.Warn().Str("id", id.String()).Msg("missing connection")
		return
	}
	defer conn.Close()

	leftover, dataConn := stream.IntoParts()
	if len(leftover) > 0 {
		if _, err := conn.Write(leftover); err != nil {
			return
		}
	}
	netutil.Splice(dataConn, conn)
}
