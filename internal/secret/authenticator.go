// Package secret implements the shared-secret challenge-response
// authentication run on every control and data stream.
package secret

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/strawberryfoundations/tunneled/internal/protocol"
)

// AuthKind classifies why a handshake failed.
type AuthKind int

const (
	// AuthTimeout means the peer did not answer within protocol.NetworkTimeout.
	AuthTimeout AuthKind = iota
	// AuthUnexpected means the peer sent a message other than the one expected
	// at this point in the handshake.
	AuthUnexpected
	// AuthMismatch means an Authenticate tag did not match the expected HMAC.
	AuthMismatch
)

func (k AuthKind) String() string {
	switch k {
	case AuthTimeout:
		return "timeout"
	case AuthUnexpected:
		return "unexpected message"
	case AuthMismatch:
		return "tag mismatch"
	default:
		return "unknown"
	}
}

// AuthError reports a handshake failure.
type AuthError struct {
	Kind AuthKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("handshake failed - %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("handshake failed - %s", e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Authenticator derives an HMAC key from a shared secret and drives the
// two-message challenge-response handshake over a framed stream.
type Authenticator struct {
	key [sha256.Size]byte
}

// New derives the authenticator's key from secret.
func New(secret string) *Authenticator {
	return &Authenticator{key: sha256.Sum256([]byte(secret))}
}

// Tag computes the lowercase-hex HMAC-SHA256 of input under the derived key.
func (a *Authenticator) Tag(input string) string {
	mac := hmac.New(sha256.New, a.key[:])
	mac.Write([]byte(input))
	return hex.EncodeToString(mac.Sum(nil))
}

// ServerHandshake runs the server half: send a fresh challenge, expect a
// matching Authenticate reply within the network timeout.
func (a *Authenticator) ServerHandshake(stream *protocol.Delimited) error {
	challenge := uuid.New()
	if err := stream.Send(protocol.NewChallenge(challenge)); err != nil {
		return fmt.Errorf("send challenge: %w", err)
	}

	var msg protocol.ClientMessage
	ok, err := stream.RecvTimeout(&msg)
	if err != nil {
		if isTimeout(err) {
			return &AuthError{Kind: AuthTimeout, Err: err}
		}
		return &AuthError{Kind: AuthUnexpected, Err: err}
	}
	if !ok || msg.Authenticate == nil {
		return &AuthError{Kind: AuthUnexpected}
	}

	expected := a.Tag(challenge.String())
	if !hmac.Equal([]byte(expected), []byte(*msg.Authenticate)) {
		return &AuthError{Kind: AuthMismatch}
	}
	return nil
}

// ClientHandshake runs the client half: expect a Challenge within the
// network timeout, answer with the matching Authenticate tag.
func (a *Authenticator) ClientHandshake(stream *protocol.Delimited) error {
	var msg protocol.ServerMessage
	ok, err := stream.RecvTimeout(&msg)
	if err != nil {
		if isTimeout(err) {
			return &AuthError{Kind: AuthTimeout, Err: err}
		}
		return &AuthError{Kind: AuthUnexpected, Err: err}
	}
	if !ok || msg.Challenge == nil {
		return &AuthError{Kind: AuthUnexpected}
	}

	tag := a.Tag(msg.Challenge.String())
	if err := stream.Send(protocol.NewAuthenticate(tag)); err != nil {
		return fmt.Errorf("send authenticate: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	var ferr *protocol.FrameError
	if !errors.As(err, &ferr) {
		return false
	}
	return ferr.Kind == protocol.FrameTimeout
}
