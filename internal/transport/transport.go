// Package transport defines the abstract boundary between the market-data
// core and the concrete bidirectional message channel. The core (dispatch,
// session) only ever sees this interface; internal/transport/ws supplies
// the concrete implementation over gorilla/websocket.
package transport

// Transport delivers an opaque payload to a named destination. Delivery is
// best-effort: implementations must not block indefinitely and should drop
// rather than stall the caller when a destination is congested.
type Transport interface {
	// Send broadcasts payload to every session subscribed to a shared
	// destination (a /topic/... destination).
	Send(destination string, payload []byte) error

	// SendToSession delivers payload to a single session's user-prefixed
	// queue (e.g. /queue/subscription under the /user destination
	// prefix). Unknown sessions are a silent no-op, not an error.
	SendToSession(sessionID, destination string, payload []byte) error
}

// Authenticator maps a connection's bearer credential to a resolved user
// identity, or rejects the connection. It is invoked once at connect time;
// its result becomes part of the session identity used by the lifecycle.
type Authenticator interface {
	Authenticate(bearerToken string) (userID string, err error)
}

// AuthError is returned by an Authenticator when the token is missing,
// malformed, or fails verification.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "transport: authentication failed: " + e.Reason
}
