package domain

// Inbound is one raw request frame read from a registered session.
type Inbound struct {
	Session string
	ConnID  string
	Frame   string
}

// Connection is the outbound side of a session.
type Connection interface {
	ID() string
	RemoteAddr() string
	Send(data []byte) error
	Close() error
}

// Transport is a Connection that can also be read from. Acknowledge writes
// the short handshake reply.
type Transport interface {
	Connection
	Receive() ([]byte, error)
	Acknowledge(data []byte) error
}

// Registry is the view of the session directory that the dispatcher acts on.
type Registry interface {
	SendTo(name string, data []byte) error
	Broadcast(data []byte) error
	Remove(name string) error
}
