package cs104

import "errors"

var (
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("connection config is nil")

	// ErrServerConfigNil indicates that a nil ServerConfig was provided.
	ErrServerConfigNil = errors.New("server config is nil")

	// ErrConnClosed indicates that the connection is closed.
	ErrConnClosed = errors.New("connection closed")

	// ErrClosedByUser is the close cause stored when Close was called.
	ErrClosedByUser = errors.New("connection closed by user")

	// ErrNotActive indicates that data transfer is not started on the link.
	ErrNotActive = errors.New("data transfer not active")

	// ErrTaskPanic is the close cause when a handler or decoder panicked on a connection
	// goroutine.
	ErrTaskPanic = errors.New("connection task panicked")
)

var (
	// ErrResponseTimeout indicates that the peer did not confirm a command within the
	// response timeout.
	ErrResponseTimeout = errors.New("response timeout")

	// ErrNegativeConfirmation indicates that the peer rejected a command with a negative
	// confirmation.
	ErrNegativeConfirmation = errors.New("negative confirmation")

	// ErrConfirmationPending indicates a command for the same type, common address and
	// object address that still awaits its confirmation.
	ErrConfirmationPending = errors.New("confirmation already pending")
)

var (
	// ErrServerClosed is returned by Serve and ListenAndServe after Close.
	ErrServerClosed = errors.New("server closed")

	// ErrServerRunning indicates a second call of Serve on a running server.
	ErrServerRunning = errors.New("server already running")

	// ErrNotAllowed is the rejection reason for a remote address outside the allow list.
	ErrNotAllowed = errors.New("remote address not allowed")

	// ErrTooManyConnections is the rejection reason when the connection limit is reached.
	ErrTooManyConnections = errors.New("too many connections")
)
