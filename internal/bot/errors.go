package bot

import "fmt"

// ConnectError marks a bot whose connection attempt failed. The run
// continues without it.
type ConnectError struct {
	Err error
}

func (e ConnectError) Error() string { return fmt.Sprintf("connect: %v", e.Err) }
func (e ConnectError) Unwrap() error { return e.Err }

// ProtocolError marks a malformed or unexpected server message. The
// affected bot is taken out of the run; nothing else is.
type ProtocolError struct {
	Err error
}

func (e ProtocolError) Error() string { return fmt.Sprintf("protocol: %v", e.Err) }
func (e ProtocolError) Unwrap() error { return e.Err }

// DisconnectError marks a connection dropped mid-run.
type DisconnectError struct {
	Err error
}

func (e DisconnectError) Error() string { return fmt.Sprintf("disconnected: %v", e.Err) }
func (e DisconnectError) Unwrap() error { return e.Err }
