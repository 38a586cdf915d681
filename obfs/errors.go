package obfs

// OpError is returned by Conn when the underlying stream fails. Once a Conn
// has returned an OpError its keystreams may be out of step with the peer and
// the connection should be discarded.
type OpError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *OpError) Error() string {
	return "obfs " + e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}
