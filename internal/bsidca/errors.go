package bsidca

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteCall marks a failed RPC against a session that was live when
	// the call started.
	ErrRemoteCall = errors.New("remote call failed")
	// ErrNotAuthenticated is returned by Dial when Connect is refused.
	ErrNotAuthenticated = errors.New("backend refused operator credentials")
)

type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bsidca %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteCall
}

// Fault is a SOAP fault returned by the backend.
type Fault struct {
	Code   string
	String string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.String)
}

func remoteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}
