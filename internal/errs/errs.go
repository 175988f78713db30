// Package errs defines the named error kinds from the error-handling
// design: protocol errors, remote response/application errors, hessian
// type errors, request timeouts and registry errors. Each is a sentinel
// compared with errors.Is; call sites wrap it with context via Wrap so
// the sentinel survives the hop between the pool's reader goroutine and
// the blocked caller.
package errs

import (
	perrors "github.com/pkg/errors"
)

// Sentinel error kinds, one per spec.md §7 entry.
var (
	// ErrProtocol: malformed frame — bad magic, negative length, short
	// read on an abandoned connection. Fatal to the connection.
	ErrProtocol = perrors.New("dubbo: protocol error")

	// ErrRemoteResponse: header status != 20. Surfaced to the specific
	// caller; the connection remains usable.
	ErrRemoteResponse = perrors.New("dubbo: remote response error")

	// ErrRemoteApplication: response flag == 0, i.e. the provider's
	// method threw. Carries the decoded exception's cause and
	// detailMessage, plus its stackTrace when that field decodes as a
	// string.
	ErrRemoteApplication = perrors.New("dubbo: remote application error")

	// ErrHessianType: encoder couldn't map a value, or decoder hit an
	// opcode inconsistent with its context.
	ErrHessianType = perrors.New("dubbo: hessian type error")

	// ErrRequestTimeout: no response within the caller's timeout.
	ErrRequestTimeout = perrors.New("dubbo: request timeout")

	// ErrRegistry: no providers, weight computation failure, or the
	// coordination service is unavailable.
	ErrRegistry = perrors.New("dubbo: registry error")
)

// Wrap attaches context to a sentinel kind while keeping it matchable
// with errors.Is(err, kind).
func Wrap(kind error, format string, args ...interface{}) error {
	return perrors.Wrapf(kind, format, args...)
}

// WithStack is a thin re-export so call sites outside this package
// don't need to import pkg/errors directly just to attach a trace to an
// I/O error before logging it.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return perrors.WithStack(err)
}
