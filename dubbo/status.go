package dubbo

import "github.com/go-mesh/dubbo-client/internal/errs"

// ErrorKindFor maps a non-OK response status byte to the sentinel error
// kind named in the external status-code table.
func ErrorKindFor(status byte) error {
	switch status {
	case StatusClientTimeout, StatusServerTimeout:
		return errs.ErrRequestTimeout
	case StatusBadRequest, StatusBadResponse:
		return errs.ErrProtocol
	case StatusServiceNotFound, StatusServiceError, StatusServerError, StatusClientError:
		return errs.ErrRemoteApplication
	default:
		return errs.ErrRemoteResponse
	}
}
