package dubbo

import (
	"github.com/go-mesh/dubbo-client/hessian2"
	"github.com/go-mesh/dubbo-client/internal/errs"
)

// ResponseFlag is the single byte leading a normal response body, per
// §4.1.11.
type ResponseFlag byte

const (
	ResponseWithException ResponseFlag = 0
	ResponseValue         ResponseFlag = 1
	ResponseNullValue     ResponseFlag = 2
)

// Response is the decoded result of a call: either a value (possibly
// null) or a domain error built from the server's exception object.
type Response struct {
	Flag  ResponseFlag
	Value hessian2.Value
}

// DecodeBody parses a normal response body (status == StatusOK) per
// §4.1.11: a leading flag byte, then — for flag 1 — exactly one encoded
// value, for flag 0 — one typed exception object, for flag 2 — nothing.
func DecodeBody(body []byte) (Response, error) {
	if len(body) == 0 {
		return Response{}, errs.Wrap(errs.ErrRemoteResponse, "empty response body")
	}
	dec := hessian2.NewDecoder(body)
	flagVal, err := dec.DecodeValue()
	if err != nil {
		return Response{}, errs.WithStack(err)
	}
	flag := ResponseFlag(flagVal.AsInt32())

	switch flag {
	case ResponseNullValue:
		return Response{Flag: flag, Value: hessian2.Null()}, nil
	case ResponseValue:
		v, err := dec.DecodeValue()
		if err != nil {
			return Response{}, errs.WithStack(err)
		}
		return Response{Flag: flag, Value: v}, nil
	case ResponseWithException:
		v, err := dec.DecodeValue()
		if err != nil {
			return Response{}, errs.WithStack(err)
		}
		return Response{Flag: flag, Value: v}, nil
	default:
		return Response{}, errs.Wrap(errs.ErrRemoteResponse, "unrecognized response flag %d", flag)
	}
}

// DecodeError parses an error-frame body (header status != StatusOK):
// a single encoded string naming the status text.
func DecodeError(body []byte) (string, error) {
	v, err := hessian2.Decode(body)
	if err != nil {
		return "", errs.WithStack(err)
	}
	return v.AsString(), nil
}

// RemoteException extracts the cause/detailMessage/stackTrace fields an
// exception object carries, per §3's Response description.
type RemoteException struct {
	Cause          string
	DetailMessage  string
	StackTrace     string
}

// AsRemoteException reads the well-known fields off a decoded exception
// object. Missing fields are left as the zero value; providers vary in
// which of the three they actually populate.
func AsRemoteException(v hessian2.Value) RemoteException {
	var ex RemoteException
	if v.Kind != hessian2.KindObject || v.ObjectVal == nil {
		return ex
	}
	if f, ok := v.ObjectVal.Get("cause"); ok {
		ex.Cause = f.AsString()
	}
	if f, ok := v.ObjectVal.Get("detailMessage"); ok {
		ex.DetailMessage = f.AsString()
	}
	if f, ok := v.ObjectVal.Get("stackTrace"); ok {
		ex.StackTrace = f.AsString()
	}
	return ex
}
