package dubbo

import (
	"sort"

	"github.com/go-mesh/dubbo-client/hessian2"
	"github.com/go-mesh/dubbo-client/internal/errs"
)

// DubboVersion is the protocol version string every request body
// carries as its first Hessian value.
const DubboVersion = "2.0.0"

// Request is the structured record for one RPC call, per §3: dubbo
// version, target service, method, positional arguments, and string
// attachments (always carrying at least path/interface/version).
type Request struct {
	ServicePath    string
	ServiceVersion string
	Method         string
	Arguments      []hessian2.Value
	Attachments    map[string]string
}

// NewRequest builds a Request with the mandatory attachments populated.
func NewRequest(servicePath, serviceVersion, method string, args []hessian2.Value) *Request {
	r := &Request{
		ServicePath:    servicePath,
		ServiceVersion: serviceVersion,
		Method:         method,
		Arguments:      args,
		Attachments:    map[string]string{},
	}
	r.Attachments["path"] = servicePath
	r.Attachments["interface"] = servicePath
	r.Attachments["version"] = serviceVersion
	return r
}

// EncodeBody composes the Hessian-2 request body per §4.1.10:
// dubbo_version, path, version, method, argument-type descriptor,
// arguments in order, then the attachments map — all sharing one
// encoder's class/type interning tables.
func (r *Request) EncodeBody() ([]byte, error) {
	descriptor, err := hessian2.ArgumentDescriptor(r.Arguments)
	if err != nil {
		return nil, errs.WithStack(err)
	}

	enc := hessian2.NewEncoder()
	values := []hessian2.Value{
		hessian2.String(DubboVersion),
		hessian2.String(r.ServicePath),
		hessian2.String(r.ServiceVersion),
		hessian2.String(r.Method),
		hessian2.String(descriptor),
	}
	values = append(values, r.Arguments...)
	for _, v := range values {
		if err := enc.EncodeValue(v); err != nil {
			return nil, errs.WithStack(err)
		}
	}
	if err := enc.EncodeValue(attachmentsValue(r.Attachments)); err != nil {
		return nil, errs.WithStack(err)
	}
	return enc.Bytes(), nil
}

// attachmentsValue renders a string->string map as a sorted Hessian map,
// so the same attachment set always produces identical bytes.
func attachmentsValue(attachments map[string]string) hessian2.Value {
	keys := make([]string, 0, len(attachments))
	for k := range attachments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]hessian2.MapEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, hessian2.MapEntry{
			Key:   hessian2.String(k),
			Value: hessian2.String(attachments[k]),
		})
	}
	return hessian2.MapOf(entries...)
}
