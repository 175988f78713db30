package dubbo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-mesh/dubbo-client/hessian2"
)

func TestDecodeBodyNullValue(t *testing.T) {
	enc := hessian2.NewEncoder()
	require.NoError(t, enc.EncodeValue(hessian2.Int(int32(ResponseNullValue))))
	resp, err := DecodeBody(enc.Bytes())
	require.NoError(t, err)
	require.Equal(t, ResponseNullValue, resp.Flag)
	require.True(t, resp.Value.IsNull())
}

func TestDecodeBodyNormalValue(t *testing.T) {
	enc := hessian2.NewEncoder()
	require.NoError(t, enc.EncodeValue(hessian2.Int(int32(ResponseValue))))
	require.NoError(t, enc.EncodeValue(hessian2.String("pong")))
	resp, err := DecodeBody(enc.Bytes())
	require.NoError(t, err)
	require.Equal(t, ResponseValue, resp.Flag)
	require.Equal(t, "pong", resp.Value.AsString())
}

func TestDecodeBodyException(t *testing.T) {
	ex := hessian2.NewObject("java.lang.IllegalArgumentException").
		Set("cause", hessian2.String("bad arg")).
		Set("detailMessage", hessian2.String("argument out of range")).
		Set("stackTrace", hessian2.String("at Foo.bar"))

	enc := hessian2.NewEncoder()
	require.NoError(t, enc.EncodeValue(hessian2.Int(int32(ResponseWithException))))
	require.NoError(t, enc.EncodeValue(hessian2.ObjectValue(ex)))

	resp, err := DecodeBody(enc.Bytes())
	require.NoError(t, err)
	require.Equal(t, ResponseWithException, resp.Flag)

	re := AsRemoteException(resp.Value)
	require.Equal(t, "bad arg", re.Cause)
	require.Equal(t, "argument out of range", re.DetailMessage)
}

func TestDecodeErrorFrame(t *testing.T) {
	body, err := hessian2.Encode(hessian2.String("service not found: com.example.Missing"))
	require.NoError(t, err)
	text, err := DecodeError(body)
	require.NoError(t, err)
	require.Equal(t, "service not found: com.example.Missing", text)
}

func TestErrorKindFor(t *testing.T) {
	require.Error(t, ErrorKindFor(StatusClientTimeout))
	require.Error(t, ErrorKindFor(StatusServiceNotFound))
	require.Error(t, ErrorKindFor(StatusBadRequest))
}
