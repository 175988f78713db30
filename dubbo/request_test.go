package dubbo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-mesh/dubbo-client/hessian2"
)

func TestRequestEncodeBodyAttachments(t *testing.T) {
	req := NewRequest("com.example.Greeter", "1.0.0", "sayHello", []hessian2.Value{hessian2.String("world")})
	require.Equal(t, "com.example.Greeter", req.Attachments["path"])
	require.Equal(t, "com.example.Greeter", req.Attachments["interface"])
	require.Equal(t, "1.0.0", req.Attachments["version"])

	body, err := req.EncodeBody()
	require.NoError(t, err)
	require.NotEmpty(t, body)

	dec := hessian2.NewDecoder(body)
	dubboVersion, err := dec.DecodeValue()
	require.NoError(t, err)
	require.Equal(t, DubboVersion, dubboVersion.AsString())

	path, err := dec.DecodeValue()
	require.NoError(t, err)
	require.Equal(t, "com.example.Greeter", path.AsString())

	version, err := dec.DecodeValue()
	require.NoError(t, err)
	require.Equal(t, "1.0.0", version.AsString())

	method, err := dec.DecodeValue()
	require.NoError(t, err)
	require.Equal(t, "sayHello", method.AsString())

	descriptor, err := dec.DecodeValue()
	require.NoError(t, err)
	require.Equal(t, "Ljava/lang/String;", descriptor.AsString())

	arg, err := dec.DecodeValue()
	require.NoError(t, err)
	require.Equal(t, "world", arg.AsString())

	attachments, err := dec.DecodeValue()
	require.NoError(t, err)
	require.Equal(t, hessian2.KindMap, attachments.Kind)
	require.Equal(t, "interface", attachments.MapVal[0].Key.AsString())
}
