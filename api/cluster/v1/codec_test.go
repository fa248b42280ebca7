package clusterv1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec_WireFormat(t *testing.T) {
	codec := JSONCodec{}
	assert.Equal(t, "json", codec.Name())

	data, err := codec.Marshal(&ReloadRequest{InitiatingNodeID: "node-a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"initiating_node_id":"node-a"}`, string(data))

	var resp ReloadResponse
	require.NoError(t, codec.Unmarshal([]byte(`{"responding_node_id":"node-b"}`), &resp))
	assert.Equal(t, "node-b", resp.RespondingNodeID)
}

func TestJSONCodec_EmptyBody(t *testing.T) {
	var req ReloadRequest
	require.NoError(t, JSONCodec{}.Unmarshal(nil, &req))
	assert.Empty(t, req.InitiatingNodeID)
}

func TestJSONCodec_Malformed(t *testing.T) {
	var req ReloadRequest
	err := JSONCodec{}.Unmarshal([]byte(`{"initiating_node_id":`), &req)
	assert.Error(t, err)
}
