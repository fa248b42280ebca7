package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloadTrigger_Validate(t *testing.T) {
	require.NoError(t, NewReloadTrigger("node-a").Validate())

	err := ReloadTrigger{}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTrigger))
}

func TestClusterOutcome(t *testing.T) {
	outcome := ClusterOutcome{
		ClusterName: "prod",
		Nodes: []NodeOutcome{
			{RespondingNodeID: "node-a"},
			{RespondingNodeID: "node-b"},
		},
		Failures: []NodeFailure{
			NewNodeFailure("node-c", ErrPeerUnreachable.WithDetails("dial tcp: i/o timeout")),
		},
	}

	assert.True(t, outcome.HasFailures())
	assert.Equal(t, []string{"node-a", "node-b"}, outcome.SucceededNodeIDs())
	assert.Equal(t, []string{"node-c"}, outcome.FailedNodeIDs())

	f, ok := outcome.Failure("node-c")
	require.True(t, ok)
	assert.Equal(t, "TM-CLUSTER-5031", f.Code)
	assert.Contains(t, f.Cause, "i/o timeout")

	_, ok = outcome.Failure("node-a")
	assert.False(t, ok)
	assert.False(t, ClusterOutcome{}.HasFailures())
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{Name: "  "})
	_, ok = PrincipalFromContext(ctx)
	assert.False(t, ok, "blank principal must not count as an identity")

	want := Principal{Name: "CN=admin,O=Example", Source: SourceCertificate}
	got, ok := PrincipalFromContext(WithPrincipal(context.Background(), want))
	require.True(t, ok)
	assert.Equal(t, want, got)
}
