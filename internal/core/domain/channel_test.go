package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannelType(t *testing.T) {
	tests := []struct {
		in      string
		want    ChannelType
		wantErr bool
	}{
		{in: "http", want: ChannelHTTP},
		{in: "HTTP", want: ChannelHTTP},
		{in: " transport ", want: ChannelTransport},
		{in: "Transport", want: ChannelTransport},
		{in: "", wantErr: true},
		{in: "grpc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChannelType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidChannelType))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelType_SupportsDisconnect(t *testing.T) {
	assert.False(t, ChannelHTTP.SupportsDisconnect())
	assert.True(t, ChannelTransport.SupportsDisconnect())
	assert.False(t, ChannelType("grpc").IsValid())
	assert.Len(t, ChannelTypes(), 2)
}
