package domain

import "strings"

// ChannelType selects which certificate material a reload targets.
type ChannelType string

const (
	// ChannelHTTP is the client-facing REST channel.
	ChannelHTTP ChannelType = "http"

	// ChannelTransport is the inter-node cluster channel.
	ChannelTransport ChannelType = "transport"
)

// ChannelTypes returns all channel types.
func ChannelTypes() []ChannelType {
	return []ChannelType{ChannelHTTP, ChannelTransport}
}

// ParseChannelType parses a channel selector such as a URL path segment.
// Matching ignores case and surrounding whitespace.
func ParseChannelType(s string) (ChannelType, error) {
	switch ChannelType(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelHTTP:
		return ChannelHTTP, nil
	case ChannelTransport:
		return ChannelTransport, nil
	default:
		return "", ErrInvalidChannelType.WithDetails("got " + strings.TrimSpace(s))
	}
}

// IsValid reports whether c is a known channel type.
func (c ChannelType) IsValid() bool {
	return c == ChannelHTTP || c == ChannelTransport
}

// SupportsDisconnect reports whether the disconnect choreography applies.
// Only inter-node connections are torn down; HTTP clients reconnect on their own.
func (c ChannelType) SupportsDisconnect() bool {
	return c == ChannelTransport
}

// String implements fmt.Stringer.
func (c ChannelType) String() string {
	return string(c)
}
