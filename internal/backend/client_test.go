package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolverPassesThroughIPLiterals(t *testing.T) {
	r := newResolver()

	ip, err := r.resolve("203.0.113.7")
	require.NoError(t, err)
	require.Equal(t, "203.0.113.7", ip)
}

func TestNewClientBuildsExpectedURL(t *testing.T) {
	c := NewClient("backend.networknext.com")
	require.Equal(t, "https://backend.networknext.com/relay/report", c.url)
}
