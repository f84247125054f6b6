package proxy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManagerRotates(t *testing.T) {
	m := NewManager([]string{"http://p1:8000", "http://p2:8000"}, []string{"ua-1", "ua-2", "ua-3"})

	require.Equal(t, "http://p1:8000", m.GetProxy())
	require.Equal(t, "http://p2:8000", m.GetProxy())
	require.Equal(t, "http://p1:8000", m.GetProxy())

	require.Equal(t, "ua-1", m.GetUserAgent())
	require.Equal(t, "ua-2", m.GetUserAgent())
	require.Equal(t, "ua-3", m.GetUserAgent())
	require.Equal(t, "ua-1", m.GetUserAgent())
}

func TestManagerDefaults(t *testing.T) {
	m := NewManager(nil, nil)
	require.Equal(t, "", m.GetProxy())
	require.Equal(t, DefaultUserAgents[0], m.GetUserAgent())
}
