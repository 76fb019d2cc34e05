package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresExactlyOneDisposition(t *testing.T) {
	pattern := RequestPattern{Path: "/x", Method: "GET"}

	_, err := New("", pattern, nil, nil)
	require.ErrorIs(t, err, ErrMissingDisposition)

	resp := &MockResponse{Status: 200}
	proxy := &ProxyTarget{URL: "http://example.com"}
	_, err = New("", pattern, resp, proxy)
	require.ErrorIs(t, err, ErrAmbiguousDisposition)
}

func TestNew_AssignsIDWhenEmpty(t *testing.T) {
	pattern := RequestPattern{Path: "/x", Method: "get"}
	r, err := New("", pattern, &MockResponse{Status: 200}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "GET", r.Pattern.Method)
}

func TestNew_PreservesGivenID(t *testing.T) {
	pattern := RequestPattern{Path: "/x", Method: "GET"}
	r, err := New("custom-id", pattern, &MockResponse{Status: 200}, nil)
	require.NoError(t, err)
	assert.Equal(t, "custom-id", r.ID)
}

func TestIsMockIsProxy(t *testing.T) {
	pattern := RequestPattern{Path: "/x", Method: "GET"}

	mockRule, err := New("", pattern, &MockResponse{Status: 200}, nil)
	require.NoError(t, err)
	assert.True(t, mockRule.IsMock())
	assert.False(t, mockRule.IsProxy())

	proxyRule, err := New("", pattern, nil, &ProxyTarget{URL: "http://example.com"})
	require.NoError(t, err)
	assert.True(t, proxyRule.IsProxy())
	assert.False(t, proxyRule.IsMock())
}

func TestListCounts(t *testing.T) {
	pattern := RequestPattern{Path: "/x", Method: "GET"}
	mockRule, _ := New("", pattern, &MockResponse{Status: 200}, nil)
	proxyRule, _ := New("", pattern, nil, &ProxyTarget{URL: "http://example.com"})

	list := List{mockRule, proxyRule}
	total, mocks, proxies := list.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, mocks)
	assert.Equal(t, 1, proxies)
}
