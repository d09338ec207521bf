package signing

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	sig := s.Sign("b1/zip", 1700000000)
	require.NotEmpty(t, sig)

	assert.True(t, s.Validate("b1/zip", "1700000000", sig))
	assert.False(t, s.Validate("b1/pdf", "1700000000", sig), "wrong resource")
	assert.False(t, s.Validate("b1/zip", "42", sig), "wrong expiry")
	assert.False(t, s.Validate("b1/zip", "soon", sig), "unparseable expiry")
	assert.False(t, NewSigner([]byte("other")).Validate("b1/zip", "1700000000", sig), "wrong secret")
}

func TestURLRoundTrip(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	now := time.Unix(1700000000, 0)
	link := s.URL("/download", "b1/pdf", now.Add(time.Minute))
	require.True(t, strings.HasPrefix(link, "/download?"))

	u, err := url.Parse(link)
	require.NoError(t, err)

	resource, err := s.Verify(u.Query(), now)
	require.NoError(t, err)
	assert.Equal(t, "b1/pdf", resource)

	_, err = s.Verify(u.Query(), now.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrExpired)

	q := u.Query()
	q.Set("resource", "b2/pdf")
	_, err = s.Verify(q, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = s.Verify(url.Values{}, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
