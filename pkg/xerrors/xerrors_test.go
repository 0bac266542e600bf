package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesOnKindOnly(t *testing.T) {
	err := Wrap(HTTPError, "fetch failed", errors.New("boom")).With("status", "500")
	assert.True(t, errors.Is(err, Sentinel(HTTPError)))
	assert.False(t, errors.Is(err, Sentinel(SSLError)))
}

func TestKindOfReturnsOutermostKind(t *testing.T) {
	inner := New(CacheIO, "disk write")
	outer := Wrap(ConversionFailed, "serialize", inner)

	kind, ok := KindOf(outer)
	assert.True(t, ok)
	assert.Equal(t, ConversionFailed, kind)
}

func TestKindOfReturnsFalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWithDoesNotMutateOriginal(t *testing.T) {
	base := New(ParsingFailed, "bad html")
	derived := base.With("url", "https://x.test")

	assert.Empty(t, base.Context)
	assert.Equal(t, "https://x.test", derived.Context["url"])
}

func TestWithAccumulatesKeysAcrossCalls(t *testing.T) {
	err := New(ElementNotFound, "missing title").With("url", "https://x.test").With("selector", "h1")
	assert.Equal(t, "https://x.test", err.Context["url"])
	assert.Equal(t, "h1", err.Context["selector"])
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(NetworkTimeout, "timed out", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorStringIncludesKindAndMessage(t *testing.T) {
	err := New(ConfigInvalid, "rps out of range")
	s := err.Error()
	assert.Contains(t, s, "CONFIG_INVALID")
	assert.Contains(t, s, "rps out of range")
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CacheIO, "write output file", errors.New("disk full"))
	assert.Contains(t, err.Error(), "disk full")
}
