package caps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/square-key-labs/wstransceiver/src/errs"
)

func TestNegotiate_PCM16(t *testing.T) {
	params, err := Negotiate(FormatS16LE, 16000, 1, 250)
	require.NoError(t, err)

	assert.Equal(t, 2, params.BytesPerSample)
	assert.Equal(t, 8000, params.FrameSizeBytes) // 16000 * 2 * 1 * 250/1000
}

func TestNegotiate_MuLaw(t *testing.T) {
	params, err := Negotiate(FormatMuLaw, 8000, 1, 20)
	require.NoError(t, err)

	assert.Equal(t, 1, params.BytesPerSample)
	assert.Equal(t, 160, params.FrameSizeBytes)
}

func TestNegotiate_UnknownFormat(t *testing.T) {
	params, err := Negotiate(Format("weird"), 8000, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, params.BytesPerSample, "unknown format assumes 1 byte/sample")
	assert.False(t, KnownFormat(Format("weird")))
}

func TestNegotiate_MissingRateOrChannels(t *testing.T) {
	_, err := Negotiate(FormatS16LE, 0, 1, 20)
	require.Error(t, err)
	var capsErr *errs.CapsError
	assert.ErrorAs(t, err, &capsErr)
}

func TestNegotiate_InvalidChannels(t *testing.T) {
	_, err := Negotiate(FormatS16LE, 16000, 3, 20)
	require.Error(t, err)
}

func TestNegotiate_RateOutOfRange(t *testing.T) {
	_, err := Negotiate(FormatS16LE, 96000, 1, 20)
	require.Error(t, err)
}

func TestNegotiate_FrameDurationOutOfRange(t *testing.T) {
	_, err := Negotiate(FormatS16LE, 16000, 1, 5)
	require.Error(t, err)
}
