package httpmsg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRangeStartEnd(t *testing.T) {
	r, err := ParseRange("bytes=0-499", 1000)
	require.NoError(t, err)
	require.Equal(t, ByteRange{Start: 0, End: 499}, r)
	require.EqualValues(t, 500, r.Len())
}

func TestParseRangeOpenEnded(t *testing.T) {
	r, err := ParseRange("bytes=900-", 1000)
	require.NoError(t, err)
	require.Equal(t, ByteRange{Start: 900, End: 999}, r)
}

func TestParseRangeSuffix(t *testing.T) {
	r, err := ParseRange("bytes=-100", 1000)
	require.NoError(t, err)
	require.Equal(t, ByteRange{Start: 900, End: 999}, r)
}

func TestParseRangeMultiRangeUnsupported(t *testing.T) {
	_, err := ParseRange("bytes=0-10,20-30", 1000)
	require.Error(t, err)
}

func TestParseRangeStartBeyondLength(t *testing.T) {
	_, err := ParseRange("bytes=2000-3000", 1000)
	require.Error(t, err)
}

func TestParseRangeClampsEnd(t *testing.T) {
	r, err := ParseRange("bytes=0-5000", 1000)
	require.NoError(t, err)
	require.Equal(t, ByteRange{Start: 0, End: 999}, r)
}
