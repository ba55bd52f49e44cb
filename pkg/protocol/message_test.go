package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeBasic(t *testing.T) {
	t.Parallel()

	msg := Decode("bid bidder=alice bid=10 sessionId=1 auctionId=1")
	require.Equal(t, "bid", msg.Type)
	require.Equal(t, map[string]string{
		"bidder":    "alice",
		"bid":       "10",
		"sessionId": "1",
		"auctionId": "1",
	}, msg.Args)
}

func TestDecodeDropsMalformedTokens(t *testing.T) {
	t.Parallel()

	msg := Decode("status timer=5 garbage bidder==alice bid=10")
	require.Equal(t, "status", msg.Type)
	require.Equal(t, map[string]string{"timer": "5", "bid": "10"}, msg.Args)
}

func TestDecodeEmptyLine(t *testing.T) {
	t.Parallel()

	require.Equal(t, Message{}, Decode(""))
	require.Equal(t, Message{}, Decode("   "))
}

func TestEncodeUnderscoresSpaces(t *testing.T) {
	t.Parallel()

	line := Encode("auction", map[string]string{"item": "vintage synth"})
	require.Equal(t, "auction item=vintage_synth", line)
}

// EncodeRoundTrip is the invariant from spec.md §8: for args with no
// underscores in their values, encode-then-decode reproduces the
// original map.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	args := map[string]string{
		"bidder":    "alice",
		"bid":       "42",
		"sessionId": "7",
		"auctionId": "3",
	}

	line := Encode("bid", args)
	msg := Decode(line)
	require.Equal(t, "bid", msg.Type)
	require.Equal(t, args, msg.Args)
}

func TestRequireIDs(t *testing.T) {
	t.Parallel()

	sid, aid, ok := RequireIDs(map[string]string{"sessionId": "1", "auctionId": "2"})
	require.True(t, ok)
	require.Equal(t, 1, sid)
	require.Equal(t, 2, aid)

	_, _, ok = RequireIDs(map[string]string{"sessionId": "1"})
	require.False(t, ok)

	_, _, ok = RequireIDs(map[string]string{"sessionId": "x", "auctionId": "2"})
	require.False(t, ok)
}

func TestWithIDs(t *testing.T) {
	t.Parallel()

	out := WithIDs(map[string]string{"timer": "30"}, 1, 2)
	require.Equal(t, map[string]string{"timer": "30", "sessionId": "1", "auctionId": "2"}, out)
}
