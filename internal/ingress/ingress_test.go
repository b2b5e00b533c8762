package ingress

import (
	"context"
	"testing"
	"time"

	"github.com/muonpi/clusterproc/internal/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationAggregator_CompletesOnSixthKey(t *testing.T) {
	a := NewLocationAggregator()
	u := messages.UserInfo{Username: "alice", StationID: "1"}
	now := time.Unix(0, 0)

	keys := []string{
		"msg1 geoHeightMSL 200.0 m",
		"msg1 geoHorAccuracy 5.0 m",
		"msg1 geoLatitude 50.0 deg",
		"msg1 geoLongitude 10.0 deg",
		"msg1 geoVertAccuracy 8.0 m",
	}
	for _, line := range keys {
		_, done, err := a.Add(now, u, line)
		require.NoError(t, err)
		assert.False(t, done)
	}

	update, done, err := a.Add(now, u, "msg1 positionDOP 1.0")
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, 50.0, update.Location.Latitude)
	assert.Equal(t, 10.0, update.Location.Longitude)
	assert.Equal(t, 200.0, update.Location.Height)
}

func TestLocationAggregator_WindowExpiry(t *testing.T) {
	a := NewLocationAggregator()
	u := messages.UserInfo{Username: "alice", StationID: "1"}
	now := time.Unix(0, 0)
	_, _, err := a.Add(now, u, "msg1 geoLatitude 50.0 deg")
	require.NoError(t, err)
	require.Len(t, a.buffer, 1)

	a.Expire(now.Add(10 * time.Second))
	assert.Len(t, a.buffer, 0)
}

func TestParseSingleHit_ValidAndOrdering(t *testing.T) {
	u := messages.UserInfo{Username: "alice", StationID: "1"}
	hit, err := ParseSingleHit(u, "1000000000.000000001 1000000000.000000500 100 7 1 0 0")
	require.NoError(t, err)
	assert.Equal(t, uint32(100), hit.TimeAccuracy)
	assert.Equal(t, uint8(1), hit.Fix)
	assert.True(t, hit.Start <= hit.End)
}

func TestParseSingleHit_RejectsShortTimestamp(t *testing.T) {
	u := messages.UserInfo{Username: "alice", StationID: "1"}
	_, err := ParseSingleHit(u, "1.0 2.0 100 7 1 0 0")
	assert.Error(t, err)
}

func TestParseSingleHit_RejectsLeadingDot(t *testing.T) {
	u := messages.UserInfo{Username: "alice", StationID: "1"}
	_, err := ParseSingleHit(u, ".0000000000000001 1000000000.000000500 100 7 1 0 0")
	assert.Error(t, err)
}

func TestParseSingleHit_RejectsStartAfterEnd(t *testing.T) {
	u := messages.UserInfo{Username: "alice", StationID: "1"}
	_, err := ParseSingleHit(u, "1000000000.000000900 1000000000.000000100 100 7 1 0 0")
	assert.Error(t, err)
}

func TestParseCompositeHeader(t *testing.T) {
	payload := "l1data uuid-1 2a 0 100 2 0 0 7 500 0 1 1000000000 0"
	group, err := ParseCompositeHeader(payload)
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", group.ID)
	assert.Equal(t, 2, group.N)
	assert.Equal(t, uint64(0x2a), group.First.Hash)
	assert.Equal(t, uint16(7), group.First.UbloxCounter)
	assert.Equal(t, int64(1000000000), group.First.Start)
	assert.Equal(t, int64(1000000500), group.First.End)
}

func TestParseCompositeHeader_RejectsMissingMarker(t *testing.T) {
	_, err := ParseCompositeHeader("nope uuid-1 2a 0 100 2 0 0 7 500 0 1 1000000000 0")
	assert.Error(t, err)
}

func TestParseCompositeHeader_RejectsShortPayload(t *testing.T) {
	_, err := ParseCompositeHeader("l1data uuid-1 2a 0 100 2 0 0 7 500 0 1 1000000000")
	assert.Error(t, err)
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "muonpi/l1data")
	require.NoError(t, err)

	bus.Publish([]string{"muonpi", "l1data", "alice", "1"}, "payload")

	select {
	case msg := <-ch:
		assert.Equal(t, "payload", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("expected message, got none")
	}
}
