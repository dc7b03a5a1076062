package ws

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/snapvault/internal/observability"
	"github.com/your-org/snapvault/pkg/dto"
)

func connectionsGauge() float64 {
	return testutil.ToFloat64(observability.WSConnections)
}

func TestClientWants(t *testing.T) {
	group := uuid.New()
	other := uuid.New()
	user := uuid.New()

	cases := []struct {
		name   string
		client Client
		evt    dto.MatchEvent
		want   bool
	}{
		{"group filter match", Client{groupID: group.String()}, dto.MatchEvent{GroupID: group}, true},
		{"group filter mismatch", Client{groupID: group.String()}, dto.MatchEvent{GroupID: other}, false},
		{"no filter own identity", Client{userID: user}, dto.MatchEvent{GroupID: group, UserID: &user}, true},
		{"no filter someone else", Client{userID: user}, dto.MatchEvent{GroupID: group, UserID: &other}, false},
		{"no filter unclaimed identity", Client{userID: user}, dto.MatchEvent{GroupID: group}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.client.wants(&tc.evt))
		})
	}
}

// A client that never drains its send channel is dropped on broadcast.
// Every removal, whether from the slow path or a normal disconnect, must
// decrement the connections gauge exactly once.
func TestHubDropsStalledClientAndBalancesGauge(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	base := connectionsGauge()
	groupID := uuid.New()

	stalled := &Client{send: make(chan []byte), userID: uuid.New(), groupID: groupID.String()}
	healthy := &Client{send: make(chan []byte, 8), userID: uuid.New(), groupID: groupID.String()}

	h.register <- stalled
	h.register <- healthy
	require.Eventually(t, func() bool { return connectionsGauge() == base+2 },
		time.Second, 10*time.Millisecond)

	h.BroadcastMatch(&dto.MatchEvent{Type: "face_matched", GroupID: groupID})

	require.Eventually(t, func() bool { return connectionsGauge() == base+1 },
		time.Second, 10*time.Millisecond)

	select {
	case msg, ok := <-healthy.send:
		require.True(t, ok)
		assert.NotEmpty(t, msg)
	case <-time.After(time.Second):
		t.Fatal("healthy client did not receive the event")
	}

	// The stalled client's read loop still reports the disconnect after
	// the hub already dropped it; that must not decrement again.
	h.unregister <- stalled
	h.unregister <- healthy
	require.Eventually(t, func() bool { return connectionsGauge() == base },
		time.Second, 10*time.Millisecond)

	_, open := <-stalled.send
	assert.False(t, open)
}
