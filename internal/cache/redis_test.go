package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()
	ctr, err := testcontainers.Run(ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")),
	)
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { testcontainers.TerminateContainer(ctr) })

	endpoint, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)
	return "redis://" + endpoint
}

func TestActionLogFIFO(t *testing.T) {
	url := setupRedis(t)
	ctx := context.Background()

	rdb, err := Connect(ctx, url)
	require.NoError(t, err)
	defer rdb.Close()

	log := NewActionLog(rdb, "")
	assert.Equal(t, DefaultQueueName, log.Queue())

	session := uuid.New()
	for i := 1; i <= 3; i++ {
		payload, _ := json.Marshal(map[string]int{"n": i})
		require.NoError(t, log.Append(ctx, RoomActionRecord{
			SessionID:     session,
			RoomCode:      "ABC123",
			ActionIndex:   uint64(i),
			ActionType:    "player_answered",
			Phase:         "question",
			ActionPayload: payload,
			Timestamp:     time.Now().UnixMilli(),
		}))
	}
	n, err := log.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for i := 1; i <= 3; i++ {
		rec, err := log.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, uint64(i), rec.ActionIndex)
		assert.Equal(t, session, rec.SessionID)
		assert.JSONEq(t, `{"n":`+string(rune('0'+i))+`}`, string(rec.ActionPayload))
	}

	rec, err := log.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-url")
	assert.Error(t, err)
}
