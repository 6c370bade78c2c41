package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"evcharge/pkg/logger"

	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsJob(t *testing.T) {
	s, err := New(logger.Discard())
	require.NoError(t, err)

	var runs int32
	require.NoError(t, s.Every("count", 10*time.Millisecond, func() {
		atomic.AddInt32(&runs, 1)
	}))

	s.Start()
	defer func() { require.NoError(t, s.Shutdown()) }()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2
	}, 2*time.Second, 5*time.Millisecond)
}
