package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdmxkit/catalog-builder/internal/notify"
)

func TestNotifierStoresSummaries(t *testing.T) {
	t.Parallel()

	n := New()
	id1, err := n.Notify(context.Background(), notify.RunSummary{RunID: "run-1", Completed: true})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)

	id2, err := n.Notify(context.Background(), notify.RunSummary{RunID: "run-2"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	got := n.Summaries()
	require.Len(t, got, 2)
	require.Equal(t, "run-1", got[0].RunID)
	require.True(t, got[0].Completed)

	got[0].RunID = "modified"
	require.Equal(t, "run-1", n.Summaries()[0].RunID)
}
