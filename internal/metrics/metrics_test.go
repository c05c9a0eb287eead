package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	structureRequestsTotal = nil
	itemsProcessedTotal = nil
	throttleWaitSeconds = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if structureRequestsTotal == nil || itemsProcessedTotal == nil || throttleWaitSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	// A simple check to see if a metric can be used.
	ObserveStructureRequest("2xx")
	if val := testutil.ToFloat64(structureRequestsTotal); val != 1 {
		t.Errorf("Expected structureRequestsTotal to be 1, got %f", val)
	}

	ObserveItem("merged")
	if val := testutil.ToFloat64(itemsProcessedTotal); val != 1 {
		t.Errorf("Expected itemsProcessedTotal to be 1, got %f", val)
	}

	// Nil-safe observers must not panic before Init.
	ObserveThrottleWait(time.Second)
	SetCatalogDatasets(10)
	SetQuotaRemaining(60)
}
