package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMustRegister_Idempotent(t *testing.T) {
	MustRegister()
	MustRegister()
}

func TestCountersNormalizeLabels(t *testing.T) {
	IncLinkCreated("  Basic ")
	if got := testutil.ToFloat64(linksCreatedTotal.WithLabelValues("basic")); got < 1 {
		t.Errorf("expected normalized label 'basic' to be counted, got %v", got)
	}

	before := testutil.ToFloat64(linksSupersededTotal.WithLabelValues("failed"))
	IncLinkSuperseded(false)
	if got := testutil.ToFloat64(linksSupersededTotal.WithLabelValues("failed")); got != before+1 {
		t.Errorf("expected failed cancel to be counted once, got %v -> %v", before, got)
	}

	ObserveProviderCall("razorpay", "FETCH", "transient", 20*time.Millisecond)
	if got := testutil.ToFloat64(providerRequestsTotal.WithLabelValues("razorpay", "fetch", "transient")); got < 1 {
		t.Errorf("expected provider call to be counted, got %v", got)
	}
}
