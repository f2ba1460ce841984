package observability

import (
	"testing"
	"time"

	"github.com/danmuck/edgebus/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("bus-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordBusDispatch("bus-a", 2, true)
	RecordBusDispatch("bus-a", 2, false)
	SetBusRetryDepth("bus-a", 1)
	RecordBusIngressDrop("bus-a", "identity")
	RecordRequester("requester-a", "sent")
	SetRequesterPending("requester-a", 3)
	RecordRequesterCycle("requester-a", "deadline")
	RecordResponder("responder-a", "ok")

	if got := testutil.ToFloat64(busDispatched.WithLabelValues("bus-a", "2", "false")); got != 1 {
		t.Fatalf("unexpected failed dispatch count: %v", got)
	}
	if got := testutil.ToFloat64(requesterPending.WithLabelValues("requester-a")); got != 3 {
		t.Fatalf("unexpected pending gauge: %v", got)
	}
}
