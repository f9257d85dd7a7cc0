package health

import (
	"fmt"
	"reflect"
	"testing"
)

func TestSeriesTrackerFailureTracking(t *testing.T) {
	tr := NewSeriesTracker(3)
	tr.Record("sales_data", nil)

	if tr.Overall() != StatusHealthy {
		t.Fatal("new tracker should be healthy")
	}

	tr.Record("revenue_data", fmt.Errorf("connection refused"))
	tr.Record("revenue_data", fmt.Errorf("timeout"))
	if tr.Overall() != StatusHealthy {
		t.Error("should still be healthy below threshold")
	}

	tr.Record("revenue_data", fmt.Errorf("still broken"))
	if tr.Overall() != StatusDegraded {
		t.Errorf("Overall() = %q at threshold, want degraded", tr.Overall())
	}
	st := tr.Snapshot()["revenue_data"]
	if st.LastError != "still broken" || st.ConsecutiveFailures != 3 {
		t.Errorf("revenue_data = %+v", st)
	}
	if got := tr.Degraded(); !reflect.DeepEqual(got, []string{"revenue_data"}) {
		t.Errorf("Degraded() = %v", got)
	}
}

func TestSeriesTrackerRecovery(t *testing.T) {
	tr := NewSeriesTracker(2)
	for i := 0; i < 5; i++ {
		tr.Record("category_data", fmt.Errorf("fail %d", i))
	}
	if tr.Overall() != StatusFailed {
		t.Fatalf("Overall() = %q with every series degraded, want failed", tr.Overall())
	}

	tr.Record("category_data", nil)
	st := tr.Snapshot()["category_data"]
	if st.Status != StatusHealthy || st.ConsecutiveFailures != 0 || st.LastError != "" {
		t.Errorf("after success = %+v", st)
	}
	if tr.Overall() != StatusHealthy {
		t.Error("should recover to healthy after success")
	}
}

func TestSeriesTrackerThresholdFloor(t *testing.T) {
	tr := NewSeriesTracker(0)
	tr.Record("sales_data", fmt.Errorf("boom"))
	if tr.Overall() != StatusFailed {
		t.Errorf("threshold 0 should act as 1, got %q", tr.Overall())
	}
}
