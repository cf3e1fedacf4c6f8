package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{utils.NewError(utils.ErrGuestAbort, nil, "x"), "guest_abort"},
		{utils.NewError(utils.ErrProvingFailure, nil, "x"), "proving_failure"},
		{errors.New("plain"), "unknown"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveProof("adder", 12, time.Millisecond, nil)
	m.ObserveProof("adder", 0, 0, utils.NewError(utils.ErrGuestAbort, nil, "rejected"))
	m.ObserveVerification(true)
	m.ObserveVerification(false)
	m.ObserveVerification(false)

	if got := testutil.ToFloat64(m.Proofs.WithLabelValues("adder", OutcomeOK)); got != 1 {
		t.Errorf("ok proofs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Proofs.WithLabelValues("adder", "guest_abort")); got != 1 {
		t.Errorf("aborted proofs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Verifications.WithLabelValues(OutcomeRejected)); got != 2 {
		t.Errorf("rejections = %v, want 2", got)
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveProof("adder", 1, 0, nil)
	nilMetrics.ObserveVerification(true)
	nilMetrics.Attempt()
	nilMetrics.Retry()
	nilMetrics.Track()()
}

func TestTrack(t *testing.T) {
	m := New()
	done := m.Track()
	if got := testutil.ToFloat64(m.InFlight); got != 1 {
		t.Fatalf("in flight = %v, want 1", got)
	}
	done()
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Errorf("in flight = %v after done, want 0", got)
	}
	m.Attempt()
	m.Attempt()
	m.Retry()
	if testutil.ToFloat64(m.Attempts) != 2 || testutil.ToFloat64(m.Retries) != 1 {
		t.Error("attempt counters are wrong")
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.Attempts.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "vybium_fleet_prove_attempts_total 1") {
		t.Errorf("exposition lacks the attempts counter:\n%s", rec.Body.String())
	}
}
