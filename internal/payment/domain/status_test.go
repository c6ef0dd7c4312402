package domain

import "testing"

func TestNormalizeAcceptStatus(t *testing.T) {
	cases := map[string]AcceptStatus{
		"PAID":         AcceptPaid,
		"settlement":   AcceptPaid,
		"  Completed ": AcceptPaid,
		"deny":         AcceptFailed,
		"cancelled":    AcceptCanceled,
		"expire":       AcceptExpired,
		"":             AcceptPendingOpen,
		"pending":      AcceptPendingOpen,
	}
	for raw, want := range cases {
		if got := NormalizeAcceptStatus(raw); got != want {
			t.Fatalf("NormalizeAcceptStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestNormalizeSendStatus(t *testing.T) {
	cases := map[string]SendStatus{
		"queued":      SendQueued,
		"in_progress": SendProcessing,
		"DONE":        SendSucceeded,
		"rejected":    SendFailed,
		"void":        SendCanceled,
		"expired":     SendExpired,
	}
	for raw, want := range cases {
		if got := NormalizeSendStatus(raw); got != want {
			t.Fatalf("NormalizeSendStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

// Unrecognized provider vocabulary must map to an open, non-terminal
// status on both sides so it can never trigger an approval or rejection.
func TestUnknownStatusIsFailSafe(t *testing.T) {
	unknowns := []string{
		"banana",
		"partially_settled",
		"on_hold",
		"chargeback",
		"??",
	}
	for _, raw := range unknowns {
		accept := NormalizeAcceptStatus(raw)
		send := NormalizeSendStatus(raw)

		if accept.Terminal() {
			t.Fatalf("accept status for %q is terminal: %s", raw, accept)
		}
		if send.Terminal() {
			t.Fatalf("send status for %q is terminal: %s", raw, send)
		}
		if _, _, ok := accept.Decision(); ok && !accept.Terminal() {
			t.Fatalf("non-terminal accept status %s produced a decision", accept)
		}
		if _, _, ok := send.Decision(); ok && !send.Terminal() {
			t.Fatalf("non-terminal send status %s produced a decision", send)
		}
	}
}

func TestAcceptDecision(t *testing.T) {
	target, cause, ok := AcceptPaid.Decision()
	if !ok || target != PaymentStatusApproved || cause != "" {
		t.Fatalf("unexpected paid decision: %s %q %v", target, cause, ok)
	}

	for status, wantCause := range map[AcceptStatus]string{
		AcceptFailed:   "failed",
		AcceptCanceled: "canceled",
		AcceptExpired:  "expired",
	} {
		target, cause, ok := status.Decision()
		if !ok || target != PaymentStatusRejected || cause != wantCause {
			t.Fatalf("unexpected %s decision: %s %q %v", status, target, cause, ok)
		}
	}

	if _, _, ok := AcceptPendingOpen.Decision(); ok {
		t.Fatal("pending_open must not be decisive")
	}
}

func TestSendDecision(t *testing.T) {
	target, cause, ok := SendSucceeded.Decision()
	if !ok || target != PaymentStatusApproved || cause != "" {
		t.Fatalf("unexpected succeeded decision: %s %q %v", target, cause, ok)
	}

	for _, status := range []SendStatus{SendQueued, SendProcessing} {
		if _, _, ok := status.Decision(); ok {
			t.Fatalf("%s must not be decisive", status)
		}
	}

	target, cause, ok = SendFailed.Decision()
	if !ok || target != PaymentStatusRejected || cause != "failed" {
		t.Fatalf("unexpected failed decision: %s %q %v", target, cause, ok)
	}
}
