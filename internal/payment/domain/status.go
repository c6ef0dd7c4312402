package domain

import "strings"

// OperationKind distinguishes the accept (deposit) and send (disbursement)
// sides of a provider integration.
type OperationKind string

const (
	OperationAccept OperationKind = "accept"
	OperationSend   OperationKind = "send"
)

// AcceptStatus is the closed canonical set for accept-side provider objects.
type AcceptStatus string

const (
	AcceptPendingOpen AcceptStatus = "pending_open"
	AcceptPaid        AcceptStatus = "paid"
	AcceptFailed      AcceptStatus = "failed"
	AcceptCanceled    AcceptStatus = "canceled"
	AcceptExpired     AcceptStatus = "expired"
)

// SendStatus is the closed canonical set for send-side provider objects.
type SendStatus string

const (
	SendQueued     SendStatus = "queued"
	SendProcessing SendStatus = "processing"
	SendSucceeded  SendStatus = "succeeded"
	SendFailed     SendStatus = "failed"
	SendCanceled   SendStatus = "canceled"
	SendExpired    SendStatus = "expired"
)

// NormalizeAcceptStatus maps an arbitrary provider status string to the
// canonical accept-side set. Unknown strings map to pending_open so an
// unrecognized provider vocabulary can never trigger an approval.
func NormalizeAcceptStatus(raw string) AcceptStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paid", "settled", "completed", "complete", "succeeded", "success", "settlement", "capture", "captured":
		return AcceptPaid
	case "failed", "failure", "deny", "denied", "error":
		return AcceptFailed
	case "canceled", "cancelled", "cancel", "void", "voided":
		return AcceptCanceled
	case "expired", "expire":
		return AcceptExpired
	default:
		return AcceptPendingOpen
	}
}

// NormalizeSendStatus maps an arbitrary provider status string to the
// canonical send-side set. Unknown strings map to processing.
func NormalizeSendStatus(raw string) SendStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued", "pending", "accepted", "received":
		return SendQueued
	case "processing", "sent", "in_progress", "running":
		return SendProcessing
	case "succeeded", "success", "completed", "complete", "done", "settled":
		return SendSucceeded
	case "failed", "failure", "error", "rejected":
		return SendFailed
	case "canceled", "cancelled", "cancel", "void", "voided":
		return SendCanceled
	case "expired", "expire":
		return SendExpired
	default:
		return SendProcessing
	}
}

func (s AcceptStatus) Terminal() bool {
	switch s {
	case AcceptPaid, AcceptFailed, AcceptCanceled, AcceptExpired:
		return true
	default:
		return false
	}
}

func (s SendStatus) Terminal() bool {
	switch s {
	case SendSucceeded, SendFailed, SendCanceled, SendExpired:
		return true
	default:
		return false
	}
}

// Decision maps an accept-side canonical status to the local terminal
// status and rejection cause. ok is false while the object is still open.
func (s AcceptStatus) Decision() (target PaymentStatus, cause string, ok bool) {
	switch s {
	case AcceptPaid:
		return PaymentStatusApproved, "", true
	case AcceptFailed:
		return PaymentStatusRejected, "failed", true
	case AcceptCanceled:
		return PaymentStatusRejected, "canceled", true
	case AcceptExpired:
		return PaymentStatusRejected, "expired", true
	default:
		return "", "", false
	}
}

// Decision maps a send-side canonical status to the local terminal status
// and rejection cause. ok is false while the payout is still in flight.
func (s SendStatus) Decision() (target PaymentStatus, cause string, ok bool) {
	switch s {
	case SendSucceeded:
		return PaymentStatusApproved, "", true
	case SendFailed:
		return PaymentStatusRejected, "failed", true
	case SendCanceled:
		return PaymentStatusRejected, "canceled", true
	case SendExpired:
		return PaymentStatusRejected, "expired", true
	default:
		return "", "", false
	}
}
