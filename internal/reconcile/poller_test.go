package reconcile_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/aruspay/aruspay/internal/config"
	paymentdomain "github.com/aruspay/aruspay/internal/payment/domain"
	"github.com/aruspay/aruspay/internal/reconcile"
)

// fakePayments settles each payment after a fixed number of polls.
type fakePayments struct {
	mu          sync.Mutex
	settleAfter int
	polls       map[snowflake.ID]int
	unsettled   []paymentdomain.UnsettledRecord
}

func newFakePayments(settleAfter int) *fakePayments {
	return &fakePayments{settleAfter: settleAfter, polls: map[snowflake.ID]int{}}
}

func (f *fakePayments) PollOnce(ctx context.Context, id snowflake.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[id]++
	return f.polls[id] >= f.settleAfter, nil
}

func (f *fakePayments) pollCount(id snowflake.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[id]
}

func (f *fakePayments) ListUnsettled(ctx context.Context, limit int) ([]paymentdomain.UnsettledRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit < len(f.unsettled) {
		return f.unsettled[:limit], nil
	}
	return f.unsettled, nil
}

func (f *fakePayments) CreateDeposit(ctx context.Context, in paymentdomain.CreateDepositInput) (*paymentdomain.DepositResult, error) {
	return nil, nil
}

func (f *fakePayments) CreateWithdrawal(ctx context.Context, in paymentdomain.CreateWithdrawalInput) (*paymentdomain.WithdrawalResult, error) {
	return nil, nil
}

func (f *fakePayments) GetPayment(ctx context.Context, id snowflake.ID) (*paymentdomain.PaymentDetail, error) {
	return nil, nil
}

func (f *fakePayments) ApplyProviderStatus(ctx context.Context, kind paymentdomain.OperationKind, provider, providerObjectID, rawStatus string, rawPayload []byte, actor string) (bool, error) {
	return false, nil
}

func testConfig() config.Config {
	return config.Config{
		Poll: config.PollConfig{
			InitialDelay: time.Millisecond,
			BaseBackoff:  time.Millisecond,
			MaxBackoff:   5 * time.Millisecond,
			MaxAttempts:  10,
		},
		Sweep: config.SweepConfig{
			Interval:  time.Hour,
			BatchSize: 100,
		},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPollerStopsOnTerminal(t *testing.T) {
	payments := newFakePayments(3)
	poller := reconcile.NewPoller(reconcile.PollerParams{
		Log:      zap.NewNop(),
		Config:   testConfig(),
		Payments: payments,
	})
	defer poller.Stop()

	node, err := snowflake.NewNode(14)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	id := node.Generate()

	poller.Schedule(id)
	waitFor(t, time.Second, func() bool { return poller.Active() == 0 })

	if got := payments.pollCount(id); got != 3 {
		t.Fatalf("expected 3 polls, got %d", got)
	}
}

func TestPollerDeduplicatesSchedules(t *testing.T) {
	payments := newFakePayments(1000)
	poller := reconcile.NewPoller(reconcile.PollerParams{
		Log:      zap.NewNop(),
		Config:   testConfig(),
		Payments: payments,
	})
	defer poller.Stop()

	node, err := snowflake.NewNode(14)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	id := node.Generate()

	for i := 0; i < 5; i++ {
		poller.Schedule(id)
	}
	if got := poller.Active(); got != 1 {
		t.Fatalf("expected 1 active loop, got %d", got)
	}
}

func TestPollerGivesUpAfterMaxAttempts(t *testing.T) {
	payments := newFakePayments(1000)
	poller := reconcile.NewPoller(reconcile.PollerParams{
		Log:      zap.NewNop(),
		Config:   testConfig(),
		Payments: payments,
	})
	defer poller.Stop()

	node, err := snowflake.NewNode(14)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	id := node.Generate()

	poller.Schedule(id)
	waitFor(t, time.Second, func() bool { return poller.Active() == 0 })

	if got := payments.pollCount(id); got != 10 {
		t.Fatalf("expected 10 polls, got %d", got)
	}
}

func TestPollerStopCancelsLoops(t *testing.T) {
	payments := newFakePayments(1000)
	poller := reconcile.NewPoller(reconcile.PollerParams{
		Log:      zap.NewNop(),
		Config:   testConfig(),
		Payments: payments,
	})

	node, err := snowflake.NewNode(14)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	for i := 0; i < 3; i++ {
		poller.Schedule(node.Generate())
	}

	poller.Stop()
	if got := poller.Active(); got != 0 {
		t.Fatalf("expected no active loops after Stop, got %d", got)
	}

	// Scheduling after Stop is a no-op.
	id := node.Generate()
	poller.Schedule(id)
	if got := poller.Active(); got != 0 {
		t.Fatalf("expected schedule after stop to be ignored, got %d", got)
	}
}

func TestSweeperSchedulesUnsettled(t *testing.T) {
	payments := newFakePayments(1000)
	poller := reconcile.NewPoller(reconcile.PollerParams{
		Log:      zap.NewNop(),
		Config:   testConfig(),
		Payments: payments,
	})
	defer poller.Stop()

	node, err := snowflake.NewNode(14)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	payments.unsettled = []paymentdomain.UnsettledRecord{
		{PaymentID: node.Generate(), Kind: paymentdomain.PaymentKindDeposit},
		{PaymentID: node.Generate(), Kind: paymentdomain.PaymentKindWithdrawal},
	}

	sweeper := reconcile.NewSweeper(reconcile.SweeperParams{
		Log:      zap.NewNop(),
		Config:   testConfig(),
		Payments: payments,
		Poller:   poller,
	})

	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := poller.Active(); got != 2 {
		t.Fatalf("expected 2 scheduled loops, got %d", got)
	}
}
