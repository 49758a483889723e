package queue

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/storage"
	"github.com/vietddude/ledgersync/internal/infra/storage/memory"
)

type fixture struct {
	store    *memory.MemoryStorage
	handlers *Handlers
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewMemoryStorage()
	ctx := context.Background()
	if err := memory.NewGroupRepo(store).Save(ctx, &domain.Group{
		ID: "G", ContractAddress: "CGROUP", ChainID: "testnet", CurrentRound: 4, Status: domain.GroupStatusActive,
	}); err != nil {
		t.Fatalf("save group: %v", err)
	}
	if err := memory.NewMembershipRepo(store).Save(ctx, &domain.Membership{
		GroupID: "G", UserID: "U", WalletAddress: "GWALLET", PayoutOrder: 1,
	}); err != nil {
		t.Fatalf("save membership: %v", err)
	}
	return &fixture{store: store, handlers: NewHandlers(store.Projection(), slog.Default()), ctx: ctx}
}

func transfer(hash string) *domain.TransferJob {
	return &domain.TransferJob{
		From:            "GWALLET",
		To:              "CGROUP",
		Amount:          "250.5",
		TransactionHash: hash,
		BlockNumber:     99,
		ContractAddress: "CGROUP",
		ChainID:         "testnet",
	}
}

func TestTransfer_CreatesContribution(t *testing.T) {
	f := newFixture(t)
	job := transfer("T1")
	job.ContributionID = "c-1"

	c, created, err := f.handlers.Transfer(f.ctx, job)
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if !created {
		t.Error("expected a new row")
	}
	if c.ID != "c-1" || c.UserID != "U" || c.GroupID != "G" || c.RoundNumber != 4 || c.Amount != "250.5" {
		t.Errorf("contribution = %+v", c)
	}

	m, err := memory.NewMembershipRepo(f.store).Get(f.ctx, "G", "U")
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if !m.HasPaidCurrentRound {
		t.Error("member should be flagged paid")
	}
}

func TestTransfer_ExistingRowReturnedUnmodified(t *testing.T) {
	f := newFixture(t)
	first, _, err := f.handlers.Transfer(f.ctx, transfer("T1"))
	if err != nil {
		t.Fatalf("first Transfer failed: %v", err)
	}

	again := transfer("T1")
	again.Amount = "1"
	again.ContributionID = "other"
	got, created, err := f.handlers.Transfer(f.ctx, again)
	if err != nil {
		t.Fatalf("second Transfer failed: %v", err)
	}
	if created {
		t.Error("second delivery should not create")
	}
	if got.ID != first.ID || got.Amount != "250.5" {
		t.Errorf("row changed: %+v", got)
	}
	if n := len(memory.NewContributionRepo(f.store).All()); n != 1 {
		t.Errorf("contributions = %d, want 1", n)
	}
}

func TestTransfer_PollerRowWins(t *testing.T) {
	f := newFixture(t)
	repo := memory.NewContributionRepo(f.store)
	if _, err := repo.Upsert(f.ctx, &domain.Contribution{
		ID: "from-poller", GroupID: "G", UserID: "U", WalletAddress: "GWALLET",
		Amount: "250.5", RoundNumber: 4, TransactionHash: "T1",
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, created, err := f.handlers.Transfer(f.ctx, transfer("T1"))
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if created || got.ID != "from-poller" {
		t.Errorf("got %+v created=%v, want poller row", got, created)
	}
}

// flakyMemberships fails the first paid flag write.
type flakyMemberships struct {
	storage.MembershipRepository
	failures int
}

func (m *flakyMemberships) SetPaidCurrentRound(ctx context.Context, groupID, userID string, paid bool) (bool, error) {
	if m.failures > 0 {
		m.failures--
		return false, errors.New("connection reset")
	}
	return m.MembershipRepository.SetPaidCurrentRound(ctx, groupID, userID, paid)
}

func TestTransfer_RetryRestoresPaidFlag(t *testing.T) {
	f := newFixture(t)
	proj := f.store.Projection()
	proj.Memberships = &flakyMemberships{MembershipRepository: proj.Memberships, failures: 1}
	h := NewHandlers(proj, slog.Default())

	if _, _, err := h.Transfer(f.ctx, transfer("HX")); err == nil {
		t.Fatal("expected flag write failure")
	}
	c, created, err := h.Transfer(f.ctx, transfer("HX"))
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if created || c.TransactionHash != "HX" {
		t.Errorf("retry got %+v created=%v, want existing row", c, created)
	}

	m, err := memory.NewMembershipRepo(f.store).Get(f.ctx, "G", "U")
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if !m.HasPaidCurrentRound {
		t.Error("member should be flagged paid after retry")
	}
}

func TestTransfer_OldRoundRowLeavesFlag(t *testing.T) {
	f := newFixture(t)
	if _, err := memory.NewContributionRepo(f.store).Upsert(f.ctx, &domain.Contribution{
		ID: "old", GroupID: "G", UserID: "U", WalletAddress: "GWALLET",
		Amount: "250.5", RoundNumber: 3, TransactionHash: "T0",
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if _, created, err := f.handlers.Transfer(f.ctx, transfer("T0")); err != nil || created {
		t.Fatalf("Transfer created=%v err=%v", created, err)
	}
	m, err := memory.NewMembershipRepo(f.store).Get(f.ctx, "G", "U")
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m.HasPaidCurrentRound {
		t.Error("a previous round's contribution must not flag the current round")
	}
}

func TestTransfer_Unprocessable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.TransferJob)
	}{
		{"missing hash", func(j *domain.TransferJob) { j.TransactionHash = "" }},
		{"bad amount", func(j *domain.TransferJob) { j.Amount = "lots" }},
		{"unknown contract", func(j *domain.TransferJob) { j.ContractAddress = "CNOPE" }},
		{"wrong chain", func(j *domain.TransferJob) { j.ChainID = "mainnet" }},
		{"unknown wallet", func(j *domain.TransferJob) { j.From = "GSTRANGER" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := transfer("T1")
			tt.mutate(job)
			_, _, err := f.handlers.Transfer(f.ctx, job)
			if !errors.Is(err, ErrUnprocessable) {
				t.Errorf("err = %v, want ErrUnprocessable", err)
			}
		})
	}
}

func TestApproval_Idempotent(t *testing.T) {
	f := newFixture(t)
	job := &domain.ApprovalJob{
		Owner: "GOWNER", Spender: "CGROUP", Amount: "1000", TransactionHash: "A1",
		BlockNumber: 7, ContractAddress: "CTOKEN", ChainID: "testnet",
	}

	first, created, err := f.handlers.Approval(f.ctx, job)
	if err != nil || !created {
		t.Fatalf("first Approval: created=%v err=%v", created, err)
	}
	second, created, err := f.handlers.Approval(f.ctx, job)
	if err != nil {
		t.Fatalf("second Approval failed: %v", err)
	}
	if created || second.ID != first.ID {
		t.Errorf("second delivery created=%v id=%s, want existing %s", created, second.ID, first.ID)
	}
}

func TestHandle_DecodesEnvelope(t *testing.T) {
	f := newFixture(t)

	env, err := NewEnvelope(domain.JobTypeTransfer, transfer("T9"))
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if err := f.handlers.Handle(f.ctx, env); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if _, err := memory.NewContributionRepo(f.store).GetByHash(f.ctx, "T9"); err != nil {
		t.Errorf("contribution not stored: %v", err)
	}

	bad := []*domain.JobEnvelope{
		{Type: "refund", Data: []byte(`{}`)},
		{Type: domain.JobTypeApproval, Data: []byte(`not json`)},
	}
	for _, env := range bad {
		if err := f.handlers.Handle(f.ctx, env); !errors.Is(err, ErrUnprocessable) {
			t.Errorf("Handle(%s) = %v, want ErrUnprocessable", env.Type, err)
		}
	}
}

type flakyHandler struct {
	failures int
	calls    int
	err      error
}

func (h *flakyHandler) Handle(context.Context, *domain.JobEnvelope) error {
	h.calls++
	if h.calls <= h.failures {
		return h.err
	}
	return nil
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	q := NewMemoryQueue()
	h := &flakyHandler{failures: 2, err: storage.ErrNotFound}
	c := NewConsumer(ConsumerConfig{Name: "transfers", MaxAttempts: 3, PopTimeout: 10 * time.Millisecond}, q, h, nil)
	ctx := context.Background()

	if err := q.Push(ctx, "transfers", &domain.JobEnvelope{Type: domain.JobTypeTransfer}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := c.ProcessOne(ctx)
		if err != nil || !got {
			t.Fatalf("ProcessOne #%d: got=%v err=%v", i, got, err)
		}
	}

	if h.calls != 3 {
		t.Errorf("calls = %d, want 3", h.calls)
	}
	pending, dead, _ := q.Len(ctx, "transfers")
	if pending != 0 || dead != 0 {
		t.Errorf("pending=%d dead=%d, want empty", pending, dead)
	}
}

func TestConsumer_DeadLettersAfterMaxAttempts(t *testing.T) {
	q := NewMemoryQueue()
	h := &flakyHandler{failures: 10, err: errors.New("db down")}
	c := NewConsumer(ConsumerConfig{Name: "transfers", MaxAttempts: 2, PopTimeout: 10 * time.Millisecond}, q, h, nil)
	ctx := context.Background()

	_ = q.Push(ctx, "transfers", &domain.JobEnvelope{Type: domain.JobTypeTransfer})
	for i := 0; i < 2; i++ {
		if _, err := c.ProcessOne(ctx); err != nil {
			t.Fatalf("ProcessOne failed: %v", err)
		}
	}

	dead := q.Dead("transfers")
	if len(dead) != 1 {
		t.Fatalf("dead = %d, want 1", len(dead))
	}
	if dead[0].Attempts != 2 || dead[0].Error != "db down" {
		t.Errorf("dead job = %+v", dead[0])
	}
	if got, _ := c.ProcessOne(ctx); got {
		t.Error("queue should be empty")
	}
}

func TestConsumer_UnprocessableSkipsRetry(t *testing.T) {
	q := NewMemoryQueue()
	h := &flakyHandler{failures: 1, err: unprocessable("bad")}
	c := NewConsumer(ConsumerConfig{Name: "approvals", MaxAttempts: 5, PopTimeout: 10 * time.Millisecond}, q, h, nil)
	ctx := context.Background()

	_ = q.Push(ctx, "approvals", &domain.JobEnvelope{Type: domain.JobTypeApproval})
	if _, err := c.ProcessOne(ctx); err != nil {
		t.Fatalf("ProcessOne failed: %v", err)
	}
	if n := len(q.Dead("approvals")); n != 1 {
		t.Errorf("dead = %d, want 1", n)
	}
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	q := NewMemoryQueue()
	f := newFixture(t)
	c := NewConsumer(ConsumerConfig{Name: "transfers", PopTimeout: 20 * time.Millisecond}, q, f.handlers, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	env, _ := NewEnvelope(domain.JobTypeTransfer, transfer("T5"))
	_ = q.Push(ctx, "transfers", env)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := memory.NewContributionRepo(f.store).GetByHash(f.ctx, "T5"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job not consumed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
