package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

type MemoryStorage struct {
	checkpoints   map[string]*domain.Checkpoint
	markers       map[string]time.Time // zero time = no expiry
	contributions map[string]*domain.Contribution
	memberships   map[string]*domain.Membership
	groups        map[string]*domain.Group
	approvals     map[string]*domain.Approval
	ingestion     []*domain.IngestionRecord
	archive       []*domain.IngestionRecord
	summaries     map[string]*domain.RoundSummary
	nextLogID     int64
	now           func() time.Time
	mu            sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		checkpoints:   make(map[string]*domain.Checkpoint),
		markers:       make(map[string]time.Time),
		contributions: make(map[string]*domain.Contribution),
		memberships:   make(map[string]*domain.Membership),
		groups:        make(map[string]*domain.Group),
		approvals:     make(map[string]*domain.Approval),
		summaries:     make(map[string]*domain.RoundSummary),
		now:           time.Now,
	}
}

// SetClock replaces the time source used for expiry and timestamps.
func (s *MemoryStorage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Projection returns the projection repositories backed by s.
func (s *MemoryStorage) Projection() storage.Projection {
	return storage.Projection{
		Contributions: NewContributionRepo(s),
		Memberships:   NewMembershipRepo(s),
		Groups:        NewGroupRepo(s),
		Approvals:     NewApprovalRepo(s),
	}
}

func membershipKey(groupID, userID string) string {
	return groupID + "\x00" + userID
}

// -----------------------------------------------------------------------------
// Checkpoint Repository
// -----------------------------------------------------------------------------

type CheckpointRepo struct {
	store *MemoryStorage
}

func NewCheckpointRepo(store *MemoryStorage) *CheckpointRepo {
	return &CheckpointRepo{store: store}
}

func (r *CheckpointRepo) Get(ctx context.Context, contractAddress string) (*domain.Checkpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	cp, ok := r.store.checkpoints[contractAddress]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *cp
	return &c, nil
}

func (r *CheckpointRepo) Advance(ctx context.Context, contractAddress string, ledgerSeq uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp, ok := r.store.checkpoints[contractAddress]
	if ok && cp.LedgerSeq >= ledgerSeq {
		return nil
	}
	r.store.checkpoints[contractAddress] = &domain.Checkpoint{
		ContractAddress: contractAddress,
		LedgerSeq:       ledgerSeq,
		UpdatedAt:       r.store.now(),
	}
	return nil
}

func (r *CheckpointRepo) Reset(ctx context.Context, contractAddress string, ledgerSeq uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.checkpoints[contractAddress] = &domain.Checkpoint{
		ContractAddress: contractAddress,
		LedgerSeq:       ledgerSeq,
		UpdatedAt:       r.store.now(),
	}
	return nil
}

func (r *CheckpointRepo) List(ctx context.Context) ([]*domain.Checkpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Checkpoint, 0, len(r.store.checkpoints))
	for _, cp := range r.store.checkpoints {
		c := *cp
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContractAddress < out[j].ContractAddress })
	return out, nil
}

// -----------------------------------------------------------------------------
// Marker Repository
// -----------------------------------------------------------------------------

type MarkerRepo struct {
	store *MemoryStorage
}

func NewMarkerRepo(store *MemoryStorage) *MarkerRepo {
	return &MarkerRepo{store: store}
}

func (r *MarkerRepo) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	expires, ok := r.store.markers[txHash]
	if !ok {
		return false, nil
	}
	return expires.IsZero() || r.store.now().Before(expires), nil
}

func (r *MarkerRepo) MarkProcessed(ctx context.Context, txHash string, ttl time.Duration) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = r.store.now().Add(ttl)
	}
	r.store.markers[txHash] = expires
	return nil
}

func (r *MarkerRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for hash, expires := range r.store.markers {
		if !expires.IsZero() && !now.Before(expires) {
			delete(r.store.markers, hash)
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Contribution Repository
// -----------------------------------------------------------------------------

type ContributionRepo struct {
	store *MemoryStorage
}

func NewContributionRepo(store *MemoryStorage) *ContributionRepo {
	return &ContributionRepo{store: store}
}

func (r *ContributionRepo) Upsert(ctx context.Context, c *domain.Contribution) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := r.store.now()
	row := *c
	if existing, ok := r.store.contributions[c.TransactionHash]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		row.UpdatedAt = now
		r.store.contributions[c.TransactionHash] = &row
		return false, nil
	}
	row.CreatedAt = now
	row.UpdatedAt = now
	r.store.contributions[c.TransactionHash] = &row
	return true, nil
}

func (r *ContributionRepo) CreateIfAbsent(ctx context.Context, c *domain.Contribution) (*domain.Contribution, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if existing, ok := r.store.contributions[c.TransactionHash]; ok {
		e := *existing
		return &e, false, nil
	}
	now := r.store.now()
	row := *c
	row.CreatedAt = now
	row.UpdatedAt = now
	r.store.contributions[c.TransactionHash] = &row
	out := row
	return &out, true, nil
}

func (r *ContributionRepo) GetByHash(ctx context.Context, txHash string) (*domain.Contribution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.contributions[txHash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *c
	return &out, nil
}

// All returns every contribution ordered by transaction hash.
func (r *ContributionRepo) All() []*domain.Contribution {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Contribution, 0, len(r.store.contributions))
	for _, c := range r.store.contributions {
		row := *c
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionHash < out[j].TransactionHash })
	return out
}

// -----------------------------------------------------------------------------
// Membership Repository
// -----------------------------------------------------------------------------

type MembershipRepo struct {
	store *MemoryStorage
}

func NewMembershipRepo(store *MemoryStorage) *MembershipRepo {
	return &MembershipRepo{store: store}
}

func (r *MembershipRepo) Save(ctx context.Context, m *domain.Membership) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row := *m
	r.store.memberships[membershipKey(m.GroupID, m.UserID)] = &row
	return nil
}

func (r *MembershipRepo) Get(ctx context.Context, groupID, userID string) (*domain.Membership, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.memberships[membershipKey(groupID, userID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *m
	return &out, nil
}

func (r *MembershipRepo) find(groupID string, match func(*domain.Membership) bool) (*domain.Membership, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, m := range r.store.memberships {
		if m.GroupID == groupID && match(m) {
			out := *m
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *MembershipRepo) GetByWallet(ctx context.Context, groupID, walletAddress string) (*domain.Membership, error) {
	return r.find(groupID, func(m *domain.Membership) bool { return m.WalletAddress == walletAddress })
}

func (r *MembershipRepo) GetByPayoutOrder(ctx context.Context, groupID string, order int64) (*domain.Membership, error) {
	return r.find(groupID, func(m *domain.Membership) bool { return m.PayoutOrder == order })
}

func (r *MembershipRepo) ListByGroup(ctx context.Context, groupID string) ([]*domain.Membership, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.listMembershipsLocked(groupID), nil
}

func (s *MemoryStorage) listMembershipsLocked(groupID string) []*domain.Membership {
	var out []*domain.Membership
	for _, m := range s.memberships {
		if m.GroupID == groupID {
			row := *m
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PayoutOrder < out[j].PayoutOrder })
	return out
}

func (r *MembershipRepo) SetPaidCurrentRound(ctx context.Context, groupID, userID string, paid bool) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.memberships[membershipKey(groupID, userID)]
	if !ok {
		return false, nil
	}
	m.HasPaidCurrentRound = paid
	return true, nil
}

func (r *MembershipRepo) ResetPaidCurrentRound(ctx context.Context, groupID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for _, m := range r.store.memberships {
		if m.GroupID == groupID {
			m.HasPaidCurrentRound = false
			n++
		}
	}
	return n, nil
}

func (r *MembershipRepo) MarkPayoutReceived(ctx context.Context, groupID, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.memberships[membershipKey(groupID, userID)]
	if !ok {
		return storage.ErrNotFound
	}
	m.HasReceivedPayout = true
	return nil
}

// -----------------------------------------------------------------------------
// Group Repository
// -----------------------------------------------------------------------------

type GroupRepo struct {
	store *MemoryStorage
}

func NewGroupRepo(store *MemoryStorage) *GroupRepo {
	return &GroupRepo{store: store}
}

func (r *GroupRepo) Save(ctx context.Context, g *domain.Group) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row := *g
	r.store.groups[g.ID] = &row
	return nil
}

func (r *GroupRepo) Get(ctx context.Context, id string) (*domain.Group, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	g, ok := r.store.groups[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *g
	return &out, nil
}

func (r *GroupRepo) GetByContract(ctx context.Context, contractAddress, chainID string) (*domain.Group, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, g := range r.store.groups {
		if g.ContractAddress == contractAddress && g.ChainID == chainID {
			out := *g
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *GroupRepo) IncrementRound(ctx context.Context, id string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	g, ok := r.store.groups[id]
	if !ok {
		return 0, storage.ErrNotFound
	}
	g.CurrentRound++
	return g.CurrentRound, nil
}

// -----------------------------------------------------------------------------
// Approval Repository
// -----------------------------------------------------------------------------

type ApprovalRepo struct {
	store *MemoryStorage
}

func NewApprovalRepo(store *MemoryStorage) *ApprovalRepo {
	return &ApprovalRepo{store: store}
}

func (r *ApprovalRepo) CreateIfAbsent(ctx context.Context, a *domain.Approval) (*domain.Approval, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if existing, ok := r.store.approvals[a.TransactionHash]; ok {
		e := *existing
		return &e, false, nil
	}
	row := *a
	row.CreatedAt = r.store.now()
	r.store.approvals[a.TransactionHash] = &row
	out := row
	return &out, true, nil
}

func (r *ApprovalRepo) GetByHash(ctx context.Context, txHash string) (*domain.Approval, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.approvals[txHash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *a
	return &out, nil
}

// -----------------------------------------------------------------------------
// Ingestion Log & Maintenance
// -----------------------------------------------------------------------------

type IngestionLogRepo struct {
	store *MemoryStorage
}

func NewIngestionLogRepo(store *MemoryStorage) *IngestionLogRepo {
	return &IngestionLogRepo{store: store}
}

func (r *IngestionLogRepo) Append(ctx context.Context, rec *domain.IngestionRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextLogID++
	row := *rec
	row.ID = r.store.nextLogID
	if row.CreatedAt.IsZero() {
		row.CreatedAt = r.store.now()
	}
	r.store.ingestion = append(r.store.ingestion, &row)
	return nil
}

// Records returns the live (unarchived) log rows in insertion order.
func (r *IngestionLogRepo) Records() []*domain.IngestionRecord {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.IngestionRecord, len(r.store.ingestion))
	copy(out, r.store.ingestion)
	return out
}

type MaintenanceRepo struct {
	store *MemoryStorage
}

func NewMaintenanceRepo(store *MemoryStorage) *MaintenanceRepo {
	return &MaintenanceRepo{store: store}
}

func (r *MaintenanceRepo) ArchiveIngestionLog(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.ingestion[:0]
	var moved int64
	for _, rec := range r.store.ingestion {
		if rec.CreatedAt.Before(cutoff) {
			r.store.archive = append(r.store.archive, rec)
			moved++
			continue
		}
		kept = append(kept, rec)
	}
	r.store.ingestion = kept
	return moved, nil
}

// Archived returns the number of archived log rows.
func (r *MaintenanceRepo) Archived() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.archive)
}

func (r *MaintenanceRepo) TransitionGroupStatuses(ctx context.Context) (int64, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	contributed := make(map[string]bool)
	for _, c := range r.store.contributions {
		contributed[c.GroupID] = true
	}

	var activated, completed int64
	for _, g := range r.store.groups {
		switch g.Status {
		case domain.GroupStatusPending:
			if contributed[g.ID] {
				g.Status = domain.GroupStatusActive
				activated++
			}
		case domain.GroupStatusActive:
			members := int64(len(r.store.listMembershipsLocked(g.ID)))
			if members > 0 && g.CurrentRound > members {
				g.Status = domain.GroupStatusCompleted
				completed++
			}
		}
	}
	return activated, completed, nil
}

func (r *MaintenanceRepo) SummarizeRounds(ctx context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for _, g := range r.store.groups {
		if g.Status != domain.GroupStatusActive {
			continue
		}
		summary := &domain.RoundSummary{
			GroupID:     g.ID,
			RoundNumber: g.CurrentRound,
			GeneratedAt: now,
		}
		total := decimal.Zero
		for _, c := range r.store.contributions {
			if c.GroupID != g.ID || c.RoundNumber != g.CurrentRound {
				continue
			}
			amount, err := decimal.NewFromString(c.Amount)
			if err != nil {
				return n, fmt.Errorf("contribution %s has invalid amount %q: %w", c.TransactionHash, c.Amount, err)
			}
			total = total.Add(amount)
			summary.ContributionCount++
		}
		summary.TotalAmount = total.String()
		for _, m := range r.store.listMembershipsLocked(g.ID) {
			summary.Members++
			if m.HasPaidCurrentRound {
				summary.PaidMembers++
			}
		}
		r.store.summaries[fmt.Sprintf("%s:%d", g.ID, g.CurrentRound)] = summary
		n++
	}
	return n, nil
}

// Summary returns the stored summary of one group round.
func (r *MaintenanceRepo) Summary(groupID string, round int64) (*domain.RoundSummary, bool) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	s, ok := r.store.summaries[fmt.Sprintf("%s:%d", groupID, round)]
	if !ok {
		return nil, false
	}
	out := *s
	return &out, true
}
