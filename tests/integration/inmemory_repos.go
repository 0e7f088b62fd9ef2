package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"p2p-exchange/internal/core/domain"
	"p2p-exchange/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// memStore keeps every table in memory. Transactions run one at a time,
// which gives them serializable semantics; rollback restores the snapshot taken at Begin.
type memStore struct {
	txMu sync.Mutex   // held for the lifetime of a transaction
	mu   sync.RWMutex // guards the maps

	users       map[uuid.UUID]domain.User
	wallets     map[uuid.UUID]domain.Wallet
	offers      map[uuid.UUID]domain.TradeOffer
	acceptances map[uuid.UUID]domain.OfferAcceptance
	trades      map[uuid.UUID]domain.Trade

	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[uuid.UUID]domain.User),
		wallets:     make(map[uuid.UUID]domain.Wallet),
		offers:      make(map[uuid.UUID]domain.TradeOffer),
		acceptances: make(map[uuid.UUID]domain.OfferAcceptance),
		trades:      make(map[uuid.UUID]domain.Trade),
	}
}

type memSnapshot struct {
	users       map[uuid.UUID]domain.User
	wallets     map[uuid.UUID]domain.Wallet
	offers      map[uuid.UUID]domain.TradeOffer
	acceptances map[uuid.UUID]domain.OfferAcceptance
	trades      map[uuid.UUID]domain.Trade
}

func cloneMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memSnapshot{
		users:       cloneMap(s.users),
		wallets:     cloneMap(s.wallets),
		offers:      cloneMap(s.offers),
		acceptances: cloneMap(s.acceptances),
		trades:      cloneMap(s.trades),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.wallets = snap.wallets
	s.offers = snap.offers
	s.acceptances = snap.acceptances
	s.trades = snap.trades
}

// --- Seeding helpers ---

func (s *memStore) addUser(username string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.User{ID: uuid.New(), Username: username, SuccessRate: decimal.Zero}
	s.users[u.ID] = u
	return u.ID
}

func (s *memStore) fund(userID uuid.UUID, currency, amount string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := domain.NewHotWallet(userID, currency)
	w.Balance = decimal.RequireFromString(amount)
	s.wallets[w.ID] = *w
	return w.ID
}

func (s *memStore) setBalance(walletID uuid.UUID, amount string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wallets[walletID]
	w.Balance = decimal.RequireFromString(amount)
	s.wallets[walletID] = w
}

func (s *memStore) wallet(id uuid.UUID) domain.Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wallets[id]
}

func (s *memStore) hotWallet(userID uuid.UUID, currency string) (domain.Wallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.wallets {
		if w.UserID == userID && w.Cryptocurrency == currency && w.WalletType == domain.WalletTypeHot {
			return w, true
		}
	}
	return domain.Wallet{}, false
}

func (s *memStore) user(id uuid.UUID) domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[id]
}

func (s *memStore) offer(id uuid.UUID) domain.TradeOffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offers[id]
}

func (s *memStore) allWallets() []domain.Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	return out
}

// totals sums balance per currency across all wallets.
func (s *memStore) totals() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal)
	for _, w := range s.wallets {
		out[w.Cryptocurrency] = out[w.Cryptocurrency].Add(w.Balance)
	}
	return out
}

func (s *memStore) tradesForOffer(offerID uuid.UUID) []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Trade
	for _, t := range s.trades {
		if t.OfferID == offerID {
			out = append(out, t)
		}
	}
	return out
}

// --- Transactor ---

type memTransactor struct {
	store *memStore
}

func (t *memTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.store.txMu.Lock()
	return &memTx{store: t.store, snap: t.store.snapshot()}, nil
}

// memTx implements pgx.Tx over memStore. Only Commit and Rollback do real work.
type memTx struct {
	store *memStore
	snap  memSnapshot
	done  bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	t.store.commits++
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.restore(t.snap)
	t.store.mu.Lock()
	t.store.rollbacks++
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                               { return nil }

// --- Users ---

type memUserRepo struct{ store *memStore }

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *memUserRepo) UpdateStats(ctx context.Context, tx pgx.Tx, userID uuid.UUID, completedTrades int64, successRate decimal.Decimal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[userID]
	if !ok {
		return fmt.Errorf("user %s not found", userID)
	}
	u.CompletedTrades = completedTrades
	u.SuccessRate = successRate
	r.store.users[userID] = u
	return nil
}

// --- Wallets ---

type memWalletRepo struct{ store *memStore }

func (r *memWalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.wallets {
		if existing.UserID == w.UserID && existing.Cryptocurrency == w.Cryptocurrency && existing.WalletType == w.WalletType {
			return ports.ErrDuplicate
		}
	}
	r.store.wallets[w.ID] = *w
	return nil
}

func (r *memWalletRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []domain.Wallet
	for _, w := range r.store.wallets {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cryptocurrency < out[j].Cryptocurrency })
	return out, nil
}

func (r *memWalletRepo) SumAvailable(ctx context.Context, userID uuid.UUID, currency string, walletType domain.WalletType) (decimal.Decimal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	sum := decimal.Zero
	for _, w := range r.store.wallets {
		if w.UserID == userID && w.Cryptocurrency == currency && w.WalletType == walletType {
			sum = sum.Add(w.Available())
		}
	}
	return sum, nil
}

func (r *memWalletRepo) GetHot(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	w, ok := r.store.hotWallet(userID, currency)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *memWalletRepo) LockByIDs(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []domain.Wallet
	for _, id := range ids {
		if w, ok := r.store.wallets[id]; ok {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].ID[:]) < string(out[j].ID[:])
	})
	return out, nil
}

func (r *memWalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.wallets[w.ID]
	if !ok {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	if w.Balance.IsNegative() || w.ReservedBalance.IsNegative() || w.ReservedBalance.GreaterThan(w.Balance) {
		return fmt.Errorf("wallet %s balance constraint: %w", w.ID, ports.ErrStateConflict)
	}
	existing.Balance = w.Balance
	existing.ReservedBalance = w.ReservedBalance
	r.store.wallets[w.ID] = existing
	return nil
}

// --- Offers ---

type memOfferRepo struct{ store *memStore }

func (r *memOfferRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.TradeOffer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.offers[o.ID]; ok {
		return ports.ErrDuplicate
	}
	r.store.offers[o.ID] = *o
	return nil
}

func (r *memOfferRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeOffer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	o, ok := r.store.offers[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *memOfferRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TradeOffer, error) {
	return r.GetByID(ctx, id)
}

func (r *memOfferRepo) ListActive(ctx context.Context, params ports.OfferListParams) ([]domain.TradeOffer, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var matched []domain.TradeOffer
	for _, o := range r.store.offers {
		if o.Status != domain.OfferStatusActive {
			continue
		}
		if params.BaseCryptocurrency != "" && o.BaseCryptocurrency != params.BaseCryptocurrency {
			continue
		}
		if params.QuoteCryptocurrency != "" && o.QuoteCryptocurrency != params.QuoteCryptocurrency {
			continue
		}
		if params.OfferType != "" && o.OfferType != params.OfferType {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *memOfferRepo) Transition(ctx context.Context, tx pgx.Tx, o *domain.TradeOffer, from domain.OfferStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.offers[o.ID]
	if !ok || existing.Status != from {
		return fmt.Errorf("offer %s not in status %s: %w", o.ID, from, ports.ErrStateConflict)
	}
	existing.Status = o.Status
	existing.ReservedWalletID = o.ReservedWalletID
	existing.ReservedAmount = o.ReservedAmount
	existing.UpdatedAt = o.UpdatedAt
	r.store.offers[o.ID] = existing
	return nil
}

// --- Acceptances ---

type memAcceptanceRepo struct{ store *memStore }

func (r *memAcceptanceRepo) Claim(ctx context.Context, tx pgx.Tx, a *domain.OfferAcceptance) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[a.BuyerID]; !ok {
		return ports.ErrUnknownUser
	}
	if _, ok := r.store.offers[a.OfferID]; !ok {
		return ports.ErrMissingReference
	}
	for _, existing := range r.store.acceptances {
		if existing.OfferID == a.OfferID && existing.BuyerID == a.BuyerID {
			return ports.ErrDuplicate
		}
	}
	r.store.acceptances[a.ID] = *a
	return nil
}

// --- Trades ---

type memTradeRepo struct{ store *memStore }

func (r *memTradeRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Trade) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.trades {
		if existing.OfferID == t.OfferID {
			return ports.ErrDuplicate
		}
	}
	r.store.trades[t.ID] = *t
	return nil
}

func (r *memTradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	t, ok := r.store.trades[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *memTradeRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Trade, error) {
	return r.GetByID(ctx, id)
}

func (r *memTradeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Trade, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []domain.Trade
	for _, t := range r.store.trades {
		if t.BuyerID == userID || t.SellerID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memTradeRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, t *domain.Trade) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.trades[t.ID]
	if !ok || existing.Status != domain.TradeStatusPending {
		return fmt.Errorf("trade %s not pending: %w", t.ID, ports.ErrStateConflict)
	}
	existing.Status = domain.TradeStatusCompleted
	existing.CompletedAt = t.CompletedAt
	r.store.trades[t.ID] = existing
	return nil
}

func (r *memTradeRepo) CountByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (domain.TradeStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var stats domain.TradeStats
	for _, t := range r.store.trades {
		if t.BuyerID != userID && t.SellerID != userID {
			continue
		}
		stats.TotalTrades++
		if t.Status == domain.TradeStatusCompleted {
			stats.CompletedTrades++
		}
	}
	return stats, nil
}
