package testutil

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/domain/idempotency"
	"github.com/cassiomorais/realestate/internal/domain/outbox"
	"github.com/cassiomorais/realestate/internal/domain/payment"
	"github.com/cassiomorais/realestate/internal/domain/property"
	"github.com/cassiomorais/realestate/internal/domain/user"
	"github.com/google/uuid"
)

// Store is an in-memory stand-in for the PostgreSQL repositories.
//
// Transactions opened with WithTransaction stage their writes and apply them on
// commit. Payment rows are claimed skip-locked (a held row reads as missing) and
// property rows are locked blocking. Both locks are held until the transaction
// ends, like row locks in PostgreSQL.
type Store struct {
	mu         sync.Mutex
	users      map[int64]*user.User
	properties map[int64]*property.Property
	payments   map[int64]*payment.Payment
	outbox     []*outbox.Entry
	idem       map[string]*idempotency.Entry
	nextID     atomic.Int64

	rowMu     sync.Mutex
	rowLocks  map[string]*sync.Mutex
	hooksMu   sync.Mutex
	hooks     map[string]func(ctx context.Context) error
	commits   atomic.Int64
	rollbacks atomic.Int64
}

func NewStore() *Store {
	return &Store{
		users:      make(map[int64]*user.User),
		properties: make(map[int64]*property.Property),
		payments:   make(map[int64]*payment.Payment),
		idem:       make(map[string]*idempotency.Entry),
		rowLocks:   make(map[string]*sync.Mutex),
		hooks:      make(map[string]func(ctx context.Context) error),
	}
}

type txKey struct{}

type memTx struct {
	writes  []func()
	unlocks []func()
	held    map[string]bool
}

func txFrom(ctx context.Context) (*memTx, bool) {
	t, ok := ctx.Value(txKey{}).(*memTx)
	return t, ok
}

// WithTransaction implements service.TransactionManager. Nested calls join the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	t := &memTx{held: make(map[string]bool)}
	defer func() {
		for i := len(t.unlocks) - 1; i >= 0; i-- {
			t.unlocks[i]()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		s.rollbacks.Add(1)
		return err
	}
	if err := s.hook(ctx, "commit"); err != nil {
		s.rollbacks.Add(1)
		return fmt.Errorf("commit tx: %w", err)
	}

	s.mu.Lock()
	for _, w := range t.writes {
		w()
	}
	s.mu.Unlock()
	s.commits.Add(1)
	return nil
}

// SetHook runs fn before the named operation, e.g. "payments.GetForProcessing",
// "properties.MarkSold", "stats.CountUsers" or "commit". A non-nil error from fn
// is returned by the operation.
func (s *Store) SetHook(op string, fn func(ctx context.Context) error) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks[op] = fn
}

func (s *Store) hook(ctx context.Context, op string) error {
	s.hooksMu.Lock()
	fn := s.hooks[op]
	s.hooksMu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (s *Store) Commits() int64   { return s.commits.Load() }
func (s *Store) Rollbacks() int64 { return s.rollbacks.Load() }

// write applies fn now, or on commit when ctx carries a transaction.
func (s *Store) write(ctx context.Context, fn func()) {
	if t, ok := txFrom(ctx); ok {
		t.writes = append(t.writes, fn)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Store) rowLock(key string) *sync.Mutex {
	s.rowMu.Lock()
	defer s.rowMu.Unlock()
	m, ok := s.rowLocks[key]
	if !ok {
		m = &sync.Mutex{}
		s.rowLocks[key] = m
	}
	return m
}

// lockRow takes the row lock for the rest of the transaction. With skip set it
// does not wait and reports false when another transaction holds the row.
func (s *Store) lockRow(ctx context.Context, key string, skip bool) bool {
	t, ok := txFrom(ctx)
	if !ok || t.held[key] {
		return true
	}
	m := s.rowLock(key)
	if skip {
		if !m.TryLock() {
			return false
		}
	} else {
		m.Lock()
	}
	t.held[key] = true
	t.unlocks = append(t.unlocks, m.Unlock)
	return true
}

func (s *Store) newID() int64 {
	return s.nextID.Add(1)
}

// --- Seeding and inspection ---

func (s *Store) AddUser(u *user.User) *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.newID()
	}
	cp := *u
	s.users[u.ID] = &cp
	return u
}

func (s *Store) AddProperty(p *property.Property) *property.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.newID()
	}
	cp := *p
	s.properties[p.ID] = &cp
	return p
}

func (s *Store) AddPayment(p *payment.Payment) *payment.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.newID()
	}
	cp := *p
	s.payments[p.ID] = &cp
	return p
}

// Payment returns a copy of the committed payment, or nil.
func (s *Store) Payment(id int64) *payment.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Property returns a copy of the committed property, or nil.
func (s *Store) Property(id int64) *property.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (s *Store) User(id int64) *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

// OutboxEntries returns the committed outbox entries in insertion order.
func (s *Store) OutboxEntries() []outbox.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outbox.Entry, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, *e)
	}
	return out
}

func (s *Store) Users() *UserRepo         { return &UserRepo{s: s} }
func (s *Store) Properties() *PropertyRepo { return &PropertyRepo{s: s} }
func (s *Store) Payments() *PaymentRepo   { return &PaymentRepo{s: s} }
func (s *Store) Outbox() *OutboxRepo      { return &OutboxRepo{s: s} }
func (s *Store) Stats() *StatsRepo        { return &StatsRepo{s: s} }
func (s *Store) Idempotency() *IdempotencyRepo {
	return &IdempotencyRepo{s: s}
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

// --- Users ---

// UserRepo implements user.Repository.
type UserRepo struct{ s *Store }

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	if err := r.s.hook(ctx, "users.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	for _, existing := range r.s.users {
		if existing.Username == u.Username || strings.EqualFold(existing.Email, u.Email) {
			r.s.mu.Unlock()
			return errors.ErrDuplicateUser
		}
	}
	r.s.mu.Unlock()

	u.ID = r.s.newID()
	cp := *u
	r.s.write(ctx, func() { r.s.users[cp.ID] = &cp })
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	if err := r.s.hook(ctx, "users.GetByID"); err != nil {
		return nil, err
	}
	if u := r.s.User(id); u != nil {
		return u, nil
	}
	return nil, errors.ErrUserNotFound
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	if err := r.s.hook(ctx, "users.GetByEmail"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]*user.User, error) {
	if err := r.s.hook(ctx, "users.List"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	all := make([]*user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		cp := *u
		all = append(all, &cp)
	}
	r.s.mu.Unlock()

	slices.SortFunc(all, func(a, b *user.User) int { return int(a.ID - b.ID) })
	return page(all, limit, offset), nil
}

func (r *UserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	return r.setFlag(ctx, id, func(u *user.User) { u.Active = active })
}

func (r *UserRepo) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	return r.setFlag(ctx, id, func(u *user.User) { u.IsAdmin = isAdmin })
}

func (r *UserRepo) setFlag(ctx context.Context, id int64, set func(*user.User)) error {
	if r.s.User(id) == nil {
		return errors.ErrUserNotFound
	}
	r.s.write(ctx, func() {
		if u, ok := r.s.users[id]; ok {
			set(u)
		}
	})
	return nil
}

// --- Properties ---

// PropertyRepo implements property.Repository.
type PropertyRepo struct{ s *Store }

func (r *PropertyRepo) Create(ctx context.Context, p *property.Property) error {
	if err := r.s.hook(ctx, "properties.Create"); err != nil {
		return err
	}
	if r.s.User(p.OwnerID) == nil {
		return errors.ErrUserNotFound
	}
	p.ID = r.s.newID()
	cp := *p
	r.s.write(ctx, func() { r.s.properties[cp.ID] = &cp })
	return nil
}

func (r *PropertyRepo) GetByID(ctx context.Context, id int64) (*property.Property, error) {
	if err := r.s.hook(ctx, "properties.GetByID"); err != nil {
		return nil, err
	}
	if p := r.s.Property(id); p != nil {
		return p, nil
	}
	return nil, errors.ErrPropertyNotFound
}

func (r *PropertyRepo) Lock(ctx context.Context, id int64) (*property.Property, error) {
	if err := r.s.hook(ctx, "properties.Lock"); err != nil {
		return nil, err
	}
	r.s.lockRow(ctx, fmt.Sprintf("property:%d", id), false)
	if p := r.s.Property(id); p != nil {
		return p, nil
	}
	return nil, errors.ErrPropertyNotFound
}

func (r *PropertyRepo) Update(ctx context.Context, p *property.Property) error {
	if err := r.s.hook(ctx, "properties.Update"); err != nil {
		return err
	}
	if r.s.Property(p.ID) == nil {
		return errors.ErrPropertyNotFound
	}
	cp := *p
	r.s.write(ctx, func() {
		if cur, ok := r.s.properties[cp.ID]; ok {
			cur.Title, cur.Description, cur.Address, cur.Price = cp.Title, cp.Description, cp.Address, cp.Price
		}
	})
	return nil
}

// MarkSold waits for the property row lock, then flips sold only if the
// committed row is still unsold.
func (r *PropertyRepo) MarkSold(ctx context.Context, id int64) (bool, error) {
	if err := r.s.hook(ctx, "properties.MarkSold"); err != nil {
		return false, err
	}
	r.s.lockRow(ctx, fmt.Sprintf("property:%d", id), false)

	p := r.s.Property(id)
	if p == nil || p.Sold {
		return false, nil
	}
	r.s.write(ctx, func() {
		if cur, ok := r.s.properties[id]; ok {
			cur.Sold = true
		}
	})
	return true, nil
}

func (r *PropertyRepo) SetPhoto(ctx context.Context, id int64, key string) error {
	if err := r.s.hook(ctx, "properties.SetPhoto"); err != nil {
		return err
	}
	if r.s.Property(id) == nil {
		return errors.ErrPropertyNotFound
	}
	r.s.write(ctx, func() {
		if cur, ok := r.s.properties[id]; ok {
			cur.PhotoKey = &key
		}
	})
	return nil
}

func (r *PropertyRepo) Delete(ctx context.Context, id int64) error {
	if err := r.s.hook(ctx, "properties.Delete"); err != nil {
		return err
	}
	if r.s.Property(id) == nil {
		return errors.ErrPropertyNotFound
	}
	r.s.write(ctx, func() { delete(r.s.properties, id) })
	return nil
}

func (r *PropertyRepo) List(ctx context.Context, f property.ListFilter) ([]*property.Property, error) {
	if err := r.s.hook(ctx, "properties.List"); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))

	r.s.mu.Lock()
	var out []*property.Property
	for _, p := range r.s.properties {
		if q != "" && !strings.Contains(strings.ToLower(p.Title+"\n"+p.Description+"\n"+p.Address), q) {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		if f.Sold != nil && p.Sold != *f.Sold {
			continue
		}
		if f.OwnerID != nil && p.OwnerID != *f.OwnerID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	r.s.mu.Unlock()

	slices.SortFunc(out, func(a, b *property.Property) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return page(out, f.Limit, f.Offset), nil
}

// --- Payments ---

// PaymentRepo implements payment.Repository.
type PaymentRepo struct{ s *Store }

func (r *PaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	if err := r.s.hook(ctx, "payments.Create"); err != nil {
		return err
	}
	if r.s.Property(p.PropertyID) == nil {
		return errors.ErrPropertyNotFound
	}
	p.ID = r.s.newID()
	cp := *p
	r.s.write(ctx, func() { r.s.payments[cp.ID] = &cp })
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	if err := r.s.hook(ctx, "payments.GetByID"); err != nil {
		return nil, err
	}
	if p := r.s.Payment(id); p != nil {
		return p, nil
	}
	return nil, errors.ErrPaymentNotFound
}

// GetForProcessing claims the payment row without waiting. A row claimed by
// another transaction reads as missing.
func (r *PaymentRepo) GetForProcessing(ctx context.Context, id int64) (*payment.Payment, error) {
	if err := r.s.hook(ctx, "payments.GetForProcessing"); err != nil {
		return nil, err
	}
	if !r.s.lockRow(ctx, fmt.Sprintf("payment:%d", id), true) {
		return nil, errors.ErrPaymentNotFound
	}
	if p := r.s.Payment(id); p != nil {
		return p, nil
	}
	return nil, errors.ErrPaymentNotFound
}

func (r *PaymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	if err := r.s.hook(ctx, "payments.Update"); err != nil {
		return err
	}
	if r.s.Payment(p.ID) == nil {
		return errors.ErrPaymentNotFound
	}
	id, status, updatedAt := p.ID, p.Status, p.UpdatedAt
	r.s.write(ctx, func() {
		if cur, ok := r.s.payments[id]; ok {
			cur.Status, cur.UpdatedAt = status, updatedAt
		}
	})
	return nil
}

func (r *PaymentRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*payment.Payment, error) {
	if err := r.s.hook(ctx, "payments.ListByUser"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	var out []*payment.Payment
	for _, p := range r.s.payments {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	r.s.mu.Unlock()

	slices.SortFunc(out, func(a, b *payment.Payment) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return page(out, limit, offset), nil
}

func (r *PaymentRepo) DeleteByProperty(ctx context.Context, propertyID int64) (int64, error) {
	if err := r.s.hook(ctx, "payments.DeleteByProperty"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	var ids []int64
	for id, p := range r.s.payments {
		if p.PropertyID == propertyID {
			ids = append(ids, id)
		}
	}
	r.s.mu.Unlock()

	r.s.write(ctx, func() {
		for _, id := range ids {
			delete(r.s.payments, id)
		}
	})
	return int64(len(ids)), nil
}

// --- Outbox ---

// OutboxRepo implements outbox.Repository.
type OutboxRepo struct{ s *Store }

func (r *OutboxRepo) Insert(ctx context.Context, entry *outbox.Entry) error {
	if err := r.s.hook(ctx, "outbox.Insert"); err != nil {
		return err
	}
	cp := *entry
	r.s.write(ctx, func() { r.s.outbox = append(r.s.outbox, &cp) })
	return nil
}

func (r *OutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if err := r.s.hook(ctx, "outbox.GetPending"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range r.s.outbox {
		if e.Status != outbox.StatusPending {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if err := r.s.hook(ctx, "outbox.MarkPublished"); err != nil {
		return err
	}
	now := time.Now()
	r.s.write(ctx, func() {
		for _, e := range r.s.outbox {
			if e.ID == id {
				e.Status = outbox.StatusPublished
				e.PublishedAt = &now
			}
		}
	})
	return nil
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if err := r.s.hook(ctx, "outbox.MarkFailed"); err != nil {
		return err
	}
	r.s.write(ctx, func() {
		for _, e := range r.s.outbox {
			if e.ID == id {
				e.RetryCount++
				if e.Exhausted() {
					e.Status = outbox.StatusFailed
				}
			}
		}
	})
	return nil
}

// --- Statistics ---

// StatsRepo implements stats.Repository over the committed data.
type StatsRepo struct{ s *Store }

func (r *StatsRepo) read(ctx context.Context, name string, fn func() float64) (float64, error) {
	if err := r.s.hook(ctx, "stats."+name); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(), nil
}

func (r *StatsRepo) readInt(ctx context.Context, name string, fn func() float64) (int64, error) {
	v, err := r.read(ctx, name, fn)
	return int64(v), err
}

func (r *StatsRepo) CountUsers(ctx context.Context) (int64, error) {
	return r.readInt(ctx, "CountUsers", func() float64 { return float64(len(r.s.users)) })
}

func (r *StatsRepo) CountProperties(ctx context.Context) (int64, error) {
	return r.readInt(ctx, "CountProperties", func() float64 { return float64(len(r.s.properties)) })
}

func (r *StatsRepo) CountPayments(ctx context.Context) (int64, error) {
	return r.readInt(ctx, "CountPayments", func() float64 { return float64(len(r.s.payments)) })
}

func (r *StatsRepo) SumPaidAmount(ctx context.Context) (int64, error) {
	return r.readInt(ctx, "SumPaidAmount", func() float64 {
		var sum int64
		for _, p := range r.s.payments {
			if p.Status == payment.StatusPaid {
				sum += p.Amount
			}
		}
		return float64(sum)
	})
}

func (r *StatsRepo) AveragePrice(ctx context.Context) (float64, error) {
	return r.read(ctx, "AveragePrice", func() float64 {
		if len(r.s.properties) == 0 {
			return 0
		}
		var sum int64
		for _, p := range r.s.properties {
			sum += p.Price
		}
		return float64(sum) / float64(len(r.s.properties))
	})
}

func (r *StatsRepo) MinPrice(ctx context.Context) (int64, error) {
	return r.readInt(ctx, "MinPrice", func() float64 {
		var out int64
		for _, p := range r.s.properties {
			if out == 0 || p.Price < out {
				out = p.Price
			}
		}
		return float64(out)
	})
}

func (r *StatsRepo) MaxPrice(ctx context.Context) (int64, error) {
	return r.readInt(ctx, "MaxPrice", func() float64 {
		var out int64
		for _, p := range r.s.properties {
			out = max(out, p.Price)
		}
		return float64(out)
	})
}

func (r *StatsRepo) CountPaidPayments(ctx context.Context) (int64, error) {
	return r.readInt(ctx, "CountPaidPayments", func() float64 {
		var n int
		for _, p := range r.s.payments {
			if p.Status == payment.StatusPaid {
				n++
			}
		}
		return float64(n)
	})
}

func (r *StatsRepo) CountSoldProperties(ctx context.Context) (int64, error) {
	return r.readInt(ctx, "CountSoldProperties", func() float64 {
		sold := make(map[int64]struct{})
		for _, p := range r.s.payments {
			if p.Status == payment.StatusPaid {
				sold[p.PropertyID] = struct{}{}
			}
		}
		return float64(len(sold))
	})
}

func (r *StatsRepo) AveragePaidAmount(ctx context.Context) (float64, error) {
	return r.read(ctx, "AveragePaidAmount", func() float64 {
		var sum int64
		var n int
		for _, p := range r.s.payments {
			if p.Status == payment.StatusPaid {
				sum += p.Amount
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return float64(sum) / float64(n)
	})
}

func (r *StatsRepo) CountOwners(ctx context.Context) (int64, error) {
	return r.readInt(ctx, "CountOwners", func() float64 {
		owners := make(map[int64]struct{})
		for _, p := range r.s.properties {
			owners[p.OwnerID] = struct{}{}
		}
		return float64(len(owners))
	})
}

// --- Idempotency ---

// IdempotencyRepo implements idempotency.Repository.
type IdempotencyRepo struct{ s *Store }

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*idempotency.Entry, error) {
	if err := r.s.hook(ctx, "idempotency.Get"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.idem[key]
	if !ok || !e.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *IdempotencyRepo) Set(ctx context.Context, entry *idempotency.Entry) error {
	if err := r.s.hook(ctx, "idempotency.Set"); err != nil {
		return err
	}
	cp := *entry
	r.s.mu.Lock()
	r.s.idem[cp.Key] = &cp
	r.s.mu.Unlock()
	return nil
}
