package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/thirtybees/blocknewsletter/internal/captcha"
	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	"github.com/thirtybees/blocknewsletter/internal/domain/repository"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

// ============================================================================
// In-memory fakes for service tests
// ============================================================================

var errStoreDown = errors.New("store is down")

type fakeSubscriberRepo struct {
	mu      sync.Mutex
	rows    map[uint]*entity.NewsletterSubscriber
	nextID  uint
	writes  int
	failAll bool
}

func newFakeSubscriberRepo() *fakeSubscriberRepo {
	return &fakeSubscriberRepo{rows: map[uint]*entity.NewsletterSubscriber{}, nextID: 1}
}

func (r *fakeSubscriberRepo) sortedIDs() []uint {
	ids := make([]uint, 0, len(r.rows))
	for id := range r.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *fakeSubscriberRepo) Create(_ context.Context, s *entity.NewsletterSubscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errStoreDown
	}
	s.ID = r.nextID
	r.nextID++
	row := *s
	r.rows[s.ID] = &row
	r.writes++
	return nil
}

func (r *fakeSubscriberRepo) FindActiveByEmail(_ context.Context, shopID uint, email string) (*entity.NewsletterSubscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errStoreDown
	}
	for _, id := range r.sortedIDs() {
		row := r.rows[id]
		if row.ShopID == shopID && strings.EqualFold(row.Email, email) && row.Active {
			found := *row
			return &found, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeSubscriberRepo) ScanPending(_ context.Context, batchSize int, fn func([]entity.NewsletterSubscriber) error) error {
	r.mu.Lock()
	var pending []entity.NewsletterSubscriber
	for _, id := range r.sortedIDs() {
		if !r.rows[id].Active {
			pending = append(pending, *r.rows[id])
		}
	}
	r.mu.Unlock()

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := fn(pending[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeSubscriberRepo) Activate(_ context.Context, id uint) (*entity.NewsletterSubscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Active {
		return nil, apperrors.ErrNotFound
	}
	row.Active = true
	for otherID, other := range r.rows {
		if otherID != id && !other.Active && other.ShopID == row.ShopID && strings.EqualFold(other.Email, row.Email) {
			delete(r.rows, otherID)
		}
	}
	r.writes++
	activated := *row
	return &activated, nil
}

func (r *fakeSubscriberRepo) Deactivate(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	row.Active = false
	r.writes++
	return nil
}

func (r *fakeSubscriberRepo) DeleteByEmail(_ context.Context, shopID uint, email string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return 0, errStoreDown
	}
	var n int64
	for id, row := range r.rows {
		if row.ShopID == shopID && strings.EqualFold(row.Email, email) {
			delete(r.rows, id)
			n++
		}
	}
	r.writes++
	return n, nil
}

func (r *fakeSubscriberRepo) ListActive(_ context.Context, filter repository.SubscriberListFilter) ([]entity.SubscriberRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := []entity.SubscriberRecord{}
	for _, id := range r.sortedIDs() {
		row := r.rows[id]
		if !row.Active || !matchesFilter(row.Email, row.ShopID, filter) {
			continue
		}
		at := row.SubscribedAt
		records = append(records, entity.SubscriberRecord{
			ID:           entity.GuestRecordID(row.ID),
			ShopName:     "Default shop",
			Email:        row.Email,
			Subscribed:   true,
			SubscribedOn: &at,
		})
	}
	return records, nil
}

func (r *fakeSubscriberRepo) get(id uint) *entity.NewsletterSubscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *fakeSubscriberRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func matchesFilter(email string, shopID uint, filter repository.SubscriberListFilter) bool {
	if filter.ShopID != nil && *filter.ShopID != shopID {
		return false
	}
	if filter.EmailSearch != "" && !strings.Contains(strings.ToLower(email), strings.ToLower(filter.EmailSearch)) {
		return false
	}
	return true
}

type fakeCustomer struct {
	entity.Customer
	CountryIDs []uint
}

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[uint]*fakeCustomer
	nextID    uint
	writes    int
	lastQuery *repository.CustomerExportFilter
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: map[uint]*fakeCustomer{}, nextID: 1}
}

func (r *fakeCustomerRepo) add(c entity.Customer, countries ...uint) *entity.Customer {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID
	r.nextID++
	if c.ShopID == 0 {
		c.ShopID = 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	}
	r.customers[c.ID] = &fakeCustomer{Customer: c, CountryIDs: countries}
	return &r.customers[c.ID].Customer
}

func (r *fakeCustomerRepo) sortedIDs() []uint {
	ids := make([]uint, 0, len(r.customers))
	for id := range r.customers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *fakeCustomerRepo) GetByID(_ context.Context, id uint) (*entity.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	found := c.Customer
	return &found, nil
}

func (r *fakeCustomerRepo) FindByEmail(_ context.Context, shopID uint, email string) (*entity.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.sortedIDs() {
		c := r.customers[id]
		if c.ShopID == shopID && strings.EqualFold(c.Email, email) {
			found := c.Customer
			return &found, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeCustomerRepo) ScanPending(_ context.Context, batchSize int, fn func([]entity.Customer) error) error {
	r.mu.Lock()
	var pending []entity.Customer
	for _, id := range r.sortedIDs() {
		if !r.customers[id].Newsletter {
			pending = append(pending, r.customers[id].Customer)
		}
	}
	r.mu.Unlock()

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := fn(pending[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCustomerRepo) Subscribe(_ context.Context, id uint, ip string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.Newsletter = true
	c.NewsletterDateAdd = &at
	c.RegistrationIP = ip
	r.writes++
	return nil
}

func (r *fakeCustomerRepo) Unsubscribe(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.Newsletter = false
	r.writes++
	return nil
}

func (r *fakeCustomerRepo) record(c *fakeCustomer) entity.SubscriberRecord {
	return entity.SubscriberRecord{
		ID:           entity.CustomerRecordID(c.ID),
		ShopName:     "Default shop",
		Gender:       "Mr",
		LastName:     c.LastName,
		FirstName:    c.FirstName,
		Email:        c.Email,
		Subscribed:   c.Newsletter,
		SubscribedOn: c.NewsletterDateAdd,
	}
}

func (r *fakeCustomerRepo) ListSubscribed(_ context.Context, filter repository.SubscriberListFilter) ([]entity.SubscriberRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := []entity.SubscriberRecord{}
	for _, id := range r.sortedIDs() {
		c := r.customers[id]
		if c.Newsletter && matchesFilter(c.Email, c.ShopID, filter) {
			records = append(records, r.record(c))
		}
	}
	return records, nil
}

func (r *fakeCustomerRepo) ListForExport(_ context.Context, filter repository.CustomerExportFilter) ([]entity.SubscriberRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastQuery = &filter
	records := []entity.SubscriberRecord{}
	for _, id := range r.sortedIDs() {
		c := r.customers[id]
		if c.Newsletter != filter.Subscribed {
			continue
		}
		if filter.Optin != nil && c.Optin != *filter.Optin {
			continue
		}
		if filter.ShopID != nil && c.ShopID != *filter.ShopID {
			continue
		}
		if filter.CountryID != 0 && !containsUint(c.CountryIDs, filter.CountryID) {
			continue
		}
		records = append(records, r.record(c))
	}
	return records, nil
}

func (r *fakeCustomerRepo) get(id uint) entity.Customer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.customers[id].Customer
}

func containsUint(values []uint, v uint) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

type fakeSettingRepo struct {
	mu         sync.Mutex
	values     map[string]string
	gets       int
	failGetAll bool
}

func newFakeSettingRepo() *fakeSettingRepo {
	return &fakeSettingRepo{values: map[string]string{}}
}

func (r *fakeSettingRepo) GetAll(context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.failGetAll {
		return nil, errStoreDown
	}
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out, nil
}

func (r *fakeSettingRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (r *fakeSettingRepo) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

func (r *fakeSettingRepo) CreateIfAbsent(_ context.Context, key, value string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.values[key]; ok {
		return false, nil
	}
	r.values[key] = value
	return true, nil
}

type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case string:
		c.values[key] = v
	case []byte:
		c.values[key] = string(v)
	default:
		return errors.New("unsupported value")
	}
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, exp)
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	v, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(v), dest)
}

func (c *fakeCache) GetDel(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	delete(c.values, key)
	return v, nil
}

type staticSalt string

func (s staticSalt) SecretSalt(context.Context) (string, error) { return string(s), nil }

type staticSettings struct {
	settings Settings
	err      error
}

func (s *staticSettings) Get(context.Context) (*Settings, error) {
	if s.err != nil {
		return nil, s.err
	}
	copied := s.settings
	return &copied, nil
}

type sentMail struct {
	Kind  string
	To    string
	Value string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) add(kind, to, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Kind: kind, To: to, Value: value})
	return m.err
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	return m.add("verification", to, token)
}

func (m *recordingMailer) SendVoucherEmail(_ context.Context, to, code string) error {
	return m.add("voucher", to, code)
}

func (m *recordingMailer) SendConfirmationEmail(_ context.Context, to string) error {
	return m.add("confirmation", to, "")
}

func (m *recordingMailer) byKind(kind string) []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMail
	for _, s := range m.sent {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type fixedCaptcha struct {
	outcome captcha.Outcome
	calls   int
}

func (f *fixedCaptcha) Validate(context.Context, captcha.Request) captcha.Outcome {
	f.calls++
	return f.outcome
}
