package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/subsyncapp/subsync/app/models"
)

// fakeGateway records calls and returns canned responses. Tests configure
// the fields they care about; zero values behave like a healthy processor.
type fakeGateway struct {
	mu sync.Mutex

	createCustomerCalls int
	attachCalls         int
	setDefaultCalls     int
	createSubCalls      int
	updateSubCalls      int
	parseCalls          int

	attachErr    error
	createSubErr error

	// updateSubHook runs at the start of UpdateSubscription, outside the
	// gateway mutex. Tests use it to interleave work with an in-flight
	// remote call.
	updateSubHook func()

	remote *RemoteSubscription

	lastCancelFlag    bool
	updatedProducts   map[string]string
	archivedProducts  []string
	createdPrices     []string
	archivedPrices    []string
	nextPriceID       int
	nextProductID     int

	event     *Event
	verifyErr error

	parsed       *RemoteSubscription
	invoiceSubID string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{updatedProducts: map[string]string{}}
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, email, name string, userID uint) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCustomerCalls++
	return fmt.Sprintf("cus_test_%d", userID), nil
}

func (g *fakeGateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attachCalls++
	return g.attachErr
}

func (g *fakeGateway) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setDefaultCalls++
	return nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, customerID, priceID string, trialDays int) (*RemoteSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createSubCalls++
	if g.createSubErr != nil {
		return nil, g.createSubErr
	}
	if g.remote != nil {
		remote := *g.remote
		if remote.CustomerID == "" {
			remote.CustomerID = customerID
		}
		return &remote, nil
	}
	now := time.Now()
	return &RemoteSubscription{
		ID:                 fmt.Sprintf("sub_test_%d", g.createSubCalls),
		CustomerID:         customerID,
		Status:             "active",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		ClientSecret:       "pi_secret_test",
	}, nil
}

func (g *fakeGateway) UpdateSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) (*RemoteSubscription, error) {
	if g.updateSubHook != nil {
		g.updateSubHook()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateSubCalls++
	g.lastCancelFlag = cancelAtPeriodEnd
	return &RemoteSubscription{ID: subscriptionID, Status: "active", CancelAtPeriodEnd: cancelAtPeriodEnd}, nil
}

func (g *fakeGateway) CreateProduct(ctx context.Context, name, description string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextProductID++
	return fmt.Sprintf("prod_test_%d", g.nextProductID), nil
}

func (g *fakeGateway) UpdateProduct(ctx context.Context, productID, name, description string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updatedProducts[productID] = name
	return nil
}

func (g *fakeGateway) ArchiveProduct(ctx context.Context, productID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.archivedProducts = append(g.archivedProducts, productID)
	return nil
}

func (g *fakeGateway) CreatePrice(ctx context.Context, productID string, unitAmount int64, interval string, trialDays int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextPriceID++
	id := fmt.Sprintf("price_test_%d", g.nextPriceID)
	g.createdPrices = append(g.createdPrices, id)
	return id, nil
}

func (g *fakeGateway) ArchivePrice(ctx context.Context, priceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.archivedPrices = append(g.archivedPrices, priceID)
	return nil
}

func (g *fakeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	ev := *g.event
	return &ev, nil
}

func (g *fakeGateway) ParseSubscription(ev *Event) (*RemoteSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.parseCalls++
	remote := *g.parsed
	return &remote, nil
}

func (g *fakeGateway) ParseInvoiceSubscriptionID(ev *Event) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.invoiceSubID, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uint]models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uint]models.User{}}
}

func (r *fakeUserRepo) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == 0 {
		user.ID = uint(len(r.users) + 1)
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByAPIKeyHash(hash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.APIKeyHash == hash {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) SetStripeCustomerID(userID uint, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.StripeCustomerID = &customerID
	r.users[userID] = user
	return nil
}

type fakePlanRepo struct {
	mu       sync.Mutex
	plans    map[uint]models.Plan
	nextID   uint
	entitled map[uint]int64
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: map[uint]models.Plan{}, entitled: map[uint]int64{}}
}

func (r *fakePlanRepo) Create(plan *models.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if plan.ID == 0 {
		r.nextID++
		plan.ID = r.nextID
	}
	r.plans[plan.ID] = *plan
	return nil
}

func (r *fakePlanRepo) GetByID(id uint) (*models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	plan, ok := r.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &plan, nil
}

func (r *fakePlanRepo) List(activeOnly bool) ([]models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Plan
	for _, plan := range r.plans {
		if activeOnly && !plan.IsActive {
			continue
		}
		out = append(out, plan)
	}
	return out, nil
}

func (r *fakePlanRepo) Update(plan *models.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[plan.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.plans[plan.ID] = *plan
	return nil
}

func (r *fakePlanRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.plans, id)
	return nil
}

func (r *fakePlanRepo) CountSubscriptionsInStatus(planID uint, statuses []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entitled[planID], nil
}

// fakeSubRepo enforces the same uniqueness the store-level index does: at
// most one subscription per user may carry a non-nil ActiveUserID. It runs
// the model's BeforeSave hook so the mirror column behaves like it would
// under GORM.
type fakeSubRepo struct {
	mu          sync.Mutex
	subs        map[uint]models.Subscription
	nextID      uint
	updateCalls int
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: map[uint]models.Subscription{}}
}

func (r *fakeSubRepo) violatesActiveIndex(sub *models.Subscription) bool {
	if sub.ActiveUserID == nil {
		return false
	}
	for id, existing := range r.subs {
		if id == sub.ID {
			continue
		}
		if existing.ActiveUserID != nil && *existing.ActiveUserID == *sub.ActiveUserID {
			return true
		}
	}
	return false
}

func (r *fakeSubRepo) Create(sub *models.Subscription) error {
	if err := sub.BeforeSave(nil); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.violatesActiveIndex(sub) {
		return gorm.ErrDuplicatedKey
	}
	r.nextID++
	sub.ID = r.nextID
	r.subs[sub.ID] = *sub
	return nil
}

func (r *fakeSubRepo) GetByUUID(uuid string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.UUID == uuid {
			s := sub
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubRepo) GetByUUIDAndUser(uuid string, userID uint) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.UUID == uuid && sub.UserID == userID {
			s := sub
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubRepo) GetByStripeID(stripeSubscriptionID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.StripeSubscriptionID == stripeSubscriptionID {
			s := sub
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubRepo) FindEntitledByUser(userID uint) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.UserID == userID && sub.IsEntitling() {
			s := sub
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubRepo) ListByUser(userID uint) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (r *fakeSubRepo) Update(sub *models.Subscription) error {
	if err := sub.BeforeSave(nil); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	if r.violatesActiveIndex(sub) {
		return gorm.ErrDuplicatedKey
	}
	r.updateCalls++
	r.subs[sub.ID] = *sub
	return nil
}

func (r *fakeSubRepo) get(id uint) models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[id]
}

type fakeEventRepo struct {
	mu  sync.Mutex
	ids map[string]string
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{ids: map[string]string{}}
}

func (r *fakeEventRepo) Exists(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok, nil
}

func (r *fakeEventRepo) CreateIfNotExists(event *models.WebhookEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[event.ID]; ok {
		return false, nil
	}
	r.ids[event.ID] = event.Type
	return true, nil
}

func (r *fakeEventRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) NotifyTrialWillEnd(user *models.User, sub *models.Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, sub.StripeSubscriptionID)
}

// testEnv bundles a service with all its fake dependencies.
type testEnv struct {
	gateway  *fakeGateway
	users    *fakeUserRepo
	plans    *fakePlanRepo
	subs     *fakeSubRepo
	events   *fakeEventRepo
	notifier *fakeNotifier
	svc      *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		gateway:  newFakeGateway(),
		users:    newFakeUserRepo(),
		plans:    newFakePlanRepo(),
		subs:     newFakeSubRepo(),
		events:   newFakeEventRepo(),
		notifier: &fakeNotifier{},
	}
	env.svc = NewService(env.gateway, env.users, env.plans, env.subs, env.events, env.notifier)
	return env
}

func (e *testEnv) seedUser(id uint) *models.User {
	user := &models.User{
		ID:     id,
		Name:   fmt.Sprintf("User %d", id),
		Email:  fmt.Sprintf("user%d@example.com", id),
		Role:   models.ROLE_USER,
		Status: models.STATUS_ACTIVE,
	}
	_ = e.users.Create(user)
	return user
}

func (e *testEnv) seedPlan(trialDays int) *models.Plan {
	plan := &models.Plan{
		Name:            "Pro",
		Price:           1999,
		Interval:        models.PlanIntervalMonth,
		TrialDays:       trialDays,
		IsActive:        true,
		StripePriceID:   "price_pro",
		StripeProductID: "prod_pro",
	}
	_ = e.plans.Create(plan)
	return plan
}

func (e *testEnv) seedSubscription(userID, planID uint, stripeID, status string) *models.Subscription {
	sub := &models.Subscription{
		UserID:               userID,
		PlanID:               planID,
		StripeSubscriptionID: stripeID,
		StripeCustomerID:     fmt.Sprintf("cus_test_%d", userID),
		Status:               status,
		CurrentPeriodStart:   time.Now().Add(-time.Hour),
		CurrentPeriodEnd:     time.Now().AddDate(0, 1, 0),
	}
	if err := e.subs.Create(sub); err != nil {
		panic(err)
	}
	return sub
}
