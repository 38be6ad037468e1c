package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/karobarhq/karobar/app/models"
)

// fakeRepo keeps ledger state in memory. Save methods store copies and Get
// methods return copies so WithinTransaction can roll back by snapshot.
type fakeRepo struct {
	orgs      map[uint]models.Organization
	subs      map[uint]models.Subscription
	txs       map[string]models.PaymentTransaction
	usage     map[uint]models.Usage
	failReset bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orgs:  make(map[uint]models.Organization),
		subs:  make(map[uint]models.Subscription),
		txs:   make(map[string]models.PaymentTransaction),
		usage: make(map[uint]models.Usage),
	}
}

func (f *fakeRepo) seedOrg(orgID uint, sub *models.Subscription) {
	f.orgs[orgID] = models.Organization{ID: orgID, Name: "Org", Slug: "org", Plan: sub.Plan}
	f.subs[orgID] = *sub
	f.usage[orgID] = models.Usage{OrganizationID: orgID, APICallsUsed: 7}
}

func (f *fakeRepo) GetOrganization(id uint) (*models.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, errors.New("organization not found")
	}
	return &org, nil
}

func (f *fakeRepo) SaveOrganization(org *models.Organization) error {
	f.orgs[org.ID] = *org
	return nil
}

func (f *fakeRepo) GetSubscriptionByOrg(orgID uint) (*models.Subscription, error) {
	sub, ok := f.subs[orgID]
	if !ok {
		return nil, errors.New("subscription not found")
	}
	return &sub, nil
}

func (f *fakeRepo) SaveSubscription(sub *models.Subscription) error {
	f.subs[sub.OrganizationID] = *sub
	return nil
}

func (f *fakeRepo) CreateTransaction(tx *models.PaymentTransaction) error {
	f.txs[tx.TransactionID] = *tx
	return nil
}

func (f *fakeRepo) GetTransactionByTransactionID(transactionID string) (*models.PaymentTransaction, error) {
	tx, ok := f.txs[transactionID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &tx, nil
}

func (f *fakeRepo) SaveTransaction(tx *models.PaymentTransaction) error {
	f.txs[tx.TransactionID] = *tx
	return nil
}

func (f *fakeRepo) ListTransactionsByOrg(orgID uint) ([]models.PaymentTransaction, error) {
	var out []models.PaymentTransaction
	for _, tx := range f.txs {
		if tx.OrganizationID == orgID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeRepo) ResetAPICallUsage(orgID uint) error {
	if f.failReset {
		return errors.New("usage write failed")
	}
	u := f.usage[orgID]
	u.APICallsUsed = 0
	f.usage[orgID] = u
	return nil
}

func (f *fakeRepo) WithinTransaction(fn func(Repository) error) error {
	snapOrgs := make(map[uint]models.Organization, len(f.orgs))
	for k, v := range f.orgs {
		snapOrgs[k] = v
	}
	snapSubs := make(map[uint]models.Subscription, len(f.subs))
	for k, v := range f.subs {
		snapSubs[k] = v
	}
	snapTxs := make(map[string]models.PaymentTransaction, len(f.txs))
	for k, v := range f.txs {
		snapTxs[k] = v
	}
	snapUsage := make(map[uint]models.Usage, len(f.usage))
	for k, v := range f.usage {
		snapUsage[k] = v
	}

	if err := fn(f); err != nil {
		f.orgs, f.subs, f.txs, f.usage = snapOrgs, snapSubs, snapTxs, snapUsage
		return err
	}
	return nil
}

type fakeGateway struct {
	provider string
	result   VerifyResult
	calls    int
}

func (g *fakeGateway) Provider() string { return g.provider }

func (g *fakeGateway) InitiatePayload(transactionID, plan string, amount int) (string, map[string]string) {
	return "https://pay.example/checkout?pid=" + transactionID, map[string]string{"pid": transactionID}
}

func (g *fakeGateway) Verify(ctx context.Context, transactionID string, amount int, referenceID string) VerifyResult {
	g.calls++
	return g.result
}

func newTestService(repo *fakeRepo, gw *fakeGateway, now time.Time) *Service {
	svc := NewService(repo, gw)
	svc.now = func() time.Time { return now }
	return svc
}

func expiredSubscription(orgID uint, now time.Time) *models.Subscription {
	sub := models.NewDefaultSubscription(orgID, now.Add(-30*24*time.Hour))
	sub.IsTrial = false
	sub.TrialEnd = nil
	return sub
}

func TestUpgradePlanRejectsUnknownPlan(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeGateway{provider: models.PaymentProviderEsewa}, time.Now())

	if _, err := svc.UpgradePlan(context.Background(), 1, "GOLD", "ESEWA"); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestUpgradePlanRejectsUnknownProvider(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.seedOrg(1, expiredSubscription(1, now))
	svc := newTestService(repo, &fakeGateway{provider: models.PaymentProviderEsewa}, now)

	if _, err := svc.UpgradePlan(context.Background(), 1, "PRO", "PAYPAL"); !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("expected ErrInvalidProvider, got %v", err)
	}
}

func TestTrialSwitchIsPaymentFree(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.seedOrg(1, models.NewDefaultSubscription(1, now.Add(-24*time.Hour)))
	svc := newTestService(repo, &fakeGateway{provider: models.PaymentProviderEsewa}, now)

	res, err := svc.UpgradePlan(context.Background(), 1, "pro", "ESEWA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied || res.Intent != nil {
		t.Fatalf("expected immediate trial switch, got %+v", res)
	}
	if repo.subs[1].Plan != models.PlanPro {
		t.Fatalf("subscription plan = %q, want PRO", repo.subs[1].Plan)
	}
	if repo.orgs[1].Plan != models.PlanPro {
		t.Fatalf("organization mirror = %q, want PRO", repo.orgs[1].Plan)
	}
	if len(repo.txs) != 0 {
		t.Fatalf("expected no payment transaction during trial, got %d", len(repo.txs))
	}
	if !repo.subs[1].IsTrial {
		t.Fatalf("trial flag must survive a trial switch")
	}
}

func TestDowngradeToFreeIsImmediate(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	sub := expiredSubscription(1, now)
	sub.Plan = models.PlanPro
	end := now.Add(10 * 24 * time.Hour)
	sub.EndDate = &end
	repo.seedOrg(1, sub)
	svc := newTestService(repo, &fakeGateway{provider: models.PaymentProviderEsewa}, now)

	res, err := svc.UpgradePlan(context.Background(), 1, "FREE", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied || res.Plan != models.PlanFree {
		t.Fatalf("expected immediate FREE downgrade, got %+v", res)
	}
	if repo.subs[1].Plan != models.PlanFree || repo.orgs[1].Plan != models.PlanFree {
		t.Fatalf("downgrade not mirrored: sub=%q org=%q", repo.subs[1].Plan, repo.orgs[1].Plan)
	}
	if len(repo.txs) != 0 {
		t.Fatalf("downgrade must not create a transaction")
	}
}

func TestPaidUpgradeCreatesIndependentPendingIntents(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.seedOrg(1, expiredSubscription(1, now))
	svc := newTestService(repo, &fakeGateway{provider: models.PaymentProviderEsewa}, now)

	first, err := svc.UpgradePlan(context.Background(), 1, "PRO", "esewa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Applied || first.Intent == nil {
		t.Fatalf("expected a payment intent, got %+v", first)
	}
	if first.Intent.Amount != 3900 {
		t.Fatalf("PRO amount = %d, want 3900", first.Intent.Amount)
	}
	if first.Intent.TransactionID == "" || first.Intent.RedirectURL == "" {
		t.Fatalf("incomplete intent: %+v", first.Intent)
	}

	second, err := svc.UpgradePlan(context.Background(), 1, "PRO", "ESEWA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Intent.TransactionID == first.Intent.TransactionID {
		t.Fatalf("repeated initiation must create an independent transaction")
	}
	if len(repo.txs) != 2 {
		t.Fatalf("expected 2 pending transactions, got %d", len(repo.txs))
	}
	for _, tx := range repo.txs {
		if tx.Status != models.PaymentStatusPending {
			t.Fatalf("new transaction status = %q, want PENDING", tx.Status)
		}
	}
}

func TestVerifyAndActivateSuccess(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.seedOrg(1, expiredSubscription(1, now))
	gw := &fakeGateway{provider: models.PaymentProviderEsewa, result: VerifyResult{OK: true, Message: "verified"}}
	svc := newTestService(repo, gw, now)

	res, err := svc.UpgradePlan(context.Background(), 1, "PRO", "ESEWA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome, err := svc.VerifyAndActivate(context.Background(), res.Intent.TransactionID, "REF-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q, want SUCCESS", outcome)
	}

	tx := repo.txs[res.Intent.TransactionID]
	if tx.Status != models.PaymentStatusSuccess || tx.ReferenceID != "REF-1" {
		t.Fatalf("transaction not settled: %+v", tx)
	}

	sub := repo.subs[1]
	if sub.Plan != models.PlanPro || !sub.IsActive || sub.IsTrial {
		t.Fatalf("subscription not activated: %+v", sub)
	}
	if sub.EndDate == nil || !sub.EndDate.Equal(now.Add(models.PaidPeriod)) {
		t.Fatalf("end date not stamped to now+30d: %v", sub.EndDate)
	}
	if repo.orgs[1].Plan != models.PlanPro {
		t.Fatalf("organization mirror = %q, want PRO", repo.orgs[1].Plan)
	}
	if repo.usage[1].APICallsUsed != 0 {
		t.Fatalf("api_calls_used not reset: %d", repo.usage[1].APICallsUsed)
	}
}

func TestVerifyAndActivateIsIdempotent(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.seedOrg(1, expiredSubscription(1, now))
	gw := &fakeGateway{provider: models.PaymentProviderEsewa, result: VerifyResult{OK: true, Message: "verified"}}
	svc := newTestService(repo, gw, now)

	res, _ := svc.UpgradePlan(context.Background(), 1, "BASIC", "ESEWA")
	if _, err := svc.VerifyAndActivate(context.Background(), res.Intent.TransactionID, "REF-1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstEnd := *repo.subs[1].EndDate

	// Move the clock; a second call must be a no-op, not a re-activation.
	svc.now = func() time.Time { return now.Add(48 * time.Hour) }
	outcome, err := svc.VerifyAndActivate(context.Background(), res.Intent.TransactionID, "REF-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q, want SUCCESS", outcome)
	}
	if gw.calls != 1 {
		t.Fatalf("gateway consulted %d times, want 1", gw.calls)
	}
	if !repo.subs[1].EndDate.Equal(firstEnd) {
		t.Fatalf("second call re-stamped the entitlement window")
	}
}

func TestTransientErrorLeavesTransactionPending(t *testing.T) {
	now := time.Now()
	for _, msg := range []string{"request error: connection timeout", "bad response: status=502"} {
		repo := newFakeRepo()
		repo.seedOrg(1, expiredSubscription(1, now))
		gw := &fakeGateway{provider: models.PaymentProviderEsewa, result: VerifyResult{OK: false, Message: msg}}
		svc := newTestService(repo, gw, now)

		res, _ := svc.UpgradePlan(context.Background(), 1, "PRO", "ESEWA")
		outcome, err := svc.VerifyAndActivate(context.Background(), res.Intent.TransactionID, "REF-1", 0)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", msg, err)
		}
		if outcome != OutcomePending {
			t.Fatalf("outcome for %q = %q, want PENDING", msg, outcome)
		}
		if repo.txs[res.Intent.TransactionID].Status != models.PaymentStatusPending {
			t.Fatalf("transient error flipped transaction out of PENDING")
		}
		if repo.subs[1].Plan == models.PlanPro {
			t.Fatalf("transient error must not activate the plan")
		}
	}
}

func TestExplicitRejectionIsTerminal(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.seedOrg(1, expiredSubscription(1, now))
	gw := &fakeGateway{provider: models.PaymentProviderEsewa, result: VerifyResult{OK: false, Message: "not verified: state=Pending"}}
	svc := newTestService(repo, gw, now)

	res, _ := svc.UpgradePlan(context.Background(), 1, "PRO", "ESEWA")
	outcome, err := svc.VerifyAndActivate(context.Background(), res.Intent.TransactionID, "REF-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %q, want FAILED", outcome)
	}
	if repo.txs[res.Intent.TransactionID].Status != models.PaymentStatusFailed {
		t.Fatalf("explicit rejection must persist FAILED")
	}

	// Terminal: later calls answer from the ledger without the gateway.
	gw.result = VerifyResult{OK: true, Message: "verified"}
	outcome, err = svc.VerifyAndActivate(context.Background(), res.Intent.TransactionID, "REF-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("FAILED is terminal, got %q", outcome)
	}
	if gw.calls != 1 {
		t.Fatalf("gateway consulted after terminal state")
	}
}

func TestObservedAmountMismatchFailsHard(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.seedOrg(1, expiredSubscription(1, now))
	gw := &fakeGateway{provider: models.PaymentProviderEsewa, result: VerifyResult{OK: true, Message: "verified"}}
	svc := newTestService(repo, gw, now)

	res, _ := svc.UpgradePlan(context.Background(), 1, "PRO", "ESEWA")
	outcome, err := svc.VerifyAndActivate(context.Background(), res.Intent.TransactionID, "REF-1", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %q, want FAILED on amount mismatch", outcome)
	}
	if gw.calls != 0 {
		t.Fatalf("mismatched callback must not reach the gateway")
	}
}

func TestVerifyUnknownTransaction(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeGateway{provider: models.PaymentProviderEsewa}, time.Now())

	if _, err := svc.VerifyAndActivate(context.Background(), "nope", "", 0); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestActivationRollsBackAsOneUnit(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.seedOrg(1, expiredSubscription(1, now))
	repo.failReset = true
	gw := &fakeGateway{provider: models.PaymentProviderEsewa, result: VerifyResult{OK: true, Message: "verified"}}
	svc := newTestService(repo, gw, now)

	res, _ := svc.UpgradePlan(context.Background(), 1, "PRO", "ESEWA")
	if _, err := svc.VerifyAndActivate(context.Background(), res.Intent.TransactionID, "REF-1", 0); err == nil {
		t.Fatalf("expected activation error")
	}

	// The transaction stays queryable in its prior state and retry is safe.
	if repo.txs[res.Intent.TransactionID].Status != models.PaymentStatusPending {
		t.Fatalf("failed activation left transaction half-updated")
	}
	if repo.subs[1].Plan == models.PlanPro {
		t.Fatalf("failed activation promoted the subscription")
	}

	repo.failReset = false
	outcome, err := svc.VerifyAndActivate(context.Background(), res.Intent.TransactionID, "REF-1", 0)
	if err != nil || outcome != OutcomeSuccess {
		t.Fatalf("retry after rollback failed: outcome=%q err=%v", outcome, err)
	}
}

func TestCheckExpiryDowngradesStalePaidPlan(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	sub := expiredSubscription(1, now)
	sub.Plan = models.PlanPro
	yesterday := now.Add(-24 * time.Hour)
	sub.EndDate = &yesterday
	repo.seedOrg(1, sub)
	svc := newTestService(repo, &fakeGateway{provider: models.PaymentProviderEsewa}, now)

	got, err := svc.CheckExpiry(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Plan != models.PlanFree || got.IsActive {
		t.Fatalf("stale paid plan not downgraded: %+v", got)
	}
	if repo.orgs[1].Plan != models.PlanFree {
		t.Fatalf("organization mirror = %q, want FREE", repo.orgs[1].Plan)
	}
}

func TestCheckExpiryEndsLapsedTrial(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	sub := models.NewDefaultSubscription(1, now.Add(-10*24*time.Hour))
	sub.Plan = models.PlanPro // switched during trial, never paid
	repo.seedOrg(1, sub)
	svc := newTestService(repo, &fakeGateway{provider: models.PaymentProviderEsewa}, now)

	got, err := svc.CheckExpiry(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.IsTrial {
		t.Fatalf("lapsed trial still flagged")
	}
	if got.Plan != models.PlanFree || got.IsActive {
		t.Fatalf("unpaid trial plan not downgraded: %+v", got)
	}
}

func TestCheckExpiryNoChangeWritesNothing(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.seedOrg(1, models.NewDefaultSubscription(1, now))
	svc := newTestService(repo, &fakeGateway{provider: models.PaymentProviderEsewa}, now)

	before := repo.subs[1]
	got, err := svc.CheckExpiry(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Plan != before.Plan || got.IsTrial != before.IsTrial {
		t.Fatalf("healthy subscription mutated: %+v", got)
	}
}
