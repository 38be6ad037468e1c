package quota

import (
	"errors"
	"testing"

	"github.com/karobarhq/karobar/app/models"
)

var errDBDown = errors.New("db down")

type fakeRepo struct {
	limits    map[string]int
	usage     map[uint]*models.Usage
	resets    int
	records   []interface{}
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		limits: make(map[string]int),
		usage:  make(map[uint]*models.Usage),
	}
}

func (f *fakeRepo) FindPlanLimit(plan, feature string) (*models.PlanLimit, error) {
	if v, ok := f.limits[plan+"/"+feature]; ok {
		return &models.PlanLimit{Plan: plan, Feature: feature, Limit: v}, nil
	}
	return nil, ErrLimitNotFound
}

func (f *fakeRepo) GetUsage(orgID uint) (*models.Usage, error) {
	if u, ok := f.usage[orgID]; ok {
		return u, nil
	}
	u := models.NewUsage(orgID)
	f.usage[orgID] = u
	return u, nil
}

func (f *fakeRepo) SaveUsage(u *models.Usage) error {
	f.usage[u.OrganizationID] = u
	return nil
}

func (f *fakeRepo) ResetAllAPICalls() error {
	f.resets++
	for _, u := range f.usage {
		u.APICallsUsed = 0
	}
	return nil
}

func (f *fakeRepo) CreateRecord(value interface{}) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.records = append(f.records, value)
	return nil
}

// WithinTransaction snapshots usage and created records and restores both
// when fn fails, mirroring a database rollback.
func (f *fakeRepo) WithinTransaction(fn func(Repository) error) error {
	usageSnap := make(map[uint]models.Usage, len(f.usage))
	for id, u := range f.usage {
		usageSnap[id] = *u
	}
	recordsSnap := len(f.records)

	if err := fn(f); err != nil {
		f.usage = make(map[uint]*models.Usage, len(usageSnap))
		for id, u := range usageSnap {
			copied := u
			f.usage[id] = &copied
		}
		f.records = f.records[:recordsSnap]
		return err
	}
	return nil
}

func TestGetLimitRowOverridesFallback(t *testing.T) {
	repo := newFakeRepo()
	repo.limits["FREE/invoices"] = 25
	svc := NewService(repo)

	limit, err := svc.GetLimit(models.PlanFree, models.FeatureInvoices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit.IsUnlimited() || limit.Value() != 25 {
		t.Fatalf("expected 25 from row, got %+v", limit)
	}
}

func TestGetLimitFallback(t *testing.T) {
	svc := NewService(newFakeRepo())

	limit, err := svc.GetLimit(models.PlanFree, models.FeatureInvoices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit.Value() != 10 {
		t.Fatalf("expected fallback invoice limit 10, got %d", limit.Value())
	}
}

func TestGetLimitNormalizesUnlimitedRow(t *testing.T) {
	repo := newFakeRepo()
	repo.limits["BASIC/invoices"] = models.UnlimitedLimit
	svc := NewService(repo)

	limit, err := svc.GetLimit(models.PlanBasic, models.FeatureInvoices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !limit.IsUnlimited() {
		t.Fatalf("expected -1 row to normalize to unlimited")
	}
}

func TestGetLimitProUnlimited(t *testing.T) {
	svc := NewService(newFakeRepo())
	for _, feature := range []string{
		models.FeatureInvoices, models.FeatureCustomers,
		models.FeatureTeamMembers, models.FeatureAPICalls,
	} {
		limit, err := svc.GetLimit(models.PlanPro, feature)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", feature, err)
		}
		if !limit.IsUnlimited() {
			t.Fatalf("expected PRO %s unlimited", feature)
		}
	}
}

func TestGetLimitUnknownFeature(t *testing.T) {
	svc := NewService(newFakeRepo())
	if _, err := svc.GetLimit(models.PlanFree, "widgets"); err == nil {
		t.Fatalf("expected error for unknown feature")
	}
}

func TestCanAddAtLimit(t *testing.T) {
	repo := newFakeRepo()
	repo.usage[1] = &models.Usage{OrganizationID: 1, InvoicesCreated: 10}
	svc := NewService(repo)
	org := &models.Organization{ID: 1, Plan: models.PlanFree}

	ok, reason, err := svc.CanAdd(org, models.FeatureInvoices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected refusal at limit")
	}
	want := "Reached invoices limit (10). Upgrade your plan."
	if reason != want {
		t.Fatalf("reason = %q, want %q", reason, want)
	}
}

func TestCanAddAfterUpgrade(t *testing.T) {
	repo := newFakeRepo()
	repo.usage[1] = &models.Usage{OrganizationID: 1, InvoicesCreated: 10}
	svc := NewService(repo)

	org := &models.Organization{ID: 1, Plan: models.PlanBasic}
	ok, reason, err := svc.CanAdd(org, models.FeatureInvoices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || reason != "" {
		t.Fatalf("expected allowance after upgrade, got ok=%v reason=%q", ok, reason)
	}
}

func TestIncrement(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	org := &models.Organization{ID: 7, Plan: models.PlanFree}

	for i := 0; i < 5; i++ {
		ok, err := svc.Increment(org, models.FeatureCustomers)
		if err != nil {
			t.Fatalf("unexpected error on increment %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("expected increment %d to pass", i)
		}
	}

	// FREE allows 5 customers; the sixth must be refused.
	ok, err := svc.Increment(org, models.FeatureCustomers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected refusal past the limit")
	}
	if repo.usage[7].CustomersCreated != 5 {
		t.Fatalf("counter moved past limit: %d", repo.usage[7].CustomersCreated)
	}
}

func TestConsumeCreatesAndCounts(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	org := &models.Organization{ID: 3, Plan: models.PlanFree}

	ok, reason, err := svc.Consume(org, models.FeatureCustomers, func(r Repository) error {
		return r.CreateRecord(&models.Client{OrganizationID: 3, Name: "Lumbini Supplies"})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || reason != "" {
		t.Fatalf("expected allowance, got ok=%v reason=%q", ok, reason)
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected one created record, got %d", len(repo.records))
	}
	if repo.usage[3].CustomersCreated != 1 {
		t.Fatalf("counter = %d, want 1", repo.usage[3].CustomersCreated)
	}
}

func TestConsumeRollsBackWhenExhausted(t *testing.T) {
	// Simulates two requests racing past an earlier CanAdd: the counter is
	// already at the limit when the transactional re-check runs, so the
	// created row must not survive.
	repo := newFakeRepo()
	repo.usage[3] = &models.Usage{OrganizationID: 3, CustomersCreated: 5}
	svc := NewService(repo)
	org := &models.Organization{ID: 3, Plan: models.PlanFree}

	ok, reason, err := svc.Consume(org, models.FeatureCustomers, func(r Repository) error {
		return r.CreateRecord(&models.Client{OrganizationID: 3, Name: "Everest Traders"})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected refusal at limit")
	}
	want := "Reached customers limit (5). Upgrade your plan."
	if reason != want {
		t.Fatalf("reason = %q, want %q", reason, want)
	}
	if len(repo.records) != 0 {
		t.Fatalf("created record survived a refused consume: %d", len(repo.records))
	}
	if repo.usage[3].CustomersCreated != 5 {
		t.Fatalf("counter moved on refusal: %d", repo.usage[3].CustomersCreated)
	}
}

func TestConsumeCreateErrorRollsBack(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errDBDown
	svc := NewService(repo)
	org := &models.Organization{ID: 3, Plan: models.PlanFree}

	ok, _, err := svc.Consume(org, models.FeatureCustomers, func(r Repository) error {
		return r.CreateRecord(&models.Client{OrganizationID: 3})
	})
	if err == nil || ok {
		t.Fatalf("expected create error to surface, got ok=%v err=%v", ok, err)
	}
	if u, found := repo.usage[3]; found && u.CustomersCreated != 0 {
		t.Fatalf("counter moved despite create failure: %d", u.CustomersCreated)
	}
}

func TestResetAllAPICalls(t *testing.T) {
	repo := newFakeRepo()
	repo.usage[1] = &models.Usage{OrganizationID: 1, APICallsUsed: 42}
	svc := NewService(repo)

	if err := svc.ResetAllAPICalls(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.usage[1].APICallsUsed != 0 {
		t.Fatalf("expected api_calls_used reset, got %d", repo.usage[1].APICallsUsed)
	}
}
