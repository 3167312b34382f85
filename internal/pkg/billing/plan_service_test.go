package billing

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsyncapp/subsync/app/models"
)

func newPlanTestEnv() (*PlanService, *fakeGateway, *fakePlanRepo) {
	gateway := newFakeGateway()
	plans := newFakePlanRepo()
	return NewPlanService(gateway, plans), gateway, plans
}

func TestPlanCreateProvisionsRemoteCatalog(t *testing.T) {
	svc, gateway, plans := newPlanTestEnv()

	plan, err := svc.Create(context.Background(), CreatePlanInput{
		Name:      "Pro",
		Price:     1999,
		Interval:  models.PlanIntervalMonth,
		TrialDays: 14,
		Features:  []string{"priority support", "unlimited projects"},
	})
	require.NoError(t, err)

	assert.True(t, plan.IsActive)
	assert.Equal(t, "prod_test_1", plan.StripeProductID)
	assert.Equal(t, "price_test_1", plan.StripePriceID)
	assert.Equal(t, []string{"priority support", "unlimited projects"}, plan.Features())

	stored, err := plans.GetByID(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StripePriceID, stored.StripePriceID)
	assert.Equal(t, 1, gateway.nextProductID)
}

func TestPlanCreateValidation(t *testing.T) {
	svc, gateway, _ := newPlanTestEnv()

	_, err := svc.Create(context.Background(), CreatePlanInput{Name: "", Interval: "WEEK"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, 0, gateway.nextProductID)
}

func TestPlanUpdatePriceSwapsRemotePrice(t *testing.T) {
	svc, gateway, _ := newPlanTestEnv()
	plan, err := svc.Create(context.Background(), CreatePlanInput{
		Name: "Pro", Price: 1999, Interval: models.PlanIntervalMonth,
	})
	require.NoError(t, err)
	oldPrice := plan.StripePriceID

	newPrice := int64(2499)
	updated, err := svc.Update(context.Background(), plan.ID, UpdatePlanInput{Price: &newPrice})
	require.NoError(t, err)

	assert.Equal(t, newPrice, updated.Price)
	assert.NotEqual(t, oldPrice, updated.StripePriceID)
	assert.Contains(t, gateway.archivedPrices, oldPrice)
}

func TestPlanUpdatePriceBlockedWithSubscribers(t *testing.T) {
	svc, gateway, plans := newPlanTestEnv()
	plan, err := svc.Create(context.Background(), CreatePlanInput{
		Name: "Pro", Price: 1999, Interval: models.PlanIntervalMonth,
	})
	require.NoError(t, err)
	plans.entitled[plan.ID] = 3

	newPrice := int64(2499)
	_, err = svc.Update(context.Background(), plan.ID, UpdatePlanInput{Price: &newPrice})
	require.ErrorIs(t, err, ErrPlanHasSubscribers)
	assert.Empty(t, gateway.archivedPrices)

	// Non-price fields remain editable while the plan has subscribers.
	name := "Pro Plus"
	updated, err := svc.Update(context.Background(), plan.ID, UpdatePlanInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Pro Plus", updated.Name)
	assert.Equal(t, "Pro Plus", gateway.updatedProducts[plan.StripeProductID])
}

func TestPlanUpdateDeactivate(t *testing.T) {
	svc, _, _ := newPlanTestEnv()
	plan, err := svc.Create(context.Background(), CreatePlanInput{
		Name: "Pro", Price: 1999, Interval: models.PlanIntervalMonth,
	})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(context.Background(), plan.ID, UpdatePlanInput{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
}

func TestPlanDelete(t *testing.T) {
	svc, gateway, plans := newPlanTestEnv()
	plan, err := svc.Create(context.Background(), CreatePlanInput{
		Name: "Pro", Price: 1999, Interval: models.PlanIntervalMonth,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), plan.ID))
	assert.Contains(t, gateway.archivedProducts, plan.StripeProductID)

	_, err = plans.GetByID(plan.ID)
	require.Error(t, err)
}

func TestPlanDeleteBlockedWithSubscribers(t *testing.T) {
	svc, gateway, plans := newPlanTestEnv()
	plan, err := svc.Create(context.Background(), CreatePlanInput{
		Name: "Pro", Price: 1999, Interval: models.PlanIntervalMonth,
	})
	require.NoError(t, err)
	plans.entitled[plan.ID] = 1

	err = svc.Delete(context.Background(), plan.ID)
	require.ErrorIs(t, err, ErrPlanHasSubscribers)
	assert.Empty(t, gateway.archivedProducts)
}

func TestPlanGetUnknown(t *testing.T) {
	svc, _, _ := newPlanTestEnv()
	_, err := svc.Get(999)
	require.ErrorIs(t, err, ErrPlanNotFound)
}
