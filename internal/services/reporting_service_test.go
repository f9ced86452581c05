package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookkeeper/internal/core"
)

func TestMonthlyOverview(t *testing.T) {
	f := newFixture(t, core.UserConfiguration{})
	acc := f.account(t, "Checking", "0")
	salary := f.category(t, "Salary", core.Income)
	rent := f.category(t, "Rent", core.Expense)
	food := f.category(t, "Food", core.Expense)

	f.record(t, acc, salary, core.Income, "2000.00", time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local))
	f.record(t, acc, rent, core.Expense, "500.00", time.Date(2025, 3, 5, 9, 0, 0, 0, time.Local))
	f.record(t, acc, food, core.Expense, "300.00", time.Date(2025, 3, 20, 9, 0, 0, 0, time.Local))
	// other months are ignored
	f.record(t, acc, food, core.Expense, "99.00", time.Date(2025, 2, 28, 23, 59, 59, 0, time.Local))
	f.record(t, acc, salary, core.Income, "1.00", time.Date(2025, 4, 1, 0, 0, 0, 0, time.Local))

	m := core.Month{Year: 2025, Month: time.March, Location: time.Local}
	overview, err := f.reporting.GetMonthlyOverview(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "2000.00", overview.TotalIncome.StringFixed(core.Scale))
	assert.Equal(t, "800.00", overview.TotalExpense.StringFixed(core.Scale))
	assert.Equal(t, "1200.00", overview.NetIncome.StringFixed(core.Scale))
	assert.Equal(t, m, overview.Month)
}

func TestMonthlyOverviewEmptyMonth(t *testing.T) {
	f := newFixture(t, core.UserConfiguration{})
	overview, err := f.reporting.GetMonthlyOverview(context.Background(), core.Month{Year: 2025, Month: time.January, Location: time.Local})
	require.NoError(t, err)
	assert.Equal(t, "0.00", overview.TotalIncome.StringFixed(core.Scale))
	assert.Equal(t, "0.00", overview.TotalExpense.StringFixed(core.Scale))
	assert.True(t, overview.NetIncome.IsZero())
}

func TestMonthBoundaryIsSecondGranular(t *testing.T) {
	f := newFixture(t, core.UserConfiguration{})
	acc := f.account(t, "Checking", "0")
	salary := f.category(t, "Salary", core.Income)

	f.record(t, acc, salary, core.Income, "10.00", time.Date(2025, 3, 31, 23, 59, 59, 0, time.Local))
	f.record(t, acc, salary, core.Income, "5.00", time.Date(2025, 3, 31, 23, 59, 59, 500_000_000, time.Local))

	overview, err := f.reporting.GetMonthlyOverview(context.Background(), core.Month{Year: 2025, Month: time.March, Location: time.Local})
	require.NoError(t, err)
	assert.Equal(t, "10.00", overview.TotalIncome.StringFixed(core.Scale))
}

func TestCategoryBreakdown(t *testing.T) {
	f := newFixture(t, core.UserConfiguration{})
	acc := f.account(t, "Checking", "5000.00")
	salary := f.category(t, "Salary", core.Income)
	rent := f.category(t, "Rent", core.Expense)
	food := f.category(t, "Food", core.Expense)
	unused := f.category(t, "Travel", core.Expense)

	f.record(t, acc, salary, core.Income, "2000.00", march)
	f.record(t, acc, rent, core.Expense, "500.00", march)
	f.record(t, acc, food, core.Expense, "0.10", march)
	f.record(t, acc, food, core.Expense, "0.20", march)

	breakdown, err := f.reporting.GetCategoryBreakdown(context.Background(), core.MonthOf(march))
	require.NoError(t, err)
	require.Len(t, breakdown, 2)
	assert.Equal(t, "500.00", breakdown[rent.ID].StringFixed(core.Scale))
	assert.Equal(t, "0.30", breakdown[food.ID].StringFixed(core.Scale))
	assert.NotContains(t, breakdown, salary.ID, "income is not part of the breakdown")
	assert.NotContains(t, breakdown, unused.ID, "categories without expenses are absent")
}

func TestCheckBudgetAlerts(t *testing.T) {
	f := newFixture(t, core.UserConfiguration{})
	acc := f.account(t, "Checking", "5000.00")
	food := f.category(t, "Food", core.Expense)
	rent := f.category(t, "Rent", core.Expense)
	travel := f.category(t, "Travel", core.Expense)
	ctx := context.Background()

	f.record(t, acc, food, core.Expense, "150.00", march)
	f.record(t, acc, rent, core.Expense, "150.00", march)

	budget := func(limit, categoryID string) core.Budget {
		b, err := f.system.CreateBudget(ctx, CreateBudgetRequest{Limit: amount(limit), CategoryID: categoryID})
		require.NoError(t, err)
		return b
	}
	over := budget("100.00", food.ID)
	budget("200.00", rent.ID)
	budget("150.00", rent.ID) // equal is not over
	budget("10.00", travel.ID)
	budget("1.00", "") // total budget, never reported

	alerts, err := f.reporting.CheckBudgetAlerts(ctx, core.MonthOf(march))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, over.ID, alerts[0].ID)

	next, err := f.reporting.CheckBudgetAlerts(ctx, core.Month{Year: 2025, Month: time.April, Location: time.Local})
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestCheckBudgetAlertsSorted(t *testing.T) {
	f := newFixture(t, core.UserConfiguration{})
	acc := f.account(t, "Checking", "5000.00")
	ctx := context.Background()

	var cats []core.Category
	for _, name := range []string{"A", "B", "C"} {
		c := f.category(t, name, core.Expense)
		cats = append(cats, c)
		f.record(t, acc, c, core.Expense, "50.00", march)
		for i := 0; i < 2; i++ {
			_, err := f.system.CreateBudget(ctx, CreateBudgetRequest{Limit: amount("10.00"), CategoryID: c.ID})
			require.NoError(t, err)
		}
	}

	alerts, err := f.reporting.CheckBudgetAlerts(ctx, core.MonthOf(march))
	require.NoError(t, err)
	require.Len(t, alerts, 6)
	for i := 1; i < len(alerts); i++ {
		prev, cur := alerts[i-1], alerts[i]
		assert.True(t, prev.CategoryID < cur.CategoryID || (prev.CategoryID == cur.CategoryID && prev.ID < cur.ID),
			"alerts out of order: %v then %v", prev, cur)
	}
}

func TestTransfersAreInvisibleToReports(t *testing.T) {
	f := newFixture(t, core.UserConfiguration{})
	a := f.account(t, "A", "100.00")
	b := f.account(t, "B", "100.00")

	_, err := f.ledger.TransferFunds(context.Background(), a.ID, b.ID, amount("50.00"))
	require.NoError(t, err)

	overview, err := f.reporting.GetMonthlyOverview(context.Background(), core.MonthOf(time.Now()))
	require.NoError(t, err)
	assert.True(t, overview.TotalIncome.IsZero())
	assert.True(t, overview.TotalExpense.IsZero())
}

func TestTrendAnalysisIsEmpty(t *testing.T) {
	f := newFixture(t, core.UserConfiguration{})
	trend, err := f.reporting.GetTrendAnalysis(context.Background(), core.Expense, 6)
	require.NoError(t, err)
	assert.NotNil(t, trend)
	assert.Empty(t, trend)
}
