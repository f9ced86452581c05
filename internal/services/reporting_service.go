package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"bookkeeper/internal/core"
	"bookkeeper/internal/log"
	"bookkeeper/internal/store"
)

// MonthlyOverview holds the totals of one calendar month.
type MonthlyOverview struct {
	Month        core.Month
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	// NetIncome is TotalIncome minus TotalExpense, exact at two digits.
	NetIncome decimal.Decimal
}

// ReportingService reads the store directly; results are snapshots.
type ReportingService struct {
	transactions store.Repository[core.Transaction]
	budgets      store.Repository[core.Budget]
	deps
}

func NewReportingService(
	transactions store.Repository[core.Transaction],
	budgets store.Repository[core.Budget],
	opts ...Option,
) *ReportingService {
	return &ReportingService{
		transactions: transactions,
		budgets:      budgets,
		deps:         newDeps(log.ComponentReporting, opts),
	}
}

func (s *ReportingService) inMonth(ctx context.Context, m core.Month) ([]core.Transaction, error) {
	start, end := m.Range()
	txs, err := s.transactions.Query(ctx, func(tx core.Transaction) bool {
		return tx.Within(start, end)
	})
	if err != nil {
		return nil, fmt.Errorf("transactions in %s: %w", m, err)
	}
	return txs, nil
}

func (s *ReportingService) GetMonthlyOverview(ctx context.Context, m core.Month) (MonthlyOverview, error) {
	txs, err := s.inMonth(ctx, m)
	if err != nil {
		return MonthlyOverview{}, err
	}

	var income, expense []core.Transaction
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			income = append(income, tx)
		case core.Expense:
			expense = append(expense, tx)
		}
	}

	overview := MonthlyOverview{
		Month:        m,
		TotalIncome:  core.CalculateSum(income),
		TotalExpense: core.CalculateSum(expense),
	}
	overview.NetIncome = overview.TotalIncome.Sub(overview.TotalExpense)

	s.logger.DebugContext(ctx, "Monthly overview computed",
		log.FieldOperation, log.OpReport,
		log.FieldMonth, m.String(),
		"transactions", len(txs))
	return overview, nil
}

// GetCategoryBreakdown sums expenses per category id. Categories without
// expenses in the month are absent.
func (s *ReportingService) GetCategoryBreakdown(ctx context.Context, m core.Month) (map[string]decimal.Decimal, error) {
	txs, err := s.inMonth(ctx, m)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		sums[tx.CategoryID] = sums[tx.CategoryID].Add(tx.Amount)
	}
	for id, sum := range sums {
		sums[id] = core.Format(sum)
	}
	return sums, nil
}

// CheckBudgetAlerts returns the category budgets whose spending in the month
// strictly exceeds the limit, sorted by category id then budget id. Total
// budgets are never reported.
func (s *ReportingService) CheckBudgetAlerts(ctx context.Context, m core.Month) ([]core.Budget, error) {
	breakdown, err := s.GetCategoryBreakdown(ctx, m)
	if err != nil {
		return nil, err
	}
	budgets, err := s.budgets.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("budget alerts: %w", err)
	}

	alerts := make([]core.Budget, 0)
	for _, b := range budgets {
		if b.IsTotal() {
			continue
		}
		if b.CheckOverspend(breakdown[b.CategoryID]) {
			alerts = append(alerts, b)
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].CategoryID != alerts[j].CategoryID {
			return alerts[i].CategoryID < alerts[j].CategoryID
		}
		return alerts[i].ID < alerts[j].ID
	})

	if len(alerts) > 0 {
		s.logger.InfoContext(ctx, "Budgets exceeded", log.FieldMonth, m.String(), "count", len(alerts))
	}
	return alerts, nil
}

// GetTrendAnalysis is not implemented and always returns an empty result.
func (s *ReportingService) GetTrendAnalysis(_ context.Context, _ core.TransactionType, _ int) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{}, nil
}
