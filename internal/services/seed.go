package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"bookkeeper/internal/core"
)

// Demo holds the ids created by SeedDemo.
type Demo struct {
	Cash, Savings      *core.Account
	Salary, Rent, Food core.Category
}

// SeedDemo creates the starter accounts and categories shown in the CLI.
func (s *SystemService) SeedDemo(ctx context.Context) (*Demo, error) {
	var (
		d   Demo
		err error
	)
	accounts := []struct {
		dst     **core.Account
		name    string
		balance string
	}{
		{&d.Cash, "Cash", "1500.00"},
		{&d.Savings, "Savings", "10000.00"},
	}
	for _, a := range accounts {
		*a.dst, err = s.CreateAccount(ctx, CreateAccountRequest{
			Name:           a.name,
			InitialBalance: decimal.RequireFromString(a.balance),
		})
		if err != nil {
			return nil, fmt.Errorf("seed demo: %w", err)
		}
	}

	categories := []struct {
		dst  *core.Category
		name string
		typ  core.TransactionType
	}{
		{&d.Salary, "Salary", core.Income},
		{&d.Rent, "Rent", core.Expense},
		{&d.Food, "Food", core.Expense},
	}
	for _, c := range categories {
		*c.dst, err = s.CreateCategory(ctx, CreateCategoryRequest{Name: c.name, Type: c.typ.String()})
		if err != nil {
			return nil, fmt.Errorf("seed demo: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "Demo data seeded", "accounts", len(accounts), "categories", len(categories))
	return &d, nil
}
