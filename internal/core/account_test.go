package core

import (
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountUpdateBalance(t *testing.T) {
	cases := []struct {
		name    string
		initial string
		amount  string
		typ     TransactionType
		want    string
		warned  bool
	}{
		{"income increases balance", "100.00", "50.50", Income, "150.50", false},
		{"expense decreases balance", "100.00", "40.00", Expense, "60.00", false},
		{"expense down to zero", "50.00", "50.00", Expense, "0.00", false},
		{"expense below zero is allowed", "10.00", "20.00", Expense, "-10.00", true},
		{"amount is rounded half-up", "100.00", "10.555", Income, "110.56", false},
		{"large amounts", "1000000.00", "999999.99", Income, "1999999.99", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acc := NewAccount("test", dec(t, tc.initial))
			warning, err := acc.UpdateBalance(dec(t, tc.amount), tc.typ)
			require.NoError(t, err)
			assert.Equal(t, tc.want, acc.Balance().StringFixed(Scale))
			if !tc.warned {
				assert.Nil(t, warning)
				return
			}
			require.NotNil(t, warning)
			assert.Equal(t, acc.ID, warning.AccountID)
			assert.Equal(t, tc.want, warning.Balance.StringFixed(Scale))
		})
	}
}

func TestAccountUpdateBalanceRejects(t *testing.T) {
	cases := []struct {
		name   string
		amount decimal.Decimal
		typ    TransactionType
		want   error
	}{
		{"zero amount", decimal.Zero, Income, ErrInvalidAmount},
		{"negative amount", decimal.RequireFromString("-5.00"), Income, ErrInvalidAmount},
		{"unknown type", decimal.RequireFromString("5.00"), TransactionType("REFUND"), ErrInvalidType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acc := NewAccount("test", dec(t, "100.00"))
			_, err := acc.UpdateBalance(tc.amount, tc.typ)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, "100.00", acc.Balance().StringFixed(Scale), "balance must not change")
		})
	}
}

func TestNewAccountFormatsInitialBalance(t *testing.T) {
	acc := NewAccount("test", dec(t, "100.123"))
	assert.Equal(t, "100.12", acc.Balance().StringFixed(Scale))
	assert.Equal(t, int32(-Scale), acc.Balance().Exponent())
	assert.True(t, strings.HasPrefix(acc.ID, AccountPrefix+"_"))
}

func TestAccountSequence(t *testing.T) {
	acc := NewAccount("flow", dec(t, "0.00"))
	_, err := acc.UpdateBalance(dec(t, "100.00"), Income)
	require.NoError(t, err)
	_, err = acc.UpdateBalance(dec(t, "30.00"), Expense)
	require.NoError(t, err)
	assert.Equal(t, "70.00", acc.Balance().StringFixed(Scale))
}

func TestAccountConcurrentUpdatesLoseNothing(t *testing.T) {
	const n = 200
	acc := NewAccount("shared", dec(t, "1000.00"))
	x := dec(t, "12.34")

	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := acc.UpdateBalance(x, Income)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := acc.UpdateBalance(x, Expense)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, "1000.00", acc.Balance().StringFixed(Scale))
}
