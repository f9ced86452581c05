package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"bookkeeper/internal/core"
	"bookkeeper/internal/log"
	"bookkeeper/internal/store"
)

// Export formats accepted by ExportData.
const (
	FormatCSV   = "CSV"
	FormatExcel = "Excel"
)

type CreateAccountRequest struct {
	Name           string `validate:"required,max=64"`
	InitialBalance decimal.Decimal
}

type CreateCategoryRequest struct {
	Name string `validate:"required,max=64"`
	Type string `validate:"required"`
}

type RenameCategoryRequest struct {
	ID   string `validate:"required"`
	Name string `validate:"required,max=64"`
}

type CreateBudgetRequest struct {
	Limit decimal.Decimal
	// Empty for a total budget.
	CategoryID string
}

// SystemService manages reference data and the data-management stubs.
type SystemService struct {
	accounts     store.Repository[*core.Account]
	categories   store.Repository[core.Category]
	transactions store.Repository[core.Transaction]
	budgets      store.Repository[core.Budget]
	config       core.UserConfiguration
	validate     *validator.Validate
	deps
}

func NewSystemService(
	accounts store.Repository[*core.Account],
	categories store.Repository[core.Category],
	transactions store.Repository[core.Transaction],
	budgets store.Repository[core.Budget],
	config core.UserConfiguration,
	opts ...Option,
) *SystemService {
	return &SystemService{
		accounts:     accounts,
		categories:   categories,
		transactions: transactions,
		budgets:      budgets,
		config:       config,
		validate:     validator.New(),
		deps:         newDeps(log.ComponentSystem, opts),
	}
}

// check runs struct validation and maps failures to core.ErrValidation.
func (s *SystemService) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, strings.ToLower(fe.Field())+" "+describe(fe))
	}
	return fmt.Errorf("%w: %s", core.ErrValidation, strings.Join(msgs, ", "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func (s *SystemService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*core.Account, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	if core.AmountScale(req.InitialBalance) > core.Scale {
		return nil, fmt.Errorf("create account: %w (got %s)", core.ErrAmountPrecision, req.InitialBalance)
	}
	account, err := s.accounts.Save(ctx, core.NewAccount(req.Name, req.InitialBalance))
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.logger.InfoContext(ctx, "Account created",
		log.NewFields().WithOperation(log.OpCreate).WithAccount(account.ID).WithBalance(account.Balance()).ToSlice()...)
	return account, nil
}

// ListAccounts returns every account sorted by name then id.
func (s *SystemService) ListAccounts(ctx context.Context) ([]*core.Account, error) {
	accounts, err := s.accounts.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Name != accounts[j].Name {
			return accounts[i].Name < accounts[j].Name
		}
		return accounts[i].ID < accounts[j].ID
	})
	return accounts, nil
}

func (s *SystemService) CreateCategory(ctx context.Context, req CreateCategoryRequest) (core.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	t, err := core.ParseTransactionType(req.Type)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c, err := s.categories.Save(ctx, core.NewCategory(req.Name, t))
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.logger.InfoContext(ctx, "Category created",
		log.FieldOperation, log.OpCreate, log.FieldCategoryID, c.ID, log.FieldType, c.Type.String())
	return c, nil
}

// UpdateCategory renames a category. The type cannot change.
func (s *SystemService) UpdateCategory(ctx context.Context, req RenameCategoryRequest) (core.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	c, ok, err := s.categories.FindByID(ctx, req.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if !ok {
		return core.Category{}, fmt.Errorf("update category: %w", core.NotFound("category", req.ID))
	}
	c, err = s.categories.Save(ctx, c.Rename(req.Name))
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	s.logger.InfoContext(ctx, "Category renamed", log.FieldOperation, log.OpUpdate, log.FieldCategoryID, c.ID)
	return c, nil
}

// DeleteCategory removes a category that no transaction or budget refers to.
// Deleting an unknown id is a no-op. It waits for in-flight ledger mutations
// so the reference check sees their writes.
func (s *SystemService) DeleteCategory(ctx context.Context, id string) error {
	release := s.guard.exclusive()
	defer release()

	refs, err := s.transactions.Query(ctx, func(tx core.Transaction) bool { return tx.CategoryID == id })
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	budgets, err := s.budgets.Query(ctx, func(b core.Budget) bool { return b.CategoryID == id })
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n := len(refs) + len(budgets); n > 0 {
		return fmt.Errorf("delete category %s: %w by %d transaction(s) and %d budget(s)",
			id, core.ErrCategoryInUse, len(refs), len(budgets))
	}
	if err := s.categories.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.logger.InfoContext(ctx, "Category deleted", log.FieldOperation, log.OpDelete, log.FieldCategoryID, id)
	return nil
}

// ListCategories returns every category sorted by type then name.
func (s *SystemService) ListCategories(ctx context.Context) ([]core.Category, error) {
	categories, err := s.categories.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	sort.Slice(categories, func(i, j int) bool {
		a, b := categories[i], categories[j]
		if a.Type != b.Type {
			return a.Type > b.Type // INCOME before EXPENSE
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return categories, nil
}

func (s *SystemService) CreateBudget(ctx context.Context, req CreateBudgetRequest) (core.Budget, error) {
	if err := core.ValidateAmount(req.Limit); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	categoryID := strings.TrimSpace(req.CategoryID)
	release := s.guard.shared()
	defer release()
	if categoryID != "" {
		if _, ok, err := s.categories.FindByID(ctx, categoryID); err != nil {
			return core.Budget{}, fmt.Errorf("create budget: %w", err)
		} else if !ok {
			return core.Budget{}, fmt.Errorf("create budget: %w", core.NotFound("category", categoryID))
		}
	}
	b, err := s.budgets.Save(ctx, core.NewBudget(req.Limit, categoryID))
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	s.logger.InfoContext(ctx, "Budget created",
		log.FieldOperation, log.OpCreate, log.FieldBudgetID, b.ID, log.FieldCategoryID, b.CategoryID)
	return b, nil
}

// ListBudgets returns every budget sorted by category id then id; total
// budgets come first.
func (s *SystemService) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	budgets, err := s.budgets.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	sort.Slice(budgets, func(i, j int) bool {
		if budgets[i].CategoryID != budgets[j].CategoryID {
			return budgets[i].CategoryID < budgets[j].CategoryID
		}
		return budgets[i].ID < budgets[j].ID
	})
	return budgets, nil
}

// ExportData accepts CSV or Excel and reports how many transactions would be
// exported. Nothing is written.
func (s *SystemService) ExportData(ctx context.Context, format string) (int, error) {
	if format != FormatCSV && format != FormatExcel {
		return 0, fmt.Errorf("export data: %w %q", core.ErrUnsupportedFormat, format)
	}
	n, err := s.transactions.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("export data: %w", err)
	}
	s.logger.InfoContext(ctx, "Export requested", "format", format, "transactions", n)
	return n, nil
}

// BackupData reports whether a backup ran. It only runs when local backups
// are enabled.
func (s *SystemService) BackupData(ctx context.Context) bool {
	if !s.config.LocalBackupEnabled {
		s.logger.InfoContext(ctx, "Local backup disabled, skipping")
		return false
	}
	s.logger.InfoContext(ctx, "Local backup requested")
	return true
}

func (s *SystemService) RestoreData(ctx context.Context) {
	s.logger.InfoContext(ctx, "Restore requested")
}

// DeleteUserData clears every store and forgets the per-account locks.
func (s *SystemService) DeleteUserData(ctx context.Context) error {
	release := s.guard.exclusive()
	defer release()

	s.logger.WarnContext(ctx, "Deleting all user data")
	s.guard.accounts.reset()
	var errs []error
	for name, clearStore := range map[string]func(context.Context) error{
		"transactions": s.transactions.Clear,
		"budgets":      s.budgets.Clear,
		"categories":   s.categories.Clear,
		"accounts":     s.accounts.Clear,
	} {
		if err := clearStore(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("delete user data: %w", errors.Join(errs...))
	}
	return nil
}

// UserConfiguration returns the settings the service was built with.
func (s *SystemService) UserConfiguration() core.UserConfiguration {
	return s.config
}
