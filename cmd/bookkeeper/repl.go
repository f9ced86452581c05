package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"bookkeeper/internal/backend"
	"bookkeeper/internal/core"
	"bookkeeper/internal/services"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

const dateLayout = "2006-01-02"

var errUsage = errors.New("usage")

type repl struct {
	ledger *backend.Ledger
	out    io.Writer
	now    func() time.Time
}

func newREPL(ledger *backend.Ledger, out io.Writer) *repl {
	return &repl{ledger: ledger, out: out, now: time.Now}
}

// Run reads commands from in until exit, EOF or ctx is done. Command errors
// are printed and do not stop the loop.
func (r *repl) Run(ctx context.Context, in io.Reader) error {
	// stops the reader when the loop returns on exit
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines, readErr, _ := readLines(ctx, in)

	if r.ledger.Demo != nil {
		fmt.Fprintln(r.out, mutedStyle.Render("Demo data loaded. Type 'help' for commands."))
		_ = r.exec(ctx, "accounts")
		_ = r.exec(ctx, "categories")
	}

	for {
		fmt.Fprint(r.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if err := r.exec(ctx, line); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				fmt.Fprintln(r.out, errorStyle.Render("error: ")+err.Error())
			}
		}
	}
}

// readLines scans in on its own goroutine until EOF or ctx is done. done is
// closed once the goroutine has returned.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error, <-chan struct{}) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()
	return lines, readErr, done
}

// exec runs one command line. It returns io.EOF for exit.
func (r *repl) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help":
		r.help()
		return nil
	case "exit", "quit":
		return io.EOF
	case "accounts":
		return r.accounts(ctx)
	case "categories":
		return r.categories(ctx)
	case "budgets":
		return r.budgets(ctx)
	case "income", "expense":
		return r.record(ctx, cmd, args)
	case "transfer":
		return r.transfer(ctx, args)
	case "find":
		return r.find(ctx, args)
	case "report":
		return r.report(ctx, args)
	case "breakdown":
		return r.breakdown(ctx, args)
	case "alerts":
		return r.alerts(ctx, args)
	case "account":
		return r.account(ctx, args)
	case "category":
		return r.category(ctx, args)
	case "budget":
		return r.budget(ctx, args)
	case "export":
		return r.export(ctx, args)
	case "backup":
		if r.ledger.System.BackupData(ctx) {
			fmt.Fprintln(r.out, successStyle.Render("Backup completed"))
		} else {
			fmt.Fprintln(r.out, mutedStyle.Render("Local backup is disabled"))
		}
		return nil
	case "restore":
		r.ledger.System.RestoreData(ctx)
		fmt.Fprintln(r.out, mutedStyle.Render("Nothing to restore"))
		return nil
	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
}

func (r *repl) help() {
	fmt.Fprintln(r.out, headerStyle.Render("Commands"))
	for _, line := range []string{
		"accounts | categories | budgets",
		"income <amount> <accountID> <categoryID> [memo #tag ...]",
		"expense <amount> <accountID> <categoryID> [memo #tag ...]",
		"transfer <amount> <fromID> <toID>",
		"find [category=ID] [from=YYYY-MM-DD] [to=YYYY-MM-DD]",
		"report [YYYY-MM] | breakdown [YYYY-MM] | alerts [YYYY-MM]",
		"account add <name> <balance>",
		"category add <name> <income|expense>",
		"category rename <id> <name>",
		"category delete <id>",
		"budget add <limit> [categoryID]",
		"export <CSV|Excel> | backup | restore",
		"exit",
	} {
		fmt.Fprintln(r.out, "  "+line)
	}
}

// table measures cells after styling, so colored headers and cells stay
// aligned.
func (r *repl) table(header ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(header...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
}

func (r *repl) print(t *table.Table) error {
	_, err := fmt.Fprintln(r.out, t.Render())
	return err
}

func (r *repl) accounts(ctx context.Context) error {
	accounts, err := r.ledger.System.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(r.out, mutedStyle.Render("No accounts. Use 'account add <name> <balance>'."))
		return nil
	}
	t := r.table("ID", "Name", "Balance")
	for _, a := range accounts {
		t.Row(a.ID, a.Name, money(a.Balance()))
	}
	return r.print(t)
}

func (r *repl) categories(ctx context.Context) error {
	categories, err := r.ledger.System.ListCategories(ctx)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		fmt.Fprintln(r.out, mutedStyle.Render("No categories. Use 'category add <name> <income|expense>'."))
		return nil
	}
	t := r.table("ID", "Name", "Type")
	for _, c := range categories {
		t.Row(c.ID, c.Name, c.Type.String())
	}
	return r.print(t)
}

func (r *repl) budgets(ctx context.Context) error {
	budgets, err := r.ledger.System.ListBudgets(ctx)
	if err != nil {
		return err
	}
	if len(budgets) == 0 {
		fmt.Fprintln(r.out, mutedStyle.Render("No budgets. Use 'budget add <limit> [categoryID]'."))
		return nil
	}
	names, err := r.categoryNames(ctx)
	if err != nil {
		return err
	}
	t := r.table("ID", "Category", "Monthly limit")
	for _, b := range budgets {
		category := "(total)"
		if !b.IsTotal() {
			category = names[b.CategoryID]
		}
		t.Row(b.ID, category, money(b.MonthlyLimit))
	}
	return r.print(t)
}

func (r *repl) record(ctx context.Context, kind string, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: %s <amount> <accountID> <categoryID> [memo #tag ...]", errUsage, kind)
	}
	amount, err := core.ParseAmount(args[0])
	if err != nil {
		return err
	}
	t, err := core.ParseTransactionType(kind)
	if err != nil {
		return err
	}
	memo, tags := splitMemo(args[3:])

	rec, err := r.ledger.Transactions.RecordTransaction(ctx, services.NewTransaction{
		Amount:     amount,
		Type:       t,
		Timestamp:  r.now(),
		Memo:       memo,
		Tags:       tags,
		CategoryID: args[2],
		AccountID:  args[1],
	})
	if err != nil {
		return err
	}

	tx := rec.Transaction
	fmt.Fprintf(r.out, "%s %s %s %s\n", successStyle.Render("Recorded"), tx.ID,
		strings.ToLower(tx.Type.String()), money(tx.Amount))
	if balance, ok := r.balanceOf(ctx, tx.AccountID); ok {
		fmt.Fprintf(r.out, "Balance of %s: %s\n", tx.AccountID, money(balance))
	}
	if rec.Warning != nil {
		fmt.Fprintln(r.out, warningStyle.Render("warning: "+rec.Warning.String()))
	}
	return nil
}

// splitMemo separates #tags from the memo words.
func splitMemo(words []string) (string, []string) {
	var memo, tags []string
	for _, w := range words {
		if strings.HasPrefix(w, "#") && len(w) > 1 {
			tags = append(tags, strings.TrimPrefix(w, "#"))
			continue
		}
		memo = append(memo, w)
	}
	return strings.Join(memo, " "), tags
}

func (r *repl) transfer(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: transfer <amount> <fromID> <toID>", errUsage)
	}
	amount, err := core.ParseAmount(args[0])
	if err != nil {
		return err
	}
	warning, err := r.ledger.Transactions.TransferFunds(ctx, args[1], args[2], amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s %s from %s to %s\n", successStyle.Render("Transferred"), money(amount), args[1], args[2])
	if warning != nil {
		fmt.Fprintln(r.out, warningStyle.Render("warning: "+warning.String()))
	}
	return nil
}

func (r *repl) find(ctx context.Context, args []string) error {
	var filter services.TransactionFilter
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("%w: find [category=ID] [from=YYYY-MM-DD] [to=YYYY-MM-DD]", errUsage)
		}
		switch key {
		case "category":
			filter.CategoryID = value
		case "from", "to":
			day, err := time.ParseInLocation(dateLayout, value, time.Local)
			if err != nil {
				return fmt.Errorf("%w: %s must be YYYY-MM-DD", core.ErrValidation, key)
			}
			if key == "from" {
				filter.Start = day
			} else {
				filter.End = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
			}
		default:
			return fmt.Errorf("%w: unknown filter %q", errUsage, key)
		}
	}

	txs, err := r.ledger.Transactions.FindTransactions(ctx, filter)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(r.out, mutedStyle.Render("No transactions found"))
		return nil
	}
	t := r.table("ID", "Date", "Type", "Amount", "Account", "Category", "Memo")
	for _, tx := range txs {
		memo := tx.Memo
		for _, tag := range tx.Tags {
			memo += " #" + tag
		}
		t.Row(tx.ID, tx.Timestamp.Format(dateLayout), tx.Type.String(), money(tx.Amount),
			tx.AccountID, tx.CategoryID, strings.TrimSpace(memo))
	}
	return r.print(t)
}

func (r *repl) month(args []string) (core.Month, error) {
	switch len(args) {
	case 0:
		return core.MonthOf(r.now()), nil
	case 1:
		return core.ParseMonth(args[0])
	default:
		return core.Month{}, fmt.Errorf("%w: expected at most one YYYY-MM argument", errUsage)
	}
}

func (r *repl) report(ctx context.Context, args []string) error {
	m, err := r.month(args)
	if err != nil {
		return err
	}
	overview, err := r.ledger.Reporting.GetMonthlyOverview(ctx, m)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, headerStyle.Render("Overview "+m.String()))
	net := money(overview.NetIncome)
	if overview.NetIncome.Sign() < 0 {
		net = warningStyle.Render(net)
	}
	t := r.table("", "Amount").
		Row("Income", money(overview.TotalIncome)).
		Row("Expense", money(overview.TotalExpense)).
		Row("Net", net)
	return r.print(t)
}

func (r *repl) breakdown(ctx context.Context, args []string) error {
	m, err := r.month(args)
	if err != nil {
		return err
	}
	totals, err := r.ledger.Reporting.GetCategoryBreakdown(ctx, m)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		fmt.Fprintln(r.out, mutedStyle.Render("No expenses in "+m.String()))
		return nil
	}
	names, err := r.categoryNames(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := r.table("Category", "Spent")
	for _, id := range ids {
		t.Row(labelFor(names, id), money(totals[id]))
	}
	return r.print(t)
}

func (r *repl) alerts(ctx context.Context, args []string) error {
	m, err := r.month(args)
	if err != nil {
		return err
	}
	over, err := r.ledger.Reporting.CheckBudgetAlerts(ctx, m)
	if err != nil {
		return err
	}
	if len(over) == 0 {
		fmt.Fprintln(r.out, successStyle.Render("All budgets within limits for "+m.String()))
		return nil
	}
	spent, err := r.ledger.Reporting.GetCategoryBreakdown(ctx, m)
	if err != nil {
		return err
	}
	names, err := r.categoryNames(ctx)
	if err != nil {
		return err
	}
	t := r.table("Budget", "Category", "Limit", "Spent")
	for _, b := range over {
		t.Row(b.ID, labelFor(names, b.CategoryID),
			money(b.MonthlyLimit), warningStyle.Render(money(spent[b.CategoryID])))
	}
	return r.print(t)
}

func (r *repl) account(ctx context.Context, args []string) error {
	if len(args) < 3 || args[0] != "add" {
		return fmt.Errorf("%w: account add <name> <balance>", errUsage)
	}
	balance, err := core.ParseAmount(args[len(args)-1])
	if err != nil {
		return err
	}
	a, err := r.ledger.System.CreateAccount(ctx, services.CreateAccountRequest{
		Name:           strings.Join(args[1:len(args)-1], " "),
		InitialBalance: balance,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s account %s %q with %s\n", successStyle.Render("Created"), a.ID, a.Name, money(a.Balance()))
	return nil
}

func (r *repl) category(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: category add|rename|delete ...", errUsage)
	}
	switch args[0] {
	case "add":
		if len(args) < 3 {
			return fmt.Errorf("%w: category add <name> <income|expense>", errUsage)
		}
		c, err := r.ledger.System.CreateCategory(ctx, services.CreateCategoryRequest{
			Name: strings.Join(args[1:len(args)-1], " "),
			Type: args[len(args)-1],
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%s category %s %q (%s)\n", successStyle.Render("Created"), c.ID, c.Name, c.Type)
	case "rename":
		if len(args) < 3 {
			return fmt.Errorf("%w: category rename <id> <name>", errUsage)
		}
		c, err := r.ledger.System.UpdateCategory(ctx, services.RenameCategoryRequest{
			ID:   args[1],
			Name: strings.Join(args[2:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%s category %s to %q\n", successStyle.Render("Renamed"), c.ID, c.Name)
	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("%w: category delete <id>", errUsage)
		}
		if err := r.ledger.System.DeleteCategory(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%s category %s\n", successStyle.Render("Deleted"), args[1])
	default:
		return fmt.Errorf("%w: category add|rename|delete ...", errUsage)
	}
	return nil
}

func (r *repl) budget(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 || args[0] != "add" {
		return fmt.Errorf("%w: budget add <limit> [categoryID]", errUsage)
	}
	limit, err := core.ParseAmount(args[1])
	if err != nil {
		return err
	}
	req := services.CreateBudgetRequest{Limit: limit}
	if len(args) == 3 {
		req.CategoryID = args[2]
	}
	b, err := r.ledger.System.CreateBudget(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s budget %s of %s\n", successStyle.Render("Created"), b.ID, money(b.MonthlyLimit))
	return nil
}

func (r *repl) export(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: export <CSV|Excel>", errUsage)
	}
	n, err := r.ledger.System.ExportData(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s %d transactions as %s\n", successStyle.Render("Exported"), n, args[0])
	return nil
}

func (r *repl) categoryNames(ctx context.Context) (map[string]string, error) {
	categories, err := r.ledger.System.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

func (r *repl) balanceOf(ctx context.Context, accountID string) (decimal.Decimal, bool) {
	accounts, err := r.ledger.System.ListAccounts(ctx)
	if err != nil {
		return decimal.Zero, false
	}
	for _, a := range accounts {
		if a.ID == accountID {
			return a.Balance(), true
		}
	}
	return decimal.Zero, false
}

func labelFor(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return id
}

func money(d decimal.Decimal) string {
	return d.StringFixed(core.Scale)
}
