// Package schema declares the fixed set of tables kept in the spreadsheet and
// the ordered columns each one must carry.
package schema

import "fmt"

// Table is the name of a worksheet in the spreadsheet.
type Table string

const (
	Config         Table = "Config"
	Cards          Table = "Cards"
	Statements     Table = "Statements"
	CardPayments   Table = "Card_Payments"
	Loans          Table = "Loans"
	LoanRepayments Table = "Loan_Repayments"
	ActiveEMIs     Table = "Active_EMIs"
	EMILog         Table = "EMI_Log"
	Banks          Table = "Banks"
	BankBalances   Table = "Bank_Balances"
	Transactions   Table = "Transactions"
)

// Kind is the logical type of a column. Cells are stored as text; Kind
// tells readers how to interpret them.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindAmount
	KindDate
	KindMonth
)

// Column is one header cell.
type Column struct {
	Name string
	Kind Kind
}

// Common column names shared across tables.
const (
	ColID    = "ID"
	ColYear  = "Year"
	ColMonth = "Month"
)

// Definition is the static declaration of one table.
type Definition struct {
	Table   Table
	Columns []Column
	// Key lists the columns forming the business key for tables without an
	// ID column; such tables hold one row per key.
	Key []string
}

// ColumnNames returns the ordered header of the table.
func (d Definition) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// HasID reports whether the table is addressed by an ID column.
func (d Definition) HasID() bool {
	for _, c := range d.Columns {
		if c.Name == ColID {
			return true
		}
	}
	return false
}

// Kind returns the declared kind of column name, or KindText when the column
// is not part of the declaration.
func (d Definition) Kind(name string) Kind {
	for _, c := range d.Columns {
		if c.Name == name {
			return c.Kind
		}
	}
	return KindText
}

var definitions = []Definition{
	{Table: Config, Columns: []Column{{"Key", KindText}, {"Value", KindText}}, Key: []string{"Key"}},
	{Table: Cards, Columns: []Column{
		{ColID, KindInt}, {"Name", KindText}, {"First4", KindText}, {"Last4", KindText},
		{"Limit", KindAmount}, {"GraceDays", KindInt}, {"MatchCode", KindText},
	}},
	{Table: Banks, Columns: []Column{
		{ColID, KindInt}, {"Name", KindText}, {"Type", KindText}, {"AccNo", KindText}, {"MatchCode", KindText},
	}},
	{Table: Loans, Columns: []Column{
		{ColID, KindInt}, {"Source", KindText}, {"Type", KindText}, {"Category", KindText},
		{"Collateral", KindText}, {"Principal", KindAmount}, {"Rate", KindAmount}, {"EMI", KindAmount},
		{"Tenure", KindInt}, {"StartDate", KindDate}, {"Outstanding", KindAmount}, {"Status", KindText},
		{"DueDay", KindInt}, {"MatchCode", KindText},
	}},
	{Table: ActiveEMIs, Columns: []Column{
		{ColID, KindInt}, {"CardID", KindInt}, {"Item", KindText}, {"Beneficiary", KindText},
		{"TotalVal", KindAmount}, {"MonthlyEMI", KindAmount}, {"Start", KindDate}, {"Tenure", KindInt},
		{"Status", KindText},
	}},
	{Table: EMILog, Columns: []Column{
		{ColID, KindInt}, {"EMI_ID", KindInt}, {"Date", KindDate}, {ColMonth, KindMonth},
		{ColYear, KindInt}, {"Amount", KindAmount},
	}},
	{Table: Transactions, Columns: []Column{
		{ColID, KindInt}, {"Date", KindDate}, {ColYear, KindInt}, {ColMonth, KindMonth},
		{"Type", KindText}, {"Category", KindText}, {"Amount", KindAmount}, {"Notes", KindText},
		{"SourceAccount", KindText},
	}},
	{Table: Statements, Columns: []Column{
		{"CardID", KindInt}, {ColYear, KindInt}, {ColMonth, KindMonth}, {"StmtDate", KindDate},
		{"Billed", KindAmount}, {"Unbilled", KindAmount}, {"UnbilledDate", KindDate},
		{"Paid", KindAmount}, {"DueDate", KindDate},
	}, Key: []string{"CardID", ColYear, ColMonth}},
	{Table: BankBalances, Columns: []Column{
		{"BankID", KindInt}, {ColYear, KindInt}, {ColMonth, KindMonth}, {"Balance", KindAmount},
	}, Key: []string{"BankID", ColYear, ColMonth}},
	{Table: LoanRepayments, Columns: []Column{
		{ColID, KindInt}, {"LoanID", KindInt}, {"PaymentDate", KindDate}, {"Amount", KindAmount},
		{"Type", KindText},
	}},
	{Table: CardPayments, Columns: []Column{
		{ColID, KindInt}, {"CardID", KindInt}, {ColYear, KindInt}, {ColMonth, KindMonth},
		{"Date", KindDate}, {"Amount", KindAmount}, {"Note", KindText},
	}},
}

var byTable = func() map[Table]Definition {
	m := make(map[Table]Definition, len(definitions))
	for _, d := range definitions {
		m[d.Table] = d
	}
	return m
}()

// All returns every table definition in provisioning order.
func All() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition for t.
func Lookup(t Table) (Definition, bool) {
	d, ok := byTable[t]
	return d, ok
}

// MustLookup is Lookup for tables known at compile time.
func MustLookup(t Table) Definition {
	d, ok := byTable[t]
	if !ok {
		panic(fmt.Sprintf("schema: unknown table %q", t))
	}
	return d
}

// ParseTable resolves a user-supplied table name.
func ParseTable(name string) (Table, error) {
	t := Table(name)
	if _, ok := byTable[t]; !ok {
		return "", fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}
