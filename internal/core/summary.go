package core

// Summary totals an owner's transactions over a range.
type Summary struct {
	TotalIncome      Money     `json:"totalIncome"`
	TotalExpense     Money     `json:"totalExpense"`
	Balance          Money     `json:"balance"`
	SavingsRate      float64   `json:"savingsRate"`
	TransactionCount int       `json:"transactionCount"`
	Period           DateRange `json:"period"`
}

type CategoryStat struct {
	CategoryID       int64           `json:"id"`
	Name             string          `json:"name"`
	Color            string          `json:"color"`
	Icon             string          `json:"icon"`
	Type             TransactionType `json:"type"`
	Total            Money           `json:"total"`
	TransactionCount int             `json:"transactionCount"`
	Percentage       float64         `json:"percentage"`
}

type CategoryBreakdown struct {
	Categories  []CategoryStat `json:"categories"`
	TotalAmount Money          `json:"totalAmount"`
}

// MonthlyBucket is one month of a yearly series; Month is YYYY-MM.
type MonthlyBucket struct {
	Month   string `json:"month"`
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
	Balance Money  `json:"balance"`
}

type TrendBucket struct {
	Period string          `json:"period"`
	Type   TransactionType `json:"type"`
	Total  Money           `json:"total"`
	Count  int             `json:"count"`
}

// TopTransaction is a transaction joined with its category's display fields.
type TopTransaction struct {
	Transaction
	CategoryName  string `json:"category_name"`
	CategoryColor string `json:"category_color"`
	CategoryIcon  string `json:"category_icon"`
}

// ImportReport is the outcome of one import call.
type ImportReport struct {
	BatchID        string   `json:"batchId"`
	ImportedCount  int      `json:"importedCount"`
	ErrorCount     int      `json:"errorCount"`
	TotalRows      int      `json:"totalRows"`
	ErrorDetails   []string `json:"errorDetails"`
	TransactionIDs []int64  `json:"transactionIds,omitempty"`
	// Transactions holds the persisted records in file order.
	Transactions []Transaction `json:"-"`
}
