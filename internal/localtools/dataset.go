package localtools

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/titanous/json5"
)

// Transaction is one entry on an account's statement.
type Transaction struct {
	Date     string  `json:"date"`
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
}

// Account is one demo banking record the tool set serves.
type Account struct {
	AccountNumber string        `json:"accountNumber"`
	SortCode      string        `json:"sortCode"`
	CustomerName  string        `json:"customerName"`
	Balance       float64       `json:"balance"`
	Currency      string        `json:"currency"`
	Transactions  []Transaction `json:"transactions,omitempty"`
}

// Article is one knowledge-base entry matched by search_knowledge_base.
type Article struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Keywords []string `json:"keywords,omitempty"`
}

// Dataset is the in-memory backing store for the local tool service: demo
// accounts, merchant alias resolutions, knowledge-base articles, and the
// dispute cases raised during the process lifetime.
type Dataset struct {
	mu              sync.Mutex
	accounts        map[string]*Account // keyed by account number
	merchantAliases map[string]string   // statement alias -> trading name
	articles        []Article
	disputes        []DisputeCase
	disputeSeq      int
}

// datasetFile is the on-disk JSON shape for a custom dataset.
type datasetFile struct {
	Accounts        []Account         `json:"accounts"`
	MerchantAliases map[string]string `json:"merchantAliases,omitempty"`
	Articles        []Article         `json:"articles,omitempty"`
}

// NewDataset returns the built-in demo dataset.
func NewDataset() *Dataset {
	return fromFile(defaultDataset)
}

// LoadDataset reads a dataset file, replacing the built-in demo data.
func LoadDataset(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("localtools: read dataset %s: %w", path, err)
	}
	var df datasetFile
	if err := json5.Unmarshal(raw, &df); err != nil {
		return nil, fmt.Errorf("localtools: parse dataset %s: %w", path, err)
	}
	return fromFile(df), nil
}

func fromFile(df datasetFile) *Dataset {
	d := &Dataset{
		accounts:        make(map[string]*Account, len(df.Accounts)),
		merchantAliases: make(map[string]string, len(df.MerchantAliases)),
		articles:        df.Articles,
	}
	for i := range df.Accounts {
		acct := df.Accounts[i]
		d.accounts[acct.AccountNumber] = &acct
	}
	for alias, name := range df.MerchantAliases {
		d.merchantAliases[strings.ToUpper(alias)] = name
	}
	return d
}

// Verify checks an account/sort-code pair and returns the holder's name.
func (d *Dataset) Verify(accountNumber, sortCode string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.accounts[accountNumber]
	if !ok || normalizeSortCode(acct.SortCode) != normalizeSortCode(sortCode) {
		return "", false
	}
	return acct.CustomerName, true
}

// Lookup returns the account record for accountNumber.
func (d *Dataset) Lookup(accountNumber string) (Account, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.accounts[accountNumber]
	if !ok {
		return Account{}, false
	}
	return *acct, true
}

// ResolveMerchant maps a cryptic statement alias to a trading name.
func (d *Dataset) ResolveMerchant(alias string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name, ok := d.merchantAliases[strings.ToUpper(strings.TrimSpace(alias))]
	return name, ok
}

// DisputeCase is one dispute raised through create_dispute_case.
type DisputeCase struct {
	ID            string    `json:"id"`
	AccountNumber string    `json:"accountNumber"`
	Merchant      string    `json:"merchant"`
	Reason        string    `json:"reason,omitempty"`
	Status        string    `json:"status"`
	OpenedAt      time.Time `json:"openedAt"`
}

// OpenDispute records a dispute case and returns it with a generated ID.
func (d *Dataset) OpenDispute(accountNumber, merchant, reason string) DisputeCase {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disputeSeq++
	c := DisputeCase{
		ID:            fmt.Sprintf("DSP-%s-%04d", time.Now().Format("20060102"), d.disputeSeq),
		AccountNumber: accountNumber,
		Merchant:      merchant,
		Reason:        reason,
		Status:        "open",
		OpenedAt:      time.Now(),
	}
	d.disputes = append(d.disputes, c)
	return c
}

// SearchArticles returns articles whose title, body, or keywords contain any
// term of the query, best matches first by number of matched terms.
func (d *Dataset) SearchArticles(query string, limit int) []Article {
	d.mu.Lock()
	defer d.mu.Unlock()

	terms := strings.Fields(strings.ToLower(query))
	type scored struct {
		article Article
		hits    int
	}
	var matches []scored
	for _, a := range d.articles {
		haystack := strings.ToLower(a.Title + " " + a.Body + " " + strings.Join(a.Keywords, " "))
		hits := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, scored{article: a, hits: hits})
		}
	}
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].hits > matches[i].hits {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}
	if limit <= 0 || limit > len(matches) {
		limit = len(matches)
	}
	out := make([]Article, 0, limit)
	for _, m := range matches[:limit] {
		out = append(out, m.article)
	}
	return out
}

func normalizeSortCode(s string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(s)
}

// defaultDataset is the built-in demo data served when no dataset file is
// configured.
var defaultDataset = datasetFile{
	Accounts: []Account{
		{
			AccountNumber: "12345678",
			SortCode:      "112233",
			CustomerName:  "Sarah Johnson",
			Balance:       2814.62,
			Currency:      "GBP",
			Transactions: []Transaction{
				{Date: "2025-11-28", Merchant: "AMZN MKTP UK", Amount: -34.99},
				{Date: "2025-11-27", Merchant: "TFL TRAVEL CH", Amount: -8.20},
				{Date: "2025-11-25", Merchant: "SAINSBURYS S/MKT", Amount: -62.47},
				{Date: "2025-11-24", Merchant: "ACME PAYROLL", Amount: 2450.00},
			},
		},
		{
			AccountNumber: "87654321",
			SortCode:      "445566",
			CustomerName:  "James Patel",
			Balance:       150.10,
			Currency:      "GBP",
			Transactions: []Transaction{
				{Date: "2025-11-26", Merchant: "NETFLIX.COM", Amount: -15.99},
			},
		},
	},
	MerchantAliases: map[string]string{
		"AMZN MKTP UK":     "Amazon Marketplace UK",
		"TFL TRAVEL CH":    "Transport for London",
		"SAINSBURYS S/MKT": "Sainsbury's Supermarket",
		"PAYPAL *STEAM":    "Steam (via PayPal)",
	},
	Articles: []Article{
		{
			Title:    "Disputing a card transaction",
			Body:     "A dispute can be raised for any card transaction within 120 days. A provisional credit is applied while the case is investigated.",
			Keywords: []string{"dispute", "chargeback", "transaction", "card"},
		},
		{
			Title:    "Identity verification requirements",
			Body:     "Telephone and voice banking requires the account number and sort code, verified against the customer record, before balances can be read out.",
			Keywords: []string{"identity", "verification", "idv", "security"},
		},
		{
			Title:    "Mortgage overpayments",
			Body:     "Most fixed-rate products allow up to 10% of the outstanding balance to be overpaid each year without an early repayment charge.",
			Keywords: []string{"mortgage", "overpayment", "repayment"},
		},
	},
}
