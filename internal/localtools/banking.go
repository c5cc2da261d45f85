package localtools

import (
	"context"
	"fmt"
)

// argString reads a string argument under the first of several accepted
// keys; callers in the wild spell account/sort-code keys three different
// ways.
func argString(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// IDVTool implements perform_idv_check: verifies an account/sort-code pair
// against the customer record and reports the holder's name on success.
type IDVTool struct {
	data *Dataset
}

func NewIDVTool(data *Dataset) *IDVTool { return &IDVTool{data: data} }

func (t *IDVTool) Name() string { return "perform_idv_check" }

func (t *IDVTool) Description() string {
	return "Verify a caller's identity from their account number and sort code."
}

func (t *IDVTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"account":  map[string]any{"type": "string", "description": "8-digit account number."},
			"sortCode": map[string]any{"type": "string", "description": "6-digit sort code, with or without dashes."},
		},
		"required": []string{"account", "sortCode"},
	}
}

func (t *IDVTool) Execute(_ context.Context, args map[string]any) *Result {
	account := argString(args, "account", "accountNumber", "account_number")
	sortCode := argString(args, "sortCode", "sort_code")
	if account == "" || sortCode == "" {
		return ErrorResult("account and sortCode are required")
	}

	name, ok := t.data.Verify(account, sortCode)
	if !ok {
		return NewResult(map[string]any{"auth_status": "FAILED"})
	}
	return NewResult(map[string]any{
		"auth_status":   "VERIFIED",
		"customer_name": name,
	})
}

// BalanceTool implements agentcore_balance.
type BalanceTool struct {
	data *Dataset
}

func NewBalanceTool(data *Dataset) *BalanceTool { return &BalanceTool{data: data} }

func (t *BalanceTool) Name() string { return "agentcore_balance" }

func (t *BalanceTool) Description() string {
	return "Read the current balance of a verified caller's account."
}

func (t *BalanceTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"account": map[string]any{"type": "string", "description": "8-digit account number."},
		},
		"required": []string{"account"},
	}
}

func (t *BalanceTool) Execute(_ context.Context, args map[string]any) *Result {
	account := argString(args, "account", "accountNumber", "account_number")
	if account == "" {
		return ErrorResult("account is required")
	}
	acct, ok := t.data.Lookup(account)
	if !ok {
		return ErrorResult("account not found")
	}
	return NewResult(map[string]any{
		"account":  acct.AccountNumber,
		"balance":  fmt.Sprintf("%.2f", acct.Balance),
		"currency": acct.Currency,
	})
}

// TransactionsTool implements get_account_transactions.
type TransactionsTool struct {
	data *Dataset
}

func NewTransactionsTool(data *Dataset) *TransactionsTool { return &TransactionsTool{data: data} }

func (t *TransactionsTool) Name() string { return "get_account_transactions" }

func (t *TransactionsTool) Description() string {
	return "List recent transactions on a verified caller's account."
}

func (t *TransactionsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"account": map[string]any{"type": "string", "description": "8-digit account number."},
			"limit":   map[string]any{"type": "integer", "description": "Maximum transactions to return."},
		},
		"required": []string{"account"},
	}
}

func (t *TransactionsTool) Execute(_ context.Context, args map[string]any) *Result {
	account := argString(args, "account", "accountNumber", "account_number")
	if account == "" {
		return ErrorResult("account is required")
	}
	acct, ok := t.data.Lookup(account)
	if !ok {
		return ErrorResult("account not found")
	}

	limit := len(acct.Transactions)
	if v, ok := args["limit"].(float64); ok && int(v) > 0 && int(v) < limit {
		limit = int(v)
	}
	return NewResult(map[string]any{
		"account":      acct.AccountNumber,
		"transactions": acct.Transactions[:limit],
	})
}

// DisputeTool implements create_dispute_case.
type DisputeTool struct {
	data *Dataset
}

func NewDisputeTool(data *Dataset) *DisputeTool { return &DisputeTool{data: data} }

func (t *DisputeTool) Name() string { return "create_dispute_case" }

func (t *DisputeTool) Description() string {
	return "Open a dispute case against a transaction on the caller's account."
}

func (t *DisputeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"account":  map[string]any{"type": "string", "description": "8-digit account number."},
			"merchant": map[string]any{"type": "string", "description": "Merchant the disputed transaction was with."},
			"reason":   map[string]any{"type": "string", "description": "Why the caller disputes the transaction."},
		},
		"required": []string{"account", "merchant"},
	}
}

func (t *DisputeTool) Execute(_ context.Context, args map[string]any) *Result {
	account := argString(args, "account", "accountNumber", "account_number")
	merchant := argString(args, "merchant")
	if account == "" || merchant == "" {
		return ErrorResult("account and merchant are required")
	}
	if _, ok := t.data.Lookup(account); !ok {
		return ErrorResult("account not found")
	}

	c := t.data.OpenDispute(account, merchant, argString(args, "reason"))
	return NewResult(map[string]any{
		"caseId": c.ID,
		"status": c.Status,
	})
}

// MerchantAliasTool implements lookup_merchant_alias: statement aliases like
// "AMZN MKTP UK" resolve to a recognisable trading name before a dispute is
// raised against the wrong merchant.
type MerchantAliasTool struct {
	data *Dataset
}

func NewMerchantAliasTool(data *Dataset) *MerchantAliasTool { return &MerchantAliasTool{data: data} }

func (t *MerchantAliasTool) Name() string { return "lookup_merchant_alias" }

func (t *MerchantAliasTool) Description() string {
	return "Resolve a cryptic statement merchant alias to its trading name."
}

func (t *MerchantAliasTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"alias": map[string]any{"type": "string", "description": "Merchant text as it appears on the statement."},
		},
		"required": []string{"alias"},
	}
}

func (t *MerchantAliasTool) Execute(_ context.Context, args map[string]any) *Result {
	alias := argString(args, "alias", "merchant")
	if alias == "" {
		return ErrorResult("alias is required")
	}
	name, ok := t.data.ResolveMerchant(alias)
	if !ok {
		return NewResult(map[string]any{"alias": alias, "resolved": false})
	}
	return NewResult(map[string]any{"alias": alias, "resolved": true, "merchant": name})
}

// KnowledgeBaseTool implements search_knowledge_base over the dataset's
// article collection.
type KnowledgeBaseTool struct {
	data *Dataset
}

func NewKnowledgeBaseTool(data *Dataset) *KnowledgeBaseTool { return &KnowledgeBaseTool{data: data} }

func (t *KnowledgeBaseTool) Name() string { return "search_knowledge_base" }

func (t *KnowledgeBaseTool) Description() string {
	return "Search the support knowledge base for policy and product answers."
}

func (t *KnowledgeBaseTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Knowledge base search query."},
		},
		"required": []string{"query"},
	}
}

func (t *KnowledgeBaseTool) Execute(_ context.Context, args map[string]any) *Result {
	query := argString(args, "query")
	if query == "" {
		return ErrorResult("query is required")
	}
	articles := t.data.SearchArticles(query, 3)
	return NewResult(map[string]any{
		"query":    query,
		"articles": articles,
	})
}
