package localtools

import (
	"context"
	"strings"
	"testing"
)

func TestIDVVerifiesKnownAccount(t *testing.T) {
	tool := NewIDVTool(NewDataset())

	res := tool.Execute(context.Background(), map[string]any{"account": "12345678", "sortCode": "112233"})
	if res.IsError() {
		t.Fatal(res.ErrText)
	}
	out := res.Value.(map[string]any)
	if out["auth_status"] != "VERIFIED" {
		t.Errorf("auth_status = %v", out["auth_status"])
	}
	if out["customer_name"] != "Sarah Johnson" {
		t.Errorf("customer_name = %v", out["customer_name"])
	}
}

func TestIDVAcceptsDashedSortCode(t *testing.T) {
	tool := NewIDVTool(NewDataset())
	res := tool.Execute(context.Background(), map[string]any{"account": "12345678", "sortCode": "11-22-33"})
	out := res.Value.(map[string]any)
	if out["auth_status"] != "VERIFIED" {
		t.Errorf("dashed sort code should verify, got %v", out["auth_status"])
	}
}

func TestIDVFailsWrongSortCode(t *testing.T) {
	tool := NewIDVTool(NewDataset())
	res := tool.Execute(context.Background(), map[string]any{"account": "12345678", "sortCode": "999999"})
	out := res.Value.(map[string]any)
	if out["auth_status"] != "FAILED" {
		t.Errorf("auth_status = %v, want FAILED", out["auth_status"])
	}
	if _, ok := out["customer_name"]; ok {
		t.Error("failed IDV must not leak the customer name")
	}
}

func TestIDVRequiresBothCredentials(t *testing.T) {
	tool := NewIDVTool(NewDataset())
	res := tool.Execute(context.Background(), map[string]any{"account": "12345678"})
	if !res.IsError() {
		t.Error("missing sortCode should error")
	}
}

func TestBalanceKnownAccount(t *testing.T) {
	tool := NewBalanceTool(NewDataset())
	res := tool.Execute(context.Background(), map[string]any{"account": "12345678"})
	if res.IsError() {
		t.Fatal(res.ErrText)
	}
	out := res.Value.(map[string]any)
	if out["balance"] != "2814.62" || out["currency"] != "GBP" {
		t.Errorf("balance = %v %v", out["balance"], out["currency"])
	}
}

func TestBalanceUnknownAccount(t *testing.T) {
	tool := NewBalanceTool(NewDataset())
	res := tool.Execute(context.Background(), map[string]any{"account": "00000000"})
	if !res.IsError() {
		t.Error("unknown account should error")
	}
}

func TestTransactionsHonorsLimit(t *testing.T) {
	tool := NewTransactionsTool(NewDataset())
	// JSON-decoded numbers arrive as float64.
	res := tool.Execute(context.Background(), map[string]any{"account": "12345678", "limit": float64(2)})
	if res.IsError() {
		t.Fatal(res.ErrText)
	}
	out := res.Value.(map[string]any)
	txns := out["transactions"].([]Transaction)
	if len(txns) != 2 {
		t.Errorf("got %d transactions, want 2", len(txns))
	}
}

func TestDisputeCaseIDsAreSequential(t *testing.T) {
	data := NewDataset()
	tool := NewDisputeTool(data)

	first := tool.Execute(context.Background(), map[string]any{"account": "12345678", "merchant": "Amazon Marketplace UK"})
	second := tool.Execute(context.Background(), map[string]any{"account": "12345678", "merchant": "Transport for London"})
	if first.IsError() || second.IsError() {
		t.Fatalf("%v / %v", first.ErrText, second.ErrText)
	}
	id1 := first.Value.(map[string]any)["caseId"].(string)
	id2 := second.Value.(map[string]any)["caseId"].(string)
	if id1 == id2 {
		t.Errorf("case IDs must be unique: %s", id1)
	}
	if !strings.HasPrefix(id1, "DSP-") {
		t.Errorf("caseId = %q", id1)
	}
}

func TestMerchantAliasResolution(t *testing.T) {
	tool := NewMerchantAliasTool(NewDataset())

	res := tool.Execute(context.Background(), map[string]any{"alias": "amzn mktp uk"})
	out := res.Value.(map[string]any)
	if out["resolved"] != true || out["merchant"] != "Amazon Marketplace UK" {
		t.Errorf("resolution = %v", out)
	}

	res = tool.Execute(context.Background(), map[string]any{"alias": "TOTALLY UNKNOWN"})
	out = res.Value.(map[string]any)
	if out["resolved"] != false {
		t.Errorf("unknown alias should report resolved=false: %v", out)
	}
}

func TestKnowledgeBaseSearch(t *testing.T) {
	tool := NewKnowledgeBaseTool(NewDataset())

	res := tool.Execute(context.Background(), map[string]any{"query": "dispute a transaction"})
	if res.IsError() {
		t.Fatal(res.ErrText)
	}
	out := res.Value.(map[string]any)
	articles := out["articles"].([]Article)
	if len(articles) == 0 {
		t.Fatal("expected at least one article")
	}
	if !strings.Contains(articles[0].Title, "Disputing") {
		t.Errorf("best match = %q", articles[0].Title)
	}
}

func TestKnowledgeBaseRequiresQuery(t *testing.T) {
	tool := NewKnowledgeBaseTool(NewDataset())
	res := tool.Execute(context.Background(), map[string]any{})
	if !res.IsError() {
		t.Error("empty query should error")
	}
}
