package gateway

import "testing"

func TestExtractCredentialsBoth(t *testing.T) {
	account, sortCode := extractCredentials("my account is 12345678 and sort code 11-22-33")
	if account != "12345678" {
		t.Errorf("account = %q", account)
	}
	if sortCode != "11-22-33" {
		t.Errorf("sortCode = %q", sortCode)
	}
}

func TestExtractCredentialsAccountOnly(t *testing.T) {
	account, sortCode := extractCredentials("the account number is 12345678 thanks")
	if account != "12345678" {
		t.Errorf("account = %q", account)
	}
	if sortCode != "" {
		t.Errorf("sortCode = %q, want empty (8-digit run is not a sort code)", sortCode)
	}
}

func TestExtractCredentialsSortCodeOnly(t *testing.T) {
	account, sortCode := extractCredentials("sort code is 112233")
	if account != "" {
		t.Errorf("account = %q, want empty", account)
	}
	if sortCode != "112233" {
		t.Errorf("sortCode = %q", sortCode)
	}
}

func TestExtractCredentialsAcrossFields(t *testing.T) {
	account, sortCode := extractCredentials("account 12345678", "", "code 44-55-66")
	if account != "12345678" || sortCode != "44-55-66" {
		t.Errorf("got %q / %q", account, sortCode)
	}
}

func TestRedactFreeText(t *testing.T) {
	got := redactFreeText("account 12345678 sort code 11-22-33 done")
	if got != "account [redacted] sort code [redacted] done" {
		t.Errorf("got %q", got)
	}
}

func TestSanitizeHandoffContextLeavesCanonicalFields(t *testing.T) {
	ctx := map[string]any{
		"account":         "12345678",
		"sortCode":        "112233",
		"lastUserMessage": "my account is 12345678",
		"reason":          "verify 112233 please",
	}
	out := sanitizeHandoffContext(ctx)
	if out["account"] != "12345678" || out["sortCode"] != "112233" {
		t.Errorf("canonical credential fields must pass through untouched: %v", out)
	}
	if out["lastUserMessage"] == ctx["lastUserMessage"] {
		t.Errorf("free-text credential not redacted: %v", out["lastUserMessage"])
	}
	if out["reason"] == ctx["reason"] {
		t.Errorf("free-text credential not redacted: %v", out["reason"])
	}
}

func TestFreeTextFieldsIncludesGraphStateVariables(t *testing.T) {
	fields := freeTextFields(
		map[string]any{"reason": "caller gave digits"},
		map[string]any{"variables": map[string]any{"spoken": "account 12345678"}},
	)
	var sawGraphVar bool
	for _, f := range fields {
		if f == "account 12345678" {
			sawGraphVar = true
		}
	}
	if !sawGraphVar {
		t.Errorf("graphState.variables strings must be scanned: %v", fields)
	}
}
