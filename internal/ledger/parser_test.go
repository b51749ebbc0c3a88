package ledger_test

import (
	"testing"

	"ledgerls/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `option "title" "Household"
; accounts
2024-01-01 open Assets:Bank USD,EUR
2024-01-01 open Expenses:Food
2024-01-01 commodity USD

2024-01-05 * "Bakery" "Bread and croissants" #food ^receipt-1
  Expenses:Food   3.50 USD ; tasty
  Assets:Bank

2024-02-01 balance Assets:Bank -3.50 USD
2024-02-02 price EUR 1.08 USD
2024-02-03 note Assets:Bank "Called the bank"
2024-02-04 document Assets:Bank "statements/feb.pdf"
2024-02-05 pad Assets:Bank Equity:Opening-Balances
2024-02-06 query "cash" "SELECT account"
2024-02-07 custom "budget" Expenses:Food "monthly" 100.00 USD
2024-02-08 event "location" "Berlin"
2024-12-31 close Assets:Bank
`

func TestParseSample(t *testing.T) {
	result := ledger.Parse(sample)
	require.Empty(t, result.Errors)

	var keywords []string
	for _, d := range result.Directives {
		keywords = append(keywords, d.Value.Keyword())
	}
	assert.Equal(t, []string{
		"open", "open", "commodity", "txn", "balance", "price", "note",
		"document", "pad", "query", "custom", "event", "close",
	}, keywords)

	open := result.Directives[0].Value.(ledger.Open)
	assert.Equal(t, "2024-01-01", open.When())
	assert.Equal(t, "Assets:Bank", open.Account)
	assert.Equal(t, []string{"USD", "EUR"}, open.Currencies)

	txn := result.Directives[3].Value.(ledger.Transaction)
	assert.Equal(t, "*", txn.Flag)
	assert.Equal(t, "Bakery", txn.Payee)
	assert.Equal(t, "Bread and croissants", txn.Narration)
	assert.Equal(t, []string{"food"}, txn.Tags)
	assert.Equal(t, []string{"receipt-1"}, txn.Links)
	require.Len(t, txn.Postings, 2)
	assert.Equal(t, "Expenses:Food", txn.Postings[0].Account)
	require.NotNil(t, txn.Postings[0].Units)
	assert.Equal(t, ledger.Amount{Number: "3.50", Currency: "USD"}, *txn.Postings[0].Units)
	assert.Nil(t, txn.Postings[1].Units)

	bal := result.Directives[4].Value.(ledger.Balance)
	assert.Equal(t, ledger.Amount{Number: "-3.50", Currency: "USD"}, bal.Amount)

	assert.Len(t, result.Comments, 2)
}

func TestDirectiveSpans(t *testing.T) {
	result := ledger.Parse(sample)
	for _, d := range result.Directives {
		text := sample[d.Span.Start:d.Span.End]
		assert.Equal(t, d.Value.When(), text[:10], "span %s must start at the date", d.Span)
	}

	txn := result.Directives[3]
	text := sample[txn.Span.Start:txn.Span.End]
	assert.Contains(t, text, "Assets:Bank")
	assert.NotContains(t, text, "balance", "transaction span ends at its last posting")

	postings := txn.Value.(ledger.Transaction).Postings
	assert.Equal(t, "Expenses:Food   3.50 USD", sample[postings[0].Span.Start:postings[0].Span.End])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind ledger.ErrorKind
		span string
	}{
		{"garbage line", "hello world\n", ledger.ErrUnexpectedLine, "hello"},
		{"bad date", "2024-13-01 open Assets:Bank\n", ledger.ErrInvalidDate, "2024-13-01"},
		{"unknown keyword", "2024-01-01 opne Assets:Bank\n", ledger.ErrUnknownDirective, "opne"},
		{"missing account", "2024-01-01 open\n", ledger.ErrMissingField, "open"},
		{"bad account", "2024-01-01 open assets:bank\n", ledger.ErrInvalidAccount, "assets:bank"},
		{"bad amount", "2024-01-01 balance Assets:Bank abc USD\n", ledger.ErrInvalidAmount, "abc"},
		{"bad currency", "2024-01-01 commodity usd\n", ledger.ErrInvalidCurrency, "usd"},
		{"stray indent", "  Assets:Bank 1 USD\n", ledger.ErrUnexpectedIndent, "Assets:Bank 1 USD"},
		{"unterminated", "2024-01-01 * \"oops\n", ledger.ErrUnterminatedString, "\"oops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ledger.Parse(tt.text)
			require.NotEmpty(t, result.Errors)
			e := result.Errors[0]
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.span, tt.text[e.Span.Start:e.Span.End])
		})
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "P0004", ledger.ErrMissingField.Code())
	e := ledger.ParseError{Kind: ledger.ErrInvalidAccount, Detail: "foo"}
	assert.Equal(t, "invalid account name: foo", e.Message())
	assert.Equal(t, "P0005 invalid account name: foo", e.Error())
}

func TestRecoversAfterError(t *testing.T) {
	result := ledger.Parse("2024-01-01 open bad\n2024-01-02 open Assets:Good\n")
	require.Len(t, result.Errors, 1)
	require.Len(t, result.Directives, 1)
	assert.Equal(t, "Assets:Good", result.Directives[0].Value.(ledger.Open).Account)
}

func TestSplitFields(t *testing.T) {
	fields, comment := ledger.SplitFields(`2024-01-01 * "Café \"Zum\" Eck" ; note`)
	require.Len(t, fields, 3)
	assert.Equal(t, `Café "Zum" Eck`, fields[2].Unquote())
	assert.Equal(t, 11, fields[1].Start)
	assert.Greater(t, comment, fields[2].End)
}
