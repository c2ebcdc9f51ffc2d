package ofx

import (
	"fmt"
	"strings"

	"github.com/felipemotter/gestor-sub001/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when the statement has no CURDEF.
const DefaultCurrency = "BRL"

var (
	signonPath     = []string{"SIGNONMSGSRSV1", "SONRS", "FI"}
	creditCardPath = []string{"CREDITCARDMSGSRSV1", "CCSTMTTRNRS", "CCSTMTRS"}
	bankPath       = []string{"BANKMSGSRSV1", "STMTTRNRS", "STMTRS"}
)

// Parse decodes an OFX document into a ParsedStatement. It fails with
// *domain.ErrParse when the text is not OFX or carries neither a credit card
// nor a bank statement.
func Parse(content string) (*domain.ParsedStatement, error) {
	root, err := Decode(content)
	if err != nil {
		return nil, err
	}

	fi := root.Path(signonPath...)
	stmt := &domain.ParsedStatement{
		BankName: fi.Text("ORG"),
		BankID:   fi.Text("FID"),
	}

	body, accountAggregate := root.Path(creditCardPath...), "CCACCTFROM"
	if body == nil {
		body, accountAggregate = root.Path(bankPath...), "BANKACCTFROM"
	}
	if body == nil {
		return nil, &domain.ErrParse{Reason: "unsupported statement format"}
	}

	stmt.Currency = body.Text("CURDEF")
	if stmt.Currency == "" {
		stmt.Currency = DefaultCurrency
	}
	stmt.AccountID = body.Text(accountAggregate, "ACCTID")

	tranList := body.Child("BANKTRANLIST")
	stmt.StartDate = FormatDate(tranList.Text("DTSTART"))
	stmt.EndDate = FormatDate(tranList.Text("DTEND"))

	if raw := body.Text("LEDGERBAL", "BALAMT"); raw != "" {
		if bal, err := ParseAmount(raw); err == nil {
			stmt.LedgerBalance = &bal
		} else {
			stmt.Warnings = append(stmt.Warnings, fmt.Sprintf("ledger balance %q is not a number", raw))
		}
	}

	entries := tranList.All("STMTTRN")
	stmt.Transactions = make([]domain.ParsedTransaction, 0, len(entries))
	for _, n := range entries {
		id := n.Text("FITID")
		if id == "" {
			continue
		}

		rawAmount := n.Text("TRNAMT")
		amount, err := ParseAmount(rawAmount)
		if err != nil {
			// Kept as zero so the row stays visible; the warning lets the
			// caller decide whether to reject the upload.
			amount = decimal.Zero
			stmt.Warnings = append(stmt.Warnings, fmt.Sprintf("transaction %s: amount %q is not a number, using 0", id, rawAmount))
		}

		memo := n.Text("MEMO")
		if memo == "" {
			memo = n.Text("NAME")
		}
		posted := FormatDate(n.Text("DTPOSTED"))

		stmt.Transactions = append(stmt.Transactions, domain.ParsedTransaction{
			ExternalID: id,
			Type:       n.Text("TRNTYPE"),
			PostedAt:   posted,
			Amount:     amount,
			Memo:       memo,
			Hash:       ContentHash(id, amount.String(), posted, memo),
		})
	}

	return stmt, nil
}

// FormatDate turns the OFX packed date YYYYMMDD[hhmmss[.xxx]][[tz]] into
// YYYY-MM-DD. Anything shorter than a full date yields "".
func FormatDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) < 8 {
		return ""
	}
	for i := 0; i < 8; i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return ""
		}
	}
	return raw[0:4] + "-" + raw[4:6] + "-" + raw[6:8]
}

// ParseAmount parses an OFX amount. Some Brazilian banks export a decimal
// comma, which is accepted when no dot is present.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	return decimal.NewFromString(raw)
}
