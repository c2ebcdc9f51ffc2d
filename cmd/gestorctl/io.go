package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/ofx"

	"github.com/pterm/pterm"
)

func readStatement(path string) (*domain.ParsedStatement, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read statement: %w", err)
	}
	return ofx.Parse(string(content))
}

func readJSONFile(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(w io.Writer, title string, data pterm.TableData) error {
	fmt.Fprintln(w, pterm.DefaultSection.Sprint(title))
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}

// colorAmount paints credits green and debits red.
func colorAmount(tx domain.Transaction) string {
	s := tx.Amount.StringFixed(2)
	if tx.Amount.IsNegative() {
		return pterm.Red(s)
	}
	return pterm.Green(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
