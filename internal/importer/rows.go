package importer

import (
	"strings"

	"finanzas/internal/core"
)

// Column names of the bank export, compared after upper-casing.
const (
	ColAccountingDate = "FECHA CONTABLE"
	ColValueDate      = "FECHA VALOR"
	ColDescription    = "DESCRIPCION"
	ColAmount         = "IMPORTE"
	ColBalance        = "SALDO"
)

const DefaultDelimiter = "|"

// DefaultHeaders is the column set a statement must carry.
var DefaultHeaders = []string{ColAccountingDate, ColValueDate, ColDescription, ColAmount, ColBalance}

// Row is one data line of a statement. Columns outside the known set are dropped.
type Row struct {
	Line           int
	AccountingDate string
	ValueDate      string
	Description    string
	Amount         string
	Balance        string
}

// header maps a known column to its position in the file.
type header map[string]int

func splitFields(line, delim string) []string {
	fields := strings.Split(line, delim)
	for i, f := range fields {
		fields[i] = unquote(strings.TrimSpace(f))
	}
	return fields
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// parseHeader returns column positions and the number of columns, or a
// *core.FormatError naming every expected column that is missing.
func parseHeader(line, delim string, expected []string) (header, int, error) {
	fields := splitFields(line, delim)
	h := header{}
	for i, f := range fields {
		name := strings.ToUpper(f)
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	var missing []string
	for _, e := range expected {
		if _, ok := h[strings.ToUpper(strings.TrimSpace(e))]; !ok {
			missing = append(missing, e)
		}
	}
	if len(missing) > 0 {
		return nil, 0, &core.FormatError{Reason: "missing required headers", Missing: missing}
	}
	return h, len(fields), nil
}

func (h header) value(fields []string, col string) string {
	if i, ok := h[col]; ok && i < len(fields) {
		return fields[i]
	}
	return ""
}

// extractRows turns data lines into Rows. Lines shorter than the header
// are skipped but still consume their line number.
func extractRows(lines []string, delim string, h header, width int) []Row {
	var rows []Row
	for i, line := range lines {
		fields := splitFields(line, delim)
		if len(fields) < width {
			continue
		}
		rows = append(rows, Row{
			Line:           i + 2,
			AccountingDate: h.value(fields, ColAccountingDate),
			ValueDate:      h.value(fields, ColValueDate),
			Description:    h.value(fields, ColDescription),
			Amount:         h.value(fields, ColAmount),
			Balance:        h.value(fields, ColBalance),
		})
	}
	return rows
}

// nonBlankLines splits text on any newline convention, dropping blank lines.
func nonBlankLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
