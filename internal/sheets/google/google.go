// Package google mirrors stored transactions into a Google Sheet, one tab
// per year.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

// CategoryLookup resolves category names for the mirrored rows.
type CategoryLookup interface {
	LookupCategory(ctx context.Context, id, ownerID int64) (core.Category, bool, error)
}

type Settings struct {
	SpreadsheetID string
	// SheetName is the tab base name; the transaction year is prefixed.
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	// OAuth user credentials, used when no service account is set.
	// The token file is written by finanzas-oauth-init.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

type Mirror struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	categories    CategoryLookup
	logger        *log.Logger
}

// NewMirror authenticates with a service account or a stored OAuth token
// and returns a mirror.
func NewMirror(ctx context.Context, s Settings, categories CategoryLookup, logger *log.Logger) (*Mirror, error) {
	if strings.TrimSpace(s.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, s, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewMirrorWithService(svc, s, categories, logger), nil
}

// NewMirrorWithService wraps an existing Sheets service.
func NewMirrorWithService(svc *gsheet.Service, s Settings, categories CategoryLookup, logger *log.Logger) *Mirror {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	base := strings.TrimSpace(s.SheetName)
	if base == "" {
		base = "Transacciones"
	}
	return &Mirror{
		svc:           svc,
		spreadsheetID: s.SpreadsheetID,
		sheetBase:     base,
		categories:    categories,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func newSheetsService(ctx context.Context, s Settings, logger *log.Logger) (*gsheet.Service, error) {
	opt, err := credentialsOption(ctx, s, logger)
	if err != nil {
		return nil, err
	}
	service, err := gsheet.NewService(ctx, opt, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func credentialsOption(ctx context.Context, s Settings, logger *log.Logger) (goption.ClientOption, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(s.ServiceAccountJSON) != "":
		credentialsJSON = []byte(s.ServiceAccountJSON)
	case strings.TrimSpace(s.ServiceAccountFile) != "":
		b, err := os.ReadFile(s.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	case strings.TrimSpace(s.OAuthTokenFile) != "":
		ts, err := oauthTokenSource(ctx, s)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.InfoContext(ctx, "Creating Google Sheets service with OAuth user token",
				"token_file", s.OAuthTokenFile)
		}
		return goption.WithTokenSource(ts), nil
	default:
		return nil, errors.New("missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	if logger != nil {
		logger.InfoContext(ctx, "Creating Google Sheets service with Service Account",
			"credentials_size", len(credentialsJSON),
			"scope", gsheet.SpreadsheetsScope)
	}
	return goption.WithCredentialsJSON(credentialsJSON), nil
}

// OAuthConfig builds the installed-app OAuth config from the client JSON.
func OAuthConfig(clientJSON, clientFile string) (*oauth2.Config, error) {
	b := []byte(clientJSON)
	if strings.TrimSpace(clientJSON) == "" {
		if strings.TrimSpace(clientFile) == "" {
			return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
		}
		var err error
		if b, err = os.ReadFile(clientFile); err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	}
	cfg, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

func oauthTokenSource(ctx context.Context, s Settings) (oauth2.TokenSource, error) {
	cfg, err := OAuthConfig(s.OAuthClientJSON, s.OAuthClientFile)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	tok, err := DecodeToken(b)
	if err != nil {
		return nil, err
	}
	return cfg.TokenSource(ctx, tok), nil
}

// DecodeToken parses a token saved by finanzas-oauth-init.
func DecodeToken(b []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("oauth token has neither access nor refresh token")
	}
	return &tok, nil
}

// AppendTransactions appends one row per transaction to the tab of its year.
func (m *Mirror) AppendTransactions(ctx context.Context, ownerID int64, txs []core.Transaction) error {
	if m.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(txs) == 0 {
		return nil
	}
	rowsBySheet, err := m.rowsBySheet(ctx, ownerID, txs)
	if err != nil {
		return err
	}

	sheets := make([]string, 0, len(rowsBySheet))
	for name := range rowsBySheet {
		sheets = append(sheets, name)
	}
	sort.Strings(sheets)

	for _, sheet := range sheets {
		rows := rowsBySheet[sheet]
		rng := fmt.Sprintf("%s!A:I", sheet)
		_, err := m.svc.Spreadsheets.Values.Append(m.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append to sheet %s: %w", sheet, err)
		}
		m.logger.InfoContext(ctx, "Appended transactions to sheet", "sheet", sheet, "owner_id", ownerID, "rows", len(rows))
	}
	return nil
}

func (m *Mirror) rowsBySheet(ctx context.Context, ownerID int64, txs []core.Transaction) (map[string][][]any, error) {
	names := map[int64]string{}
	out := map[string][][]any{}
	for _, t := range txs {
		name, ok := names[t.CategoryID]
		if !ok && m.categories != nil {
			cat, found, err := m.categories.LookupCategory(ctx, t.CategoryID, ownerID)
			if err != nil {
				return nil, fmt.Errorf("lookup category %d: %w", t.CategoryID, err)
			}
			if found {
				name = cat.Name
			}
			names[t.CategoryID] = name
		}
		sheet := m.sheetFor(t.Date)
		out[sheet] = append(out[sheet], Row(t, name))
	}
	return out, nil
}

func (m *Mirror) sheetFor(d core.ISODate) string {
	year, err := strconv.Atoi(d.Year())
	if err != nil {
		year = time.Now().Year()
	}
	return yearPrefixedName(m.sheetBase, year)
}

// Row renders t as sheet cells: date, type, description, amount, category,
// notes, owner, id, import batch. Expenses are written as negative amounts.
func Row(t core.Transaction, categoryName string) []any {
	amount := t.Amount.Euros()
	if t.Type == core.Expense {
		amount = -amount
	}
	return []any{
		t.Date.String(),
		string(t.Type),
		t.Description,
		amount,
		categoryName,
		t.Notes,
		t.OwnerID,
		t.ID,
		t.ImportBatch,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
