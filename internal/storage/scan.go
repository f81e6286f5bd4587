package storage

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/pkg/utils"
)

const selectSnapshotSQL = `
	SELECT token_address, pair_address, token_name, token_symbol,
	       token_decimals, total_supply, holder_count,
	       first_seen, last_scan_at, age_hours,
	       total_scans, consecutive_failures,
	       is_honeypot, honeypot_reason, liquidity, buy_tax, sell_tax,
	       last_error, status, honeypot_data, security_data, liquidity_buckets
	FROM token_snapshots`

// rowScanner abstracts *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSnapshotRow decodes one token_snapshots row, including the JSON
// detail columns.
func scanSnapshotRow(row rowScanner) (*models.TokenSnapshot, error) {
	snap := &models.TokenSnapshot{}
	var (
		age                                 sql.NullFloat64
		honeypotJSON, securityJSON, buckets string
	)

	err := row.Scan(&snap.Address, &snap.PairAddress, &snap.Name, &snap.Symbol,
		&snap.Decimals, &snap.TotalSupply, &snap.HolderCount,
		&snap.FirstSeen, &snap.LastScanAt, &age,
		&snap.TotalScans, &snap.ConsecutiveFailures,
		&snap.IsHoneypot, &snap.HoneypotReason, &snap.Liquidity, &snap.BuyTax, &snap.SellTax,
		&snap.LastError, &snap.Status, &honeypotJSON, &securityJSON, &buckets)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan snapshot row", err.Error())
	}

	if age.Valid {
		snap.AgeHours = &age.Float64
	}
	if honeypotJSON != "" && honeypotJSON != "{}" {
		if err := json.Unmarshal([]byte(honeypotJSON), &snap.Honeypot); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to decode honeypot data", err.Error())
		}
	}
	if securityJSON != "" && securityJSON != "{}" {
		if err := json.Unmarshal([]byte(securityJSON), &snap.Security); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to decode security data", err.Error())
		}
	}
	if buckets != "" && buckets != "[]" {
		if err := json.Unmarshal([]byte(buckets), &snap.Buckets); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to decode liquidity buckets", err.Error())
		}
	}

	return snap, nil
}

// buildSnapshotFilter assembles the WHERE clause for snapshot listings.
// Placeholders are '?'; postgres callers rebind afterwards.
func buildSnapshotFilter(filter models.SnapshotFilter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)

	if filter.IsHoneypot != nil {
		clauses = append(clauses, "is_honeypot = ?")
		args = append(args, *filter.IsHoneypot)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(token_address LIKE ? OR token_name LIKE ? OR token_symbol LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// rebind converts '?' placeholders to numbered '$n' placeholders for
// PostgreSQL.
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// nullFloat converts an optional float for SQL binding.
func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
