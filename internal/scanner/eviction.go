package scanner

import "fmt"

// shouldEvict states the eviction rule the store applies inside
// EvictToken's guarded transaction: a token must have reached the failure
// limit and currently be flagged as a honeypot. Either condition alone
// keeps the token live. Kept here so the policy is testable without a
// database.
func shouldEvict(failures, limit int, isHoneypot bool) bool {
	return failures >= limit && isHoneypot
}

// RemovalReason is the audit string recorded with an eviction.
func RemovalReason(limit int) string {
	return fmt.Sprintf("Exceeded honeypot failure limit (%d)", limit)
}
