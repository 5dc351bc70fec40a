package shared

// Ledger account identifiers are base58-encoded 32-byte public keys, which
// encode to between 32 and 44 characters.
const (
	minAddressLen = 32
	maxAddressLen = 44
)

// base58Alphabet excludes 0, O, I and l, which are not valid base58 digits.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var base58Set = func() [256]bool {
	var set [256]bool
	for i := 0; i < len(base58Alphabet); i++ {
		set[base58Alphabet[i]] = true
	}
	return set
}()

// IsLedgerAddress reports whether s is a syntactically valid external-ledger
// account identifier. It checks encoding only; existence of the account is a
// ledger client concern.
func IsLedgerAddress(s string) bool {
	if len(s) < minAddressLen || len(s) > maxAddressLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !base58Set[s[i]] {
			return false
		}
	}
	return true
}
