package salesorder

const (
	// MaxAddressLength is the widest value the provider accepts for address
	// line 1 and city.
	MaxAddressLength = 35
	// MaxTaxNameLength caps TaxDetail.TaxName.
	MaxTaxNameLength = 40
)

// SplitAddress fits primary into address line 1. Overflow is moved to the
// front of line 2, joined to secondary by one space. Line 2 itself is never
// cut; the provider accepts it as is.
func SplitAddress(primary, secondary string) (string, string) {
	runes := []rune(primary)
	if len(runes) <= MaxAddressLength {
		return primary, secondary
	}

	line1 := string(runes[:MaxAddressLength])
	line2 := string(runes[MaxAddressLength:])
	if secondary != "" {
		line2 += " " + secondary
	}
	return line1, line2
}

// Truncate hard-cuts s to at most n characters.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
