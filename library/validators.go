package library

// Validation helpers for the identifiers accepted at every public entry point.
// Inputs from scans and metadata lookups get no special trust: they pass through
// the same checks as manual input.

// IsValidStudentID reports whether s is exactly 8 ASCII decimal digits.
func IsValidStudentID(s string) bool {
	if len(s) != 8 {
		return false
	}
	return allDigits(s)
}

// IsValidISBN13 reports whether s is a 13-digit string whose last digit matches
// the ISO 2108 check digit: weights alternate 1,3 over the first 12 digits and
// check = (10 - sum%10) % 10.
func IsValidISBN13(s string) bool {
	if len(s) != 13 || !allDigits(s) {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(s[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return check == int(s[12]-'0')
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
