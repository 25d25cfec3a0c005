package metadata

import (
	"strconv"
	"strings"
)

// NormalizeISBN removes hyphens and spaces from an ISBN and validates its
// shape. It returns "" for anything that is not an ISBN-10 or ISBN-13.
func NormalizeISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	isbn = strings.ToUpper(strings.TrimSpace(isbn))

	switch len(isbn) {
	case 13:
		if !allDigits(isbn) {
			return ""
		}
	case 10:
		// ISBN-10 check digit may be X
		if !allDigits(isbn[:9]) || !(allDigits(isbn[9:]) || isbn[9] == 'X') {
			return ""
		}
	default:
		return ""
	}

	return isbn
}

// ISBNQuery builds the volumes search term for an exact ISBN match.
func ISBNQuery(isbn string) string {
	return "isbn:" + isbn
}

// ParsePublishedYear returns the integer before the first '-' of a published
// date ("2019-05-01" -> 2019, "1965" -> 1965), or 0 when that is not a number.
func ParsePublishedYear(publishedDate string) int {
	head, _, _ := strings.Cut(publishedDate, "-")
	year, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return year
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
