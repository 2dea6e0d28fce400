// Package plate cleans and validates license plate text.
package plate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidPlate is returned when text does not look like a plate.
var ErrInvalidPlate = errors.New("plate: invalid plate")

var (
	nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)
	// Colombian private-vehicle format: three letters, three or four digits.
	plateFormat = regexp.MustCompile(`^[A-Z]{3}\d{3,4}$`)
)

// Clean drops everything but letters and digits and upper-cases the rest.
func Clean(s string) string {
	return strings.ToUpper(nonAlnum.ReplaceAllString(s, ""))
}

// Valid reports whether s is already in plate format.
func Valid(s string) bool {
	return plateFormat.MatchString(s)
}

// Parse cleans s and validates the result.
func Parse(s string) (string, error) {
	p := Clean(s)
	if !Valid(p) {
		return "", ErrInvalidPlate
	}
	return p, nil
}

// FromResult extracts the plate from a result string such as
// "Placa detectada: ABC123". It looks at the last whitespace-separated token.
func FromResult(result string) (string, bool) {
	fields := strings.Fields(result)
	if len(fields) == 0 {
		return "", false
	}
	p, err := Parse(fields[len(fields)-1])
	if err != nil {
		return "", false
	}
	return p, true
}
