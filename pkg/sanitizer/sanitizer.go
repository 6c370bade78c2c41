package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var reNotPlateChar = regexp.MustCompile(`[^A-Z0-9]+`)

// NormalizePlate turns camera or form input into the canonical plate key used
// for lookups.
func NormalizePlate(plate string) string {
	p := Pipeline{
		strings.TrimSpace,
		strings.ToUpper,
		func(s string) string { return reNotPlateChar.ReplaceAllString(s, "") },
	}
	return p.Apply(plate)
}

// NormalizeChargerType keeps the display casing but tidies spacing.
func NormalizeChargerType(chargerType string) string {
	return TrimAndNormalize(chargerType)
}
