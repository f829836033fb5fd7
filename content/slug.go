package content

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength caps generated slugs.
const MaxSlugLength = 80

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	nonSlugChars    = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// ValidateSlug returns a user-facing problem description, or "" when the
// slug is acceptable.
func ValidateSlug(slug string) string {
	if slug == "" {
		return "Slug is required."
	}
	if !slugPattern.MatchString(slug) {
		return "Slug only accepts lowercase letters, numbers, and hyphens."
	}
	return ""
}

// IsValidSlug reports whether slug is lowercase kebab-case.
func IsValidSlug(slug string) bool {
	return ValidateSlug(slug) == ""
}

// Slugify transliterates s to ASCII, strips diacritics and anything that is
// not a letter, digit or hyphen, and joins words with single hyphens. The
// result is at most MaxSlugLength characters.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	result = unidecode.Unidecode(result)
	result = strings.ToLower(result)
	result = nonSlugChars.ReplaceAllString(result, "")
	result = whitespaceRun.ReplaceAllString(strings.TrimSpace(result), "-")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")
	if len(result) > MaxSlugLength {
		result = strings.TrimRight(result[:MaxSlugLength], "-")
	}
	return result
}
