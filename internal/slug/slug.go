// Package slug turns customer names into filesystem-safe identifiers and
// builds the artifact names derived from them.
package slug

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StampLayout formats the engagement timestamp appended to artifact names.
const StampLayout = "20060102_150405"

// Fallback is used when a name slugifies to nothing.
const Fallback = "engagement"

// Letters that do not decompose into a base letter plus a combining mark.
var fold = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ø", "o",
	"đ", "d",
	"ð", "d",
	"ł", "l",
	"þ", "th",
	"ı", "i",
)

// Slugify lower-cases name, transliterates accented letters, and replaces
// every run of other characters with a single underscore. The result matches
// ^[a-z0-9_]*$ and Slugify(Slugify(x)) == Slugify(x).
func Slugify(name string) string {
	s := fold.Replace(strings.ToLower(name))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Stamp formats t as the artifact uniqueness suffix, in UTC.
func Stamp(t time.Time) string {
	return t.UTC().Format(StampLayout)
}

// ArtifactName builds "<slug>_<label>_<stamp>". An empty slug falls back to
// "engagement" so names never start with an underscore.
func ArtifactName(slug, label string, createdAt time.Time) string {
	if slug == "" {
		slug = Fallback
	}
	return slug + "_" + label + "_" + Stamp(createdAt)
}
