package slug

import (
	"regexp"
	"testing"
	"time"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9_]*$`)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme_corp"},
		{"  Acme   Corp  ", "acme_corp"},
		{"Café Münchën", "cafe_munchen"},
		{"O'Brien & Sons, Ltd.", "o_brien_sons_ltd"},
		{"Straße 42", "strasse_42"},
		{"Łódź Logistics", "lodz_logistics"},
		{"__already__slugged__", "already_slugged"},
		{"ÆTHER-Labs", "aether_labs"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugify_IdempotentAndCharset(t *testing.T) {
	inputs := []string{
		"Acme Corp", "Café Münchën", "  weird---name__here  ", "ÅÄÖ åäö",
		"日本 Company", "a", "123 Main St.", "tab\tand\nnewline",
	}
	for _, in := range inputs {
		once := Slugify(in)
		if twice := Slugify(once); twice != once {
			t.Errorf("Slugify not idempotent for %q: %q then %q", in, once, twice)
		}
		if !slugPattern.MatchString(once) {
			t.Errorf("Slugify(%q) = %q contains characters outside [a-z0-9_]", in, once)
		}
	}
}

func TestSlugify_Deterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		if got := Slugify("Déjà Vu Networks"); got != "deja_vu_networks" {
			t.Fatalf("run %d: Slugify = %q", i, got)
		}
	}
}

func TestArtifactName(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if got := ArtifactName("acme_corp", "vlan_10", ts); got != "acme_corp_vlan_10_20260304_050607" {
		t.Errorf("ArtifactName = %q", got)
	}
	if got := ArtifactName("", "primary", ts); got != "engagement_primary_20260304_050607" {
		t.Errorf("ArtifactName with empty slug = %q", got)
	}
}

func TestStamp_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2026, 3, 4, 7, 0, 0, 0, loc)
	if got := Stamp(ts); got != "20260304_050000" {
		t.Errorf("Stamp = %q, want 20260304_050000", got)
	}
}
