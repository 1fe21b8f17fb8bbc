package ingest

import "testing"

func TestDedupeKey_IgnoresNoiseWordsAndCase(t *testing.T) {
	a := DedupeKey("The First Baptist Church", 36.1627, -86.7816)
	b := DedupeKey("FIRST BAPTIST", 36.1627, -86.7816)
	if a != b {
		t.Fatalf("expected equal keys, got %q vs %q", a, b)
	}
}

func TestDedupeKey_RoundsCoordinatesToThreeDecimals(t *testing.T) {
	a := DedupeKey("Grace Chapel", 36.16271, -86.78162)
	b := DedupeKey("Grace Chapel", 36.16299, -86.78158)
	if a != b {
		t.Fatalf("expected coordinates within a block to collide, got %q vs %q", a, b)
	}

	c := DedupeKey("Grace Chapel", 36.16271, -86.79162)
	if a == c {
		t.Fatal("expected distinct coordinates to produce distinct keys")
	}
}

func TestDedupeKey_DistinctNames(t *testing.T) {
	a := DedupeKey("Grace Chapel", 36.162, -86.781)
	b := DedupeKey("Hope Chapel", 36.162, -86.781)
	if a == b {
		t.Fatal("expected different names to produce different keys")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"name and city", []string{"Grace Chapel", "Nashville"}, "grace-chapel-nashville"},
		{"punctuation", []string{"St. Paul's Church", "O'Fallon"}, "st-pauls-church-ofallon"},
		{"slashes", []string{"node/12345"}, "node-12345"},
		{"empty parts", []string{"", ""}, ""},
		{"collapses runs", []string{"First   Baptist -- Church"}, "first-baptist-church"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.parts...); got != tt.want {
				t.Fatalf("Slugify(%v) = %q, want %q", tt.parts, got, tt.want)
			}
		})
	}
}

func TestSlugSuffix(t *testing.T) {
	if got := slugSuffix("node/123456789012"); got != "56789012" {
		t.Fatalf("expected last 8 chars, got %q", got)
	}
	if got := slugSuffix(""); got == "" {
		t.Fatal("expected non-empty fallback suffix")
	}
}
