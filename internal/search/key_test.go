package search

import (
	"testing"

	"github.com/user/parley/pkg/backend"
)

func TestNormalizeQuery(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello World", "hello world"},
		{"  hello   world  ", "hello world"},
		{"HELLO\tworld\n", "hello world"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeQuery(tc.in); got != tc.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestKeyStableAcrossSpelling(t *testing.T) {
	f := backend.SearchFilters{TopK: 10}
	a := Key("Quarterly  Revenue", f, backend.SearchModeHybrid)
	b := Key("quarterly revenue", f, backend.SearchModeHybrid)
	if a != b {
		t.Error("normalized-equal queries produced different keys")
	}
}

func TestKeyDistinguishesRequests(t *testing.T) {
	f := backend.SearchFilters{TopK: 10}

	base := Key("revenue", f, backend.SearchModeHybrid)
	if Key("revenue", f, backend.SearchModeKeyword) == base {
		t.Error("mode not part of the key")
	}
	if Key("costs", f, backend.SearchModeHybrid) == base {
		t.Error("query not part of the key")
	}

	f2 := f
	f2.TopK = 20
	if Key("revenue", f2, backend.SearchModeHybrid) == base {
		t.Error("filters not part of the key")
	}
}

func TestKeyFilterOrderCanonical(t *testing.T) {
	a := backend.SearchFilters{
		AnalysisTypes: []backend.AnalysisType{backend.AnalysisRisk, backend.AnalysisSentiment},
	}
	b := backend.SearchFilters{
		AnalysisTypes: []backend.AnalysisType{backend.AnalysisSentiment, backend.AnalysisRisk},
	}
	if Key("q", a, backend.SearchModeSemantic) != Key("q", b, backend.SearchModeSemantic) {
		t.Error("analysis type order changed the key")
	}
}

func TestKeyDateRange(t *testing.T) {
	plain := backend.SearchFilters{}
	ranged := backend.SearchFilters{
		DateRange: &backend.DateRange{From: "2026-01-01", To: "2026-02-01"},
	}
	if Key("q", plain, backend.SearchModeSemantic) == Key("q", ranged, backend.SearchModeSemantic) {
		t.Error("date range not part of the key")
	}
}
