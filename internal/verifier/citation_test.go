package verifier

import "testing"

func TestMarkerCitationExtractorFindsMarkers(t *testing.T) {
	e := NewMarkerCitationExtractor()
	got := e.Extract("Gemäß § 5 Abs. 2 und Art. 12 ist dies geregelt.")
	if len(got) == 0 {
		t.Fatal("expected at least one citation marker")
	}
}

func TestMarkerCitationExtractorNoMarkers(t *testing.T) {
	e := NewMarkerCitationExtractor()
	got := e.Extract("Dies ist ein allgemeiner Satz ohne Verweis.")
	if len(got) != 0 {
		t.Errorf("expected no citations, got %v", got)
	}
}
