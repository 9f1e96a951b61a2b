package parser

import (
	"testing"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

func TestParseScenario(t *testing.T) {
	p := New()
	sections := p.Parse("§ 5 Text A. Absatz 1 Text B. § 6 Text C.")

	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d: %+v", len(sections), sections)
	}

	if sections[0].Content != "Text A." || sections[0].Level != 0 || sections[0].HasParent() {
		t.Errorf("section 0 mismatch: %+v", sections[0])
	}
	if sections[1].Content != "Text B." || sections[1].Level != 1 {
		t.Errorf("section 1 mismatch: %+v", sections[1])
	}
	if sections[1].ParentPosition == nil || *sections[1].ParentPosition != 0 {
		t.Errorf("section 1 should have parent position 0, got %+v", sections[1].ParentPosition)
	}
	if sections[2].Content != "Text C." || sections[2].Level != 0 || sections[2].HasParent() {
		t.Errorf("section 2 mismatch: %+v", sections[2])
	}
}

func TestParseEmptyInput(t *testing.T) {
	p := New()
	if got := p.Parse(""); len(got) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
}

func TestParseNoMarkersDegradesToUnknown(t *testing.T) {
	p := New()
	sections := p.Parse("just some plain prose with no legal markers at all")
	if len(sections) != 1 || sections[0].ChunkType != domain.ChunkTypeUnknown {
		t.Fatalf("expected single unknown section, got %+v", sections)
	}
}

func TestParseHierarchyInvariant(t *testing.T) {
	p := New()
	sections := p.Parse("§ 1 A. Absatz 1 B. Ziffer 1 C. § 2 D.")
	for _, s := range sections {
		if s.ParentPosition == nil {
			continue
		}
		parent := findByPosition(sections, *s.ParentPosition)
		if parent == nil {
			t.Fatalf("parent position %d not found", *s.ParentPosition)
		}
		if parent.Level >= s.Level {
			t.Errorf("parent level %d not < child level %d", parent.Level, s.Level)
		}
		if *s.ParentPosition >= s.Position {
			t.Errorf("parent position %d not < child position %d", *s.ParentPosition, s.Position)
		}
	}
}

func TestExtractSectionIDs(t *testing.T) {
	ids := ExtractSectionIDs("See § 5 and also § 5 again, plus Absatz 2.")
	if len(ids) != 2 {
		t.Fatalf("expected 2 unique ids, got %+v", ids)
	}
}

func findByPosition(sections []domain.Section, pos int) *domain.Section {
	for i := range sections {
		if sections[i].Position == pos {
			return &sections[i]
		}
	}
	return nil
}
