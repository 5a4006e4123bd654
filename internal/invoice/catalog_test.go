package invoice

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFallbackCatalog(t *testing.T) {
	c := FallbackCatalog()
	if c.Len() != 29 || c.Source() != CatalogSourceBuiltin {
		t.Fatalf("Len() = %d, Source() = %q", c.Len(), c.Source())
	}
	entries := c.Entries()
	if entries[0] != "TD01 Fattura" || entries[28][:4] != "TD29" {
		t.Errorf("Entries() = %q ... %q", entries[0], entries[28])
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()

	custom := filepath.Join(dir, "types.help")
	content := "# tipi documento\nTD01 Fattura ordinaria\n\n  TD04   Nota di credito  \nnon valido\n"
	if err := os.WriteFile(custom, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.help")
	if err := os.WriteFile(empty, []byte("nessuna voce\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := LoadCatalog(custom)
	if c.Len() != 2 || c.Source() != custom {
		t.Fatalf("Len() = %d, Source() = %q", c.Len(), c.Source())
	}
	if got := c.Entries()[1]; got != "TD04 Nota di credito" {
		t.Errorf("Entries()[1] = %q, want collapsed whitespace", got)
	}

	for _, path := range []string{empty, filepath.Join(dir, "missing.help")} {
		if c := LoadCatalog(path); c.Source() != CatalogSourceBuiltin || c.Len() != 29 {
			t.Errorf("LoadCatalog(%q) = %d entries from %q, want builtin", path, c.Len(), c.Source())
		}
	}
}

func TestCustomCatalogClassification(t *testing.T) {
	p := NewParser(NewCatalog([]string{"TD01 Fattura ordinaria"}, "test"))
	r := p.Parse("Tipologia documento\nTD01 fattura ordinaria 7 01-02-2025")
	if r.Document == nil || deref(r.Document.TypeCode) != "TD01 Fattura ordinaria" {
		t.Errorf("TypeCode = %v", r.Document)
	}
}
