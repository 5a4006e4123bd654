package invoice

import (
	"bufio"
	"os"
	"regexp"
	"strings"
	"sync"

	"fatture/internal/logger"
)

// DefaultCatalogPath is the catalog file looked up when TD_CATALOG_PATH is unset.
const DefaultCatalogPath = "TDxx fattura.help"

// CatalogSourceBuiltin marks a catalog built from the compiled-in list.
const CatalogSourceBuiltin = "builtin"

var catalogLineRe = regexp.MustCompile(`^TD\d{2}\s+`)

// fallbackDocumentTypes is the TD01..TD29 list of the FatturaPA specification.
var fallbackDocumentTypes = []string{
	"TD01 Fattura",
	"TD02 Acconto/anticipo su fattura",
	"TD03 Acconto/anticipo su parcella",
	"TD04 Nota di credito",
	"TD05 Nota di debito",
	"TD06 Parcella",
	"TD07 Fattura semplificata",
	"TD08 Nota di credito semplificata",
	"TD09 Nota di debito semplificata",
	"TD10 Fattura differita (ex art. 21 comma 4 DPR 633/72)",
	"TD11 Fattura per acquisto intracomunitario",
	"TD12 Documento di trasporto (DDT)",
	"TD13 Ricevuta fiscale",
	"TD14 Fattura riepilogativa (per regolarizzazione o rettifica)",
	"TD15 Integrazione fattura reverse charge interno",
	"TD16 Integrazione fattura reverse charge esterno/UE",
	"TD17 Integrazione/autofattura per acquisto servizi dall'estero",
	"TD18 Integrazione/autofattura per acquisto di beni intracomunitari",
	"TD19 Integrazione/autofattura per acquisto di beni ex art. 17 c.2 DPR 633/72",
	"TD20 Autofattura per regolarizzazione e integrazione delle fatture (ex art. 6 c. 8 d.lgs. 471/97 o art. 46 c.5 D.L. 331/93)",
	"TD21 Autofattura per splafonamento",
	"TD22 Estrazione beni da Deposito IVA",
	"TD23 Estrazione beni da Deposito IVA con versamento dell'IVA",
	"TD24 fattura differita di cui all'art.21, comma 4, terzo periodo lett.a) DPR 633/72",
	"TD25 Fattura differita di cui all'art.21, comma 4, terzo periodo lett.b) DPR 633/72",
	"TD26 Cessione di beni ammortizzabili e per passaggi interni (ex art. 36 DPR 633/72)",
	"TD27 Fattura per autoconsumo o per cessioni gratuite senza rivalsa",
	"TD28 Acquisti da San Marino con IVA (fattura cartacea)",
	"TD29 Comunicazione per omessa o irregolare fatturazione (introdotto dal 1° aprile 2025)",
}

type catalogEntry struct {
	text  string // "TDxx description", verbatim
	code  string // "TDxx", upper case
	lower string
	tail  string // lower case description without its first three words
}

// Catalog is the known vocabulary of document types. It is immutable and
// safe for concurrent use.
type Catalog struct {
	entries []catalogEntry
	source  string
}

// NewCatalog builds a catalog from "TDxx description" entries. Lines that do
// not start with a TDxx code are ignored.
func NewCatalog(entries []string, source string) *Catalog {
	c := &Catalog{source: source}
	for _, e := range entries {
		e = collapse(e)
		if !catalogLineRe.MatchString(e) {
			continue
		}
		lower := strings.ToLower(e)
		var tail string
		if words := strings.Fields(lower); len(words) > 3 {
			tail = strings.Join(words[3:], " ")
		}
		c.entries = append(c.entries, catalogEntry{
			text:  e,
			code:  strings.ToUpper(e[:4]),
			lower: lower,
			tail:  tail,
		})
	}
	return c
}

// FallbackCatalog returns the compiled-in catalog.
func FallbackCatalog() *Catalog {
	return NewCatalog(fallbackDocumentTypes, CatalogSourceBuiltin)
}

// LoadCatalog reads a catalog file, one "TDxx description" entry per line.
// A missing or unreadable file, or one without any entry, yields the
// compiled-in catalog.
func LoadCatalog(path string) *Catalog {
	log := logger.WithComponent("catalog")

	f, err := os.Open(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Catalog file not available, using builtin list")
		return FallbackCatalog()
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); catalogLineRe.MatchString(line) {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil || len(entries) == 0 {
		log.Warn().Err(err).Str("path", path).Msg("Catalog file unusable, using builtin list")
		return FallbackCatalog()
	}

	log.Debug().Str("path", path).Int("entries", len(entries)).Msg("Loaded document type catalog")
	return NewCatalog(entries, path)
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog loads the catalog named by TD_CATALOG_PATH once per process.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		path := os.Getenv("TD_CATALOG_PATH")
		if path == "" {
			path = DefaultCatalogPath
		}
		defaultCatalog = LoadCatalog(path)
	})
	return defaultCatalog
}

// Entries returns the catalog entries in file order.
func (c *Catalog) Entries() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.text
	}
	return out
}

// Source is the file the catalog was read from, or CatalogSourceBuiltin.
func (c *Catalog) Source() string {
	return c.source
}

func (c *Catalog) Len() int {
	return len(c.entries)
}
