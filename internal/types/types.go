package types

import (
	"fmt"
	"strings"
	"time"
)

type CatalogEntry struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// StockKind is the shape of a store locator result page.
type StockKind int

const (
	NoStock StockKind = iota
	SingleStore
	MultiStore
)

func (k StockKind) String() string {
	switch k {
	case SingleStore:
		return "single-store"
	case MultiStore:
		return "multi-store"
	default:
		return "no-stock"
	}
}

type StoreRow struct {
	Address  string
	Phone    string
	Quantity string
}

type StoreDetail struct {
	Address string
	Details string
	Stock   string
}

// SearchResult is exactly one of the three stock kinds. Build it with
// NewNoStock, NewSingleStore or NewMultiStore; Store is only set for
// SingleStore and Rows only for MultiStore.
type SearchResult struct {
	Kind        StockKind
	Description string
	Price       string
	Store       *StoreDetail
	Rows        []StoreRow
}

func NewNoStock() SearchResult {
	return SearchResult{Kind: NoStock}
}

func NewSingleStore(description, price string, store StoreDetail) SearchResult {
	return SearchResult{
		Kind:        SingleStore,
		Description: description,
		Price:       price,
		Store:       &store,
	}
}

func NewMultiStore(description, price string, rows []StoreRow) SearchResult {
	return SearchResult{
		Kind:        MultiStore,
		Description: description,
		Price:       price,
		Rows:        rows,
	}
}

func (r SearchResult) InStock() bool {
	return r.Kind != NoStock
}

// Addresses returns the store addresses of a multi-store result in page order.
func (r SearchResult) Addresses() []string {
	if r.Kind != MultiStore {
		return nil
	}
	addresses := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		if row.Address != "" {
			addresses = append(addresses, row.Address)
		}
	}
	return addresses
}

type Coordinate struct {
	Lat float64
	Lon float64
}

type Marker struct {
	Label string
	Coordinate
}

type MapArtifact struct {
	ProductCode string
	ProductName string
	ZIP         string
	Path        string
	URL         string
	Center      Marker
	Markers     []Marker
	// Skipped lists store addresses that could not be geocoded.
	Skipped []string
}

type ItemOutcome struct {
	Entry  CatalogEntry
	Kind   StockKind
	Stores int
	Err    error
}

// Report accumulates the e-mail body of a single run.
type Report struct {
	StartedAt time.Time
	ZIP       string
	Radius    string
	Sections  []string
	Maps      []MapArtifact
}

func NewReport(startedAt time.Time, zip, radius string) *Report {
	return &Report{StartedAt: startedAt, ZIP: zip, Radius: radius}
}

func (r *Report) AddSection(text string) {
	if text == "" {
		return
	}
	r.Sections = append(r.Sections, text)
}

func (r *Report) AddMap(artifact MapArtifact) {
	r.Maps = append(r.Maps, artifact)
}

func (r *Report) HasStock() bool {
	return len(r.Sections) > 0
}

func (r *Report) String() string {
	var sb strings.Builder

	sb.WriteString(r.StartedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString("\n\n")

	for _, section := range r.Sections {
		sb.WriteString(section)
	}

	for _, m := range r.Maps {
		sb.WriteString(fmt.Sprintf("%s: %s\n", m.ProductName, m.URL))
	}

	return sb.String()
}
