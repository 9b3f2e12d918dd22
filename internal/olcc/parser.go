package olcc

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/shanehull/bottlescraper/internal/types"
)

const (
	DescriptionUnavailable = "Product description not available"
	PriceUnavailable       = "N/A"
	StoreUnavailable       = "Store address or information not available"
	StockSectionMissing    = "Stock section not found"
	StockInfoMissing       = "Stock information not available"

	// Rows of the store list with this many cells or fewer are headers,
	// spacers or ads.
	minStoreRowCells = 7

	addressCell  = 2
	phoneCell    = 4
	quantityCell = 6
)

// ClassifyHTML parses a result page and classifies it.
func ClassifyHTML(r io.Reader) (types.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return types.NewNoStock(), fmt.Errorf("failed to parse HTML: %w", err)
	}
	return Classify(doc), nil
}

// Classify decides which stock shape a result page has. Missing nodes below
// the chosen shape degrade to placeholder text.
func Classify(doc *goquery.Document) types.SearchResult {
	if list := doc.Find("table.list").First(); list.Length() > 0 {
		return types.NewMultiStore(description(doc), bottlePrice(doc), storeRows(list))
	}

	if block := doc.Find("#prod-loc-details").First(); block.Length() > 0 {
		store := storeDetail(block)
		store.Stock = stockLine(doc)
		return types.NewSingleStore(description(doc), bottlePrice(doc), store)
	}

	return types.NewNoStock()
}

func description(doc *goquery.Document) string {
	desc := selectionText(doc.Find("th#product-desc h2").First())
	if desc == "" {
		return DescriptionUnavailable
	}
	return desc
}

// bottlePrice looks for the cell labelled "Bottle Price" and reads the cell
// next to it.
func bottlePrice(doc *goquery.Document) string {
	price := PriceUnavailable

	doc.Find("th, td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		label := selectionText(cell)
		rest, ok := cutPrefixFold(label, "bottle price")
		if !ok {
			return true
		}

		rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), ":"))
		if rest != "" {
			price = rest
			return false
		}

		if next := selectionText(cell.Next()); next != "" {
			price = next
		}
		return false
	})

	return price
}

func storeRows(list *goquery.Selection) []types.StoreRow {
	var rows []types.StoreRow

	list.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() <= minStoreRowCells {
			return
		}
		rows = append(rows, types.StoreRow{
			Address:  selectionText(cells.Eq(addressCell)),
			Phone:    selectionText(cells.Eq(phoneCell)),
			Quantity: selectionText(cells.Eq(quantityCell)),
		})
	})

	return rows
}

func storeDetail(block *goquery.Selection) types.StoreDetail {
	paragraphs := block.Find("#location-display p")
	if paragraphs.Length() < 2 {
		return types.StoreDetail{Address: StoreUnavailable}
	}
	return types.StoreDetail{
		Address: selectionText(paragraphs.Eq(0)),
		Details: selectionText(paragraphs.Eq(1)),
	}
}

func stockLine(doc *goquery.Document) string {
	section := doc.Find("#stock-display").First()
	if section.Length() == 0 {
		return StockSectionMissing
	}
	stock := selectionText(section.Find("p").First())
	if stock == "" {
		return StockInfoMissing
	}
	return stock
}

func selectionText(sel *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range sel.Nodes {
		sb.WriteString(extractText(n))
		sb.WriteString(" ")
	}
	return collapseSpace(sb.String())
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(extractText(c))
		if c.Type == html.ElementNode && c.Data == "br" {
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
