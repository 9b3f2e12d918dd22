package olcc

import (
	"strings"

	"github.com/shanehull/bottlescraper/internal/types"
)

const Separator = "******"

// Format renders an in-stock result as a report section: the separator, one
// header line, then one tab-indented block per store. No-stock results
// render as "".
func Format(result types.SearchResult) string {
	if !result.InStock() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(Separator + "\n")
	sb.WriteString(header(result) + "\n")

	switch result.Kind {
	case types.MultiStore:
		for _, row := range result.Rows {
			writeBlock(&sb, row.Address, row.Phone, "Quantity: "+row.Quantity)
		}
	case types.SingleStore:
		store := result.Store
		if store == nil {
			store = &types.StoreDetail{Address: StoreUnavailable, Stock: StockSectionMissing}
		}
		writeBlock(&sb, store.Address, store.Details, store.Stock)
	}

	return sb.String()
}

func header(result types.SearchResult) string {
	if result.Price == "" {
		return result.Description
	}
	return result.Description + ": " + result.Price
}

func writeBlock(sb *strings.Builder, lines ...string) {
	for _, line := range lines {
		if line == "" {
			continue
		}
		sb.WriteString("\t" + line + "\n")
	}
	sb.WriteString("\n")
}
