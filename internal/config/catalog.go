package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shanehull/bottlescraper/internal/types"
)

type catalogFile struct {
	Items []types.CatalogEntry `yaml:"items"`
}

func DefaultCatalog() []types.CatalogEntry {
	return []types.CatalogEntry{
		{Code: "8722B", Name: "Red Weller"},
		{Code: "8119B", Name: "SUNTORY HIBIKI 12YR"},
		{Code: "8321B", Name: "SUNTORY YAMAZAKI 12 YR"},
		{Code: "7634B", Name: "SUNTORY YAMAZAKI 18 YR"},
		{Code: "8954B", Name: "Green Weller"},
		{Code: "0191B", Name: "Stagg JR."},
		{Code: "1562B", Name: "W.L. WELLER 12YR KENTUCKY STRAIGHT BRBN"},
		{Code: "2146B", Name: "WOODFORD RES. MC BOURBON"},
		{Code: "3749B", Name: "BLOOD OATH PACT VII"},
		{Code: "2893B", Name: "HIGH WEST MIDWINTER"},
		{Code: "2344B", Name: "MICHTER'S US1 SOUR MASH WHISKEY"},
		{Code: "2657B", Name: "MICHTER'S TOASTED BARREL FINISH"},
		{Code: "0793B", Name: "E.H. TAYLOR SINGLE BARREL STRAIGHT BOURB"},
		{Code: "1416B", Name: "E.H. TAYLOR JR BARREL PROOF"},
		{Code: "1418B", Name: "E.H. TAYLOR STRAIGHT RYE WHISKEY"},
		{Code: "6374B", Name: "WELLER FULL PROOF"},
	}
}

// LoadCatalog reads a YAML catalog of the form
//
//	items:
//	  - code: 8722B
//	    name: Red Weller
func LoadCatalog(path string) ([]types.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) ([]types.CatalogEntry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Items))
	entries := make([]types.CatalogEntry, 0, len(file.Items))
	for i, item := range file.Items {
		item.Code = strings.TrimSpace(item.Code)
		item.Name = strings.TrimSpace(item.Name)
		if item.Code == "" {
			return nil, fmt.Errorf("catalog item %d has no code", i+1)
		}
		if item.Name == "" {
			item.Name = item.Code
		}
		if seen[item.Code] {
			return nil, fmt.Errorf("catalog item code %s is duplicated", item.Code)
		}
		seen[item.Code] = true
		entries = append(entries, item)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog has no items")
	}
	return entries, nil
}
