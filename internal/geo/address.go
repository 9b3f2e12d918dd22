package geo

import "strings"

var abbreviations = map[string]string{
	"st":   "Street",
	"ave":  "Avenue",
	"av":   "Avenue",
	"blvd": "Boulevard",
	"hwy":  "Highway",
}

var suiteDesignators = map[string]bool{
	"suite": true,
	"ste":   true,
	"unit":  true,
}

// NormalizeAddress expands street-type abbreviations and drops suite
// designators, which public geocoders tend to reject.
func NormalizeAddress(address string) string {
	fields := strings.Fields(address)
	out := make([]string, 0, len(fields))

	for i := 0; i < len(fields); i++ {
		word := fields[i]
		key := strings.ToLower(strings.TrimRight(word, ".,"))

		switch {
		case suiteDesignators[key], key == "#":
			i++ // skip the unit number too
			continue
		case strings.HasPrefix(key, "#"):
			continue
		}

		if full, ok := abbreviations[key]; ok {
			if strings.HasSuffix(word, ",") {
				full += ","
			}
			out = append(out, full)
			continue
		}
		out = append(out, word)
	}

	return strings.TrimRight(strings.Join(out, " "), " ,")
}

// Query builds the geocoder query for a store address.
func Query(address, regionSuffix string) string {
	return NormalizeAddress(address) + regionSuffix
}
