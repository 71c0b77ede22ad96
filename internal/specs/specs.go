// Package specs turns product text and catalog attribute maps into a sparse set
// of normalized attributes and scores how well two such sets agree.
package specs

type Key string

const (
	KeyApplication Key = "application"
	KeyGauge       Key = "gauge"
	KeyLength      Key = "length"
	KeySize        Key = "size"
	KeyVolume      Key = "volume"
	KeyMaterial    Key = "material"
	KeyCount       Key = "count"
	KeyType        Key = "type"
	KeyForUseWith  Key = "forUseWith"
)

// Keys is the display order used by alignments.
var Keys = []Key{
	KeyApplication, KeyGauge, KeyLength, KeySize, KeyVolume, KeyMaterial, KeyCount, KeyType, KeyForUseWith,
}

var labels = map[Key]string{
	KeyApplication: "Product Type",
	KeyGauge:       "Gauge",
	KeyLength:      "Length",
	KeySize:        "Size",
	KeyVolume:      "Volume",
	KeyMaterial:    "Material",
	KeyCount:       "Count/Pack",
	KeyType:        "Type",
	KeyForUseWith:  "For Use With",
}

func (k Key) Label() string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}

// Set holds only the attributes that were found; empty values are never stored.
type Set map[Key]string

func (s Set) Get(k Key) string { return s[k] }

func (s Set) put(k Key, v string) {
	if v != "" {
		s[k] = v
	}
}

// Resolve builds the attribute set for an item that may carry both a catalog
// attribute map and free text. Text values sit underneath and every non-empty
// catalog value replaces the text value for that key.
func Resolve(catalog map[string]string, text string) Set {
	out := FromText(text)
	for k, v := range FromCatalog(catalog) {
		out.put(k, v)
	}
	return out
}
