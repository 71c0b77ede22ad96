package catalog

import (
	"supplymatch/internal"
	"supplymatch/internal/util"
)

// Index groups internal products by normalized manufacturer item code.
// Several products may share a code, one per package type.
type Index struct {
	ProductsByID map[int64]internal.Product
	ByCode       map[string][]internal.Product
}

func BuildIndex(products []internal.Product) *Index {
	idx := &Index{
		ProductsByID: map[int64]internal.Product{},
		ByCode:       map[string][]internal.Product{},
	}
	for _, p := range products {
		idx.ProductsByID[p.ID] = p
		norm := util.NormalizeCode(p.ManufacturerItemCode)
		if norm == "" {
			continue
		}
		idx.ByCode[norm] = append(idx.ByCode[norm], p)
	}
	return idx
}

// Lookup returns the products carrying code, in the order they were indexed.
func (idx *Index) Lookup(code string) []internal.Product {
	norm := util.NormalizeCode(code)
	if norm == "" {
		return nil
	}
	return idx.ByCode[norm]
}
