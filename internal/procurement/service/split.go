package service

import "github.com/bitfantasy/nimo-mro/internal/procurement/entity"

// SupplierGroup is the set of requisition lines destined for one supplier.
type SupplierGroup struct {
	SupplierName string
	Lines        []entity.PRLine
}

// TotalQuantity sums the requested quantity of the group.
func (g SupplierGroup) TotalQuantity() int {
	total := 0
	for _, l := range g.Lines {
		total += l.QuantityRequested
	}
	return total
}

// GroupBySupplier groups lines by the exact supplier name of their part. Groups
// appear in the order their supplier is first seen and keep the input order of
// their lines. Lines must have Part resolved.
func GroupBySupplier(lines []entity.PRLine) []SupplierGroup {
	index := make(map[string]int)
	var groups []SupplierGroup
	for _, l := range lines {
		name := supplierOf(l)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, SupplierGroup{SupplierName: name})
		}
		groups[i].Lines = append(groups[i].Lines, l)
	}
	return groups
}

func supplierOf(l entity.PRLine) string {
	if l.Part == nil {
		return ""
	}
	return l.Part.SupplierName
}
