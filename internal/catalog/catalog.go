package catalog

import (
	"sort"
	"strings"
)

// StructureKey derives the structure-definition key from a dataset
// identifier. OECD-style dataset IDs embed the owning DSD before the '@'
// separator; IDs without a separator are their own key.
func StructureKey(datasetID string) string {
	if idx := strings.IndexByte(datasetID, '@'); idx >= 0 {
		return datasetID[:idx]
	}
	return datasetID
}

// Items returns the unique structure definitions referenced by the catalog.
// The first agency seen for a key wins, matching discovery order.
func (c Catalog) Items() map[string]Item {
	items := make(map[string]Item)
	for _, id := range c.sortedIDs() {
		key := StructureKey(id)
		if _, ok := items[key]; ok {
			continue
		}
		agency := c[id].Agency
		if agency == "" {
			agency = "OECD"
		}
		items[key] = Item{Key: key, Agency: agency}
	}
	return items
}

// MergeDimensions replaces the dimension list of every dataset derived from
// the given structure key. Existing lists are overwritten, never appended to;
// datasets for other keys are untouched.
func (c Catalog) MergeDimensions(key string, dims []Dimension) int {
	updated := 0
	for id, meta := range c {
		if StructureKey(id) != key {
			continue
		}
		meta.Dimensions = append([]Dimension(nil), dims...)
		updated++
	}
	return updated
}

// Update folds freshly discovered directory metadata into the catalog.
// Dimension lists already present survive so a resumed run never loses
// fetched structures.
func (c Catalog) Update(discovered Catalog) {
	for id, meta := range discovered {
		existing, ok := c[id]
		if !ok {
			copied := *meta
			c[id] = &copied
			continue
		}
		existing.Name = meta.Name
		existing.Description = meta.Description
		existing.Agency = meta.Agency
		existing.Version = meta.Version
	}
}

// Search returns the datasets whose name or description contains the term,
// case-insensitively.
func (c Catalog) Search(term string) Catalog {
	results := make(Catalog)
	needle := strings.ToLower(term)
	for id, meta := range c {
		if strings.Contains(strings.ToLower(meta.Name), needle) ||
			strings.Contains(strings.ToLower(meta.Description), needle) {
			results[id] = meta
		}
	}
	return results
}

// Validate reports completeness counters for the catalog.
func (c Catalog) Validate() Validation {
	v := Validation{}
	for _, meta := range c {
		v.TotalDatasets++
		if meta.Name == "" {
			v.MissingNames++
		}
		if meta.Description == "" {
			v.MissingDescriptions++
		}
		if meta.Agency == "" {
			v.MissingAgencies++
		}
		if meta.Version == "" {
			v.MissingVersions++
		}
		if len(meta.Dimensions) > 0 {
			v.HasDimensions++
		} else {
			v.MissingDimensions++
		}
	}
	return v
}

func (c Catalog) sortedIDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
