package sdmx

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/antchfx/xmlquery"

	"github.com/sdmxkit/catalog-builder/internal/catalog"
)

// ParseDimensions extracts the ordered dimension list from a raw
// datastructure response. Dialect A (v2.1) is tried first; on structural
// absence the parser falls back to dialect B (v3.0) before failing with
// ErrMalformedResponse. An explicit position attribute wins over document
// order as the sort key; elements without one keep their document position.
func ParseDimensions(raw []byte) ([]catalog.Dimension, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	doc, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	dims := dialectDimensions(doc, nsV21Structure)
	if dims == nil {
		dims = dialectDimensions(doc, nsV30Structure)
	}
	if dims == nil {
		return nil, fmt.Errorf("%w: no structural element in either dialect", ErrMalformedResponse)
	}

	sort.SliceStable(dims, func(i, j int) bool {
		return dims[i].Position < dims[j].Position
	})
	return dims, nil
}

// dialectDimensions collects dimension descriptors belonging to one schema
// namespace. Regular Dimension elements are preferred; TimeDimension elements
// are consulted only when a structure defines no regular ones, matching the
// remote's usage where the time axis is filtered separately.
func dialectDimensions(doc *xmlquery.Node, structureNS string) []catalog.Dimension {
	nodes := elementsInNamespace(doc, "Dimension", structureNS)
	if len(nodes) == 0 {
		nodes = elementsInNamespace(doc, "TimeDimension", structureNS)
	}
	if len(nodes) == 0 {
		return nil
	}

	dims := make([]catalog.Dimension, 0, len(nodes))
	for docIdx, n := range nodes {
		id := attrValue(n, "id")
		if id == "" {
			continue
		}
		pos := docIdx
		if raw := attrValue(n, "position"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
				pos = parsed
			}
		}
		dim := catalog.Dimension{Position: pos, ID: id}
		if name := localizedChild(n, "Name"); name != "" {
			dim.Name = name
		}
		dims = append(dims, dim)
	}
	if len(dims) == 0 {
		return nil
	}
	return dims
}

func elementsInNamespace(doc *xmlquery.Node, local, ns string) []*xmlquery.Node {
	all := xmlquery.Find(doc, "//"+local)
	matched := make([]*xmlquery.Node, 0, len(all))
	for _, n := range all {
		if n.NamespaceURI == ns {
			matched = append(matched, n)
		}
	}
	return matched
}

func attrValue(n *xmlquery.Node, local string) string {
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
