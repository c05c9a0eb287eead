package sdmx

import (
	"bytes"
	"fmt"

	"github.com/antchfx/xmlquery"

	"github.com/sdmxkit/catalog-builder/internal/catalog"
)

// Placeholder values carried over from the published catalog format for
// dataflows missing localized text.
const (
	noName        = "No name"
	noDescription = "No description available"
)

// ParseDataflows extracts dataset metadata from the directory listing.
// The listing is always a v2.1 message; there is no dialect fallback here.
func ParseDataflows(raw []byte) (catalog.Catalog, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse dataflow listing: %w", err)
	}

	flows := elementsInNamespace(doc, "Dataflow", nsV21Structure)
	if len(flows) == 0 {
		return nil, fmt.Errorf("parse dataflow listing: no Dataflow elements found")
	}

	cat := make(catalog.Catalog, len(flows))
	for _, flow := range flows {
		id := attrValue(flow, "id")
		if id == "" {
			continue
		}
		meta := &catalog.Dataset{
			Name:        noName,
			Description: noDescription,
			Agency:      attrValue(flow, "agencyID"),
			Version:     attrValue(flow, "version"),
		}
		if name := localizedChild(flow, "Name"); name != "" {
			meta.Name = name
		}
		if desc := localizedChild(flow, "Description"); desc != "" {
			meta.Description = desc
		}
		cat[id] = meta
	}
	return cat, nil
}

// localizedChild returns the named common-namespace child, preferring
// xml:lang="en" and falling back to the first occurrence.
func localizedChild(n *xmlquery.Node, local string) string {
	var fallback string
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type != xmlquery.ElementNode || ch.Data != local {
			continue
		}
		if ch.NamespaceURI != nsV21Common && ch.NamespaceURI != nsV30Common {
			continue
		}
		text := ch.InnerText()
		if attrValue(ch, "lang") == "en" {
			return text
		}
		if fallback == "" {
			fallback = text
		}
	}
	return fallback
}
