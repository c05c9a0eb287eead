// Package catalog defines the dataset catalog model shared across subsystems.
package catalog

import "time"

// Dimension is one positional facet of a dataset's addressing scheme.
// Position defines the left-to-right filter order and is unique within a
// structure definition.
type Dimension struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
}

// Dataset is the metadata record kept per dataset identifier. A record with
// no dimensions is a valid terminal state: either the structure has not been
// fetched yet or the remote definition carries none.
type Dataset struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Agency      string      `json:"agency"`
	Version     string      `json:"version"`
	Dimensions  []Dimension `json:"dimensions,omitempty"`
}

// Item identifies one structure definition to fetch. Many datasets may share
// a single structure definition; its dimension set is fetched exactly once.
type Item struct {
	Key    string `json:"key"`
	Agency string `json:"agency"`
}

// Catalog maps dataset identifiers to their metadata records. It is the
// single piece of durable output state.
type Catalog map[string]*Dataset

// Validation summarizes catalog completeness at the end of a run.
type Validation struct {
	TotalDatasets       int `json:"total_datasets"`
	MissingNames        int `json:"missing_names"`
	MissingDescriptions int `json:"missing_descriptions"`
	MissingAgencies     int `json:"missing_agencies"`
	MissingVersions     int `json:"missing_versions"`
	HasDimensions       int `json:"has_dimensions"`
	MissingDimensions   int `json:"missing_dimensions"`
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
