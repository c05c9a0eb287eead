package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStructureKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "with agency suffix", in: "DSD_SHA@OECD.ELS.HD", want: "DSD_SHA"},
		{name: "bare id", in: "DSD_NAAG", want: "DSD_NAAG"},
		{name: "empty", in: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, StructureKey(tc.in))
		})
	}
}

func TestItems_DeduplicatesSharedStructures(t *testing.T) {
	t.Parallel()

	c := Catalog{
		"DSD_SHA@OECD.ELS.HD": {Agency: "OECD.ELS.HD"},
		"DSD_SHA@OECD.OTHER":  {Agency: "OECD.OTHER"},
		"DSD_NAAG":            {},
	}

	items := c.Items()
	require.Len(t, items, 2)
	// Lexicographically first dataset id wins the agency.
	require.Equal(t, Item{Key: "DSD_SHA", Agency: "OECD.ELS.HD"}, items["DSD_SHA"])
	require.Equal(t, Item{Key: "DSD_NAAG", Agency: "OECD"}, items["DSD_NAAG"])
}

func TestMergeDimensions_ReplacesNotAppends(t *testing.T) {
	t.Parallel()

	c := Catalog{
		"K@A1": {Agency: "A1"},
		"K@A2": {Agency: "A2"},
		"J@A1": {Agency: "A1"},
	}

	first := []Dimension{{Position: 1, ID: "A"}, {Position: 2, ID: "B"}}
	require.Equal(t, 2, c.MergeDimensions("K", first))

	second := []Dimension{{Position: 1, ID: "C"}}
	require.Equal(t, 2, c.MergeDimensions("K", second))

	require.Equal(t, []Dimension{{Position: 1, ID: "C"}}, c["K@A1"].Dimensions)
	require.Equal(t, []Dimension{{Position: 1, ID: "C"}}, c["K@A2"].Dimensions)
	require.Empty(t, c["J@A1"].Dimensions)
}

func TestMergeDimensions_CopiesInput(t *testing.T) {
	t.Parallel()

	c := Catalog{"K": {}}
	dims := []Dimension{{Position: 1, ID: "A"}}
	c.MergeDimensions("K", dims)
	dims[0].ID = "MUTATED"
	require.Equal(t, "A", c["K"].Dimensions[0].ID)
}

func TestUpdate_PreservesFetchedDimensions(t *testing.T) {
	t.Parallel()

	existing := Catalog{
		"K@A": {Name: "old", Dimensions: []Dimension{{Position: 1, ID: "GEO"}}},
	}
	existing.Update(Catalog{
		"K@A": {Name: "new", Agency: "A", Version: "2.0"},
		"L@A": {Name: "fresh", Agency: "A"},
	})

	require.Equal(t, "new", existing["K@A"].Name)
	require.Equal(t, "2.0", existing["K@A"].Version)
	require.Len(t, existing["K@A"].Dimensions, 1)
	require.Equal(t, "fresh", existing["L@A"].Name)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	c := Catalog{
		"A": {Name: "Health spending", Description: "Annual health accounts"},
		"B": {Name: "GDP", Description: "National accounts"},
	}
	require.Len(t, c.Search("health"), 1)
	require.Len(t, c.Search("accounts"), 2)
	require.Empty(t, c.Search("fisheries"))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	c := Catalog{
		"A": {Name: "n", Description: "d", Agency: "a", Version: "1.0", Dimensions: []Dimension{{Position: 1, ID: "GEO"}}},
		"B": {Name: "", Description: "d", Agency: "a", Version: ""},
	}
	v := c.Validate()
	require.Equal(t, 2, v.TotalDatasets)
	require.Equal(t, 1, v.MissingNames)
	require.Equal(t, 1, v.MissingVersions)
	require.Equal(t, 1, v.HasDimensions)
	require.Equal(t, 1, v.MissingDimensions)
}
