// Package sdmx parses SDMX-ML structural messages. Two dialects of the
// format are supported: the v2.1 schema and the v3.0 schema. The two are
// mutually exclusive in practice; callers stay dialect-agnostic.
package sdmx

import "errors"

// SDMX-ML XML namespaces for the two supported dialects.
const (
	nsV21Structure = "http://www.sdmx.org/resources/sdmxml/schemas/v2_1/structure"
	nsV21Common    = "http://www.sdmx.org/resources/sdmxml/schemas/v2_1/common"
	nsV30Structure = "http://www.sdmx.org/resources/sdmxml/schemas/v3_0/structure"
	nsV30Common    = "http://www.sdmx.org/resources/sdmxml/schemas/v3_0/common"
)

// ErrMalformedResponse reports content matching neither supported dialect or
// carrying no structural element at all.
var ErrMalformedResponse = errors.New("malformed structure response")
