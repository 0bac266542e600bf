package serialize

import (
	"fmt"

	"github.com/kraklabs/webconv/pkg/document"
)

// errString renders a recover()'d value as a string without panicking
// itself, regardless of what was recovered.
func errString(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", r)
}

// rawContentOf best-effort renders doc for the raw_content escape hatch
// (spec §4.7), tolerating a nil or partially-built Document.
func rawContentOf(doc *document.Document) string {
	if doc == nil {
		return ""
	}
	return fmt.Sprintf("%+v", doc)
}
