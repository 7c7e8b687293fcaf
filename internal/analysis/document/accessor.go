package document

import (
	"context"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
)

// EmbeddedImage is one raster image extracted from a document page
type EmbeddedImage struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Data   []byte `json:"data"`
}

// Page is one ordered page of a structured document
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text,omitempty"`
}

// Document is the parsed structural view returned by the accessor. The
// orchestrator owns it for the duration of one request.
type Document struct {
	Pages           []Page            `json:"pages"`
	Metadata        map[string]string `json:"metadata"`
	RootKeys        []string          `json:"root_keys"`
	Images          []EmbeddedImage   `json:"images"`
	SignatureFields []string          `json:"signature_fields"`
}

// HasRootKey reports whether the document catalog contains the given entry
func (d *Document) HasRootKey(key string) bool {
	for _, k := range d.RootKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Text concatenates the text content of all pages in order
func (d *Document) Text() string {
	var out string
	for _, p := range d.Pages {
		if p.Text != "" {
			out += p.Text + "\n"
		}
	}
	return out
}

// Accessor parses structured documents. Implementations must not retain the
// file after Open returns.
type Accessor interface {
	// Open parses the file at path. A malformed document returns an error;
	// callers decide whether that is fatal (structural analysis treats it as
	// evidence, not failure).
	Open(ctx context.Context, path string) (*Document, error)
}

// TrustContext configures signature validation: which roots to trust and
// whether revocation data may be fetched online.
type TrustContext struct {
	AllowFetching bool `json:"allow_fetching"`
}

// SignatureValidator validates one embedded signature field at a time so a
// failure on one signature never blocks the others.
type SignatureValidator interface {
	Validate(ctx context.Context, path, field string, tc TrustContext) (domain.SignatureStatus, error)
}
