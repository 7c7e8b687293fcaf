package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/veridoc/veridoc-backend/internal/analysis/document"
	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/pkg/logger"
)

// rasterExtensions route straight to the visual pipeline
var rasterExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"tiff": true,
	"bmp":  true,
	"webp": true,
}

// Router classifies a document into one of the forensic pipelines. For PDF
// candidates it inspects the actual content for signature fields instead of
// trusting the filename; renaming a file never changes its route.
type Router struct {
	accessor document.Accessor
	log      *logger.Logger
}

// NewRouter creates a pipeline router backed by the given accessor
func NewRouter(accessor document.Accessor, log *logger.Logger) *Router {
	return &Router{
		accessor: accessor,
		log:      log.WithComponent("router"),
	}
}

// DeterminePipeline selects the pipeline for the file at filePath. The
// original filename supplies only the initial extension guess; the decision
// for PDFs comes from content inspection. Deterministic and side-effect
// free for a given file.
func (r *Router) DeterminePipeline(ctx context.Context, filePath, filename string) domain.PipelineType {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	if ext == "pdf" {
		doc, err := r.accessor.Open(ctx, filePath)
		if err != nil {
			// A malformed PDF is evidence the structural pipeline reports,
			// not a routing failure.
			r.log.Debug().Err(err).Str("file", filename).Msg("pdf inspection failed, routing to structural")
			return domain.PipelineStructural
		}
		if len(doc.SignatureFields) > 0 {
			return domain.PipelineCryptographic
		}
		return domain.PipelineStructural
	}

	if rasterExtensions[ext] {
		return domain.PipelineVisual
	}

	return domain.PipelineStructural
}
