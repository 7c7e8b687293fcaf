package pipeline

import (
	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	apperrors "github.com/veridoc/veridoc-backend/pkg/errors"
)

// performNoiseAnalysis isolates the high-frequency noise texture by
// differencing the image against a median-filtered copy of itself, then
// persists a contrast-stretched false-color map. Spliced regions usually
// carry a different noise signature than the surrounding capture, which the
// map makes visible. Informational only; it never moves the score.
func performNoiseAnalysis(imagePath string) (*domain.NoiseAnalysis, error) {
	img, err := decodeImage(imagePath)
	if err != nil {
		return nil, apperrors.IO(err, "read image")
	}

	gray := toGray(img)
	denoised := medianFilter3x3(gray)
	noiseMap := normalizeGray(absDiffGray(gray, denoised))

	artifactPath := imagePath + ".noise.png"
	if err := encodePNG(artifactPath, renderJet(noiseMap)); err != nil {
		return nil, apperrors.IO(err, "write noise artifact")
	}

	return &domain.NoiseAnalysis{
		ArtifactPath: artifactPath,
	}, nil
}
