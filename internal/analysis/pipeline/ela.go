package pipeline

import (
	"os"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	apperrors "github.com/veridoc/veridoc-backend/pkg/errors"
)

// amplification factor for the displayed difference image
const elaScaleFactor = 15.0

// performResaveAnalysis re-encodes the image at a reduced JPEG quality and
// measures the per-pixel difference against the original. Edited regions
// recompress differently from untouched ones, so a high mean difference
// points at localized manipulation. The amplified difference image is
// persisted for the review UI.
func performResaveAnalysis(imagePath string, quality int) (*domain.ResaveAnalysis, error) {
	original, err := decodeImage(imagePath)
	if err != nil {
		return nil, apperrors.IO(err, "read image")
	}

	resavedPath := imagePath + ".resaved.jpg"
	if err := encodeJPEG(resavedPath, original, quality); err != nil {
		return nil, apperrors.IO(err, "write resaved image")
	}
	defer os.Remove(resavedPath)

	resaved, err := decodeImage(resavedPath)
	if err != nil {
		return nil, apperrors.IO(err, "read resaved image")
	}

	diff := absDiffGray(toGray(original), toGray(resaved))
	maxDiff, meanDiff, stdDev := grayStats(diff)

	artifactPath := imagePath + ".ela.png"
	if err := encodePNG(artifactPath, amplifyGray(diff, elaScaleFactor)); err != nil {
		return nil, apperrors.IO(err, "write difference artifact")
	}

	return &domain.ResaveAnalysis{
		MaxDifference:  maxDiff,
		MeanDifference: meanDiff,
		StdDeviation:   stdDev,
		ArtifactPath:   artifactPath,
	}, nil
}
