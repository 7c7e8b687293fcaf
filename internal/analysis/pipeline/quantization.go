package pipeline

import (
	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	apperrors "github.com/veridoc/veridoc-backend/pkg/errors"
)

const quantizationCropSize = 512

// analyzeQuantization counts zero-count bins in the interior of a pixel
// intensity histogram over a center crop. A comb pattern of gaps is a cheap
// proxy for double JPEG compression; true DCT coefficient analysis would be
// stronger but needs the raw coefficient stream.
func analyzeQuantization(imagePath string, gapThreshold int) (*domain.HistogramAnalysis, error) {
	img, err := decodeImage(imagePath)
	if err != nil {
		return nil, apperrors.IO(err, "read image")
	}

	crop := centerCrop(toGray(img), quantizationCropSize)
	hist := histogram256(crop)

	// Bins 0 and 255 clip naturally, only interior gaps are meaningful.
	gaps := 0
	for i := 1; i < 255; i++ {
		if hist[i] == 0 {
			gaps++
		}
	}

	return &domain.HistogramAnalysis{
		GapCount:   gaps,
		Suspicious: gaps > gapThreshold,
	}, nil
}
