package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/internal/analysis/predictor"
	"github.com/veridoc/veridoc-backend/pkg/logger"
)

// LabelVisual is the report label for the visual pipeline
const LabelVisual = "Visual Analysis (Resave, Quantization & Segmentation)"

// VisualAnalyzer fans out the per-image forensic checks concurrently and
// aggregates them with failure isolation: a check that fails contributes an
// error-tagged entry and nothing else, and never blocks its siblings.
type VisualAnalyzer struct {
	segmentation predictor.Segmentation
	sensorTrust  predictor.SensorTrust
	cfg          Config
	log          *logger.Logger
}

// NewVisualAnalyzer creates a visual analyzer with the given predictors
func NewVisualAnalyzer(segmentation predictor.Segmentation, sensorTrust predictor.SensorTrust, cfg Config, log *logger.Logger) *VisualAnalyzer {
	return &VisualAnalyzer{
		segmentation: segmentation,
		sensorTrust:  sensorTrust,
		cfg:          cfg,
		log:          log.WithComponent("visual_analyzer"),
	}
}

// Analyze runs all five checks against the image at imagePath and returns a
// report with one entry per check. The checks share nothing but the input
// path; each writes its own distinctly named artifact, so they dispatch
// simultaneously and settle independently.
func (a *VisualAnalyzer) Analyze(ctx context.Context, imagePath string, progress Progress) *domain.ForensicReport {
	progress.Notify(StepAnalysisRunning, "Starting visual forensics pipeline...")

	report := domain.NewForensicReport(LabelVisual)

	var (
		wg sync.WaitGroup

		resaveRes *domain.ResaveAnalysis
		resaveErr error
		histRes   *domain.HistogramAnalysis
		histErr   error
		segRes    domain.SegmentationAnalysis
		segErr    error
		noiseRes  *domain.NoiseAnalysis
		noiseErr  error
		sensorRes *domain.SensorTrustAnalysis
		sensorErr error
	)

	wg.Add(5)
	go func() {
		defer wg.Done()
		defer recoverCheck(&resaveErr)
		progress.Notify(StepAnalysisRunning, "Running error level analysis...")
		resaveRes, resaveErr = performResaveAnalysis(imagePath, a.cfg.ResaveQuality)
	}()
	go func() {
		defer wg.Done()
		defer recoverCheck(&histErr)
		progress.Notify(StepAnalysisRunning, "Analyzing intensity histograms...")
		histRes, histErr = analyzeQuantization(imagePath, a.cfg.HistogramGapCount)
	}()
	go func() {
		defer wg.Done()
		defer recoverCheck(&segErr)
		progress.Notify(StepAnalysisRunning, "Engaging tamper segmentation model...")
		segRes, segErr = a.segmentation.Predict(ctx, imagePath, imagePath+".heatmap.png")
	}()
	go func() {
		defer wg.Done()
		defer recoverCheck(&noiseErr)
		progress.Notify(StepAnalysisRunning, "Calculating noise variance map...")
		noiseRes, noiseErr = performNoiseAnalysis(imagePath)
	}()
	go func() {
		defer wg.Done()
		defer recoverCheck(&sensorErr)
		progress.Notify(StepAnalysisRunning, "Running sensor trust analysis...")
		sensorRes, sensorErr = a.runSensorTrust(ctx, imagePath)
	}()
	wg.Wait()

	// Sequential aggregation over the settled results.
	if resaveErr != nil {
		report.Checks[domain.CheckResave] = domain.NewCheckError(domain.CheckResave, resaveErr)
		report.AddFlag(fmt.Sprintf("Resave analysis failed: %v", resaveErr))
	} else {
		report.Checks[domain.CheckResave] = domain.CheckResult{
			Check:  domain.CheckResave,
			Status: domain.CheckSuccess,
			Resave: resaveRes,
		}
		if resaveRes.MeanDifference > a.cfg.ResaveMeanThreshold {
			report.AddFlag("High resave difference (potential manipulation)")
			report.Score += 0.4
		}
	}

	if histErr != nil {
		report.Checks[domain.CheckHistogram] = domain.NewCheckError(domain.CheckHistogram, histErr)
		report.AddFlag(fmt.Sprintf("Quantization analysis failed: %v", histErr))
	} else {
		report.Checks[domain.CheckHistogram] = domain.CheckResult{
			Check:     domain.CheckHistogram,
			Status:    domain.CheckSuccess,
			Histogram: histRes,
		}
		if histRes.Suspicious {
			report.AddFlag("Suspicious histogram (potential double quantization)")
			report.Score += 0.3
		}
	}

	if segErr != nil {
		report.Checks[domain.CheckSegmentation] = domain.NewCheckError(domain.CheckSegmentation, segErr)
		report.AddFlag(fmt.Sprintf("Segmentation model failed: %v", segErr))
	} else {
		seg := segRes
		report.Checks[domain.CheckSegmentation] = domain.CheckResult{
			Check:        domain.CheckSegmentation,
			Status:       domain.CheckSuccess,
			Segmentation: &seg,
		}
		if seg.IsTampered {
			report.AddFlag(fmt.Sprintf("Neural segmentation detected tampering (conf: %.2f)", seg.ConfidenceScore))
			report.Score += 0.6
		}
	}

	if noiseErr != nil {
		report.Checks[domain.CheckNoise] = domain.NewCheckError(domain.CheckNoise, noiseErr)
		report.AddFlag(fmt.Sprintf("Noise map failed: %v", noiseErr))
	} else {
		report.Checks[domain.CheckNoise] = domain.CheckResult{
			Check:  domain.CheckNoise,
			Status: domain.CheckSuccess,
			Noise:  noiseRes,
		}
	}

	if sensorErr != nil {
		report.Checks[domain.CheckSensorTrust] = domain.NewCheckError(domain.CheckSensorTrust, sensorErr)
		report.AddFlag(fmt.Sprintf("Sensor trust model failed: %v", sensorErr))
	} else {
		report.Checks[domain.CheckSensorTrust] = domain.CheckResult{
			Check:       domain.CheckSensorTrust,
			Status:      domain.CheckSuccess,
			SensorTrust: sensorRes,
		}
		if sensorRes.TrustScore < a.cfg.SensorTrustThreshold {
			report.AddFlag(fmt.Sprintf("Sensor trust anomaly detected (score: %.2f)", sensorRes.TrustScore))
			report.Score += 0.8
		}
	}

	report.ClampScore()

	a.log.Debug().
		Str("image", imagePath).
		Float64("score", report.Score).
		Int("flags", len(report.Flags)).
		Msg("visual analysis completed")

	return report
}

// runSensorTrust calls the trust model and renders its heatmap into an
// alpha-masked overlay artifact. The raw arrays are dropped afterwards to
// keep the report payload light.
func (a *VisualAnalyzer) runSensorTrust(ctx context.Context, imagePath string) (*domain.SensorTrustAnalysis, error) {
	pred, err := a.sensorTrust.Predict(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	result := &domain.SensorTrustAnalysis{
		TrustScore: pred.TrustScore,
		Verdict:    pred.Verdict,
	}
	if len(pred.Heatmap) > 0 {
		overlayPath := imagePath + ".overlay.png"
		if err := encodePNG(overlayPath, renderOverlay(pred.Heatmap, pred.Confidence)); err != nil {
			a.log.Warn().Err(err).Str("image", imagePath).Msg("failed to write overlay artifact")
		} else {
			result.OverlayPath = overlayPath
		}
	}
	return result, nil
}

// recoverCheck converts a panicking check into an error so a defect in one
// analyzer never takes down its siblings
func recoverCheck(errOut *error) {
	if r := recover(); r != nil {
		*errOut = fmt.Errorf("check panicked: %v", r)
	}
}
