package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	apperrors "github.com/veridoc/veridoc-backend/pkg/errors"
	"github.com/veridoc/veridoc-backend/pkg/httputil"
	"github.com/veridoc/veridoc-backend/pkg/logger"
)

const maxReasoningTokens = 2048

const systemPromptTemplate = `You are VeriDoc-AI, an expert forensic document auditor.
Current Date: %s

CONTEXT:
%s

OBJECTIVE:
Provide a "Unified Forensic Narrative" that explains the document's authenticity.
You must correlate the local forensic analysis data with your own visual observations.

OUTPUT FORMAT (JSON):
{
  "authenticity_score": (0-100) - Your confidence in the document's legitimacy.
  "flagged_issues": [list of strings] - Focus on SEMANTIC inconsistencies (dates, logic) or VISUAL anomalies you see. Do not merely repeat the technical flags unless you add new context.
  "summary": (string) - High-level executive summary (max 2 sentences).
  "reasoning": (string) - A detailed paragraph that explicitly references the technical metrics and connects them to your visual findings.
  "bounding_boxes": [ { "box_2d": [ymin, xmin, ymax, xmax], "label": "description" } ]
}

BOUNDING BOXES:
If you find specific visual anomalies, provide bounding boxes.
Format: [ymin, xmin, ymax, xmax] normalized to 0-1000.`

const contextTemplate = `FULL LOCAL FORENSIC ANALYSIS DATA:
%s

INSTRUCTIONS FOR USING THIS DATA:
1. This data comes from specialized code-based forensic tools (resave analysis, tamper segmentation, metadata analysis, digital signature verification).
2. Trust these metrics. If the segmentation model says tampered, it is highly likely.
3. CRITICAL: check the signatures section. If a signature is invalid, untrusted, or revoked, you MUST flag this as a severe authenticity issue.
4. Your job is to SYNTHESIZE these technical findings with your own visual and semantic analysis.`

// OpenAIReasoner asks a chat model for the unified forensic narrative. The
// document itself travels by URL so the prompt stays small; the local report
// is embedded as JSON.
type OpenAIReasoner struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

// NewOpenAIReasoner creates a reasoner using the given API key and model
func NewOpenAIReasoner(apiKey, model string, log *logger.Logger) *OpenAIReasoner {
	return NewOpenAIReasonerWithClient(openai.NewClient(apiKey), model, log)
}

// NewOpenAIReasonerWithClient creates a reasoner around a preconfigured
// client, used to point at compatible endpoints
func NewOpenAIReasonerWithClient(client *openai.Client, model string, log *logger.Logger) *OpenAIReasoner {
	return &OpenAIReasoner{
		client: client,
		model:  model,
		log:    log.WithComponent("reasoner"),
	}
}

// Reason implements Reasoner
func (r *OpenAIReasoner) Reason(ctx context.Context, documentURL, mimeType string, report *domain.ForensicReport) (*domain.Reasoning, error) {
	localContext := "No prior local analysis available."
	if report != nil {
		reportJSON, err := json.MarshalIndent(sanitizeReport(report), "", "  ")
		if err != nil {
			return nil, apperrors.Model(err, "serialize local report")
		}
		localContext = fmt.Sprintf(contextTemplate, string(reportJSON))
	}

	systemPrompt := fmt.Sprintf(systemPromptTemplate, time.Now().Format("2006-01-02"), localContext)
	userPrompt := fmt.Sprintf(
		"Analyze the document at %s (%s) using the provided forensic context.",
		documentURL, mimeType,
	)

	req := openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0,
		MaxTokens:   maxReasoningTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, apperrors.Model(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.Model(fmt.Errorf("empty choices"), "chat completion returned no content")
	}

	var reasoning domain.Reasoning
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &reasoning); err != nil {
		return nil, apperrors.Model(err, "decode reasoning response")
	}
	// The model output is untrusted input; reject judgments that break the
	// declared schema instead of fusing them downstream.
	if err := httputil.Validate(&reasoning); err != nil {
		return nil, apperrors.Model(err, "reasoning response failed validation")
	}
	reasoning.Model = r.model

	r.log.Info().
		Float64("authenticity_score", reasoning.AuthenticityScore).
		Int("flagged_issues", len(reasoning.FlaggedIssues)).
		Dur("duration", time.Since(start)).
		Msg("reasoning completed")

	return &reasoning, nil
}

// sanitizedReport is the trimmed view of a forensic report embedded in the
// prompt. Artifact paths are local filesystem details the model cannot open,
// so they are dropped along with the retained sub-reports' copies.
type sanitizedReport struct {
	LocalRiskScore  float64                                 `json:"local_risk_score"`
	TechnicalFlags  []string                                `json:"technical_flags"`
	DetailedMetrics map[domain.CheckName]domain.CheckResult `json:"detailed_metrics"`
	EmbeddedImages  []sanitizedEmbedded                     `json:"analyzed_images,omitempty"`
	DocumentText    string                                  `json:"document_text_excerpt,omitempty"`
	Warnings        []string                                `json:"warnings,omitempty"`
}

type sanitizedEmbedded struct {
	Filename string   `json:"filename"`
	Score    float64  `json:"score"`
	Flags    []string `json:"flags"`
}

func sanitizeReport(report *domain.ForensicReport) sanitizedReport {
	metrics := make(map[domain.CheckName]domain.CheckResult, len(report.Checks))
	for name, check := range report.Checks {
		metrics[name] = stripArtifacts(check)
	}

	out := sanitizedReport{
		LocalRiskScore:  report.Score,
		TechnicalFlags:  report.Flags,
		DetailedMetrics: metrics,
		DocumentText:    report.ExtractedText,
		Warnings:        report.Warnings,
	}
	for _, img := range report.EmbeddedImages {
		if img.Report == nil {
			continue
		}
		out.EmbeddedImages = append(out.EmbeddedImages, sanitizedEmbedded{
			Filename: img.Filename,
			Score:    img.Report.Score,
			Flags:    img.Report.Flags,
		})
	}
	return out
}

func stripArtifacts(check domain.CheckResult) domain.CheckResult {
	if check.Resave != nil {
		resave := *check.Resave
		resave.ArtifactPath = ""
		check.Resave = &resave
	}
	if check.Segmentation != nil {
		seg := *check.Segmentation
		seg.HeatmapPath = ""
		check.Segmentation = &seg
	}
	if check.Noise != nil {
		noise := *check.Noise
		noise.ArtifactPath = ""
		check.Noise = &noise
	}
	if check.SensorTrust != nil {
		st := *check.SensorTrust
		st.OverlayPath = ""
		check.SensorTrust = &st
	}
	return check
}
