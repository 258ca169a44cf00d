package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/justsurfingit/elevate-tracker/internal/config"
	"github.com/justsurfingit/elevate-tracker/internal/dtos"
	"github.com/justsurfingit/elevate-tracker/internal/models"
)

const maxPostingChars = 20000

var ErrLLMDisabled = errors.New("LLM is not configured")

type LLMService struct {
	Client  llms.Model
	Timeout time.Duration
	Log     logrus.FieldLogger
}

// NewLLMService initializes the Gemini client. Without an API key the service is
// returned disabled and every call fails with ErrLLMDisabled.
func NewLLMService(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*LLMService, error) {
	s := &LLMService{Timeout: cfg.LLM.Timeout, Log: log.WithField("component", "llm")}
	if cfg.LLM.APIKey == "" {
		s.Log.Warn("GEMINI_API_KEY is empty; extraction and inbox analysis are disabled")
		return s, nil
	}

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.LLM.APIKey),
		googleai.WithDefaultModel(cfg.LLM.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	s.Client = llm
	return s, nil
}

func (s *LLMService) Enabled() bool { return s != nil && s.Client != nil }

func (s *LLMService) generate(ctx context.Context, prompt string) (string, error) {
	if !s.Enabled() {
		return "", ErrLLMDisabled
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", err
	}
	return stripCodeFence(resp), nil
}

const jobExtractionPrompt = `
You are an expert Job Data Extraction Agent. Your task is to analyze the provided raw HTML/Text from a job posting and extract the details needed to track an application.

### INSTRUCTIONS:
1. **Analyze** the text to identify the core job details.
2. **Ignore** navigation menus, footers, "similar jobs" lists, and site advertisements.
3. **Format** the output as valid JSON only. Do not wrap the output in markdown code blocks.

### OUTPUT SCHEMA:
{
    "company": "Name of the company (e.g., Google, StartupInc)",
    "position": "Job title (e.g., Senior Backend Engineer)",
    "location": "City/Country of the job or 'Remote'",
    "workType": "one of: remote, hybrid, onsite",
    "salary": "The salary string if explicitly mentioned (e.g., '$100k - $150k')",
    "jobUrl": "The canonical posting URL if present",
    "notes": "Two or three sentences on responsibilities and key requirements"
}

### CONSTRAINT:
If a piece of information is missing, set the value to null. Do not hallucinate or guess.

### POSTING URL:
%s

### RAW CONTENT:
%s
`

// ExtractApplication turns a job posting into an application draft.
func (s *LLMService) ExtractApplication(ctx context.Context, rawHTML, url string) (dtos.ApplicationDraft, error) {
	rawHTML = truncateChars(rawHTML, maxPostingChars)
	resp, err := s.generate(ctx, fmt.Sprintf(jobExtractionPrompt, url, rawHTML))
	if err != nil {
		return dtos.ApplicationDraft{}, err
	}

	var draft dtos.ApplicationDraft
	if err := json.Unmarshal([]byte(resp), &draft); err != nil {
		return dtos.ApplicationDraft{}, fmt.Errorf("parse extraction: %w", err)
	}
	if (draft.JobURL == nil || *draft.JobURL == "") && url != "" {
		draft.JobURL = &url
	}
	return draft, nil
}

// EmailAnalysis is the LLM's reading of a recruiting email.
type EmailAnalysis struct {
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

const (
	AnalysisNoChange = "NO_CHANGE"
	AnalysisUnknown  = "UNKNOWN"
)

// NewStatus maps the analysis onto an application status. ok is false when the
// email does not move the application.
func (a EmailAnalysis) NewStatus() (models.Status, bool) {
	st := models.Status(strings.ToLower(strings.TrimSpace(a.Status)))
	if !models.ValidStatus(st) {
		return "", false
	}
	return st, true
}

const emailStatusPrompt = `
You track job applications. Read this email from or about %s and decide what it means for the application.

Answer with JSON only: {"status": "...", "summary": "..."}

"status" must be one of:
- "phone_screen": a recruiter or phone screen is being scheduled
- "interview_1", "interview_2", "interview_3": an interview round is being scheduled (use the round number if stated, otherwise interview_1)
- "final_round": a final or onsite round is being scheduled
- "offer": an offer is extended
- "rejected": the candidate is turned down
- "NO_CHANGE": an acknowledgement, newsletter, or anything that does not change the stage
- "UNKNOWN": you cannot tell

"summary" is one short sentence.

Subject: %s

Body:
%s
`

func (s *LLMService) AnalyzeEmailStatus(ctx context.Context, company, subject, body string) (EmailAnalysis, error) {
	body = truncateChars(body, maxPostingChars)
	resp, err := s.generate(ctx, fmt.Sprintf(emailStatusPrompt, company, subject, body))
	if err != nil {
		return EmailAnalysis{}, err
	}
	var out EmailAnalysis
	if err := json.Unmarshal([]byte(resp), &out); err != nil {
		return EmailAnalysis{}, fmt.Errorf("parse analysis: %w (raw: %s)", err, resp)
	}
	return out, nil
}

const identifyPrompt = `
A candidate applied to several positions at the same company. Which one is this email about?

Positions:
%s
Subject: %s

Body:
%s

Answer with the number of the position only, or -1 if you cannot tell.
`

// IdentifyApplication picks which of positions the email is about, or -1.
func (s *LLMService) IdentifyApplication(ctx context.Context, positions []string, subject, body string) int {
	var list strings.Builder
	for i, p := range positions {
		fmt.Fprintf(&list, "%d. %s\n", i, p)
	}
	body = truncateChars(body, maxPostingChars)
	resp, err := s.generate(ctx, fmt.Sprintf(identifyPrompt, list.String(), subject, body))
	if err != nil {
		s.Log.WithError(err).Warn("Could not identify application")
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil || n < 0 || n >= len(positions) {
		return -1
	}
	return n
}

// stripCodeFence removes a ```json ... ``` wrapper some models add despite instructions.
// truncateChars keeps at most n characters of s, cutting on a rune boundary.
func truncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
