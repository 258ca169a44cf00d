package services

import (
	"net/mail"
	"strings"

	"github.com/justsurfingit/elevate-tracker/internal/models"
)

type MatcherService struct{}

func NewMatcherService() *MatcherService {
	return &MatcherService{}
}

// Approach-
// Cheap string rules pick the company first.
// Only then does the email go to the LLM to read the stage change.

// MatchApplications returns the applications whose company the email is about.
// All returned applications share one company; the first rule to hit wins.
func (s *MatcherService) MatchApplications(apps []models.JobApplication, subject, rawSender string) []models.JobApplication {
	// "Stripe Recruiting <jobs@stripe.com>" -> name="stripe recruiting", addr="jobs@stripe.com"
	senderName, senderAddr := "", ""
	if parsed, err := mail.ParseAddress(rawSender); err == nil {
		senderName = strings.ToLower(parsed.Name)
		senderAddr = strings.ToLower(parsed.Address)
	} else {
		senderAddr = strings.ToLower(rawSender)
	}
	domain := ""
	if _, d, ok := strings.Cut(senderAddr, "@"); ok {
		domain = d
	}
	subjectLower := strings.ToLower(subject)

	company := ""
	for _, app := range apps {
		name := strings.ToLower(strings.TrimSpace(app.Company))
		// Names like "X" or "Go" match everything.
		if len(name) < 3 {
			continue
		}

		if strings.Contains(subjectLower, name) ||
			(senderName != "" && strings.Contains(senderName, name)) ||
			(domain != "" && strings.Contains(domain, strings.ReplaceAll(name, " ", ""))) {
			company = name
			break
		}
	}
	if company == "" {
		return nil
	}

	var out []models.JobApplication
	for _, app := range apps {
		if strings.EqualFold(strings.TrimSpace(app.Company), company) {
			out = append(out, app)
		}
	}
	return out
}
