package tracker

import (
	"sort"
	"strings"

	"github.com/justsurfingit/elevate-tracker/internal/models"
)

const (
	StatusAll = "all"
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Query selects and orders applications for display.
type Query struct {
	Search string
	Status string
	SortBy string
	Order  string
}

// DefaultQuery shows every application, newest first.
func DefaultQuery() Query {
	return Query{Status: StatusAll, SortBy: "applicationDate", Order: OrderDesc}
}

// FilterAndSort returns the applications matching q in the requested order.
// It never modifies apps. Ties keep their relative order.
func FilterAndSort(apps []models.JobApplication, q Query) []models.JobApplication {
	term := strings.ToLower(q.Search)
	out := make([]models.JobApplication, 0, len(apps))
	for _, app := range apps {
		if !matchesSearch(app, term) {
			continue
		}
		if q.Status != "" && q.Status != StatusAll && string(app.Status) != q.Status {
			continue
		}
		out = append(out, app)
	}

	desc := q.Order == OrderDesc
	sort.SliceStable(out, func(i, j int) bool {
		a, b := SortValue(out[i], q.SortBy), SortValue(out[j], q.SortBy)
		if desc {
			return a > b
		}
		return a < b
	})
	return out
}

func matchesSearch(app models.JobApplication, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(app.Company), term) ||
		strings.Contains(strings.ToLower(app.Position), term) ||
		strings.Contains(strings.ToLower(app.Location), term)
}

// SortValue returns the field of app named by its JSON key. Unknown keys and
// absent values compare as the empty string.
func SortValue(app models.JobApplication, key string) string {
	switch key {
	case "id":
		return app.ID
	case "company":
		return app.Company
	case "position":
		return app.Position
	case "location":
		return app.Location
	case "workType":
		return string(app.WorkType)
	case "salary":
		return app.Salary
	case "status":
		return string(app.Status)
	case "applicationDate":
		return app.ApplicationDate
	case "lastUpdateDate":
		return app.LastUpdateDate
	case "notes":
		return app.Notes
	case "jobUrl":
		return app.JobURL
	case "contactPerson":
		return app.ContactPerson
	case "contactEmail":
		return app.ContactEmail
	case "nextStepDate":
		return app.NextStepDate
	case "priority":
		return string(app.Priority)
	}
	return ""
}
