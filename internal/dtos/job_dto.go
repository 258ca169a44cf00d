package dtos

import "github.com/justsurfingit/elevate-tracker/internal/models"

type JobExtractionRequest struct {
	RawHTML string `json:"raw_html" binding:"required"`
	URL     string `json:"url"`
}

// ApplicationDraft is what the LLM pulls out of a job posting. Fields it could not
// find are null.
type ApplicationDraft struct {
	Company  *string `json:"company"`
	Position *string `json:"position"`
	Location *string `json:"location"`
	WorkType *string `json:"workType"`
	Salary   *string `json:"salary"`
	JobURL   *string `json:"jobUrl"`
	Notes    *string `json:"notes"`
}

// Application converts the draft into an application ready for creation.
// Unknown work types are dropped rather than rejected.
func (d ApplicationDraft) Application() models.JobApplication {
	app := models.JobApplication{
		Status:   models.StatusApplied,
		Priority: models.PriorityMedium,
	}
	app.Company = deref(d.Company)
	app.Position = deref(d.Position)
	app.Location = deref(d.Location)
	app.Salary = deref(d.Salary)
	app.JobURL = deref(d.JobURL)
	app.Notes = deref(d.Notes)
	if wt := models.WorkType(deref(d.WorkType)); models.ValidWorkType(wt) {
		app.WorkType = wt
	}
	return app
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type CreateApplicationRequest struct {
	Email       string                 `json:"email"`
	Application *models.JobApplication `json:"application"`
}

type UpdateApplicationRequest struct {
	Email         string                   `json:"email"`
	ApplicationID string                   `json:"applicationId"`
	Updates       *models.ApplicationPatch `json:"updates"`
}

type DeleteApplicationRequest struct {
	Email         string `json:"email"`
	ApplicationID string `json:"applicationId"`
}

type ListApplicationsResponse struct {
	Applications []models.JobApplication `json:"applications"`
	Count        int                     `json:"count"`
}

type ApplicationResponse struct {
	Success     bool                  `json:"success"`
	Application models.JobApplication `json:"application"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
