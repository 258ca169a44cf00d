package models

import (
	"encoding/json"
	"testing"
	"time"
)

func validApp() JobApplication {
	return JobApplication{
		ID:       "1",
		Company:  "Acme",
		Position: "Engineer",
		Location: "Berlin",
		WorkType: WorkRemote,
		Status:   StatusApplied,
		Priority: PriorityMedium,
	}
}

func TestJobApplicationValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *JobApplication)
		wantErr string
	}{
		{name: "valid", mutate: func(a *JobApplication) {}},
		{name: "missing company", mutate: func(a *JobApplication) { a.Company = "" }, wantErr: "Company, position, and location are required"},
		{name: "blank location", mutate: func(a *JobApplication) { a.Location = "   " }, wantErr: "Company, position, and location are required"},
		{name: "bad work type", mutate: func(a *JobApplication) { a.WorkType = "moon" }, wantErr: `invalid workType: "moon"`},
		{name: "bad status", mutate: func(a *JobApplication) { a.Status = "hired" }, wantErr: `invalid status: "hired"`},
		{name: "bad priority", mutate: func(a *JobApplication) { a.Priority = "urgent" }, wantErr: `invalid priority: "urgent"`},
		{name: "empty enums allowed", mutate: func(a *JobApplication) { a.WorkType, a.Status, a.Priority = "", "", "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validApp()
			tt.mutate(&a)
			err := a.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("got %v, want %q", err, tt.wantErr)
			}
			if !IsValidationError(err) {
				t.Errorf("error should be a ValidationError")
			}
		})
	}
}

func TestPatchApplyOverwritesOnlySetFields(t *testing.T) {
	app := validApp()
	app.Notes = "keep me"
	status := StatusInterview1
	salary := "100k"

	got := ApplicationPatch{Status: &status, Salary: &salary}.Apply(app)

	if got.Status != StatusInterview1 || got.Salary != "100k" {
		t.Errorf("patch fields not applied: %+v", got)
	}
	if got.Notes != "keep me" || got.Company != "Acme" {
		t.Errorf("untouched fields changed: %+v", got)
	}
	if app.Status != StatusApplied {
		t.Errorf("Apply must not modify its argument")
	}
}

func TestPatchFromRoundTrip(t *testing.T) {
	app := validApp()
	app.Notes = "n"
	got := PatchFrom(app).Apply(JobApplication{ID: "other"})
	if got.ID != "other" {
		t.Errorf("PatchFrom must not carry the id")
	}
	got.ID = app.ID
	if got != app {
		t.Errorf("got %+v, want %+v", got, app)
	}
}

func TestPatchValidate(t *testing.T) {
	str := func(s string) *string { return &s }
	status := func(s Status) *Status { return &s }
	work := func(w WorkType) *WorkType { return &w }
	prio := func(p Priority) *Priority { return &p }

	tests := []struct {
		name    string
		patch   ApplicationPatch
		wantErr bool
	}{
		{name: "empty company", patch: ApplicationPatch{Company: str("")}, wantErr: true},
		{name: "unknown status", patch: ApplicationPatch{Status: status("nope")}, wantErr: true},
		{name: "empty status", patch: ApplicationPatch{Status: status("")}, wantErr: true},
		{name: "empty work type", patch: ApplicationPatch{WorkType: work("")}, wantErr: true},
		{name: "empty priority", patch: ApplicationPatch{Priority: prio("")}, wantErr: true},
		{name: "unknown priority", patch: ApplicationPatch{Priority: prio("urgent")}, wantErr: true},
		{name: "valid enums", patch: ApplicationPatch{Status: status(StatusOffer), WorkType: work(WorkHybrid), Priority: prio(PriorityHigh)}},
		{name: "nothing set", patch: ApplicationPatch{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range Statuses {
		want := s == StatusOffer || s == StatusRejected
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v", s, !want)
		}
	}
}

func TestTimestampSortsChronologically(t *testing.T) {
	early := Timestamp(time.Date(2024, 1, 2, 3, 4, 5, 6e6, time.FixedZone("x", 3600)))
	late := Timestamp(time.Date(2024, 1, 2, 3, 4, 5, 7e6, time.FixedZone("x", 3600)))
	if early != "2024-01-02T02:04:05.006Z" {
		t.Errorf("early = %s", early)
	}
	if !(early < late) {
		t.Errorf("%s should sort before %s", early, late)
	}
}

func TestTextOrDecodesBothShapes(t *testing.T) {
	raw := `{"name":"Go","resources":["Tour of Go",{"title":"Effective Go","type":"doc","url":"https://go.dev/doc/effective_go","free":true}],"projects":["CLI"]}`
	var topic Topic
	if err := json.Unmarshal([]byte(raw), &topic); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(topic.Resources) != 2 {
		t.Fatalf("resources = %d", len(topic.Resources))
	}
	if !topic.Resources[0].Legacy() || topic.Resources[0].Text != "Tour of Go" {
		t.Errorf("first resource should be legacy text: %+v", topic.Resources[0])
	}
	if topic.Resources[1].Legacy() || topic.Resources[1].Value.Title != "Effective Go" {
		t.Errorf("second resource should be structured: %+v", topic.Resources[1])
	}

	out, err := json.Marshal(topic.Resources[0])
	if err != nil || string(out) != `"Tour of Go"` {
		t.Errorf("marshal legacy = %s, %v", out, err)
	}
}

func TestUserJobDataFind(t *testing.T) {
	d := UserJobData{Applications: []JobApplication{{ID: "a"}, {ID: "b"}}}
	if d.Find("b") != 1 || d.Find("z") != -1 {
		t.Errorf("Find returned wrong index")
	}
}
