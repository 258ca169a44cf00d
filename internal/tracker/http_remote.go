package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/justsurfingit/elevate-tracker/internal/auth"
	"github.com/justsurfingit/elevate-tracker/internal/backend"
	"github.com/justsurfingit/elevate-tracker/internal/dtos"
	"github.com/justsurfingit/elevate-tracker/internal/models"
)

const applicationsPath = "/api/job-applications"

// HTTPRemote is the Remote backed by the job applications API.
type HTTPRemote struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPRemote(baseURL string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRemote{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: client}
}

func (r *HTTPRemote) List(ctx context.Context, s *auth.Session) ([]models.JobApplication, error) {
	var resp dtos.ListApplicationsResponse
	path := applicationsPath + "?email=" + url.QueryEscape(s.Email)
	if err := r.do(ctx, s, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Applications, nil
}

func (r *HTTPRemote) Create(ctx context.Context, s *auth.Session, app models.JobApplication) (models.JobApplication, error) {
	var resp dtos.ApplicationResponse
	req := dtos.CreateApplicationRequest{Email: s.Email, Application: &app}
	if err := r.do(ctx, s, http.MethodPost, applicationsPath, req, &resp); err != nil {
		return models.JobApplication{}, err
	}
	return resp.Application, nil
}

func (r *HTTPRemote) Update(ctx context.Context, s *auth.Session, id string, app models.JobApplication) (models.JobApplication, error) {
	var resp dtos.ApplicationResponse
	patch := models.PatchFrom(app)
	req := dtos.UpdateApplicationRequest{Email: s.Email, ApplicationID: id, Updates: &patch}
	if err := r.do(ctx, s, http.MethodPut, applicationsPath, req, &resp); err != nil {
		return models.JobApplication{}, err
	}
	return resp.Application, nil
}

func (r *HTTPRemote) Delete(ctx context.Context, s *auth.Session, id string) error {
	req := dtos.DeleteApplicationRequest{Email: s.Email, ApplicationID: id}
	return r.do(ctx, s, http.MethodDelete, applicationsPath, req, nil)
}

func (r *HTTPRemote) do(ctx context.Context, s *auth.Session, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.IDToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.IDToken)
	}

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &backend.HTTPError{Method: method, URL: req.URL.String(), StatusCode: resp.StatusCode, Body: data}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
