// Package client talks to a running dashboard over its JSON API.
package client

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Danangellotti/app-incendios-cordoba/internal/common"
	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
	"github.com/Danangellotti/app-incendios-cordoba/internal/risk"
)

type Client struct {
	base string
	rest *resty.Client
}

// New returns a client for the dashboard at base. The underlying cookie jar
// keeps the session across calls.
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second) // default fallback
	}
	r.SetBaseURL(strings.TrimRight(base, "/"))
	return &Client{base: base, rest: r}
}

// SetSession reuses an existing dashboard session, e.g. one copied from a browser.
func (c *Client) SetSession(id string) {
	if id == "" {
		return
	}
	c.rest.SetCookie(&http.Cookie{Name: common.SessionCookieName, Value: id, Path: "/"})
}

// APIError is a non-2xx answer from the dashboard.
type APIError struct {
	Status  int      `json:"-"`
	Message string   `json:"error"`
	Field   string   `json:"field,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dashboard: HTTP %d", e.Status)
	}
	return fmt.Sprintf("dashboard: HTTP %d: %s", e.Status, e.Message)
}

type Prediction struct {
	Result  risk.Result `json:"result"`
	Display struct {
		Label       string `json:"label"`
		Probability string `json:"probability"`
		Advice      string `json:"advice"`
	} `json:"display"`
}

type ModelInfo struct {
	Path                string            `json:"path"`
	Loaded              bool              `json:"loaded"`
	Error               string            `json:"error"`
	SupportsProbability bool              `json:"supports_probability"`
	LoadedAt            *time.Time        `json:"loaded_at"`
	Metadata            *ml.ModelMetadata `json:"metadata"`
	Explanation         string            `json:"explanation"`
}

type vectorBody struct {
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Temperature float64 `json:"temperature"`
}

func bodyFor(v features.Vector) vectorBody {
	return vectorBody{Humidity: v.Humidity, WindSpeed: v.WindSpeed, Temperature: v.Temperature}
}

func queryFor(v features.Vector, steps int) map[string]string {
	q := map[string]string{}
	for _, axis := range features.Order {
		q[axis.String()] = strconv.FormatFloat(v.Get(axis), 'f', -1, 64)
	}
	if steps > 0 {
		q["steps"] = strconv.Itoa(steps)
	}
	return q
}

func check(resp *resty.Response, apiErr *APIError) error {
	if !resp.IsError() {
		return nil
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}

// Predict evaluates v and records it in the session history.
func (c *Client) Predict(v features.Vector) (*Prediction, error) {
	out := &Prediction{}
	apiErr := &APIError{}
	resp, err := c.rest.R().
		SetBody(bodyFor(v)).
		SetResult(out).
		SetError(apiErr).
		Post("/api/predict")
	if err != nil {
		return nil, err
	}
	if err := check(resp, apiErr); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Alerts(v features.Vector) (risk.AlertSet, error) {
	out := &struct {
		Alerts []struct {
			Code string `json:"code"`
		} `json:"alerts"`
	}{}
	apiErr := &APIError{}
	resp, err := c.rest.R().
		SetBody(bodyFor(v)).
		SetResult(out).
		SetError(apiErr).
		Post("/api/alerts")
	if err != nil {
		return nil, err
	}
	if err := check(resp, apiErr); err != nil {
		return nil, err
	}
	set := risk.AlertSet{}
	for _, a := range out.Alerts {
		set = append(set, risk.Alert(a.Code))
	}
	return set, nil
}

func (c *Client) Sweep(axis features.Axis, fixed features.Vector, steps int) ([]risk.SweepPoint, error) {
	out := &struct {
		Points []risk.SweepPoint `json:"points"`
	}{}
	apiErr := &APIError{}
	resp, err := c.rest.R().
		SetQueryParams(queryFor(fixed, steps)).
		SetResult(out).
		SetError(apiErr).
		Get("/api/sweep/" + axis.String())
	if err != nil {
		return nil, err
	}
	if err := check(resp, apiErr); err != nil {
		return nil, err
	}
	return out.Points, nil
}

func (c *Client) Heatmap(axisA, axisB features.Axis, fixed features.Vector, steps int) (*risk.SweepGrid, error) {
	out := &risk.SweepGrid{}
	apiErr := &APIError{}
	q := queryFor(fixed, steps)
	q["x"] = axisA.String()
	q["y"] = axisB.String()
	resp, err := c.rest.R().
		SetQueryParams(q).
		SetResult(out).
		SetError(apiErr).
		Get("/api/sweep/heatmap")
	if err != nil {
		return nil, err
	}
	if err := check(resp, apiErr); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Model() (*ModelInfo, error) {
	out := &ModelInfo{}
	apiErr := &APIError{}
	resp, err := c.rest.R().
		SetResult(out).
		SetError(apiErr).
		Get("/api/model")
	if err != nil {
		return nil, err
	}
	if err := check(resp, apiErr); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportCSV downloads the session history as CSV.
func (c *Client) ExportCSV() ([]byte, error) {
	apiErr := &APIError{}
	resp, err := c.rest.R().
		SetError(apiErr).
		Get("/api/history/export")
	if err != nil {
		return nil, err
	}
	if err := check(resp, apiErr); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}
