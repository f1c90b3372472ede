package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Danangellotti/app-incendios-cordoba/internal/common"
	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
	"github.com/Danangellotti/app-incendios-cordoba/internal/history"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
	"github.com/Danangellotti/app-incendios-cordoba/internal/risk"
	"github.com/Danangellotti/app-incendios-cordoba/internal/storage"
)

// vectorRequest requires every input explicitly; a missing field is not read as zero.
type vectorRequest struct {
	Humidity    *float64 `json:"humidity"`
	WindSpeed   *float64 `json:"wind_speed"`
	Temperature *float64 `json:"temperature"`
}

func (req vectorRequest) vector() (features.Vector, error) {
	switch {
	case req.Humidity == nil:
		return features.Vector{}, badRequest("missing field humidity")
	case req.WindSpeed == nil:
		return features.Vector{}, badRequest("missing field wind_speed")
	case req.Temperature == nil:
		return features.Vector{}, badRequest("missing field temperature")
	}
	v := features.New(*req.Humidity, *req.WindSpeed, *req.Temperature)
	return v, v.Validate()
}

const maxBodyBytes = 4096

func decodeVector(r *http.Request) (features.Vector, error) {
	var req vectorRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return features.Vector{}, badRequest("invalid JSON body: %v", err)
	}
	return req.vector()
}

// vectorFromQuery starts from base and overrides any axis given in the query.
func vectorFromQuery(r *http.Request, base features.Vector) (features.Vector, error) {
	q := r.URL.Query()
	v := base
	for _, axis := range features.Order {
		raw := q.Get(axis.String())
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return v, badRequest("%s: %q is not a number", axis, raw)
		}
		v = v.With(axis, value)
	}
	return v, v.Validate()
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s: %q is not an integer", key, raw)
	}
	return n, nil
}

type alertView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func alertViews(set risk.AlertSet) []alertView {
	out := make([]alertView, len(set))
	for i, a := range set {
		out[i] = alertView{Code: string(a), Message: a.Message()}
	}
	return out
}

type alertsResponse struct {
	Alerts []alertView `json:"alerts"`
}

func (d *Dashboard) handleAlerts(w http.ResponseWriter, r *http.Request) {
	v, err := decodeVector(r)
	if err != nil {
		writeError(w, err)
		return
	}
	alerts, err := d.evaluator.Alerts(v)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alertsResponse{Alerts: alertViews(alerts)})
}

// displayView carries the Spanish texts the page shows for a prediction.
type displayView struct {
	Label       string      `json:"label"`
	Probability string      `json:"probability"`
	Advice      string      `json:"advice"`
	Alerts      []alertView `json:"alerts"`
}

// radarView holds the three inputs in model order for the radar chart.
type radarView struct {
	Axes   []string  `json:"axes"`
	Values []float64 `json:"values"`
}

type predictResponse struct {
	Result  risk.Result   `json:"result"`
	Entry   history.Entry `json:"entry"`
	Display displayView   `json:"display"`
	Radar   radarView     `json:"radar"`
}

func adviceFor(label ml.Label) string {
	if label == ml.LabelModerateHigh {
		return "Riesgo MODERADO/ALTO de incendio. Extremar precauciones y evitar cualquier quema."
	}
	return "Riesgo BAJO de incendio. Mantener la vigilancia habitual."
}

func radarFor(v features.Vector) radarView {
	rv := radarView{}
	for _, axis := range features.Order {
		rv.Axes = append(rv.Axes, axis.Label())
		rv.Values = append(rv.Values, v.Get(axis))
	}
	return rv
}

// handlePredict evaluates the reading and records it in the session log.
// Nothing is recorded when the evaluation fails.
func (d *Dashboard) handlePredict(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)

	v, err := decodeVector(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := d.evaluator.Evaluate(v)
	if err != nil {
		writeError(w, err)
		return
	}

	entry := s.Log.Record(res)

	writeJSON(w, http.StatusOK, predictResponse{
		Result: res,
		Entry:  entry,
		Display: displayView{
			Label:       res.Label.Display(),
			Probability: res.Probability.Percent(),
			Advice:      adviceFor(res.Label),
			Alerts:      alertViews(res.Alerts),
		},
		Radar: radarFor(v),
	})
}

type summaryResponse struct {
	history.Summary
	MeanProbabilityText string `json:"mean_probability_text"`
}

func summaryView(s history.Summary) summaryResponse {
	return summaryResponse{Summary: s, MeanProbabilityText: s.MeanProbability.Percent()}
}

type historyResponse struct {
	Entries []history.Entry `json:"entries"`
	Summary summaryResponse `json:"summary"`
}

func (d *Dashboard) handleHistory(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	entries := s.Log.Entries()
	writeJSON(w, http.StatusOK, historyResponse{
		Entries: entries,
		Summary: summaryView(history.Summarize(entries)),
	})
}

func (d *Dashboard) handleSummary(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	writeJSON(w, http.StatusOK, summaryView(s.Log.Summary()))
}

func (d *Dashboard) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	n := s.Log.Clear()
	if d.opts.Metrics != nil {
		d.opts.Metrics.HistoryClearsInc()
	}
	log.Info().Str("session_id", s.ID).Int("cleared", n).Msg("Prediction history cleared")
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (d *Dashboard) countExport(err error) {
	if d.opts.Metrics == nil {
		return
	}
	if err != nil {
		d.opts.Metrics.ExportsInc("error")
		return
	}
	d.opts.Metrics.ExportsInc("ok")
}

// handleDownloadExport streams the session log as a CSV attachment.
func (d *Dashboard) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)

	data, err := s.Log.ExportBytes()
	d.countExport(err)
	if err != nil {
		writeError(w, fmt.Errorf("export history: %w", err))
		return
	}

	writeCSV(w, history.ExportFileName(d.opts.Clock.Now()), data)
}

type exportResponse struct {
	Path         string `json:"path"`
	FileName     string `json:"file_name"`
	Rows         int    `json:"rows"`
	ArchiveKey   string `json:"archive_key,omitempty"`
	ArchiveError string `json:"archive_error,omitempty"`
}

// handleWriteExport writes the export file into the export directory and,
// when configured, archives a copy. A failed write leaves the log untouched.
func (d *Dashboard) handleWriteExport(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	now := d.opts.Clock.Now()

	entries := s.Log.Entries()
	data, err := exportBytes(entries)
	if err == nil {
		var path string
		path, err = history.WriteExportFile(d.opts.ExportDir, now, data)
		if err == nil {
			resp := exportResponse{Path: path, FileName: history.ExportFileName(now), Rows: len(entries)}
			d.archive(s.ID, now, resp.FileName, len(entries), data, &resp)
			d.countExport(nil)
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	d.countExport(err)
	log.Error().Err(err).Str("session_id", s.ID).Msg("Failed to write export file")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "no se pudo exportar el historial: " + err.Error()})
}

func exportBytes(entries []history.Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := history.WriteCSV(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Dashboard) archive(sessionID string, ts time.Time, fileName string, rows int, data []byte, resp *exportResponse) {
	if d.opts.Archive == nil {
		return
	}
	key, err := d.opts.Archive.PutExport(storage.ExportRecord{
		SessionID: sessionID,
		CreatedAt: ts,
		FileName:  fileName,
		Rows:      rows,
		CSV:       data,
	})
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to archive export")
		resp.ArchiveError = err.Error()
		return
	}
	resp.ArchiveKey = key
}

func (d *Dashboard) handleListArchive(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	if d.opts.Archive == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "export archive is disabled"})
		return
	}

	records, err := d.opts.Archive.ListExports(s.ID, time.Unix(0, 0), d.opts.Clock.Now())
	if err != nil {
		writeError(w, fmt.Errorf("list exports: %w", err))
		return
	}
	if records == nil {
		records = []storage.ExportRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exports": records})
}

// handleGetArchive returns an archived export of the caller's own session.
func (d *Dashboard) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	s := d.session(w, r)
	if d.opts.Archive == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "export archive is disabled"})
		return
	}

	rec, err := d.opts.Archive.GetExport(mux.Vars(r)["key"])
	if err == nil && rec.SessionID != s.ID {
		err = storage.ErrNotFound
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeCSV(w, rec.FileName, rec.CSV)
}

func writeCSV(w http.ResponseWriter, fileName string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write CSV response")
	}
}

type sweepResponse struct {
	Axis   features.Axis     `json:"axis"`
	Fixed  features.Vector   `json:"fixed"`
	Points []risk.SweepPoint `json:"points"`
	Holes  int               `json:"holes"`
}

func (d *Dashboard) handleSweep(w http.ResponseWriter, r *http.Request) {
	axis, err := features.ParseAxis(mux.Vars(r)["axis"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	fixed, err := vectorFromQuery(r, features.Default())
	if err != nil {
		writeError(w, err)
		return
	}
	steps, err := intQuery(r, "steps", d.opts.SweepSteps)
	if err != nil {
		writeError(w, err)
		return
	}

	points, err := d.evaluator.SweepAxis(axis, fixed, steps)
	if err != nil {
		writeError(w, err)
		return
	}

	holes := 0
	for _, p := range points {
		if !p.Probability.IsAvailable() {
			holes++
		}
	}
	writeJSON(w, http.StatusOK, sweepResponse{Axis: axis, Fixed: fixed, Points: points, Holes: holes})
}

type heatmapResponse struct {
	*risk.SweepGrid
	Holes int `json:"holes"`
}

func (d *Dashboard) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	axisA, axisB := features.Temperature, features.Humidity
	var err error
	if raw := q.Get("x"); raw != "" {
		if axisA, err = features.ParseAxis(raw); err != nil {
			writeError(w, badRequest("x: %v", err))
			return
		}
	}
	if raw := q.Get("y"); raw != "" {
		if axisB, err = features.ParseAxis(raw); err != nil {
			writeError(w, badRequest("y: %v", err))
			return
		}
	}
	fixed, err := vectorFromQuery(r, features.Default())
	if err != nil {
		writeError(w, err)
		return
	}
	steps, err := intQuery(r, "steps", d.opts.HeatmapSteps)
	if err != nil {
		writeError(w, err)
		return
	}

	grid, err := d.evaluator.Heatmap(axisA, axisB, fixed, steps)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, heatmapResponse{SweepGrid: grid, Holes: grid.Holes()})
}

type modelResponse struct {
	Path                string            `json:"path"`
	Loaded              bool              `json:"loaded"`
	Error               string            `json:"error,omitempty"`
	SupportsProbability bool              `json:"supports_probability"`
	LoadedAt            *time.Time        `json:"loaded_at,omitempty"`
	Metadata            *ml.ModelMetadata `json:"metadata,omitempty"`
	Explanation         string            `json:"explanation"`
}

func (d *Dashboard) modelInfo() modelResponse {
	clf, err := d.opts.Model.Load()
	resp := modelResponse{
		Path:        d.opts.Model.Path(),
		Loaded:      err == nil,
		Metadata:    d.opts.Model.Metadata(),
		Explanation: explanation(d.opts.Model.Metadata()),
	}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.SupportsProbability = ml.SupportsProbability(clf)
	if at := d.opts.Model.LoadedAt(); !at.IsZero() {
		resp.LoadedAt = &at
	}
	return resp
}

func (d *Dashboard) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.modelInfo())
}

func explanation(md *ml.ModelMetadata) string {
	switch {
	case md == nil:
		return "Clasificador de riesgo de incendio entrenado con humedad, viento y temperatura."
	case md.Description != "":
		return md.Description
	case md.Algorithm != "" && md.Calibration != "":
		return fmt.Sprintf("%s con calibración %s", md.Algorithm, md.Calibration)
	case md.Algorithm != "":
		return md.Algorithm
	}
	return "Clasificador de riesgo de incendio entrenado con humedad, viento y temperatura."
}

func (d *Dashboard) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := d.opts.Model.Load()
	status := "ok"
	if err != nil {
		status = "degraded"
	}
	body := map[string]interface{}{
		"status":       status,
		"model_loaded": err == nil,
		"sessions":     d.opts.Sessions.Len(),
	}
	if d.opts.Archive != nil {
		n, err := d.opts.Archive.Count()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to count archived exports")
			body["status"] = "degraded"
		} else {
			body["archived_exports"] = n
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// handleEndSession discards the caller's session and its history. The next
// request starts a fresh one.
func (d *Dashboard) handleEndSession(w http.ResponseWriter, r *http.Request) {
	ended := false
	if c, err := r.Cookie(common.SessionCookieName); err == nil {
		if s, ok := d.opts.Sessions.Get(c.Value); ok {
			d.opts.Sessions.End(s.ID)
			ended = true
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ended": ended})
}
