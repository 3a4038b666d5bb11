package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kwv/stateboard/statemap"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(p *statemap.Pipeline) http.Handler {
	h := &handlers{p: p, log: zap.L().With(zap.String("component", "http"))}

	r := chi.NewRouter()
	r.Get("/", h.dashboard)
	r.Get("/health", h.health)
	r.Get("/api/initiatives", h.listInitiatives)
	r.Get("/api/initiatives/{code}", h.initiative)
	r.Get("/map/{file}", h.mapImage)
	r.Get("/moto", h.motoPage)
	r.Get("/moto.geojson", h.motoGeoJSON)
	r.Get("/moto.svg", h.motoSVG)
	r.Post("/reload", h.reload)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type handlers struct {
	p   *statemap.Pipeline
	log *zap.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	cache := h.p.Cache()
	status := struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
		Loaded    bool      `json:"loaded"`
		LoadedAt  time.Time `json:"loadedAt,omitempty"`
	}{
		Status:    "ok",
		Timestamp: time.Now(),
		Loaded:    cache.IsLoaded(),
		LoadedAt:  cache.LoadedAt(),
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *handlers) listInitiatives(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.p.Initiatives().List())
}

// initiativeResponse is the JSON view of one pipeline run.
type initiativeResponse struct {
	Initiative statemap.Initiative       `json:"initiative"`
	Rows       []statemap.JoinedRow      `json:"rows"`
	Labels     []statemap.Label          `json:"labels"`
	Ineligible int                       `json:"ineligible"`
	Rejected   int                       `json:"rejected"`
	Warning    *statemap.CoverageWarning `json:"warning,omitempty"`
}

func (h *handlers) initiative(w http.ResponseWriter, r *http.Request) {
	res, err := h.p.Run(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, initiativeResponse{
		Initiative: res.Initiative,
		Rows:       res.Dataset.Rows,
		Labels:     res.Placement.Labels,
		Ineligible: res.Placement.Ineligible,
		Rejected:   res.Placement.Rejected,
		Warning:    res.Warning,
	})
}

// mapImage serves /map/{code}.svg and /map/{code}.png.
func (h *handlers) mapImage(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	ext := path.Ext(file)
	code := strings.TrimSuffix(file, ext)

	var contentType string
	switch ext {
	case ".svg":
		contentType = "image/svg+xml"
	case ".png":
		contentType = "image/png"
	default:
		http.Error(w, "unsupported map format", http.StatusNotFound)
		return
	}

	res, err := h.p.Run(r.Context(), code)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	var buf bytes.Buffer
	if ext == ".png" {
		err = h.p.RenderPNG(&buf, res)
	} else {
		err = h.p.RenderSVG(&buf, res)
	}
	if err != nil {
		h.log.Error("render failed", zap.String("initiative", code), zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	h.writeBytes(w, contentType, buf.Bytes())
}

type dashboardData struct {
	Title       string
	Headline    string
	Initiatives []statemap.Initiative
	Selected    statemap.Initiative
	Warning     *statemap.CoverageWarning
	Error       string
	Map         template.HTML
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	table := h.p.Initiatives()
	list := table.List()
	data := dashboardData{
		Title:       statemap.DashboardTitle,
		Headline:    statemap.DashboardHeadline,
		Initiatives: list,
	}

	code := r.URL.Query().Get("initiative")
	if code == "" && len(list) > 0 {
		code = list[0].Code
	}
	selected, ok := table.ByCode(code)
	if !ok {
		selected, ok = table.ByName(code)
	}
	if !ok {
		http.Error(w, "unknown initiative "+code, http.StatusNotFound)
		return
	}
	data.Selected = selected

	// The map is inlined from this run so one page view is one pipeline run.
	status := http.StatusOK
	res, err := h.p.Run(r.Context(), selected.Code)
	if err != nil {
		status = pipelineStatus(err)
		data.Error = err.Error()
	} else {
		data.Warning = res.Warning
		var svg bytes.Buffer
		if err := h.p.RenderSVG(&svg, res); err != nil {
			h.log.Error("render failed", zap.String("initiative", selected.Code), zap.Error(err))
			status = http.StatusInternalServerError
			data.Error = "render failed"
		} else {
			data.Map = inlineSVG(svg.Bytes())
		}
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		h.log.Error("render dashboard page", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// inlineSVG strips anything ahead of the <svg> element so the document can be
// embedded in HTML.
func inlineSVG(doc []byte) template.HTML {
	if i := bytes.Index(doc, []byte("<svg")); i > 0 {
		doc = doc[i:]
	}
	return template.HTML(doc)
}

type motoRow struct {
	statemap.MotoStatus
	Swatch string
}

type motoData struct {
	Title        string
	Intro        string
	LegalNote    string
	StatementURL string
	CenterLat    float64
	CenterLon    float64
	Statuses     []motoRow
}

func (h *handlers) motoPage(w http.ResponseWriter, r *http.Request) {
	statuses, err := motoStatuses(r.Context(), h.p)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	data := motoData{
		Title:        statemap.MotoTitle,
		Intro:        statemap.MotoIntro,
		LegalNote:    statemap.MotoLegalNote,
		StatementURL: statemap.AMAMStatementURL,
		CenterLat:    statemap.MotoCenter.Lat(),
		CenterLon:    statemap.MotoCenter.Lon(),
	}
	for _, s := range statuses {
		data.Statuses = append(data.Statuses, motoRow{MotoStatus: s, Swatch: statemap.HexColor(statemap.MotoColor(s.ColorLabel))})
	}

	var buf bytes.Buffer
	if err := motoTemplate.Execute(&buf, data); err != nil {
		h.log.Error("render moto page", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	h.writeBytes(w, "text/html; charset=utf-8", buf.Bytes())
}

func (h *handlers) motoGeoJSON(w http.ResponseWriter, r *http.Request) {
	statuses, err := motoStatuses(r.Context(), h.p)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	data, err := statemap.MotoFeatureCollection(statuses).MarshalJSON()
	if err != nil {
		h.log.Error("encode moto geojson", zap.Error(err))
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	h.writeBytes(w, "application/geo+json", data)
}

func (h *handlers) motoSVG(w http.ResponseWriter, r *http.Request) {
	statuses, err := motoStatuses(r.Context(), h.p)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.p.Renderer().RenderToSVG(&buf, statemap.MotoScene(statuses)); err != nil {
		h.log.Error("render moto svg", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	h.writeBytes(w, "image/svg+xml", buf.Bytes())
}

func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	if err := h.p.Reload(r.Context()); err != nil {
		h.log.Error("reload failed", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	h.log.Info("sources reloaded")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "reloaded",
		"loadedAt": h.p.Cache().LoadedAt(),
	})
}

// pipelineStatus maps a pipeline error to an HTTP status: unknown initiative
// 404, failed validation 422, anything else (unreadable sources) 503.
func pipelineStatus(err error) int {
	var mce *statemap.MissingColumnsError
	var rce *statemap.RowCountError
	switch {
	case errors.Is(err, statemap.ErrUnknownInitiative):
		return http.StatusNotFound
	case errors.As(err, &mce), errors.As(err, &rce):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

func (h *handlers) writePipelineError(w http.ResponseWriter, err error) {
	status := pipelineStatus(err)
	body := map[string]interface{}{"error": err.Error()}

	var mce *statemap.MissingColumnsError
	var rce *statemap.RowCountError
	switch {
	case errors.As(err, &mce):
		body["missing"] = mce.Missing
		body["available"] = mce.Available
	case errors.As(err, &rce):
		body["expected"] = rce.Expected
		body["actual"] = rce.Actual
	}
	if status == http.StatusServiceUnavailable {
		h.log.Error("pipeline unavailable", zap.Error(err))
	}
	h.writeJSON(w, status, body)
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("encode response", zap.Error(err))
	}
}

func (h *handlers) writeBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(data); err != nil {
		h.log.Debug("write response", zap.Error(err))
	}
}
