package rest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	app "tumor-scan/internal/application"
	"tumor-scan/internal/domain/entity"
	"tumor-scan/internal/domain/port"
	"tumor-scan/internal/segmentation"
)

// Disclaimer сопровождает каждую выдачу оценок.
const Disclaimer = "Confidence and accuracy are heuristic scores derived from the model output, not validated clinical metrics."

type Handler struct {
	analysis  *app.AnalysisService
	maxUpload int64
	log       logrus.FieldLogger
}

// RegionResponse область опухоли в координатах маски.
type RegionResponse struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
	Area   int `json:"area"`
}

// AnalysisResponse итог анализа снимка.
type AnalysisResponse struct {
	ScanID       string           `json:"scan_id,omitempty"`
	TumorPresent bool             `json:"tumor_present"`
	Confidence   float64          `json:"confidence"`
	Accuracy     float64          `json:"accuracy"`
	TumorArea    int              `json:"tumor_area"`
	Regions      []RegionResponse `json:"regions"`
	ImageBase64  string           `json:"image_base64"`
	MimeType     string           `json:"mime_type"`
	Disclaimer   string           `json:"disclaimer"`
}

// ScanResponse метаданные сохранённого снимка без самих байтов.
type ScanResponse struct {
	ID         string    `json:"id"`
	Format     string    `json:"format"`
	UploadedAt time.Time `json:"upload_date"`
	SizeBytes  int       `json:"size_bytes"`
	Mode       string    `json:"image_mode"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
}

func NewHandler(analysis *app.AnalysisService, maxUpload int64, log logrus.FieldLogger) *Handler {
	return &Handler{
		analysis:  analysis,
		maxUpload: maxUpload,
		log:       log,
	}
}

// Routes возвращает маршруты API с CORS-заголовками.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /analyze", h.Analyze)
	mux.HandleFunc("GET /scans", h.ListScans)
	mux.HandleFunc("DELETE /scans", h.ClearScans)
	mux.HandleFunc("DELETE /scans/{id}", h.DeleteScan)
	mux.HandleFunc("POST /scans/{id}/analyze", h.AnalyzeStored)
	return enableCORS(mux)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"model_loaded": h.analysis.ModelLoaded(),
		"storage":      h.analysis.StorageStatus(r.Context()),
	})
}

// Analyze принимает multipart-форму с полем image и необязательным owner.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file provided. Use 'image' as the form field name")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	if int64(len(data)) > h.maxUpload {
		h.fail(w, fmt.Errorf("%w: upload exceeds %d bytes", port.ErrScanTooLarge, h.maxUpload))
		return
	}

	h.log.WithFields(logrus.Fields{
		"filename": header.Filename,
		"size":     header.Size,
	}).Info("received scan upload")

	out, err := h.analysis.Analyze(r.Context(), r.FormValue("owner"), data)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisResponse(out))
}

func (h *Handler) AnalyzeStored(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	out, err := h.analysis.AnalyzeStored(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisResponse(out))
}

func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	scans, err := h.analysis.ListScans(r.Context(), owner)
	if err != nil {
		h.fail(w, err)
		return
	}

	resp := make([]ScanResponse, 0, len(scans))
	for _, s := range scans {
		resp = append(resp, ScanResponse{
			ID:         s.ID,
			Format:     s.Format,
			UploadedAt: s.UploadedAt,
			SizeBytes:  s.SizeBytes,
			Mode:       s.Mode,
			Width:      s.Width,
			Height:     s.Height,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) DeleteScan(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	if err := h.analysis.DeleteScan(r.Context(), owner, r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearScans(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	n, err := h.analysis.ClearScans(r.Context(), owner)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// fail переводит ошибку сервиса в HTTP-ответ.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	writeError(w, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, segmentation.ErrMalformedImage):
		return http.StatusBadRequest, "Invalid image. Upload a JPEG, PNG, TIFF, BMP, GIF or WebP scan"
	case errors.Is(err, segmentation.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "Segmentation model is not loaded"
	case errors.Is(err, segmentation.ErrModelFailure):
		return http.StatusBadGateway, "Segmentation model failed"
	case errors.Is(err, segmentation.ErrUnexpectedOutput):
		return http.StatusBadGateway, "Segmentation model returned unexpected output"
	case errors.Is(err, port.ErrScanNotFound):
		return http.StatusNotFound, "Scan not found"
	case errors.Is(err, port.ErrScanTooLarge), errors.As(err, new(*http.MaxBytesError)):
		return http.StatusRequestEntityTooLarge, "Scan is too large"
	case errors.Is(err, app.ErrStorageDisabled):
		return http.StatusNotImplemented, "Scan storage is not configured"
	}
	return http.StatusInternalServerError, "Unexpected error"
}

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'owner' is required")
		return "", false
	}
	return owner, true
}

func newAnalysisResponse(out *app.AnalysisOutput) AnalysisResponse {
	res := out.Result
	regions := make([]RegionResponse, 0, len(res.Regions))
	for _, r := range res.Regions {
		regions = append(regions, regionResponse(r))
	}

	return AnalysisResponse{
		ScanID:       out.ScanID,
		TumorPresent: res.TumorPresent,
		Confidence:   res.Confidence,
		Accuracy:     res.Accuracy,
		TumorArea:    res.TumorArea,
		Regions:      regions,
		ImageBase64:  base64.StdEncoding.EncodeToString(out.ResultPNG),
		MimeType:     "image/png",
		Disclaimer:   Disclaimer,
	}
}

func regionResponse(r entity.Region) RegionResponse {
	return RegionResponse{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height, Area: r.Area}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
