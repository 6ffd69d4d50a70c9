package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/app"
	"github.com/ayusman/controlmaps/internal/artifact"
	"github.com/ayusman/controlmaps/internal/logging"
	"github.com/ayusman/controlmaps/internal/maps"
)

// MaxUploadBytes bounds the multipart body of POST /api/maps.
const MaxUploadBytes = 32 << 20

// Generator runs the pipeline on a decoded image.
type Generator interface {
	GenerateImage(img *gocv.Mat, req app.Request) (maps.ResultSet, error)
}

// MapsHandler generates maps for uploaded images. Each upload gets its own
// output directory, named after the run, under the output root.
type MapsHandler struct {
	generator  Generator
	outputRoot string
	observer   maps.Observer
	logger     *zap.Logger
}

// NewMapsHandler creates a MapsHandler. observer may be nil.
func NewMapsHandler(g Generator, outputRoot string, observer maps.Observer, logger *zap.Logger) *MapsHandler {
	return &MapsHandler{
		generator:  g,
		outputRoot: outputRoot,
		observer:   observer,
		logger:     logging.OrNop(logger),
	}
}

// ServeHTTP handles POST /api/maps with a multipart form carrying an
// "image" file and optional "maps" and "maxDimension" fields.
func (h *MapsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing image file")
		return
	}
	defer file.Close()

	maxDim := 0
	if v := r.FormValue("maxDimension"); v != "" {
		maxDim, err = strconv.Atoi(v)
		if err != nil || maxDim <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid maxDimension")
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read image")
		return
	}

	img, err := artifact.Decode(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Could not load image: %s", header.Filename))
		return
	}
	defer img.Close()

	// An absent field means the defaults; a present but blank one means none.
	var kinds []maps.Kind
	if values, ok := r.MultipartForm.Value["maps"]; ok && len(values) > 0 {
		kinds = maps.ParseKinds(values[0])
	}

	runID := uuid.NewString()
	result, err := h.generator.GenerateImage(&img, app.Request{
		RunID:        runID,
		InputPath:    header.Filename,
		OutputDir:    filepath.Join(h.outputRoot, runID),
		Kinds:        kinds,
		MaxDimension: maxDim,
		Observer:     h.observer,
	})
	if err != nil {
		h.logger.Error("map generation failed", zap.String("run", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate maps")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
