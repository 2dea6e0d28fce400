package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/Brownie44l1/plate-api/internal/frame"
	"github.com/Brownie44l1/plate-api/internal/log"
	"github.com/Brownie44l1/plate-api/internal/model"
	"github.com/Brownie44l1/plate-api/internal/plate"
	"github.com/Brownie44l1/plate-api/internal/registry"
)

// MethodProcessFrame is the only call name the service answers.
const MethodProcessFrame = "processFrame"

const codeNotImplemented = "NOT_IMPLEMENTED"

// maxBodyBytes caps every request body, JSON or multipart.
const maxBodyBytes = 10 << 20

// Inferer is the part of the adapter the handlers use.
type Inferer interface {
	Infer(buf []byte, width, height int) (string, error)
	Channels() int
	State() model.State
	Err() error
}

type Handler struct {
	adapter   Inferer
	registry  registry.Backend
	imageSize uint
}

// NewHandler wires the adapter and an optional plate registry (nil disables
// the /plates endpoints). imageSize > 0 resizes uploads to a square.
func NewHandler(adapter Inferer, reg registry.Backend, imageSize int) *Handler {
	if imageSize < 0 {
		imageSize = 0
	}
	return &Handler{
		adapter:   adapter,
		registry:  reg,
		imageSize: uint(imageSize),
	}
}

// FrameArgs are the processFrame arguments. Pointers distinguish a missing
// field from a zero value.
type FrameArgs struct {
	Bytes  []byte `json:"bytes"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
}

type Call struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments"`
}

type FrameResult struct {
	Result     string `json:"result"`
	Plate      string `json:"plate,omitempty"`
	Registered *bool  `json:"registered,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}

// decodeBody reads a size-limited JSON body. It writes the error response
// itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, msg string) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, model.CodeInvalidArguments,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	writeError(w, http.StatusBadRequest, model.CodeInvalidArguments, msg)
	return false
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.adapter.State()
	if state == model.StateReady {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "state": state.String()})
		return
	}

	body := map[string]string{"status": "unavailable", "state": state.String()}
	if err := h.adapter.Err(); err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusServiceUnavailable, body)
}

// ProcessFrame handles POST /processFrame.
func (h *Handler) ProcessFrame(w http.ResponseWriter, r *http.Request) {
	var args FrameArgs
	if !decodeBody(w, r, &args, "Invalid arguments provided") {
		return
	}
	h.processFrame(w, r, args)
}

// Call handles POST /call, dispatching on the method name.
func (h *Handler) Call(w http.ResponseWriter, r *http.Request) {
	var call Call
	if !decodeBody(w, r, &call, "Invalid call payload") {
		return
	}

	switch call.Method {
	case MethodProcessFrame:
		var args FrameArgs
		if len(call.Arguments) == 0 || json.Unmarshal(call.Arguments, &args) != nil {
			writeError(w, http.StatusBadRequest, model.CodeInvalidArguments, "Invalid arguments provided")
			return
		}
		h.processFrame(w, r, args)
	default:
		writeError(w, http.StatusNotImplemented, codeNotImplemented,
			fmt.Sprintf("method %q not implemented", call.Method))
	}
}

func (h *Handler) processFrame(w http.ResponseWriter, r *http.Request, args FrameArgs) {
	if args.Bytes == nil || args.Width == nil || args.Height == nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidArguments, "Invalid arguments provided")
		return
	}
	h.infer(w, r, args.Bytes, *args.Width, *args.Height)
}

func (h *Handler) infer(w http.ResponseWriter, r *http.Request, buf []byte, width, height int) {
	logger := requestLogger(r)

	result, err := h.adapter.Infer(buf, width, height)
	if err != nil {
		code := model.Code(err)
		logger.Warn("inference failed", "code", code, "err", err)
		if code == model.CodeInvalidArguments {
			writeError(w, http.StatusBadRequest, code, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, code, "Error during inference: "+err.Error())
		return
	}

	resp := FrameResult{Result: result}
	if p, ok := plate.FromResult(result); ok {
		resp.Plate = p
		if h.registry != nil {
			registered, err := h.isRegistered(r, p)
			if err != nil {
				logger.Warn("registry lookup failed", "plate", p, "err", err)
			} else {
				resp.Registered = &registered
			}
		}
	}

	logger.Debug("frame processed", "width", width, "height", height, "result", result)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) isRegistered(r *http.Request, p string) (bool, error) {
	_, err := h.registry.Lookup(r.Context(), p)
	if errors.Is(err, registry.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// PredictFromImage handles POST /predict/image with a multipart "image" field.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidArguments, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidArguments,
			"No image file provided. Use 'image' as the form field name")
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidArguments, "Invalid image format. Supported: JPEG, PNG")
		return
	}
	logger.Debug("image received", "file", header.Filename, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	img = frame.Resize(img, h.imageSize, h.imageSize)

	f, err := frame.FromImage(img, h.adapter.Channels())
	if err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidArguments, err.Error())
		return
	}

	h.infer(w, r, f.Data, f.Width, f.Height)
}

// Vehicle handles GET /plates/{plate}.
func (h *Handler) Vehicle(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "REGISTRY_UNAVAILABLE", "plate registry not configured")
		return
	}

	p, err := plate.Parse(r.PathValue("plate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidArguments, err.Error())
		return
	}

	v, err := h.registry.Lookup(r.Context(), p)
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("plate %s not registered", p))
		return
	}
	if err != nil {
		requestLogger(r).Error("registry lookup failed", "plate", p, "err", err)
		writeError(w, http.StatusInternalServerError, "REGISTRY_ERROR", "registry lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// RegisterVehicle handles PUT /plates/{plate}.
func (h *Handler) RegisterVehicle(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "REGISTRY_UNAVAILABLE", "plate registry not configured")
		return
	}

	p, err := plate.Parse(r.PathValue("plate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidArguments, err.Error())
		return
	}

	var v registry.Vehicle
	if !decodeBody(w, r, &v, "Invalid JSON") {
		return
	}
	v.Plate = p

	if err := h.registry.Upsert(r.Context(), v); err != nil {
		requestLogger(r).Error("registry upsert failed", "plate", p, "err", err)
		writeError(w, http.StatusInternalServerError, "REGISTRY_ERROR", "registry update failed")
		return
	}
	writeJSON(w, http.StatusOK, v)
}
