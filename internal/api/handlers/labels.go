package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"labelpress/internal/export"
	"labelpress/internal/label"
	"labelpress/internal/payload"
	"labelpress/internal/symbol"
)

type DecodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type DecodeResponse struct {
	Location  string    `json:"location"`
	Product   string    `json:"product"`
	Packer    string    `json:"packer"`
	Timestamp time.Time `json:"timestamp"`
}

type RenderRequest struct {
	Location  string `json:"location" binding:"required"`
	Product   string `json:"product" binding:"required"`
	Packer    string `json:"packer" binding:"required"`
	Timestamp string `json:"timestamp"`
	Symbology string `json:"symbology"`
	Copies    int    `json:"copies"`
}

// LabelHandler renders labels without touching the queue or the printer.
// Used for previews and for pulling raw command streams.
type LabelHandler struct {
	spec label.Spec
}

func NewLabelHandler(spec label.Spec) *LabelHandler {
	return &LabelHandler{spec: spec}
}

func (h *LabelHandler) DecodePayload(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := payload.Decode(req.Code)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, DecodeResponse{
		Location:  p.Location,
		Product:   p.Product,
		Packer:    p.Packer,
		Timestamp: p.At,
	})
}

func (h *LabelHandler) render(c *gin.Context) (label.Spec, *symbol.Symbol, label.TextFields, int, bool) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return label.Spec{}, nil, label.TextFields{}, 0, false
	}

	at := time.Now()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC 3339"})
			return label.Spec{}, nil, label.TextFields{}, 0, false
		}
		at = parsed
	}

	spec := h.spec
	if req.Symbology != "" {
		kind, err := symbol.ParseSymbology(req.Symbology)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return label.Spec{}, nil, label.TextFields{}, 0, false
		}
		spec.Symbology = kind
	}

	code, err := payload.Encode(req.Location, req.Product, req.Packer, at)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return label.Spec{}, nil, label.TextFields{}, 0, false
	}

	sym, err := symbol.Render(code, spec.Symbology, spec.WidthMM, spec.HeightMM)
	if err != nil {
		if errors.Is(err, symbol.ErrSymbolExceedsLabelArea) || errors.Is(err, symbol.ErrPayloadTooLong) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return label.Spec{}, nil, label.TextFields{}, 0, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return label.Spec{}, nil, label.TextFields{}, 0, false
	}

	copies := req.Copies
	if copies <= 0 {
		copies = 1
	}
	text := label.TextFields{Product: req.Product, Location: req.Location, Packer: req.Packer}
	return spec, sym, text, copies, true
}

// CompileLabel returns the raw command stream as text/plain.
func (h *LabelHandler) CompileLabel(c *gin.Context) {
	spec, sym, text, copies, ok := h.render(c)
	if !ok {
		return
	}

	stream, err := label.Compile(spec, sym, text, copies)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", stream.Bytes())
}

// PreviewLabel rasterizes the label and returns a PNG.
func (h *LabelHandler) PreviewLabel(c *gin.Context) {
	spec, sym, text, _, ok := h.render(c)
	if !ok {
		return
	}

	img, err := export.Image(spec, sym, text)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := export.EncodePNG(&buf, img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode image"})
		return
	}

	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *LabelHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payload/decode", h.DecodePayload)
	r.POST("/labels/compile", h.CompileLabel)
	r.POST("/labels/preview", h.PreviewLabel)
}
