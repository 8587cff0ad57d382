package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"labelpress/internal/transport"
)

type PrinterHandler struct {
	conn *transport.Conn
	cfg  transport.Config
}

func NewPrinterHandler(conn *transport.Conn, cfg transport.Config) *PrinterHandler {
	return &PrinterHandler{conn: conn, cfg: cfg}
}

func (h *PrinterHandler) GetStatus(c *gin.Context) {
	if h.conn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"mode":      h.cfg.Mode,
			"device":    h.cfg.Device,
		})
		return
	}

	status, err := h.conn.PrinterStatus()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"connected":       true,
			"mode":            h.cfg.Mode,
			"device":          h.cfg.Device,
			"transport_state": h.conn.State(),
			"error":           err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"mode":            h.cfg.Mode,
		"device":          h.cfg.Device,
		"transport_state": h.conn.State(),
		"printer_state":   status.PrinterState,
		"printer_error":   status.Error,
		"media_error":     status.MediaError,
	})
}

func (h *PrinterHandler) ListDevices(c *gin.Context) {
	usb, usbErr := transport.DiscoverUSB(2 * time.Second)
	serial, serialErr := transport.DiscoverSerial()

	devices := make([]transport.Device, 0, len(usb)+len(serial))
	devices = append(devices, usb...)
	devices = append(devices, serial...)

	resp := gin.H{"devices": devices}
	if usbErr != nil {
		resp["usb_error"] = usbErr.Error()
	}
	if serialErr != nil {
		resp["serial_error"] = serialErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PrinterHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/printer/status", h.GetStatus)
	r.GET("/printer/devices", h.ListDevices)
}
