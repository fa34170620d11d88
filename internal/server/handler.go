package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"github.com/ivlev/mockupwarp/internal/config"
	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/middleware"
	"github.com/ivlev/mockupwarp/internal/panel"
	"github.com/ivlev/mockupwarp/internal/response"
	"github.com/ivlev/mockupwarp/internal/session"
	"github.com/ivlev/mockupwarp/internal/source"
	"github.com/ivlev/mockupwarp/internal/template"
	"github.com/ivlev/mockupwarp/internal/wizard"
)

const requestTimeout = 10 * time.Second

var (
	ErrImageRequired  = response.NewError(http.StatusBadRequest, "image file is required")
	ErrUnknownPreset  = response.NewError(http.StatusBadRequest, "unknown detection preset")
	ErrTemplateImage  = response.NewError(http.StatusInternalServerError, "template image is not available")
	ErrInvalidQRSize  = response.NewError(http.StatusBadRequest, "qr size must be between 64 and 1024")
	ErrWebSocketOnly  = response.NewError(http.StatusUpgradeRequired, "websocket upgrade required")
	ErrBadPointFormat = response.NewError(http.StatusBadRequest, "invalid corner or axis")
)

type MockupHandler struct {
	log        *logrus.Logger
	validator  *validator.Validate
	middleware middleware.Middleware
	catalog    *template.Catalog
	store      *Store
	detector   panel.Detector
	cfg        config.ServerConfig
}

func NewMockupHandler(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	catalog *template.Catalog,
	store *Store,
	detector panel.Detector,
	cfg config.ServerConfig,
) *MockupHandler {
	return &MockupHandler{
		log:        log,
		validator:  validator,
		middleware: middleware,
		catalog:    catalog,
		store:      store,
		detector:   detector,
		cfg:        cfg,
	}
}

func (h *MockupHandler) Start(srv fiber.Router) {
	srv.Get("/templates", h.ListTemplates)
	srv.Post("/detect", h.Detect)

	srv.Post("/sessions", h.CreateSession)
	srv.Get("/sessions/:id", h.GetSession)
	srv.Delete("/sessions/:id", h.DeleteSession)
	srv.Post("/sessions/:id/upload", h.UploadImage)
	srv.Post("/sessions/:id/crop", h.CropImage)
	srv.Post("/sessions/:id/back", h.Back)
	srv.Patch("/sessions/:id/points", h.UpdatePoint)
	srv.Put("/sessions/:id/points", h.SetPoints)
	srv.Get("/sessions/:id/render.png", h.RenderPNG)
	srv.Get("/sessions/:id/qr.png", h.ShareQR)
	srv.Get("/sessions/:id/ws", h.upgradeSession, websocket.New(h.handleSessionWebSocket))
}

func (h *MockupHandler) ListTemplates(ctx *fiber.Ctx) error {
	errHandler := NewErrorHandler(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, TemplatesResponse{
		Data: h.catalog.List(),
	})
}

func (h *MockupHandler) CreateSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := NewErrorHandler(h.log)

	var req CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, response.NewError(fiber.StatusBadRequest, err.Error()), ctx.Path(), "parse_request_body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	tpl, err := h.catalog.Get(req.Template)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_template")
	}
	img, err := h.catalog.LoadImage(tpl)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"template":   tpl.Name,
		}).WithError(err).Error("Template image cannot be loaded")
		return errHandler.Handle(ctx, requestID, ErrTemplateImage, ctx.Path(), "load_template_image")
	}

	wz := wizard.New(h.detector, session.New(session.WithLogger(h.log)))
	wz.Log = h.log
	if err := wz.Apply(ctx.UserContext(), wizard.SelectTemplate{Template: tpl, Image: img}); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "select_template")
	}
	id := h.store.Create(wz)

	h.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": id,
		"template":   tpl.Name,
	}).Info("Session created")

	return errHandler.HandleSuccess(ctx, fiber.StatusCreated, SessionResponse{ID: id, State: wz.State()})
}

func (h *MockupHandler) GetSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := NewErrorHandler(h.log)

	wz, err := h.store.Get(ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, SessionResponse{ID: ctx.Params("id"), State: wz.State()})
}

func (h *MockupHandler) DeleteSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := NewErrorHandler(h.log)

	if !h.store.Delete(ctx.Params("id")) {
		return errHandler.Handle(ctx, requestID, ErrSessionNotFound, ctx.Path(), "delete_session")
	}
	return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}

// readImage decodes the multipart "image" field.
func (h *MockupHandler) readImage(ctx *fiber.Ctx) ([]byte, error) {
	file, err := ctx.FormFile("image")
	if err != nil {
		return nil, ErrImageRequired
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *MockupHandler) UploadImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(ctx.UserContext(), requestTimeout)
	defer cancel()

	errHandler := NewErrorHandler(h.log)

	wz, err := h.store.Get(ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	data, err := h.readImage(ctx)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_image")
	}
	img, err := source.DecodeBytes(data)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "decode_image")
	}

	if err := wz.Apply(c, wizard.Upload{Image: img}); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "upload_image")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		st := wz.State()
		h.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": ctx.Params("id"),
			"size":       img.Bounds().Size().String(),
			"detected":   st.Detected,
		}).Info("Image uploaded")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, SessionResponse{ID: ctx.Params("id"), State: st})
	}
}

func (h *MockupHandler) CropImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := NewErrorHandler(h.log)

	wz, err := h.store.Get(ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	var req CropRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, response.NewError(fiber.StatusBadRequest, err.Error()), ctx.Path(), "parse_request_body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := wz.Apply(ctx.UserContext(), wizard.Crop{Rect: req.Rect()}); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "crop_image")
	}
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, SessionResponse{ID: ctx.Params("id"), State: wz.State()})
}

func (h *MockupHandler) Back(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := NewErrorHandler(h.log)

	wz, err := h.store.Get(ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}
	if err := wz.Apply(ctx.UserContext(), wizard.Back{}); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "back")
	}
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, SessionResponse{ID: ctx.Params("id"), State: wz.State()})
}

func (h *MockupHandler) UpdatePoint(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := NewErrorHandler(h.log)

	wz, err := h.store.Get(ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	var req PointRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, response.NewError(fiber.StatusBadRequest, err.Error()), ctx.Path(), "parse_request_body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := applyPoint(wz, req.Corner, req.Axis, *req.Value); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "update_point")
	}
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, pointsResponse(wz))
}

func (h *MockupHandler) SetPoints(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := NewErrorHandler(h.log)

	wz, err := h.store.Get(ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	var req PointsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, response.NewError(fiber.StatusBadRequest, err.Error()), ctx.Path(), "parse_request_body")
	}
	if err := wz.SetPoints(req.Points); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "set_points")
	}
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, pointsResponse(wz))
}

func applyPoint(wz *wizard.Wizard, corner, axis string, value float64) error {
	c, err := geometry.ParseCorner(corner)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPointFormat, err)
	}
	a, err := geometry.ParseAxis(axis)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPointFormat, err)
	}
	return wz.UpdatePoint(c, a, value)
}

func pointsResponse(wz *wizard.Wizard) PointsResponse {
	s := wz.Session()
	pts := s.Points()
	w, hgt := s.CanvasSize()
	return PointsResponse{Points: pts, Pixels: pts.ToPixels(float64(w), float64(hgt))}
}

func (h *MockupHandler) RenderPNG(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := NewErrorHandler(h.log)

	wz, err := h.store.Get(ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	var buf bytes.Buffer
	if err := wz.Session().EncodePNG(&buf); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "encode_png")
	}
	ctx.Type("png")
	return ctx.Status(fiber.StatusOK).Send(buf.Bytes())
}

// ShareQR encodes the render URL of the session as a QR code.
func (h *MockupHandler) ShareQR(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := NewErrorHandler(h.log)

	if _, err := h.store.Get(ctx.Params("id")); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	size := ctx.QueryInt("size", 256)
	if size < 64 || size > 1024 {
		return errHandler.Handle(ctx, requestID, ErrInvalidQRSize, ctx.Path(), "qr_size")
	}

	base := strings.TrimRight(h.cfg.PublicURL, "/")
	if base == "" {
		base = ctx.BaseURL()
	}
	link := base + strings.TrimSuffix(ctx.Path(), "/qr.png") + "/render.png"

	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "encode_qr")
	}
	ctx.Set("X-Share-URL", link)
	ctx.Type("png")
	return ctx.Status(fiber.StatusOK).Send(png)
}

func (h *MockupHandler) Detect(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(ctx.UserContext(), requestTimeout)
	defer cancel()

	errHandler := NewErrorHandler(h.log)

	det := h.detector
	if preset := ctx.FormValue("preset"); preset != "" {
		params, err := panel.Preset(preset)
		if err != nil {
			return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %s", ErrUnknownPreset, preset), ctx.Path(), "preset")
		}
		det, err = panel.NewDetector(h.cfg.Detector, params)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "new_detector")
		}
	}

	data, err := h.readImage(ctx)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_image")
	}
	img, err := source.DecodeBytes(data)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "decode_image")
	}

	rect, found, err := panel.SuggestCrop(c, det, img)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		b := img.Bounds()
		h.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"found":      found,
			"rect":       rect.String(),
		}).Info("Panel detection finished")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, DetectResponse{
			Found:   found,
			Rect:    rect,
			Percent: rect.Percent(float64(b.Dx()), float64(b.Dy())),
			Width:   b.Dx(),
			Height:  b.Dy(),
		})
	}
}
