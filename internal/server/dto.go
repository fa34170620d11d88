package server

import (
	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/template"
	"github.com/ivlev/mockupwarp/internal/wizard"
)

type TemplatesResponse struct {
	Data []template.Template `json:"data"`
}

type CreateSessionRequest struct {
	Template string `json:"template" validate:"required"`
}

type SessionResponse struct {
	ID    string       `json:"id"`
	State wizard.State `json:"state"`
}

type CropRequest struct {
	X      float64 `json:"x" validate:"gte=0"`
	Y      float64 `json:"y" validate:"gte=0"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

func (r CropRequest) Rect() geometry.Rect {
	return geometry.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// PointRequest moves one axis of one corner, in percent of the canvas.
type PointRequest struct {
	Corner string   `json:"corner" validate:"required"`
	Axis   string   `json:"axis" validate:"required,oneof=x y X Y"`
	Value  *float64 `json:"value" validate:"required"`
}

type PointsRequest struct {
	Points geometry.MappingPoints `json:"points"`
}

type PointsResponse struct {
	Points geometry.MappingPoints `json:"points"`
	Pixels geometry.MappingPoints `json:"pixels"`
}

type DetectResponse struct {
	Found   bool          `json:"found"`
	Rect    geometry.Rect `json:"rect"`
	Percent geometry.Rect `json:"percent"`
	Width   int           `json:"width"`
	Height  int           `json:"height"`
}

// wsMessage is a point update sent over the session websocket. Either
// Points or the Corner/Axis/Value triple is set.
type wsMessage struct {
	Corner string                  `json:"corner,omitempty"`
	Axis   string                  `json:"axis,omitempty"`
	Value  *float64                `json:"value,omitempty"`
	Points *geometry.MappingPoints `json:"points,omitempty"`
}
