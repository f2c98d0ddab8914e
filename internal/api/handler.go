package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"github.com/adam0307a/yurts-laundry-tracker/internal/engine"
	"github.com/adam0307a/yurts-laundry-tracker/internal/store"
	"github.com/adam0307a/yurts-laundry-tracker/internal/view"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	engine  *engine.Engine
	view    *view.View
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, eng *engine.Engine, v *view.View, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		engine:  eng,
		view:    v,
		webpush: webpushOptions,
	}
}
