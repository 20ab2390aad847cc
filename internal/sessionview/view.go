// Package sessionview carries per-session view preferences through a
// context so render settings stay out of the service API.
package sessionview

import (
	"context"

	"pkt.systems/canopy/schema"
)

// View captures per-session render preferences.
type View struct {
	ShowIcons bool
	FocusNode schema.NodeID
}

type viewKey struct{}

// New returns a new View instance with defaults applied.
func New() *View {
	return &View{ShowIcons: true}
}

// WithContext stores the view in the context.
func WithContext(ctx context.Context, view *View) context.Context {
	if ctx == nil || view == nil {
		return ctx
	}
	return context.WithValue(ctx, viewKey{}, view)
}

// FromContext returns the view stored in the context, if any.
func FromContext(ctx context.Context) *View {
	if ctx == nil {
		return nil
	}
	if value := ctx.Value(viewKey{}); value != nil {
		if view, ok := value.(*View); ok {
			return view
		}
	}
	return nil
}
