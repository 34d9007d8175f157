package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by spans across packages.
const (
	AttrUserID     = attribute.Key("user.id")
	AttrResetCycle = attribute.Key("budget.reset_cycle")
	AttrCurrency   = attribute.Key("budget.currency")
)

// SetUser tags span with the authenticated user.
func SetUser(span trace.Span, userID string) {
	if userID != "" {
		span.SetAttributes(AttrUserID.String(userID))
	}
}
