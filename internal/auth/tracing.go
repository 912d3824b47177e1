// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("campus/auth")

// endSpan ends span, marking it failed only for unexpected errors. Rejected
// credentials and invalid input are ordinary outcomes.
func endSpan(span trace.Span, err error) {
	var verr *ValidationError
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("auth.outcome", "success"))
	case errors.Is(err, ErrInvalidCredentials):
		span.SetAttributes(attribute.String("auth.outcome", "invalid_credentials"))
	case errors.Is(err, ErrDuplicateEmail):
		span.SetAttributes(attribute.String("auth.outcome", "duplicate"))
	case errors.As(err, &verr):
		span.SetAttributes(attribute.String("auth.outcome", "invalid"))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
