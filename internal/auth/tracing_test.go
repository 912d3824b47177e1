// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/randiU/cse340-practice-umphrey/internal/auth/authtest"
)

var (
	spans        = tracetest.NewSpanRecorder()
	installSpans sync.Once
)

// recordSpans routes the global tracer provider into a recorder and clears
// what earlier tests left in it.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	installSpans.Do(func() {
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	})
	spans.Reset()
	return spans
}

func endedSpan(t *testing.T, rec *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range rec.Ended() {
		if s.Name() == name {
			return s
		}
	}
	require.FailNow(t, "span not recorded", name)
	return nil
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestLogin_Tracing(t *testing.T) {
	ctx := context.Background()

	t.Run("success carries the user id", func(t *testing.T) {
		repo, ada := registeredRepo(t)
		rec := recordSpans(t)

		_, err := newLogin(t, repo).Login(ctx, authtest.NewSession(), "ada@example.com", "Sieve#2024")
		require.NoError(t, err)

		span := endedSpan(t, rec, "auth.login")
		assert.Equal(t, "success", spanAttr(span, "auth.outcome").AsString())
		assert.Equal(t, ada.ID, spanAttr(span, "user.id").AsInt64())
		assert.Equal(t, codes.Unset, span.Status().Code)
	})

	t.Run("rejected credentials are not span errors", func(t *testing.T) {
		repo, _ := registeredRepo(t)
		rec := recordSpans(t)

		_, err := newLogin(t, repo).Login(ctx, authtest.NewSession(), "ada@example.com", "wrong-password")
		require.Error(t, err)

		span := endedSpan(t, rec, "auth.login")
		assert.Equal(t, "invalid_credentials", spanAttr(span, "auth.outcome").AsString())
		assert.Equal(t, codes.Unset, span.Status().Code)
	})

	t.Run("storage failure marks the span", func(t *testing.T) {
		repo, _ := registeredRepo(t)
		repo.FailWith(errors.New("connection reset"))
		rec := recordSpans(t)

		_, err := newLogin(t, repo).Login(ctx, authtest.NewSession(), "ada@example.com", "Sieve#2024")
		require.Error(t, err)

		span := endedSpan(t, rec, "auth.login")
		assert.Equal(t, codes.Error, span.Status().Code)
		assert.NotEmpty(t, span.Events(), "error should be recorded as an event")
	})
}

func TestRegister_Tracing(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid input", func(t *testing.T) {
		rec := recordSpans(t)
		in := validInput()
		in.EmailConfirm = "someone-else@example.com"

		_, err := newRegistration(t, authtest.NewMemoryUserRepository()).Register(ctx, in)
		require.Error(t, err)

		span := endedSpan(t, rec, "auth.register")
		assert.Equal(t, "invalid", spanAttr(span, "auth.outcome").AsString())
		assert.Equal(t, codes.Unset, span.Status().Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo, _ := registeredRepo(t)
		rec := recordSpans(t)

		_, err := newRegistration(t, repo).Register(ctx, validInput())
		require.Error(t, err)

		span := endedSpan(t, rec, "auth.register")
		assert.Equal(t, "duplicate", spanAttr(span, "auth.outcome").AsString())
	})
}
