// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	sessionpg "github.com/randiU/cse340-practice-umphrey/internal/session/postgres"
)

var _ = Describe("Store", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		pool      *pgxpool.Pool
		store     *sessionpg.Store
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("campus_test"),
			postgres.WithUsername("campus"),
			postgres.WithPassword("campus"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
		pool, err = pgxpool.New(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())

		store, err = sessionpg.NewStore(ctx, pool, sessionpg.Options{}, slog.New(slog.DiscardHandler))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	AfterEach(func() {
		_, err := pool.Exec(ctx, `TRUNCATE sessions`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("creates the table idempotently", func() {
		Expect(store.EnsureSchema(ctx)).To(Succeed())
	})

	It("round-trips a payload and upserts on commit", func() {
		expiry := time.Now().Add(time.Hour).Truncate(time.Microsecond)
		Expect(store.Commit(ctx, "sid-1", []byte(`{"userId":1}`), expiry)).To(Succeed())
		Expect(store.Commit(ctx, "sid-1", []byte(`{"userId":2}`), expiry)).To(Succeed())

		payload, gotExpiry, found, err := store.Find(ctx, "sid-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(payload).To(MatchJSON(`{"userId":2}`))
		Expect(gotExpiry).To(BeTemporally("~", expiry, time.Millisecond))
	})

	It("never returns an expired session", func() {
		Expect(store.Commit(ctx, "old", []byte(`{}`), time.Now().Add(-time.Second))).To(Succeed())

		_, _, found, err := store.Find(ctx, "old")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("sweeps expired rows only", func() {
		Expect(store.Commit(ctx, "old", []byte(`{}`), time.Now().Add(-time.Minute))).To(Succeed())
		Expect(store.Commit(ctx, "live", []byte(`{}`), time.Now().Add(time.Hour))).To(Succeed())

		n, err := store.DeleteExpired(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		_, _, found, err := store.Find(ctx, "live")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
	})

	It("deletes a session", func() {
		Expect(store.Commit(ctx, "gone", []byte(`{}`), time.Now().Add(time.Hour))).To(Succeed())
		Expect(store.Delete(ctx, "gone")).To(Succeed())
		Expect(store.Delete(ctx, "gone")).To(Succeed())

		_, _, found, err := store.Find(ctx, "gone")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})
})
