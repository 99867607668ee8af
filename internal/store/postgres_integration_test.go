// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hiveframe/hiveframe/internal/game"
	"github.com/hiveframe/hiveframe/internal/store"
)

// setupPostgresContainer starts a PostgreSQL container with the schema
// applied.
func setupPostgresContainer() (*store.PostgresFrameStore, string, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("hiveframe_test"),
		postgres.WithUsername("hiveframe"),
		postgres.WithPassword("hiveframe"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}
	_ = migrator.Close()

	frameStore, err := store.NewPostgresFrameStore(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}

	cleanup := func() {
		frameStore.Close()
		_ = container.Terminate(ctx)
	}
	return frameStore, connStr, cleanup, nil
}

var _ = Describe("PostgresFrameStore", Ordered, func() {
	var (
		frameStore *store.PostgresFrameStore
		connStr    string
		cleanup    func()
	)

	BeforeAll(func() {
		var err error
		frameStore, connStr, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if cleanup != nil {
			cleanup()
		}
	})

	It("inserts a new frame projection", func() {
		ctx := context.Background()
		id := game.NewULID().String()

		rec := game.FrameRecord{
			ID:      id,
			Players: []string{"alice"},
			Status:  game.StatusWaitingForPlayers,
		}
		Expect(frameStore.UpsertFrame(ctx, rec)).To(Succeed())

		row := queryFrame(ctx, connStr, id)
		Expect(row.status).To(Equal("WAITING_FOR_PLAYERS"))
		Expect(row.players).To(Equal([]string{"alice"}))
		Expect(row.board).To(BeNil())
	})

	It("updates an existing frame in place", func() {
		ctx := context.Background()
		id := game.NewULID().String()

		Expect(frameStore.UpsertFrame(ctx, game.FrameRecord{
			ID:      id,
			Players: []string{"alice"},
			Status:  game.StatusWaitingForPlayers,
		})).To(Succeed())

		board := "X...O...."
		turn := 2
		Expect(frameStore.UpsertFrame(ctx, game.FrameRecord{
			ID:      id,
			Players: []string{"alice", "bob"},
			Status:  game.StatusInProgress,
			Board:   &board,
			Turn:    &turn,
		})).To(Succeed())

		row := queryFrame(ctx, connStr, id)
		Expect(row.status).To(Equal("IN_PROGRESS"))
		Expect(row.players).To(ConsistOf("alice", "bob"))
		Expect(row.board).To(HaveValue(Equal("X...O....")))
		Expect(row.turn).To(HaveValue(Equal(2)))
	})
})

type frameRow struct {
	status  string
	players []string
	board   *string
	turn    *int
}

func queryFrame(ctx context.Context, connStr, id string) frameRow {
	GinkgoHelper()

	pool, err := pgxpool.New(ctx, connStr)
	Expect(err).NotTo(HaveOccurred())
	defer pool.Close()

	var row frameRow
	err = pool.QueryRow(ctx,
		`SELECT status, players, board, turn FROM frames WHERE id = $1`, id,
	).Scan(&row.status, &row.players, &row.board, &row.turn)
	Expect(err).NotTo(HaveOccurred())
	return row
}
