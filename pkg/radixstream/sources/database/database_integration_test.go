//go:build integration

package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ociswap/radixstream/pkg/radixstream"
	"github.com/ociswap/radixstream/pkg/radixstream/sources/database"
)

// Spins up a throwaway Postgres container and exercises the database
// source's polling query end to end, the way the teacher's
// pkg/dcb/tests/setup_test.go brought up Postgres for its own store tests.
func TestDatabaseSourceIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "database source integration")
}

const schema = `
create table ledger_transactions (
	state_version bigint primary key,
	round_timestamp timestamptz not null,
	receipt_event_emitters jsonb[] not null,
	receipt_event_sbors bytea[] not null,
	receipt_event_names text[] not null,
	intent_hash text not null,
	discriminator text not null,
	receipt_status text not null
);
`

var _ = Describe("database source", func() {
	var (
		ctx  context.Context
		pool *pgxpool.Pool
		dsn  string
		c    testcontainers.Container
	)

	BeforeEach(func() {
		ctx = context.Background()

		req := testcontainers.ContainerRequest{
			Image:        "postgres:16.10",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_PASSWORD": "radixstream",
				"POSTGRES_USER":     "radixstream",
				"POSTGRES_DB":       "radixstream",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
		}
		var err error
		c, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
		Expect(err).NotTo(HaveOccurred())

		host, err := c.Host(ctx)
		Expect(err).NotTo(HaveOccurred())
		port, err := c.MappedPort(ctx, "5432")
		Expect(err).NotTo(HaveOccurred())

		dsn = fmt.Sprintf("postgres://radixstream:radixstream@%s:%s/radixstream?sslmode=disable", host, port.Port())
		pool, err = pgxpool.New(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(ctx, schema)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if pool != nil {
			pool.Close()
		}
		if c != nil {
			_ = c.Terminate(ctx)
		}
	})

	It("delivers only non-failed user transactions in state-version order", func() {
		_, err := pool.Exec(ctx, `
			insert into ledger_transactions
				(state_version, round_timestamp, receipt_event_emitters, receipt_event_sbors, receipt_event_names, intent_hash, discriminator, receipt_status)
			values
				(1, now(), array['{"type":"Function","package_address":"package_P"}']::jsonb[], array['\x01'::bytea], array['InstantiateEvent'], 'tx1', 'user', 'success'),
				(2, now(), array[]::jsonb[], array[]::bytea[], array[]::text[], 'tx2', 'user', 'failed'),
				(3, now(), array['{"type":"Method","entity":{"entity_address":"component_A","entity_type":"GlobalGenericComponent","is_global":true}}']::jsonb[], array['\x02'::bytea], array['SwapEvent'], 'tx3', 'user', 'success')
		`)
		Expect(err).NotTo(HaveOccurred())

		src := database.New(database.Config{URL: dsn, CaughtUpInterval: 50 * time.Millisecond})
		ch, err := src.Start(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer src.Stop()

		var got []radixstream.Transaction
		for len(got) < 2 {
			select {
			case tx := <-ch:
				got = append(got, tx)
			case <-time.After(10 * time.Second):
				Fail("timed out waiting for transactions")
			}
		}

		Expect(got[0].StateVersion).To(Equal(uint64(1)))
		Expect(got[1].StateVersion).To(Equal(uint64(3)))
		Expect(got[1].Events[0].Name).To(Equal("SwapEvent"))
		Expect(got[1].Events[0].Emitter.EntityAddress).To(Equal("component_A"))
		Expect(got[1].Events[0].Emitter.EntityType).To(Equal(radixstream.EntityGlobalGenericComponent))
	})
})
