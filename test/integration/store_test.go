// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

//go:build integration

package integration_test

import (
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/volunteerhub/volunteerhub/internal/store"
)

var _ = Describe("Schema migrations", Ordered, func() {
	var migrator *store.Migrator

	BeforeAll(func() {
		// A scratch database keeps rollbacks away from the shared schema.
		_, err := env.pool.Exec(env.ctx, "CREATE DATABASE migrations_scratch")
		Expect(err).NotTo(HaveOccurred())

		url := strings.Replace(env.connStr, "/"+testDatabase+"?", "/migrations_scratch?", 1)
		migrator, err = store.NewMigrator(url)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(migrator.Close()).To(Succeed())
		})
	})

	names := func(ms []store.Migration) []string {
		return lo.Map(ms, func(m store.Migration, _ int) string { return m.Name })
	}

	It("starts empty with every migration pending", func() {
		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Version).To(BeZero())
		Expect(status.Applied).To(BeEmpty())
		Expect(names(status.Pending)).To(Equal([]string{
			"000001_users", "000002_opportunities", "000003_messages", "000004_payments",
		}))
	})

	It("applies everything once", func() {
		applied, err := migrator.Up()
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(HaveLen(4))

		again, err := migrator.Up()
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(BeEmpty())

		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Version).To(Equal(uint(4)))
		Expect(status.Name).To(Equal("000004_payments"))
		Expect(status.Dirty).To(BeFalse())
		Expect(status.Pending).To(BeEmpty())
	})

	It("rolls back the newest migrations first and reapplies them", func() {
		reverted, err := migrator.Rollback(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(names(reverted)).To(Equal([]string{"000004_payments", "000003_messages"}))

		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Name).To(Equal("000002_opportunities"))
		Expect(names(status.Pending)).To(Equal([]string{"000003_messages", "000004_payments"}))

		applied, err := migrator.Up()
		Expect(err).NotTo(HaveOccurred())
		Expect(names(applied)).To(Equal([]string{"000003_messages", "000004_payments"}))
	})

	It("refuses to roll back more than is applied", func() {
		_, err := migrator.Rollback(5)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("4 applied"))
	})

	It("rolls everything back", func() {
		reverted, err := migrator.RollbackAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(reverted).To(HaveLen(4))

		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Applied).To(BeEmpty())
	})
})

var _ = Describe("Store constraints", func() {
	It("classifies unique and foreign key violations", func() {
		_, err := env.pool.Exec(env.ctx, "CREATE TABLE IF NOT EXISTS uniq_tag (v TEXT CONSTRAINT uniq_tag_v UNIQUE)")
		Expect(err).NotTo(HaveOccurred())
		_, err = env.pool.Exec(env.ctx, "INSERT INTO uniq_tag VALUES ('a') ON CONFLICT DO NOTHING")
		Expect(err).NotTo(HaveOccurred())

		_, err = env.pool.Exec(env.ctx, "INSERT INTO uniq_tag VALUES ('a')")
		Expect(store.IsUniqueViolation(err, "")).To(BeTrue())
		Expect(store.IsUniqueViolation(err, "uniq_tag_v")).To(BeTrue())
		Expect(store.IsUniqueViolation(err, "users_email_key")).To(BeFalse())
		Expect(store.IsForeignKeyViolation(err)).To(BeFalse())

		_, err = env.pool.Exec(env.ctx,
			"INSERT INTO opportunities (id, organization_id, title, date) VALUES ($1, $2, 'orphan', now())",
			ulid.Make().String(), ulid.Make().String())
		Expect(store.IsForeignKeyViolation(err)).To(BeTrue())
	})
})
