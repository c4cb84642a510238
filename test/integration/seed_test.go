// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

//go:build integration

package integration_test

import (
	"io"
	"log/slog"
	"net/http"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/volunteerhub/volunteerhub/internal/auth"
	oppg "github.com/volunteerhub/volunteerhub/internal/opportunity/postgres"
	"github.com/volunteerhub/volunteerhub/internal/seed"
)

var _ = Describe("Demo seed", Ordered, func() {
	var seeder *seed.Seeder

	BeforeAll(func() {
		var err error
		seeder, err = seed.NewSeeder(env.users, oppg.NewOpportunityRepository(env.pool), env.hasher,
			slog.New(slog.NewTextHandler(io.Discard, nil)))
		Expect(err).NotTo(HaveOccurred())
	})

	It("applies once and skips everything on re-run", func() {
		file, err := seed.LoadFile("")
		Expect(err).NotTo(HaveOccurred())

		first, err := seeder.Apply(env.ctx, file)
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal(&seed.Report{UsersCreated: 4, OpportunitiesCreated: 2}))

		second, err := seeder.Apply(env.ctx, file)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(&seed.Report{UsersSkipped: 4, OpportunitiesSkipped: 2}))
	})

	It("upgrades a legacy plaintext password on first login", func() {
		before, err := env.users.GetByEmail(env.ctx, "legacy@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(auth.IsHash(before.PasswordHash)).To(BeFalse())

		wrong := call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "legacy@example.com", "password": "password124",
		})
		Expect(wrong.Status).To(Equal(http.StatusUnauthorized))

		login := call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "legacy@example.com", "password": "password123",
		})
		Expect(login.Status).To(Equal(http.StatusOK))

		after, err := env.users.GetByEmail(env.ctx, "legacy@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(auth.IsHash(after.PasswordHash)).To(BeTrue())
		Expect(after.PasswordHash).NotTo(ContainSubstring("password123"))
		Expect(after.PasswordVersion).To(Equal(before.PasswordVersion))

		Expect(call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "legacy@example.com", "password": "password123",
		}).Status).To(Equal(http.StatusOK))
	})

	It("lists seeded opportunities to volunteers", func() {
		login := call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "ann@example.com", "password": "volunteer123",
		})
		Expect(login.Status).To(Equal(http.StatusOK))

		r := call(http.MethodGet, "/api/volunteer/opportunities/browse?q=dog", login.data()["token"].(string), nil)
		Expect(r.Status).To(Equal(http.StatusOK))
		Expect(r.list()).To(ContainElement(HaveKeyWithValue("organizationName", "Valley Animal Shelter")))
	})
})
