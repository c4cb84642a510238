// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

//go:build integration

package integration_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

var _ = Describe("Accounts", func() {
	It("signs up, logs in and reads the current user", func() {
		email := uniqueEmail("Ann")
		r := call(http.MethodPost, "/api/auth/signup", "", map[string]any{
			"name": "Ann", "email": "  " + strings.ToUpper(email) + " ", "password": "secret123",
		})
		Expect(r.Status).To(Equal(http.StatusCreated))
		Expect(r.data()["user"]).To(HaveKeyWithValue("email", email))
		Expect(r.data()["user"]).To(HaveKeyWithValue("role", "VOLUNTEER"))
		Expect(r.data()["user"]).NotTo(HaveKey("password"))

		dup := call(http.MethodPost, "/api/auth/signup", "", map[string]any{
			"name": "Ann again", "email": email, "password": "secret123",
		})
		Expect(dup.Status).To(Equal(http.StatusConflict))

		login := call(http.MethodPost, "/api/auth/login", "", map[string]any{"email": email, "password": "secret123"})
		Expect(login.Status).To(Equal(http.StatusOK))
		token := login.data()["token"].(string)

		me := call(http.MethodGet, "/api/auth/me", token, nil)
		Expect(me.Status).To(Equal(http.StatusOK))
		Expect(me.data()["user"]).To(HaveKeyWithValue("name", "Ann"))
	})

	It("answers wrong password and unknown email identically", func() {
		acct := signup("Ben", "VOLUNTEER")

		wrong := call(http.MethodPost, "/api/auth/login", "", map[string]any{"email": acct.Email, "password": "nope123"})
		unknown := call(http.MethodPost, "/api/auth/login", "", map[string]any{"email": uniqueEmail("ghost"), "password": "nope123"})

		Expect(wrong.Status).To(Equal(http.StatusUnauthorized))
		Expect(unknown).To(Equal(wrong))
	})

	It("resets a password with a single-use token", func() {
		acct := signup("Cara", "VOLUNTEER")

		forgot := call(http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": acct.Email})
		Expect(forgot.Status).To(Equal(http.StatusOK))
		resetToken, ok := forgot.Body["resetToken"].(string)
		Expect(ok).To(BeTrue())

		Expect(call(http.MethodPost, "/api/auth/reset-password", "", map[string]any{
			"token": acct.Token, "password": "changed123",
		}).Status).To(Equal(http.StatusBadRequest), "a session token is not a reset token")

		Expect(call(http.MethodPost, "/api/auth/reset-password", "", map[string]any{
			"token": resetToken, "password": "changed123",
		}).Status).To(Equal(http.StatusOK))

		Expect(call(http.MethodPost, "/api/auth/reset-password", "", map[string]any{
			"token": resetToken, "password": "again12345",
		}).Status).To(Equal(http.StatusBadRequest), "reset tokens are single-use")

		Expect(call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": acct.Email, "password": "changed123",
		}).Status).To(Equal(http.StatusOK))
	})

	It("changes a password for the signed-in user", func() {
		acct := signup("Dev", "VOLUNTEER")

		bad := call(http.MethodPost, "/api/auth/change-password", acct.Token, map[string]any{
			"currentPassword": "wrong123", "newPassword": "another123",
		})
		Expect(bad.Status).To(Equal(http.StatusUnauthorized))

		Expect(call(http.MethodPost, "/api/auth/change-password", acct.Token, map[string]any{
			"currentPassword": "secret123", "newPassword": "another123",
		}).Status).To(Equal(http.StatusOK))

		Expect(call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": acct.Email, "password": "another123",
		}).Status).To(Equal(http.StatusOK))
	})

	It("rejects missing and forged tokens", func() {
		Expect(call(http.MethodGet, "/api/profile/me", "", nil).Status).To(Equal(http.StatusUnauthorized))
		Expect(call(http.MethodGet, "/api/profile/me", "forged", nil).Status).To(Equal(http.StatusForbidden))
	})
})

var _ = Describe("Opportunity lifecycle", Ordered, func() {
	var (
		org, volunteer, other account
		opportunityID         string
		applicationID         string
	)

	BeforeAll(func() {
		org = signup("Shelter", "ORGANIZATION")
		volunteer = signup("Vera", "VOLUNTEER")
		other = signup("Otto", "VOLUNTEER")
	})

	It("lets organizations, and only organizations, post opportunities", func() {
		body := map[string]any{
			"title":          "Riverbank cleanup " + ulid.Make().String(),
			"description":    "Collect litter along the river",
			"requiredSkills": "stamina, teamwork",
			"location":       "Kathmandu",
			"date":           "2099-06-01",
		}
		Expect(call(http.MethodPost, "/api/opportunities/create", volunteer.Token, body).Status).
			To(Equal(http.StatusForbidden))

		r := call(http.MethodPost, "/api/opportunities/create", org.Token, body)
		Expect(r.Status).To(Equal(http.StatusCreated))
		opportunityID = r.data()["id"].(string)

		mine := call(http.MethodGet, "/api/opportunities", org.Token, nil)
		Expect(mine.Status).To(Equal(http.StatusOK))
		Expect(mine.list()).To(ContainElement(HaveKeyWithValue("id", opportunityID)))
	})

	It("finds the opportunity when browsing", func() {
		r := call(http.MethodGet, "/api/volunteer/opportunities/browse?q=litter", volunteer.Token, nil)
		Expect(r.Status).To(Equal(http.StatusOK))
		Expect(r.list()).To(ContainElement(And(
			HaveKeyWithValue("id", opportunityID),
			HaveKeyWithValue("organizationName", "Shelter"),
		)))

		none := call(http.MethodGet, "/api/volunteer/opportunities/browse?q=zzzz-no-match", volunteer.Token, nil)
		Expect(none.Status).To(Equal(http.StatusOK))
		Expect(none.Body["data"]).To(BeEmpty())
	})

	It("accepts one application per volunteer", func() {
		path := "/api/volunteer/opportunities/" + opportunityID + "/apply"
		r := call(http.MethodPost, path, volunteer.Token, nil)
		Expect(r.Status).To(Equal(http.StatusCreated))
		Expect(r.data()).To(HaveKeyWithValue("status", "PENDING"))
		applicationID = r.data()["id"].(string)

		Expect(call(http.MethodPost, path, volunteer.Token, nil).Status).To(Equal(http.StatusConflict))
		Expect(call(http.MethodPost, path, org.Token, nil).Status).To(Equal(http.StatusForbidden))

		mine := call(http.MethodGet, "/api/volunteer/applications/my", volunteer.Token, nil)
		Expect(mine.list()).To(ContainElement(HaveKeyWithValue("opportunityId", opportunityID)))
	})

	It("refuses a certificate before the application is accepted", func() {
		r := call(http.MethodPost, "/api/certificates/generate", org.Token, map[string]any{
			"userId": volunteer.ID, "opportunityId": opportunityID,
		})
		Expect(r.Status).To(Equal(http.StatusBadRequest))
	})

	It("lets only the owning organization decide", func() {
		path := "/api/applications/" + applicationID + "/status"
		rival := signup("Rival", "ORGANIZATION")
		Expect(call(http.MethodPatch, path, rival.Token, map[string]any{"status": "ACCEPTED"}).Status).
			To(Equal(http.StatusForbidden))
		Expect(call(http.MethodPatch, path, org.Token, map[string]any{"status": "MAYBE"}).Status).
			To(Equal(http.StatusBadRequest))

		r := call(http.MethodPatch, path, org.Token, map[string]any{"status": "ACCEPTED"})
		Expect(r.Status).To(Equal(http.StatusOK))
		Expect(r.data()).To(HaveKeyWithValue("status", "ACCEPTED"))

		apps := call(http.MethodGet, "/api/applications", org.Token, nil)
		Expect(apps.list()).To(ContainElement(And(
			HaveKeyWithValue("id", applicationID),
			HaveKeyWithValue("volunteerName", "Vera"),
		)))
	})

	It("issues exactly one certificate", func() {
		body := map[string]any{"userId": volunteer.ID, "opportunityId": opportunityID}
		r := call(http.MethodPost, "/api/certificates/generate", org.Token, body)
		Expect(r.Status).To(Equal(http.StatusCreated))
		Expect(r.Body["certificateUrl"]).To(HavePrefix("http://volunteerhub.test/"))

		Expect(call(http.MethodPost, "/api/certificates/generate", org.Token, body).Status).
			To(Equal(http.StatusConflict))

		mine := call(http.MethodGet, "/api/volunteer/certificates/my", volunteer.Token, nil)
		Expect(mine.list()).To(HaveLen(1))
		Expect(mine.list()[0]).To(HaveKeyWithValue("opportunityId", opportunityID))

		apps := call(http.MethodGet, "/api/volunteer/applications/my", volunteer.Token, nil)
		Expect(apps.list()).To(ContainElement(HaveKeyWithValue("status", "COMPLETED")))
	})

	It("does not issue certificates to volunteers who never applied", func() {
		r := call(http.MethodPost, "/api/certificates/generate", org.Token, map[string]any{
			"userId": other.ID, "opportunityId": opportunityID,
		})
		Expect(r.Status).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("Messaging", func() {
	It("delivers messages and summarizes conversations", func() {
		org := signup("Library", "ORGANIZATION")
		volunteer := signup("Mina", "VOLUNTEER")

		Expect(call(http.MethodPost, "/api/volunteer/messages/send", volunteer.Token, map[string]any{
			"receiverId": org.ID, "content": "Is the reading hour still on?",
		}).Status).To(Equal(http.StatusCreated))
		Expect(call(http.MethodPost, "/api/messages/send", org.Token, map[string]any{
			"receiverId": volunteer.ID, "content": "Yes, see you Saturday",
		}).Status).To(Equal(http.StatusCreated))

		Expect(call(http.MethodPost, "/api/messages/send", org.Token, map[string]any{
			"receiverId": org.ID, "content": "note to self",
		}).Status).To(Equal(http.StatusBadRequest))
		Expect(call(http.MethodPost, "/api/messages/send", org.Token, map[string]any{
			"receiverId": ulid.Make().String(), "content": "hello?",
		}).Status).To(Equal(http.StatusNotFound))

		thread := call(http.MethodGet, "/api/volunteer/messages/"+org.ID, volunteer.Token, nil)
		Expect(thread.Status).To(Equal(http.StatusOK))
		Expect(thread.list()).To(HaveLen(2))
		Expect(thread.list()[0]).To(HaveKeyWithValue("content", "Is the reading hour still on?"))

		convs := call(http.MethodGet, "/api/messages/conversations", org.Token, nil)
		Expect(convs.list()).To(ConsistOf(And(
			HaveKeyWithValue("userId", volunteer.ID),
			HaveKeyWithValue("lastMessage", "Yes, see you Saturday"),
		)))
	})
})

var _ = Describe("Profiles", func() {
	It("updates fields and stores an uploaded image", func() {
		acct := signup("Pia", "VOLUNTEER")

		r := call(http.MethodPatch, "/api/profile", acct.Token, map[string]any{"skills": "cooking"})
		Expect(r.Status).To(Equal(http.StatusOK))
		Expect(r.data()).To(HaveKeyWithValue("skills", "cooking"))

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		Expect(mw.WriteField("location", "Pokhara")).To(Succeed())
		part, err := mw.CreateFormFile("image", "me.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(pngHeader)
		Expect(err).NotTo(HaveOccurred())
		Expect(mw.Close()).To(Succeed())

		req, err := http.NewRequestWithContext(env.ctx, http.MethodPatch, env.api.URL+"/api/profile", &buf)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+acct.Token)
		up := send(req)
		Expect(up.Status).To(Equal(http.StatusOK), "%v", up.Body)
		Expect(up.data()).To(HaveKeyWithValue("location", "Pokhara"))
		Expect(up.data()).To(HaveKeyWithValue("skills", "cooking"))

		imageURL := up.data()["profileImageUrl"].(string)
		Expect(imageURL).To(HavePrefix("/uploads/"))
		_, err = os.Stat(filepath.Join(env.uploads, strings.TrimPrefix(imageURL, "/uploads/")))
		Expect(err).NotTo(HaveOccurred())

		resp, err := http.Get(env.api.URL + imageURL)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})

var _ = Describe("Donations", func() {
	It("initiates and verifies a payment through the gateway", func() {
		donor := signup("Donor", "VOLUNTEER")

		r := call(http.MethodPost, "/api/payments/initiate", donor.Token, map[string]any{"amountNpr": 250})
		Expect(r.Status).To(Equal(http.StatusOK), "%v", r.Body)
		pidx := r.data()["pidx"].(string)
		Expect(r.data()["payment_url"]).To(ContainSubstring(pidx))

		pending := call(http.MethodPost, "/api/payments/verify", "", map[string]any{"pidx": pidx})
		Expect(pending.Status).To(Equal(http.StatusOK))
		Expect(pending.data()).To(HaveKeyWithValue("status", "PENDING"))
		Expect(pending.data()).To(HaveKeyWithValue("userId", donor.ID))
		Expect(pending.data()).To(HaveKeyWithValue("amountPaisa", BeNumerically("==", 25000)))

		env.khalti.settle(pidx, "Completed")
		done := call(http.MethodPost, "/api/payments/callback", "", map[string]any{"pidx": pidx})
		Expect(done.Status).To(Equal(http.StatusOK))
		Expect(done.data()).To(HaveKeyWithValue("status", "COMPLETED"))
		Expect(done.data()).To(HaveKeyWithValue("transactionId", "txn-"+pidx))

		lookups := env.khalti.lookupCount()
		again := call(http.MethodPost, "/api/payments/verify?pidx="+pidx, "", nil)
		Expect(again.Status).To(Equal(http.StatusOK))
		Expect(again.Body["message"]).To(Equal("Payment already verified"))
		Expect(env.khalti.lookupCount()).To(Equal(lookups), "final payments are not looked up again")
	})

	It("maps gateway rejections and unknown payments", func() {
		Expect(call(http.MethodPost, "/api/payments/initiate", "", map[string]any{"amountNpr": "5"}).Status).
			To(Equal(http.StatusBadRequest))
		Expect(call(http.MethodPost, "/api/payments/initiate", "", map[string]any{"amountNpr": "-5"}).Status).
			To(Equal(http.StatusBadRequest))
		Expect(call(http.MethodPost, "/api/payments/verify", "", map[string]any{"pidx": "missing"}).Status).
			To(Equal(http.StatusNotFound))
		Expect(call(http.MethodPost, "/api/payments/callback", "", map[string]any{}).Status).
			To(Equal(http.StatusBadRequest))
	})
})
