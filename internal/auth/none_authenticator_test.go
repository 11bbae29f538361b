package auth_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/verifyhub/case-engine/internal/auth"
	"github.com/verifyhub/case-engine/internal/store/model"
)

var _ = Describe("none authentication", func() {
	var (
		h  *handler
		ts *httptest.Server
	)

	BeforeEach(func() {
		authenticator, err := auth.NewNoneAuthenticator(testDirectory)
		Expect(err).To(BeNil())
		h = &handler{}
		ts = httptest.NewServer(authenticator.Authenticator(h))
		DeferCleanup(ts.Close)
	})

	get := func(principalID string) int {
		req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
		Expect(err).To(BeNil())
		if principalID != "" {
			req.Header.Set(auth.PrincipalHeader, principalID)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).To(BeNil())
		defer resp.Body.Close()
		return resp.StatusCode
	}

	It("acts as the admin by default", func() {
		Expect(get("")).To(Equal(200))
		Expect(h.principalID).To(Equal("admin"))
		Expect(h.role).To(Equal(model.RoleAdmin))
	})

	It("acts as the principal named in the header", func() {
		Expect(get("batman")).To(Equal(200))
		Expect(h.principalID).To(Equal("batman"))
		Expect(h.role).To(Equal(model.RoleVerifier))
	})

	It("refuses unknown and inactive principals", func() {
		Expect(get("penguin")).To(Equal(401))
		Expect(get("joker")).To(Equal(401))
	})
})
