package auth_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/verifyhub/case-engine/internal/auth"
	"github.com/verifyhub/case-engine/internal/store/model"
)

var _ = Describe("jwt authentication", func() {
	Context("token validation", func() {
		It("successfully validate the token", func() {
			sToken, keyFn := generateToken("batman", time.Now().Add(24*time.Hour))
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn, testDirectory)
			Expect(err).To(BeNil())

			subject, err := authenticator.Authenticate(sToken)
			Expect(err).To(BeNil())
			Expect(subject).To(Equal("batman"))
		})

		It("fails to authenticate -- wrong signing method", func() {
			sToken, keyFn := generateInvalidTokenWrongSigningMethod()
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn, testDirectory)
			Expect(err).To(BeNil())

			_, err = authenticator.Authenticate(sToken)
			Expect(err).ToNot(BeNil())
		})

		It("fails to authenticate -- token expired", func() {
			sToken, keyFn := generateToken("batman", time.Now().Add(-time.Hour))
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn, testDirectory)
			Expect(err).To(BeNil())

			_, err = authenticator.Authenticate(sToken)
			Expect(err).ToNot(BeNil())
		})

		It("fails to authenticate -- subject is missing", func() {
			sToken, keyFn := generateToken("", time.Now().Add(time.Hour))
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn, testDirectory)
			Expect(err).To(BeNil())

			_, err = authenticator.Authenticate(sToken)
			Expect(err).ToNot(BeNil())
		})
	})

	Context("jwt auth middleware", func() {
		serve := func(subject string, header func(token string) string) (int, *handler) {
			sToken, keyFn := generateToken(subject, time.Now().Add(time.Hour))
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn, testDirectory)
			Expect(err).To(BeNil())

			h := &handler{}
			ts := httptest.NewServer(authenticator.Authenticator(h))
			defer ts.Close()

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			Expect(err).To(BeNil())
			if value := header(sToken); value != "" {
				req.Header.Add("Authorization", value)
			}

			resp, rerr := http.DefaultClient.Do(req)
			Expect(rerr).To(BeNil())
			defer resp.Body.Close()
			return resp.StatusCode, h
		}

		bearer := func(token string) string {
			return fmt.Sprintf("Bearer %s", token)
		}

		It("successfully authenticate", func() {
			status, h := serve("bruce", bearer)
			Expect(status).To(Equal(200))
			Expect(h.principalID).To(Equal("bruce"))
			Expect(h.role).To(Equal(model.RoleEmployer))
			Expect(h.organizationID).To(Equal("GothamCity"))
		})

		It("failed to authenticate -- no token", func() {
			status, _ := serve("bruce", func(string) string { return "" })
			Expect(status).To(Equal(401))
		})

		It("failed to authenticate -- not a bearer token", func() {
			status, _ := serve("bruce", func(token string) string { return "Basic " + token })
			Expect(status).To(Equal(401))
		})

		It("failed to authenticate -- unknown principal", func() {
			status, _ := serve("penguin", bearer)
			Expect(status).To(Equal(401))
		})

		It("failed to authenticate -- inactive principal", func() {
			status, _ := serve("joker", bearer)
			Expect(status).To(Equal(401))
		})
	})
})

func generateToken(subject string, expiresAt time.Time) (string, func(t *jwt.Token) (any, error)) {
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		Issuer:    "test",
		Subject:   subject,
		ID:        "1",
		Audience:  []string{"case-engine"},
	}

	// generate a pair of keys RSA
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).To(BeNil())

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	ss, err := token.SignedString(privateKey)
	Expect(err).To(BeNil())

	return ss, func(t *jwt.Token) (any, error) {
		return privateKey.Public(), nil
	}
}

func generateInvalidTokenWrongSigningMethod() (string, func(t *jwt.Token) (any, error)) {
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Subject:   "batman",
	}

	// generate a pair of keys ecdsa
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).To(BeNil())

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	ss, err := token.SignedString(privateKey)
	Expect(err).To(BeNil())

	return ss, func(t *jwt.Token) (any, error) {
		return privateKey.Public(), nil
	}
}
