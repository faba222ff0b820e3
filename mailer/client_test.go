package mailer_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/nephrawn/monitor-worker/mailer"
)

var _ = Describe("Client", func() {
	var server *httptest.Server
	var client mailer.Client
	var privateKey *rsa.PrivateKey

	var tokenRequests int
	var sentMessages []map[string]string
	var lastAuthHeader string
	var lastAssertion string
	var messagesStatus int

	BeforeEach(func() {
		tokenRequests = 0
		sentMessages = nil
		lastAuthHeader = ""
		lastAssertion = ""
		messagesStatus = http.StatusOK

		var err error
		privateKey, err = rsa.GenerateKey(rand.Reader, 2048)
		Expect(err).ToNot(HaveOccurred())

		mux := http.NewServeMux()
		mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.ParseForm()).To(Succeed())
			Expect(r.PostForm.Get("grant_type")).To(Equal("client_credentials"))
			Expect(r.PostForm.Get("client_assertion_type")).To(Equal("urn:ietf:params:oauth:client-assertion-type:jwt-bearer"))
			lastAssertion = r.PostForm.Get("client_assertion")

			tokenRequests++
			w.Header().Set("Content-Type", "application/json")
			Expect(json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "test-access-token",
				"expires_in":   3600,
			})).To(Succeed())
		})
		mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			lastAuthHeader = r.Header.Get("Authorization")

			message := map[string]string{}
			Expect(json.NewDecoder(r.Body).Decode(&message)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			if messagesStatus != http.StatusOK {
				w.WriteHeader(messagesStatus)
				Expect(json.NewEncoder(w).Encode(map[string]string{
					"errorDetail": "recipient rejected",
				})).To(Succeed())
				return
			}
			sentMessages = append(sentMessages, message)
		})
		server = httptest.NewServer(mux)

		keyPem := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
		})

		Expect(os.Setenv("NEPHRAWN_MAILER_ENABLED", "true")).To(Succeed())
		Expect(os.Setenv("NEPHRAWN_MAILER_GATEWAY_HOST", server.URL)).To(Succeed())
		Expect(os.Setenv("NEPHRAWN_MAILER_CLIENT_ID", "test-client")).To(Succeed())
		Expect(os.Setenv("NEPHRAWN_MAILER_KEY_ID", "test-key")).To(Succeed())
		Expect(os.Setenv("NEPHRAWN_MAILER_PRIVATE_KEY", string(keyPem))).To(Succeed())
		Expect(os.Setenv("NEPHRAWN_MAILER_FROM_ADDRESS", "alerts@nephrawn.test")).To(Succeed())

		client, err = mailer.NewClient(mailer.ModuleConfig{Enabled: true}, zap.NewNop().Sugar())
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	email := mailer.Email{
		To:      "hart@clinic.test",
		Subject: "[WARNING] Rapid weight gain",
		HTML:    "<p>delta 1.8 kg</p>",
		Text:    "delta 1.8 kg",
	}

	It("obtains a token and delivers the message", func() {
		Expect(client.Send(context.Background(), email)).To(Succeed())

		Expect(tokenRequests).To(Equal(1))
		Expect(lastAuthHeader).To(Equal("Bearer test-access-token"))
		Expect(sentMessages).To(HaveLen(1))
		Expect(sentMessages[0]["from"]).To(Equal("alerts@nephrawn.test"))
		Expect(sentMessages[0]["to"]).To(Equal("hart@clinic.test"))
		Expect(sentMessages[0]["subject"]).To(Equal("[WARNING] Rapid weight gain"))
	})

	It("signs the client assertion with the configured key", func() {
		Expect(client.Send(context.Background(), email)).To(Succeed())
		Expect(lastAssertion).ToNot(BeEmpty())

		parser := jwt.NewParser(jwt.WithoutClaimsValidation())
		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(lastAssertion, claims, func(t *jwt.Token) (interface{}, error) {
			return &privateKey.PublicKey, nil
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(token.Valid).To(BeTrue())
		Expect(token.Header["alg"]).To(Equal("RS384"))
		Expect(token.Header["kid"]).To(Equal("test-key"))
		Expect(claims["iss"]).To(Equal("test-client"))
		Expect(claims["sub"]).To(Equal("test-client"))
		Expect(claims["aud"]).To(Equal(server.URL + "/v1/auth/token"))
		Expect(claims["jti"]).ToNot(BeEmpty())
	})

	It("reuses the token across sends", func() {
		Expect(client.Send(context.Background(), email)).To(Succeed())
		Expect(client.Send(context.Background(), email)).To(Succeed())

		Expect(tokenRequests).To(Equal(1))
		Expect(sentMessages).To(HaveLen(2))
	})

	It("surfaces gateway rejections", func() {
		messagesStatus = http.StatusUnprocessableEntity

		err := client.Send(context.Background(), email)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("recipient rejected"))
	})
})

var _ = Describe("Disabled client", func() {
	It("drops emails without failing", func() {
		client, err := mailer.NewClient(mailer.ModuleConfig{Enabled: false}, zap.NewNop().Sugar())
		Expect(err).ToNot(HaveOccurred())
		Expect(client.Send(context.Background(), mailer.Email{To: "hart@clinic.test"})).To(Succeed())
	})
})

var _ = Describe("Token", func() {
	It("is refreshed ahead of its expiration", func() {
		token := mailer.Token{ExpiresIn: 30}
		token.SetExpirationTime()
		Expect(token.IsExpired(time.Minute)).To(BeTrue())
		Expect(token.IsExpired(0)).To(BeFalse())
	})
})
