package mailer

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// The period of time before the token expiration when we should refresh it
	expirationDelta = 1 * time.Minute

	assertionLifetime = 5 * time.Minute
)

var Module = fx.Provide(
	NewModuleConfig,
	NewClient,
)

type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Client delivers clinical notification emails through the mail gateway.
// Sends are synchronous; the returned error is the channel outcome the
// dispatcher records.
type Client interface {
	Send(ctx context.Context, email Email) error
}

type ModuleConfig struct {
	Enabled bool `envconfig:"NEPHRAWN_MAILER_ENABLED" default:"true"`
}

type ClientConfig struct {
	GatewayHost   string `envconfig:"NEPHRAWN_MAILER_GATEWAY_HOST" required:"true"`
	ClientId      string `envconfig:"NEPHRAWN_MAILER_CLIENT_ID" required:"true"`
	KeyId         string `envconfig:"NEPHRAWN_MAILER_KEY_ID" required:"true"`
	PrivateKeyPem string `envconfig:"NEPHRAWN_MAILER_PRIVATE_KEY" required:"true"`
	FromAddress   string `envconfig:"NEPHRAWN_MAILER_FROM_ADDRESS" default:"alerts@nephrawn.com"`
}

func NewModuleConfig() (ModuleConfig, error) {
	cfg := ModuleConfig{}
	err := envconfig.Process("", &cfg)
	return cfg, err
}

func NewClient(moduleConfig ModuleConfig, logger *zap.SugaredLogger) (Client, error) {
	if !moduleConfig.Enabled {
		logger.Info("mail gateway integration is disabled")
		return &disabled{logger: logger}, nil
	}

	config := ClientConfig{}
	if err := envconfig.Process("", &config); err != nil {
		return nil, err
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(config.PrivateKeyPem))
	if err != nil {
		return nil, err
	}

	return &client{
		config:      config,
		restyClient: resty.New(),
		privateKey:  privateKey,
	}, nil
}

type client struct {
	config      ClientConfig
	restyClient *resty.Client
	privateKey  *rsa.PrivateKey

	token *Token
	mu    sync.Mutex
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

func (c *client) Send(ctx context.Context, email Email) error {
	req, err := c.getRequestWithFreshToken(ctx)
	if err != nil {
		return err
	}

	httpErr := &ErrorResponse{}
	resp, err := req.
		SetBody(sendRequest{
			From:    c.config.FromAddress,
			To:      email.To,
			Subject: email.Subject,
			HTML:    email.HTML,
			Text:    email.Text,
		}).
		SetError(httpErr).
		Post(fmt.Sprintf("%s/v1/messages", c.config.GatewayHost))

	if err != nil {
		return err
	}
	if resp.IsError() {
		return httpErr
	}
	return nil
}

func (c *client) getRequest(ctx context.Context) *resty.Request {
	return c.restyClient.R().SetContext(ctx)
}

func (c *client) getRequestWithFreshToken(ctx context.Context) (*resty.Request, error) {
	if c.shouldRefreshToken() {
		if err := c.obtainFreshToken(ctx); err != nil {
			return nil, err
		}
	}
	return c.getRequest(ctx).SetAuthToken(c.token.AccessToken), nil
}

func (c *client) shouldRefreshToken() bool {
	return c.token == nil || c.token.IsExpired(expirationDelta)
}

func (c *client) obtainFreshToken(ctx context.Context) error {
	assertion, err := c.getSignedAssertion()
	if err != nil {
		return err
	}

	token := &Token{}
	authErr := &AuthError{}
	resp, err := c.getRequest(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type":            "client_credentials",
			"client_assertion_type": "urn:ietf:params:oauth:client-assertion-type:jwt-bearer",
			"client_assertion":      assertion,
		}).
		SetResult(token).
		SetError(authErr).
		Post(fmt.Sprintf("%s/v1/auth/token", c.config.GatewayHost))

	if err != nil {
		return fmt.Errorf("error obtaining token: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("error obtaining token: %w", authErr)
	}

	token.SetExpirationTime()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	return nil
}

func (c *client) getSignedAssertion() (string, error) {
	now := time.Now()
	nonce, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	assertion := jwt.New(jwt.SigningMethodRS384)
	assertion.Header = map[string]interface{}{
		"alg": "RS384",
		"kid": c.config.KeyId,
		"typ": "JWT",
	}
	assertion.Claims = jwt.MapClaims{
		"iss": c.config.ClientId,
		"sub": c.config.ClientId,
		"aud": fmt.Sprintf("%s/v1/auth/token", c.config.GatewayHost),
		"iat": now.Format(time.RFC3339),
		"exp": now.Add(assertionLifetime).Format(time.RFC3339),
		"jti": nonce.String(),
	}

	return assertion.SignedString(c.privateKey)
}

type Token struct {
	AccessToken    string `json:"access_token"`
	ExpiresIn      int    `json:"expires_in"`
	ExpirationTime time.Time
}

func (c *Token) SetExpirationTime() {
	c.ExpirationTime = time.Now().Add(time.Duration(c.ExpiresIn) * time.Second)
}

func (c *Token) IsExpired(delta time.Duration) bool {
	return time.Now().After(c.ExpirationTime.Add(-delta))
}

type AuthError struct {
	Err              string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (a AuthError) Error() string {
	return fmt.Sprintf("%v: %v", a.Err, a.ErrorDescription)
}

type ErrorResponse struct {
	ErrorDetail string `json:"errorDetail"`
}

func (e ErrorResponse) Error() string {
	return e.ErrorDetail
}

// disabled satisfies Client in environments without a mail gateway.
type disabled struct {
	logger *zap.SugaredLogger
}

func (d *disabled) Send(ctx context.Context, email Email) error {
	d.logger.Infow("mail gateway disabled, dropping email", "to", email.To, "subject", email.Subject)
	return nil
}
