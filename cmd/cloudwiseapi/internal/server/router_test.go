package server

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/auth"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/config"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/ingress"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/repository"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/services/identity"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/services/users"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/testdb"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/upload"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/webhook"
)

const (
	testKID           = "k1"
	testWebhookSecret = "whsec_router_test"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0}

type testAPI struct {
	handler http.Handler
	db      *bun.DB
	cfg     *config.Config
	key     *rsa.PrivateKey
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := &config.Config{
		Environment:        "test",
		DBTimeout:          2 * time.Second,
		MaxJSONBodyBytes:   1 << 20,
		CORSAllowedOrigins: []string{"https://app.cloudwise.test"},
		Auth: config.AuthConfig{
			Domain:   "tenant.auth0.test",
			Audience: "https://api.cloudwise.test",
		},
		Webhook: config.WebhookConfig{
			StripeSecret: testWebhookSecret,
			Tolerance:    5 * time.Minute,
			MaxBodyBytes: 64 << 10,
		},
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	db := testdb.New(t)
	logger, _ := test.NewNullLogger()

	verifier := auth.NewVerifier(auth.VerifierConfig{
		Issuer:   cfg.Auth.Issuer(),
		Audience: cfg.Auth.Audience,
	}, auth.StaticKeySet{testKID: &key.PublicKey})
	resolver := identity.NewResolver(repository.NewBunUserRepository(db), logger, cfg.DBTimeout)

	roles, err := auth.NewRoleAuthorizer()
	require.NoError(t, err)

	webhooks, err := webhook.NewVerifier(webhook.Options{
		Secret:    cfg.Webhook.StripeSecret,
		Tolerance: cfg.Webhook.Tolerance,
		Logger:    logger,
	})
	require.NoError(t, err)

	translator := apierr.NewTranslator(logger, false)
	handler := NewRouter(RouterOptions{
		Cfg:           cfg,
		Logger:        logger,
		Translator:    translator,
		Ingress:       ingress.New(cfg.MaxJSONBodyBytes, translator),
		Authenticator: identity.NewAuthenticator(verifier, resolver),
		Roles:         roles,
		Users:         users.NewService(db, logger),
		CloudAccounts: repository.NewBunCloudAccountRepository(db),
		Uploads:       upload.NewValidator(1<<20, []string{"image/png", "text/csv"}),
		Webhooks:      webhooks,
	})

	return &testAPI{handler: handler, db: db, cfg: cfg, key: key}
}

func (a *testAPI) token(t *testing.T, subject string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":   subject,
		"iss":   a.cfg.Auth.Issuer(),
		"aud":   []string{a.cfg.Auth.Audience},
		"email": subject + "@example.test",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = testKID
	signed, err := token.SignedString(a.key)
	require.NoError(t, err)
	return signed
}

func (a *testAPI) do(t *testing.T, req *http.Request, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRouter_Health(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_AuthConfig(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/auth/config", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[AuthConfigResponse](t, rec)
	assert.Equal(t, "https://tenant.auth0.test/", body.Issuer)
	assert.Equal(t, "https://tenant.auth0.test/.well-known/jwks.json", body.JWKSURI)
}

func TestRouter_Me(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/me", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(apierr.KindAuthentication), decodeBody[apierr.Response](t, rec).Error)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/me", nil), api.token(t, "auth0|first"))
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody[models.User](t, rec)
	assert.Equal(t, "auth0|first", user.Subject)
	assert.Equal(t, "auth0|first@example.test", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Empty(t, user.GivenName)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/me", nil), "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.InvalidTokenMessage, decodeBody[apierr.Response](t, rec).Message)
}

func TestRouter_SessionAllowsAnonymous(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/session", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[SessionResponse](t, rec).Authenticated)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/session", nil), api.token(t, "auth0|sess"))
	require.Equal(t, http.StatusOK, rec.Code)
	session := decodeBody[SessionResponse](t, rec)
	assert.True(t, session.Authenticated)
	require.NotNil(t, session.User)
	assert.Equal(t, "auth0|sess", session.User.Subject)

	// A credential that was sent must be valid even where anonymous access is allowed.
	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/session", nil), "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	testdb.InsertUser(t, api.db, "auth0|admin", models.RoleAdmin)
	target := testdb.InsertUser(t, api.db, "auth0|member", models.RoleUser)

	t.Run("user is forbidden", func(t *testing.T) {
		rec := api.do(t, httptest.NewRequest(http.MethodGet, "/admin/users", nil), api.token(t, "auth0|member"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, string(apierr.KindAuthorization), decodeBody[apierr.Response](t, rec).Error)
	})

	t.Run("admin lists users", func(t *testing.T) {
		rec := api.do(t, httptest.NewRequest(http.MethodGet, "/admin/users?limit=10", nil), api.token(t, "auth0|admin"))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[UserListResponse](t, rec)
		assert.Equal(t, 10, body.Limit)
		assert.Len(t, body.Users, 2)
	})

	t.Run("bad pagination", func(t *testing.T) {
		rec := api.do(t, httptest.NewRequest(http.MethodGet, "/admin/users?limit=ten", nil), api.token(t, "auth0|admin"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody[apierr.Response](t, rec)
		assert.Equal(t, string(apierr.KindValidation), body.Error)
		require.Len(t, body.Details, 1)
		assert.Equal(t, "limit", body.Details[0].Field)
	})

	t.Run("admin changes role", func(t *testing.T) {
		path := fmt.Sprintf("/admin/users/%d/role", target.ID)
		req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"role":"admin"}`))
		req.Header.Set("Content-Type", "application/json")

		rec := api.do(t, req, api.token(t, "auth0|admin"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, models.RoleAdmin, decodeBody[models.User](t, rec).Role)
	})

	t.Run("invalid role", func(t *testing.T) {
		path := fmt.Sprintf("/admin/users/%d/role", target.ID)
		req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"role":"owner"}`))
		req.Header.Set("Content-Type", "application/json")

		rec := api.do(t, req, api.token(t, "auth0|admin"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody[apierr.Response](t, rec)
		assert.Equal(t, string(apierr.KindValidation), body.Error)
		require.Len(t, body.Details, 1)
		assert.Equal(t, "role", body.Details[0].Field)
	})

	t.Run("malformed body", func(t *testing.T) {
		path := fmt.Sprintf("/admin/users/%d/role", target.ID)
		req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"role":`))
		req.Header.Set("Content-Type", "application/json")

		rec := api.do(t, req, api.token(t, "auth0|admin"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(apierr.KindBadRequest), decodeBody[apierr.Response](t, rec).Error)
	})
}

func TestRouter_OwnedResource(t *testing.T) {
	api := newTestAPI(t)
	owner := testdb.InsertUser(t, api.db, "auth0|owner", models.RoleUser)
	testdb.InsertUser(t, api.db, "auth0|other", models.RoleUser)

	account := &models.AWSAccount{
		UserID:        owner.ID,
		AccountNumber: "123456789012",
		Name:          "prod",
		RoleARN:       "arn:aws:iam::123456789012:role/CloudWise",
		Region:        "us-east-1",
	}
	testdb.InsertResource(t, api.db, account)
	path := fmt.Sprintf("/aws/accounts/%d", account.ID)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, path, nil), api.token(t, "auth0|other"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/aws/accounts/999999", nil), api.token(t, "auth0|owner"))
	assert.Equal(t, http.StatusForbidden, rec.Code, "absent resources are indistinguishable from foreign ones")

	rec = api.do(t, httptest.NewRequest(http.MethodGet, path, nil), api.token(t, "auth0|owner"))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[models.AWSAccount](t, rec)
	assert.Equal(t, "123456789012", got.AccountNumber)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, path, nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_StripeWebhook(t *testing.T) {
	api := newTestAPI(t)
	payload := []byte(`{"id":"evt_router","object":"event","type":"checkout.session.completed","created":1760000000,"data":{"object":{"id":"cs_1"}}}`)

	send := func(body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(webhook.SignatureHeader, signature)
		return api.do(t, req, "")
	}

	signature := webhook.SignPayload(testWebhookSecret, time.Now(), payload)

	rec := send(payload, signature)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	rec = send(payload, signature)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, webhook.MsgReplayed, decodeBody[apierr.Response](t, rec).Message)

	tampered := bytes.Replace(payload, []byte("cs_1"), []byte("cs_2"), 1)
	rec = send(tampered, webhook.SignPayload(testWebhookSecret, time.Now(), payload))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, webhook.MsgSignatureMismatch, decodeBody[apierr.Response](t, rec).Message)

	rec = send(payload, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, webhook.MsgMissingSignature, decodeBody[apierr.Response](t, rec).Message)
}

func TestRouter_Upload(t *testing.T) {
	api := newTestAPI(t)

	newUpload := func(content []byte) *http.Request {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "logo.png")
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req
	}

	rec := api.do(t, newUpload(pngHeader), api.token(t, "auth0|uploader"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody[struct {
		File upload.File `json:"file"`
	}](t, rec)
	assert.Equal(t, "image/png", body.File.MIME)

	rec = api.do(t, newUpload([]byte("MZ\x90\x00 executable")), api.token(t, "auth0|uploader"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, newUpload(pngHeader), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(apierr.KindNotFound), decodeBody[apierr.Response](t, rec).Error)
}
