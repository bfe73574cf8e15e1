package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	id "edureg/pkg/domain"
	"edureg/pkg/requestcontext"
)

// MockJWTValidator is a testify mock for JWTValidator
type MockJWTValidator struct {
	mock.Mock
}

func (m *MockJWTValidator) ValidateToken(tokenString string) (*JWTClaims, error) {
	args := m.Called(tokenString)
	if claims := args.Get(0); claims != nil {
		return claims.(*JWTClaims), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockHandler is a test handler that captures if it was called and the context
type mockHandler struct {
	called  bool
	context context.Context
}

func (m *mockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.called = true
	m.context = r.Context()
	w.WriteHeader(http.StatusOK)
}

type AuthMiddlewareTestSuite struct {
	suite.Suite
	validator   *MockJWTValidator
	nextHandler *mockHandler
	middleware  func(http.Handler) http.Handler
}

func TestAuthMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}

func (s *AuthMiddlewareTestSuite) SetupTest() {
	s.validator = new(MockJWTValidator)
	s.nextHandler = &mockHandler{}
	s.middleware = RequireCaller(s.validator, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *AuthMiddlewareTestSuite) TearDownTest() {
	s.validator.AssertExpectations(s.T())
}

func (s *AuthMiddlewareTestSuite) makeRequest(authHeader string) *httptest.ResponseRecorder {
	handler := s.middleware(s.nextHandler)
	req := httptest.NewRequest(http.MethodPost, "/credentials", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func (s *AuthMiddlewareTestSuite) TestValidToken() {
	s.validator.On("ValidateToken", "valid-token").Return(&JWTClaims{Subject: "did:example:mit", JTI: "jti-1"}, nil)

	w := s.makeRequest("Bearer valid-token")

	s.Require().True(s.nextHandler.called)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(id.Identity("did:example:mit"), requestcontext.Caller(s.nextHandler.context))
}

func (s *AuthMiddlewareTestSuite) TestMissingHeader() {
	w := s.makeRequest("")

	s.False(s.nextHandler.called)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "Missing or invalid Authorization header")
}

func (s *AuthMiddlewareTestSuite) TestWrongScheme() {
	w := s.makeRequest("Basic dXNlcjpwYXNz")

	s.False(s.nextHandler.called)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *AuthMiddlewareTestSuite) TestInvalidToken() {
	s.validator.On("ValidateToken", "bad-token").Return(nil, errors.New("signature invalid"))

	w := s.makeRequest("Bearer bad-token")

	s.False(s.nextHandler.called)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "Invalid or expired token")
}

func (s *AuthMiddlewareTestSuite) TestEmptySubject() {
	s.validator.On("ValidateToken", "no-sub").Return(&JWTClaims{Subject: "  "}, nil)

	w := s.makeRequest("Bearer no-sub")

	s.False(s.nextHandler.called)
	s.Equal(http.StatusUnauthorized, w.Code)
}
