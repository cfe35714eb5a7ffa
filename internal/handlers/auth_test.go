package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/linkupapp/linkup/internal/auth"
)

func newTestJWT(t *testing.T) *iauth.JWTService {
	t.Helper()

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)
	return jwtSvc
}

type authPayload struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func TestAuthHandlerRegisterLoginMe(t *testing.T) {
	db := openHandlerTestDB(t)
	jwtSvc := newTestJWT(t)
	handler, err := NewAuthHandler(db, jwtSvc)
	require.NoError(t, err)

	c, recorder := authedContext(t, "")
	withJSONBody(t, c, http.MethodPost, gin.H{
		"email":    "alice@example.com",
		"password": "correct horse",
		"username": "alice",
	})
	handler.Register(c)
	require.Equal(t, http.StatusCreated, recorder.Code)

	registered := decodeData[authPayload](t, recorder)
	require.NotEmpty(t, registered.Token)
	require.Equal(t, "alice@example.com", registered.User.Email)

	claims, err := jwtSvc.ValidateAccessToken(registered.Token)
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, claims.UserID)

	c, recorder = authedContext(t, "")
	withJSONBody(t, c, http.MethodPost, gin.H{
		"email":    "alice@example.com",
		"password": "correct horse",
	})
	handler.Login(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	c, recorder = authedContext(t, registered.User.ID)
	handler.Me(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	me := decodeData[struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}](t, recorder)
	require.Equal(t, registered.User.ID, me.ID)
	require.Equal(t, "alice@example.com", me.Email)
}

func TestAuthHandlerLoginRejectsBadCredentials(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, err := NewAuthHandler(db, newTestJWT(t))
	require.NoError(t, err)

	c, recorder := authedContext(t, "")
	withJSONBody(t, c, http.MethodPost, gin.H{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAuthHandlerRegisterValidation(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, err := NewAuthHandler(db, newTestJWT(t))
	require.NoError(t, err)

	c, recorder := authedContext(t, "")
	withJSONBody(t, c, http.MethodPost, gin.H{
		"email":    "not-an-email",
		"password": "short",
		"username": "x",
	})
	handler.Register(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
