package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/linkupapp/linkup/internal/models"
	"github.com/linkupapp/linkup/internal/services"
	"github.com/linkupapp/linkup/pkg/response"
)

func withJSONBody(t *testing.T, c *gin.Context, method string, body any) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, "/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
}

func decodeData[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success, "expected success payload, got %s", recorder.Body.String())

	raw, err := json.Marshal(payload.Data)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.NotNil(t, payload.Error)
	return payload.Error.Code
}

func TestRelationshipHandlerConnectRespondFlow(t *testing.T) {
	db := openHandlerTestDB(t)
	notifications := newNotificationService(t, db)
	handler, err := NewRelationshipHandler(db, notifications, nil)
	require.NoError(t, err)

	alice := seedHandlerUser(t, db, "alice@example.com", "alice")
	bob := seedHandlerUser(t, db, "bob@example.com", "bob")

	// alice connects with bob
	c, recorder := authedContext(t, alice.ID)
	withJSONBody(t, c, http.MethodPost, gin.H{"user_id": bob.ID})
	handler.Connect(c)
	require.Equal(t, http.StatusCreated, recorder.Code)

	rel := decodeData[services.RelationshipDTO](t, recorder)
	require.Equal(t, models.RelationshipPending, rel.Status)
	require.Equal(t, alice.ID, rel.RequesterID)

	// bob accepts
	c, recorder = authedContext(t, bob.ID)
	c.Params = gin.Params{gin.Param{Key: "id", Value: rel.ID}}
	withJSONBody(t, c, http.MethodPost, gin.H{"decision": "accept"})
	handler.Respond(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	matched := decodeData[services.RelationshipDTO](t, recorder)
	require.Equal(t, models.RelationshipMatched, matched.Status)
}

func TestRelationshipHandlerConnectConflict(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, err := NewRelationshipHandler(db, newNotificationService(t, db), nil)
	require.NoError(t, err)

	alice := seedHandlerUser(t, db, "alice@example.com", "alice")
	bob := seedHandlerUser(t, db, "bob@example.com", "bob")

	c, recorder := authedContext(t, alice.ID)
	withJSONBody(t, c, http.MethodPost, gin.H{"user_id": bob.ID})
	handler.Connect(c)
	require.Equal(t, http.StatusCreated, recorder.Code)

	c, recorder = authedContext(t, bob.ID)
	withJSONBody(t, c, http.MethodPost, gin.H{"user_id": alice.ID})
	handler.Connect(c)
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.Equal(t, "CONFLICT", errorCode(t, recorder))
}

func TestRelationshipHandlerRespondForbidden(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, err := NewRelationshipHandler(db, newNotificationService(t, db), nil)
	require.NoError(t, err)

	alice := seedHandlerUser(t, db, "alice@example.com", "alice")
	bob := seedHandlerUser(t, db, "bob@example.com", "bob")

	c, recorder := authedContext(t, alice.ID)
	withJSONBody(t, c, http.MethodPost, gin.H{"user_id": bob.ID})
	handler.Connect(c)
	rel := decodeData[services.RelationshipDTO](t, recorder)

	// The requester cannot answer their own request.
	c, recorder = authedContext(t, alice.ID)
	c.Params = gin.Params{gin.Param{Key: "id", Value: rel.ID}}
	withJSONBody(t, c, http.MethodPost, gin.H{"decision": "accept"})
	handler.Respond(c)
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRelationshipHandlerRespondValidation(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, err := NewRelationshipHandler(db, newNotificationService(t, db), nil)
	require.NoError(t, err)

	alice := seedHandlerUser(t, db, "alice@example.com", "alice")

	c, recorder := authedContext(t, alice.ID)
	c.Params = gin.Params{gin.Param{Key: "id", Value: "whatever"}}
	withJSONBody(t, c, http.MethodPost, gin.H{"decision": "maybe"})
	handler.Respond(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRelationshipHandlerBlockAndUnblock(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, err := NewRelationshipHandler(db, newNotificationService(t, db), nil)
	require.NoError(t, err)

	alice := seedHandlerUser(t, db, "alice@example.com", "alice")
	bob := seedHandlerUser(t, db, "bob@example.com", "bob")

	c, recorder := authedContext(t, alice.ID)
	withJSONBody(t, c, http.MethodPost, gin.H{"user_id": bob.ID})
	handler.Block(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	blocked := decodeData[services.RelationshipDTO](t, recorder)
	require.Equal(t, models.RelationshipBlocked, blocked.Status)

	// Blocked pair rejects new connects.
	c, recorder = authedContext(t, bob.ID)
	withJSONBody(t, c, http.MethodPost, gin.H{"user_id": alice.ID})
	handler.Connect(c)
	require.Equal(t, http.StatusForbidden, recorder.Code)

	// Only the blocker can lift the block.
	c, recorder = authedContext(t, bob.ID)
	c.Params = gin.Params{gin.Param{Key: "id", Value: blocked.ID}}
	handler.Unblock(c)
	require.Equal(t, http.StatusForbidden, recorder.Code)

	c, recorder = authedContext(t, alice.ID)
	c.Params = gin.Params{gin.Param{Key: "id", Value: blocked.ID}}
	handler.Unblock(c)
	require.Equal(t, http.StatusOK, recorder.Code)
}
