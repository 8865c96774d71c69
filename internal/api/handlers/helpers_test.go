package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
	"github.com/Meekal-Jamil/travelbid/internal/auth"
	"github.com/Meekal-Jamil/travelbid/internal/models"
)

const testSecret = "handler-test-secret"

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery())
	return r
}

type caller struct {
	id    primitive.ObjectID
	role  models.Role
	token string
}

func newCaller(t *testing.T, role models.Role) caller {
	t.Helper()
	id := primitive.NewObjectID()
	token, err := auth.GenerateJWT(id, role, testSecret, time.Hour)
	require.NoError(t, err)
	return caller{id: id, role: role, token: token}
}

func (u caller) do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var anonymous = caller{}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}
