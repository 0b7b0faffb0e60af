package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

func testContext(t *testing.T, target string, header http.Header) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if header != nil {
		req.Header = header
	}
	c.Request = req
	return c
}

func TestTokenRoundTrip(t *testing.T) {
	maker := NewTokenMaker("test-secret", time.Hour)
	token, err := maker.CreateToken("user-42")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	userID, err := maker.ExtractUserID(testContext(t, "/api/v1/users/me", header))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("user id = %q", userID)
	}
}

func TestTokenFromQueryParameter(t *testing.T) {
	maker := NewTokenMaker("test-secret", time.Hour)
	token, err := maker.CreateToken("user-42")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	userID, err := maker.ExtractUserID(testContext(t, "/ws/batches/b1?token="+token, nil))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("user id = %q", userID)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenMaker("secret-a", time.Hour).CreateToken("user-42")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	if _, err := NewTokenMaker("secret-b", time.Hour).ExtractUserID(testContext(t, "/", header)); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	maker := NewTokenMaker("test-secret", time.Hour)
	stale := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-42",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	token, err := stale.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	if _, err := maker.ExtractUserID(testContext(t, "/", header)); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestTokenMissing(t *testing.T) {
	maker := NewTokenMaker("test-secret", time.Hour)
	if _, err := maker.ExtractUserID(testContext(t, "/", nil)); err == nil {
		t.Fatal("request without token accepted")
	}
}
