package apikeys

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/burrow-app/burrow/pkg/burrow/auth"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTest(t *testing.T) (*gorm.DB, *models.User, *gin.Engine) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	user := models.User{Email: "reader@example.com", PasswordHash: "x", Name: "Reader", SystemRole: models.SystemRoleUser}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	rg := router.Group("/", func(c *gin.Context) {
		c.Set(auth.ContextKeyUserID, user.ID)
		c.Next()
	})
	NewHandler(db).RegisterRoutes(rg)
	return db, &user, router
}

func TestCreateAPIKeyShownOnce(t *testing.T) {
	db, user, router := setupTest(t)

	body := bytes.NewBufferString(`{"description": "CLI access"}`)
	req := httptest.NewRequest("POST", "/api-keys", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp CreateAPIKeyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Key) != KeyLength*2 {
		t.Errorf("Expected %d-char hex key, got %d chars", KeyLength*2, len(resp.Key))
	}
	if !strings.HasPrefix(resp.Key, resp.KeyPrefix) {
		t.Error("Expected prefix to match the key")
	}

	// The stored record holds only the hash.
	var stored models.APIKey
	if err := db.Where("user_id = ?", user.ID).First(&stored).Error; err != nil {
		t.Fatalf("Failed to load key: %v", err)
	}
	if stored.KeyHash == resp.Key {
		t.Error("Expected key to be stored hashed")
	}
	if stored.KeyHash != hashAPIKey(resp.Key) {
		t.Error("Expected stored hash to match the key")
	}

	// Listing exposes the prefix, never the key or hash.
	req = httptest.NewRequest("GET", "/api-keys", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), resp.Key) || strings.Contains(w.Body.String(), stored.KeyHash) {
		t.Error("Expected list to omit key material")
	}
}

func TestValidateAPIKey(t *testing.T) {
	db, user, _ := setupTest(t)

	key, err := generateAPIKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	record := models.APIKey{UserID: user.ID, KeyHash: hashAPIKey(key), KeyPrefix: key[:KeyPrefixLength]}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	found, err := ValidateAPIKey(db, key)
	if err != nil {
		t.Fatalf("Expected key to validate: %v", err)
	}
	if found.UserID != user.ID {
		t.Errorf("Expected key owner %d, got %d", user.ID, found.UserID)
	}

	if _, err := ValidateAPIKey(db, "deadbeef"); err == nil {
		t.Error("Expected unknown key to be rejected")
	}
}

func TestCombinedAuthMiddleware(t *testing.T) {
	db, user, _ := setupTest(t)

	key, _ := generateAPIKey()
	record := models.APIKey{UserID: user.ID, KeyHash: hashAPIKey(key), KeyPrefix: key[:KeyPrefixLength]}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	router := gin.New()
	router.GET("/whoami", CombinedAuthMiddleware(db), func(c *gin.Context) {
		userID, _ := auth.GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	cases := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"api key via bearer", "Authorization", "Bearer " + key, http.StatusOK},
		{"api key via x-api-key", "X-API-Key", key, http.StatusOK},
		{"jwt via bearer", "Authorization", "", http.StatusOK},
		{"garbage key", "Authorization", "Bearer 0123456789abcdef", http.StatusUnauthorized},
		{"missing header", "", "", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tc.name == "jwt via bearer" {
				token, err := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole))
				if err != nil {
					t.Fatalf("Failed to generate token: %v", err)
				}
				req.Header.Set("Authorization", "Bearer "+token)
			} else if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Errorf("Expected %d, got %d: %s", tc.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestDeleteAPIKey(t *testing.T) {
	db, user, router := setupTest(t)

	key, _ := generateAPIKey()
	record := models.APIKey{UserID: user.ID, KeyHash: hashAPIKey(key), KeyPrefix: key[:KeyPrefixLength]}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	req := httptest.NewRequest("DELETE", "/api-keys/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	if _, err := ValidateAPIKey(db, key); err == nil {
		t.Error("Expected deleted key to stop validating")
	}
}
