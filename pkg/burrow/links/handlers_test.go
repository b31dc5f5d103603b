package links

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/burrow-app/burrow/pkg/burrow/auth"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type stubSummarizer struct {
	summary string
	err     error
}

func (s *stubSummarizer) Summarize(ctx context.Context, link *models.Link) (*models.Link, error) {
	if s.err != nil {
		return nil, s.err
	}
	link.Summary = s.summary
	return link, nil
}

type stubArchiver struct {
	archive *models.LinkArchive
	err     error
}

func (s *stubArchiver) CreateArchive(ctx context.Context, userID uint, link *models.Link) (*models.LinkArchive, error) {
	return s.archive, s.err
}

func setupTestRouter(t *testing.T, db *gorm.DB, userID uint) (*gin.Engine, *Repository) {
	gin.SetMode(gin.TestMode)
	repo := NewRepository(db, &countingFetcher{html: testPageHTML})
	handler := NewHandler(db, repo, &stubSummarizer{summary: "A short summary."}, &stubArchiver{})

	router := gin.New()
	rg := router.Group("/", func(c *gin.Context) {
		c.Set(auth.ContextKeyUserID, userID)
		c.Next()
	})
	handler.RegisterRoutes(rg)
	return router, repo
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAddLinkEndpoint(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "reader@example.com")
	router, _ := setupTestRouter(t, db, user.ID)

	w := doJSON(router, "POST", "/links", gin.H{"url": "https://blog.example.com/raft"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Link    models.Link `json:"link"`
		Created bool        `json:"created"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !resp.Created {
		t.Error("Expected created=true")
	}
	if resp.Link.Title != "Understanding Raft" {
		t.Errorf("Expected extracted title, got %q", resp.Link.Title)
	}

	// Saving the same URL again returns the existing link with 200.
	w = doJSON(router, "POST", "/links", gin.H{"url": "https://blog.example.com/raft"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on duplicate, got %d", w.Code)
	}
}

func TestAddLinkRejectsBadURL(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "reader@example.com")
	router, _ := setupTestRouter(t, db, user.ID)

	w := doJSON(router, "POST", "/links", gin.H{"url": "not a url"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestGetLinkMarksViewed(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "reader@example.com")
	router, repo := setupTestRouter(t, db, user.ID)

	link, _, err := repo.GetOrCreate(context.Background(), "https://blog.example.com/raft", user.ID, nil)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	w := doJSON(router, "GET", fmt.Sprintf("/links/%d", link.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var stored models.Link
	if err := db.First(&stored, link.ID).Error; err != nil {
		t.Fatalf("Failed to reload link: %v", err)
	}
	if !stored.IsRead() {
		t.Error("Expected link to be marked viewed")
	}
}

func TestGetLinkOwnership(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	repo := NewRepository(db, &countingFetcher{html: testPageHTML})
	link, _, err := repo.GetOrCreate(context.Background(), "https://blog.example.com/raft", alice.ID, nil)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	router, _ := setupTestRouter(t, db, bob.ID)
	w := doJSON(router, "GET", fmt.Sprintf("/links/%d", link.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another user's link, got %d", w.Code)
	}
}

func TestToggleReadAction(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "reader@example.com")
	router, repo := setupTestRouter(t, db, user.ID)

	link, _, err := repo.GetOrCreate(context.Background(), "https://blog.example.com/raft", user.ID, nil)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	path := fmt.Sprintf("/links/%d/actions", link.ID)

	w := doJSON(router, "POST", path, gin.H{"action": "toggle-read"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var stored models.Link
	db.First(&stored, link.ID)
	if !stored.IsRead() {
		t.Error("Expected link read after first toggle")
	}

	w = doJSON(router, "POST", path, gin.H{"action": "toggle-read"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	// Reset before reloading: scanning a NULL column does not clear a
	// pointer field left over from the previous First.
	stored = models.Link{}
	db.First(&stored, link.ID)
	if stored.IsRead() {
		t.Error("Expected link unread after second toggle")
	}
}

func TestDeleteAction(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "reader@example.com")
	router, repo := setupTestRouter(t, db, user.ID)

	link, _, err := repo.GetOrCreate(context.Background(), "https://blog.example.com/raft", user.ID, nil)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	note := models.Note{UserID: user.ID, LinkID: &link.ID, Content: "keep me"}
	if err := db.Create(&note).Error; err != nil {
		t.Fatalf("Failed to create note: %v", err)
	}

	w := doJSON(router, "POST", fmt.Sprintf("/links/%d/actions", link.ID), gin.H{"action": "delete"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var count int64
	db.Model(&models.Link{}).Where("id = ?", link.ID).Count(&count)
	if count != 0 {
		t.Error("Expected link to be deleted")
	}

	var storedNote models.Note
	if err := db.First(&storedNote, note.ID).Error; err != nil {
		t.Fatalf("Expected note to survive link deletion: %v", err)
	}
	if storedNote.LinkID != nil {
		t.Error("Expected note link reference to be nulled")
	}
}

func TestUnknownAction(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "reader@example.com")
	router, repo := setupTestRouter(t, db, user.ID)

	link, _, err := repo.GetOrCreate(context.Background(), "https://blog.example.com/raft", user.ID, nil)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	w := doJSON(router, "POST", fmt.Sprintf("/links/%d/actions", link.ID), gin.H{"action": "frobnicate"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown action, got %d", w.Code)
	}
}

func TestSetTagsEndpoint(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "reader@example.com")
	router, repo := setupTestRouter(t, db, user.ID)

	link, _, err := repo.GetOrCreate(context.Background(), "https://blog.example.com/raft", user.ID, nil)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	w := doJSON(router, "PUT", fmt.Sprintf("/links/%d/tags", link.ID), gin.H{"names": []string{"Distributed Systems", "consensus"}})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var stored models.Link
	if err := db.Preload("Tags").First(&stored, link.ID).Error; err != nil {
		t.Fatalf("Failed to reload link: %v", err)
	}
	if len(stored.Tags) != 2 {
		t.Fatalf("Expected 2 tags, got %d", len(stored.Tags))
	}

	// Replacing with a smaller set drops the rest.
	w = doJSON(router, "PUT", fmt.Sprintf("/links/%d/tags", link.ID), gin.H{"names": []string{"consensus"}})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	db.Preload("Tags").First(&stored, link.ID)
	if len(stored.Tags) != 1 || stored.Tags[0].Slug != "consensus" {
		t.Errorf("Expected only the consensus tag, got %v", stored.Tags)
	}
}

func TestListLinksFilters(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "reader@example.com")
	router, repo := setupTestRouter(t, db, user.ID)

	first, _, err := repo.GetOrCreate(context.Background(), "https://blog.example.com/raft", user.ID, nil)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	otherPage := "<html><head><title>Sourdough Basics</title></head><body><article><p>Flour, water, salt, and patience make a loaf worth waiting for.</p></article></body></html>"
	if _, _, err := repo.GetOrCreateWithContent(context.Background(), "https://bread.example.com/sourdough", otherPage, user.ID, nil); err != nil {
		t.Fatalf("GetOrCreateWithContent failed: %v", err)
	}

	// Search hits only the matching article.
	w := doJSON(router, "GET", "/links?q=raft", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Links []models.Link `json:"links"`
		Total int64         `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Total != 1 || len(resp.Links) != 1 || resp.Links[0].ID != first.ID {
		t.Errorf("Expected only the raft link, got total=%d links=%v", resp.Total, resp.Links)
	}

	// Unread filter excludes viewed links.
	doJSON(router, "GET", fmt.Sprintf("/links/%d", first.ID), nil)
	w = doJSON(router, "GET", "/links?read=false", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("Expected 1 unread link, got %d", resp.Total)
	}
	for _, l := range resp.Links {
		if l.ID == first.ID {
			t.Error("Expected viewed link to be excluded from unread filter")
		}
	}
}

func TestSearchRanksTitleMatchesFirst(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "reader@example.com")
	router, _ := setupTestRouter(t, db, user.ID)

	now := time.Now()
	bodyHit := models.Link{
		UserID: user.ID, OriginalURL: "https://blog.example.com/one",
		Title: "Weekend Notes", RawTextContent: "a long digression about sourdough starters",
		AddedAt: now,
	}
	titleHit := models.Link{
		UserID: user.ID, OriginalURL: "https://blog.example.com/two",
		Title: "Sourdough Basics", RawTextContent: "flour, water, salt",
		AddedAt: now.Add(-time.Hour),
	}
	excerptHit := models.Link{
		UserID: user.ID, OriginalURL: "https://blog.example.com/three",
		Title: "Kitchen Diary", Excerpt: "mostly sourdough this week",
		RawTextContent: "sourdough again", AddedAt: now.Add(-2 * time.Hour),
	}
	for _, l := range []*models.Link{&bodyHit, &titleHit, &excerptHit} {
		if err := db.Create(l).Error; err != nil {
			t.Fatalf("Failed to create link: %v", err)
		}
	}

	w := doJSON(router, "GET", "/links?q=sourdough", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Links []models.Link `json:"links"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Links) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(resp.Links))
	}
	// Title match first, excerpt match next, body match last, even though
	// the body match is the most recent.
	want := []uint{titleHit.ID, excerptHit.ID, bodyHit.ID}
	for i, id := range want {
		if resp.Links[i].ID != id {
			t.Errorf("Expected link %d at position %d, got %d", id, i, resp.Links[i].ID)
		}
	}
}

func TestGetArchiveEndpoint(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "reader@example.com")
	router, repo := setupTestRouter(t, db, user.ID)

	link, _, err := repo.GetOrCreate(context.Background(), "https://blog.example.com/raft", user.ID, nil)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	w := doJSON(router, "GET", fmt.Sprintf("/links/%d/archive", link.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 before archiving, got %d", w.Code)
	}

	archive := models.LinkArchive{UserID: user.ID, LinkID: link.ID, Content: "<html>archived</html>"}
	if err := db.Create(&archive).Error; err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}

	w = doJSON(router, "GET", fmt.Sprintf("/links/%d/archive", link.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w.Body.String() != "<html>archived</html>" {
		t.Errorf("Expected archive body, got %q", w.Body.String())
	}
}
