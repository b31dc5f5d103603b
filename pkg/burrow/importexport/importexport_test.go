package importexport

import (
	"context"
	"testing"
	"time"

	"github.com/burrow-app/burrow/pkg/burrow/links"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	user := models.User{Email: email, PasswordHash: "x", Name: "Reader", SystemRole: models.SystemRoleUser}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

type failFetcher struct{}

func (failFetcher) Fetch(ctx context.Context, rawURL string, userID uint) (string, error) {
	return "", assert.AnError
}

func page(title string) string {
	return "<html><head><title>" + title + "</title></head><body><article><p>Body text long enough to say something about " + title + " with a few extra words.</p></article></body></html>"
}

func TestImportPagesIsolatesFailures(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "reader@example.com")
	repo := links.NewRepository(db, failFetcher{})

	items := []ImportItem{
		{URL: "https://a.example.com/one", HTML: page("One")},
		{URL: "://not-a-parseable-url", HTML: "<html></html>"},
		{URL: "https://a.example.com/two", HTML: page("Two")},
	}

	results := ImportPages(context.Background(), repo, user.ID, items)
	require.Len(t, results, 3)

	assert.True(t, results[0].Created)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[1].Error)
	assert.True(t, results[2].Created, "an earlier failure must not abort later items")

	var count int64
	db.Model(&models.Link{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestImportPagesDeduplicates(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "reader@example.com")
	repo := links.NewRepository(db, failFetcher{})

	items := []ImportItem{
		{URL: "https://a.example.com/one", HTML: page("One")},
		{URL: "https://a.example.com/ONE", HTML: page("One Again")},
	}

	results := ImportPages(context.Background(), repo, user.ID, items)
	require.Len(t, results, 2)
	assert.True(t, results[0].Created)
	assert.False(t, results[1].Created)
	assert.Equal(t, results[0].LinkID, results[1].LinkID)
}

func TestImportTitleOverride(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "reader@example.com")
	repo := links.NewRepository(db, failFetcher{})

	results := ImportPages(context.Background(), repo, user.ID, []ImportItem{
		{URL: "https://a.example.com/one", HTML: page("Extracted"), Title: "Supplied"},
	})
	require.Len(t, results, 1)
	require.Empty(t, results[0].Error)

	var link models.Link
	require.NoError(t, db.First(&link, results[0].LinkID).Error)
	assert.Equal(t, "Supplied", link.Title)
}

func TestExportUserDataScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")

	repo := links.NewRepository(db, failFetcher{})
	_, _, err := repo.GetOrCreateWithContent(context.Background(), "https://a.example.com/one", page("Alice Post"), alice.ID, nil)
	require.NoError(t, err)
	bobLink, _, err := repo.GetOrCreateWithContent(context.Background(), "https://b.example.com/two", page("Bob Post"), bob.ID, nil)
	require.NoError(t, err)

	tag := models.Tag{UserID: bob.ID, Name: "Reading"}
	require.NoError(t, db.Create(&tag).Error)
	feed := models.Feed{UserID: bob.ID, FeedURL: "https://b.example.com/rss", FeedName: "Bob Blog"}
	require.NoError(t, db.Create(&feed).Error)
	note := models.Note{UserID: bob.ID, LinkID: &bobLink.ID, Content: "good post", SavedAt: time.Now()}
	require.NoError(t, db.Create(&note).Error)

	export, err := ExportUserData(db, bob.ID)
	require.NoError(t, err)

	assert.Equal(t, "bob@example.com", export.User.Email)
	require.Len(t, export.Links, 1)
	assert.Equal(t, bobLink.ID, export.Links[0].ID)
	assert.Len(t, export.Tags, 1)
	assert.Len(t, export.Feeds, 1)
	assert.Len(t, export.Notes, 1)
	assert.False(t, export.ExportedAt.IsZero())
}
