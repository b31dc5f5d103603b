package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/burrow-app/burrow/pkg/burrow/apikeys"
	"github.com/burrow-app/burrow/pkg/burrow/archive"
	"github.com/burrow-app/burrow/pkg/burrow/auth"
	"github.com/burrow-app/burrow/pkg/burrow/config"
	"github.com/burrow-app/burrow/pkg/burrow/database"
	"github.com/burrow-app/burrow/pkg/burrow/feeds"
	"github.com/burrow-app/burrow/pkg/burrow/fetch"
	"github.com/burrow-app/burrow/pkg/burrow/importexport"
	"github.com/burrow-app/burrow/pkg/burrow/links"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/burrow-app/burrow/pkg/burrow/notes"
	"github.com/burrow-app/burrow/pkg/burrow/settings"
	"github.com/burrow-app/burrow/pkg/burrow/summarize"
	"github.com/burrow-app/burrow/pkg/burrow/tags"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := database.Connect(cfg.DBPath); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := database.GetDB()

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	if err := ensureAdminExists(db); err != nil {
		log.Fatalf("Failed to ensure admin user exists: %v", err)
	}

	// Wire the content pipeline and its side effects.
	fetcher := fetch.NewFetcher(db, cfg.FetchTimeout)
	repo := links.NewRepository(db, fetcher)
	dispatcher := summarize.NewDispatcher(db)
	creator := archive.NewCreator(db, cfg.SinglefileURL, cfg.SinglefileTimeout)
	poller := feeds.NewPoller(db, repo, cfg.FetchTimeout)

	repo.OnCreate(func(link *models.Link) {
		var userSettings models.UserSetting
		if err := db.Where("user_id = ?", link.UserID).First(&userSettings).Error; err != nil {
			return
		}
		if !userSettings.AutoSummarize {
			return
		}
		if _, err := dispatcher.Summarize(context.Background(), link); err != nil {
			logrus.WithError(err).WithField("link_id", link.ID).Warn("auto-summarize failed")
		}
	})

	if cfg.AutoArchive && creator.Enabled() {
		repo.OnCreate(func(link *models.Link) {
			if _, err := creator.CreateArchive(context.Background(), link.UserID, link); err != nil {
				logrus.WithError(err).WithField("link_id", link.ID).Warn("auto-archive failed")
			}
		})
	}

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok", "service": "burrow"})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(db)
		authHandler.RegisterRoutes(api.Group("/auth"))

		// Combined auth middleware (accepts JWT or API key)
		combinedAuth := apikeys.CombinedAuthMiddleware(db)

		// API keys routes (JWT only - need to be logged in to manage keys)
		apiKeysHandler := apikeys.NewHandler(db)
		apiKeysHandler.RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		// Everything else accepts JWT or API key
		linksHandler := links.NewHandler(db, repo, dispatcher, creator)
		linksHandler.RegisterRoutes(api.Group("", combinedAuth))

		tagsHandler := tags.NewHandler(db)
		tagsHandler.RegisterRoutes(api.Group("", combinedAuth))

		feedsHandler := feeds.NewHandler(db, poller)
		feedsHandler.RegisterRoutes(api.Group("", combinedAuth))

		notesHandler := notes.NewHandler(db)
		notesHandler.RegisterRoutes(api.Group("", combinedAuth))

		settingsHandler := settings.NewHandler(db)
		settingsHandler.RegisterRoutes(api.Group("", combinedAuth))

		importExportHandler := importexport.NewHandler(db, repo)
		importExportHandler.RegisterRoutes(api.Group("", combinedAuth))
	}

	log.Printf("Starting Burrow server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureAdminExists creates a default admin user if no admin exists in the
// database.
func ensureAdminExists(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := auth.HashPassword("changeme")
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        "admin@burrow.local",
		Name:         "Admin",
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&adminUser).Error; err != nil {
			return err
		}
		adminSettings := models.UserSetting{UserID: adminUser.ID}
		if err := tx.Create(&adminSettings).Error; err != nil {
			return err
		}
		log.Printf("Created default admin user: admin@burrow.local (password: changeme)")
		return nil
	})
}
