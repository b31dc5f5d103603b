// burrow-admin is the operator CLI: admin account creation, feed refresh
// runs suitable for cron, and full library exports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/burrow-app/burrow/pkg/burrow/auth"
	"github.com/burrow-app/burrow/pkg/burrow/config"
	"github.com/burrow-app/burrow/pkg/burrow/database"
	"github.com/burrow-app/burrow/pkg/burrow/feeds"
	"github.com/burrow-app/burrow/pkg/burrow/fetch"
	"github.com/burrow-app/burrow/pkg/burrow/importexport"
	"github.com/burrow-app/burrow/pkg/burrow/links"
	"github.com/burrow-app/burrow/pkg/burrow/models"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "burrow-admin",
		Usage: "administrative tasks for a Burrow instance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "path to the sqlite database (defaults to the configured DB_PATH)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "create-admin",
				Usage: "create an admin user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "name", Value: "Admin"},
				},
				Action: createAdmin,
			},
			{
				Name:   "refresh-feeds",
				Usage:  "poll every active feed once, suitable for cron",
				Action: refreshFeeds,
			},
			{
				Name:  "export-user-data",
				Usage: "dump a user's links, tags, feeds, and notes as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "out", Usage: "output file (defaults to stdout)"},
				},
				Action: exportUserData,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openDB(c *cli.Context) (*gorm.DB, config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, cfg, err
	}

	dbPath := c.String("db")
	if dbPath == "" {
		dbPath = cfg.DBPath
	}

	if err := database.Connect(dbPath); err != nil {
		return nil, cfg, fmt.Errorf("connect to database: %w", err)
	}
	db := database.GetDB()

	if err := models.AutoMigrate(db); err != nil {
		return nil, cfg, fmt.Errorf("run migrations: %w", err)
	}
	return db, cfg, nil
}

func createAdmin(c *cli.Context) error {
	db, _, err := openDB(c)
	if err != nil {
		return err
	}

	email := c.String("email")
	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		return fmt.Errorf("user %s already exists", email)
	}

	hashed, err := auth.HashPassword(c.String("password"))
	if err != nil {
		return err
	}

	user := models.User{
		Email:        email,
		Name:         c.String("name"),
		PasswordHash: hashed,
		SystemRole:   models.SystemRoleAdmin,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		settings := models.UserSetting{UserID: user.ID}
		return tx.Create(&settings).Error
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created admin user %s (ID %d)\n", user.Email, user.ID)
	return nil
}

func refreshFeeds(c *cli.Context) error {
	db, cfg, err := openDB(c)
	if err != nil {
		return err
	}

	fetcher := fetch.NewFetcher(db, cfg.FetchTimeout)
	repo := links.NewRepository(db, fetcher)
	poller := feeds.NewPoller(db, repo, cfg.FetchTimeout)

	return poller.RefreshAll(context.Background())
}

func exportUserData(c *cli.Context) error {
	db, _, err := openDB(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := db.Where("email = ?", c.String("email")).First(&user).Error; err != nil {
		return fmt.Errorf("user %s not found", c.String("email"))
	}

	export, err := importexport.ExportUserData(db, user.ID)
	if err != nil {
		return err
	}

	out := os.Stdout
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}
