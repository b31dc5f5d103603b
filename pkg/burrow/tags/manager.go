// Package tags manages user-scoped labels and their association with links.
package tags

import (
	"errors"
	"strings"

	"github.com/burrow-app/burrow/pkg/burrow/models"
	"gorm.io/gorm"
)

// ErrTagOwnership is returned when a tag belonging to one user would be
// attached to another user's link.
var ErrTagOwnership = errors.New("tag belongs to a different user")

// Manager performs tag operations for a single database.
type Manager struct {
	db *gorm.DB
}

// NewManager creates a tag manager.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// GetOrCreate returns the user's tag with the given name, creating it if
// needed. Names are matched case-insensitively.
func (m *Manager) GetOrCreate(userID uint, name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("tag name must not be empty")
	}

	var tag models.Tag
	err := m.db.
		Where("user_id = ? AND LOWER(name) = ?", userID, strings.ToLower(name)).
		First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	tag = models.Tag{UserID: userID, Name: name}
	if err := m.db.Create(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// AddToLink attaches a tag to a link. Both must belong to the same user.
func (m *Manager) AddToLink(link *models.Link, tag *models.Tag) error {
	if tag.UserID != link.UserID {
		return ErrTagOwnership
	}
	return m.db.Model(link).Association("Tags").Append(tag)
}

// RemoveFromLink detaches a tag from a link. Removing a tag that is not
// attached is a no-op.
func (m *Manager) RemoveFromLink(link *models.Link, tag *models.Tag) error {
	if tag.UserID != link.UserID {
		return ErrTagOwnership
	}
	return m.db.Model(link).Association("Tags").Delete(tag)
}

// SetLinkTags replaces a link's tag set with tags named in names, creating
// any that do not exist yet.
func (m *Manager) SetLinkTags(link *models.Link, names []string) ([]models.Tag, error) {
	seen := make(map[string]bool)
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		tag, err := m.GetOrCreate(link.UserID, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}

	if err := m.db.Model(link).Association("Tags").Replace(&tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// ListForUser returns all of the user's tags ordered by name.
func (m *Manager) ListForUser(userID uint) ([]models.Tag, error) {
	var tags []models.Tag
	err := m.db.Where("user_id = ?", userID).Order("name").Find(&tags).Error
	return tags, err
}

// Delete removes a user's tag, detaching it from any links first.
func (m *Manager) Delete(userID, tagID uint) error {
	var tag models.Tag
	if err := m.db.Where("id = ? AND user_id = ?", tagID, userID).First(&tag).Error; err != nil {
		return err
	}
	if err := m.db.Model(&tag).Association("Links").Clear(); err != nil {
		return err
	}
	return m.db.Delete(&tag).Error
}
