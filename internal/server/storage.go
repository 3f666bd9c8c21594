package server

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chatterm/pkg/chat"
)

// Connect opens (or creates) the database and seeds the default
// channels. Use ":memory:" for tests.
func Connect(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&User{}, &Channel{}, &Message{}); err != nil {
		return nil, err
	}

	if err := seedDefaultChannels(db); err != nil {
		return nil, err
	}
	return db, nil
}

// seedDefaultChannels ensures "general" and "random" exist and are
// marked non-removable.
func seedDefaultChannels(db *gorm.DB) error {
	for _, name := range chat.DefaultChannelNames {
		var existing Channel
		err := db.First(&existing, "name = ?", name).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&Channel{Name: name, Removable: false}).Error; err != nil {
			return err
		}
	}
	return nil
}
