package model

import "time"

// User is an entry of the credential store used by registration and login.
type User struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	InsuredID    string      `gorm:"size:5;not null;uniqueIndex" json:"insuredId"`
	Email        string      `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Name         string      `gorm:"size:255;not null" json:"name"`
	CountryCode  CountryCode `gorm:"size:2;not null" json:"countryCode"`
	PasswordHash string      `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string { return "app_user" }
