package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BusinessCategory string

const (
	CategoryGym           BusinessCategory = "gym"
	CategorySpa           BusinessCategory = "spa"
	CategoryYoga          BusinessCategory = "yoga"
	CategoryFitnessStudio BusinessCategory = "fitness_studio"
)

// BusinessProfile is the provider identity for a gym/spa/studio owner.
// A user owns at most one business profile.
type BusinessProfile struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	Name     string           `gorm:"type:varchar(120);not null" json:"name"`
	Category BusinessCategory `gorm:"type:varchar(30);not null;index" json:"category"`
	PhotoURL string           `gorm:"type:text" json:"photo_url"`
	City     string           `gorm:"type:varchar(120)" json:"city"`
	About    string           `gorm:"type:text" json:"about"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *BusinessProfile) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// TrainerProfile is the provider identity for an independent trainer.
type TrainerProfile struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	DisplayName string `gorm:"type:varchar(120);not null" json:"display_name"`
	Specialty   string `gorm:"type:varchar(120)" json:"specialty"`
	PhotoURL    string `gorm:"type:text" json:"photo_url"`
	City        string `gorm:"type:varchar(120)" json:"city"`
	About       string `gorm:"type:text" json:"about"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *TrainerProfile) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
