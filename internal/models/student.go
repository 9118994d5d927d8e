package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// StudentProfile holds the in-game economy of a learner.
type StudentProfile struct {
	UserID      uint           `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Course      string         `gorm:"size:32" json:"course"`
	Points      int            `gorm:"not null;default:0" json:"points"`
	Medals      int            `gorm:"not null;default:0" json:"medals"`
	Accessories datatypes.JSON `gorm:"type:json" json:"accessories"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	User        User           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// AccessoryList decodes the owned accessories.
func (p StudentProfile) AccessoryList() []string {
	if len(p.Accessories) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(p.Accessories, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// SetAccessories encodes the owned accessories.
func (p *StudentProfile) SetAccessories(list []string) {
	if list == nil {
		list = []string{}
	}
	raw, _ := json.Marshal(list)
	p.Accessories = datatypes.JSON(raw)
}
