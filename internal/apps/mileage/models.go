package mileage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MileageLog is one generated log covering a date range for one vehicle.
type MileageLog struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Vehicle       string    `gorm:"size:100;not null" json:"vehicle"`
	Purpose       string    `gorm:"size:255" json:"purpose"`
	StartDate     time.Time `gorm:"not null" json:"start_date"`
	EndDate       time.Time `gorm:"not null" json:"end_date"`
	StartOdometer int       `json:"start_odometer"`
	EndOdometer   int       `json:"end_odometer"`
	TotalMiles    int       `json:"total_miles"`
	TripCount     int       `json:"trip_count"`
	Trips         []Trip    `gorm:"foreignKey:LogID" json:"trips,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Trip is a single day's entry within a log.
type Trip struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LogID         uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Date          time.Time `gorm:"not null" json:"date"`
	StartOdometer int       `json:"start_odometer"`
	EndOdometer   int       `json:"end_odometer"`
	Miles         int       `json:"miles"`
	Purpose       string    `gorm:"size:255" json:"purpose"`
}

func (l *MileageLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (t *Trip) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// --- DTOs ---

type GenerateLogRequest struct {
	Vehicle       string `json:"vehicle"`
	Purpose       string `json:"purpose"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	StartOdometer int    `json:"start_odometer"`
	EndOdometer   int    `json:"end_odometer"`
}

type ListLogsResponse struct {
	Logs  []MileageLog `json:"logs"`
	Total int64        `json:"total"`
}
