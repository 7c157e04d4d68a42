package mileage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	dateLayout   = "2006-01-02"
	maxRangeDays = 366
)

var (
	ErrVehicleRequired = errors.New("vehicle is required")
	ErrInvalidDate     = errors.New("dates must be formatted as YYYY-MM-DD")
	ErrInvalidRange    = errors.New("end date must not be before start date")
	ErrRangeTooLong    = errors.New("date range must not exceed 366 days")
	ErrInvalidOdometer = errors.New("end odometer must be greater than start odometer")
	ErrNoBusinessDays  = errors.New("date range contains no business days")
	ErrLogNotFound     = errors.New("mileage log not found")
)

type LogService struct {
	db *gorm.DB
}

func NewLogService(db *gorm.DB) *LogService {
	return &LogService{db: db}
}

// Generate builds and stores a log whose trips spread the odometer distance
// over the business days of the range.
func (s *LogService) Generate(ctx context.Context, userID uuid.UUID, req GenerateLogRequest) (*MileageLog, error) {
	vehicle := strings.TrimSpace(req.Vehicle)
	if vehicle == "" {
		return nil, ErrVehicleRequired
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, ErrInvalidDate
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	if end.Sub(start) >= maxRangeDays*24*time.Hour {
		return nil, ErrRangeTooLong
	}
	if req.StartOdometer < 0 || req.EndOdometer <= req.StartOdometer {
		return nil, ErrInvalidOdometer
	}

	days := BusinessDays(start, end)
	if len(days) == 0 {
		return nil, ErrNoBusinessDays
	}

	purpose := strings.TrimSpace(req.Purpose)
	if purpose == "" {
		purpose = "Business travel"
	}

	total := req.EndOdometer - req.StartOdometer
	split := SplitMiles(total, len(days))

	log := MileageLog{
		ID:            uuid.New(),
		UserID:        userID,
		Vehicle:       vehicle,
		Purpose:       purpose,
		StartDate:     start,
		EndDate:       end,
		StartOdometer: req.StartOdometer,
		EndOdometer:   req.EndOdometer,
		TotalMiles:    total,
		TripCount:     len(days),
		Trips:         make([]Trip, 0, len(days)),
	}

	odo := req.StartOdometer
	for i, day := range days {
		log.Trips = append(log.Trips, Trip{
			ID:            uuid.New(),
			LogID:         log.ID,
			Date:          day,
			StartOdometer: odo,
			EndOdometer:   odo + split[i],
			Miles:         split[i],
			Purpose:       purpose,
		})
		odo += split[i]
	}

	if err := s.db.WithContext(ctx).Create(&log).Error; err != nil {
		return nil, fmt.Errorf("failed to store mileage log: %w", err)
	}
	return &log, nil
}

func (s *LogService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]MileageLog, int64, error) {
	var logs []MileageLog
	var total int64

	db := s.db.WithContext(ctx)
	if err := db.Model(&MileageLog{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	return logs, total, err
}

// Get returns the log with its trips. Logs of other users are reported as not found.
func (s *LogService) Get(ctx context.Context, userID, logID uuid.UUID) (*MileageLog, error) {
	var log MileageLog
	err := s.db.WithContext(ctx).
		Preload("Trips", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC") }).
		Where("id = ? AND user_id = ?", logID, userID).
		First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLogNotFound
		}
		return nil, err
	}
	return &log, nil
}

func (s *LogService) Delete(ctx context.Context, userID, logID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", logID, userID).Delete(&MileageLog{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrLogNotFound
		}
		return tx.Where("log_id = ?", logID).Delete(&Trip{}).Error
	})
}

// WriteCSV renders a log as a spreadsheet-friendly CSV with a totals row.
func WriteCSV(w io.Writer, log *MileageLog) error {
	cw := csv.NewWriter(w)
	rows := [][]string{{"Date", "Vehicle", "Purpose", "Start Odometer", "End Odometer", "Miles"}}
	for _, t := range log.Trips {
		rows = append(rows, []string{
			t.Date.Format(dateLayout),
			log.Vehicle,
			t.Purpose,
			strconv.Itoa(t.StartOdometer),
			strconv.Itoa(t.EndOdometer),
			strconv.Itoa(t.Miles),
		})
	}
	rows = append(rows, []string{"Total", "", "", strconv.Itoa(log.StartOdometer), strconv.Itoa(log.EndOdometer), strconv.Itoa(log.TotalMiles)})

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// DeleteUserData removes every log and trip of a user inside tx.
func DeleteUserData(tx *gorm.DB, userID uuid.UUID) error {
	var ids []uuid.UUID
	if err := tx.Model(&MileageLog{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := tx.Where("log_id IN ?", ids).Delete(&Trip{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("user_id = ?", userID).Delete(&MileageLog{}).Error
}

// BusinessDays lists Monday to Friday dates from start to end inclusive, at UTC midnight.
func BusinessDays(start, end time.Time) []time.Time {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}
	return days
}

// SplitMiles divides total into n parts differing by at most one, larger parts first.
func SplitMiles(total, n int) []int {
	if n <= 0 {
		return nil
	}
	parts := make([]int, n)
	base, rem := total/n, total%n
	for i := range parts {
		parts[i] = base
		if i < rem {
			parts[i]++
		}
	}
	return parts
}
