package model

import (
	"time"
)

// ReadingStatus is the outcome of a single occupancy fetch.
type ReadingStatus string

const (
	StatusSuccess ReadingStatus = "success"
	StatusError   ReadingStatus = "error"
)

// OccupancyReading is one snapshot of the remote channel. It is built fresh
// for every fetch and never mutated afterwards.
type OccupancyReading struct {
	Occupancy    int           `json:"occupancy"`
	LastUpdated  string        `json:"last_updated"`
	Status       ReadingStatus `json:"status"`
	ErrorMessage string        `json:"error,omitempty"`
}

// NewSuccessReading builds a successful reading.
func NewSuccessReading(occupancy int, lastUpdated string) OccupancyReading {
	return OccupancyReading{
		Occupancy:   occupancy,
		LastUpdated: lastUpdated,
		Status:      StatusSuccess,
	}
}

// NewErrorReading builds the zeroed reading returned for any failed fetch.
func NewErrorReading(err error) OccupancyReading {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return OccupancyReading{
		Occupancy:    0,
		LastUpdated:  "",
		Status:       StatusError,
		ErrorMessage: msg,
	}
}

// OK reports whether the fetch succeeded.
func (r OccupancyReading) OK() bool {
	return r.Status == StatusSuccess
}

// OccupancySample is a distinct reading persisted by the recorder.
type OccupancySample struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	Occupancy      int       `gorm:"not null" json:"occupancy"`
	EntryCreatedAt string    `gorm:"uniqueIndex;size:64;not null" json:"entry_created_at"` // Remote timestamp, verbatim
	ObservedAt     time.Time `gorm:"not null;index" json:"observed_at"`
}
