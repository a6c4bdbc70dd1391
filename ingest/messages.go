package ingest

import (
	"fmt"
	"strings"
)

// WellDataMessage is an asynchronous well-data save request as delivered by
// the external message bus. The schema is owned by the bus producers.
type WellDataMessage struct {
	MeasurementID int64     `json:"measurementId"`
	Column        string    `json:"column"`
	Data          []float32 `json:"data"`
}

// Validate reports why the message must be discarded, or nil.
func (m WellDataMessage) Validate() error {
	if strings.TrimSpace(m.Column) == "" {
		return fmt.Errorf("well data message for meas %d has a blank column", m.MeasurementID)
	}
	if len(m.Data) == 0 {
		return fmt.Errorf("well data message for meas %d column %q has no data", m.MeasurementID, m.Column)
	}
	return nil
}

// SubwellDataMessage is an asynchronous subwell-data save request as
// delivered by the external message bus.
type SubwellDataMessage struct {
	MeasurementID int64     `json:"measurementId"`
	WellNr        int       `json:"wellNr"`
	Column        string    `json:"column"`
	Data          []float32 `json:"data"`
}

// Validate reports why the message must be discarded, or nil.
func (m SubwellDataMessage) Validate() error {
	if strings.TrimSpace(m.Column) == "" {
		return fmt.Errorf("subwell data message for meas %d well %d has a blank column", m.MeasurementID, m.WellNr)
	}
	if len(m.Data) == 0 {
		return fmt.Errorf("subwell data message for meas %d well %d column %q has no data", m.MeasurementID, m.WellNr, m.Column)
	}
	return nil
}
