package entity

import (
	"time"

	availability "smartschedule/modules/availability/entity"
)

// BusyIntervalRecord is one stored busy period, with instants in unix seconds.
type BusyIntervalRecord struct {
	ID            string `db:"id" json:"id"`
	ParticipantID string `db:"participant_id" json:"participant_id"`
	StartTs       int64  `db:"start_ts" json:"start_ts"`
	EndTs         int64  `db:"end_ts" json:"end_ts"`
	Status        string `db:"status" json:"status"`
}

func NewBusyIntervalRecord(id string, b availability.BusyInterval) BusyIntervalRecord {
	status := b.Status
	if status == "" {
		status = availability.StatusBusy
	}
	return BusyIntervalRecord{
		ID:            id,
		ParticipantID: b.ParticipantID,
		StartTs:       b.Start.Unix(),
		EndTs:         b.End.Unix(),
		Status:        string(status),
	}
}

func (r BusyIntervalRecord) ToBusyInterval() availability.BusyInterval {
	return availability.BusyInterval{
		TimeInterval: availability.TimeInterval{
			Start: time.Unix(r.StartTs, 0).UTC(),
			End:   time.Unix(r.EndTs, 0).UTC(),
		},
		ParticipantID: r.ParticipantID,
		Status:        availability.BusyStatus(r.Status),
	}
}
