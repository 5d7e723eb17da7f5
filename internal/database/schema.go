package database

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

// Job is one submitted job as stored by the local server. Identifiers are
// small integers, as on a real PROMINENCE server.
type Job struct {
	Id int `gorm:"primaryKey;autoIncrement"`

	Name         string
	Status       string `gorm:"size:20;not null"`
	StatusReason string

	Description datatypes.JSON

	CreateTime time.Time
	StartTime  sql.NullTime
	EndTime    sql.NullTime

	StdoutPath string
	StderrPath string

	Outputs datatypes.JSON
}
