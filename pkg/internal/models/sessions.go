package models

type SessionStatus = string

const (
	SessionStatusActive    = SessionStatus("active")
	SessionStatusCompleted = SessionStatus("completed")
	SessionStatusCancelled = SessionStatus("cancelled")
)

// CollabSession is a collaborative editing workspace. Live presence inside
// it is kept in memory only; the row exists so sessions survive page loads.
type CollabSession struct {
	BaseModel

	Alias       string        `json:"alias" gorm:"uniqueIndex"`
	AccountName string        `json:"account_name"`
	Status      SessionStatus `json:"status"`
}
