package model

import "time"

// SchemaVersion is written into every persisted session and gameplay-log record.
const SchemaVersion = 1

// DownloadRecord represents one installed content item in the library manifest.
type DownloadRecord struct {
	Slug         string    `json:"-"`
	Filename     string    `json:"filename"`
	DownloadedAt time.Time `json:"downloadedAt"`
	Size         int64     `json:"size"`
}

// TransferProgress is an in-memory snapshot of an in-flight transfer.
// TotalBytes is 0 when the source does not advertise a length.
type TransferProgress struct {
	Slug             string
	BytesTransferred int64
	TotalBytes       int64
}

// LevelPlayStats holds the statistics of one level as recorded in a save.
// The totals are properties of the level design, not of the playthrough.
type LevelPlayStats struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Kills        int    `json:"kills"`
	TotalKills   int    `json:"totalKills"`
	Items        int    `json:"items"`
	TotalItems   int    `json:"totalItems"`
	Secrets      int    `json:"secrets"`
	TotalSecrets int    `json:"totalSecrets"`
	TimeTics     int    `json:"timeTics"`
}

// PlaySession is one captured save-file snapshot. Records are immutable once written.
type PlaySession struct {
	SchemaVersion int              `json:"schemaVersion"`
	ContentSlug   string           `json:"contentSlug"`
	StartLevel    string           `json:"startLevel"`
	Skill         Skill            `json:"skill"`
	SourceFile    string           `json:"sourceFile"`
	CapturedAt    time.Time        `json:"capturedAt"`
	Levels        []LevelPlayStats `json:"levels"`
}

// EventType tags a GameplayEvent.
type EventType string

const (
	EventLevelEnter EventType = "level_enter"
	EventDeath      EventType = "death"
	EventPickup     EventType = "pickup"
	EventSecret     EventType = "secret"
	EventMessage    EventType = "message"
)

// GameplayEvent is one classified console line. Only the fields relevant to
// Type are populated; Line always carries the original text.
type GameplayEvent struct {
	Type    EventType `json:"type"`
	TimeMs  int64     `json:"timeMs"`
	Line    string    `json:"line"`
	MapID   string    `json:"mapId,omitempty"`
	MapName string    `json:"mapName,omitempty"`
	Cause   string    `json:"cause,omitempty"`
	Item    string    `json:"item,omitempty"`
}

// GameplayLog is a persisted console transcript of one play session.
type GameplayLog struct {
	SchemaVersion int             `json:"schemaVersion"`
	SessionID     string          `json:"sessionId"`
	ContentSlug   string          `json:"contentSlug"`
	Skill         Skill           `json:"skill"`
	StartedAt     time.Time       `json:"startedAt"`
	EndedAt       time.Time       `json:"endedAt"`
	DurationMs    int64           `json:"durationMs"`
	Events        []GameplayEvent `json:"events"`
	RawLog        string          `json:"rawLog"`
}

// Operation is a row in the operation history database.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
}

// TransferRecord is a row in the transfer history. OperationID is 0 when the
// transfer was not started by a tracked operation.
type TransferRecord struct {
	ID          int64
	OperationID int64
	Slug        string
	Source      string
	Bytes       int64
	Status      string
	Error       string
	FinishedAt  time.Time
}
