package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы событий сервиса генерации уровней
const (
	EventLevelGenerated = "level.generated"
	EventLevelDeleted   = "level.deleted"
)

// LevelGeneratedPayload — полезная нагрузка события level.generated
type LevelGeneratedPayload struct {
	LevelID   string  `json:"level_id"`
	Layout    string  `json:"layout"`
	Seed      int64   `json:"seed"`
	Scale     float64 `json:"scale"`
	NodeCount int     `json:"node_count"`
	EdgeCount int     `json:"edge_count"`
}

// LevelDeletedPayload — полезная нагрузка события level.deleted
type LevelDeletedPayload struct {
	LevelID string `json:"level_id"`
}

// NewEnvelope собирает Envelope с заполненными служебными полями.
// Payload сериализуется в JSON; ошибка сериализации здесь невозможна
// для plain-структур полезных нагрузок, поэтому глотается.
func NewEnvelope(source, eventType string, payload any) *Envelope {
	data, _ := json.Marshal(payload) //nolint:errcheck
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Priority:  5,
		Payload:   data,
	}
}
