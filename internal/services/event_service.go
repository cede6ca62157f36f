package services

import (
	"encoding/json"
	"time"

	"github.com/ambdigitalagency/hivepost/internal/database"

	"go.uber.org/zap"
)

const EventQueueKey = "analytics_events"

// AnalyticsEvent is the payload pushed to the analytics collaborator's list.
type AnalyticsEvent struct {
	OwnerType string                 `json:"owner_type"`
	OwnerID   string                 `json:"owner_id"`
	Name      string                 `json:"name"`
	Props     map[string]interface{} `json:"props,omitempty"`
	At        time.Time              `json:"at"`
}

// RecordEvent pushes an analytics event onto the redis queue. Fire and
// forget: telemetry failures never block the pipeline's critical path.
func RecordEvent(ownerType, ownerID, name string, props map[string]interface{}) {
	if database.RedisClient == nil {
		return
	}

	payload, err := json.Marshal(AnalyticsEvent{
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Name:      name,
		Props:     props,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return
	}

	if err := database.RedisClient.RPush(database.Ctx, EventQueueKey, payload).Err(); err != nil {
		zap.L().Debug("analytics event dropped", zap.String("name", name), zap.Error(err))
	}
}
