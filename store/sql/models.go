package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type ingestionRecord struct {
	bun.BaseModel `bun:"table:lead_ingestions,alias:li"`

	ID             string         `bun:"id,pk"`
	WorkspaceID    string         `bun:"workspace_id,notnull"`
	SourceID       string         `bun:"source_id,notnull"`
	Payload        map[string]any `bun:"payload,type:jsonb,notnull"`
	IdempotencyKey string         `bun:"idempotency_key"`
	Size           int            `bun:"size,notnull"`
	Status         string         `bun:"status,notnull"`
	ReceivedAt     time.Time      `bun:"received_at,nullzero,notnull"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type leadRecord struct {
	bun.BaseModel `bun:"table:leads,alias:l"`

	ID          string    `bun:"id,pk"`
	WorkspaceID string    `bun:"workspace_id,notnull"`
	Name        string    `bun:"name"`
	Email       string    `bun:"email"`
	Phone       string    `bun:"phone"`
	Status      string    `bun:"status,notnull"`
	Tags        []string  `bun:"tags,type:jsonb"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type leadIdentityRecord struct {
	bun.BaseModel `bun:"table:lead_identities,alias:lid"`

	ID              string    `bun:"id,pk"`
	WorkspaceID     string    `bun:"workspace_id,notnull"`
	LeadID          string    `bun:"lead_id,notnull"`
	IdentityType    string    `bun:"identity_type,notnull"`
	NormalizedValue string    `bun:"normalized_value,notnull"`
	RawValue        string    `bun:"raw_value"`
	SourceID        string    `bun:"source_id"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type leadEventRecord struct {
	bun.BaseModel `bun:"table:lead_events,alias:le"`

	ID          string         `bun:"id,pk"`
	WorkspaceID string         `bun:"workspace_id,notnull"`
	LeadID      string         `bun:"lead_id,notnull"`
	IngestionID string         `bun:"ingestion_id"`
	DeliveryID  string         `bun:"delivery_id"`
	EventType   string         `bun:"event_type,notnull"`
	Data        map[string]any `bun:"data,type:jsonb,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type destinationRecord struct {
	bun.BaseModel `bun:"table:webhook_destinations,alias:wd"`

	ID               string            `bun:"id,pk"`
	WorkspaceID      string            `bun:"workspace_id,notnull"`
	Name             string            `bun:"name,notnull"`
	URL              string            `bun:"url,notnull"`
	Method           string            `bun:"method"`
	Enabled          bool              `bun:"enabled,notnull"`
	SubscribedEvents []string          `bun:"subscribed_events,type:jsonb"`
	Secret           string            `bun:"secret,notnull"`
	Headers          map[string]string `bun:"headers,type:jsonb"`
	MaxAttempts      int               `bun:"max_attempts,notnull,default:0"`
	CreatedAt        time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deliveryRecord struct {
	bun.BaseModel `bun:"table:webhook_deliveries,alias:dl"`

	ID            string     `bun:"id,pk"`
	WorkspaceID   string     `bun:"workspace_id,notnull"`
	DestinationID string     `bun:"destination_id,notnull"`
	LeadID        string     `bun:"lead_id,notnull"`
	IngestionID   string     `bun:"ingestion_id"`
	EventType     string     `bun:"event_type,notnull"`
	Status        string     `bun:"status,notnull"`
	AttemptCount  int        `bun:"attempt_count,notnull"`
	LastAttemptAt *time.Time `bun:"last_attempt_at,nullzero"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	LastError     string     `bun:"last_error"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deliveryAttemptRecord struct {
	bun.BaseModel `bun:"table:webhook_delivery_attempts,alias:da"`

	ID             string    `bun:"id,pk"`
	DeliveryID     string    `bun:"delivery_id,notnull"`
	AttemptNumber  int       `bun:"attempt_number,notnull"`
	RequestPayload []byte    `bun:"request_payload"`
	ResponseStatus int       `bun:"response_status"`
	ResponseBody   string    `bun:"response_body"`
	Error          string    `bun:"error"`
	StartedAt      time.Time `bun:"started_at,nullzero,notnull"`
	FinishedAt     time.Time `bun:"finished_at,nullzero,notnull"`
}
