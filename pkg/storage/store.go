package storage

import (
	"time"

	"github.com/vvtv/autopilot/pkg/types"
)

// DeploymentEvent is one append-only entry in a deployment's event log: a
// status transition, a decision, or a progression action.
type DeploymentEvent struct {
	DeploymentID string
	Timestamp    time.Time
	Kind         string
	Detail       string
}

// Store is the autopilot's audit-persistence contract: durable cycle records
// and an append-only deployment event log, both queryable by recency.
type Store interface {
	SaveCycleRecord(record *types.CycleRecord) error
	GetCycleRecord(id string) (*types.CycleRecord, error)
	ListCycleRecords(limit int) ([]*types.CycleRecord, error)

	AppendDeploymentEvent(event DeploymentEvent) error
	ListDeploymentEvents(deploymentID string) ([]DeploymentEvent, error)

	Close() error
}
