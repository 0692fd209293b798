/*
Package storage provides BoltDB-backed audit persistence for the autopilot's
cycle records and deployment event log.

The storage package implements the Store interface using BoltDB as the
underlying database, giving ACID transactions for the durable-by-spec audit
trail: one CycleRecord per control-loop pass and an append-only
DeploymentEvent log per canary deployment. All data is serialized as JSON and
stored in per-kind buckets.

# Architecture

	┌──────────────────── BOLTDB AUDIT STORE ──────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            BoltStore                        │          │
	│  │  - File: <dataDir>/autopilot.db             │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure                │          │
	│  │  ┌────────────────────────────────────┐     │          │
	│  │  │ cycles            (time+ID key)    │     │          │
	│  │  │ deployment_events (depID/time key)  │     │          │
	│  │  └────────────────────────────────────┘     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │        Transaction Management                │          │
	│  │  - Read: db.View() - Concurrent reads       │          │
	│  │  - Write: db.Update() - Serialized writes   │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Key layout

Cycle records are keyed by a lexicographically sortable timestamp prefix
("20060102T150405.000000000Z07:00") followed by the cycle ID, so
ListCycleRecords walks the bucket's cursor from the end for "most recent N"
without needing a secondary index. Deployment events are keyed by
"<deploymentID>/<timestamp>" so ListDeploymentEvents can prefix-seek
directly to one deployment's entries.

# Usage

	store, err := storage.NewBoltStore("/var/lib/autopilot")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	err = store.SaveCycleRecord(record)
	recent, err := store.ListCycleRecords(20)

	err = store.AppendDeploymentEvent(storage.DeploymentEvent{
		DeploymentID: "dep-1", Timestamp: time.Now(), Kind: "rolled_back",
	})
	events, err := store.ListDeploymentEvents("dep-1")

# Design notes

This is a read-side index, not the system of record: the JSON cycle record
and JSONL deployment log remain the durable artifacts (pkg/audit writes
those); BoltStore lets the CLI query recent history without re-parsing every
JSONL file on disk.

# See Also

  - pkg/audit for the append-only JSON/JSONL artifacts this index mirrors
  - pkg/cycle for the CycleRecord producer
  - AppendDeploymentEvent for the DeploymentEvent log (no autopilot component calls it)
  - BoltDB documentation: https://github.com/etcd-io/bbolt
*/
package storage
