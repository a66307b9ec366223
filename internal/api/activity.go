package api

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/http/websocket"
	"github.com/hbomb79/Reel/internal/library"
	"github.com/hbomb79/Reel/internal/workflow"
)

const (
	TITLE_CATALOG_UPDATE  = "CATALOG_UPDATE"
	TITLE_SCAN_UPDATE     = "SCAN_UPDATE"
	TITLE_WORKFLOW_UPDATE = "WORKFLOW_UPDATE"
)

type (
	jobSource interface {
		Job(id uuid.UUID) (*library.Job, bool)
		Jobs() []*library.Job
	}

	snapshotSource interface {
		Snapshot() workflow.Snapshot
	}

	// broadcaster converts changes in Reel in to websocket messages, which
	// are broadcast to every connected client.
	broadcaster struct {
		socketHub *websocket.SocketHub
		jobs      jobSource
		workflow  snapshotSource
	}
)

func newBroadcaster(socketHub *websocket.SocketHub, jobs jobSource, workflow snapshotSource) *broadcaster {
	b := &broadcaster{socketHub, jobs, workflow}
	socketHub.WithConnectionCallback(b.initialState)

	return b
}

func (hub *broadcaster) BroadcastCatalogUpdate(change event.CatalogChange) error {
	hub.broadcast(TITLE_CATALOG_UPDATE, map[string]interface{}{
		"reason":     change.Reason,
		"record_ids": change.RecordIDs,
	})

	return nil
}

func (hub *broadcaster) BroadcastScanUpdate(id uuid.UUID) error {
	job, ok := hub.jobs.Job(id)
	if !ok {
		return fmt.Errorf("scan job %s no longer exists", id)
	}

	hub.broadcast(TITLE_SCAN_UPDATE, map[string]interface{}{"job_id": id, "job": job})
	return nil
}

// BroadcastWorkflowUpdate sends the stage that was entered, as well as the
// current snapshot. The stage is sent separately as the workflow may have
// moved on by the time the snapshot is taken.
func (hub *broadcaster) BroadcastWorkflowUpdate(change event.WorkflowChange) error {
	hub.broadcast(TITLE_WORKFLOW_UPDATE, map[string]interface{}{
		"stage":    change.Stage,
		"snapshot": hub.workflow.Snapshot(),
	})

	return nil
}

func (hub *broadcaster) initialState() map[string]interface{} {
	return map[string]interface{}{
		"workflow": hub.workflow.Snapshot(),
		"scans":    hub.jobs.Jobs(),
	}
}

func (hub *broadcaster) broadcast(title string, body map[string]interface{}) {
	hub.socketHub.Send(&websocket.SocketMessage{
		Title: title,
		Body:  body,
		Type:  websocket.Update,
	})
}
