package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/worklens/backend/pkg/graph"
	"github.com/worklens/backend/pkg/leaselock"
	"github.com/worklens/backend/pkg/logger"
)

// RebuildMsg asks for a full graph rebuild of one tenant.
type RebuildMsg struct {
	TenantID string `json:"tenant_id"`
}

// UpdateMsg asks for one stored document to be folded into the graph.
type UpdateMsg struct {
	TenantID string `json:"tenant_id"`
	DocID    string `json:"doc_id"`
	DocType  string `json:"doc_type"`
}

// rebuildLeaseTTL must outlive renewals only, not the whole rebuild; the
// lease is renewed in the background while the rebuild runs.
const rebuildLeaseTTL = 5 * time.Minute

// ProcessRebuildMessage runs one full rebuild under a per-tenant lease. A
// busy lease is an error so the message comes back through the retry queue.
// Malformed messages are dropped.
func ProcessRebuildMessage(ctx context.Context, svc *graph.Service, locks *leaselock.Client, body string) error {
	var msg RebuildMsg
	if err := json.Unmarshal([]byte(body), &msg); err != nil || msg.TenantID == "" {
		logger.Warn("[Queue] Dropping malformed rebuild message", "body", body, "err", err)
		return nil
	}

	err := locks.WithLease(ctx, "rebuild_"+msg.TenantID, leaselock.Options{TTL: rebuildLeaseTTL}, func(ctx context.Context) error {
		stats, err := svc.Rebuild(ctx, msg.TenantID)
		if err != nil {
			return err
		}
		logger.Info("[Queue] Rebuild finished",
			"tenant", msg.TenantID,
			"reports", stats.ReportsProcessed,
			"procedures", stats.ProceduresProcessed,
			"entities", stats.EntitiesCreated,
			"relations", stats.RelationsCreated,
			"errors", len(stats.Errors),
		)
		for _, e := range stats.Errors {
			logger.Warn("[Queue] Rebuild document error", "tenant", msg.TenantID, "err", e)
		}
		return nil
	})
	if errors.Is(err, leaselock.ErrBusy) {
		return fmt.Errorf("rebuild already running for tenant %s: %w", msg.TenantID, err)
	}
	return err
}

// ProcessUpdateMessage folds one stored document into the tenant graph.
func ProcessUpdateMessage(ctx context.Context, svc *graph.Service, body string) error {
	var msg UpdateMsg
	if err := json.Unmarshal([]byte(body), &msg); err != nil || msg.TenantID == "" || msg.DocID == "" {
		logger.Warn("[Queue] Dropping malformed update message", "body", body, "err", err)
		return nil
	}
	return svc.UpdateStored(ctx, msg.TenantID, msg.DocID, msg.DocType)
}
