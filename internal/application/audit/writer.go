package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"
)

const (
	componentAudit = "audit-writer"
	appendTimeout  = 2 * time.Second
)

// Record is what callers hand to the writer; ids, actor, timestamps and request metadata
// are filled in from the context.
type Record struct {
	Action     string
	TargetType string
	TargetID   string
	Before     any
	After      any
}

// Writer appends audit entries on a best-effort basis: failures are logged and counted,
// never returned to the business operation that triggered them.
type Writer struct {
	store    domaudit.Store
	ids      application.IDGenerator
	log      observability.Logger
	failures observability.Counter
	now      func() time.Time
}

func NewWriter(store domaudit.Store, ids application.IDGenerator, tel observability.Observability) *Writer {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Writer{
		store:    store,
		ids:      ids,
		log:      tel.Logger().With(observability.F("component", componentAudit)),
		failures: tel.Metrics().Counter(observability.MAuditWriteFailures),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Append never fails from the caller's point of view.
func (w *Writer) Append(ctx context.Context, rec Record) {
	if w == nil || w.store == nil {
		return
	}
	logger := logctx.FromOr(ctx, w.log)

	entry := domaudit.Entry{
		ID:         w.ids.NewID(),
		Action:     rec.Action,
		Actor:      domaudit.SystemActor,
		TargetType: rec.TargetType,
		TargetID:   rec.TargetID,
		CreatedAt:  w.now(),
	}
	if p, ok := access.PrincipalFrom(ctx); ok {
		entry.Actor = p.UserID
	}
	meta := domaudit.MetaFrom(ctx)
	entry.CorrelationID = meta.CorrelationID
	entry.IP = meta.IP
	entry.UserAgent = meta.UserAgent

	var err error
	if entry.Before, err = snapshot(rec.Before); err != nil {
		logger.Warn("audit_snapshot_failed", observability.F("action", rec.Action), observability.F("error", err))
	}
	if entry.After, err = snapshot(rec.After); err != nil {
		logger.Warn("audit_snapshot_failed", observability.F("action", rec.Action), observability.F("error", err))
	}

	// The business operation may already be finishing; the append gets its own deadline.
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()

	if err := w.store.Append(appendCtx, entry); err != nil {
		w.failures.Add(1, observability.L("action", rec.Action))
		logger.Error("audit_write_failed",
			observability.F("action", rec.Action),
			observability.F("target_type", rec.TargetType),
			observability.F("target_id", rec.TargetID),
			observability.F("correlation_id", entry.CorrelationID),
			observability.F("error", err),
		)
	}
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
