package update

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/store"
)

// HandleEvent drives one update request through download, installation and
// the pre-reboot handoff.
//
// Progress reports are best-effort; a flaky session never aborts an install.
// Error reports use stored retention so the platform always learns the
// outcome, even across a disconnect.
//
// Parameters:
//   - ctx: Context for cancellation
//   - pub: Publisher for status reports
//   - data: The raw request aggregate from the transport
//
// Returns:
//   - error: When any stage of the flow fails. The matching status report
//     has already been sent when this returns non-nil
func (h *Handler) HandleEvent(ctx context.Context, pub Publisher, data map[string]any) error {
	event, err := ParseEvent(data)
	if err != nil {
		h.logger.Warn("rejecting update request", "error", err)
		if id, ok := requestID(data); ok {
			h.reportStored(ctx, pub, id, StatusError, CodeRequest)
		}
		return err
	}

	id := event.UUID.String()
	h.logger.Info("update request accepted", "uuid", id, "url", event.URL)
	h.report(ctx, pub, id, StatusInProgress, "")

	bundle, err := h.download(ctx, event.URL)
	if err != nil {
		h.reportStored(ctx, pub, id, StatusError, CodeNetwork)
		return err
	}
	defer os.Remove(bundle) //nolint:errcheck // best-effort cleanup

	slot, err := h.installer.NextSlot(ctx)
	if err != nil {
		h.reportStored(ctx, pub, id, StatusError, CodeDeploy)
		return fmt.Errorf("resolving target slot: %w", err)
	}

	if err := h.installer.Install(ctx, bundle); err != nil {
		h.reportStored(ctx, pub, id, StatusError, CodeDeploy)
		return fmt.Errorf("installing bundle: %w", err)
	}

	pending := store.PendingUpdate{UUID: id, URL: event.URL, Slot: slot}
	if err := h.store.SavePendingUpdate(ctx, pending); err != nil {
		h.reportStored(ctx, pub, id, StatusError, CodeInternal)
		return fmt.Errorf("recording pending update: %w", err)
	}

	h.report(ctx, pub, id, StatusInProgress, "")
	h.logger.Info("install complete", "uuid", id, "slot", slot)

	if h.rebooter == nil {
		h.logger.Warn("no rebooter configured, update completes on next boot", "uuid", id)
		return nil
	}

	if err := h.rebooter.Reboot(ctx); err != nil {
		if clearErr := h.store.ClearPendingUpdate(ctx); clearErr != nil {
			h.logger.Error("clearing pending update failed", "error", clearErr)
		}
		h.reportStored(ctx, pub, id, StatusError, CodeInternal)
		return fmt.Errorf("rebooting: %w", err)
	}

	return nil
}

// EnsurePendingResponse resolves an update left pending by the previous
// boot. When no update is pending it is a no-op.
//
// The booted slot is compared with the slot recorded before the reboot:
// matching slots report Done, anything else reports Error. Either way the
// pending record is cleared so the check is idempotent.
//
// Parameters:
//   - ctx: Context for cancellation
//   - pub: Publisher for the outcome report
//
// Returns:
//   - error: When the record cannot be loaded, the boot slot cannot be
//     queried, or the outcome cannot be reported or cleared
func (h *Handler) EnsurePendingResponse(ctx context.Context, pub Publisher) error {
	pending, err := h.store.LoadPendingUpdate(ctx)
	if err != nil {
		return err
	}
	if pending == nil {
		return nil
	}

	booted, err := h.installer.BootSlot(ctx)
	if err != nil {
		return fmt.Errorf("querying boot slot: %w", err)
	}

	status, code := StatusDone, ""
	if booted != pending.Slot {
		status, code = StatusError, CodeBoot
	}

	if err := pub.SendStored(ctx, ResponseInterface, responsePath, responseFields(pending.UUID, status, code)); err != nil {
		return fmt.Errorf("reporting update outcome: %w", err)
	}

	if err := h.store.ClearPendingUpdate(ctx); err != nil {
		return fmt.Errorf("clearing pending update: %w", err)
	}

	if status == StatusDone {
		h.logger.Info("update confirmed", "uuid", pending.UUID, "slot", booted)
	} else {
		h.logger.Error("update booted into wrong slot",
			"uuid", pending.UUID, "expected", pending.Slot, "booted", booted)
	}

	return nil
}

// report publishes a best-effort status report. Failures are logged, never
// propagated.
func (h *Handler) report(ctx context.Context, pub Publisher, id, status, code string) {
	if err := pub.SendObject(ctx, ResponseInterface, responsePath, responseFields(id, status, code)); err != nil {
		h.logger.Warn("update status report failed", "uuid", id, "status", status, "error", err)
	}
}

// reportStored publishes a status report with stored retention, so it is
// redelivered after a reconnect.
func (h *Handler) reportStored(ctx context.Context, pub Publisher, id, status, code string) {
	if err := pub.SendStored(ctx, ResponseInterface, responsePath, responseFields(id, status, code)); err != nil {
		h.logger.Error("update status report lost", "uuid", id, "status", status, "error", err)
	}
}

// requestID extracts a well-formed uuid from a rejected request so the
// rejection can still be correlated upstream.
func requestID(data map[string]any) (string, bool) {
	raw, ok := data["uuid"].(string)
	if !ok {
		return "", false
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", false
	}
	return raw, true
}
