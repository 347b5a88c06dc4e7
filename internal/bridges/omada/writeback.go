package omada

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonmerge "github.com/apapsch/go-jsonmerge/v2"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/mqtt"
)

// Reconciler schedules the follow-up poll that converges the namespace
// on the server's authoritative record after a write. Satisfied by
// *Poller.
type Reconciler interface {
	ScheduleSSIDReconcile(siteID, wlanID string)
}

// AckPublisher publishes write acknowledgements to the bus.
// This allows mocking in tests and flexibility in implementation.
type AckPublisher interface {
	Publish(topic string, payload []byte) error
}

// writeAck is the acknowledgement payload published after a write
// attempt, correlated by request id.
type writeAck struct {
	RequestID string `json:"request_id"`
	Path      string `json:"path"`
	Value     any    `json:"value"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Dispatcher turns external leaf writes into controller mutations.
//
// A write against "{site}.ssids.{ssid}.{field}" is resolved to the full
// cached SSID record, the single field is patched into it, and the
// entire mutated record is sent upstream: the controller requires the
// complete record shape, not a minimal diff.
//
// Failed writes are logged and dropped; there is no retry queue. A 401
// requests a debounced session refresh like any other call.
type Dispatcher struct {
	client     *Client
	session    *Session
	cache      *ResourceCache
	reconciler Reconciler
	ack        AckPublisher
	logger     Logger
}

// DispatcherOptions holds configuration for creating a dispatcher.
type DispatcherOptions struct {
	// Client is the controller HTTP client.
	Client *Client

	// Session supplies the token and receives 401 notifications.
	Session *Session

	// Cache is the dependent-resource cache populated by the poller.
	Cache *ResourceCache

	// Reconciler schedules the post-write reconcile poll.
	Reconciler Reconciler

	// Ack is optional: when set, write outcomes are published to the
	// ack topic, correlated by request id.
	Ack AckPublisher

	// Logger is optional structured logging.
	Logger Logger
}

// NewDispatcher creates a write-back dispatcher.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("resource cache is required")
	}
	if opts.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}

	return &Dispatcher{
		client:     opts.Client,
		session:    opts.Session,
		cache:      opts.Cache,
		reconciler: opts.Reconciler,
		ack:        opts.Ack,
		logger:     opts.Logger,
	}, nil
}

// ApplyWrite handles one external write intent against a writable leaf.
//
// The path decomposes positionally into (site, resource kind, record
// id, field). Only SSID leaves are dispatchable. The target record must
// be present in the cache, otherwise the write is dropped without any
// HTTP call; this happens when no poll has populated the cache yet.
func (d *Dispatcher) ApplyWrite(ctx context.Context, path string, value any) error {
	requestID := uuid.NewString()

	err := d.applyWrite(ctx, requestID, path, value)
	if err != nil {
		d.logWarn("write-back failed", "request_id", requestID, "path", path, "error", err)
		d.publishAck(writeAck{
			RequestID: requestID,
			Path:      path,
			Value:     value,
			Status:    "failed",
			Error:     err.Error(),
		})
		return err
	}

	d.logInfo("write-back applied", "request_id", requestID, "path", path)
	d.publishAck(writeAck{
		RequestID: requestID,
		Path:      path,
		Value:     value,
		Status:    "applied",
	})
	return nil
}

func (d *Dispatcher) applyWrite(ctx context.Context, requestID, path string, value any) error {
	siteID, ssidID, field, err := decomposeWritePath(path)
	if err != nil {
		return err
	}

	record, ok := d.cache.Get(siteID, kindSSIDs, ssidID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, path)
	}

	wlanID := scalarString(record["wlanId"])
	if wlanID == "" {
		return fmt.Errorf("%w: cached record %s carries no wlanId", ErrInvalidWritePath, ssidID)
	}

	merged, err := patchRecord(record, field, value)
	if err != nil {
		return err
	}

	token := d.session.Token()
	if token == "" {
		return ErrNotAuthenticated
	}

	url := fmt.Sprintf("%s/api/v2/sites/%s/setting/wlans/%s/ssids/%s",
		d.session.ControllerID(), siteID, wlanID, ssidID)

	d.logInfo("patching SSID record",
		"request_id", requestID, "site", siteID, "wlan", wlanID, "ssid", ssidID, "field", field)

	if _, err := d.client.Patch(ctx, token, url, json.RawMessage(mustMarshal(merged))); err != nil {
		if errors.Is(err, ErrAuth) {
			d.session.RequestRefresh()
		}
		return err
	}

	// Keep the cache coherent until the reconcile poll lands, so a
	// second write to the same record sees the first mutation.
	d.cache.Replace(siteID, kindSSIDs, ssidID, merged)
	d.reconciler.ScheduleSSIDReconcile(siteID, wlanID)
	return nil
}

// decomposeWritePath splits "{site}.ssids.{ssid}.{field}" positionally.
func decomposeWritePath(path string) (siteID, ssidID, field string, err error) {
	parts := strings.Split(path, ".")
	if len(parts) != 4 || parts[1] != kindSSIDs {
		return "", "", "", fmt.Errorf("%w: %s", ErrInvalidWritePath, path)
	}
	return parts[0], parts[2], parts[3], nil
}

// patchRecord merges a single-field change into a copy of the full
// cached record.
func patchRecord(record map[string]any, field string, value any) (map[string]any, error) {
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encoding cached record: %w", err)
	}
	patchBytes, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("encoding patch: %w", err)
	}

	// CopyNonexistent lets a field the record never carried still land
	// in the patch body.
	merger := jsonmerge.Merger{CopyNonexistent: true}
	mergedBytes, err := merger.MergeBytes(recordBytes, patchBytes)
	if err != nil {
		return nil, fmt.Errorf("merging patch into record: %w", err)
	}
	if len(merger.Errors) > 0 {
		return nil, fmt.Errorf("merging patch into record: %v", merger.Errors[0])
	}

	var merged map[string]any
	if err := json.Unmarshal(mergedBytes, &merged); err != nil {
		return nil, fmt.Errorf("decoding merged record: %w", err)
	}
	return merged, nil
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func (d *Dispatcher) publishAck(ack writeAck) {
	if d.ack == nil {
		return
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		return
	}
	topic := mqtt.Topics{}.WriteAck(ack.RequestID)
	if err := d.ack.Publish(topic, payload); err != nil {
		d.logWarn("failed to publish write ack", "request_id", ack.RequestID, "error", err)
	}
}

func (d *Dispatcher) logInfo(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Dispatcher) logWarn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
