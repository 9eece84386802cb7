package mysql

import (
	"context"
	"fmt"
	"time"

	"trafficwaker/pkg/interfaces"
)

// WakeEventRepository handles wake/sleep event persistence in MySQL
type WakeEventRepository struct {
	ds *Datastore
}

// NewWakeEventRepository creates a new wake event repository
func NewWakeEventRepository(ds *Datastore) *WakeEventRepository {
	return &WakeEventRepository{ds: ds}
}

// Record persists one event
func (r *WakeEventRepository) Record(ctx context.Context, event *interfaces.WakeEvent) error {
	if err := r.ds.DB(ctx).Create(FromWakeEventDomain(event)).Error; err != nil {
		return fmt.Errorf("failed to record wake event: %w", err)
	}
	return nil
}

// ListRecent retrieves the most recent events of a namespace, newest first
func (r *WakeEventRepository) ListRecent(ctx context.Context, namespace string, limit int) ([]*interfaces.WakeEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := r.ds.DB(ctx).Model(&WakeEvent{}).Order("timestamp DESC").Limit(limit)
	if namespace != "" {
		query = query.Where("namespace = ?", namespace)
	}

	var rows []*WakeEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list wake events: %w", err)
	}

	events := make([]*interfaces.WakeEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, ToWakeEventDomain(row))
	}
	return events, nil
}

// DeleteOldEvents deletes events older than the specified time
func (r *WakeEventRepository) DeleteOldEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.ds.DB(ctx).Where("timestamp < ?", olderThan).Delete(&WakeEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ToWakeEventDomain converts MySQL WakeEvent to the domain event
func ToWakeEventDomain(row *WakeEvent) *interfaces.WakeEvent {
	if row == nil {
		return nil
	}
	return &interfaces.WakeEvent{
		ID:          row.EventID,
		Namespace:   row.Namespace,
		Timestamp:   row.Timestamp,
		Action:      row.Action,
		Mode:        row.Mode,
		Trigger:     row.Trigger,
		Reason:      row.Reason,
		TrafficRate: row.TrafficRate,
		Mutations:   row.Mutations,
		Workloads:   []string(row.Workloads),
	}
}

// FromWakeEventDomain converts a domain event to MySQL WakeEvent
func FromWakeEventDomain(event *interfaces.WakeEvent) *WakeEvent {
	if event == nil {
		return nil
	}
	return &WakeEvent{
		EventID:     event.ID,
		Namespace:   event.Namespace,
		Timestamp:   event.Timestamp,
		Action:      event.Action,
		Mode:        event.Mode,
		Trigger:     event.Trigger,
		Reason:      event.Reason,
		TrafficRate: event.TrafficRate,
		Mutations:   event.Mutations,
		Workloads:   JSONStringArray(event.Workloads),
	}
}
