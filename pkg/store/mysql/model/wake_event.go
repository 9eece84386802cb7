package model

import "time"

// WakeEvent MySQL model for wake_events table
type WakeEvent struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID     string          `gorm:"column:event_id;type:varchar(64);not null;uniqueIndex:idx_event_id_unique" json:"event_id"`
	Namespace   string          `gorm:"column:namespace;type:varchar(253);not null;index:idx_namespace_timestamp,priority:1" json:"namespace"`
	Timestamp   time.Time       `gorm:"column:timestamp;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3);index:idx_timestamp;index:idx_namespace_timestamp,priority:2" json:"timestamp"`
	Action      string          `gorm:"column:action;type:varchar(20);not null;index:idx_action" json:"action"`
	Mode        string          `gorm:"column:mode;type:varchar(32);not null" json:"mode"`
	Trigger     string          `gorm:"column:trigger_source;type:varchar(20);not null" json:"trigger"`
	Reason      string          `gorm:"column:reason;type:text;not null" json:"reason"`
	TrafficRate float64         `gorm:"column:traffic_rate;type:double;not null;default:0" json:"traffic_rate"`
	Mutations   int             `gorm:"column:mutations;type:int;not null;default:0" json:"mutations"`
	Workloads   JSONStringArray `gorm:"column:workloads;type:json" json:"workloads"`
}

// TableName specifies the table name for WakeEvent
func (WakeEvent) TableName() string {
	return "wake_events"
}
