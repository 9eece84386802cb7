package interfaces

import (
	"context"
	"time"
)

// TrafficSource returns the current request rate of the monitored service.
//
// CurrentRate is normalized to requests per minute. Implementations must not
// propagate query failures: a failed query reads as zero traffic and is logged
// separately from a genuine zero.
type TrafficSource interface {
	CurrentRate(ctx context.Context) float64
}

// TrafficSample one request-rate observation, valid for a single reconcile cycle
type TrafficSample struct {
	RequestRate float64   `json:"requestRate"` // requests per minute, >= 0
	ObservedAt  time.Time `json:"observedAt"`
}
