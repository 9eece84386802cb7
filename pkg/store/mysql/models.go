package mysql

import "trafficwaker/pkg/store/mysql/model"

type (
	// Database models
	WakeEvent = model.WakeEvent

	// Custom JSON types
	JSONStringArray = model.JSONStringArray
)
