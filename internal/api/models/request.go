package models

// UpdateRequest represents the request body for a direct sheet update.
// Omitted rig fields fall back to the configured defaults; explicit zeros are kept.
type UpdateRequest struct {
	SheetID         string  `json:"sheet_id"`
	Hashrate        *int64   `json:"hashrate,omitempty" binding:"omitempty,gt=0"`            // H/s
	PowerWatts      *float64 `json:"power_watts,omitempty" binding:"omitempty,gte=0"`        // W
	PowerCostPerKwh *float64 `json:"power_cost_per_kwh,omitempty" binding:"omitempty,gte=0"` // $/kWh
}

// PushRequest is the body Pub/Sub sends to a push subscription endpoint.
type PushRequest struct {
	Message      PushMessage `json:"message" binding:"required"`
	Subscription string      `json:"subscription"`
}

// PushMessage carries the base64 payload; Data is left encoded on purpose.
type PushMessage struct {
	Data        string            `json:"data"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	MessageID   string            `json:"messageId"`
	PublishTime string            `json:"publishTime"`
}

// PreviewRequest represents query parameters for previewing a row
type PreviewRequest struct {
	Hashrate        *int64   `form:"hashrate" binding:"omitempty,gt=0"`
	PowerWatts      *float64 `form:"power_watts" binding:"omitempty,gte=0"`
	PowerCostPerKwh *float64 `form:"power_cost_per_kwh" binding:"omitempty,gte=0"`
}
