package server

// Request types for WebSocket commands with validation tags.

// AlarmTestRequest is the request body for alarm/test.
type AlarmTestRequest struct {
	Cycles int `json:"cycles" validate:"required,gte=1,lte=15"`
}
