package api

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// AccountInfo is the paper account overview.
type AccountInfo struct {
	Address          string  `json:"address"`
	Balance          float64 `json:"balance"`
	InitialBalance   float64 `json:"initialBalance"`
	RealizedPnL      float64 `json:"realizedPnl"`
	UnrealizedPnL    float64 `json:"unrealizedPnl"`
	TotalEquity      float64 `json:"totalEquity"` // balance + marked position value
	OpenPositions    int     `json:"openPositions"`
	RestingOrders    int     `json:"restingOrders"`
	FilledOrders     int     `json:"filledOrders"`
	StateHash        string  `json:"stateHash"`
	KillSwitchActive bool    `json:"killSwitchActive"`
}

// PositionInfo represents one instrument position
type PositionInfo struct {
	TokenID       string  `json:"tokenId"`
	Size          float64 `json:"size"` // +ve = long, -ve = short
	EntryPrice    float64 `json:"entryPrice"`
	CostBasis     float64 `json:"costBasis"`
	MarkPrice     float64 `json:"markPrice,omitempty"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`
	RealizedPnL   float64 `json:"realizedPnl"`
}

// OrderInfo represents a resting or historical paper order
type OrderInfo struct {
	ID           string  `json:"id"`
	TokenID      string  `json:"tokenId"`
	Side         string  `json:"side"`
	Price        float64 `json:"price"`
	Size         float64 `json:"size"`
	Filled       float64 `json:"filled"`
	Remaining    float64 `json:"remaining"`
	AvgFillPrice float64 `json:"avgFillPrice"`
	Status       string  `json:"status"`
	Timestamp    int64   `json:"timestamp"` // creation, Unix milliseconds
	ExpiresAt    int64   `json:"expiresAt,omitempty"`
}

// FillInfo is a journaled fill
type FillInfo struct {
	OrderID     string  `json:"orderId"`
	TokenID     string  `json:"tokenId"`
	Side        string  `json:"side"`
	Status      string  `json:"status"`
	FilledQty   float64 `json:"filledQty"`
	AvgPrice    float64 `json:"avgPrice"`
	SlippageBps float64 `json:"slippageBps"`
	RealizedPnL float64 `json:"realizedPnl"`
	Tick        int64   `json:"tick"`
	Timestamp   int64   `json:"timestamp"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the envelope for every pushed event
type WSMessage struct {
	Type string      `json:"type"` // "heartbeat", "trade", "signal", "kill"
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g. ["heartbeat", "trade"]
}

// ==============================
// REST Request Types
// ==============================

// KillRequest is the payload for POST /api/v1/kill
type KillRequest struct {
	Reason string `json:"reason"`
}

type KillResponse struct {
	Tripped bool   `json:"tripped"` // false if it was already tripped
	Reason  string `json:"reason"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
