package domain

import "time"

// Window aggregates affiliate activity inside a time range.
type Window struct {
	Clicks           int64   `json:"clicks"`
	Conversions      int64   `json:"conversions"`
	ConversionRate   float64 `json:"conversionRate"`
	Revenue          float64 `json:"revenue"`
	CommissionCount  int64   `json:"commissionCount"`
	CommissionAmount float64 `json:"commissionAmount"`
}

type Pending struct {
	CommissionCount  int64   `json:"commissionCount"`
	CommissionAmount float64 `json:"commissionAmount"`
}

type Overview struct {
	ActiveLinks int64 `json:"activeLinks"`
}

// Stats is the payload shared by polling and pushed messages.
type Stats struct {
	Realtime  Window    `json:"realtime"`
	Today     Window    `json:"today"`
	Pending   Pending   `json:"pending"`
	Overview  Overview  `json:"overview"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	MessageStatsUpdate       = "statsUpdate"
	MessageGlobalStatsUpdate = "globalStatsUpdate"
	MessageStatsError        = "statsError"
	MessageSubscribed        = "subscribed"
	MessageUnsubscribed      = "unsubscribed"
)

type Message struct {
	Type        string    `json:"type"`
	KolID       *KolID    `json:"kolId,omitempty"`
	Stats       *Stats    `json:"stats,omitempty"`
	GlobalStats *Stats    `json:"globalStats,omitempty"`
	KolStats    *Stats    `json:"kolStats,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ClientMessage is what a websocket client sends.
type ClientMessage struct {
	Type  string `json:"type"`
	KolID KolID  `json:"kolId"`
	Token string `json:"token"`
}

const (
	ClientSubscribe   = "subscribeKolStats"
	ClientUnsubscribe = "unsubscribeKolStats"
)

// PollResponse is returned by the polling endpoint.
type PollResponse struct {
	KolStats    *Stats    `json:"kolStats"`
	GlobalStats *Stats    `json:"globalStats,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
