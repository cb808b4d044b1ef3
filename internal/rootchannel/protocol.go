// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rootchannel

// Client request events.
const (
	EventPing        = "ping"
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
)

// Server reply events.
const (
	EventPong               = "pong"
	EventSubscriptionStatus = "subscriptionStatus"
	EventHeartbeat          = "heartbeat"
)

// Subscription states reported in a SubscriptionStatus.
const (
	StatusSubscribed   = "subscribed"
	StatusUnsubscribed = "unsubscribed"
)

// Request is a message sent by a client.
type Request struct {
	Event        string               `json:"event"`
	ReqID        *int64               `json:"reqid"`
	Subscription *SubscriptionDetails `json:"subscription,omitempty"`
}

// SubscriptionDetails names a topic and, in replies, the connection's
// subscription state for it.
type SubscriptionDetails struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// Pong answers a ping.
type Pong struct {
	Event string `json:"event"`
	ReqID int64  `json:"reqid"`
}

// SubscriptionStatus acknowledges a subscribe or unsubscribe request.
type SubscriptionStatus struct {
	Event        string              `json:"event"`
	ReqID        int64               `json:"reqid"`
	Subscription SubscriptionDetails `json:"subscription"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
}

// Heartbeat is pushed to every connection at a fixed interval.
type Heartbeat struct {
	Event string `json:"event"`
}
