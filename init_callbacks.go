package main

import (
	"github.com/akinalp/parley/services"
	"github.com/akinalp/parley/ws"
)

// registerHubCallbacks connects the hub's presence and typing signals to the
// presence service. Must run before hub.Run.
//
// The hub lives in ws and knows nothing about storage; main is where the two
// layers meet.
func registerHubCallbacks(hub *ws.Hub, presence services.PresenceService) {
	hub.OnTransition(presence.HandleTransition)
	hub.OnTyping(presence.Typing)
}
