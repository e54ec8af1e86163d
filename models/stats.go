package models

import "time"

// Stats is the GET /api/stats body: stored totals plus live socket counts.
type Stats struct {
	Users         int       `json:"users"`
	Conversations int       `json:"conversations"`
	Messages      int       `json:"messages"`
	OnlineUsers   int       `json:"onlineUsers"`
	Connections   int       `json:"connections"`
	SampledAt     time.Time `json:"sampledAt"`
}
