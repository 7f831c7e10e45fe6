package model

// MonitorResponse is the full statistics snapshot served at /monitor.
type MonitorResponse struct {
	Status      string          `json:"status"`
	Connections ConnectionStats `json:"connections"`
	Rooms       RoomStats       `json:"rooms"`
	Clients     []ClientInfo    `json:"clients"`
	StatusCount map[string]int  `json:"statusCount"`
}

// ConnectionStats returns connection-level statistics
type ConnectionStats struct {
	TotalConnections int `json:"totalConnections"`
	TotalUsers       int `json:"totalUsers"`
}

// RoomStats returns room/conversation statistics
type RoomStats struct {
	TotalRooms  int        `json:"totalRooms"`
	RoomDetails []RoomInfo `json:"roomDetails"`
}

type RoomInfo struct {
	RoomKey      string   `json:"roomKey"`
	TotalMembers int      `json:"totalMembers"`
	MemberIDs    []string `json:"memberIds"`
}

type ClientInfo struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
	Status   string `json:"status"`
}
