package hub

import (
	"chatteta/internal/model"
)

// MonitorService provides methods to gather hub statistics
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	connectionStats := ms.getConnectionStats()
	roomStats := ms.getRoomStats()
	clients := ms.getClientList()
	statusCount := ms.getStatusCount(clients)

	// Determine overall health status
	status := "healthy"
	if connectionStats.TotalConnections == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: connectionStats,
		Rooms:       roomStats,
		Clients:     clients,
		StatusCount: statusCount,
	}
}

// getConnectionStats returns connection statistics
func (ms *MonitorService) getConnectionStats() model.ConnectionStats {
	connections, users := ms.hub.registry.Counts()
	return model.ConnectionStats{
		TotalConnections: connections,
		TotalUsers:       users,
	}
}

// getRoomStats returns room/conversation statistics
func (ms *MonitorService) getRoomStats() model.RoomStats {
	stats := model.RoomStats{
		RoomDetails: make([]model.RoomInfo, 0),
	}

	ms.hub.rooms.ForEachRoom(func(roomKey string, members []*Client) {
		memberIDs := make([]string, 0, len(members))
		for _, c := range members {
			memberIDs = append(memberIDs, c.UserID())
		}

		stats.RoomDetails = append(stats.RoomDetails, model.RoomInfo{
			RoomKey:      roomKey,
			TotalMembers: len(members),
			MemberIDs:    memberIDs,
		})
		stats.TotalRooms++
	})

	return stats
}

// getClientList returns list of all connected clients
func (ms *MonitorService) getClientList() []model.ClientInfo {
	snapshot := ms.hub.registry.Snapshot()

	presence := ms.hub.Presence()

	clients := make([]model.ClientInfo, 0, len(snapshot))
	for _, c := range snapshot {
		clients = append(clients, model.ClientInfo{
			ClientID: c.ID,
			UserID:   c.UserID(),
			Status:   presence.StatusOf(c.UserID(), true),
		})
	}

	return clients
}

// getStatusCount returns count of clients by status
func (ms *MonitorService) getStatusCount(clients []model.ClientInfo) map[string]int {
	statusCount := map[string]int{
		StatusOnline: 0,
		StatusAway:   0,
		StatusBusy:   0,
	}

	for _, c := range clients {
		statusCount[c.Status]++
	}

	return statusCount
}
