package websocket

import (
	"sync"

	"lotbid/internal/domain"
	"lotbid/pkg/logger"
)

type ConnectionManager struct {
	connections   map[string]map[string]domain.WebSocketConnection // lotID -> customerID -> connection
	customerConns map[string][]domain.WebSocketConnection          // customerID -> connections
	mutex         sync.RWMutex
	log           logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections:   make(map[string]map[string]domain.WebSocketConnection),
		customerConns: make(map[string][]domain.WebSocketConnection),
		log:           log,
	}
}

func (cm *ConnectionManager) RegisterConnection(customerID, lotID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[lotID] == nil {
		cm.connections[lotID] = make(map[string]domain.WebSocketConnection)
	}
	cm.connections[lotID][customerID] = conn

	cm.customerConns[customerID] = append(cm.customerConns[customerID], conn)

	cm.log.Info("Connection registered", "customer_id", customerID, "lot_id", lotID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(customerID, lotID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if lotConns, exists := cm.connections[lotID]; exists {
		delete(lotConns, customerID)
		if len(lotConns) == 0 {
			delete(cm.connections, lotID)
		}
	}

	cm.dropCustomerConnLocked(customerID, lotID)

	cm.log.Info("Connection unregistered", "customer_id", customerID, "lot_id", lotID)
	return nil
}

// CloseAndUnregisterConnections tears down every connection watching a lot,
// used when the lot settles.
func (cm *ConnectionManager) CloseAndUnregisterConnections(lotID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if lotConns, exists := cm.connections[lotID]; exists {
		for customerID, conn := range lotConns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "customer_id", customerID,
					"lot_id", lotID, "error", err)
			}
			cm.dropCustomerConnLocked(customerID, lotID)
		}
		delete(cm.connections, lotID)
	}

	cm.log.Info("Connections closed for lot", "lot_id", lotID)
	return nil
}

// dropCustomerConnLocked removes the customer's connection for one lot from
// the per-customer index. Caller holds the write lock.
func (cm *ConnectionManager) dropCustomerConnLocked(customerID, lotID string) {
	conns, exists := cm.customerConns[customerID]
	if !exists {
		return
	}

	var kept []domain.WebSocketConnection
	for _, conn := range conns {
		if conn.LotID() != lotID {
			kept = append(kept, conn)
		}
	}

	if len(kept) == 0 {
		delete(cm.customerConns, customerID)
	} else {
		cm.customerConns[customerID] = kept
	}
}

func (cm *ConnectionManager) GetConnectionsForLot(lotID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[lotID] {
		connections = append(connections, conn)
	}

	return connections
}

func (cm *ConnectionManager) GetConnectionsForCustomer(customerID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	return cm.customerConns[customerID]
}

// BroadcastToLot hands the message to every connection watching the lot.
// Send encodes it, so the message goes through as the JSON object itself
// rather than a pre-encoded byte string.
func (cm *ConnectionManager) BroadcastToLot(lotID string, message interface{}) error {
	connections := cm.GetConnectionsForLot(lotID)

	for _, conn := range connections {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "customer_id", conn.CustomerID(),
				"lot_id", lotID, "error", err)
			// Continue to other connections
		}
	}

	return nil
}

func (cm *ConnectionManager) NotifyCustomer(customerID string, message interface{}) error {
	connections := cm.GetConnectionsForCustomer(customerID)

	for _, conn := range connections {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "customer_id", customerID, "error", err)
		}
	}

	return nil
}
