package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"lotbid/internal/domain"
	"lotbid/internal/services"
	"lotbid/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type WebSocketHandler struct {
	bidService  *services.BidService
	lotRepo     domain.LotRepository
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(bidService *services.BidService,
	lotRepo domain.LotRepository,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bidService:  bidService,
		lotRepo:     lotRepo,
		connManager: connManager,
		log:         log,
	}
}

// HandleConnection upgrades the request to a websocket watching one lot.
// Connections are refused once the lot has closed.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request, lotID string) {
	lot, err := h.lotRepo.GetLot(r.Context(), lotID)
	if err != nil {
		h.log.Error("Failed to find lot", "error", err, "lot_id", lotID)
		http.Error(w, "lot not found", http.StatusNotFound)
		return
	}

	if time.Now().After(lot.EndDatetime) {
		h.log.Info("Rejected connection, lot has ended", "lot_id", lotID)
		http.Error(w, "lot has already ended", http.StatusForbidden)
		return
	}

	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		http.Error(w, "customer_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, customerID, lotID, h.log)

	if err := h.connManager.RegisterConnection(customerID, lotID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	go h.handleMessages(wsConn, customerID, lotID)
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection, customerID, lotID string) {
	defer func() {
		h.connManager.UnregisterConnection(customerID, lotID)
		conn.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.conn.ReadJSON(&msg); err != nil {
			h.log.Info("Connection closed", "customer_id", customerID, "lot_id", lotID, "error", err)
			break
		}

		msgType, ok := msg["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "place_bid":
			h.handleBidMessage(conn, customerID, lotID, msg)
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, customerID, lotID string, msg map[string]interface{}) {
	amountStr, ok := msg["amount"].(string)
	if !ok {
		conn.Send(map[string]string{"type": "error", "message": "invalid amount"})
		return
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		conn.Send(map[string]string{"type": "error", "message": "invalid amount format"})
		return
	}

	bidType := domain.BidTypeDirect
	if raw, ok := msg["bid_type"].(string); ok && raw != "" {
		bidType = domain.BidType(raw)
	}

	receipt, err := h.bidService.PlaceBid(context.Background(), lotID, customerID, amount, bidType)
	if err != nil {
		h.log.Error("Failed to place bid", "lot_id", lotID, "error", err)
		conn.Send(map[string]string{"type": "error", "message": bidErrorMessage(err)})
		return
	}

	conn.Send(map[string]string{"type": "bid_placed", "bid_id": receipt.BidID})
}

// bidErrorMessage surfaces validation reasons to the client and hides
// everything else behind a generic message.
func bidErrorMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return "failed to place bid"
}

type WebSocketConnection struct {
	conn       *websocket.Conn
	customerID string
	lotID      string
	log        logger.Logger

	writeMu sync.Mutex
}

func NewWebSocketConnection(conn *websocket.Conn, customerID, lotID string, log logger.Logger) *WebSocketConnection {
	return &WebSocketConnection{
		conn:       conn,
		customerID: customerID,
		lotID:      lotID,
		log:        log,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) CustomerID() string {
	return wsc.customerID
}

func (wsc *WebSocketConnection) LotID() string {
	return wsc.lotID
}
