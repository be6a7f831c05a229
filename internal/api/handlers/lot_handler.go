package handlers

import (
	"net/http"
	"time"

	"lotbid/internal/domain"
	"lotbid/internal/services"
	"lotbid/pkg/logger"
	"lotbid/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type LotHandler struct {
	lotManager *services.LotManager
	bidService *services.BidService
	log        logger.Logger
}

func NewLotHandler(lotManager *services.LotManager, bidService *services.BidService, log logger.Logger) *LotHandler {
	return &LotHandler{
		lotManager: lotManager,
		bidService: bidService,
		log:        log,
	}
}

type CreateLotRequest struct {
	StoreID         string    `json:"store_id"`
	OwnerCustomerID string    `json:"owner_customer_id"`
	Title           string    `json:"title"`
	StartingPrice   string    `json:"starting_price"`
	ReservePrice    string    `json:"reserve_price"`
	StartDatetime   time.Time `json:"start_datetime"`
	EndDatetime     time.Time `json:"end_datetime"`
}

type LotResponse struct {
	LotID                string    `json:"lot_id"`
	StoreID              string    `json:"store_id"`
	Title                string    `json:"title"`
	StartingPrice        string    `json:"starting_price"`
	CurrentBid           string    `json:"current_bid"`
	IsBidPlaced          bool      `json:"is_bid_placed"`
	ReserveMet           bool      `json:"reserve_met"`
	WinningBidCustomerID string    `json:"winning_bid_customer_id,omitempty"`
	Status               string    `json:"status"`
	Disposition          string    `json:"disposition,omitempty"`
	StartDatetime        time.Time `json:"start_datetime"`
	EndDatetime          time.Time `json:"end_datetime"`
}

func lotResponse(lot *domain.Lot) LotResponse {
	return LotResponse{
		LotID:                lot.ID,
		StoreID:              lot.StoreID,
		Title:                lot.Title,
		StartingPrice:        lot.StartingPrice.String(),
		CurrentBid:           lot.CurrentBid.String(),
		IsBidPlaced:          lot.IsBidPlaced,
		ReserveMet:           lot.ReserveMet,
		WinningBidCustomerID: lot.WinningBidCustomerID,
		Status:               lot.Status.String(),
		Disposition:          string(lot.Disposition),
		StartDatetime:        lot.StartDatetime,
		EndDatetime:          lot.EndDatetime,
	}
}

func (h *LotHandler) CreateLot(c echo.Context) error {
	var req CreateLotRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	startingPrice, err := decimal.NewFromString(req.StartingPrice)
	if err != nil || !startingPrice.IsPositive() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Starting price must be a positive decimal"})
	}

	// Empty reserve means no reserve.
	reservePrice := decimal.Zero
	if req.ReservePrice != "" {
		reservePrice, err = decimal.NewFromString(req.ReservePrice)
		if err != nil || reservePrice.IsNegative() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Reserve price must be a non-negative decimal"})
		}
	}

	if !req.EndDatetime.After(req.StartDatetime) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "End datetime must be after start datetime"})
	}

	lot, err := h.lotManager.CreateLot(c.Request().Context(), services.CreateLotParams{
		StoreID:         req.StoreID,
		OwnerCustomerID: req.OwnerCustomerID,
		Title:           req.Title,
		StartingPrice:   startingPrice,
		ReservePrice:    reservePrice,
		StartDatetime:   req.StartDatetime,
		EndDatetime:     req.EndDatetime,
	})
	if err != nil {
		h.log.Error("Failed to create lot", "error", err)
		return domainError(c, err)
	}

	return c.JSON(http.StatusCreated, lotResponse(lot))
}

func (h *LotHandler) GetLot(c echo.Context) error {
	lotID := c.Param("id")

	lot, err := h.lotManager.GetLot(c.Request().Context(), lotID)
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(http.StatusOK, lotResponse(lot))
}

// GetLotPrice resolves the lot's standing price from its live bid set rather
// than trusting the cached columns.
func (h *LotHandler) GetLotPrice(c echo.Context) error {
	lotID := c.Param("id")

	result, err := h.bidService.CurrentPrice(c.Request().Context(), lotID)
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"lot_id":                  lotID,
		"current_bid":             result.Price.String(),
		"reserve_met":             result.ReserveMet,
		"winning_bid_customer_id": result.WinnerCustomerID,
	})
}

type HistoryItemResponse struct {
	Seq                  int64     `json:"seq"`
	WinningBidCustomerID string    `json:"winning_bid_customer_id"`
	CurrentBid           string    `json:"current_bid"`
	CreatedAt            time.Time `json:"created_at"`
}

func (h *LotHandler) GetLotHistory(c echo.Context) error {
	lotID := c.Param("id")

	history, err := h.bidService.History(c.Request().Context(), lotID)
	if err != nil {
		return domainError(c, err)
	}

	items := make([]HistoryItemResponse, 0, len(history.Items))
	for _, item := range history.Items {
		items = append(items, HistoryItemResponse{
			Seq:                  item.Seq,
			WinningBidCustomerID: item.WinningBidCustomerID,
			CurrentBid:           item.CurrentBid.String(),
			CreatedAt:            item.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"lot_id": lotID,
		"items":  items,
	})
}

type PlaceBidRequest struct {
	CustomerID string `json:"customer_id"`
	Amount     string `json:"amount"`
	BidType    string `json:"bid_type"`
}

func (h *LotHandler) PlaceBid(c echo.Context) error {
	lotID := c.Param("id")

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.CustomerID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "customer_id required"})
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Amount must be a decimal string"})
	}

	bidType := domain.BidTypeMax
	if req.BidType != "" {
		bidType = domain.BidType(req.BidType)
	}

	receipt, err := h.bidService.PlaceBid(c.Request().Context(), lotID, req.CustomerID, amount, bidType)
	if err != nil {
		return domainError(c, err)
	}

	// The receipt carries the resolution computed under the lot lock, so the
	// response reflects this bid rather than whatever landed after it.
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"bid_id":                  receipt.BidID,
		"lot_id":                  lotID,
		"current_bid":             receipt.Result.Price.String(),
		"reserve_met":             receipt.Result.ReserveMet,
		"winning_bid_customer_id": receipt.Result.WinnerCustomerID,
	})
}

func (h *LotHandler) CancelBid(c echo.Context) error {
	lotID := c.Param("id")
	bidID := c.Param("bidID")

	if err := h.bidService.CancelBid(c.Request().Context(), lotID, bidID); err != nil {
		return domainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Bid cancelled"})
}

func (h *LotHandler) ResetLot(c echo.Context) error {
	lotID := c.Param("id")

	if err := h.bidService.ResetLot(c.Request().Context(), lotID); err != nil {
		return domainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Lot reset"})
}

type IncrementHandler struct {
	bandRepo domain.IncrementBandRepository
	log      logger.Logger
}

func NewIncrementHandler(bandRepo domain.IncrementBandRepository, log logger.Logger) *IncrementHandler {
	return &IncrementHandler{bandRepo: bandRepo, log: log}
}

type BandRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Increment string `json:"increment"`
}

type BandResponse struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Increment string `json:"increment"`
}

func (h *IncrementHandler) GetBands(c echo.Context) error {
	storeID := c.Param("storeID")

	bands, err := h.bandRepo.GetBands(c.Request().Context(), storeID)
	if err != nil {
		return domainError(c, err)
	}

	out := make([]BandResponse, 0, len(bands))
	for _, b := range bands {
		out = append(out, BandResponse{
			From:      b.From.String(),
			To:        b.To.String(),
			Increment: b.Increment.String(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"store_id": storeID,
		"bands":    out,
	})
}

func (h *IncrementHandler) ReplaceBands(c echo.Context) error {
	storeID := c.Param("storeID")

	var reqs []BandRequest
	if err := c.Bind(&reqs); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	bands := make([]domain.IncrementBand, 0, len(reqs))
	for _, req := range reqs {
		from, err := decimal.NewFromString(req.From)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "from must be a decimal string"})
		}
		to, err := decimal.NewFromString(req.To)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "to must be a decimal string"})
		}
		inc, err := decimal.NewFromString(req.Increment)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "increment must be a decimal string"})
		}
		if !to.GreaterThan(from) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "to must be greater than from"})
		}
		bands = append(bands, domain.IncrementBand{
			ID:        utils.GenerateID("band"),
			StoreID:   storeID,
			From:      from,
			To:        to,
			Increment: inc,
		})
	}

	if err := h.bandRepo.ReplaceBands(c.Request().Context(), storeID, bands); err != nil {
		h.log.Error("Failed to replace increment bands", "store_id", storeID, "error", err)
		return domainError(c, err)
	}

	h.log.Info("Increment bands replaced", "store_id", storeID, "bands", len(bands))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"store_id": storeID,
		"bands":    len(bands),
	})
}

// domainError maps domain error types onto HTTP statuses.
func domainError(c echo.Context, err error) error {
	switch {
	case domain.IsValidation(err):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case domain.IsNotFound(err):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case domain.IsConflict(err):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}
