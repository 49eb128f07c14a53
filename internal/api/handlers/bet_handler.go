package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"autobidder/internal/domain"
	"autobidder/internal/services"
	"autobidder/pkg/logger"
)

type BetHandler struct {
	bets      domain.BetRepository
	domains   domain.DomainRepository
	processor *services.BidProcessor
	catalog   *services.CatalogParser
	log       logger.Logger
}

type ClaimBetRequest struct {
	DomainID int64 `json:"domain_id"`
	MaxBet   int64 `json:"max_bet"`
}

type UpdateMaxBetRequest struct {
	MaxBet int64 `json:"max_bet"`
}

type BetResponse struct {
	DomainID       int64     `json:"domain_id"`
	DomainName     string    `json:"domain_name,omitempty"`
	MaxBet         int64     `json:"max_bet"`
	ExpirationDate time.Time `json:"expiration_date"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewBetHandler(bets domain.BetRepository, domains domain.DomainRepository,
	processor *services.BidProcessor, catalog *services.CatalogParser, log logger.Logger) *BetHandler {
	return &BetHandler{
		bets:      bets,
		domains:   domains,
		processor: processor,
		catalog:   catalog,
		log:       log,
	}
}

func (h *BetHandler) ClaimBet(c echo.Context) error {
	var req ClaimBetRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.DomainID <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "domain_id is required"})
	}
	if req.MaxBet <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "max_bet must be positive"})
	}

	// Bets attach to catalogued domains only; the crawler owns discovery.
	d, err := h.domains.GetDomain(c.Request().Context(), req.DomainID)
	if err != nil {
		h.log.Error("Failed to look up domain", "domain_id", req.DomainID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to look up domain"})
	}
	if d == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Unknown domain, refresh the catalog first"})
	}

	bet := &domain.Bet{
		DomainID:       req.DomainID,
		MaxBet:         req.MaxBet,
		ExpirationDate: d.ExpirationDate,
		CreatedAt:      time.Now(),
	}
	if err := h.bets.UpsertBet(c.Request().Context(), bet); err != nil {
		h.log.Error("Failed to save bet", "domain_id", req.DomainID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save bet"})
	}

	h.log.Info("Bet claimed", "domain_id", req.DomainID, "domain", d.Name, "max_bet", req.MaxBet)
	return c.JSON(http.StatusCreated, BetResponse{
		DomainID:       bet.DomainID,
		DomainName:     d.Name,
		MaxBet:         bet.MaxBet,
		ExpirationDate: bet.ExpirationDate,
		CreatedAt:      bet.CreatedAt,
	})
}

func (h *BetHandler) ListBets(c echo.Context) error {
	bets, err := h.bets.ListAll(c.Request().Context())
	if err != nil {
		h.log.Error("Failed to list bets", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list bets"})
	}

	response := make([]BetResponse, 0, len(bets))
	for _, bet := range bets {
		r := BetResponse{
			DomainID:       bet.DomainID,
			MaxBet:         bet.MaxBet,
			ExpirationDate: bet.ExpirationDate,
			CreatedAt:      bet.CreatedAt,
		}
		if bet.Domain != nil {
			r.DomainName = bet.Domain.Name
		}
		response = append(response, r)
	}

	return c.JSON(http.StatusOK, response)
}

func (h *BetHandler) UpdateMaxBet(c echo.Context) error {
	domainID, err := parseDomainID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid domain id"})
	}

	var req UpdateMaxBetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.MaxBet <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "max_bet must be positive"})
	}

	bet, err := h.bets.GetBet(c.Request().Context(), domainID)
	if err != nil {
		h.log.Error("Failed to look up bet", "domain_id", domainID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to look up bet"})
	}
	if bet == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No bet for this domain"})
	}

	if err := h.bets.UpdateMaxBet(c.Request().Context(), domainID, req.MaxBet); err != nil {
		h.log.Error("Failed to update max bet", "domain_id", domainID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update max bet"})
	}

	h.log.Info("Max bet updated", "domain_id", domainID, "max_bet", req.MaxBet)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"domain_id": domainID,
		"max_bet":   req.MaxBet,
	})
}

func (h *BetHandler) DeleteBet(c echo.Context) error {
	domainID, err := parseDomainID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid domain id"})
	}

	if err := h.bets.DeleteBet(c.Request().Context(), domainID); err != nil {
		h.log.Error("Failed to delete bet", "domain_id", domainID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete bet"})
	}

	h.log.Info("Bet deleted", "domain_id", domainID)
	return c.JSON(http.StatusOK, map[string]string{"message": "Bet deleted"})
}

// TriggerSweep kicks an off-schedule sweep. The sweep still contends for the
// single-flight lock, so firing this during a scheduled round is harmless.
func (h *BetHandler) TriggerSweep(c echo.Context) error {
	go h.processor.RunSweep(context.Background())

	h.log.Info("Manual sweep triggered", "remote_addr", c.RealIP())
	return c.JSON(http.StatusAccepted, map[string]string{"message": "Sweep started"})
}

func (h *BetHandler) RefreshCatalog(c echo.Context) error {
	go func() {
		if err := h.catalog.Run(context.Background()); err != nil {
			h.log.Error("Manual catalog refresh failed", "error", err)
		}
	}()

	h.log.Info("Manual catalog refresh triggered", "remote_addr", c.RealIP())
	return c.JSON(http.StatusAccepted, map[string]string{"message": "Catalog refresh started"})
}

func parseDomainID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("domain_id"), 10, 64)
}
