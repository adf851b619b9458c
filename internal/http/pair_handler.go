package http

import (
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm"
	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
	"github.com/hxuan190/amm-engine/internal/amm/oracle"
	"github.com/hxuan190/amm-engine/internal/amm/pair"
	"github.com/hxuan190/amm-engine/internal/domain"
	"github.com/hxuan190/amm-engine/internal/http/httputil"
)

const feeBps = pair.FeeNumerator * 10000 / pair.FeeDenominator

type PairHandler struct {
	ammSvc *amm.Service
	now    func() time.Time
}

func NewPairHandler(ammSvc *amm.Service) *PairHandler {
	return &PairHandler{ammSvc: ammSvc, now: time.Now}
}

func (h *PairHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/stats", h.getStats)
	pub.GET("/list", h.listPairs)
	pub.GET("/:address", h.getPair)
	pub.GET("/:address/twap", h.getTWAP)
}

func (h *PairHandler) Root() string {
	return "/pairs"
}

// PairStatsResponse contains aggregated statistics about the engine's pairs
type PairStatsResponse struct {
	// Number of pairs created by the registry
	PairCount int `json:"pair_count" example:"12"`

	// Number of committed pair events (mint, burn, swap, sync, creation) since start
	EventCount uint64 `json:"event_count" example:"45892"`
}

// @Summary Pair statistics
// @Tags pairs
// @Produce json
// @Success 200 {object} PairStatsResponse
// @Router /api/v1/pairs/stats [get]
func (h *PairHandler) getStats(c *gin.Context) {
	pairCount, eventCount := h.ammSvc.GetStats()
	httputil.Success(c, PairStatsResponse{
		PairCount:  pairCount,
		EventCount: eventCount,
	})
}

// PairInfo contains basic information about a pair
type PairInfo struct {
	// Pair address, derived from the program id and the sorted token ids
	Address string `json:"address" example:"HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ"`

	// Lower-sorted token of the pair
	Token0 string `json:"token0" example:"So11111111111111111111111111111111111111112"`

	// Higher-sorted token of the pair
	Token1 string `json:"token1" example:"uSd2czE61Evaf76RNbq4KPpXnkiL3irdzgLFUMe3NoG"`

	// Creation index in the registry
	Index int `json:"index" example:"0"`
}

// PairListResponse contains a paginated list of pairs in creation order
type PairListResponse struct {
	Pairs []PairInfo `json:"pairs"`

	// Total number of pairs across all pages
	Total int `json:"total" example:"12"`

	// Current page number (1-indexed)
	Page int `json:"page" example:"1"`

	// Number of pairs per page (max 500)
	Limit int `json:"limit" example:"100"`

	// Total number of pages available
	Pages int `json:"pages" example:"1"`
}

// @Summary List pairs
// @Tags pairs
// @Produce json
// @Param page query int false "Page number (1-indexed)" default(1)
// @Param limit query int false "Page size, max 500" default(100)
// @Success 200 {object} PairListResponse
// @Router /api/v1/pairs/list [get]
func (h *PairHandler) listPairs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	allPairs := h.ammSvc.Registry().AllPairs()
	total := len(allPairs)

	pages := (total + limit - 1) / limit
	// pages past the last one are empty; page-1 < pages keeps the product in range
	offset, end := total, total
	if page-1 < pages {
		offset = (page - 1) * limit
		end = min(offset+limit, total)
	}

	pairs := make([]PairInfo, 0, end-offset)
	for i, p := range allPairs[offset:end] {
		pairs = append(pairs, PairInfo{
			Address: p.Address().String(),
			Token0:  p.Token0().String(),
			Token1:  p.Token1().String(),
			Index:   offset + i,
		})
	}

	httputil.Success(c, PairListResponse{
		Pairs: pairs,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pages,
	})
}

// PairDetailResponse is the full read-only view of one pair
type PairDetailResponse struct {
	Address string `json:"address" example:"HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ"`
	Token0  string `json:"token0" example:"So11111111111111111111111111111111111111112"`
	Token1  string `json:"token1" example:"uSd2czE61Evaf76RNbq4KPpXnkiL3irdzgLFUMe3NoG"`

	// Reserves in base units as of the last update
	Reserve0 string `json:"reserve0" example:"1234567890123"`
	Reserve1 string `json:"reserve1" example:"9876543210987"`

	// Unix seconds (mod 2^32) of the last reserve update
	BlockTimestampLast uint32 `json:"block_timestamp_last" example:"1760000000"`

	// Raw UQ112x112 cumulative prices; only differences between two readings are meaningful
	Price0CumulativeLast string `json:"price0_cumulative_last"`
	Price1CumulativeLast string `json:"price1_cumulative_last"`

	// reserve0 * reserve1 after the last liquidity event, zero while protocol fees are off
	KLast string `json:"k_last" example:"0"`

	// Outstanding liquidity shares, locked minimum included
	TotalSupply string `json:"total_supply" example:"3464101615"`

	// Spot prices: token1 per token0 and token0 per token1
	Price0 string `json:"price0" example:"8.0000000000"`
	Price1 string `json:"price1" example:"0.1250000000"`

	// Swap fee in basis points
	FeeBps uint16 `json:"fee_bps" example:"30"`
}

// @Summary Get pair
// @Tags pairs
// @Produce json
// @Param address path string true "Pair address"
// @Success 200 {object} PairDetailResponse
// @Failure 400 {object} map[string]string "Invalid address"
// @Failure 404 {object} map[string]string "Pair not found"
// @Router /api/v1/pairs/{address} [get]
func (h *PairHandler) getPair(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	snap := p.Snapshot()

	resp := PairDetailResponse{
		Address:              snap.Address.String(),
		Token0:               snap.Token0.String(),
		Token1:               snap.Token1.String(),
		Reserve0:             snap.Reserve0.Dec(),
		Reserve1:             snap.Reserve1.Dec(),
		BlockTimestampLast:   snap.BlockTimestampLast,
		Price0CumulativeLast: snap.Price0CumulativeLast.Dec(),
		Price1CumulativeLast: snap.Price1CumulativeLast.Dec(),
		KLast:                snap.KLast.Dec(),
		TotalSupply:          snap.TotalSupply.Dec(),
		Price0:               spotPrice(snap.Reserve1, snap.Reserve0),
		Price1:               spotPrice(snap.Reserve0, snap.Reserve1),
		FeeBps:               feeBps,
	}
	httputil.Success(c, resp)
}

func spotPrice(numerator, denominator *uint256.Int) string {
	q, err := mathutil.Fraction(numerator, denominator)
	if err != nil {
		return "0"
	}
	return q.Decimal().StringFixed(10)
}

// TWAPResponse is a time-weighted average price over an observed window
type TWAPResponse struct {
	Pair string `json:"pair" example:"HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ"`

	// Window of the average in unix seconds. With a period, From is To minus the period
	// and the stored observation used may be older.
	From uint32 `json:"from" example:"1760000000"`
	To   uint32 `json:"to" example:"1760003600"`

	// Average token1 per token0 and token0 per token1
	Price0 string `json:"price0" example:"8.0000000000"`
	Price1 string `json:"price1" example:"0.1250000000"`

	// Number of stored observations for the pair
	Observations int `json:"observations" example:"60"`
}

// @Summary Get time-weighted average price
// @Description Averages the pair's cumulative prices. With period set, the average spans at
// @Description least that many seconds of stored observations. Without it, the average runs
// @Description from the newest stored observation to now.
// @Tags pairs
// @Produce json
// @Param address path string true "Pair address"
// @Param period query int false "Minimum averaging period in seconds"
// @Success 200 {object} TWAPResponse
// @Failure 400 {object} map[string]string "Invalid address or window too short"
// @Failure 404 {object} map[string]string "Pair or observations not found"
// @Router /api/v1/pairs/{address}/twap [get]
func (h *PairHandler) getTWAP(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	period, err := strconv.ParseUint(c.DefaultQuery("period", "0"), 10, 32)
	if err != nil {
		httputil.BadRequest(c, "invalid period: must be a non-negative integer")
		return
	}

	w, err := h.ammSvc.Window(p.Address())
	if err != nil {
		httputil.HttpError(c, toHttpError(err))
		return
	}

	resp := TWAPResponse{Pair: p.Address().String(), Observations: w.Len()}
	var price0, price1 mathutil.UQ112x112
	if period > 0 {
		observations := w.All()
		price0, price1, err = oracle.Consult(w, uint32(period))
		if err == nil {
			resp.To = observations[len(observations)-1].Timestamp
			resp.From = resp.To - uint32(period)
		}
	} else {
		latest, found := w.Latest()
		if !found {
			httputil.HttpError(c, toHttpError(amm.ErrNoWindow))
			return
		}
		resp.From = latest.Timestamp
		price0, price1, resp.To, err = h.averageSince(p, latest)
	}
	if err != nil {
		httputil.HttpError(c, toHttpError(err))
		return
	}

	resp.Price0 = price0.Decimal().StringFixed(10)
	resp.Price1 = price1.Decimal().StringFixed(10)
	httputil.Success(c, resp)
}

// averageSince averages from a stored observation to the pair's current accumulators.
func (h *PairHandler) averageSince(p *pair.Pair, older domain.Observation) (price0, price1 mathutil.UQ112x112, to uint32, err error) {
	current, err := oracle.CurrentCumulativePrices(p, h.now())
	if err != nil {
		return price0, price1, 0, err
	}
	price0, price1, err = oracle.Average(older, current)
	return price0, price1, current.Timestamp, err
}

func (h *PairHandler) lookup(c *gin.Context) (*pair.Pair, bool) {
	address, err := solana.PublicKeyFromBase58(c.Param("address"))
	if err != nil {
		httputil.BadRequest(c, "invalid pair address")
		return nil, false
	}
	p, err := h.ammSvc.Registry().PairByAddress(address)
	if err != nil {
		httputil.HttpError(c, toHttpError(err))
		return nil, false
	}
	return p, true
}
