package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"github.com/hxuan190/amm-engine/internal/amm"
	"github.com/hxuan190/amm-engine/internal/amm/mathutil"
	"github.com/hxuan190/amm-engine/internal/amm/router"
	"github.com/hxuan190/amm-engine/internal/domain"
	"github.com/hxuan190/amm-engine/internal/http/httputil"
	"github.com/hxuan190/amm-engine/internal/metrics"
)

const (
	defaultSlippageBps = 50
	maxPathLength      = 8
)

type QuoteHandler struct {
	ammSvc *amm.Service
}

func NewQuoteHandler(ammSvc *amm.Service) *QuoteHandler {
	return &QuoteHandler{ammSvc: ammSvc}
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

// QuoteRequest represents the parameters for requesting a swap quote
type QuoteRequest struct {
	// Comma-separated token ids from input to output; every adjacent pair must have a pool
	// Example: "TokenA,TokenB" or "TokenA,TokenB,TokenC"
	Path string `form:"path" binding:"required"`

	// Amount in base units
	Amount string `form:"amount" binding:"required" example:"1000000000"`

	// Swap mode determines how the amount is interpreted
	// - "ExactIn": Amount is the exact input, output is computed (rounded down)
	// - "ExactOut": Amount is the exact output desired, input is computed (rounded up)
	SwapMode string `form:"swapMode" binding:"required" enums:"ExactIn,ExactOut" example:"ExactIn"`

	// Slippage tolerance in basis points (1 bps = 0.01%)
	// Default: 50 bps (0.5%)
	SlippageBps uint16 `form:"slippageBps" example:"50"`
}

// HopInfo describes a single hop of the path
type HopInfo struct {
	PairAddress string `json:"pairAddress"`
	InputToken  string `json:"inputToken"`
	OutputToken string `json:"outputToken"`
	AmountIn    string `json:"amountIn" example:"1000000000"`
	AmountOut   string `json:"amountOut" example:"997000000"`

	// Swap fee taken from this hop's input, in the input token
	FeeAmount string `json:"feeAmount" example:"3000000"`

	PriceImpactBps uint16 `json:"priceImpactBps" example:"12"`
}

// QuoteResponse contains the evaluated path
type QuoteResponse struct {
	InputToken  string `json:"inputToken"`
	OutputToken string `json:"outputToken"`

	// For ExactIn: the requested amount. For ExactOut: the input required.
	AmountIn string `json:"amountIn" example:"1000000000"`

	// For ExactIn: the computed output. For ExactOut: the requested amount.
	AmountOut string `json:"amountOut" example:"145320000"`

	// Amount at every step of the path, input first
	Amounts []string `json:"amounts"`

	// Summed per-hop price impact in basis points, fee excluded
	PriceImpactBps uint16 `json:"priceImpactBps" example:"25"`

	// Human-readable price impact percentage
	PriceImpactPercent string `json:"priceImpactPercent" example:"0.25%"`

	// Price impact severity classification
	PriceImpactSeverity string `json:"priceImpactSeverity" enums:"none,low,moderate,high,extreme" example:"low"`

	// User-friendly warning message, empty if impact is negligible
	PriceImpactWarning string `json:"priceImpactWarning" example:"Low price impact"`

	// Swap fee per hop in basis points
	FeeBps uint16 `json:"feeBps" example:"30"`

	Hops     []HopInfo `json:"hops"`
	HopCount int       `json:"hopCount" example:"1"`

	// Minimum output (ExactIn) or maximum input (ExactOut) after applying slippage,
	// ready to pass as the swap limit
	OtherAmountThreshold string `json:"otherAmountThreshold" example:"144593400"`
}

type parsedQuoteRequest struct {
	path        []solana.PublicKey
	amount      *uint256.Int
	exactIn     bool
	swapMode    string
	slippageBps uint16
}

func (h *QuoteHandler) parseQuoteRequest(c *gin.Context) (*parsedQuoteRequest, bool) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.BadRequest(c, "invalid query parameters: "+err.Error())
		return nil, false
	}

	parts := strings.Split(req.Path, ",")
	if len(parts) < 2 || len(parts) > maxPathLength {
		httputil.BadRequest(c, fmt.Sprintf("invalid path: need 2 to %d tokens", maxPathLength))
		return nil, false
	}
	path := make([]solana.PublicKey, len(parts))
	for i, part := range parts {
		key, err := solana.PublicKeyFromBase58(strings.TrimSpace(part))
		if err != nil {
			httputil.BadRequest(c, fmt.Sprintf("invalid path token %d", i))
			return nil, false
		}
		path[i] = key
	}

	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil || amount.IsZero() {
		httputil.BadRequest(c, "invalid amount: must be a positive integer")
		return nil, false
	}

	var exactIn bool
	switch req.SwapMode {
	case "ExactIn":
		exactIn = true
	case "ExactOut":
		exactIn = false
	default:
		httputil.BadRequest(c, "invalid swapMode: must be ExactIn or ExactOut")
		return nil, false
	}

	slippageBps := req.SlippageBps
	if slippageBps == 0 {
		slippageBps = defaultSlippageBps
	}
	if slippageBps >= 10000 {
		httputil.BadRequest(c, "invalid slippageBps: must be below 10000")
		return nil, false
	}

	return &parsedQuoteRequest{
		path:        path,
		amount:      amount,
		exactIn:     exactIn,
		swapMode:    req.SwapMode,
		slippageBps: slippageBps,
	}, true
}

// otherAmountThreshold applies slippage to the computed side of the quote. ExactIn
// rounds the minimum output down; ExactOut divides the input by (1 - slippage) and
// rounds the maximum up.
func otherAmountThreshold(quote *domain.MultiHopQuoteResult, slippageBps uint16) (*uint256.Int, error) {
	if quote.ExactIn {
		return mathutil.MulDiv(quote.AmountOut, uint256.NewInt(uint64(10000-slippageBps)), mathutil.BpsDenom)
	}
	return mathutil.MulDivRoundingUp(quote.AmountIn, mathutil.BpsDenom, uint256.NewInt(uint64(10000-slippageBps)))
}

func buildQuoteResponse(quote *domain.MultiHopQuoteResult, threshold *uint256.Int) QuoteResponse {
	hops := make([]HopInfo, 0, len(quote.Hops))
	for _, hop := range quote.Hops {
		hops = append(hops, HopInfo{
			PairAddress:    hop.Pair.String(),
			InputToken:     hop.TokenIn.String(),
			OutputToken:    hop.TokenOut.String(),
			AmountIn:       hop.AmountIn.Dec(),
			AmountOut:      hop.AmountOut.Dec(),
			FeeAmount:      hop.FeeAmount.Dec(),
			PriceImpactBps: hop.PriceImpactBps,
		})
	}
	amounts := make([]string, len(quote.Amounts))
	for i, a := range quote.Amounts {
		amounts[i] = a.Dec()
	}

	return QuoteResponse{
		InputToken:           quote.Route[0].String(),
		OutputToken:          quote.Route[len(quote.Route)-1].String(),
		AmountIn:             quote.AmountIn.Dec(),
		AmountOut:            quote.AmountOut.Dec(),
		Amounts:              amounts,
		PriceImpactBps:       quote.PriceImpactBps,
		PriceImpactPercent:   fmt.Sprintf("%.2f%%", float64(quote.PriceImpactBps)/100.0),
		PriceImpactSeverity:  string(router.GetPriceImpactSeverity(quote.PriceImpactBps)),
		PriceImpactWarning:   router.GetPriceImpactWarning(quote.PriceImpactBps),
		FeeBps:               feeBps,
		Hops:                 hops,
		HopCount:             len(hops),
		OtherAmountThreshold: threshold.Dec(),
	}
}

// @Summary Get swap quote
// @Description Prices a swap along an explicit token path using the pairs' current reserves.
// @Description Nothing is executed and no state changes.
// @Description
// @Description **Swap Modes:**
// @Description - ExactIn: amount is the exact input, each hop's output rounds down
// @Description - ExactOut: amount is the exact output, each hop's input rounds up
// @Tags quote
// @Produce json
// @Param path query string true "Comma-separated token ids, input first"
// @Param amount query string true "Amount in base units" example("1000000000")
// @Param swapMode query string true "Swap mode: ExactIn or ExactOut" Enums(ExactIn, ExactOut) example("ExactIn")
// @Param slippageBps query int false "Slippage tolerance in basis points. Default: 50 (0.5%)" default(50) example(50)
// @Success 200 {object} QuoteResponse "Evaluated path"
// @Failure 400 {object} map[string]string "Invalid request parameters or insufficient liquidity"
// @Failure 404 {object} map[string]string "A hop of the path has no pair"
// @Router /api/v1/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	parsed, ok := h.parseQuoteRequest(c)
	if !ok {
		metrics.QuoteRequests.WithLabelValues("invalid", "error").Inc()
		return
	}

	start := time.Now()
	quote, err := h.ammSvc.Quote(parsed.path, parsed.amount, parsed.exactIn)
	metrics.QuoteDuration.WithLabelValues(parsed.swapMode).Observe(time.Since(start).Seconds())
	if err == nil {
		var threshold *uint256.Int
		if threshold, err = otherAmountThreshold(quote, parsed.slippageBps); err == nil {
			metrics.QuoteRequests.WithLabelValues(parsed.swapMode, "ok").Inc()
			severity := router.GetPriceImpactSeverity(quote.PriceImpactBps)
			metrics.PriceImpact.WithLabelValues(string(severity)).Observe(float64(quote.PriceImpactBps))
			httputil.Success(c, buildQuoteResponse(quote, threshold))
			return
		}
	}

	metrics.QuoteRequests.WithLabelValues(parsed.swapMode, "error").Inc()
	httputil.HttpError(c, toHttpError(err))
}
