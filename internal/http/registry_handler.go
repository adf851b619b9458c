package http

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/amm-engine/internal/amm"
	"github.com/hxuan190/amm-engine/internal/http/httputil"
)

type RegistryHandler struct {
	ammSvc *amm.Service
}

func NewRegistryHandler(ammSvc *amm.Service) *RegistryHandler {
	return &RegistryHandler{ammSvc: ammSvc}
}

func (h *RegistryHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getRegistry)
}

func (h *RegistryHandler) Root() string {
	return "/registry"
}

// RegistryResponse is the protocol-wide configuration
type RegistryResponse struct {
	Address   string `json:"address"`
	ProgramID string `json:"program_id"`
	Router    string `json:"router"`

	// Receives protocol fee shares; empty while protocol fees are off
	FeeRecipient  string `json:"fee_recipient"`
	FeeController string `json:"fee_controller"`
	Pauser        string `json:"pauser"`

	// Whether pair creation is currently stopped
	Paused    bool `json:"paused" example:"false"`
	PairCount int  `json:"pair_count" example:"12"`
}

// @Summary Registry configuration
// @Tags registry
// @Produce json
// @Success 200 {object} RegistryResponse
// @Router /api/v1/registry [get]
func (h *RegistryHandler) getRegistry(c *gin.Context) {
	reg := h.ammSvc.Registry()
	fees := reg.FeeConfig()
	httputil.Success(c, RegistryResponse{
		Address:       reg.Address().String(),
		ProgramID:     reg.ProgramID().String(),
		Router:        h.ammSvc.Router().Address().String(),
		FeeRecipient:  keyOrEmpty(fees.FeeRecipient),
		FeeController: keyOrEmpty(fees.FeeController),
		Pauser:        keyOrEmpty(reg.Pauser()),
		Paused:        reg.Paused(),
		PairCount:     reg.AllPairsLength(),
	})
}

func keyOrEmpty(k solana.PublicKey) string {
	if k.IsZero() {
		return ""
	}
	return k.String()
}
