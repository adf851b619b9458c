// Package amm wires the ledger, registry, router and oracle windows into one
// long-running service with persistence and monitoring.
package amm

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/amm-engine/internal/adapters/persistence"
	"github.com/hxuan190/amm-engine/internal/amm/ledger"
	"github.com/hxuan190/amm-engine/internal/amm/oracle"
	"github.com/hxuan190/amm-engine/internal/amm/pair"
	"github.com/hxuan190/amm-engine/internal/amm/registry"
	"github.com/hxuan190/amm-engine/internal/amm/router"
	"github.com/hxuan190/amm-engine/internal/common"
	"github.com/hxuan190/amm-engine/internal/config"
	"github.com/hxuan190/amm-engine/internal/domain"
	"github.com/hxuan190/amm-engine/internal/metrics"
	"github.com/hxuan190/amm-engine/internal/services"
)

const AMM_SERVICE = "amm-service"

var ErrNoWindow = errors.New("no observations recorded for pair")

type Service struct {
	container.BaseDIInstance
	logger   *services.ServiceLogger
	storeLog *services.ServiceLogger
	config   *config.AMMConfig

	ledger   *ledger.Ledger
	registry *registry.Registry
	router   *router.Router
	storage  *persistence.Storage

	windows *oracle.Windows

	dirtyMu       sync.Mutex
	dirtyPairs    map[solana.PublicKey]struct{}
	registryDirty bool
	ledgerDirty   bool

	eventCount atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ domain.EventSink = (*Service)(nil)

func (svc *Service) ID() string {
	return AMM_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.logger = services.NewServiceLogger(svc)
	svc.config = c.GetConfig(config.AMM_CONFIG_KEY).(*config.AMMConfig)
	if svc.config == nil {
		return errors.New("invalid amm config")
	}

	var storage *persistence.Storage
	if svc.config.PersistenceEnabled {
		var err error
		if storage, err = persistence.NewStorage(svc.config.DBPath); err != nil {
			return err
		}
	}
	return svc.Init(storage)
}

// NewService builds a service outside the container.
func NewService(cfg *config.AMMConfig, storage *persistence.Storage) (*Service, error) {
	svc := &Service{config: cfg}
	if err := svc.Init(storage); err != nil {
		return nil, err
	}
	return svc, nil
}

// Init builds the engine from the loaded config and restores any persisted state.
// storage may be nil to run in memory only.
func (svc *Service) Init(storage *persistence.Storage) error {
	if svc.logger == nil {
		svc.logger = services.NewServiceLogger(svc)
	}
	svc.storeLog = svc.logger.Component("storage")
	cfg := svc.config
	svc.storage = storage
	svc.windows = oracle.NewWindows(cfg.ObservationCapacity)
	svc.dirtyPairs = make(map[solana.PublicKey]struct{})
	svc.stopCh = make(chan struct{})

	programID, err := common.ParseKeyOrDefault(cfg.ProgramID, common.DefaultProgram)
	if err != nil {
		return fmt.Errorf("program id: %w", err)
	}
	feeController, err := common.ParseKeyOrDefault(cfg.FeeController, common.DeriveIdentity(common.FeeControllerSeed))
	if err != nil {
		return fmt.Errorf("fee controller: %w", err)
	}
	pauser, err := common.ParseKeyOrDefault(cfg.Pauser, common.DeriveIdentity(common.PauserSeed))
	if err != nil {
		return fmt.Errorf("pauser: %w", err)
	}
	feeRecipient, err := common.ParseKeyOrDefault(cfg.FeeRecipient, solana.PublicKey{})
	if err != nil {
		return fmt.Errorf("fee recipient: %w", err)
	}

	svc.ledger = ledger.New()
	if err := svc.restoreLedger(); err != nil {
		return err
	}
	wrapped, err := svc.ledger.WrappedNative()
	if err != nil {
		if wrapped, err = svc.ledger.RegisterWrappedNative(common.WrappedNativeID, cfg.NativeSymbol, uint8(cfg.NativeDecimals)); err != nil {
			return fmt.Errorf("register wrapped native: %w", err)
		}
	}

	svc.registry = registry.New(registry.Options{
		Address:       common.RegistryID,
		ProgramID:     programID,
		FeeController: feeController,
		Pauser:        pauser,
		FeeRecipient:  feeRecipient,
		Policy: pair.Policy{
			MaxOracleElapsed:   uint32(cfg.TWAPMaxElapsed),
			MinOracleChangeBps: uint64(cfg.TWAPMinChangeBps),
			MinSwapOutput:      uint64(cfg.MinSwapOutput),
			MaxSwapOutputBps:   uint64(cfg.MaxSwapOutputBps),
			MaxSwapInputBps:    uint64(cfg.MaxSwapInputBps),
		},
		Tokens:  svc.ledger,
		Journal: svc.ledger,
		Events:  svc,
	})
	if err := svc.restoreRegistry(); err != nil {
		return err
	}

	svc.router = router.New(router.Options{
		Address:  common.RouterID,
		Registry: svc.registry,
		Tokens:   svc.ledger,
		Journal:  svc.ledger,
		Wrapped:  wrapped,
	})

	metrics.PairCount.Set(float64(svc.registry.AllPairsLength()))
	if svc.registry.Paused() {
		metrics.RegistryPaused.Set(1)
	}
	svc.logger.Info().
		Str("program", programID.String()).
		Str("registry", common.RegistryID.String()).
		Str("router", common.RouterID.String()).
		Str("wrapped_native", wrapped.ID().String()).
		Int("pairs", svc.registry.AllPairsLength()).
		Msg("[ammService] engine ready")
	return nil
}

func (svc *Service) restoreLedger() error {
	if svc.storage == nil {
		return nil
	}
	st, err := svc.storage.LoadLedger()
	if err != nil {
		svc.storeLog.Error().Err(err).Msg("[ammService] failed to load ledger from storage, starting empty")
		return nil
	}
	if st == nil {
		return nil
	}
	if err := svc.ledger.Restore(st); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	svc.logger.Info().Int("assets", len(st.Assets)).Msg("[ammService] restored ledger")
	return nil
}

func (svc *Service) restoreRegistry() error {
	if svc.storage == nil {
		return nil
	}
	st, err := svc.storage.LoadRegistry()
	if err != nil {
		svc.storeLog.Error().Err(err).Msg("[ammService] failed to load registry from storage, starting empty")
		return nil
	}
	if st == nil {
		return nil
	}
	pairs, err := svc.storage.LoadAllPairs()
	if err != nil {
		return err
	}
	if err := svc.registry.Restore(st, pairs); err != nil {
		return fmt.Errorf("restore registry: %w", err)
	}

	observations, err := svc.storage.LoadAllObservations()
	if err != nil {
		svc.storeLog.Error().Err(err).Msg("[ammService] failed to load observations from storage")
		return nil
	}
	for address, obs := range observations {
		w := svc.windows.GetOrCreate(address)
		for _, o := range obs {
			w.Push(o)
		}
	}
	svc.logger.Info().Int("pairs", len(st.Pairs)).Int("windows", svc.windows.Len()).Msg("[ammService] restored registry")
	return nil
}

func (svc *Service) Start() error {
	svc.wg.Add(1)
	go svc.observeLoop()
	if svc.storage != nil {
		svc.wg.Add(1)
		go svc.persistLoop()
	}
	return nil
}

func (svc *Service) Stop() error {
	close(svc.stopCh)
	svc.wg.Wait()

	if svc.storage == nil {
		return nil
	}
	if err := svc.Flush(); err != nil {
		svc.storeLog.Error().Err(err).Msg("[ammService] final flush failed")
	}
	return svc.storage.Close()
}

func (svc *Service) Ledger() *ledger.Ledger {
	return svc.ledger
}

func (svc *Service) Registry() *registry.Registry {
	return svc.registry
}

func (svc *Service) Router() *router.Router {
	return svc.router
}

// GetStats returns the number of pairs and of committed events since start.
func (svc *Service) GetStats() (int, uint64) {
	return svc.registry.AllPairsLength(), svc.eventCount.Load()
}

// Emit receives every committed pair and registry event.
func (svc *Service) Emit(evt domain.Event) {
	svc.eventCount.Add(1)
	metrics.PairEvents.WithLabelValues(string(evt.Kind())).Inc()

	svc.dirtyMu.Lock()
	svc.dirtyPairs[evt.PairAddress()] = struct{}{}
	svc.ledgerDirty = true
	if evt.Kind() == domain.EventPairCreated {
		svc.registryDirty = true
	}
	svc.dirtyMu.Unlock()

	switch e := evt.(type) {
	case *domain.PairCreatedEvent:
		metrics.PairCount.Inc()
		svc.logger.Info().
			Str("pair", e.Pair.String()).
			Str("token0", e.Token0.String()).
			Str("token1", e.Token1.String()).
			Int("index", e.Index).
			Msg("[ammService] pair created")
	case *domain.SyncEvent:
		addr := e.Pair.String()
		metrics.PairReserve.WithLabelValues(addr, "0").Set(toFloat(e.Reserve0))
		metrics.PairReserve.WithLabelValues(addr, "1").Set(toFloat(e.Reserve1))
	case *domain.SwapEvent:
		svc.logger.Debug().
			Str("pair", e.Pair.String()).
			Str("amount0_in", e.Amount0In.Dec()).
			Str("amount1_in", e.Amount1In.Dec()).
			Str("amount0_out", e.Amount0Out.Dec()).
			Str("amount1_out", e.Amount1Out.Dec()).
			Msg("[ammService] swap")
	case *domain.MintEvent:
		svc.logger.Debug().Str("pair", e.Pair.String()).Str("amount0", e.Amount0.Dec()).Str("amount1", e.Amount1.Dec()).Msg("[ammService] mint")
	case *domain.BurnEvent:
		svc.logger.Debug().Str("pair", e.Pair.String()).Str("amount0", e.Amount0.Dec()).Str("amount1", e.Amount1.Dec()).Msg("[ammService] burn")
	}
}

func toFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}

// exec runs one mutating operation and records its outcome. Operations that touch
// the ledger serialize on its transactions, so exec takes no lock of its own.
func exec[T any](svc *Service, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	res, err := fn()

	status := "ok"
	if err != nil {
		status = "error"
		svc.logger.Debug().Err(err).Str("operation", operation).Msg("[ammService] operation rejected")
	}
	metrics.Operations.WithLabelValues(operation, status).Inc()
	metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	return res, err
}

// markStateDirty flags the registry and ledger records for the next flush. Admin
// changes emit no pair events.
func (svc *Service) markStateDirty() {
	svc.dirtyMu.Lock()
	svc.ledgerDirty = true
	svc.registryDirty = true
	svc.dirtyMu.Unlock()
}
