package amm

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/amm-engine/internal/amm/ledger"
	"github.com/hxuan190/amm-engine/internal/amm/oracle"
	"github.com/hxuan190/amm-engine/internal/domain"
	"github.com/hxuan190/amm-engine/internal/metrics"
)

// Window returns the observation ring of a known pair.
func (svc *Service) Window(address solana.PublicKey) (*oracle.Window, error) {
	if _, err := svc.registry.PairByAddress(address); err != nil {
		return nil, err
	}
	w, ok := svc.windows.Get(address)
	if !ok {
		return nil, ErrNoWindow
	}
	return w, nil
}

// Observe samples the cumulative prices of every pair with reserves at now.
func (svc *Service) Observe(now time.Time) int {
	recorded := 0
	for _, p := range svc.registry.AllPairs() {
		obs, err := oracle.CurrentCumulativePrices(p, now)
		if errors.Is(err, oracle.ErrEmptyReserves) {
			continue
		}
		if err != nil {
			svc.logger.Warn().Err(err).Str("pair", p.Address().String()).Msg("[ammService] failed to read cumulative prices")
			continue
		}
		if svc.windows.GetOrCreate(p.Address()).Push(obs) {
			recorded++
			svc.markObserved(p.Address())
		}
	}
	metrics.Observations.Add(float64(recorded))
	return recorded
}

func (svc *Service) markObserved(address solana.PublicKey) {
	svc.dirtyMu.Lock()
	svc.dirtyPairs[address] = struct{}{}
	svc.dirtyMu.Unlock()
}

func (svc *Service) observeLoop() {
	defer svc.wg.Done()
	ticker := time.NewTicker(time.Duration(svc.config.ObservationInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-svc.stopCh:
			return
		case now := <-ticker.C:
			svc.Observe(now)
		}
	}
}

func (svc *Service) persistLoop() {
	defer svc.wg.Done()
	ticker := time.NewTicker(time.Duration(svc.config.PersistInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-svc.stopCh:
			return
		case <-ticker.C:
			if err := svc.Flush(); err != nil {
				svc.storeLog.Error().Err(err).Msg("[ammService] failed to persist state")
			}
		}
	}
}

// Flush writes every pair touched since the last flush, plus the registry and ledger
// when they changed. State is copied inside a ledger transaction so the records form
// one consistent cut. Failed flushes are retried on the next tick.
func (svc *Service) Flush() error {
	if svc.storage == nil {
		return nil
	}

	svc.dirtyMu.Lock()
	dirty := svc.dirtyPairs
	registryDirty, ledgerDirty := svc.registryDirty, svc.ledgerDirty
	svc.dirtyPairs = make(map[solana.PublicKey]struct{})
	svc.registryDirty, svc.ledgerDirty = false, false
	svc.dirtyMu.Unlock()

	if len(dirty) == 0 && !registryDirty && !ledgerDirty {
		return nil
	}

	start := time.Now()
	var (
		pairs        []*domain.PairState
		observations = make(map[solana.PublicKey][]domain.Observation)
		registrySt   *domain.RegistryState
		ledgerSt     *ledger.State
	)
	err := svc.ledger.Exclusive(context.Background(), func() {
		for address := range dirty {
			p, err := svc.registry.PairByAddress(address)
			if err != nil {
				continue
			}
			pairs = append(pairs, p.State())
			if w, ok := svc.windows.Get(address); ok {
				observations[address] = w.All()
			}
		}
		if registryDirty || len(pairs) > 0 {
			registrySt = svc.registry.State()
		}
		if ledgerDirty {
			ledgerSt = svc.ledger.State()
		}
	})
	if err == nil {
		err = svc.write(pairs, observations, registrySt, ledgerSt)
	}
	metrics.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PersistFailures.Inc()
		svc.dirtyMu.Lock()
		for address := range dirty {
			svc.dirtyPairs[address] = struct{}{}
		}
		svc.registryDirty = svc.registryDirty || registryDirty
		svc.ledgerDirty = svc.ledgerDirty || ledgerDirty
		svc.dirtyMu.Unlock()
		return err
	}

	svc.storeLog.Debug().
		Int("pairs", len(pairs)).
		Bool("registry", registrySt != nil).
		Bool("ledger", ledgerSt != nil).
		Msg("[ammService] persisted state to storage")
	return nil
}

// write stores the ledger first and the registry last: a registry record never lists
// a pair whose record is missing.
func (svc *Service) write(pairs []*domain.PairState, observations map[solana.PublicKey][]domain.Observation, registrySt *domain.RegistryState, ledgerSt *ledger.State) error {
	if ledgerSt != nil {
		if err := svc.storage.SaveLedger(ledgerSt); err != nil {
			return err
		}
	}
	if len(pairs) > 0 {
		if err := svc.storage.SavePairBatch(pairs); err != nil {
			return err
		}
	}
	for address, obs := range observations {
		if err := svc.storage.SaveObservations(address, obs); err != nil {
			return err
		}
	}
	if registrySt != nil {
		return svc.storage.SaveRegistry(registrySt)
	}
	return nil
}
