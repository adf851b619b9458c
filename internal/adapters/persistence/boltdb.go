package persistence

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"

	"github.com/hxuan190/amm-engine/internal/amm/ledger"
	"github.com/hxuan190/amm-engine/internal/domain"
)

const (
	PairsBucket        = "pairs"
	RegistryBucket     = "registry"
	LedgerBucket       = "ledger"
	ObservationsBucket = "observations"

	stateKey = "state"

	DefaultDBPath = "./data/amm.db"
)

var ErrChecksumMismatch = errors.New("checksum mismatch")

type StoredPair struct {
	Address              string                       `json:"address"`
	Token0               string                       `json:"token0"`
	Token1               string                       `json:"token1"`
	Reserve0             string                       `json:"reserve0"`
	Reserve1             string                       `json:"reserve1"`
	BlockTimestampLast   uint32                       `json:"blockTimestampLast"`
	Price0CumulativeLast string                       `json:"price0CumulativeLast"`
	Price1CumulativeLast string                       `json:"price1CumulativeLast"`
	KLast                string                       `json:"kLast"`
	TotalSupply          string                       `json:"totalSupply"`
	Balances             map[string]string            `json:"balances"`
	Allowances           map[string]map[string]string `json:"allowances,omitempty"`

	// Checksum is the hex blake3 digest of the record encoded with an empty Checksum.
	Checksum string `json:"checksum"`
}

type StoredRegistry struct {
	FeeRecipient  string   `json:"feeRecipient"`
	FeeController string   `json:"feeController"`
	Pauser        string   `json:"pauser"`
	Paused        bool     `json:"paused"`
	Pairs         []string `json:"pairs"`
}

type StoredAsset struct {
	ID             string                       `json:"id"`
	Symbol         string                       `json:"symbol"`
	Decimals       uint8                        `json:"decimals"`
	TransferFeeBps uint16                       `json:"transferFeeBps,omitempty"`
	Wrapped        bool                         `json:"wrapped,omitempty"`
	Supply         string                       `json:"supply"`
	Balances       map[string]string            `json:"balances"`
	Allowances     map[string]map[string]string `json:"allowances,omitempty"`
}

type StoredLedger struct {
	Assets []StoredAsset     `json:"assets"`
	Native map[string]string `json:"native"`
}

// storedObservation is the Borsh layout of one oracle sample.
type storedObservation struct {
	Timestamp        uint32
	Price0Cumulative [32]byte
	Price1Cumulative [32]byte
}

type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[ammStorage] opened database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Storage) SavePairBatch(pairs []*domain.PairState) error {
	if len(pairs) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	for _, st := range pairs {
		data, err := encodePair(st)
		if err != nil {
			return fmt.Errorf("failed to marshal pair %s: %w", st.Address, err)
		}

		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(PairsBucket),
			Key:    []byte(st.Address.String()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return fmt.Errorf("failed to add pair %s to batch: %w", st.Address, err)
		}
	}

	if err := batch.Execute(); err != nil {
		log.Error().Err(err).Int("count", len(pairs)).Msg("[ammStorage] FAILED to execute batch")
		return err
	}

	log.Debug().Int("count", len(pairs)).Msg("[ammStorage] saved pair batch")
	return nil
}

// LoadAllPairs returns every stored pair that decodes and passes its checksum.
// Corrupt records are logged and skipped.
func (s *Storage) LoadAllPairs() (map[solana.PublicKey]*domain.PairState, error) {
	data, err := s.db.List(PairsBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list pairs: %w", err)
	}

	pairs := make(map[solana.PublicKey]*domain.PairState, len(data))
	failed := 0
	for address, value := range data {
		st, err := decodePair(value)
		if err != nil {
			log.Error().Str("address", address).Err(err).Msg("[ammStorage] failed to decode pair, skipping")
			failed++
			continue
		}
		pairs[st.Address] = st
	}

	if failed > 0 {
		log.Error().
			Int("total_in_db", len(data)).
			Int("loaded", len(pairs)).
			Int("failed", failed).
			Msg("[ammStorage] pair loading completed with errors")
	} else {
		log.Info().
			Int("total_in_db", len(data)).
			Int("loaded", len(pairs)).
			Msg("[ammStorage] pair loading completed successfully")
	}
	return pairs, nil
}

func (s *Storage) SaveRegistry(st *domain.RegistryState) error {
	stored := StoredRegistry{
		FeeRecipient:  st.FeeRecipient.String(),
		FeeController: st.FeeController.String(),
		Pauser:        st.Pauser.String(),
		Paused:        st.Paused,
		Pairs:         make([]string, len(st.Pairs)),
	}
	for i, p := range st.Pairs {
		stored.Pairs[i] = p.String()
	}
	data, err := sonic.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	return s.db.Set(RegistryBucket, []byte(stateKey), data)
}

// LoadRegistry returns nil when nothing was stored yet.
func (s *Storage) LoadRegistry() (*domain.RegistryState, error) {
	value, err := s.single(RegistryBucket)
	if err != nil || value == nil {
		return nil, err
	}
	var stored StoredRegistry
	if err := sonic.Unmarshal(value, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry: %w", err)
	}

	st := &domain.RegistryState{Paused: stored.Paused, Pairs: make([]solana.PublicKey, len(stored.Pairs))}
	if st.FeeRecipient, err = solana.PublicKeyFromBase58(stored.FeeRecipient); err != nil {
		return nil, fmt.Errorf("invalid feeRecipient: %w", err)
	}
	if st.FeeController, err = solana.PublicKeyFromBase58(stored.FeeController); err != nil {
		return nil, fmt.Errorf("invalid feeController: %w", err)
	}
	if st.Pauser, err = solana.PublicKeyFromBase58(stored.Pauser); err != nil {
		return nil, fmt.Errorf("invalid pauser: %w", err)
	}
	for i, p := range stored.Pairs {
		if st.Pairs[i], err = solana.PublicKeyFromBase58(p); err != nil {
			return nil, fmt.Errorf("invalid pair address %q: %w", p, err)
		}
	}
	return st, nil
}

func (s *Storage) SaveLedger(st *ledger.State) error {
	stored := StoredLedger{
		Assets: make([]StoredAsset, len(st.Assets)),
		Native: encodeBalances(st.Native),
	}
	for i, a := range st.Assets {
		stored.Assets[i] = StoredAsset{
			ID:             a.ID.String(),
			Symbol:         a.Symbol,
			Decimals:       a.Decimals,
			TransferFeeBps: a.TransferFeeBps,
			Wrapped:        a.Wrapped,
			Supply:         a.Supply.Dec(),
			Balances:       encodeBalances(a.Balances),
			Allowances:     encodeAllowances(a.Allowances),
		}
	}
	data, err := sonic.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	return s.db.Set(LedgerBucket, []byte(stateKey), data)
}

// LoadLedger returns nil when nothing was stored yet.
func (s *Storage) LoadLedger() (*ledger.State, error) {
	value, err := s.single(LedgerBucket)
	if err != nil || value == nil {
		return nil, err
	}
	var stored StoredLedger
	if err := sonic.Unmarshal(value, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger: %w", err)
	}

	st := &ledger.State{Assets: make([]ledger.AssetState, len(stored.Assets))}
	if st.Native, err = decodeBalances(stored.Native); err != nil {
		return nil, fmt.Errorf("invalid native balances: %w", err)
	}
	for i, a := range stored.Assets {
		as := ledger.AssetState{
			Symbol:         a.Symbol,
			Decimals:       a.Decimals,
			TransferFeeBps: a.TransferFeeBps,
			Wrapped:        a.Wrapped,
		}
		if as.ID, err = solana.PublicKeyFromBase58(a.ID); err != nil {
			return nil, fmt.Errorf("invalid asset id %q: %w", a.ID, err)
		}
		if as.Supply, err = uint256.FromDecimal(a.Supply); err != nil {
			return nil, fmt.Errorf("invalid supply of %s: %w", a.ID, err)
		}
		if as.Balances, err = decodeBalances(a.Balances); err != nil {
			return nil, fmt.Errorf("invalid balances of %s: %w", a.ID, err)
		}
		if as.Allowances, err = decodeAllowances(a.Allowances); err != nil {
			return nil, fmt.Errorf("invalid allowances of %s: %w", a.ID, err)
		}
		st.Assets[i] = as
	}
	return st, nil
}

// SaveObservations stores the oracle window of one pair, Borsh encoded.
func (s *Storage) SaveObservations(pair solana.PublicKey, observations []domain.Observation) error {
	data, err := EncodeObservations(observations)
	if err != nil {
		return fmt.Errorf("failed to encode observations of %s: %w", pair, err)
	}
	return s.db.Set(ObservationsBucket, []byte(pair.String()), data)
}

func (s *Storage) LoadAllObservations() (map[solana.PublicKey][]domain.Observation, error) {
	data, err := s.db.List(ObservationsBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	out := make(map[solana.PublicKey][]domain.Observation, len(data))
	for address, value := range data {
		pair, err := solana.PublicKeyFromBase58(address)
		if err != nil {
			log.Warn().Str("address", address).Err(err).Msg("[ammStorage] invalid pair address in observations, skipping")
			continue
		}
		observations, err := DecodeObservations(value)
		if err != nil {
			log.Warn().Str("address", address).Err(err).Msg("[ammStorage] failed to decode observations, skipping")
			continue
		}
		out[pair] = observations
	}
	return out, nil
}

func (s *Storage) GetPairCount() (int, error) {
	data, err := s.db.List(PairsBucket)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func (s *Storage) single(bucket string) ([]byte, error) {
	data, err := s.db.List(bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", bucket, err)
	}
	return data[stateKey], nil
}

func EncodeObservations(observations []domain.Observation) ([]byte, error) {
	stored := make([]storedObservation, len(observations))
	for i, o := range observations {
		stored[i] = storedObservation{
			Timestamp:        o.Timestamp,
			Price0Cumulative: orZero(o.Price0Cumulative).Bytes32(),
			Price1Cumulative: orZero(o.Price1Cumulative).Bytes32(),
		}
	}
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(stored); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeObservations(data []byte) ([]domain.Observation, error) {
	var stored []storedObservation
	if err := bin.NewBorshDecoder(data).Decode(&stored); err != nil {
		return nil, err
	}
	out := make([]domain.Observation, len(stored))
	for i, o := range stored {
		out[i] = domain.Observation{
			Timestamp:        o.Timestamp,
			Price0Cumulative: new(uint256.Int).SetBytes32(o.Price0Cumulative[:]),
			Price1Cumulative: new(uint256.Int).SetBytes32(o.Price1Cumulative[:]),
		}
	}
	return out, nil
}

func encodePair(st *domain.PairState) ([]byte, error) {
	stored := pairToStored(st)
	sum, err := pairChecksum(stored)
	if err != nil {
		return nil, err
	}
	stored.Checksum = sum
	return sonic.Marshal(stored)
}

func decodePair(data []byte) (*domain.PairState, error) {
	var stored StoredPair
	if err := sonic.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	want := stored.Checksum
	stored.Checksum = ""
	got, err := pairChecksum(&stored)
	if err != nil {
		return nil, err
	}
	if got != want {
		return nil, fmt.Errorf("%w: stored %s, computed %s", ErrChecksumMismatch, want, got)
	}
	return storedToPair(&stored)
}

func pairChecksum(stored *StoredPair) (string, error) {
	payload := *stored
	payload.Checksum = ""
	data, err := sonic.ConfigStd.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func pairToStored(st *domain.PairState) *StoredPair {
	return &StoredPair{
		Address:              st.Address.String(),
		Token0:               st.Token0.String(),
		Token1:               st.Token1.String(),
		Reserve0:             orZero(st.Reserve0).Dec(),
		Reserve1:             orZero(st.Reserve1).Dec(),
		BlockTimestampLast:   st.BlockTimestampLast,
		Price0CumulativeLast: orZero(st.Price0CumulativeLast).Dec(),
		Price1CumulativeLast: orZero(st.Price1CumulativeLast).Dec(),
		KLast:                orZero(st.KLast).Dec(),
		TotalSupply:          orZero(st.TotalSupply).Dec(),
		Balances:             encodeBalances(st.Balances),
		Allowances:           encodeAllowances(st.Allowances),
	}
}

func storedToPair(stored *StoredPair) (*domain.PairState, error) {
	st := &domain.PairState{}
	var err error
	if st.Address, err = solana.PublicKeyFromBase58(stored.Address); err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	if st.Token0, err = solana.PublicKeyFromBase58(stored.Token0); err != nil {
		return nil, fmt.Errorf("invalid token0: %w", err)
	}
	if st.Token1, err = solana.PublicKeyFromBase58(stored.Token1); err != nil {
		return nil, fmt.Errorf("invalid token1: %w", err)
	}
	st.BlockTimestampLast = stored.BlockTimestampLast

	for _, f := range []struct {
		name string
		src  string
		dst  **uint256.Int
	}{
		{"reserve0", stored.Reserve0, &st.Reserve0},
		{"reserve1", stored.Reserve1, &st.Reserve1},
		{"price0CumulativeLast", stored.Price0CumulativeLast, &st.Price0CumulativeLast},
		{"price1CumulativeLast", stored.Price1CumulativeLast, &st.Price1CumulativeLast},
		{"kLast", stored.KLast, &st.KLast},
		{"totalSupply", stored.TotalSupply, &st.TotalSupply},
	} {
		if *f.dst, err = uint256.FromDecimal(f.src); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", f.name, err)
		}
	}

	if st.Balances, err = decodeBalances(stored.Balances); err != nil {
		return nil, fmt.Errorf("invalid balances: %w", err)
	}
	if st.Allowances, err = decodeAllowances(stored.Allowances); err != nil {
		return nil, fmt.Errorf("invalid allowances: %w", err)
	}
	return st, nil
}

func encodeBalances(in map[solana.PublicKey]*uint256.Int) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k.String()] = orZero(v).Dec()
	}
	return out
}

func decodeBalances(in map[string]string) (map[solana.PublicKey]*uint256.Int, error) {
	out := make(map[solana.PublicKey]*uint256.Int, len(in))
	for k, v := range in {
		key, err := solana.PublicKeyFromBase58(k)
		if err != nil {
			return nil, fmt.Errorf("holder %q: %w", k, err)
		}
		amount, err := uint256.FromDecimal(v)
		if err != nil {
			return nil, fmt.Errorf("amount of %s: %w", k, err)
		}
		out[key] = amount
	}
	return out, nil
}

func encodeAllowances(in map[solana.PublicKey]map[solana.PublicKey]*uint256.Int) map[string]map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]map[string]string, len(in))
	for owner, bySpender := range in {
		out[owner.String()] = encodeBalances(bySpender)
	}
	return out
}

func decodeAllowances(in map[string]map[string]string) (map[solana.PublicKey]map[solana.PublicKey]*uint256.Int, error) {
	out := make(map[solana.PublicKey]map[solana.PublicKey]*uint256.Int, len(in))
	for owner, bySpender := range in {
		key, err := solana.PublicKeyFromBase58(owner)
		if err != nil {
			return nil, fmt.Errorf("owner %q: %w", owner, err)
		}
		if out[key], err = decodeBalances(bySpender); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
