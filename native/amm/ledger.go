package amm

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
)

// Storage abstracts the subset of state-store functionality the ledger needs.
// KVWriteBatch applies pre-encoded writes atomically, keys and values matched
// by index: either every pair lands or none does.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	KVWriteBatch(keys [][]byte, values [][]byte) error
}

// OperationRecord is the audit entry appended to the journal for every
// committed mutating operation.
type OperationRecord struct {
	Sequence  uint64
	Op        uint32
	Caller    [20]byte
	TokenIn   string
	AmountIn  *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
	LPDelta   *big.Int
	Fee0      *big.Int
	Fee1      *big.Int
	CreatedAt int64
}

type storedPool struct {
	Token0        string
	Token1        string
	Reserve0      *big.Int
	Reserve1      *big.Int
	TotalSupplyLP *big.Int

	ProviderFee0 *big.Int
	ProviderFee1 *big.Int
	ProtocolFee0 *big.Int
	ProtocolFee1 *big.Int

	LPFeeBps           uint16
	ProtocolFeeBps     uint16
	RefFeeBps          uint16
	ProviderFeeAddress [20]byte
	ProtocolFeeAddress [20]byte

	Locked bool
	Admins [][20]byte
}

type storedOperationRecord struct {
	Sequence  uint64
	Op        uint32
	Caller    [20]byte
	TokenIn   string
	AmountIn  *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
	LPDelta   *big.Int
	Fee0      *big.Int
	Fee1      *big.Int
	CreatedAt uint64
}

// Ledger persists the pool snapshot and the operation journal in the
// underlying key-value store.
type Ledger struct {
	store Storage
	clock func() time.Time
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store, clock: time.Now}
}

// SetClock overrides the time source (primarily for deterministic testing).
func (l *Ledger) SetClock(clock func() time.Time) {
	if l == nil || clock == nil {
		return
	}
	l.clock = clock
}

// SavePool persists the full pool snapshot under a single key.
func (l *Ledger) SavePool(pool *Pool) error {
	if l == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if pool == nil {
		return ErrNilState
	}
	stored := toStoredPool(pool)
	return l.store.KVPut(poolStateKey, stored)
}

func toStoredPool(pool *Pool) storedPool {
	admins := make([][20]byte, 0, len(pool.Admins))
	for admin := range pool.Admins {
		admins = append(admins, admin)
	}
	sort.Slice(admins, func(i, j int) bool {
		return bytes.Compare(admins[i][:], admins[j][:]) < 0
	})
	return storedPool{
		Token0:             pool.Token0,
		Token1:             pool.Token1,
		Reserve0:           cloneAmount(pool.Reserve0),
		Reserve1:           cloneAmount(pool.Reserve1),
		TotalSupplyLP:      cloneAmount(pool.TotalSupplyLP),
		ProviderFee0:       cloneAmount(pool.CollectedProviderFee0),
		ProviderFee1:       cloneAmount(pool.CollectedProviderFee1),
		ProtocolFee0:       cloneAmount(pool.CollectedProtocolFee0),
		ProtocolFee1:       cloneAmount(pool.CollectedProtocolFee1),
		LPFeeBps:           pool.Fees.LPFeeBps,
		ProtocolFeeBps:     pool.Fees.ProtocolFeeBps,
		RefFeeBps:          pool.Fees.RefFeeBps,
		ProviderFeeAddress: pool.Fees.ProviderFeeAddress,
		ProtocolFeeAddress: pool.Fees.ProtocolFeeAddress,
		Locked:             pool.Locked,
		Admins:             admins,
	}
}

// LoadPool restores the persisted snapshot. The boolean reports whether a pool
// has been saved before. Loaded state is re-validated against the structural
// invariants before it is handed back.
func (l *Ledger) LoadPool() (*Pool, bool, error) {
	if l == nil {
		return nil, false, fmt.Errorf("ledger not initialised")
	}
	var stored storedPool
	ok, err := l.store.KVGet(poolStateKey, &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	pool := &Pool{
		Token0:                stored.Token0,
		Token1:                stored.Token1,
		Reserve0:              cloneAmount(stored.Reserve0),
		Reserve1:              cloneAmount(stored.Reserve1),
		TotalSupplyLP:         cloneAmount(stored.TotalSupplyLP),
		CollectedProviderFee0: cloneAmount(stored.ProviderFee0),
		CollectedProviderFee1: cloneAmount(stored.ProviderFee1),
		CollectedProtocolFee0: cloneAmount(stored.ProtocolFee0),
		CollectedProtocolFee1: cloneAmount(stored.ProtocolFee1),
		Fees: FeeSchedule{
			LPFeeBps:           stored.LPFeeBps,
			ProtocolFeeBps:     stored.ProtocolFeeBps,
			RefFeeBps:          stored.RefFeeBps,
			ProviderFeeAddress: stored.ProviderFeeAddress,
			ProtocolFeeAddress: stored.ProtocolFeeAddress,
		},
		Locked: stored.Locked,
		Admins: make(map[[20]byte]struct{}, len(stored.Admins)),
	}
	for _, admin := range stored.Admins {
		pool.Admins[admin] = struct{}{}
	}
	if err := pool.CheckInvariants(); err != nil {
		return nil, false, err
	}
	return pool, true, nil
}

// GasBalance returns the tracked operating balance. A balance that has never
// been funded reads as zero.
func (l *Ledger) GasBalance() (*big.Int, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger not initialised")
	}
	balance := new(big.Int)
	ok, err := l.store.KVGet(gasBalanceKey, balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// SetGasBalance records the operating balance. The dispatch layer settles it
// after funding deposits and after executing a reset sweep.
func (l *Ledger) SetGasBalance(balance *big.Int) error {
	if l == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if balance == nil || balance.Sign() < 0 {
		return fmt.Errorf("ledger: gas balance must not be negative")
	}
	return l.store.KVPut(gasBalanceKey, balance)
}

type ledgerGasView struct {
	ledger *Ledger
}

func (v ledgerGasView) OperatingBalance() *big.Int {
	balance, err := v.ledger.GasBalance()
	if err != nil {
		return nil
	}
	return balance
}

// GasView exposes the tracked operating balance in the shape the engine
// consumes as a resource-floor precondition.
func (l *Ledger) GasView() GasView {
	return ledgerGasView{ledger: l}
}

// Commit persists the pool snapshot and its journal record in one atomic
// write. A mutating operation must never leave the stored pool ahead of the
// journal or vice versa: on any failure neither the snapshot, the record, nor
// the sequence counter moves.
func (l *Ledger) Commit(pool *Pool, record *OperationRecord) error {
	if l == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if pool == nil {
		return fmt.Errorf("ledger: pool must not be nil")
	}
	if record == nil {
		return fmt.Errorf("ledger: record must not be nil")
	}

	snapshot := toStoredPool(pool)
	encodedPool, err := rlp.EncodeToBytes(&snapshot)
	if err != nil {
		return err
	}

	var seq uint64
	if _, err := l.store.KVGet(journalSeqKey, &seq); err != nil {
		return err
	}
	next := seq + 1
	encodedSeq, err := rlp.EncodeToBytes(next)
	if err != nil {
		return err
	}

	stored := toStoredRecord(record)
	stored.Sequence = next
	if stored.CreatedAt == 0 {
		now := l.clock().UTC().Unix()
		if now > 0 {
			stored.CreatedAt = uint64(now)
		}
	}
	encodedRecord, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}

	var index [][]byte
	if err := l.store.KVGetList(journalIndexKey, &index); err != nil {
		return err
	}
	index = append(index, encodedSeq)
	encodedIndex, err := rlp.EncodeToBytes(index)
	if err != nil {
		return err
	}

	keys := [][]byte{poolStateKey, journalSeqKey, journalEntryKey(next), journalIndexKey}
	values := [][]byte{encodedPool, encodedSeq, encodedRecord, encodedIndex}
	return l.store.KVWriteBatch(keys, values)
}

// Append records a committed operation in the journal. Sequence numbers are
// assigned from a monotonic counter so records stay unique and ordered.
func (l *Ledger) Append(record *OperationRecord) error {
	if l == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if record == nil {
		return fmt.Errorf("ledger: record must not be nil")
	}
	seq, err := l.nextSequence()
	if err != nil {
		return err
	}
	stored := toStoredRecord(record)
	stored.Sequence = seq
	if stored.CreatedAt == 0 {
		now := l.clock().UTC().Unix()
		if now > 0 {
			stored.CreatedAt = uint64(now)
		}
	}
	if err := l.store.KVPut(journalEntryKey(seq), stored); err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(seq)
	if err != nil {
		return err
	}
	return l.store.KVAppend(journalIndexKey, encoded)
}

// List returns the journal entries within the inclusive timestamp window, in
// sequence order. A zero endTs means no upper bound.
func (l *Ledger) List(startTs, endTs int64) ([]*OperationRecord, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger not initialised")
	}
	var raw [][]byte
	if err := l.store.KVGetList(journalIndexKey, &raw); err != nil {
		return nil, err
	}
	seqs := make([]uint64, 0, len(raw))
	for _, item := range raw {
		var seq uint64
		if err := rlp.DecodeBytes(item, &seq); err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	records := make([]*OperationRecord, 0, len(seqs))
	for _, seq := range seqs {
		var stored storedOperationRecord
		ok, err := l.store.KVGet(journalEntryKey(seq), &stored)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		createdAt := int64(stored.CreatedAt)
		if createdAt < startTs {
			continue
		}
		if endTs > 0 && createdAt > endTs {
			continue
		}
		records = append(records, fromStoredRecord(&stored))
	}
	return records, nil
}

// ExportCSV generates a deterministic CSV export of the journal covering the
// provided timestamp window. The CSV is returned base64 encoded alongside the
// entry count.
func (l *Ledger) ExportCSV(startTs, endTs int64) (string, int, error) {
	records, err := l.List(startTs, endTs)
	if err != nil {
		return "", 0, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := []string{"sequence", "op", "caller", "tokenIn", "amountIn", "amount0", "amount1", "lpDelta", "fee0", "fee1", "createdAt"}
	if err := writer.Write(header); err != nil {
		return "", 0, err
	}
	for _, record := range records {
		row := []string{
			strconv.FormatUint(record.Sequence, 10),
			OpName(record.Op),
			hex.EncodeToString(record.Caller[:]),
			record.TokenIn,
			formatAmount(record.AmountIn),
			formatAmount(record.Amount0),
			formatAmount(record.Amount1),
			formatAmount(record.LPDelta),
			formatAmount(record.Fee0),
			formatAmount(record.Fee1),
			strconv.FormatInt(record.CreatedAt, 10),
		}
		if err := writer.Write(row); err != nil {
			return "", 0, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", 0, err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), len(records), nil
}

func (l *Ledger) nextSequence() (uint64, error) {
	var seq uint64
	ok, err := l.store.KVGet(journalSeqKey, &seq)
	if err != nil {
		return 0, err
	}
	if !ok {
		seq = 0
	}
	next := seq + 1
	if err := l.store.KVPut(journalSeqKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

func toStoredRecord(record *OperationRecord) storedOperationRecord {
	stored := storedOperationRecord{
		Sequence: record.Sequence,
		Op:       record.Op,
		Caller:   record.Caller,
		TokenIn:  record.TokenIn,
		AmountIn: cloneAmount(record.AmountIn),
		Amount0:  cloneAmount(record.Amount0),
		Amount1:  cloneAmount(record.Amount1),
		LPDelta:  cloneAmount(record.LPDelta),
		Fee0:     cloneAmount(record.Fee0),
		Fee1:     cloneAmount(record.Fee1),
	}
	if record.CreatedAt > 0 {
		stored.CreatedAt = uint64(record.CreatedAt)
	}
	return stored
}

func fromStoredRecord(stored *storedOperationRecord) *OperationRecord {
	return &OperationRecord{
		Sequence:  stored.Sequence,
		Op:        stored.Op,
		Caller:    stored.Caller,
		TokenIn:   stored.TokenIn,
		AmountIn:  cloneAmount(stored.AmountIn),
		Amount0:   cloneAmount(stored.Amount0),
		Amount1:   cloneAmount(stored.Amount1),
		LPDelta:   cloneAmount(stored.LPDelta),
		Fee0:      cloneAmount(stored.Fee0),
		Fee1:      cloneAmount(stored.Fee1),
		CreatedAt: int64(stored.CreatedAt),
	}
}
