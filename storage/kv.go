package storage

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"
)

// KVStore layers typed RLP accessors over a raw Database. It implements the
// storage surface the pool ledger works against: point reads and writes plus
// append-only lists.
type KVStore struct {
	db Database
}

// NewKVStore wraps the supplied database.
func NewKVStore(db Database) *KVStore {
	return &KVStore{db: db}
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (s *KVStore) KVGet(key []byte, out interface{}) (bool, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVPut encodes value with RLP and stores it under key.
func (s *KVStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.db.Put(key, encoded)
}

// KVAppend appends a raw item to the list stored under key, creating the list
// on first use.
func (s *KVStore) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	raw, err := s.db.Get(key)
	if err == nil {
		if err := rlp.DecodeBytes(raw, &list); err != nil {
			return err
		}
	} else if !errors.Is(err, ErrKeyNotFound) {
		return err
	}
	item := make([]byte, len(value))
	copy(item, value)
	list = append(list, item)
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return s.db.Put(key, encoded)
}

// KVWriteBatch applies pre-encoded writes atomically through the underlying
// database batch. keys and values are matched by index.
func (s *KVStore) KVWriteBatch(keys [][]byte, values [][]byte) error {
	if len(keys) != len(values) {
		return fmt.Errorf("storage: batch keys and values must match")
	}
	batch := make([]BatchWrite, 0, len(keys))
	for i := range keys {
		batch = append(batch, BatchWrite{Key: keys[i], Value: values[i]})
	}
	return s.db.PutBatch(batch)
}

// KVGetList decodes the list stored under key into out, which must be a
// pointer to a slice. A missing key yields an empty slice rather than an
// error.
func (s *KVStore) KVGetList(key []byte, out interface{}) error {
	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Ptr || target.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("storage: list destination must be a pointer to a slice")
	}
	raw, err := s.db.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		target.Elem().Set(reflect.MakeSlice(target.Elem().Type(), 0, 0))
		return nil
	}
	if err != nil {
		return err
	}
	return rlp.DecodeBytes(raw, out)
}
