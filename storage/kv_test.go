package storage

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

type kvRecord struct {
	Name  string
	Value *big.Int
}

func TestKVStoreRoundTrip(t *testing.T) {
	store := NewKVStore(NewMemDB())
	key := []byte("record/1")

	var out kvRecord
	ok, err := store.KVGet(key, &out)
	if err != nil {
		t.Fatalf("KVGet: %v", err)
	}
	if ok {
		t.Fatal("missing key must report not found")
	}

	in := kvRecord{Name: "pool", Value: big.NewInt(42)}
	if err := store.KVPut(key, &in); err != nil {
		t.Fatalf("KVPut: %v", err)
	}
	ok, err = store.KVGet(key, &out)
	if err != nil {
		t.Fatalf("KVGet: %v", err)
	}
	if !ok || out.Name != "pool" || out.Value.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestKVStoreAppendList(t *testing.T) {
	store := NewKVStore(NewMemDB())
	key := []byte("journal/index")

	var list [][]byte
	if err := store.KVGetList(key, &list); err != nil {
		t.Fatalf("KVGetList: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("missing list must decode empty, got %d items", len(list))
	}

	for i := uint64(1); i <= 3; i++ {
		encoded, err := rlp.EncodeToBytes(i)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := store.KVAppend(key, encoded); err != nil {
			t.Fatalf("KVAppend: %v", err)
		}
	}

	if err := store.KVGetList(key, &list); err != nil {
		t.Fatalf("KVGetList: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 items, got %d", len(list))
	}
	var last uint64
	if err := rlp.DecodeBytes(list[2], &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last != 3 {
		t.Fatalf("last item = %d, want 3", last)
	}
}

func TestKVStoreListDestinationValidation(t *testing.T) {
	store := NewKVStore(NewMemDB())
	var notSlice int
	if err := store.KVGetList([]byte("k"), &notSlice); err == nil {
		t.Fatal("non-slice destination must be rejected")
	}
}

func TestKVStoreWriteBatch(t *testing.T) {
	store := NewKVStore(NewMemDB())

	first := kvRecord{Name: "pool", Value: big.NewInt(1)}
	second := kvRecord{Name: "seq", Value: big.NewInt(2)}
	encodedFirst, err := rlp.EncodeToBytes(&first)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	encodedSecond, err := rlp.EncodeToBytes(&second)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	keys := [][]byte{[]byte("state/pool"), []byte("state/seq")}
	if err := store.KVWriteBatch(keys, [][]byte{encodedFirst, encodedSecond}); err != nil {
		t.Fatalf("KVWriteBatch: %v", err)
	}

	var out kvRecord
	for i, key := range keys {
		ok, err := store.KVGet(key, &out)
		if err != nil || !ok {
			t.Fatalf("KVGet %d: ok=%t err=%v", i, ok, err)
		}
	}
	if out.Name != "seq" || out.Value.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("batched value mismatch: %+v", out)
	}

	if err := store.KVWriteBatch(keys, [][]byte{encodedFirst}); err == nil {
		t.Fatal("mismatched key and value counts must be rejected")
	}
}

func TestMemDBIsolation(t *testing.T) {
	db := NewMemDB()
	value := []byte{1, 2, 3}
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value[0] = 9

	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got[0] != 1 {
		t.Fatal("stored value must not alias the caller's buffer")
	}
}
