package amm

var (
	poolStateKey       = []byte("amm/pool/state")
	journalEntryPrefix = []byte("amm/journal/entry/")
	journalIndexKey    = []byte("amm/journal/index")
	journalSeqKey      = []byte("amm/journal/seq")
	gasBalanceKey      = []byte("amm/gas/balance")
)

func journalEntryKey(seq uint64) []byte {
	buf := make([]byte, 0, len(journalEntryPrefix)+8)
	buf = append(buf, journalEntryPrefix...)
	for shift := 56; shift >= 0; shift -= 8 {
		buf = append(buf, byte(seq>>uint(shift)))
	}
	return buf
}
