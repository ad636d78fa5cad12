package phase2

// SlotConfig maps a network's absolute slot numbers to POSIX time in
// milliseconds, the representation the ledger uses for the Plutus
// validity-range fields in TxInfo.
type SlotConfig struct {
	ZeroTime     int64
	ZeroSlot     uint64
	SlotLengthMs uint64
}

// SlotToPosixTimeMs converts slot to milliseconds since the Unix epoch.
func (s SlotConfig) SlotToPosixTimeMs(slot uint64) int64 {
	if slot < s.ZeroSlot {
		return s.ZeroTime - int64(s.ZeroSlot-slot)*int64(s.SlotLengthMs)
	}
	return s.ZeroTime + int64(slot-s.ZeroSlot)*int64(s.SlotLengthMs)
}

// Published network genesis parameters used to anchor slot-to-time
// conversion; each network's Shelley-era hard fork reset zero-slot/zero-time.
var (
	MainnetSlotConfig = SlotConfig{ZeroTime: 1596059091000, ZeroSlot: 4492800, SlotLengthMs: 1000}
	PreprodSlotConfig = SlotConfig{ZeroTime: 1655769600000, ZeroSlot: 86400, SlotLengthMs: 1000}
	PreviewSlotConfig = SlotConfig{ZeroTime: 1666656000000, ZeroSlot: 0, SlotLengthMs: 1000}
)
