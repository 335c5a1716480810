package miner

// SetClock replaces the time source used to stamp candidate blocks.
func SetClock(m *Miner, now func() uint64) {
	m.now = now
}
