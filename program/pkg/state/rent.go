package state

// Default cluster rent parameters.
const (
	LamportsPerByteYear     = 3480
	ExemptionThresholdYears = 2
	AccountStorageOverhead  = 128
)

// MinimumBalance returns the rent-exempt minimum for an account holding
// dataLen bytes.
func MinimumBalance(dataLen int) uint64 {
	return uint64(AccountStorageOverhead+dataLen) * LamportsPerByteYear * ExemptionThresholdYears
}
