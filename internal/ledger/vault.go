package ledger

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Vault moves the value unit between external identities and the ledger's
// escrow. Only the ledger may call Disburse, and only on the claim and
// refund paths.
type Vault interface {
	// Collect pulls amount from the payer into escrow.
	Collect(payer common.Address, amount int64) error
	// Disburse pushes amount from escrow to the payee.
	Disburse(payee common.Address, amount int64) error
	// Escrowed returns the total value currently held in escrow.
	Escrowed() int64
}

// MemVault is an in-memory Vault for tests and single-node deployments. It
// tracks the escrow total and per-identity net flows; external funding is
// out of scope, so Collect never fails.
type MemVault struct {
	mu      sync.Mutex
	escrow  int64
	paidIn  map[common.Address]int64
	paidOut map[common.Address]int64
}

// NewMemVault creates an empty MemVault.
func NewMemVault() *MemVault {
	return &MemVault{
		paidIn:  make(map[common.Address]int64),
		paidOut: make(map[common.Address]int64),
	}
}

// Collect records amount flowing from payer into escrow.
func (v *MemVault) Collect(payer common.Address, amount int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.escrow += amount
	v.paidIn[payer] += amount
	return nil
}

// Disburse records amount flowing from escrow to payee.
func (v *MemVault) Disburse(payee common.Address, amount int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.escrow -= amount
	v.paidOut[payee] += amount
	return nil
}

// Escrowed returns the total value currently held.
func (v *MemVault) Escrowed() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.escrow
}

// PaidIn returns the total value an identity has staked into escrow.
func (v *MemVault) PaidIn(addr common.Address) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paidIn[addr]
}

// PaidOut returns the total value an identity has extracted from escrow.
func (v *MemVault) PaidOut(addr common.Address) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paidOut[addr]
}

var _ Vault = (*MemVault)(nil)
