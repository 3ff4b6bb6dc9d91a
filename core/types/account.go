package types

import "math/big"

// Account tracks the fungible balances held by a single identity. Balances are
// keyed by token symbol so pools denominated in different reward assets can
// credit the same account.
type Account struct {
	Nonce    uint64              `json:"nonce"`
	Balances map[string]*big.Int `json:"balances"`
}

// NewAccount returns an account with an initialised balance map.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// BalanceOf returns the balance held for the given token. A missing entry is
// treated as zero; the returned value is a copy.
func (a *Account) BalanceOf(token string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	bal, ok := a.Balances[token]
	if !ok || bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// SetBalance stores the balance for the given token, copying the value.
func (a *Account) SetBalance(token string, amount *big.Int) {
	if a == nil {
		return
	}
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Balances[token] = new(big.Int).Set(amount)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Nonce: a.Nonce, Balances: make(map[string]*big.Int, len(a.Balances))}
	for token, bal := range a.Balances {
		if bal == nil {
			clone.Balances[token] = big.NewInt(0)
			continue
		}
		clone.Balances[token] = new(big.Int).Set(bal)
	}
	return clone
}
