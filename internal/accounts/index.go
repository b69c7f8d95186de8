package accounts

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cleared-dev/ledger/internal/model"
)

var (
	// ErrUnknownAccount is returned when an account code is not in the chart.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrInactiveAccount is returned when an account exists but is inactive.
	ErrInactiveAccount = errors.New("account is inactive")
	// ErrSummaryAccount is returned when a posting targets a non-detail account.
	ErrSummaryAccount = errors.New("summary account cannot be posted to")
	// ErrUnknownSubAccount is returned when a sub-account is not under the given account.
	ErrUnknownSubAccount = errors.New("unknown sub-account")
	// ErrInactiveSubAccount is returned when a sub-account exists but is inactive.
	ErrInactiveSubAccount = errors.New("sub-account is inactive")
	// ErrCycle is returned when the parent relation contains a cycle.
	ErrCycle = errors.New("account hierarchy contains a cycle")
)

// Source supplies the chart of accounts. store.Store satisfies it.
type Source interface {
	Accounts(ctx context.Context) ([]model.Account, error)
	SubAccounts(ctx context.Context) ([]model.SubAccount, error)
}

// Index is an immutable, validated view of the chart of accounts. Nodes are
// kept in an arena keyed by code; parent links are codes, not pointers.
type Index struct {
	accounts []model.Account
	byCode   map[string]int
	children map[string][]string
	roots    []string
	depth    map[string]int
	subs     map[string][]model.SubAccount
}

// Load reads the chart from src and builds an Index.
func Load(ctx context.Context, src Source) (*Index, error) {
	accts, err := src.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	subs, err := src.SubAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sub-accounts: %w", err)
	}
	return NewIndex(accts, subs)
}

// NewIndex validates accounts and sub-accounts and builds an Index.
func NewIndex(accounts []model.Account, subs []model.SubAccount) (*Index, error) {
	ix := &Index{
		accounts: append([]model.Account(nil), accounts...),
		byCode:   make(map[string]int, len(accounts)),
		children: make(map[string][]string),
		depth:    make(map[string]int, len(accounts)),
		subs:     make(map[string][]model.SubAccount),
	}

	for i, a := range ix.accounts {
		if a.Code == "" {
			return nil, fmt.Errorf("account at position %d has empty code", i)
		}
		if !a.Type.Valid() {
			return nil, fmt.Errorf("account %s: unknown type %q", a.Code, a.Type)
		}
		if _, dup := ix.byCode[a.Code]; dup {
			return nil, fmt.Errorf("duplicate account code %s", a.Code)
		}
		ix.byCode[a.Code] = i
	}

	for _, a := range ix.accounts {
		if a.ParentCode == "" {
			ix.roots = append(ix.roots, a.Code)
			continue
		}
		pi, ok := ix.byCode[a.ParentCode]
		if !ok {
			return nil, fmt.Errorf("account %s: parent %s: %w", a.Code, a.ParentCode, ErrUnknownAccount)
		}
		if parent := ix.accounts[pi]; parent.Type != a.Type {
			return nil, fmt.Errorf("account %s: type %s differs from parent %s type %s", a.Code, a.Type, parent.Code, parent.Type)
		}
		ix.children[a.ParentCode] = append(ix.children[a.ParentCode], a.Code)
	}

	if err := ix.checkAcyclic(); err != nil {
		return nil, err
	}

	sort.Strings(ix.roots)
	for code := range ix.children {
		sort.Strings(ix.children[code])
	}
	ix.Walk(func(a model.Account, depth int) bool {
		ix.depth[a.Code] = depth
		return true
	})

	seen := make(map[[2]string]bool, len(subs))
	for _, s := range subs {
		if _, ok := ix.byCode[s.AccountCode]; !ok {
			return nil, fmt.Errorf("sub-account %s/%s: %w", s.AccountCode, s.Code, ErrUnknownAccount)
		}
		key := [2]string{s.AccountCode, s.Code}
		if seen[key] {
			return nil, fmt.Errorf("duplicate sub-account %s/%s", s.AccountCode, s.Code)
		}
		seen[key] = true
		ix.subs[s.AccountCode] = append(ix.subs[s.AccountCode], s)
	}
	for code := range ix.subs {
		list := ix.subs[code]
		sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	}

	return ix, nil
}

// checkAcyclic walks parent links from every node with three-colour marking.
func (ix *Index) checkAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	state := make(map[string]int, len(ix.accounts))
	for _, a := range ix.accounts {
		var path []string
		code := a.Code
		for code != "" && state[code] == white {
			state[code] = grey
			path = append(path, code)
			code = ix.accounts[ix.byCode[code]].ParentCode
		}
		if code != "" && state[code] == grey {
			return fmt.Errorf("%w: %v", ErrCycle, append(path, code))
		}
		for _, c := range path {
			state[c] = black
		}
	}
	return nil
}

// Len returns the number of accounts.
func (ix *Index) Len() int {
	return len(ix.accounts)
}

// All returns all accounts in input order.
func (ix *Index) All() []model.Account {
	return ix.accounts
}

// Get returns an account by code.
func (ix *Index) Get(code string) (model.Account, bool) {
	i, ok := ix.byCode[code]
	if !ok {
		return model.Account{}, false
	}
	return ix.accounts[i], true
}

// Exists reports whether an account code exists.
func (ix *Index) Exists(code string) bool {
	_, ok := ix.byCode[code]
	return ok
}

// ByType returns all accounts of the given type.
func (ix *Index) ByType(accountType model.AccountType) []model.Account {
	var result []model.Account
	for _, a := range ix.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// Children returns the direct children of code ordered by code.
func (ix *Index) Children(code string) []model.Account {
	var result []model.Account
	for _, c := range ix.children[code] {
		result = append(result, ix.accounts[ix.byCode[c]])
	}
	return result
}

// Depth is the distance from code to its top-level ancestor (0 for roots).
func (ix *Index) Depth(code string) int {
	return ix.depth[code]
}

// Descendants returns every account below code, in walk order.
func (ix *Index) Descendants(code string) []model.Account {
	var result []model.Account
	var visit func(c string)
	visit = func(c string) {
		for _, child := range ix.children[c] {
			result = append(result, ix.accounts[ix.byCode[child]])
			visit(child)
		}
	}
	visit(code)
	return result
}

// Walk visits accounts in pre-order, roots and siblings ordered by code.
// Returning false from fn skips the account's subtree.
func (ix *Index) Walk(fn func(a model.Account, depth int) bool) {
	var visit func(code string, depth int)
	visit = func(code string, depth int) {
		if !fn(ix.accounts[ix.byCode[code]], depth) {
			return
		}
		for _, child := range ix.children[code] {
			visit(child, depth+1)
		}
	}
	for _, r := range ix.roots {
		visit(r, 0)
	}
}

// SubAccounts returns the sub-accounts of an account ordered by code.
func (ix *Index) SubAccounts(accountCode string) []model.SubAccount {
	return ix.subs[accountCode]
}

// SubAccount returns one sub-account.
func (ix *Index) SubAccount(accountCode, code string) (model.SubAccount, bool) {
	for _, s := range ix.subs[accountCode] {
		if s.Code == code {
			return s, true
		}
	}
	return model.SubAccount{}, false
}

// ResolvePostable returns the account if a journal line may target it directly.
func (ix *Index) ResolvePostable(code string) (model.Account, error) {
	a, ok := ix.Get(code)
	if !ok {
		return model.Account{}, ErrUnknownAccount
	}
	if !a.Active {
		return a, ErrInactiveAccount
	}
	if !a.Detail {
		return a, ErrSummaryAccount
	}
	return a, nil
}

// ResolveSubAccount checks that a sub-account exists and is active under accountCode.
func (ix *Index) ResolveSubAccount(accountCode, code string) (model.SubAccount, error) {
	s, ok := ix.SubAccount(accountCode, code)
	if !ok {
		return model.SubAccount{}, ErrUnknownSubAccount
	}
	if !s.Active {
		return s, ErrInactiveSubAccount
	}
	return s, nil
}
