package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/malbeclabs/trustplay/api/handlers"
	"github.com/malbeclabs/trustplay/program/pkg/runtime"
	"github.com/malbeclabs/trustplay/program/pkg/state"
)

// LatestBlockhash fetches a fresh blockhash to sign the next transaction with.
func (c *Client) LatestBlockhash(ctx context.Context) (runtime.Blockhash, error) {
	var resp handlers.BlockhashResponse
	if err := c.do(ctx, http.MethodGet, "/api/blockhash", nil, nil, &resp); err != nil {
		return runtime.Blockhash{}, err
	}
	hash, err := solana.HashFromBase58(resp.Blockhash)
	if err != nil {
		return runtime.Blockhash{}, fmt.Errorf("invalid blockhash: %w", err)
	}
	return runtime.Blockhash{Hash: hash, Slot: resp.Slot, ExpiresAt: resp.ExpiresAt}, nil
}

// SubmitTransaction sends a signed transaction and returns its signature.
func (c *Client) SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	encoded, err := tx.ToBase64()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to encode transaction: %w", err)
	}
	var resp handlers.SubmitTransactionResponse
	if err := c.do(ctx, http.MethodPost, "/api/transactions", nil, handlers.SubmitTransactionRequest{Transaction: encoded}, &resp); err != nil {
		return solana.Signature{}, err
	}
	return solana.SignatureFromBase58(resp.Signature)
}

// Account is a ledger account as returned by the API.
type Account struct {
	Address  solana.PublicKey `json:"address"`
	Owner    solana.PublicKey `json:"owner"`
	Lamports uint64           `json:"lamports"`
	Space    int              `json:"space"`
	Data     []byte           `json:"-"`
	Kind     state.Kind       `json:"kind,omitempty"`
}

type accountJSON struct {
	Account
	Data string `json:"data"`
}

func (a *accountJSON) account() (*Account, error) {
	data, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid account data: %w", err)
	}
	acct := a.Account
	acct.Data = data
	return &acct, nil
}

// Decode decodes the account data into acct.
func (a *Account) Decode(acct state.Account) error {
	return state.Decode(a.Data, acct)
}

// GetAccount fetches one account. A missing account matches ErrNotFound.
func (c *Client) GetAccount(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	var resp accountJSON
	if err := c.do(ctx, http.MethodGet, "/api/accounts/"+addr.String(), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.account()
}

// Balance returns the lamports held at addr, or 0 if the account does not exist.
func (c *Client) Balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	acct, err := c.GetAccount(ctx, addr)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Lamports, nil
}

// Memcmp matches Bytes at Offset in the account data.
type Memcmp struct {
	Offset uint64
	Bytes  []byte
}

type ProgramAccountsQuery struct {
	Kind     state.Kind
	Memcmp   []Memcmp
	DataSize uint64
	Limit    int
	Offset   int
}

func (q ProgramAccountsQuery) values() url.Values {
	v := url.Values{}
	if q.Kind != "" {
		v.Set("kind", string(q.Kind))
	}
	for _, m := range q.Memcmp {
		v.Add("memcmp", strconv.FormatUint(m.Offset, 10)+":"+base58.Encode(m.Bytes))
	}
	if q.DataSize > 0 {
		v.Set("dataSize", strconv.FormatUint(q.DataSize, 10))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

type AccountPage struct {
	Accounts []*Account
	Total    int
	Limit    int
	Offset   int
}

// ProgramAccounts lists program accounts matching q.
func (c *Client) ProgramAccounts(ctx context.Context, q ProgramAccountsQuery) (*AccountPage, error) {
	var resp handlers.PaginatedResponse[accountJSON]
	if err := c.do(ctx, http.MethodGet, "/api/programs/accounts", q.values(), nil, &resp); err != nil {
		return nil, err
	}
	page := &AccountPage{Total: resp.Total, Limit: resp.Limit, Offset: resp.Offset}
	for i := range resp.Items {
		acct, err := resp.Items[i].account()
		if err != nil {
			return nil, err
		}
		page.Accounts = append(page.Accounts, acct)
	}
	return page, nil
}

// Airdrop credits lamports to addr and returns the new balance.
func (c *Client) Airdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (uint64, error) {
	var resp handlers.AirdropResponse
	err := c.do(ctx, http.MethodPost, "/api/airdrop", nil, handlers.AirdropRequest{Address: addr.String(), Lamports: lamports}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// PDA asks the API to derive a program address of kind from params.
func (c *Client) PDA(ctx context.Context, kind string, params map[string]string) (solana.PublicKey, uint8, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	var resp handlers.PDAResponse
	if err := c.do(ctx, http.MethodGet, "/api/pda/"+url.PathEscape(kind), q, nil, &resp); err != nil {
		return solana.PublicKey{}, 0, err
	}
	return resp.Address, resp.Bump, nil
}
