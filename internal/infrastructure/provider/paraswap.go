package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"
	"marketsync-service/internal/infrastructure/httpx"
)

// ParaSwap talks to the ParaSwap v5 REST API.
type ParaSwap struct {
	BaseURL string
	Client  *httpx.Client
}

var _ application.SwapAggregator = (*ParaSwap)(nil)

type psPriceResp struct {
	PriceRoute json.RawMessage `json:"priceRoute"`
}

type psRoute struct {
	DestAmount string `json:"destAmount"`
	GasCost    string `json:"gasCost"`
	GasCostUSD string `json:"gasCostUSD"`
}

type psTxBody struct {
	PriceRoute   json.RawMessage `json:"priceRoute"`
	SrcToken     string          `json:"srcToken"`
	DestToken    string          `json:"destToken"`
	SrcAmount    string          `json:"srcAmount"`
	DestAmount   string          `json:"destAmount"`
	SrcDecimals  int32           `json:"srcDecimals"`
	DestDecimals int32           `json:"destDecimals"`
	UserAddress  string          `json:"userAddress"`
	Slippage     int64           `json:"slippage"`
}

type psTx struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Value    string          `json:"value"`
	Data     string          `json:"data"`
	GasPrice string          `json:"gasPrice"`
	Gas      json.RawMessage `json:"gas"`
	ChainID  int64           `json:"chainId"`
}

type psTokensResp struct {
	Tokens []application.Token `json:"tokens"`
}

func (p *ParaSwap) endpoint(path string, q url.Values) (string, error) {
	if p.BaseURL == "" {
		return "", errors.New("paraswap: missing base url")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", fmt.Errorf("paraswap: invalid base url: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (p *ParaSwap) Price(ctx context.Context, r application.SwapQuoteRequest) (application.PriceRoute, error) {
	if r.Amount == nil {
		return application.PriceRoute{}, fmt.Errorf("paraswap: %w", domain.ErrMissingInput)
	}
	q := url.Values{}
	q.Set("srcToken", r.Src.Address)
	q.Set("destToken", r.Dest.Address)
	q.Set("srcDecimals", strconv.Itoa(int(r.Src.Decimals)))
	q.Set("destDecimals", strconv.Itoa(int(r.Dest.Decimals)))
	q.Set("amount", r.Amount.String())
	q.Set("network", strconv.FormatInt(r.Network, 10))
	q.Set("side", "SELL")
	u, err := p.endpoint("/prices", q)
	if err != nil {
		return application.PriceRoute{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return application.PriceRoute{}, fmt.Errorf("paraswap: create request: %w", err)
	}

	var body psPriceResp
	if err := client(p.Client).DoJSON(ctx, req, &body); err != nil {
		return application.PriceRoute{}, fmt.Errorf("paraswap: prices: %w", err)
	}
	if len(body.PriceRoute) == 0 || string(body.PriceRoute) == "null" {
		return application.PriceRoute{}, errors.New("paraswap: prices: empty price route")
	}
	var route psRoute
	if err := json.Unmarshal(body.PriceRoute, &route); err != nil {
		return application.PriceRoute{}, fmt.Errorf("paraswap: prices: decode route: %w", err)
	}
	if route.DestAmount == "" {
		return application.PriceRoute{}, errors.New("paraswap: prices: route without destAmount")
	}
	return application.PriceRoute{
		DestAmount: route.DestAmount,
		GasCost:    route.GasCost,
		GasCostUSD: route.GasCostUSD,
		Raw:        body.PriceRoute,
	}, nil
}

func (p *ParaSwap) BuildTransaction(ctx context.Context, r application.BuildTxRequest) (domain.TransactionDescriptor, error) {
	if len(r.Route) == 0 || r.SrcAmount == nil || r.DestAmount == nil {
		return domain.TransactionDescriptor{}, fmt.Errorf("paraswap: %w", domain.ErrNoQuote)
	}
	u, err := p.endpoint("/transactions/"+strconv.FormatInt(r.Network, 10), nil)
	if err != nil {
		return domain.TransactionDescriptor{}, err
	}
	payload, err := json.Marshal(psTxBody{
		PriceRoute:   r.Route,
		SrcToken:     r.Src.Address,
		DestToken:    r.Dest.Address,
		SrcAmount:    r.SrcAmount.String(),
		DestAmount:   r.DestAmount.String(),
		SrcDecimals:  r.Src.Decimals,
		DestDecimals: r.Dest.Decimals,
		UserAddress:  r.UserAddress,
		Slippage:     r.SlippageBps,
	})
	if err != nil {
		return domain.TransactionDescriptor{}, fmt.Errorf("paraswap: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return domain.TransactionDescriptor{}, fmt.Errorf("paraswap: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var tx psTx
	if err := client(p.Client).DoJSON(ctx, req, &tx); err != nil {
		return domain.TransactionDescriptor{}, fmt.Errorf("paraswap: transactions: %w", err)
	}
	if tx.To == "" || tx.Data == "" {
		return domain.TransactionDescriptor{}, errors.New("paraswap: transactions: incomplete transaction")
	}
	return domain.TransactionDescriptor{
		From:     tx.From,
		To:       tx.To,
		Value:    tx.Value,
		Data:     tx.Data,
		GasPrice: tx.GasPrice,
		Gas:      strings.Trim(string(tx.Gas), `"`),
		ChainID:  tx.ChainID,
	}, nil
}

func (p *ParaSwap) Tokens(ctx context.Context, network int64) ([]application.Token, error) {
	u, err := p.endpoint("/tokens/"+strconv.FormatInt(network, 10), nil)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("paraswap: create request: %w", err)
	}
	var body psTokensResp
	if err := client(p.Client).DoJSON(ctx, req, &body); err != nil {
		return nil, fmt.Errorf("paraswap: tokens: %w", err)
	}
	return body.Tokens, nil
}
