package domain

import "time"

// TransactionDescriptor is an unsigned transaction payload built by the aggregator.
type TransactionDescriptor struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Data     string `json:"data"`
	GasPrice string `json:"gasPrice,omitempty"`
	Gas      string `json:"gas,omitempty"`
	ChainID  int64  `json:"chainId,omitempty"`
}

type SwapRecord struct {
	ID          string
	Wallet      string
	SourceAsset string
	DestAsset   string
	SrcAmount   string
	DestAmount  string
	SlippageBps int64
	Fallback    bool
	Tx          TransactionDescriptor
	CreatedAt   time.Time
}
