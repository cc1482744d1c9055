package types

// OrderSubmissionResponse is the response from POST /order.
type OrderSubmissionResponse struct {
	Success      bool     `json:"success"`
	ErrorMsg     string   `json:"errorMsg"`
	OrderID      string   `json:"orderId"`
	OrderHashes  []string `json:"orderHashes"`
	Status       string   `json:"status"` // matched, live, delayed, unmatched
	TakingAmount string   `json:"takingAmount"`
	MakingAmount string   `json:"makingAmount"`
}

// SignedOrderJSON is a signed order in the wire format the CLOB expects.
// Fields mirror the EIP-712 order struct after signing.
type SignedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"` // raw, 6 decimals for USDC
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"` // unix seconds, "0" for none
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"` // 0=EOA, 1=POLY_PROXY, 2=GNOSIS_SAFE
	Signature     string `json:"signature"`
}

// OrderSubmissionRequest wraps a signed order with submission metadata.
// Owner is the API key, not the maker address.
type OrderSubmissionRequest struct {
	Order     SignedOrderJSON `json:"order"`
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"` // GTC, FOK, GTD, FAK
}

// OrderQueryResponse is the response from GET /order/{id}. Shapes differ
// from the submission response (orderID capitalization included).
type OrderQueryResponse struct {
	OrderID      string  `json:"orderID"`
	Status       string  `json:"status"`
	TokenID      string  `json:"asset_id"`
	Price        float64 `json:"price,string"`
	Size         float64 `json:"original_size,string"`
	SizeFilled   float64 `json:"size_matched,string"`
	Side         string  `json:"side"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	OrderType    string  `json:"type"`
	MarketID     string  `json:"market"`
	Outcome      string  `json:"outcome"`
	Owner        string  `json:"owner"`
	MakerAddress string  `json:"maker_address"`
	Message      string  `json:"message,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// TickSizeResponse is the response from GET /tick-size.
type TickSizeResponse struct {
	MinimumTickSize float64 `json:"minimum_tick_size"`
}
