package types

import (
	"encoding/json"
	"time"
)

// Market is a Polymarket binary market as returned by the Gamma API.
type Market struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Slug        string    `json:"slug"`
	Closed      bool      `json:"closed"`
	Active      bool      `json:"active"`
	Tokens      []Token   `json:"-"` // derived from outcomes + clobTokenIds
	CreatedAt   time.Time `json:"createdAt"`
	EndDate     time.Time `json:"endDate"`
	Description string    `json:"description"`
	Outcomes    string    `json:"outcomes"`     // JSON string: "[\"Yes\", \"No\"]"
	ClobTokens  string    `json:"clobTokenIds"` // JSON string: "[\"token1\", \"token2\"]"
}

// UnmarshalJSON populates Tokens from the JSON-in-JSON outcome arrays the
// Gamma API returns.
func (m *Market) UnmarshalJSON(data []byte) error {
	type Alias Market
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if m.Outcomes != "" && m.ClobTokens != "" {
		var outcomes []string
		var tokenIDs []string

		if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err == nil {
			if err := json.Unmarshal([]byte(m.ClobTokens), &tokenIDs); err == nil {
				m.Tokens = make([]Token, 0, len(outcomes))
				for i, outcome := range outcomes {
					if i < len(tokenIDs) {
						m.Tokens = append(m.Tokens, Token{
							TokenID: tokenIDs[i],
							Outcome: outcome,
						})
					}
				}
			}
		}
	}

	return nil
}

// Token is one outcome token of a binary market.
type Token struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price,omitempty"`
}

// TokenByOutcome returns the token for an outcome, matching YES/Yes and
// NO/No case variants, or nil when absent.
func (m *Market) TokenByOutcome(outcome string) *Token {
	for i := range m.Tokens {
		got := m.Tokens[i].Outcome
		if got == outcome ||
			(outcome == "YES" && got == "Yes") ||
			(outcome == "NO" && got == "No") {
			return &m.Tokens[i]
		}
	}
	return nil
}

// MarketPair identifies the YES/NO token pair of a binary market. Pairs are
// registered in the market-data store so strategies can walk both sides.
type MarketPair struct {
	Market   string `json:"market"`
	Slug     string `json:"slug"`
	Question string `json:"question,omitempty"`
	YesToken string `json:"yes_token"`
	NoToken  string `json:"no_token"`
}

// MarketsResponse is a page of markets from the Gamma API.
type MarketsResponse struct {
	Data     []Market `json:"data"`
	Count    int      `json:"count"`
	NextPage string   `json:"next_page,omitempty"`
	Limit    int      `json:"limit"`
	Offset   int      `json:"offset"`
}
