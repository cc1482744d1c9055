package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var deriveAPICredsCmd = &cobra.Command{
	Use:   "derive-api-creds",
	Short: "Derive CLOB API credentials from the signing key",
	Long: `Uses PRIVATE_KEY to derive Polymarket CLOB API credentials via L1
authentication. Prints the API key, secret and passphrase; save them as
POLYMARKET_API_KEY, POLYMARKET_SECRET and POLYMARKET_PASSPHRASE.`,
	RunE: runDeriveAPICreds,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(deriveAPICredsCmd)
}

func runDeriveAPICreds(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	privateKeyHex := strings.TrimSpace(getEnvFirst("PRIVATE_KEY", "POLYMARKET_PRIVATE_KEY"))
	if privateKeyHex == "" {
		return fmt.Errorf("PRIVATE_KEY is not set")
	}
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("error casting public key to ECDSA")
	}
	address := crypto.PubkeyToAddress(*publicKey)

	fmt.Printf("EOA Address: %s\n\n", address.Hex())

	timestamp := time.Now().Unix()
	nonce := 0

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": []apitypes.Type{
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(137),
		},
		Message: map[string]interface{}{
			"address":   address.Hex(),
			"timestamp": fmt.Sprintf("%d", timestamp),
			"nonce":     fmt.Sprintf("%d", nonce),
			"message":   "This message attests that I control the given wallet",
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return fmt.Errorf("hash domain: %w", err)
	}
	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return fmt.Errorf("hash message: %w", err)
	}

	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	hash := crypto.Keccak256Hash(rawData)

	signature, err := crypto.Sign(hash.Bytes(), privateKey)
	if err != nil {
		return fmt.Errorf("sign message: %w", err)
	}
	// Ethereum expects V in {27, 28}.
	if signature[64] < 27 {
		signature[64] += 27
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://clob.polymarket.com/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address.Hex())
	req.Header.Set("POLY_SIGNATURE", hexutil.Encode(signature))
	req.Header.Set("POLY_TIMESTAMP", fmt.Sprintf("%d", timestamp))
	req.Header.Set("POLY_NONCE", fmt.Sprintf("%d", nonce))

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, body)
	}

	var creds struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(body, &creds); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	fmt.Printf("POLYMARKET_API_KEY=%s\n", creds.APIKey)
	fmt.Printf("POLYMARKET_SECRET=%s\n", creds.Secret)
	fmt.Printf("POLYMARKET_PASSPHRASE=%s\n\n", creds.Passphrase)
	fmt.Println("Save these to your .env file. They are derived from your private key.")

	return nil
}
