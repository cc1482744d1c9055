package execution

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// SignerPool signs orders on a fixed set of worker goroutines so the EIP-712
// hashing never runs on the evaluation path. Sign enqueues a task and waits
// for the result; it never signs inline.
type SignerPool struct {
	orderBuilder  builder.ExchangeOrderBuilder
	privateKey    *ecdsa.PrivateKey
	maker         string // funder address when set, EOA otherwise
	signer        string // EOA derived from the private key
	signatureType model.SignatureType
	logger        *zap.Logger

	workers int
	tasks   chan signTask
	done    chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// SignerConfig holds signer pool configuration.
type SignerConfig struct {
	PrivateKey    string // hex, 0x prefix accepted
	FunderAddress string // optional proxy wallet acting as maker
	SignatureType int
	ChainID       int64
	Workers       int
	QueueDepth    int
	Logger        *zap.Logger
}

type signTask struct {
	intent types.OrderIntent
	result chan signResult
}

type signResult struct {
	order *types.SignedOrderJSON
	err   error
}

// NewSignerPool parses the signing key and prepares the pool. Workers are
// launched by Start.
func NewSignerPool(cfg *SignerConfig) (*SignerPool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workers must be positive")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("derive public key")
	}
	signer := crypto.PubkeyToAddress(*publicKey).Hex()

	maker := cfg.FunderAddress
	if maker == "" {
		maker = signer
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = 137 // Polygon mainnet
	}

	queueDepth := cfg.QueueDepth
	if queueDepth <= 0 {
		queueDepth = cfg.Workers * 2
	}

	return &SignerPool{
		orderBuilder:  builder.NewExchangeOrderBuilderImpl(big.NewInt(chainID), nil),
		privateKey:    privateKey,
		maker:         maker,
		signer:        signer,
		signatureType: model.SignatureType(cfg.SignatureType),
		logger:        cfg.Logger,
		workers:       cfg.Workers,
		tasks:         make(chan signTask, queueDepth),
		done:          make(chan struct{}),
	}, nil
}

// Start launches the signing workers.
func (p *SignerPool) Start(ctx context.Context) error {
	p.logger.Info("signer-pool-starting",
		zap.Int("workers", p.workers),
		zap.String("maker", p.maker),
		zap.String("signer", p.signer))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	return nil
}

func (p *SignerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case task := <-p.tasks:
			start := time.Now()
			order, err := p.sign(task.intent)
			SigningDuration.Observe(time.Since(start).Seconds())
			task.result <- signResult{order: order, err: err}
		}
	}
}

// Sign enqueues the intent and waits for the signed order. A saturated queue
// is reported rather than blocking the caller past its deadline; a closed
// pool is fatal because live trading cannot continue without a signer.
func (p *SignerPool) Sign(ctx context.Context, intent types.OrderIntent) (*types.SignedOrderJSON, error) {
	task := signTask{intent: intent, result: make(chan signResult, 1)}
	select {
	case <-p.done:
		return nil, &types.FatalError{Reason: "signer pool closed"}
	case p.tasks <- task:
	default:
		SignerQueueRejections.Inc()
		return nil, &types.OrderError{
			Code:    "SIGNER_SATURATED",
			Message: "signer queue full",
			Outcome: intent.Outcome,
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, &types.FatalError{Reason: "signer pool closed"}
	case res := <-task.result:
		return res.order, res.err
	}
}

// sign builds and signs a single order. Amounts are raw 6-decimal integers:
// the maker side is what we give up (USDC on buys, shares on sells).
func (p *SignerPool) sign(intent types.OrderIntent) (*types.SignedOrderJSON, error) {
	var makerAmount, takerAmount string
	side := model.BUY
	if intent.Side == types.SideSell {
		side = model.SELL
		makerAmount = toRawAmount(intent.Size)
		takerAmount = toRawAmount(intent.Size * intent.Price)
	} else {
		makerAmount = toRawAmount(intent.Size * intent.Price)
		takerAmount = toRawAmount(intent.Size)
	}

	orderData := &model.OrderData{
		Maker:         p.maker,
		Taker:         zeroAddress,
		TokenId:       intent.TokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Side:          side,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        p.signer,
		Expiration:    "0",
		SignatureType: p.signatureType,
	}

	signed, err := p.orderBuilder.BuildSignedOrder(p.privateKey, orderData, model.CTFExchange)
	if err != nil {
		return nil, fmt.Errorf("build signed order: %w", err)
	}

	sideStr := "BUY"
	if signed.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	return &types.SignedOrderJSON{
		Salt:          signed.Salt.Int64(),
		Maker:         signed.Maker.Hex(),
		Signer:        signed.Signer.Hex(),
		Taker:         signed.Taker.Hex(),
		TokenID:       signed.TokenId.String(),
		MakerAmount:   signed.MakerAmount.String(),
		TakerAmount:   signed.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    signed.Expiration.String(),
		Nonce:         signed.Nonce.String(),
		FeeRateBps:    signed.FeeRateBps.String(),
		SignatureType: int(signed.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(signed.Signature),
	}, nil
}

// Address returns the EOA address derived from the signing key.
func (p *SignerPool) Address() string { return p.signer }

// Close stops the workers. Signs still waiting in the queue fail fast with a
// fatal error rather than hanging on a pool that will never serve them.
func (p *SignerPool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	close(p.done)
	p.wg.Wait()
	p.logger.Info("signer-pool-closed")
	return nil
}

// toRawAmount converts a dollar or share amount into the 6-decimal integer
// string the exchange contracts use.
func toRawAmount(amount float64) string {
	return fmt.Sprintf("%d", int64(amount*1_000_000))
}
