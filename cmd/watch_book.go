package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mselser95/polymarket-engine/internal/discovery"
	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/pkg/config"
	"github.com/mselser95/polymarket-engine/pkg/websocket"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchBookCmd = &cobra.Command{
	Use:   "watch-book <market-slug>",
	Short: "Watch live top-of-book for one market",
	Long: `Subscribes to the YES and NO books of a single market and prints the
top of book once a second. Useful for checking feed health and spotting
sum-to-100 edges by hand.

Example:
  polymarket-engine watch-book trump-popular-vote-2024`,
	Args: cobra.ExactArgs(1),
	RunE: runWatchBook,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchBookCmd)
}

func runWatchBook(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	slug := args[0]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	client := discovery.NewClient(cfg.PolymarketGammaURL, logger)
	markets, err := client.FetchMarketsBySlugs(ctx, []string{slug})
	if err != nil {
		return fmt.Errorf("fetch market: %w", err)
	}
	if len(markets) == 0 {
		return fmt.Errorf("no market found for slug %q", slug)
	}
	market := markets[0]

	yes := market.TokenByOutcome("YES")
	no := market.TokenByOutcome("NO")
	if yes == nil || no == nil {
		return fmt.Errorf("market %q is missing a YES or NO token", slug)
	}

	fmt.Printf("Market: %s\n", market.Question)
	fmt.Printf("YES: %s\nNO:  %s\n\n", yes.TokenID, no.TokenID)

	wsManager := websocket.New(websocket.Config{
		URL:                   cfg.PolymarketWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})

	store := marketdata.NewStore()
	ingestor := marketdata.NewIngestor(marketdata.IngestorConfig{
		Store:  store,
		Events: wsManager.Events(),
		Logger: logger,
	})

	if err = wsManager.Start(); err != nil {
		return fmt.Errorf("start websocket: %w", err)
	}
	defer wsManager.Close()

	if err = ingestor.Start(ctx); err != nil {
		return fmt.Errorf("start ingestor: %w", err)
	}

	if err = wsManager.Subscribe(ctx, []string{yes.TokenID, no.TokenID}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			return nil
		case <-ticker.C:
			printTopOfBook(w, store, yes.TokenID, no.TokenID)
		}
	}
}

func printTopOfBook(w *tabwriter.Writer, store *marketdata.Store, yesID, noID string) {
	fmt.Fprintf(w, "token\tbest bid\tbest ask\tmid\n")
	for _, entry := range []struct {
		label   string
		tokenID string
	}{
		{"YES", yesID},
		{"NO", noID},
	} {
		bid, bidOK := store.BestBid(entry.tokenID)
		ask, askOK := store.BestAsk(entry.tokenID)
		mid, midOK := store.MidPrice(entry.tokenID)
		if !bidOK && !askOK {
			fmt.Fprintf(w, "%s\t-\t-\t-\n", entry.label)
			continue
		}
		bidStr, askStr, midStr := "-", "-", "-"
		if bidOK {
			bidStr = fmt.Sprintf("%.3f (%.1f)", bid.Price, bid.Size)
		}
		if askOK {
			askStr = fmt.Sprintf("%.3f (%.1f)", ask.Price, ask.Size)
		}
		if midOK {
			midStr = fmt.Sprintf("%.3f", mid)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.label, bidStr, askStr, midStr)
	}
	w.Flush()
	fmt.Println()
}
