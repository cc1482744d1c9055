// Package events polls public sports scoreboards and turns finished games
// into resolutions the sniper strategy can act on. The feed is untrusted
// input: everything is parsed defensively and a malformed payload only
// skips a poll cycle.
package events

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Resolution is a decided event mapped to the token that pays out.
type Resolution struct {
	EventID      string    `json:"event_id"`
	League       string    `json:"league"`
	WinningToken string    `json:"winning_token"`
	Final        bool      `json:"final"`
	DecidedAt    time.Time `json:"decided_at"`
}

// Binding ties a scoreboard event to the outcome tokens of its market.
type Binding struct {
	EventID   string
	HomeToken string // token that pays out when the home team wins
	AwayToken string
}

// ParseBindings parses "eventID:homeToken:awayToken" triples separated by
// commas, the EVENTS_BINDINGS format.
func ParseBindings(raw []string) ([]Binding, error) {
	bindings := make([]Binding, 0, len(raw))
	for _, item := range raw {
		parts := strings.Split(item, ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("malformed event binding %q, want eventID:homeToken:awayToken", item)
		}
		bindings = append(bindings, Binding{EventID: parts[0], HomeToken: parts[1], AwayToken: parts[2]})
	}
	return bindings, nil
}

// Config holds poller configuration.
type Config struct {
	BaseURL      string // scoreboard API root
	Leagues      []string
	PollInterval time.Duration
	Bindings     []Binding
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Poller fetches scoreboards on an interval and exposes resolutions.
type Poller struct {
	cfg      Config
	client   *http.Client
	logger   *zap.Logger
	bindings map[string]Binding

	mu       sync.RWMutex
	resolved map[string]Resolution

	wg sync.WaitGroup
}

// NewPoller creates an event feed poller.
func NewPoller(cfg Config) *Poller {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	bindings := make(map[string]Binding, len(cfg.Bindings))
	for _, b := range cfg.Bindings {
		bindings[b.EventID] = b
	}

	return &Poller{
		cfg:      cfg,
		client:   client,
		logger:   cfg.Logger,
		bindings: bindings,
		resolved: make(map[string]Resolution),
	}
}

// Start launches the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("event-poller-starting",
		zap.Strings("leagues", p.cfg.Leagues),
		zap.Duration("interval", p.cfg.PollInterval),
		zap.Int("bindings", len(p.bindings)))

	p.wg.Add(1)
	go p.run(ctx)

	return nil
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("event-poller-stopping")
			return
		case <-ticker.C:
			for _, league := range p.cfg.Leagues {
				err := p.pollLeague(ctx, league)
				if err != nil {
					PollErrorsTotal.WithLabelValues(league).Inc()
					p.logger.Warn("scoreboard-poll-failed",
						zap.String("league", league),
						zap.Error(err))
				}
			}
		}
	}
}

// scoreboard wire types. Only the fields the poller needs.
type scoreboardResponse struct {
	Events []scoreboardEvent `json:"events"`
}

type scoreboardEvent struct {
	ID     string `json:"id"`
	Status struct {
		Type struct {
			Completed bool   `json:"completed"`
			State     string `json:"state"`
		} `json:"type"`
	} `json:"status"`
	Competitions []competition `json:"competitions"`
}

type competition struct {
	Competitors []competitor `json:"competitors"`
}

type competitor struct {
	HomeAway string `json:"homeAway"`
	Score    string `json:"score"`
}

func (p *Poller) pollLeague(ctx context.Context, league string) error {
	url := fmt.Sprintf("%s/%s/scoreboard", strings.TrimRight(p.cfg.BaseURL, "/"), league)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch scoreboard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scoreboard returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var sb scoreboardResponse
	err = json.Unmarshal(body, &sb)
	if err != nil {
		return fmt.Errorf("decode scoreboard: %w", err)
	}

	PollsTotal.WithLabelValues(league).Inc()

	for _, event := range sb.Events {
		p.handleEvent(league, event)
	}

	return nil
}

func (p *Poller) handleEvent(league string, event scoreboardEvent) {
	if !event.Status.Type.Completed {
		return
	}

	binding, ok := p.bindings[event.ID]
	if !ok {
		return
	}

	p.mu.RLock()
	_, seen := p.resolved[event.ID]
	p.mu.RUnlock()
	if seen {
		return
	}

	winner, ok := decideWinner(event)
	if !ok {
		p.logger.Warn("completed-event-without-decidable-winner", zap.String("event-id", event.ID))
		return
	}

	token := binding.AwayToken
	if winner == "home" {
		token = binding.HomeToken
	}

	res := Resolution{
		EventID:      event.ID,
		League:       league,
		WinningToken: token,
		Final:        true,
		DecidedAt:    time.Now(),
	}

	p.mu.Lock()
	p.resolved[event.ID] = res
	p.mu.Unlock()

	ResolutionsTotal.WithLabelValues(league).Inc()

	p.logger.Info("event-resolved",
		zap.String("event-id", event.ID),
		zap.String("league", league),
		zap.String("winning-token", token))
}

// decideWinner compares the final scores. Returns false on ties or when the
// payload is missing scores; a snipe must never fire on a guess.
func decideWinner(event scoreboardEvent) (string, bool) {
	if len(event.Competitions) == 0 {
		return "", false
	}

	var homeScore, awayScore float64
	var haveHome, haveAway bool
	for _, c := range event.Competitions[0].Competitors {
		var score float64
		_, err := fmt.Sscanf(c.Score, "%f", &score)
		if err != nil {
			continue
		}
		switch c.HomeAway {
		case "home":
			homeScore, haveHome = score, true
		case "away":
			awayScore, haveAway = score, true
		}
	}

	if !haveHome || !haveAway || homeScore == awayScore {
		return "", false
	}
	if homeScore > awayScore {
		return "home", true
	}
	return "away", true
}

// Resolutions returns all decided events. Safe for concurrent use.
func (p *Poller) Resolutions() []Resolution {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Resolution, 0, len(p.resolved))
	for _, res := range p.resolved {
		out = append(out, res)
	}
	return out
}

// Close waits for the polling loop to exit.
func (p *Poller) Close() error {
	p.wg.Wait()
	return nil
}
