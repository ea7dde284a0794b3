package agents

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/phantom-night/server/internal/agents/action"
	"github.com/phantom-night/server/internal/agents/cognition"
	"github.com/phantom-night/server/internal/agents/perception"
	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/events"
	"github.com/phantom-night/server/internal/infra/ai"
	"github.com/phantom-night/server/internal/platform/logger"
)

// Pool watches the event log and runs minds for every AI seat of every
// running game. One pool serves the whole process.
type Pool struct {
	eng      *engine.Engine
	eventLog *events.EventLog
	llm      ai.LLMProvider
	logger   *logger.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc // game id -> stop

	lastProcessed int
	seed          int64
}

// NewPool creates the agent pool. llm may be nil; agents then run on
// heuristics alone.
func NewPool(eng *engine.Engine, llm ai.LLMProvider, log *logger.Logger) *Pool {
	return &Pool{
		eng:      eng,
		eventLog: eng.EventLog(),
		llm:      llm,
		logger:   log,
		running:  make(map[string]context.CancelFunc),
		seed:     time.Now().UnixNano(),
	}
}

// Start begins watching for game lifecycle events.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Agent pool watching for games")
	go p.watchLoop(ctx)
}

// watchLoop polls the event log for game starts and ends.
func (p *Pool) watchLoop(ctx context.Context) {
	poll := time.NewTicker(500 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			p.stopAll()
			return
		case <-poll.C:
			all := p.eventLog.Replay()
			if len(all) <= p.lastProcessed {
				continue
			}
			fresh := all[p.lastProcessed:]
			p.lastProcessed = len(all)
			for _, e := range fresh {
				p.reactToEvent(ctx, e)
			}
		}
	}
}

func (p *Pool) reactToEvent(ctx context.Context, e events.GameEvent) {
	switch e.Type {
	case events.EventTypeGameStart:
		p.spawnGame(ctx, e.GameID)
	case events.EventTypeGameEnd, events.EventTypeGameCancelled:
		p.stopGame(e.GameID)
	}
}

// spawnGame launches one mind per AI seat of the game.
func (p *Pool) spawnGame(ctx context.Context, gameID string) {
	p.mu.Lock()
	if _, ok := p.running[gameID]; ok {
		p.mu.Unlock()
		return
	}
	gameCtx, cancel := context.WithCancel(ctx)
	p.running[gameID] = cancel
	seed := p.seed
	p.seed += int64(len(p.running))
	p.mu.Unlock()

	seats := p.eng.AgentSeats(gameID)
	perceiver := perception.NewPerceiver(p.eng, p.logger)
	executor := action.NewExecutor(p.eng, p.logger)

	for i, seat := range seats {
		rng := rand.New(rand.NewSource(seed + int64(i)*7919))
		cognitor := cognition.NewCognitor(p.llm, rng, p.logger)
		mind := NewAgentMind(p.eng, perceiver, cognitor, executor, rng, p.logger, gameID, seat)
		go mind.Run(gameCtx)
	}
	p.logger.Event("AGENTS_SPAWNED", gameID, strconv.Itoa(len(seats))+" minds")
}

func (p *Pool) stopGame(gameID string) {
	p.mu.Lock()
	cancel, ok := p.running[gameID]
	if ok {
		delete(p.running, gameID)
	}
	p.mu.Unlock()
	if ok {
		cancel()
		p.logger.Event("AGENTS_RETIRED", gameID, "game over")
	}
}

func (p *Pool) stopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, cancel := range p.running {
		cancel()
		delete(p.running, id)
	}
}
