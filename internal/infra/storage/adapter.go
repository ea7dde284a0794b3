package storage

import (
	"context"
	"time"

	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/events"
)

// EngineStore adapts the repositories to the engine's write-through
// Store interface.
type EngineStore struct {
	games GameRepository
}

func NewEngineStore(games GameRepository) *EngineStore {
	return &EngineStore{games: games}
}

func (s *EngineStore) UpsertGame(ctx context.Context, g *engine.Game) error {
	row := GameRow{
		ID:           g.ID,
		Scope:        g.Scope,
		CreatorID:    g.CreatorID,
		Status:       string(g.Status),
		CurrentRound: g.CurrentRound,
		GameNumber:   g.GameNumber,
		MaxPlayers:   g.MaxPlayers,
		Speed:        g.Speed.ID,
		WinnerTeam:   string(g.WinnerTeam),
		CreatedAt:    g.CreatedAt,
		PhaseEndsAt:  nullableTime(g.PhaseEndsAt),
		StartedAt:    nullableTime(g.StartedAt),
		EndedAt:      nullableTime(g.EndedAt),
	}
	return s.games.UpsertGame(ctx, row)
}

func (s *EngineStore) UpsertPlayer(ctx context.Context, p *player.Player) error {
	return s.games.UpsertPlayer(ctx, PlayerRow{
		ID:              p.ID,
		GameID:          p.GameID,
		ResidentID:      p.ResidentID,
		Name:            p.Name,
		Role:            string(p.Role),
		Team:            string(p.Team),
		Kind:            string(p.Kind),
		IsAlive:         p.IsAlive,
		EliminatedRound: p.EliminatedRound,
		JoinedAt:        p.JoinedAt,
	})
}

func (s *EngineStore) SaveAction(ctx context.Context, gameID string, a *engine.NightAction) error {
	return s.games.UpsertAction(ctx, ActionRow{
		GameID:      gameID,
		Round:       a.Round,
		ActorID:     a.ActorID,
		ActionType:  string(a.Type),
		TargetID:    a.TargetID,
		Result:      a.Result,
		SubmittedAt: a.SubmittedAt,
	})
}

func (s *EngineStore) SaveVote(ctx context.Context, gameID string, v *engine.DayVote) error {
	return s.games.UpsertVote(ctx, VoteRow{
		GameID:      gameID,
		Round:       v.Round,
		VoterID:     v.VoterID,
		TargetID:    v.TargetID,
		Reason:      v.Reason,
		SubmittedAt: v.SubmittedAt,
	})
}

func (s *EngineStore) SaveChat(ctx context.Context, m *engine.ChatMessage) error {
	return s.games.SaveChat(ctx, ChatRow{
		ID:         m.ID,
		GameID:     m.GameID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Message:    m.Message,
		CreatedAt:  m.CreatedAt,
	})
}

func (s *EngineStore) DeletePlayer(ctx context.Context, playerID string) error {
	return s.games.DeletePlayer(ctx, playerID)
}

func (s *EngineStore) DeleteGame(ctx context.Context, gameID string) error {
	return s.games.DeleteGame(ctx, gameID)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// EventPersisterAdapter bridges the in-memory event log to the durable
// event ledger.
type EventPersisterAdapter struct {
	repo EventRepository
}

func NewEventPersisterAdapter(repo EventRepository) *EventPersisterAdapter {
	return &EventPersisterAdapter{repo: repo}
}

func (a *EventPersisterAdapter) Append(event events.GameEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.repo.Append(ctx, EventRow{
		ID:           event.ID,
		GameID:       event.GameID,
		Timestamp:    event.Timestamp,
		EventType:    string(event.Type),
		ActorID:      event.ActorID,
		TargetID:     event.TargetID,
		Round:        event.Round,
		Phase:        event.Phase,
		Message:      event.Message,
		RevealedRole: event.RevealedRole,
		RevealedType: event.RevealedType,
	})
}
