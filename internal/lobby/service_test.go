package lobby

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gamenight/decider/internal/game"
)

type memStore struct {
	mu      sync.Mutex
	lobbies map[int64]Lobby
}

func newMemStore() *memStore {
	return &memStore{lobbies: map[int64]Lobby{}}
}

func clone(l Lobby) *Lobby {
	l.Players = append([]Player(nil), l.Players...)
	l.GuestGames = append([]GuestGame(nil), l.GuestGames...)
	polls := make([]PollRef, 0, len(l.Polls))
	for _, p := range l.Polls {
		p.Options = append([]PollOption(nil), p.Options...)
		p.Voters = append([]int64(nil), p.Voters...)
		polls = append(polls, p)
	}
	l.Polls = polls
	return &l
}

func (m *memStore) Get(_ context.Context, chatID int64) (*Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[chatID]
	if !ok {
		return nil, nil
	}
	return clone(l), nil
}

func (m *memStore) FindByPoll(_ context.Context, pollID string) (*Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lobbies {
		for _, p := range l.Polls {
			if p.PollID == pollID {
				return clone(l), nil
			}
		}
	}
	return nil, nil
}

func (m *memStore) Save(_ context.Context, l *Lobby) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lobbies[l.ChatID] = *clone(*l)
	return nil
}

func (m *memStore) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lobbies, chatID)
	return nil
}

type mockGames struct {
	guests  map[int64]string
	games   map[string]game.Game
	created int
}

func newMockGames() *mockGames {
	return &mockGames{guests: map[int64]string{}, games: map[string]game.Game{}}
}

func (m *mockGames) CreateGuest(_ context.Context, id int64, name string, _ int64) (*game.User, error) {
	m.guests[id] = name
	return &game.User{TelegramID: id, TelegramName: name, IsGuest: true}, nil
}

func (m *mockGames) FindOrCreateGame(_ context.Context, name string, minPlayers, maxPlayers int, weight float64) (*game.Game, error) {
	key := strings.ToLower(name)
	if g, ok := m.games[key]; ok {
		return &g, nil
	}
	g := game.Game{ID: game.ManualGameID(name), Name: name, MinPlayers: minPlayers, MaxPlayers: maxPlayers, Weight: weight}
	m.games[key] = g
	m.created++
	return &g, nil
}

func newTestService() (*Service, *memStore, *mockGames) {
	store := newMemStore()
	games := newMockGames()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, games, logger), store, games
}

const chatID = int64(-100123)

func TestService_StartReplacesLobby(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Start(ctx, chatID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, _, err := svc.Join(ctx, chatID, Player{UserID: 1, Name: "alice"}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	second, err := svc.Start(ctx, chatID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if first.ID == second.ID {
		t.Error("expected a fresh lobby id")
	}

	l, err := svc.Get(ctx, chatID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(l.Players) != 0 {
		t.Errorf("expected prior joins discarded, got %d players", len(l.Players))
	}

	if _, err := svc.Current(ctx, chatID, first.ID); !errors.Is(err, ErrStaleLobby) {
		t.Errorf("expected ErrStaleLobby for old lobby, got %v", err)
	}
}

func TestService_JoinIdempotent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Start(ctx, chatID)

	_, joined, err := svc.Join(ctx, chatID, Player{UserID: 1, Name: "alice"})
	if err != nil || !joined {
		t.Fatalf("first Join: joined=%v err=%v", joined, err)
	}
	l, joined, err := svc.Join(ctx, chatID, Player{UserID: 1, Name: "alice"})
	if err != nil {
		t.Fatalf("second Join failed: %v", err)
	}
	if joined {
		t.Error("expected joined=false on re-join")
	}
	if l.PlayerCount() != 1 {
		t.Errorf("expected 1 player, got %d", l.PlayerCount())
	}
}

func TestService_NoLobby(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Get(ctx, chatID); !errors.Is(err, ErrNoLobby) {
		t.Errorf("Get: expected ErrNoLobby, got %v", err)
	}
	if _, _, err := svc.Join(ctx, chatID, Player{UserID: 1}); !errors.Is(err, ErrNoLobby) {
		t.Errorf("Join: expected ErrNoLobby, got %v", err)
	}
	if _, err := svc.Cancel(ctx, chatID); !errors.Is(err, ErrNoLobby) {
		t.Errorf("Cancel: expected ErrNoLobby, got %v", err)
	}
}

func TestService_Cancel(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	svc.Start(ctx, chatID)

	if _, err := svc.Cancel(ctx, chatID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if len(store.lobbies) != 0 {
		t.Error("expected lobby removed")
	}
}

func TestService_AddGuest(t *testing.T) {
	svc, _, games := newTestService()
	ctx := context.Background()
	svc.Start(ctx, chatID)

	l, guest, err := svc.AddGuest(ctx, chatID, "  Bob  ", 1)
	if err != nil {
		t.Fatalf("AddGuest failed: %v", err)
	}
	if guest.Name != "Bob" || !guest.IsGuest || guest.UserID >= 0 {
		t.Errorf("unexpected guest: %+v", guest)
	}
	if _, ok := games.guests[guest.UserID]; !ok {
		t.Error("expected guest user created")
	}

	l, again, err := svc.AddGuest(ctx, chatID, "bob", 1)
	if err != nil {
		t.Fatalf("AddGuest failed: %v", err)
	}
	if again.UserID != guest.UserID || l.PlayerCount() != 1 {
		t.Errorf("expected idempotent add, got %+v with %d players", again, l.PlayerCount())
	}

	if _, _, err := svc.AddGuest(ctx, chatID, "   ", 1); !errors.Is(err, ErrEmptyGuestName) {
		t.Errorf("expected ErrEmptyGuestName, got %v", err)
	}
}

func TestService_AddGuestGame_UnknownGuest(t *testing.T) {
	svc, _, games := newTestService()
	ctx := context.Background()
	svc.Start(ctx, chatID)
	svc.AddGuest(ctx, chatID, "Bob", 1)

	_, _, _, err := svc.AddGuestGame(ctx, chatID, "Carol Catan", 2, 6, 2.5)
	if !errors.Is(err, ErrUnknownGuest) {
		t.Fatalf("expected ErrUnknownGuest, got %v", err)
	}
	var uge *UnknownGuestError
	if !errors.As(err, &uge) || len(uge.Guests) != 1 || uge.Guests[0] != "Bob" {
		t.Errorf("expected guest list [Bob], got %+v", uge)
	}
	if games.created != 0 {
		t.Error("game store must not be touched for unknown guests")
	}
}

func TestService_AddGuestGame_LongestPrefix(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Start(ctx, chatID)
	svc.AddGuest(ctx, chatID, "Bob", 1)
	_, bobSmith, _ := svc.AddGuest(ctx, chatID, "Bob Smith", 1)

	l, guest, g, err := svc.AddGuestGame(ctx, chatID, "bob smith Ticket to Ride", 2, 5, 1.8)
	if err != nil {
		t.Fatalf("AddGuestGame failed: %v", err)
	}
	if guest.UserID != bobSmith.UserID {
		t.Errorf("expected Bob Smith, got %q", guest.Name)
	}
	if g.Name != "Ticket to Ride" {
		t.Errorf("expected game name %q, got %q", "Ticket to Ride", g.Name)
	}
	if len(l.GuestGames) != 1 || l.GuestGames[0].GuestID != bobSmith.UserID {
		t.Errorf("unexpected guest games: %+v", l.GuestGames)
	}

	// word boundary: "Bobby" is not "Bob"
	if _, _, _, err := svc.AddGuestGame(ctx, chatID, "Bobby Azul", 2, 6, 2.5); !errors.Is(err, ErrUnknownGuest) {
		t.Errorf("expected ErrUnknownGuest for Bobby, got %v", err)
	}

	if _, _, _, err := svc.AddGuestGame(ctx, chatID, "Bob", 2, 6, 2.5); !errors.Is(err, ErrMissingGame) {
		t.Errorf("expected ErrMissingGame, got %v", err)
	}
}

func TestService_LeaveDropsGuestGames(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Start(ctx, chatID)
	_, bob, _ := svc.AddGuest(ctx, chatID, "Bob", 1)
	svc.AddGuestGame(ctx, chatID, "Bob Azul", 2, 4, 1.8)

	l, left, err := svc.Leave(ctx, chatID, bob.UserID)
	if err != nil || !left {
		t.Fatalf("Leave: left=%v err=%v", left, err)
	}
	if l.PlayerCount() != 0 || len(l.GuestGames) != 0 {
		t.Errorf("expected empty lobby, got %+v", l)
	}

	_, left, err = svc.Leave(ctx, chatID, 42)
	if err != nil || left {
		t.Errorf("expected no-op leave, got left=%v err=%v", left, err)
	}
}

func TestService_Votes(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	l, _ := svc.Start(ctx, chatID)
	svc.Join(ctx, chatID, Player{UserID: 1, Name: "alice"})
	svc.Join(ctx, chatID, Player{UserID: 2, Name: "bob"})
	svc.AddGuest(ctx, chatID, "Carol", 1)

	if err := svc.AddPoll(ctx, chatID, l.ID, PollRef{PollID: "p1", MessageID: 10}); err != nil {
		t.Fatalf("AddPoll failed: %v", err)
	}
	if err := svc.AddPoll(ctx, chatID, l.ID, PollRef{PollID: "p2", MessageID: 11}); err != nil {
		t.Fatalf("AddPoll failed: %v", err)
	}

	steps := []struct {
		poll     string
		user     int64
		retract  bool
		complete bool
	}{
		{"p1", 1, false, false},
		{"p1", 2, false, false},
		{"p2", 1, false, false},
		{"p2", 1, false, false},
		{"p2", 2, false, true},
		{"p2", 2, true, false},
		{"p2", 2, false, true},
	}
	for i, st := range steps {
		var (
			got *Lobby
			err error
		)
		if st.retract {
			got, err = svc.RetractVote(ctx, st.poll, st.user)
		} else {
			got, err = svc.RecordVote(ctx, st.poll, st.user)
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got.VotingComplete() != st.complete {
			t.Errorf("step %d: VotingComplete = %v, want %v", i, got.VotingComplete(), st.complete)
		}
	}

	if _, err := svc.RecordVote(ctx, "unknown", 1); !errors.Is(err, ErrNoLobby) {
		t.Errorf("expected ErrNoLobby for unknown poll, got %v", err)
	}

	if _, err := svc.Finish(ctx, chatID, l.ID); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if _, err := svc.Finish(ctx, chatID, l.ID); !errors.Is(err, ErrStaleLobby) {
		t.Errorf("expected second Finish to be stale, got %v", err)
	}
}

func TestService_SetMessage(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	old, _ := svc.Start(ctx, chatID)
	cur, _ := svc.Start(ctx, chatID)

	if err := svc.SetMessage(ctx, chatID, old.ID, 5); !errors.Is(err, ErrStaleLobby) {
		t.Errorf("expected ErrStaleLobby, got %v", err)
	}
	if err := svc.SetMessage(ctx, chatID, cur.ID, 6); err != nil {
		t.Fatalf("SetMessage failed: %v", err)
	}
	l, _ := svc.Get(ctx, chatID)
	if l.MessageID != 6 {
		t.Errorf("expected message id 6, got %d", l.MessageID)
	}
}

func TestService_ConcurrentJoins(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Start(ctx, chatID)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			svc.Join(ctx, chatID, Player{UserID: id})
		}(int64(i))
	}
	wg.Wait()

	l, _ := svc.Get(ctx, chatID)
	if l.PlayerCount() != 50 {
		t.Errorf("expected 50 players, got %d", l.PlayerCount())
	}
}

func TestService_PollsLifecycle(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	l, _ := svc.Start(ctx, chatID)
	svc.Join(ctx, chatID, Player{UserID: 1, Name: "alice"})

	if _, err := svc.BeginPolls(ctx, chatID, "other"); !errors.Is(err, ErrStaleLobby) {
		t.Errorf("expected ErrStaleLobby for another lobby, got %v", err)
	}
	if _, err := svc.BeginPolls(ctx, chatID, l.ID); err != nil {
		t.Fatalf("BeginPolls failed: %v", err)
	}
	if _, err := svc.BeginPolls(ctx, chatID, l.ID); !errors.Is(err, ErrPollsOpen) {
		t.Errorf("expected ErrPollsOpen while sending, got %v", err)
	}

	ref := PollRef{PollID: "p1", MessageID: 10, Options: []PollOption{{GameID: 13, Stars: 1}, {GameID: 9209}}}
	if err := svc.AddPoll(ctx, chatID, l.ID, ref); err != nil {
		t.Fatalf("AddPoll failed: %v", err)
	}
	got, err := svc.RecordVote(ctx, "p1", 1)
	if err != nil {
		t.Fatalf("RecordVote failed: %v", err)
	}
	if got.VotingComplete() {
		t.Error("voting must not complete while polls are being sent")
	}

	got, err = svc.PollsSent(ctx, chatID, l.ID)
	if err != nil {
		t.Fatalf("PollsSent failed: %v", err)
	}
	if !got.VotingComplete() {
		t.Error("expected voting to complete once sending ended")
	}
	if len(got.Polls[0].Options) != 2 || got.Polls[0].Options[0].Stars != 1 {
		t.Errorf("poll options not kept: %+v", got.Polls[0].Options)
	}
	if _, err := svc.BeginPolls(ctx, chatID, l.ID); !errors.Is(err, ErrPollsOpen) {
		t.Errorf("expected ErrPollsOpen with open polls, got %v", err)
	}
}

func TestService_AbortPolls(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	l, _ := svc.Start(ctx, chatID)
	svc.Join(ctx, chatID, Player{UserID: 1, Name: "alice"})

	svc.BeginPolls(ctx, chatID, l.ID)
	svc.AddPoll(ctx, chatID, l.ID, PollRef{PollID: "p1", MessageID: 10})

	sent, err := svc.AbortPolls(ctx, chatID, l.ID)
	if err != nil {
		t.Fatalf("AbortPolls failed: %v", err)
	}
	if len(sent) != 1 || sent[0].PollID != "p1" {
		t.Errorf("expected the sent poll back, got %+v", sent)
	}

	got, _ := svc.Get(ctx, chatID)
	if got.PollsOpen() {
		t.Errorf("expected polls released, got %+v", got)
	}
	if _, err := svc.RecordVote(ctx, "p1", 1); !errors.Is(err, ErrNoLobby) {
		t.Errorf("expected aborted poll to be forgotten, got %v", err)
	}
	if _, err := svc.BeginPolls(ctx, chatID, l.ID); err != nil {
		t.Errorf("expected polls to be sendable again, got %v", err)
	}
}

func TestService_ConcurrentBeginPolls(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	l, _ := svc.Start(ctx, chatID)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
		refused int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.BeginPolls(ctx, chatID, l.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				claimed++
			case errors.Is(err, ErrPollsOpen):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if claimed != 1 || refused != 19 {
		t.Errorf("expected exactly one sender, got %d claimed and %d refused", claimed, refused)
	}
}
