package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/gamenight/decider/internal/catalog"
)

type mockUserRepo struct {
	users map[int64]*User
}

func (m *mockUserRepo) Get(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByBGGUsername(_ context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.BGGUsername != "" && strings.EqualFold(u.BGGUsername, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Save(_ context.Context, u *User) error {
	cp := *u
	m.users[u.TelegramID] = &cp
	return nil
}

type mockGameRepo struct {
	games map[int64]Game
}

func (m *mockGameRepo) Get(_ context.Context, id int64) (*Game, error) {
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (m *mockGameRepo) List(_ context.Context, ids []int64) ([]Game, error) {
	var out []Game
	for _, id := range ids {
		if g, ok := m.games[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockGameRepo) FindByName(_ context.Context, name string) ([]Game, error) {
	var out []Game
	for _, g := range m.games {
		if strings.EqualFold(g.Name, name) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockGameRepo) Save(_ context.Context, g *Game) error {
	m.games[g.ID] = *g
	return nil
}

type entryKey struct{ user, game int64 }

type mockCollectionRepo struct {
	games   *mockGameRepo
	users   *mockUserRepo
	entries map[entryKey]Entry
	syncs   int
}

func (m *mockCollectionRepo) Get(_ context.Context, userID, gameID int64) (*Entry, error) {
	e, ok := m.entries[entryKey{userID, gameID}]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *mockCollectionRepo) ListByUsers(_ context.Context, userIDs []int64) ([]Entry, error) {
	var out []Entry
	for _, uid := range userIDs {
		for k, e := range m.entries {
			if k.user == uid {
				e.Game = m.games.games[k.game]
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (m *mockCollectionRepo) Save(_ context.Context, e *Entry) error {
	m.entries[entryKey{e.UserID, e.Game.ID}] = *e
	return nil
}

func (m *mockCollectionRepo) ApplySync(ctx context.Context, c *SyncChanges) error {
	m.syncs++
	u := m.users.users[c.UserID]
	u.BGGUsername = c.BGGUsername
	for _, g := range c.Games {
		m.games.games[g.ID] = g
	}
	for _, e := range c.Add {
		m.entries[entryKey{e.UserID, e.Game.ID}] = e
	}
	for _, id := range c.Remove {
		delete(m.entries, entryKey{c.UserID, id})
	}
	for _, g := range c.Games {
		k := entryKey{c.UserID, g.ID}
		if e, ok := m.entries[k]; ok {
			e.EffectiveMax = c.EffectiveMax[g.ID]
			m.entries[k] = e
		}
	}
	return nil
}

type mockCatalog struct {
	collection  []catalog.Item
	collErr     error
	expansions  []catalog.Item
	expErr      error
	things      map[int64]catalog.Item
	thingsErr   error
	search      []catalog.SearchResult
	thingsCalls int
}

func (m *mockCatalog) Collection(_ context.Context, _ string) ([]catalog.Item, error) {
	if m.collErr != nil {
		return nil, m.collErr
	}
	out := make([]catalog.Item, len(m.collection))
	copy(out, m.collection)
	return out, nil
}

func (m *mockCatalog) Expansions(_ context.Context, _ string) ([]catalog.Item, error) {
	if m.expErr != nil {
		return nil, m.expErr
	}
	return append([]catalog.Item(nil), m.expansions...), nil
}

func (m *mockCatalog) Things(_ context.Context, ids ...int64) ([]catalog.Item, error) {
	m.thingsCalls++
	if m.thingsErr != nil {
		return nil, m.thingsErr
	}
	var out []catalog.Item
	for _, id := range ids {
		if it, ok := m.things[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockCatalog) Search(_ context.Context, _ string, _ int) ([]catalog.SearchResult, error) {
	return m.search, nil
}

type fixture struct {
	svc     *Service
	users   *mockUserRepo
	games   *mockGameRepo
	coll    *mockCollectionRepo
	catalog *mockCatalog
}

func newFixture() *fixture {
	users := &mockUserRepo{users: map[int64]*User{}}
	games := &mockGameRepo{games: map[int64]Game{}}
	coll := &mockCollectionRepo{games: games, users: users, entries: map[entryKey]Entry{}}
	cat := &mockCatalog{things: map[int64]catalog.Item{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		svc:     NewService(users, games, coll, cat, logger),
		users:   users,
		games:   games,
		coll:    coll,
		catalog: cat,
	}
}

func TestTierOf(t *testing.T) {
	tests := []struct {
		weight float64
		want   Tier
	}{
		{0, TierUnrated},
		{1.0, TierLight},
		{1.99, TierLight},
		{2.0, TierMedium},
		{2.99, TierMedium},
		{3.0, TierHeavy},
		{4.8, TierHeavy},
	}
	for _, tt := range tests {
		if got := TierOf(tt.weight); got != tt.want {
			t.Errorf("TierOf(%v) = %v, want %v", tt.weight, got, tt.want)
		}
	}
}

func TestGame_Supports(t *testing.T) {
	g := Game{MinPlayers: 2, MaxPlayers: 4}
	for p := 0; p <= 6; p++ {
		want := p >= 2 && p <= 4
		if got := g.Supports(p); got != want {
			t.Errorf("Supports(%d) = %v, want %v", p, got, want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Catan", "catan"},
		{"  Ticket to Ride:  Europe ", "ticket to ride europe"},
		{"7 Wonders Duel", "7 wonders duel"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestManualGameID(t *testing.T) {
	a := ManualGameID("My Game")
	if a >= 0 {
		t.Errorf("expected negative id, got %d", a)
	}
	if b := ManualGameID("  my   game "); a != b {
		t.Errorf("expected stable id across spelling, got %d and %d", a, b)
	}
	if c := ManualGameID("Other Game"); a == c {
		t.Error("expected different ids for different names")
	}
}

func TestGuestID(t *testing.T) {
	a := GuestID("lobby-1", "Bob")
	if a >= 0 {
		t.Errorf("expected negative id, got %d", a)
	}
	if a != GuestID("lobby-1", "bob") {
		t.Error("expected case-insensitive guest id")
	}
	if a == GuestID("lobby-2", "Bob") {
		t.Error("expected guest id scoped to lobby")
	}
}

func TestService_EnsureUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	u, err := f.svc.EnsureUser(ctx, 1, "alice")
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if u.TelegramName != "alice" {
		t.Errorf("expected name alice, got %q", u.TelegramName)
	}

	if _, err := f.svc.EnsureUser(ctx, 1, "Alice B"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if got := f.users.users[1].TelegramName; got != "Alice B" {
		t.Errorf("expected name updated, got %q", got)
	}
}

func TestService_SyncCollection_FirstSyncNotNew(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.catalog.collection = []catalog.Item{
		{ID: 13, Name: "Catan", MinPlayers: 3, MaxPlayers: 4, Weight: 2.3},
		{ID: 822, Name: "Carcassonne", MinPlayers: 2, MaxPlayers: 5},
	}
	f.catalog.things[822] = catalog.Item{ID: 822, Name: "Carcassonne", Weight: 1.9}

	report, err := f.svc.SyncCollection(ctx, 1, "alice", "alice_bgg")
	if err != nil {
		t.Fatalf("SyncCollection failed: %v", err)
	}

	if report.Total != 2 || report.Added != 2 || report.Removed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.WeightsFetched != 1 {
		t.Errorf("expected 1 weight fetched, got %d", report.WeightsFetched)
	}
	if f.games.games[822].Weight != 1.9 {
		t.Errorf("expected backfilled weight, got %v", f.games.games[822].Weight)
	}
	if f.users.users[1].BGGUsername != "alice_bgg" {
		t.Errorf("expected bgg username linked, got %q", f.users.users[1].BGGUsername)
	}
	for k, e := range f.coll.entries {
		if e.IsNew {
			t.Errorf("entry %v should not be new on first sync", k)
		}
	}
}

func TestService_SyncCollection_Resync(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.catalog.collection = []catalog.Item{
		{ID: 13, Name: "Catan", MinPlayers: 3, MaxPlayers: 4, Weight: 2.3},
		{ID: 822, Name: "Carcassonne", MinPlayers: 2, MaxPlayers: 5, Weight: 1.9},
	}
	if _, err := f.svc.SyncCollection(ctx, 1, "alice", "alice_bgg"); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	manual, err := f.svc.AddManualGame(ctx, 1, "Homebrew", 2, 4, 1.5)
	if err != nil {
		t.Fatalf("AddManualGame failed: %v", err)
	}

	f.catalog.collection = []catalog.Item{
		{ID: 13, Name: "Catan", MinPlayers: 3, MaxPlayers: 4, Weight: 2.3},
		{ID: 230802, Name: "Azul", MinPlayers: 2, MaxPlayers: 4, Weight: 1.8},
	}
	report, err := f.svc.SyncCollection(ctx, 1, "alice", "alice_bgg")
	if err != nil {
		t.Fatalf("resync failed: %v", err)
	}

	if report.Added != 1 || report.Updated != 1 || report.Removed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if _, ok := f.coll.entries[entryKey{1, 822}]; ok {
		t.Error("expected Carcassonne removed")
	}
	if e := f.coll.entries[entryKey{1, 230802}]; !e.IsNew {
		t.Error("expected Azul marked new on resync")
	}
	if _, ok := f.coll.entries[entryKey{1, manual.ID}]; !ok {
		t.Error("manual games must survive resync")
	}
	if f.catalog.thingsCalls != 0 {
		t.Errorf("expected no weight backfill, got %d calls", f.catalog.thingsCalls)
	}
}

func TestService_Resync(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Resync(ctx, 1, "alice"); !errors.Is(err, ErrNoBGGUsername) {
		t.Fatalf("expected ErrNoBGGUsername, got %v", err)
	}

	f.catalog.collection = []catalog.Item{{ID: 13, Name: "Catan", MinPlayers: 3, MaxPlayers: 4, Weight: 2.3}}
	if _, err := f.svc.SyncCollection(ctx, 1, "alice", "alice_bgg"); err != nil {
		t.Fatalf("SyncCollection failed: %v", err)
	}

	f.catalog.collection = append(f.catalog.collection, catalog.Item{ID: 822, Name: "Carcassonne", MinPlayers: 2, MaxPlayers: 5, Weight: 1.9})
	report, err := f.svc.Resync(ctx, 1, "alice")
	if err != nil {
		t.Fatalf("Resync failed: %v", err)
	}
	if report.Username != "alice_bgg" || report.Added != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if e := f.coll.entries[entryKey{1, 822}]; !e.IsNew {
		t.Error("game added on resync should be new")
	}
}

func TestService_SyncCollection_CatalogErrorWritesNothing(t *testing.T) {
	f := newFixture()
	f.catalog.collErr = catalog.ErrUserNotFound

	_, err := f.svc.SyncCollection(context.Background(), 1, "alice", "nobody")
	if !errors.Is(err, catalog.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if f.coll.syncs != 0 {
		t.Error("expected no sync to be applied")
	}
	if f.users.users[1].BGGUsername != "" {
		t.Error("expected username not linked")
	}
}

func TestService_SyncCollection_WeightBackfillFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.catalog.collection = []catalog.Item{{ID: 822, Name: "Carcassonne", MinPlayers: 2, MaxPlayers: 5}}
	f.catalog.thingsErr = &catalog.ServiceError{Op: "thing", Status: 500}

	report, err := f.svc.SyncCollection(context.Background(), 1, "alice", "alice_bgg")
	if err != nil {
		t.Fatalf("SyncCollection failed: %v", err)
	}
	if report.WeightsFetched != 0 || report.Added != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestService_SyncCollection_Expansions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.catalog.collection = []catalog.Item{
		{ID: 13, Name: "Catan", MinPlayers: 3, MaxPlayers: 4, Weight: 2.3},
		{ID: 822, Name: "Carcassonne", MinPlayers: 2, MaxPlayers: 5, Weight: 1.9},
	}
	f.catalog.expansions = []catalog.Item{
		{ID: 1153, Name: "Catan: 5-6 Player Extension"},
		{ID: 325, Name: "Catan: Seafarers"},
		{ID: 2993, Name: "Carcassonne: Inns & Cathedrals"},
		{ID: 40000, Name: "Expansion For A Game Alice Sold"},
	}
	f.catalog.things[1153] = catalog.Item{ID: 1153, BaseGameID: 13, MaxPlayers: 6}
	f.catalog.things[325] = catalog.Item{ID: 325, BaseGameID: 13, MaxPlayers: 4}
	f.catalog.things[2993] = catalog.Item{ID: 2993, BaseGameID: 822, MaxPlayers: 6}
	f.catalog.things[40000] = catalog.Item{ID: 40000, BaseGameID: 999, MaxPlayers: 8}

	report, err := f.svc.SyncCollection(ctx, 1, "alice", "alice_bgg")
	if err != nil {
		t.Fatalf("SyncCollection failed: %v", err)
	}
	if report.Expansions != 3 || report.PlayerCounts != 2 {
		t.Errorf("unexpected report: %+v", report)
	}

	catan := f.coll.entries[entryKey{1, 13}]
	if catan.EffectiveMax != 6 || catan.MaxPlayers() != 6 {
		t.Errorf("expected Catan to seat 6, got %+v", catan)
	}
	if carc := f.coll.entries[entryKey{1, 822}]; carc.MaxPlayers() != 6 {
		t.Errorf("expected Carcassonne to seat 6, got %+v", carc)
	}
	if _, ok := f.games.games[40000]; ok {
		t.Error("expansions must not be stored as games")
	}

	// Selling the extension brings Catan back to its base count.
	f.catalog.expansions = f.catalog.expansions[1:]
	if _, err := f.svc.SyncCollection(ctx, 1, "alice", "alice_bgg"); err != nil {
		t.Fatalf("resync failed: %v", err)
	}
	if catan := f.coll.entries[entryKey{1, 13}]; catan.EffectiveMax != 0 || catan.MaxPlayers() != 4 {
		t.Errorf("expected Catan back to 4 players, got %+v", catan)
	}
}

func TestService_SyncCollection_ExpansionFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.catalog.collection = []catalog.Item{{ID: 13, Name: "Catan", MinPlayers: 3, MaxPlayers: 4, Weight: 2.3}}
	f.catalog.expErr = &catalog.ServiceError{Op: "expansions", Status: 500}

	report, err := f.svc.SyncCollection(context.Background(), 1, "alice", "alice_bgg")
	if err != nil {
		t.Fatalf("SyncCollection failed: %v", err)
	}
	if report.Added != 1 || report.Expansions != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if e := f.coll.entries[entryKey{1, 13}]; e.MaxPlayers() != 4 {
		t.Errorf("expected base player count, got %+v", e)
	}
}

func TestService_SyncCollection_UsernameTaken(t *testing.T) {
	f := newFixture()
	f.users.users[2] = &User{TelegramID: 2, BGGUsername: "shared"}

	_, err := f.svc.SyncCollection(context.Background(), 1, "alice", "shared")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestService_AddManualGame_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name     string
		game     string
		min, max int
		weight   float64
		wantErr  error
	}{
		{"empty name", "  ", 2, 4, 2, ErrEmptyName},
		{"max below min", "X", 4, 2, 2, ErrInvalidRange},
		{"zero min", "X", 0, 2, 2, ErrInvalidRange},
		{"weight too high", "X", 2, 4, 6, ErrInvalidWeight},
		{"ok", "X", 2, 4, 2.5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddManualGame(ctx, 1, tt.game, tt.min, tt.max, tt.weight)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	e := f.coll.entries[entryKey{1, ManualGameID("X")}]
	if !e.IsNew || e.State != StateStarred {
		t.Errorf("expected manual game starred and new, got %+v", e)
	}
}

func TestService_AddGame(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.catalog.search = []catalog.SearchResult{
		{ID: 27710, Name: "Catan Dice Game"},
		{ID: 13, Name: "CATAN"},
	}
	f.catalog.things[13] = catalog.Item{ID: 13, Name: "CATAN", MinPlayers: 3, MaxPlayers: 4, Weight: 2.3}

	g, err := f.svc.AddGame(ctx, 1, "catan")
	if err != nil {
		t.Fatalf("AddGame failed: %v", err)
	}
	if g.ID != 13 {
		t.Errorf("expected id 13, got %d", g.ID)
	}
	if _, ok := f.coll.entries[entryKey{1, 13}]; !ok {
		t.Error("expected game in collection")
	}
}

func TestService_AddGame_Suggestions(t *testing.T) {
	f := newFixture()
	f.catalog.search = []catalog.SearchResult{
		{ID: 1, Name: "Catan Junior"},
		{ID: 2, Name: "Catan Dice Game"},
	}

	_, err := f.svc.AddGame(context.Background(), 1, "catan")
	var nem *NoExactMatchError
	if !errors.As(err, &nem) {
		t.Fatalf("expected NoExactMatchError, got %v", err)
	}
	if len(nem.Suggestions) != 2 {
		t.Errorf("expected 2 suggestions, got %d", len(nem.Suggestions))
	}
}

func TestService_AddGame_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.AddGame(context.Background(), 1, "zzz")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Toggles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.catalog.collection = []catalog.Item{
		{ID: 13, Name: "Catan", MinPlayers: 3, MaxPlayers: 4, Weight: 2.3},
		{ID: 14, Name: "Catan Junior", MinPlayers: 2, MaxPlayers: 4, Weight: 1.2},
		{ID: 822, Name: "Carcassonne", MinPlayers: 2, MaxPlayers: 5, Weight: 1.9},
	}
	if _, err := f.svc.SyncCollection(ctx, 1, "alice", "alice_bgg"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	e, err := f.svc.ToggleExcluded(ctx, 1, "carc")
	if err != nil {
		t.Fatalf("ToggleExcluded failed: %v", err)
	}
	if !e.Excluded() {
		t.Error("expected excluded")
	}
	e, _ = f.svc.ToggleExcluded(ctx, 1, "Carcassonne")
	if e.Excluded() {
		t.Error("expected included after second toggle")
	}

	// exact match wins over substring matches
	e, err = f.svc.TogglePriority(ctx, 1, "catan")
	if err != nil {
		t.Fatalf("TogglePriority failed: %v", err)
	}
	if e.Game.ID != 13 || !e.Starred() {
		t.Errorf("expected Catan starred, got %+v", e)
	}

	_, err = f.svc.MarkPlayed(ctx, 1, "cat")
	var amb *AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguousError, got %v", err)
	}
	if len(amb.Matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(amb.Matches))
	}

	_, err = f.svc.MarkPlayed(ctx, 1, "gloomhaven")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_MarkPlayed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	g, err := f.svc.AddManualGame(ctx, 1, "Homebrew", 2, 4, 1.5)
	if err != nil {
		t.Fatalf("AddManualGame failed: %v", err)
	}

	e, err := f.svc.MarkPlayed(ctx, 1, "homebrew")
	if err != nil {
		t.Fatalf("MarkPlayed failed: %v", err)
	}
	if e.IsNew || f.coll.entries[entryKey{1, g.ID}].IsNew {
		t.Error("expected new flag cleared")
	}
}

func TestService_FindOrCreateGame(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.games.games[ManualGameID("Azul")] = Game{ID: ManualGameID("Azul"), Name: "Azul", MinPlayers: 2, MaxPlayers: 4}
	f.games.games[230802] = Game{ID: 230802, Name: "Azul", MinPlayers: 2, MaxPlayers: 4, Weight: 1.8}

	g, err := f.svc.FindOrCreateGame(ctx, "azul", 2, 6, 2.5)
	if err != nil {
		t.Fatalf("FindOrCreateGame failed: %v", err)
	}
	if g.ID != 230802 {
		t.Errorf("expected BGG record preferred, got %d", g.ID)
	}

	g, err = f.svc.FindOrCreateGame(ctx, "Brand New", 3, 5, 2.0)
	if err != nil {
		t.Fatalf("FindOrCreateGame failed: %v", err)
	}
	if !g.IsManual() || g.MinPlayers != 3 || g.MaxPlayers != 5 {
		t.Errorf("unexpected manual game: %+v", g)
	}
	if _, ok := f.games.games[g.ID]; !ok {
		t.Error("expected manual game saved")
	}
}
