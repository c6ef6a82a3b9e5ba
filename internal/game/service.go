package game

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gamenight/decider/internal/catalog"
)

const maxSuggestions = 5

type Service struct {
	users      UserRepository
	games      GameRepository
	collection CollectionRepository
	catalog    Catalog
	logger     *slog.Logger
}

func NewService(users UserRepository, games GameRepository, collection CollectionRepository, catalog Catalog, logger *slog.Logger) *Service {
	return &Service{
		users:      users,
		games:      games,
		collection: collection,
		catalog:    catalog,
		logger:     logger,
	}
}

// SyncReport summarizes a collection sync.
type SyncReport struct {
	Username       string
	Total          int
	Added          int
	Updated        int
	Removed        int
	WeightsFetched int
	Expansions     int // owned expansions of owned games
	PlayerCounts   int // games seating more players thanks to them
}

// EnsureUser creates the user on first contact and keeps the display name current.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, name string) (*User, error) {
	u, err := s.users.Get(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u != nil && u.TelegramName == name {
		return u, nil
	}
	if u == nil {
		u = &User{TelegramID: telegramID}
	}
	u.TelegramName = name
	if err := s.users.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

// CreateGuest records a guest user. Calling it again for the same id is a no-op.
func (s *Service) CreateGuest(ctx context.Context, id int64, name string, addedBy int64) (*User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get guest: %w", err)
	}
	if u != nil {
		return u, nil
	}
	u = &User{
		TelegramID:   id,
		TelegramName: name,
		IsGuest:      true,
		AddedBy:      addedBy,
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("save guest: %w", err)
	}
	return u, nil
}

// SyncCollection replaces the user's BGG-backed collection with what BGG reports.
// Catalog errors are returned unchanged and nothing is written.
func (s *Service) SyncCollection(ctx context.Context, userID int64, name, username string) (*SyncReport, error) {
	username = strings.TrimSpace(username)

	owner, err := s.users.GetByBGGUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup bgg username: %w", err)
	}
	if owner != nil && owner.TelegramID != userID {
		return nil, ErrUsernameTaken
	}

	user, err := s.EnsureUser(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	items, err := s.catalog.Collection(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("fetch collection: %w", err)
	}

	report := &SyncReport{Username: username}
	report.WeightsFetched = s.backfillWeights(ctx, items)

	existing, err := s.collection.ListByUsers(ctx, []int64{userID})
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}
	owned := make(map[int64]bool, len(existing))
	for _, e := range existing {
		owned[e.Game.ID] = true
	}

	// The first import is the baseline, nothing in it counts as new.
	firstSync := user.BGGUsername == ""

	changes := &SyncChanges{UserID: userID, BGGUsername: username}
	upstream := make(map[int64]bool, len(items))
	for _, it := range items {
		if upstream[it.ID] {
			continue
		}
		upstream[it.ID] = true

		g := gameFromItem(it)
		changes.Games = append(changes.Games, g)
		if owned[g.ID] {
			report.Updated++
			continue
		}
		changes.Add = append(changes.Add, Entry{
			UserID: userID,
			Game:   g,
			State:  StateIncluded,
			IsNew:  !firstSync,
		})
		report.Added++
	}
	report.Total = len(upstream)

	changes.EffectiveMax, report.Expansions = s.expansionPlayerCounts(ctx, username, changes.Games)
	report.PlayerCounts = len(changes.EffectiveMax)

	for _, e := range existing {
		if e.Game.IsManual() || upstream[e.Game.ID] {
			continue
		}
		changes.Remove = append(changes.Remove, e.Game.ID)
		report.Removed++
	}

	if err := s.collection.ApplySync(ctx, changes); err != nil {
		return nil, fmt.Errorf("apply sync: %w", err)
	}

	s.logger.Info("collection synced",
		"user_id", userID,
		"bgg_username", username,
		"total", report.Total,
		"added", report.Added,
		"removed", report.Removed,
		"weights_fetched", report.WeightsFetched,
		"expansions", report.Expansions,
		"player_counts", report.PlayerCounts,
	)
	return report, nil
}

// Resync syncs the user's collection again from the username linked earlier.
func (s *Service) Resync(ctx context.Context, userID int64, name string) (*SyncReport, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil || u.BGGUsername == "" {
		return nil, ErrNoBGGUsername
	}
	return s.SyncCollection(ctx, userID, name, u.BGGUsername)
}

// expansionPlayerCounts finds owned expansions of the synced games and
// returns the games whose player count they raise, keyed by game id, along
// with how many expansions matched an owned game. Failures are logged and
// the sync proceeds with base player counts.
func (s *Service) expansionPlayerCounts(ctx context.Context, username string, games []Game) (map[int64]int, int) {
	expansions, err := s.catalog.Expansions(ctx, username)
	if err != nil {
		s.logger.Warn("expansion sync failed", "bgg_username", username, "error", err)
		return nil, 0
	}
	if len(expansions) == 0 {
		return nil, 0
	}

	ids := make([]int64, 0, len(expansions))
	for _, e := range expansions {
		ids = append(ids, e.ID)
	}
	details, err := s.catalog.Things(ctx, ids...)
	if err != nil {
		s.logger.Warn("expansion details failed", "expansions", len(ids), "error", err)
		return nil, 0
	}

	baseMax := make(map[int64]int, len(games))
	for _, g := range games {
		baseMax[g.ID] = g.MaxPlayers
	}

	matched := 0
	raised := make(map[int64]int)
	for _, d := range details {
		base, owned := baseMax[d.BaseGameID]
		if !owned {
			continue
		}
		matched++
		if d.MaxPlayers > base && d.MaxPlayers > raised[d.BaseGameID] {
			raised[d.BaseGameID] = d.MaxPlayers
		}
	}
	return raised, matched
}

// backfillWeights fills in weights the collection endpoint left empty.
// Failures are logged and the sync proceeds with unrated games.
func (s *Service) backfillWeights(ctx context.Context, items []catalog.Item) int {
	var ids []int64
	for _, it := range items {
		if it.Weight == 0 {
			ids = append(ids, it.ID)
		}
	}
	if len(ids) == 0 {
		return 0
	}

	details, err := s.catalog.Things(ctx, ids...)
	if err != nil {
		s.logger.Warn("weight backfill failed", "games", len(ids), "error", err)
		return 0
	}

	weights := make(map[int64]float64, len(details))
	for _, d := range details {
		weights[d.ID] = d.Weight
	}

	fetched := 0
	for i := range items {
		if items[i].Weight != 0 {
			continue
		}
		if w := weights[items[i].ID]; w > 0 {
			items[i].Weight = w
			fetched++
		}
	}
	return fetched
}

// AddGame finds a game on BGG by exact name and adds it to the user's collection
// as a starred new game. When only similar titles exist a *NoExactMatchError
// carries them as suggestions.
func (s *Service) AddGame(ctx context.Context, userID int64, query string) (*Game, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyName
	}

	results, err := s.catalog.Search(ctx, query, 0)
	if err != nil {
		return nil, fmt.Errorf("search bgg: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, query)
	}

	norm := NormalizeName(query)
	var match *catalog.SearchResult
	for i := range results {
		if NormalizeName(results[i].Name) == norm {
			match = &results[i]
			break
		}
	}
	if match == nil {
		return nil, &NoExactMatchError{
			Query:       query,
			Suggestions: results[:min(maxSuggestions, len(results))],
		}
	}

	items, err := s.catalog.Things(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch game: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, query)
	}

	g := gameFromItem(items[0])
	if err := s.games.Save(ctx, &g); err != nil {
		return nil, fmt.Errorf("save game: %w", err)
	}
	if err := s.addStarred(ctx, userID, g); err != nil {
		return nil, err
	}
	return &g, nil
}

// AddManualGame adds a game that BGG does not know to the user's collection.
func (s *Service) AddManualGame(ctx context.Context, userID int64, name string, minPlayers, maxPlayers int, weight float64) (*Game, error) {
	g, err := manualGame(name, minPlayers, maxPlayers, weight)
	if err != nil {
		return nil, err
	}
	if err := s.games.Save(ctx, &g); err != nil {
		return nil, fmt.Errorf("save game: %w", err)
	}
	if err := s.addStarred(ctx, userID, g); err != nil {
		return nil, err
	}
	return &g, nil
}

// FindOrCreateGame resolves a game by name, preferring real BGG records,
// and creates a manual game when nothing matches.
func (s *Service) FindOrCreateGame(ctx context.Context, name string, minPlayers, maxPlayers int, weight float64) (*Game, error) {
	g, err := manualGame(name, minPlayers, maxPlayers, weight)
	if err != nil {
		return nil, err
	}

	found, err := s.games.FindByName(ctx, g.Name)
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	if len(found) > 0 {
		best := found[0]
		for _, f := range found {
			if !f.IsManual() {
				best = f
				break
			}
		}
		return &best, nil
	}

	if err := s.games.Save(ctx, &g); err != nil {
		return nil, fmt.Errorf("save game: %w", err)
	}
	return &g, nil
}

func (s *Service) MarkPlayed(ctx context.Context, userID int64, name string) (*Entry, error) {
	e, err := s.findOwned(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	e.IsNew = false
	if err := s.collection.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("save entry: %w", err)
	}
	return e, nil
}

// ToggleExcluded flips a game between excluded and included.
func (s *Service) ToggleExcluded(ctx context.Context, userID int64, name string) (*Entry, error) {
	e, err := s.findOwned(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if e.State == StateExcluded {
		e.State = StateIncluded
	} else {
		e.State = StateExcluded
	}
	if err := s.collection.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("save entry: %w", err)
	}
	return e, nil
}

// TogglePriority flips a game between starred and included.
func (s *Service) TogglePriority(ctx context.Context, userID int64, name string) (*Entry, error) {
	e, err := s.findOwned(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if e.State == StateStarred {
		e.State = StateIncluded
	} else {
		e.State = StateStarred
	}
	if err := s.collection.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("save entry: %w", err)
	}
	return e, nil
}

// Collection returns the user's games sorted by name.
func (s *Service) Collection(ctx context.Context, userID int64) ([]Entry, error) {
	entries, err := s.collection.ListByUsers(ctx, []int64{userID})
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Game.Name) < strings.ToLower(entries[j].Game.Name)
	})
	return entries, nil
}

// Entries returns the collection entries of all given users.
func (s *Service) Entries(ctx context.Context, userIDs []int64) ([]Entry, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	entries, err := s.collection.ListByUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return entries, nil
}

func (s *Service) Games(ctx context.Context, ids []int64) ([]Game, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	games, err := s.games.List(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

func (s *Service) addStarred(ctx context.Context, userID int64, g Game) error {
	e, err := s.collection.Get(ctx, userID, g.ID)
	if err != nil {
		return fmt.Errorf("get entry: %w", err)
	}
	if e == nil {
		e = &Entry{UserID: userID, Game: g, IsNew: true}
	}
	e.State = StateStarred
	if err := s.collection.Save(ctx, e); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

// findOwned resolves a name against the user's collection: exact normalized
// match first, then a unique substring match.
func (s *Service) findOwned(ctx context.Context, userID int64, name string) (*Entry, error) {
	norm := NormalizeName(name)
	if norm == "" {
		return nil, ErrEmptyName
	}

	entries, err := s.collection.ListByUsers(ctx, []int64{userID})
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}

	var partial []Entry
	for _, e := range entries {
		n := NormalizeName(e.Game.Name)
		if n == norm {
			return &e, nil
		}
		if strings.Contains(n, norm) {
			partial = append(partial, e)
		}
	}

	switch len(partial) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	case 1:
		return &partial[0], nil
	default:
		matches := make([]Game, 0, len(partial))
		for _, e := range partial {
			matches = append(matches, e.Game)
		}
		return nil, &AmbiguousError{Query: name, Matches: matches}
	}
}

func manualGame(name string, minPlayers, maxPlayers int, weight float64) (Game, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return Game{}, ErrEmptyName
	}
	if minPlayers < 1 || maxPlayers < minPlayers {
		return Game{}, fmt.Errorf("%w: %d-%d", ErrInvalidRange, minPlayers, maxPlayers)
	}
	if weight < 0 || weight > 5 {
		return Game{}, fmt.Errorf("%w: %.1f", ErrInvalidWeight, weight)
	}
	return Game{
		ID:         ManualGameID(name),
		Name:       name,
		MinPlayers: minPlayers,
		MaxPlayers: maxPlayers,
		Weight:     weight,
	}, nil
}

func gameFromItem(it catalog.Item) Game {
	return Game{
		ID:             it.ID,
		Name:           it.Name,
		MinPlayers:     it.MinPlayers,
		MaxPlayers:     it.MaxPlayers,
		PlayingTime:    it.PlayingTime,
		MinPlayingTime: it.MinPlayingTime,
		MaxPlayingTime: it.MaxPlayingTime,
		Weight:         it.Weight,
		Thumbnail:      it.Thumbnail,
	}
}
