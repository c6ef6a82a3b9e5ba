package bot

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/gamenight/decider/internal/game"
	"github.com/gamenight/decider/internal/lobby"
)

//go:embed templates/*.html
var templates embed.FS

var (
	helpTmpl        *template.Template
	startTmpl       *template.Template
	lobbyTmpl       *template.Template
	syncTmpl        *template.Template
	gamesTmpl       *template.Template
	suggestionsTmpl *template.Template
)

// formatPlayers formats a player range, e.g. "2–4 players" or "2 players".
func formatPlayers(g game.Game) string {
	if g.MinPlayers == g.MaxPlayers {
		if g.MinPlayers == 1 {
			return "1 player"
		}
		return fmt.Sprintf("%d players", g.MinPlayers)
	}
	return fmt.Sprintf("%d–%d players", g.MinPlayers, g.MaxPlayers)
}

// formatGameSummary formats the facts that decide poll placement,
// e.g. "2–4 players, Medium".
func formatGameSummary(g game.Game) string {
	return formatPlayers(g) + ", " + g.Tier().String()
}

var templateFuncs = template.FuncMap{
	"players": formatPlayers,
	"summary": formatGameSummary,
}

// InitTemplates initializes all templates. Must be called before using any Render* functions.
func InitTemplates() error {
	for _, t := range []struct {
		dst  **template.Template
		name string
	}{
		{&helpTmpl, "help.html"},
		{&startTmpl, "start.html"},
		{&lobbyTmpl, "lobby.html"},
		{&syncTmpl, "sync.html"},
		{&gamesTmpl, "games.html"},
		{&suggestionsTmpl, "suggestions.html"},
	} {
		tmpl, err := template.New(t.name).Funcs(templateFuncs).ParseFS(templates, "templates/"+t.name)
		if err != nil {
			return fmt.Errorf("parse %s template: %w", t.name, err)
		}
		*t.dst = tmpl
	}
	return nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// RenderHelp lists the commands with their usage.
func RenderHelp(commands []Command) (string, error) {
	return render(helpTmpl, commands)
}

func RenderStart(name string) (string, error) {
	return render(startTmpl, name)
}

type lobbyGuestGame struct {
	Guest string
	Game  string
}

type lobbyView struct {
	Players    []lobby.Player
	GuestGames []lobbyGuestGame
	Polls      int
}

// RenderLobby renders the lobby message that carries the Join/Leave/Poll/Cancel buttons.
func RenderLobby(l *lobby.Lobby) (string, error) {
	view := lobbyView{Players: l.Players, Polls: len(l.Polls)}
	for _, gg := range l.GuestGames {
		guest, _ := l.Player(gg.GuestID)
		view.GuestGames = append(view.GuestGames, lobbyGuestGame{Guest: guest.Name, Game: gg.GameName})
	}
	return render(lobbyTmpl, view)
}

func RenderSyncReport(r *game.SyncReport) (string, error) {
	return render(syncTmpl, r)
}

type gamesView struct {
	Entries []game.Entry
	Total   int
	Hidden  int
}

// RenderGames lists a collection. If the message exceeds Telegram's limit,
// the tail of the list is replaced by a count.
func RenderGames(entries []game.Entry) (string, error) {
	view := gamesView{Entries: entries, Total: len(entries)}
	result, err := render(gamesTmpl, view)
	if err != nil {
		return "", err
	}

	for len(result) > TelegramMaxMessageLength && len(view.Entries) > 0 {
		// Drop roughly the overflow share at once instead of one line per render.
		drop := max(1, len(view.Entries)*(len(result)-TelegramMaxMessageLength)/len(result)+1)
		drop = min(drop, len(view.Entries))
		view.Entries = view.Entries[:len(view.Entries)-drop]
		view.Hidden += drop
		if result, err = render(gamesTmpl, view); err != nil {
			return "", err
		}
	}
	return result, nil
}

func RenderSuggestions(e *game.NoExactMatchError) (string, error) {
	return render(suggestionsTmpl, e)
}
