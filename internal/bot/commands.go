package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

type ArgKind int

const (
	ArgWord  ArgKind = iota // one token
	ArgInt                  // one integer token
	ArgFloat                // one decimal token
	ArgRest                 // everything not claimed by the other arguments
)

// Arg declares one command argument. Arguments after a rest argument are
// matched from the end of the input; optional ones there are taken all
// together or not at all.
type Arg struct {
	Name     string
	Kind     ArgKind
	Optional bool
}

type HandlerFunc func(ctx context.Context, c tele.Context, args Args) error

type Command struct {
	Name        string
	Description string
	Args        []Arg
	Handler     HandlerFunc
}

// Usage renders the command line, e.g. "/addgame <name> [min max weight]".
func (cmd Command) Usage() string {
	var b strings.Builder
	b.WriteString("/" + cmd.Name)
	for i := 0; i < len(cmd.Args); i++ {
		a := cmd.Args[i]
		if !a.Optional {
			b.WriteString(" <" + a.Name + ">")
			continue
		}
		names := []string{a.Name}
		for i+1 < len(cmd.Args) && cmd.Args[i+1].Optional {
			i++
			names = append(names, cmd.Args[i].Name)
		}
		b.WriteString(" [" + strings.Join(names, " ") + "]")
	}
	return b.String()
}

// UsageError reports input that does not fit the command's arguments.
type UsageError struct {
	Command string
	Usage   string
	Reason  string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("/%s: %s", e.Command, e.Reason)
}

// Args holds parsed argument values by name.
type Args map[string]any

func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

func (a Args) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

// ParseArgs matches the payload against the command's argument schema.
func ParseArgs(cmd Command, payload string) (Args, error) {
	tokens := strings.Fields(payload)
	args := Args{}
	usageErr := func(format string, a ...any) error {
		return &UsageError{Command: cmd.Name, Usage: cmd.Usage(), Reason: fmt.Sprintf(format, a...)}
	}

	restAt := -1
	for i, a := range cmd.Args {
		if a.Kind == ArgRest {
			restAt = i
			break
		}
	}
	head := cmd.Args
	var tail []Arg
	if restAt >= 0 {
		head = cmd.Args[:restAt]
		tail = cmd.Args[restAt+1:]
	}

	for _, a := range head {
		if len(tokens) == 0 {
			if a.Optional {
				continue
			}
			return nil, usageErr("missing %s", a.Name)
		}
		v, err := parseToken(a, tokens[0])
		if err != nil {
			if a.Optional {
				continue
			}
			return nil, usageErr("%s: %v", a.Name, err)
		}
		args[a.Name] = v
		tokens = tokens[1:]
	}

	if restAt < 0 {
		if len(tokens) > 0 && len(cmd.Args) > 0 {
			return nil, usageErr("unexpected %q", strings.Join(tokens, " "))
		}
		return args, nil
	}

	var err error
	if tokens, err = parseTail(tail, tokens, args); err != nil {
		return nil, usageErr("%v", err)
	}

	rest := cmd.Args[restAt]
	if len(tokens) == 0 {
		if !rest.Optional {
			return nil, usageErr("missing %s", rest.Name)
		}
		return args, nil
	}
	args[rest.Name] = strings.Join(tokens, " ")
	return args, nil
}

// parseTail claims the trailing arguments from the end of tokens and returns
// what is left for the rest argument.
func parseTail(tail []Arg, tokens []string, args Args) ([]string, error) {
	required := 0
	for _, a := range tail {
		if !a.Optional {
			required++
		}
	}

	// Leave at least one token for the rest argument.
	if len(tokens) > len(tail) {
		start := len(tokens) - len(tail)
		vals := make(map[string]any, len(tail))
		ok := true
		for i, a := range tail {
			v, err := parseToken(a, tokens[start+i])
			if err != nil {
				ok = false
				break
			}
			vals[a.Name] = v
		}
		if ok {
			for k, v := range vals {
				args[k] = v
			}
			return tokens[:start], nil
		}
	}

	if required == 0 {
		return tokens, nil
	}
	if len(tokens) <= required {
		return nil, fmt.Errorf("missing %s", tail[len(tail)-1].Name)
	}
	start := len(tokens) - required
	i := start
	for _, a := range tail {
		if a.Optional {
			continue
		}
		v, err := parseToken(a, tokens[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %v", a.Name, err)
		}
		args[a.Name] = v
		i++
	}
	return tokens[:start], nil
}

func parseToken(a Arg, token string) (any, error) {
	switch a.Kind {
	case ArgInt:
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("%q is not a whole number", token)
		}
		return n, nil
	case ArgFloat:
		f, err := strconv.ParseFloat(strings.Replace(token, ",", ".", 1), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", token)
		}
		return f, nil
	default:
		return token, nil
	}
}

var gameRangeArgs = []Arg{
	{Name: "min", Kind: ArgInt, Optional: true},
	{Name: "max", Kind: ArgInt, Optional: true},
	{Name: "weight", Kind: ArgFloat, Optional: true},
}

// commandTable lists every command the bot understands, in help order.
func (b *Bot) commandTable() []Command {
	return []Command{
		{Name: "start", Description: "Introduce the bot", Handler: b.handleStart},
		{Name: "help", Description: "Show this help", Handler: b.handleHelp},
		{
			Name:        "setbgg",
			Description: "Link your BoardGameGeek account and import your collection, or re-import it",
			Args:        []Arg{{Name: "username", Kind: ArgRest, Optional: true}},
			Handler:     b.handleSetBGG,
		},
		{
			Name:        "addgame",
			Description: "Add a game by its BGG name, or a game BGG does not know with its player range and weight",
			Args:        append([]Arg{{Name: "name", Kind: ArgRest}}, gameRangeArgs...),
			Handler:     b.handleAddGame,
		},
		{Name: "games", Description: "List your collection", Handler: b.handleGames},
		{
			Name:        "markplayed",
			Description: "Clear the 🆕 mark of a game",
			Args:        []Arg{{Name: "game", Kind: ArgRest}},
			Handler:     b.handleMarkPlayed,
		},
		{
			Name:        "exclude",
			Description: "Keep a game out of polls, or bring it back",
			Args:        []Arg{{Name: "game", Kind: ArgRest}},
			Handler:     b.handleExclude,
		},
		{
			Name:        "priority",
			Description: "Star a game so it counts extra in votes, or unstar it",
			Args:        []Arg{{Name: "game", Kind: ArgRest}},
			Handler:     b.handlePriority,
		},
		{Name: "gamenight", Description: "Start a game night in this chat", Handler: b.handleGameNight},
		{Name: "join", Description: "Join tonight's game night", Handler: b.handleJoin},
		{Name: "leave", Description: "Leave tonight's game night", Handler: b.handleLeave},
		{
			Name:        "addguest",
			Description: "Add a guest without a Telegram account",
			Args:        []Arg{{Name: "name", Kind: ArgRest}},
			Handler:     b.handleAddGuest,
		},
		{
			Name:        "guestgame",
			Description: "Add a game a guest brings",
			Args:        append([]Arg{{Name: "guest game", Kind: ArgRest}}, gameRangeArgs...),
			Handler:     b.handleGuestGame,
		},
		{Name: "poll", Description: "Send polls for the games that fit the group", Handler: b.handlePoll},
		{Name: "cancel", Description: "Cancel the game night", Handler: b.handleCancel},
	}
}
