package pantrysvc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/infra/logging"
	"github.com/mkrupp/pantry/internal/svc/authsvc/authclient"
)

var (
	// ErrUnknownCommand is returned for shell input that names no command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command is called with the wrong arguments.
	ErrUsage = errors.New("usage")
	// ErrAmbiguousItemID is returned when an id prefix matches more than one item.
	ErrAmbiguousItemID = errors.New("ambiguous item ID")
)

// Session is a SessionNotifier that can also sign a user in.
type Session interface {
	authclient.SessionNotifier

	SignIn(ctx context.Context, username, password string) (domain.Identity, error)
}

// ShellTransportConfig contains configuration parameters for the interactive shell.
type ShellTransportConfig struct {
	Prompt string `env:"PROMPT" default:"pantry> "`

	// WaitTimeout bounds how long the shell waits for a sign-in to load.
	WaitTimeout time.Duration `env:"WAIT_TIMEOUT" default:"10s"`
}

// ShellTransport is a line-oriented interface to the inventory of the signed-in user.
type ShellTransport struct {
	invSvc   InventoryService
	accounts authclient.AccountClient
	session  Session
	tracker  *SessionTracker
	log      logging.Logger
	cfg      ShellTransportConfig
}

type shellCommand struct {
	usage string
	help  string
	run   func(ctx context.Context, out io.Writer, args []string) error
}

// NewShellTransport creates a new ShellTransport instance with the given configuration.
func NewShellTransport(
	invSvc InventoryService,
	accounts authclient.AccountClient,
	session Session,
	cfg ShellTransportConfig,
) *ShellTransport {
	return &ShellTransport{
		invSvc:   invSvc,
		accounts: accounts,
		session:  session,
		tracker:  NewSessionTracker(invSvc),
		log:      logging.GetLogger("svc.pantrysvc.shell_transport"),
		cfg:      cfg,
	}
}

func (st *ShellTransport) commands() map[string]shellCommand {
	return map[string]shellCommand{
		"register": {"register USER PASS [NAME]", "create an account", st.cmdRegister},
		"login":    {"login USER PASS", "sign in", st.cmdLogin},
		"logout":   {"logout", "sign out", st.cmdLogout},
		"whoami":   {"whoami", "show the signed-in user", st.cmdWhoami},
		"list":     {"list", "show all items", st.cmdList},
		"search":   {"search TEXT", "show items whose name contains TEXT", st.cmdSearch},
		"add":      {"add NAME [QTY]", "add a new item", st.cmdAdd},
		"+":        {"+ NAME", "add one item by name", st.cmdQuickAdd},
		"inc":      {"inc ID", "add one to an item", st.itemCommand(st.invSvc.IncrementItem)},
		"dec":      {"dec ID", "remove one from an item", st.itemCommand(st.invSvc.DecrementItem)},
		"rm":       {"rm ID", "remove an item entirely", st.itemCommand(st.invSvc.RemoveAll)},
		"name":     {"name DISPLAY NAME", "set your display name", st.cmdName},
		"help":     {"help", "show this help", st.cmdHelp},
		"quit":     {"quit", "leave the shell", nil},
	}
}

// Run reads commands from in until quit, end of input, or ctx is done.
// Session events are followed for the whole run.
func (st *ShellTransport) Run(ctx context.Context, in io.Reader, out io.Writer) (err error) {
	defer func() {
		if err != nil {
			st.log.ErrorContext(ctx, "shell failed", "error", err)
		} else {
			st.log.DebugContext(ctx, "shell closed")
		}
	}()

	trackCtx, cancel := context.WithCancel(ctx)
	tracked := make(chan struct{})

	go func() {
		defer close(tracked)

		_ = st.tracker.Run(trackCtx, st.session.Subscribe(trackCtx))
	}()

	defer func() {
		cancel()
		<-tracked
	}()

	commands := st.commands()
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, st.cfg.Prompt)

		if !scanner.Scan() {
			fmt.Fprintln(out)

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			return nil
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		name, args := fields[0], fields[1:]
		if name == "quit" || name == "exit" {
			return nil
		}

		cmd, ok := commands[name]
		if !ok {
			fmt.Fprintf(out, "error: %v %q, try help\n", ErrUnknownCommand, name)

			continue
		}

		if err := cmd.run(ctx, out, args); err != nil {
			if errors.Is(err, ErrUsage) {
				fmt.Fprintf(out, "usage: %s\n", cmd.usage)
			} else {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (st *ShellTransport) cmdRegister(ctx context.Context, out io.Writer, args []string) error {
	if len(args) < 2 {
		return ErrUsage
	}

	displayName := strings.Join(args[2:], " ")

	if err := st.accounts.Register(ctx, args[0], args[1], displayName); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	fmt.Fprintf(out, "registered %s, you can login now\n", args[0])

	return nil
}

func (st *ShellTransport) cmdLogin(ctx context.Context, out io.Writer, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}

	identity, err := st.session.SignIn(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	state, err := st.await(ctx, func(s SessionState) bool {
		return s.Identity != nil && s.Identity.ID == identity.ID && !s.Syncing
	})
	if err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}

	fmt.Fprintf(out, "signed in as %s\n", state.DisplayName())

	return st.printState(out, state, false)
}

func (st *ShellTransport) cmdLogout(ctx context.Context, out io.Writer, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}

	if err := st.session.SignOut(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	if _, err := st.await(ctx, func(s SessionState) bool { return s.Identity == nil }); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	fmt.Fprintln(out, "signed out")

	return nil
}

func (st *ShellTransport) cmdWhoami(_ context.Context, out io.Writer, _ []string) error {
	state := st.tracker.State()
	if state.Identity == nil {
		return domain.ErrNotSignedIn
	}

	fmt.Fprintf(out, "%s (%s)\n", state.DisplayName(), state.Identity.ID)

	return nil
}

func (st *ShellTransport) cmdList(_ context.Context, out io.Writer, _ []string) error {
	state := st.tracker.State()
	if state.Identity == nil {
		return domain.ErrNotSignedIn
	}

	return st.printState(out, st.tracker.Search(""), false)
}

func (st *ShellTransport) cmdSearch(_ context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	if st.tracker.State().Identity == nil {
		return domain.ErrNotSignedIn
	}

	return st.printState(out, st.tracker.Search(strings.Join(args, " ")), true)
}

// cmdAdd treats a trailing integer as the quantity: "add brown rice 2".
func (st *ShellTransport) cmdAdd(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	quantity := 0

	if len(args) > 1 {
		if q, err := strconv.Atoi(args[len(args)-1]); err == nil {
			quantity = q
			args = args[:len(args)-1]
		}
	}

	if quantity < 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}

	return st.addItem(ctx, out, strings.Join(args, " "), quantity)
}

func (st *ShellTransport) cmdQuickAdd(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	return st.addItem(ctx, out, strings.Join(args, " "), 1)
}

func (st *ShellTransport) addItem(ctx context.Context, out io.Writer, name string, quantity int) error {
	state, err := st.tracker.Apply(ctx, func(ctx context.Context, identity domain.Identity, view domain.ViewState) (domain.ViewState, error) {
		return st.invSvc.AddItem(ctx, identity, view, name, quantity)
	})
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	return st.printState(out, state, false)
}

func (st *ShellTransport) itemCommand(op itemOperation) func(context.Context, io.Writer, []string) error {
	return func(ctx context.Context, out io.Writer, args []string) error {
		if len(args) != 1 {
			return ErrUsage
		}

		state, err := st.tracker.Apply(ctx, func(ctx context.Context, identity domain.Identity, view domain.ViewState) (domain.ViewState, error) {
			id, err := resolveItemID(view, args[0])
			if err != nil {
				return view, err
			}

			return op(ctx, identity, id)
		})
		if err != nil {
			return err
		}

		return st.printState(out, state, false)
	}
}

func (st *ShellTransport) cmdName(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	state, err := st.tracker.UpdateProfile(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}

	fmt.Fprintf(out, "display name set to %s\n", state.DisplayName())

	return nil
}

func (st *ShellTransport) cmdHelp(_ context.Context, out io.Writer, _ []string) error {
	commands := st.commands()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	for _, name := range []string{
		"register", "login", "logout", "whoami", "list", "search",
		"add", "+", "inc", "dec", "rm", "name", "help", "quit",
	} {
		fmt.Fprintf(tw, "  %s\t%s\n", commands[name].usage, commands[name].help)
	}

	return tw.Flush()
}

func (st *ShellTransport) await(ctx context.Context, cond func(SessionState) bool) (SessionState, error) {
	ctx, cancel := context.WithTimeout(ctx, st.cfg.WaitTimeout)
	defer cancel()

	state, err := st.tracker.WaitFor(ctx, cond)
	if err != nil {
		return state, err
	}

	return state, state.Err
}

// printState writes the item table; filtered selects FilteredList over FullList.
func (st *ShellTransport) printState(out io.Writer, state SessionState, filtered bool) error {
	items := state.View.FullList
	if filtered {
		items = state.View.FilteredList
	}

	if len(items) == 0 {
		if filtered {
			fmt.Fprintf(out, "no items match %q\n", state.View.Query)
		} else {
			fmt.Fprintln(out, "no items")
		}

		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQTY\tLEVEL\tNAME\t")

	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", item.ID, item.Quantity, item.Level(), Capitalize(item.Name))
	}

	return tw.Flush()
}

// Capitalize upper-cases the first letter of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}

	return string(unicode.ToUpper(r)) + s[size:]
}

// resolveItemID accepts a full item id or a prefix unique within view.
func resolveItemID(view domain.ViewState, arg string) (domain.ItemID, error) {
	id, err := domain.ParseItemID(arg)
	if err != nil {
		return "", err
	}

	var matches []domain.ItemID

	for _, item := range view.FullList {
		if item.ID == id {
			return id, nil
		}

		if strings.HasPrefix(item.ID.String(), id.String()) {
			matches = append(matches, item.ID)
		}
	}

	switch len(matches) {
	case 0:
		return id, nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %d items", ErrAmbiguousItemID, arg, len(matches))
	}
}
