// Command consolectl drives the AlgoShield console from a terminal: session,
// rules, permissions, branding, synthetic tests and language preference.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"algoshield.org/console/internal/apiclient"
	"algoshield.org/console/internal/audit"
	"algoshield.org/console/internal/config"
	"algoshield.org/console/internal/ids"
	"algoshield.org/console/internal/locale"
	"algoshield.org/console/internal/obs"
	"algoshield.org/console/internal/routes"
	"algoshield.org/console/internal/session"
	"algoshield.org/console/internal/storage"
)

func main() {
	loadDotenv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func loadDotenv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// command binds a CLI verb to the console screen it stands for. An empty
// route means the command is available on every screen.
type command struct {
	name  string
	route string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{name: "login", route: routes.PathLogin, usage: "login -email E -password P", run: cmdLogin},
	{name: "register", route: "/register", usage: "register -name N -email E -password P", run: cmdRegister},
	{name: "logout", route: routes.PathHome, usage: "logout", run: cmdLogout},
	{name: "whoami", route: routes.PathHome, usage: "whoami", run: cmdWhoami},
	{name: "health", route: "/health", usage: "health", run: cmdHealth},
	{name: "rules", route: "/rules", usage: "rules list|get ID|create -f FILE|update ID -f FILE|delete ID|toggle ID", run: cmdRules},
	{name: "permissions", route: "/permissions", usage: "permissions users|roles|activate USER|deactivate USER|assign USER ROLE|revoke USER ROLE", run: cmdPermissions},
	{name: "branding", route: "/branding", usage: "branding get|set [-name N] [-primary C] [-secondary C] [-header C] [-icon URL] [-favicon URL]", run: cmdBranding},
	{name: "synthetic", route: "/synthetic-test", usage: "synthetic run [-n N] [-delay D] [-seed S] [-field name:type]... [-out PATH]", run: cmdSynthetic},
	{name: "locale", usage: "locale get|set pt-BR|en-US|toggle", run: cmdLocale},
}

// app is everything one invocation needs. It is built once per run.
type app struct {
	cfg     config.Config
	out     io.Writer
	tokens  *storage.TokenStore
	client  *apiclient.Client
	session *session.Session
	guard   *routes.Guard
	locale  *locale.Manager
	rid     string
}

func newApp(ctx context.Context, cfg config.Config, store storage.Store, out io.Writer) (*app, error) {
	tokens := storage.NewTokenStore(store)
	client := apiclient.New(cfg.API, tokens)
	sess := session.New(client, tokens)

	lang := cfg.Locale
	if lang == "" {
		lang = envLang()
	}
	loc, err := locale.NewManager(ctx, store, lang)
	if err != nil {
		return nil, fmt.Errorf("load locale: %w", err)
	}
	return &app{
		cfg:     cfg,
		out:     out,
		tokens:  tokens,
		client:  client,
		session: sess,
		guard:   routes.NewGuard(sess, routes.Table),
		locale:  loc,
		rid:     ids.New(),
	}, nil
}

func envLang() string {
	for _, k := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// say prints a translated message on its own line.
func (a *app) say(key string, args ...any) {
	fmt.Fprintln(a.out, a.locale.T(key, args...))
}

// auditCtx carries the signed-in user and the invocation's request id.
func (a *app) auditCtx(ctx context.Context) context.Context {
	return audit.WithRequestID(a.session.Context(ctx), a.rid)
}

func (a *app) audit(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(a.auditCtx(ctx), event, fields); err != nil {
		obs.Warn("audit failed", map[string]any{"event": event, "error": err.Error()})
	}
}

// errRefused is returned when the route guard turns a command away.
type errRefused struct{ msg string }

func (e *errRefused) Error() string { return e.msg }

// enter settles the session and asks the guard whether cmd may run. done
// is true when the guard already answered the user and the command must
// not run.
func (a *app) enter(ctx context.Context, cmd command) (done bool, err error) {
	if cmd.route == "" {
		return false, nil
	}
	route, _ := a.guard.Lookup(cmd.route)
	if err := a.session.Init(ctx); err != nil && !route.Public && !errors.Is(err, apiclient.ErrUnauthorized) {
		return true, err
	}
	d, err := a.guard.Resolve(ctx, cmd.route)
	if err != nil {
		return true, err
	}
	if d.Allow {
		return false, nil
	}
	switch {
	case d.Redirect == routes.PathLogin:
		return true, &errRefused{a.locale.T(locale.MsgLoginRequired, "consolectl login")}
	case d.Route.Path == routes.PathLogin:
		email := ""
		if u := a.session.User(); u != nil {
			email = u.Email
		}
		a.say(locale.MsgAlreadySignedIn, email)
		return true, nil
	default:
		return true, &errRefused{a.locale.T(locale.MsgAdminRequired)}
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	defer obs.SetOutput(stderr)()

	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	store, closeStore, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		fmt.Fprintf(stderr, "storage: %v\n", err)
		return 1
	}
	defer closeStore()

	a, err := newApp(ctx, cfg, store, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer a.session.Dispose()

	ctx = apiclient.WithRequestID(ctx, a.rid)
	done, err := a.enter(ctx, cmd)
	if err == nil && !done {
		err = cmd.run(ctx, a, args[1:])
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", cmd.name, err)
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: consolectl %s\n", cmd.usage)
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("invalid arguments")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage(w io.Writer) {
	lines := make([]string, 0, len(commands))
	for _, c := range commands {
		lines = append(lines, "  consolectl "+c.usage)
	}
	sort.Strings(lines)
	fmt.Fprintf(w, "usage:\n%s\n", strings.Join(lines, "\n"))
}
