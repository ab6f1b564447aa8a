package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"algoshield.org/console/internal/apiclient"
	"algoshield.org/console/internal/auth"
	"algoshield.org/console/internal/branding"
	"algoshield.org/console/internal/locale"
	"algoshield.org/console/internal/permissions"
	"algoshield.org/console/internal/rules"
	"algoshield.org/console/internal/synthetic"
	"algoshield.org/console/internal/ui"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageErr("%v", err)
	}
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("CONSOLE_PASSWORD"), "password (default $CONSOLE_PASSWORD)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.session.Login(ctx, *email, *password); err != nil {
		return err
	}
	u := a.session.User()
	if u == nil {
		return errors.New("signed in but the profile could not be loaded")
	}
	a.say(locale.MsgSignedInAs, u.Email)
	a.audit(ctx, "auth.login", map[string]any{"email": u.Email})
	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("CONSOLE_PASSWORD"), "password (default $CONSOLE_PASSWORD)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.session.Register(ctx, *email, *password, *name); err != nil {
		return err
	}
	u := a.session.User()
	if u == nil {
		return errors.New("registered but the profile could not be loaded")
	}
	a.say(locale.MsgSignedInAs, u.Email)
	a.audit(ctx, "auth.register", map[string]any{"email": u.Email})
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	actx := a.auditCtx(ctx)
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	a.say(locale.MsgSignedOut)
	a.audit(actx, "auth.logout", nil)
	return nil
}

func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	u := a.session.User()
	if u == nil {
		return auth.ErrNotAuthenticated
	}
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", u.ID)
	fmt.Fprintf(tw, "email\t%s\n", u.Email)
	fmt.Fprintf(tw, "name\t%s\n", u.Name)
	if u.AuthType != "" {
		fmt.Fprintf(tw, "auth\t%s\n", u.AuthType)
	}
	fmt.Fprintf(tw, "roles\t%s\n", strings.Join(names, ", "))
	fmt.Fprintf(tw, "admin\t%t\n", auth.IsAdmin(u))
	if token, err := a.tokens.Token(ctx); err == nil {
		if exp, ok := auth.TokenExpiry(token); ok {
			fmt.Fprintf(tw, "expires\t%s\n", exp.UTC().Format(time.RFC3339))
		}
	}
	return tw.Flush()
}

func cmdHealth(ctx context.Context, a *app, _ []string) error {
	var body map[string]any
	if _, err := a.client.Get(ctx, apiclient.PathHealth, &body); err != nil {
		return err
	}
	a.say(locale.MsgHealthOK)
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a.printf("  %s: %v\n", k, body[k])
	}
	return nil
}

func cmdRules(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return usageErr("missing subcommand")
	}
	svc := rules.NewService(a.client)
	screen := rules.NewScreen(svc)
	editor := rules.NewEditor(svc)

	switch sub, rest := args[0], args[1:]; sub {
	case "list":
		if err := screen.Load(ctx); err != nil {
			return err
		}
		list := screen.Rules()
		if len(list) == 0 {
			a.say(locale.MsgRulesEmpty)
			return nil
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTYPE\tACTION\tPRIORITY\tENABLED\tSCORE")
		for _, r := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\t%g\n", r.ID, r.Name, r.Type, r.Action, r.Priority, r.Enabled, r.Score)
		}
		return tw.Flush()

	case "get":
		id, err := oneArg(rest, "rule id")
		if err != nil {
			return err
		}
		r, err := svc.Get(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(a.out, r)

	case "create":
		fs := newFlags("rules create")
		file := fs.String("f", "-", "rule JSON file, - for stdin")
		if err := parse(fs, rest); err != nil {
			return err
		}
		raw, err := readInput(*file)
		if err != nil {
			return err
		}
		r, err := rules.Decode(bytes.NewReader(raw))
		if err != nil {
			return apiclient.Validation(err.Error())
		}
		editor.OpenCreate()
		editor.Edit(func(d *rules.Rule) {
			*d = r
			d.ID = ""
		})
		saved, err := editor.Submit(ctx)
		if err != nil {
			return err
		}
		a.say(locale.MsgRuleCreated, saved.Name)
		a.audit(ctx, "rule.created", map[string]any{"rule_id": saved.ID, "name": saved.Name})
		return nil

	case "update":
		if len(rest) == 0 {
			return usageErr("missing rule id")
		}
		id := rest[0]
		fs := newFlags("rules update")
		file := fs.String("f", "-", "rule JSON file with the fields to change, - for stdin")
		if err := parse(fs, rest[1:]); err != nil {
			return err
		}
		raw, err := readInput(*file)
		if err != nil {
			return err
		}
		current, err := svc.Get(ctx, id)
		if err != nil {
			return err
		}
		draft, err := mergeRule(current, raw)
		if err != nil {
			return apiclient.Validation(err.Error())
		}
		editor.OpenEdit(current)
		editor.Edit(func(d *rules.Rule) { *d = draft })
		saved, err := editor.Submit(ctx)
		if err != nil {
			return err
		}
		a.say(locale.MsgRuleUpdated, saved.Name)
		a.audit(ctx, "rule.updated", map[string]any{"rule_id": saved.ID, "name": saved.Name})
		return nil

	case "delete":
		id, err := oneArg(rest, "rule id")
		if err != nil {
			return err
		}
		if err := screen.Delete(ctx, id); err != nil {
			return err
		}
		a.say(locale.MsgRuleDeleted, id)
		a.audit(ctx, "rule.deleted", map[string]any{"rule_id": id})
		return nil

	case "toggle":
		id, err := oneArg(rest, "rule id")
		if err != nil {
			return err
		}
		current, err := svc.Get(ctx, id)
		if err != nil {
			return err
		}
		saved, err := svc.Toggle(ctx, current)
		if err != nil {
			return err
		}
		a.say(locale.MsgRuleUpdated, saved.Name)
		a.audit(ctx, "rule.toggled", map[string]any{"rule_id": saved.ID, "enabled": saved.Enabled})
		return nil
	}
	return usageErr("unknown subcommand %q", args[0])
}

// mergeRule applies a partial JSON document over current. A conditions
// object replaces the existing one instead of merging into it.
func mergeRule(current rules.Rule, raw []byte) (rules.Rule, error) {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(raw, &present); err != nil {
		return rules.Rule{}, fmt.Errorf("decode rule: %w", err)
	}
	draft := current.Clone()
	if _, ok := present["conditions"]; ok {
		draft.Conditions = nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&draft); err != nil {
		return rules.Rule{}, fmt.Errorf("decode rule: %w", err)
	}
	draft.ID = current.ID
	return draft, nil
}

func cmdPermissions(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return usageErr("missing subcommand")
	}
	screen := permissions.NewScreen(permissions.NewService(a.client), a.session)
	if err := screen.Load(ctx); err != nil {
		return err
	}

	switch sub, rest := args[0], args[1:]; sub {
	case "users":
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tACTIVE\tAUTH\tROLES")
		for _, u := range screen.Users() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n", u.ID, u.Email, u.Name, u.Active, u.AuthType, roleNames(u.Roles))
		}
		return tw.Flush()

	case "roles":
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
		for _, r := range screen.Roles() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Name, r.Description)
		}
		return tw.Flush()

	case "activate", "deactivate":
		id, err := oneArg(rest, "user id")
		if err != nil {
			return err
		}
		u, ok := screen.User(id)
		if !ok {
			return fmt.Errorf("user %q not found", id)
		}
		want := sub == "activate"
		if u.Active != want {
			if err := screen.ToggleActive(ctx, u); err != nil {
				return err
			}
			a.audit(ctx, "user."+sub+"d", map[string]any{"target_user_id": u.ID})
		}
		if want {
			a.say(locale.MsgUserActivated, u.Email)
		} else {
			a.say(locale.MsgUserDeactivated, u.Email)
		}
		return nil

	case "assign", "revoke":
		if len(rest) != 2 {
			return usageErr("expected USER ROLE")
		}
		u, ok := screen.User(rest[0])
		if !ok {
			return fmt.Errorf("user %q not found", rest[0])
		}
		if sub == "assign" {
			role, ok := findRole(screen.AvailableRoles(u), rest[1])
			if !ok {
				return fmt.Errorf("role %q is unknown or already held by %s", rest[1], u.Email)
			}
			if err := screen.Assign(ctx, u.ID, role.ID); err != nil {
				return err
			}
			a.say(locale.MsgRoleAssigned, role.Name, u.Email)
			a.audit(ctx, "role.assigned", map[string]any{"target_user_id": u.ID, "role_id": role.ID, "role": role.Name})
			return nil
		}
		role, ok := findRole(u.Roles, rest[1])
		if !ok {
			return fmt.Errorf("%s does not hold role %q", u.Email, rest[1])
		}
		if err := screen.Revoke(ctx, u.ID, role.ID); err != nil {
			return err
		}
		a.say(locale.MsgRoleRevoked, role.Name, u.Email)
		a.audit(ctx, "role.revoked", map[string]any{"target_user_id": u.ID, "role_id": role.ID, "role": role.Name})
		return nil
	}
	return usageErr("unknown subcommand %q", args[0])
}

func roleNames(rs []auth.Role) string {
	names := make([]string, 0, len(rs))
	for _, r := range rs {
		names = append(names, r.Name)
	}
	return strings.Join(names, ",")
}

// findRole matches by id first, then by name.
func findRole(rs []auth.Role, key string) (auth.Role, bool) {
	for _, r := range rs {
		if r.ID == key {
			return r, true
		}
	}
	for _, r := range rs {
		if r.Name == key {
			return r, true
		}
	}
	return auth.Role{}, false
}

func cmdBranding(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return usageErr("missing subcommand")
	}
	store := branding.NewStore(a.client, nil)

	switch args[0] {
	case "get":
		if err := store.Load(ctx); err != nil {
			return err
		}
		return printJSON(a.out, store.Config())

	case "set":
		fs := newFlags("branding set")
		name := fs.String("name", "", "application name")
		primary := fs.String("primary", "", "primary color (#RRGGBB)")
		secondary := fs.String("secondary", "", "secondary color (#RRGGBB)")
		header := fs.String("header", "", "header background color (#RRGGBB)")
		icon := fs.String("icon", "", "icon URL")
		favicon := fs.String("favicon", "", "favicon URL")
		if err := parse(fs, args[1:]); err != nil {
			return err
		}
		if err := store.Load(ctx); err != nil {
			return err
		}
		req := updateFrom(store.Config())
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if set["name"] {
			req.AppName = *name
		}
		if set["primary"] {
			req.PrimaryColor = *primary
		}
		if set["secondary"] {
			req.SecondaryColor = *secondary
		}
		if set["header"] {
			req.HeaderColor = *header
		}
		if set["icon"] {
			req.IconURL = optional(*icon)
		}
		if set["favicon"] {
			req.FaviconURL = optional(*favicon)
		}
		saved, err := store.Update(ctx, req)
		if err != nil {
			return err
		}
		a.say(locale.MsgBrandingSaved)
		a.audit(ctx, "branding.updated", map[string]any{"app_name": saved.AppName})
		return nil
	}
	return usageErr("unknown subcommand %q", args[0])
}

func updateFrom(c *branding.Config) branding.UpdateRequest {
	if c == nil {
		return branding.UpdateRequest{
			AppName:        branding.DefaultAppName,
			PrimaryColor:   branding.DefaultPrimaryColor,
			SecondaryColor: branding.DefaultSecondaryColor,
			HeaderColor:    branding.DefaultHeaderColor,
		}
	}
	return branding.UpdateRequest{
		AppName:        c.AppName,
		IconURL:        c.IconURL,
		FaviconURL:     c.FaviconURL,
		PrimaryColor:   c.PrimaryColor,
		SecondaryColor: c.SecondaryColor,
		HeaderColor:    c.HeaderColor,
	}
}

// optional maps "" to nil so a flag can clear a URL.
func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func cmdSynthetic(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 || args[0] != "run" {
		return usageErr("expected run")
	}
	fs := newFlags("synthetic run")
	n := fs.Int("n", 10, "number of events (1-1000)")
	delay := fs.Duration("delay", synthetic.DefaultDelay, "pause between events")
	seed := fs.Int64("seed", 0, "generator seed, 0 for random")
	out := fs.String("out", "", "write results as JSON to this file or directory")
	var fields []synthetic.Field
	fs.Func("field", "schema field as name:type (repeatable)", func(v string) error {
		f, err := synthetic.ParseField(v)
		if err != nil {
			return err
		}
		fields = append(fields, f)
		return nil
	})
	if err := parse(fs, args[1:]); err != nil {
		return err
	}
	if len(fields) == 0 {
		fields = synthetic.DefaultFields()
	}

	results, err := synthetic.Run(ctx, fields, *n, synthetic.Options{
		Delay: *delay,
		Seed:  *seed,
		OnProgress: func(done, total int, r synthetic.Result) {
			status := r.Action
			if r.Status == synthetic.StatusError {
				status = r.Error
			}
			a.printf("%s  score=%-3d %-7s [%s]\n", a.locale.T(locale.MsgSyntheticRunning, done, total), r.Score, status, ui.BadgeVariant(r.Action))
		},
	})
	switch {
	case errors.Is(err, context.Canceled):
		a.say(locale.MsgSyntheticStopped, len(results))
	case err != nil:
		return err
	default:
		a.say(locale.MsgSyntheticDone, len(results))
	}

	if *out == "" {
		return nil
	}
	path := *out
	if info, serr := os.Stat(path); serr == nil && info.IsDir() {
		path = filepath.Join(path, synthetic.ExportFileName(time.Now()))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := synthetic.Export(f, results); err != nil {
		f.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	a.say(locale.MsgSyntheticExport, path)
	return nil
}

func cmdLocale(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return usageErr("missing subcommand")
	}
	switch args[0] {
	case "get":
		o := a.locale.CurrentOption()
		a.printf("%s %s (%s)\n", o.Flag, o.Label, o.Value)
		return nil
	case "set":
		v, err := oneArg(args[1:], "locale")
		if err != nil {
			return err
		}
		if err := a.locale.Set(ctx, locale.Locale(v)); err != nil {
			return usageErr("%v", err)
		}
	case "toggle":
		if _, err := a.locale.Toggle(ctx); err != nil {
			return err
		}
	default:
		return usageErr("unknown subcommand %q", args[0])
	}
	a.say(locale.MsgLocaleChanged, a.locale.CurrentOption().Label)
	return nil
}

func oneArg(args []string, what string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", usageErr("expected %s", what)
	}
	return args[0], nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
