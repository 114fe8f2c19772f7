package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/authclient"
	"github.com/jrsteele09/go-auth-client/internal/config"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/logging"
	"github.com/jrsteele09/go-auth-client/routes"
	"github.com/rs/zerolog/log"
)

var errPanicRecovered = errors.New("panic recovered")

const usage = `usage: authclient [--retry N] [--quiet] <command> [args]

commands:
  login  --email E --password P [--next LOGIN_URL]
  signup --email E --name N --password P --confirm P
  logout
  whoami
  open <route>
  get <path>
  post <path> [json]
`

func main() {
	retries := flag.Int("retry", 0, "re-run the command this many times after an unexpected failure")
	quiet := flag.Bool("quiet", false, "do not print the banner")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	for attempt := 0; ; attempt++ {
		err := run(flag.Args(), !*quiet && attempt == 0)
		if err == nil {
			return
		}
		if errors.Is(err, errPanicRecovered) && attempt < *retries {
			time.Sleep(1 * time.Second)
			continue
		}
		if errors.Is(err, errPanicRecovered) {
			fmt.Fprintln(os.Stderr, "Something went wrong. Run the command again, or use --retry to retry automatically.")
		}
		os.Exit(1)
	}
}

// run is the top level error boundary: panics are logged and reported as errPanicRecovered.
func run(args []string, banner bool) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("severity", string(apperrors.SeverityCritical)).
				Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errPanicRecovered
		}
	}()

	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logging.Setup(c.GetLogLevel(), c.GetEnv())
	if banner {
		displayAppname(c.GetAppName())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nav := &printNavigator{out: os.Stdout}
	app, err := authclient.New(ctx, c, authclient.WithNavigator(nav))
	if err != nil {
		report(err)
		return err
	}
	defer app.Close()

	cmd := &commands{app: app, out: os.Stdout}
	if err := cmd.dispatch(ctx, args); err != nil {
		report(err)
		return err
	}
	return nil
}

type commands struct {
	app *authclient.App
	out io.Writer
}

func (c *commands) dispatch(ctx context.Context, args []string) error {
	name, rest := args[0], args[1:]
	switch name {
	case "login":
		return c.login(ctx, rest)
	case "signup":
		return c.signup(ctx, rest)
	case "logout":
		if err := c.app.Flows.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Logged out")
		return nil
	case "whoami":
		return c.whoami()
	case "open":
		if len(rest) != 1 {
			return apperrors.Validation("open", "route", "open takes exactly one route")
		}
		return c.open(ctx, rest[0])
	case "get":
		if len(rest) != 1 {
			return apperrors.Validation("get", "path", "get takes exactly one path")
		}
		return c.call(ctx, "GET", rest[0], nil)
	case "post":
		if len(rest) < 1 || len(rest) > 2 {
			return apperrors.Validation("post", "path", "post takes a path and an optional JSON body")
		}
		var body any
		if len(rest) == 2 {
			if err := json.Unmarshal([]byte(rest[1]), &body); err != nil {
				return apperrors.Validation("post", "body", "body is not valid JSON")
			}
		}
		return c.call(ctx, "POST", rest[0], body)
	}
	return apperrors.Validation("dispatch", "command", fmt.Sprintf("unknown command %q", name))
}

func (c *commands) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	next := fs.String("next", "", "login URL printed by a redirect; continues to its returnTo page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := c.app.Flows.Login(ctx, auth.Credentials{Email: *email, Password: *password})
	if err != nil {
		if errors.Is(err, apperrors.ErrRateLimited) {
			fmt.Fprintf(c.out, "Too many attempts. Try again in %s.\n", c.app.Limiter.RemainingTime())
		}
		return err
	}
	fmt.Fprintf(c.out, "Welcome %s\n", s.Name)
	if *next == "" {
		return nil
	}
	d, target, err := c.app.Resume(ctx, *next)
	if err != nil {
		return err
	}
	if d.Outcome == routes.Allow {
		fmt.Fprintf(c.out, "Opened %s\n", target)
	}
	return nil
}

func (c *commands) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "password")
	confirm := fs.String("confirm", "", "password again")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := c.app.Flows.Signup(ctx, auth.SignupCredentials{
		Email:           *email,
		Name:            *name,
		Password:        *password,
		ConfirmPassword: *confirm,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Account created. Welcome %s\n", s.Name)
	return nil
}

func (c *commands) whoami() error {
	s := c.app.Store.Session()
	if s == nil {
		fmt.Fprintln(c.out, "Not logged in")
		return nil
	}
	fmt.Fprintf(c.out, "%s <%s>\n", s.Name, s.Email)
	if s.Role != "" {
		fmt.Fprintf(c.out, "role:       %s\n", s.Role)
	}
	if len(s.Workspaces) > 0 {
		fmt.Fprintf(c.out, "workspaces: %s\n", strings.Join(s.Workspaces, ", "))
	}
	if exp, ok := s.AccessTokenExpiry(); ok {
		fmt.Fprintf(c.out, "token:      expires %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}

func (c *commands) open(ctx context.Context, path string) error {
	d, target, err := c.app.Open(ctx, path)
	if err != nil {
		return err
	}
	if d.Outcome == routes.Allow {
		fmt.Fprintf(c.out, "Opened %s\n", target)
	}
	return nil
}

func (c *commands) call(ctx context.Context, method, path string, body any) error {
	var out json.RawMessage
	if err := c.app.HTTP.JSON(ctx, method, path, body, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		return nil
	}
	var pretty any
	if err := json.Unmarshal(out, &pretty); err != nil {
		_, err = c.out.Write(append(out, '\n'))
		return err
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}

// report prints err the way the UI would show it: per field for validation failures, a
// single message otherwise.
func report(err error) {
	apperrors.Log(err)

	var fields auth.FieldErrors
	if errors.As(err, &fields) {
		for _, fe := range fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", fe.Field, fe.Message)
		}
		return
	}
	fmt.Fprintln(os.Stderr, apperrors.UserMessage(err))
}

// printNavigator stands in for the browser location: it reports where the client was sent.
type printNavigator struct {
	out io.Writer
}

func (n *printNavigator) Navigate(_ context.Context, path string) {
	fmt.Fprintf(n.out, "-> %s\n", path)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
