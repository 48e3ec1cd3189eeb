package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/target/mmk-ldap-auth/internal/bootstrap"
	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	"github.com/target/mmk-ldap-auth/internal/service"
)

type bindOptions struct {
	User      string
	Manager   bool
	Authorize bool
}

type decodeOptions struct {
	Token string
}

// bindReport is what bind prints: the identity plus the authorizer's verdict when asked.
type bindReport struct {
	BindName   string               `json:"bind_name"`
	Identity   *domainauth.Identity `json:"identity"`
	Authorized *bool                `json:"authorized,omitempty"`
	Reason     string               `json:"reason,omitempty"`
}

func runCheckConfig(cmdCtx *commandContext, _ []string) error {
	cfg := &cmdCtx.Config
	if _, err := bootstrap.BuildDirectory(cfg, cmdCtx.Logger); err != nil {
		return err
	}
	authorize, err := bootstrap.BuildAuthorizer(cfg)
	if err != nil {
		return err
	}
	codec, err := bootstrap.BuildTokenCodec(cfg.Cookie, cfg.LDAP.Schema)
	if err != nil {
		return err
	}

	w := cmdCtx.Out
	lines := []struct {
		label string
		value any
	}{
		{"auth mode", cfg.Auth.Mode},
		{"ldap server", valueOrNone(cfg.LDAP.ServerPath)},
		{"ldap domain", valueOrNone(cfg.LDAP.Domain)},
		{"session backend", cfg.Session.Backend},
		{"authorization rules", authorize != nil},
		{"identity cookie", codec != nil},
	}
	for _, l := range lines {
		if err = writef(w, "%-20s %v\n", l.label+":", l.value); err != nil {
			return err
		}
	}
	if codec != nil {
		if err = writef(w, "%-20s %s\n", "cookie lifetime:", codec.Expiry()); err != nil {
			return err
		}
	}
	return writeln(w, "configuration OK")
}

func runBind(cmdCtx *commandContext, args []string) error {
	opts, err := parseBindFlags(args)
	if err != nil {
		return err
	}
	password, err := readSecret(cmdCtx.In)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	cfg := &cmdCtx.Config
	dir, err := bootstrap.BuildDirectory(cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}

	bindName := service.LoginNameTransform(cfg.LDAP.Domain)(opts.User)
	conn, err := dir.Bind(cmdCtx.Ctx, bindName, password)
	if err != nil {
		return fmt.Errorf("bind %q: %w", bindName, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close directory connection", "error", cerr)
		}
	}()

	id, err := service.DefaultLookup(cfg.LDAP.Schema.AttributeSchema())(cmdCtx.Ctx, conn, opts.User)
	if err != nil {
		return fmt.Errorf("lookup %q: %w", opts.User, err)
	}
	if opts.Manager {
		if err = id.UpdateManager(cmdCtx.Ctx, conn); err != nil {
			return fmt.Errorf("resolve manager: %w", err)
		}
	}

	report := bindReport{BindName: bindName, Identity: id}
	if opts.Authorize {
		authorize, buildErr := bootstrap.BuildAuthorizer(cfg)
		if buildErr != nil {
			return buildErr
		}
		ok := true
		if authorize != nil {
			verdict := authorize(cmdCtx.Ctx, conn, id)
			ok = verdict.IsAuthorized()
			report.Reason = verdict.Reason()
		}
		report.Authorized = &ok
	}
	return printJSON(cmdCtx.Out, report)
}

func runDecodeCookie(cmdCtx *commandContext, args []string) error {
	opts, err := parseDecodeFlags(args)
	if err != nil {
		return err
	}
	token := opts.Token
	if token == "" {
		if token, err = readSecret(cmdCtx.In); err != nil {
			return fmt.Errorf("read token: %w", err)
		}
	}

	codec, err := bootstrap.BuildTokenCodec(cmdCtx.Config.Cookie, cmdCtx.Config.LDAP.Schema)
	if err != nil {
		return err
	}
	if codec == nil {
		return errors.New("identity cookie is disabled (COOKIE_ENABLED=false)")
	}
	id, err := codec.Decode(token)
	if err != nil {
		return err
	}
	return printJSON(cmdCtx.Out, id)
}

func parseBindFlags(args []string) (bindOptions, error) {
	fs := flag.NewFlagSet("bind", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts bindOptions
	fs.StringVar(&opts.User, "user", "", "Login name, DOMAIN\\name, or email (required)")
	fs.BoolVar(&opts.Manager, "manager", false, "Resolve the direct manager")
	fs.BoolVar(&opts.Authorize, "authorize", false, "Evaluate the configured AUTHZ_ rules")

	if err := fs.Parse(args); err != nil {
		return bindOptions{}, err
	}
	opts.User = strings.TrimSpace(opts.User)
	if opts.User == "" {
		return bindOptions{}, errors.New("--user is required")
	}
	return opts, nil
}

func parseDecodeFlags(args []string) (decodeOptions, error) {
	fs := flag.NewFlagSet("decode-cookie", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts decodeOptions
	fs.StringVar(&opts.Token, "token", "", "Cookie value; read from stdin when omitted")

	if err := fs.Parse(args); err != nil {
		return decodeOptions{}, err
	}
	opts.Token = strings.TrimSpace(opts.Token)
	return opts, nil
}

// readSecret reads the first line of r, without its line terminator.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no input on stdin")
	}
	return line, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
