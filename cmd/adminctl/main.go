package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ashram.org/internal/account"
	"ashram.org/internal/bootstrap"
	"ashram.org/internal/ids"
	"ashram.org/internal/profile"
)

// adminctl is the operator back door: it talks to the database directly
// and bypasses the HTTP guard, so it refuses to start without the
// service key that marks a trusted shell.
func main() {
	log.SetFlags(0)

	if os.Getenv("ASHRAM_SERVICE_KEY") == "" {
		log.Fatal("ASHRAM_SERVICE_KEY is required")
	}
	dsn := os.Getenv("ASHRAM_PG_DSN")
	if dsn == "" {
		log.Fatal("ASHRAM_PG_DSN is required")
	}
	if len(os.Args) < 2 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	app := &app{
		db:       db,
		accounts: account.NewPGStore(db),
		profiles: profile.NewPGStore(db),
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "create-admin":
		err = app.createAdmin(ctx, args)
	case "promote":
		err = app.promote(ctx, args)
	case "list-admins":
		err = app.listAdmins(ctx)
	case "set-main-admin":
		err = app.setMainAdmin(ctx, args)
	case "set-password":
		err = app.setPassword(ctx, args)
	case "fix-profiles":
		err = app.fixProfiles(ctx, args)
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

type app struct {
	db       *sql.DB
	accounts *account.PGStore
	profiles *profile.PGStore
}

func (a *app) createAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	name := fs.String("name", "", "display name")
	role := fs.String("role", profile.RoleAdmin, "admin or super_admin")
	_ = fs.Parse(args)

	if *email == "" || *password == "" {
		return fmt.Errorf("email and password are required")
	}
	if *role != profile.RoleAdmin && *role != profile.RoleSuperAdmin {
		return fmt.Errorf("role must be admin or super_admin")
	}

	hash, err := account.HashPassword(*password)
	if err != nil {
		return err
	}
	acct := &account.Account{
		ID:           ids.New(),
		Email:        *email,
		Name:         *name,
		PasswordHash: hash,
		Status:       account.StatusActive,
	}
	if err := a.accounts.Accounts(ctx).Create(ctx, acct); err != nil {
		return err
	}

	p := &profile.Profile{
		AccountID: acct.ID,
		Name:      *name,
		Email:     *email,
		Role:      *role,
	}
	profile.DefaultCapabilities(*role).Apply(p)
	if err := a.profiles.Create(ctx, p); err != nil {
		return err
	}
	if err := a.profiles.InsertLegacyAdmin(ctx, acct.ID, acct.Email, *role); err != nil {
		log.Printf("legacy mirror: %v", err)
	}
	fmt.Printf("created %s %s (%s)\n", *role, *email, acct.ID)
	return nil
}

func (a *app) promote(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("promote", flag.ExitOnError)
	temp := fs.String("temp", "", "temp account id")
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	name := fs.String("name", "", "display name")
	_ = fs.Parse(args)

	if *temp == "" || *email == "" || *password == "" {
		return fmt.Errorf("temp, email and password are required")
	}

	hash, err := account.HashPassword(*password)
	if err != nil {
		return err
	}
	admin := bootstrap.PromotedAdmin{
		AccountID:    ids.New(),
		Email:        *email,
		Name:         *name,
		PasswordHash: hash,
		Capabilities: profile.DefaultCapabilities(profile.RoleAdmin),
	}
	if err := bootstrap.NewPGStore(a.db).PromoteTempUser(ctx, *temp, admin); err != nil {
		return err
	}
	fmt.Printf("promoted %s into admin %s (%s)\n", *temp, *email, admin.AccountID)
	return nil
}

func (a *app) listAdmins(ctx context.Context) error {
	profiles, err := a.profiles.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if !profile.HasAdminAccess(p.Role) {
			continue
		}
		status := "active"
		if p.IsDisabled {
			status = "disabled"
		}
		main := ""
		if p.IsMainAdmin {
			main = " main"
		}
		fmt.Printf("%s\t%s\t%s\t%s%s\n", p.AccountID, p.Email, p.Role, status, main)
	}
	return nil
}

func (a *app) setMainAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-main-admin", flag.ExitOnError)
	accountID := fs.String("account", "", "account id")
	_ = fs.Parse(args)

	if *accountID == "" {
		return fmt.Errorf("account is required")
	}
	if err := a.profiles.SetMainAdmin(ctx, *accountID); err != nil {
		return err
	}
	fmt.Printf("marked %s as main admin\n", *accountID)
	return nil
}

func (a *app) setPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-password", flag.ExitOnError)
	accountID := fs.String("account", "", "account id")
	password := fs.String("password", "", "new password")
	_ = fs.Parse(args)

	if *accountID == "" || *password == "" {
		return fmt.Errorf("account and password are required")
	}
	hash, err := account.HashPassword(*password)
	if err != nil {
		return err
	}
	if err := a.accounts.Accounts(ctx).UpdatePassword(ctx, *accountID, hash); err != nil {
		return err
	}
	// Existing refresh tokens die with the old password.
	if err := a.accounts.RefreshTokens(ctx).MarkRevokedByAccount(ctx, *accountID); err != nil {
		log.Printf("revoke refresh tokens: %v", err)
	}
	fmt.Printf("password updated for %s\n", *accountID)
	return nil
}

func (a *app) fixProfiles(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fix-profiles", flag.ExitOnError)
	accountID := fs.String("account", "", "account id")
	_ = fs.Parse(args)

	if *accountID == "" {
		return fmt.Errorf("account is required")
	}
	gw, err := profile.NewGateway(a.profiles)
	if err != nil {
		return err
	}
	removed, err := gw.FixDuplicateProfiles(ctx, *accountID)
	if err != nil {
		return err
	}
	fmt.Printf("collapsed %d duplicate rows for %s\n", removed, *accountID)
	return nil
}

func usage() {
	log.Fatal(`usage: adminctl <command> [flags]

commands:
  create-admin    -email -password [-name] [-role admin|super_admin]
  promote         -temp <account id> -email -password [-name]
  list-admins
  set-main-admin  -account <account id>
  set-password    -account <account id> -password
  fix-profiles    -account <account id>`)
}
