package goAccounts_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/store/memory"
)

type outbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newOutbox() *outbox { return &outbox{tokens: map[string]string{}} }

func (o *outbox) put(kind, email, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tokens[kind+":"+email] = token
	return nil
}

func (o *outbox) get(kind, email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokens[kind+":"+email]
}

func (o *outbox) PasswordReset(_ context.Context, u goAccounts.User, token string) error {
	return o.put("reset", u.Email, token)
}

func (o *outbox) Invite(_ context.Context, u goAccounts.User, token string) error {
	return o.put("invite", u.Email, token)
}

func (o *outbox) EmailConfirmation(_ context.Context, u goAccounts.User, token string) error {
	return o.put("confirm", u.Email, token)
}

func scenarioEngine(t testing.TB, mut func(*goAccounts.Config)) (*goAccounts.Engine, *memory.Store, *outbox) {
	t.Helper()

	cfg := goAccounts.DefaultConfig()
	cfg.JWT.PrivateKey = goAccounts.Secret("scenario-secret-with-enough-bytes")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Parallelism = 1
	if mut != nil {
		mut(&cfg)
	}

	store := memory.New()
	box := newOutbox()
	engine, err := goAccounts.New().WithConfig(cfg).WithAdapter(store).WithNotifier(box).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return engine, store, box
}

func TestScenarioSignupConfirmLogin(t *testing.T) {
	engine, _, box := scenarioEngine(t, func(c *goAccounts.Config) {
		c.EmailConfirmation.RequiredForLogin = true
	})
	ctx := context.Background()

	if _, err := engine.Signup(ctx, goAccounts.SignupInput{Name: "Kees", Email: "kees@volst.nl", Password: "testtest2"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, err := engine.Login(ctx, "kees@volst.nl", "testtest2"); !errors.Is(err, goAccounts.ErrEmailNotConfirmed) {
		t.Fatalf("expected ErrEmailNotConfirmed, got %v", err)
	}

	user, err := engine.ConfirmEmail(ctx, "kees@volst.nl", box.get("confirm", "kees@volst.nl"))
	if err != nil {
		t.Fatalf("ConfirmEmail: %v", err)
	}
	if !user.EmailConfirmed {
		t.Fatal("expected confirmed user")
	}

	payload, err := engine.Login(ctx, "KEES@volst.nl", "testtest2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, err := engine.Authenticate(ctx, payload.Token)
	if err != nil || id != user.ID {
		t.Fatalf("Authenticate = %q, %v; want %q", id, err, user.ID)
	}
}

func TestScenarioInviteThenReset(t *testing.T) {
	engine, store, box := scenarioEngine(t, func(c *goAccounts.Config) {
		c.EmailConfirmation.Enabled = false
	})
	ctx := context.Background()

	admin, err := engine.Signup(ctx, goAccounts.SignupInput{Name: "Kees", Email: "kees@volst.nl", Password: "testtest2"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	adminCtx := goAccounts.WithCurrentUserID(ctx, admin.User.ID)

	invited, err := engine.InviteUser(adminCtx, goAccounts.InviteInput{Email: "roger@volst.nl"})
	if err != nil {
		t.Fatalf("InviteUser: %v", err)
	}
	if got := box.get("invite", "roger@volst.nl"); got != invited.InviteToken {
		t.Fatalf("notifier token %q != returned token %q", got, invited.InviteToken)
	}

	if _, err := engine.Login(ctx, "roger@volst.nl", ""); !errors.Is(err, goAccounts.ErrNoUserFound) {
		t.Fatalf("invited user must not log in, got %v", err)
	}

	roger, err := engine.SignupByInvite(ctx, goAccounts.SignupInput{Name: "Roger", Email: "roger@volst.nl", Password: "testtest2"}, invited.InviteToken)
	if err != nil {
		t.Fatalf("SignupByInvite: %v", err)
	}
	if roger.ID != invited.ID {
		t.Fatalf("invite accepted into %q, want %q", roger.ID, invited.ID)
	}

	if _, err := engine.TriggerPasswordReset(ctx, "roger@volst.nl"); err != nil {
		t.Fatalf("TriggerPasswordReset: %v", err)
	}
	token := box.get("reset", "roger@volst.nl")
	if err := engine.CheckResetToken(ctx, token); err != nil {
		t.Fatalf("CheckResetToken: %v", err)
	}
	if _, err := engine.PasswordReset(ctx, "roger@volst.nl", "testtest3", token); err != nil {
		t.Fatalf("PasswordReset: %v", err)
	}
	if _, err := engine.PasswordReset(ctx, "roger@volst.nl", "testtest4", token); !errors.Is(err, goAccounts.ErrNoUserFound) {
		t.Fatalf("reset token reuse: expected ErrNoUserFound, got %v", err)
	}
	if _, err := engine.Login(ctx, "roger@volst.nl", "testtest3"); err != nil {
		t.Fatalf("Login after reset: %v", err)
	}
	if n := store.Len(); n != 2 {
		t.Fatalf("expected 2 stored users, got %d", n)
	}
}

func TestScenarioConcurrentSignupSameEmail(t *testing.T) {
	engine, store, _ := scenarioEngine(t, func(c *goAccounts.Config) {
		c.EmailConfirmation.Enabled = false
	})
	ctx := context.Background()

	const workers = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		dupes   int
		unknown []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Signup(ctx, goAccounts.SignupInput{Name: "Kees", Email: "kees@volst.nl", Password: "testtest2"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, goAccounts.ErrUserExists):
				dupes++
			default:
				unknown = append(unknown, err)
			}
		}()
	}
	wg.Wait()

	if len(unknown) > 0 {
		t.Fatalf("unexpected errors: %v", unknown)
	}
	if ok != 1 || dupes != workers-1 {
		t.Fatalf("ok=%d dupes=%d; want exactly one winner", ok, dupes)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored user, got %d", store.Len())
	}
}

func ExampleEngine_Signup() {
	cfg := goAccounts.DefaultConfig()
	cfg.JWT.PrivateKey = goAccounts.Secret("example-secret-with-enough-bytes!")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Parallelism = 1
	cfg.EmailConfirmation.Enabled = false

	engine, err := goAccounts.New().WithConfig(cfg).WithAdapter(memory.New()).Build()
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx := context.Background()
	res, err := engine.Signup(ctx, goAccounts.SignupInput{Name: "Kees", Email: "kees@volst.nl", Password: "testtest2"})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(res.User.ID, res.User.Email, res.Token != "")

	_, err = engine.Signup(ctx, goAccounts.SignupInput{Name: "Kees", Email: "kees@volst.nl", Password: "testtest2"})
	fmt.Println(err)

	_, err = engine.Signup(ctx, goAccounts.SignupInput{Name: "Roger", Email: "roger@volst.nl", Password: "short"})
	fmt.Println(err)
	// Output:
	// 1 kees@volst.nl true
	// User already exists with this email
	// Password is too short
}
