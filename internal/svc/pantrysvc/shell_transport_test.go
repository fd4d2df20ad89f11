package pantrysvc_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/repo/document"
	"github.com/mkrupp/pantry/internal/svc/authsvc/authclient"
	"github.com/mkrupp/pantry/internal/svc/pantrysvc"
)

type memoryAccount struct {
	password string
	identity domain.Identity
}

// memoryAccounts is an AccountClient keeping users in a map; tokens are "tok-" + username.
type memoryAccounts struct {
	mu    sync.Mutex
	users map[string]memoryAccount
}

func (a *memoryAccounts) Validate(_ context.Context, token string) (domain.Identity, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	account, ok := a.users[strings.TrimPrefix(token, "tok-")]

	return account.identity, ok, nil
}

func (a *memoryAccounts) Login(_ context.Context, username, password string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if account, ok := a.users[username]; !ok || account.password != password {
		return "", domain.ErrInvalidCredentials
	}

	return "tok-" + username, nil
}

func (a *memoryAccounts) Register(_ context.Context, username, password, displayName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.users[username]; ok {
		return domain.ErrUserAlreadyExists
	}

	a.users[username] = memoryAccount{
		password: password,
		identity: domain.Identity{ID: "u-" + username, DisplayName: displayName},
	}

	return nil
}

func seedItem(t *testing.T, store document.Store, item domain.InventoryItem) {
	t.Helper()

	data, err := item.Data()
	if err != nil {
		t.Fatalf("item data: %v", err)
	}

	if _, err := store.Upsert(context.Background(), domain.InventoryCollection, item.ID, data, false); err != nil {
		t.Fatalf("seed item: %v", err)
	}
}

func TestShellTransport_Session(t *testing.T) {
	t.Parallel()

	store := document.NewMemoryDocumentStore()
	seedItem(t, store, domain.InventoryItem{ID: "c0ffee", Name: "coffee", Quantity: 2, OwnerID: "u-ada"})
	seedItem(t, store, domain.InventoryItem{ID: "c0ffe5", Name: "coffee beans", Quantity: 9, OwnerID: "u-ada"})

	svc := newService(t, store, defaultConfig())
	accounts := &memoryAccounts{users: map[string]memoryAccount{}}

	shell := pantrysvc.NewShellTransport(svc, accounts, authclient.NewTokenSession(accounts), pantrysvc.ShellTransportConfig{
		Prompt:      "> ",
		WaitTimeout: 5 * time.Second,
	})

	script := strings.Join([]string{
		"help",
		"list",
		"register ada secret Ada Lovelace",
		"register ada other",
		"login ada wrong",
		"login ada secret",
		"add eggs 3",
		"+ brown rice",
		"add",
		"search RIC",
		"inc c0ffee",
		"dec c0ffe",
		"dec C0FFE5",
		"rm c0ffee",
		"whoami",
		"name Countess",
		"whoami",
		"bogus",
		"logout",
		"list",
		"quit",
		"add never",
	}, "\n")

	var out bytes.Buffer

	if err := shell.Run(context.Background(), strings.NewReader(script), &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	output := out.String()

	for _, want := range []string{
		"login USER PASS",
		"error: " + domain.ErrNotSignedIn.Error(),
		"registered ada",
		domain.ErrUserAlreadyExists.Error(),
		domain.ErrInvalidCredentials.Error(),
		"signed in as Ada Lovelace",
		"Coffee beans",
		"Eggs",
		"Brown rice",
		"usage: add NAME [QTY]",
		pantrysvc.ErrAmbiguousItemID.Error(),
		"Ada Lovelace (u-ada)",
		"display name set to Countess",
		"Countess (u-ada)",
		`unknown command "bogus"`,
		"signed out",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output lacks %q:\n%s", want, output)
		}
	}

	view, err := svc.Sync(context.Background(), domain.Identity{ID: "u-ada"})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	got := map[string]int{}
	for _, item := range view.FullList {
		got[item.Name] = item.Quantity
	}

	want := map[string]int{"coffee beans": 8, "eggs": 3, "brown rice": 1}
	if len(got) != len(want) {
		t.Errorf("items = %v, want %v", got, want)
	}

	for name, quantity := range want {
		if got[name] != quantity {
			t.Errorf("%s quantity = %d, want %d", name, got[name], quantity)
		}
	}
}

func TestShellTransport_EndOfInput(t *testing.T) {
	t.Parallel()

	accounts := &memoryAccounts{users: map[string]memoryAccount{}}
	svc := newService(t, document.NewMemoryDocumentStore(), defaultConfig())
	shell := pantrysvc.NewShellTransport(svc, accounts, authclient.NewTokenSession(accounts), pantrysvc.ShellTransportConfig{
		Prompt:      "> ",
		WaitTimeout: time.Second,
	})

	var out bytes.Buffer

	if err := shell.Run(context.Background(), strings.NewReader("\n\nwhoami\n"), &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !strings.Contains(out.String(), domain.ErrNotSignedIn.Error()) {
		t.Errorf("output = %q", out.String())
	}
}

func TestCapitalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"eggs", "Eggs"},
		{"Eggs", "Eggs"},
		{"éclair", "Éclair"},
		{"1 apple", "1 apple"},
	}

	for _, tt := range tests {
		if got := pantrysvc.Capitalize(tt.in); got != tt.want {
			t.Errorf("Capitalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
