package goAccount_test

import (
	"context"
	"fmt"
	"net/url"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/notify"
	"github.com/MrEthical07/goAccount/store/memory"
)

func exampleConfig() goAccount.Config {
	cfg := goAccount.DefaultConfig()
	cfg.Token.Secret = "example-secret-example-secret-01234"
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Notify.Async = false
	return cfg
}

// ExampleEngine_Register walks an account from registration through email
// verification to its first login.
func ExampleEngine_Register() {
	ctx := context.Background()

	var link string
	engine, err := goAccount.New().
		WithConfig(exampleConfig()).
		WithStore(memory.New()).
		WithNotifier(notify.Func(func(_ context.Context, msg notify.Message) error {
			link = msg.Link
			return nil
		})).
		Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()

	acc, err := engine.Register(ctx, goAccount.RegisterRequest{
		Username:        "alice",
		Email:           "alice@example.com",
		FullName:        "Alice Liddell",
		Password:        "correct-horse",
		PasswordConfirm: "correct-horse",
	})
	if err != nil {
		fmt.Println(goAccount.PublicMessage(err))
		return
	}
	fmt.Println(acc.Username, acc.IsVerified())

	u, _ := url.Parse(link)
	if _, err := engine.VerifyEmail(ctx, u.Query().Get("token")); err != nil {
		fmt.Println(goAccount.PublicMessage(err))
		return
	}

	acc, err = engine.Authenticate(ctx, "alice@example.com", "correct-horse")
	if err != nil {
		fmt.Println(goAccount.PublicMessage(err))
		return
	}
	fmt.Println(acc.Username, acc.IsVerified())

	_, err = engine.Authenticate(ctx, "alice", "wrong-horse")
	fmt.Println(goAccount.PublicMessage(err))

	// Output:
	// alice false
	// alice true
	// Incorrect username or password
}

// ExamplePublicMessage shows the caller-facing text for engine errors.
func ExamplePublicMessage() {
	fmt.Println(goAccount.PublicMessage(goAccount.ErrNotVerified))
	fmt.Println(goAccount.PublicMessage(goAccount.ErrInvalidToken))

	// Output:
	// Email account not yet verified
	// Invalid or expired token
}
