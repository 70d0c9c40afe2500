package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/account"
)

type accountContextKey struct{}

// AccountFromContext returns the account a Guard resolved for this request.
func AccountFromContext(ctx context.Context) (*account.Account, bool) {
	acc, ok := ctx.Value(accountContextKey{}).(*account.Account)
	return acc, ok
}

// Guard resolves the bearer token to an account and enforces req before
// calling next. Missing or invalid tokens get 401; accounts that fail req get 403.
func Guard(engine *goAccount.Engine, req goAccount.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			acc, err := engine.AccountFromAccessToken(r.Context(), token)
			if err != nil {
				writeError(w, err)
				return
			}
			if err := engine.CheckAccess(acc, req); err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey{}, acc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActive admits any unlocked account.
func RequireActive(engine *goAccount.Engine) func(http.Handler) http.Handler {
	return Guard(engine, goAccount.RequireActive)
}

// RequireVerified admits unlocked accounts whose email is verified.
func RequireVerified(engine *goAccount.Engine) func(http.Handler) http.Handler {
	return Guard(engine, goAccount.RequireActive|goAccount.RequireVerified)
}

// ClientIP records the peer address on the request context so the engine can
// apply per-IP throttles and fill audit events.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if ip != "" {
			r = r.WithContext(goAccount.WithClientIP(r.Context(), ip))
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	switch {
	case errors.Is(err, goAccount.ErrAccountLocked), errors.Is(err, goAccount.ErrNotVerified):
		status = http.StatusForbidden
	case errors.Is(err, goAccount.ErrInternal):
		status = http.StatusInternalServerError
	}
	http.Error(w, goAccount.PublicMessage(err), status)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
