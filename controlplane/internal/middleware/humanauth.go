package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"captive-portal/controlplane/internal/model"
)

const (
	HumanCookie   = "portal_session"
	humanTokenTTL = 12 * time.Hour
)

var errInvalidToken = errors.New("invalid token")

// HumanClaims identify the person signed in to the portal pages. They are
// separate from the gateway session token.
type HumanClaims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type HumanAuth struct {
	secret []byte
	secure bool
	now    func() time.Time
}

func NewHumanAuth(secret string, secure bool) *HumanAuth {
	return &HumanAuth{secret: []byte(secret), secure: secure, now: time.Now}
}

func (a *HumanAuth) Sign(user model.User) (string, error) {
	now := a.now()
	claims := HumanClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(humanTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *HumanAuth) Parse(tokenString string) (HumanClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &HumanClaims{}, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return HumanClaims{}, errInvalidToken
	}
	claims, ok := token.Claims.(*HumanClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return HumanClaims{}, errInvalidToken
	}
	return *claims, nil
}

// SetCookie signs user in on the portal pages.
func (a *HumanAuth) SetCookie(w http.ResponseWriter, user model.User) error {
	token, err := a.Sign(user)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     HumanCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(humanTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (a *HumanAuth) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     HumanCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Optional attaches claims from a valid portal cookie and lets every request
// through; handlers decide what an anonymous caller may do.
func (a *HumanAuth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(HumanCookie); err == nil && c.Value != "" {
			if claims, err := a.Parse(c.Value); err == nil {
				r = r.WithContext(ContextWithHuman(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

type humanKey struct{}

func ContextWithHuman(ctx context.Context, claims HumanClaims) context.Context {
	return context.WithValue(ctx, humanKey{}, claims)
}

func HumanFromContext(ctx context.Context) (HumanClaims, bool) {
	claims, ok := ctx.Value(humanKey{}).(HumanClaims)
	return claims, ok
}
