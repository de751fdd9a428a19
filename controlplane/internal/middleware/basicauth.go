package middleware

import (
	"crypto/subtle"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const adminRealm = `Basic realm="captive-portal admin"`

// BasicAuth guards the operator API. Refused attempts are logged with the
// caller address and the username they tried, never the password.
func BasicAuth(user, pass string, log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if ok && validCredentials(u, p, user, pass) {
				next.ServeHTTP(w, r)
				return
			}
			if ok {
				log.WithFields(logrus.Fields{
					"request_id": chimw.GetReqID(r.Context()),
					"remote_ip":  ClientIP(r),
					"username":   u,
					"path":       r.URL.Path,
				}).Warn("admin credentials refused")
			}
			w.Header().Set("WWW-Authenticate", adminRealm)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

// validCredentials compares both fields in constant time and refuses an
// unconfigured account outright.
func validCredentials(gotUser, gotPass, user, pass string) bool {
	if user == "" || pass == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(gotUser), []byte(user))
	passOK := subtle.ConstantTimeCompare([]byte(gotPass), []byte(pass))
	return userOK&passOK == 1
}
