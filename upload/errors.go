package upload

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// ErrNoConnection means the user has no active YouTube connection.
var ErrNoConnection = errors.New("no active YouTube connection")

// Kind is how a publish failure is recovered from.
type Kind int

const (
	KindOther Kind = iota
	KindAuth       // credential expired or revoked: deactivate and ask to reconnect
	KindQuota      // quota or rate limit: keep credentials, retry later
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindQuota:
		return "quota"
	}
	return "other"
}

var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"uploadLimitExceeded":   true,
	"servingLimitExceeded":  true,
}

// authReasons are 403 reasons caused by the credential, not by usage limits.
var authReasons = map[string]bool{
	"authError":               true,
	"forbidden":               true,
	"insufficientPermissions": true,
	"unauthorized":            true,
	"youtubeSignupRequired":   true,
}

// Classify maps an upload or refresh error to its recovery kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	if errors.Is(err, ErrNoConnection) {
		return KindAuth
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode == "invalid_grant" || rerr.ErrorCode == "unauthorized_client" {
			return KindAuth
		}
		if rerr.Response != nil && (rerr.Response.StatusCode == http.StatusUnauthorized || rerr.Response.StatusCode == http.StatusBadRequest) {
			return KindAuth
		}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		for _, item := range gerr.Errors {
			if quotaReasons[item.Reason] {
				return KindQuota
			}
		}
		for _, item := range gerr.Errors {
			if authReasons[item.Reason] {
				return KindAuth
			}
		}
		switch gerr.Code {
		case http.StatusUnauthorized:
			return KindAuth
		case http.StatusForbidden, http.StatusTooManyRequests:
			return KindQuota
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "invalid_grant"):
		return KindAuth
	case strings.Contains(strings.ToLower(msg), "quotaexceeded"):
		return KindQuota
	}
	return KindOther
}
