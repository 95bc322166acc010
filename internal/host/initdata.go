package host

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingHash is returned when init data carries no hash.
	ErrMissingHash = errors.New("init data hash is missing")
	// ErrHashMismatch is returned when the hash does not match the bot token.
	ErrHashMismatch = errors.New("init data hash mismatch")
	// ErrExpired is returned when auth_date is older than the allowed age.
	ErrExpired = errors.New("init data expired")
)

// InitData is the parsed launch payload the host passes to the mini app.
type InitData struct {
	QueryID  string
	User     Identity
	AuthDate time.Time
	Hash     string
}

// ParseInitData parses the raw query-string payload without checking its
// signature.
func ParseInitData(raw string) (InitData, error) {
	values, err := url.ParseQuery(strings.TrimSpace(raw))
	if err != nil {
		return InitData{}, fmt.Errorf("parse init data: %w", err)
	}
	data := InitData{
		QueryID: values.Get("query_id"),
		Hash:    values.Get("hash"),
	}
	if user := values.Get("user"); user != "" {
		if err := json.Unmarshal([]byte(user), &data.User); err != nil {
			return InitData{}, fmt.Errorf("decode init data user: %w", err)
		}
	}
	if authDate := values.Get("auth_date"); authDate != "" {
		seconds, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil {
			return InitData{}, fmt.Errorf("parse auth_date: %w", err)
		}
		data.AuthDate = time.Unix(seconds, 0).UTC()
	}
	return data, nil
}

// ValidateOptions tune Validate.
type ValidateOptions struct {
	// MaxAge rejects payloads whose auth_date is older; zero disables the check.
	MaxAge time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Validate checks the init data signature against botToken and returns the
// parsed payload.
func Validate(raw string, botToken string, opts ValidateOptions) (InitData, error) {
	if strings.TrimSpace(botToken) == "" {
		return InitData{}, fmt.Errorf("bot token is required")
	}
	values, err := url.ParseQuery(strings.TrimSpace(raw))
	if err != nil {
		return InitData{}, fmt.Errorf("parse init data: %w", err)
	}
	received := values.Get("hash")
	if received == "" {
		return InitData{}, ErrMissingHash
	}
	expected := Sign(values, botToken)
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		return InitData{}, ErrHashMismatch
	}

	data, err := ParseInitData(raw)
	if err != nil {
		return InitData{}, err
	}
	if opts.MaxAge > 0 {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		if data.AuthDate.IsZero() || now().Sub(data.AuthDate) > opts.MaxAge {
			return InitData{}, ErrExpired
		}
	}
	return data, nil
}

// Sign computes the hex hash the host attaches to values, ignoring any
// existing hash field.
func Sign(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+values.Get(key))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
