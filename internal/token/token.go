package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalid = errors.New("invalid token")
	ErrExpired = errors.New("token expired")
)

// MaxDestinationLength bounds the destination carried in a click token so
// hrefs stay within common URL length limits.
const MaxDestinationLength = 2048

// Click identifies one click-through: the slot instance that rendered the
// unit, the content shown and where the click leads.
type Click struct {
	InstanceID  string
	ContentID   string
	CampaignID  string
	PlacementID string
	Destination string
}

// payload structure for encoding/decoding
type payload struct {
	InstanceID  string `json:"s"`
	ContentID   string `json:"c"`
	CampaignID  string `json:"cid,omitempty"`
	PlacementID string `json:"pl,omitempty"`
	Destination string `json:"d"`
	TS          int64  `json:"t"`
}

// validateDestination rejects destinations the redirect endpoint must never follow.
func validateDestination(dest string) error {
	if len(dest) > MaxDestinationLength {
		return fmt.Errorf("destination too long: %d chars, max %d", len(dest), MaxDestinationLength)
	}
	u, err := url.Parse(dest)
	if err != nil {
		return fmt.Errorf("destination %q: %w", dest, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("destination %q: only absolute http(s) URLs are allowed", dest)
	}
	return nil
}

// Generate creates a signed click token.
func Generate(c Click, secret []byte) (string, error) {
	return generateAt(c, secret, time.Now())
}

func generateAt(c Click, secret []byte, now time.Time) (string, error) {
	if c.InstanceID == "" || c.ContentID == "" {
		return "", fmt.Errorf("click token requires instance and content ids")
	}
	if err := validateDestination(c.Destination); err != nil {
		return "", fmt.Errorf("destination validation failed: %w", err)
	}

	pl := payload{
		InstanceID:  c.InstanceID,
		ContentID:   c.ContentID,
		CampaignID:  c.CampaignID,
		PlacementID: c.PlacementID,
		Destination: c.Destination,
		TS:          now.Unix(),
	}
	data, err := json.Marshal(pl)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	sig := mac.Sum(nil)

	enc := base64.RawURLEncoding
	token := enc.EncodeToString(data) + "." + enc.EncodeToString(sig)
	return token, nil
}

// Verify checks the token integrity and expiry and returns the click it carries.
func Verify(token string, secret []byte, ttl time.Duration) (Click, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Click{}, ErrInvalid
	}
	enc := base64.RawURLEncoding
	data, err := enc.DecodeString(parts[0])
	if err != nil {
		return Click{}, ErrInvalid
	}
	sig, err := enc.DecodeString(parts[1])
	if err != nil {
		return Click{}, ErrInvalid
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Click{}, ErrInvalid
	}

	var pl payload
	if err := json.Unmarshal(data, &pl); err != nil {
		return Click{}, ErrInvalid
	}
	if validateDestination(pl.Destination) != nil {
		return Click{}, ErrInvalid
	}
	if ttl > 0 && time.Since(time.Unix(pl.TS, 0)) > ttl {
		return Click{}, ErrExpired
	}
	return Click{
		InstanceID:  pl.InstanceID,
		ContentID:   pl.ContentID,
		CampaignID:  pl.CampaignID,
		PlacementID: pl.PlacementID,
		Destination: pl.Destination,
	}, nil
}
