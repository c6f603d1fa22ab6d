package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtSecretKey signs and verifies device tokens. Loaded from JWT_SECRET;
// the fallback is only suitable for local development.
var jwtSecretKey = []byte(getSecret())

func getSecret() string {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return s
	}
	return "dev-only-pos-sync-jwt-secret-change-me"
}

// DefaultDeviceTokenTTL is how long an issued device token stays valid.
const DefaultDeviceTokenTTL = 24 * time.Hour

// DeviceClaims defines the JWT claims structure for POS devices.
type DeviceClaims struct {
	DeviceID string `json:"device_id"`
	Label    string `json:"label"`
	jwt.RegisteredClaims
}

// GenerateDeviceToken creates a signed JWT for a registered device.
func GenerateDeviceToken(deviceID, label string, ttl time.Duration) (string, error) {
	expirationTime := time.Now().Add(ttl)
	claims := &DeviceClaims{
		DeviceID: deviceID,
		Label:    label,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "pos-sync-backend",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign device token: %w", err)
	}
	return tokenString, nil
}

// ValidateDeviceToken parses and validates a device JWT.
// It returns the claims if the token is valid, otherwise an error.
func ValidateDeviceToken(tokenString string) (*DeviceClaims, error) {
	claims := &DeviceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
