// Package token issues and parses the game tokens that authenticate
// every in-game API call. A token binds one user identity to one room.
package token

import (
	"errors"
	"fmt"
	"time"

	"tori-server/internal/session"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid_token")

const (
	claimUserID   = "userId"
	claimNickname = "nickname"
	claimRoomID   = "roomId"
)

// Data is the decoded content of a game token.
type Data struct {
	User   session.UserIdentity
	RoomID int
}

// Issuer signs and validates HS256 game tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a token for the user's current room.
func (i *Issuer) Issue(user session.UserIdentity, roomID int) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		claimUserID:   user.ID,
		claimNickname: user.Nickname,
		claimRoomID:   fmt.Sprintf("%d", roomID),
		"exp":         jwt.NewNumericDate(now.Add(i.ttl)),
		"iat":         jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse validates the signature and expiry and extracts the identity
// and room binding. Any failure maps to ErrInvalidToken; callers treat
// the token as opaque beyond that.
func (i *Issuer) Parse(raw string) (Data, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time { return i.now() }))
	if err != nil || !parsed.Valid {
		return Data{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Data{}, ErrInvalidToken
	}
	userID, ok := claims[claimUserID].(string)
	if !ok || userID == "" {
		return Data{}, ErrInvalidToken
	}
	nickname, _ := claims[claimNickname].(string)
	roomStr, ok := claims[claimRoomID].(string)
	if !ok {
		return Data{}, ErrInvalidToken
	}
	var roomID int
	if _, err := fmt.Sscanf(roomStr, "%d", &roomID); err != nil {
		return Data{}, ErrInvalidToken
	}

	return Data{
		User:   session.UserIdentity{ID: userID, Nickname: nickname},
		RoomID: roomID,
	}, nil
}
