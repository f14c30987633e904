package security

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"NioBoard/tools/errs"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Principal is the authenticated actor carried through every request.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Options controls signing and TTL.
type Options struct {
	Secret []byte
	TTL    time.Duration // default 2h
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, TTL: 2 * time.Hour}
}

// Generate signs an HS256 token carrying the principal.
func Generate(opts Options, p Principal) (token string, expireAt time.Time, err error) {
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := jwtlib.MapClaims{
		"sub":      p.ID,
		"username": p.Username,
		"role":     p.Role,
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      exp.Unix(),
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tok.SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses the token and rebuilds the principal. Only the HMAC
// family is accepted.
func Verify(opts Options, token string) (Principal, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errs.ErrToken.WithDetail("unexpected alg")
		}
		return opts.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, errs.ErrToken
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Principal{}, errs.ErrToken
	}
	p := Principal{}
	if v, ok := claims["sub"].(string); ok {
		p.ID = v
	}
	if v, ok := claims["username"].(string); ok {
		p.Username = v
	}
	if v, ok := claims["role"].(string); ok {
		p.Role = v
	}
	if p.ID == "" || p.Role == "" {
		return Principal{}, errs.ErrToken
	}
	return p, nil
}
