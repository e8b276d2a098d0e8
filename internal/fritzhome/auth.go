package fritzhome

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/oauth2"
	"golang.org/x/text/encoding/unicode"
)

const (
	loginPath = "/login_sid.lua"
	emptySID  = "0000000000000000"
)

type sessionInfo struct {
	XMLName   xml.Name `xml:"SessionInfo"`
	SID       string   `xml:"SID"`
	Challenge string   `xml:"Challenge"`
	BlockTime int      `xml:"BlockTime"`
}

// sidSource hands out FRITZ!Box session ids as oauth2 tokens, so the
// session can cache them with oauth2.ReuseTokenSource.
type sidSource struct {
	client   *resty.Client
	username string
	password string
	logger   log.Logger
}

// Token implements oauth2.TokenSource. It is only called by the reuse
// source when no valid session id is cached.
func (s *sidSource) Token() (*oauth2.Token, error) {
	return s.login(context.Background())
}

func (s *sidSource) login(ctx context.Context) (*oauth2.Token, error) {
	info, err := s.sessionInfo(ctx, http.MethodGet, s.client.R())
	if err != nil {
		return nil, &LoginError{Account: s.username, Err: err}
	}

	if info.BlockTime > 0 {
		level.Warn(s.logger).Log("msg", "login is blocked, waiting", "user", s.username, "seconds", info.BlockTime)
		select {
		case <-ctx.Done():
			return nil, &LoginError{Account: s.username, Err: ctx.Err()}
		case <-time.After(time.Duration(info.BlockTime) * time.Second):
		}
	}

	response, err := solveChallenge(info.Challenge, s.password)
	if err != nil {
		return nil, &LoginError{Account: s.username, Err: err}
	}

	info, err = s.sessionInfo(ctx, http.MethodPost, s.client.R().SetFormData(map[string]string{
		"username": s.username,
		"response": response,
	}))
	if err != nil {
		return nil, &LoginError{Account: s.username, Err: err}
	}
	if info.SID == "" || info.SID == emptySID {
		return nil, &LoginError{Account: s.username}
	}

	level.Debug(s.logger).Log("msg", "session opened", "user", s.username)
	return &oauth2.Token{AccessToken: info.SID, TokenType: "SID"}, nil
}

func (s *sidSource) sessionInfo(ctx context.Context, method string, req *resty.Request) (*sessionInfo, error) {
	resp, err := req.
		SetContext(ctx).
		SetQueryParam("version", "2").
		SetResult(&sessionInfo{}).
		ForceContentType("application/xml").
		Execute(method, loginPath)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %q from %s", resp.Status(), loginPath)
	}
	return resp.Result().(*sessionInfo), nil
}

// solveChallenge computes the login response for a challenge issued by
// login_sid.lua. Challenges starting with "2$" use PBKDF2, all others
// the legacy MD5 scheme.
func solveChallenge(challenge, password string) (string, error) {
	if strings.HasPrefix(challenge, "2$") {
		return pbkdf2Response(challenge, password)
	}
	return md5Response(challenge, password)
}

func pbkdf2Response(challenge, password string) (string, error) {
	parts := strings.Split(challenge, "$")
	if len(parts) != 5 {
		return "", fmt.Errorf("malformed challenge %q", challenge)
	}
	iter1, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed challenge %q: %w", challenge, err)
	}
	salt1, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("malformed challenge %q: %w", challenge, err)
	}
	iter2, err := strconv.Atoi(parts[3])
	if err != nil {
		return "", fmt.Errorf("malformed challenge %q: %w", challenge, err)
	}
	salt2, err := hex.DecodeString(parts[4])
	if err != nil {
		return "", fmt.Errorf("malformed challenge %q: %w", challenge, err)
	}

	hash1 := pbkdf2.Key([]byte(password), salt1, iter1, sha256.Size, sha256.New)
	hash2 := pbkdf2.Key(hash1, salt2, iter2, sha256.Size, sha256.New)
	return parts[4] + "$" + hex.EncodeToString(hash2), nil
}

func md5Response(challenge, password string) (string, error) {
	if challenge == "" {
		return "", errors.New("empty challenge")
	}
	// Code points above 255 are replaced by '.' before hashing.
	clean := strings.Map(func(r rune) rune {
		if r > 255 {
			return '.'
		}
		return r
	}, password)

	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(challenge + "-" + clean)
	if err != nil {
		return "", err
	}
	sum := md5.Sum([]byte(encoded))
	return challenge + "-" + hex.EncodeToString(sum[:]), nil
}
