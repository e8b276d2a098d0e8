// Package fritzhome talks to the AHA HTTP interface of a FRITZ!Box and
// keeps the list of smart home devices it reports.
package fritzhome

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

const aha = "/webservices/homeautoswitch.lua"

// Config describes how to reach and authenticate against one FRITZ!Box.
type Config struct {
	Host      string
	Username  string
	Password  string
	SSLVerify bool
	Timeout   time.Duration
}

// Session is an authenticated connection to one FRITZ!Box together with
// the devices seen on its last refresh. A Session is not safe for
// concurrent use.
type Session struct {
	host   string
	client *resty.Client
	source *sidSource
	tokens oauth2.TokenSource
	sid    *oauth2.Token
	logger log.Logger

	devices map[string]*Device
	order   []string
}

// New prepares a session. It does not contact the FRITZ!Box, call Login
// for that.
func New(cfg Config, logger log.Logger) *Session {
	logger = log.With(logger, "host", cfg.Host)

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Host, "/")).
		SetLogger(restyLogger{logger})
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if !cfg.SSLVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	source := &sidSource{
		client:   client,
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger,
	}

	return &Session{
		host:    cfg.Host,
		client:  client,
		source:  source,
		tokens:  oauth2.ReuseTokenSource(nil, source),
		logger:  logger,
		devices: map[string]*Device{},
	}
}

// Login opens a new session, replacing any cached session id. Failures
// are reported as *LoginError.
func (s *Session) Login(ctx context.Context) error {
	token, err := s.source.login(ctx)
	if err != nil {
		return err
	}
	s.tokens = oauth2.ReuseTokenSource(token, s.source)
	s.sid = token
	level.Info(s.logger).Log("msg", "logged in", "user", s.source.username)
	return nil
}

// Logout closes the session on the FRITZ!Box. It is a no-op when no
// session is open.
func (s *Session) Logout(ctx context.Context) error {
	token := s.sid
	if token == nil {
		return nil
	}
	defer s.invalidate()

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"version": "2",
			"logout":  "1",
			"sid":     token.AccessToken,
		}).
		Get(loginPath)
	if err != nil {
		return fmt.Errorf("logout from %s: %w", s.host, err)
	}
	if resp.IsError() {
		return fmt.Errorf("logout from %s: unexpected status %q", s.host, resp.Status())
	}
	return nil
}

// Refresh fetches the device list. Devices missing from the response are
// dropped unless ignoreRemoved is set.
func (s *Session) Refresh(ctx context.Context, ignoreRemoved bool) error {
	token, err := s.token(ctx)
	if err != nil {
		return err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"switchcmd": "getdevicelistinfos",
			"sid":       token.AccessToken,
		}).
		SetResult(&deviceList{}).
		ForceContentType("application/xml").
		Get(aha)
	if err != nil {
		return fmt.Errorf("fetching device list from %s: %w", s.host, err)
	}
	if resp.StatusCode() == http.StatusForbidden {
		s.invalidate()
		return fmt.Errorf("fetching device list from %s: %w", s.host, ErrSessionExpired)
	}
	if resp.IsError() {
		return fmt.Errorf("fetching device list from %s: unexpected status %q", s.host, resp.Status())
	}

	s.update(resp.Result().(*deviceList).Devices, ignoreRemoved)
	return nil
}

// Devices returns the devices in the order they were first seen.
func (s *Session) Devices() []*Device {
	out := make([]*Device, 0, len(s.order))
	for _, ain := range s.order {
		out = append(out, s.devices[ain])
	}
	return out
}

func (s *Session) update(list []xmlDevice, ignoreRemoved bool) {
	seen := make(map[string]bool, len(list))
	for _, x := range list {
		d := newDevice(x)
		seen[d.AIN] = true
		if _, ok := s.devices[d.AIN]; !ok {
			s.order = append(s.order, d.AIN)
		}
		s.devices[d.AIN] = d
	}

	if ignoreRemoved {
		return
	}
	kept := s.order[:0]
	for _, ain := range s.order {
		if seen[ain] {
			kept = append(kept, ain)
			continue
		}
		level.Debug(s.logger).Log("msg", "device removed", "ain", ain)
		delete(s.devices, ain)
	}
	s.order = kept
}

// token returns the cached session id. After invalidation it logs in
// again under ctx, so the caller's deadline also bounds BlockTime waits.
func (s *Session) token(ctx context.Context) (*oauth2.Token, error) {
	if s.sid == nil {
		if err := s.Login(ctx); err != nil {
			return nil, err
		}
	}
	token, err := s.tokens.Token()
	if err != nil {
		return nil, err
	}
	s.sid = token
	return token, nil
}

func (s *Session) invalidate() {
	s.tokens = oauth2.ReuseTokenSource(nil, s.source)
	s.sid = nil
}

type restyLogger struct {
	logger log.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	level.Error(l.logger).Log("msg", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	level.Warn(l.logger).Log("msg", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	level.Debug(l.logger).Log("msg", strings.TrimSpace(fmt.Sprintf(format, v...)))
}
