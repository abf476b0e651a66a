package ssh

import (
	"context"
	"fmt"
	"strings"
	"time"

	cryptossh "golang.org/x/crypto/ssh"
)

const (
	connectTimeout  = 30 * time.Second
	keepaliveEvery  = 60 * time.Second
	livenessTimeout = 15 * time.Second
)

// Session is a pooled, long-lived SSH connection. It is exclusively owned by
// the Pool: callers borrow it via Acquire* and must never close it — only
// the reaper and the acquire-path evict and close, per spec §3.
type Session struct {
	client *cryptossh.Client
	key    string
}

// dialDirect opens a fresh TCP+SSH connection to host:port using password
// auth, mirroring the teacher's client.go connect() for the non-tunneled
// case.
func dialDirect(ctx context.Context, creds Credentials) (*cryptossh.Client, error) {
	cfg := &cryptossh.ClientConfig{
		User:            creds.User,
		Auth:            []cryptossh.AuthMethod{cryptossh.Password(creds.Password)},
		HostKeyCallback: cryptossh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}
	addr := fmt.Sprintf("%s:%d", normalizeHost(creds.Host), creds.Port)

	type result struct {
		client *cryptossh.Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := cryptossh.Dial("tcp", addr, cfg)
		ch <- result{c, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, classifyConnectError(r.err, false)
		}
		return r.client, nil
	}
}

// dialJump opens a TCP+SSH connection to a bastion using key-based auth
// only, as spec §4.1 requires for acquire_jump.
func dialJump(ctx context.Context, host string, port int, user string, signer cryptossh.Signer) (*cryptossh.Client, error) {
	cfg := &cryptossh.ClientConfig{
		User:            user,
		Auth:            []cryptossh.AuthMethod{cryptossh.PublicKeys(signer)},
		HostKeyCallback: cryptossh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}
	addr := fmt.Sprintf("%s:%d", normalizeHost(host), port)

	type result struct {
		client *cryptossh.Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := cryptossh.Dial("tcp", addr, cfg)
		ch <- result{c, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, classifyConnectError(r.err, true)
		}
		return r.client, nil
	}
}

// dialViaJump opens the target SSH connection tunneled through an already
// connected jump session, mirroring client.go's jumpConn.Dial +
// ssh.NewClientConn tunnel construction.
func dialViaJump(ctx context.Context, jump *Session, creds Credentials) (*cryptossh.Client, error) {
	if jump == nil || jump.client == nil {
		return nil, errNotConnected
	}

	cfg := &cryptossh.ClientConfig{
		User:            creds.User,
		Auth:            []cryptossh.AuthMethod{cryptossh.Password(creds.Password)},
		HostKeyCallback: cryptossh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}
	addr := fmt.Sprintf("%s:%d", normalizeHost(creds.Host), creds.Port)

	type result struct {
		client *cryptossh.Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		netConn, err := jump.client.Dial("tcp", addr)
		if err != nil {
			ch <- result{nil, fmt.Errorf("dial through jump host: %w", err)}
			return
		}
		ncc, chans, reqs, err := cryptossh.NewClientConn(netConn, addr, cfg)
		if err != nil {
			netConn.Close()
			ch <- result{nil, fmt.Errorf("handshake through jump host: %w", err)}
			return
		}
		ch <- result{cryptossh.NewClient(ncc, chans, reqs), nil}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, classifyConnectError(r.err, false)
		}
		return r.client, nil
	}
}

// NewSession opens a fresh SSH session channel for one command invocation.
// Every command gets its own channel; the underlying *ssh.Client connection
// is shared across concurrent commands.
func (s *Session) NewSession() (*cryptossh.Session, error) {
	if s.client == nil {
		return nil, errNotConnected
	}
	return s.client.NewSession()
}

// probe runs a cheap no-op command to distinguish a healthy cached session
// from one whose transport has silently died, per spec §4.1 step 2.
func (s *Session) probe(ctx context.Context) error {
	sentinel := fmt.Sprintf("alive-%d", time.Now().UnixNano())
	sess, err := s.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	out, err := sess.CombinedOutput("echo " + sentinel)
	if err != nil {
		return err
	}
	if !strings.Contains(string(out), sentinel) {
		return fmt.Errorf("liveness probe: unexpected output %q", string(out))
	}
	return nil
}

// Close tears down the underlying SSH connection. Only called by the Pool.
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// probeWithTimeout bounds the liveness probe to livenessTimeout.
func (s *Session) probeWithTimeout(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, livenessTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.probe(ctx) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
