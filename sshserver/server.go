package sshserver

import (
	"context"
	"errors"
	"io"
	"net"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"

	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/internal/eventbus"
	"pkt.systems/chimerax/internal/logx"
	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

// CommandHandler routes slash commands.
type CommandHandler interface {
	Handle(ctx context.Context, userID schema.UserID, tabID schema.TabID, input string) (bool, error)
}

// LoginAuthStore validates SSH login credentials and supports password
// changes from within a session.
type LoginAuthStore interface {
	HasLoginPubKey(userID schema.UserID, key ssh.PublicKey) (bool, error)
	ValidateTOTP(username string, totpCode string) error
	ChangePassword(username, currentPassword, totpCode, newPassword string) error
}

// Server exposes chimerax over SSH. Login requires a registered public
// key followed by a TOTP code; password auth is never offered.
type Server struct {
	Addr        string
	HostKeyPath string
	Listener    net.Listener
	Service     core.Service
	Handler     CommandHandler
	IdlePrompt  string
	AuthStore   LoginAuthStore
	EventBus    *eventbus.Bus
	logger      pslog.Logger
}

type pubkeyVerifiedKey struct{}

// ListenAndServe starts the SSH server and shuts down on context
// cancellation. A nil Listener binds Addr.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.IdlePrompt == "" {
		s.IdlePrompt = "> "
	}
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.AuthStore == nil {
		return errors.New("auth store is required for SSH")
	}

	signer, err := EnsureHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}
	server := &gliderssh.Server{
		Addr:                       s.Addr,
		Handler:                    s.handleSession,
		PublicKeyHandler:           s.handlePublicKey,
		KeyboardInteractiveHandler: s.handleKeyboardInteractive,
	}
	server.AddHostKey(signer)

	serveErr := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			serveErr <- server.Serve(s.Listener)
			return
		}
		serveErr <- server.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-serveErr:
		return err
	}
}

func (s *Server) log(ctx context.Context) pslog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return pslog.Ctx(ctx)
}

// connLog attaches the standard connection fields, skipping blanks.
func connLog(log pslog.Logger, userID schema.UserID, remote, sshSession string) pslog.Logger {
	if userID != "" {
		log = log.With("user", userID)
	}
	if remote != "" {
		log = log.With("remote", remote)
	}
	if sshSession != "" {
		log = log.With("ssh_session", sshSession)
	}
	return log
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

// handlePublicKey records a matching login key on the connection
// context but still returns false so the TOTP keyboard-interactive
// step always runs. Returning true here would skip the second factor.
func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	userID := schema.UserID(ctx.User())
	log := connLog(s.log(ctx), userID, remoteAddr(ctx), ctx.SessionID()).
		With("fingerprint", ssh.FingerprintSHA256(key))
	if userID == "" {
		log.Warn("ssh pubkey rejected", "reason", "missing user")
		return false
	}
	ok, err := s.AuthStore.HasLoginPubKey(userID, key)
	switch {
	case err != nil:
		log.Warn("ssh pubkey rejected", "err", err)
	case !ok:
		log.Warn("ssh pubkey rejected", "reason", "no matching key")
	default:
		ctx.SetValue(pubkeyVerifiedKey{}, true)
		log.Info("ssh pubkey accepted")
	}
	return false
}

// handleKeyboardInteractive prompts for the TOTP code. It only runs
// the challenge when the public key step already matched.
func (s *Server) handleKeyboardInteractive(ctx gliderssh.Context, challenger ssh.KeyboardInteractiveChallenge) bool {
	if ctx.Value(pubkeyVerifiedKey{}) != true {
		return false
	}
	log := connLog(s.log(ctx), schema.UserID(ctx.User()), remoteAddr(ctx), ctx.SessionID())
	answers, err := challenger(ctx.User(), "", []string{"Verification code: "}, []bool{false})
	if err != nil {
		log.Warn("ssh totp rejected", "reason", "challenge failed", "err", err)
		return false
	}
	if len(answers) != 1 {
		log.Warn("ssh totp rejected", "reason", "invalid answer count", "count", len(answers))
		return false
	}
	if err := s.AuthStore.ValidateTOTP(ctx.User(), answers[0]); err != nil {
		log.Warn("ssh totp rejected", "reason", "invalid code", "err", err)
		return false
	}
	log.Info("ssh totp accepted")
	return true
}

func (s *Server) handleSession(sess gliderssh.Session) {
	userID := schema.UserID(sess.User())
	remote := sess.RemoteAddr().String()
	log := connLog(s.log(sess.Context()), userID, remote, sess.Context().SessionID())
	if userID == "" {
		log.Info("ssh session rejected", "reason", "missing user")
		_, _ = io.WriteString(sess, "missing user\n")
		return
	}
	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		return
	}
	log.Info("ssh session opened", "term", pty.Term)

	var events <-chan eventbus.Event
	if s.EventBus != nil {
		var unsubscribe func()
		events, unsubscribe = s.EventBus.Subscribe(userID)
		defer unsubscribe()
	}
	ctx := logx.ContextWithUserLogger(sess.Context(), log, userID)
	ui := newTerminalSession(sess, s.Service, s.Handler, s.AuthStore, userID, s.IdlePrompt, events)
	ui.SetSize(pty.Window.Width, pty.Window.Height)
	_ = ui.Run(ctx, winCh)
	log.Info("ssh session closed", "term", pty.Term)
}
