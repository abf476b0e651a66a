package exec

import (
	"errors"
	"testing"

	cryptossh "golang.org/x/crypto/ssh"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
)

func TestBuildConnectorMode(t *testing.T) {
	t.Run("no jump spec is direct mode", func(t *testing.T) {
		row := model.Row{RowID: "A", IP: "10.0.0.1", User: "u", Password: "p", Port: 22}
		conn := buildConnector(nil, row)
		if conn.mode != modeDirect {
			t.Errorf("got mode %q, want %q", conn.mode, modeDirect)
		}
		if conn.jump != nil {
			t.Error("expected nil jump credentials in direct mode")
		}
	})

	t.Run("jump disabled is direct mode", func(t *testing.T) {
		row := model.Row{RowID: "A", IP: "10.0.0.1", User: "u", Jump: &model.JumpSpec{Enabled: false}}
		conn := buildConnector(nil, row)
		if conn.mode != modeDirect {
			t.Errorf("got mode %q, want %q", conn.mode, modeDirect)
		}
	})

	t.Run("jump enabled is jump mode with bastion creds", func(t *testing.T) {
		row := model.Row{
			RowID: "A", IP: "10.0.0.1", User: "u", Port: 22,
			Jump: &model.JumpSpec{Enabled: true, IP: "bastion", User: "ops", Port: 2222},
		}
		conn := buildConnector(nil, row)
		if conn.mode != modeJump {
			t.Errorf("got mode %q, want %q", conn.mode, modeJump)
		}
		if conn.jump == nil || conn.jump.Host != "bastion" || conn.jump.User != "ops" || conn.jump.Port != 2222 {
			t.Errorf("unexpected jump credentials: %+v", conn.jump)
		}
	})
}

func TestToPersistedResultNeverCarriesPassword(t *testing.T) {
	row := model.Row{RowID: "A", IP: "10.0.0.1", User: "u", Password: "super-secret", Port: 22}
	status := 0
	outcome := model.Outcome{RowID: "A", Command: "echo hi", Output: "hi", ExitStatus: &status}

	pr := toPersistedResult(row, "echo hi", outcome)

	if pr.Password != model.PasswordPlaceholder {
		t.Errorf("got password %q, want placeholder", pr.Password)
	}
	if pr.Output != "hi" || pr.Command != "echo hi" || pr.IP != "10.0.0.1" {
		t.Errorf("unexpected persisted result: %+v", pr)
	}
	if pr.ExitStatus == nil || *pr.ExitStatus != 0 {
		t.Errorf("expected exit status 0, got %v", pr.ExitStatus)
	}
}

func TestNormalizeExitStatus(t *testing.T) {
	t.Run("nil error means success", func(t *testing.T) {
		status := normalizeExitStatus(nil)
		if status == nil || *status != 0 {
			t.Errorf("got %v, want 0", status)
		}
	})

	t.Run("non-exit error yields nil status", func(t *testing.T) {
		status := normalizeExitStatus(errors.New("boom"))
		if status != nil {
			t.Errorf("got %v, want nil", status)
		}
	})
}

func TestIgnoreExitErrorPassesThroughNonExitErrors(t *testing.T) {
	err := errors.New("connection reset")
	if got := ignoreExitError(err); got != err {
		t.Errorf("got %v, want original error", got)
	}
	if got := ignoreExitError(nil); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestIgnoreExitErrorSwallowsExitError(t *testing.T) {
	err := &cryptossh.ExitError{}
	if got := ignoreExitError(err); got != nil {
		t.Errorf("got %v, want nil (non-zero exit is a successful outcome)", got)
	}
}
