package dapclient

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/go-dap"
)

// Signer produces a handshake signature for a challenge string. Adapters
// that require a signed handshake send a reverse `handshake` request
// carrying the challenge; the driver must locate a platform-local signer
// tool and return its output, or fall back to an empty signature if none
// is found (spec §9, signed-handshake Open Question).
type Signer interface {
	Sign(challenge string) (string, error)
}

// defaultSigner shells out to the first signer binary it finds on a
// fixed list of platform-conventional install locations. It never
// returns an error: a missing or failing signer yields an empty
// signature, letting the adapter decide whether to proceed.
type defaultSigner struct {
	candidates []string
}

// NewDefaultSigner builds a Signer that searches well-known per-platform
// install paths for a signing helper named "dap-signer", falling back
// silently to an empty signature.
func NewDefaultSigner() Signer {
	var candidates []string
	if exe, err := exec.LookPath("dap-signer"); err == nil {
		candidates = append(candidates, exe)
	}

	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		candidates = append(candidates,
			filepath.Join(os.Getenv("LOCALAPPDATA"), "dap-signer", "dap-signer.exe"),
		)
	case "darwin":
		candidates = append(candidates,
			"/usr/local/bin/dap-signer",
			filepath.Join(home, ".dap-signer", "dap-signer"),
		)
	default:
		candidates = append(candidates,
			"/usr/bin/dap-signer",
			"/usr/local/bin/dap-signer",
			filepath.Join(home, ".local", "bin", "dap-signer"),
		)
	}

	return &defaultSigner{candidates: candidates}
}

func (s *defaultSigner) Sign(challenge string) (string, error) {
	for _, path := range s.candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		out, err := exec.Command(path, challenge).Output()
		if err != nil {
			continue
		}
		return strings.TrimSpace(string(out)), nil
	}
	// No signer found anywhere on the search path; proceed unsigned.
	return "", nil
}

// handleHandshake answers the adapter's reverse `handshake` request. A
// signing failure is never fatal: it degrades to an empty signature
// rather than aborting the session.
func (c *Client) handleHandshake(m dap.Message) {
	req, ok := m.(dap.RequestMessage)
	if !ok {
		return
	}
	r := req.GetRequest()

	var envelope struct {
		Arguments struct {
			Value string `json:"value"`
		} `json:"arguments"`
	}
	if raw, err := json.Marshal(m); err == nil {
		_ = json.Unmarshal(raw, &envelope)
	}
	args := envelope.Arguments

	signature, err := c.signer.Sign(args.Value)
	if err != nil {
		c.log.WithError(err).Debug("dapclient: handshake signer failed, proceeding unsigned")
	}

	_ = c.parent.SendResponse(r.Seq, r.Command, true, map[string]string{"signature": signature}, "")
}
