// internal/ssh/session.go

package ssh

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"sshTerm/internal/models"
	"sshTerm/internal/utils"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

const defaultDialTimeout = 15 * time.Second

// Geometry to początkowy rozmiar pseudoterminala.
type Geometry struct {
	Cols int
	Rows int
}

// protocolSession spina uwierzytelniony transport z jednym kanałem
// interaktywnym (PTY + powłoka). Tworzona w całości albo wcale -
// awaria na którymkolwiek kroku zamyka wszystko, co już otwarto.
type protocolSession struct {
	client  *ssh.Client
	jump    *ssh.Client // niepusty przy połączeniu przez jump host
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	stderr  io.Reader
}

// shellIO to operacje pętli połączenia na kanale interaktywnym.
type shellIO interface {
	write(p []byte) error
	windowChange(rows, cols int) error
}

func (p *protocolSession) write(b []byte) error {
	_, err := p.stdin.Write(b)
	return err
}

func (p *protocolSession) windowChange(rows, cols int) error {
	return p.session.WindowChange(rows, cols)
}

// keepAliveProbe wysyła pakiet keepalive na transporcie.
func (p *protocolSession) keepAliveProbe() error {
	_, _, err := p.client.SendRequest("keepalive@openssh.com", true, nil)
	return err
}

// close zamyka kanał i transport ("disconnect by application").
func (p *protocolSession) close() {
	if p.session != nil {
		_ = p.session.Close()
	}
	if p.client != nil {
		_ = p.client.Close()
	}
	if p.jump != nil {
		_ = p.jump.Close()
	}
}

// terminalModes jak w typowej konfiguracji klienta interaktywnego.
var terminalModes = ssh.TerminalModes{
	ssh.ECHO:          1,
	ssh.TTY_OP_ISPEED: 14400,
	ssh.TTY_OP_OSPEED: 14400,
}

// authMethodFor buduje metodę uwierzytelnienia z deskryptora.
// Zbiór trybów jest zamknięty - switch obsługuje oba warianty.
func authMethodFor(desc models.Session, secret string) (ssh.AuthMethod, error) {
	switch desc.AuthMode {
	case models.AuthPassword:
		return ssh.Password(secret), nil

	case models.AuthPublicKey:
		keyPath, err := utils.ExpandHome(desc.KeyPath)
		if err != nil {
			return nil, newError(KindKeyLoad, "failed to resolve key path", err)
		}
		raw, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, newError(KindKeyLoad, "failed to read private key", err)
		}
		var signer ssh.Signer
		if secret != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(raw, []byte(secret))
		} else {
			signer, err = ssh.ParsePrivateKey(raw)
		}
		if err != nil {
			return nil, newError(KindKeyLoad, "failed to parse private key", err)
		}
		return ssh.PublicKeys(signer), nil

	default:
		return nil, newError(KindAuth, fmt.Sprintf("unknown auth mode: %q", desc.AuthMode), nil)
	}
}

// parseJumpHost rozbija wpis "user@host:port"; brakujące części
// uzupełniane są użytkownikiem deskryptora i portem 22.
func parseJumpHost(spec, defaultUser string) (user, addr string) {
	user = defaultUser
	host := spec
	if i := strings.Index(spec, "@"); i >= 0 {
		user = spec[:i]
		host = spec[i+1:]
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "22")
	}
	return user, host
}

// dialSSH wykonuje handshake, uwierzytelnienie i otwarcie kanału
// interaktywnego z jawną geometrią początkową.
func dialSSH(desc models.Session, secret string, policy HostKeyPolicy, geo Geometry, termType string, log zerolog.Logger) (*protocolSession, error) {
	authMethod, err := authMethodFor(desc, secret)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := policy.Callback()
	if err != nil {
		return nil, newError(KindTransport, "host key policy unavailable", err)
	}

	cfg := &ssh.ClientConfig{
		User:            desc.Username,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: hostKeyCallback,
		Timeout:         defaultDialTimeout,
	}

	var client, jump *ssh.Client
	if desc.JumpHost != "" {
		jumpUser, jumpAddr := parseJumpHost(desc.JumpHost, desc.Username)
		jumpCfg := &ssh.ClientConfig{
			User:            jumpUser,
			Auth:            []ssh.AuthMethod{authMethod},
			HostKeyCallback: hostKeyCallback,
			Timeout:         defaultDialTimeout,
		}
		jump, err = ssh.Dial("tcp", jumpAddr, jumpCfg)
		if err != nil {
			return nil, classifyDialError(err)
		}
		netConn, derr := jump.Dial("tcp", desc.Addr())
		if derr != nil {
			jump.Close()
			return nil, newError(KindTransport, "failed to reach host via jump host", derr)
		}
		conn, chans, reqs, cerr := ssh.NewClientConn(netConn, desc.Addr(), cfg)
		if cerr != nil {
			netConn.Close()
			jump.Close()
			return nil, classifyDialError(cerr)
		}
		client = ssh.NewClient(conn, chans, reqs)
	} else {
		client, err = ssh.Dial("tcp", desc.Addr(), cfg)
		if err != nil {
			return nil, classifyDialError(err)
		}
	}

	p := &protocolSession{client: client, jump: jump}

	// Przekazywanie agenta jest best-effort - brak agenta nie
	// przerywa połączenia.
	var agentClient agent.ExtendedAgent
	if desc.AgentForwarding {
		agentClient = dialAgent(log)
		if agentClient != nil {
			if err := agent.ForwardToAgent(client, agentClient); err != nil {
				log.Warn().Err(err).Msg("failed to set up agent forwarding")
				agentClient = nil
			}
		}
	}

	session, err := client.NewSession()
	if err != nil {
		p.close()
		return nil, newError(KindChannel, "failed to open channel", err)
	}
	p.session = session

	if agentClient != nil {
		if err := agent.RequestAgentForwarding(session); err != nil {
			log.Warn().Err(err).Msg("agent forwarding request rejected")
		}
	}

	if p.stdin, err = session.StdinPipe(); err != nil {
		p.close()
		return nil, newError(KindChannel, "failed to open stdin pipe", err)
	}
	if p.stdout, err = session.StdoutPipe(); err != nil {
		p.close()
		return nil, newError(KindChannel, "failed to open stdout pipe", err)
	}
	if p.stderr, err = session.StderrPipe(); err != nil {
		p.close()
		return nil, newError(KindChannel, "failed to open stderr pipe", err)
	}

	if err := session.RequestPty(termType, geo.Rows, geo.Cols, terminalModes); err != nil {
		p.close()
		return nil, newError(KindChannel, "failed to request PTY", err)
	}

	if err := session.Shell(); err != nil {
		p.close()
		return nil, newError(KindChannel, "failed to start shell", err)
	}

	return p, nil
}

// dialAgent łączy się z lokalnym agentem SSH przez $SSH_AUTH_SOCK.
func dialAgent(log zerolog.Logger) agent.ExtendedAgent {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		log.Warn().Msg("agent forwarding requested but SSH_AUTH_SOCK is not set")
		return nil
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		log.Warn().Err(err).Msg("failed to reach local SSH agent")
		return nil
	}
	return agent.NewClient(conn)
}
