// Package remote fetches firmware images from SFTP hosts, so a DFU flash
// can be driven straight from a build server without a local copy.
package remote

import (
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Host is one SFTP endpoint. Password and KeyFile are alternative auth
// methods; KeyFile wins when both are set. Host key checking uses
// KnownHostsFile when present, then TrustedKey, and is skipped when
// neither is configured.
type Host struct {
	Server         string
	Port           string
	User           string
	Password       string
	KeyFile        string
	TrustedKey     string
	KnownHostsFile string
}

func (h Host) addr() string {
	port := h.Port
	if port == "" {
		port = "22"
	}
	return net.JoinHostPort(h.Server, port)
}

func (h Host) auth() ([]ssh.AuthMethod, error) {
	if h.KeyFile != "" {
		raw, err := os.ReadFile(h.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return []ssh.AuthMethod{ssh.Password(h.Password)}, nil
}

func (h Host) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if h.KnownHostsFile != "" {
		return knownhosts.New(h.KnownHostsFile)
	}
	return trustedHostKeyCallback(h.TrustedKey), nil
}

func dial(host Host) (*ssh.Client, *sftp.Client, error) {
	auth, err := host.auth()
	if err != nil {
		return nil, nil, err
	}
	callback, err := host.hostKeyCallback()
	if err != nil {
		return nil, nil, err
	}

	conn, err := ssh.Dial("tcp", host.addr(), &ssh.ClientConfig{
		User:            host.User,
		Auth:            auth,
		HostKeyCallback: callback,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", host.addr(), err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("sftp session: %w", err)
	}
	return conn, client, nil
}

// FetchFirmware downloads one firmware image, transparently gunzipping
// ".gz" files.
func FetchFirmware(host Host, remotePath string) ([]byte, error) {
	conn, client, err := dial(host)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	defer client.Close()

	file, err := client.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", remotePath, err)
	}
	defer file.Close()

	return readImage(remotePath, file)
}

// ListFirmware returns the firmware-looking files in a remote directory.
func ListFirmware(host Host, dir string) ([]string, error) {
	conn, client, err := dial(host)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	defer client.Close()

	entries, err := client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && isFirmwareName(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func readImage(name string, r io.Reader) ([]byte, error) {
	if filepath.Ext(name) == ".gz" {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", name, err)
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

var firmwareExtensions = []string{".bin", ".img", ".fw", ".dfu", ".hex"}

func isFirmwareName(name string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, ".gz"))
	for _, ext := range firmwareExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func trustedHostKeyCallback(trustedKey string) ssh.HostKeyCallback {
	if trustedKey == "" {
		return func(_ string, _ net.Addr, _ ssh.PublicKey) error {
			return nil
		}
	}

	return func(_ string, _ net.Addr, k ssh.PublicKey) error {
		if ks := keyString(k); trustedKey != ks {
			return fmt.Errorf("SSH-key verification: expected %q but got %q", trustedKey, ks)
		}
		return nil
	}
}

func keyString(k ssh.PublicKey) string {
	return k.Type() + " " + base64.StdEncoding.EncodeToString(k.Marshal())
}
