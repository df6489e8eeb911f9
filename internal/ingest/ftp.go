package ingest

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPSource reads weather files from a directory on an FTP mirror. Each call
// opens its own connection.
type FTPSource struct {
	addr     string
	dir      string
	user     string
	password string
	timeout  time.Duration
}

// NewFTPSource logs in anonymously when user is empty.
func NewFTPSource(addr, dir, user, password string) *FTPSource {
	if user == "" {
		user, password = "anonymous", "anonymous"
	}
	return &FTPSource{addr: addr, dir: dir, user: user, password: password, timeout: 30 * time.Second}
}

func (f *FTPSource) Name() string { return "ftp" }

func (f *FTPSource) dial(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(f.addr, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	if err := conn.Login(f.user, f.password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}
	return conn, nil
}

func (f *FTPSource) List(ctx context.Context) ([]string, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	entries, err := conn.List(f.dir)
	if err != nil {
		return nil, fmt.Errorf("ftp list %s: %w", f.dir, err)
	}
	var keys []string
	for _, e := range entries {
		if e.Type == ftp.EntryTypeFile {
			keys = append(keys, e.Name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FTPSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	resp, err := conn.Retr(path.Join(f.dir, key))
	if err != nil {
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
