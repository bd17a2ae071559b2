package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// Uploader pushes a local file to remote storage and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, remotePath string) (string, error)
	Close() error
}

var pathReplacer = strings.NewReplacer(" ", "_", "(", "", ")", "", ",", "")

// SanitizePath makes a remote path safe for FTP and URLs.
func SanitizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimSpace(pathReplacer.Replace(p))
}

type FTPConfig struct {
	Addr        string
	User        string
	Password    string
	RemoteDir   string
	PublicURL   string
	StripPrefix string
	Timeout     time.Duration
}

// PublicURLFor maps a sanitized remote path to the URL it is served at.
func (c FTPConfig) PublicURLFor(remote string) string {
	remote = strings.TrimPrefix(remote, "/")
	remote = strings.TrimPrefix(remote, strings.TrimPrefix(c.StripPrefix, "/"))
	return strings.TrimSuffix(c.PublicURL, "/") + "/" + strings.TrimPrefix(remote, "/")
}

// FTPUploader holds one control connection. It is not safe for concurrent use.
type FTPUploader struct {
	conn    *ftp.ServerConn
	cfg     FTPConfig
	created map[string]struct{}
	logger  *slog.Logger
}

func DialFTP(ctx context.Context, cfg FTPConfig, logger *slog.Logger) (*FTPUploader, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := ftp.Dial(cfg.Addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ftp server: %w", err)
	}
	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("failed to login to ftp server: %w", err)
	}

	log := logger.With("component", "ftp", "addr", cfg.Addr)
	log.Info("connected to ftp server")
	return &FTPUploader{conn: conn, cfg: cfg, created: make(map[string]struct{}), logger: log}, nil
}

func (u *FTPUploader) Upload(ctx context.Context, localPath, remotePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	remote := strings.TrimPrefix(SanitizePath(remotePath), "/")
	if err := u.mkdirAll(path.Dir(remote)); err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	if err := u.conn.Stor(remote, f); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", remote, err)
	}
	u.logger.Info("uploaded file", "remote", remote)
	return u.cfg.PublicURLFor(remote), nil
}

func (u *FTPUploader) mkdirAll(dir string) error {
	if dir == "." || dir == "" || dir == "/" {
		return nil
	}
	current := ""
	for _, part := range strings.Split(dir, "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		if _, ok := u.created[current]; ok {
			continue
		}
		if err := u.conn.ChangeDir("/" + current); err != nil {
			if err := u.conn.MakeDir("/" + current); err != nil {
				return fmt.Errorf("failed to create remote directory %s: %w", current, err)
			}
			u.logger.Debug("created remote directory", "dir", current)
		}
		u.created[current] = struct{}{}
	}
	return u.conn.ChangeDir("/")
}

func (u *FTPUploader) Close() error {
	return u.conn.Quit()
}

// Link is one uploaded file and its public URL.
type Link struct {
	FileName string
	URL      string
}

// UploadDir uploads every file with one of exts under localDir, mirroring
// the directory layout below remoteDir. Failures are logged and skipped.
func UploadDir(ctx context.Context, up Uploader, localDir, remoteDir string, exts []string, logger *slog.Logger) ([]Link, error) {
	if logger == nil {
		logger = slog.Default()
	}
	want := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = struct{}{}
	}

	var links []Link
	err := filepath.WalkDir(localDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := want[strings.ToLower(filepath.Ext(p))]; !ok && len(want) > 0 {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		remote := path.Join(remoteDir, filepath.ToSlash(rel))
		url, err := up.Upload(ctx, p, remote)
		if err != nil {
			logger.Error("failed to upload image", "file", p, "error", err)
			return nil
		}
		links = append(links, Link{FileName: d.Name(), URL: url})
		return nil
	})
	if err != nil {
		return links, fmt.Errorf("failed to upload %s: %w", localDir, err)
	}
	return links, nil
}

var _ Uploader = (*FTPUploader)(nil)
