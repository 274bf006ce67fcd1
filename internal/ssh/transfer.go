// internal/ssh/transfer.go

package ssh

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	scp "github.com/bramvdbogaerde/go-scp"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

const (
	transferChunkSize = 128 * 1024
	progressInterval  = 100 * time.Millisecond
)

// FileEntry opisuje element listingu zdalnego katalogu. Wpisy są
// tworzone świeżo przy każdym listingu - zdalny stan może się zmieniać
// poza naszą kontrolą, więc niczego nie cache'ujemy.
type FileEntry struct {
	Name    string
	IsDir   bool
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

// ProgressFunc raportuje postęp transferu (bajty dotychczas, razem).
// Wywoływana z ograniczoną częstotliwością, nigdy per bajt.
type ProgressFunc func(transferred, total int64)

// FileTransfer to sesja operacji na zdalnym systemie plików, otwarta
// nad już uwierzytelnionym transportem SSH. Awarie operacji są lokalne
// - nie wpływają na stan połączenia właściciela.
type FileTransfer struct {
	sftpClient *sftp.Client
	sshClient  *ssh.Client
	log        zerolog.Logger
}

// NewFileTransfer otwiera podsystem SFTP na istniejącym kliencie SSH.
func NewFileTransfer(client *ssh.Client, log zerolog.Logger) (*FileTransfer, error) {
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return nil, newError(KindChannel, "failed to open SFTP session", err)
	}
	return &FileTransfer{
		sftpClient: sftpClient,
		sshClient:  client,
		log:        log.With().Str("component", "transfer").Logger(),
	}, nil
}

// Close zamyka sesję SFTP; transport SSH pozostaje otwarty.
func (ft *FileTransfer) Close() error {
	return ft.sftpClient.Close()
}

// ioErr loguje awarię operacji zdalnej i opakowuje ją kategorią IO.
func (ft *FileTransfer) ioErr(message string, err error) *Error {
	ft.log.Warn().Err(err).Msg(message)
	return newError(KindIO, message, err)
}

// ListDirectory zwraca świeży listing katalogu. Kontrakt kolejności:
// katalogi przed plikami, w obrębie grupy leksykograficznie bez
// rozróżniania wielkości liter; poza korzeniem na początku syntetyczny
// wpis "..".
func (ft *FileTransfer) ListDirectory(dirPath string) ([]FileEntry, error) {
	infos, err := ft.sftpClient.ReadDir(dirPath)
	if err != nil {
		return nil, ft.ioErr("failed to list directory", err)
	}

	entries := make([]FileEntry, 0, len(infos)+1)
	for _, fi := range infos {
		if fi.Name() == "." || fi.Name() == ".." {
			continue
		}
		entries = append(entries, fileEntryFromInfo(fi.Name(), fi))
	}
	sortEntries(entries)

	if dirPath != "/" {
		parent := FileEntry{Name: "..", IsDir: true, Mode: fs.ModeDir | 0755}
		entries = append([]FileEntry{parent}, entries...)
	}
	return entries, nil
}

// HomeDir zwraca zdalny katalog startowy.
func (ft *FileTransfer) HomeDir() (string, error) {
	home, err := ft.sftpClient.Getwd()
	if err != nil {
		return "", ft.ioErr("failed to resolve home directory", err)
	}
	return home, nil
}

// Stat zwraca informacje o pojedynczej ścieżce.
func (ft *FileTransfer) Stat(remotePath string) (FileEntry, error) {
	fi, err := ft.sftpClient.Stat(remotePath)
	if err != nil {
		return FileEntry{}, ft.ioErr("failed to stat remote path", err)
	}
	return fileEntryFromInfo(path.Base(remotePath), fi), nil
}

// CreateDirectory tworzy katalog - jedna zdalna wymiana.
func (ft *FileTransfer) CreateDirectory(remotePath string) error {
	if err := ft.sftpClient.Mkdir(remotePath); err != nil {
		return ft.ioErr("failed to create directory", err)
	}
	return nil
}

// DeleteFile usuwa plik.
func (ft *FileTransfer) DeleteFile(remotePath string) error {
	if err := ft.sftpClient.Remove(remotePath); err != nil {
		return ft.ioErr("failed to delete file", err)
	}
	return nil
}

// DeleteDirectory usuwa pusty katalog.
func (ft *FileTransfer) DeleteDirectory(remotePath string) error {
	if err := ft.sftpClient.RemoveDirectory(remotePath); err != nil {
		return ft.ioErr("failed to delete directory", err)
	}
	return nil
}

// Rename zmienia nazwę lub przenosi plik albo katalog.
func (ft *FileTransfer) Rename(oldPath, newPath string) error {
	if err := ft.sftpClient.Rename(oldPath, newPath); err != nil {
		return ft.ioErr("failed to rename", err)
	}
	return nil
}

// Download pobiera cały plik. Transfer jest dzielony na porcje, żeby
// raportować postęp i reagować na anulowanie kontekstu.
func (ft *FileTransfer) Download(ctx context.Context, remotePath, localPath string, progress ProgressFunc) error {
	src, err := ft.sftpClient.Open(remotePath)
	if err != nil {
		return ft.ioErr("failed to open remote file", err)
	}
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return ft.ioErr("failed to stat remote file", err)
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return ft.ioErr("failed to create local file", err)
	}
	defer dst.Close()

	rep := newProgressReporter(fi.Size(), progress)
	if err := copyChunks(ctx, dst, src, rep); err != nil {
		ft.log.Warn().Err(err).Msg("transfer aborted")
		return err
	}
	if err := dst.Sync(); err != nil {
		return ft.ioErr("failed to sync local file", err)
	}
	rep.flush()
	return nil
}

// Upload wysyła cały plik na serwer.
func (ft *FileTransfer) Upload(ctx context.Context, localPath, remotePath string, progress ProgressFunc) error {
	src, err := os.Open(localPath)
	if err != nil {
		return ft.ioErr("failed to open local file", err)
	}
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return ft.ioErr("failed to stat local file", err)
	}

	dst, err := ft.sftpClient.Create(remotePath)
	if err != nil {
		return ft.ioErr("failed to create remote file", err)
	}
	defer dst.Close()

	rep := newProgressReporter(fi.Size(), progress)
	if err := copyChunks(ctx, dst, src, rep); err != nil {
		ft.log.Warn().Err(err).Msg("transfer aborted")
		return err
	}
	rep.flush()
	return nil
}

// UploadSCP wysyła plik przez scp - ścieżka awaryjna dla hostów bez
// podsystemu SFTP.
func (ft *FileTransfer) UploadSCP(ctx context.Context, localPath, remotePath string, progress ProgressFunc) error {
	client, err := scp.NewClientBySSH(ft.sshClient)
	if err != nil {
		return ft.ioErr("failed to open SCP session", err)
	}
	defer client.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return ft.ioErr("failed to open local file", err)
	}
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return ft.ioErr("failed to stat local file", err)
	}

	rep := newProgressReporter(fi.Size(), progress)
	err = client.CopyFilePassThru(ctx, src, remotePath, "0644", passThruFor(rep))
	if err != nil {
		return ft.ioErr("failed to copy file over SCP", err)
	}
	rep.flush()
	return nil
}

// DownloadSCP pobiera plik przez scp.
func (ft *FileTransfer) DownloadSCP(ctx context.Context, remotePath, localPath string, progress ProgressFunc) error {
	client, err := scp.NewClientBySSH(ft.sshClient)
	if err != nil {
		return ft.ioErr("failed to open SCP session", err)
	}
	defer client.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return ft.ioErr("failed to create local file", err)
	}
	defer dst.Close()

	rep := newProgressReporter(0, progress)
	err = client.CopyFromRemotePassThru(ctx, dst, remotePath, passThruFor(rep))
	if err != nil {
		return ft.ioErr("failed to copy file over SCP", err)
	}
	rep.flush()
	return nil
}

func fileEntryFromInfo(name string, fi os.FileInfo) FileEntry {
	return FileEntry{
		Name:    name,
		IsDir:   fi.IsDir(),
		Size:    fi.Size(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
	}
}

// sortEntries porządkuje listing: katalogi przed plikami, w obrębie
// grupy alfabetycznie bez rozróżniania wielkości liter.
func sortEntries(entries []FileEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}

// copyChunks kopiuje dane porcjami, sprawdzając anulowanie pomiędzy
// porcjami i raportując postęp.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, rep *progressReporter) error {
	buf := make([]byte, transferChunkSize)
	for {
		select {
		case <-ctx.Done():
			return newError(KindIO, "transfer cancelled", ctx.Err())
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			written, werr := dst.Write(buf[:n])
			if werr != nil {
				return newError(KindIO, "failed to write file data", werr)
			}
			if written != n {
				return newError(KindIO, "incomplete write", io.ErrShortWrite)
			}
			rep.add(n)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return newError(KindIO, "failed to read file data", err)
		}
	}
}

// progressReporter dławi wywołania callbacku postępu do rozsądnej
// częstotliwości; flush wymusza raport końcowy.
type progressReporter struct {
	total       int64
	transferred int64
	last        time.Time
	fn          ProgressFunc
}

func newProgressReporter(total int64, fn ProgressFunc) *progressReporter {
	return &progressReporter{total: total, fn: fn}
}

func (p *progressReporter) add(n int) {
	p.transferred += int64(n)
	if p.fn == nil {
		return
	}
	if time.Since(p.last) >= progressInterval {
		p.fn(p.transferred, p.total)
		p.last = time.Now()
	}
}

func (p *progressReporter) flush() {
	if p.fn != nil {
		p.fn(p.transferred, p.total)
	}
}

// passThruFor spina raportera postępu z interfejsem PassThru go-scp.
func passThruFor(rep *progressReporter) scp.PassThru {
	return func(r io.Reader, total int64) io.Reader {
		rep.total = total
		return &passThruReader{r: r, rep: rep}
	}
}

type passThruReader struct {
	r   io.Reader
	rep *progressReporter
}

func (pt *passThruReader) Read(p []byte) (int, error) {
	n, err := pt.r.Read(p)
	if n > 0 {
		pt.rep.add(n)
	}
	return n, err
}
