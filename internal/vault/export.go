package vault

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
)

// Exporter 把一批已删除邮件打包交付给 exportTo
type Exporter interface {
	Export(ctx context.Context, user mailbox.Username, exportTo *mail.Address, messages []DeletedMessage) (string, error)
}

// ZipExporter 把邮件写成 .eml 打进 zip，落在 Dir 下
type ZipExporter struct {
	Dir string
	Now func() time.Time
}

func NewZipExporter(dir string) *ZipExporter {
	return &ZipExporter{Dir: dir, Now: time.Now}
}

// Export 返回生成的 zip 路径
func (e *ZipExporter) Export(ctx context.Context, user mailbox.Username, exportTo *mail.Address, messages []DeletedMessage) (string, error) {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.zip", sanitize(user.String()), e.Now().UTC().Format("20060102T150405.000000000"))
	path := filepath.Join(e.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := writeZip(ctx, f, exportTo, messages); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

func writeZip(ctx context.Context, out io.Writer, exportTo *mail.Address, messages []DeletedMessage) error {
	zw := zip.NewWriter(out)
	if err := zw.SetComment("export for " + exportTo.String()); err != nil {
		return err
	}
	for i, m := range messages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("export interrupted: %w", err)
		}
		entry := fmt.Sprintf("%04d-%s.eml", i+1, sanitize(m.MessageID.String()))
		w, err := zw.Create(entry)
		if err != nil {
			return fmt.Errorf("add %s: %w", entry, err)
		}
		if _, err := w.Write(render(m)); err != nil {
			return fmt.Errorf("write %s: %w", entry, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

func render(m DeletedMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Message-ID: <%s>\r\n", m.MessageID)
	fmt.Fprintf(&b, "Date: %s\r\n", m.InternalDate.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(m.From))
	if len(m.To) > 0 {
		fmt.Fprintf(&b, "To: %s\r\n", headerValue(strings.Join(m.To, ", ")))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(m.Subject))
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

// headerValue 折叠 CR/LF，头部值只能占一行
func headerValue(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}

var _ Exporter = (*ZipExporter)(nil)
