package postgres

import (
	"fmt"
	"net/url"
	"strings"
)

// validateDSN 只接受 URI 形式，且必须指定 host 与数据库名。
// 返回的错误不包含密码。
func validateDSN(dsn string) error {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return fmt.Errorf("invalid POSTGRES_DSN: empty")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid POSTGRES_DSN: not a URI")
	}
	switch {
	case u.Scheme != "postgres" && u.Scheme != "postgresql":
		return fmt.Errorf("invalid POSTGRES_DSN %s: scheme must be postgres:// or postgresql://", u.Redacted())
	case u.Host == "":
		return fmt.Errorf("invalid POSTGRES_DSN %s: missing host", u.Redacted())
	case strings.Trim(u.Path, "/") == "":
		return fmt.Errorf("invalid POSTGRES_DSN %s: missing database name", u.Redacted())
	}
	return nil
}
