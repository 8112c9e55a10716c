// Package search 邮件全文索引。
package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
)

// Indexer 重建索引任务使用的索引能力
type Indexer interface {
	Index(ctx context.Context, msg mailbox.Message) error
	Delete(ctx context.Context, mailboxID mailbox.ID, uid mailbox.MessageUID) error
}

// document 写入 bleve 的文档
type document struct {
	MailboxID string    `json:"mailboxId"`
	UID       int64     `json:"uid"`
	MessageID string    `json:"messageId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Date      time.Time `json:"date"`
}

// DocID 文档 ID：<mailboxId>:<uid>
func DocID(mailboxID mailbox.ID, uid mailbox.MessageUID) string {
	return fmt.Sprintf("%s:%d", mailboxID, uid)
}

// BleveIndexer 基于 bleve 的索引
type BleveIndexer struct {
	index bleve.Index
}

func newMapping() mapping.IndexMapping {
	keyword := bleve.NewKeywordFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("mailboxId", keyword)
	doc.AddFieldMappingsAt("messageId", keyword)
	doc.AddFieldMappingsAt("uid", bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt("date", bleve.NewDateTimeFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// NewMemIndexer 内存索引，进程退出后丢失
func NewMemIndexer() (*BleveIndexer, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("create in-memory index: %w", err)
	}
	return &BleveIndexer{index: idx}, nil
}

// OpenIndexer 打开磁盘上的索引，不存在时创建
func OpenIndexer(path string) (*BleveIndexer, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, newMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &BleveIndexer{index: idx}, nil
}

// NewIndexer path 为空时使用内存索引
func NewIndexer(path string) (*BleveIndexer, error) {
	if strings.TrimSpace(path) == "" {
		return NewMemIndexer()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return OpenIndexer(path)
}

func (b *BleveIndexer) Index(ctx context.Context, msg mailbox.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := document{
		MailboxID: msg.MailboxID.String(),
		UID:       int64(msg.UID),
		MessageID: msg.MessageID.String(),
		From:      msg.From,
		To:        strings.Join(msg.To, ", "),
		Subject:   msg.Subject,
		Body:      msg.Body,
		Date:      msg.InternalDate,
	}
	if err := b.index.Index(DocID(msg.MailboxID, msg.UID), doc); err != nil {
		return fmt.Errorf("index message %s: %w", DocID(msg.MailboxID, msg.UID), err)
	}
	return nil
}

func (b *BleveIndexer) Delete(ctx context.Context, mailboxID mailbox.ID, uid mailbox.MessageUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.index.Delete(DocID(mailboxID, uid))
}

// Search query string 查询，返回命中的文档 ID
func (b *BleveIndexer) Search(ctx context.Context, query string, size int) ([]string, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), size, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	out := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.ID)
	}
	return out, nil
}

// Count 索引中的文档数
func (b *BleveIndexer) Count() (uint64, error) {
	return b.index.DocCount()
}

func (b *BleveIndexer) Close() error {
	return b.index.Close()
}

var _ Indexer = (*BleveIndexer)(nil)
