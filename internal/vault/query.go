package vault

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
)

// 字段与操作符
const (
	FieldDeletionDate    = "deletionDate"
	FieldDeliveryDate    = "deliveryDate"
	FieldRecipients      = "recipients"
	FieldSender          = "sender"
	FieldHasAttachment   = "hasAttachment"
	FieldOriginMailboxes = "originMailboxes"
	FieldSubject         = "subject"

	OpEquals             = "equals"
	OpEqualsIgnoreCase   = "equalsIgnoreCase"
	OpContains           = "contains"
	OpContainsIgnoreCase = "containsIgnoreCase"
	OpBeforeOrEquals     = "beforeOrEquals"
	OpAfterOrEquals      = "afterOrEquals"

	CombinatorAnd = "and"
)

var allowedOperators = map[string][]string{
	FieldDeletionDate:    {OpBeforeOrEquals, OpAfterOrEquals},
	FieldDeliveryDate:    {OpBeforeOrEquals, OpAfterOrEquals},
	FieldRecipients:      {OpContains},
	FieldSender:          {OpEquals},
	FieldHasAttachment:   {OpEquals},
	FieldOriginMailboxes: {OpContains},
	FieldSubject:         {OpEquals, OpEqualsIgnoreCase, OpContains, OpContainsIgnoreCase},
}

// Criterion 单个条件，Value 始终以字符串传输
type Criterion struct {
	FieldName string `json:"fieldName"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
}

// Query 条件组合；目前只支持 and，空条件匹配全部
type Query struct {
	Combinator string      `json:"combinator,omitempty"`
	Criteria   []Criterion `json:"criteria"`
}

// MatchAll 匹配全部邮件的查询
func MatchAll() Query {
	return Query{Combinator: CombinatorAnd, Criteria: []Criterion{}}
}

// Validate 检查字段、操作符与值是否合法
func (q Query) Validate() error {
	if q.Combinator != "" && q.Combinator != CombinatorAnd {
		return fmt.Errorf("unsupported combinator %q", q.Combinator)
	}
	for _, c := range q.Criteria {
		ops, ok := allowedOperators[c.FieldName]
		if !ok {
			return fmt.Errorf("unsupported field %q", c.FieldName)
		}
		if !slices.Contains(ops, c.Operator) {
			return fmt.Errorf("operator %q not supported for field %q", c.Operator, c.FieldName)
		}
		if err := validateValue(c); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(c Criterion) error {
	switch c.FieldName {
	case FieldDeletionDate, FieldDeliveryDate:
		if _, err := time.Parse(time.RFC3339, c.Value); err != nil {
			return fmt.Errorf("field %s expects an RFC3339 date: %w", c.FieldName, err)
		}
	case FieldHasAttachment:
		if _, err := strconv.ParseBool(c.Value); err != nil {
			return fmt.Errorf("field %s expects a boolean: %w", c.FieldName, err)
		}
	}
	return nil
}

// Matches 所有条件都满足时返回 true；调用前需 Validate
func (q Query) Matches(m DeletedMessage) bool {
	for _, c := range q.Criteria {
		if !c.matches(m) {
			return false
		}
	}
	return true
}

func (c Criterion) matches(m DeletedMessage) bool {
	switch c.FieldName {
	case FieldDeletionDate:
		return compareDate(m.DeletionDate, c)
	case FieldDeliveryDate:
		return compareDate(m.InternalDate, c)
	case FieldRecipients:
		return slices.ContainsFunc(m.To, func(r string) bool { return strings.EqualFold(r, c.Value) })
	case FieldSender:
		return strings.EqualFold(m.From, c.Value)
	case FieldHasAttachment:
		want, _ := strconv.ParseBool(c.Value)
		return m.HasAttachment == want
	case FieldOriginMailboxes:
		return slices.Contains(m.OriginMailboxes, mailbox.ID(c.Value))
	case FieldSubject:
		return compareString(m.Subject, c)
	}
	return false
}

func compareDate(t time.Time, c Criterion) bool {
	ref, err := time.Parse(time.RFC3339, c.Value)
	if err != nil {
		return false
	}
	if c.Operator == OpBeforeOrEquals {
		return !t.After(ref)
	}
	return !t.Before(ref)
}

func compareString(s string, c Criterion) bool {
	switch c.Operator {
	case OpEquals:
		return s == c.Value
	case OpEqualsIgnoreCase:
		return strings.EqualFold(s, c.Value)
	case OpContains:
		return strings.Contains(s, c.Value)
	case OpContainsIgnoreCase:
		return strings.Contains(strings.ToLower(s), strings.ToLower(c.Value))
	}
	return false
}
