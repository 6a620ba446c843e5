package ledger

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind 語句種類
type Kind uint8

const (
	KindSelect Kind = iota + 1
	KindInsert
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Statement 是解析後的語句。
// 支援的語法 (PartiQL 子集):
//
//	SELECT * | f1, f2 FROM table [alias] [WHERE key = ?]
//	INSERT INTO table VALUE ?
//	UPDATE table [alias] SET f1 = ?[, f2 = ?] WHERE key = ?
//	DELETE FROM table [alias] WHERE key = ?
type Statement struct {
	Kind  Kind
	Table string
	// Fields SELECT 的投影欄位，nil 代表 *
	Fields []string
	// Assign UPDATE 的 SET 欄位，依參數順序
	Assign []string
	// Key WHERE 條件欄位，空字串代表沒有條件
	Key string
}

// NumParams 語句需要的參數個數
func (s Statement) NumParams() int {
	switch s.Kind {
	case KindInsert:
		return 1
	case KindUpdate:
		return len(s.Assign) + 1
	default:
		if s.Key == "" {
			return 0
		}
		return 1
	}
}

// SyntaxError 無法解析的語句
type SyntaxError struct {
	Statement string
	Reason    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("ledger syntax: %s: %q", e.Reason, e.Statement)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Parse 解析語句
func Parse(statement string) (Statement, error) {
	p := &parser{src: statement, tokens: tokenize(statement)}
	if len(p.tokens) == 0 {
		return Statement{}, p.fail("empty statement")
	}

	var (
		st  Statement
		err error
	)
	switch strings.ToUpper(p.tokens[0]) {
	case "SELECT":
		st, err = p.parseSelect()
	case "INSERT":
		st, err = p.parseInsert()
	case "UPDATE":
		st, err = p.parseUpdate()
	case "DELETE":
		st, err = p.parseDelete()
	default:
		return Statement{}, p.fail("unsupported statement " + p.tokens[0])
	}
	if err != nil {
		return Statement{}, err
	}
	if !p.done() {
		return Statement{}, p.fail("unexpected token " + p.peek())
	}
	return st, nil
}

// CheckParams 驗證參數個數
func (s Statement) CheckParams(params []any) error {
	if len(params) != s.NumParams() {
		return fmt.Errorf("ledger: %s on %s expects %d params, got %d", s.Kind, s.Table, s.NumParams(), len(params))
	}
	return nil
}

func tokenize(s string) []string {
	s = strings.NewReplacer(",", " , ", "=", " = ").Replace(s)
	return strings.Fields(s)
}

type parser struct {
	src    string
	tokens []string
	pos    int
}

func (p *parser) fail(reason string) error {
	return &SyntaxError{Statement: p.src, Reason: reason}
}

func (p *parser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() string {
	if p.done() {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) keyword(kw string) bool {
	return strings.EqualFold(p.peek(), kw)
}

func (p *parser) expect(kw string) error {
	if !p.keyword(kw) {
		return p.fail(fmt.Sprintf("expected %s", kw))
	}
	p.next()
	return nil
}

// ident 讀取識別字，別名前綴 (b.balance) 會被去掉
func (p *parser) ident() (string, error) {
	t := p.peek()
	if !identPattern.MatchString(t) {
		return "", p.fail("expected identifier")
	}
	p.next()
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return t, nil
}

// table 讀取表名與可選的別名
func (p *parser) table() (string, error) {
	name, err := p.ident()
	if err != nil {
		return "", err
	}
	if p.keyword("AS") {
		p.next()
	}
	if !p.done() && !p.keyword("WHERE") && !p.keyword("SET") && identPattern.MatchString(p.peek()) {
		p.next()
	}
	return name, nil
}

// where 讀取 WHERE key = ?
func (p *parser) where() (string, error) {
	if err := p.expect("WHERE"); err != nil {
		return "", err
	}
	key, err := p.ident()
	if err != nil {
		return "", err
	}
	if err := p.expect("="); err != nil {
		return "", err
	}
	if err := p.expect("?"); err != nil {
		return "", err
	}
	return key, nil
}

func (p *parser) parseSelect() (Statement, error) {
	p.next()
	st := Statement{Kind: KindSelect}
	if p.peek() == "*" {
		p.next()
	} else {
		for {
			f, err := p.ident()
			if err != nil {
				return Statement{}, err
			}
			st.Fields = append(st.Fields, f)
			if p.peek() != "," {
				break
			}
			p.next()
		}
	}
	if err := p.expect("FROM"); err != nil {
		return Statement{}, err
	}
	table, err := p.table()
	if err != nil {
		return Statement{}, err
	}
	st.Table = table
	if p.keyword("WHERE") {
		if st.Key, err = p.where(); err != nil {
			return Statement{}, err
		}
	}
	return st, nil
}

func (p *parser) parseInsert() (Statement, error) {
	p.next()
	if err := p.expect("INTO"); err != nil {
		return Statement{}, err
	}
	table, err := p.ident()
	if err != nil {
		return Statement{}, err
	}
	if err := p.expect("VALUE"); err != nil {
		return Statement{}, err
	}
	if err := p.expect("?"); err != nil {
		return Statement{}, err
	}
	return Statement{Kind: KindInsert, Table: table}, nil
}

func (p *parser) parseUpdate() (Statement, error) {
	p.next()
	table, err := p.table()
	if err != nil {
		return Statement{}, err
	}
	st := Statement{Kind: KindUpdate, Table: table}
	if err := p.expect("SET"); err != nil {
		return Statement{}, err
	}
	for {
		f, err := p.ident()
		if err != nil {
			return Statement{}, err
		}
		if err := p.expect("="); err != nil {
			return Statement{}, err
		}
		if err := p.expect("?"); err != nil {
			return Statement{}, err
		}
		st.Assign = append(st.Assign, f)
		if p.peek() != "," {
			break
		}
		p.next()
	}
	if st.Key, err = p.where(); err != nil {
		return Statement{}, err
	}
	return st, nil
}

func (p *parser) parseDelete() (Statement, error) {
	p.next()
	if err := p.expect("FROM"); err != nil {
		return Statement{}, err
	}
	table, err := p.table()
	if err != nil {
		return Statement{}, err
	}
	key, err := p.where()
	if err != nil {
		return Statement{}, err
	}
	return Statement{Kind: KindDelete, Table: table, Key: key}, nil
}
