package tsql

import (
	"fmt"

	"github.com/tinybase/tinybase/tsql/lexer"
)

// scanner buffers the lexer's token stream, dropping whitespace, and offers
// lookahead to the parser.
type scanner struct {
	tokens []lexer.Token
	pos    int
}

func newScanner(input string) (*scanner, error) {
	var tokens []lexer.Token

	for token := range lexer.NewLexer(input).Exec() {
		switch token.Kind {
		case lexer.TokenWhiteSpace:
			continue
		case lexer.TokenError:
			return nil, fmt.Errorf("lex error at %d: %s", token.Position, token.Text)
		}
		tokens = append(tokens, token)
	}

	return &scanner{tokens: tokens}, nil
}

func (s *scanner) peek() lexer.Token {
	if s.pos >= len(s.tokens) {
		return lexer.Token{Kind: lexer.TokenEOF}
	}
	return s.tokens[s.pos]
}

func (s *scanner) next() lexer.Token {
	token := s.peek()
	if s.pos < len(s.tokens) {
		s.pos++
	}
	return token
}

func (s *scanner) accept(kind lexer.Kind) bool {
	if s.peek().Kind == kind {
		s.pos++
		return true
	}
	return false
}

func (s *scanner) expect(kind lexer.Kind) (lexer.Token, error) {
	token := s.next()
	if token.Kind != kind {
		return token, fmt.Errorf("expected %s, found %s", kind, token)
	}
	return token, nil
}
