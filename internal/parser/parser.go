package parser

import (
	"fmt"
	"strconv"

	"nbfc/internal/ast"
	"nbfc/internal/lexer"
	"nbfc/internal/token"
)

// Parser is a recursive-descent parser over the NBF grammar. Expression
// parsing follows a fixed precedence-climbing chain (assignment -> logic_or
// -> logic_and -> equality -> comparison -> addition -> multiplication ->
// unary -> primary) rather than a generic Pratt table, since the grammar's
// operator set is small and fixed.
type Parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	errors []string
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:      l,
		errors: []string{},
	}

	// Read two tokens, so curToken and peekToken are both set.
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) peekError(t token.TokenType) {
	msg := fmt.Sprintf("[%d:%d] SyntaxError: expected %s, found %s",
		p.peekToken.Line, p.peekToken.Column, t.Display(), p.peekToken.Type.Display())
	p.errors = append(p.errors, msg)
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf("[%d:%d] SyntaxError: ", p.curToken.Line, p.curToken.Column)+fmt.Sprintf(format, args...))
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.TokenType) bool { return p.peekToken.Type == t }

// expectPeek advances past peekToken if it matches t, else records an error
// and leaves the cursor where it was.
func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

// ParseProgram parses every top-level function and, if the source contains
// bare statements at top level, synthesises a main() wrapping them (unless
// the source already defines main, in which case bare top-level statements
// are a syntax error - see DESIGN.md).
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	var topLevel []ast.Statement
	haveMain := false

	for !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.FUN) {
			fn := p.parseFunction()
			if fn != nil {
				if fn.Name == "main" {
					haveMain = true
				}
				program.Functions = append(program.Functions, fn)
			}
		} else {
			stmt := p.parseDeclaration()
			if stmt != nil {
				topLevel = append(topLevel, stmt)
			}
		}
		p.nextToken()
	}

	if len(topLevel) > 0 {
		if haveMain {
			p.errors = append(p.errors, "bare statements are not allowed at top level when main() is already defined")
		} else {
			program.Functions = append(program.Functions, &ast.FunctionDecl{
				Token: token.Token{Type: token.FUN, Literal: "fun"},
				Name:  "main",
				Body:  &ast.Block{Statements: topLevel},
			})
		}
	}

	return program
}

func (p *Parser) parseFunction() *ast.FunctionDecl {
	tok := p.curToken // 'fun'
	if !p.expectPeek(token.IDENTIFIER) {
		return nil
	}
	name := p.curToken.Literal

	if !p.expectPeek(token.LEFT_PAREN) {
		return nil
	}

	var params []string
	if !p.peekTokenIs(token.RIGHT_PAREN) {
		p.nextToken()
		params = append(params, p.curToken.Literal)
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			params = append(params, p.curToken.Literal)
		}
	}
	if !p.expectPeek(token.RIGHT_PAREN) {
		return nil
	}
	if !p.expectPeek(token.LEFT_BRACE) {
		return nil
	}

	body := p.parseBlock()
	return &ast.FunctionDecl{Token: tok, Name: name, Parameters: params, Body: body}
}

// parseBlock assumes curToken is the opening '{' and leaves curToken on '}'.
func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{Token: p.curToken}
	p.nextToken()

	for !p.curTokenIs(token.RIGHT_BRACE) && !p.curTokenIs(token.EOF) {
		stmt := p.parseDeclaration()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	return block
}

func (p *Parser) parseDeclaration() ast.Statement {
	if p.curTokenIs(token.VAR) {
		return p.parseVarDeclaration()
	}
	return p.parseStatement()
}

func (p *Parser) parseVarDeclaration() ast.Statement {
	tok := p.curToken // 'var'
	if !p.expectPeek(token.IDENTIFIER) {
		return nil
	}
	name := p.curToken.Literal

	size := 1
	if p.peekTokenIs(token.LEFT_SQUARE_BRACKET) {
		p.nextToken()
		if !p.expectPeek(token.NUMBER) {
			return nil
		}
		size = p.parseNumberLiteral(p.curToken.Literal)
		if !p.expectPeek(token.RIGHT_SQUARE_BRACKET) {
			return nil
		}
	}

	var init []ast.Expression
	if p.peekTokenIs(token.EQUAL) {
		p.nextToken()
		if p.peekTokenIs(token.STRING) {
			p.nextToken()
			for _, c := range []byte(p.curToken.Literal) {
				init = append(init, &ast.Literal{Token: p.curToken, Value: int(c)})
			}
			init = append(init, &ast.Literal{Token: p.curToken, Value: 0})
		} else {
			p.nextToken()
			init = append(init, p.parseExpression())
			for p.peekTokenIs(token.COMMA) {
				p.nextToken()
				p.nextToken()
				init = append(init, p.parseExpression())
			}
		}
	}

	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}

	if len(init) > 0 && len(init) != size {
		p.errorf("variable size (%d) does not match initializer list size (%d)", size, len(init))
		return nil
	}

	return &ast.VarDeclaration{Token: tok, Name: name, Size: size, Initializer: init}
}

func (p *Parser) parseStatement() ast.Statement {
	switch {
	case p.curTokenIs(token.IF):
		return p.parseIfStatement()
	case p.curTokenIs(token.PUTC):
		return p.parsePutc()
	case p.curTokenIs(token.IDENTIFIER) && p.peekTokenIs(token.LEFT_PAREN):
		return p.parseCallStatement()
	case p.curTokenIs(token.WHILE):
		return p.parseWhileStatement()
	case p.curTokenIs(token.LEFT_BRACE):
		return p.parseBlock()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseIfStatement() ast.Statement {
	tok := p.curToken
	if !p.expectPeek(token.LEFT_PAREN) {
		return nil
	}
	p.nextToken()
	cond := p.parseExpression()
	if !p.expectPeek(token.RIGHT_PAREN) {
		return nil
	}
	p.nextToken()
	thenBranch := p.parseStatement()

	var elseBranch ast.Statement
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		p.nextToken()
		elseBranch = p.parseStatement()
	}

	return &ast.If{Token: tok, Condition: cond, Then: thenBranch, Else: elseBranch}
}

func (p *Parser) parseWhileStatement() ast.Statement {
	tok := p.curToken
	if !p.expectPeek(token.LEFT_PAREN) {
		return nil
	}
	p.nextToken()
	cond := p.parseExpression()
	if !p.expectPeek(token.RIGHT_PAREN) {
		return nil
	}
	p.nextToken()
	body := p.parseStatement()

	return &ast.While{Token: tok, Condition: cond, Body: body}
}

func (p *Parser) parsePutc() ast.Statement {
	tok := p.curToken
	p.nextToken()
	value := p.parseExpression()
	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return &ast.Putc{Token: tok, Value: value}
}

func (p *Parser) parseCallStatement() ast.Statement {
	callee := p.curToken
	p.nextToken() // consume identifier, curToken now '('

	var args []ast.Expression
	if !p.peekTokenIs(token.RIGHT_PAREN) {
		p.nextToken()
		args = append(args, p.parseExpression())
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			args = append(args, p.parseExpression())
		}
	}
	if !p.expectPeek(token.RIGHT_PAREN) {
		return nil
	}
	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}

	return &ast.CallStatement{Token: callee, Callee: callee.Literal, Arguments: args}
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	tok := p.curToken
	expr := p.parseExpression()
	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return &ast.ExpressionStatement{Token: tok, Expression: expr}
}

func (p *Parser) parseExpression() ast.Expression {
	return p.assignment()
}

func (p *Parser) assignment() ast.Expression {
	expr := p.logicOr()

	if p.peekTokenIs(token.EQUAL) {
		p.nextToken()
		eq := p.curToken
		p.nextToken()
		value := p.assignment()

		varExpr, ok := expr.(*ast.VariableExpression)
		if !ok {
			p.errors = append(p.errors, fmt.Sprintf("[%d:%d] SyntaxError: invalid assignment target %q", eq.Line, eq.Column, expr.String()))
			return expr
		}
		return &ast.Assignment{Token: varExpr.Token, Name: varExpr.Name, Index: varExpr.Index, Value: value}
	}

	return expr
}

func (p *Parser) logicOr() ast.Expression {
	expr := p.logicAnd()
	for p.peekTokenIs(token.OR) {
		p.nextToken()
		op := p.curToken
		p.nextToken()
		right := p.logicAnd()
		expr = &ast.Logical{Token: op, Left: expr, Operator: op.Type, Right: right}
	}
	return expr
}

func (p *Parser) logicAnd() ast.Expression {
	expr := p.equality()
	for p.peekTokenIs(token.AND) {
		p.nextToken()
		op := p.curToken
		p.nextToken()
		right := p.equality()
		expr = &ast.Logical{Token: op, Left: expr, Operator: op.Type, Right: right}
	}
	return expr
}

func (p *Parser) equality() ast.Expression {
	expr := p.comparison()
	for p.peekTokenIs(token.BANG_EQUAL) || p.peekTokenIs(token.EQUAL_EQUAL) {
		p.nextToken()
		op := p.curToken
		p.nextToken()
		right := p.comparison()
		expr = &ast.Binary{Token: op, Left: expr, Operator: op.Type, Right: right}
	}
	return expr
}

func (p *Parser) comparison() ast.Expression {
	expr := p.addition()
	for p.peekTokenIs(token.GREATER) || p.peekTokenIs(token.GREATER_EQUAL) ||
		p.peekTokenIs(token.LESS) || p.peekTokenIs(token.LESS_EQUAL) {
		p.nextToken()
		op := p.curToken
		p.nextToken()
		right := p.addition()
		expr = &ast.Binary{Token: op, Left: expr, Operator: op.Type, Right: right}
	}
	return expr
}

func (p *Parser) addition() ast.Expression {
	expr := p.multiplication()
	for p.peekTokenIs(token.PLUS) || p.peekTokenIs(token.MINUS) {
		p.nextToken()
		op := p.curToken
		p.nextToken()
		right := p.multiplication()
		expr = &ast.Binary{Token: op, Left: expr, Operator: op.Type, Right: right}
	}
	return expr
}

func (p *Parser) multiplication() ast.Expression {
	expr := p.unary()
	for p.peekTokenIs(token.SLASH) || p.peekTokenIs(token.STAR) || p.peekTokenIs(token.PERCENT) {
		p.nextToken()
		op := p.curToken
		p.nextToken()
		right := p.unary()
		expr = &ast.Binary{Token: op, Left: expr, Operator: op.Type, Right: right}
	}
	return expr
}

func (p *Parser) unary() ast.Expression {
	if p.curTokenIs(token.BANG) || p.curTokenIs(token.MINUS) {
		op := p.curToken
		p.nextToken()
		right := p.unary()
		return &ast.Unary{Token: op, Operator: op.Type, Right: right}
	}
	return p.primary()
}

func (p *Parser) primary() ast.Expression {
	switch {
	case p.curTokenIs(token.NUMBER):
		tok := p.curToken
		return &ast.Literal{Token: tok, Value: p.parseNumberLiteral(tok.Literal)}

	case p.curTokenIs(token.IDENTIFIER):
		tok := p.curToken
		var index ast.Expression
		if p.peekTokenIs(token.LEFT_SQUARE_BRACKET) {
			p.nextToken()
			p.nextToken()
			index = p.parseExpression()
			if !p.expectPeek(token.RIGHT_SQUARE_BRACKET) {
				return nil
			}
		}
		return &ast.VariableExpression{Token: tok, Name: tok.Literal, Index: index}

	case p.curTokenIs(token.LEFT_PAREN):
		p.nextToken()
		expr := p.parseExpression()
		if !p.expectPeek(token.RIGHT_PAREN) {
			return nil
		}
		return expr

	default:
		p.errors = append(p.errors, fmt.Sprintf("[%d:%d] SyntaxError: expected expression, found %s",
			p.curToken.Line, p.curToken.Column, p.curToken.Type.Display()))
		return &ast.Literal{Token: p.curToken, Value: 0}
	}
}

func (p *Parser) parseNumberLiteral(literal string) int {
	var n int64
	var err error
	if len(literal) > 2 && (literal[0:2] == "0x" || literal[0:2] == "0X") {
		n, err = strconv.ParseInt(literal[2:], 16, 64)
	} else {
		n, err = strconv.ParseInt(literal, 10, 64)
	}
	if err != nil {
		p.errorf("could not parse %q as number", literal)
		return 0
	}
	return int(n)
}
