package contrast

import (
	"fmt"
	"strconv"
	"unicode"
)

// linear is a linear form: a weight per level plus a constant.
type linear struct {
	weights  map[string]float64
	constant float64
}

func constant(v float64) linear {
	return linear{weights: map[string]float64{}, constant: v}
}

func (l linear) isConstant() bool {
	for _, w := range l.weights {
		if w != 0 {
			return false
		}
	}
	return true
}

func (l linear) add(o linear, sign float64) linear {
	out := linear{weights: make(map[string]float64, len(l.weights)+len(o.weights)), constant: l.constant + sign*o.constant}
	for k, v := range l.weights {
		out.weights[k] += v
	}
	for k, v := range o.weights {
		out.weights[k] += sign * v
	}
	return out
}

func (l linear) scale(s float64) linear {
	out := linear{weights: make(map[string]float64, len(l.weights)), constant: l.constant * s}
	for k, v := range l.weights {
		out.weights[k] = v * s
	}
	return out
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(expr string) ([]token, error) {
	runes := []rune(expr)
	out := make([]token, 0)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')':
			out = append(out, token{kind: tokOp, text: string(r), pos: i})
			i++
		case isDigit(r) || (r == '.' && i+1 < len(runes) && isDigit(runes[i+1])):
			start := i
			for i < len(runes) && (isDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			// Exponent, as in 1e-3
			if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
				j := i + 1
				if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
					j++
				}
				if j < len(runes) && isDigit(runes[j]) {
					i = j
					for i < len(runes) && isDigit(runes[i]) {
						i++
					}
				}
			}
			out = append(out, token{kind: tokNumber, text: string(runes[start:i]), pos: start})
		case r == '_' || r == '.' || isLetter(r):
			start := i
			for i < len(runes) && (runes[i] == '_' || runes[i] == '.' || isLetter(runes[i]) || isDigit(runes[i])) {
				i++
			}
			out = append(out, token{kind: tokIdent, text: string(runes[start:i]), pos: start})
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", r, i)
		}
	}

	return append(out, token{kind: tokEOF, pos: len(runes)}), nil
}

// identifiers returns every level name mentioned in expr, in order of first
// appearance, including those whose weights cancel.
func identifiers(expr string) ([]string, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, t := range tokens {
		if t.kind != tokIdent {
			continue
		}
		if _, exists := seen[t.text]; exists {
			continue
		}
		seen[t.text] = struct{}{}
		out = append(out, t.text)
	}

	return out, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// Parse evaluates a linear contrast expression and returns the weight on each
// level it mentions. Supported syntax: level names, numbers, unary and binary
// + and -, multiplication and division by constants, and parentheses.
func Parse(expr string) (map[string]float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, fmt.Errorf("empty contrast")
	}

	l, err := p.expression()
	if err != nil {
		return nil, err
	}

	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}

	if l.constant != 0 {
		return nil, fmt.Errorf("%w: it includes a constant term %g", ErrNotLinear, l.constant)
	}

	out := make(map[string]float64)
	for k, v := range l.weights {
		if v != 0 {
			out[k] = v
		}
	}

	if len(out) < 1 {
		return nil, fmt.Errorf("%w: all level weights are zero", ErrNotLinear)
	}

	return out, nil
}

// expression := term (('+' | '-') term)*
func (p *parser) expression() (linear, error) {
	left, err := p.term()
	if err != nil {
		return linear{}, err
	}

	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()

		right, err := p.term()
		if err != nil {
			return linear{}, err
		}

		sign := 1.0
		if t.text == "-" {
			sign = -1.0
		}
		left = left.add(right, sign)
	}
}

// term := unary (('*' | '/') unary)*
func (p *parser) term() (linear, error) {
	left, err := p.unary()
	if err != nil {
		return linear{}, err
	}

	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()

		right, err := p.unary()
		if err != nil {
			return linear{}, err
		}

		switch t.text {
		case "*":
			switch {
			case right.isConstant():
				left = left.scale(right.constant)
			case left.isConstant():
				left = right.scale(left.constant)
			default:
				return linear{}, fmt.Errorf("%w: product of two levels at position %d", ErrNotLinear, t.pos)
			}
		case "/":
			if !right.isConstant() {
				return linear{}, fmt.Errorf("%w: division by a level at position %d", ErrNotLinear, t.pos)
			}
			if right.constant == 0 {
				return linear{}, fmt.Errorf("division by zero at position %d", t.pos)
			}
			left = left.scale(1 / right.constant)
		}
	}
}

// unary := ('+' | '-') unary | primary
func (p *parser) unary() (linear, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "+" || t.text == "-") {
		p.next()
		operand, err := p.unary()
		if err != nil {
			return linear{}, err
		}
		if t.text == "-" {
			return operand.scale(-1), nil
		}
		return operand, nil
	}

	return p.primary()
}

// primary := number | level | '(' expression ')'
func (p *parser) primary() (linear, error) {
	t := p.next()

	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return linear{}, fmt.Errorf("bad number %q at position %d", t.text, t.pos)
		}
		return constant(v), nil
	case tokIdent:
		return linear{weights: map[string]float64{t.text: 1}}, nil
	case tokOp:
		if t.text == "(" {
			inner, err := p.expression()
			if err != nil {
				return linear{}, err
			}
			if closing := p.next(); closing.kind != tokOp || closing.text != ")" {
				return linear{}, fmt.Errorf("missing ')' for '(' at position %d", t.pos)
			}
			return inner, nil
		}
	}

	if t.kind == tokEOF {
		return linear{}, fmt.Errorf("unexpected end of contrast")
	}

	return linear{}, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
}
