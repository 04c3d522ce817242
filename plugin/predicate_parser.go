package clverify

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/hashicorp/errwrap"

	"clverify/proof"
	"clverify/verifier"
)

// Predicate expressions name attributes as attr[issuerKeyID] and join
// lower bounds with AND, for example
//
//	(age[gvt] >= 18) AND height[gvt] >= 170
//
// OR and any comparison other than >= are rejected.

type node struct {
	val    string
	parent *node
	left   *node
	right  *node
	// an operator was read and still waits for its right operand
	pending bool
}

var (
	space     = regexp.MustCompile(`\s+`)
	geSpacing = regexp.MustCompile(`\s*>=\s*`)
	clause    = regexp.MustCompile(`^(\w[\w.-]*)\[(\w[\w.-]*)\]>=(-?\d+)$`)
)

func parsePredicate(expr string) (proof.Predicate, error) {
	tokens := tokenize(expr)
	if len(tokens) == 0 {
		return nil, errwrap.Wrapf("empty predicate expression: {{err}}", verifier.ErrMalformedProof)
	}

	root, err := toTree(tokens)
	if err != nil {
		return nil, err
	}

	pred := proof.Predicate{}
	if err := collect(root, pred); err != nil {
		return nil, err
	}
	if len(pred) == 0 {
		return nil, errwrap.Wrapf("predicate expression has no clauses: {{err}}", verifier.ErrMalformedProof)
	}
	return pred, nil
}

func tokenize(in string) []string {
	in = geSpacing.ReplaceAllString(in, ">=")
	in = strings.Replace(in, "(", " ( ", -1)
	in = strings.Replace(in, ")", " ) ", -1)
	in = strings.TrimSpace(space.ReplaceAllString(in, " "))
	if in == "" {
		return nil
	}
	return strings.Split(in, " ")
}

func isOp(in string) bool {
	u := strings.ToUpper(in)
	return u == "AND" || u == "OR"
}

func isLPar(in string) bool { return in == "(" }

func isRPar(in string) bool { return in == ")" }

func isClause(in string) bool {
	return !isOp(in) && !isLPar(in) && !isRPar(in)
}

// toTree builds a binary tree whose inner nodes carry the operator and whose
// leaves carry the clauses.
func toTree(in []string) (*node, error) {
	root := &node{val: "-"}
	root.parent = root
	current := root
	depth := 0

	attach := func(n *node) error {
		switch {
		case current.left == nil:
			current.left = n
			return nil
		case !current.pending:
			return errwrap.Wrapf("missing operator between clauses: {{err}}", verifier.ErrMalformedProof)
		case current.right == nil:
			current.right = n
		default:
			// a third operand: push the pair down so AND chains stay binary
			pushed := &node{val: current.val, parent: current, left: current.left, right: current.right}
			pushed.left.parent, pushed.right.parent = pushed, pushed
			current.left, current.right = pushed, n
		}
		current.pending = false
		return nil
	}

	for _, tok := range in {
		switch {
		case isLPar(tok):
			child := &node{val: "-", parent: current}
			if err := attach(child); err != nil {
				return nil, err
			}
			current = child
			depth++
		case isRPar(tok):
			if depth == 0 {
				return nil, errwrap.Wrapf("unbalanced parenthesis: {{err}}", verifier.ErrMalformedProof)
			}
			current = current.parent
			depth--
		case isOp(tok):
			op := strings.ToUpper(tok)
			if op != "AND" {
				return nil, errwrap.Wrapf(fmt.Sprintf("operator %s is not supported: {{err}}", tok), verifier.ErrMalformedProof)
			}
			if current.left == nil || current.pending {
				return nil, errwrap.Wrapf("operator without left operand: {{err}}", verifier.ErrMalformedProof)
			}
			current.val = op
			current.pending = true
		default:
			if err := attach(&node{val: tok, parent: current}); err != nil {
				return nil, err
			}
		}
	}
	if depth != 0 {
		return nil, errwrap.Wrapf("unbalanced parenthesis: {{err}}", verifier.ErrMalformedProof)
	}
	if current.pending {
		return nil, errwrap.Wrapf("operator without right operand: {{err}}", verifier.ErrMalformedProof)
	}
	return root, nil
}

func collect(n *node, pred proof.Predicate) error {
	if n == nil {
		return nil
	}
	if n.left == nil && n.right == nil {
		if n.val == "-" {
			return nil
		}
		return addClause(n.val, pred)
	}
	if n.pending {
		return errwrap.Wrapf("operator without right operand: {{err}}", verifier.ErrMalformedProof)
	}
	if err := collect(n.left, pred); err != nil {
		return err
	}
	return collect(n.right, pred)
}

// addClause parses attr[issuerKeyID]>=threshold into pred.
func addClause(tok string, pred proof.Predicate) error {
	if !isClause(tok) {
		return errwrap.Wrapf(fmt.Sprintf("unexpected token %q: {{err}}", tok), verifier.ErrMalformedProof)
	}
	m := clause.FindStringSubmatch(tok)
	if m == nil {
		return errwrap.Wrapf(fmt.Sprintf("clause %q is not attr[key] >= integer: {{err}}", tok), verifier.ErrMalformedProof)
	}
	attr, keyID := m[1], m[2]
	threshold, ok := new(big.Int).SetString(m[3], 10)
	if !ok {
		return errwrap.Wrapf(fmt.Sprintf("threshold %q: {{err}}", m[3]), verifier.ErrMalformedProof)
	}

	if pred[keyID] == nil {
		pred[keyID] = map[string]*big.Int{}
	}
	if _, dup := pred[keyID][attr]; dup {
		return errwrap.Wrapf(fmt.Sprintf("%s[%s] is bounded twice: {{err}}", attr, keyID), verifier.ErrMalformedProof)
	}
	pred[keyID][attr] = threshold
	return nil
}
